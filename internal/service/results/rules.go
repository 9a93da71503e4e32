package results

import (
	"github.com/park285/arbiter-desk/internal/domain"
	"github.com/park285/arbiter-desk/internal/msgcat"
	"github.com/park285/arbiter-desk/internal/resultcode"
	"github.com/park285/arbiter-desk/pkg/resultdto"
)

type checkInput struct {
	GameID       string
	TournamentID string
	Result       string
	ResultType   string
}

// check validates one proposed result against the stored game. game is nil
// when the id is unknown.
func check(cat *msgcat.Catalog, game *domain.TournamentGame, in checkInput) resultdto.Validation {
	v := resultdto.Validation{IsValid: true, Errors: []string{}, Warnings: []string{}}
	fail := func(key string, data map[string]any) {
		v.IsValid = false
		v.Errors = append(v.Errors, cat.Text(key, data))
	}
	data := map[string]any{
		"GameID":       in.GameID,
		"TournamentID": in.TournamentID,
		"Result":       in.Result,
		"ResultType":   in.ResultType,
		"Board":        0,
		"OldResult":    "",
	}
	if game == nil {
		fail("validation.unknown_game", data)
		return v
	}
	data["Board"] = game.Board
	data["OldResult"] = game.Result

	if in.TournamentID != "" && game.TournamentID != in.TournamentID {
		fail("validation.wrong_tournament", data)
	}
	switch {
	case in.Result == "":
		fail("validation.empty_result", data)
	case !resultcode.KnownCode(in.Result):
		fail("validation.unknown_result", data)
	case in.ResultType != "" && !resultcode.KnownType(in.ResultType):
		fail("validation.unknown_type", data)
	case !resultcode.Compatible(in.Result, in.ResultType):
		fail("validation.type_mismatch", data)
	}
	if !v.IsValid {
		return v
	}

	if resultcode.RequiresApproval(in.ResultType) {
		v.Warnings = append(v.Warnings, cat.Text("validation.needs_approval", data))
	}
	if resultcode.IsOngoing(in.Result) {
		v.Warnings = append(v.Warnings, cat.Text("validation.still_ongoing", data))
	} else if game.Result != "" && !resultcode.IsOngoing(game.Result) && game.Result != in.Result {
		v.Warnings = append(v.Warnings, cat.Text("validation.overwrites_result", data))
	}
	return v
}

func duplicate(cat *msgcat.Catalog, gameID string) resultdto.Validation {
	return resultdto.Validation{
		IsValid:  false,
		Errors:   []string{cat.Text("validation.duplicate_in_batch", map[string]any{"GameID": gameID})},
		Warnings: []string{},
	}
}
