package bridge

import (
	"context"
	"strings"

	"github.com/park285/arbiter-desk/internal/resultentry"
	"github.com/park285/arbiter-desk/pkg/resultdto"
)

var (
	_ resultentry.ValidationService  = (*Client)(nil)
	_ resultentry.PersistenceService = (*Client)(nil)
)

func (c *Client) Validate(ctx context.Context, req resultentry.ValidateRequest) (resultentry.ValidationResult, error) {
	in := resultdto.ValidateGameResultRequest{
		GameID:       req.GameID,
		Result:       req.Result,
		ResultType:   req.ResultType,
		TournamentID: req.TournamentID,
		ChangedBy:    req.Actor,
	}
	var out resultdto.Validation
	if err := c.command(ctx, "validate_game_result", in, &out, true); err != nil {
		return resultentry.ValidationResult{}, err
	}
	return fromValidation(out), nil
}

func (c *Client) BatchValidate(ctx context.Context, req resultentry.BatchRequest) (resultentry.BatchOutcome, error) {
	req.ValidateOnly = true
	return c.batch(ctx, req, true)
}

// BatchUpdate is not retried: a save that reached the server but lost its
// answer would otherwise be written twice to the audit log.
func (c *Client) BatchUpdate(ctx context.Context, req resultentry.BatchRequest) (resultentry.BatchOutcome, error) {
	req.ValidateOnly = false
	return c.batch(ctx, req, false)
}

func (c *Client) batch(ctx context.Context, req resultentry.BatchRequest, retry bool) (resultentry.BatchOutcome, error) {
	in := resultdto.BatchUpdateRequest{
		TournamentID: req.TournamentID,
		Updates:      make([]resultdto.ResultUpdate, len(req.Updates)),
		ValidateOnly: req.ValidateOnly,
	}
	for i, u := range req.Updates {
		in.Updates[i] = resultdto.ResultUpdate{
			GameID:       u.GameID,
			Result:       u.Result,
			ResultType:   u.ResultType,
			ResultReason: u.ResultReason,
			ArbiterNotes: u.ArbiterNotes,
			ChangedBy:    u.Actor,
		}
	}
	var out resultdto.BatchUpdateResponse
	if err := c.command(ctx, "batch_update_results", in, &out, retry); err != nil {
		return resultentry.BatchOutcome{}, err
	}
	res := resultentry.BatchOutcome{OverallValid: out.OverallValid, Results: make([]resultentry.EntryResult, len(out.Results))}
	for i, r := range out.Results {
		res.Results[i] = resultentry.EntryResult{Index: r.Index, GameID: r.GameID, Validation: fromValidation(r.Validation)}
	}
	return res, nil
}

func (c *Client) AuditTrail(ctx context.Context, gameID string) ([]resultentry.AuditRecord, error) {
	var out resultdto.AuditTrailResponse
	if err := c.command(ctx, "get_game_audit_trail", resultdto.AuditTrailRequest{GameID: gameID}, &out, true); err != nil {
		return nil, err
	}
	recs := make([]resultentry.AuditRecord, len(out.Records))
	for i, r := range out.Records {
		recs[i] = resultentry.AuditRecord{
			ID:        r.ID,
			GameID:    r.GameID,
			ChangedAt: r.ChangedAt,
			OldResult: r.OldResult,
			NewResult: r.NewResult,
			ChangedBy: strings.TrimSpace(r.ChangedBy),
			Reason:    r.Reason,
			Approved:  r.Approved,
		}
	}
	return recs, nil
}

// ListGames loads the games of a tournament; round 0 means all rounds.
func (c *Client) ListGames(ctx context.Context, tournamentID string, round int) ([]resultentry.Game, error) {
	var out resultdto.ListGamesResponse
	if err := c.command(ctx, "list_games", resultdto.ListGamesRequest{TournamentID: tournamentID, Round: round}, &out, true); err != nil {
		return nil, err
	}
	games := make([]resultentry.Game, len(out.Games))
	for i, g := range out.Games {
		games[i] = resultentry.Game{
			ID:           g.ID,
			TournamentID: g.TournamentID,
			Round:        g.Round,
			Board:        g.Board,
			WhiteID:      g.WhiteID,
			WhiteName:    g.WhiteName,
			BlackID:      g.BlackID,
			BlackName:    g.BlackName,
			Result:       g.Result,
			ResultType:   g.ResultType,
			ResultReason: g.ResultReason,
			ArbiterNotes: g.ArbiterNotes,
		}
	}
	return games, nil
}

func fromValidation(v resultdto.Validation) resultentry.ValidationResult {
	return resultentry.ValidationResult{
		Valid:    v.IsValid,
		Errors:   append([]string{}, v.Errors...),
		Warnings: append([]string{}, v.Warnings...),
	}
}
