// Package resultcode holds the result-code and result-type vocabulary used by the
// results backend and the exports. The reconciler itself only knows the ongoing
// sentinel and the approval set; code validation belongs to the backend.
package resultcode

import (
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Result codes. The four plain codes are the PGN outcomes.
const (
	WhiteWins = string(nchess.WhiteWon)
	BlackWins = string(nchess.BlackWon)
	Draw      = string(nchess.Draw)
	Ongoing   = string(nchess.NoOutcome)

	WhiteWinsForfeit = "1-0F"
	BlackWinsForfeit = "0-1F"
	WhiteWinsDefault = "1-0D"
	BlackWinsDefault = "0-1D"
	DoubleForfeit    = "0F-0F"
	Adjourned        = "ADJ"
	Cancelled        = "CANC"
)

// Result types. An empty type means "no classification".
const (
	TypeStandard      = "standard"
	TypeWhiteForfeit  = "white_forfeit"
	TypeBlackForfeit  = "black_forfeit"
	TypeWhiteDefault  = "white_default"
	TypeBlackDefault  = "black_default"
	TypeDoubleForfeit = "double_forfeit"
	TypeTimeout       = "timeout"
	TypeAdjourned     = "adjourned"
	TypeCancelled     = "cancelled"
)

var codes = map[string]struct{}{
	WhiteWins: {}, BlackWins: {}, Draw: {}, Ongoing: {},
	WhiteWinsForfeit: {}, BlackWinsForfeit: {},
	WhiteWinsDefault: {}, BlackWinsDefault: {},
	DoubleForfeit: {}, Adjourned: {}, Cancelled: {},
}

var types = map[string]struct{}{
	TypeStandard: {}, TypeWhiteForfeit: {}, TypeBlackForfeit: {},
	TypeWhiteDefault: {}, TypeBlackDefault: {}, TypeDoubleForfeit: {},
	TypeTimeout: {}, TypeAdjourned: {}, TypeCancelled: {},
}

var approvalTypes = map[string]struct{}{
	TypeWhiteForfeit:  {},
	TypeBlackForfeit:  {},
	TypeWhiteDefault:  {},
	TypeBlackDefault:  {},
	TypeDoubleForfeit: {},
	TypeCancelled:     {},
}

// impliedTypes maps special codes to the only type they may carry.
// white_forfeit means white forfeited, so black is credited with the win.
var impliedTypes = map[string]string{
	BlackWinsForfeit: TypeWhiteForfeit,
	WhiteWinsForfeit: TypeBlackForfeit,
	WhiteWinsDefault: TypeWhiteDefault,
	BlackWinsDefault: TypeBlackDefault,
	DoubleForfeit:    TypeDoubleForfeit,
	Adjourned:        TypeAdjourned,
	Cancelled:        TypeCancelled,
}

// Normalize trims surrounding whitespace. Codes are case-sensitive except the
// alphabetic special codes, which are upper-cased.
func Normalize(code string) string {
	c := strings.TrimSpace(code)
	switch strings.ToUpper(c) {
	case Adjourned, Cancelled, WhiteWinsForfeit, BlackWinsForfeit, WhiteWinsDefault, BlackWinsDefault, DoubleForfeit:
		return strings.ToUpper(c)
	}
	return c
}

func IsOngoing(code string) bool { return strings.TrimSpace(code) == Ongoing }

func KnownCode(code string) bool {
	_, ok := codes[code]
	return ok
}

func KnownType(t string) bool {
	_, ok := types[t]
	return ok
}

// RequiresApproval reports whether a result type must be confirmed by an arbiter.
func RequiresApproval(t string) bool {
	_, ok := approvalTypes[strings.TrimSpace(t)]
	return ok
}

// ImpliedType returns the type a special code carries, or "" for plain codes.
func ImpliedType(code string) string { return impliedTypes[code] }

// Compatible reports whether a code may be stored with the given type.
// An empty type is always compatible.
func Compatible(code, t string) bool {
	if t == "" {
		return true
	}
	if implied, ok := impliedTypes[code]; ok {
		return implied == t
	}
	switch t {
	case TypeStandard, TypeTimeout:
		return code == WhiteWins || code == BlackWins || code == Draw
	default:
		// plain codes cannot carry forfeit/default/adjourned/cancelled types
		return false
	}
}

// Points returns the score credited to white and black in half points.
// ok is false for results that do not score (ongoing, adjourned, cancelled).
func Points(code string) (white, black int, ok bool) {
	switch code {
	case WhiteWins, WhiteWinsForfeit, WhiteWinsDefault:
		return 2, 0, true
	case BlackWins, BlackWinsForfeit, BlackWinsDefault:
		return 0, 2, true
	case Draw:
		return 1, 1, true
	case DoubleForfeit:
		return 0, 0, true
	default:
		return 0, 0, false
	}
}

// PGNResult maps a code onto the four PGN result tokens.
func PGNResult(code string) string {
	switch code {
	case WhiteWins, WhiteWinsForfeit, WhiteWinsDefault:
		return WhiteWins
	case BlackWins, BlackWinsForfeit, BlackWinsDefault:
		return BlackWins
	case Draw:
		return Draw
	default:
		return Ongoing
	}
}
