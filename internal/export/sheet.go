// Package export writes the working set of a round as PGN or as a PNG
// results sheet for the arbiter's table display.
package export

import (
	"sort"

	"github.com/park285/arbiter-desk/internal/resultentry"
)

// Row is one line of a results sheet: the pairing plus the working result.
type Row struct {
	Round            int
	Board            int
	White            string
	Black            string
	Result           string
	ResultType       string
	Modified         bool
	RequiresApproval bool
	// Valid is nil when the entry has not been validated.
	Valid *bool
}

// Rows joins the loaded games with the reconciler entries, ordered by round
// and board. Games without an entry use their stored values.
func Rows(games []resultentry.Game, entries map[string]resultentry.Entry) []Row {
	rows := make([]Row, 0, len(games))
	for _, g := range games {
		row := Row{
			Round:      g.Round,
			Board:      g.Board,
			White:      g.WhiteName,
			Black:      g.BlackName,
			Result:     g.Result,
			ResultType: g.ResultType,
		}
		if e, ok := entries[g.ID]; ok {
			row.Result = e.Result
			row.ResultType = e.ResultType
			row.Modified = e.Modified
			row.RequiresApproval = e.RequiresApproval
			if e.Validation != nil {
				v := e.Validation.Valid
				row.Valid = &v
			}
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Round != rows[j].Round {
			return rows[i].Round < rows[j].Round
		}
		return rows[i].Board < rows[j].Board
	})
	return rows
}
