package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/park285/arbiter-desk/internal/resultcode"
)

type PGNOptions struct {
	Event string
	Site  string
	Date  time.Time
}

// WritePGN writes one movetext-less PGN game per row. Special results map onto
// the four PGN tokens; forfeits and defaults get a Termination tag.
func WritePGN(w io.Writer, rows []Row, opts PGNOptions) error {
	date := opts.Date
	if date.IsZero() {
		date = time.Now()
	}
	event := strings.TrimSpace(opts.Event)
	if event == "" {
		event = "?"
	}
	site := strings.TrimSpace(opts.Site)
	if site == "" {
		site = "?"
	}
	for i, r := range rows {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, buildPGN(r, event, site, date)); err != nil {
			return err
		}
	}
	return nil
}

func buildPGN(r Row, event, site string, date time.Time) string {
	result := resultcode.PGNResult(r.Result)
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[Event \"%s\"]\n", sanitizePGN(event)))
	b.WriteString(fmt.Sprintf("[Site \"%s\"]\n", sanitizePGN(site)))
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[Round \"%d.%d\"]\n", r.Round, r.Board))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(orUnknown(r.White))))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(orUnknown(r.Black))))
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n", result))
	if t := termination(r.Result); t != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", t))
	}
	b.WriteString("\n")
	b.WriteString(result)
	b.WriteString("\n")
	return b.String()
}

func termination(code string) string {
	switch code {
	case resultcode.WhiteWinsForfeit, resultcode.BlackWinsForfeit, resultcode.DoubleForfeit:
		return "forfeit"
	case resultcode.WhiteWinsDefault, resultcode.BlackWinsDefault:
		return "default"
	case resultcode.Adjourned:
		return "adjourned"
	case resultcode.Cancelled:
		return "cancelled"
	default:
		return ""
	}
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "?"
	}
	return s
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
