package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/park285/arbiter-desk/internal/export"
	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		pgnPath string
		pngPath string
		event   string
		site    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the working results as PGN and/or a PNG results sheet",
		Long: `Exports the loaded games with drafts applied. Unsaved results are
included and flagged on the PNG sheet.

Examples:
  resultsctl export --round 3 --pgn round3.pgn
  resultsctl export --round 3 --png round3.png --event "City Open"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pgnPath == "" && pngPath == "" {
				return errors.New("nothing to do: pass --pgn and/or --png")
			}
			ctx := cmd.Context()
			s, err := a.openSession(ctx, nil)
			if err != nil {
				return err
			}
			rows := export.Rows(s.games, s.rec.Entries())
			if event == "" {
				event = a.cfg.TournamentID
			}

			if pgnPath != "" {
				f, err := os.Create(pgnPath)
				if err != nil {
					return fmt.Errorf("create pgn: %w", err)
				}
				werr := export.WritePGN(f, rows, export.PGNOptions{Event: event, Site: site, Date: time.Now()})
				if cerr := f.Close(); werr == nil {
					werr = cerr
				}
				if werr != nil {
					return fmt.Errorf("write pgn: %w", werr)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d game(s) to %s\n", len(rows), pgnPath)
			}

			if pngPath != "" {
				title := event
				if a.round > 0 {
					title = fmt.Sprintf("%s - round %d", event, a.round)
				}
				footer := ""
				if n := s.rec.ModifiedCount(); n > 0 {
					footer = fmt.Sprintf("%d unsaved result(s)", n)
				}
				png, err := export.RenderSheetPNG(ctx, rows, export.SheetOptions{Title: title, Footer: footer})
				if err != nil {
					return fmt.Errorf("render sheet: %w", err)
				}
				if err := os.WriteFile(pngPath, png, 0o644); err != nil {
					return fmt.Errorf("write png: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote sheet to %s\n", pngPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pgnPath, "pgn", "", "PGN output file")
	cmd.Flags().StringVar(&pngPath, "png", "", "PNG results sheet output file")
	cmd.Flags().StringVar(&event, "event", "", "event name (default: tournament id)")
	cmd.Flags().StringVar(&site, "site", "", "site tag for PGN")
	return cmd
}
