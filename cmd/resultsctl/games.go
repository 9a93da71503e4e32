package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/park285/arbiter-desk/internal/export"
	"github.com/spf13/cobra"
)

func newGamesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "games",
		Short: "List the games of the tournament with their working results",
		Long: `Lists the pairings with the stored result, overlaid with any drafts
kept in Redis for the current arbiter (marked with *).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context(), nil)
			if err != nil {
				return err
			}
			printRows(cmd.OutOrStdout(), export.Rows(s.games, s.rec.Entries()))
			if s.restored > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d unsaved draft(s)\n", s.restored)
			}
			return nil
		},
	}
}

func printRows(w io.Writer, rows []export.Row) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROUND\tBOARD\tWHITE\tBLACK\tRESULT\tTYPE\t")
	for _, r := range rows {
		mark := ""
		if r.Modified {
			mark = "*"
		}
		if r.RequiresApproval {
			mark += "!"
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s%s\t%s\t\n", r.Round, r.Board, r.White, r.Black, r.Result, mark, r.ResultType)
	}
	_ = tw.Flush()
}
