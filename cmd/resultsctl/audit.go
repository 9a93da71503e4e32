package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/park285/arbiter-desk/internal/resultentry"
	"github.com/spf13/cobra"
)

func newAuditCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "audit <game-id>",
		Short: "Show the result history of a game, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.TournamentID == "" {
				return errors.New("TOURNAMENT_ID is required")
			}
			rep, closeRep := a.reporter(cmd.ErrOrStderr())
			defer closeRep()
			client := a.client()
			rec, err := resultentry.New(a.cfg.TournamentID, a.cfg.ArbiterID, client, client,
				resultentry.WithLogger(a.logger),
				resultentry.WithReporter(rep),
			)
			if err != nil {
				return err
			}
			records, err := rec.AuditTrail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no recorded changes")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tFROM\tTO\tBY\tAPPROVED\tREASON\t")
			for _, r := range records {
				by := r.ChangedBy
				if by == "" {
					by = "system"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%v\t%s\t\n",
					r.ChangedAt.Local().Format(time.DateTime), r.OldResult, r.NewResult, by, r.Approved, r.Reason)
			}
			return tw.Flush()
		},
	}
}
