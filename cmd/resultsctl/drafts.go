package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/park285/arbiter-desk/internal/draftstore"
	"github.com/spf13/cobra"
)

func newDraftsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "Inspect or discard unsaved edits kept in Redis",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the stored drafts of the current arbiter",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := a.requireDraftStore(cmd.Context())
				if err != nil {
					return err
				}
				snap, err := store.Load(cmd.Context(), a.cfg.TournamentID, a.cfg.ArbiterID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if snap == nil || len(snap.Drafts) == 0 {
					fmt.Fprintln(out, "no drafts")
					return nil
				}
				fmt.Fprintf(out, "%d draft(s), saved %s\n", len(snap.Drafts), snap.SavedAt.Local().Format(time.DateTime))
				for _, d := range snap.Drafts {
					line := d.GameID + " " + d.Result
					if d.ResultType != "" {
						line += " (" + d.ResultType + ")"
					}
					if d.ResultReason != "" {
						line += " reason=" + d.ResultReason
					}
					fmt.Fprintln(out, line)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Discard the stored drafts of the current arbiter",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := a.requireDraftStore(cmd.Context())
				if err != nil {
					return err
				}
				if err := store.Clear(cmd.Context(), a.cfg.TournamentID, a.cfg.ArbiterID); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "drafts cleared")
				return nil
			},
		},
	)
	return cmd
}

func (a *app) requireDraftStore(ctx context.Context) (*draftstore.Store, error) {
	if err := a.cfg.RequireSession(); err != nil {
		return nil, err
	}
	store, err := a.draftStore(ctx)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("REDIS_URL is required for drafts")
	}
	return store, nil
}
