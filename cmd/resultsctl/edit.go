package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/park285/arbiter-desk/internal/resultentry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var errRejected = errors.New("results rejected by validation")

// editFile is the input of `resultsctl edit -f`.
//
//	edits:
//	  - game: g1
//	    result: 0-1F
//	    type: white_forfeit
//	    reason: no show
type editFile struct {
	Edits []editLine `yaml:"edits"`
}

type editLine struct {
	Game   string  `yaml:"game"`
	Result string  `yaml:"result"`
	Type   string  `yaml:"type"`
	Reason *string `yaml:"reason"`
	Notes  *string `yaml:"notes"`
}

func loadEdits(path string) ([]editLine, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read edits: %w", err)
	}
	var f editFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse edits %s: %w", path, err)
	}
	for i, e := range f.Edits {
		if strings.TrimSpace(e.Game) == "" {
			return nil, fmt.Errorf("edits %s: line %d has no game", path, i)
		}
	}
	return f.Edits, nil
}

func newEditCmd(a *app) *cobra.Command {
	var (
		file    string
		save    bool
		allDraw bool
		wait    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Apply result edits, then validate or save them as one batch",
		Long: `Loads the tournament, re-applies stored drafts, applies the edits file and
runs a batch validation (or a save with --save). Whatever is still unsaved
afterwards is kept as drafts when Redis is configured.

Examples:
  resultsctl edit -f round3.yaml
  resultsctl edit -f round3.yaml --save
  resultsctl edit --all-draw --round 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" && !allDraw {
				return errors.New("nothing to do: pass -f or --all-draw")
			}
			var edits []editLine
			if file != "" {
				var err error
				if edits, err = loadEdits(file); err != nil {
					return err
				}
			}
			return a.runEdit(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), edits, allDraw, save, wait)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "yaml file with edits")
	cmd.Flags().BoolVar(&save, "save", false, "save the batch instead of only validating it")
	cmd.Flags().BoolVar(&allDraw, "all-draw", false, "set every loaded game to 1/2-1/2 before applying edits")
	cmd.Flags().DurationVar(&wait, "wait", 30*time.Second, "how long to wait for per-game validations")
	return cmd
}

func (a *app) runEdit(ctx context.Context, out, errOut io.Writer, edits []editLine, allDraw, save bool, wait time.Duration) error {
	rep, closeRep := a.reporter(errOut)
	defer closeRep()

	s, err := a.openSession(ctx, rep)
	if err != nil {
		return err
	}
	if s.restored > 0 {
		fmt.Fprintf(out, "restored %d draft(s)\n", s.restored)
	}

	var pending []*resultentry.Pending
	if allDraw {
		ps, err := s.rec.SetAllToDraw(ctx)
		if err != nil {
			return err
		}
		pending = append(pending, ps...)
	}
	for _, e := range edits {
		id := strings.TrimSpace(e.Game)
		if e.Reason != nil {
			if err := s.rec.SetField(id, resultentry.FieldResultReason, *e.Reason); err != nil {
				return fmt.Errorf("edit %s: %w", id, err)
			}
		}
		if e.Notes != nil {
			if err := s.rec.SetField(id, resultentry.FieldArbiterNotes, *e.Notes); err != nil {
				return fmt.Errorf("edit %s: %w", id, err)
			}
		}
		if strings.TrimSpace(e.Result) == "" {
			continue
		}
		var opts []resultentry.SetOption
		if t := strings.TrimSpace(e.Type); t != "" {
			opts = append(opts, resultentry.WithResultType(t))
		}
		p, err := s.rec.SetResult(ctx, id, e.Result, opts...)
		if err != nil {
			return fmt.Errorf("edit %s: %w", id, err)
		}
		pending = append(pending, p)
	}

	// per-game failures are already on the entries and the reporter; the batch
	// call below revalidates everything
	wctx, cancel := context.WithTimeout(ctx, wait)
	_ = resultentry.WaitAll(wctx, pending)
	cancel()
	if err := ctx.Err(); err != nil {
		return err
	}

	var outcome resultentry.BatchOutcome
	if save {
		outcome, err = s.rec.SaveAll(ctx)
	} else {
		outcome, err = s.rec.BatchValidate(ctx)
	}
	keepErr := a.keepDrafts(ctx, s)
	if err != nil {
		return err
	}
	printOutcome(out, s.rec, outcome, save)
	if keepErr != nil {
		return keepErr
	}
	if !outcome.OverallValid {
		return errRejected
	}
	return nil
}

// keepDrafts stores the remaining unsaved edits, or clears the stored drafts
// once everything is saved.
func (a *app) keepDrafts(ctx context.Context, s *session) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Sync(ctx, s.rec, a.cfg.ArbiterID); err != nil {
		a.logger.Warn("result_drafts_sync", zap.Error(err))
		return fmt.Errorf("keep drafts: %w", err)
	}
	return nil
}

func printOutcome(w io.Writer, rec *resultentry.Reconciler, outcome resultentry.BatchOutcome, saved bool) {
	for _, r := range outcome.Results {
		status := "ok"
		if !r.Validation.Valid {
			status = "REJECTED"
		}
		fmt.Fprintf(w, "%-12s %s\n", r.GameID, status)
		for _, msg := range r.Validation.Errors {
			fmt.Fprintf(w, "    error: %s\n", msg)
		}
		for _, msg := range r.Validation.Warnings {
			fmt.Fprintf(w, "    warning: %s\n", msg)
		}
	}
	switch {
	case len(outcome.Results) == 0:
		fmt.Fprintln(w, "no changes")
	case saved && outcome.OverallValid:
		fmt.Fprintf(w, "saved %d result(s)\n", len(outcome.Results))
	case outcome.OverallValid:
		fmt.Fprintf(w, "%d change(s) valid, not saved\n", rec.ModifiedCount())
	default:
		fmt.Fprintf(w, "%d change(s) unsaved\n", rec.ModifiedCount())
	}
}
