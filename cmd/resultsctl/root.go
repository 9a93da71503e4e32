package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/park285/arbiter-desk/internal/bridge"
	"github.com/park285/arbiter-desk/internal/config"
	"github.com/park285/arbiter-desk/internal/draftstore"
	"github.com/park285/arbiter-desk/internal/msgcat"
	"github.com/park285/arbiter-desk/internal/notify"
	"github.com/park285/arbiter-desk/internal/obslog"
	"github.com/park285/arbiter-desk/internal/resultentry"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries what every subcommand needs. Fields left nil are built from the
// environment on first use; tests inject them directly.
type app struct {
	cfg    *config.AppConfig
	logger *zap.Logger
	dial   func(addr string) (net.Conn, error)
	redis  *redis.Client

	tournament string
	actor      string
	round      int
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "resultsctl",
		Short:         "Enter, validate and save tournament results",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	root.PersistentFlags().StringVar(&a.tournament, "tournament", "", "tournament id (default $TOURNAMENT_ID)")
	root.PersistentFlags().StringVar(&a.actor, "actor", "", "arbiter id recorded on changes (default $ARBITER_ID)")
	root.PersistentFlags().IntVar(&a.round, "round", 0, "limit to one round; 0 means all rounds")

	root.AddCommand(
		newGamesCmd(a),
		newEditCmd(a),
		newAuditCmd(a),
		newExportCmd(a),
		newDraftsCmd(a),
	)
	return root
}

func (a *app) init() error {
	if a.cfg == nil {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	if a.logger == nil {
		// command output owns stdout; logs go to stderr and default to warn
		o := obslog.OptionsFromEnv("resultsctl")
		if strings.TrimSpace(os.Getenv("LOG_LEVEL")) == "" {
			o.Level = "warn"
		}
		o.Stdout = os.Stderr
		logger, err := obslog.New(o)
		if err != nil {
			return err
		}
		a.logger = logger.Named("resultsctl")
	}
	if t := strings.TrimSpace(a.tournament); t != "" {
		a.cfg.TournamentID = t
	}
	if s := strings.TrimSpace(a.actor); s != "" {
		a.cfg.ArbiterID = s
	}
	return nil
}

func (a *app) client() *bridge.Client {
	opts := []bridge.Option{
		bridge.WithLogger(a.logger),
		bridge.WithTimeout(a.cfg.BridgeTimeout()),
		bridge.WithRetry(a.cfg.BridgeRetry),
		bridge.WithRateLimit(a.cfg.BridgeRPS, a.cfg.BridgeBurst),
	}
	if a.cfg.ArbiterID != "" {
		actor := a.cfg.ArbiterID
		opts = append(opts, bridge.WithHeaderProvider(func() map[string]string {
			return map[string]string{"X-Arbiter-Id": actor}
		}))
	}
	if a.dial != nil {
		opts = append(opts, bridge.WithDial(a.dial))
	}
	return bridge.NewClient(a.cfg.BaseURL, opts...)
}

// draftStore returns nil when no Redis is configured.
func (a *app) draftStore(ctx context.Context) (*draftstore.Store, error) {
	if a.redis == nil {
		if a.cfg.RedisURL == "" {
			return nil, nil
		}
		rdb, err := draftstore.Open(ctx, a.cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.redis = rdb
	}
	return draftstore.NewStore(a.redis, a.cfg.DraftTTL()), nil
}

// reporter forwards failures to NOTIFY_WS_URL when set and always logs them.
func (a *app) reporter(errOut io.Writer) (resultentry.Reporter, func()) {
	local := resultentry.ReporterFunc(func(f resultentry.Failure) {
		fmt.Fprintf(errOut, "! %s failed for %s: %v\n", f.Op, strings.Join(f.GameIDs, ","), f.Err)
	})
	if a.cfg.NotifyWSURL == "" {
		return local, func() {}
	}
	ws := notify.NewReporter(a.cfg.NotifyWSURL,
		notify.WithLogger(a.logger),
		notify.WithCatalog(msgcat.MustDefault()),
	)
	both := resultentry.ReporterFunc(func(f resultentry.Failure) {
		local.Report(f)
		ws.Report(f)
	})
	return both, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := ws.Close(ctx); err != nil {
			a.logger.Warn("notify_close", zap.Error(err))
		}
	}
}

// session is a loaded reconciler for the configured tournament.
type session struct {
	client *bridge.Client
	games  []resultentry.Game
	rec    *resultentry.Reconciler
	store  *draftstore.Store
	// restored counts drafts re-applied from the store.
	restored int
}

func (a *app) openSession(ctx context.Context, rep resultentry.Reporter) (*session, error) {
	if err := a.cfg.RequireSession(); err != nil {
		return nil, err
	}
	client := a.client()
	games, err := client.ListGames(ctx, a.cfg.TournamentID, a.round)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	opts := []resultentry.Option{resultentry.WithLogger(a.logger)}
	if rep != nil {
		opts = append(opts, resultentry.WithReporter(rep))
	}
	rec, err := resultentry.New(a.cfg.TournamentID, a.cfg.ArbiterID, client, client, opts...)
	if err != nil {
		return nil, err
	}
	rec.LoadGames(games)

	s := &session{client: client, games: games, rec: rec}
	s.store, err = a.draftStore(ctx)
	if err != nil {
		return nil, err
	}
	if s.store != nil {
		s.restored, err = s.store.Restore(ctx, rec, a.cfg.ArbiterID)
		if err != nil {
			return nil, fmt.Errorf("restore drafts: %w", err)
		}
	}
	return s, nil
}
