package deskbuilder

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/park285/arbiter-desk/internal/config"
	"github.com/park285/arbiter-desk/internal/domain"
	"github.com/park285/arbiter-desk/internal/msgcat"
	"github.com/park285/arbiter-desk/internal/service/results"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Deps struct {
	Service *results.Service
	Repo    results.Repository
	Catalog *msgcat.Catalog
	// Persistent is false when the backend runs on the in-memory repository.
	Persistent bool

	db *sql.DB
}

func (d *Deps) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	catalog, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	deps := &Deps{Catalog: catalog}
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := openPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		deps.db = db
		deps.Repo = results.NewRepository(db)
		deps.Persistent = true
	} else {
		logger.Warn("results_repository_memory", zap.String("reason", "DATABASE_URL not set"))
		deps.Repo = results.NewMemoryRepository()
	}

	if cfg.SeedFile != "" {
		games, err := LoadSeed(cfg.SeedFile)
		if err != nil {
			_ = deps.Close()
			return nil, err
		}
		if err := deps.Repo.UpsertGames(ctx, games); err != nil {
			_ = deps.Close()
			return nil, fmt.Errorf("seed games: %w", err)
		}
		logger.Info("results_seed_loaded", zap.String("file", cfg.SeedFile), zap.Int("games", len(games)))
	}

	deps.Service, err = results.NewService(deps.Repo, catalog, logger)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}
	return deps, nil
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := results.EnsureSchema(pctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

type seedFile struct {
	Tournament string     `yaml:"tournament"`
	Games      []seedGame `yaml:"games"`
}

type seedGame struct {
	ID     string     `yaml:"id"`
	Round  int        `yaml:"round"`
	Board  int        `yaml:"board"`
	White  seedPlayer `yaml:"white"`
	Black  seedPlayer `yaml:"black"`
	Result string     `yaml:"result"`
	Type   string     `yaml:"result_type"`
}

type seedPlayer struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// LoadSeed reads pairings from a yaml file:
//
//	tournament: open-2026
//	games:
//	  - {id: g1, round: 1, board: 1, white: {id: p1, name: Kim}, black: {id: p2, name: Lee}}
//
// Games without a result start as "*".
func LoadSeed(path string) ([]*domain.TournamentGame, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	if strings.TrimSpace(f.Tournament) == "" {
		return nil, fmt.Errorf("seed %s: tournament is required", path)
	}
	out := make([]*domain.TournamentGame, 0, len(f.Games))
	seen := make(map[string]struct{}, len(f.Games))
	for i, g := range f.Games {
		id := strings.TrimSpace(g.ID)
		if id == "" {
			return nil, fmt.Errorf("seed %s: game %d has no id", path, i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("seed %s: duplicate game %q", path, id)
		}
		seen[id] = struct{}{}
		result := strings.TrimSpace(g.Result)
		if result == "" {
			result = "*"
		}
		out = append(out, &domain.TournamentGame{
			ID:           id,
			TournamentID: f.Tournament,
			Round:        g.Round,
			Board:        g.Board,
			WhiteID:      g.White.ID,
			WhiteName:    g.White.Name,
			BlackID:      g.Black.ID,
			BlackName:    g.Black.Name,
			Result:       result,
			ResultType:   strings.TrimSpace(g.Type),
		})
	}
	return out, nil
}
