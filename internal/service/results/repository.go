package results

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/park285/arbiter-desk/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

var ErrGameNotFound = errors.New("tournament game not found")

// Change is one accepted update: the new stored values of a game plus its
// audit line. Audit is nil when the result itself did not change.
type Change struct {
	Game  *domain.TournamentGame
	Audit *domain.ResultAudit
}

type Repository interface {
	ListGames(ctx context.Context, tournamentID string, round int) ([]*domain.TournamentGame, error)
	GetGames(ctx context.Context, ids []string) (map[string]*domain.TournamentGame, error)
	// ApplyResults stores all changes atomically.
	ApplyResults(ctx context.Context, changes []Change) error
	AuditTrail(ctx context.Context, gameID string) ([]*domain.ResultAudit, error)
	UpsertGames(ctx context.Context, games []*domain.TournamentGame) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// EnsureSchema creates the tables if they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure results schema: %w", err)
	}
	return nil
}

const selectGames = `
		SELECT
			id,
			tournament_id,
			round,
			board,
			white_id,
			white_name,
			black_id,
			black_name,
			result,
			result_type,
			result_reason,
			arbiter_notes,
			updated_at
		FROM tournament_games`

func scanGames(rows *sql.Rows) ([]*domain.TournamentGame, error) {
	defer rows.Close()
	games := make([]*domain.TournamentGame, 0)
	for rows.Next() {
		var (
			g                         domain.TournamentGame
			resultType, reason, notes sql.NullString
		)
		if err := rows.Scan(
			&g.ID,
			&g.TournamentID,
			&g.Round,
			&g.Board,
			&g.WhiteID,
			&g.WhiteName,
			&g.BlackID,
			&g.BlackName,
			&g.Result,
			&resultType,
			&reason,
			&notes,
			&g.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan tournament game: %w", err)
		}
		g.ResultType = resultType.String
		g.ResultReason = reason.String
		g.ArbiterNotes = notes.String
		games = append(games, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tournament games: %w", err)
	}
	return games, nil
}

func (r *repository) ListGames(ctx context.Context, tournamentID string, round int) ([]*domain.TournamentGame, error) {
	query := selectGames + `
		WHERE tournament_id = $1 AND ($2 = 0 OR round = $2)
		ORDER BY round, board`
	rows, err := r.db.QueryContext(ctx, query, tournamentID, round)
	if err != nil {
		return nil, fmt.Errorf("select tournament games: %w", err)
	}
	return scanGames(rows)
}

func (r *repository) GetGames(ctx context.Context, ids []string) (map[string]*domain.TournamentGame, error) {
	out := make(map[string]*domain.TournamentGame, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := selectGames + `
		WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("select tournament games by id: %w", err)
	}
	games, err := scanGames(rows)
	if err != nil {
		return nil, err
	}
	for _, g := range games {
		out[g.ID] = g
	}
	return out, nil
}

func (r *repository) ApplyResults(ctx context.Context, changes []Change) (err error) {
	if len(changes) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin results tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const update = `
		UPDATE tournament_games
		SET result = $2,
			result_type = $3,
			result_reason = $4,
			arbiter_notes = $5,
			updated_at = $6
		WHERE id = $1`
	const insertAudit = `
		INSERT INTO result_audit (
			id,
			game_id,
			changed_at,
			old_result,
			new_result,
			changed_by,
			reason,
			approved
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for _, ch := range changes {
		g := ch.Game
		if g == nil {
			continue
		}
		res, execErr := tx.ExecContext(ctx, update,
			g.ID,
			g.Result,
			nullString(g.ResultType),
			nullString(g.ResultReason),
			nullString(g.ArbiterNotes),
			g.UpdatedAt,
		)
		if execErr != nil {
			return fmt.Errorf("update game %s: %w", g.ID, execErr)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("update game %s: %w", g.ID, ErrGameNotFound)
		}
		if a := ch.Audit; a != nil {
			if _, execErr := tx.ExecContext(ctx, insertAudit,
				a.ID,
				a.GameID,
				a.ChangedAt,
				nullString(a.OldResult),
				a.NewResult,
				nullString(a.ChangedBy),
				nullString(a.Reason),
				a.Approved,
			); execErr != nil {
				return fmt.Errorf("insert audit for %s: %w", g.ID, execErr)
			}
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit results tx: %w", err)
	}
	return nil
}

func (r *repository) AuditTrail(ctx context.Context, gameID string) ([]*domain.ResultAudit, error) {
	const query = `
		SELECT
			id,
			game_id,
			changed_at,
			old_result,
			new_result,
			changed_by,
			reason,
			approved
		FROM result_audit
		WHERE game_id = $1
		ORDER BY changed_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("select result audit: %w", err)
	}
	defer rows.Close()

	recs := make([]*domain.ResultAudit, 0)
	for rows.Next() {
		var (
			a                      domain.ResultAudit
			old, changedBy, reason sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.GameID, &a.ChangedAt, &old, &a.NewResult, &changedBy, &reason, &a.Approved); err != nil {
			return nil, fmt.Errorf("scan result audit: %w", err)
		}
		a.OldResult = old.String
		a.ChangedBy = changedBy.String
		a.Reason = reason.String
		recs = append(recs, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate result audit: %w", err)
	}
	return recs, nil
}

// UpsertGames inserts or refreshes pairings. Stored results are only replaced
// when the incoming game carries one.
func (r *repository) UpsertGames(ctx context.Context, games []*domain.TournamentGame) error {
	const query = `
		INSERT INTO tournament_games (
			id,
			tournament_id,
			round,
			board,
			white_id,
			white_name,
			black_id,
			black_name,
			result,
			result_type,
			updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE(NULLIF($9, ''), '*'), $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			tournament_id = EXCLUDED.tournament_id,
			round = EXCLUDED.round,
			board = EXCLUDED.board,
			white_id = EXCLUDED.white_id,
			white_name = EXCLUDED.white_name,
			black_id = EXCLUDED.black_id,
			black_name = EXCLUDED.black_name,
			result = CASE WHEN $9 = '' THEN tournament_games.result ELSE EXCLUDED.result END,
			result_type = CASE WHEN $9 = '' THEN tournament_games.result_type ELSE EXCLUDED.result_type END,
			updated_at = EXCLUDED.updated_at`
	for _, g := range games {
		if g == nil || strings.TrimSpace(g.ID) == "" {
			continue
		}
		if _, err := r.db.ExecContext(ctx, query,
			g.ID,
			g.TournamentID,
			g.Round,
			g.Board,
			g.WhiteID,
			g.WhiteName,
			g.BlackID,
			g.BlackName,
			g.Result,
			nullString(g.ResultType),
			g.UpdatedAt,
		); err != nil {
			return fmt.Errorf("upsert game %s: %w", g.ID, err)
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
