// Package results is the backend behind the commands endpoint: it validates
// proposed results against the stored pairings, persists accepted batches
// with an audit line per change and serves the audit trail.
package results

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/park285/arbiter-desk/internal/domain"
	"github.com/park285/arbiter-desk/internal/msgcat"
	"github.com/park285/arbiter-desk/internal/resultcode"
	"github.com/park285/arbiter-desk/pkg/resultdto"
	"go.uber.org/zap"
)

var (
	ErrInvalidRequest = errors.New("invalid results request")
	ErrStorage        = errors.New("results storage unavailable")
)

const maxBatchSize = 500

type Service struct {
	repo    Repository
	catalog *msgcat.Catalog
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
}

func NewService(repo Repository, catalog *msgcat.Catalog, logger *zap.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("results repository is required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("message catalog is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		catalog: catalog,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}, nil
}

func (s *Service) ListGames(ctx context.Context, tournamentID string, round int) ([]resultdto.Game, error) {
	tournamentID = strings.TrimSpace(tournamentID)
	if tournamentID == "" {
		return nil, fmt.Errorf("%w: tournament_id is required", ErrInvalidRequest)
	}
	games, err := s.repo.ListGames(ctx, tournamentID, round)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	out := make([]resultdto.Game, 0, len(games))
	for _, g := range games {
		out = append(out, toGameDTO(g))
	}
	return out, nil
}

// Validate checks a single proposed result. Unknown games are reported as an
// invalid verdict, not as an error.
func (s *Service) Validate(ctx context.Context, in resultdto.ValidateGameResultRequest) (resultdto.Validation, error) {
	id := strings.TrimSpace(in.GameID)
	if id == "" {
		return resultdto.Validation{}, fmt.Errorf("%w: game_id is required", ErrInvalidRequest)
	}
	games, err := s.repo.GetGames(ctx, []string{id})
	if err != nil {
		return resultdto.Validation{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return check(s.catalog, games[id], checkInput{
		GameID:       id,
		TournamentID: strings.TrimSpace(in.TournamentID),
		Result:       resultcode.Normalize(in.Result),
		ResultType:   strings.TrimSpace(in.ResultType),
	}), nil
}

// BatchUpdate validates every update and, unless ValidateOnly is set, stores
// the batch when all of them are valid. Results are returned in request order.
func (s *Service) BatchUpdate(ctx context.Context, in resultdto.BatchUpdateRequest) (resultdto.BatchUpdateResponse, error) {
	tournamentID := strings.TrimSpace(in.TournamentID)
	if tournamentID == "" {
		return resultdto.BatchUpdateResponse{}, fmt.Errorf("%w: tournament_id is required", ErrInvalidRequest)
	}
	if len(in.Updates) > maxBatchSize {
		return resultdto.BatchUpdateResponse{}, fmt.Errorf("%w: batch exceeds %d updates", ErrInvalidRequest, maxBatchSize)
	}
	resp := resultdto.BatchUpdateResponse{OverallValid: true, Results: make([]resultdto.BatchResult, len(in.Updates))}
	if len(in.Updates) == 0 {
		return resp, nil
	}

	ids := make([]string, 0, len(in.Updates))
	for _, u := range in.Updates {
		ids = append(ids, strings.TrimSpace(u.GameID))
	}
	games, err := s.repo.GetGames(ctx, ids)
	if err != nil {
		return resultdto.BatchUpdateResponse{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	seen := make(map[string]struct{}, len(ids))
	for i, u := range in.Updates {
		id := ids[i]
		var v resultdto.Validation
		if _, dup := seen[id]; dup {
			v = duplicate(s.catalog, id)
		} else {
			seen[id] = struct{}{}
			v = check(s.catalog, games[id], checkInput{
				GameID:       id,
				TournamentID: tournamentID,
				Result:       resultcode.Normalize(u.Result),
				ResultType:   strings.TrimSpace(u.ResultType),
			})
		}
		resp.Results[i] = resultdto.BatchResult{Index: i, GameID: id, Validation: v}
		if !v.IsValid {
			resp.OverallValid = false
		}
	}

	if in.ValidateOnly || !resp.OverallValid {
		s.logger.Info("results_batch_checked",
			zap.String("tournament_id", tournamentID),
			zap.Int("updates", len(in.Updates)),
			zap.Bool("validate_only", in.ValidateOnly),
			zap.Bool("overall_valid", resp.OverallValid),
		)
		return resp, nil
	}

	now := s.now().UTC()
	changes := make([]Change, 0, len(in.Updates))
	audits := 0
	for i, u := range in.Updates {
		prev := games[ids[i]]
		next := *prev
		next.Result = resultcode.Normalize(u.Result)
		next.ResultType = strings.TrimSpace(u.ResultType)
		next.ResultReason = u.ResultReason
		next.ArbiterNotes = u.ArbiterNotes
		next.UpdatedAt = now
		ch := Change{Game: &next}
		if prev.Result != next.Result || prev.ResultType != next.ResultType {
			ch.Audit = &domain.ResultAudit{
				ID:        s.newID(),
				GameID:    next.ID,
				ChangedAt: now,
				OldResult: prev.Result,
				NewResult: next.Result,
				ChangedBy: strings.TrimSpace(u.ChangedBy),
				Reason:    u.ResultReason,
				Approved:  !resultcode.RequiresApproval(next.ResultType),
			}
			audits++
		}
		changes = append(changes, ch)
	}
	if err := s.repo.ApplyResults(ctx, changes); err != nil {
		s.logger.Error("results_batch_store_failed", zap.String("tournament_id", tournamentID), zap.Error(err))
		return resultdto.BatchUpdateResponse{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	s.logger.Info("results_batch_saved",
		zap.String("tournament_id", tournamentID),
		zap.Int("updates", len(changes)),
		zap.Int("audit_records", audits),
	)
	return resp, nil
}

// AuditTrail returns the stored changes of a game, newest first.
func (s *Service) AuditTrail(ctx context.Context, gameID string) ([]resultdto.AuditRecord, error) {
	id := strings.TrimSpace(gameID)
	if id == "" {
		return nil, fmt.Errorf("%w: game_id is required", ErrInvalidRequest)
	}
	recs, err := s.repo.AuditTrail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	out := make([]resultdto.AuditRecord, 0, len(recs))
	for _, a := range recs {
		out = append(out, resultdto.AuditRecord{
			ID:        a.ID,
			GameID:    a.GameID,
			ChangedAt: a.ChangedAt,
			OldResult: a.OldResult,
			NewResult: a.NewResult,
			ChangedBy: a.ChangedBy,
			Reason:    a.Reason,
			Approved:  a.Approved,
		})
	}
	return out, nil
}

func toGameDTO(g *domain.TournamentGame) resultdto.Game {
	return resultdto.Game{
		ID:           g.ID,
		TournamentID: g.TournamentID,
		Round:        g.Round,
		Board:        g.Board,
		WhiteID:      g.WhiteID,
		WhiteName:    g.WhiteName,
		BlackID:      g.BlackID,
		BlackName:    g.BlackName,
		Result:       g.Result,
		ResultType:   g.ResultType,
		ResultReason: g.ResultReason,
		ArbiterNotes: g.ArbiterNotes,
		UpdatedAt:    g.UpdatedAt,
	}
}
