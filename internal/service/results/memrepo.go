package results

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/park285/arbiter-desk/internal/domain"
)

// memrepo is the in-memory repository used when no DB is configured and in tests.
type memrepo struct {
	mu sync.RWMutex

	games map[string]*domain.TournamentGame
	audit map[string][]*domain.ResultAudit // game id -> records, oldest first
}

func NewMemoryRepository() Repository {
	return &memrepo{
		games: make(map[string]*domain.TournamentGame),
		audit: make(map[string][]*domain.ResultAudit),
	}
}

func (m *memrepo) ListGames(ctx context.Context, tournamentID string, round int) ([]*domain.TournamentGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]*domain.TournamentGame, 0)
	for _, g := range m.games {
		if g.TournamentID != tournamentID || (round != 0 && g.Round != round) {
			continue
		}
		copy := *g
		items = append(items, &copy)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Round != items[j].Round {
			return items[i].Round < items[j].Round
		}
		return items[i].Board < items[j].Board
	})
	return items, nil
}

func (m *memrepo) GetGames(ctx context.Context, ids []string) (map[string]*domain.TournamentGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*domain.TournamentGame, len(ids))
	for _, id := range ids {
		if g, ok := m.games[id]; ok {
			copy := *g
			out[id] = &copy
		}
	}
	return out, nil
}

func (m *memrepo) ApplyResults(ctx context.Context, changes []Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range changes {
		if ch.Game == nil {
			continue
		}
		if _, ok := m.games[ch.Game.ID]; !ok {
			return fmt.Errorf("update game %s: %w", ch.Game.ID, ErrGameNotFound)
		}
	}
	for _, ch := range changes {
		if ch.Game == nil {
			continue
		}
		copy := *ch.Game
		m.games[copy.ID] = &copy
		if ch.Audit != nil {
			a := *ch.Audit
			m.audit[a.GameID] = append(m.audit[a.GameID], &a)
		}
	}
	return nil
}

func (m *memrepo) AuditTrail(ctx context.Context, gameID string) ([]*domain.ResultAudit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.audit[gameID]
	items := make([]*domain.ResultAudit, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		copy := *list[i]
		items = append(items, &copy)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].ChangedAt.After(items[j].ChangedAt) })
	return items, nil
}

func (m *memrepo) UpsertGames(ctx context.Context, games []*domain.TournamentGame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range games {
		if g == nil || strings.TrimSpace(g.ID) == "" {
			continue
		}
		copy := *g
		if prev, ok := m.games[g.ID]; ok && strings.TrimSpace(g.Result) == "" {
			copy.Result = prev.Result
			copy.ResultType = prev.ResultType
			copy.ResultReason = prev.ResultReason
			copy.ArbiterNotes = prev.ArbiterNotes
		}
		if strings.TrimSpace(copy.Result) == "" {
			copy.Result = "*"
		}
		m.games[g.ID] = &copy
	}
	return nil
}
