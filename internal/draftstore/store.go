// Package draftstore keeps unsaved result edits in Redis so an arbiter can
// pick up where they left off after restarting the desk.
package draftstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/park285/arbiter-desk/internal/resultentry"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 72 * time.Hour

type payload struct {
	SavedAt time.Time           `json:"saved_at"`
	Drafts  []resultentry.Draft `json:"drafts"`
}

// Snapshot is a stored set of drafts.
type Snapshot struct {
	SavedAt time.Time
	Drafts  []resultentry.Draft
}

type Store struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl, now: time.Now}
}

// Open parses a redis:// URL and pings the server.
func Open(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(strings.TrimSpace(url))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func (s *Store) keyDraft(tournamentID, actor string) string {
	return "desk:draft:" + strings.TrimSpace(tournamentID) + ":" + strings.TrimSpace(actor)
}

func (s *Store) keyActors(tournamentID string) string {
	return "desk:drafts:" + strings.TrimSpace(tournamentID)
}

// Save stores drafts for (tournament, actor). An empty list clears them.
func (s *Store) Save(ctx context.Context, tournamentID, actor string, drafts []resultentry.Draft) error {
	if len(drafts) == 0 {
		return s.Clear(ctx, tournamentID, actor)
	}
	raw, err := json.Marshal(payload{SavedAt: s.now().UTC(), Drafts: drafts})
	if err != nil {
		return fmt.Errorf("marshal drafts: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.keyDraft(tournamentID, actor), raw, s.ttl)
	pipe.SAdd(ctx, s.keyActors(tournamentID), strings.TrimSpace(actor))
	pipe.Expire(ctx, s.keyActors(tournamentID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save drafts: %w", err)
	}
	return nil
}

// Load returns nil when nothing is stored.
func (s *Store) Load(ctx context.Context, tournamentID, actor string) (*Snapshot, error) {
	raw, err := s.rdb.Get(ctx, s.keyDraft(tournamentID, actor)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load drafts: %w", err)
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode drafts: %w", err)
	}
	return &Snapshot{SavedAt: p.SavedAt, Drafts: p.Drafts}, nil
}

func (s *Store) Clear(ctx context.Context, tournamentID, actor string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, s.keyDraft(tournamentID, actor))
	pipe.SRem(ctx, s.keyActors(tournamentID), strings.TrimSpace(actor))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("clear drafts: %w", err)
	}
	return nil
}

// Actors lists the actors that have drafts stored for a tournament.
func (s *Store) Actors(ctx context.Context, tournamentID string) ([]string, error) {
	return s.rdb.SMembers(ctx, s.keyActors(tournamentID)).Result()
}

// Sync stores the reconciler's current drafts for its tournament and actor.
// Stored drafts for games r has not loaded, such as other rounds, are kept.
func (s *Store) Sync(ctx context.Context, r *resultentry.Reconciler, actor string) error {
	drafts := r.Drafts()
	prev, err := s.Load(ctx, r.TournamentID(), actor)
	if err != nil {
		return err
	}
	if prev != nil {
		loaded := make(map[string]struct{})
		for _, id := range r.GameIDs() {
			loaded[id] = struct{}{}
		}
		for _, d := range prev.Drafts {
			if _, ok := loaded[d.GameID]; !ok {
				drafts = append(drafts, d)
			}
		}
	}
	return s.Save(ctx, r.TournamentID(), actor, drafts)
}

// Restore applies stored drafts onto r and returns the number applied.
func (s *Store) Restore(ctx context.Context, r *resultentry.Reconciler, actor string) (int, error) {
	snap, err := s.Load(ctx, r.TournamentID(), actor)
	if err != nil || snap == nil {
		return 0, err
	}
	return r.ApplyDrafts(snap.Drafts), nil
}
