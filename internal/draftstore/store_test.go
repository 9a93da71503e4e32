package draftstore

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/park285/arbiter-desk/internal/resultentry"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, time.Hour), mr
}

func TestSaveLoadClear(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	snap, err := s.Load(ctx, "T1", "arb")
	if err != nil || snap != nil {
		t.Fatalf("empty Load = %+v, %v", snap, err)
	}

	drafts := []resultentry.Draft{{GameID: "G1", Result: "1-0", ArbiterNotes: "checked"}}
	if err := s.Save(ctx, "T1", "arb", drafts); err != nil {
		t.Fatalf("Save: %v", err)
	}
	snap, err = s.Load(ctx, "T1", "arb")
	if err != nil || snap == nil || len(snap.Drafts) != 1 || snap.Drafts[0].ArbiterNotes != "checked" {
		t.Fatalf("Load = %+v, %v", snap, err)
	}
	actors, err := s.Actors(ctx, "T1")
	if err != nil || len(actors) != 1 || actors[0] != "arb" {
		t.Fatalf("Actors = %v, %v", actors, err)
	}

	mr.FastForward(2 * time.Hour)
	if snap, _ := s.Load(ctx, "T1", "arb"); snap != nil {
		t.Fatalf("draft should expire")
	}

	if err := s.Save(ctx, "T1", "arb", drafts); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, "T1", "arb", nil); err != nil {
		t.Fatalf("Save empty: %v", err)
	}
	if snap, _ := s.Load(ctx, "T1", "arb"); snap != nil {
		t.Fatalf("empty save should clear")
	}
	if actors, _ := s.Actors(ctx, "T1"); len(actors) != 0 {
		t.Fatalf("actor index not cleared: %v", actors)
	}
}

type okService struct{}

func (okService) Validate(context.Context, resultentry.ValidateRequest) (resultentry.ValidationResult, error) {
	return resultentry.ValidationResult{Valid: true}, nil
}

func (okService) BatchValidate(context.Context, resultentry.BatchRequest) (resultentry.BatchOutcome, error) {
	return resultentry.BatchOutcome{OverallValid: true}, nil
}

func (okService) BatchUpdate(context.Context, resultentry.BatchRequest) (resultentry.BatchOutcome, error) {
	return resultentry.BatchOutcome{OverallValid: true}, nil
}

func (okService) AuditTrail(context.Context, string) ([]resultentry.AuditRecord, error) {
	return nil, nil
}

func TestSyncRestore(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	games := []resultentry.Game{{ID: "G1", Result: "*"}, {ID: "G2", Result: "*"}}

	r, err := resultentry.New("T1", "arb", okService{}, okService{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.LoadGames(games)
	if err := r.SetField("G2", resultentry.FieldArbiterNotes, "late"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if err := s.Sync(ctx, r, "arb"); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	fresh, _ := resultentry.New("T1", "arb", okService{}, okService{})
	fresh.LoadGames(games)
	n, err := s.Restore(ctx, fresh, "arb")
	if err != nil || n != 1 {
		t.Fatalf("Restore = %d, %v", n, err)
	}
	e, _ := fresh.Entry("G2")
	if !e.Modified || e.ArbiterNotes != "late" {
		t.Fatalf("restored entry = %+v", e)
	}
}

func TestSyncKeepsDraftsOfUnloadedGames(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	other := resultentry.Draft{GameID: "R2-G1", Result: "0-1"}
	if err := s.Save(ctx, "T1", "arb", []resultentry.Draft{other, {GameID: "G1", Result: "1-0"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	r, _ := resultentry.New("T1", "arb", okService{}, okService{})
	r.LoadGames([]resultentry.Game{{ID: "G1", Result: "*"}})
	if n, err := s.Restore(ctx, r, "arb"); err != nil || n != 1 {
		t.Fatalf("Restore = %d, %v", n, err)
	}
	// G1 gets saved elsewhere; only the unloaded game's draft must survive
	r.ResetModified()
	if err := s.Sync(ctx, r, "arb"); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	snap, err := s.Load(ctx, "T1", "arb")
	if err != nil || snap == nil {
		t.Fatalf("Load = %+v, %v", snap, err)
	}
	if len(snap.Drafts) != 1 || snap.Drafts[0] != other {
		t.Fatalf("stored drafts = %+v", snap.Drafts)
	}
}
