package commands

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/park285/arbiter-desk/internal/bridge"
	"github.com/park285/arbiter-desk/internal/domain"
	"github.com/park285/arbiter-desk/internal/msgcat"
	"github.com/park285/arbiter-desk/internal/resultentry"
	"github.com/park285/arbiter-desk/internal/service/results"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

type harness struct {
	client *bridge.Client
	repo   results.Repository
	ln     *fasthttputil.InmemoryListener
	srv    *Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo := results.NewMemoryRepository()
	err := repo.UpsertGames(context.Background(), []*domain.TournamentGame{
		{ID: "G1", TournamentID: "T1", Round: 1, Board: 1, WhiteName: "Ann", BlackName: "Bob", Result: "1-0"},
		{ID: "G2", TournamentID: "T1", Round: 1, Board: 2, WhiteName: "Cid", BlackName: "Dee"},
	})
	if err != nil {
		t.Fatalf("UpsertGames: %v", err)
	}
	svc, err := results.NewService(repo, msgcat.MustDefault(), nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	srv, err := NewServer(svc, WithRegistry(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		_ = ln.Close()
	})
	client := bridge.NewClient("http://desk.local",
		bridge.WithDial(func(string) (net.Conn, error) { return ln.Dial() }),
		bridge.WithRetry(1),
		bridge.WithTimeout(2*time.Second),
	)
	return &harness{client: client, repo: repo, ln: ln, srv: srv}
}

func TestReconcilerOverCommandBridge(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	games, err := h.client.ListGames(ctx, "T1", 0)
	if err != nil {
		t.Fatalf("ListGames: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("expected 2 games, got %d", len(games))
	}

	r, err := resultentry.New("T1", "arb", h.client, h.client)
	if err != nil {
		t.Fatalf("resultentry.New: %v", err)
	}
	r.LoadGames(games)

	p, err := r.SetResult(ctx, "G2", "1/2-1/2")
	if err != nil {
		t.Fatalf("SetResult: %v", err)
	}
	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	v, err := p.Wait(wctx)
	if err != nil || !v.Valid {
		t.Fatalf("auto validation = %+v, %v", v, err)
	}

	// an invalid edit blocks the whole save
	if _, err := r.SetResult(ctx, "G1", "1-0", resultentry.WithResultType("white_forfeit")); err != nil {
		t.Fatalf("SetResult: %v", err)
	}
	out, err := r.SaveAll(ctx)
	if err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	if out.OverallValid || r.ModifiedCount() != 2 {
		t.Fatalf("expected rejected save, got %+v (modified %d)", out, r.ModifiedCount())
	}
	e, _ := r.Entry("G1")
	if e.Validation == nil || len(e.Validation.Errors) == 0 || !strings.HasPrefix(e.Validation.Errors[0], "Invalid result for board 1") {
		t.Fatalf("G1 validation = %+v", e.Validation)
	}

	if _, err := r.SetResult(ctx, "G1", "1-0", resultentry.WithResultType("")); err != nil {
		t.Fatalf("SetResult: %v", err)
	}
	out, err = r.SaveAll(ctx)
	if err != nil || !out.OverallValid {
		t.Fatalf("SaveAll = %+v, %v", out, err)
	}
	if r.HasUnsavedChanges() {
		t.Fatalf("expected clean working set")
	}

	trail, err := r.AuditTrail(ctx, "G2")
	if err != nil {
		t.Fatalf("AuditTrail: %v", err)
	}
	if len(trail) != 1 || trail[0].OldResult != "*" || trail[0].NewResult != "1/2-1/2" || trail[0].ChangedBy != "arb" {
		t.Fatalf("unexpected trail %+v", trail)
	}
}

func TestBadRequestsMapToDomainErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.client.ListGames(ctx, "", 0)
	var se *bridge.StatusError
	if !errors.As(err, &se) || se.Status != fasthttp.StatusBadRequest || se.Domain == nil || se.Domain.Code != "bad_request" {
		t.Fatalf("expected bad_request, got %v", err)
	}

	c := &fasthttp.Client{Dial: func(string) (net.Conn, error) { return h.ln.Dial() }}
	status, body, err := c.Get(nil, "http://desk.local/commands/list_games")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if status != fasthttp.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d (%s)", status, body)
	}
	status, _, err = c.Post(nil, "http://desk.local/commands/nope", nil)
	if err != nil || status != fasthttp.StatusNotFound {
		t.Fatalf("unknown command = %d, %v", status, err)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.client.Health(ctx); err != nil {
		t.Fatalf("Health: %v", err)
	}
	if _, err := h.client.ListGames(ctx, "T1", 1); err != nil {
		t.Fatalf("ListGames: %v", err)
	}

	c := &fasthttp.Client{Dial: func(string) (net.Conn, error) { return h.ln.Dial() }}
	status, body, err := c.Get(nil, "http://desk.local/metrics")
	if err != nil || status != fasthttp.StatusOK {
		t.Fatalf("metrics = %d, %v", status, err)
	}
	if !strings.Contains(string(body), `arbiter_desk_commands_requests_total{code="ok",command="list_games"} 1`) {
		t.Fatalf("counter missing from metrics output:\n%s", body)
	}
}
