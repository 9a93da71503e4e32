package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/park285/arbiter-desk/internal/msgcat"
	"github.com/park285/arbiter-desk/internal/resultentry"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func wsServer(t *testing.T, frames chan<- Frame, headers chan<- string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if headers != nil {
			headers <- req.Header.Get("X-Desk")
		}
		c, err := websocket.Accept(w, req, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "")
		for {
			var f Frame
			if err := wsjson.Read(req.Context(), c, &f); err != nil {
				return
			}
			frames <- f
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestReporterSendsFrames(t *testing.T) {
	frames := make(chan Frame, 4)
	headers := make(chan string, 4)
	srv := wsServer(t, frames, headers)

	var mu sync.Mutex
	var states []State
	r := NewReporter(wsURL(srv),
		WithCatalog(msgcat.MustDefault()),
		WithHeaderProvider(func() map[string]string { return map[string]string{"X-Desk": "board-1"} }),
	)
	r.OnStateChange(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})
	defer r.Close(context.Background())

	// reuse the reconciler's error types so kind detection is exercised
	svc := failing{}
	rec, err := resultentry.New("T1", "arb", svc, svc, resultentry.WithReporter(r))
	if err != nil {
		t.Fatalf("resultentry.New: %v", err)
	}
	rec.LoadGames([]resultentry.Game{{ID: "G1", Result: "*"}})
	if err := rec.SetField("G1", resultentry.FieldArbiterNotes, "x"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if _, err := rec.SaveAll(context.Background()); err == nil {
		t.Fatalf("expected save failure")
	}

	select {
	case f := <-frames:
		if f.Type != "result_failure" || f.Op != "save_all" || f.Kind != "persistence" {
			t.Fatalf("unexpected frame %+v", f)
		}
		if len(f.GameIDs) != 1 || f.GameIDs[0] != "G1" || !strings.HasPrefix(f.Message, "Saving results failed") {
			t.Fatalf("unexpected frame %+v", f)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("no frame received")
	}
	if h := <-headers; h != "board-1" {
		t.Fatalf("handshake header = %q", h)
	}
	if r.State() != StateConnected {
		t.Fatalf("state = %v", r.State())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(states) < 2 || states[0] != StateConnecting || states[1] != StateConnected {
		t.Fatalf("state transitions = %v", states)
	}
}

func TestReporterDropsWhenUnreachable(t *testing.T) {
	r := NewReporter("ws://127.0.0.1:1/none", WithMaxAttempts(1))
	defer r.Close(context.Background())

	r.Report(resultentry.Failure{Op: "validate_entry", GameIDs: []string{"G1"}, Err: resultentry.ErrValidationTransport, At: time.Now()})
	deadline := time.Now().Add(3 * time.Second)
	for r.Dropped() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if r.Dropped() != 1 {
		t.Fatalf("expected one dropped frame, got %d", r.Dropped())
	}
	if r.State() != StateFailed {
		t.Fatalf("state = %v", r.State())
	}
}

type failing struct{}

func (failing) Validate(context.Context, resultentry.ValidateRequest) (resultentry.ValidationResult, error) {
	return resultentry.ValidationResult{}, errDown
}

func (failing) BatchValidate(context.Context, resultentry.BatchRequest) (resultentry.BatchOutcome, error) {
	return resultentry.BatchOutcome{}, errDown
}

func (failing) BatchUpdate(context.Context, resultentry.BatchRequest) (resultentry.BatchOutcome, error) {
	return resultentry.BatchOutcome{}, errDown
}

func (failing) AuditTrail(context.Context, string) ([]resultentry.AuditRecord, error) {
	return nil, errDown
}

var errDown = &downError{}

type downError struct{}

func (*downError) Error() string { return "backend down" }
