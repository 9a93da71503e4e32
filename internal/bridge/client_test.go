package bridge

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/park285/arbiter-desk/internal/resultentry"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func serve(t *testing.T, h fasthttp.RequestHandler) func(string) (net.Conn, error) {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: h}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })
	return func(string) (net.Conn, error) { return ln.Dial() }
}

func TestValidateRetriesUnavailable(t *testing.T) {
	var calls int32
	dial := serve(t, func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) != "/commands/validate_game_result" {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			return
		}
		if atomic.AddInt32(&calls, 1) < 3 {
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			ctx.SetBodyString(`{"code":"unavailable","message":"storage unavailable","retryable":true}`)
			return
		}
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"is_valid":false,"errors":["Invalid result for board 4"],"warnings":[]}`)
	})
	c := NewClient("http://desk", WithDial(dial), WithRetry(3))

	v, err := c.Validate(context.Background(), resultentry.ValidateRequest{GameID: "g", Result: "1-0", TournamentID: "t"})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if v.Valid || len(v.Errors) != 1 || v.Errors[0] != "Invalid result for board 4" {
		t.Fatalf("unexpected validation %+v", v)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestBatchUpdateIsNotRetried(t *testing.T) {
	for _, status := range []int{
		fasthttp.StatusInternalServerError,
		fasthttp.StatusBadGateway,
		fasthttp.StatusServiceUnavailable,
		fasthttp.StatusGatewayTimeout,
	} {
		var calls int32
		dial := serve(t, func(ctx *fasthttp.RequestCtx) {
			atomic.AddInt32(&calls, 1)
			ctx.SetStatusCode(status)
			ctx.SetBodyString(`{"code":"unavailable","message":"storage unavailable","retryable":true}`)
		})
		c := NewClient("http://desk", WithDial(dial), WithRetry(5))

		_, err := c.BatchUpdate(context.Background(), resultentry.BatchRequest{TournamentID: "t", Updates: []resultentry.Update{{GameID: "g", Result: "1-0"}}})
		var se *StatusError
		if !errors.As(err, &se) || se.Status != status || se.Domain == nil || !se.Domain.Retryable {
			t.Fatalf("status %d: expected decoded status error, got %v", status, err)
		}
		if got := atomic.LoadInt32(&calls); got != 1 {
			t.Fatalf("status %d: save retried, %d attempts", status, got)
		}
	}
}

func TestBadRequestNotRetried(t *testing.T) {
	var calls int32
	dial := serve(t, func(ctx *fasthttp.RequestCtx) {
		atomic.AddInt32(&calls, 1)
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		ctx.SetBodyString("plain text")
	})
	c := NewClient("http://desk", WithDial(dial), WithRetry(3))

	_, err := c.AuditTrail(context.Background(), "g")
	var se *StatusError
	if !errors.As(err, &se) || se.Domain != nil || se.Body != "plain text" {
		t.Fatalf("unexpected error %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("4xx should not be retried")
	}
}

func TestBatchValidateMapsResults(t *testing.T) {
	dial := serve(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"overall_valid":true,"results":[{"index":0,"game_id":"a","validation":{"is_valid":true,"errors":[],"warnings":["white_forfeit requires arbiter approval"]}}]}`)
	})
	c := NewClient("http://desk", WithDial(dial), WithHeaderProvider(func() map[string]string {
		return map[string]string{"X-Actor": "arb", " ": "skipped"}
	}))
	out, err := c.BatchValidate(context.Background(), resultentry.BatchRequest{TournamentID: "t", Updates: []resultentry.Update{{GameID: "a", Result: "0-1F"}}})
	if err != nil {
		t.Fatalf("BatchValidate: %v", err)
	}
	if !out.OverallValid || len(out.Results) != 1 || out.Results[0].GameID != "a" || len(out.Results[0].Validation.Warnings) != 1 {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestCancelledContextStopsRequest(t *testing.T) {
	dial := serve(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString(`{}`)
	})
	c := NewClient("http://desk", WithDial(dial), WithRateLimit(0.001, 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.ListGames(ctx, "t", 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBackoffDuration(t *testing.T) {
	if backoffDuration(1) != 100*time.Millisecond || backoffDuration(3) != 400*time.Millisecond {
		t.Fatalf("unexpected backoff")
	}
	if backoffDuration(10) != backoffDuration(6) {
		t.Fatalf("backoff not capped")
	}
}
