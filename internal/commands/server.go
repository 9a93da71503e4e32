// Package commands serves the results backend over HTTP: one POST route per
// command under /commands/, plus /healthz and /metrics.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/park285/arbiter-desk/internal/service/results"
	"github.com/park285/arbiter-desk/pkg/resultdto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

const prefix = "/commands/"

// Backend is implemented by *results.Service.
type Backend interface {
	ListGames(ctx context.Context, tournamentID string, round int) ([]resultdto.Game, error)
	Validate(ctx context.Context, in resultdto.ValidateGameResultRequest) (resultdto.Validation, error)
	BatchUpdate(ctx context.Context, in resultdto.BatchUpdateRequest) (resultdto.BatchUpdateResponse, error)
	AuditTrail(ctx context.Context, gameID string) ([]resultdto.AuditRecord, error)
}

type Server struct {
	backend        Backend
	logger         *zap.Logger
	metrics        *Metrics
	gatherer       prometheus.Gatherer
	requestTimeout time.Duration
	srv            *fasthttp.Server
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRegistry registers the command metrics and exposes them on /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		if reg != nil {
			s.metrics = NewMetrics(reg)
			s.gatherer = reg
		}
	}
}

func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

func NewServer(backend Backend, opts ...Option) (*Server, error) {
	if backend == nil {
		return nil, fmt.Errorf("results backend is required")
	}
	s := &Server{backend: backend, logger: zap.NewNop(), requestTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	s.srv = &fasthttp.Server{
		Handler:      s.Handler(),
		Name:         "resultsd",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s, nil
}

func (s *Server) Handler() fasthttp.RequestHandler {
	var metricsHandler fasthttp.RequestHandler
	if s.gatherer != nil {
		metricsHandler = fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return func(ctx *fasthttp.RequestCtx) {
		path := string(ctx.Path())
		switch {
		case path == "/healthz":
			ctx.SetContentType("application/json")
			ctx.SetBodyString(`{"status":"ok"}`)
		case path == "/metrics" && metricsHandler != nil:
			metricsHandler(ctx)
		case strings.HasPrefix(path, prefix):
			s.handleCommand(ctx, strings.TrimPrefix(path, prefix))
		default:
			writeError(ctx, fasthttp.StatusNotFound, resultdto.DomainError{Code: resultdto.CodeUnknownRoute, Message: "no such route"})
		}
	}
}

// Serve blocks serving ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	return s.srv.Serve(ln)
}

// ListenAndServe serves addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.ListenAndServe(addr) }()
	s.logger.Info("commands_listen", zap.String("addr", addr))
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.ShutdownWithContext(shutdownCtx)
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.ShutdownWithContext(ctx)
}

func (s *Server) handleCommand(rc *fasthttp.RequestCtx, name string) {
	start := time.Now()
	if !rc.IsPost() {
		s.finish(rc, name, start, fasthttp.StatusMethodNotAllowed, resultdto.DomainError{Code: resultdto.CodeBadRequest, Message: "commands must be POSTed"}, nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.requestTimeout)
	defer cancel()

	var (
		out any
		err error
	)
	body := rc.PostBody()
	switch name {
	case "validate_game_result":
		var in resultdto.ValidateGameResultRequest
		if err = decode(body, &in); err == nil {
			out, err = s.backend.Validate(ctx, in)
		}
	case "batch_update_results":
		var in resultdto.BatchUpdateRequest
		if err = decode(body, &in); err == nil {
			s.metrics.batch.Observe(float64(len(in.Updates)))
			out, err = s.backend.BatchUpdate(ctx, in)
		}
	case "get_game_audit_trail":
		var in resultdto.AuditTrailRequest
		if err = decode(body, &in); err == nil {
			var recs []resultdto.AuditRecord
			recs, err = s.backend.AuditTrail(ctx, in.GameID)
			out = resultdto.AuditTrailResponse{Records: recs}
		}
	case "list_games":
		var in resultdto.ListGamesRequest
		if err = decode(body, &in); err == nil {
			var games []resultdto.Game
			games, err = s.backend.ListGames(ctx, in.TournamentID, in.Round)
			out = resultdto.ListGamesResponse{Games: games}
		}
	default:
		s.finish(rc, name, start, fasthttp.StatusNotFound, resultdto.DomainError{Code: resultdto.CodeUnknownRoute, Message: "unknown command " + name}, nil)
		return
	}

	if err != nil {
		status, de := classify(err)
		if status >= 500 {
			s.logger.Warn("command_failed", zap.String("command", name), zap.Error(err))
		}
		s.finish(rc, name, start, status, de, nil)
		return
	}
	s.finish(rc, name, start, fasthttp.StatusOK, resultdto.DomainError{}, out)
}

func (s *Server) finish(rc *fasthttp.RequestCtx, name string, start time.Time, status int, de resultdto.DomainError, out any) {
	code := "ok"
	if status != fasthttp.StatusOK {
		code = de.Code
		writeError(rc, status, de)
	} else {
		writeJSON(rc, status, out)
	}
	s.metrics.requests.WithLabelValues(name, code).Inc()
	s.metrics.latency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	s.logger.Debug("command",
		zap.String("command", name),
		zap.Int("status", status),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func decode(body []byte, v any) error {
	if len(body) == 0 {
		return fmt.Errorf("%w: empty body", results.ErrInvalidRequest)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", results.ErrInvalidRequest, err)
	}
	return nil
}

func classify(err error) (int, resultdto.DomainError) {
	switch {
	case errors.Is(err, results.ErrInvalidRequest):
		return fasthttp.StatusBadRequest, resultdto.DomainError{Code: resultdto.CodeBadRequest, Message: err.Error()}
	case errors.Is(err, results.ErrStorage):
		return fasthttp.StatusServiceUnavailable, resultdto.DomainError{Code: resultdto.CodeUnavailable, Message: "storage unavailable", Retryable: true}
	case errors.Is(err, context.DeadlineExceeded):
		return fasthttp.StatusGatewayTimeout, resultdto.DomainError{Code: resultdto.CodeUnavailable, Message: "command timed out", Retryable: true}
	default:
		return fasthttp.StatusInternalServerError, resultdto.DomainError{Code: resultdto.CodeInternal, Message: "internal error"}
	}
}

func writeJSON(rc *fasthttp.RequestCtx, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		rc.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	rc.SetStatusCode(status)
	rc.SetContentType("application/json")
	rc.SetBody(b)
}

func writeError(rc *fasthttp.RequestCtx, status int, de resultdto.DomainError) {
	writeJSON(rc, status, de)
}
