// Package notify forwards reconciler failures to a websocket listener, such
// as the arbiter's table display, as JSON frames.
package notify

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/park285/arbiter-desk/internal/msgcat"
	"github.com/park285/arbiter-desk/internal/resultentry"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "disconnected"
	}
}

type StateCallback func(State)

// HeaderProvider allows injecting headers into the WS handshake.
type HeaderProvider func() map[string]string

// Frame is the JSON payload sent per failure.
type Frame struct {
	Type    string    `json:"type"`
	Op      string    `json:"op"`
	Kind    string    `json:"kind"`
	GameIDs []string  `json:"game_ids"`
	Error   string    `json:"error"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

type stateCallbackEntry struct {
	id       int
	callback StateCallback
}

// Reporter implements resultentry.Reporter. Report only enqueues; a single
// sender goroutine dials lazily and redials after a failed write.
type Reporter struct {
	wsURL       string
	headers     HeaderProvider
	catalog     *msgcat.Catalog
	logger      *zap.Logger
	maxAttempts int

	queue   chan Frame
	dropped atomic.Int64

	conn   *websocket.Conn
	state  State
	stateM sync.RWMutex

	stateCbs []stateCallbackEntry
	cbM      sync.RWMutex

	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	rootCtx    context.Context
	rootCancel context.CancelFunc
}

var _ resultentry.Reporter = (*Reporter)(nil)

type Option func(*Reporter)

func WithLogger(l *zap.Logger) Option {
	return func(r *Reporter) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithCatalog(c *msgcat.Catalog) Option {
	return func(r *Reporter) { r.catalog = c }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(r *Reporter) { r.headers = h }
}

func WithQueueSize(n int) Option {
	return func(r *Reporter) {
		if n > 0 {
			r.queue = make(chan Frame, n)
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(r *Reporter) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

func NewReporter(wsURL string, opts ...Option) *Reporter {
	r := &Reporter{
		wsURL:       strings.TrimSpace(wsURL),
		logger:      zap.NewNop(),
		maxAttempts: 3,
		queue:       make(chan Frame, 64),
		state:       StateDisconnected,
		stopCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.rootCtx, r.rootCancel = context.WithCancel(context.Background())
	r.wg.Add(1)
	go r.sendLoop()
	return r
}

// Report enqueues a frame; when the queue is full the frame is dropped.
func (r *Reporter) Report(f resultentry.Failure) {
	frame := r.frame(f)
	select {
	case <-r.stopCh:
		r.dropped.Add(1)
	case r.queue <- frame:
	default:
		r.dropped.Add(1)
		r.logger.Warn("notify_queue_full", zap.String("op", f.Op))
	}
}

func (r *Reporter) Dropped() int64 { return r.dropped.Load() }

func (r *Reporter) frame(f resultentry.Failure) Frame {
	kind := "unknown"
	msgKey := ""
	switch {
	case errors.Is(f.Err, resultentry.ErrValidationTransport):
		kind, msgKey = "validation", "notify.validate_failed"
	case errors.Is(f.Err, resultentry.ErrPersistenceTransport):
		kind, msgKey = "persistence", "notify.save_failed"
	}
	errText := ""
	if f.Err != nil {
		errText = f.Err.Error()
	}
	fr := Frame{
		Type:    "result_failure",
		Op:      f.Op,
		Kind:    kind,
		GameIDs: append([]string{}, f.GameIDs...),
		Error:   errText,
		At:      f.At.UTC(),
	}
	if r.catalog != nil && msgKey != "" {
		fr.Message = r.catalog.Text(msgKey, map[string]any{"Error": errText})
	}
	return fr
}

func (r *Reporter) sendLoop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.stopCh:
			return
		case fr := <-r.queue:
			r.deliver(fr)
		}
	}
}

func (r *Reporter) deliver(fr Frame) {
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err := r.write(fr)
		if err == nil || r.isStopping() {
			return
		}
		r.logger.Debug("notify_write_failed", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-r.stopCh:
			return
		case <-time.After(backoffDuration(attempt)):
		}
	}
	r.setState(StateFailed)
	r.dropped.Add(1)
	r.logger.Warn("notify_frame_dropped", zap.String("op", fr.Op), zap.Strings("game_ids", fr.GameIDs))
}

func (r *Reporter) write(fr Frame) error {
	if r.conn == nil {
		if err := r.dial(); err != nil {
			return err
		}
	}
	ctx, cancel := context.WithTimeout(r.rootCtx, 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, r.conn, fr); err != nil {
		_ = r.closeConn(websocket.StatusGoingAway, "reconnect")
		r.setState(StateDisconnected)
		return err
	}
	return nil
}

func (r *Reporter) dial() error {
	r.setState(StateConnecting)
	dialCtx, cancel := context.WithTimeout(r.rootCtx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, r.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      r.buildHeaders(),
	})
	if err != nil {
		r.setState(StateDisconnected)
		return err
	}
	// frames are write-only; CloseRead handles control frames
	r.conn = conn
	conn.CloseRead(r.rootCtx)
	r.setState(StateConnected)
	return nil
}

func (r *Reporter) OnStateChange(cb StateCallback) int {
	r.cbM.Lock()
	defer r.cbM.Unlock()
	id := len(r.stateCbs) + 1
	r.stateCbs = append(r.stateCbs, stateCallbackEntry{id: id, callback: cb})
	return id
}

func (r *Reporter) State() State {
	r.stateM.RLock()
	defer r.stateM.RUnlock()
	return r.state
}

func (r *Reporter) setState(state State) {
	r.stateM.Lock()
	changed := r.state != state
	r.state = state
	r.stateM.Unlock()
	if !changed {
		return
	}

	r.cbM.RLock()
	callbacks := make([]stateCallbackEntry, len(r.stateCbs))
	copy(callbacks, r.stateCbs)
	r.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(state)
		}
	}
}

// Close stops the sender. Frames still queued are dropped.
func (r *Reporter) Close(ctx context.Context) error {
	r.stopOnce.Do(func() { close(r.stopCh) })

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		err := r.closeConn(websocket.StatusNormalClosure, "close")
		r.rootCancel()
		return err
	}
}

func (r *Reporter) closeConn(code websocket.StatusCode, reason string) error {
	if r.conn == nil {
		return nil
	}
	defer func() { r.conn = nil }()
	return r.conn.Close(code, reason)
}

func (r *Reporter) isStopping() bool {
	select {
	case <-r.stopCh:
		return true
	default:
		return false
	}
}

func (r *Reporter) buildHeaders() http.Header {
	hdr := http.Header{}
	if r.headers == nil {
		return hdr
	}
	for k, v := range r.headers() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}
