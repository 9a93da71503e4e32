package resultentry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/park285/arbiter-desk/internal/resultcode"
	"go.uber.org/zap"
)

// validationFailedMessage is stored on an entry when the validation service
// could not be reached.
const validationFailedMessage = "validation failed"

type batchKind int

const (
	batchValidate batchKind = iota
	batchSave
)

func (k batchKind) String() string {
	if k == batchSave {
		return "save_all"
	}
	return "batch_validate"
}

type fields struct {
	Result       string
	ResultType   string
	ResultReason string
	ArbiterNotes string
}

type entryState struct {
	working    fields
	modified   bool
	validation *ValidationResult
	approval   bool
	// resultRev changes on every SetResult so that a late validation answer
	// for an older result does not overwrite a newer one.
	resultRev uint64
}

// Reconciler keeps the working set of result edits for one tournament session.
//
// Remote calls are made without holding the internal lock, so edits may continue
// while a validation or save is in flight. Batch requests are built from a
// snapshot of the modified entries and their answers are applied against that
// snapshot only.
type Reconciler struct {
	tournamentID string
	actor        string
	validator    ValidationService
	persister    PersistenceService
	reporter     Reporter
	logger       *zap.Logger
	now          func() time.Time

	mu       sync.Mutex
	epoch    uint64
	gameIDs  []string
	entries  map[string]*entryState
	baseline map[string]fields
	order    []string
	rev      uint64
	inflight map[batchKind]bool
}

type Option func(*Reconciler)

func WithLogger(l *zap.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithReporter(rep Reporter) Option {
	return func(r *Reconciler) {
		if rep != nil {
			r.reporter = rep
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

func New(tournamentID, actor string, validator ValidationService, persister PersistenceService, opts ...Option) (*Reconciler, error) {
	if strings.TrimSpace(tournamentID) == "" {
		return nil, fmt.Errorf("tournament id is required")
	}
	if validator == nil {
		return nil, fmt.Errorf("validation service is required")
	}
	if persister == nil {
		return nil, fmt.Errorf("persistence service is required")
	}
	r := &Reconciler{
		tournamentID: strings.TrimSpace(tournamentID),
		actor:        strings.TrimSpace(actor),
		validator:    validator,
		persister:    persister,
		reporter:     nopReporter{},
		logger:       zap.NewNop(),
		now:          time.Now,
		entries:      make(map[string]*entryState),
		baseline:     make(map[string]fields),
		inflight:     make(map[batchKind]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Reconciler) TournamentID() string { return r.tournamentID }

// LoadGames replaces the whole working set. Unsaved edits are discarded; callers
// should check HasUnsavedChanges first.
func (r *Reconciler) LoadGames(games []Game) {
	r.mu.Lock()
	discarded := len(r.order)
	r.epoch++
	r.gameIDs = make([]string, 0, len(games))
	r.entries = make(map[string]*entryState, len(games))
	r.baseline = make(map[string]fields, len(games))
	r.order = nil
	for _, g := range games {
		id := strings.TrimSpace(g.ID)
		if id == "" {
			continue
		}
		f := fields{
			Result:       strings.TrimSpace(g.Result),
			ResultType:   strings.TrimSpace(g.ResultType),
			ResultReason: g.ResultReason,
			ArbiterNotes: g.ArbiterNotes,
		}
		if _, dup := r.entries[id]; !dup {
			r.gameIDs = append(r.gameIDs, id)
		}
		r.entries[id] = &entryState{working: f, approval: resultcode.RequiresApproval(f.ResultType)}
		r.baseline[id] = f
	}
	count := len(r.gameIDs)
	r.mu.Unlock()

	r.logger.Info("result_games_load",
		zap.String("tournament_id", r.tournamentID),
		zap.Int("games", count),
		zap.Int("discarded_edits", discarded),
	)
}

type setOptions struct {
	resultType    string
	setResultType bool
}

// SetOption customises SetResult.
type SetOption func(*setOptions)

// WithResultType also sets the result type. An empty type clears it.
func WithResultType(t string) SetOption {
	return func(o *setOptions) {
		o.resultType = strings.TrimSpace(t)
		o.setResultType = true
	}
}

// SetResult records a new working result. Unless the result is the ongoing
// sentinel, a validation is started in the background; the returned Pending can
// be awaited or ignored. Validation failures end up on the entry, not here.
// Cancelling ctx after SetResult returns does not stop that validation.
func (r *Reconciler) SetResult(ctx context.Context, gameID, result string, opts ...SetOption) (*Pending, error) {
	result = strings.TrimSpace(result)
	if result == "" {
		return nil, fmt.Errorf("%w: result code is empty", ErrInvalidInput)
	}
	var o setOptions
	for _, opt := range opts {
		opt(&o)
	}

	id := strings.TrimSpace(gameID)
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownGame, id)
	}
	e.working.Result = result
	if o.setResultType {
		e.working.ResultType = o.resultType
	}
	e.approval = resultcode.RequiresApproval(e.working.ResultType)
	r.rev++
	e.resultRev = r.rev
	r.markModifiedLocked(id, e)
	r.mu.Unlock()

	r.logger.Debug("result_set",
		zap.String("game_id", id),
		zap.String("result", result),
		zap.Bool("result_type_set", o.setResultType),
	)

	if resultcode.IsOngoing(result) {
		return skippedPending(), nil
	}
	vctx := context.WithoutCancel(ctx)
	p := newPending()
	go func() {
		res, err := r.ValidateEntry(vctx, id)
		p.resolve(res, err)
	}()
	return p, nil
}

// SetField updates result_reason or arbiter_notes. No validation is triggered.
func (r *Reconciler) SetField(gameID string, field Field, value string) error {
	id := strings.TrimSpace(gameID)
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownGame, id)
	}
	switch field {
	case FieldResultReason:
		e.working.ResultReason = value
	case FieldArbiterNotes:
		e.working.ArbiterNotes = value
	default:
		return fmt.Errorf("%w: unknown field %q", ErrInvalidInput, field)
	}
	r.markModifiedLocked(id, e)
	return nil
}

func (r *Reconciler) markModifiedLocked(id string, e *entryState) {
	if e.modified {
		return
	}
	e.modified = true
	r.order = append(r.order, id)
}

func (r *Reconciler) unmarkModifiedLocked(id string, e *entryState) {
	e.modified = false
	for i, k := range r.order {
		if k == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

// ValidateEntry validates the current working values of one entry. Empty and
// ongoing results are reported valid without a remote call. When the service
// cannot be reached a synthetic invalid result is stored and returned together
// with a *TransportError; the failure is also sent to the Reporter.
func (r *Reconciler) ValidateEntry(ctx context.Context, gameID string) (ValidationResult, error) {
	id := strings.TrimSpace(gameID)
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return ValidationResult{}, fmt.Errorf("%w: %s", ErrUnknownGame, id)
	}
	epoch, rev, w := r.epoch, e.resultRev, e.working
	r.mu.Unlock()

	if w.Result == "" || resultcode.IsOngoing(w.Result) {
		return ValidationResult{Valid: true}, nil
	}

	res, err := r.validator.Validate(ctx, ValidateRequest{
		GameID:       id,
		Result:       w.Result,
		ResultType:   w.ResultType,
		TournamentID: r.tournamentID,
		Actor:        r.actor,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ValidationResult{}, ctx.Err()
		}
		res = ValidationResult{Valid: false, Errors: []string{validationFailedMessage}, Warnings: []string{}}
		r.storeValidation(epoch, id, rev, res)
		te := validationFailure("validate_entry", err)
		r.report(te, id)
		return res.clone(), te
	}
	r.storeValidation(epoch, id, rev, res)
	return res.clone(), nil
}

func (r *Reconciler) storeValidation(epoch uint64, id string, rev uint64, res ValidationResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if epoch != r.epoch {
		return
	}
	e, ok := r.entries[id]
	if !ok || e.resultRev != rev {
		return
	}
	v := res.clone()
	e.validation = &v
}

type batchSnapshot struct {
	epoch  uint64
	keys   []string
	values []fields
	// revs holds the resultRev of each key when the snapshot was taken.
	revs []uint64
}

func (s batchSnapshot) request(tournamentID, actor string, validateOnly bool) BatchRequest {
	updates := make([]Update, len(s.keys))
	for i, k := range s.keys {
		v := s.values[i]
		updates[i] = Update{
			GameID:       k,
			Result:       v.Result,
			ResultType:   v.ResultType,
			ResultReason: v.ResultReason,
			ArbiterNotes: v.ArbiterNotes,
			Actor:        actor,
		}
	}
	return BatchRequest{TournamentID: tournamentID, Updates: updates, ValidateOnly: validateOnly}
}

// beginBatch snapshots the modified entries and marks kind as in flight.
// It returns an empty snapshot (and does not mark) when nothing is modified.
func (r *Reconciler) beginBatch(kind batchKind) (batchSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inflight[kind] {
		return batchSnapshot{}, fmt.Errorf("%w: %s", ErrOperationInFlight, kind)
	}
	snap := batchSnapshot{epoch: r.epoch}
	for _, k := range r.order {
		e := r.entries[k]
		if e == nil || !e.modified {
			continue
		}
		snap.keys = append(snap.keys, k)
		snap.values = append(snap.values, e.working)
		snap.revs = append(snap.revs, e.resultRev)
	}
	if len(snap.keys) > 0 {
		r.inflight[kind] = true
	}
	return snap, nil
}

func (r *Reconciler) endBatch(kind batchKind) {
	r.mu.Lock()
	delete(r.inflight, kind)
	r.mu.Unlock()
}

// normalize correlates the answer with the snapshot by position. Results
// beyond the submitted count are dropped.
func (s batchSnapshot) normalize(out BatchOutcome) BatchOutcome {
	n := len(out.Results)
	if n > len(s.keys) {
		n = len(s.keys)
	}
	res := BatchOutcome{OverallValid: out.OverallValid, Results: make([]EntryResult, n)}
	for i := 0; i < n; i++ {
		res.Results[i] = EntryResult{Index: i, GameID: s.keys[i], Validation: out.Results[i].Validation.clone()}
	}
	return res
}

// applyValidationsLocked stores the answers whose entry still carries the
// submitted result. Entries re-set or reset since the snapshot are skipped.
func (r *Reconciler) applyValidationsLocked(snap batchSnapshot, out BatchOutcome) {
	for i, er := range out.Results {
		e, ok := r.entries[er.GameID]
		if !ok || e.resultRev != snap.revs[i] {
			continue
		}
		v := er.Validation.clone()
		e.validation = &v
	}
}

// BatchValidate validates every modified entry in one request. With nothing
// modified it returns an overall-valid empty outcome without a remote call.
// A transport failure leaves the working set untouched and yields an
// overall-invalid empty outcome plus a *TransportError.
func (r *Reconciler) BatchValidate(ctx context.Context) (BatchOutcome, error) {
	snap, err := r.beginBatch(batchValidate)
	if err != nil {
		return BatchOutcome{}, err
	}
	if len(snap.keys) == 0 {
		return BatchOutcome{OverallValid: true, Results: []EntryResult{}}, nil
	}
	defer r.endBatch(batchValidate)

	out, err := r.validator.BatchValidate(ctx, snap.request(r.tournamentID, r.actor, true))
	if err != nil {
		if ctx.Err() != nil {
			return BatchOutcome{}, ctx.Err()
		}
		te := validationFailure("batch_validate", err)
		r.report(te, snap.keys...)
		return BatchOutcome{OverallValid: false, Results: []EntryResult{}}, te
	}
	norm := snap.normalize(out)

	r.mu.Lock()
	if snap.epoch == r.epoch {
		r.applyValidationsLocked(snap, norm)
	}
	r.mu.Unlock()

	r.logger.Info("result_batch_validate",
		zap.String("tournament_id", r.tournamentID),
		zap.Int("submitted", len(snap.keys)),
		zap.Bool("overall_valid", norm.OverallValid),
	)
	return norm, nil
}

// SaveAll persists every modified entry in one request. Only an overall-valid
// answer clears the modified flags; the submitted values then become the
// baseline. An entry edited or reset while the save was in flight keeps its
// working values and stays modified when they differ from the saved ones.
func (r *Reconciler) SaveAll(ctx context.Context) (BatchOutcome, error) {
	snap, err := r.beginBatch(batchSave)
	if err != nil {
		return BatchOutcome{}, err
	}
	if len(snap.keys) == 0 {
		return BatchOutcome{OverallValid: true, Results: []EntryResult{}}, nil
	}
	defer r.endBatch(batchSave)

	out, err := r.persister.BatchUpdate(ctx, snap.request(r.tournamentID, r.actor, false))
	if err != nil {
		if ctx.Err() != nil {
			return BatchOutcome{}, ctx.Err()
		}
		te := persistenceFailure("save_all", err)
		r.report(te, snap.keys...)
		return BatchOutcome{OverallValid: false, Results: []EntryResult{}}, te
	}
	norm := snap.normalize(out)

	saved := 0
	r.mu.Lock()
	if snap.epoch == r.epoch {
		r.applyValidationsLocked(snap, norm)
		if norm.OverallValid {
			for i, k := range snap.keys {
				e, ok := r.entries[k]
				if !ok {
					continue
				}
				r.baseline[k] = snap.values[i]
				// modified tracks divergence from the new baseline, which also
				// covers an entry reset while the save was in flight
				if e.working == snap.values[i] {
					if e.modified {
						r.unmarkModifiedLocked(k, e)
					}
				} else {
					r.markModifiedLocked(k, e)
				}
				saved++
			}
		}
	}
	r.mu.Unlock()

	r.logger.Info("result_batch_save",
		zap.String("tournament_id", r.tournamentID),
		zap.Int("submitted", len(snap.keys)),
		zap.Int("saved", saved),
		zap.Bool("overall_valid", norm.OverallValid),
	)
	return norm, nil
}

// ResetModified restores every modified entry to its baseline and returns the
// number of entries reset.
func (r *Reconciler) ResetModified() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.order[:0:0]
	reset := 0
	for _, k := range r.order {
		e, ok := r.entries[k]
		if !ok {
			continue
		}
		base, ok := r.baseline[k]
		if !ok {
			r.logger.Warn("result_reset_no_baseline", zap.String("game_id", k))
			kept = append(kept, k)
			continue
		}
		e.working = base
		e.modified = false
		e.validation = nil
		e.approval = resultcode.RequiresApproval(base.ResultType)
		r.rev++
		e.resultRev = r.rev
		reset++
	}
	r.order = kept
	return reset
}

// AuditTrail reads the audit history of a game. Ordering is the service's.
func (r *Reconciler) AuditTrail(ctx context.Context, gameID string) ([]AuditRecord, error) {
	id := strings.TrimSpace(gameID)
	if id == "" {
		return nil, fmt.Errorf("%w: game id is empty", ErrInvalidInput)
	}
	recs, err := r.persister.AuditTrail(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		te := persistenceFailure("audit_trail", err)
		r.report(te, id)
		return nil, te
	}
	return recs, nil
}

func (r *Reconciler) report(err *TransportError, gameIDs ...string) {
	r.logger.Warn("result_service_failure",
		zap.String("op", err.Op),
		zap.Strings("game_ids", gameIDs),
		zap.Error(err.Err),
	)
	r.reporter.Report(Failure{
		Op:      err.Op,
		GameIDs: append([]string(nil), gameIDs...),
		Err:     err,
		At:      r.now(),
	})
}

func (r *Reconciler) ModifiedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

func (r *Reconciler) HasUnsavedChanges() bool { return r.ModifiedCount() > 0 }

// ModifiedIDs returns the modified game ids in order of first modification.
func (r *Reconciler) ModifiedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// GameIDs returns the loaded game ids in load order.
func (r *Reconciler) GameIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.gameIDs...)
}

func (r *Reconciler) Entry(gameID string) (Entry, bool) {
	id := strings.TrimSpace(gameID)
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, false
	}
	return e.view(id), true
}

func (r *Reconciler) Entries() map[string]Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Entry, len(r.entries))
	for id, e := range r.entries {
		out[id] = e.view(id)
	}
	return out
}

func (e *entryState) view(id string) Entry {
	out := Entry{
		GameID:           id,
		Result:           e.working.Result,
		ResultType:       e.working.ResultType,
		ResultReason:     e.working.ResultReason,
		ArbiterNotes:     e.working.ArbiterNotes,
		Modified:         e.modified,
		RequiresApproval: e.approval,
	}
	if e.validation != nil {
		v := e.validation.clone()
		out.Validation = &v
	}
	return out
}

// SetAllToDraw sets every game whose working result is not a draw to a draw.
func (r *Reconciler) SetAllToDraw(ctx context.Context) ([]*Pending, error) {
	return r.setAll(ctx, resultcode.Draw)
}

// SetAllToOngoing resets every game to the ongoing sentinel.
func (r *Reconciler) SetAllToOngoing(ctx context.Context) ([]*Pending, error) {
	return r.setAll(ctx, resultcode.Ongoing)
}

func (r *Reconciler) setAll(ctx context.Context, code string) ([]*Pending, error) {
	r.mu.Lock()
	var ids []string
	for _, id := range r.gameIDs {
		if e := r.entries[id]; e != nil && e.working.Result != code {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()

	pending := make([]*Pending, 0, len(ids))
	for _, id := range ids {
		p, err := r.SetResult(ctx, id, code)
		if err != nil {
			return pending, err
		}
		pending = append(pending, p)
	}
	return pending, nil
}
