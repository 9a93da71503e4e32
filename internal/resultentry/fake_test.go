package resultentry

import (
	"context"
	"errors"
	"sync"
)

var errConnRefused = errors.New("connection refused")

// fakeService implements both service interfaces. Gates, when set, block a
// call until the test releases it.
type fakeService struct {
	mu sync.Mutex

	validateCalls []ValidateRequest
	batchCalls    []BatchRequest
	saveCalls     []BatchRequest
	auditCalls    []string

	validate func(ValidateRequest) (ValidationResult, error)
	batch    func(BatchRequest) (BatchOutcome, error)
	save     func(BatchRequest) (BatchOutcome, error)
	audit    func(string) ([]AuditRecord, error)

	batchGate chan struct{}
	saveGate  chan struct{}
	entered   chan struct{}
}

func newFakeService() *fakeService {
	return &fakeService{entered: make(chan struct{}, 16)}
}

func (f *fakeService) Validate(ctx context.Context, req ValidateRequest) (ValidationResult, error) {
	f.mu.Lock()
	f.validateCalls = append(f.validateCalls, req)
	fn := f.validate
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return ValidationResult{}, err
	}
	if fn == nil {
		return ValidationResult{Valid: true, Errors: []string{}, Warnings: []string{}}, nil
	}
	return fn(req)
}

func (f *fakeService) BatchValidate(ctx context.Context, req BatchRequest) (BatchOutcome, error) {
	f.mu.Lock()
	f.batchCalls = append(f.batchCalls, req)
	fn, gate := f.batch, f.batchGate
	f.mu.Unlock()
	if err := f.wait(ctx, gate); err != nil {
		return BatchOutcome{}, err
	}
	if fn == nil {
		return allValid(req), nil
	}
	return fn(req)
}

func (f *fakeService) BatchUpdate(ctx context.Context, req BatchRequest) (BatchOutcome, error) {
	f.mu.Lock()
	f.saveCalls = append(f.saveCalls, req)
	fn, gate := f.save, f.saveGate
	f.mu.Unlock()
	if err := f.wait(ctx, gate); err != nil {
		return BatchOutcome{}, err
	}
	if fn == nil {
		return allValid(req), nil
	}
	return fn(req)
}

func (f *fakeService) AuditTrail(ctx context.Context, gameID string) ([]AuditRecord, error) {
	f.mu.Lock()
	f.auditCalls = append(f.auditCalls, gameID)
	fn := f.audit
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fn == nil {
		return []AuditRecord{}, nil
	}
	return fn(gameID)
}

func (f *fakeService) wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return ctx.Err()
	}
	f.entered <- struct{}{}
	select {
	case <-gate:
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeService) counts() (validate, batch, save int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.validateCalls), len(f.batchCalls), len(f.saveCalls)
}

func allValid(req BatchRequest) BatchOutcome {
	out := BatchOutcome{OverallValid: true}
	for i, u := range req.Updates {
		out.Results = append(out.Results, EntryResult{Index: i, GameID: u.GameID, Validation: ValidationResult{Valid: true}})
	}
	return out
}

type recordingReporter struct {
	mu       sync.Mutex
	failures []Failure
}

func (r *recordingReporter) Report(f Failure) {
	r.mu.Lock()
	r.failures = append(r.failures, f)
	r.mu.Unlock()
}

func (r *recordingReporter) all() []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Failure(nil), r.failures...)
}
