package resultentry

import "context"

// Pending is the handle of a background validation started by SetResult.
type Pending struct {
	done    chan struct{}
	result  ValidationResult
	err     error
	skipped bool
}

func newPending() *Pending { return &Pending{done: make(chan struct{})} }

func skippedPending() *Pending {
	p := &Pending{done: make(chan struct{}), skipped: true, result: ValidationResult{Valid: true}}
	close(p.done)
	return p
}

func (p *Pending) resolve(res ValidationResult, err error) {
	p.result = res
	p.err = err
	close(p.done)
}

// Done is closed once the validation finished or was skipped.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Skipped reports whether no validation was started (ongoing result).
func (p *Pending) Skipped() bool { return p.skipped }

// Wait blocks until the validation finished or ctx is done. Giving up on the
// wait does not cancel the validation itself.
func (p *Pending) Wait(ctx context.Context) (ValidationResult, error) {
	select {
	case <-p.done:
		return p.result.clone(), p.err
	case <-ctx.Done():
		return ValidationResult{}, ctx.Err()
	}
}

// WaitAll waits for every handle and returns the first error.
func WaitAll(ctx context.Context, ps []*Pending) error {
	var first error
	for _, p := range ps {
		if p == nil {
			continue
		}
		if _, err := p.Wait(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
