package resultentry

import (
	"errors"
	"time"
)

var (
	ErrUnknownGame          = errors.New("unknown game")
	ErrInvalidInput         = errors.New("invalid input")
	ErrOperationInFlight    = errors.New("operation already in flight")
	ErrValidationTransport  = errors.New("validation service unavailable")
	ErrPersistenceTransport = errors.New("persistence service unavailable")
)

// TransportError wraps a failed call to one of the services. It matches
// ErrValidationTransport or ErrPersistenceTransport through errors.Is and
// unwraps to the underlying cause.
type TransportError struct {
	Op   string
	Err  error
	kind error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.kind.Error()
	}
	return e.Op + ": " + e.kind.Error() + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == e.kind }

func validationFailure(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err, kind: ErrValidationTransport}
}

func persistenceFailure(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err, kind: ErrPersistenceTransport}
}

// Failure is delivered to the Reporter when a service call could not complete.
type Failure struct {
	Op      string
	GameIDs []string
	Err     error
	At      time.Time
}

// Reporter is the out-of-band error channel. Report must not block for long;
// it is called outside the reconciler lock.
type Reporter interface {
	Report(f Failure)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Failure)

func (fn ReporterFunc) Report(f Failure) { fn(f) }

type nopReporter struct{}

func (nopReporter) Report(Failure) {}
