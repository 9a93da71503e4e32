package resultentry

import (
	"context"
	"time"
)

// Game is a server-confirmed game as loaded from the backend. Empty strings stand
// for absent optional values.
type Game struct {
	ID           string
	TournamentID string
	Round        int
	Board        int
	WhiteID      string
	WhiteName    string
	BlackID      string
	BlackName    string
	Result       string
	ResultType   string
	ResultReason string
	ArbiterNotes string
}

// ValidationResult is the verdict of the validation service for one entry.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

func (v ValidationResult) clone() ValidationResult {
	return ValidationResult{
		Valid:    v.Valid,
		Errors:   append([]string(nil), v.Errors...),
		Warnings: append([]string(nil), v.Warnings...),
	}
}

// Entry is a read-only copy of the working state of one game.
type Entry struct {
	GameID           string
	Result           string
	ResultType       string
	ResultReason     string
	ArbiterNotes     string
	Modified         bool
	RequiresApproval bool
	// Validation is nil until a validation call for this entry completed.
	Validation *ValidationResult
}

// EntryResult pairs a submitted batch position with its verdict.
type EntryResult struct {
	Index      int
	GameID     string
	Validation ValidationResult
}

// BatchOutcome is the answer to a batch validate or save.
type BatchOutcome struct {
	OverallValid bool
	Results      []EntryResult
}

// AuditRecord is one server-side log line for a result change.
type AuditRecord struct {
	ID        string
	GameID    string
	ChangedAt time.Time
	OldResult string
	NewResult string
	// ChangedBy is empty for system-originated changes.
	ChangedBy string
	Reason    string
	Approved  bool
}

// ValidateRequest asks for the validation of a single working result.
type ValidateRequest struct {
	GameID       string
	Result       string
	ResultType   string
	TournamentID string
	Actor        string
}

// Update is one element of a batch request.
type Update struct {
	GameID       string
	Result       string
	ResultType   string
	ResultReason string
	ArbiterNotes string
	Actor        string
}

// BatchRequest carries an ordered list of updates. The response is correlated
// with Updates by position.
type BatchRequest struct {
	TournamentID string
	Updates      []Update
	ValidateOnly bool
}

// ValidationService validates working results.
type ValidationService interface {
	Validate(ctx context.Context, req ValidateRequest) (ValidationResult, error)
	BatchValidate(ctx context.Context, req BatchRequest) (BatchOutcome, error)
}

// PersistenceService stores results and serves their audit history.
type PersistenceService interface {
	BatchUpdate(ctx context.Context, req BatchRequest) (BatchOutcome, error)
	AuditTrail(ctx context.Context, gameID string) ([]AuditRecord, error)
}

// Field names an editable free-text field of an entry.
type Field string

const (
	FieldResultReason Field = "result_reason"
	FieldArbiterNotes Field = "arbiter_notes"
)
