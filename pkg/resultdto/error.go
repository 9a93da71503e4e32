package resultdto

// DomainError is the error body returned by the commands endpoint.
type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "results service error"
}

// Error codes.
const (
	CodeBadRequest   = "bad_request"
	CodeUnknownGame  = "unknown_game"
	CodeUnavailable  = "unavailable"
	CodeInternal     = "internal"
	CodeUnknownRoute = "unknown_command"
)
