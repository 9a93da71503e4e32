package resultdto

// ValidateGameResultRequest is the body of validate_game_result.
type ValidateGameResultRequest struct {
	GameID       string `json:"game_id"`
	Result       string `json:"result"`
	ResultType   string `json:"result_type,omitempty"`
	TournamentID string `json:"tournament_id"`
	ChangedBy    string `json:"changed_by,omitempty"`
}

type ResultUpdate struct {
	GameID       string `json:"game_id"`
	Result       string `json:"result"`
	ResultType   string `json:"result_type,omitempty"`
	ResultReason string `json:"result_reason,omitempty"`
	ArbiterNotes string `json:"arbiter_notes,omitempty"`
	ChangedBy    string `json:"changed_by,omitempty"`
}

// BatchUpdateRequest is the body of batch_update_results.
type BatchUpdateRequest struct {
	TournamentID string         `json:"tournament_id"`
	Updates      []ResultUpdate `json:"updates"`
	ValidateOnly bool           `json:"validate_only"`
}

type AuditTrailRequest struct {
	GameID string `json:"game_id"`
}
