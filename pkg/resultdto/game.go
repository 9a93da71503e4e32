package resultdto

import "time"

// Game is a stored tournament game as listed by list_games.
type Game struct {
	ID           string    `json:"id"`
	TournamentID string    `json:"tournament_id"`
	Round        int       `json:"round"`
	Board        int       `json:"board"`
	WhiteID      string    `json:"white_id"`
	WhiteName    string    `json:"white_name"`
	BlackID      string    `json:"black_id"`
	BlackName    string    `json:"black_name"`
	Result       string    `json:"result"`
	ResultType   string    `json:"result_type,omitempty"`
	ResultReason string    `json:"result_reason,omitempty"`
	ArbiterNotes string    `json:"arbiter_notes,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ListGamesRequest struct {
	TournamentID string `json:"tournament_id"`
	Round        int    `json:"round,omitempty"`
}

type ListGamesResponse struct {
	Games []Game `json:"games"`
}
