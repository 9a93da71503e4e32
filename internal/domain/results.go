package domain

import "time"

// TournamentGame is one pairing of a round together with its stored result.
type TournamentGame struct {
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
	UpdatedAt    time.Time
}

// ResultAudit is one stored result change.
type ResultAudit struct {
	ID        string
	GameID    string
	ChangedAt time.Time
	OldResult string
	NewResult string
	ChangedBy string
	Reason    string
	Approved  bool
}
