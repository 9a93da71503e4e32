package resultdto

import "time"

type AuditRecord struct {
	ID        string    `json:"id"`
	GameID    string    `json:"game_id"`
	ChangedAt time.Time `json:"changed_at"`
	OldResult string    `json:"old_result,omitempty"`
	NewResult string    `json:"new_result"`
	ChangedBy string    `json:"changed_by,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Approved  bool      `json:"approved"`
}

type AuditTrailResponse struct {
	Records []AuditRecord `json:"records"`
}
