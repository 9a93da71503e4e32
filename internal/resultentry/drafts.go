package resultentry

import (
	"strings"

	"github.com/park285/arbiter-desk/internal/resultcode"
	"go.uber.org/zap"
)

// Draft is the unsaved working state of one entry, as kept in the draft store.
type Draft struct {
	GameID       string `json:"game_id"`
	Result       string `json:"result"`
	ResultType   string `json:"result_type,omitempty"`
	ResultReason string `json:"result_reason,omitempty"`
	ArbiterNotes string `json:"arbiter_notes,omitempty"`
}

// Drafts returns the modified entries in order of first modification.
func (r *Reconciler) Drafts() []Draft {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Draft, 0, len(r.order))
	for _, k := range r.order {
		e := r.entries[k]
		if e == nil {
			continue
		}
		out = append(out, Draft{
			GameID:       k,
			Result:       e.working.Result,
			ResultType:   e.working.ResultType,
			ResultReason: e.working.ResultReason,
			ArbiterNotes: e.working.ArbiterNotes,
		})
	}
	return out
}

// ApplyDrafts restores previously stored drafts onto the loaded games. Drafts
// for unknown games and drafts without a result are skipped. Restored entries are marked modified but are
// not validated; call BatchValidate afterwards.
func (r *Reconciler) ApplyDrafts(drafts []Draft) int {
	r.mu.Lock()
	applied, skipped := 0, 0
	for _, d := range drafts {
		id := strings.TrimSpace(d.GameID)
		e, ok := r.entries[id]
		if !ok || strings.TrimSpace(d.Result) == "" {
			skipped++
			continue
		}
		e.working = fields{
			Result:       strings.TrimSpace(d.Result),
			ResultType:   strings.TrimSpace(d.ResultType),
			ResultReason: d.ResultReason,
			ArbiterNotes: d.ArbiterNotes,
		}
		e.approval = resultcode.RequiresApproval(e.working.ResultType)
		e.validation = nil
		r.rev++
		e.resultRev = r.rev
		r.markModifiedLocked(id, e)
		applied++
	}
	r.mu.Unlock()

	if skipped > 0 {
		r.logger.Warn("result_drafts_skipped", zap.Int("skipped", skipped))
	}
	return applied
}
