package sessions

import (
	"sync"

	"github.com/agrilens/agrilens/control-plane/pkg/models"
)

// Handoff is the one-shot slot carrying the latest diagnosis into the next
// chat session. Offer replaces any pending context; Take clears it.
type Handoff struct {
	mu      sync.Mutex
	pending *models.DiagnosisContext
}

// NewHandoff creates an empty handoff slot.
func NewHandoff() *Handoff {
	return &Handoff{}
}

// Offer leaves ctx for the next session.
func (h *Handoff) Offer(ctx models.DiagnosisContext) {
	h.mu.Lock()
	h.pending = &ctx
	h.mu.Unlock()
}

// Take returns the pending context and clears the slot, or nil.
func (h *Handoff) Take() *models.DiagnosisContext {
	h.mu.Lock()
	defer h.mu.Unlock()
	ctx := h.pending
	h.pending = nil
	return ctx
}

// Pending returns a copy of the pending context without consuming it.
func (h *Handoff) Pending() *models.DiagnosisContext {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending == nil {
		return nil
	}
	c := *h.pending
	return &c
}
