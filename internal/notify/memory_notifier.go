package notify

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jsacert/exam-engine/internal/service"
)

// MemoryNotifier records events in memory. Used by tests and by deployments
// without Redis.
type MemoryNotifier struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryNotifier creates a new MemoryNotifier.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

var _ Notifier = (*MemoryNotifier)(nil)

func (n *MemoryNotifier) WarningRaised(ctx context.Context, sessionID uuid.UUID, userID int64, thresholdMinutes int) error {
	n.record(Event{
		Kind:             EventWarningRaised,
		SessionID:        sessionID,
		UserID:           userID,
		ThresholdMinutes: thresholdMinutes,
	})
	return nil
}

func (n *MemoryNotifier) AutoSubmitted(ctx context.Context, sessionID uuid.UUID, userID int64, grade *service.GradeResult) error {
	n.record(Event{
		Kind:      EventAutoSubmitted,
		SessionID: sessionID,
		UserID:    userID,
		Grade:     grade,
	})
	return nil
}

func (n *MemoryNotifier) record(ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

// Events returns a copy of everything recorded so far.
func (n *MemoryNotifier) Events() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Event, len(n.events))
	copy(out, n.events)
	return out
}
