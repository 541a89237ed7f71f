// Package notify carries session timing events from the engine to the
// external transport layer.
package notify

import (
	"context"

	"github.com/google/uuid"

	"github.com/jsacert/exam-engine/internal/service"
)

// EventKind discriminates the queued event payloads.
type EventKind string

const (
	EventWarningRaised EventKind = "warning_raised"
	EventAutoSubmitted EventKind = "auto_submitted"
)

// Event is the wire shape pushed onto the session events queue.
type Event struct {
	Kind             EventKind            `json:"kind"`
	SessionID        uuid.UUID            `json:"session_id"`
	UserID           int64                `json:"user_id"`
	ThresholdMinutes int                  `json:"threshold_minutes,omitempty"`
	Grade            *service.GradeResult `json:"grade,omitempty"`
}

// Notifier delivers expiry-monitor events to whatever is listening.
type Notifier interface {
	// WarningRaised reports that a remaining-time threshold was crossed.
	WarningRaised(ctx context.Context, sessionID uuid.UUID, userID int64, thresholdMinutes int) error
	// AutoSubmitted reports a forced finalize with its grade.
	AutoSubmitted(ctx context.Context, sessionID uuid.UUID, userID int64, grade *service.GradeResult) error
}
