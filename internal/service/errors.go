package service

import (
	"errors"
	"fmt"

	"github.com/jsacert/exam-engine/internal/model"
)

var (
	// ErrNotFound reports a missing session or question.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState reports an operation against a session whose status or
	// mode does not permit it (submit on a terminal session, restart of a
	// non-practice session, and so on).
	ErrInvalidState = errors.New("invalid session state")
	// ErrActiveSessionExists reports that the user already holds an active
	// session and must finish or abandon it first.
	ErrActiveSessionExists = errors.New("active session already exists")
)

// InsufficientPoolError reports a section that cannot supply its quota of
// active questions at session creation time.
type InsufficientPoolError struct {
	Section model.Section
	Need    int
	Got     int
}

func (e *InsufficientPoolError) Error() string {
	return fmt.Sprintf("not enough questions in section %q: need %d, got %d", e.Section, e.Need, e.Got)
}
