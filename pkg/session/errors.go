package session

import (
	"errors"
	"fmt"
)

var (
	// ErrResumeNotFound means no session exists for the given id.
	ErrResumeNotFound = errors.New("session not found")

	// ErrResumeExpired means the session's TTL has passed.
	ErrResumeExpired = errors.New("session expired")

	// ErrResumeQuotaExceeded means the session has been resumed the maximum
	// number of times.
	ErrResumeQuotaExceeded = errors.New("session resume quota exceeded")
)

// ResumeError wraps a resume rejection with the session id. Unwraps to one of
// the sentinel errors above.
type ResumeError struct {
	SessionID string
	Err       error
}

func (e *ResumeError) Error() string {
	return fmt.Sprintf("resume %s: %s", e.SessionID, e.Err)
}

func (e *ResumeError) Unwrap() error { return e.Err }
