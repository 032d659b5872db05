// Package session persists sub-agent conversation state so a finished
// delegation can be continued later, within an age and resume-count limit.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/jg-phare/warren/pkg/llm"
)

const (
	// DefaultTTL is how long a session stays resumable after creation.
	DefaultTTL = 24 * time.Hour
	// DefaultMaxResumes bounds how many times one session may be continued.
	DefaultMaxResumes = 10
)

// Session is the persisted state of a finished sub-agent execution.
type Session struct {
	ID            string            `json:"id"`
	AgentType     string            `json:"agent_type"`
	CreatedAt     time.Time         `json:"created_at"`
	ExpiresAt     time.Time         `json:"expires_at"`
	ResumeCount   int               `json:"resume_count"`
	MaxResumes    int               `json:"max_resumes"`
	LastResumedAt time.Time         `json:"last_resumed_at,omitzero"`
	Messages      []llm.ChatMessage `json:"messages,omitempty"`
}

// New creates a session record for an agent type. Non-positive ttl or
// maxResumes fall back to the defaults.
func New(agentType string, ttl time.Duration, maxResumes int) *Session {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxResumes <= 0 {
		maxResumes = DefaultMaxResumes
	}
	now := time.Now()
	return &Session{
		ID:         uuid.New().String(),
		AgentType:  agentType,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		MaxResumes: maxResumes,
	}
}

// Validate decides whether a session may be resumed at the given instant.
// Pure: it never mutates the session. Returns nil when resumable, otherwise
// a ResumeError distinguishing not-found, expired, and quota-exceeded.
func Validate(s *Session, now time.Time) error {
	if s == nil {
		return &ResumeError{Err: ErrResumeNotFound}
	}
	if !now.Before(s.ExpiresAt) {
		return &ResumeError{SessionID: s.ID, Err: ErrResumeExpired}
	}
	if s.ResumeCount >= s.MaxResumes {
		return &ResumeError{SessionID: s.ID, Err: ErrResumeQuotaExceeded}
	}
	return nil
}
