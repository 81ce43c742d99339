// Package session tracks ingestion runs and their terminal outcome.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/mbd888/fraudsight/internal/idgen"
)

var (
	ErrNotFound = errors.New("session not found")
	// ErrTerminal is returned when a completed or failed session is asked
	// to change state again.
	ErrTerminal = errors.New("session already terminal")
)

// Status is the session lifecycle state. PROCESSING moves to exactly one of
// COMPLETED or FAILED, once.
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Session is one ingestion run.
type Session struct {
	ID         string `json:"id"`
	Source     string `json:"source"` // file name or stream label
	IngestedBy string `json:"ingestedBy,omitempty"`
	FileSize   int64  `json:"fileSize,omitempty"`

	TotalRows             int `json:"totalRows"`
	ProcessedRows         int `json:"processedRows"` // committed rows only; duplicates and errors count separately
	FraudDetected         int `json:"fraudDetected"`
	ExplanationsGenerated int `json:"explanationsGenerated"`
	DuplicatesSkipped     int `json:"duplicatesSkipped"`
	ErrorCount            int `json:"errorCount"`

	// Errors holds the retained row error descriptions, capped by the
	// pipeline's report limit.
	Errors []string `json:"errors,omitempty"`

	Status       Status     `json:"status"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// New creates a session in the PROCESSING state.
func New(source, ingestedBy string, fileSize int64) *Session {
	return &Session{
		ID:         idgen.WithPrefix("ses_"),
		Source:     source,
		IngestedBy: ingestedBy,
		FileSize:   fileSize,
		Status:     StatusProcessing,
		StartedAt:  time.Now().UTC(),
	}
}

// Terminal reports whether the session reached a final state.
func (s *Session) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// Complete marks the session COMPLETED. Fails if already terminal.
func (s *Session) Complete(at time.Time) error {
	if s.Terminal() {
		return ErrTerminal
	}
	s.Status = StatusCompleted
	s.CompletedAt = &at
	return nil
}

// Fail marks the session FAILED with a reason. Fails if already terminal.
func (s *Session) Fail(reason string, at time.Time) error {
	if s.Terminal() {
		return ErrTerminal
	}
	s.Status = StatusFailed
	s.ErrorMessage = reason
	s.CompletedAt = &at
	return nil
}

// Store persists sessions.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Update(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	// List returns sessions newest first.
	List(ctx context.Context, limit int) ([]*Session, error)
}
