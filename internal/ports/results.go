package ports

import (
	"context"
	"time"
)

// MatchResult is the record kept for a finished match.
type MatchResult struct {
	RunID   string    `json:"run_id"`
	Success bool      `json:"success"`
	Winners []string  `json:"winners"`
	Stages  int       `json:"stages"`
	EndedAt time.Time `json:"ended_at"`
}

// ResultPort stores finished match results.
type ResultPort interface {
	RecordResult(ctx context.Context, result MatchResult) error
}
