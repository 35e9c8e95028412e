package app

import "deadoralive/internal/domain"

// EventKind identifies lifecycle events for the host.
type EventKind string

const (
	EventMatchStarted  EventKind = "match_started"
	EventPhaseChanged  EventKind = "phase_changed"
	EventStageAdvanced EventKind = "stage_advanced"
	EventEliminated    EventKind = "eliminated"
	EventMatchEnded    EventKind = "match_ended"
)

// Event is an orchestrator lifecycle event with optional targeted recipients.
type Event struct {
	Kind       EventKind
	Payload    any
	Recipients []string // player ids; empty means broadcast
}

type MatchStartedPayload struct {
	RunID        string
	EntryRoom    string
	Participants []string
}

type PhaseChangedPayload struct {
	Phase domain.Phase
	Room  string
}

type StageAdvancedPayload struct {
	StageIndex int
	Room       string
}

// EliminationReason says why a participant left the match.
type EliminationReason string

const (
	EliminatedByDeath      EliminationReason = "death"
	EliminatedByDisconnect EliminationReason = "disconnect"
)

type EliminatedPayload struct {
	PlayerID string
	Name     string
	Reason   EliminationReason
}

type MatchEndedPayload struct {
	RunID   string
	Outcome domain.Outcome
	Winners []string
	Stages  int
}
