package world

import "deadoralive/internal/domain"

// NoticeKind identifies an effect delivered to clients.
type NoticeKind string

const (
	NoticeTeleport       NoticeKind = "teleport"
	NoticeGameMode       NoticeKind = "game_mode"
	NoticeHealth         NoticeKind = "health"
	NoticeEffect         NoticeKind = "effect"
	NoticeChat           NoticeKind = "chat"
	NoticeTitle          NoticeKind = "title"
	NoticeProgress       NoticeKind = "progress"
	NoticeProgressHidden NoticeKind = "progress_hidden"
)

// Notice is an outbound effect with optional targeted recipients.
type Notice struct {
	Kind       NoticeKind
	Payload    any
	Recipients []string // player ids; empty means every connected player
}

// Outbox delivers notices to clients.
type Outbox interface {
	Deliver(n Notice)
}

// OutboxFunc adapts a function to Outbox.
type OutboxFunc func(n Notice)

func (f OutboxFunc) Deliver(n Notice) { f(n) }

type TeleportPayload struct {
	Location domain.Location `json:"location"`
}

type GameModePayload struct {
	Mode string `json:"mode"`
}

type HealthPayload struct {
	Health float64 `json:"health"`
	Dead   bool    `json:"dead"`
}

type EffectPayload struct {
	Effect string `json:"effect"`
	// Amplifier is -1 when the effect is removed.
	Amplifier int `json:"amplifier"`
}

type ChatPayload struct {
	Text string `json:"text"`
}

type TitlePayload struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

// EventKind identifies something that happened to an avatar.
type EventKind string

const (
	EventDamage EventKind = "damage"
	EventDeath  EventKind = "death"
)

// Event is queued by the world and drained by the match loop.
type Event struct {
	Kind     EventKind
	PlayerID string
	// Amount is the raw damage for EventDamage.
	Amount float64
}
