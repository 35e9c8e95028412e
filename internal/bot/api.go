package bot

import (
	"deadoralive/internal/domain"
	"deadoralive/internal/teleport"
)

// Move represents the decision made by the AI.
type Move struct {
	Stay bool
	Link teleport.Point
}

// Brain is the interface that all bot strategies must implement.
type Brain interface {
	NextMove(view View) (Move, error)
	OnEvent(event interface{})
}

// View is what a bot knows when it decides.
type View struct {
	PlayerID     string
	Room         string
	StageRoom    string
	Phase        domain.Phase
	StageSeconds int
	Remaining    int
	Links        []teleport.Point
	// RoomType classifies a room id. Nil treats every room as unknown.
	RoomType func(id string) domain.RoomType
}

// CanMove reports whether a teleport out of the bot's room would be accepted.
func (v View) CanMove() bool {
	if v.Room == "" || v.Room != v.StageRoom || len(v.Links) == 0 {
		return false
	}
	return v.Phase == domain.PhaseCountdown || v.Phase == domain.PhaseDamage
}

// DestinationType classifies where a link leads. The death-room alias is always a death room.
func (v View) DestinationType(p teleport.Point) domain.RoomType {
	if p.Destination == domain.DeathRoomID {
		return domain.RoomDeath
	}
	if v.RoomType == nil {
		return domain.RoomUnknown
	}
	return v.RoomType(p.Destination)
}
