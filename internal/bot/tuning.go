package bot

import "deadoralive/internal/domain"

// Tuning weighs destinations for the runner.
type Tuning struct {
	FinishScore  float64
	SafeScore    float64
	UnknownScore float64
	DeathScore   float64
	// RevisitPenalty is subtracted once per earlier visit to the destination.
	RevisitPenalty float64
	// WaitForDamage keeps the runner in place during the countdown when every link leads to death.
	WaitForDamage bool
}

// DefaultTuning heads for the finish, prefers unexplored safe rooms and avoids death rooms.
var DefaultTuning = Tuning{
	FinishScore:    100,
	SafeScore:      10,
	UnknownScore:   0,
	DeathScore:     -50,
	RevisitPenalty: 4,
	WaitForDamage:  true,
}

// ScoreType returns the base score for a room type.
func (t Tuning) ScoreType(rt domain.RoomType) float64 {
	switch rt {
	case domain.RoomFinish:
		return t.FinishScore
	case domain.RoomSafe:
		return t.SafeScore
	case domain.RoomDeath:
		return t.DeathScore
	default:
		return t.UnknownScore
	}
}
