package domain

import (
	"fmt"
	"math"
)

// Phase represents the lifecycle stage of a match.
type Phase string

const (
	// PhaseInactive means no match is running.
	PhaseInactive Phase = "inactive"
	// PhaseStarting covers the announcement and the start delay before a countdown.
	PhaseStarting Phase = "starting"
	// PhaseCountdown is the timed part of a stage.
	PhaseCountdown Phase = "countdown"
	// PhaseDamage applies periodic damage to whoever lingers in the stage room.
	PhaseDamage Phase = "damage"
	// PhaseResolving waits for pending eliminations before the next stage is chosen.
	PhaseResolving Phase = "resolving"
)

// Outcome is how a match ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// RawUnitsPerHeart converts hearts to raw damage units.
const RawUnitsPerHeart = 2

// MaxHealth is the full health of an avatar in raw units.
const MaxHealth = 20

// StageDuration returns the countdown length in seconds for stage index n.
func StageDuration(initialSeconds, decrementSeconds, n int) int {
	d := initialSeconds - n*decrementSeconds
	if d < 1 {
		return 1
	}
	return d
}

// ProgressFraction is the indicator fill for remaining/total, clamped to [0,1].
func ProgressFraction(remaining, total int) float64 {
	if total <= 0 {
		return 0
	}
	f := float64(remaining) / float64(total)
	return math.Max(0, math.Min(1, f))
}

// FormatTime renders seconds as "Xm Ys".
func FormatTime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}

// ImpairmentAmplifier maps hearts lost to a slowness amplifier.
func ImpairmentAmplifier(heartsLost float64) int {
	amp := int(math.Floor(heartsLost)) - 1
	if amp < 0 {
		return 0
	}
	return amp
}

// Participant is a player tracked by an active match.
type Participant struct {
	ID string
	// Name is the display name captured at admission, used when the player is offline.
	Name       string
	HeartsLost float64
	// Disconnected is set while a disconnect-elimination timer is outstanding.
	Disconnected bool
	// QuitLocation is where the player stood when they disconnected.
	QuitLocation *Location
}

// Accrue adds raw damage to the hearts lost and returns the new impairment amplifier.
func (p *Participant) Accrue(rawDamage float64) int {
	if rawDamage > 0 {
		p.HeartsLost += rawDamage / RawUnitsPerHeart
	}
	return ImpairmentAmplifier(p.HeartsLost)
}

// Impaired reports whether an impairment effect has been applied.
func (p *Participant) Impaired() bool {
	return p.HeartsLost > 0
}
