package bot

import (
	"fmt"
	"math/rand"
	"strings"
)

// BotLevel selects a strategy.
type BotLevel int

const (
	BotLevelIdle BotLevel = iota
	BotLevelWander
	BotLevelRunner
)

func (l BotLevel) String() string {
	switch l {
	case BotLevelIdle:
		return "idle"
	case BotLevelWander:
		return "wander"
	case BotLevelRunner:
		return "runner"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseBotLevel maps a level name to a BotLevel.
func ParseBotLevel(name string) (BotLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "idle":
		return BotLevelIdle, nil
	case "wander", "":
		return BotLevelWander, nil
	case "runner":
		return BotLevelRunner, nil
	default:
		return 0, fmt.Errorf("unknown bot level: %q", name)
	}
}

// NewBrain creates a new AI brain based on the specified level. rng drives random choices.
func NewBrain(level BotLevel, rng *rand.Rand) (Brain, error) {
	switch level {
	case BotLevelIdle:
		return &IdleBot{}, nil
	case BotLevelWander:
		if rng == nil {
			return nil, fmt.Errorf("wander bot needs a random source")
		}
		return NewWanderBot(rng, DefaultWanderChance), nil
	case BotLevelRunner:
		return NewRunnerBot(DefaultTuning), nil
	default:
		return nil, fmt.Errorf("unknown bot level: %d", level)
	}
}
