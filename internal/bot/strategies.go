package bot

import (
	"math/rand"

	"deadoralive/internal/app"
	"deadoralive/internal/domain"
)

// DefaultWanderChance is the chance a wanderer takes a link each time it is asked.
const DefaultWanderChance = 0.35

// IdleBot never moves.
type IdleBot struct{}

func (b *IdleBot) NextMove(View) (Move, error) { return Move{Stay: true}, nil }
func (b *IdleBot) OnEvent(interface{})         {}

// WanderBot takes a random link now and then.
type WanderBot struct {
	rng    *rand.Rand
	chance float64
}

func NewWanderBot(rng *rand.Rand, chance float64) *WanderBot {
	return &WanderBot{rng: rng, chance: chance}
}

func (b *WanderBot) NextMove(v View) (Move, error) {
	if len(v.Links) == 0 || b.rng.Float64() >= b.chance {
		return Move{Stay: true}, nil
	}
	return Move{Link: v.Links[b.rng.Intn(len(v.Links))]}, nil
}

func (b *WanderBot) OnEvent(interface{}) {}

// RunnerBot scores every link through a rule pipeline and takes the best one.
type RunnerBot struct {
	Tuning Tuning
	Rules  []SelectionRule
	visits map[string]int
}

func NewRunnerBot(tuning Tuning) *RunnerBot {
	return &RunnerBot{Tuning: tuning, Rules: DefaultRules(), visits: make(map[string]int)}
}

func (b *RunnerBot) NextMove(v View) (Move, error) {
	ctx := &SelectionContext{Visits: b.visits, Tuning: b.Tuning}
	for _, link := range v.Links {
		ctx.Candidates = append(ctx.Candidates, Candidate{Link: link, Type: v.DestinationType(link)})
	}
	for _, rule := range b.Rules {
		rule.Apply(ctx)
	}

	best, ok := ctx.Best()
	if !ok {
		return Move{Stay: true}, nil
	}
	if best.Type == domain.RoomDeath && b.Tuning.WaitForDamage && v.Phase != domain.PhaseDamage {
		return Move{Stay: true}, nil
	}
	b.visits[best.Link.Destination]++
	return Move{Link: best.Link}, nil
}

// OnEvent forgets visited rooms when a run ends.
func (b *RunnerBot) OnEvent(event interface{}) {
	if ev, ok := event.(app.Event); ok && ev.Kind == app.EventMatchEnded {
		clear(b.visits)
	}
}
