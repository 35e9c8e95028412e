package bot

import (
	"deadoralive/internal/domain"
	"deadoralive/internal/teleport"
)

// Candidate is one link the runner could take.
type Candidate struct {
	Link  teleport.Point
	Type  domain.RoomType
	Score float64
}

// SelectionContext holds the state for the link selection pipeline.
type SelectionContext struct {
	Candidates []Candidate
	Visits     map[string]int
	Tuning     Tuning
}

// SelectionRule represents a logic unit that adjusts candidate scores.
type SelectionRule interface {
	Name() string
	Apply(ctx *SelectionContext)
}

// RoomTypeRule scores each candidate by where it leads.
type RoomTypeRule struct{}

func (r *RoomTypeRule) Name() string { return "RoomType" }

func (r *RoomTypeRule) Apply(ctx *SelectionContext) {
	for i := range ctx.Candidates {
		ctx.Candidates[i].Score += ctx.Tuning.ScoreType(ctx.Candidates[i].Type)
	}
}

// NoveltyRule penalizes rooms the bot has already been sent to.
type NoveltyRule struct{}

func (r *NoveltyRule) Name() string { return "Novelty" }

func (r *NoveltyRule) Apply(ctx *SelectionContext) {
	for i := range ctx.Candidates {
		n := ctx.Visits[ctx.Candidates[i].Link.Destination]
		ctx.Candidates[i].Score -= float64(n) * ctx.Tuning.RevisitPenalty
	}
}

// DefaultRules is the runner's pipeline.
func DefaultRules() []SelectionRule {
	return []SelectionRule{&RoomTypeRule{}, &NoveltyRule{}}
}

// Best returns the highest scoring candidate. Ties keep the earlier one.
func (ctx *SelectionContext) Best() (Candidate, bool) {
	if len(ctx.Candidates) == 0 {
		return Candidate{}, false
	}
	best := ctx.Candidates[0]
	for _, c := range ctx.Candidates[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return best, true
}
