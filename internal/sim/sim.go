// Package sim runs a complete match offline: bot agents play against the in-memory avatar world on
// a virtual clock, so a run of several minutes finishes in milliseconds.
package sim

import (
	"context"
	"math/rand"
	"time"

	"deadoralive/internal/app"
	"deadoralive/internal/bot"
	"deadoralive/internal/config"
	"deadoralive/internal/domain"
	"deadoralive/internal/messages"
	"deadoralive/internal/rooms"
	"deadoralive/internal/scheduler"
	"deadoralive/internal/snapshot"
	"deadoralive/internal/teleport"
	"deadoralive/internal/world"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/rotisserie/eris"
)

const (
	DefaultThink       = time.Second
	DefaultMaxDuration = 30 * time.Minute
)

// Config tunes a simulation run.
type Config struct {
	Players int
	Seed    int64
	// Level is used for roster entries without a level of their own.
	Level       bot.BotLevel
	Think       time.Duration
	MaxDuration time.Duration
	Origin      time.Time
}

// Report summarizes a finished run.
type Report struct {
	RunID      string
	Success    bool
	Winners    []string
	Stages     int
	Eliminated []string
	Elapsed    time.Duration
	TimedOut   bool
}

// Simulator owns one offline match.
type Simulator struct {
	cfg      Config
	settings config.Settings
	logger   runtime.Logger
	clock    *scheduler.Ticker
	world    *world.World
	orch     *app.Orchestrator
	rooms    *rooms.Catalog
	graph    *teleport.Graph
	agents   []*bot.Agent
	report   Report
	ended    bool
}

// New loads the catalogs named by settings and prepares cfg.Players agents.
func New(logger runtime.Logger, settings config.Settings, roster *bot.Roster, cfg Config) (*Simulator, error) {
	if cfg.Players <= 0 {
		return nil, eris.New("at least one player is required")
	}
	if cfg.Think <= 0 {
		cfg.Think = DefaultThink
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = DefaultMaxDuration
	}
	if cfg.Origin.IsZero() {
		cfg.Origin = time.Unix(0, 0).UTC()
	}
	if roster == nil {
		roster = &bot.Roster{}
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	msgs, err := messages.Load(logger, settings.MessagesDir(), settings.Language)
	if err != nil {
		return nil, eris.Wrap(err, "failed to load messages")
	}
	rc, err := rooms.Load(settings.RoomsPath())
	if err != nil {
		return nil, eris.Wrap(err, "failed to load rooms")
	}
	graph, err := teleport.Load(settings.TeleportsPath(), rc, msgs, rng)
	if err != nil {
		return nil, eris.Wrap(err, "failed to load teleports")
	}

	s := &Simulator{
		cfg:      cfg,
		settings: settings,
		logger:   logger,
		clock:    scheduler.NewTicker(cfg.Origin),
		rooms:    rc,
		graph:    graph,
	}

	opts := world.Options{}
	if loc, ok := settings.LobbyLocation(); ok {
		opts.Lobby = &loc
	}
	if loc, ok := settings.WorldSpawnLocation(); ok {
		opts.WorldSpawn = &loc
	}
	s.world = world.New(world.OutboxFunc(s.onNotice), opts)
	s.orch = app.NewOrchestrator(app.Deps{
		Rooms:     rc,
		Teleports: graph,
		Messages:  msgs,
		World:     s.world,
		Snapshots: snapshot.NewFileStore(settings.SnapshotPath()),
		Scheduler: s.clock,
		Logger:    logger,
		OnEvent:   s.onEvent,
	}, settings)

	for i := 0; i < cfg.Players; i++ {
		identity := roster.Identity(i)
		level := cfg.Level
		if identity.Level != "" {
			if level, err = bot.ParseBotLevel(identity.Level); err != nil {
				return nil, err
			}
		}
		brain, err := bot.NewBrain(level, rand.New(rand.NewSource(rng.Int63())))
		if err != nil {
			return nil, err
		}
		s.agents = append(s.agents, &bot.Agent{ID: identity.UserID, Name: identity.DisplayName, Strategy: brain})
	}
	return s, nil
}

// Orchestrator exposes the match for inspection.
func (s *Simulator) Orchestrator() *app.Orchestrator { return s.orch }

// World exposes the avatar world for inspection.
func (s *Simulator) World() *world.World { return s.world }

// Run connects every agent, starts the match and steps the clock until it ends.
// A run that outlasts MaxDuration is shut down and reported as timed out.
func (s *Simulator) Run(ctx context.Context) (Report, error) {
	for _, agent := range s.agents {
		s.world.Connect(agent.ID, agent.Name)
	}
	if err := s.orch.StartMatch(""); err != nil {
		return Report{}, eris.Wrap(err, "failed to start match")
	}

	step := s.settings.TickInterval()
	start := s.clock.Now()
	var sinceThink time.Duration
	for !s.ended {
		if err := ctx.Err(); err != nil {
			s.orch.Shutdown()
			return s.report, err
		}
		if s.clock.Now().Sub(start) >= s.cfg.MaxDuration {
			s.logger.Warn("Run: no result after %s, shutting down", s.cfg.MaxDuration)
			s.orch.Shutdown()
			s.report.TimedOut = true
			break
		}

		s.clock.Advance(step)
		s.world.Tick(step)
		s.drain()

		sinceThink += step
		if sinceThink >= s.cfg.Think {
			sinceThink = 0
			s.think()
			s.respawnDead()
		}
	}
	s.report.Elapsed = s.clock.Now().Sub(start)
	return s.report, nil
}

// think asks every live participant for a move and applies it.
func (s *Simulator) think() {
	st := s.orch.Status()
	for _, agent := range s.agents {
		if !s.orch.IsActive() {
			return
		}
		if !s.orch.IsParticipant(agent.ID) || s.world.IsDead(agent.ID) {
			continue
		}
		room, _ := s.orch.RoomOf(agent.ID)
		view := bot.View{
			PlayerID:     agent.ID,
			Room:         room,
			StageRoom:    st.StageRoom,
			Phase:        st.Phase,
			StageSeconds: st.StageDurationSeconds,
			Remaining:    st.RemainingSeconds,
			Links:        s.graph.Links(room),
			RoomType:     s.rooms.GetRoomType,
		}
		move, err := agent.Play(view)
		if err != nil {
			s.logger.Warn("think: agent %s failed: %v", agent.ID, err)
			continue
		}
		if move.Stay {
			continue
		}
		s.walk(agent.ID, move.Link)
		st = s.orch.Status()
	}
}

// walk steps the agent onto the link's trigger block.
func (s *Simulator) walk(playerID string, link teleport.Point) {
	to := link.Block.Centered()
	from, ok := s.world.Move(playerID, to)
	if !ok {
		return
	}
	at, _ := s.world.LocationOf(playerID)
	if s.graph.OnPlayerMove(playerID, from, at, s.orch, s.world) {
		s.logger.Debug("walk: %s took %s/%s to %s", playerID, link.Origin, link.Key, link.Destination)
	}
	s.drain()
}

// respawnDead revives dead avatars the way a client respawn request would.
func (s *Simulator) respawnDead() {
	for _, agent := range s.agents {
		if !s.world.IsDead(agent.ID) {
			continue
		}
		at, ok := s.orch.OnRespawn(agent.ID)
		if !ok {
			if at, ok = s.world.LobbyLocation(); !ok {
				at, _ = s.world.WorldSpawn()
			}
		}
		s.world.Respawn(agent.ID, at)
	}
}

func (s *Simulator) drain() {
	for {
		evs := s.world.Drain()
		if len(evs) == 0 {
			return
		}
		for _, ev := range evs {
			switch ev.Kind {
			case world.EventDamage:
				s.orch.OnDamage(ev.PlayerID, ev.Amount)
			case world.EventDeath:
				s.orch.OnDeath(ev.PlayerID)
			}
		}
	}
}

func (s *Simulator) onEvent(ev app.Event) {
	switch p := ev.Payload.(type) {
	case app.EliminatedPayload:
		s.report.Eliminated = append(s.report.Eliminated, p.Name)
		s.logger.Info("Eliminated: %s (%s)", p.Name, p.Reason)
	case app.StageAdvancedPayload:
		s.logger.Info("Stage %d: %s", p.StageIndex, p.Room)
	case app.MatchEndedPayload:
		s.report.RunID = p.RunID
		s.report.Success = p.Outcome == domain.OutcomeSuccess
		s.report.Winners = p.Winners
		s.report.Stages = p.Stages
		s.ended = true
	}
	for _, agent := range s.agents {
		agent.OnGameEvent(ev)
	}
}

func (s *Simulator) onNotice(n world.Notice) {
	if p, ok := n.Payload.(world.ChatPayload); ok && len(n.Recipients) == 0 {
		s.logger.Debug("broadcast: %s", p.Text)
	}
}
