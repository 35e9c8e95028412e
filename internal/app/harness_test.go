package app

import (
	"slices"
	"strings"
	"testing"
	"time"

	"deadoralive/internal/config"
	"deadoralive/internal/domain"
	"deadoralive/internal/messages"
	"deadoralive/internal/rooms"
	"deadoralive/internal/scheduler"
	"deadoralive/internal/world"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} { return nil }

type mockSnapshots struct {
	mock.Mock
}

func (m *mockSnapshots) Save(rooms map[string][]string) error {
	return m.Called(rooms).Error(0)
}

func (m *mockSnapshots) Delete() error {
	return m.Called().Error(0)
}

type teleportsConfigured bool

func (t teleportsConfigured) HasConfiguredTeleports() bool { return bool(t) }

var (
	testLobby = domain.Location{World: "lobby", X: 0.5, Y: 80, Z: 0.5}
	anchorAt  = func(x float64) *domain.Location {
		return &domain.Location{World: "arena", X: x, Y: 64, Z: 10}
	}
)

func testRooms() *rooms.Catalog {
	return rooms.New(
		rooms.Room{ID: "room_1", Type: domain.RoomSafe, Anchor: anchorAt(10)},
		rooms.Room{ID: "room_2", Type: domain.RoomSafe, Anchor: anchorAt(20)},
		rooms.Room{ID: "room_10", Type: domain.RoomSafe, Anchor: anchorAt(30)},
		rooms.Room{ID: "room_3", Type: domain.RoomDeath, Anchor: anchorAt(40)},
		rooms.Room{ID: "room_finish", Type: domain.RoomFinish, Anchor: anchorAt(50)},
	)
}

func testSettings() config.Settings {
	s := config.Default()
	s.InitialTimeSeconds = 10
	s.TimeDecrementSeconds = 2
	s.DamageIntervalSeconds = 1
	s.DamageHearts = 1
	s.StartDelaySeconds = 3
	s.DeathDelaySeconds = 2
	s.EntryRoom = "room_1"
	return s
}

// harness drives an orchestrator the way the match loop does.
type harness struct {
	t       *testing.T
	orch    *Orchestrator
	world   *world.World
	clock   *scheduler.Ticker
	snaps   *mockSnapshots
	events  []Event
	notices []world.Notice
	bypass  map[string]bool
}

type harnessOption func(*Deps)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	h := &harness{t: t, bypass: map[string]bool{}}
	lobby := testLobby
	h.world = world.New(world.OutboxFunc(func(n world.Notice) {
		h.notices = append(h.notices, n)
	}), world.Options{Lobby: &lobby})
	h.clock = scheduler.NewTicker(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	h.snaps = &mockSnapshots{}
	h.snaps.On("Save", mock.Anything).Return(nil).Maybe()
	h.snaps.On("Delete").Return(nil).Maybe()

	msgs, err := messages.Load(noopLogger{}, t.TempDir(), "en")
	require.NoError(t, err)

	deps := Deps{
		Rooms:     testRooms(),
		Teleports: teleportsConfigured(true),
		Messages:  msgs,
		World:     h.world,
		Snapshots: h.snaps,
		Scheduler: h.clock,
		Logger:    noopLogger{},
		Bypass:    func(id string) bool { return h.bypass[id] },
		OnEvent:   func(ev Event) { h.events = append(h.events, ev) },
	}
	for _, opt := range opts {
		opt(&deps)
	}
	h.orch = NewOrchestrator(deps, testSettings())
	return h
}

func (h *harness) connect(ids ...string) {
	for _, id := range ids {
		h.world.Connect(id, strings.ToUpper(id[:1])+id[1:])
	}
}

func (h *harness) start() {
	h.t.Helper()
	require.NoError(h.t, h.orch.StartMatch(""))
}

// run advances the clock in small steps, feeding world events back like the match loop.
func (h *harness) run(d time.Duration) {
	const step = 100 * time.Millisecond
	for elapsed := time.Duration(0); elapsed < d; elapsed += step {
		h.clock.Advance(step)
		h.world.Tick(step)
		h.drain()
	}
}

func (h *harness) drain() {
	for {
		evs := h.world.Drain()
		if len(evs) == 0 {
			return
		}
		for _, ev := range evs {
			switch ev.Kind {
			case world.EventDamage:
				h.orch.OnDamage(ev.PlayerID, ev.Amount)
			case world.EventDeath:
				h.orch.OnDeath(ev.PlayerID)
			}
		}
	}
}

func (h *harness) move(id, room string) {
	h.orch.HandleRoomTransition(id, room)
	h.drain()
}

// chatTo returns the chat lines delivered to a player, broadcasts included.
func (h *harness) chatTo(id string) []string {
	var out []string
	for _, n := range h.notices {
		if n.Kind != world.NoticeChat {
			continue
		}
		if len(n.Recipients) > 0 && !slices.Contains(n.Recipients, id) {
			continue
		}
		out = append(out, n.Payload.(world.ChatPayload).Text)
	}
	return out
}

func (h *harness) lastProgress() (domain.ProgressBar, bool) {
	for i := len(h.notices) - 1; i >= 0; i-- {
		if h.notices[i].Kind == world.NoticeProgress {
			return h.notices[i].Payload.(domain.ProgressBar), true
		}
	}
	return domain.ProgressBar{}, false
}

func (h *harness) eventsOf(kind EventKind) []Event {
	var out []Event
	for _, ev := range h.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func (h *harness) lastSaved() map[string][]string {
	h.t.Helper()
	var last map[string][]string
	for _, c := range h.snaps.Calls {
		if c.Method == "Save" {
			last = c.Arguments.Get(0).(map[string][]string)
		}
	}
	require.NotNil(h.t, last, "no snapshot saved")
	return last
}
