package app

import (
	"errors"
	"testing"
	"time"

	"deadoralive/internal/domain"
	"deadoralive/internal/rooms"
	"deadoralive/internal/world"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestStartMatchAdmitsOnlinePlayers(t *testing.T) {
	h := newHarness(t)
	h.connect("alice", "bob")
	h.start()

	assert.True(t, h.orch.IsActive())
	assert.Equal(t, domain.PhaseStarting, h.orch.Status().Phase)
	assert.Equal(t, []string{"alice", "bob"}, h.orch.Participants())
	assert.NotEmpty(t, h.orch.Status().RunID)

	room, ok := h.orch.RoomOf("alice")
	require.True(t, ok)
	assert.Equal(t, "room_1", room)

	a, _ := h.world.Avatar("alice")
	assert.Equal(t, *anchorAt(10), a.Location)
	assert.Equal(t, world.ModeAdventure, a.Mode)
	assert.True(t, h.world.RegenerationDisabled("arena"))

	snap := h.lastSaved()
	assert.Equal(t, []string{"Alice", "Bob"}, snap["room_1"])
	assert.Equal(t, []string{}, snap["room_2"])

	started := h.eventsOf(EventMatchStarted)
	require.Len(t, started, 1)
	assert.Equal(t, []string{"alice", "bob"}, started[0].Payload.(MatchStartedPayload).Participants)
	require.NoError(t, h.orch.CheckInvariants())
}

func TestStartMatchPreconditions(t *testing.T) {
	tests := []struct {
		name    string
		opts    []harnessOption
		players []string
		prepare func(h *harness)
		want    error
		reply   string
	}{
		{
			name:    "already running",
			players: []string{"alice"},
			prepare: func(h *harness) { h.start() },
			want:    ErrAlreadyActive,
			reply:   "[DeadOrAlive] A match is already running.",
		},
		{
			name: "room without anchor",
			opts: []harnessOption{func(d *Deps) {
				d.Rooms = rooms.New(
					rooms.Room{ID: "room_1", Type: domain.RoomSafe, Anchor: anchorAt(10)},
					rooms.Room{ID: "room_2", Type: domain.RoomSafe},
				)
			}},
			players: []string{"alice"},
			want:    ErrRoomsNotConfigured,
			reply:   "[DeadOrAlive] Not every room has a location yet.",
		},
		{
			name:    "no teleports",
			opts:    []harnessOption{func(d *Deps) { d.Teleports = teleportsConfigured(false) }},
			players: []string{"alice"},
			want:    ErrTeleportsNotConfigured,
			reply:   "[DeadOrAlive] No teleports are configured.",
		},
		{
			name: "no players",
			want: ErrNoPlayers,
		},
		{
			name: "entry room unknown",
			opts: []harnessOption{func(d *Deps) {
				d.Rooms = rooms.New(rooms.Room{ID: "room_2", Type: domain.RoomSafe, Anchor: anchorAt(20)})
			}},
			players: []string{"alice"},
			want:    ErrEntryRoomUnset,
			reply:   "[DeadOrAlive] The starting room has no location.",
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			h := newHarness(t, test.opts...)
			h.connect(test.players...)
			if test.prepare != nil {
				test.prepare(h)
			}
			saves := len(h.snaps.Calls)
			active := h.orch.IsActive()

			err := h.orch.StartMatch("alice")
			if !errors.Is(err, test.want) {
				t.Fatalf("StartMatch error = %v, want %v", err, test.want)
			}
			assert.Equal(t, active, h.orch.IsActive())
			assert.Len(t, h.snaps.Calls, saves)
			if test.reply != "" {
				assert.Contains(t, h.chatTo("alice"), test.reply)
			}
		})
	}
}

func TestCountdownFollowsAnnouncementAndStartDelay(t *testing.T) {
	h := newHarness(t)
	h.connect("alice")
	h.start()

	h.run(5 * time.Second)
	assert.Contains(t, h.chatTo("alice"), "[DeadOrAlive] Get ready. The countdown is about to begin!")
	assert.Equal(t, domain.PhaseStarting, h.orch.Status().Phase)

	h.run(3 * time.Second)
	st := h.orch.Status()
	assert.Equal(t, domain.PhaseCountdown, st.Phase)
	assert.Equal(t, 10, st.StageDurationSeconds)
	assert.Equal(t, 10, st.RemainingSeconds)
	bar, ok := h.lastProgress()
	require.True(t, ok)
	assert.Equal(t, domain.ProgressBar{Title: "Time left: 0m 10s", Fraction: 1, Color: domain.BarRed, Style: domain.BarSolid}, bar)

	h.run(4 * time.Second)
	assert.Equal(t, 6, h.orch.Status().RemainingSeconds)
	bar, _ = h.lastProgress()
	assert.InDelta(t, 0.6, bar.Fraction, 1e-9)
	assert.Equal(t, "Time left: 0m 6s", bar.Title)

	h.run(6 * time.Second)
	assert.Equal(t, domain.PhaseDamage, h.orch.Status().Phase)
	assert.Equal(t, 0, h.orch.Status().RemainingSeconds)
	bar, _ = h.lastProgress()
	assert.Zero(t, bar.Fraction)
}

func TestDamagePhaseImpairsAndEliminates(t *testing.T) {
	h := newHarness(t)
	h.connect("alice")
	h.start()
	h.run(18 * time.Second)
	require.Equal(t, domain.PhaseDamage, h.orch.Status().Phase)

	h.run(time.Second)
	a, _ := h.world.Avatar("alice")
	assert.Equal(t, 18.0, a.Health)
	assert.Equal(t, 0, a.Amplifier)

	h.run(2 * time.Second)
	a, _ = h.world.Avatar("alice")
	assert.Equal(t, 14.0, a.Health)
	assert.Equal(t, 2, a.Amplifier)

	h.run(8 * time.Second)
	assert.False(t, h.orch.IsActive())

	eliminated := h.eventsOf(EventEliminated)
	require.Len(t, eliminated, 1)
	assert.Equal(t, EliminatedPayload{PlayerID: "alice", Name: "Alice", Reason: EliminatedByDeath}, eliminated[0].Payload)

	ended := h.eventsOf(EventMatchEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, domain.OutcomeFailure, ended[0].Payload.(MatchEndedPayload).Outcome)

	chat := h.chatTo("alice")
	assert.Contains(t, chat, "[DeadOrAlive] Alice has been eliminated!")
	assert.Contains(t, chat, "[DeadOrAlive] The match is over. Nobody made it out.")
	h.snaps.AssertCalled(t, "Delete")
	assert.Zero(t, h.clock.Pending())
}

func TestAdvanceMovesToNextOccupiedRoom(t *testing.T) {
	h := newHarness(t)
	h.connect("alice", "bob", "carol")
	h.start()
	h.run(8 * time.Second)

	h.move("alice", "room_2")
	h.move("carol", "room_2")
	assert.Equal(t, "room_1", h.orch.Status().StageRoom)

	h.move("bob", "ROOM_2")
	st := h.orch.Status()
	assert.Equal(t, "room_2", st.StageRoom)
	assert.Equal(t, 1, st.StageIndex)
	assert.Equal(t, 8, st.StageDurationSeconds)
	assert.Equal(t, 8, st.RemainingSeconds)
	assert.Equal(t, domain.PhaseCountdown, st.Phase)

	assert.Equal(t, []string{"alice", "bob", "carol"}, st.Rooms["room_2"])

	advanced := h.eventsOf(EventStageAdvanced)
	require.Len(t, advanced, 1)
	assert.Equal(t, StageAdvancedPayload{StageIndex: 1, Room: "room_2"}, advanced[0].Payload)
}

func TestJoinWhileConnectedKeepsPlacementAndTimers(t *testing.T) {
	h := newHarness(t)
	h.connect("alice", "bob")
	h.start()
	h.run(8 * time.Second)

	before, _ := h.world.Avatar("alice")
	h.orch.OnJoin("alice")
	after, _ := h.world.Avatar("alice")
	assert.Equal(t, before.Location, after.Location)

	h.move("bob", "room_3")
	h.run(time.Second)
	h.orch.OnJoin("bob")
	assert.Equal(t, 1, h.orch.Status().PendingEliminations)

	h.run(1100 * time.Millisecond)
	assert.False(t, h.orch.IsParticipant("bob"))
	assert.True(t, h.orch.IsParticipant("alice"))
}

func TestAdvanceUsesLexicographicRoomOrder(t *testing.T) {
	h := newHarness(t)
	h.connect("alice", "bob")
	h.start()
	h.run(8 * time.Second)

	h.move("alice", "room_2")
	h.move("bob", "room_10")
	assert.Equal(t, "room_10", h.orch.Status().StageRoom)
}

func TestEmptyEntryRoomBeforeCountdownSkipsStage(t *testing.T) {
	h := newHarness(t)
	h.connect("alice")
	h.start()

	h.move("alice", "room_2")
	assert.Equal(t, "room_2", h.orch.Status().StageRoom)
	assert.Equal(t, domain.PhaseCountdown, h.orch.Status().Phase)

	// The pending announcement must not restart the running countdown.
	h.run(8 * time.Second)
	st := h.orch.Status()
	assert.Equal(t, 8, st.StageDurationSeconds)
	assert.Equal(t, 0, st.RemainingSeconds)
	assert.Equal(t, domain.PhaseDamage, st.Phase)
}

func TestFinishWhenEveryoneReachesFinishRoom(t *testing.T) {
	h := newHarness(t)
	h.connect("alice", "bob")
	h.start()
	h.run(10 * time.Second)

	h.move("alice", "room_finish")
	assert.True(t, h.orch.IsActive())
	h.move("bob", "room_finish")

	assert.False(t, h.orch.IsActive())
	ended := h.eventsOf(EventMatchEnded)
	require.Len(t, ended, 1)
	payload := ended[0].Payload.(MatchEndedPayload)
	assert.Equal(t, domain.OutcomeSuccess, payload.Outcome)
	assert.Equal(t, []string{"Alice", "Bob"}, payload.Winners)
	assert.Contains(t, h.chatTo("bob"), "[DeadOrAlive] The match is over! Winners: Alice, Bob")

	h.snaps.AssertCalled(t, "Delete")
	assert.Zero(t, h.clock.Pending())
	a, _ := h.world.Avatar("alice")
	assert.Equal(t, testLobby, a.Location)
	assert.Equal(t, domain.PhaseInactive, h.orch.Status().Phase)
	assert.Empty(t, h.orch.Participants())

	events := len(h.events)
	h.orch.EndMatch(true, []string{"x"}, true)
	assert.Len(t, h.events, events)
}

func TestAdvanceIntoFinishRoomCrownsItsOccupants(t *testing.T) {
	h := newHarness(t)
	h.connect("alice", "bob")
	h.start()
	h.run(10 * time.Second)

	h.move("alice", "room_finish")
	h.move("bob", "room_3")

	assert.False(t, h.orch.IsActive())
	ended := h.eventsOf(EventMatchEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, []string{"Alice"}, ended[0].Payload.(MatchEndedPayload).Winners)
	assert.Zero(t, h.clock.Pending())
}

func TestDeathRoomEliminatesAfterDelay(t *testing.T) {
	h := newHarness(t)
	h.connect("alice", "bob")
	h.start()
	h.run(8 * time.Second)

	h.move("bob", "room_3")
	assert.Equal(t, 1, h.orch.Status().PendingEliminations)

	h.run(2 * time.Second)
	assert.False(t, h.orch.IsParticipant("bob"))
	assert.True(t, h.orch.IsActive())
	assert.Zero(t, h.orch.Status().PendingEliminations)
	assert.Contains(t, h.chatTo("alice"), "[DeadOrAlive] Bob has been eliminated!")
	assert.Equal(t, []string{}, h.lastSaved()["room_3"])
}

func TestLeavingDeathRoomCancelsElimination(t *testing.T) {
	h := newHarness(t)
	h.connect("alice", "bob")
	h.start()
	h.run(8 * time.Second)

	h.move("alice", "room_3")
	h.run(time.Second)
	h.move("alice", "room_2")
	assert.Zero(t, h.orch.Status().PendingEliminations)

	h.run(3 * time.Second)
	assert.False(t, h.world.IsDead("alice"))
	assert.True(t, h.orch.IsParticipant("alice"))
}

func TestAdvanceDefersWhileEliminationPending(t *testing.T) {
	h := newHarness(t)
	h.connect("alice")
	h.start()
	h.run(8 * time.Second)

	require.Equal(t, domain.PhaseCountdown, h.orch.Status().Phase)

	h.move("alice", "room_3")
	assert.True(t, h.orch.IsActive())
	st := h.orch.Status()
	assert.Equal(t, "room_1", st.StageRoom)
	assert.Equal(t, domain.PhaseResolving, st.Phase)
	assert.Zero(t, st.RemainingSeconds)
	assert.Zero(t, st.StageDurationSeconds)
	assert.Equal(t, 1, st.PendingEliminations)
	assert.Equal(t, world.NoticeProgressHidden, h.notices[len(h.notices)-1].Kind)

	h.run(2 * time.Second)
	assert.False(t, h.orch.IsActive())
	ended := h.eventsOf(EventMatchEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, domain.OutcomeFailure, ended[0].Payload.(MatchEndedPayload).Outcome)
}

func TestDisconnectDuringCountdownAndReturn(t *testing.T) {
	h := newHarness(t)
	h.connect("alice", "bob")
	h.start()
	h.run(12 * time.Second)

	h.world.Disconnect("bob")
	h.orch.OnQuit("bob")
	assert.Equal(t, 1, h.orch.Status().PendingDisconnects)
	assert.Contains(t, h.chatTo("alice"), "[DeadOrAlive] Bob disconnected. They have 0m 6s to come back.")

	h.run(3 * time.Second)
	h.world.Connect("bob", "")
	h.orch.OnJoin("bob")

	assert.Zero(t, h.orch.Status().PendingDisconnects)
	b, _ := h.world.Avatar("bob")
	assert.Equal(t, *anchorAt(10), b.Location)
	assert.Equal(t, world.ModeAdventure, b.Mode)

	h.run(4 * time.Second)
	assert.True(t, h.orch.IsParticipant("bob"))
}

func TestDisconnectTimeoutEliminates(t *testing.T) {
	h := newHarness(t)
	h.connect("alice", "bob")
	h.start()
	h.run(12 * time.Second)

	h.world.Disconnect("bob")
	h.orch.OnQuit("bob")
	h.run(6 * time.Second)

	assert.False(t, h.orch.IsParticipant("bob"))
	assert.True(t, h.orch.IsActive())
	assert.Contains(t, h.chatTo("alice"), "[DeadOrAlive] Bob did not come back in time and was eliminated.")
	eliminated := h.eventsOf(EventEliminated)
	require.Len(t, eliminated, 1)
	assert.Equal(t, EliminatedByDisconnect, eliminated[0].Payload.(EliminatedPayload).Reason)
}

func TestDisconnectDuringDamageEliminatesImmediately(t *testing.T) {
	h := newHarness(t)
	h.connect("alice", "bob")
	h.start()
	h.run(18*time.Second + 500*time.Millisecond)
	require.Equal(t, domain.PhaseDamage, h.orch.Status().Phase)

	h.world.Disconnect("bob")
	h.orch.OnQuit("bob")
	assert.False(t, h.orch.IsParticipant("bob"))
	assert.Zero(t, h.orch.Status().PendingDisconnects)
}

func TestDisconnectBeforeCountdownGetsWholeStage(t *testing.T) {
	h := newHarness(t)
	h.connect("alice", "bob")
	h.start()
	h.run(time.Second)

	h.world.Disconnect("bob")
	h.orch.OnQuit("bob")
	assert.Contains(t, h.chatTo("alice"), "[DeadOrAlive] Bob disconnected. They have 0m 10s to come back.")
}

func TestReconnectIntoDeathRoomRearmsElimination(t *testing.T) {
	h := newHarness(t)
	h.connect("alice", "bob")
	h.start()
	h.run(8 * time.Second)

	h.move("bob", "room_3")
	h.world.Disconnect("bob")
	h.orch.OnQuit("bob")
	st := h.orch.Status()
	assert.Zero(t, st.PendingEliminations)
	assert.Equal(t, 1, st.PendingDisconnects)

	h.world.Connect("bob", "")
	h.orch.OnJoin("bob")
	assert.Equal(t, 1, h.orch.Status().PendingEliminations)

	h.run(2 * time.Second)
	assert.False(t, h.orch.IsParticipant("bob"))
}

func TestCanUseTeleport(t *testing.T) {
	h := newHarness(t)
	h.connect("alice", "bob")

	blocked := "[DeadOrAlive] The match has not started yet."
	assert.False(t, h.orch.CanUseTeleport("alice", "room_1"))
	assert.False(t, h.orch.CanUseTeleport("alice", "room_1"))
	assert.Equal(t, []string{blocked}, h.chatTo("alice"))

	h.start()
	assert.True(t, h.orch.CanUseTeleport("alice", "room_1"))

	locked := "[DeadOrAlive] This door is still locked."
	count := func(id, text string) int {
		n := 0
		for _, line := range h.chatTo(id) {
			if line == text {
				n++
			}
		}
		return n
	}
	assert.False(t, h.orch.CanUseTeleport("alice", "room_2"))
	assert.False(t, h.orch.CanUseTeleport("alice", "room_2"))
	assert.Equal(t, 1, count("alice", locked))
	h.run(time.Second)
	assert.False(t, h.orch.CanUseTeleport("alice", "room_2"))
	assert.Equal(t, 2, count("alice", locked))

	h.connect("carol")
	assert.False(t, h.orch.CanUseTeleport("carol", "room_1"))
	assert.Equal(t, 1, count("carol", "[DeadOrAlive] You are not part of this match."))

	h.bypass["carol"] = true
	assert.True(t, h.orch.CanUseTeleport("carol", "room_3"))
}

func TestOnRespawnSendsOutsidersToLobby(t *testing.T) {
	h := newHarness(t)
	h.connect("alice")

	_, ok := h.orch.OnRespawn("alice")
	assert.False(t, ok)

	h.start()
	h.connect("carol")
	loc, ok := h.orch.OnRespawn("carol")
	assert.True(t, ok)
	assert.Equal(t, testLobby, loc)

	_, ok = h.orch.OnRespawn("alice")
	assert.False(t, ok)
}

func TestShutdownEndsSilently(t *testing.T) {
	h := newHarness(t)
	h.connect("alice")
	h.start()
	h.run(9 * time.Second)

	h.orch.Shutdown()
	assert.False(t, h.orch.IsActive())
	assert.NotContains(t, h.chatTo("alice"), "[DeadOrAlive] The match is over. Nobody made it out.")
	h.snaps.AssertCalled(t, "Delete")
	assert.Zero(t, h.clock.Pending())

	var hidden bool
	for _, n := range h.notices {
		hidden = hidden || n.Kind == world.NoticeProgressHidden
	}
	assert.True(t, hidden)
}

func TestReconfigureRefusedWhileActive(t *testing.T) {
	h := newHarness(t)
	h.connect("alice")
	h.start()

	s := testSettings()
	s.InitialTimeSeconds = 60
	err := h.orch.Reconfigure(s, testRooms(), teleportsConfigured(true), h.orch.deps.Messages)
	assert.ErrorIs(t, err, ErrAlreadyActive)
	assert.Equal(t, 10, h.orch.Settings().InitialTimeSeconds)

	h.orch.Shutdown()
	require.NoError(t, h.orch.Reconfigure(s, testRooms(), teleportsConfigured(true), h.orch.deps.Messages))
	assert.Equal(t, 60, h.orch.Settings().InitialTimeSeconds)
}

func TestSnapshotFailureKeepsState(t *testing.T) {
	h := newHarness(t)
	h.snaps.ExpectedCalls = nil
	h.snaps.On("Save", mock.Anything).Return(errors.New("disk full"))
	h.snaps.On("Delete").Return(nil)
	h.connect("alice", "bob")
	h.start()

	h.move("alice", "room_2")
	room, _ := h.orch.RoomOf("alice")
	assert.Equal(t, "room_2", room)
	require.NoError(t, h.orch.CheckInvariants())
}

func TestMembershipStaysPartitioned(t *testing.T) {
	players := []string{"alice", "bob", "carol"}
	roomIDs := []string{"room_1", "room_2", "room_10", "room_3", "room_finish"}

	rapid.Check(t, func(rt *rapid.T) {
		h := newHarness(t)
		h.connect(players...)
		h.start()

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps && h.orch.IsActive(); i++ {
			id := rapid.SampledFrom(players).Draw(rt, "player")
			switch rapid.IntRange(0, 3).Draw(rt, "op") {
			case 0:
				room := rapid.SampledFrom(roomIDs).Draw(rt, "room")
				if h.world.IsOnline(id) {
					h.move(id, room)
				}
			case 1:
				h.run(time.Duration(rapid.IntRange(1, 30).Draw(rt, "tenths")) * 100 * time.Millisecond)
			case 2:
				if h.world.IsOnline(id) {
					h.world.Disconnect(id)
					h.orch.OnQuit(id)
				}
			case 3:
				if !h.world.IsOnline(id) {
					h.world.Connect(id, "")
					h.orch.OnJoin(id)
				}
			}

			if err := h.orch.CheckInvariants(); err != nil {
				rt.Fatalf("step %d: %v", i, err)
			}
			st := h.orch.Status()
			if st.PendingDisconnects+st.PendingEliminations > len(h.orch.Participants()) {
				rt.Fatalf("step %d: %d timers for %d participants", i, st.PendingDisconnects+st.PendingEliminations, len(h.orch.Participants()))
			}
		}
	})
}
