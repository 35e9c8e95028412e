package app

import (
	"errors"
	"sort"
	"strings"
	"time"

	"deadoralive/internal/config"
	"deadoralive/internal/domain"
	"deadoralive/internal/ports"
	"deadoralive/internal/scheduler"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"
)

var (
	ErrAlreadyActive          = errors.New("match already active")
	ErrRoomsNotConfigured     = errors.New("not every room has an anchor")
	ErrTeleportsNotConfigured = errors.New("no teleport links configured")
	ErrNoPlayers              = errors.New("no players online")
	ErrEntryRoomUnset         = errors.New("entry room has no anchor")
)

// Deps are the collaborators an Orchestrator works with.
type Deps struct {
	Rooms     ports.RoomCatalog
	Teleports ports.TeleportGraph
	Messages  ports.MessageCatalog
	World     ports.WorldPort
	Snapshots ports.SnapshotStore
	Scheduler scheduler.Scheduler
	Logger    runtime.Logger
	// Bypass reports whether a player may use any teleport. Nil means nobody may.
	Bypass func(playerID string) bool
	// OnEvent receives lifecycle events. It must not call back into the orchestrator.
	OnEvent func(Event)
}

// Orchestrator owns the live match: its phases, timers, and who stands in which room.
// It is not safe for concurrent use; every call must come from the match loop.
type Orchestrator struct {
	deps     Deps
	settings config.Settings

	active               bool
	phase                domain.Phase
	runID                string
	stageIndex           int
	currentStageRoom     string
	stageDurationSeconds int
	remainingSeconds     int

	membership   *domain.Membership
	participants map[string]*domain.Participant
	notified     map[string]struct{}
	warnedAt     map[string]time.Time

	bar *domain.ProgressBar

	announceTask       *scheduler.Task
	countdownStartTask *scheduler.Task
	countdownTask      *scheduler.Task
	damageTask         *scheduler.Task
	deathTimers        map[string]*scheduler.Task
	disconnectTimers   map[string]*scheduler.Task
}

// NewOrchestrator returns an inactive orchestrator.
func NewOrchestrator(deps Deps, settings config.Settings) *Orchestrator {
	if deps.Bypass == nil {
		deps.Bypass = func(string) bool { return false }
	}
	if deps.OnEvent == nil {
		deps.OnEvent = func(Event) {}
	}
	o := &Orchestrator{deps: deps, settings: settings}
	o.reset()
	return o
}

func (o *Orchestrator) reset() {
	o.phase = domain.PhaseInactive
	o.runID = ""
	o.stageIndex = 0
	o.currentStageRoom = ""
	o.stageDurationSeconds = 0
	o.remainingSeconds = 0
	o.membership = domain.NewMembership(nil)
	o.participants = make(map[string]*domain.Participant)
	o.notified = make(map[string]struct{})
	o.warnedAt = make(map[string]time.Time)
	o.deathTimers = make(map[string]*scheduler.Task)
	o.disconnectTimers = make(map[string]*scheduler.Task)
	o.bar = nil
}

// Reconfigure swaps settings and catalogs. It is refused while a match is active.
func (o *Orchestrator) Reconfigure(settings config.Settings, rooms ports.RoomCatalog, teleports ports.TeleportGraph, messages ports.MessageCatalog) error {
	if o.active {
		return ErrAlreadyActive
	}
	o.settings = settings
	o.deps.Rooms = rooms
	o.deps.Teleports = teleports
	o.deps.Messages = messages
	return nil
}

// Settings returns the settings in use.
func (o *Orchestrator) Settings() config.Settings {
	return o.settings
}

// StartMatch admits every online player into a new match in the entry room.
// On failure the requester, if any, is told why and no state changes.
func (o *Orchestrator) StartMatch(requester string) error {
	entry, err := o.checkStart()
	if err != nil {
		o.reply(requester, startFailureKey(err))
		o.deps.Logger.Info("StartMatch: refused for %q: %v", requester, err)
		return err
	}

	o.cancelAllTimers()
	o.reset()
	o.active = true
	o.runID = uuid.NewString()
	o.stageIndex = 0
	o.currentStageRoom = o.settings.EntryRoom
	o.stageDurationSeconds = o.settings.InitialTimeSeconds
	o.remainingSeconds = o.stageDurationSeconds
	o.membership.Reset(o.deps.Rooms.GetRoomIDs())

	players := o.deps.World.OnlinePlayers()
	worlds := make(map[string]struct{})
	for _, id := range players {
		loc := entry
		if loc.World == "" {
			loc.World = o.deps.World.WorldOf(id)
		}
		o.deps.World.Teleport(id, loc)
		o.deps.World.SetRestrictedMode(id)
		worlds[loc.World] = struct{}{}

		o.membership.Place(id, o.currentStageRoom)
		p := &domain.Participant{ID: id}
		p.Name = o.nameOf(id)
		o.participants[id] = p
	}
	for _, w := range sortedKeys(worlds) {
		o.deps.World.DisableRegeneration(w)
	}

	o.persist()

	title := o.deps.Messages.GetMessage(msgStartTitle)
	subtitle := o.deps.Messages.GetMessage(msgStartSubtitle)
	for _, id := range o.membership.Participants() {
		o.deps.World.SendTitle(id, title, subtitle)
	}

	o.setPhase(domain.PhaseStarting)
	o.announceTask = o.deps.Scheduler.Schedule(AnnouncementDelay, o.announce)

	o.deps.Logger.Info("StartMatch: run %s started by %q with %d participants in %s", o.runID, requester, len(players), o.currentStageRoom)
	o.emit(Event{Kind: EventMatchStarted, Payload: MatchStartedPayload{
		RunID:        o.runID,
		EntryRoom:    o.currentStageRoom,
		Participants: o.membership.Participants(),
	}})
	o.reply(requester, msgStartSuccess)
	return nil
}

func (o *Orchestrator) checkStart() (domain.Location, error) {
	if o.active {
		return domain.Location{}, ErrAlreadyActive
	}
	if !o.deps.Rooms.AreAllRoomsConfigured() {
		return domain.Location{}, ErrRoomsNotConfigured
	}
	if !o.deps.Teleports.HasConfiguredTeleports() {
		return domain.Location{}, ErrTeleportsNotConfigured
	}
	if len(o.deps.World.OnlinePlayers()) == 0 {
		return domain.Location{}, ErrNoPlayers
	}
	entry, ok := o.deps.Rooms.GetRoom(o.settings.EntryRoom)
	if !ok {
		return domain.Location{}, ErrEntryRoomUnset
	}
	return entry, nil
}

func startFailureKey(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyActive):
		return msgStartAlreadyRunning
	case errors.Is(err, ErrRoomsNotConfigured):
		return msgStartRoomsUnset
	case errors.Is(err, ErrTeleportsNotConfigured):
		return msgStartTeleportsUnset
	case errors.Is(err, ErrNoPlayers):
		return msgStartNoPlayers
	default:
		return msgStartMissingRoom
	}
}

// EndMatch stops the match. It does nothing when no match is active.
func (o *Orchestrator) EndMatch(success bool, winners []string, notify bool) {
	if !o.active {
		return
	}
	o.active = false

	ids := o.membership.Participants()
	o.cancelAllTimers()

	o.deps.World.HideProgress()
	o.bar = nil

	if notify {
		if success {
			o.deps.World.Broadcast(o.deps.Messages.GetMessage(msgFinishSuccess, "players", strings.Join(winners, ", ")))
		} else {
			o.deps.World.Broadcast(o.deps.Messages.GetMessage(msgFinishFailure))
		}
	}

	for _, id := range ids {
		if p := o.participants[id]; p != nil && p.Impaired() {
			o.deps.World.ClearImpairment(id)
		}
	}
	for _, id := range ids {
		if o.deps.World.IsOnline(id) {
			o.teleportToSpawn(id)
		}
	}

	if err := o.deps.Snapshots.Delete(); err != nil {
		o.deps.Logger.Warn("EndMatch: could not delete snapshot: %v", err)
	}

	outcome := domain.OutcomeFailure
	if success {
		outcome = domain.OutcomeSuccess
	}
	o.deps.Logger.Info("EndMatch: run %s ended (%s) after %d stages, winners=%v", o.runID, outcome, o.stageIndex, winners)
	ended := MatchEndedPayload{RunID: o.runID, Outcome: outcome, Winners: append([]string(nil), winners...), Stages: o.stageIndex}

	o.reset()
	o.emit(Event{Kind: EventPhaseChanged, Payload: PhaseChangedPayload{Phase: domain.PhaseInactive}})
	o.emit(Event{Kind: EventMatchEnded, Payload: ended})
}

// Shutdown ends any running match without announcing it.
func (o *Orchestrator) Shutdown() {
	o.EndMatch(false, nil, false)
}

// IsActive reports whether a match is running.
func (o *Orchestrator) IsActive() bool { return o.active }

// IsParticipant reports whether the player is tracked by the running match.
func (o *Orchestrator) IsParticipant(playerID string) bool {
	_, ok := o.participants[playerID]
	return ok
}

// Status is a read-only view of the match.
type Status struct {
	Active               bool
	RunID                string
	Phase                domain.Phase
	StageIndex           int
	StageRoom            string
	StageDurationSeconds int
	RemainingSeconds     int
	Rooms                map[string][]string
	PendingEliminations  int
	PendingDisconnects   int
}

// Status returns the current match state. Rooms maps room ids to participant ids.
func (o *Orchestrator) Status() Status {
	rooms := make(map[string][]string)
	for _, r := range o.membership.Rooms() {
		rooms[r] = o.membership.Members(r)
	}
	return Status{
		Active:               o.active,
		RunID:                o.runID,
		Phase:                o.phase,
		StageIndex:           o.stageIndex,
		StageRoom:            o.currentStageRoom,
		StageDurationSeconds: o.stageDurationSeconds,
		RemainingSeconds:     o.remainingSeconds,
		Rooms:                rooms,
		PendingEliminations:  len(o.deathTimers),
		PendingDisconnects:   len(o.disconnectTimers),
	}
}

// Participants returns the tracked participant ids, sorted.
func (o *Orchestrator) Participants() []string {
	return o.membership.Participants()
}

// RoomOf returns the room a participant is in.
func (o *Orchestrator) RoomOf(playerID string) (string, bool) {
	return o.membership.RoomOf(playerID)
}

// CheckInvariants verifies the membership partition against the participant set.
func (o *Orchestrator) CheckInvariants() error {
	if err := o.membership.Validate(); err != nil {
		return err
	}
	if o.membership.Len() != len(o.participants) {
		return errors.New("membership and participant set differ in size")
	}
	for id := range o.participants {
		if !o.membership.Contains(id) {
			return errors.New("participant " + id + " is not in any room")
		}
	}
	return nil
}

func (o *Orchestrator) cancelAllTimers() {
	o.cancelStageTimers()
	o.announceTask.Cancel()
	o.announceTask = nil
	for id, t := range o.deathTimers {
		t.Cancel()
		delete(o.deathTimers, id)
	}
	for id, t := range o.disconnectTimers {
		t.Cancel()
		delete(o.disconnectTimers, id)
	}
}

func (o *Orchestrator) cancelStageTimers() {
	o.countdownStartTask.Cancel()
	o.countdownStartTask = nil
	o.countdownTask.Cancel()
	o.countdownTask = nil
	o.damageTask.Cancel()
	o.damageTask = nil
}

func (o *Orchestrator) setPhase(phase domain.Phase) {
	if o.phase == phase {
		return
	}
	o.phase = phase
	o.emit(Event{Kind: EventPhaseChanged, Payload: PhaseChangedPayload{Phase: phase, Room: o.currentStageRoom}})
}

func (o *Orchestrator) emit(ev Event) {
	o.deps.OnEvent(ev)
}

func (o *Orchestrator) reply(requester, key string) {
	if requester == "" {
		return
	}
	o.deps.World.SendMessage(requester, o.deps.Messages.GetMessage(key))
}

// nameOf resolves a display name: connected name, then stored identity, then the raw id.
func (o *Orchestrator) nameOf(playerID string) string {
	if name, ok := o.deps.World.DisplayName(playerID); ok {
		return name
	}
	if name, ok := o.deps.World.OfflineName(playerID); ok {
		return name
	}
	if p := o.participants[playerID]; p != nil && p.Name != "" {
		return p.Name
	}
	return playerID
}

func (o *Orchestrator) teleportToSpawn(playerID string) {
	if loc, ok := o.spawnLocation(); ok {
		o.deps.World.Teleport(playerID, loc)
	}
}

func (o *Orchestrator) spawnLocation() (domain.Location, bool) {
	if loc, ok := o.deps.World.LobbyLocation(); ok {
		return loc, true
	}
	if loc, ok := o.deps.World.WorldSpawn(); ok {
		return loc.Centered(), true
	}
	return domain.Location{}, false
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
