package nakama

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"time"

	"deadoralive/internal/app"
	"deadoralive/internal/app/operator"
	"deadoralive/internal/config"
	"deadoralive/internal/domain"
	"deadoralive/internal/messages"
	"deadoralive/internal/ports"
	"deadoralive/internal/scheduler"
	"deadoralive/internal/snapshot"
	"deadoralive/internal/teleport"
	"deadoralive/internal/world"

	"github.com/goccy/go-json"
	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/rotisserie/eris"
)

// Signal response codes, mapped to RPC error codes by the RPC layer.
const (
	codeInvalidArgument    = "invalid_argument"
	codePermissionDenied   = "permission_denied"
	codeFailedPrecondition = "failed_precondition"
)

// MatchState holds the authoritative runtime state for the Nakama match handler.
type MatchState struct {
	Tick      int64                       `json:"tick"`  // Current tick of the match
	Label     string                      `json:"label"` // Last label pushed to Nakama
	Presences map[string]runtime.Presence `json:"-"`     // Map UserId -> Presence for targeted messaging
	Grants    map[string]operator.Grant   `json:"-"`     // Verified operator grants by user id
	Sessions  map[string]sessionSet       `json:"-"`     // Live sessions by user id
	Settings  config.Settings             `json:"-"`     // Settings in use
	Orch      *app.Orchestrator           `json:"-"`     // Live match orchestrator
	World     *world.World                `json:"-"`     // Avatar world the orchestrator acts on
	Clock     *scheduler.Ticker           `json:"-"`     // Virtual clock advanced once per tick
	Teleports *teleport.Graph             `json:"-"`     // Teleport links driven by OpMove
	Messages  *messages.Catalog           `json:"-"`     // Localized text
	Operators *operator.Service           `json:"-"`     // Grant verification
	Results   ports.ResultPort            `json:"-"`     // Finished-run history
	environ   map[string]string
	rng       *rand.Rand
	outbox    []outbound
	events    []app.Event
}

// sessionSet maps session ids to presences of one user.
type sessionSet map[string]runtime.Presence

// addSession records a presence and reports whether it is the user's first live session.
func (ms *MatchState) addSession(p runtime.Presence) bool {
	sessions, ok := ms.Sessions[p.GetUserId()]
	if !ok {
		sessions = make(sessionSet)
		ms.Sessions[p.GetUserId()] = sessions
	}
	sessions[p.GetSessionId()] = p
	return len(sessions) == 1
}

// removeSession drops a presence and reports whether the user has no live session left.
// A remaining session takes over targeted messages.
func (ms *MatchState) removeSession(p runtime.Presence) bool {
	sessions := ms.Sessions[p.GetUserId()]
	delete(sessions, p.GetSessionId())
	for _, other := range sessions {
		ms.Presences[p.GetUserId()] = other
		return false
	}
	delete(ms.Sessions, p.GetUserId())
	return true
}

type outbound struct {
	opCode     int64
	data       []byte
	recipients []string
}

// matchDeps are the host services a match needs. Nil ports are skipped.
type matchDeps struct {
	Results  ports.ResultPort
	Accounts ports.AccountPort
	Rng      *rand.Rand
	Now      time.Time
}

// newMatchState builds the runtime state from the environment map.
func newMatchState(ctx context.Context, logger runtime.Logger, environ map[string]string, deps matchDeps) (*MatchState, error) {
	settings, err := config.Load(environ)
	if err != nil {
		return nil, err
	}
	if deps.Rng == nil {
		deps.Rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if deps.Now.IsZero() {
		deps.Now = time.Now()
	}
	cats, err := loadCatalogs(logger, settings, deps.Rng)
	if err != nil {
		return nil, err
	}

	state := &MatchState{
		Presences: make(map[string]runtime.Presence),
		Grants:    make(map[string]operator.Grant),
		Sessions:  make(map[string]sessionSet),
		Settings:  settings,
		Clock:     scheduler.NewTicker(deps.Now),
		Teleports: cats.teleports,
		Messages:  cats.messages,
		Operators: operator.NewService(settings.OperatorSecret, "", settings.GrantTTL),
		Results:   deps.Results,
		environ:   environ,
		rng:       deps.Rng,
	}

	opts := world.Options{}
	if loc, ok := settings.LobbyLocation(); ok {
		opts.Lobby = &loc
	}
	if loc, ok := settings.WorldSpawnLocation(); ok {
		opts.WorldSpawn = &loc
	}
	if deps.Accounts != nil {
		accounts := deps.Accounts
		opts.OfflineName = func(userID string) (string, bool) {
			name, err := accounts.DisplayName(ctx, userID)
			if err != nil {
				logger.Warn("OfflineName: %v", err)
				return "", false
			}
			return name, name != ""
		}
	}
	state.World = world.New(world.OutboxFunc(state.queueNotice), opts)

	state.Orch = app.NewOrchestrator(app.Deps{
		Rooms:     cats.rooms,
		Teleports: cats.teleports,
		Messages:  cats.messages,
		World:     state.World,
		Snapshots: snapshot.NewFileStore(settings.SnapshotPath()),
		Scheduler: state.Clock,
		Logger:    logger,
		Bypass:    state.hasBypass,
		OnEvent:   state.queueEvent,
	}, settings)
	return state, nil
}

func (ms *MatchState) queueNotice(n world.Notice) {
	op, ok := noticeOpCodes[n.Kind]
	if !ok {
		return
	}
	data := []byte("{}")
	if n.Payload != nil {
		b, err := json.Marshal(n.Payload)
		if err != nil {
			return
		}
		data = b
	}
	ms.outbox = append(ms.outbox, outbound{opCode: op, data: data, recipients: n.Recipients})
}

func (ms *MatchState) queueEvent(ev app.Event) {
	ms.events = append(ms.events, ev)
}

// hasBypass reports whether the player holds a live bypass grant.
func (ms *MatchState) hasBypass(userID string) bool {
	g, ok := ms.Grants[userID]
	return ok && g.Has(operator.CapabilityBypass) && time.Now().Before(g.ExpiresAt)
}

// allowed checks an operator capability against the stored grant or a presented token.
// Requests without a user id come from the server and are always allowed.
func (ms *MatchState) allowed(userID, token string, c operator.Capability) bool {
	if userID == "" || ms.Settings.GateOpen() {
		return true
	}
	if g, ok := ms.Grants[userID]; ok && g.Has(c) && time.Now().Before(g.ExpiresAt) {
		return true
	}
	if token == "" {
		return false
	}
	g, err := ms.Operators.Verify(token)
	return err == nil && g.Subject == userID && g.Has(c)
}

// spawnPoint is where players outside the match respawn.
func (ms *MatchState) spawnPoint() (domain.Location, bool) {
	if loc, ok := ms.World.LobbyLocation(); ok {
		return loc, true
	}
	return ms.World.WorldSpawn()
}

// drainWorld feeds queued damage and deaths back into the orchestrator until none remain.
func (ms *MatchState) drainWorld() {
	for {
		evs := ms.World.Drain()
		if len(evs) == 0 {
			return
		}
		for _, ev := range evs {
			switch ev.Kind {
			case world.EventDamage:
				ms.Orch.OnDamage(ev.PlayerID, ev.Amount)
			case world.EventDeath:
				ms.Orch.OnDeath(ev.PlayerID)
			}
		}
	}
}

// NewMatch is the factory function registered with Nakama.
func NewMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
	return &matchHandler{
		results:  NewNakamaResultAdapter(nk),
		accounts: NewNakamaAccountAdapter(nk),
	}, nil
}

type matchHandler struct {
	results  ports.ResultPort
	accounts ports.AccountPort
}

// MatchInit is called when the match is created.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	logger.Debug("MatchInit: Initializing match handler.")

	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	state, err := newMatchState(ctx, logger, env, matchDeps{Results: mh.results, Accounts: mh.accounts})
	if err != nil {
		logger.Error("MatchInit: %s", eris.ToString(err, false))
		return nil, 0, ""
	}

	label, err := matchLabel(state.Orch.Status())
	if err != nil {
		logger.Error("MatchInit: Failed to marshal label: %v", err)
		return nil, 0, ""
	}
	state.Label = label
	return state, state.Settings.TickRate, label
}

func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}

	token := metadata[MetadataGrant]
	if token == "" {
		return matchState, true, ""
	}
	grant, err := matchState.Operators.Verify(token)
	if err != nil || grant.Subject != presence.GetUserId() {
		logger.Warn("MatchJoinAttempt: Rejected grant for %s: %v", presence.GetUserId(), err)
		return matchState, false, "invalid grant"
	}
	matchState.Grants[presence.GetUserId()] = grant
	logger.Info("MatchJoinAttempt: User %s joins with capabilities %v", presence.GetUserId(), grant.Capabilities)
	return matchState, true, ""
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}

	for _, p := range presences {
		matchState.Presences[p.GetUserId()] = p
		if !matchState.addSession(p) {
			logger.Debug("MatchJoin: User %s opened another session %s.", p.GetUserId(), p.GetSessionId())
			continue
		}
		matchState.World.Connect(p.GetUserId(), p.GetUsername())
		matchState.Orch.OnJoin(p.GetUserId())
		logger.Debug("MatchJoin: User %s (%s) connected.", p.GetUserId(), p.GetUsername())
	}
	matchState.drainWorld()
	mh.flush(ctx, matchState, dispatcher, logger)
	return matchState
}

// MatchLeave is called when one or more players leave the match.
func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}

	for _, p := range presences {
		if !matchState.removeSession(p) {
			logger.Debug("MatchLeave: User %s closed session %s, still connected.", p.GetUserId(), p.GetSessionId())
			continue
		}
		delete(matchState.Presences, p.GetUserId())
		delete(matchState.Grants, p.GetUserId())
		matchState.World.Disconnect(p.GetUserId())
		matchState.Orch.OnQuit(p.GetUserId())
		logger.Debug("MatchLeave: User %s left.", p.GetUserId())
	}
	matchState.drainWorld()
	mh.flush(ctx, matchState, dispatcher, logger)
	return matchState
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}

	matchState.Tick = tick

	// Handle incoming messages
	for _, msg := range messages {
		switch msg.GetOpCode() {
		case OpMove:
			mh.handleMove(matchState, logger, msg)
		case OpRespawn:
			mh.handleRespawn(matchState, logger, msg)
		case OpHazard:
			mh.handleHazard(matchState, logger, msg)
		default:
			logger.Warn("MatchLoop: Unknown opcode received: %d", msg.GetOpCode())
		}
		matchState.drainWorld()
	}

	step := matchState.Settings.TickInterval()
	matchState.Clock.Advance(step)
	matchState.World.Tick(step)
	matchState.drainWorld()

	mh.flush(ctx, matchState, dispatcher, logger)
	return matchState
}

func (mh *matchHandler) handleMove(state *MatchState, logger runtime.Logger, msg runtime.MatchData) {
	var payload MovePayload
	if err := json.Unmarshal(msg.GetData(), &payload); err != nil {
		logger.Warn("handleMove: Invalid payload from %s: %v", msg.GetUserId(), err)
		return
	}
	from, ok := state.World.Move(msg.GetUserId(), payload.location())
	if !ok {
		return
	}
	to, _ := state.World.LocationOf(msg.GetUserId())
	state.Teleports.OnPlayerMove(msg.GetUserId(), from, to, state.Orch, state.World)
}

func (mh *matchHandler) handleRespawn(state *MatchState, logger runtime.Logger, msg runtime.MatchData) {
	userID := msg.GetUserId()
	if !state.World.IsDead(userID) {
		return
	}
	at, ok := state.Orch.OnRespawn(userID)
	if !ok {
		if at, ok = state.spawnPoint(); !ok {
			at, _ = state.World.LocationOf(userID)
		}
	}
	if state.World.Respawn(userID, at) {
		logger.Debug("handleRespawn: User %s respawned at %s.", userID, at.BlockKey())
	}
}

func (mh *matchHandler) handleHazard(state *MatchState, logger runtime.Logger, msg runtime.MatchData) {
	var payload HazardPayload
	if err := json.Unmarshal(msg.GetData(), &payload); err != nil {
		logger.Warn("handleHazard: Invalid payload from %s: %v", msg.GetUserId(), err)
		return
	}
	state.World.Damage(msg.GetUserId(), payload.Amount)
}

// flush turns queued orchestrator events and world notices into dispatcher messages.
func (mh *matchHandler) flush(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	events := state.events
	state.events = nil
	for _, ev := range events {
		mh.handleEvent(ctx, state, logger, ev)
	}
	if len(events) > 0 {
		mh.updateLabel(state, dispatcher, logger)
	}

	queued := state.outbox
	state.outbox = nil
	for _, out := range queued {
		var recipients []runtime.Presence
		if len(out.recipients) > 0 {
			for _, uid := range out.recipients {
				if p, ok := state.Presences[uid]; ok {
					recipients = append(recipients, p)
				}
			}
			// Intended recipients that are all gone must not turn into a broadcast.
			if len(recipients) == 0 {
				continue
			}
		}
		if err := dispatcher.BroadcastMessage(out.opCode, out.data, recipients, nil, true); err != nil {
			logger.Error("flush: Failed to send op %d: %v", out.opCode, err)
		}
	}
}

func (mh *matchHandler) handleEvent(ctx context.Context, state *MatchState, logger runtime.Logger, ev app.Event) {
	switch ev.Kind {
	case app.EventEliminated:
		p := ev.Payload.(app.EliminatedPayload)
		state.queueMessage(OpEliminated, EliminatedMessage{PlayerID: p.PlayerID, Name: p.Name, Reason: string(p.Reason)})
	case app.EventMatchEnded:
		p := ev.Payload.(app.MatchEndedPayload)
		success := p.Outcome == domain.OutcomeSuccess
		state.queueMessage(OpMatchEnded, MatchEndedMessage{RunID: p.RunID, Success: success, Winners: p.Winners, Stages: p.Stages})
		if state.Results == nil {
			return
		}
		err := state.Results.RecordResult(ctx, ports.MatchResult{
			RunID:   p.RunID,
			Success: success,
			Winners: p.Winners,
			Stages:  p.Stages,
			EndedAt: state.Clock.Now().UTC(),
		})
		if err != nil {
			logger.Error("handleEvent: Failed to record result of run %s: %v", p.RunID, err)
		}
	case app.EventMatchStarted:
		p := ev.Payload.(app.MatchStartedPayload)
		logger.WithField("run_id", p.RunID).Info("Match started in %s with %d participants.", p.EntryRoom, len(p.Participants))
	}
}

func (ms *MatchState) queueMessage(opCode int64, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	ms.outbox = append(ms.outbox, outbound{opCode: opCode, data: data})
}

func (mh *matchHandler) updateLabel(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	label, err := matchLabel(state.Orch.Status())
	if err != nil {
		logger.Error("UpdateLabel: Failed to marshal: %v", err)
		return
	}
	if label == state.Label {
		return
	}
	if err := dispatcher.MatchLabelUpdate(label); err != nil {
		logger.Error("UpdateLabel: Failed to update: %v", err)
		return
	}
	state.Label = label
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, graceSeconds int) interface{} {
	logger.Debug("MatchTerminate: Match terminating, grace %ds", graceSeconds)
	if matchState, ok := state.(*MatchState); ok {
		matchState.Orch.Shutdown()
		mh.flush(ctx, matchState, dispatcher, logger)
	}
	return state
}

func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, ""
	}

	var req SignalRequest
	var resp SignalResponse
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		resp = SignalResponse{Code: codeInvalidArgument, Error: "invalid signal payload"}
	} else {
		resp = mh.handleSignal(logger, matchState, req)
	}
	matchState.drainWorld()
	mh.flush(ctx, matchState, dispatcher, logger)

	out, err := json.Marshal(resp)
	if err != nil {
		logger.Error("MatchSignal: Failed to marshal response: %v", err)
		return matchState, ""
	}
	return matchState, string(out)
}

func (mh *matchHandler) handleSignal(logger runtime.Logger, state *MatchState, req SignalRequest) SignalResponse {
	switch req.Op {
	case SignalStatus:
		status := statusResponse(state.Orch.Status())
		return SignalResponse{OK: true, Status: &status}

	case SignalStart:
		if !state.allowed(req.UserID, req.Grant, operator.CapabilityStart) {
			return SignalResponse{Code: codePermissionDenied, Error: "permission denied", Message: state.Messages.GetMessage("no-permission")}
		}
		err := state.Orch.StartMatch(req.UserID)
		status := statusResponse(state.Orch.Status())
		if err != nil {
			return SignalResponse{Code: codeFailedPrecondition, Error: err.Error(), Status: &status}
		}
		return SignalResponse{OK: true, Message: state.Messages.GetMessage("event-start-success"), Status: &status}

	case SignalReload:
		if !state.allowed(req.UserID, req.Grant, operator.CapabilityReload) {
			return SignalResponse{Code: codePermissionDenied, Error: "permission denied", Message: state.Messages.GetMessage("no-permission")}
		}
		if err := mh.reload(logger, state); err != nil {
			if errors.Is(err, app.ErrAlreadyActive) {
				return SignalResponse{Code: codeFailedPrecondition, Error: err.Error(), Message: state.Messages.GetMessage("reload-blocked")}
			}
			logger.Error("handleSignal: Reload failed: %s", eris.ToString(err, false))
			return SignalResponse{Code: codeFailedPrecondition, Error: err.Error()}
		}
		return SignalResponse{OK: true, Message: state.Messages.GetMessage("reload-success")}
	}
	return SignalResponse{Code: codeInvalidArgument, Error: "unknown signal: " + req.Op}
}

// reload re-reads settings and catalogs. It is refused while a match is running.
func (mh *matchHandler) reload(logger runtime.Logger, state *MatchState) error {
	if state.Orch.IsActive() {
		return app.ErrAlreadyActive
	}
	settings, err := config.Load(state.environ)
	if err != nil {
		return err
	}
	cats, err := loadCatalogs(logger, settings, state.rng)
	if err != nil {
		return err
	}
	if err := state.Orch.Reconfigure(settings, cats.rooms, cats.teleports, cats.messages); err != nil {
		return err
	}
	state.Settings = settings
	state.Teleports = cats.teleports
	state.Messages = cats.messages
	state.Operators = operator.NewService(settings.OperatorSecret, "", settings.GrantTTL)
	logger.Info("reload: Settings and catalogs reloaded.")
	return nil
}
