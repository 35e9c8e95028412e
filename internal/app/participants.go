package app

import (
	"deadoralive/internal/domain"

	"github.com/rotisserie/eris"
)

// HandleRoomTransition records that a participant entered room.
func (o *Orchestrator) HandleRoomTransition(playerID, room string) {
	if !o.active || room == "" {
		return
	}
	if _, ok := o.participants[playerID]; !ok {
		return
	}
	room = domain.NormalizeRoomID(room)
	prev := o.membership.Place(playerID, room)
	o.persist()
	o.deps.Logger.Debug("HandleRoomTransition: %s moved %s -> %s", playerID, prev, room)

	if o.deps.Rooms.GetRoomType(room).IsDeath() {
		o.scheduleDeath(playerID)
	} else {
		o.cancelDeath(playerID)
	}
	o.checkAdvanceOrFinish()
}

// CanUseTeleport decides whether a player may use a teleport leaving origin.
func (o *Orchestrator) CanUseTeleport(playerID, origin string) bool {
	if !o.active {
		if _, seen := o.notified[playerID]; !seen {
			o.notified[playerID] = struct{}{}
			o.deps.World.SendMessage(playerID, o.deps.Messages.GetMessage(msgTeleportBlocked))
		}
		return false
	}
	delete(o.notified, playerID)

	if o.deps.Bypass(playerID) {
		return true
	}
	if _, ok := o.participants[playerID]; !ok {
		o.warn(playerID, msgTeleportNotParticipant)
		return false
	}
	if domain.NormalizeRoomID(origin) != o.currentStageRoom {
		o.warn(playerID, msgTeleportLocked)
		return false
	}
	return true
}

func (o *Orchestrator) warn(playerID, key string) {
	now := o.deps.Scheduler.Now()
	if last, ok := o.warnedAt[playerID]; ok && now.Sub(last) < WarningCooldown {
		return
	}
	o.warnedAt[playerID] = now
	o.deps.World.SendMessage(playerID, o.deps.Messages.GetMessage(key))
}

// OnDamage accrues damage taken by a participant and refreshes their impairment.
func (o *Orchestrator) OnDamage(playerID string, raw float64) {
	if !o.active || raw <= 0 {
		return
	}
	p, ok := o.participants[playerID]
	if !ok {
		return
	}
	o.deps.World.ApplyImpairment(playerID, p.Accrue(raw))
}

// OnDeath eliminates a participant who died.
func (o *Orchestrator) OnDeath(playerID string) {
	if !o.active {
		return
	}
	if _, ok := o.participants[playerID]; !ok {
		return
	}
	o.eliminate(playerID, EliminatedByDeath, msgEliminated)
}

// OnRespawn returns where a respawning player should appear. Participants are not
// redirected; players outside the match are sent to the lobby and lose any impairment.
func (o *Orchestrator) OnRespawn(playerID string) (domain.Location, bool) {
	if !o.active {
		return domain.Location{}, false
	}
	if _, ok := o.participants[playerID]; ok {
		return domain.Location{}, false
	}
	loc, ok := o.spawnLocation()
	if !ok {
		return domain.Location{}, false
	}
	o.deps.World.ClearImpairment(playerID)
	return loc, true
}

// OnJoin restores a returning participant.
func (o *Orchestrator) OnJoin(playerID string) {
	if !o.active {
		return
	}
	p, ok := o.participants[playerID]
	if !ok || !p.Disconnected {
		return
	}
	if t, ok := o.disconnectTimers[playerID]; ok {
		t.Cancel()
		delete(o.disconnectTimers, playerID)
	}
	p.Disconnected = false
	p.Name = o.nameOf(playerID)

	if room, ok := o.membership.RoomOf(playerID); ok && o.deps.Rooms.GetRoomType(room).IsDeath() {
		o.scheduleDeath(playerID)
	}

	o.deps.World.SetRestrictedMode(playerID)
	if p.QuitLocation != nil {
		o.deps.World.Teleport(playerID, *p.QuitLocation)
		p.QuitLocation = nil
	} else {
		o.teleportToSpawn(playerID)
	}
	if p.Impaired() {
		o.deps.World.ApplyImpairment(playerID, domain.ImpairmentAmplifier(p.HeartsLost))
	}
	if o.bar != nil {
		o.refreshProgress()
	}
	o.deps.Logger.Info("OnJoin: participant %s reconnected", playerID)
}

// OnQuit starts the disconnect grace period for a participant, or eliminates them
// when the stage has no time left.
func (o *Orchestrator) OnQuit(playerID string) {
	if !o.active {
		return
	}
	p, ok := o.participants[playerID]
	if !ok {
		return
	}
	o.cancelDeath(playerID)

	timeLeft := o.disconnectGrace()
	if timeLeft <= 0 {
		o.deps.Logger.Info("OnQuit: %s left with no time remaining", playerID)
		o.eliminate(playerID, EliminatedByDisconnect, msgDisconnectEliminated)
		return
	}

	if loc, ok := o.deps.World.LocationOf(playerID); ok {
		p.QuitLocation = &loc
	}
	p.Disconnected = true
	p.Name = o.nameOf(playerID)

	o.broadcastToParticipants(o.deps.Messages.GetMessage(msgDisconnected,
		"player", p.Name,
		"time", domain.FormatTime(timeLeft),
	))

	if t, ok := o.disconnectTimers[playerID]; ok {
		t.Cancel()
	}
	o.disconnectTimers[playerID] = o.deps.Scheduler.Schedule(seconds(timeLeft), func() {
		delete(o.disconnectTimers, playerID)
		if !o.active {
			return
		}
		if _, ok := o.participants[playerID]; !ok {
			return
		}
		o.eliminate(playerID, EliminatedByDisconnect, msgDisconnectEliminated)
	})
	o.refreshProgress()
	o.deps.Logger.Info("OnQuit: %s has %ds to return", playerID, timeLeft)
}

// disconnectGrace is the number of seconds a disconnected participant may stay away.
func (o *Orchestrator) disconnectGrace() int {
	timeLeft := max(0, o.remainingSeconds)
	if o.countdownTask.Active() {
		return timeLeft
	}
	stage := domain.StageDuration(o.settings.InitialTimeSeconds, o.settings.TimeDecrementSeconds, o.stageIndex)
	switch {
	case o.announceTask.Active() || o.countdownStartTask.Active():
		return max(timeLeft, stage)
	case o.damageTask.Active():
		return 0
	case timeLeft <= 0:
		return stage
	}
	return timeLeft
}

func (o *Orchestrator) eliminate(playerID string, reason EliminationReason, key string) {
	name := o.nameOf(playerID)
	o.deps.World.Broadcast(o.deps.Messages.GetMessage(key, "player", name))
	o.removeParticipant(playerID)
	o.persist()
	o.refreshProgress()
	o.deps.Logger.Info("eliminate: %s (%s) reason=%s", playerID, name, reason)
	o.emit(Event{Kind: EventEliminated, Payload: EliminatedPayload{PlayerID: playerID, Name: name, Reason: reason}})
	o.checkAdvanceOrFinish()
}

func (o *Orchestrator) removeParticipant(playerID string) {
	o.cancelDeath(playerID)
	if t, ok := o.disconnectTimers[playerID]; ok {
		t.Cancel()
		delete(o.disconnectTimers, playerID)
	}
	o.membership.Remove(playerID)
	delete(o.participants, playerID)
	delete(o.notified, playerID)
	delete(o.warnedAt, playerID)
}

func (o *Orchestrator) scheduleDeath(playerID string) {
	o.cancelDeath(playerID)
	o.deathTimers[playerID] = o.deps.Scheduler.Schedule(seconds(o.settings.DeathDelaySeconds), func() {
		delete(o.deathTimers, playerID)
		if !o.active {
			return
		}
		if o.deps.World.IsOnline(playerID) && !o.deps.World.IsDead(playerID) {
			o.deps.World.Kill(playerID)
		}
	})
}

func (o *Orchestrator) cancelDeath(playerID string) {
	if t, ok := o.deathTimers[playerID]; ok {
		t.Cancel()
		delete(o.deathTimers, playerID)
	}
}

// persist writes the room snapshot. Failures are logged and state is kept.
func (o *Orchestrator) persist() {
	if o.deps.Snapshots == nil {
		return
	}
	if err := o.deps.Snapshots.Save(o.membership.Snapshot(o.nameOf)); err != nil {
		o.deps.Logger.Error("persist: %s", eris.ToString(eris.Wrap(err, "save room snapshot"), false))
	}
}

func (o *Orchestrator) showProgress(fraction float64) {
	if o.bar == nil {
		color, ok := domain.ParseBarColor(o.deps.Messages.GetRaw(msgBarColor))
		if !ok {
			o.deps.Logger.Warn("showProgress: unknown bar color %q, using %s", o.deps.Messages.GetRaw(msgBarColor), color)
		}
		style, ok := domain.ParseBarStyle(o.deps.Messages.GetRaw(msgBarStyle))
		if !ok {
			o.deps.Logger.Warn("showProgress: unknown bar style %q, using %s", o.deps.Messages.GetRaw(msgBarStyle), style)
		}
		o.bar = &domain.ProgressBar{Color: color, Style: style}
	}
	o.bar.Fraction = fraction
	o.bar.Title = o.deps.Messages.GetMessage(msgBarTitle, "time", domain.FormatTime(o.remainingSeconds))
	o.refreshProgress()
}

// refreshProgress re-sends the indicator to every connected participant.
func (o *Orchestrator) refreshProgress() {
	if o.bar == nil {
		return
	}
	viewers := make([]string, 0, o.membership.Len())
	for _, id := range o.membership.Participants() {
		if o.deps.World.IsOnline(id) {
			viewers = append(viewers, id)
		}
	}
	o.deps.World.ShowProgress(viewers, *o.bar)
}
