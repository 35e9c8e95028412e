package app

import (
	"time"

	"deadoralive/internal/domain"
)

// announce broadcasts the "get ready" message and arms the countdown start.
func (o *Orchestrator) announce() {
	o.announceTask = nil
	if !o.active {
		return
	}
	o.broadcastToParticipants(o.deps.Messages.GetMessage(msgStartChat))
	// A stage may already be running if the entry room emptied during Starting.
	if o.countdownTask.Active() || o.damageTask.Active() {
		return
	}
	o.countdownStartTask = o.deps.Scheduler.Schedule(seconds(o.settings.StartDelaySeconds), o.startCountdown)
}

func (o *Orchestrator) startCountdown() {
	if !o.active {
		return
	}
	o.cancelStageTimers()

	if o.membership.Count(o.currentStageRoom) == 0 {
		o.advanceStage()
		return
	}

	o.stageDurationSeconds = domain.StageDuration(o.settings.InitialTimeSeconds, o.settings.TimeDecrementSeconds, o.stageIndex)
	o.remainingSeconds = o.stageDurationSeconds
	o.setPhase(domain.PhaseCountdown)
	o.showProgress(1)
	o.deps.Logger.Debug("startCountdown: stage %d in %s for %ds", o.stageIndex, o.currentStageRoom, o.stageDurationSeconds)

	o.countdownTask = o.deps.Scheduler.ScheduleRepeating(CountdownTick, o.countdownTick)
}

func (o *Orchestrator) countdownTick() {
	if !o.active {
		return
	}
	o.remainingSeconds--
	if o.remainingSeconds <= 0 {
		o.remainingSeconds = 0
		o.showProgress(0)
		o.countdownTask.Cancel()
		o.countdownTask = nil
		o.startDamagePhase()
		return
	}
	o.showProgress(domain.ProgressFraction(o.remainingSeconds, o.stageDurationSeconds))
}

func (o *Orchestrator) startDamagePhase() {
	o.setPhase(domain.PhaseDamage)
	o.damageTask = o.deps.Scheduler.ScheduleRepeating(seconds(o.settings.DamageIntervalSeconds), o.damageTick)
}

func (o *Orchestrator) damageTick() {
	if !o.active {
		return
	}
	members := o.membership.Members(o.currentStageRoom)
	if len(members) == 0 {
		o.damageTask.Cancel()
		o.damageTask = nil
		o.advanceStage()
		return
	}
	raw := float64(o.settings.DamageHearts * domain.RawUnitsPerHeart)
	for _, id := range members {
		if !o.deps.World.IsOnline(id) || o.deps.World.IsDead(id) {
			continue
		}
		o.deps.World.Damage(id, raw)
	}
}

// advanceStage moves the match to the first occupied safe or finish room.
func (o *Orchestrator) advanceStage() {
	if !o.active {
		return
	}
	o.cancelStageTimers()

	next := ""
	for _, room := range o.membership.Rooms() {
		if o.membership.Count(room) == 0 {
			continue
		}
		if o.deps.Rooms.GetRoomType(room).IsStageTarget() {
			next = room
			break
		}
	}

	if next == "" {
		if len(o.deathTimers) > 0 {
			o.deps.Logger.Debug("advanceStage: no candidate, %d eliminations pending", len(o.deathTimers))
			o.stageDurationSeconds = 0
			o.remainingSeconds = 0
			if o.bar != nil {
				o.deps.World.HideProgress()
				o.bar = nil
			}
			o.setPhase(domain.PhaseResolving)
			return
		}
		o.EndMatch(false, nil, true)
		return
	}

	finish := o.deps.Rooms.GetRoomType(next) == domain.RoomFinish
	if next != o.currentStageRoom {
		if !finish {
			o.stageIndex++
		}
		o.currentStageRoom = next
		o.emit(Event{Kind: EventStageAdvanced, Payload: StageAdvancedPayload{StageIndex: o.stageIndex, Room: next}})
	}

	if finish {
		o.EndMatch(true, o.namesIn(next), true)
		return
	}
	o.startCountdown()
}

// checkAdvanceOrFinish resolves the match after membership changed.
func (o *Orchestrator) checkAdvanceOrFinish() {
	if !o.active {
		return
	}
	if len(o.participants) == 0 {
		o.EndMatch(false, nil, true)
		return
	}

	allFinished := true
	for _, id := range o.membership.Participants() {
		room, _ := o.membership.RoomOf(id)
		if o.deps.Rooms.GetRoomType(room) != domain.RoomFinish {
			allFinished = false
			break
		}
	}
	if allFinished {
		var names []string
		for _, id := range o.membership.Participants() {
			names = append(names, o.nameOf(id))
		}
		domain.SortNames(names)
		o.EndMatch(true, names, true)
		return
	}

	if o.membership.Count(o.currentStageRoom) == 0 {
		o.advanceStage()
	}
}

func (o *Orchestrator) namesIn(room string) []string {
	members := o.membership.Members(room)
	names := make([]string, 0, len(members))
	for _, id := range members {
		names = append(names, o.nameOf(id))
	}
	domain.SortNames(names)
	return names
}

func (o *Orchestrator) broadcastToParticipants(text string) {
	if text == "" {
		return
	}
	for _, id := range o.membership.Participants() {
		if o.deps.World.IsOnline(id) {
			o.deps.World.SendMessage(id, text)
		}
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
