package app

import "time"

const (
	// AnnouncementDelay separates the start banner from the "get ready" broadcast.
	AnnouncementDelay = 5 * time.Second
	// CountdownTick is the countdown resolution.
	CountdownTick = time.Second
	// WarningCooldown limits repeated teleport-denied warnings per player.
	WarningCooldown = time.Second
)

// Message keys used by the orchestrator.
const (
	msgStartAlreadyRunning    = "event-start-already-running"
	msgStartRoomsUnset        = "event-start-rooms-not-configured"
	msgStartTeleportsUnset    = "event-start-teleports-not-configured"
	msgStartNoPlayers         = "event-start-no-players"
	msgStartMissingRoom       = "event-start-missing-room"
	msgStartTitle             = "event-start-title"
	msgStartSubtitle          = "event-start-subtitle"
	msgStartChat              = "event-start-chat"
	msgStartSuccess           = "event-start-success"
	msgTeleportBlocked        = "event-teleport-blocked"
	msgTeleportNotParticipant = "event-teleport-not-participant"
	msgTeleportLocked         = "event-teleport-locked"
	msgEliminated             = "event-player-eliminated"
	msgDisconnected           = "event-player-disconnected"
	msgDisconnectEliminated   = "event-player-disconnect-eliminated"
	msgFinishSuccess          = "event-finish-success"
	msgFinishFailure          = "event-finish-failure"
	msgBarTitle               = "event-bossbar-title"
	msgBarColor               = "event-bossbar-color"
	msgBarStyle               = "event-bossbar-style"
)
