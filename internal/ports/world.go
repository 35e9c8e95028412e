package ports

import "deadoralive/internal/domain"

// WorldPort is the game world the orchestrator acts upon.
type WorldPort interface {
	// OnlinePlayers returns every connected player id.
	OnlinePlayers() []string
	IsOnline(playerID string) bool
	IsDead(playerID string) bool
	// DisplayName returns the name of a connected player.
	DisplayName(playerID string) (string, bool)
	// OfflineName returns the last known name of a player who is not connected.
	OfflineName(playerID string) (string, bool)
	LocationOf(playerID string) (domain.Location, bool)
	WorldOf(playerID string) string

	Teleport(playerID string, to domain.Location)
	// SetRestrictedMode puts the player in adventure mode.
	SetRestrictedMode(playerID string)
	DisableRegeneration(world string)
	// Damage applies raw damage units. Resulting damage and death events are delivered later.
	Damage(playerID string, raw float64)
	Kill(playerID string)
	ApplyImpairment(playerID string, amplifier int)
	ClearImpairment(playerID string)

	SendMessage(playerID, text string)
	SendTitle(playerID, title, subtitle string)
	// Broadcast sends text to every connected player.
	Broadcast(text string)
	ShowProgress(viewers []string, bar domain.ProgressBar)
	HideProgress()

	LobbyLocation() (domain.Location, bool)
	// WorldSpawn returns the default world's spawn point.
	WorldSpawn() (domain.Location, bool)
}
