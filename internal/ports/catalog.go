package ports

import "deadoralive/internal/domain"

// RoomCatalog answers read-only questions about configured rooms.
type RoomCatalog interface {
	// GetRoom returns the anchor of a configured room.
	GetRoom(id string) (domain.Location, bool)
	// GetRoomType returns the room's type, or domain.RoomUnknown.
	GetRoomType(id string) domain.RoomType
	// GetRoomIDs returns every known room id, lower-cased.
	GetRoomIDs() []string
	// AreAllRoomsConfigured is false when there are no rooms or any room lacks an anchor.
	AreAllRoomsConfigured() bool
}

// TeleportGraph reports whether any teleport link exists.
type TeleportGraph interface {
	HasConfiguredTeleports() bool
}

// MessageCatalog resolves localized text.
type MessageCatalog interface {
	// GetMessage resolves key and applies %prefix% and the given placeholder pairs,
	// e.g. GetMessage("event-player-eliminated", "player", "Steve").
	GetMessage(key string, placeholders ...string) string
	// GetRaw returns the unformatted value, or "" when missing.
	GetRaw(key string) string
}
