package domain

import (
	"fmt"
	"math"
	"strings"
)

// RoomType tags a room with its role in the match.
type RoomType string

const (
	// RoomSafe is a valid stage-advance target.
	RoomSafe RoomType = "safe"
	// RoomDeath starts the elimination-delay timer for anyone entering it.
	RoomDeath RoomType = "death"
	// RoomFinish is the winning terminal room.
	RoomFinish RoomType = "finish"
	// RoomUnknown is returned for rooms the catalog does not know.
	RoomUnknown RoomType = ""
)

// DeathRoomID is the nominal destination that resolves to one of DeathRoomAlternates.
const DeathRoomID = "room_death"

// DeathRoomAlternates are the concrete rooms behind DeathRoomID.
var DeathRoomAlternates = [2]string{"room_4", "room_5"}

// ParseRoomType maps a configured type tag to a RoomType. Empty tags default to safe.
// Both "death" and "dead" denote a death room.
func ParseRoomType(tag string) (RoomType, bool) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "", "safe":
		return RoomSafe, true
	case "death", "dead":
		return RoomDeath, true
	case "finish":
		return RoomFinish, true
	default:
		return RoomUnknown, false
	}
}

// IsDeath reports whether the type denotes a hazard room.
func (t RoomType) IsDeath() bool { return t == RoomDeath }

// IsStageTarget reports whether a room of this type can become the next stage.
func (t RoomType) IsStageTarget() bool { return t == RoomSafe || t == RoomFinish }

// NormalizeRoomID lower-cases and trims a room id. Room ids are case-insensitive.
func NormalizeRoomID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// RoomDisplayName renders a room id for players: "room_death" becomes "Room Death",
// "room_2" becomes "Room 2".
func RoomDisplayName(id string) string {
	if NormalizeRoomID(id) == DeathRoomID {
		return "Room Death"
	}
	return strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(id, "_", " "), "room", "Room"))
}

// Location is a point in a named world.
type Location struct {
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

// IsZero reports whether all coordinates are zero. Anchors at the origin count as unconfigured.
func (l Location) IsZero() bool {
	return l.X == 0 && l.Y == 0 && l.Z == 0
}

// Block returns the integer block coordinates of the location.
func (l Location) Block() (int, int, int) {
	return int(math.Floor(l.X)), int(math.Floor(l.Y)), int(math.Floor(l.Z))
}

// BlockKey returns the "world:x:y:z" key used to index trigger blocks.
func (l Location) BlockKey() string {
	x, y, z := l.Block()
	return BlockKey(l.World, x, y, z)
}

// SameBlock reports whether two locations fall in the same block of the same world.
func (l Location) SameBlock(other Location) bool {
	return l.BlockKey() == other.BlockKey()
}

// Centered returns the location moved to the center of its block on the horizontal axes.
func (l Location) Centered() Location {
	x, _, z := l.Block()
	return Location{World: l.World, X: float64(x) + 0.5, Y: l.Y, Z: float64(z) + 0.5}
}

// BlockKey formats a trigger block index key. World names are case-insensitive.
func BlockKey(world string, x, y, z int) string {
	return fmt.Sprintf("%s:%d:%d:%d", strings.ToLower(world), x, y, z)
}

// ParseLocation parses "world:x:y:z".
func ParseLocation(s string) (Location, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 4 || parts[0] == "" {
		return Location{}, fmt.Errorf("invalid location %q, want world:x:y:z", s)
	}
	var loc Location
	loc.World = parts[0]
	coords := []*float64{&loc.X, &loc.Y, &loc.Z}
	for i, p := range parts[1:] {
		if _, err := fmt.Sscanf(p, "%g", coords[i]); err != nil {
			return Location{}, fmt.Errorf("invalid coordinate %q in location %q: %w", p, s, err)
		}
	}
	return loc, nil
}
