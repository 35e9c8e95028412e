// Package rooms loads the room catalog: every room's type and anchor.
package rooms

import (
	"errors"
	"os"
	"sort"

	"deadoralive/internal/domain"
	"deadoralive/internal/ports"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// FileName is the catalog file inside the data directory.
const FileName = "rooms.json"

// Room is one configured room.
type Room struct {
	ID     string
	Type   domain.RoomType
	Anchor *domain.Location
}

type roomFile struct {
	Rooms map[string]roomEntry `json:"rooms"`
}

type roomEntry struct {
	Type  string   `json:"type"`
	World string   `json:"world,omitempty"`
	X     *float64 `json:"x,omitempty"`
	Y     *float64 `json:"y,omitempty"`
	Z     *float64 `json:"z,omitempty"`
}

// Catalog is an in-memory RoomCatalog.
type Catalog struct {
	rooms map[string]Room
}

var _ ports.RoomCatalog = (*Catalog)(nil)

// New builds a catalog from rooms. Ids are lower-cased; anchors at the origin are dropped.
func New(rooms ...Room) *Catalog {
	c := &Catalog{rooms: make(map[string]Room, len(rooms))}
	for _, r := range rooms {
		c.put(r)
	}
	return c
}

// Load reads a catalog file. A missing file yields an empty catalog.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read room catalog %s", path)
	}

	var f roomFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "failed to unmarshal room catalog %s", path)
	}

	c := New()
	for id, entry := range f.Rooms {
		t, ok := domain.ParseRoomType(entry.Type)
		if !ok {
			return nil, eris.Errorf("room %s has unknown type %q", id, entry.Type)
		}
		r := Room{ID: id, Type: t}
		if entry.X != nil && entry.Y != nil && entry.Z != nil {
			r.Anchor = &domain.Location{World: entry.World, X: *entry.X, Y: *entry.Y, Z: *entry.Z}
		}
		c.put(r)
	}
	return c, nil
}

func (c *Catalog) put(r Room) {
	r.ID = domain.NormalizeRoomID(r.ID)
	if r.Type == domain.RoomUnknown {
		r.Type = domain.RoomSafe
	}
	if r.Anchor != nil && r.Anchor.IsZero() {
		r.Anchor = nil
	}
	c.rooms[r.ID] = r
}

func (c *Catalog) GetRoom(id string) (domain.Location, bool) {
	r, ok := c.rooms[domain.NormalizeRoomID(id)]
	if !ok || r.Anchor == nil {
		return domain.Location{}, false
	}
	return *r.Anchor, true
}

func (c *Catalog) GetRoomType(id string) domain.RoomType {
	r, ok := c.rooms[domain.NormalizeRoomID(id)]
	if !ok {
		return domain.RoomUnknown
	}
	return r.Type
}

func (c *Catalog) GetRoomIDs() []string {
	ids := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Catalog) AreAllRoomsConfigured() bool {
	if len(c.rooms) == 0 {
		return false
	}
	for _, r := range c.rooms {
		if r.Anchor == nil {
			return false
		}
	}
	return true
}
