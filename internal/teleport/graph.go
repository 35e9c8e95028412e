// Package teleport holds the teleport links between rooms and the movement hook that fires them.
package teleport

import (
	"errors"
	"math/rand"
	"os"
	"sort"
	"time"

	"deadoralive/internal/domain"
	"deadoralive/internal/ports"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// FileName is the link file inside the data directory.
const FileName = "teleports.json"

// Point is a trigger block that sends whoever steps on it to Destination.
type Point struct {
	Origin      string
	Key         string
	Destination string
	Block       domain.Location
}

// Result is a resolved destination.
type Result struct {
	Room        string
	Location    domain.Location
	DisplayName string
}

// Gate decides whether a teleport may fire and records the room change.
type Gate interface {
	CanUseTeleport(playerID, originRoom string) bool
	HandleRoomTransition(playerID, destinationRoom string)
}

// Mover relocates players and tells them about it.
type Mover interface {
	Teleport(playerID string, to domain.Location)
	WorldOf(playerID string) string
	SendMessage(playerID, text string)
}

type linkFile struct {
	Teleports map[string]map[string]linkEntry `json:"teleports"`
}

type linkEntry struct {
	Destination string  `json:"destination"`
	World       string  `json:"world"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Z           float64 `json:"z"`
}

// Graph maps origin room -> key -> Point and indexes points by block.
type Graph struct {
	links    map[string]map[string]Point
	index    map[string]Point
	rooms    ports.RoomCatalog
	messages ports.MessageCatalog
	rng      *rand.Rand
}

var _ ports.TeleportGraph = (*Graph)(nil)

// New builds a graph from points. rng drives the death-room indirection; nil seeds from the clock.
func New(rooms ports.RoomCatalog, messages ports.MessageCatalog, rng *rand.Rand, points ...Point) *Graph {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	g := &Graph{
		links:    make(map[string]map[string]Point),
		index:    make(map[string]Point),
		rooms:    rooms,
		messages: messages,
		rng:      rng,
	}
	for _, p := range points {
		g.add(p)
	}
	return g
}

// Load reads a link file. A missing file yields an empty graph.
func Load(path string, rooms ports.RoomCatalog, messages ports.MessageCatalog, rng *rand.Rand) (*Graph, error) {
	g := New(rooms, messages, rng)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return g, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read teleports %s", path)
	}

	var f linkFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "failed to unmarshal teleports %s", path)
	}
	for origin, keys := range f.Teleports {
		for key, entry := range keys {
			if entry.Destination == "" {
				return nil, eris.Errorf("teleport %s/%s has no destination", origin, key)
			}
			g.add(Point{
				Origin:      origin,
				Key:         key,
				Destination: entry.Destination,
				Block:       domain.Location{World: entry.World, X: entry.X, Y: entry.Y, Z: entry.Z},
			})
		}
	}
	return g, nil
}

func (g *Graph) add(p Point) {
	p.Origin = domain.NormalizeRoomID(p.Origin)
	p.Destination = domain.NormalizeRoomID(p.Destination)
	if g.links[p.Origin] == nil {
		g.links[p.Origin] = make(map[string]Point)
	}
	g.links[p.Origin][p.Key] = p
	g.index[p.Block.BlockKey()] = p
}

func (g *Graph) HasConfiguredTeleports() bool {
	return len(g.index) > 0
}

// Links returns the points leaving origin, ordered by key.
func (g *Graph) Links(origin string) []Point {
	keys := g.links[domain.NormalizeRoomID(origin)]
	out := make([]Point, 0, len(keys))
	for _, p := range keys {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// PointAt returns the point whose block contains loc.
func (g *Graph) PointAt(loc domain.Location) (Point, bool) {
	p, ok := g.index[loc.BlockKey()]
	return p, ok
}

// Resolve turns a point's destination into a concrete room and location. The death room
// resolves to one of its alternates with equal probability. It fails when the resolved room has
// no anchor.
func (g *Graph) Resolve(p Point, fallbackWorld string) (Result, bool) {
	room := p.Destination
	if room == domain.DeathRoomID {
		room = domain.DeathRoomAlternates[g.rng.Intn(len(domain.DeathRoomAlternates))]
	}

	anchor, ok := g.rooms.GetRoom(room)
	if !ok {
		return Result{}, false
	}
	world := p.Block.World
	if world == "" {
		world = fallbackWorld
	}
	return Result{
		Room:        room,
		Location:    domain.Location{World: world, X: anchor.X, Y: anchor.Y, Z: anchor.Z},
		DisplayName: domain.RoomDisplayName(room),
	}, true
}

// OnPlayerMove fires the teleport under to, if any. Moves within one block are ignored.
// It reports whether the player was relocated.
func (g *Graph) OnPlayerMove(playerID string, from, to domain.Location, gate Gate, mover Mover) bool {
	if from.SameBlock(to) {
		return false
	}
	p, ok := g.PointAt(to)
	if !ok {
		return false
	}
	if !gate.CanUseTeleport(playerID, p.Origin) {
		return false
	}

	res, ok := g.Resolve(p, mover.WorldOf(playerID))
	if !ok {
		mover.SendMessage(playerID, g.messages.GetMessage("setteleports-missing-destination"))
		return false
	}

	mover.Teleport(playerID, res.Location)
	mover.SendMessage(playerID, g.messages.GetMessage("setteleports-teleported", "destination", res.DisplayName))
	gate.HandleRoomTransition(playerID, res.Room)
	return true
}
