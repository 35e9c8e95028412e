package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Membership maps rooms to the participants standing in them. Every tracked participant is in
// exactly one room set and the sets are pairwise disjoint.
type Membership struct {
	rooms map[string]map[string]struct{}
	where map[string]string
}

// NewMembership builds an index with one empty set per room id.
func NewMembership(roomIDs []string) *Membership {
	m := &Membership{}
	m.Reset(roomIDs)
	return m
}

// Reset drops every participant and recreates one empty set per room id.
func (m *Membership) Reset(roomIDs []string) {
	m.rooms = make(map[string]map[string]struct{}, len(roomIDs))
	m.where = make(map[string]string)
	for _, id := range roomIDs {
		m.rooms[NormalizeRoomID(id)] = make(map[string]struct{})
	}
}

// Place moves a participant into room, removing it from its previous room in the same call.
// It returns the previous room, or "" when the participant was not tracked.
func (m *Membership) Place(participantID, room string) string {
	room = NormalizeRoomID(room)
	prev, tracked := m.where[participantID]
	if tracked {
		if prev == room {
			return prev
		}
		delete(m.rooms[prev], participantID)
	}
	set, ok := m.rooms[room]
	if !ok {
		set = make(map[string]struct{})
		m.rooms[room] = set
	}
	set[participantID] = struct{}{}
	m.where[participantID] = room
	return prev
}

// Remove drops a participant from the index and returns the room it was in.
func (m *Membership) Remove(participantID string) (string, bool) {
	room, ok := m.where[participantID]
	if !ok {
		return "", false
	}
	delete(m.rooms[room], participantID)
	delete(m.where, participantID)
	return room, true
}

// RoomOf returns the room a participant is in.
func (m *Membership) RoomOf(participantID string) (string, bool) {
	room, ok := m.where[participantID]
	return room, ok
}

// Contains reports whether the participant is tracked.
func (m *Membership) Contains(participantID string) bool {
	_, ok := m.where[participantID]
	return ok
}

// Count returns the number of participants in room.
func (m *Membership) Count(room string) int {
	return len(m.rooms[NormalizeRoomID(room)])
}

// Members returns the participant ids in room, sorted.
func (m *Membership) Members(room string) []string {
	set := m.rooms[NormalizeRoomID(room)]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Rooms returns every indexed room id in lexicographic order.
func (m *Membership) Rooms() []string {
	out := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Participants returns every tracked participant id, sorted.
func (m *Membership) Participants() []string {
	out := make([]string, 0, len(m.where))
	for id := range m.where {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of tracked participants.
func (m *Membership) Len() int {
	return len(m.where)
}

// Snapshot renders room -> display names, names sorted case-insensitively.
func (m *Membership) Snapshot(nameOf func(participantID string) string) map[string][]string {
	out := make(map[string][]string, len(m.rooms))
	for room, set := range m.rooms {
		names := make([]string, 0, len(set))
		for id := range set {
			names = append(names, nameOf(id))
		}
		SortNames(names)
		out[room] = names
	}
	return out
}

// Validate checks the partition invariant.
func (m *Membership) Validate() error {
	seen := make(map[string]string, len(m.where))
	for room, set := range m.rooms {
		for id := range set {
			if other, dup := seen[id]; dup {
				return fmt.Errorf("participant %s is in both %s and %s", id, other, room)
			}
			seen[id] = room
			if m.where[id] != room {
				return fmt.Errorf("participant %s indexed in %s but found in %s", id, m.where[id], room)
			}
		}
	}
	if len(seen) != len(m.where) {
		return fmt.Errorf("membership covers %d participants, tracking %d", len(seen), len(m.where))
	}
	return nil
}

// SortNames sorts display names case-insensitively, breaking ties by exact value.
func SortNames(names []string) {
	sort.Slice(names, func(i, j int) bool {
		a, b := strings.ToLower(names[i]), strings.ToLower(names[j])
		if a != b {
			return a < b
		}
		return names[i] < names[j]
	})
}
