package ports

// SnapshotStore persists the room -> names visibility snapshot.
type SnapshotStore interface {
	// Save replaces the snapshot.
	Save(rooms map[string][]string) error
	// Delete removes the snapshot. Deleting a missing snapshot is not an error.
	Delete() error
}
