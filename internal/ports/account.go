package ports

import "context"

// AccountPort resolves account details for players who are not connected.
type AccountPort interface {
	// DisplayName returns the account's display name, falling back to the username.
	DisplayName(ctx context.Context, userID string) (string, error)
}
