package nakama

import (
	"context"
	"fmt"

	"deadoralive/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// NakamaAccountAdapter implements ports.AccountPort using Nakama's user API.
type NakamaAccountAdapter struct {
	nk runtime.NakamaModule
}

// NewNakamaAccountAdapter creates a new account adapter.
func NewNakamaAccountAdapter(nk runtime.NakamaModule) *NakamaAccountAdapter {
	return &NakamaAccountAdapter{nk: nk}
}

// DisplayName looks up a user's display name, falling back to the username.
func (a *NakamaAccountAdapter) DisplayName(ctx context.Context, userID string) (string, error) {
	users, err := a.nk.UsersGetId(ctx, []string{userID}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	if len(users) == 0 {
		return "", fmt.Errorf("user %s not found", userID)
	}
	if name := users[0].GetDisplayName(); name != "" {
		return name, nil
	}
	return users[0].GetUsername(), nil
}

var _ ports.AccountPort = (*NakamaAccountAdapter)(nil)
