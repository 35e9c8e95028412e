package bot

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// BotIdentity is one simulated player profile.
type BotIdentity struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Level       string `json:"level"` // "idle", "wander", "runner"
}

// Roster is a list of bot profiles. Missing profiles are generated.
type Roster struct {
	identities []BotIdentity
}

// LoadRoster reads bot profiles from path. An empty path or a missing file yields an empty roster.
func LoadRoster(path string) (*Roster, error) {
	if path == "" {
		return &Roster{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Roster{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read bot identities %s", path)
	}

	var identities []BotIdentity
	if err := json.Unmarshal(data, &identities); err != nil {
		return nil, eris.Wrapf(err, "failed to unmarshal bot identities %s", path)
	}
	seen := make(map[string]bool, len(identities))
	for i, identity := range identities {
		if identity.UserID == "" {
			return nil, eris.Errorf("bot identity %d has no user_id", i)
		}
		if seen[identity.UserID] {
			return nil, eris.Errorf("duplicate bot user_id %s", identity.UserID)
		}
		seen[identity.UserID] = true
		if _, err := ParseBotLevel(identity.Level); err != nil {
			return nil, eris.Wrapf(err, "bot %s", identity.UserID)
		}
	}
	return &Roster{identities: identities}, nil
}

func (r *Roster) Len() int { return len(r.identities) }

// Identity returns the profile at index, or a generated one past the end of the roster.
func (r *Roster) Identity(index int) BotIdentity {
	if index >= 0 && index < len(r.identities) {
		identity := r.identities[index]
		if identity.DisplayName == "" {
			identity.DisplayName = identity.Username
		}
		if identity.DisplayName == "" {
			identity.DisplayName = identity.UserID
		}
		return identity
	}
	return BotIdentity{
		UserID:      fmt.Sprintf("bot-%d", index),
		Username:    fmt.Sprintf("bot%d", index),
		DisplayName: fmt.Sprintf("Bot %d", index),
	}
}
