package config

import (
	"path/filepath"
	"time"

	"deadoralive/internal/domain"

	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
)

// Settings holds match tuning and file locations, read from the Nakama runtime environment.
type Settings struct {
	InitialTimeSeconds    int `env:"DOA_INITIAL_TIME" envDefault:"120"`
	TimeDecrementSeconds  int `env:"DOA_TIME_DECREMENT" envDefault:"10"`
	DamageIntervalSeconds int `env:"DOA_DAMAGE_INTERVAL" envDefault:"1"`
	DamageHearts          int `env:"DOA_DAMAGE_HEARTS" envDefault:"1"`
	StartDelaySeconds     int `env:"DOA_START_DELAY" envDefault:"3"`
	// DeathDelaySeconds is the grace period between entering a death room and dying.
	DeathDelaySeconds int `env:"DOA_DEATH_DELAY" envDefault:"2"`

	EntryRoom string `env:"DOA_ENTRY_ROOM" envDefault:"room_1"`
	Language  string `env:"DOA_LANGUAGE" envDefault:"en"`
	DataDir   string `env:"DOA_DATA_DIR" envDefault:"data/deadoralive"`
	TickRate  int    `env:"DOA_TICK_RATE" envDefault:"5"`

	// OperatorSecret signs operator grants. Empty leaves start/reload open to everyone.
	OperatorSecret string        `env:"DOA_OPERATOR_SECRET"`
	GrantTTL       time.Duration `env:"DOA_GRANT_TTL" envDefault:"1h"`

	Lobby      string `env:"DOA_LOBBY"`
	WorldSpawn string `env:"DOA_WORLD_SPAWN" envDefault:"world:0:64:0"`

	lobby      *domain.Location
	worldSpawn *domain.Location
}

const maxTickRate = 30

// Load parses settings from environ, clamps the tuning values and validates the rest.
func Load(environ map[string]string) (Settings, error) {
	if environ == nil {
		environ = map[string]string{}
	}
	var s Settings
	if err := env.ParseWithOptions(&s, env.Options{Environment: environ}); err != nil {
		return s, eris.Wrap(err, "failed to parse environment variables")
	}
	s.clamp()
	if err := s.validate(); err != nil {
		return s, err
	}
	return s, nil
}

// Default returns the settings used when the environment is empty.
func Default() Settings {
	s, err := Load(nil)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Settings) clamp() {
	s.InitialTimeSeconds = max(1, s.InitialTimeSeconds)
	s.TimeDecrementSeconds = max(0, s.TimeDecrementSeconds)
	s.DamageIntervalSeconds = max(1, s.DamageIntervalSeconds)
	s.DamageHearts = max(1, s.DamageHearts)
	s.StartDelaySeconds = max(0, s.StartDelaySeconds)
	s.DeathDelaySeconds = max(1, s.DeathDelaySeconds)
	s.TickRate = min(maxTickRate, max(1, s.TickRate))
	s.EntryRoom = domain.NormalizeRoomID(s.EntryRoom)
}

func (s *Settings) validate() error {
	if s.EntryRoom == "" {
		return eris.New("DOA_ENTRY_ROOM must not be empty")
	}
	if s.DataDir == "" {
		return eris.New("DOA_DATA_DIR must not be empty")
	}
	if s.GrantTTL <= 0 {
		return eris.New("DOA_GRANT_TTL must be positive")
	}
	if s.Lobby != "" {
		loc, err := domain.ParseLocation(s.Lobby)
		if err != nil {
			return eris.Wrap(err, "invalid DOA_LOBBY")
		}
		loc = loc.Centered()
		s.lobby = &loc
	}
	if s.WorldSpawn != "" {
		loc, err := domain.ParseLocation(s.WorldSpawn)
		if err != nil {
			return eris.Wrap(err, "invalid DOA_WORLD_SPAWN")
		}
		loc = loc.Centered()
		s.worldSpawn = &loc
	}
	return nil
}

// LobbyLocation returns the lobby anchor, centered on its block.
func (s Settings) LobbyLocation() (domain.Location, bool) {
	if s.lobby == nil {
		return domain.Location{}, false
	}
	return *s.lobby, true
}

// WorldSpawnLocation returns the world spawn, centered on its block.
func (s Settings) WorldSpawnLocation() (domain.Location, bool) {
	if s.worldSpawn == nil {
		return domain.Location{}, false
	}
	return *s.worldSpawn, true
}

// TickInterval is the virtual time covered by one match loop tick.
func (s Settings) TickInterval() time.Duration {
	return time.Second / time.Duration(s.TickRate)
}

// RoomsPath is the room catalog file.
func (s Settings) RoomsPath() string { return filepath.Join(s.DataDir, "rooms.json") }

// TeleportsPath is the teleport link file.
func (s Settings) TeleportsPath() string { return filepath.Join(s.DataDir, "teleports.json") }

// MessagesDir holds one JSON file per language.
func (s Settings) MessagesDir() string { return filepath.Join(s.DataDir, "messages") }

// SnapshotPath is the membership visibility file.
func (s Settings) SnapshotPath() string {
	return filepath.Join(s.DataDir, "temporal", "players.json")
}

// GateOpen reports whether operator commands are allowed without a grant.
func (s Settings) GateOpen() bool {
	return s.OperatorSecret == ""
}
