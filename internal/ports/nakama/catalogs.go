package nakama

import (
	"math/rand"

	"deadoralive/internal/config"
	"deadoralive/internal/messages"
	"deadoralive/internal/rooms"
	"deadoralive/internal/teleport"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/rotisserie/eris"
)

// catalogs is the file-backed data a match runs against.
type catalogs struct {
	rooms     *rooms.Catalog
	teleports *teleport.Graph
	messages  *messages.Catalog
}

// loadCatalogs reads rooms, teleports and messages from the settings' data dir.
func loadCatalogs(logger runtime.Logger, s config.Settings, rng *rand.Rand) (catalogs, error) {
	msgs, err := messages.Load(logger, s.MessagesDir(), s.Language)
	if err != nil {
		return catalogs{}, eris.Wrap(err, "failed to load messages")
	}
	rc, err := rooms.Load(s.RoomsPath())
	if err != nil {
		return catalogs{}, eris.Wrap(err, "failed to load rooms")
	}
	graph, err := teleport.Load(s.TeleportsPath(), rc, msgs, rng)
	if err != nil {
		return catalogs{}, eris.Wrap(err, "failed to load teleports")
	}
	logger.Info("loadCatalogs: %d rooms, teleports configured=%v, language=%s",
		len(rc.GetRoomIDs()), graph.HasConfiguredTeleports(), msgs.Language())
	return catalogs{rooms: rc, teleports: graph, messages: msgs}, nil
}
