package nakama

import (
	"context"
	"database/sql"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/rotisserie/eris"
)

// InitModule wires RPCs and the match handler for the Nakama runtime.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	if err := RegisterRPCs(initializer); err != nil {
		return err
	}

	if err := initializer.RegisterMatch(MatchNameDeadOrAlive, NewMatch); err != nil {
		return eris.Wrap(err, "failed to register match")
	}

	// The game runs in one long-lived match; players find it through doa_find_match.
	matchID, err := nk.MatchCreate(ctx, MatchNameDeadOrAlive, map[string]interface{}{})
	if err != nil {
		return eris.Wrap(err, "failed to create match")
	}

	logger.Info("DeadOrAlive Go module loaded, match %s.", matchID)
	return nil
}
