package nakama

const (
	// MatchNameDeadOrAlive is the authoritative match handler name registered with Nakama.
	MatchNameDeadOrAlive = "deadoralive_match"

	// GameLabel identifies our matches in label queries.
	GameLabel = "deadoralive"

	RpcFindMatch = "doa_find_match"
	RpcStart     = "doa_start"
	RpcStatus    = "doa_status"
	RpcReload    = "doa_reload"
	RpcGrant     = "doa_grant"

	// StorageCollection holds one result object per finished run, keyed by run id.
	StorageCollection = "deadoralive"

	// MetadataGrant is the join metadata key carrying an operator grant token.
	MetadataGrant = "grant"
)

// Op codes for client messages and server events.
const (
	// Client -> Server
	OpMove    int64 = 1
	OpRespawn int64 = 2
	OpHazard  int64 = 3

	// Server -> Client events
	OpTeleport       int64 = 101
	OpGameMode       int64 = 102
	OpHealth         int64 = 103
	OpEffect         int64 = 104
	OpChat           int64 = 105
	OpTitle          int64 = 106
	OpProgress       int64 = 107
	OpProgressHidden int64 = 108
	OpEliminated     int64 = 109
	OpMatchEnded     int64 = 110
)

// Signal operations accepted by MatchSignal.
const (
	SignalStart  = "start"
	SignalStatus = "status"
	SignalReload = "reload"
)
