package nakama

import (
	"deadoralive/internal/app"
	"deadoralive/internal/domain"
	"deadoralive/internal/world"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// MovePayload is sent by clients on OpMove. An empty world keeps the current one.
type MovePayload struct {
	World string  `json:"world,omitempty"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

func (p MovePayload) location() domain.Location {
	return domain.Location{World: p.World, X: p.X, Y: p.Y, Z: p.Z}
}

// HazardPayload is sent by clients on OpHazard with raw damage units.
type HazardPayload struct {
	Amount float64 `json:"amount"`
}

type EliminatedMessage struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Reason   string `json:"reason"`
}

type MatchEndedMessage struct {
	RunID   string   `json:"run_id"`
	Success bool     `json:"success"`
	Winners []string `json:"winners"`
	Stages  int      `json:"stages"`
}

// StatusResponse is returned by doa_status and the status signal.
type StatusResponse struct {
	Active              bool                `json:"active"`
	RunID               string              `json:"run_id,omitempty"`
	Phase               string              `json:"phase"`
	StageIndex          int                 `json:"stage_index"`
	StageRoom           string              `json:"stage_room,omitempty"`
	StageSeconds        int                 `json:"stage_seconds"`
	RemainingSeconds    int                 `json:"remaining_seconds"`
	Participants        int                 `json:"participants"`
	Rooms               map[string][]string `json:"rooms,omitempty"`
	PendingEliminations int                 `json:"pending_eliminations"`
	PendingDisconnects  int                 `json:"pending_disconnects"`
}

func statusResponse(st app.Status) StatusResponse {
	count := 0
	for _, members := range st.Rooms {
		count += len(members)
	}
	return StatusResponse{
		Active:              st.Active,
		RunID:               st.RunID,
		Phase:               string(st.Phase),
		StageIndex:          st.StageIndex,
		StageRoom:           st.StageRoom,
		StageSeconds:        st.StageDurationSeconds,
		RemainingSeconds:    st.RemainingSeconds,
		Participants:        count,
		Rooms:               st.Rooms,
		PendingEliminations: st.PendingEliminations,
		PendingDisconnects:  st.PendingDisconnects,
	}
}

// SignalRequest is the MatchSignal envelope used by the RPCs.
type SignalRequest struct {
	Op     string `json:"op"`
	UserID string `json:"user_id,omitempty"`
	Grant  string `json:"grant,omitempty"`
}

type SignalResponse struct {
	OK      bool            `json:"ok"`
	Code    string          `json:"code,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
	Status  *StatusResponse `json:"status,omitempty"`
}

// matchLabel renders the label used by doa_find_match queries.
func matchLabel(st app.Status) (string, error) {
	participants := 0
	for _, members := range st.Rooms {
		participants += len(members)
	}
	label, err := structpb.NewStruct(map[string]interface{}{
		"game":         GameLabel,
		"run_id":       st.RunID,
		"phase":        string(st.Phase),
		"participants": participants,
	})
	if err != nil {
		return "", err
	}
	b, err := (&protojson.MarshalOptions{EmitUnpopulated: true}).Marshal(label)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var noticeOpCodes = map[world.NoticeKind]int64{
	world.NoticeTeleport:       OpTeleport,
	world.NoticeGameMode:       OpGameMode,
	world.NoticeHealth:         OpHealth,
	world.NoticeEffect:         OpEffect,
	world.NoticeChat:           OpChat,
	world.NoticeTitle:          OpTitle,
	world.NoticeProgress:       OpProgress,
	world.NoticeProgressHidden: OpProgressHidden,
}
