package nakama

import (
	"context"
	"database/sql"
	"fmt"

	"deadoralive/internal/app/operator"
	"deadoralive/internal/config"

	"github.com/goccy/go-json"
	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// gRPC status codes used for RPC errors.
const (
	errCodeInvalidArgument    = 3
	errCodePermissionDenied   = 7
	errCodeFailedPrecondition = 9
	errCodeInternal           = 13
)

var tracer = otel.Tracer("deadoralive/rpc")

type rpcFunc func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error)

// RegisterRPCs registers Nakama RPC endpoints.
func RegisterRPCs(initializer runtime.Initializer) error {
	rpcs := []struct {
		id string
		fn rpcFunc
	}{
		{RpcFindMatch, RpcFindMatchHandler},
		{RpcStart, RpcStartHandler},
		{RpcStatus, RpcStatusHandler},
		{RpcReload, RpcReloadHandler},
		{RpcGrant, RpcGrantHandler},
	}
	for _, rpc := range rpcs {
		if err := initializer.RegisterRpc(rpc.id, traced(rpc.id, rpc.fn)); err != nil {
			return eris.Wrapf(err, "failed to register rpc %s", rpc.id)
		}
	}
	return nil
}

// traced wraps an RPC in a server span carrying the caller's user id.
func traced(name string, fn rpcFunc) rpcFunc {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
		ctx, span := tracer.Start(ctx, "rpc."+name, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		span.SetAttributes(attribute.String("user_id", userID))

		out, err := fn(ctx, logger, db, nk, payload)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		}
		return out, err
	}
}

// FindMatchResponse is the payload returned by doa_find_match.
type FindMatchResponse struct {
	MatchID string `json:"match_id"`
	IsNew   bool   `json:"is_new"`
}

// findOrCreateMatch returns the live match id, creating the match when none is running.
func findOrCreateMatch(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule) (string, bool, error) {
	query := fmt.Sprintf("+label.game:%s", GameLabel)
	matches, err := nk.MatchList(ctx, 1, true, "", nil, nil, query)
	if err != nil {
		logger.Error("MatchList error: %v", err)
		return "", false, err
	}
	if len(matches) > 0 {
		return matches[0].MatchId, false, nil
	}

	matchID, err := nk.MatchCreate(ctx, MatchNameDeadOrAlive, map[string]interface{}{})
	if err != nil {
		logger.Error("MatchCreate error: %v", err)
		return "", false, err
	}
	logger.Info("findOrCreateMatch: Created match %s", matchID)
	return matchID, true, nil
}

// RpcFindMatchHandler returns the id of the live match.
func RpcFindMatchHandler(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	matchID, isNew, err := findOrCreateMatch(ctx, logger, nk)
	if err != nil {
		return "", runtime.NewError("Internal error", errCodeInternal)
	}
	b, _ := json.Marshal(FindMatchResponse{MatchID: matchID, IsNew: isNew})
	return string(b), nil
}

type operatorRequest struct {
	Grant string `json:"grant"`
}

// signal sends a request into the live match and maps failures to RPC errors.
// Requests without a user come from the server itself and are trusted by the match.
func signal(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, op, payload string) (SignalResponse, error) {
	var opReq operatorRequest
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &opReq); err != nil {
			return SignalResponse{}, runtime.NewError("Invalid payload", errCodeInvalidArgument)
		}
	}
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)

	matchID, _, err := findOrCreateMatch(ctx, logger, nk)
	if err != nil {
		return SignalResponse{}, runtime.NewError("Internal error", errCodeInternal)
	}
	data, _ := json.Marshal(SignalRequest{Op: op, UserID: userID, Grant: opReq.Grant})
	raw, err := nk.MatchSignal(ctx, matchID, string(data))
	if err != nil {
		logger.Error("signal: MatchSignal %s error: %v", op, err)
		return SignalResponse{}, runtime.NewError("Internal error", errCodeInternal)
	}

	var resp SignalResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		logger.Error("signal: Invalid %s response: %v", op, err)
		return SignalResponse{}, runtime.NewError("Internal error", errCodeInternal)
	}
	if resp.OK {
		return resp, nil
	}

	msg := resp.Error
	if resp.Message != "" {
		msg = resp.Message
	}
	switch resp.Code {
	case codePermissionDenied:
		return resp, runtime.NewError(msg, errCodePermissionDenied)
	case codeInvalidArgument:
		return resp, runtime.NewError(msg, errCodeInvalidArgument)
	default:
		return resp, runtime.NewError(msg, errCodeFailedPrecondition)
	}
}

// RpcStartHandler starts a match on behalf of the caller.
// Payload: (Optional) {"grant": "<operator grant>"}.
func RpcStartHandler(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	resp, err := signal(ctx, logger, nk, SignalStart, payload)
	if err != nil {
		return "", err
	}
	b, _ := json.Marshal(resp)
	return string(b), nil
}

// RpcStatusHandler returns the current match status.
func RpcStatusHandler(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	resp, err := signal(ctx, logger, nk, SignalStatus, "")
	if err != nil {
		return "", err
	}
	b, _ := json.Marshal(resp.Status)
	return string(b), nil
}

// RpcReloadHandler re-reads settings and catalogs while no match is running.
func RpcReloadHandler(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	resp, err := signal(ctx, logger, nk, SignalReload, payload)
	if err != nil {
		return "", err
	}
	b, _ := json.Marshal(resp)
	return string(b), nil
}

type grantRequest struct {
	UserID       string   `json:"user_id"`
	Capabilities []string `json:"capabilities"`
}

type grantResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// RpcGrantHandler mints an operator grant. It may only be called server-to-server.
// Payload: {"user_id": "...", "capabilities": ["start", "reload", "bypass"]}.
func RpcGrantHandler(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	if caller, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string); caller != "" {
		logger.Warn("RpcGrant: Rejected client call from %s", caller)
		return "", runtime.NewError("Grants are server-to-server only", errCodePermissionDenied)
	}

	var req grantRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil || req.UserID == "" {
		return "", runtime.NewError("Invalid payload", errCodeInvalidArgument)
	}
	caps := make([]operator.Capability, 0, len(req.Capabilities))
	for _, name := range req.Capabilities {
		c, err := operator.ParseCapability(name)
		if err != nil {
			return "", runtime.NewError(err.Error(), errCodeInvalidArgument)
		}
		caps = append(caps, c)
	}

	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	settings, err := config.Load(env)
	if err != nil {
		logger.Error("RpcGrant: %s", eris.ToString(err, false))
		return "", runtime.NewError("Internal error", errCodeInternal)
	}
	svc := operator.NewService(settings.OperatorSecret, "", settings.GrantTTL)
	if !svc.Enabled() {
		return "", runtime.NewError("Operator grants are disabled", errCodeFailedPrecondition)
	}
	token, err := svc.Issue(req.UserID, caps...)
	if err != nil {
		return "", runtime.NewError(err.Error(), errCodeInvalidArgument)
	}

	logger.Info("RpcGrant: Issued %v to %s", req.Capabilities, req.UserID)
	b, _ := json.Marshal(grantResponse{Token: token, ExpiresIn: int64(settings.GrantTTL.Seconds())})
	return string(b), nil
}
