package nakama

import (
	"context"
	"fmt"

	"deadoralive/internal/ports"

	"github.com/goccy/go-json"
	"github.com/heroiclabs/nakama-common/runtime"
)

// NakamaResultAdapter stores finished match results as system-owned storage objects.
type NakamaResultAdapter struct {
	nk runtime.NakamaModule
}

// NewNakamaResultAdapter creates a new result adapter.
func NewNakamaResultAdapter(nk runtime.NakamaModule) *NakamaResultAdapter {
	return &NakamaResultAdapter{nk: nk}
}

// RecordResult writes the result under the run id. Clients may read but never write it.
func (a *NakamaResultAdapter) RecordResult(ctx context.Context, result ports.MatchResult) error {
	if result.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if result.Winners == nil {
		result.Winners = []string{}
	}
	value, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal match result: %w", err)
	}

	_, err = a.nk.StorageWrite(ctx, []*runtime.StorageWrite{
		{
			Collection:      StorageCollection,
			Key:             result.RunID,
			Value:           string(value),
			PermissionRead:  runtime.STORAGE_PERMISSION_PUBLIC_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to store match result: %w", err)
	}
	return nil
}

var _ ports.ResultPort = (*NakamaResultAdapter)(nil)
