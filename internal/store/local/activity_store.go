// Package local keeps the activity log in the client-local key-value store
// when no database is configured.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

const activityPrefix = "activity:"

// ActivityStore implements domain.ActivityStore over a domain.KVStore.
// Keys sort by creation time within a wallet.
type ActivityStore struct {
	kv domain.KVStore
}

func NewActivityStore(kv domain.KVStore) *ActivityStore {
	return &ActivityStore{kv: kv}
}

func walletPrefix(w common.Address) string {
	return activityPrefix + strings.ToLower(w.Hex()) + ":"
}

func (s *ActivityStore) Record(ctx context.Context, a domain.Activity) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("local: marshal activity: %w", err)
	}
	key := fmt.Sprintf("%s%020d:%s", walletPrefix(a.Wallet), a.CreatedAt.UnixNano(), a.ID)
	if err := s.kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("local: record activity: %w", err)
	}
	return nil
}

// ListByWallet returns the wallet's activity, newest first.
func (s *ActivityStore) ListByWallet(ctx context.Context, wallet common.Address, opts domain.ListOpts) ([]domain.Activity, error) {
	keys, err := s.kv.Keys(ctx, walletPrefix(wallet))
	if err != nil {
		return nil, fmt.Errorf("local: list activity: %w", err)
	}

	var (
		out     []domain.Activity
		skipped int
	)
	for i := len(keys) - 1; i >= 0; i-- {
		data, err := s.kv.Get(ctx, keys[i])
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("local: read activity: %w", err)
		}
		var a domain.Activity
		if err := json.Unmarshal(data, &a); err != nil {
			continue
		}
		if opts.Since != nil && a.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && a.CreatedAt.After(*opts.Until) {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		out = append(out, a)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

var _ domain.ActivityStore = (*ActivityStore)(nil)
