package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// KVStore is a client-local key-value store. Get returns ErrNotFound for
// missing keys.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// ActivityStatus is the final state of a submitted action.
type ActivityStatus string

const (
	ActivityConfirmed ActivityStatus = "confirmed"
	ActivityFailed    ActivityStatus = "failed"
)

// Activity is one user action against the contract.
type Activity struct {
	ID        string         `json:"id"`
	Wallet    common.Address `json:"wallet"`
	MarketID  *uint64        `json:"market_id,omitempty"`
	Action    string         `json:"action"`
	Status    ActivityStatus `json:"status"`
	TxHash    string         `json:"tx_hash,omitempty"`
	ErrorTag  string         `json:"error_tag,omitempty"`
	Message   string         `json:"message,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ActivityStore persists an append-only log of user actions.
type ActivityStore interface {
	Record(ctx context.Context, a Activity) error
	ListByWallet(ctx context.Context, wallet common.Address, opts ListOpts) ([]Activity, error)
}
