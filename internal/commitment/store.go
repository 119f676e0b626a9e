package commitment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// Record is what gets persisted for one commitment.
type Record struct {
	Vote      domain.Vote `json:"vote"`
	Secret    Secret      `json:"secret"`
	Timestamp int64       `json:"timestamp"` // unix millis
}

// CreatedAt returns the record's timestamp as a time.Time.
func (r Record) CreatedAt() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Commitment returns the hash this record opens.
func (r Record) Commitment() common.Hash {
	return Hash(r.Vote, r.Secret)
}

// Entry is a record together with the market it belongs to.
type Entry struct {
	MarketID uint64 `json:"market_id"`
	Record
}

// Namespace builds the default key namespace for a contract deployment.
func Namespace(chainID uint64, contract common.Address) string {
	return fmt.Sprintf("ppm:%d:%s", chainID, contract.Hex())
}

// Store persists commitment records in a client-local key-value store under
// "<namespace>:<wallet lowercase>:<marketId>". Writes for the same key
// overwrite; the last writer wins.
type Store struct {
	kv        domain.KVStore
	namespace string
	logger    *slog.Logger
	now       func() time.Time
}

// NewStore creates a Store over kv.
func NewStore(kv domain.KVStore, namespace string, logger *slog.Logger) *Store {
	return &Store{
		kv:        kv,
		namespace: namespace,
		logger:    logger.With(slog.String("component", "commitment_store")),
		now:       time.Now,
	}
}

// Namespace returns the key namespace this store writes under.
func (s *Store) Namespace() string { return s.namespace }

func (s *Store) walletPrefix(wallet common.Address) string {
	return s.namespace + ":" + strings.ToLower(wallet.Hex()) + ":"
}

// Key returns the storage key for a wallet and market.
func (s *Store) Key(wallet common.Address, marketID uint64) string {
	return s.walletPrefix(wallet) + strconv.FormatUint(marketID, 10)
}

// Save writes a record for (wallet, marketID), replacing any existing one.
// Storage failures are returned so the caller can tell the user the secret
// was not kept.
func (s *Store) Save(ctx context.Context, wallet common.Address, marketID uint64, vote domain.Vote, secret Secret) error {
	if !vote.Valid() {
		return fmt.Errorf("commitment: save: %w", domain.ErrInvalidVote)
	}
	key := s.Key(wallet, marketID)

	if prev, ok := s.Load(ctx, wallet, marketID); ok && prev.Secret != secret {
		s.logger.WarnContext(ctx, "overwriting stored commitment",
			slog.Uint64("market_id", marketID),
			slog.String("wallet", wallet.Hex()),
		)
	}

	rec := Record{Vote: vote, Secret: secret, Timestamp: s.now().UnixMilli()}
	if err := s.put(ctx, key, rec); err != nil {
		return err
	}
	return nil
}

func (s *Store) put(ctx context.Context, key string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("commitment: marshal record: %w", err)
	}
	if err := s.kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("commitment: save %s: %w: %w", key, domain.ErrStorageUnavailable, err)
	}
	return nil
}

// Load returns the record for (wallet, marketID). Missing, unreadable or
// malformed records are all reported as absent.
func (s *Store) Load(ctx context.Context, wallet common.Address, marketID uint64) (Record, bool) {
	key := s.Key(wallet, marketID)
	data, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "read commitment failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return Record{}, false
	}
	rec, err := decodeRecord(data)
	if err != nil {
		s.logger.WarnContext(ctx, "ignoring malformed commitment",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return Record{}, false
	}
	return rec, true
}

func decodeRecord(data []byte) (Record, error) {
	var raw struct {
		Vote      *domain.Vote `json:"vote"`
		Secret    *Secret      `json:"secret"`
		Salt      *Secret      `json:"salt"` // records written by the browser client
		Timestamp int64        `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Record{}, err
	}
	if raw.Secret == nil {
		raw.Secret = raw.Salt
	}
	if raw.Vote == nil || !raw.Vote.Valid() {
		return Record{}, domain.ErrInvalidVote
	}
	if raw.Secret == nil {
		return Record{}, domain.ErrInvalidSecret
	}
	return Record{Vote: *raw.Vote, Secret: *raw.Secret, Timestamp: raw.Timestamp}, nil
}

// Clear deletes the record for (wallet, marketID). Clearing a missing
// record is not an error.
func (s *Store) Clear(ctx context.Context, wallet common.Address, marketID uint64) error {
	if err := s.kv.Delete(ctx, s.Key(wallet, marketID)); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("commitment: clear: %w: %w", domain.ErrStorageUnavailable, err)
	}
	return nil
}

// List returns every readable record of wallet in this namespace, ordered
// by market id. Malformed records are skipped.
func (s *Store) List(ctx context.Context, wallet common.Address) ([]Entry, error) {
	prefix := s.walletPrefix(wallet)
	keys, err := s.kv.Keys(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("commitment: list: %w: %w", domain.ErrStorageUnavailable, err)
	}

	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		id, err := strconv.ParseUint(strings.TrimPrefix(key, prefix), 10, 64)
		if err != nil {
			continue
		}
		rec, ok := s.Load(ctx, wallet, id)
		if !ok {
			continue
		}
		entries = append(entries, Entry{MarketID: id, Record: rec})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].MarketID < entries[j].MarketID })
	return entries, nil
}

// RestoreResult reports what Restore did.
type RestoreResult struct {
	Written int      `json:"restored"`
	Skipped []uint64 `json:"skipped"`
}

// Restore writes entries back for wallet, preserving their timestamps. An
// entry that would replace a differing or newer stored record is skipped
// unless force is set. On failure the result counts what was done so far.
func (s *Store) Restore(ctx context.Context, wallet common.Address, entries []Entry, force bool) (RestoreResult, error) {
	res := RestoreResult{Skipped: make([]uint64, 0)}
	for _, e := range entries {
		if !e.Vote.Valid() {
			continue
		}
		if prev, ok := s.Load(ctx, wallet, e.MarketID); ok && conflicts(prev, e.Record) {
			if !force {
				s.logger.WarnContext(ctx, "restore skipped conflicting commitment",
					slog.Uint64("market_id", e.MarketID),
					slog.String("wallet", wallet.Hex()),
					slog.Int64("stored_ts", prev.Timestamp),
					slog.Int64("backup_ts", e.Timestamp),
				)
				res.Skipped = append(res.Skipped, e.MarketID)
				continue
			}
			s.logger.WarnContext(ctx, "restore overwriting stored commitment",
				slog.Uint64("market_id", e.MarketID),
				slog.String("wallet", wallet.Hex()),
			)
		}
		if err := s.put(ctx, s.Key(wallet, e.MarketID), e.Record); err != nil {
			return res, err
		}
		res.Written++
	}
	return res, nil
}

// conflicts reports whether writing next over prev could lose a secret.
func conflicts(prev, next Record) bool {
	return prev.Secret != next.Secret || prev.Vote != next.Vote || prev.Timestamp > next.Timestamp
}
