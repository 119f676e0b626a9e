package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/redis/go-redis/v9"
)

const scanBatch = 256

// KVStore implements domain.KVStore with plain string keys. It lets several
// client processes for the same wallet share commitment records.
type KVStore struct {
	c *Client
}

// NewKVStore creates a KVStore backed by c.
func NewKVStore(c *Client) *KVStore {
	return &KVStore{c: c}
}

// Get returns domain.ErrNotFound when key is absent.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.c.rdb.Get(ctx, s.c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get %s: %w", key, err)
	}
	return b, nil
}

// Put stores value without expiry.
func (s *KVStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.c.rdb.Set(ctx, s.c.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis: put %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	if err := s.c.rdb.Del(ctx, s.c.key(key)).Err(); err != nil {
		return fmt.Errorf("redis: delete %s: %w", key, err)
	}
	return nil
}

// Keys scans for keys under prefix and returns them sorted, without the
// client's key prefix.
func (s *KVStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	match := escapeGlob(s.c.key(prefix)) + "*"
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := s.c.rdb.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: scan %s: %w", prefix, err)
		}
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, s.c.prefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	sort.Strings(keys)
	// SCAN may return a key more than once.
	return compact(keys), nil
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}

func compact(sorted []string) []string {
	out := sorted[:0]
	for i, k := range sorted {
		if i > 0 && k == sorted[i-1] {
			continue
		}
		out = append(out, k)
	}
	return out
}

var _ domain.KVStore = (*KVStore)(nil)
