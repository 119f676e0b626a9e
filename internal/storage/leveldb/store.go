// Package leveldb implements domain.KVStore on a goleveldb file database.
package leveldb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/syndtr/goleveldb/leveldb"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"
	ldb_util "github.com/syndtr/goleveldb/leveldb/util"
)

// Store is a goleveldb-backed key-value store.
type Store struct {
	db *leveldb.DB
}

// Open opens (or creates) the database directory at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("leveldb: create parent dir: %w", err)
	}
	db, err := leveldb.OpenFile(path, &ldb_opt.Options{
		ErrorIfMissing: false,
	})
	if err != nil {
		return nil, fmt.Errorf("leveldb: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	val, err := s.db.Get([]byte(key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("leveldb: get %s: %w", key, err)
	}
	return val, nil
}

func (s *Store) Put(_ context.Context, key string, value []byte) error {
	if err := s.db.Put([]byte(key), value, &ldb_opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("leveldb: put %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	if err := s.db.Delete([]byte(key), nil); err != nil {
		return fmt.Errorf("leveldb: delete %s: %w", key, err)
	}
	return nil
}

// Keys returns every key starting with prefix, in key order.
func (s *Store) Keys(_ context.Context, prefix string) ([]string, error) {
	iter := s.db.NewIterator(ldb_util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()

	var keys []string
	for iter.Next() {
		// iter.Key is only valid until the next call to Next
		keys = append(keys, string(iter.Key()))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("leveldb: iterate %s: %w", prefix, err)
	}
	return keys, nil
}

var _ domain.KVStore = (*Store)(nil)
