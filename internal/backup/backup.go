// Package backup exports a wallet's commitment records to object storage,
// sealed with a passphrase, and restores them on another machine.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/ppmclient/internal/commitment"
	"github.com/alanyoungcy/ppmclient/internal/crypto"
	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

const (
	formatVersion = 1
	contentType   = "application/json"
	fileSuffix    = ".json.enc"
	// maxBackupSize bounds how much Restore reads.
	maxBackupSize = 16 << 20
)

// ErrEmpty is returned by Export when the wallet has no records.
var ErrEmpty = errors.New("backup: no commitments to export")

// File is the plaintext inside a sealed backup.
type File struct {
	Version   int                `json:"version"`
	Namespace string             `json:"namespace"`
	Wallet    common.Address     `json:"wallet"`
	CreatedAt time.Time          `json:"created_at"`
	Entries   []commitment.Entry `json:"entries"`
}

// Service exports and restores backups for one commitment namespace.
type Service struct {
	store  *commitment.Store
	blobs  domain.BlobStore
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Service.
func New(store *commitment.Store, blobs domain.BlobStore, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		blobs:  blobs,
		logger: logger.With(slog.String("component", "backup")),
		now:    time.Now,
	}
}

// Prefix is the blob directory holding wallet's backups.
func (s *Service) Prefix(wallet common.Address) string {
	ns := strings.NewReplacer(":", "-", "/", "-").Replace(s.store.Namespace())
	return "backups/" + ns + "/" + strings.ToLower(wallet.Hex()) + "/"
}

// Export seals every record of wallet and uploads it. It returns the blob
// path and the number of records.
func (s *Service) Export(ctx context.Context, wallet common.Address, passphrase string) (string, int, error) {
	entries, err := s.store.List(ctx, wallet)
	if err != nil {
		return "", 0, fmt.Errorf("backup: export: %w", err)
	}
	if len(entries) == 0 {
		return "", 0, ErrEmpty
	}

	now := s.now().UTC()
	plain, err := json.Marshal(File{
		Version:   formatVersion,
		Namespace: s.store.Namespace(),
		Wallet:    wallet,
		CreatedAt: now,
		Entries:   entries,
	})
	if err != nil {
		return "", 0, fmt.Errorf("backup: marshal: %w", err)
	}
	sealed, err := crypto.Seal(plain, passphrase)
	if err != nil {
		return "", 0, fmt.Errorf("backup: seal: %w", err)
	}

	path := s.Prefix(wallet) + now.Format("20060102T150405.000Z") + fileSuffix
	if err := s.blobs.Put(ctx, path, bytes.NewReader(sealed), contentType); err != nil {
		return "", 0, fmt.Errorf("backup: upload: %w", err)
	}
	s.logger.InfoContext(ctx, "backup exported",
		slog.String("path", path),
		slog.Int("records", len(entries)),
	)
	return path, len(entries), nil
}

// List returns wallet's backups, newest first.
func (s *Service) List(ctx context.Context, wallet common.Address) ([]domain.BlobInfo, error) {
	infos, err := s.blobs.List(ctx, s.Prefix(wallet))
	if err != nil {
		return nil, fmt.Errorf("backup: list: %w", err)
	}
	out := infos[:0]
	for _, info := range infos {
		if strings.HasSuffix(info.Path, fileSuffix) {
			out = append(out, info)
		}
	}
	// Names embed the export time, so they sort chronologically.
	sort.Slice(out, func(i, j int) bool { return out[i].Path > out[j].Path })
	return out, nil
}

// Restore opens the backup at path and writes its records for wallet. An
// empty path picks the newest backup. A backup of another wallet or
// namespace is refused. Records that differ from what is stored locally are
// skipped unless force is set.
func (s *Service) Restore(ctx context.Context, wallet common.Address, path, passphrase string, force bool) (commitment.RestoreResult, error) {
	var none commitment.RestoreResult
	if path == "" {
		infos, err := s.List(ctx, wallet)
		if err != nil {
			return none, err
		}
		if len(infos) == 0 {
			return none, fmt.Errorf("backup: restore: %w", domain.ErrNotFound)
		}
		path = infos[0].Path
	}

	rc, err := s.blobs.Get(ctx, path)
	if err != nil {
		return none, fmt.Errorf("backup: restore: %w", err)
	}
	defer rc.Close()
	sealed, err := io.ReadAll(io.LimitReader(rc, maxBackupSize))
	if err != nil {
		return none, fmt.Errorf("backup: read %s: %w", path, err)
	}

	plain, err := crypto.Open(sealed, passphrase)
	if err != nil {
		return none, fmt.Errorf("backup: open %s: %w", path, err)
	}
	var f File
	if err := json.Unmarshal(plain, &f); err != nil {
		return none, fmt.Errorf("backup: decode %s: %w", path, err)
	}
	if f.Version != formatVersion {
		return none, fmt.Errorf("backup: %s: unsupported version %d", path, f.Version)
	}
	if f.Wallet != wallet || f.Namespace != s.store.Namespace() {
		return none, fmt.Errorf("backup: %s belongs to %s in %s: %w",
			path, f.Wallet.Hex(), f.Namespace, domain.ErrUnauthorized)
	}

	res, err := s.store.Restore(ctx, wallet, f.Entries, force)
	if err != nil {
		return res, fmt.Errorf("backup: restore: %w", err)
	}
	s.logger.InfoContext(ctx, "backup restored",
		slog.String("path", path),
		slog.Int("records", res.Written),
		slog.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}
