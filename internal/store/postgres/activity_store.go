package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/ppmclient/internal/domain"
)

// ActivityStore implements domain.ActivityStore on the activity table.
type ActivityStore struct {
	pool *pgxpool.Pool
}

// NewActivityStore creates an ActivityStore backed by pool.
func NewActivityStore(pool *pgxpool.Pool) *ActivityStore {
	return &ActivityStore{pool: pool}
}

func walletKey(w common.Address) string { return strings.ToLower(w.Hex()) }

// Record appends a.
func (s *ActivityStore) Record(ctx context.Context, a domain.Activity) error {
	var marketID *int64
	if a.MarketID != nil {
		v := int64(*a.MarketID)
		marketID = &v
	}
	const query = `
		INSERT INTO activity (id, wallet, market_id, action, status, tx_hash, error_tag, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.pool.Exec(ctx, query,
		a.ID, walletKey(a.Wallet), marketID, a.Action, string(a.Status),
		a.TxHash, a.ErrorTag, a.Message, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record activity %s: %w", a.Action, err)
	}
	return nil
}

// ListByWallet returns the wallet's activity, newest first.
func (s *ActivityStore) ListByWallet(ctx context.Context, wallet common.Address, opts domain.ListOpts) ([]domain.Activity, error) {
	query := `SELECT id, wallet, market_id, action, status, tx_hash, error_tag, message, created_at
		FROM activity WHERE wallet = $1`
	args := []any{walletKey(wallet)}

	if opts.Since != nil {
		args = append(args, *opts.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list activity: %w", err)
	}
	defer rows.Close()

	var out []domain.Activity
	for rows.Next() {
		var (
			a        domain.Activity
			wallet   string
			status   string
			marketID *int64
		)
		if err := rows.Scan(&a.ID, &wallet, &marketID, &a.Action, &status,
			&a.TxHash, &a.ErrorTag, &a.Message, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan activity: %w", err)
		}
		a.Wallet = common.HexToAddress(wallet)
		a.Status = domain.ActivityStatus(status)
		if marketID != nil {
			v := uint64(*marketID)
			a.MarketID = &v
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list activity rows: %w", err)
	}
	return out, nil
}

var _ domain.ActivityStore = (*ActivityStore)(nil)
