package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"launchmeme-terminal/internal/domain"
	"launchmeme-terminal/internal/storage"
)

// TokenSnapshotStore implements storage.TokenSnapshotStore using PostgreSQL.
type TokenSnapshotStore struct {
	pool *Pool
}

// NewTokenSnapshotStore creates a new TokenSnapshotStore.
func NewTokenSnapshotStore(pool *Pool) *TokenSnapshotStore {
	return &TokenSnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenSnapshotStore = (*TokenSnapshotStore)(nil)

// InsertBulk adds snapshots atomically using COPY. Fails entire batch on duplicate.
func (s *TokenSnapshotStore) InsertBulk(ctx context.Context, snapshots []*domain.TokenSnapshot) (err error) {
	if len(snapshots) == 0 {
		return nil
	}
	defer func(start time.Time) { observe("insert_snapshots", start, err) }(time.Now())

	rows := make([][]any, 0, len(snapshots))
	for _, snap := range snapshots {
		if snap == nil || snap.TokenID == "" {
			return storage.ErrInvalidInput
		}
		rows = append(rows, []any{
			snap.TokenID, snap.Symbol, snap.PriceUSD, snap.Liquidity,
			snap.Volume24h, snap.Progress, snap.HolderCount, snap.CapturedAt,
		})
	}

	_, err = s.pool.CopyFrom(ctx,
		pgx.Identifier{"token_snapshots"},
		[]string{"token_id", "symbol", "price_usd", "liquidity", "volume_24h", "progress", "holder_count", "captured_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("copy token snapshots: %w", err)
	}
	return nil
}

// GetByTokenID retrieves all snapshots of a token, ordered by captured_at ASC.
func (s *TokenSnapshotStore) GetByTokenID(ctx context.Context, tokenID string) ([]*domain.TokenSnapshot, error) {
	query := `
		SELECT token_id, symbol, price_usd, liquidity, volume_24h, progress, holder_count, captured_at
		FROM token_snapshots
		WHERE token_id = $1
		ORDER BY captured_at ASC
	`

	rows, err := s.pool.Query(ctx, query, tokenID)
	if err != nil {
		return nil, fmt.Errorf("get snapshots by token id: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// GetByTimeRange retrieves snapshots of a token captured within [start, end] (inclusive).
func (s *TokenSnapshotStore) GetByTimeRange(ctx context.Context, tokenID string, start, end int64) ([]*domain.TokenSnapshot, error) {
	query := `
		SELECT token_id, symbol, price_usd, liquidity, volume_24h, progress, holder_count, captured_at
		FROM token_snapshots
		WHERE token_id = $1 AND captured_at >= $2 AND captured_at <= $3
		ORDER BY captured_at ASC
	`

	rows, err := s.pool.Query(ctx, query, tokenID, start, end)
	if err != nil {
		return nil, fmt.Errorf("get snapshots by time range: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

func scanSnapshots(rows pgx.Rows) ([]*domain.TokenSnapshot, error) {
	var snaps []*domain.TokenSnapshot

	for rows.Next() {
		var snap domain.TokenSnapshot
		err := rows.Scan(
			&snap.TokenID,
			&snap.Symbol,
			&snap.PriceUSD,
			&snap.Liquidity,
			&snap.Volume24h,
			&snap.Progress,
			&snap.HolderCount,
			&snap.CapturedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan token snapshot: %w", err)
		}
		snaps = append(snaps, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token snapshots: %w", err)
	}

	return snaps, nil
}
