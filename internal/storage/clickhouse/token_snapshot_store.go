package clickhouse

import (
	"context"
	"fmt"
	"time"

	"launchmeme-terminal/internal/domain"
	"launchmeme-terminal/internal/storage"
)

// TokenSnapshotStore implements storage.TokenSnapshotStore using ClickHouse.
type TokenSnapshotStore struct {
	conn *Conn
}

// NewTokenSnapshotStore creates a new TokenSnapshotStore.
func NewTokenSnapshotStore(conn *Conn) *TokenSnapshotStore {
	return &TokenSnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TokenSnapshotStore = (*TokenSnapshotStore)(nil)

// InsertBulk adds snapshots. Fails entire batch on duplicate (token_id, captured_at).
func (s *TokenSnapshotStore) InsertBulk(ctx context.Context, snapshots []*domain.TokenSnapshot) (err error) {
	if len(snapshots) == 0 {
		return nil
	}
	defer func(start time.Time) { observe("insert_snapshots", start, err) }(time.Now())

	type key struct {
		tokenID    string
		capturedAt int64
	}
	seen := make(map[key]struct{}, len(snapshots))
	for _, snap := range snapshots {
		if snap == nil || snap.TokenID == "" {
			return storage.ErrInvalidInput
		}
		k := key{snap.TokenID, snap.CapturedAt}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, snap := range snapshots {
		exists, err := s.exists(ctx, snap.TokenID, snap.CapturedAt)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO token_snapshots (
			token_id, symbol, price_usd, liquidity, volume_24h, progress, holder_count, captured_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, snap := range snapshots {
		err = batch.Append(
			snap.TokenID, snap.Symbol, snap.PriceUSD, snap.Liquidity,
			snap.Volume24h, snap.Progress, snap.HolderCount, snap.CapturedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTokenID retrieves all snapshots of a token, ordered by captured_at ASC.
func (s *TokenSnapshotStore) GetByTokenID(ctx context.Context, tokenID string) ([]*domain.TokenSnapshot, error) {
	query := `
		SELECT token_id, symbol, price_usd, liquidity, volume_24h, progress, holder_count, captured_at
		FROM token_snapshots
		WHERE token_id = ?
		ORDER BY captured_at ASC
	`

	rows, err := s.conn.Query(ctx, query, tokenID)
	if err != nil {
		return nil, fmt.Errorf("query by token id: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// GetByTimeRange retrieves snapshots of a token captured within [start, end] (inclusive).
func (s *TokenSnapshotStore) GetByTimeRange(ctx context.Context, tokenID string, start, end int64) ([]*domain.TokenSnapshot, error) {
	query := `
		SELECT token_id, symbol, price_usd, liquidity, volume_24h, progress, holder_count, captured_at
		FROM token_snapshots
		WHERE token_id = ? AND captured_at >= ? AND captured_at <= ?
		ORDER BY captured_at ASC
	`

	rows, err := s.conn.Query(ctx, query, tokenID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

func (s *TokenSnapshotStore) exists(ctx context.Context, tokenID string, capturedAt int64) (bool, error) {
	query := `
		SELECT count(*) FROM token_snapshots
		WHERE token_id = ? AND captured_at = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, tokenID, capturedAt).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanSnapshots(rows chRows) ([]*domain.TokenSnapshot, error) {
	var snaps []*domain.TokenSnapshot

	for rows.Next() {
		var snap domain.TokenSnapshot
		err := rows.Scan(
			&snap.TokenID, &snap.Symbol, &snap.PriceUSD, &snap.Liquidity,
			&snap.Volume24h, &snap.Progress, &snap.HolderCount, &snap.CapturedAt,
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
