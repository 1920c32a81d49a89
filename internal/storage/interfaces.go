// Package storage defines the market tape stores: spotlight snapshots and
// observed trades. The tape is write-mostly; nothing in the terminal reads it
// back into live state.
package storage

import (
	"context"

	"launchmeme-terminal/internal/domain"
)

// TokenSnapshotStore provides access to token_snapshots storage.
type TokenSnapshotStore interface {
	// InsertBulk adds snapshots atomically. Fails entire batch on duplicate (token_id, captured_at).
	InsertBulk(ctx context.Context, snapshots []*domain.TokenSnapshot) error

	// GetByTokenID retrieves all snapshots of a token, ordered by captured_at ASC.
	GetByTokenID(ctx context.Context, tokenID string) ([]*domain.TokenSnapshot, error)

	// GetByTimeRange retrieves snapshots of a token captured within [start, end] (inclusive, ms).
	GetByTimeRange(ctx context.Context, tokenID string, start, end int64) ([]*domain.TokenSnapshot, error)
}

// TradeTapeStore provides access to trade_tape storage.
type TradeTapeStore interface {
	// Insert adds a trade. Returns ErrDuplicateKey if (token_id, trade_id) exists.
	Insert(ctx context.Context, t *domain.TapeTrade) error

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.TapeTrade) error

	// GetByTokenID retrieves all trades of a token, ordered by timestamp ASC.
	GetByTokenID(ctx context.Context, tokenID string) ([]*domain.TapeTrade, error)

	// GetByTimeRange retrieves trades of a token within [start, end] (inclusive, ms).
	GetByTimeRange(ctx context.Context, tokenID string, start, end int64) ([]*domain.TapeTrade, error)
}
