package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"launchmeme-terminal/internal/domain"
	"launchmeme-terminal/internal/storage"
)

// TradeTapeStore implements storage.TradeTapeStore using PostgreSQL.
type TradeTapeStore struct {
	pool *Pool
}

// NewTradeTapeStore creates a new TradeTapeStore.
func NewTradeTapeStore(pool *Pool) *TradeTapeStore {
	return &TradeTapeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeTapeStore = (*TradeTapeStore)(nil)

const insertTapeTrade = `
	INSERT INTO trade_tape (
		token_id, trade_id, side, price, amount, wallet, timestamp, observed_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

func tapeArgs(t *domain.TapeTrade) []any {
	return []any{t.TokenID, t.TradeID, string(t.Side), t.Price, t.Amount, t.Wallet, t.Timestamp, t.ObservedAt}
}

// Insert adds a trade. Returns ErrDuplicateKey if (token_id, trade_id) exists.
func (s *TradeTapeStore) Insert(ctx context.Context, t *domain.TapeTrade) (err error) {
	if t == nil || t.TokenID == "" || t.TradeID == "" {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("insert_trade", start, err) }(time.Now())

	if _, err = s.pool.Exec(ctx, insertTapeTrade, tapeArgs(t)...); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert tape trade: %w", err)
	}
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeTapeStore) InsertBulk(ctx context.Context, trades []*domain.TapeTrade) (err error) {
	if len(trades) == 0 {
		return nil
	}
	for _, t := range trades {
		if t == nil || t.TokenID == "" || t.TradeID == "" {
			return storage.ErrInvalidInput
		}
	}
	defer func(start time.Time) { observe("insert_trades", start, err) }(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, t := range trades {
		batch.Queue(insertTapeTrade, tapeArgs(t)...)
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert tape trades in bulk: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByTokenID retrieves all trades of a token, ordered by timestamp ASC.
func (s *TradeTapeStore) GetByTokenID(ctx context.Context, tokenID string) ([]*domain.TapeTrade, error) {
	query := `
		SELECT token_id, trade_id, side, price, amount, wallet, timestamp, observed_at
		FROM trade_tape
		WHERE token_id = $1
		ORDER BY timestamp ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, tokenID)
	if err != nil {
		return nil, fmt.Errorf("get tape by token id: %w", err)
	}
	defer rows.Close()

	return scanTape(rows)
}

// GetByTimeRange retrieves trades of a token within [start, end] (inclusive).
func (s *TradeTapeStore) GetByTimeRange(ctx context.Context, tokenID string, start, end int64) ([]*domain.TapeTrade, error) {
	query := `
		SELECT token_id, trade_id, side, price, amount, wallet, timestamp, observed_at
		FROM trade_tape
		WHERE token_id = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, tokenID, start, end)
	if err != nil {
		return nil, fmt.Errorf("get tape by time range: %w", err)
	}
	defer rows.Close()

	return scanTape(rows)
}

func scanTape(rows pgx.Rows) ([]*domain.TapeTrade, error) {
	var trades []*domain.TapeTrade

	for rows.Next() {
		var t domain.TapeTrade
		var side string
		err := rows.Scan(
			&t.TokenID,
			&t.TradeID,
			&side,
			&t.Price,
			&t.Amount,
			&t.Wallet,
			&t.Timestamp,
			&t.ObservedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan tape trade: %w", err)
		}
		t.Side = domain.TradeSide(side)
		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tape trades: %w", err)
	}

	return trades, nil
}
