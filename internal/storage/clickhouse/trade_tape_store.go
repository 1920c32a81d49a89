package clickhouse

import (
	"context"
	"fmt"
	"time"

	"launchmeme-terminal/internal/domain"
	"launchmeme-terminal/internal/storage"
)

// TradeTapeStore implements storage.TradeTapeStore using ClickHouse.
type TradeTapeStore struct {
	conn *Conn
}

// NewTradeTapeStore creates a new TradeTapeStore.
func NewTradeTapeStore(conn *Conn) *TradeTapeStore {
	return &TradeTapeStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeTapeStore = (*TradeTapeStore)(nil)

// Insert adds a trade. Returns ErrDuplicateKey if (token_id, trade_id) exists.
func (s *TradeTapeStore) Insert(ctx context.Context, t *domain.TapeTrade) error {
	return s.InsertBulk(ctx, []*domain.TapeTrade{t})
}

// InsertBulk adds multiple trades. Fails entire batch on any duplicate.
func (s *TradeTapeStore) InsertBulk(ctx context.Context, trades []*domain.TapeTrade) (err error) {
	if len(trades) == 0 {
		return nil
	}
	defer func(start time.Time) { observe("insert_trades", start, err) }(time.Now())

	type key struct {
		tokenID string
		tradeID string
	}
	seen := make(map[key]struct{}, len(trades))
	for _, t := range trades {
		if t == nil || t.TokenID == "" || t.TradeID == "" {
			return storage.ErrInvalidInput
		}
		k := key{t.TokenID, t.TradeID}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, t := range trades {
		exists, err := s.exists(ctx, t.TokenID, t.TradeID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trade_tape (
			token_id, trade_id, side, price, amount, wallet, timestamp, observed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range trades {
		err = batch.Append(
			t.TokenID, t.TradeID, string(t.Side), t.Price,
			t.Amount, t.Wallet, t.Timestamp, t.ObservedAt,
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

// GetByTokenID retrieves all trades of a token, ordered by timestamp ASC.
func (s *TradeTapeStore) GetByTokenID(ctx context.Context, tokenID string) ([]*domain.TapeTrade, error) {
	query := `
		SELECT token_id, trade_id, side, price, amount, wallet, timestamp, observed_at
		FROM trade_tape
		WHERE token_id = ?
		ORDER BY timestamp ASC, trade_id ASC
	`

	rows, err := s.conn.Query(ctx, query, tokenID)
	if err != nil {
		return nil, fmt.Errorf("query by token id: %w", err)
	}
	defer rows.Close()

	return scanTape(rows)
}

// GetByTimeRange retrieves trades of a token within [start, end] (inclusive).
func (s *TradeTapeStore) GetByTimeRange(ctx context.Context, tokenID string, start, end int64) ([]*domain.TapeTrade, error) {
	query := `
		SELECT token_id, trade_id, side, price, amount, wallet, timestamp, observed_at
		FROM trade_tape
		WHERE token_id = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC, trade_id ASC
	`

	rows, err := s.conn.Query(ctx, query, tokenID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanTape(rows)
}

func (s *TradeTapeStore) exists(ctx context.Context, tokenID, tradeID string) (bool, error) {
	query := `
		SELECT count(*) FROM trade_tape
		WHERE token_id = ? AND trade_id = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, tokenID, tradeID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanTape(rows chRows) ([]*domain.TapeTrade, error) {
	var trades []*domain.TapeTrade

	for rows.Next() {
		var t domain.TapeTrade
		var side string
		err := rows.Scan(
			&t.TokenID, &t.TradeID, &side, &t.Price,
			&t.Amount, &t.Wallet, &t.Timestamp, &t.ObservedAt,
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
