package memory

import (
	"context"
	"sort"
	"sync"

	"launchmeme-terminal/internal/domain"
	"launchmeme-terminal/internal/storage"
)

// TradeTapeStore is an in-memory implementation of storage.TradeTapeStore.
type TradeTapeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TapeTrade // keyed by token_id|trade_id
}

// NewTradeTapeStore creates a new in-memory trade tape.
func NewTradeTapeStore() *TradeTapeStore {
	return &TradeTapeStore{
		data: make(map[string]*domain.TapeTrade),
	}
}

func tapeKey(tokenID, tradeID string) string {
	return tokenID + "|" + tradeID
}

func validTapeTrade(t *domain.TapeTrade) bool {
	return t != nil && t.TokenID != "" && t.TradeID != ""
}

// Insert adds a trade. Returns ErrDuplicateKey if exists.
func (s *TradeTapeStore) Insert(_ context.Context, t *domain.TapeTrade) error {
	if !validTapeTrade(t) {
		return storage.ErrInvalidInput
	}

	key := tapeKey(t.TokenID, t.TradeID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.data[key] = &copy
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeTapeStore) InsertBulk(_ context.Context, trades []*domain.TapeTrade) error {
	if len(trades) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(trades))
	for _, t := range trades {
		if !validTapeTrade(t) {
			return storage.ErrInvalidInput
		}
		key := tapeKey(t.TokenID, t.TradeID)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, t := range trades {
		copy := *t
		s.data[tapeKey(t.TokenID, t.TradeID)] = &copy
	}
	return nil
}

// GetByTokenID retrieves all trades of a token, ordered by timestamp ASC.
func (s *TradeTapeStore) GetByTokenID(_ context.Context, tokenID string) ([]*domain.TapeTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TapeTrade
	for _, t := range s.data {
		if t.TokenID == tokenID {
			copy := *t
			result = append(result, &copy)
		}
	}
	sortTape(result)
	return result, nil
}

// GetByTimeRange retrieves trades of a token within [start, end] (inclusive).
func (s *TradeTapeStore) GetByTimeRange(_ context.Context, tokenID string, start, end int64) ([]*domain.TapeTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TapeTrade
	for _, t := range s.data {
		if t.TokenID == tokenID && t.Timestamp >= start && t.Timestamp <= end {
			copy := *t
			result = append(result, &copy)
		}
	}
	sortTape(result)
	return result, nil
}

func sortTape(trades []*domain.TapeTrade) {
	sort.Slice(trades, func(i, j int) bool {
		if trades[i].Timestamp != trades[j].Timestamp {
			return trades[i].Timestamp < trades[j].Timestamp
		}
		return trades[i].TradeID < trades[j].TradeID
	})
}

var _ storage.TradeTapeStore = (*TradeTapeStore)(nil)
