package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"launchmeme-terminal/internal/domain"
	"launchmeme-terminal/internal/storage"
)

// TokenSnapshotStore is an in-memory implementation of storage.TokenSnapshotStore.
type TokenSnapshotStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TokenSnapshot // keyed by token_id|captured_at
}

// NewTokenSnapshotStore creates a new in-memory snapshot store.
func NewTokenSnapshotStore() *TokenSnapshotStore {
	return &TokenSnapshotStore{
		data: make(map[string]*domain.TokenSnapshot),
	}
}

func snapshotKey(tokenID string, capturedAt int64) string {
	return fmt.Sprintf("%s|%d", tokenID, capturedAt)
}

// InsertBulk adds snapshots atomically. Fails entire batch on any duplicate.
func (s *TokenSnapshotStore) InsertBulk(_ context.Context, snapshots []*domain.TokenSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(snapshots))
	for _, snap := range snapshots {
		if snap == nil || snap.TokenID == "" {
			return storage.ErrInvalidInput
		}
		key := snapshotKey(snap.TokenID, snap.CapturedAt)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, snap := range snapshots {
		copy := *snap
		s.data[snapshotKey(snap.TokenID, snap.CapturedAt)] = &copy
	}
	return nil
}

// GetByTokenID retrieves all snapshots of a token, ordered by captured_at ASC.
func (s *TokenSnapshotStore) GetByTokenID(_ context.Context, tokenID string) ([]*domain.TokenSnapshot, error) {
	return s.filter(func(snap *domain.TokenSnapshot) bool {
		return snap.TokenID == tokenID
	}), nil
}

// GetByTimeRange retrieves snapshots of a token captured within [start, end] (inclusive).
func (s *TokenSnapshotStore) GetByTimeRange(_ context.Context, tokenID string, start, end int64) ([]*domain.TokenSnapshot, error) {
	return s.filter(func(snap *domain.TokenSnapshot) bool {
		return snap.TokenID == tokenID && snap.CapturedAt >= start && snap.CapturedAt <= end
	}), nil
}

func (s *TokenSnapshotStore) filter(keep func(*domain.TokenSnapshot) bool) []*domain.TokenSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TokenSnapshot
	for _, snap := range s.data {
		if keep(snap) {
			copy := *snap
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CapturedAt < result[j].CapturedAt
	})
	return result
}

var _ storage.TokenSnapshotStore = (*TokenSnapshotStore)(nil)
