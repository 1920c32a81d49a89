// Package archive writes the observed market tape (spotlight snapshots and
// streamed trades) to a storage backend. The tape is write-only: nothing in
// the terminal reads it back.
package archive

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"launchmeme-terminal/internal/domain"
	"launchmeme-terminal/internal/markets"
	"launchmeme-terminal/internal/observability"
	"launchmeme-terminal/internal/storage"
)

const (
	kindSnapshots = "snapshots"
	kindTrades    = "trades"
)

// Recorder buffers market observations and flushes them in batches.
// Observe methods never block; records are dropped when the queue is full.
type Recorder struct {
	snapshots     storage.TokenSnapshotStore
	trades        storage.TradeTapeStore
	flushInterval time.Duration
	batchSize     int
	logger        *zap.Logger
	now           func() time.Time

	queue   chan record
	dropped atomic.Uint64

	// Owned by the Run goroutine.
	pendingSnapshots []*domain.TokenSnapshot
	pendingTrades    []*domain.TapeTrade
}

type record struct {
	snapshots []*domain.TokenSnapshot
	trade     *domain.TapeTrade
}

// RecorderOptions contains configuration for creating a Recorder.
type RecorderOptions struct {
	Snapshots     storage.TokenSnapshotStore
	Trades        storage.TradeTapeStore
	QueueSize     int           // Default: 1024
	FlushInterval time.Duration // Default: 2s
	BatchSize     int           // Default: 500 rows per kind
	Logger        *zap.Logger
	Clock         func() time.Time
}

// NewRecorder creates a recorder. Run must be started for records to be written.
func NewRecorder(opts RecorderOptions) *Recorder {
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}

	flushInterval := opts.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	return &Recorder{
		snapshots:     opts.Snapshots,
		trades:        opts.Trades,
		flushInterval: flushInterval,
		batchSize:     batchSize,
		logger:        logger.Named("archive"),
		now:           now,
		queue:         make(chan record, queueSize),
	}
}

// ObserveSpotlight records one snapshot row per real token.
func (r *Recorder) ObserveSpotlight(tokens []domain.Token, at time.Time) {
	if r.snapshots == nil {
		return
	}
	capturedAt := at.UnixMilli()
	snaps := make([]*domain.TokenSnapshot, 0, len(tokens))
	for _, t := range tokens {
		if t.IsPlaceholder {
			continue
		}
		snap := domain.SnapshotOf(t, capturedAt)
		snaps = append(snaps, &snap)
	}
	if len(snaps) == 0 {
		return
	}
	r.enqueue(record{snapshots: snaps})
}

// ObserveTrade records a trade applied to the selected token.
func (r *Recorder) ObserveTrade(tokenID string, trade domain.Trade) {
	if r.trades == nil {
		return
	}
	tt := domain.TapeTradeOf(tokenID, trade, r.now().UnixMilli())
	r.enqueue(record{trade: &tt})
}

// Dropped returns the number of records discarded because the queue was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

func (r *Recorder) enqueue(rec record) {
	select {
	case r.queue <- rec:
	default:
		r.dropped.Add(1)
		observability.RecordArchiveDropped()
	}
}

// Run drains the queue and flushes batches until ctx is cancelled.
// Pending records are flushed before it returns.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	r.logger.Info("recorder started", zap.Duration("flush_interval", r.flushInterval))

	for {
		select {
		case <-ctx.Done():
			r.drain()
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			r.flush(flushCtx)
			cancel()
			r.logger.Info("recorder stopped", zap.Uint64("dropped", r.Dropped()))
			return ctx.Err()

		case rec := <-r.queue:
			r.buffer(rec)
			if len(r.pendingTrades) >= r.batchSize || len(r.pendingSnapshots) >= r.batchSize {
				r.flush(ctx)
			}

		case <-ticker.C:
			r.flush(ctx)
		}
	}
}

func (r *Recorder) buffer(rec record) {
	if rec.trade != nil {
		r.pendingTrades = append(r.pendingTrades, rec.trade)
	}
	r.pendingSnapshots = append(r.pendingSnapshots, rec.snapshots...)
}

func (r *Recorder) drain() {
	for {
		select {
		case rec := <-r.queue:
			r.buffer(rec)
		default:
			return
		}
	}
}

func (r *Recorder) flush(ctx context.Context) {
	if len(r.pendingSnapshots) > 0 {
		snaps := r.pendingSnapshots
		r.pendingSnapshots = nil
		r.write(kindSnapshots, len(snaps), func() error {
			return r.snapshots.InsertBulk(ctx, snaps)
		}, func(i int) error {
			return r.snapshots.InsertBulk(ctx, snaps[i:i+1])
		})
	}

	if len(r.pendingTrades) > 0 {
		trades := r.pendingTrades
		r.pendingTrades = nil
		r.write(kindTrades, len(trades), func() error {
			return r.trades.InsertBulk(ctx, trades)
		}, func(i int) error {
			return r.trades.Insert(ctx, trades[i])
		})
	}
}

// write inserts a batch. A duplicate rejects the whole batch, so the rows
// are retried one by one and duplicates are skipped.
func (r *Recorder) write(kind string, n int, bulk func() error, single func(i int) error) {
	err := bulk()
	if err == nil {
		observability.RecordArchiveWrite(kind, n, nil)
		return
	}
	if !errors.Is(err, storage.ErrDuplicateKey) {
		r.logger.Warn("archive batch failed", zap.String("kind", kind), zap.Int("rows", n), zap.Error(err))
		observability.RecordArchiveWrite(kind, n, err)
		return
	}

	written := 0
	for i := 0; i < n; i++ {
		switch err := single(i); {
		case err == nil:
			written++
		case errors.Is(err, storage.ErrDuplicateKey):
			// Already archived.
		default:
			r.logger.Warn("archive row failed", zap.String("kind", kind), zap.Error(err))
			observability.RecordArchiveWrite(kind, 1, err)
		}
	}
	observability.RecordArchiveWrite(kind, written, nil)
}

var _ markets.Observer = (*Recorder)(nil)
