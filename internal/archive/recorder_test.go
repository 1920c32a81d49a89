package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchmeme-terminal/internal/domain"
	"launchmeme-terminal/internal/storage/memory"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestRecorder(queueSize int) (*Recorder, *memory.TokenSnapshotStore, *memory.TradeTapeStore) {
	snaps := memory.NewTokenSnapshotStore()
	trades := memory.NewTradeTapeStore()
	r := NewRecorder(RecorderOptions{
		Snapshots:     snaps,
		Trades:        trades,
		QueueSize:     queueSize,
		FlushInterval: time.Hour,
		Clock:         func() time.Time { return testNow },
	})
	return r, snaps, trades
}

// runUntilStopped starts Run on an already cancelled context so the
// final flush writes everything queued so far.
func runUntilStopped(t *testing.T, r *Recorder) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("recorder did not stop")
	}
}

func trade(id string, ts time.Time) domain.Trade {
	return domain.Trade{ID: id, Price: 0.01, Amount: 100, Side: domain.TradeSideBuy, Wallet: "w", Timestamp: ts}
}

func TestRecorder_FlushesOnShutdown(t *testing.T) {
	r, snaps, trades := newTestRecorder(16)

	r.ObserveSpotlight([]domain.Token{
		{ID: "tok1", Symbol: "ONE", PriceUSD: 1},
		{ID: "vibe-001", Symbol: "VIBE", IsPlaceholder: true},
	}, testNow)
	r.ObserveTrade("tok1", trade("t1", testNow.Add(-time.Second)))

	runUntilStopped(t, r)

	ctx := context.Background()
	gotSnaps, err := snaps.GetByTokenID(ctx, "tok1")
	require.NoError(t, err)
	require.Len(t, gotSnaps, 1)
	assert.Equal(t, testNow.UnixMilli(), gotSnaps[0].CapturedAt)

	placeholder, err := snaps.GetByTokenID(ctx, "vibe-001")
	require.NoError(t, err)
	assert.Empty(t, placeholder, "placeholders are not archived")

	gotTrades, err := trades.GetByTokenID(ctx, "tok1")
	require.NoError(t, err)
	require.Len(t, gotTrades, 1)
	assert.Equal(t, "t1", gotTrades[0].TradeID)
	assert.Equal(t, testNow.Add(-time.Second).UnixMilli(), gotTrades[0].Timestamp)
	assert.Equal(t, testNow.UnixMilli(), gotTrades[0].ObservedAt)
}

func TestRecorder_SkipsDuplicates(t *testing.T) {
	r, _, trades := newTestRecorder(16)
	ctx := context.Background()

	existing := domain.TapeTradeOf("tok1", trade("t1", testNow), testNow.UnixMilli())
	require.NoError(t, trades.Insert(ctx, &existing))

	r.ObserveTrade("tok1", trade("t1", testNow))
	r.ObserveTrade("tok1", trade("t2", testNow.Add(time.Second)))

	runUntilStopped(t, r)

	got, err := trades.GetByTokenID(ctx, "tok1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t1", got[0].TradeID)
	assert.Equal(t, "t2", got[1].TradeID)
}

func TestRecorder_DropsWhenQueueFull(t *testing.T) {
	r, _, trades := newTestRecorder(1)

	r.ObserveTrade("tok1", trade("t1", testNow))
	r.ObserveTrade("tok1", trade("t2", testNow))
	r.ObserveTrade("tok1", trade("t3", testNow))

	assert.Equal(t, uint64(2), r.Dropped())

	runUntilStopped(t, r)

	got, err := trades.GetByTokenID(context.Background(), "tok1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRecorder_IgnoresEmptySpotlight(t *testing.T) {
	r, _, _ := newTestRecorder(1)

	r.ObserveSpotlight(nil, testNow)
	r.ObserveSpotlight([]domain.Token{{ID: "meme-777", IsPlaceholder: true}}, testNow)

	assert.Len(t, r.queue, 0)
	assert.Zero(t, r.Dropped())
}

func TestRecorder_NilStores(t *testing.T) {
	r := NewRecorder(RecorderOptions{})

	r.ObserveTrade("tok1", trade("t1", testNow))
	r.ObserveSpotlight([]domain.Token{{ID: "tok1"}}, testNow)

	assert.Len(t, r.queue, 0)
}
