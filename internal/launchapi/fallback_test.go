package launchapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchmeme-terminal/internal/domain"
)

func TestFallbackTokens(t *testing.T) {
	tokens := FallbackTokens(testNow)
	require.Len(t, tokens, 3)

	for _, tok := range tokens {
		assert.True(t, tok.IsPlaceholder, tok.ID)
		assert.Equal(t, true, tok.RawSource["isFallback"], tok.ID)
		assert.Equal(t, testNow, tok.CreatedAt)
		assert.Equal(t, domain.DefaultNetwork, tok.Network)
		assert.InDelta(t, tok.PriceUSD/180, tok.PriceSOL, 1e-12)
	}
	assert.Equal(t, "QPEPE", tokens[2].Symbol)

	// Callers get independent copies
	tokens[0].RawSource["priceUsd"] = 99.0
	assert.Equal(t, 0.023, FallbackTokens(testNow)[0].RawSource["priceUsd"])
}

func TestSyntheticOrderbook(t *testing.T) {
	levels := SyntheticOrderbook("pulse-404", testNow)
	require.Len(t, levels, FallbackOrderbookLevels)

	for i, l := range levels {
		want := domain.BookSideBid
		if i >= 6 {
			want = domain.BookSideAsk
		}
		assert.Equal(t, want, l.Side, "level %d", i)
		assert.GreaterOrEqual(t, l.Amount, 0.0)
		assert.Less(t, l.Amount, 80_000.0)
	}
	assert.InDelta(t, 0.000093, levels[6].Price, 1e-12, "first ask sits at the reference price")
	assert.Less(t, levels[0].Price, levels[11].Price)

	assert.Equal(t, levels, SyntheticOrderbook("pulse-404", testNow), "deterministic per token")
	assert.NotEqual(t, levels[0].Amount, SyntheticOrderbook("meme-777", testNow)[0].Amount)
}

func TestSyntheticTrades(t *testing.T) {
	trades := SyntheticTrades("tok", testNow)
	require.Len(t, trades, FallbackTradeCount)

	assert.Equal(t, "tok-0", trades[0].ID)
	assert.Equal(t, "tok-14", trades[14].ID)
	for i, tr := range trades {
		assert.True(t, tr.Side.IsValid())
		assert.Equal(t, testNow.Add(-time.Duration(i)*time.Minute), tr.Timestamp)
		assert.InDelta(t, 0.023, tr.Price, 0.023*0.005+1e-12)
		assert.Contains(t, tr.Wallet, "So111...")
	}
	assert.Equal(t, trades, SyntheticTrades("tok", testNow))
}
