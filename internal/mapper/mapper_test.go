package mapper

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchmeme-terminal/internal/domain"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestMapper() *Mapper {
	return New(WithClock(func() time.Time { return fixedNow }))
}

func decode(t *testing.T, s string) domain.RawToken {
	t.Helper()
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &raw))
	return raw
}

func TestNormalize_FullPayload(t *testing.T) {
	m := newTestMapper()
	raw := decode(t, `{
		"token": "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr",
		"name": "Popcat",
		"symbol": "POP",
		"priceUsd": 0.0125,
		"priceSol": "0.00007",
		"change24h": -4.5,
		"_balanceSol": 320.5,
		"marketCapUsd": 125000,
		"volumeUsd": 9800,
		"progress": 140,
		"holders": 412,
		"score": 3,
		"photo": "https://cdn/pop.png",
		"metadataUri": "https://cdn/pop.json",
		"mint_time": 1700000000000
	}`)

	tok, ok := m.Normalize(OriginSnapshot, raw)
	require.True(t, ok)

	assert.Equal(t, "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr", tok.ID)
	assert.Equal(t, "Popcat", tok.Name)
	assert.Equal(t, "POP", tok.Symbol)
	assert.Equal(t, 0.0125, tok.PriceUSD)
	assert.Equal(t, 0.00007, tok.PriceSOL)
	assert.Equal(t, -4.5, tok.Change24h)
	assert.Equal(t, 320.5, tok.Liquidity)
	assert.Equal(t, 125000.0, tok.FullyDilutedValue)
	assert.Equal(t, 9800.0, tok.Volume24h)
	assert.Equal(t, 100.0, tok.Progress, "progress is clamped")
	assert.Equal(t, int64(412), tok.HolderCount, "holders wins over score")
	assert.Equal(t, domain.DefaultNetwork, tok.Network)
	assert.Equal(t, "https://cdn/pop.png", tok.IconURL)
	assert.Equal(t, "https://cdn/pop.json", tok.BannerURL)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), tok.CreatedAt)
	assert.False(t, tok.IsPlaceholder)
	assert.Equal(t, raw, tok.RawSource)
}

func TestNormalize_MissingRequiredKeys(t *testing.T) {
	m := newTestMapper()
	cases := []string{
		`{"name": "A", "symbol": "A"}`,
		`{"token": "t1", "symbol": "A"}`,
		`{"token": "t1", "name": "A"}`,
		`{"token": "", "name": "A", "symbol": "A"}`,
		`{"token": null, "name": "A", "symbol": "A"}`,
	}
	for _, c := range cases {
		_, ok := m.Normalize(OriginPush, decode(t, c))
		assert.False(t, ok, c)
	}

	_, ok := m.Normalize(OriginPush, nil)
	assert.False(t, ok)
}

func TestNormalize_NumericSymbol(t *testing.T) {
	m := newTestMapper()
	tok, ok := m.Normalize(OriginPush, decode(t, `{"token": "t1", "name": "Four Twenty", "symbol": 420}`))
	require.True(t, ok)
	assert.Equal(t, "420", tok.Symbol)
}

func TestNormalize_TolerantNumerics(t *testing.T) {
	m := newTestMapper()
	raw := domain.RawToken{
		"token":        "t1",
		"name":         "Bad Numbers",
		"symbol":       "BAD",
		"priceUsd":     "not-a-number",
		"_balanceSol":  nil,
		"marketCapUsd": true,
		"volumeUsd":    math.NaN(),
		"progress":     math.Inf(1),
		"holders":      "17",
	}

	tok, ok := m.Normalize(OriginPush, raw)
	require.True(t, ok)
	assert.Zero(t, tok.PriceUSD)
	assert.Zero(t, tok.Liquidity)
	assert.Zero(t, tok.FullyDilutedValue)
	assert.Zero(t, tok.Volume24h)
	assert.Zero(t, tok.Progress)
	assert.Equal(t, int64(17), tok.HolderCount)
}

func TestNormalize_KeyAliases(t *testing.T) {
	m := newTestMapper()
	tok, ok := m.Normalize(OriginPush, decode(t, `{
		"token": "t1", "name": "Alias", "symbol": "ALI",
		"price": 2.5, "liquidity": 40, "volume24h": 75, "score": 9
	}`))
	require.True(t, ok)
	assert.Equal(t, 2.5, tok.PriceUSD)
	assert.Equal(t, 40.0, tok.Liquidity)
	assert.Equal(t, 75.0, tok.Volume24h)
	assert.Equal(t, int64(9), tok.HolderCount, "score used when holders is absent")
}

func TestNormalize_TimestampPolicy(t *testing.T) {
	m := newTestMapper()
	const epochSeconds = 1700000000

	push, ok := m.Normalize(OriginPush, decode(t, `{"token":"t1","name":"A","symbol":"A","mint_time":1700000000}`))
	require.True(t, ok)
	assert.Equal(t, time.Unix(epochSeconds, 0).UTC(), push.CreatedAt)

	snap, ok := m.Normalize(OriginSnapshot, decode(t, `{"token":"t1","name":"A","symbol":"A","mint_time":1700000000000}`))
	require.True(t, ok)
	assert.Equal(t, time.Unix(epochSeconds, 0).UTC(), snap.CreatedAt)

	missing, ok := m.Normalize(OriginPush, decode(t, `{"token":"t1","name":"A","symbol":"A"}`))
	require.True(t, ok)
	assert.Equal(t, fixedNow, missing.CreatedAt)

	allMillis := New(WithPolicy(Policy{SnapshotScale: ScaleMilliseconds, PushScale: ScaleMilliseconds}))
	custom, ok := allMillis.Normalize(OriginPush, decode(t, `{"token":"t1","name":"A","symbol":"A","mint_time":1700000000000}`))
	require.True(t, ok)
	assert.Equal(t, time.Unix(epochSeconds, 0).UTC(), custom.CreatedAt)
}

func TestNormalize_PlaceholderFlag(t *testing.T) {
	m := newTestMapper()
	tok, ok := m.Normalize(OriginSnapshot, decode(t, `{"token":"vibe-001","name":"Vibe Chain","symbol":"VIBE","isFallback":true}`))
	require.True(t, ok)
	assert.True(t, tok.IsPlaceholder)
}

func TestMerge_OnlyPresentFieldsOverwrite(t *testing.T) {
	m := newTestMapper()
	existing, ok := m.Normalize(OriginSnapshot, decode(t, `{
		"token":"t1","name":"Token One","symbol":"ONE",
		"priceUsd":1.5,"_balanceSol":200,"volumeUsd":900,"holders":30,"progress":40,
		"photo":"https://cdn/one.png","mint_time":1700000000000
	}`))
	require.True(t, ok)

	incoming, ok := m.Normalize(OriginPush, decode(t, `{"token":"t1","name":"Token One","symbol":"ONE","progress":55}`))
	require.True(t, ok)

	merged := Merge(existing, incoming)
	assert.Equal(t, 55.0, merged.Progress)
	assert.Equal(t, 1.5, merged.PriceUSD, "absent price keeps existing")
	assert.Equal(t, 200.0, merged.Liquidity)
	assert.Equal(t, 900.0, merged.Volume24h)
	assert.Equal(t, int64(30), merged.HolderCount)
	assert.Equal(t, "https://cdn/one.png", merged.IconURL)
	assert.Equal(t, existing.CreatedAt, merged.CreatedAt, "absent mint_time keeps existing")
	assert.Equal(t, 55.0, merged.RawSource["progress"])
	assert.Equal(t, 1.5, merged.RawSource["priceUsd"])
}

func TestMerge_ScoreKeepsOriginHolders(t *testing.T) {
	m := newTestMapper()
	existing, ok := m.Normalize(OriginSnapshot, decode(t, `{"token":"t1","name":"A","symbol":"A","holders":500}`))
	require.True(t, ok)
	scored, ok := m.Normalize(OriginPush, decode(t, `{"token":"t1","name":"A","symbol":"A","score":7}`))
	require.True(t, ok)

	merged := Merge(existing, scored)
	assert.Equal(t, int64(500), merged.HolderCount)

	bare, _ := m.Normalize(OriginSnapshot, decode(t, `{"token":"t1","name":"A","symbol":"A","score":2}`))
	merged = Merge(bare, scored)
	assert.Equal(t, int64(7), merged.HolderCount, "score applies while no holder count is known")

	counted, _ := m.Normalize(OriginPush, decode(t, `{"token":"t1","name":"A","symbol":"A","holders":650}`))
	merged = Merge(existing, counted)
	assert.Equal(t, int64(650), merged.HolderCount)
}

func TestMerge_PresentZeroOverwrites(t *testing.T) {
	m := newTestMapper()
	existing, _ := m.Normalize(OriginSnapshot, decode(t, `{"token":"t1","name":"A","symbol":"A","volumeUsd":900}`))
	incoming, _ := m.Normalize(OriginPush, decode(t, `{"token":"t1","name":"A","symbol":"A","volumeUsd":0}`))

	merged := Merge(existing, incoming)
	assert.Zero(t, merged.Volume24h)
}

func TestMerge_DoesNotAliasExistingRaw(t *testing.T) {
	m := newTestMapper()
	existing, _ := m.Normalize(OriginSnapshot, decode(t, `{"token":"t1","name":"A","symbol":"A","priceUsd":1}`))
	incoming, _ := m.Normalize(OriginPush, decode(t, `{"token":"t1","name":"A","symbol":"A","priceUsd":2}`))

	_ = Merge(existing, incoming)
	assert.Equal(t, 1.0, existing.RawSource["priceUsd"])
}

func TestMerge_WithoutRawPrefersNonZero(t *testing.T) {
	existing := domain.Token{ID: "t1", Name: "A", Symbol: "A", PriceUSD: 1, Volume24h: 10}
	incoming := domain.Token{ID: "t1", PriceUSD: 3}

	merged := Merge(existing, incoming)
	assert.Equal(t, 3.0, merged.PriceUSD)
	assert.Equal(t, 10.0, merged.Volume24h)
	assert.Equal(t, "A", merged.Name)
}

func TestTickerFrom(t *testing.T) {
	tick, ok := TickerFrom(decode(t, `{"token":"t1","priceUsd":0.5,"volumeUsd":120,"_balanceSol":33}`))
	require.True(t, ok)
	assert.Equal(t, "t1", tick.TokenID)
	assert.Equal(t, 0.5, tick.Price)
	assert.Equal(t, 120.0, tick.Volume24h)
	require.NotNil(t, tick.Liquidity)
	assert.Equal(t, 33.0, *tick.Liquidity)
	assert.Nil(t, tick.Change24h)

	tick, ok = TickerFrom(decode(t, `{"token":"t1","price":"0.25"}`))
	require.True(t, ok)
	assert.Equal(t, 0.25, tick.Price)
	assert.Nil(t, tick.Liquidity)

	_, ok = TickerFrom(decode(t, `{"token":"t1","volumeUsd":1}`))
	assert.False(t, ok, "no price")
	_, ok = TickerFrom(decode(t, `{"priceUsd":1}`))
	assert.False(t, ok, "no token")
}

func TestNormalizeOrderbook(t *testing.T) {
	raw := decode(t, `{
		"bids": [{"price": 1.0, "amount": 10}, [0.9, 20], {"price": 0, "amount": 5}],
		"asks": [[1.1, 7]]
	}`)
	require.True(t, IsOrderbook(raw))

	book, ok := NormalizeOrderbook(raw, "chan-token")
	require.True(t, ok)
	assert.Equal(t, "chan-token", book.TokenID)
	require.Len(t, book.Bids, 2)
	require.Len(t, book.Asks, 1)
	assert.Equal(t, domain.OrderbookLevel{Price: 0.9, Amount: 20, Side: domain.BookSideBid}, book.Bids[1])
	assert.Equal(t, domain.OrderbookLevel{Price: 1.1, Amount: 7, Side: domain.BookSideAsk}, book.Asks[0])

	_, ok = NormalizeOrderbook(decode(t, `{"price": 1, "side": "buy"}`), "t1")
	assert.False(t, ok)
}

func TestNormalizeLevels(t *testing.T) {
	levels := NormalizeLevels([]map[string]any{
		{"price": 1.0, "amount": 2.0, "side": "bid"},
		{"price": 1.1, "amount": 3.0, "side": "ASK"},
		{"price": 1.2, "amount": 3.0, "side": "mid"},
	})
	require.Len(t, levels, 2)
	assert.Equal(t, domain.BookSideBid, levels[0].Side)
	assert.Equal(t, domain.BookSideAsk, levels[1].Side)
}

func TestNormalizeTrade(t *testing.T) {
	m := newTestMapper()

	tr, ok := m.NormalizeTrade(OriginPush, decode(t, `{
		"signature":"sig-1","priceUsd":0.02,"tokenAmount":500,"isBuy":true,"user":"wallet-1","timestamp":1700000000
	}`), "t1")
	require.True(t, ok)
	assert.Equal(t, "sig-1", tr.ID)
	assert.Equal(t, "t1", tr.TokenID, "token id falls back to channel")
	assert.Equal(t, 0.02, tr.Price)
	assert.Equal(t, 500.0, tr.Amount)
	assert.Equal(t, domain.TradeSideBuy, tr.Side)
	assert.Equal(t, "wallet-1", tr.Wallet)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), tr.Timestamp)

	rest, ok := m.NormalizeTrade(OriginSnapshot, decode(t, `{
		"id":"t1-0","price":0.5,"amount":12,"side":"sell","wallet":"So111...abcde","timestamp":"2025-03-01T11:59:00Z"
	}`), "t1")
	require.True(t, ok)
	assert.Equal(t, domain.TradeSideSell, rest.Side)
	assert.Equal(t, fixedNow.Add(-time.Minute), rest.Timestamp)
}

func TestNormalizeTrade_DerivedID(t *testing.T) {
	m := newTestMapper()
	payload := `{"price":1.25,"amount":3,"type":"buy","wallet":"w","timestamp":1700000000}`

	a, ok := m.NormalizeTrade(OriginPush, decode(t, payload), "t1")
	require.True(t, ok)
	b, ok := m.NormalizeTrade(OriginPush, decode(t, payload), "t1")
	require.True(t, ok)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, a.ID, b.ID)
}

func TestNormalizeTrade_Rejects(t *testing.T) {
	m := newTestMapper()
	cases := []string{
		`{"price":1,"amount":1}`,
		`{"price":1,"amount":1,"side":"hold"}`,
		`{"price":0,"amount":1,"side":"buy"}`,
		`{"amount":1,"side":"buy"}`,
	}
	for _, c := range cases {
		_, ok := m.NormalizeTrade(OriginPush, decode(t, c), "t1")
		assert.False(t, ok, c)
	}
}
