package launchapi

import (
	"fmt"
	"math/rand/v2"
	"time"

	"launchmeme-terminal/internal/domain"
	"launchmeme-terminal/internal/idhash"
)

// Synthetic data sizes.
const (
	FallbackOrderbookLevels = 12
	FallbackTradeCount      = 15
)

// solPerUSD converts placeholder USD prices to SOL.
const solPerUSD = 1.0 / 180

type fallbackSpec struct {
	id, name, symbol string
	price            float64
	change           float64
	liquidity        float64
	fdv              float64
	volume           float64
	progress         float64
	holders          int64
	banner           string
}

var fallbackSpecs = []fallbackSpec{
	{
		id: "vibe-001", name: "Vibe Chain", symbol: "VIBE",
		price: 0.023, change: 12.4, liquidity: 125_000, fdv: 4_500_000, volume: 890_000, progress: 64, holders: 92,
		banner: "https://images.unsplash.com/photo-1520607162513-77705c0f0d4a?auto=format&fit=crop&w=1400&q=80",
	},
	{
		id: "meme-777", name: "Neon Cat", symbol: "NEON",
		price: 0.0042, change: -3.1, liquidity: 87_000, fdv: 1_230_000, volume: 410_000, progress: 38, holders: 81,
		banner: "https://images.unsplash.com/photo-1500530855697-b586d89ba3ee?auto=format&fit=crop&w=1400&q=80",
	},
	{
		id: "pulse-404", name: "Quantum Pepe", symbol: "QPEPE",
		price: 0.000093, change: 28.7, liquidity: 210_000, fdv: 6_750_000, volume: 1_800_000, progress: 92, holders: 97,
		banner: "https://images.unsplash.com/photo-1521737604893-d14cc237f11d?auto=format&fit=crop&w=1400&q=80",
	},
}

// FallbackTokens returns the placeholder spotlight shown before real data arrives.
// Every token is flagged IsPlaceholder and created at now.
func FallbackTokens(now time.Time) []domain.Token {
	tokens := make([]domain.Token, 0, len(fallbackSpecs))
	for _, s := range fallbackSpecs {
		tokens = append(tokens, domain.Token{
			ID:                s.id,
			Name:              s.name,
			Symbol:            s.symbol,
			PriceUSD:          s.price,
			PriceSOL:          s.price * solPerUSD,
			Change24h:         s.change,
			Liquidity:         s.liquidity,
			FullyDilutedValue: s.fdv,
			Volume24h:         s.volume,
			Progress:          s.progress,
			HolderCount:       s.holders,
			Network:           domain.DefaultNetwork,
			BannerURL:         s.banner,
			CreatedAt:         now.UTC(),
			IsPlaceholder:     true,
			RawSource: domain.RawToken{
				"token":       s.id,
				"name":        s.name,
				"symbol":      s.symbol,
				"priceUsd":    s.price,
				"_balanceSol": s.liquidity,
				"holders":     float64(s.holders),
				"metadataUri": "",
				"photo":       nil,
				"isFallback":  true,
			},
		})
	}
	return tokens
}

// FallbackToken returns the placeholder with id, or the first placeholder.
func FallbackToken(id string, now time.Time) domain.Token {
	tokens := FallbackTokens(now)
	for _, t := range tokens {
		if t.ID == id {
			return t
		}
	}
	return tokens[0]
}

// SyntheticOrderbook builds a 12-level book around the placeholder price for
// tokenID: 6 bids followed by 6 asks, 0.2% apart. Amounts are seeded by tokenID.
func SyntheticOrderbook(tokenID string, now time.Time) []domain.OrderbookLevel {
	token := FallbackToken(tokenID, now)
	rng := seededRand("orderbook|" + tokenID)

	half := FallbackOrderbookLevels / 2
	levels := make([]domain.OrderbookLevel, 0, FallbackOrderbookLevels)
	for idx := 0; idx < FallbackOrderbookLevels; idx++ {
		side := domain.BookSideAsk
		if idx < half {
			side = domain.BookSideBid
		}
		levels = append(levels, domain.OrderbookLevel{
			Price:  token.PriceUSD * (1 + float64(idx-half)*0.002),
			Amount: rng.Float64() * 80_000,
			Side:   side,
		})
	}
	return levels
}

// SyntheticTrades builds 15 trades one minute apart, newest first, seeded by tokenID.
func SyntheticTrades(tokenID string, now time.Time) []domain.Trade {
	base := FallbackTokens(now)[0].PriceUSD
	rng := seededRand("trades|" + tokenID)

	trades := make([]domain.Trade, 0, FallbackTradeCount)
	for idx := 0; idx < FallbackTradeCount; idx++ {
		side := domain.TradeSideSell
		if rng.Float64() > 0.5 {
			side = domain.TradeSideBuy
		}
		trades = append(trades, domain.Trade{
			ID:        fmt.Sprintf("%s-%d", tokenID, idx),
			Price:     base * (1 + (rng.Float64()-0.5)*0.01),
			Amount:    rng.Float64() * 45_000,
			Side:      side,
			Wallet:    fmt.Sprintf("So111...%05x", rng.IntN(1<<20)),
			Timestamp: now.UTC().Add(-time.Duration(idx) * time.Minute),
		})
	}
	return trades
}

func seededRand(key string) *rand.Rand {
	seed := idhash.Seed(key)
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
