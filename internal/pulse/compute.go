// Package pulse computes the aggregate market pulse from the spotlight collection.
//
// Precision:
//   - TotalValueLocked, TotalVolume: 2 decimals
//   - AveragePrice: 6 decimals
//
// Sums are accumulated in decimal so the rounded result does not depend on float
// accumulation order.
package pulse

import (
	"sort"

	"github.com/shopspring/decimal"

	"launchmeme-terminal/internal/domain"
)

const (
	// MoneyPrecision is the rounding applied to liquidity and volume totals.
	MoneyPrecision int32 = 2
	// PricePrecision is the rounding applied to the average price.
	PricePrecision int32 = 6
	// ActiveVolumeThreshold is the minimum volume24h for a token to count as trading.
	ActiveVolumeThreshold = 1.0
)

// Compute derives the market pulse from tokens.
// Returns nil for an empty collection. Pure and deterministic.
func Compute(tokens []domain.Token) *domain.MarketPulse {
	n := len(tokens)
	if n == 0 {
		return nil
	}

	tvl := decimal.Zero
	volume := decimal.Zero
	var participants int64
	for _, t := range tokens {
		tvl = tvl.Add(decimal.NewFromFloat(t.Liquidity))
		volume = volume.Add(decimal.NewFromFloat(t.Volume24h))
		participants += t.HolderCount
	}

	return &domain.MarketPulse{
		ActiveTokenCount: n,
		TotalValueLocked: round(tvl, MoneyPrecision),
		ParticipantCount: participants,
		AveragePrice:     averagePrice(tokens),
		TotalVolume:      round(volume, MoneyPrecision),
		HotNetwork:       hotNetwork(tokens),
	}
}

// averagePrice is the mean price over tokens with volume above the activity
// threshold, or over all tokens when none qualify.
func averagePrice(tokens []domain.Token) float64 {
	sum := decimal.Zero
	count := 0
	for _, t := range tokens {
		if t.Volume24h > ActiveVolumeThreshold {
			sum = sum.Add(decimal.NewFromFloat(t.PriceUSD))
			count++
		}
	}
	if count == 0 {
		for _, t := range tokens {
			sum = sum.Add(decimal.NewFromFloat(t.PriceUSD))
		}
		count = len(tokens)
	}
	if count == 0 {
		return 0
	}
	return round(sum.Div(decimal.NewFromInt(int64(count))), PricePrecision)
}

// hotNetwork returns the network with the most tokens.
// Ties break by total volume, then lexically.
func hotNetwork(tokens []domain.Token) string {
	type stat struct {
		network string
		count   int
		volume  decimal.Decimal
	}

	byNetwork := make(map[string]*stat)
	for _, t := range tokens {
		network := t.Network
		if network == "" {
			network = domain.DefaultNetwork
		}
		s, ok := byNetwork[network]
		if !ok {
			s = &stat{network: network, volume: decimal.Zero}
			byNetwork[network] = s
		}
		s.count++
		s.volume = s.volume.Add(decimal.NewFromFloat(t.Volume24h))
	}

	stats := make([]*stat, 0, len(byNetwork))
	for _, s := range byNetwork {
		stats = append(stats, s)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].count != stats[j].count {
			return stats[i].count > stats[j].count
		}
		if c := stats[i].volume.Cmp(stats[j].volume); c != 0 {
			return c > 0
		}
		return stats[i].network < stats[j].network
	})
	return stats[0].network
}

func round(d decimal.Decimal, places int32) float64 {
	return d.Round(places).InexactFloat64()
}
