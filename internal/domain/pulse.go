package domain

import "time"

// MarketPulse is the aggregate market-health snapshot derived from the spotlight.
// It is never mutated on its own; it is recomputed from the token collection.
type MarketPulse struct {
	ActiveTokenCount int     `json:"activeTokenCount"`
	TotalValueLocked float64 `json:"totalValueLocked"` // sum of liquidity, 2 decimals
	ParticipantCount int64   `json:"participantCount"` // sum of holder counts
	AveragePrice     float64 `json:"averagePrice"`     // 6 decimals
	TotalVolume      float64 `json:"totalVolume"`      // sum of volume24h, 2 decimals
	HotNetwork       string  `json:"hotNetwork"`
}

// FeedType categorizes pulse feed entries.
type FeedType string

const (
	FeedTypeTrade     FeedType = "trade"
	FeedTypeOrderbook FeedType = "orderbook"
	FeedTypeSystem    FeedType = "system"
)

// PulseFeedItem is one human-readable activity ticker entry.
type PulseFeedItem struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Type      FeedType  `json:"type"`
}

// StreamStatus is the realtime connectivity state.
type StreamStatus string

const (
	StreamStatusIdle         StreamStatus = "idle"
	StreamStatusConnecting   StreamStatus = "connecting"
	StreamStatusConnected    StreamStatus = "connected"
	StreamStatusDisconnected StreamStatus = "disconnected"
	StreamStatusError        StreamStatus = "error"
)

// String returns the string representation of StreamStatus.
func (s StreamStatus) String() string {
	return string(s)
}
