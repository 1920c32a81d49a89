package domain

import "time"

// BookSide is the side of an orderbook level.
type BookSide string

const (
	BookSideBid BookSide = "bid"
	BookSideAsk BookSide = "ask"
)

// TradeSide is the aggressor side of a trade.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// IsValid checks if the side is a known value.
func (s TradeSide) IsValid() bool {
	return s == TradeSideBuy || s == TradeSideSell
}

// OrderbookLevel is a single price level of the selected token's book.
type OrderbookLevel struct {
	Price  float64  `json:"price"`
	Amount float64  `json:"amount"`
	Side   BookSide `json:"side"`
}

// Trade is a single fill on the selected token.
type Trade struct {
	ID        string    `json:"id"`
	Price     float64   `json:"price"`
	Amount    float64   `json:"amount"`
	Side      TradeSide `json:"side"`
	Wallet    string    `json:"wallet"` // counterparty identifier
	Timestamp time.Time `json:"timestamp"`
}

// TickerUpdate patches price/volume fields of a known token.
// Nil pointers mean the field was absent in the push and must be kept.
type TickerUpdate struct {
	TokenID   string
	Price     float64
	Volume24h float64
	Liquidity *float64
	Change24h *float64
}

// OrderbookUpdate is a full book snapshot for one token.
type OrderbookUpdate struct {
	TokenID string
	Bids    []OrderbookLevel
	Asks    []OrderbookLevel
}

// Levels returns bids followed by asks, source order preserved.
func (u OrderbookUpdate) Levels() []OrderbookLevel {
	levels := make([]OrderbookLevel, 0, len(u.Bids)+len(u.Asks))
	levels = append(levels, u.Bids...)
	levels = append(levels, u.Asks...)
	return levels
}

// TradeUpdate is a streamed trade tagged with its token.
type TradeUpdate struct {
	Trade
	TokenID string `json:"tokenId"`
}
