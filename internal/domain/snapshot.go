package domain

// TokenSnapshot is one observation of a spotlight token, written to the market tape.
// Corresponds to token_snapshots table in PostgreSQL.
type TokenSnapshot struct {
	TokenID     string  // mint address
	Symbol      string  // ticker at capture time
	PriceUSD    float64 // last price
	Liquidity   float64 // bonding curve balance
	Volume24h   float64 // rolling volume
	Progress    float64 // 0..100
	HolderCount int64   // holders at capture time
	CapturedAt  int64   // capture timestamp (ms)
}

// SnapshotOf builds a tape row from a token.
func SnapshotOf(t Token, capturedAt int64) TokenSnapshot {
	return TokenSnapshot{
		TokenID:     t.ID,
		Symbol:      t.Symbol,
		PriceUSD:    t.PriceUSD,
		Liquidity:   t.Liquidity,
		Volume24h:   t.Volume24h,
		Progress:    t.Progress,
		HolderCount: t.HolderCount,
		CapturedAt:  capturedAt,
	}
}

// TapeTrade is one observed trade of the market tape.
// Corresponds to trade_tape table; (TokenID, TradeID) is unique.
type TapeTrade struct {
	TokenID    string
	TradeID    string
	Side       TradeSide
	Price      float64
	Amount     float64
	Wallet     string
	Timestamp  int64 // trade time (ms)
	ObservedAt int64 // receive time (ms)
}

// TapeTradeOf builds a tape row from a streamed trade.
func TapeTradeOf(tokenID string, t Trade, observedAt int64) TapeTrade {
	return TapeTrade{
		TokenID:    tokenID,
		TradeID:    t.ID,
		Side:       t.Side,
		Price:      t.Price,
		Amount:     t.Amount,
		Wallet:     t.Wallet,
		Timestamp:  t.Timestamp.UnixMilli(),
		ObservedAt: observedAt,
	}
}
