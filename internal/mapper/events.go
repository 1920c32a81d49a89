package mapper

import (
	"strings"

	"launchmeme-terminal/internal/domain"
	"launchmeme-terminal/internal/idhash"
)

var (
	keysTradeID     = []string{"id", "signature", "tx"}
	keysTradePrice  = []string{"price", "priceUsd"}
	keysTradeAmount = []string{"amount", "tokenAmount"}
	keysTradeWallet = []string{"wallet", "user", "trader"}
	keysTradeTime   = []string{"timestamp", "time", "ts"}
	keysTradeToken  = []string{"tokenId", "token", "mint"}
)

// TickerFrom extracts a ticker patch from a tokenUpdates publication.
// Returns false unless the payload carries a token id and a price (priceUsd or price).
func TickerFrom(raw map[string]any) (domain.TickerUpdate, bool) {
	if raw == nil {
		return domain.TickerUpdate{}, false
	}
	id := stringOf(raw, keysID...)
	if id == "" {
		return domain.TickerUpdate{}, false
	}
	if _, ok := firstPresent(raw, keysPriceUSD...); !ok {
		return domain.TickerUpdate{}, false
	}

	update := domain.TickerUpdate{
		TokenID:   id,
		Price:     floatOf(raw, keysPriceUSD...),
		Volume24h: floatOf(raw, keysVolume...),
	}
	if v, ok := firstPresent(raw, keysLiquidity...); ok {
		liq := toFloat(v)
		update.Liquidity = &liq
	}
	if v, ok := firstPresent(raw, keysChange...); ok {
		chg := toFloat(v)
		update.Change24h = &chg
	}
	return update, true
}

// IsOrderbook reports whether a detail channel publication is a book snapshot.
func IsOrderbook(raw map[string]any) bool {
	_, bids := raw["bids"]
	_, asks := raw["asks"]
	return bids || asks
}

// NormalizeOrderbook maps a book publication to an update.
// Levels may be objects ({price, amount}) or pairs ([price, amount]); levels without a
// positive price are skipped. channelTokenID is used when the payload has no token id.
func NormalizeOrderbook(raw map[string]any, channelTokenID string) (domain.OrderbookUpdate, bool) {
	if raw == nil || !IsOrderbook(raw) {
		return domain.OrderbookUpdate{}, false
	}
	tokenID := stringOf(raw, keysTradeToken...)
	if tokenID == "" {
		tokenID = channelTokenID
	}
	if tokenID == "" {
		return domain.OrderbookUpdate{}, false
	}
	return domain.OrderbookUpdate{
		TokenID: tokenID,
		Bids:    levelsOf(raw["bids"], domain.BookSideBid),
		Asks:    levelsOf(raw["asks"], domain.BookSideAsk),
	}, true
}

// NormalizeLevels maps a REST orderbook list where every level carries its side.
// Levels with an unknown side or non-positive price are skipped.
func NormalizeLevels(list []map[string]any) []domain.OrderbookLevel {
	levels := make([]domain.OrderbookLevel, 0, len(list))
	for _, raw := range list {
		side := domain.BookSide(strings.ToLower(toString(raw["side"])))
		if side != domain.BookSideBid && side != domain.BookSideAsk {
			continue
		}
		level, ok := levelOf(raw, side)
		if !ok {
			continue
		}
		levels = append(levels, level)
	}
	return levels
}

func levelsOf(v any, side domain.BookSide) []domain.OrderbookLevel {
	list, ok := v.([]any)
	if !ok {
		return []domain.OrderbookLevel{}
	}
	levels := make([]domain.OrderbookLevel, 0, len(list))
	for _, item := range list {
		if level, ok := levelOf(item, side); ok {
			levels = append(levels, level)
		}
	}
	return levels
}

func levelOf(v any, side domain.BookSide) (domain.OrderbookLevel, bool) {
	var price, amount float64
	switch l := v.(type) {
	case map[string]any:
		price = floatOf(l, "price")
		amount = floatOf(l, "amount", "size")
	case []any:
		if len(l) < 2 {
			return domain.OrderbookLevel{}, false
		}
		price = toFloat(l[0])
		amount = toFloat(l[1])
	default:
		return domain.OrderbookLevel{}, false
	}
	if price <= 0 {
		return domain.OrderbookLevel{}, false
	}
	return domain.OrderbookLevel{Price: price, Amount: amount, Side: side}, true
}

// NormalizeTrade maps a trade payload to a TradeUpdate.
// Trades without a recognizable side or a positive price are rejected. A missing id
// is derived from the trade's fields so replays of the same fill keep the same id.
func (m *Mapper) NormalizeTrade(origin Origin, raw map[string]any, channelTokenID string) (domain.TradeUpdate, bool) {
	if raw == nil {
		return domain.TradeUpdate{}, false
	}

	side, ok := sideOf(raw)
	if !ok {
		return domain.TradeUpdate{}, false
	}
	price := floatOf(raw, keysTradePrice...)
	if price <= 0 {
		return domain.TradeUpdate{}, false
	}

	tokenID := stringOf(raw, keysTradeToken...)
	if tokenID == "" {
		tokenID = channelTokenID
	}

	ts := toTime(first(raw, keysTradeTime), m.policy.scaleFor(origin))
	if ts.IsZero() {
		ts = m.now().UTC()
	}

	amount := floatOf(raw, keysTradeAmount...)
	wallet := stringOf(raw, keysTradeWallet...)
	id := stringOf(raw, keysTradeID...)
	if id == "" {
		id = idhash.ComputeTradeID(tokenID, wallet, string(side), ts.UnixMilli(), price, amount)
	}

	return domain.TradeUpdate{
		Trade: domain.Trade{
			ID:        id,
			Price:     price,
			Amount:    amount,
			Side:      side,
			Wallet:    wallet,
			Timestamp: ts,
		},
		TokenID: tokenID,
	}, true
}

func sideOf(raw map[string]any) (domain.TradeSide, bool) {
	for _, key := range []string{"side", "type"} {
		side := domain.TradeSide(strings.ToLower(toString(raw[key])))
		if side.IsValid() {
			return side, true
		}
	}
	if isBuy, ok := raw["isBuy"].(bool); ok {
		if isBuy {
			return domain.TradeSideBuy, true
		}
		return domain.TradeSideSell, true
	}
	return "", false
}
