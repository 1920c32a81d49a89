package markets

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"launchmeme-terminal/internal/domain"
	"launchmeme-terminal/internal/mapper"
	"launchmeme-terminal/internal/observability"
)

// OnTicker patches price and volume of a known token. Liquidity and change are
// kept when the push omits them. Unknown ids are ignored.
func (s *Store) OnTicker(u domain.TickerUpdate) {
	s.mu.Lock()
	i := s.indexOf(u.TokenID)
	if i < 0 {
		s.mu.Unlock()
		return
	}

	t := &s.spotlight[i]
	t.PriceUSD = u.Price
	t.Volume24h = u.Volume24h
	if u.Liquidity != nil {
		t.Liquidity = *u.Liquidity
	}
	if u.Change24h != nil {
		t.Change24h = *u.Change24h
	}

	reselected := s.pruneLocked()
	s.recomputeLocked()
	s.unlockAndNotify(nil)
	s.subscribeDetail(reselected)
}

// OnTokenUpdate merges a pushed token into the collection, appending it when new.
func (s *Store) OnTokenUpdate(t domain.Token) {
	s.mu.Lock()
	s.upsertLocked(t)
	reselected := s.pruneLocked()
	s.recomputeLocked()
	s.unlockAndNotify(nil)
	s.subscribeDetail(reselected)
}

// OnMint records a launch in the feed and upserts the token.
func (s *Store) OnMint(t domain.Token) {
	s.mu.Lock()
	s.pushFeedLocked(domain.FeedTypeSystem, "Minted "+t.Symbol)
	s.upsertLocked(t)
	reselected := s.pruneLocked()
	s.recomputeLocked()
	s.unlockAndNotify(nil)
	s.subscribeDetail(reselected)
}

// OnOrderbook replaces the book when the update is for the selected token.
func (s *Store) OnOrderbook(u domain.OrderbookUpdate) {
	s.mu.Lock()
	if s.selected == nil || s.selected.ID != u.TokenID {
		s.mu.Unlock()
		return
	}
	s.orderbook = u.Levels()
	s.pushFeedLocked(domain.FeedTypeOrderbook, "Orderbook refresh "+s.selected.Symbol)
	s.unlockAndNotify(nil)
}

// OnTrade prepends a trade of the selected token. Trades for other tokens and
// repeated ids are ignored.
func (s *Store) OnTrade(u domain.TradeUpdate) {
	s.mu.Lock()
	if s.selected == nil || s.selected.ID != u.TokenID {
		s.mu.Unlock()
		return
	}
	for _, existing := range s.trades {
		if existing.ID == u.ID {
			s.mu.Unlock()
			return
		}
	}

	trades := make([]domain.Trade, 0, min(len(s.trades)+1, MaxTrades))
	trades = append(trades, u.Trade)
	trades = append(trades, s.trades...)
	if len(trades) > MaxTrades {
		trades = trades[:MaxTrades]
	}
	s.trades = trades
	s.pushFeedLocked(domain.FeedTypeTrade, tradeMessage(u.Trade))

	tokenID, trade := u.TokenID, u.Trade
	s.unlockAndNotify(func(o Observer) { o.ObserveTrade(tokenID, trade) })
}

// OnStatusChange records the stream connectivity.
func (s *Store) OnStatusChange(status domain.StreamStatus) {
	s.mu.Lock()
	if s.status == status {
		s.mu.Unlock()
		return
	}
	s.logger.Debug("stream status", zap.String("from", s.status.String()), zap.String("to", status.String()))
	s.status = status
	s.unlockAndNotify(nil)
}

func tradeMessage(t domain.Trade) string {
	side := "Sell"
	if t.Side == domain.TradeSideBuy {
		side = "Buy"
	}
	return fmt.Sprintf("%s %.0f @ %.4f", side, t.Amount, t.Price)
}

// upsertLocked merges t into an existing entry or appends it, evicting the
// oldest non-selected entries past the cap.
func (s *Store) upsertLocked(t domain.Token) {
	if t.ID == "" {
		return
	}
	if i := s.indexOf(t.ID); i >= 0 {
		s.spotlight[i] = mapper.Merge(s.spotlight[i], t)
		return
	}

	s.spotlight = append(s.spotlight, t.Clone())

	evicted := 0
	for len(s.spotlight) > s.cap {
		victim := -1
		for i := range s.spotlight {
			if s.selected == nil || s.spotlight[i].ID != s.selected.ID {
				victim = i
				break
			}
		}
		if victim < 0 {
			break
		}
		s.spotlight = append(s.spotlight[:victim], s.spotlight[victim+1:]...)
		evicted++
	}
	if evicted > 0 {
		observability.RecordEvicted(evicted)
	}
}

// pruneLocked drops placeholders once any real token is present. A pruned
// selection moves to the first remaining token, whose id is returned so the
// caller can point the detail channel at it outside the lock.
func (s *Store) pruneLocked() (reselected string) {
	hasReal := false
	for _, t := range s.spotlight {
		if !t.IsPlaceholder {
			hasReal = true
			break
		}
	}
	if !hasReal {
		return ""
	}

	selectionPruned := false
	kept := s.spotlight[:0]
	for _, t := range s.spotlight {
		if !t.IsPlaceholder {
			kept = append(kept, t)
			continue
		}
		if s.selected != nil && s.selected.ID == t.ID {
			selectionPruned = true
		}
	}
	if pruned := len(s.spotlight) - len(kept); pruned > 0 {
		clear(s.spotlight[len(kept):])
		observability.RecordPruned(pruned)
	}
	s.spotlight = kept

	if !selectionPruned {
		return ""
	}
	first := s.spotlight[0].Clone()
	s.selected = &first
	s.orderbook = nil
	s.trades = nil
	return first.ID
}

// pushFeedLocked prepends a feed entry, keeping the newest MaxFeed.
func (s *Store) pushFeedLocked(kind domain.FeedType, message string) {
	item := domain.PulseFeedItem{
		ID:        s.newID(),
		Message:   message,
		Timestamp: s.now().UTC(),
		Type:      kind,
	}
	feed := make([]domain.PulseFeedItem, 0, min(len(s.feed)+1, MaxFeed))
	feed = append(feed, item)
	feed = append(feed, s.feed...)
	if len(feed) > MaxFeed {
		feed = feed[:MaxFeed]
	}
	s.feed = feed
}

func (s *Store) indexOf(id string) int {
	for i := range s.spotlight {
		if s.spotlight[i].ID == id {
			return i
		}
	}
	return -1
}

// newestFirst sorts a copy of trades by time, newest first, and caps it.
func newestFirst(trades []domain.Trade, limit int) []domain.Trade {
	out := append([]domain.Trade(nil), trades...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
