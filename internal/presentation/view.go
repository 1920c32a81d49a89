// Package presentation projects store state into view models for the terminal UI.
package presentation

import (
	"sort"
	"time"

	"launchmeme-terminal/internal/domain"
	"launchmeme-terminal/internal/markets"
)

// ExplorerBaseURL is prefixed to mint addresses for token links.
const ExplorerBaseURL = "https://solscan.io/token/"

// TokenCard is one spotlight entry ready for display.
type TokenCard struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Symbol      string    `json:"symbol"`
	Network     string    `json:"network"`
	Price       string    `json:"price"`
	PriceSOL    string    `json:"priceSol"`
	Change      string    `json:"change"`
	Trend       Direction `json:"trend"`
	Liquidity   string    `json:"liquidity"`
	MarketCap   string    `json:"marketCap"`
	Volume      string    `json:"volume"`
	Progress    float64   `json:"progress"`
	Holders     string    `json:"holders"`
	IconURL     string    `json:"iconUrl,omitempty"`
	BannerURL   string    `json:"bannerUrl,omitempty"`
	ExplorerURL string    `json:"explorerUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	Placeholder bool      `json:"placeholder"`
	Selected    bool      `json:"selected"`
}

// BookRow is one level with the cumulative amount from the best price.
type BookRow struct {
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
	Depth  float64 `json:"depth"`
}

// BookView is the selected token's book split by side. Bids are sorted best
// (highest) first, asks best (lowest) first.
type BookView struct {
	Bids      []BookRow `json:"bids"`
	Asks      []BookRow `json:"asks"`
	Spread    float64   `json:"spread"`
	SpreadPct float64   `json:"spreadPct"`
}

// TradeRow is one trade ready for display.
type TradeRow struct {
	ID        string    `json:"id"`
	Side      string    `json:"side"`
	Price     string    `json:"price"`
	Amount    string    `json:"amount"`
	Wallet    string    `json:"wallet"`
	Timestamp time.Time `json:"timestamp"`
}

// PulseView is the formatted market pulse.
type PulseView struct {
	ActiveTokens     string `json:"activeTokens"`
	TotalValueLocked string `json:"totalValueLocked"`
	Participants     string `json:"participants"`
	AveragePrice     string `json:"averagePrice"`
	TotalVolume      string `json:"totalVolume"`
	HotNetwork       string `json:"hotNetwork"`
}

// TerminalView is the whole terminal screen.
type TerminalView struct {
	Status    domain.StreamStatus    `json:"status"`
	Loading   bool                   `json:"loading"`
	Spotlight []TokenCard            `json:"spotlight"`
	Selected  *TokenCard             `json:"selected,omitempty"`
	Book      BookView               `json:"book"`
	Trades    []TradeRow             `json:"trades"`
	Pulse     *PulseView             `json:"pulse,omitempty"`
	Trends    map[string]Direction   `json:"trends,omitempty"`
	Feed      []domain.PulseFeedItem `json:"feed"`
}

// Project builds the terminal view from a state copy.
func Project(st markets.State) TerminalView {
	var selectedID string
	if st.SelectedToken != nil {
		selectedID = st.SelectedToken.ID
	}

	view := TerminalView{
		Status:    st.StreamStatus,
		Loading:   st.IsLoadingSnapshot,
		Spotlight: make([]TokenCard, 0, len(st.Spotlight)),
		Book:      Book(st.Orderbook),
		Trades:    make([]TradeRow, 0, len(st.Trades)),
		Feed:      append([]domain.PulseFeedItem{}, st.PulseFeed...),
	}
	for _, t := range st.Spotlight {
		view.Spotlight = append(view.Spotlight, Card(t, t.ID == selectedID))
	}
	if st.SelectedToken != nil {
		card := Card(*st.SelectedToken, true)
		view.Selected = &card
	}
	for _, t := range st.Trades {
		view.Trades = append(view.Trades, tradeRow(t))
	}
	if st.Pulse != nil {
		p := Pulse(*st.Pulse)
		view.Pulse = &p
	}
	return view
}

// Card formats a token. Only real mint addresses get an explorer link.
func Card(t domain.Token, selected bool) TokenCard {
	card := TokenCard{
		ID:          t.ID,
		Name:        t.Name,
		Symbol:      t.Symbol,
		Network:     t.Network,
		Price:       usd(t.PriceUSD, 4),
		PriceSOL:    grouped(t.PriceSOL, 9) + " SOL",
		Change:      percent(t.Change24h),
		Trend:       sign(t.Change24h),
		Liquidity:   grouped(t.Liquidity, 2) + " SOL",
		MarketCap:   usd(t.FullyDilutedValue, 0),
		Volume:      usd(t.Volume24h, 0),
		Progress:    t.Progress,
		Holders:     grouped(float64(t.HolderCount), 0),
		IconURL:     t.IconURL,
		BannerURL:   t.BannerURL,
		CreatedAt:   t.CreatedAt,
		Placeholder: t.IsPlaceholder,
		Selected:    selected,
	}
	if domain.IsMintAddress(t.ID) {
		card.ExplorerURL = ExplorerBaseURL + t.ID
	}
	return card
}

// Book splits levels by side, sorts each from the best price and accumulates depth.
func Book(levels []domain.OrderbookLevel) BookView {
	var bids, asks []BookRow
	for _, l := range levels {
		row := BookRow{Price: l.Price, Amount: l.Amount}
		if l.Side == domain.BookSideBid {
			bids = append(bids, row)
		} else {
			asks = append(asks, row)
		}
	}
	sort.SliceStable(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.SliceStable(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })
	accumulate(bids)
	accumulate(asks)

	view := BookView{Bids: bids, Asks: asks}
	if view.Bids == nil {
		view.Bids = []BookRow{}
	}
	if view.Asks == nil {
		view.Asks = []BookRow{}
	}
	if len(bids) > 0 && len(asks) > 0 {
		view.Spread = asks[0].Price - bids[0].Price
		if mid := (asks[0].Price + bids[0].Price) / 2; mid > 0 {
			view.SpreadPct = view.Spread / mid * 100
		}
	}
	return view
}

func accumulate(rows []BookRow) {
	var total float64
	for i := range rows {
		total += rows[i].Amount
		rows[i].Depth = total
	}
}

// Pulse formats the market pulse.
func Pulse(p domain.MarketPulse) PulseView {
	return PulseView{
		ActiveTokens:     grouped(float64(p.ActiveTokenCount), 0),
		TotalValueLocked: grouped(p.TotalValueLocked, 2) + " SOL",
		Participants:     grouped(float64(p.ParticipantCount), 0),
		AveragePrice:     usd(p.AveragePrice, 6),
		TotalVolume:      usd(p.TotalVolume, 2),
		HotNetwork:       p.HotNetwork,
	}
}

func tradeRow(t domain.Trade) TradeRow {
	return TradeRow{
		ID:        t.ID,
		Side:      string(t.Side),
		Price:     usd(t.Price, 4),
		Amount:    grouped(t.Amount, 0),
		Wallet:    shortAddress(t.Wallet),
		Timestamp: t.Timestamp,
	}
}

func sign(v float64) Direction {
	switch {
	case v > 0:
		return DirectionUp
	case v < 0:
		return DirectionDown
	default:
		return DirectionSame
	}
}
