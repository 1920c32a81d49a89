package domain

import "time"

// DefaultNetwork is the chain label attached to every launch.meme token.
const DefaultNetwork = "Solana"

// RawToken is an origin payload as decoded from JSON.
// Keys follow the launch.meme wire names (token, priceUsd, _balanceSol, ...).
type RawToken map[string]any

// Clone returns a shallow copy of the payload.
func (r RawToken) Clone() RawToken {
	if r == nil {
		return nil
	}
	out := make(RawToken, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Has reports whether key is present with a non-null value.
func (r RawToken) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// Token is the canonical market instrument record.
type Token struct {
	ID                string    `json:"id"`     // mint address, unique key
	Name              string    `json:"name"`   // display name
	Symbol            string    `json:"symbol"` // ticker
	PriceUSD          float64   `json:"priceUsd"`
	PriceSOL          float64   `json:"priceSol"`
	Change24h         float64   `json:"change24h"`         // percent
	Liquidity         float64   `json:"liquidity"`         // bonding curve balance
	FullyDilutedValue float64   `json:"fullyDilutedValue"` // market cap in USD
	Volume24h         float64   `json:"volume24h"`
	Progress          float64   `json:"progress"` // migration completion, 0..100
	HolderCount       int64     `json:"holderCount"`
	Network           string    `json:"network"`
	IconURL           string    `json:"iconUrl,omitempty"`
	BannerURL         string    `json:"bannerUrl,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	IsPlaceholder     bool      `json:"isPlaceholder"` // synthetic/demo record
	RawSource         RawToken  `json:"-"`             // origin payload, kept for merges
}

// Clone returns a copy of the token that does not share its raw payload.
func (t Token) Clone() Token {
	t.RawSource = t.RawSource.Clone()
	return t
}

// CloneTokens copies a token slice element by element.
func CloneTokens(tokens []Token) []Token {
	if tokens == nil {
		return nil
	}
	out := make([]Token, len(tokens))
	for i, t := range tokens {
		out[i] = t.Clone()
	}
	return out
}

// ClampProgress bounds a progress percentage to [0, 100].
func ClampProgress(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
