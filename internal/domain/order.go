package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidOrder is returned when an order request fails validation.
var ErrInvalidOrder = errors.New("invalid order")

// Currency is the quote currency of an order.
type Currency string

const (
	CurrencySOL  Currency = "SOL"
	CurrencyUSDC Currency = "USDC"
)

// Intent is the order execution type.
type Intent string

const (
	IntentMarket Intent = "market"
	IntentLimit  Intent = "limit"
)

// MaxSlippageBps caps the accepted slippage tolerance (50%).
const MaxSlippageBps = 5000

// OrderRequest is the body of POST /orders.
type OrderRequest struct {
	TokenID       string   `json:"tokenId"`
	Amount        float64  `json:"amount"`
	Currency      Currency `json:"currency"`
	Intent        Intent   `json:"intent"`
	WalletAddress string   `json:"walletAddress"`
	SlippageBps   int      `json:"slippageBps,omitempty"`
}

// OrderResult is reported to the presentation layer instead of an error.
type OrderResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
}

// Validate checks the request before it is sent to the platform.
func (r OrderRequest) Validate() error {
	if r.TokenID == "" {
		return fmt.Errorf("%w: token id is required", ErrInvalidOrder)
	}
	if !(r.Amount > 0) {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidOrder)
	}
	if r.Currency != CurrencySOL && r.Currency != CurrencyUSDC {
		return fmt.Errorf("%w: unsupported currency %q", ErrInvalidOrder, r.Currency)
	}
	if r.Intent != IntentMarket && r.Intent != IntentLimit {
		return fmt.Errorf("%w: unsupported intent %q", ErrInvalidOrder, r.Intent)
	}
	if r.SlippageBps < 0 || r.SlippageBps > MaxSlippageBps {
		return fmt.Errorf("%w: slippage %d bps out of range", ErrInvalidOrder, r.SlippageBps)
	}
	if err := ValidateWalletAddress(r.WalletAddress); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	return nil
}
