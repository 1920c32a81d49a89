package launchapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"launchmeme-terminal/internal/domain"
	"launchmeme-terminal/internal/mapper"
	"launchmeme-terminal/internal/observability"
)

// Endpoint labels for logs and metrics.
const (
	endpointSpotlight = "tokens"
	endpointDetail    = "token_detail"
	endpointOrderbook = "orderbook"
	endpointTrades    = "trades"
	endpointOrders    = "orders"
)

// SpotlightQuery is the body of the token list request.
type SpotlightQuery struct {
	Page    int    `json:"page"`
	List    string `json:"list"`
	Version int    `json:"version"`
}

// DefaultSpotlightQuery is the first page of the curated spotlight list.
func DefaultSpotlightQuery() SpotlightQuery {
	return SpotlightQuery{Page: 1, List: "spotlight", Version: 1}
}

type tokensResponse struct {
	Tokens json.RawMessage `json:"tokens"`
}

type listResponse struct {
	Data []map[string]any `json:"data"`
}

type orderResponse struct {
	Data *struct {
		ID string `json:"id"`
	} `json:"data"`
}

// FetchTokens lists tokens for query. Errors are returned as is.
func (c *Client) FetchTokens(ctx context.Context, query SpotlightQuery) ([]domain.Token, error) {
	return c.postTokens(ctx, endpointSpotlight, query)
}

// FetchSpotlight returns the spotlight snapshot, or the placeholder tokens when the
// request fails or returns nothing.
func (c *Client) FetchSpotlight(ctx context.Context) []domain.Token {
	tokens, err := c.FetchTokens(ctx, DefaultSpotlightQuery())
	if err != nil {
		c.logger.Warn("fallback tokens", zap.Error(err))
	}
	if err != nil || len(tokens) == 0 {
		observability.RecordFallback(endpointSpotlight)
		return FallbackTokens(c.now())
	}
	return tokens
}

// FetchTokenDetail returns fresh detail for id. found is false when the request
// failed or the API has no such token; the caller decides how to degrade.
func (c *Client) FetchTokenDetail(ctx context.Context, id string) (domain.Token, bool) {
	tokens, err := c.postTokens(ctx, endpointDetail, map[string]string{"id": id})
	if err != nil {
		c.logger.Warn("token detail unavailable", zap.String("token", id), zap.Error(err))
		return domain.Token{}, false
	}
	for _, t := range tokens {
		if t.ID == id {
			return t, true
		}
	}
	if len(tokens) > 0 {
		return tokens[0], true
	}
	return domain.Token{}, false
}

// FallbackToken returns the placeholder used when a selection has no detail.
func (c *Client) FallbackToken(id string) domain.Token {
	observability.RecordFallback(endpointDetail)
	return FallbackToken(id, c.now())
}

// FetchOrderbook returns the book of id, or a synthetic book on failure.
func (c *Client) FetchOrderbook(ctx context.Context, id string) []domain.OrderbookLevel {
	var resp listResponse
	path := "/tokens/" + url.PathEscape(id) + "/orderbook"
	if err := c.call(ctx, endpointOrderbook, http.MethodGet, path, nil, &resp); err != nil {
		c.logger.Warn("fallback orderbook", zap.String("token", id), zap.Error(err))
		observability.RecordFallback(endpointOrderbook)
		return SyntheticOrderbook(id, c.now())
	}
	return mapper.NormalizeLevels(resp.Data)
}

// FetchTrades returns recent trades of id, or synthetic trades on failure.
func (c *Client) FetchTrades(ctx context.Context, id string) []domain.Trade {
	var resp listResponse
	path := "/tokens/" + url.PathEscape(id) + "/trades"
	if err := c.call(ctx, endpointTrades, http.MethodGet, path, nil, &resp); err != nil {
		c.logger.Warn("fallback trades", zap.String("token", id), zap.Error(err))
		observability.RecordFallback(endpointTrades)
		return SyntheticTrades(id, c.now())
	}

	trades := make([]domain.Trade, 0, len(resp.Data))
	for _, raw := range resp.Data {
		tu, ok := c.mapper.NormalizeTrade(mapper.OriginSnapshot, raw, id)
		if !ok {
			continue
		}
		trades = append(trades, tu.Trade)
	}
	return trades
}

// SubmitOrder validates and sends an order. Failures are reported in the result,
// never returned.
func (c *Client) SubmitOrder(ctx context.Context, req domain.OrderRequest) domain.OrderResult {
	result, err := c.submitOrder(ctx, req)
	if err != nil {
		c.logger.Warn("order submission failed", zap.String("token", req.TokenID), zap.Error(err))
	}
	observability.RecordOrder(result.Success)
	return result
}

func (c *Client) submitOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	if err := req.Validate(); err != nil {
		return domain.OrderResult{}, err
	}
	if c.token == "" {
		return domain.OrderResult{}, ErrNoCredential
	}

	var resp orderResponse
	if err := c.call(ctx, endpointOrders, http.MethodPost, "/orders", req, &resp); err != nil {
		return domain.OrderResult{}, fmt.Errorf("post order: %w", err)
	}
	if resp.Data == nil || resp.Data.ID == "" {
		return domain.OrderResult{}, errors.New("order response has no id")
	}
	return domain.OrderResult{Success: true, ID: resp.Data.ID}, nil
}

func (c *Client) postTokens(ctx context.Context, endpoint string, body any) ([]domain.Token, error) {
	var resp tokensResponse
	if err := c.call(ctx, endpoint, http.MethodPost, "/tokens", body, &resp); err != nil {
		return nil, err
	}

	raws, err := decodeTokenMap(resp.Tokens)
	if err != nil {
		return nil, err
	}

	tokens := make([]domain.Token, 0, len(raws))
	for _, raw := range raws {
		t, ok := c.mapper.Normalize(mapper.OriginSnapshot, raw)
		if !ok {
			c.logger.Debug("dropping malformed token", zap.Any("payload", raw))
			observability.RecordMalformed(endpoint)
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens, nil
}

// decodeTokenMap decodes {id: RawToken} keeping the server's key order, which is
// the list ranking. A payload without "token" takes its id from the key.
func decodeTokenMap(data json.RawMessage) ([]domain.RawToken, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode tokens: %w", err)
	}
	if tok == nil {
		return nil, nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("decode tokens: expected object, got %v", tok)
	}

	var raws []domain.RawToken
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode tokens key: %w", err)
		}
		key, _ := keyTok.(string)

		var raw domain.RawToken
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode token %s: %w", key, err)
		}
		if raw == nil {
			continue
		}
		if !raw.Has("token") && key != "" {
			raw["token"] = key
		}
		raws = append(raws, raw)
	}
	return raws, nil
}
