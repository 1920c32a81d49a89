package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchmeme-terminal/internal/domain"
	"launchmeme-terminal/internal/marketdata"
	"launchmeme-terminal/internal/markets"
	"launchmeme-terminal/internal/presentation"
	"launchmeme-terminal/internal/realtime"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStore struct {
	mu        sync.Mutex
	state     markets.State
	listener  func(markets.State)
	selected  []string
	refreshes int
	connects  int
	hadCancel bool
}

func (f *fakeStore) State() markets.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeStore) OnChange(fn func(markets.State)) func() {
	f.listener = fn
	return func() { f.listener = nil }
}

func (f *fakeStore) SelectToken(ctx context.Context, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = append(f.selected, id)
	f.hadCancel = ctx.Err() != nil
	t := domain.Token{ID: id, Name: id, Symbol: strings.ToUpper(id)}
	f.state.SelectedToken = &t
}

func (f *fakeStore) RefreshSelected(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
}

func (f *fakeStore) ConnectStreams(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	f.state.StreamStatus = domain.StreamStatusConnected
}

func (f *fakeStore) DisconnectStreams() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.StreamStatus = domain.StreamStatusIdle
}

// setPulse changes the pulse and notifies the listener like the store does.
func (f *fakeStore) setPulse(p *domain.MarketPulse) {
	f.mu.Lock()
	f.state.Pulse = p
	st := f.state
	f.mu.Unlock()
	if f.listener != nil {
		f.listener(st)
	}
}

type fakeOrders struct {
	result domain.OrderResult
	got    []domain.OrderRequest
}

func (f *fakeOrders) SubmitOrder(_ context.Context, req domain.OrderRequest) domain.OrderResult {
	f.got = append(f.got, req)
	return f.result
}

func newTestServer(store *fakeStore, orders *fakeOrders) *Server {
	return NewServer(store, orders)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := newTestServer(&fakeStore{}, &fakeOrders{})

	w := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatus(t *testing.T) {
	store := &fakeStore{state: markets.State{
		Spotlight:    []domain.Token{{ID: "a"}, {ID: "b"}},
		StreamStatus: domain.StreamStatusConnected,
	}}
	s := newTestServer(store, &fakeOrders{})

	w := do(t, s, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "running", resp.Status)
	assert.Equal(t, 2, resp.SpotlightSize)
	assert.Equal(t, domain.StreamStatusConnected, resp.StreamStatus)
}

func TestTerminal(t *testing.T) {
	selected := domain.Token{ID: "a", Symbol: "AAA", PriceUSD: 1.5}
	store := &fakeStore{state: markets.State{
		Spotlight:     []domain.Token{selected, {ID: "b", Symbol: "BBB"}},
		SelectedToken: &selected,
		StreamStatus:  domain.StreamStatusConnected,
	}}
	s := newTestServer(store, &fakeOrders{})

	w := do(t, s, http.MethodGet, "/api/terminal", "")
	require.Equal(t, http.StatusOK, w.Code)

	var view presentation.TerminalView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.Len(t, view.Spotlight, 2)
	assert.True(t, view.Spotlight[0].Selected)
	require.NotNil(t, view.Selected)
	assert.Equal(t, "a", view.Selected.ID)
	assert.Equal(t, domain.StreamStatusConnected, view.Status)
}

func TestSpotlight(t *testing.T) {
	store := &fakeStore{state: markets.State{
		Spotlight: []domain.Token{{ID: "a", Symbol: "AAA"}},
	}}
	s := newTestServer(store, &fakeOrders{})

	w := do(t, s, http.MethodGet, "/api/spotlight", "")
	require.Equal(t, http.StatusOK, w.Code)

	var cards []presentation.TokenCard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cards))
	require.Len(t, cards, 1)
	assert.Equal(t, "AAA", cards[0].Symbol)
}

func TestPulse_TrendsFollowChanges(t *testing.T) {
	store := &fakeStore{}
	s := newTestServer(store, &fakeOrders{})

	w := do(t, s, http.MethodGet, "/api/pulse", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	store.setPulse(&domain.MarketPulse{ActiveTokenCount: 2, TotalVolume: 100})
	store.setPulse(&domain.MarketPulse{ActiveTokenCount: 3, TotalVolume: 50})
	// Unchanged pulse keeps the last trends.
	store.setPulse(&domain.MarketPulse{ActiveTokenCount: 3, TotalVolume: 50})

	w = do(t, s, http.MethodGet, "/api/pulse", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Pulse  presentation.PulseView            `json:"pulse"`
		Trends map[string]presentation.Direction `json:"trends"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "3", resp.Pulse.ActiveTokens)
	assert.Equal(t, presentation.DirectionUp, resp.Trends[presentation.MetricActiveTokens])
	assert.Equal(t, presentation.DirectionDown, resp.Trends[presentation.MetricTotalVolume])
	assert.Equal(t, presentation.DirectionSame, resp.Trends[presentation.MetricParticipants])

	s.Close()
	assert.Nil(t, store.listener)
}

func TestCommands(t *testing.T) {
	store := &fakeStore{}
	s := newTestServer(store, &fakeOrders{})

	w := do(t, s, http.MethodPost, "/api/tokens/mint123/select", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"mint123"}, store.selected)
	assert.False(t, store.hadCancel)

	var view presentation.TerminalView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.NotNil(t, view.Selected)
	assert.Equal(t, "mint123", view.Selected.ID)

	w = do(t, s, http.MethodPost, "/api/refresh", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, store.refreshes)

	w = do(t, s, http.MethodPost, "/api/streams/connect", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"streamStatus":"connected"}`, w.Body.String())

	w = do(t, s, http.MethodPost, "/api/streams/disconnect", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"streamStatus":"idle"}`, w.Body.String())
}

func TestSubmitOrder(t *testing.T) {
	orders := &fakeOrders{result: domain.OrderResult{Success: true, ID: "ord-1"}}
	s := newTestServer(&fakeStore{}, orders)

	body := `{"tokenId":"mint123","amount":1.5,"currency":"SOL","intent":"market","walletAddress":"w"}`
	w := do(t, s, http.MethodPost, "/api/orders", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"id":"ord-1"}`, w.Body.String())
	require.Len(t, orders.got, 1)
	assert.Equal(t, domain.CurrencySOL, orders.got[0].Currency)
}

func TestSubmitOrder_FailureIsNotAnHTTPError(t *testing.T) {
	s := newTestServer(&fakeStore{}, &fakeOrders{result: domain.OrderResult{Success: false}})

	w := do(t, s, http.MethodPost, "/api/orders", `{"tokenId":"mint123","amount":-1}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":false}`, w.Body.String())

	w = do(t, s, http.MethodPost, "/api/orders", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// emptySource is a REST collaborator with no data.
type emptySource struct{}

func (emptySource) FetchSpotlight(context.Context) []domain.Token {
	return nil
}

func (emptySource) FetchTokenDetail(context.Context, string) (domain.Token, bool) {
	return domain.Token{}, false
}

func (emptySource) FetchOrderbook(context.Context, string) []domain.OrderbookLevel {
	return nil
}

func (emptySource) FetchTrades(context.Context, string) []domain.Trade {
	return nil
}

func (emptySource) FallbackToken(id string) domain.Token {
	return domain.Token{ID: id}
}

// lifetimeTransport remembers the context its connection runs under.
type lifetimeTransport struct {
	mu     sync.Mutex
	ctx    context.Context
	closed bool
}

func (l *lifetimeTransport) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ctx = ctx
	return nil
}

func (l *lifetimeTransport) Subscribe(string) error   { return nil }
func (l *lifetimeTransport) Unsubscribe(string) error { return nil }

func (l *lifetimeTransport) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func TestConnectStreams_ConnectionOutlivesRequest(t *testing.T) {
	transport := &lifetimeTransport{}
	stream := marketdata.NewStream(
		marketdata.Config{URL: "wss://example/connection/websocket", Token: "jwt"},
		marketdata.WithTransportFactory(func(string, string, realtime.Handler) marketdata.Transport {
			return transport
		}),
	)
	store := markets.NewStore(emptySource{}, stream)
	s := NewServer(store, &fakeOrders{})
	defer s.Close()

	w := do(t, s, http.MethodPost, "/api/streams/connect", "")
	require.Equal(t, http.StatusOK, w.Code)

	transport.mu.Lock()
	ctx, closed := transport.ctx, transport.closed
	transport.mu.Unlock()
	require.NotNil(t, ctx)
	assert.NoError(t, ctx.Err(), "connection must not be bound to the request")
	assert.False(t, closed)
	assert.True(t, stream.Connected())

	w = do(t, s, http.MethodPost, "/api/streams/disconnect", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, transport.closed)
	assert.False(t, stream.Connected())
}
