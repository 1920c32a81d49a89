// Package marketdata owns the realtime connection to launch.meme and turns channel
// publications into normalized domain events.
//
// Channels (prefix configurable, default "pumpfun"):
//   - {prefix}-tokenUpdates: token patches and tickers
//   - {prefix}-mintTokens: newly minted tokens
//   - {prefix}-txs_{tokenId}: trades and orderbook snapshots of one token
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"launchmeme-terminal/internal/domain"
	"launchmeme-terminal/internal/mapper"
	"launchmeme-terminal/internal/observability"
	"launchmeme-terminal/internal/realtime"
)

// DefaultPrefix is the channel namespace used by launch.meme.
const DefaultPrefix = "pumpfun"

const (
	channelTokenUpdates = "tokenUpdates"
	channelMintTokens   = "mintTokens"
	channelTradesPrefix = "txs_"
)

// Event type labels used for logs and metrics.
const (
	EventTicker      = "ticker"
	EventOrderbook   = "orderbook"
	EventTrade       = "trade"
	EventTokenUpdate = "token_update"
	EventMint        = "mint"
	EventStatus      = "status"
)

// Handlers receives normalized events. Each method is dispatched independently:
// a panic in one is recovered and does not affect the others.
type Handlers interface {
	OnTicker(update domain.TickerUpdate)
	OnOrderbook(update domain.OrderbookUpdate)
	OnTrade(update domain.TradeUpdate)
	OnTokenUpdate(token domain.Token)
	OnMint(token domain.Token)
	OnStatusChange(status domain.StreamStatus)
}

// Transport is the subset of realtime.Client used by Stream.
type Transport interface {
	Start(ctx context.Context) error
	Subscribe(channel string) error
	Unsubscribe(channel string) error
	Close() error
}

// TransportFactory creates a transport that reports to handler.
type TransportFactory func(url, token string, handler realtime.Handler) Transport

// Config configures Stream.
type Config struct {
	URL       string
	Token     string
	Prefix    string
	Transport realtime.Config
}

// Stream owns at most one realtime connection and its subscriptions.
type Stream struct {
	cfg     Config
	mapper  *mapper.Mapper
	logger  *zap.Logger
	factory TransportFactory

	mu            sync.RWMutex
	transport     Transport
	handlers      Handlers
	generation    uint64
	detailChannel string
}

// Option configures Stream.
type Option func(*Stream)

// WithLogger sets the stream logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Stream) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMapper sets the payload mapper.
func WithMapper(m *mapper.Mapper) Option {
	return func(s *Stream) {
		if m != nil {
			s.mapper = m
		}
	}
}

// WithTransportFactory replaces the websocket transport.
func WithTransportFactory(f TransportFactory) Option {
	return func(s *Stream) {
		if f != nil {
			s.factory = f
		}
	}
}

// NewStream creates a disconnected stream.
func NewStream(cfg Config, opts ...Option) *Stream {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	s := &Stream{
		cfg:    cfg,
		mapper: mapper.New(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("marketdata")
	if s.factory == nil {
		s.factory = s.websocketTransport
	}
	return s
}

func (s *Stream) websocketTransport(url, token string, handler realtime.Handler) Transport {
	opts := []realtime.Option{realtime.WithLogger(s.logger)}
	if s.cfg.Transport != (realtime.Config{}) {
		opts = append(opts, realtime.WithConfig(s.cfg.Transport))
	}
	return realtime.NewClient(url, token, handler, opts...)
}

// Connect opens a connection and routes its events to handlers. A previous
// connection is torn down first. Without a credential Connect logs a warning and
// returns nil: offline mode is a valid state.
//
// The connection lives until Disconnect or the next Connect. Cancelling ctx
// does not close it, so request-scoped contexts are safe to pass.
func (s *Stream) Connect(ctx context.Context, handlers Handlers) error {
	if err := s.teardown(); err != nil {
		s.logger.Warn("tear down previous connection", zap.Error(err))
	}

	if s.cfg.Token == "" {
		s.logger.Warn("no realtime credential configured, staying offline")
		return nil
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.handlers = handlers
	t := s.factory(s.cfg.URL, s.cfg.Token, &session{stream: s, generation: gen})
	s.transport = t
	s.mu.Unlock()

	if err := t.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("start realtime transport: %w", err)
	}
	return nil
}

// Connected reports whether a transport exists.
func (s *Stream) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transport != nil
}

// SubscribeGlobalChannels subscribes to tokenUpdates and mintTokens.
// No-op while disconnected; repeated calls are no-ops per channel.
func (s *Stream) SubscribeGlobalChannels() error {
	s.mu.RLock()
	t := s.transport
	s.mu.RUnlock()
	if t == nil {
		return nil
	}

	for _, name := range []string{channelTokenUpdates, channelMintTokens} {
		if err := t.Subscribe(s.channel(name)); err != nil {
			return fmt.Errorf("subscribe global channels: %w", err)
		}
	}
	return nil
}

// SubscribeDetailChannel points the trade/orderbook subscription at tokenID.
// The previous detail channel is unsubscribed first, so at most one is active.
func (s *Stream) SubscribeDetailChannel(tokenID string) error {
	if tokenID == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transport == nil {
		return nil
	}
	next := s.channel(channelTradesPrefix + tokenID)
	if s.detailChannel == next {
		return nil
	}

	if s.detailChannel != "" {
		if err := s.transport.Unsubscribe(s.detailChannel); err != nil {
			s.logger.Warn("unsubscribe detail channel failed",
				zap.String("channel", s.detailChannel), zap.Error(err))
		}
	}
	s.detailChannel = next
	if err := s.transport.Subscribe(next); err != nil {
		return fmt.Errorf("subscribe detail channel %s: %w", next, err)
	}
	return nil
}

// DetailChannel returns the active detail channel, or "" when none.
func (s *Stream) DetailChannel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detailChannel
}

// Disconnect clears handlers, drops all subscriptions and closes the connection.
// Safe to call when already disconnected.
func (s *Stream) Disconnect() error {
	return s.teardown()
}

// teardown silences the current session before closing its transport so no
// callback fires after Disconnect returns.
func (s *Stream) teardown() error {
	s.mu.Lock()
	t := s.transport
	s.transport = nil
	s.handlers = nil
	s.generation++
	s.detailChannel = ""
	s.mu.Unlock()

	if t == nil {
		return nil
	}
	if err := t.Close(); err != nil {
		return fmt.Errorf("close realtime transport: %w", err)
	}
	return nil
}

func (s *Stream) channel(name string) string {
	if s.cfg.Prefix == "" {
		return name
	}
	return s.cfg.Prefix + "-" + name
}

// handlersFor returns the handlers if gen is still the live session.
func (s *Stream) handlersFor(gen uint64) Handlers {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if gen != s.generation {
		return nil
	}
	return s.handlers
}

// dispatch runs fn with panic isolation.
func (s *Stream) dispatch(event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			observability.RecordHandlerPanic(event)
			s.logger.Error("handler panicked", zap.String("event", event), zap.Any("panic", r))
		}
	}()
	observability.RecordStreamEvent(event)
	fn()
}

func (s *Stream) dropped(event, channel string, data json.RawMessage) {
	observability.RecordMalformed(event)
	s.logger.Debug("dropping malformed payload",
		zap.String("event", event),
		zap.String("channel", channel),
		zap.ByteString("data", data))
}

// route decodes a publication and dispatches the resulting events.
func (s *Stream) route(h Handlers, channel string, data json.RawMessage) {
	tokenUpdates := s.channel(channelTokenUpdates)
	mints := s.channel(channelMintTokens)
	tradesPrefix := s.channel(channelTradesPrefix)

	switch {
	case channel == tokenUpdates:
		raw, ok := decodeObject(data)
		if !ok {
			s.dropped(EventTokenUpdate, channel, data)
			return
		}
		token, tokenOK := s.mapper.Normalize(mapper.OriginPush, raw)
		if tokenOK {
			s.dispatch(EventTokenUpdate, func() { h.OnTokenUpdate(token) })
		}
		ticker, tickerOK := mapper.TickerFrom(raw)
		if tickerOK {
			s.dispatch(EventTicker, func() { h.OnTicker(ticker) })
		}
		if !tokenOK && !tickerOK {
			s.dropped(EventTokenUpdate, channel, data)
		}

	case channel == mints:
		raw, ok := decodeObject(data)
		if !ok {
			s.dropped(EventMint, channel, data)
			return
		}
		token, ok := s.mapper.Normalize(mapper.OriginPush, raw)
		if !ok {
			s.dropped(EventMint, channel, data)
			return
		}
		s.dispatch(EventMint, func() { h.OnMint(token) })

	case strings.HasPrefix(channel, tradesPrefix):
		s.routeDetail(h, channel, strings.TrimPrefix(channel, tradesPrefix), data)

	default:
		s.logger.Debug("publication on unknown channel", zap.String("channel", channel))
	}
}

// routeDetail handles a detail channel publication: a book snapshot when it
// carries bids or asks, otherwise one trade or a batch of trades.
func (s *Stream) routeDetail(h Handlers, channel, tokenID string, data json.RawMessage) {
	var items []map[string]any
	if err := json.Unmarshal(data, &items); err != nil {
		raw, ok := decodeObject(data)
		if !ok {
			s.dropped(EventTrade, channel, data)
			return
		}
		items = []map[string]any{raw}
	}

	for _, raw := range items {
		if mapper.IsOrderbook(raw) {
			book, ok := mapper.NormalizeOrderbook(raw, tokenID)
			if !ok {
				s.dropped(EventOrderbook, channel, data)
				continue
			}
			s.dispatch(EventOrderbook, func() { h.OnOrderbook(book) })
			continue
		}

		trade, ok := s.mapper.NormalizeTrade(mapper.OriginPush, raw, tokenID)
		if !ok {
			s.dropped(EventTrade, channel, data)
			continue
		}
		s.dispatch(EventTrade, func() { h.OnTrade(trade) })
	}
}

func decodeObject(data json.RawMessage) (map[string]any, bool) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil, false
	}
	return raw, true
}

// statusOf maps transport states to stream statuses.
func statusOf(state realtime.State) domain.StreamStatus {
	switch state {
	case realtime.StateConnecting:
		return domain.StreamStatusConnecting
	case realtime.StateConnected:
		return domain.StreamStatusConnected
	case realtime.StateError:
		return domain.StreamStatusError
	default:
		return domain.StreamStatusDisconnected
	}
}

// session binds transport callbacks to one connection generation.
type session struct {
	stream     *Stream
	generation uint64
}

func (ss *session) HandlePublication(channel string, data json.RawMessage) {
	h := ss.stream.handlersFor(ss.generation)
	if h == nil {
		return
	}
	ss.stream.route(h, channel, data)
}

func (ss *session) HandleState(state realtime.State, err error) {
	h := ss.stream.handlersFor(ss.generation)
	if h == nil {
		return
	}
	status := statusOf(state)
	if err != nil {
		ss.stream.logger.Warn("realtime status change", zap.String("status", status.String()), zap.Error(err))
	}
	observability.SetStreamStatus(status.String())
	ss.stream.dispatch(EventStatus, func() { h.OnStatusChange(status) })
}

// Channels returns the global channel names under prefix, plus the detail
// channel of tokenID when it is not empty.
func Channels(prefix, tokenID string) []string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	out := []string{prefix + "-" + channelTokenUpdates, prefix + "-" + channelMintTokens}
	if tokenID != "" {
		out = append(out, prefix+"-"+channelTradesPrefix+tokenID)
	}
	return out
}
