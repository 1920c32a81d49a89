// Package markets holds the reconciliation store: the single owner of the
// spotlight collection, the selected token's book and trades, the derived pulse,
// the activity feed and the stream status.
//
// Every mutation is an atomic read-modify-write under the store mutex. REST
// calls run outside the lock and their results are merged against whatever the
// state is when they complete. Operations never return errors: collaborator
// failures surface as fallback data or a status change.
package markets

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"launchmeme-terminal/internal/domain"
	"launchmeme-terminal/internal/marketdata"
	"launchmeme-terminal/internal/observability"
	"launchmeme-terminal/internal/pulse"
)

// Collection bounds.
const (
	MaxSpotlight = 120
	MaxTrades    = 50
	MaxFeed      = 8
)

// Source is the REST collaborator. Implementations absorb their own failures.
type Source interface {
	FetchSpotlight(ctx context.Context) []domain.Token
	FetchTokenDetail(ctx context.Context, id string) (domain.Token, bool)
	FetchOrderbook(ctx context.Context, id string) []domain.OrderbookLevel
	FetchTrades(ctx context.Context, id string) []domain.Trade
	FallbackToken(id string) domain.Token
}

// Stream is the realtime collaborator.
type Stream interface {
	Connect(ctx context.Context, handlers marketdata.Handlers) error
	SubscribeGlobalChannels() error
	SubscribeDetailChannel(tokenID string) error
	Disconnect() error
}

// Observer is notified of applied market data. Calls are made outside the
// store lock, in mutation order, and must not block.
type Observer interface {
	ObserveSpotlight(tokens []domain.Token, at time.Time)
	ObserveTrade(tokenID string, trade domain.Trade)
}

// State is a read-only copy of the store.
type State struct {
	Spotlight         []domain.Token          `json:"spotlight"`
	SelectedToken     *domain.Token           `json:"selectedToken,omitempty"`
	Pulse             *domain.MarketPulse     `json:"pulse"`
	Orderbook         []domain.OrderbookLevel `json:"orderbook"`
	Trades            []domain.Trade          `json:"trades"`
	PulseFeed         []domain.PulseFeedItem  `json:"pulseFeed"`
	StreamStatus      domain.StreamStatus     `json:"streamStatus"`
	IsLoadingSnapshot bool                    `json:"isLoadingSnapshot"`
}

// Store is the reconciliation store. It implements marketdata.Handlers.
type Store struct {
	source Source
	stream Stream
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
	cap    int

	mu        sync.Mutex
	spotlight []domain.Token
	selected  *domain.Token
	pulse     *domain.MarketPulse
	orderbook []domain.OrderbookLevel
	trades    []domain.Trade
	feed      []domain.PulseFeedItem
	status    domain.StreamStatus
	loading   int

	observers []Observer
	listeners map[int]func(State)
	nextKey   int
	ticket    uint64 // next delivery turn, guarded by mu

	// notifyMu guards delivered. Deliveries run in ticket order without mu held.
	notifyMu   sync.Mutex
	notifyCond *sync.Cond
	delivered  uint64
}

var _ marketdata.Handlers = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the clock used for feed timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator sets the feed item id generator.
func WithIDGenerator(f func() string) Option {
	return func(s *Store) {
		s.newID = f
	}
}

// WithObserver registers an observer of applied market data.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// WithCapacity overrides the spotlight cap.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.cap = n
		}
	}
}

// NewStore creates an empty store. stream may be nil for a REST-only store.
func NewStore(source Source, stream Stream, opts ...Option) *Store {
	s := &Store{
		source:    source,
		stream:    stream,
		logger:    zap.NewNop(),
		now:       time.Now,
		newID:     uuid.NewString,
		cap:       MaxSpotlight,
		status:    domain.StreamStatusIdle,
		listeners: make(map[int]func(State)),
	}
	s.notifyCond = sync.NewCond(&s.notifyMu)
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("markets")
	return s
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// OnChange registers fn to receive a state copy after every mutation.
// fn may read State but must not mutate the store. The returned func
// unregisters it.
func (s *Store) OnChange(fn func(State)) (cancel func()) {
	s.mu.Lock()
	key := s.nextKey
	s.nextKey++
	s.listeners[key] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, key)
		s.mu.Unlock()
	}
}

// Hydrate fetches the spotlight snapshot, applies it and refreshes the
// selection's book and trades. It is the periodic resync entry point.
func (s *Store) Hydrate(ctx context.Context) {
	s.beginLoading()
	tokens := s.source.FetchSpotlight(ctx)
	s.SetSpotlight(tokens)
	s.endLoading()

	s.mu.Lock()
	var selectedID string
	if s.selected != nil {
		selectedID = s.selected.ID
	}
	s.mu.Unlock()

	if selectedID == "" {
		return
	}
	s.RefreshSelected(ctx)
	s.subscribeDetail(selectedID)
}

// SetSpotlight replaces the baseline collection with a REST snapshot.
// Placeholders are pruned first. The selection is kept when its id is still in
// the new set, otherwise the first entry becomes selected.
func (s *Store) SetSpotlight(tokens []domain.Token) {
	s.mu.Lock()

	next := make([]domain.Token, 0, len(tokens))
	index := make(map[string]int, len(tokens))
	for _, t := range tokens {
		if t.ID == "" {
			continue
		}
		if i, ok := index[t.ID]; ok {
			next[i] = t.Clone()
			continue
		}
		index[t.ID] = len(next)
		next = append(next, t.Clone())
	}
	s.spotlight = next
	s.pruneLocked()
	if len(s.spotlight) > s.cap {
		clear(s.spotlight[s.cap:])
		s.spotlight = s.spotlight[:s.cap]
	}

	switch {
	case s.selected != nil && s.indexOf(s.selected.ID) >= 0:
		// keep selection
	case len(s.spotlight) > 0:
		if s.selected == nil || s.selected.ID != s.spotlight[0].ID {
			s.orderbook = nil
			s.trades = nil
		}
		first := s.spotlight[0].Clone()
		s.selected = &first
	default:
		s.selected = nil
		s.orderbook = nil
		s.trades = nil
	}

	s.recomputeLocked()
	observability.RecordSnapshotApplied()

	applied := domain.CloneTokens(s.spotlight)
	at := s.now()
	s.unlockAndNotify(func(o Observer) { o.ObserveSpotlight(applied, at) })
}

// SelectToken fetches fresh detail for id, selects it, refreshes its book and
// trades and points the detail subscription at it. When no detail is
// available the spotlight record is used, else the collaborator's fallback.
//
// Overlapping calls are last-write-wins by completion order; responses are not
// fenced, so a slow earlier call can overwrite a newer selection.
func (s *Store) SelectToken(ctx context.Context, id string) {
	detail, found := s.source.FetchTokenDetail(ctx, id)
	if !found {
		if t, ok := s.lookup(id); ok {
			detail = t
		} else {
			s.logger.Warn("no detail for selection, using fallback token", zap.String("token", id))
			detail = s.source.FallbackToken(id)
		}
	}

	s.mu.Lock()
	if s.selected == nil || s.selected.ID != detail.ID {
		// Previous token's detail is discarded, not shown under the new selection
		s.orderbook = nil
		s.trades = nil
	}
	selected := detail.Clone()
	s.selected = &selected
	s.unlockAndNotify(nil)

	s.RefreshSelected(ctx)
	s.subscribeDetail(id)
}

// RefreshSelected replaces the selection's book and trades with a REST
// snapshot. No-op without a selection. Results for a token that is no longer
// selected when the fetch completes are discarded.
func (s *Store) RefreshSelected(ctx context.Context) {
	s.mu.Lock()
	if s.selected == nil {
		s.mu.Unlock()
		return
	}
	id := s.selected.ID
	s.loading++
	s.unlockAndNotify(nil)

	var (
		levels []domain.OrderbookLevel
		trades []domain.Trade
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		levels = s.source.FetchOrderbook(gctx, id)
		return nil
	})
	g.Go(func() error {
		trades = s.source.FetchTrades(gctx, id)
		return nil
	})
	_ = g.Wait()

	s.mu.Lock()
	s.loading--
	if s.selected != nil && s.selected.ID == id {
		s.orderbook = append([]domain.OrderbookLevel(nil), levels...)
		s.trades = newestFirst(trades, MaxTrades)
	} else {
		s.logger.Debug("discarding snapshot for deselected token", zap.String("token", id))
	}
	s.unlockAndNotify(nil)
}

// ConnectStreams opens the realtime connection with the store as handler and
// subscribes to the global channels and the selection's detail channel.
// Calling it again replaces the connection.
func (s *Store) ConnectStreams(ctx context.Context) {
	if s.stream == nil {
		return
	}
	if err := s.stream.Connect(ctx, s); err != nil {
		s.logger.Warn("connect streams", zap.Error(err))
		return
	}
	if err := s.stream.SubscribeGlobalChannels(); err != nil {
		s.logger.Warn("subscribe global channels", zap.Error(err))
	}

	s.mu.Lock()
	var selectedID string
	if s.selected != nil {
		selectedID = s.selected.ID
	}
	s.mu.Unlock()

	if selectedID != "" {
		s.subscribeDetail(selectedID)
	}
}

// DisconnectStreams closes the realtime connection and resets the status to idle.
func (s *Store) DisconnectStreams() {
	if s.stream != nil {
		if err := s.stream.Disconnect(); err != nil {
			s.logger.Warn("disconnect streams", zap.Error(err))
		}
	}

	s.mu.Lock()
	s.status = domain.StreamStatusIdle
	observability.SetStreamStatus(s.status.String())
	s.unlockAndNotify(nil)
}

func (s *Store) subscribeDetail(id string) {
	if s.stream == nil || id == "" {
		return
	}
	if err := s.stream.SubscribeDetailChannel(id); err != nil {
		s.logger.Warn("subscribe detail channel", zap.String("token", id), zap.Error(err))
	}
}

func (s *Store) lookup(id string) (domain.Token, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.spotlight[i].Clone(), true
	}
	return domain.Token{}, false
}

func (s *Store) beginLoading() {
	s.mu.Lock()
	s.loading++
	s.unlockAndNotify(nil)
}

func (s *Store) endLoading() {
	s.mu.Lock()
	s.loading--
	s.unlockAndNotify(nil)
}

// recomputeLocked refreshes everything derived from the spotlight.
func (s *Store) recomputeLocked() {
	s.pulse = pulse.Compute(s.spotlight)
	observability.UpdateSpotlightSize(len(s.spotlight))
}

// snapshotLocked copies the state. Caller holds mu.
func (s *Store) snapshotLocked() State {
	st := State{
		Spotlight:         domain.CloneTokens(s.spotlight),
		Orderbook:         append([]domain.OrderbookLevel(nil), s.orderbook...),
		Trades:            append([]domain.Trade(nil), s.trades...),
		PulseFeed:         append([]domain.PulseFeedItem(nil), s.feed...),
		StreamStatus:      s.status,
		IsLoadingSnapshot: s.loading > 0,
	}
	if s.selected != nil {
		sel := s.selected.Clone()
		st.SelectedToken = &sel
	}
	if s.pulse != nil {
		p := *s.pulse
		st.Pulse = &p
	}
	return st
}

// unlockAndNotify releases mu and delivers the mutation to observers and
// listeners. Caller holds mu.
func (s *Store) unlockAndNotify(observe func(Observer)) {
	var (
		snap      State
		listeners []func(State)
	)
	if len(s.listeners) > 0 {
		snap = s.snapshotLocked()
		listeners = make([]func(State), 0, len(s.listeners))
		for _, fn := range s.listeners {
			listeners = append(listeners, fn)
		}
	}

	turn := s.ticket
	s.ticket++
	s.mu.Unlock()

	s.notifyMu.Lock()
	for s.delivered != turn {
		s.notifyCond.Wait()
	}
	s.notifyMu.Unlock()

	defer func() {
		s.notifyMu.Lock()
		s.delivered++
		s.notifyMu.Unlock()
		s.notifyCond.Broadcast()
	}()

	if observe != nil {
		for _, o := range s.observers {
			observe(o)
		}
	}
	for _, fn := range listeners {
		fn(snap)
	}
}
