// Package api exposes the terminal view and its commands over HTTP.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"launchmeme-terminal/internal/domain"
	"launchmeme-terminal/internal/markets"
	"launchmeme-terminal/internal/observability"
	"launchmeme-terminal/internal/presentation"
)

// Store is the part of the reconciliation store the HTTP surface drives.
type Store interface {
	State() markets.State
	OnChange(fn func(markets.State)) (cancel func())
	SelectToken(ctx context.Context, id string)
	RefreshSelected(ctx context.Context)
	ConnectStreams(ctx context.Context)
	DisconnectStreams()
}

// OrderSubmitter sends orders to the platform. Failures are reported in the result.
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, req domain.OrderRequest) domain.OrderResult
}

// Server serves the terminal API.
type Server struct {
	store   Store
	orders  OrderSubmitter
	logger  *zap.Logger
	engine  *gin.Engine
	started time.Time
	timeout time.Duration

	tracker   *presentation.MetricTracker
	mu        sync.RWMutex
	lastPulse *domain.MarketPulse
	trends    map[string]presentation.Direction
	stopTrack func()
}

// Option configures Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCommandTimeout bounds the REST work triggered by a command.
func WithCommandTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewServer creates the API server and starts tracking pulse trends.
func NewServer(store Store, orders OrderSubmitter, opts ...Option) *Server {
	s := &Server{
		store:   store,
		orders:  orders,
		logger:  zap.NewNop(),
		started: time.Now(),
		timeout: 30 * time.Second,
		tracker: presentation.NewMetricTracker(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("api")

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), s.accessLog())
	s.setupRoutes()

	s.stopTrack = store.OnChange(s.track)
	s.track(store.State())
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Close stops trend tracking.
func (s *Server) Close() {
	s.stopTrack()
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthCheck)
	s.engine.GET("/status", s.status)
	s.engine.GET("/metrics", gin.WrapH(observability.Handler()))

	api := s.engine.Group("/api")

	// Views
	api.GET("/terminal", s.terminal)
	api.GET("/spotlight", s.spotlight)
	api.GET("/pulse", s.pulse)

	// Commands
	api.POST("/tokens/:id/select", s.selectToken)
	api.POST("/refresh", s.refresh)
	api.POST("/streams/connect", s.connectStreams)
	api.POST("/streams/disconnect", s.disconnectStreams)
	api.POST("/orders", s.submitOrder)
}

// track updates trends whenever the pulse values change.
func (s *Server) track(st markets.State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case st.Pulse == nil && s.lastPulse == nil:
		return
	case st.Pulse != nil && s.lastPulse != nil && *st.Pulse == *s.lastPulse:
		return
	}
	s.trends = s.tracker.Observe(st.Pulse)
	if st.Pulse != nil {
		p := *st.Pulse
		s.lastPulse = &p
	} else {
		s.lastPulse = nil
	}
}

func (s *Server) currentTrends() map[string]presentation.Direction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.trends == nil {
		return nil
	}
	out := make(map[string]presentation.Direction, len(s.trends))
	for k, v := range s.trends {
		out[k] = v
	}
	return out
}

// commandContext detaches command work from the request so a client
// disconnect does not abort a half-applied selection.
func (s *Server) commandContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(c.Request.Context()), s.timeout)
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
