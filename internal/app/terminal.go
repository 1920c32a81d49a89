// Package app wires the terminal components together and runs them.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"launchmeme-terminal/internal/api"
	"launchmeme-terminal/internal/archive"
	"launchmeme-terminal/internal/config"
	"launchmeme-terminal/internal/launchapi"
	"launchmeme-terminal/internal/marketdata"
	"launchmeme-terminal/internal/markets"
)

const shutdownTimeout = 5 * time.Second

// Terminal owns every long-lived component of one terminal session.
type Terminal struct {
	Config   config.Config
	Client   *launchapi.Client
	Stream   *marketdata.Stream
	Store    *markets.Store
	Recorder *archive.Recorder // nil when archiving is off
	API      *api.Server

	logger  *zap.Logger
	cleanup func()
}

// New builds a terminal from cfg. The archive backend is connected and
// migrated here, so errors are configuration or connectivity problems.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Terminal, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	warnCredential(logger, cfg.WSToken, time.Now())

	client := launchapi.NewClient(cfg.APIBaseURL, cfg.WSToken,
		launchapi.WithTimeout(cfg.RESTTimeout),
		launchapi.WithLogger(logger),
	)

	stream := marketdata.NewStream(marketdata.Config{
		URL:    cfg.WSURL,
		Token:  cfg.WSToken,
		Prefix: cfg.WSPrefix,
	}, marketdata.WithLogger(logger))

	backend, err := openArchive(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var recorder *archive.Recorder
	storeOpts := []markets.Option{markets.WithLogger(logger)}
	if backend.enabled() {
		recorder = archive.NewRecorder(archive.RecorderOptions{
			Snapshots: backend.snapshots,
			Trades:    backend.trades,
			QueueSize: cfg.ArchiveBuffer,
			Logger:    logger,
		})
		storeOpts = append(storeOpts, markets.WithObserver(recorder))
	}

	store := markets.NewStore(client, stream, storeOpts...)
	server := api.NewServer(store, client,
		api.WithLogger(logger),
		api.WithCommandTimeout(2*cfg.RESTTimeout),
	)

	return &Terminal{
		Config:   cfg,
		Client:   client,
		Stream:   stream,
		Store:    store,
		Recorder: recorder,
		API:      server,
		logger:   logger.Named("app"),
		cleanup:  backend.close,
	}, nil
}

// Run hydrates the store, connects the streams and serves HTTP until ctx is
// cancelled. A cancelled context is a clean shutdown and returns nil.
func (t *Terminal) Run(ctx context.Context) error {
	defer t.Close()

	ln, err := net.Listen("tcp", t.Config.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", t.Config.HTTPAddr, err)
	}
	srv := &http.Server{
		Handler:           t.API.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	t.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if t.Recorder != nil {
		g.Go(func() error {
			if err := t.Recorder.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("archive: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		t.Store.ConnectStreams(ctx)
		t.refreshLoop(ctx)
		t.Store.DisconnectStreams()
		return nil
	})

	return g.Wait()
}

// refreshLoop hydrates the spotlight now and then every RefreshInterval.
func (t *Terminal) refreshLoop(ctx context.Context) {
	t.Store.Hydrate(ctx)

	ticker := time.NewTicker(t.Config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Store.Hydrate(ctx)
		}
	}
}

// Close releases the archive backend and stops trend tracking. Safe to call twice.
func (t *Terminal) Close() {
	t.API.Close()
	if t.cleanup != nil {
		t.cleanup()
		t.cleanup = nil
	}
}

// warnCredential logs problems with the bearer credential. The terminal still
// starts: without a valid credential it runs on REST data and placeholders.
func warnCredential(logger *zap.Logger, token string, now time.Time) {
	if token == "" {
		logger.Warn("no realtime credential configured, streaming disabled")
		return
	}
	cred, err := config.InspectCredential(token, now)
	if err != nil {
		logger.Warn("realtime credential is not a JWT", zap.Error(err))
		return
	}
	if cred.Expired {
		logger.Warn("realtime credential expired", zap.Time("expires_at", cred.ExpiresAt))
		return
	}
	logger.Info("realtime credential loaded", zap.String("subject", cred.Subject), zap.Time("expires_at", cred.ExpiresAt))
}
