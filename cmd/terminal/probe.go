package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"launchmeme-terminal/internal/config"
	"launchmeme-terminal/internal/marketdata"
	"launchmeme-terminal/internal/realtime"
)

// publication is one printed line.
type publication struct {
	Received time.Time       `json:"received"`
	Channel  string          `json:"channel"`
	Data     json.RawMessage `json:"data"`
}

// printer writes publications as JSON lines and signals done after limit.
type printer struct {
	mu    sync.Mutex
	enc   *json.Encoder
	limit int
	count int
	done  chan struct{}
	log   *zap.Logger
}

func newPrinter(w io.Writer, limit int, logger *zap.Logger) *printer {
	return &printer{enc: json.NewEncoder(w), limit: limit, done: make(chan struct{}), log: logger}
}

func (p *printer) HandlePublication(channel string, data json.RawMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.limit > 0 && p.count >= p.limit {
		return
	}
	if err := p.enc.Encode(publication{Received: time.Now().UTC(), Channel: channel, Data: data}); err != nil {
		p.log.Warn("write publication", zap.Error(err))
	}
	p.count++
	if p.limit > 0 && p.count == p.limit {
		close(p.done)
	}
}

func (p *printer) HandleState(state realtime.State, err error) {
	if err != nil {
		p.log.Warn("realtime state", zap.String("state", string(state)), zap.Error(err))
		return
	}
	p.log.Info("realtime state", zap.String("state", string(state)))
}

func runProbe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if !cfg.StreamingEnabled() {
		return errors.New("probe requires a realtime credential (--ws-token or LAUNCH_MEME_WS_TOKEN)")
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tokenID, _ := cmd.Flags().GetString("token")
	channels, _ := cmd.Flags().GetStringSlice("channel")
	limit, _ := cmd.Flags().GetInt("limit")
	duration, _ := cmd.Flags().GetDuration("duration")

	if len(channels) == 0 {
		channels = marketdata.Channels(cfg.WSPrefix, tokenID)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	out := newPrinter(cmd.OutOrStdout(), limit, logger)
	client := realtime.NewClient(cfg.WSURL, cfg.WSToken, out, realtime.WithLogger(logger))
	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("start realtime client: %w", err)
	}
	defer client.Close()

	for _, ch := range channels {
		if err := client.Subscribe(ch); err != nil {
			return fmt.Errorf("subscribe %s: %w", ch, err)
		}
	}
	logger.Info("probe subscribed", zap.Strings("channels", channels), zap.Int("limit", limit))

	select {
	case <-ctx.Done():
	case <-out.done:
	}
	return nil
}
