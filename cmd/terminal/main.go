package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"launchmeme-terminal/internal/app"
	"launchmeme-terminal/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:          "terminal",
		Short:        "launch.meme market terminal backend",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			return config.LoadEnvFile(envFile)
		},
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("env-file", ".env", "dotenv file loaded before config")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the terminal: reconcile REST and realtime data and serve the HTTP API",
		RunE:  runTerminal,
	}

	addConnectionFlags(runCmd)
	runCmd.Flags().Duration("rest-timeout", config.DefaultRESTTimeout, "REST request timeout")
	runCmd.Flags().Duration("refresh-interval", config.DefaultRefreshInterval, "spotlight refresh interval")
	runCmd.Flags().String("http-addr", config.DefaultHTTPAddr, "HTTP listen address")
	runCmd.Flags().String("archive", config.ArchiveOff, "market tape archive (off, memory, postgres, clickhouse)")
	runCmd.Flags().Int("archive-buffer", config.DefaultArchiveBuffer, "archive queue size")
	runCmd.Flags().String("postgres-dsn", "", "Postgres DSN for the postgres archive")
	runCmd.Flags().String("clickhouse-dsn", "", "ClickHouse DSN for the clickhouse archive")

	root.AddCommand(runCmd)

	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "Connect to the realtime endpoint and print publications as JSON lines",
		RunE:  runProbe,
	}

	addConnectionFlags(probeCmd)
	probeCmd.Flags().String("token", "", "also subscribe to the trade channel of this token")
	probeCmd.Flags().StringSlice("channel", nil, "explicit channels to subscribe (overrides the defaults)")
	probeCmd.Flags().Int("limit", 0, "stop after this many publications, 0 means no limit")
	probeCmd.Flags().Duration("duration", 0, "stop after this long, 0 means until interrupted")

	root.AddCommand(probeCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addConnectionFlags(cmd *cobra.Command) {
	cmd.Flags().String("api", config.DefaultAPIBaseURL, "launch.meme REST base URL")
	cmd.Flags().String("ws", config.DefaultWSURL, "realtime websocket URL")
	cmd.Flags().String("ws-token", "", "realtime bearer credential (JWT)")
	cmd.Flags().String("ws-prefix", config.DefaultWSPrefix, "channel namespace")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func runTerminal(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	terminal, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("terminal start",
		zap.String("api", cfg.APIBaseURL),
		zap.String("ws", cfg.WSURL),
		zap.Bool("streaming", cfg.StreamingEnabled()),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("archive", cfg.Archive),
		zap.Duration("refresh_interval", cfg.RefreshInterval),
	)

	start := time.Now()
	err = terminal.Run(ctx)
	logger.Info("terminal stopped", zap.Duration("uptime", time.Since(start)), zap.Error(err))
	return err
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
