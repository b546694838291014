// Package cli implements the hyphae command line client.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/hyphae-os/hyphae"
	"github.com/hyphae-os/hyphae/metrics/export/prometheus"
)

// MiniredisAddr as --redis-addr starts an in-process Redis for the command.
const MiniredisAddr = "mini"

type options struct {
	configPath string
	mode       string
	baseURL    string
	redisAddr  string
	metrics    bool
	audit      bool
	verbose    bool

	// feed is set by commands that run a feed stream so metrics cover it.
	feed prometheus.FeedStats
}

// NewRootCommand returns the hyphae command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "hyphae",
		Short:         "Headless HyphaeOS dashboard client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML config file")
	flags.StringVar(&opts.mode, "mode", "", "authentication mode: local or remote")
	flags.StringVar(&opts.baseURL, "base-url", "", "backend base URL")
	flags.StringVar(&opts.redisAddr, "redis-addr", os.Getenv("REDIS_ADDR"), `redis address for credentials and the PIN limiter; "mini" runs an in-process server`)
	flags.BoolVar(&opts.metrics, "metrics", false, "print Prometheus metrics on exit")
	flags.BoolVar(&opts.audit, "audit", false, "log audit events")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newLoginCommand(opts),
		newRestoreCommand(opts),
		newFeedCommand(opts),
		newVoiceCommand(opts),
		newPinHashCommand(),
	)
	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (o *options) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func (o *options) config() (hyphae.Config, error) {
	cfg := hyphae.DefaultConfig()
	if o.configPath != "" {
		loaded, err := hyphae.LoadConfig(o.configPath)
		if err != nil {
			return hyphae.Config{}, err
		}
		cfg = loaded
	}
	if o.mode != "" {
		cfg.Mode = hyphae.Mode(strings.ToLower(o.mode))
	}
	if o.baseURL != "" {
		cfg.API.BaseURL = o.baseURL
	}
	if o.metrics {
		cfg.Metrics.Enabled = true
		cfg.Metrics.EnableLatencyHistograms = true
	}
	if o.audit {
		cfg.Audit.Enabled = true
	}
	return cfg, cfg.Validate()
}

func (o *options) redisClient() (redis.UniversalClient, func(), error) {
	switch o.redisAddr {
	case "":
		return nil, func() {}, nil
	case MiniredisAddr:
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	default:
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{o.redisAddr}})
		return client, func() { _ = client.Close() }, nil
	}
}

// withEngine builds an engine for one command, runs fn and tears the engine
// down, printing metrics when requested.
func (o *options) withEngine(cmd *cobra.Command, fn func(*hyphae.Engine, *slog.Logger) error) error {
	cfg, err := o.config()
	if err != nil {
		return err
	}
	logger := o.logger(cmd)

	rdb, closeRedis, err := o.redisClient()
	if err != nil {
		return err
	}
	defer closeRedis()
	if rdb == nil {
		cfg.Security.MaxPinAttempts = 0
	}

	b := hyphae.New().WithConfig(cfg).WithLogger(logger)
	if rdb != nil {
		b = b.WithRedis(rdb)
	}
	if o.audit {
		b = b.WithAuditSink(hyphae.NewSlogSink(logger))
	}
	engine, err := b.Build()
	if err != nil {
		return err
	}

	runErr := fn(engine, logger)
	engine.Close()
	if o.metrics {
		exp := prometheus.NewPrometheusExporter(engine)
		if o.feed != nil {
			exp = exp.WithFeed(o.feed)
		}
		writeMetrics(cmd.OutOrStdout(), exp)
	}
	return runErr
}

func writeMetrics(w io.Writer, exp *prometheus.PrometheusExporter) {
	fmt.Fprintln(w, "# metrics")
	fmt.Fprint(w, exp.Render())
}
