package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyphae-os/hyphae"
	"github.com/hyphae-os/hyphae/feed"
)

func newFeedCommand(opts *options) *cobra.Command {
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "feed [ws-url]",
		Short: "Tail the agent event feed and print the buffered events",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd, func(engine *hyphae.Engine, logger *slog.Logger) error {
				cfg := engine.Config().Feed
				if len(args) == 1 {
					cfg.URL = args[0]
				}
				if cfg.URL == "" {
					return errors.New("feed url required")
				}

				stream := feed.NewStream(feed.StreamConfig{
					URL:              cfg.URL,
					HandshakeTimeout: cfg.HandshakeTimeout,
					Logger:           logger,
				}, feed.NewRing(cfg.Capacity))
				opts.feed = stream

				ctx := cmd.Context()
				if duration > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, duration)
					defer cancel()
				}
				runErr := stream.Run(ctx)

				enc := json.NewEncoder(cmd.OutOrStdout())
				for _, ev := range stream.Ring().Events() {
					if err := enc.Encode(ev); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "accepted=%d dropped=%d\n", stream.Accepted(), stream.Dropped())
				return runErr
			})
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (default: until the feed closes)")
	return cmd
}
