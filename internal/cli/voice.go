package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hyphae-os/hyphae"
	"github.com/hyphae-os/hyphae/gate"
	"github.com/hyphae-os/hyphae/voice"
)

func newVoiceCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "voice",
		Short: "Run voice commands, one transcript per line of standard input",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withEngine(cmd, func(engine *hyphae.Engine, logger *slog.Logger) error {
				ctx := cmd.Context()
				out := cmd.OutOrStdout()
				if err := engine.Restore(ctx); err != nil {
					logger.Debug("voice session without restore", "error", err)
				}

				svc := voice.NewService(voice.LineRecognizer{R: cmd.InOrStdin()}, logger)
				loader := newPanelLoader(engine, logger)

				_ = svc.Register("status", func() {
					fmt.Fprintf(out, "view: %s\n", gate.Decide(engine.Sessions().Get()).Region)
				})
				_ = svc.Register("sign out", func() {
					engine.Logout(ctx)
					fmt.Fprintln(out, "signed out")
				})
				_ = svc.Register("logout", func() {
					engine.Logout(ctx)
					fmt.Fprintln(out, "signed out")
				})
				for _, p := range []gate.Panel{
					gate.PanelMycoCore,
					gate.PanelNeuroweave,
					gate.PanelRootBloom,
					gate.PanelSporeLink,
				} {
					panel := p
					_ = svc.Register("open "+string(panel), func() {
						res := loader.Load(ctx, panel)
						if res.Err != nil {
							fmt.Fprintf(out, "[%s] %s\n", panel, res.Message)
							return
						}
						fmt.Fprintf(out, "[%s] %s\n", panel, res.Data)
					})
				}

				if err := svc.Start(ctx); err != nil {
					return err
				}
				select {
				case <-svc.Done():
				case <-ctx.Done():
				}
				svc.Stop()
				return nil
			})
		},
	}
}
