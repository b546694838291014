package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyphae-os/hyphae"
	"github.com/hyphae-os/hyphae/gate"
	"github.com/hyphae-os/hyphae/panels"
	"github.com/hyphae-os/hyphae/pin"
)

func newLoginCommand(opts *options) *cobra.Command {
	var (
		username   string
		password   string
		showPanels bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in, enter the PIN and print the dashboard view",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("HYPHAE_PASSWORD")
			}
			return opts.withEngine(cmd, func(engine *hyphae.Engine, logger *slog.Logger) error {
				ctx := cmd.Context()
				if err := engine.Login(ctx, username, password); err != nil {
					fmt.Fprintln(cmd.OutOrStdout(), hyphae.UserMessage(err))
					return err
				}
				in := bufio.NewReader(cmd.InOrStdin())
				if err := secondFactor(ctx, engine, in, cmd.OutOrStdout()); err != nil {
					return err
				}
				return dashboard(ctx, cmd.OutOrStdout(), engine, logger, showPanels)
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username or email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (default $HYPHAE_PASSWORD)")
	cmd.Flags().BoolVar(&showPanels, "panels", false, "load every permitted panel")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newRestoreCommand(opts *options) *cobra.Command {
	var showPanels bool
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Resume the session persisted for this device",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withEngine(cmd, func(engine *hyphae.Engine, logger *slog.Logger) error {
				ctx := cmd.Context()
				if err := engine.Restore(ctx); err != nil {
					fmt.Fprintln(cmd.OutOrStdout(), "no session to restore")
					return err
				}
				in := bufio.NewReader(cmd.InOrStdin())
				if err := secondFactor(ctx, engine, in, cmd.OutOrStdout()); err != nil {
					return err
				}
				return dashboard(ctx, cmd.OutOrStdout(), engine, logger, showPanels)
			})
		},
	}
	cmd.Flags().BoolVar(&showPanels, "panels", false, "load every permitted panel")
	return cmd
}

// secondFactor prompts for PIN lines until the session is verified or input
// ends. Every character goes through the entry buffer, which submits on the
// fourth digit.
func secondFactor(ctx context.Context, engine *hyphae.Engine, in *bufio.Reader, out io.Writer) error {
	if gate.Decide(engine.Sessions().Get()).Region != gate.RegionSecondFactor {
		return nil
	}

	buf := pin.New(engine.VerifyPin)
	for {
		fmt.Fprint(out, "PIN: ")
		line, readErr := in.ReadString('\n')
		line = strings.TrimSpace(line)

		err := enterPin(ctx, buf, line)
		switch {
		case err == nil && buf.Complete():
			if gate.Decide(engine.Sessions().Get()).Region == gate.RegionDashboard {
				return nil
			}
		case err == nil:
			buf.Reset()
			fmt.Fprintln(out, hyphae.MessageValidation)
		case errors.Is(err, pin.ErrInvalidDigit):
			buf.Reset()
			fmt.Fprintln(out, hyphae.MessagePinInvalid)
		case errors.Is(err, hyphae.ErrPinRateLimited), errors.Is(err, hyphae.ErrNoSession):
			fmt.Fprintln(out, hyphae.UserMessage(err))
			return err
		default:
			fmt.Fprintln(out, hyphae.UserMessage(err))
		}

		if readErr != nil {
			return hyphae.ErrNoSession
		}
	}
}

func enterPin(ctx context.Context, buf *pin.Buffer, line string) error {
	if len(line) > pin.Length {
		return pin.ErrInvalidDigit
	}
	for i, r := range line {
		if err := buf.Set(ctx, i, string(r)); err != nil {
			return err
		}
	}
	return nil
}

func dashboard(ctx context.Context, out io.Writer, engine *hyphae.Engine, logger *slog.Logger, showPanels bool) error {
	decision := gate.Decide(engine.Sessions().Get())
	fmt.Fprintf(out, "view: %s\n", decision.Region)
	if decision.Region != gate.RegionDashboard {
		return nil
	}

	names := make([]string, len(decision.Panels))
	for i, p := range decision.Panels {
		names[i] = string(p)
	}
	fmt.Fprintf(out, "panels: %s\n", strings.Join(names, ", "))

	if !showPanels {
		return nil
	}
	loader := newPanelLoader(engine, logger)
	for _, p := range decision.Panels {
		res := loader.Load(ctx, p)
		if res.Err != nil {
			fmt.Fprintf(out, "[%s] %s\n", p, res.Message)
			continue
		}
		fmt.Fprintf(out, "[%s] %s\n", p, res.Data)
	}
	return nil
}

func newPanelLoader(engine *hyphae.Engine, logger *slog.Logger) *panels.Loader {
	var source panels.Source
	if client := engine.Client(); client != nil {
		source = client
	}
	return panels.NewLoader(engine.Sessions(), source, logger)
}
