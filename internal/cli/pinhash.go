package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyphae-os/hyphae/internal/pinhash"
	"github.com/hyphae-os/hyphae/pin"
)

func newPinHashCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pin-hash",
		Short: "Hash a PIN from standard input for security.local_pin_hash",
		RunE: func(cmd *cobra.Command, _ []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return errors.New("no PIN on standard input")
			}
			value := strings.TrimSpace(line)

			buf := pin.New(nil)
			if err := enterPin(cmd.Context(), buf, value); err != nil || !buf.Complete() {
				return fmt.Errorf("PIN must be %d digits", pin.Length)
			}

			hash, err := pinhash.Hash(buf.Value(), pinhash.DefaultParams())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
