package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/latexbot/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
		// Printing defaults must work even when the current config is invalid.
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "defaults",
		Short: "Print a TOML config file holding every default",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), config.RenderDefaultTOML())
			return err
		},
	})
	return cmd
}
