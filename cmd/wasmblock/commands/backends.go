package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/wasmblock/internal/app"
)

func (c *CLI) newBackendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the backends and whether their tools are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return c.app.Backends(cmd.Context(), app.BackendsOptions{ConfigPath: configPath})
		},
	}
}
