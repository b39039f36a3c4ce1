package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/wasmblock/internal/app"
)

func (c *CLI) newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Show the build cache location and size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			clean, _ := cmd.Flags().GetBool("clean")

			return c.app.Cache(cmd.Context(), app.CacheOptions{
				ConfigPath: configPath,
				Clean:      clean,
			})
		},
	}
	cmd.Flags().Bool("clean", false, "Remove every cache entry and backend work directory")
	return cmd
}
