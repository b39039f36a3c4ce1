package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/wasmblock/internal/app"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <document>",
		Short: "Build every block of a document into the output tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			out, _ := cmd.Flags().GetString("out")
			noCache, _ := cmd.Flags().GetBool("no-cache")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			jobs, _ := cmd.Flags().GetInt("jobs")
			outputMode, _ := cmd.Flags().GetString("output-mode")
			ci, _ := cmd.Flags().GetBool("ci")
			watch, _ := cmd.Flags().GetBool("watch")
			metricsFile, _ := cmd.Flags().GetString("metrics-file")
			journalFile, _ := cmd.Flags().GetString("journal")
			optimize, _ := cmd.Flags().GetString("optimize")

			// If --ci is set, override output-mode to "linear"
			if ci {
				outputMode = "linear"
			}

			opts := app.BuildOptions{
				Document:    args[0],
				ConfigPath:  configPath,
				OutDir:      out,
				NoCache:     noCache,
				Timeout:     timeout,
				Parallelism: jobs,
				OutputMode:  outputMode,
				MetricsFile: metricsFile,
				JournalFile: journalFile,
				Optimize:    optimize,
			}
			if cmd.Flags().Changed("prefix") {
				prefix, _ := cmd.Flags().GetString("prefix")
				opts.Prefix = &prefix
			}

			if watch {
				return c.app.Watch(cmd.Context(), opts)
			}
			return c.app.Build(cmd.Context(), opts)
		},
	}
	cmd.Flags().String("out", "", "Output directory (default: the configured out, or wasm next to the document)")
	cmd.Flags().String("prefix", "", "Path under which the document reaches the output directory")
	cmd.Flags().BoolP("no-cache", "n", false, "Bypass the build cache and force every build")
	cmd.Flags().Duration("timeout", 0, "Per-block build timeout, 0 for none")
	cmd.Flags().IntP("jobs", "j", 0, "Number of blocks built in parallel (default: number of CPUs)")
	cmd.Flags().StringP("output-mode", "o", "auto", "Output mode: auto, tui, or linear")
	cmd.Flags().Bool("ci", false, "Use linear output mode (shorthand for --output-mode=linear)")
	cmd.Flags().BoolP("watch", "w", false, "Rebuild when the document or its configuration changes")
	cmd.Flags().String("metrics-file", "", "Write Prometheus build metrics to this file")
	cmd.Flags().String("journal", "", "Record build progress to this file")
	cmd.Flags().String("optimize", "", "Optimize modules with wasm-opt at level 1, 2, 3, 4, s or z")
	cmd.Flags().Lookup("optimize").NoOptDefVal = "s"
	return cmd
}
