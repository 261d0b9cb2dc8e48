package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"staged/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "stagec",
	Short: "Replay and benchmark staged call chains",
	Long:  `stagec compiles recorded staged graphs through the domain compilers and reports cache behaviour`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := applyColorFlag(cmd); err != nil {
			return err
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cleanup, err := setupTracing(cmd, cfg)
		if err != nil {
			return err
		}
		traceCleanup = cleanup
		return nil
	},
	SilenceUsage: true,
}

var traceCleanup func(failed bool)

// finishTrace closes the trace session once, after the command has run.
func finishTrace(err error) {
	if traceCleanup != nil {
		traceCleanup(err != nil)
		traceCleanup = nil
	}
}

// main registers subcommands and persistent flags and executes the root
// command. A failing command exits with status 1.
func main() {
	rootCmd.Version = version.Short()

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(versionCmd)

	// глобальные флаги
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().String("config", "", "path to stagec.toml (default: search upwards from the working directory)")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().String("trace", "", "trace output file (\"-\" for stderr)")
	rootCmd.PersistentFlags().String("trace-level", "", "trace level (off|error|phase|detail|debug)")
	rootCmd.PersistentFlags().String("trace-mode", "", "trace storage mode (stream|ring|both)")
	rootCmd.PersistentFlags().String("trace-format", "", "trace encoding (auto|text|ndjson|msgpack)")
	rootCmd.PersistentFlags().Int("trace-ring-size", 0, "events kept by the ring in ring and both modes")
	rootCmd.PersistentFlags().Duration("trace-heartbeat", 0, "emit heartbeat events at this interval")

	err := rootCmd.Execute()
	finishTrace(err)
	if err != nil {
		os.Exit(1)
	}
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
