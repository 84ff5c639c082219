// Package main is the pixgen command line client.
package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Command output goes to out and logs to errOut.
func newRootCmd(out, errOut io.Writer) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "pixgen",
		Short: "Generate pictures with PixAI",
		Long: `pixgen submits prompts to the PixAI generation service, waits for the task
to finish and saves the resulting picture locally.

Configuration is read from PIXAI_* environment variables; flags override them.

Examples:
  pixgen run "a cat in a spacesuit"
  pixgen run -o ./pictures --width 768 --height 512 "misty harbour at dawn"
  pixgen keys create --name ci`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelInfo
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(errOut, &slog.HandlerOptions{Level: level})))
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log each step as JSON to stderr")

	root.AddCommand(newRunCmd(), newKeysCmd())
	return root
}
