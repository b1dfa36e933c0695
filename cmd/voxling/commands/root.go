package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "voxling",
	Short: "Voice interaction device runtime",
	Long: `voxling - the control core of a voice interaction device.

The runtime connects to a conversation server over websocket or MQTT,
streams opus encoded microphone audio upstream and plays the server's
speech downstream. Without hardware bindings it runs with a simulated
audio codec, which is enough to exercise the full session lifecycle
against a real server.

Examples:
  # Run against a websocket server
  voxling run --config voxling.yaml

  # Show the build version
  voxling version`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initLogging)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
}

func initLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
