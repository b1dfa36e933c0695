package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is overridden at build time with -ldflags.
var Version = "0.1.0-dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("voxling %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
