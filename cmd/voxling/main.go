// Package main is the entry point for the voxling device runtime.
//
// Usage:
//
//	voxling [flags] <command>
//
// Commands:
//
//	run      - Run the device core (simulator codec unless wired to hardware)
//	version  - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/voxling/voxling/cmd/voxling/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
