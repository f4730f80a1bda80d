// Doorstep is a command-line client for Doorstep home intercom servers.
//
// It discovers servers on the local network via UDP multicast announcements
// and mDNS browsing, lets the user pick one interactively, and streams live
// events from the selected server over WebSocket.
//
// Usage:
//
//	doorstep [command] [flags]
//
// Running without arguments launches the interactive picker.
// See 'doorstep --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/doorstep-home/doorstep/internal/logging"
	"github.com/doorstep-home/doorstep/internal/version"
)

func main() {
	if err := logging.InitializeFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logging.Sync()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "doorstep",
	Short: "Doorstep Home Server Client",
	Long: `A command-line client for Doorstep home intercom and camera servers.

Discovers servers on your local network using multicast announcements and
mDNS, and connects to them for status and live event streaming.

If no command is specified, the interactive server picker will launch
automatically.`,
	Version: version.Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: run the picker when no subcommand provided
		return runPick(cmd, args)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("doorstep %s (commit: %s)\n", version.Version, version.Commit)
	},
}
