package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/doorstep-home/doorstep/internal/client"
	"github.com/doorstep-home/doorstep/internal/config"
	"github.com/doorstep-home/doorstep/internal/discovery"
	"github.com/doorstep-home/doorstep/internal/tui"
	"github.com/doorstep-home/doorstep/internal/urls"
)

// Command flags
var (
	scanTimeout int
	serverHost  string
	serverPort  int
	noMulticast bool
	noMDNS      bool
	statusOnly  bool
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&noMulticast, "no-multicast", false, "Disable UDP multicast discovery")
	rootCmd.PersistentFlags().BoolVar(&noMDNS, "no-mdns", false, "Disable mDNS discovery")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(pickCmd)
	rootCmd.AddCommand(connectCmd)
}

// newEngine builds a merge engine with the backends the flags allow
func newEngine() (*discovery.MergeEngine, error) {
	var backends []discovery.Backend
	if !noMulticast {
		backends = append(backends, discovery.NewMulticastReceiver())
	}
	if !noMDNS {
		backends = append(backends, discovery.NewZeroconfBackend())
	}
	if len(backends) == 0 {
		return nil, fmt.Errorf("all discovery backends disabled; enable at least one of multicast or mDNS")
	}
	return discovery.NewMergeEngine(backends...), nil
}

// scanCmd runs a one-shot discovery pass and prints what it found
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the local network for Doorstep servers",
	Long: `Scan for Doorstep servers using multicast announcements and mDNS.

This command listens for server announcements for the given duration and
prints every server found, with the discovery source that reported it.`,
	Example: `  # Scan for 10 seconds (default)
  doorstep scan

  # Quick 3-second scan
  doorstep scan --timeout 3

  # mDNS only
  doorstep scan --no-multicast`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 0, "Scan duration in seconds (0 uses the configured default)")
}

func runScan(cmd *cobra.Command, args []string) error {
	registry, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	timeout := scanTimeout
	if timeout <= 0 {
		timeout = registry.Preferences.ScanTimeout
	}

	engine, err := newEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Printf("Scanning for Doorstep servers (timeout: %ds)...\n\n", timeout)

	if err := engine.Start(); err != nil {
		return fmt.Errorf("scan failed to start: %w", err)
	}

	// Interruptible wait so ctrl-c prints partial results
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-time.After(time.Duration(timeout) * time.Second):
	case <-ctx.Done():
		fmt.Println("Scan interrupted.")
	}

	state := engine.State()
	engine.Stop()

	if len(state.Servers) == 0 {
		fmt.Println("No servers found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the server is powered on and on the same network")
		fmt.Println("  - Check that your network allows multicast and mDNS traffic")
		fmt.Println("  - Try increasing --timeout for slower networks")
		fmt.Printf("\nSee %s\n", urls.DiscoveryTroubleshooting)
		return nil
	}

	fmt.Printf("Found %d server(s):\n\n", len(state.Servers))

	for i, server := range state.Servers {
		fmt.Printf("%d. %s\n", i+1, server.Name)
		fmt.Printf("   Address: %s:%d\n", server.Host, server.Port)
		fmt.Printf("   API:     %s\n", server.APIURL)
		fmt.Printf("   Events:  %s\n", server.WSURL)
		fmt.Printf("   Via:     %s\n", server.Source)
		fmt.Println()
	}

	fmt.Println("Use 'doorstep pick' to select a server")
	fmt.Println("Use 'doorstep connect' to stream events from the selected server")

	return nil
}

// pickCmd launches the interactive server picker
var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Interactively pick a server and remember it",
	Long: `Launch an interactive picker showing servers as they are discovered.

Servers appear and disappear live while you browse. The chosen server is
saved and becomes the default for 'doorstep connect'.`,
	Example: `  # Launch the picker
  doorstep pick
  # Or simply (pick is default):
  doorstep`,
	RunE: runPick,
}

func runPick(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("the picker needs an interactive terminal; use 'doorstep scan' instead")
	}

	registry, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	engine, err := newEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	selected, err := tui.RunPicker(engine)
	if err != nil {
		return err
	}
	if selected == nil {
		fmt.Println("No server selected.")
		return nil
	}

	registry.SetSelected(selected.Name, selected.Host, selected.Port, selected.APIURL, selected.WSURL)
	if err := registry.Save(); err != nil {
		return fmt.Errorf("failed to save selection: %w", err)
	}

	fmt.Printf("Selected %s (%s:%d)\n", selected.Name, selected.Host, selected.Port)
	fmt.Println("Run 'doorstep connect' to stream events from it.")

	return nil
}

// connectCmd streams events from the selected (or specified) server
var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to a server and stream its events",
	Long: `Connect to a Doorstep server, print its status, and stream live events.

By default the server picked with 'doorstep pick' is used. A server can
also be given directly with --host and --port, in which case default API
and event URLs are derived from the address.`,
	Example: `  # Connect to the remembered server
  doorstep connect

  # Connect to an explicit address
  doorstep connect --host 192.168.1.10 --port 8080

  # Print status and exit without streaming
  doorstep connect --status`,
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().StringVar(&serverHost, "host", "", "Server host (skips the remembered selection)")
	connectCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port, used with --host")
	connectCmd.Flags().BoolVar(&statusOnly, "status", false, "Print server status and exit")
}

func runConnect(cmd *cobra.Command, args []string) error {
	target, err := connectTarget()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Connecting to %s (%s:%d)...\n", target.Name, target.Host, target.Port)

	status, err := client.FetchStatus(ctx, target.APIURL)
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}

	fmt.Printf("  Server:  %s\n", status.Name)
	fmt.Printf("  Version: %s\n", status.Version)
	fmt.Printf("  Uptime:  %s\n", status.UptimeDuration())
	fmt.Println()

	if statusOnly {
		return nil
	}

	stream, err := client.DialEvents(ctx, target.WSURL)
	if err != nil {
		return fmt.Errorf("failed to open event stream: %w", err)
	}
	defer stream.Close()

	fmt.Println("Streaming events (ctrl-c to stop):")

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nDisconnected.")
			return nil
		case ev, ok := <-stream.Events:
			if !ok {
				if err := stream.Err(); err != nil {
					return fmt.Errorf("event stream closed: %w", err)
				}
				fmt.Println("Server closed the event stream.")
				return nil
			}
			printEvent(ev)
		}
	}
}

// connectTarget resolves which server to connect to: explicit flags win,
// otherwise the remembered selection from 'doorstep pick'.
func connectTarget() (*config.Server, error) {
	if serverHost != "" {
		if serverPort < 1 || serverPort > 65535 {
			return nil, fmt.Errorf("invalid port %d", serverPort)
		}
		return &config.Server{
			Name:   serverHost,
			Host:   serverHost,
			Port:   serverPort,
			APIURL: fmt.Sprintf("http://%s:%d", serverHost, serverPort),
			WSURL:  fmt.Sprintf("ws://%s:%d", serverHost, serverPort),
		}, nil
	}

	registry, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if registry.Selected == nil {
		return nil, fmt.Errorf("no server selected; run 'doorstep pick' first or pass --host")
	}
	return registry.Selected, nil
}

// printEvent renders one server event as a single log-style line
func printEvent(ev client.ServerEvent) {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	line := fmt.Sprintf("%s  %-12s", ts.Format("15:04:05"), ev.Type)
	if len(ev.Payload) > 0 {
		line += "  " + string(ev.Payload)
	}
	fmt.Println(line)
}
