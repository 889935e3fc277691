// Pethublocal decodes and generates Sure Petcare hub traffic without the
// vendor cloud.
//
// It reads hub MQTT messages (from a pcap capture or a broker subscription
// piped to stdin) and 802.15.4 radio frames (from a serial sniffer), turns
// them into decoded records, and builds the MQTT commands that change a
// device's state. A local sqlite registry, imported from the cloud
// start.json export, supplies device names, pet names and counters.
//
// Usage:
//
//	pethublocal [command] [flags]
//
// See 'pethublocal --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/plambrechtsen/pethublocal/internal/logging"
	"github.com/plambrechtsen/pethublocal/internal/version"
	"github.com/spf13/cobra"
)

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pethublocal",
	Short: "Sure Petcare hub protocol decoder and command generator",
	Long: `Decode and generate the messages a Sure Petcare Connect hub exchanges with
its devices and with the cloud broker.

Messages can come from the command line, a decrypted pcap of hub MQTT
traffic, a broker subscription piped to stdin, or an 802.15.4 serial sniffer.
Decoded records print as styled text on a terminal and as JSON lines
otherwise, and 'serve' republishes them on a websocket feed.

Device and pet names come from the registry database, populated with
'pethublocal registry import start.json'.`,
	Version:           version.Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	Example: `  # Decode an MQTT message from the hub
  pethublocal decode mqtt pethublocal/messages/0000000000000001 "5ff08e80 0 127 ..."

  # Build the command that locks a pet door
  pethublocal generate "Back Door" KeepIn

  # Decode every hub message in a capture
  pethublocal pcap hub.pcapng

  # Watch the radio through a sniffer
  pethublocal sniff --serial /dev/ttyUSB0`,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default is the OS config directory)")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "Registry database path")
	rootCmd.PersistentFlags().StringVar(&keyFlag, "key", "", "XOR key file for radio frames")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log hex dumps of every frame")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Write JSON lines even on a terminal")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pethublocal %s\n", version.Full())
	},
}
