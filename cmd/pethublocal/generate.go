package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/plambrechtsen/pethublocal/internal/protocol"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(generateCmd)
}

var generateCmd = &cobra.Command{
	Use:   "generate <device> [operation] [state]",
	Short: "Build the MQTT command for a device operation",
	Long: `Build the MQTT topic and message that make the hub perform an operation on
a device. The device is a registry name or address; "hub" names the hub.

Without an operation the operations available for that device type are
listed. The state defaults to the one the operation defines.`,
	Example: `  # List what a pet door can do
  pethublocal generate "Back Door"

  # Lock the pet door so pets stay inside
  pethublocal generate "Back Door" KeepIn

  # Set the feeder's left bowl target to 25 grams
  pethublocal generate Kitchen SetLeftScale 25

  # Make the hub dump its registers
  pethublocal generate hub DumpState`,
	Args: cobra.RangeArgs(1, 3),
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	codec, store, closeStore, err := newCodec(ctx, false)
	if err != nil {
		return err
	}
	defer closeStore()

	address, err := resolveDevice(cmd, store, args[0])
	if err != nil {
		return err
	}

	if len(args) == 1 {
		dev, err := store.Device(ctx, address)
		switch {
		case err == nil:
		case address == protocol.HubAddress:
			dev.Type = protocol.DeviceTypeHub
		default:
			return fmt.Errorf("unknown device %s: %w", args[0], err)
		}
		rows := [][]string{}
		for _, name := range codec.Operations().Names(dev.Type) {
			op, _ := codec.Operations().Lookup(dev.Type, name)
			rows = append(rows, []string{name, op.State, strings.Join(op.States(), ",")})
		}
		return newPrinter().Table([]string{"operation", "default", "states"}, rows)
	}

	state := ""
	if len(args) == 3 {
		state = args[2]
	}
	command, err := codec.Generate(ctx, address, args[1], state)
	switch {
	case errors.Is(err, protocol.ErrUnknownOperation):
		return fmt.Errorf("%w (run 'pethublocal generate %s' to list operations)", err, args[0])
	case err != nil:
		return err
	}
	return newPrinter().Command(command)
}
