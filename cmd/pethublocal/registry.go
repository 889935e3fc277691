package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/plambrechtsen/pethublocal/internal/registry"
	"github.com/spf13/cobra"
)

var feedLimit int

func init() {
	registryCmd.AddCommand(registryInitCmd)
	registryCmd.AddCommand(registryImportCmd)
	registryCmd.AddCommand(registryDevicesCmd)
	registryCmd.AddCommand(registryPetsCmd)
	registryCmd.AddCommand(registryFeedsCmd)
	registryFeedsCmd.Flags().IntVar(&feedLimit, "limit", 20, "Number of feeds to show")
	rootCmd.AddCommand(registryCmd)
}

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Manage the device and pet registry",
	Long: `The registry is a sqlite database holding devices, pets, tag assignments,
door and feeder settings, pet locations, feeding history and message
counters. Decoding reads it for names; decoded state changes are written
back to it.`,
}

var registryInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the registry database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		closeStore()
		return newPrinter().Success("Registry ready", map[string]string{"Database": cfg.DatabasePath()})
	},
}

var registryImportCmd = &cobra.Command{
	Use:   "import <start.json>",
	Short: "Import devices and pets from the cloud start.json export",
	Long: `Import the start.json the vendor app downloads at login. Devices, pets,
tag assignments, curfews, lock modes, feeder settings, last known pet
locations and feeding history are written. Importing the same file twice
leaves the registry unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: runRegistryImport,
}

func runRegistryImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	store, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	summary, err := store.Import(ctx, f)
	if err != nil {
		return err
	}
	return newPrinter().Success("Import complete", map[string]string{
		"Devices": strconv.Itoa(summary.Devices),
		"Pets":    strconv.Itoa(summary.Pets),
		"Tags":    strconv.Itoa(summary.Tags),
		"Feeds":   strconv.Itoa(summary.Feeds),
	})
}

var registryDevicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List registered devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		devices, err := store.Devices(cmd.Context())
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(devices))
		for _, d := range devices {
			counters, err := store.Current(cmd.Context(), d.Address)
			if err != nil {
				return err
			}
			rows = append(rows, []string{
				d.Name, d.Address, d.Type.String(), d.SerialNumber, d.Battery, d.Version,
				strconv.Itoa(int(counters.Send)), strconv.Itoa(int(counters.Receive)),
			})
		}
		return newPrinter().Table([]string{"name", "address", "type", "serial", "battery", "version", "send", "receive"}, rows)
	},
}

var registryPetsCmd = &cobra.Command{
	Use:   "pets",
	Short: "List pets and where they were last seen",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		pets, err := store.Pets(cmd.Context())
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(pets))
		for _, p := range pets {
			location, seen := "", ""
			if !p.SeenAt.IsZero() {
				location = p.Location.String()
				seen = p.SeenAt.Local().Format(time.DateTime)
			}
			rows = append(rows, []string{p.Name, p.Tag, registry.SpeciesName(p.Species), location, p.Device, seen})
		}
		return newPrinter().Table([]string{"name", "tag", "species", "location", "device", "seen"}, rows)
	},
}

var registryFeedsCmd = &cobra.Command{
	Use:   "feeds <chip>",
	Short: "Show recent feeds for a pet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		feeds, err := store.Feeds(cmd.Context(), args[0], feedLimit)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(feeds))
		for _, f := range feeds {
			rows = append(rows, []string{
				f.At.Local().Format(time.DateTime),
				f.Device,
				strconv.Itoa(f.Seconds),
				strconv.FormatFloat(f.LeftDelta, 'f', -1, 64),
				strconv.FormatFloat(f.RightDelta, 'f', -1, 64),
			})
		}
		return newPrinter().Table([]string{"time", "device", "seconds", "left", "right"}, rows)
	},
}
