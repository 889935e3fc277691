package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/plambrechtsen/pethublocal/internal/protocol"
	"github.com/plambrechtsen/pethublocal/internal/registry"
	"github.com/spf13/cobra"
)

// resolveDevice turns a registry name or an address into an address. The
// hub alias passes through unchanged.
func resolveDevice(cmd *cobra.Command, store *registry.Store, name string) (string, error) {
	if strings.EqualFold(name, protocol.HubAddress) {
		return protocol.HubAddress, nil
	}
	return lookupDevice(cmd.Context(), store, name)
}

func lookupDevice(ctx context.Context, store *registry.Store, name string) (string, error) {
	devices, err := store.Devices(ctx)
	if err != nil {
		return "", err
	}
	for _, d := range devices {
		if strings.EqualFold(d.Name, name) || strings.EqualFold(d.Address, name) {
			return d.Address, nil
		}
	}
	if len(name) == 16 {
		// an address the registry has not seen yet
		return strings.ToUpper(name), nil
	}
	return "", fmt.Errorf("no device named %q in the registry", name)
}
