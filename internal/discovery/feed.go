package discovery

import (
	"fmt"
	"time"
)

// Feed is a pethublocal websocket feed found on the network.
type Feed struct {
	// Instance is the advertised service instance name
	Instance string

	// Hostname is the mDNS hostname of the machine serving the feed
	Hostname string

	// IP is the IPv4 address, or IPv6 when no IPv4 address was announced
	IP string

	Port int

	// Metadata holds the TXT records, e.g. "hub" and "path"
	Metadata map[string]string

	DiscoveredAt time.Time
}

func (f *Feed) String() string {
	return fmt.Sprintf("pethublocal feed %s (%s) at %s:%d", f.Instance, f.Hostname, f.IP, f.Port)
}

// URL returns the websocket URL of the feed.
func (f *Feed) URL() string {
	path := f.GetMetadata(txtPath)
	if path == "" {
		path = DefaultPath
	}
	return fmt.Sprintf("ws://%s%s", hostPort(f.IP, f.Port), path)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (f *Feed) GetMetadata(key string) string {
	if f.Metadata == nil {
		return ""
	}
	return f.Metadata[key]
}
