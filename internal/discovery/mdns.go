package discovery

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/plambrechtsen/pethublocal/internal/logging"
	"go.uber.org/zap"
)

const (
	// ServiceType is the mDNS service type of the decoded message feed
	ServiceType = "_pethublocal._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for feed discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPath is the websocket path of the feed
	DefaultPath = "/feed"
)

// TXT record keys
const (
	txtApp  = "app"
	txtPath = "path"
	appName = "pethublocal"
)

// Advertise registers the feed on every multicast interface. The caller
// must call Shutdown on the returned server.
func Advertise(instance string, port int, meta map[string]string) (*zeroconf.Server, error) {
	txt := buildTXT(meta)
	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	logging.Info("Feed advertised over mDNS",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
		zap.Strings("txt", txt),
	)
	return server, nil
}

// buildTXT renders sorted key=value records and always includes the app
// marker and the feed path.
func buildTXT(meta map[string]string) []string {
	all := map[string]string{txtApp: appName, txtPath: DefaultPath}
	for k, v := range meta {
		all[k] = v
	}
	txt := make([]string, 0, len(all))
	for k, v := range all {
		txt = append(txt, k+"="+v)
	}
	sort.Strings(txt)
	return txt
}

// Scanner handles mDNS feed discovery
type Scanner struct {
	// Timeout is the maximum time to wait for feed discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// ScanForFeeds discovers all feeds on the local network
func (s *Scanner) ScanForFeeds() ([]*Feed, error) {
	return s.ScanForFeedsWithContext(context.Background())
}

// ScanForFeedsWithContext discovers feeds with a custom context
func (s *Scanner) ScanForFeedsWithContext(ctx context.Context) ([]*Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	collected := make(chan []*Feed, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		var feeds []*Feed
		for entry := range entries {
			if feed := s.parseServiceEntry(entry); feed != nil {
				feeds = append(feeds, feed)
			}
		}
		collected <- feeds
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	// the resolver closes entries once the browse context ends
	return <-collected, nil
}

// WaitForFeed waits for a feed with the given instance name
func (s *Scanner) WaitForFeed(ctx context.Context, instance string) (*Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Feed, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			feed := s.parseServiceEntry(entry)
			if feed != nil && feed.Instance == instance {
				found <- feed
				cancel()
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case feed := <-found:
		return feed, nil
	case <-ctx.Done():
		select {
		case feed := <-found:
			return feed, nil
		default:
		}
		return nil, fmt.Errorf("feed %s not found within timeout", instance)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Feed.
// Returns nil for entries without an address or the app marker.
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Feed {
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}
	if metadata[txtApp] != appName {
		return nil
	}

	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" || entry.Port == 0 {
		return nil
	}

	return &Feed{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         entry.Port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

func hostPort(ip string, port int) string {
	return net.JoinHostPort(ip, strconv.Itoa(port))
}
