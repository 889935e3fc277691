// Package discovery announces and finds pethublocal feeds over mDNS.
//
// A running "serve" command registers its websocket feed as a
// "_pethublocal._tcp" service so that dashboards on the same network can
// find it without configuration. The Scanner browses for those services.
//
// # Usage Example
//
//	// Announce the feed until ctx is done
//	ad, err := discovery.Advertise("pethublocal", 8099, map[string]string{"version": version.Version})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ad.Shutdown()
//
//	// Find feeds from another process
//	feeds, err := discovery.NewScanner().ScanForFeeds()
//	for _, feed := range feeds {
//	    fmt.Println(feed.URL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Feeds must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
