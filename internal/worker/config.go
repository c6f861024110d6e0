// Package worker polls GTFS-realtime feeds into the feed store.
package worker

import (
	"strings"
	"time"

	"github.com/livetransit/livetransit/internal/gtfsrt"
)

// ProviderName identifies the realtime feed upstream in provider status.
const ProviderName = "gtfsrt"

// DefaultBaseURL is the TfNSW open data API base URL.
const DefaultBaseURL = "https://api.transport.nsw.gov.au"

// DefaultFeeds are the realtime feeds polled when none are configured.
var DefaultFeeds = []string{"sydneytrains", "metro", "lightrail", "buses", "ferries"}

// feedPaths maps kind and feed to the TfNSW realtime endpoint path.
var feedPaths = map[gtfsrt.Kind]map[string]string{
	gtfsrt.KindTripUpdates: {
		"sydneytrains": "/v2/gtfs/realtime/sydneytrains",
		"metro":        "/v2/gtfs/realtime/metro",
		"lightrail":    "/v1/gtfs/realtime/lightrail/innerwest",
		"buses":        "/v1/gtfs/realtime/buses",
		"ferries":      "/v1/gtfs/realtime/ferries/sydneyferries",
	},
	gtfsrt.KindVehiclePositions: {
		"sydneytrains": "/v2/gtfs/vehiclepos/sydneytrains",
		"metro":        "/v2/gtfs/vehiclepos/metro",
		"lightrail":    "/v1/gtfs/vehiclepos/lightrail/innerwest",
		"buses":        "/v1/gtfs/vehiclepos/buses",
		"ferries":      "/v1/gtfs/vehiclepos/ferries/sydneyferries",
	},
	gtfsrt.KindAlerts: {
		"sydneytrains": "/v2/gtfs/alerts/sydneytrains",
		"metro":        "/v2/gtfs/alerts/metro",
		"lightrail":    "/v2/gtfs/alerts/lightrail",
		"buses":        "/v2/gtfs/alerts/buses",
		"ferries":      "/v2/gtfs/alerts/ferries",
	},
}

var kindSegments = map[gtfsrt.Kind]string{
	gtfsrt.KindTripUpdates:      "realtime",
	gtfsrt.KindVehiclePositions: "vehiclepos",
	gtfsrt.KindAlerts:           "alerts",
}

// Source is one feed and kind to poll.
type Source struct {
	Feed string
	Kind gtfsrt.Kind
	URL  string
}

// RefreshConfig holds configuration for the feed refresh job.
type RefreshConfig struct {
	// BaseURL is the realtime API base URL.
	// Default: https://api.transport.nsw.gov.au
	BaseURL string

	// Feeds are the feed names to poll.
	// If empty, uses DefaultFeeds.
	Feeds []string

	// Kinds are the entity kinds polled for every feed.
	// If empty, polls all kinds.
	Kinds []gtfsrt.Kind

	// Format is the payload encoding.
	// Default: protobuf
	Format gtfsrt.Format

	// Concurrency is the number of concurrent fetches.
	// Default: 3
	Concurrency int

	// Timeout is the timeout for each fetch.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		BaseURL:     DefaultBaseURL,
		Feeds:       append([]string(nil), DefaultFeeds...),
		Kinds:       append([]gtfsrt.Kind(nil), gtfsrt.Kinds...),
		Format:      gtfsrt.FormatProtobuf,
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

// withDefaults fills unset fields from DefaultRefreshConfig.
func (c RefreshConfig) withDefaults() RefreshConfig {
	d := DefaultRefreshConfig()
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if len(c.Feeds) == 0 {
		c.Feeds = d.Feeds
	}
	if len(c.Kinds) == 0 {
		c.Kinds = d.Kinds
	}
	if c.Format == "" {
		c.Format = d.Format
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}

// FeedPath returns the endpoint path of a feed and kind. Unknown feeds use
// "/v1/gtfs/<kind>/<feed>".
func FeedPath(feed string, kind gtfsrt.Kind) string {
	if p, ok := feedPaths[kind][feed]; ok {
		return p
	}
	return "/v1/gtfs/" + kindSegments[kind] + "/" + strings.Trim(feed, "/")
}

// Sources returns every feed and kind pair to poll, grouped by kind.
func (c RefreshConfig) Sources() []Source {
	c = c.withDefaults()
	sources := make([]Source, 0, len(c.Feeds)*len(c.Kinds))
	for _, kind := range c.Kinds {
		for _, feed := range c.Feeds {
			sources = append(sources, Source{
				Feed: feed,
				Kind: kind,
				URL:  c.BaseURL + FeedPath(feed, kind),
			})
		}
	}
	return sources
}

// TotalSources returns the number of sources to poll.
func (c RefreshConfig) TotalSources() int {
	return len(c.Sources())
}

// Filter returns the sources limited to the given feeds and kinds. Empty filters match everything.
func Filter(sources []Source, feeds []string, kinds []gtfsrt.Kind) []Source {
	if len(feeds) == 0 && len(kinds) == 0 {
		return sources
	}
	feedSet := make(map[string]bool, len(feeds))
	for _, f := range feeds {
		feedSet[f] = true
	}
	kindSet := make(map[gtfsrt.Kind]bool, len(kinds))
	for _, k := range kinds {
		kindSet[k] = true
	}
	var out []Source
	for _, s := range sources {
		if len(feedSet) > 0 && !feedSet[s.Feed] {
			continue
		}
		if len(kindSet) > 0 && !kindSet[s.Kind] {
			continue
		}
		out = append(out, s)
	}
	return out
}
