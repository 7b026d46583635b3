// Package config provides configuration management for dexsync.
package config

import "time"

// Default configuration values for dexsync.
const (
	// DefaultBaseURL is the catalog API root.
	DefaultBaseURL = "https://pokeapi.co/api/v2"

	// DefaultDataDir is where manifests and snapshots are written.
	DefaultDataDir = "./static"

	// DefaultWorkers is the per-resource fetch pool width.
	DefaultWorkers = 5

	// DefaultTimeout bounds every catalog request.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the client-side request ceiling in requests per second.
	DefaultRateLimit = 20.0

	// DefaultPageSize is large enough for the catalog to answer a listing in one page.
	DefaultPageSize = 100000

	// DefaultUserAgent identifies dexsync to the catalog.
	DefaultUserAgent = "dexsync"

	// DefaultPrimaryLocale is the preferred display-name language.
	DefaultPrimaryLocale = "ko"

	// DefaultSecondaryLocale is used when the primary locale has no name.
	DefaultSecondaryLocale = "en"

	// DefaultRetentionDays is how long sync history is kept.
	DefaultRetentionDays = 90
)

// Resources lists the resource names that carry a per-resource config section.
var Resources = []string{"abilities", "species", "moves"}
