// Package domain holds the core types of the update index.
package domain

import "time"

// DefaultCacheTTL is the index cache lifetime used when the configured value
// is missing or not positive.
const DefaultCacheTTL = time.Hour

// IndexEntry is the update metadata published for one downloadable product.
// PluginName is the lookup key clients use; DownloadURL and FileName describe
// the most recently listed download variant only.
type IndexEntry struct {
	ProductID   int64  `json:"product_id"`
	PluginName  string `json:"plugin_name"`
	Version     string `json:"version"`
	DownloadURL string `json:"download_url"`
	FileName    string `json:"file_name"`
	LastUpdated string `json:"last_updated"`
}

// Index maps a product slug to its update metadata. It is rebuilt as a whole
// from the catalog; entries are never mutated in place.
type Index map[string]IndexEntry

// Settings controls the index cache lifetime and the scheduled refresh.
type Settings struct {
	CacheTTLSeconds int  `json:"cache_ttl"`
	EnableCron      bool `json:"enable_cron"`
}

// DefaultSettings returns the settings applied when none have been saved yet.
func DefaultSettings() Settings {
	return Settings{
		CacheTTLSeconds: int(DefaultCacheTTL / time.Second),
		EnableCron:      false,
	}
}

// EffectiveTTL returns the cache lifetime to use for the next build, clamping
// non-positive configured values to the default.
func (s Settings) EffectiveTTL() time.Duration {
	if s.CacheTTLSeconds <= 0 {
		return DefaultCacheTTL
	}
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

// IndexStatus is the durable "last built" record. It is written on every
// build and read only for status reporting, never for cache-hit decisions.
type IndexStatus struct {
	Data        Index     `json:"data"`
	GeneratedAt time.Time `json:"generated_at"`
}
