package repository

import (
	"context"
	"time"

	"product_update_server/internal/updates/domain"
)

// Download is one download variant of a catalog product, in listing order.
type Download struct {
	Name string
	URL  string
}

// CatalogProduct is the raw catalog row the index is derived from. Downloads
// preserves the catalog listing order; the builder indexes only the last one.
type CatalogProduct struct {
	ID           int64
	PluginName   string
	Version      string
	LastModified *time.Time
	Downloads    []Download
}

// CatalogReader lists the products eligible for the update index:
// published, downloadable, with a non-empty plugin slug.
type CatalogReader interface {
	ListDownloadable(ctx context.Context) ([]CatalogProduct, error)
}

// SettingsStore is the durable settings record. GetSettings creates the row
// with defaults on first read.
type SettingsStore interface {
	GetSettings(ctx context.Context) (domain.Settings, error)
	SaveSettings(ctx context.Context, settings domain.Settings) (domain.Settings, error)
}

// StatusStore is the durable "last built" record. SaveStatus overwrites any
// prior record unconditionally.
type StatusStore interface {
	SaveStatus(ctx context.Context, status domain.IndexStatus) error
	GetStatus(ctx context.Context) (domain.IndexStatus, bool, error)
}
