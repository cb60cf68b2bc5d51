package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo implements the catalog reader over the product catalog schema.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new catalog repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements CatalogReader.
var _ CatalogReader = (*Repo)(nil)

// ListDownloadable returns all published, downloadable products carrying a
// plugin slug, each with its download variants in listing order.
func (r *Repo) ListDownloadable(ctx context.Context) ([]CatalogProduct, error) {
	query := `
		SELECT p.id, p.plugin_name, p.version, p.updated_at, d.name, d.url
		FROM products p
		LEFT JOIN product_downloads d ON d.product_id = p.id
		WHERE p.status = 'published' AND p.downloadable AND p.plugin_name <> ''
		ORDER BY p.id, d.position, d.id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list downloadable products: %w", err)
	}
	defer rows.Close()

	var products []CatalogProduct
	for rows.Next() {
		var (
			id           int64
			pluginName   string
			version      string
			updatedAt    time.Time
			downloadName *string
			downloadURL  *string
		)
		if err := rows.Scan(&id, &pluginName, &version, &updatedAt, &downloadName, &downloadURL); err != nil {
			return nil, fmt.Errorf("scan downloadable product: %w", err)
		}

		if len(products) == 0 || products[len(products)-1].ID != id {
			modified := updatedAt
			products = append(products, CatalogProduct{
				ID:           id,
				PluginName:   pluginName,
				Version:      version,
				LastModified: &modified,
			})
		}

		if downloadURL != nil {
			name := ""
			if downloadName != nil {
				name = *downloadName
			}
			current := &products[len(products)-1]
			current.Downloads = append(current.Downloads, Download{Name: name, URL: *downloadURL})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list downloadable products: %w", err)
	}

	return products, nil
}
