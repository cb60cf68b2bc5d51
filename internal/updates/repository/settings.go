package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"product_update_server/internal/updates/domain"
)

// SettingsRepo implements the durable settings and index-status stores over
// the single-row tables.
type SettingsRepo struct {
	pool *pgxpool.Pool
}

// NewSettings creates a settings/status repository.
func NewSettings(pool *pgxpool.Pool) *SettingsRepo {
	return &SettingsRepo{pool: pool}
}

// Compile-time checks.
var (
	_ SettingsStore = (*SettingsRepo)(nil)
	_ StatusStore   = (*SettingsRepo)(nil)
)

// GetSettings reads the settings row, inserting the defaults first if the row
// does not exist yet.
func (r *SettingsRepo) GetSettings(ctx context.Context) (domain.Settings, error) {
	defaults := domain.DefaultSettings()

	query := `
		INSERT INTO update_server_settings (id, cache_ttl, enable_cron)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO NOTHING`
	if _, err := r.pool.Exec(ctx, query, defaults.CacheTTLSeconds, defaults.EnableCron); err != nil {
		return domain.Settings{}, fmt.Errorf("ensure settings row: %w", err)
	}

	var settings domain.Settings
	row := r.pool.QueryRow(ctx, `SELECT cache_ttl, enable_cron FROM update_server_settings WHERE id = 1`)
	if err := row.Scan(&settings.CacheTTLSeconds, &settings.EnableCron); err != nil {
		return domain.Settings{}, fmt.Errorf("get settings: %w", err)
	}

	return settings, nil
}

// SaveSettings upserts the settings row and returns the stored values.
func (r *SettingsRepo) SaveSettings(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	query := `
		INSERT INTO update_server_settings (id, cache_ttl, enable_cron, updated_at)
		VALUES (1, $1, $2, now())
		ON CONFLICT (id) DO UPDATE
		SET cache_ttl = EXCLUDED.cache_ttl,
			enable_cron = EXCLUDED.enable_cron,
			updated_at = now()
		RETURNING cache_ttl, enable_cron`

	var stored domain.Settings
	if err := r.pool.QueryRow(ctx, query, settings.CacheTTLSeconds, settings.EnableCron).Scan(
		&stored.CacheTTLSeconds, &stored.EnableCron,
	); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	return stored, nil
}

// SaveStatus overwrites the durable "last built" record.
func (r *SettingsRepo) SaveStatus(ctx context.Context, status domain.IndexStatus) error {
	data, err := json.Marshal(status.Data)
	if err != nil {
		return fmt.Errorf("marshal index status: %w", err)
	}

	query := `
		INSERT INTO update_index_status (id, data, generated_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE
		SET data = EXCLUDED.data,
			generated_at = EXCLUDED.generated_at`
	if _, err := r.pool.Exec(ctx, query, data, status.GeneratedAt); err != nil {
		return fmt.Errorf("save index status: %w", err)
	}

	return nil
}

// GetStatus reads the durable "last built" record. The second return value is
// false when no build has happened yet.
func (r *SettingsRepo) GetStatus(ctx context.Context) (domain.IndexStatus, bool, error) {
	var (
		raw         []byte
		generatedAt time.Time
	)
	row := r.pool.QueryRow(ctx, `SELECT data, generated_at FROM update_index_status WHERE id = 1`)
	if err := row.Scan(&raw, &generatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.IndexStatus{}, false, nil
		}
		return domain.IndexStatus{}, false, fmt.Errorf("get index status: %w", err)
	}

	var index domain.Index
	if err := json.Unmarshal(raw, &index); err != nil {
		return domain.IndexStatus{}, false, fmt.Errorf("decode index status: %w", err)
	}

	return domain.IndexStatus{Data: index, GeneratedAt: generatedAt}, true, nil
}
