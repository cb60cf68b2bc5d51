// Package updates provides the update index bounded context module.
package updates

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	apphttp "product_update_server/internal/http"
	"product_update_server/internal/updates/cache"
	"product_update_server/internal/updates/handler"
	"product_update_server/internal/updates/repository"
	"product_update_server/internal/updates/service"
	"product_update_server/platform/logger"
	"product_update_server/platform/validator"
)

// Module is the update index bounded context implementing http.Module.
type Module struct {
	handler  *handler.Handler
	service  *service.Service
	settings repository.SettingsStore
}

// NewModule creates and initializes the updates module.
func NewModule(pool *pgxpool.Pool, rdb redis.UniversalClient, access service.AccessValidator, val *validator.Validator, log *logger.Logger) *Module {
	catalog := repository.New(pool)
	settings := repository.NewSettings(pool)
	store := cache.NewRedis(rdb)

	svc := service.New(catalog, settings, settings, store, access, log)
	h := handler.New(svc, val)

	return &Module{
		handler:  h,
		service:  svc,
		settings: settings,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "updates"
}

// Service returns the service layer for external use (scheduler worker).
func (m *Module) Service() *service.Service {
	return m.service
}

// SettingsStore returns the durable settings store for the periodic task
// config provider.
func (m *Module) SettingsStore() repository.SettingsStore {
	return m.settings
}

// RegisterRoutes mounts the update index routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Public read-only endpoints; authorization is claim-driven, not
	// authenticated.
	ctx.V1.GET("/products", m.handler.ListProducts)
	ctx.V1.GET("/products/:plugin_name", m.handler.GetProduct)

	// Token-guarded admin surface.
	ctx.Admin.GET("/status", m.handler.Status)
	ctx.Admin.GET("/settings", m.handler.GetSettings)
	ctx.Admin.PUT("/settings", m.handler.SaveSettings)
	ctx.Admin.POST("/refresh", m.handler.Refresh)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
