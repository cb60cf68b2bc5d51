// Package service implements the index builder, cache manager and query
// service for the update metadata API.
package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"product_update_server/internal/updates/cache"
	"product_update_server/internal/updates/domain"
	"product_update_server/internal/updates/repository"
	"product_update_server/internal/updates/transport"
	"product_update_server/platform/apperr"
	"product_update_server/platform/logger"
)

// CacheKey is the redis key holding the serialized index.
const CacheKey = "product_update_server:index"

// Stable error codes surfaced to clients.
const (
	CodeNotFound        = "product_update_server_not_found"
	CodeMissingIdentity = "product_update_server_missing_identity"
	CodeForbidden       = "product_update_server_forbidden"
)

// AccessValidator decides whether a caller-asserted identity may receive the
// download reference for a product.
type AccessValidator interface {
	HasAccess(ctx context.Context, productID int64, customerEmail string, customerID int64, membershipPlan string) bool
}

// Service provides the update index and its query operations.
type Service struct {
	catalog  repository.CatalogReader
	settings repository.SettingsStore
	status   repository.StatusStore
	cache    cache.Store
	access   AccessValidator
	log      *logger.Logger
	group    singleflight.Group
}

// New creates the updates service. A nil catalog models an absent or
// misconfigured catalog collaborator; builds then yield an empty index.
func New(catalog repository.CatalogReader, settings repository.SettingsStore, status repository.StatusStore, store cache.Store, access AccessValidator, log *logger.Logger) *Service {
	return &Service{
		catalog:  catalog,
		settings: settings,
		status:   status,
		cache:    store,
		access:   access,
		log:      log,
	}
}

// Build derives a fresh index from the catalog, writes it to the TTL cache
// and overwrites the durable status record. The two writes are independent;
// neither failure rolls back the other or fails the build.
func (s *Service) Build(ctx context.Context) (domain.Index, error) {
	if s.catalog == nil {
		return domain.Index{}, nil
	}

	products, err := s.catalog.ListDownloadable(ctx)
	if err != nil {
		return nil, err
	}

	index := make(domain.Index, len(products))
	for _, product := range products {
		if product.PluginName == "" || len(product.Downloads) == 0 {
			continue
		}

		// Only the most recently listed download variant is indexed.
		download := product.Downloads[len(product.Downloads)-1]

		lastUpdated := ""
		if product.LastModified != nil {
			lastUpdated = product.LastModified.UTC().Format(time.RFC3339)
		}

		index[product.PluginName] = domain.IndexEntry{
			ProductID:   product.ID,
			PluginName:  product.PluginName,
			Version:     product.Version,
			DownloadURL: download.URL,
			FileName:    download.Name,
			LastUpdated: lastUpdated,
		}
	}

	ttl := domain.DefaultCacheTTL
	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		s.log.DatabaseError("get settings", err)
	} else {
		ttl = settings.EffectiveTTL()
	}

	if payload, err := json.Marshal(index); err != nil {
		s.log.CacheError("encode index", err)
	} else if err := s.cache.Set(ctx, CacheKey, payload, ttl); err != nil {
		s.log.CacheError("set index", err)
	}

	if err := s.status.SaveStatus(ctx, domain.IndexStatus{Data: index, GeneratedAt: time.Now().UTC()}); err != nil {
		s.log.DatabaseError("save index status", err)
	}

	s.log.IndexBuilt(len(index), int64(ttl/time.Second))
	return index, nil
}

// Index returns the current index. Unless force is set, a fresh cache entry
// is served as-is; a miss, an expired entry or force triggers a rebuild.
// Concurrent rebuilds for the same key are coalesced.
func (s *Service) Index(ctx context.Context, force bool) (domain.Index, error) {
	if !force {
		if payload, ok, err := s.cache.Get(ctx, CacheKey); err != nil {
			s.log.CacheError("get index", err)
		} else if ok {
			var index domain.Index
			if err := json.Unmarshal(payload, &index); err != nil {
				s.log.CacheError("decode index", err)
			} else {
				return index, nil
			}
		}
	}

	return s.buildShared(ctx)
}

// Refresh evicts the cache entry and rebuilds unconditionally. The manual
// admin action and the scheduled task both come through here.
func (s *Service) Refresh(ctx context.Context) (domain.Index, error) {
	if err := s.cache.Delete(ctx, CacheKey); err != nil {
		s.log.CacheError("delete index", err)
	}
	return s.buildShared(ctx)
}

func (s *Service) buildShared(ctx context.Context) (domain.Index, error) {
	result, err, _ := s.group.Do(CacheKey, func() (interface{}, error) {
		return s.Build(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(domain.Index), nil
}

// ListSummaries returns the public index listing without download locators.
func (s *Service) ListSummaries(ctx context.Context) ([]transport.ProductSummary, error) {
	index, err := s.Index(ctx, false)
	if err != nil {
		return nil, err
	}

	summaries := make([]transport.ProductSummary, 0, len(index))
	for _, entry := range index {
		summaries = append(summaries, transport.ProductSummary{
			PluginName:  entry.PluginName,
			Version:     entry.Version,
			ProductID:   entry.ProductID,
			LastUpdated: entry.LastUpdated,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].PluginName < summaries[j].PluginName
	})

	return summaries, nil
}

// GetItem returns the full index entry for a slug after validating access.
// The identity presence check runs before the validator; the slug lookup runs
// before both.
func (s *Service) GetItem(ctx context.Context, pluginName, customerEmail string, customerID int64, membershipPlan string) (domain.IndexEntry, error) {
	index, err := s.Index(ctx, false)
	if err != nil {
		return domain.IndexEntry{}, err
	}

	entry, ok := index[pluginName]
	if !ok {
		return domain.IndexEntry{}, apperr.NotFound("requested product was not found").WithCode(CodeNotFound)
	}

	customerEmail = strings.TrimSpace(customerEmail)
	membershipPlan = strings.TrimSpace(membershipPlan)
	if customerEmail == "" && customerID == 0 && membershipPlan == "" {
		return domain.IndexEntry{}, apperr.BadRequest("customer email, ID or membership plan is required to validate access").WithCode(CodeMissingIdentity)
	}

	if !s.access.HasAccess(ctx, entry.ProductID, customerEmail, customerID, membershipPlan) {
		return domain.IndexEntry{}, apperr.Forbidden("customer is not authorized for this download").WithCode(CodeForbidden)
	}

	return entry, nil
}

// GetSettings returns the stored settings, creating defaults on first read.
func (s *Service) GetSettings(ctx context.Context) (transport.SettingsResponse, error) {
	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		return transport.SettingsResponse{}, err
	}
	return toSettingsResponse(settings), nil
}

// SaveSettings stores the cache lifetime and cron toggle. The periodic task
// manager picks the change up on its next sync.
func (s *Service) SaveSettings(ctx context.Context, req transport.SaveSettingsRequest) (transport.SettingsResponse, error) {
	stored, err := s.settings.SaveSettings(ctx, domain.Settings{
		CacheTTLSeconds: *req.CacheTTLSeconds,
		EnableCron:      *req.EnableCron,
	})
	if err != nil {
		return transport.SettingsResponse{}, err
	}

	s.log.Info("settings saved", "cache_ttl", stored.CacheTTLSeconds, "enable_cron", stored.EnableCron)
	return toSettingsResponse(stored), nil
}

// Status reports the durable "last built" record.
func (s *Service) Status(ctx context.Context) (transport.StatusResponse, error) {
	status, found, err := s.status.GetStatus(ctx)
	if err != nil {
		return transport.StatusResponse{}, err
	}
	if !found {
		return transport.StatusResponse{}, nil
	}

	return transport.StatusResponse{
		GeneratedAt: status.GeneratedAt.UTC().Format(time.RFC3339),
		ItemCount:   len(status.Data),
	}, nil
}

func toSettingsResponse(settings domain.Settings) transport.SettingsResponse {
	return transport.SettingsResponse{
		CacheTTLSeconds: settings.CacheTTLSeconds,
		EnableCron:      settings.EnableCron,
	}
}
