package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"product_update_server/internal/updates/domain"
	"product_update_server/internal/updates/repository"
	"product_update_server/internal/updates/transport"
	"product_update_server/platform/apperr"
	"product_update_server/platform/logger"
)

type fakeCatalog struct {
	products []repository.CatalogProduct
	err      error
	calls    int
}

func (f *fakeCatalog) ListDownloadable(_ context.Context) ([]repository.CatalogProduct, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.products, nil
}

type fakeSettings struct {
	settings domain.Settings
	err      error
}

func (f *fakeSettings) GetSettings(_ context.Context) (domain.Settings, error) {
	if f.err != nil {
		return domain.Settings{}, f.err
	}
	return f.settings, nil
}

func (f *fakeSettings) SaveSettings(_ context.Context, settings domain.Settings) (domain.Settings, error) {
	if f.err != nil {
		return domain.Settings{}, f.err
	}
	f.settings = settings
	return settings, nil
}

type fakeStatus struct {
	status domain.IndexStatus
	found  bool
	err    error
	saves  int
}

func (f *fakeStatus) SaveStatus(_ context.Context, status domain.IndexStatus) error {
	if f.err != nil {
		return f.err
	}
	f.status = status
	f.found = true
	f.saves++
	return nil
}

func (f *fakeStatus) GetStatus(_ context.Context) (domain.IndexStatus, bool, error) {
	if f.err != nil {
		return domain.IndexStatus{}, false, f.err
	}
	return f.status, f.found, nil
}

type fakeCache struct {
	values  map[string][]byte
	lastTTL time.Duration
	getErr  error
	setErr  error
	deletes int
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string][]byte{}}
}

func (f *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	value, ok := f.values[key]
	return value, ok, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.values[key] = value
	f.lastTTL = ttl
	return nil
}

func (f *fakeCache) Delete(_ context.Context, key string) error {
	delete(f.values, key)
	f.deletes++
	return nil
}

type allowAll struct{ granted bool }

func (a allowAll) HasAccess(_ context.Context, _ int64, _ string, _ int64, _ string) bool {
	return a.granted
}

func timePtr(t time.Time) *time.Time { return &t }

func saveSettingsReq(ttl int, enabled bool) transport.SaveSettingsRequest {
	return transport.SaveSettingsRequest{CacheTTLSeconds: &ttl, EnableCron: &enabled}
}

func sampleProducts() []repository.CatalogProduct {
	return []repository.CatalogProduct{
		{
			ID:           1,
			PluginName:   "acme-tool",
			Version:      "2.1.0",
			LastModified: timePtr(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
			Downloads: []repository.Download{
				{Name: "a.zip", URL: "https://dl.example.com/a.zip"},
				{Name: "b.zip", URL: "https://dl.example.com/b.zip"},
			},
		},
		{
			ID:         2,
			PluginName: "",
			Version:    "1.0.0",
			Downloads:  []repository.Download{{Name: "x.zip", URL: "https://dl.example.com/x.zip"}},
		},
		{
			ID:         3,
			PluginName: "no-files",
			Version:    "1.0.0",
		},
		{
			ID:         4,
			PluginName: "solo",
			Version:    "0.9.0",
			Downloads:  []repository.Download{{Name: "solo.zip", URL: "https://dl.example.com/solo.zip"}},
		},
	}
}

func newServiceForTest(catalog repository.CatalogReader, settings *fakeSettings, status *fakeStatus, store *fakeCache, granted bool) *Service {
	return New(catalog, settings, status, store, allowAll{granted: granted}, logger.New("test"))
}

func TestBuild_SkipsIneligibleAndKeepsLastDownload(t *testing.T) {
	catalog := &fakeCatalog{products: sampleProducts()}
	settings := &fakeSettings{settings: domain.DefaultSettings()}
	status := &fakeStatus{}
	store := newFakeCache()
	svc := newServiceForTest(catalog, settings, status, store, true)

	index, err := svc.Build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if len(index) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(index))
	}
	entry, ok := index["acme-tool"]
	if !ok {
		t.Fatal("expected acme-tool in index")
	}
	if entry.FileName != "b.zip" || entry.DownloadURL != "https://dl.example.com/b.zip" {
		t.Fatalf("expected last download variant, got %q %q", entry.FileName, entry.DownloadURL)
	}
	if entry.LastUpdated != "2026-03-01T12:00:00Z" {
		t.Fatalf("unexpected last_updated %q", entry.LastUpdated)
	}
	if _, ok := index["no-files"]; ok {
		t.Fatal("product without downloads must be excluded")
	}
	if index["solo"].LastUpdated != "" {
		t.Fatalf("expected empty last_updated without a modification time, got %q", index["solo"].LastUpdated)
	}
}

func TestBuild_DuplicateSlugLastRowWins(t *testing.T) {
	catalog := &fakeCatalog{products: []repository.CatalogProduct{
		{ID: 1, PluginName: "acme-tool", Version: "1.0.0", Downloads: []repository.Download{{Name: "old.zip", URL: "u1"}}},
		{ID: 2, PluginName: "acme-tool", Version: "2.0.0", Downloads: []repository.Download{{Name: "new.zip", URL: "u2"}}},
	}}
	svc := newServiceForTest(catalog, &fakeSettings{settings: domain.DefaultSettings()}, &fakeStatus{}, newFakeCache(), true)

	index, err := svc.Build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(index) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(index))
	}
	if index["acme-tool"].ProductID != 2 || index["acme-tool"].FileName != "new.zip" {
		t.Fatalf("expected later row to win, got %+v", index["acme-tool"])
	}
}

func TestBuild_WritesCacheAndStatus(t *testing.T) {
	catalog := &fakeCatalog{products: sampleProducts()}
	settings := &fakeSettings{settings: domain.Settings{CacheTTLSeconds: 120}}
	status := &fakeStatus{}
	store := newFakeCache()
	svc := newServiceForTest(catalog, settings, status, store, true)

	if _, err := svc.Build(context.Background()); err != nil {
		t.Fatalf("build: %v", err)
	}

	if store.lastTTL != 120*time.Second {
		t.Fatalf("expected configured ttl, got %v", store.lastTTL)
	}
	payload, ok := store.values[CacheKey]
	if !ok {
		t.Fatal("expected cache write")
	}
	var cached domain.Index
	if err := json.Unmarshal(payload, &cached); err != nil {
		t.Fatalf("cached payload not valid json: %v", err)
	}
	if status.saves != 1 || len(status.status.Data) != 2 {
		t.Fatalf("expected one status save with 2 entries, got saves=%d entries=%d", status.saves, len(status.status.Data))
	}
	if status.status.GeneratedAt.IsZero() {
		t.Fatal("expected generated_at to be set")
	}
}

func TestBuild_ZeroTTLClampsToDefault(t *testing.T) {
	catalog := &fakeCatalog{products: sampleProducts()}
	settings := &fakeSettings{settings: domain.Settings{CacheTTLSeconds: 0}}
	store := newFakeCache()
	svc := newServiceForTest(catalog, settings, &fakeStatus{}, store, true)

	if _, err := svc.Build(context.Background()); err != nil {
		t.Fatalf("build: %v", err)
	}
	if store.lastTTL != domain.DefaultCacheTTL {
		t.Fatalf("expected default ttl, got %v", store.lastTTL)
	}
}

func TestBuild_SettingsErrorFallsBackToDefaultTTL(t *testing.T) {
	catalog := &fakeCatalog{products: sampleProducts()}
	settings := &fakeSettings{err: errors.New("connection reset")}
	store := newFakeCache()
	svc := newServiceForTest(catalog, settings, &fakeStatus{}, store, true)

	if _, err := svc.Build(context.Background()); err != nil {
		t.Fatalf("build: %v", err)
	}
	if store.lastTTL != domain.DefaultCacheTTL {
		t.Fatalf("expected default ttl, got %v", store.lastTTL)
	}
}

func TestBuild_CacheWriteFailureDoesNotFailBuild(t *testing.T) {
	catalog := &fakeCatalog{products: sampleProducts()}
	store := newFakeCache()
	store.setErr = errors.New("connection refused")
	status := &fakeStatus{}
	svc := newServiceForTest(catalog, &fakeSettings{settings: domain.DefaultSettings()}, status, store, true)

	index, err := svc.Build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(index) != 2 {
		t.Fatalf("expected full index despite cache failure, got %d", len(index))
	}
	if status.saves != 1 {
		t.Fatal("expected status save despite cache failure")
	}
}

func TestBuild_StatusWriteFailureDoesNotFailBuild(t *testing.T) {
	catalog := &fakeCatalog{products: sampleProducts()}
	status := &fakeStatus{err: errors.New("connection reset")}
	store := newFakeCache()
	svc := newServiceForTest(catalog, &fakeSettings{settings: domain.DefaultSettings()}, status, store, true)

	index, err := svc.Build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(index) != 2 {
		t.Fatalf("expected full index, got %d", len(index))
	}
	if _, ok := store.values[CacheKey]; !ok {
		t.Fatal("expected cache write despite status failure")
	}
}

func TestBuild_NilCatalogYieldsEmptyIndexWithoutPersisting(t *testing.T) {
	status := &fakeStatus{}
	store := newFakeCache()
	svc := newServiceForTest(nil, &fakeSettings{settings: domain.DefaultSettings()}, status, store, true)

	index, err := svc.Build(context.Background())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(index) != 0 {
		t.Fatalf("expected empty index, got %d entries", len(index))
	}
	if status.saves != 0 {
		t.Fatal("expected no status save without a catalog")
	}
	if len(store.values) != 0 {
		t.Fatal("expected no cache write without a catalog")
	}
}

func TestBuild_CatalogErrorPropagates(t *testing.T) {
	catalog := &fakeCatalog{err: errors.New("connection reset")}
	svc := newServiceForTest(catalog, &fakeSettings{settings: domain.DefaultSettings()}, &fakeStatus{}, newFakeCache(), true)

	if _, err := svc.Build(context.Background()); err == nil {
		t.Fatal("expected build error")
	}
}

func TestIndex_CacheHitSkipsCatalog(t *testing.T) {
	catalog := &fakeCatalog{products: sampleProducts()}
	store := newFakeCache()
	cached := domain.Index{"cached-plugin": {ProductID: 9, PluginName: "cached-plugin"}}
	payload, _ := json.Marshal(cached)
	store.values[CacheKey] = payload
	svc := newServiceForTest(catalog, &fakeSettings{settings: domain.DefaultSettings()}, &fakeStatus{}, store, true)

	index, err := svc.Index(context.Background(), false)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if catalog.calls != 0 {
		t.Fatalf("expected no catalog calls on cache hit, got %d", catalog.calls)
	}
	if _, ok := index["cached-plugin"]; !ok {
		t.Fatal("expected cached entry")
	}
}

func TestIndex_ForceBypassesCache(t *testing.T) {
	catalog := &fakeCatalog{products: sampleProducts()}
	store := newFakeCache()
	store.values[CacheKey], _ = json.Marshal(domain.Index{"stale": {}})
	svc := newServiceForTest(catalog, &fakeSettings{settings: domain.DefaultSettings()}, &fakeStatus{}, store, true)

	index, err := svc.Index(context.Background(), true)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if catalog.calls != 1 {
		t.Fatalf("expected rebuild, got %d catalog calls", catalog.calls)
	}
	if _, ok := index["stale"]; ok {
		t.Fatal("expected stale entry to be replaced")
	}
}

func TestIndex_CorruptCacheEntryTriggersRebuild(t *testing.T) {
	catalog := &fakeCatalog{products: sampleProducts()}
	store := newFakeCache()
	store.values[CacheKey] = []byte("{not json")
	svc := newServiceForTest(catalog, &fakeSettings{settings: domain.DefaultSettings()}, &fakeStatus{}, store, true)

	index, err := svc.Index(context.Background(), false)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if catalog.calls != 1 {
		t.Fatalf("expected rebuild after decode failure, got %d calls", catalog.calls)
	}
	if _, ok := index["acme-tool"]; !ok {
		t.Fatal("expected rebuilt index")
	}
}

func TestIndex_CacheReadErrorFallsBackToRebuild(t *testing.T) {
	catalog := &fakeCatalog{products: sampleProducts()}
	store := newFakeCache()
	store.getErr = errors.New("connection refused")
	svc := newServiceForTest(catalog, &fakeSettings{settings: domain.DefaultSettings()}, &fakeStatus{}, store, true)

	index, err := svc.Index(context.Background(), false)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if len(index) != 2 {
		t.Fatalf("expected rebuilt index, got %d entries", len(index))
	}
}

func TestRefresh_EvictsThenRebuilds(t *testing.T) {
	catalog := &fakeCatalog{products: sampleProducts()}
	store := newFakeCache()
	store.values[CacheKey] = []byte("stale")
	svc := newServiceForTest(catalog, &fakeSettings{settings: domain.DefaultSettings()}, &fakeStatus{}, store, true)

	index, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if store.deletes != 1 {
		t.Fatalf("expected one cache eviction, got %d", store.deletes)
	}
	if catalog.calls != 1 {
		t.Fatalf("expected one rebuild, got %d", catalog.calls)
	}
	if len(index) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(index))
	}
}

func TestListSummaries_SortedAndWithoutLocators(t *testing.T) {
	catalog := &fakeCatalog{products: sampleProducts()}
	svc := newServiceForTest(catalog, &fakeSettings{settings: domain.DefaultSettings()}, &fakeStatus{}, newFakeCache(), true)

	summaries, err := svc.ListSummaries(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].PluginName != "acme-tool" || summaries[1].PluginName != "solo" {
		t.Fatalf("expected sorted output, got %q then %q", summaries[0].PluginName, summaries[1].PluginName)
	}
}

func TestGetItem_UnknownSlugIsNotFoundEvenWithoutIdentity(t *testing.T) {
	catalog := &fakeCatalog{products: sampleProducts()}
	svc := newServiceForTest(catalog, &fakeSettings{settings: domain.DefaultSettings()}, &fakeStatus{}, newFakeCache(), true)

	_, err := svc.GetItem(context.Background(), "missing-plugin", "", 0, "")
	if err == nil {
		t.Fatal("expected error")
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Code != CodeNotFound {
		t.Fatalf("expected %s, got %v", CodeNotFound, err)
	}
}

func TestGetItem_MissingIdentity(t *testing.T) {
	catalog := &fakeCatalog{products: sampleProducts()}
	svc := newServiceForTest(catalog, &fakeSettings{settings: domain.DefaultSettings()}, &fakeStatus{}, newFakeCache(), true)

	_, err := svc.GetItem(context.Background(), "acme-tool", "  ", 0, "")
	if err == nil {
		t.Fatal("expected error")
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Code != CodeMissingIdentity {
		t.Fatalf("expected %s, got %v", CodeMissingIdentity, err)
	}
}

func TestGetItem_DeniedIdentityIsForbidden(t *testing.T) {
	catalog := &fakeCatalog{products: sampleProducts()}
	svc := newServiceForTest(catalog, &fakeSettings{settings: domain.DefaultSettings()}, &fakeStatus{}, newFakeCache(), false)

	_, err := svc.GetItem(context.Background(), "acme-tool", "stranger@example.com", 0, "")
	if err == nil {
		t.Fatal("expected error")
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Code != CodeForbidden {
		t.Fatalf("expected %s, got %v", CodeForbidden, err)
	}
}

func TestGetItem_GrantReturnsEntryWithLocator(t *testing.T) {
	catalog := &fakeCatalog{products: sampleProducts()}
	svc := newServiceForTest(catalog, &fakeSettings{settings: domain.DefaultSettings()}, &fakeStatus{}, newFakeCache(), true)

	entry, err := svc.GetItem(context.Background(), "acme-tool", "buyer@example.com", 0, "")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if entry.DownloadURL != "https://dl.example.com/b.zip" || entry.FileName != "b.zip" {
		t.Fatalf("expected last variant locator, got %+v", entry)
	}
}

func TestStatus_NeverBuilt(t *testing.T) {
	svc := newServiceForTest(&fakeCatalog{}, &fakeSettings{settings: domain.DefaultSettings()}, &fakeStatus{}, newFakeCache(), true)

	resp, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if resp.GeneratedAt != "" || resp.ItemCount != 0 {
		t.Fatalf("expected zero status, got %+v", resp)
	}
}

func TestStatus_AfterBuild(t *testing.T) {
	catalog := &fakeCatalog{products: sampleProducts()}
	status := &fakeStatus{}
	svc := newServiceForTest(catalog, &fakeSettings{settings: domain.DefaultSettings()}, status, newFakeCache(), true)

	if _, err := svc.Build(context.Background()); err != nil {
		t.Fatalf("build: %v", err)
	}
	resp, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if resp.ItemCount != 2 || resp.GeneratedAt == "" {
		t.Fatalf("expected populated status, got %+v", resp)
	}
}

func TestSaveSettings_Roundtrip(t *testing.T) {
	settings := &fakeSettings{settings: domain.DefaultSettings()}
	svc := newServiceForTest(&fakeCatalog{}, settings, &fakeStatus{}, newFakeCache(), true)

	ttl := 600
	enabled := true
	resp, err := svc.SaveSettings(context.Background(), saveSettingsReq(ttl, enabled))
	if err != nil {
		t.Fatalf("save settings: %v", err)
	}
	if resp.CacheTTLSeconds != 600 || !resp.EnableCron {
		t.Fatalf("unexpected response %+v", resp)
	}

	stored, err := svc.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if stored != resp {
		t.Fatalf("stored %+v differs from saved %+v", stored, resp)
	}
}
