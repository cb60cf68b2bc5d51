package transport

// ProductSummary is one row of the public index listing. It intentionally
// carries no download locator; that is only disclosed after access validation.
type ProductSummary struct {
	PluginName  string `json:"plugin_name"`
	Version     string `json:"version"`
	ProductID   int64  `json:"product_id"`
	LastUpdated string `json:"last_updated"`
}

// GetProductRequest carries the caller-asserted identity claims. CustomerID
// is bound as text and parsed leniently; junk values degrade to an absent
// claim rather than a binding error.
type GetProductRequest struct {
	CustomerEmail  string `form:"customer_email" validate:"max=190"`
	CustomerID     string `form:"customer_id" validate:"max=20"`
	MembershipPlan string `form:"membership_plan" validate:"max=190"`
}

// SaveSettingsRequest updates the cache lifetime and the scheduled refresh
// toggle. A zero cache_ttl is stored as-is; builds clamp it to the default.
type SaveSettingsRequest struct {
	CacheTTLSeconds *int  `json:"cache_ttl" validate:"required,min=0"`
	EnableCron      *bool `json:"enable_cron" validate:"required"`
}

// SettingsResponse is the stored settings record.
type SettingsResponse struct {
	CacheTTLSeconds int  `json:"cache_ttl"`
	EnableCron      bool `json:"enable_cron"`
}

// StatusResponse reports the durable "last built" record. GeneratedAt is
// empty when the index has never been built.
type StatusResponse struct {
	GeneratedAt string `json:"generated_at"`
	ItemCount   int    `json:"item_count"`
}

// RefreshResponse reports the outcome of a manual rebuild.
type RefreshResponse struct {
	ItemCount int `json:"item_count"`
}
