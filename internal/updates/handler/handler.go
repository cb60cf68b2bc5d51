package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"product_update_server/internal/updates/service"
	"product_update_server/internal/updates/transport"
	"product_update_server/platform/httpkit"
	"product_update_server/platform/validator"
)

// Handler handles HTTP requests for the update index.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// New creates a new updates handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// ListProducts returns the public index listing without download locators.
// GET /api/v1/products
func (h *Handler) ListProducts(c *gin.Context) {
	summaries, err := h.svc.ListSummaries(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, summaries)
}

// GetProduct returns the full index entry after validating the caller's
// identity claims.
// GET /api/v1/products/:plugin_name
func (h *Handler) GetProduct(c *gin.Context) {
	pluginName := strings.TrimSpace(c.Param("plugin_name"))

	var req transport.GetProductRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "", msgInvalidRequest)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "", msgValidationFailed)
		return
	}

	entry, err := h.svc.GetItem(c.Request.Context(), pluginName, req.CustomerEmail, parseCustomerID(req.CustomerID), req.MembershipPlan)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, entry)
}

// Status reports when the index was last built and how many items it held.
// GET /api/v1/admin/status
func (h *Handler) Status(c *gin.Context) {
	status, err := h.svc.Status(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, status)
}

// GetSettings returns the stored settings, creating defaults on first read.
// GET /api/v1/admin/settings
func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.svc.GetSettings(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, settings)
}

// SaveSettings updates the cache lifetime and the scheduled refresh toggle.
// PUT /api/v1/admin/settings
func (h *Handler) SaveSettings(c *gin.Context) {
	var req transport.SaveSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "", msgInvalidRequest)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "", msgValidationFailed)
		return
	}

	settings, err := h.svc.SaveSettings(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, settings)
}

// Refresh evicts the cache entry and rebuilds the index immediately.
// POST /api/v1/admin/refresh
func (h *Handler) Refresh(c *gin.Context) {
	index, err := h.svc.Refresh(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.RefreshResponse{ItemCount: len(index)})
}

// parseCustomerID mirrors lenient numeric coercion: junk or negative values
// degrade to an absent claim.
func parseCustomerID(raw string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}
