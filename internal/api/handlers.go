// Package api contains the HTTP API handlers for the back-office
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aethra/backoffice/internal/auth"
	"github.com/aethra/backoffice/internal/catalog"
	"github.com/aethra/backoffice/internal/config"
	"github.com/aethra/backoffice/internal/engine"
	apperrors "github.com/aethra/backoffice/internal/errors"
	"github.com/aethra/backoffice/internal/logger"
)

// Handler holds the dependencies shared by every endpoint
type Handler struct {
	db         *gorm.DB
	catalog    *catalog.Catalog
	jwt        *auth.JWTService
	privileges *auth.PrivilegeService
	cfg        *config.Config
}

// NewHandler creates a new API handler
func NewHandler(db *gorm.DB, cat *catalog.Catalog, jwt *auth.JWTService, privileges *auth.PrivilegeService, cfg *config.Config) *Handler {
	return &Handler{
		db:         db,
		catalog:    cat,
		jwt:        jwt,
		privileges: privileges,
		cfg:        cfg,
	}
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// Health returns the health status, including a database ping
// GET /api/health
func (h *Handler) Health(c *gin.Context) {
	status := gin.H{
		"status":   "ok",
		"service":  "backoffice",
		"database": "ok",
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		logger.FromContext(ctx).Warn("health check: database unreachable", zap.Error(err))
		status["status"] = "degraded"
		status["database"] = "unreachable"
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}

// =============================================================================
// ROLE AND USER ASSIGNMENTS
// =============================================================================

// SetRolePrivileges replaces the privileges of a role
// PUT /api/roles/:id/privileges
func (h *Handler) SetRolePrivileges(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		Codes []string `json:"codes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewBadRequestError("invalid request body"))
		return
	}

	role, err := h.catalog.SetRolePrivileges(c.Request.Context(), id, req.Codes, userContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, role)
}

// AssignUserRoles replaces the roles of a user
// PUT /api/users/:id/roles
func (h *Handler) AssignUserRoles(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		RoleIDs []uint `json:"role_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewBadRequestError("invalid request body"))
		return
	}

	user, err := h.catalog.AssignUserRoles(c.Request.Context(), id, req.RoleIDs, userContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// =============================================================================
// HELPERS
// =============================================================================

// reservedQueryKeys are list parameters that are not filters
var reservedQueryKeys = map[string]bool{
	"page":       true,
	"per_page":   true,
	"sort_by":    true,
	"sort_order": true,
	"format":     true,
}

// listParams reads sort, paging and filters from the query string.
// Every other key becomes a filter; the engine ignores keys that name no column.
func listParams(c *gin.Context) (engine.FilterSet, engine.SortSpec, engine.PageRequest) {
	filters := engine.FilterSet{}
	for key, values := range c.Request.URL.Query() {
		if reservedQueryKeys[key] || len(values) == 0 {
			continue
		}
		filters[key] = values[0]
	}
	spec := engine.SortSpec{
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	page := engine.PageRequest{
		Page:    parseIntParam(c.Query("page"), 1),
		PerPage: parseIntParam(c.Query("per_page"), 0),
	}
	return filters, spec, page
}

// idParam parses the :id path segment, writing a 400 when it is not a positive integer
func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, apperrors.NewBadRequestError("invalid id"))
		return 0, false
	}
	return uint(id), true
}

func parseIntParam(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return i
}
