// Package api - Router setup
package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aethra/backoffice/internal/auth"
	"github.com/aethra/backoffice/internal/logger"
	"github.com/aethra/backoffice/internal/metrics"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(handler *Handler, authHandler *AuthHandler, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(metrics.Middleware())

	// When credentials are used, specific origins must be provided (not *)
	corsConfig := cors.Config{
		AllowOrigins:     handler.cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", logger.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "Content-Disposition", logger.RequestIDHeader},
		AllowCredentials: handler.cfg.CORS.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.New(corsConfig))

	// Health check and metrics (no auth required)
	r.GET("/api/health", handler.Health)
	r.GET("/metrics", metrics.Handler())

	// ==========================================================================
	// AUTH API - Authentication endpoints (no auth required)
	// ==========================================================================
	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/refresh", authHandler.RefreshToken)
	}

	// Authenticated auth endpoints
	authProtected := r.Group("/auth")
	authProtected.Use(handler.AuthMiddleware())
	{
		authProtected.GET("/me", authHandler.GetMe)
	}

	// ==========================================================================
	// RECORD API - CRUD, listing, import and export per record type
	// ==========================================================================
	api := r.Group("/api")
	api.Use(handler.AuthMiddleware())

	cat := handler.catalog
	registerEntity(api, handler, cat.Tenants)
	registerEntity(api, handler, cat.Offices)
	registerEntity(api, handler, cat.Vendors)
	registerEntity(api, handler, cat.Contracts)
	registerEntity(api, handler, cat.SlabRates)
	registerEntity(api, handler, cat.Vehicles)
	registerEntity(api, handler, cat.Privileges)

	roles := registerEntity(api, handler, cat.Roles)
	roles.PUT("/:id/privileges", handler.RequirePrivilege(cat.Roles.Name(), auth.ActionEdit), handler.SetRolePrivileges)

	users := registerEntity(api, handler, cat.Users)
	users.PUT("/:id/roles", handler.RequirePrivilege(cat.Users.Name(), auth.ActionEdit), handler.AssignUserRoles)

	return r
}
