package api

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aethra/backoffice/internal/auth"
	"github.com/aethra/backoffice/internal/engine"
	apperrors "github.com/aethra/backoffice/internal/errors"
	"github.com/aethra/backoffice/internal/logger"
	"github.com/aethra/backoffice/internal/models"
)

const userContextKey = "user_context"

// =============================================================================
// MIDDLEWARE
// =============================================================================

// AuthMiddleware validates the Bearer access token, rejects callers whose user
// row is gone or inactive and stores the caller's UserContext on the request.
// The request logger is enriched with the caller ids.
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abortWithError(c, apperrors.NewUnauthorizedError("missing bearer token"))
			return
		}

		claims, err := h.jwt.ValidateAccessToken(strings.TrimSpace(token))
		if err != nil {
			logger.FromContext(c.Request.Context()).Debug("rejected access token", zap.Error(err))
			abortWithError(c, apperrors.NewUnauthorizedError("invalid or expired token"))
			return
		}

		var user models.User
		err = h.db.WithContext(c.Request.Context()).Select("id", "active").Take(&user, claims.UserID).Error
		if err != nil && !stderrors.Is(err, gorm.ErrRecordNotFound) {
			abortWithError(c, apperrors.NewInternalError(err))
			return
		}
		if err != nil || !user.Active {
			abortWithError(c, apperrors.NewUnauthorizedError("user not found or disabled"))
			return
		}

		uctx := engine.UserContext{UserID: claims.UserID, TenantID: claims.TenantID, LoginID: claims.LoginID}
		c.Set(userContextKey, uctx)
		c.Request = c.Request.WithContext(logger.With(c.Request.Context(), uctx.Fields()...))
		c.Next()
	}
}

// RequirePrivilege rejects callers without the <entity>.<action> privilege.
// It is a no-op when privilege enforcement is switched off.
func (h *Handler) RequirePrivilege(entity string, action auth.Action) gin.HandlerFunc {
	code := auth.PrivilegeCode(entity, action)
	return func(c *gin.Context) {
		if !h.cfg.Auth.EnforcePrivileges {
			c.Next()
			return
		}
		ok, err := h.privileges.HasPrivilege(c.Request.Context(), userContext(c), code)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if !ok {
			abortWithError(c, apperrors.NewPermissionDeniedError(string(action), entity))
			return
		}
		c.Next()
	}
}

// RequirePlatform rejects tenant callers
func (h *Handler) RequirePlatform() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !userContext(c).IsPlatform() {
			abortWithError(c, apperrors.NewPermissionDeniedError("access", "platform"))
			return
		}
		c.Next()
	}
}

// userContext returns the caller stored by AuthMiddleware
func userContext(c *gin.Context) engine.UserContext {
	if v, ok := c.Get(userContextKey); ok {
		if uctx, ok := v.(engine.UserContext); ok {
			return uctx
		}
	}
	return engine.UserContext{}
}

// =============================================================================
// ERROR RESPONSES
// =============================================================================

// respondError writes the user-safe rendering of err. Internal errors are
// logged with their full text and attached to the gin context.
func respondError(c *gin.Context, err error) {
	status, body := apperrors.ToHTTPError(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("request failed",
			zap.String("route", c.FullPath()),
			zap.Error(err),
		)
		_ = c.Error(err)
	}
	c.JSON(status, body)
}

func abortWithError(c *gin.Context, err error) {
	respondError(c, err)
	c.Abort()
}
