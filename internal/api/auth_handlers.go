// Package api - Authentication handlers
package api

import (
	stderrors "errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/aethra/backoffice/internal/auth"
	apperrors "github.com/aethra/backoffice/internal/errors"
	"github.com/aethra/backoffice/internal/logger"
	"github.com/aethra/backoffice/internal/models"
)

// LoginRateLimiter throttles login attempts per client and login id
type LoginRateLimiter struct {
	perMinute int
	limiters  map[string]*loginLimiter
	mu        sync.Mutex
	lastSweep time.Time
}

type loginLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const limiterIdleTTL = 30 * time.Minute

// NewLoginRateLimiter allows perMinute attempts per key, refilled evenly over a minute
func NewLoginRateLimiter(perMinute int) *LoginRateLimiter {
	if perMinute <= 0 {
		perMinute = 5
	}
	return &LoginRateLimiter{
		perMinute: perMinute,
		limiters:  make(map[string]*loginLimiter),
		lastSweep: time.Now(),
	}
}

// Allow reports whether an attempt for key may proceed
func (rl *LoginRateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastSweep) > limiterIdleTTL {
		for k, l := range rl.limiters {
			if now.Sub(l.lastSeen) > limiterIdleTTL {
				delete(rl.limiters, k)
			}
		}
		rl.lastSweep = now
	}

	l, ok := rl.limiters[key]
	if !ok {
		l = &loginLimiter{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl.perMinute)), rl.perMinute)}
		rl.limiters[key] = l
	}
	l.lastSeen = now
	return l.limiter.AllowN(now, 1)
}

// Reset forgets the attempts of key after a successful login
func (rl *LoginRateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.limiters, key)
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	db          *gorm.DB
	jwtService  *auth.JWTService
	privileges  *auth.PrivilegeService
	rateLimiter *LoginRateLimiter
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(db *gorm.DB, jwtService *auth.JWTService, privileges *auth.PrivilegeService, limiter *LoginRateLimiter) *AuthHandler {
	return &AuthHandler{
		db:          db,
		jwtService:  jwtService,
		privileges:  privileges,
		rateLimiter: limiter,
	}
}

// LoginRequest represents login credentials. Platform users log in without a tenant code.
type LoginRequest struct {
	LoginID    string `json:"login_id" binding:"required"`
	Password   string `json:"password" binding:"required"`
	TenantCode string `json:"tenant_code"`
}

// RefreshRequest represents a token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

var errInvalidCredentials = apperrors.NewUnauthorizedError("invalid credentials")

// Login authenticates a user and returns tokens
// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewBadRequestError("login_id and password are required"))
		return
	}
	ctx := c.Request.Context()
	log := logger.FromContext(ctx).With(zap.String("login_id", req.LoginID), zap.String("tenant_code", req.TenantCode))

	rateLimitKey := c.ClientIP() + ":" + strings.ToLower(req.TenantCode) + ":" + req.LoginID
	if !h.rateLimiter.Allow(rateLimitKey) {
		log.Warn("login throttled")
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":   "TOO_MANY_ATTEMPTS",
			"message": "too many login attempts, please wait before trying again",
		})
		return
	}

	user, err := h.findLoginUser(c, req)
	if err != nil {
		if !stderrors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, apperrors.NewInternalError(err))
			return
		}
		log.Info("login failed: unknown user")
		respondError(c, errInvalidCredentials)
		return
	}
	if !auth.CheckPassword(req.Password, user.Password) {
		log.Info("login failed: wrong password")
		respondError(c, errInvalidCredentials)
		return
	}
	if !user.Active {
		log.Info("login failed: user inactive")
		respondError(c, apperrors.NewUnauthorizedError("account is disabled"))
		return
	}

	h.rateLimiter.Reset(rateLimitKey)

	tokens, err := h.jwtService.GenerateTokenPair(user.ID, user.TenantID, user.LoginID)
	if err != nil {
		respondError(c, apperrors.NewInternalError(err))
		return
	}

	now := time.Now().UTC()
	if err := h.db.WithContext(ctx).Model(user).UpdateColumn("last_login_at", now).Error; err != nil {
		log.Warn("failed to record last login", zap.Error(err))
	}
	user.LastLoginAt = &now

	log.Info("login succeeded", zap.Uint("user_id", user.ID))
	c.JSON(http.StatusOK, gin.H{
		"user":   user,
		"tokens": tokens,
	})
}

// findLoginUser resolves the login id within the requested tenant, or among
// platform users when no tenant code is given
func (h *AuthHandler) findLoginUser(c *gin.Context, req LoginRequest) (*models.User, error) {
	db := h.db.WithContext(c.Request.Context())
	query := db.Where("login_id = ?", req.LoginID)

	if req.TenantCode == "" {
		query = query.Where("tenant_id IS NULL")
	} else {
		var tenant models.Tenant
		if err := db.Where("code = ? AND active = ?", req.TenantCode, true).First(&tenant).Error; err != nil {
			return nil, err
		}
		query = query.Where("tenant_id = ?", tenant.ID)
	}

	var user models.User
	if err := query.First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// RefreshToken generates new tokens using a refresh token
// POST /auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewBadRequestError("refresh_token is required"))
		return
	}

	tokens, claims, err := h.jwtService.RefreshTokenPair(req.RefreshToken)
	if err != nil {
		logger.FromContext(c.Request.Context()).Debug("refresh rejected", zap.Error(err))
		respondError(c, apperrors.NewUnauthorizedError("invalid refresh token"))
		return
	}

	var user models.User
	err = h.db.WithContext(c.Request.Context()).Select("id", "active").First(&user, claims.UserID).Error
	if err != nil || !user.Active {
		respondError(c, apperrors.NewUnauthorizedError("user not found or disabled"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// GetMe returns the current authenticated user with roles and privilege codes
// GET /auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	uctx := userContext(c)
	ctx := c.Request.Context()

	var user models.User
	err := h.db.WithContext(ctx).Preload("Roles", "active = ?", true).First(&user, uctx.UserID).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, apperrors.NewNotFoundError("user", uctx.UserID))
			return
		}
		respondError(c, apperrors.NewInternalError(err))
		return
	}

	privileges, err := h.privileges.UserPrivileges(ctx, user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":       user,
		"platform":   uctx.IsPlatform(),
		"privileges": privileges,
	})
}
