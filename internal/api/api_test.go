package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aethra/backoffice/internal/auth"
	"github.com/aethra/backoffice/internal/catalog"
	"github.com/aethra/backoffice/internal/config"
	"github.com/aethra/backoffice/internal/database"
	"github.com/aethra/backoffice/internal/engine"
	"github.com/aethra/backoffice/internal/models"
	"github.com/aethra/backoffice/internal/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router  *gin.Engine
	db      *gorm.DB
	catalog *catalog.Catalog
	jwt     *auth.JWTService
	tenant  models.Tenant
}

func newTestServer(t *testing.T, enforce bool) *testServer {
	t.Helper()
	cfg := &config.Config{
		Env: "test",
		Auth: config.AuthConfig{
			JWTSecret:          "test-secret",
			AccessExpiry:       time.Hour,
			RefreshExpiry:      2 * time.Hour,
			EnforcePrivileges:  enforce,
			LoginRatePerMinute: 3,
		},
		CORS: config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			Path:   fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		},
		Engine: config.EngineConfig{
			DefaultPerPage: 10,
			MaxPerPage:     100,
			Location:       time.UTC,
			ImportTimeout:  time.Minute,
			ImportMaxBytes: 1 << 20,
		},
	}

	db, err := database.Open(cfg.Database, zap.NewNop())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.RunMigrations(db, zap.NewNop()))

	cat, err := catalog.New(db, cfg.Engine, validation.New())
	require.NoError(t, err)
	privileges := auth.NewPrivilegeService(db)
	_, err = privileges.SeedPrivileges(context.Background(), cat.Names())
	require.NoError(t, err)

	tenant := models.Tenant{Code: "ACME", Name: "Acme Logistics", Active: true}
	require.NoError(t, db.Create(&tenant).Error)

	jwtService := auth.NewJWTService(cfg.Auth)
	handler := NewHandler(db, cat, jwtService, privileges, cfg)
	authHandler := NewAuthHandler(db, jwtService, privileges, NewLoginRateLimiter(cfg.Auth.LoginRatePerMinute))

	return &testServer{
		router:  SetupRouter(handler, authHandler, zap.NewNop()),
		db:      db,
		catalog: cat,
		jwt:     jwtService,
		tenant:  tenant,
	}
}

// createUser stores a user directly; a nil tenant makes a platform user
func (s *testServer) createUser(t *testing.T, tenantID *uint, login string, active bool) models.User {
	t.Helper()
	hash, err := auth.HashPassword("correct-horse")
	require.NoError(t, err)
	u := models.User{TenantID: tenantID, LoginID: login, Name: login, Email: login + "@example.com", Password: hash, Active: active}
	require.NoError(t, s.db.Create(&u).Error)
	return u
}

func (s *testServer) token(t *testing.T, u models.User) string {
	t.Helper()
	pair, err := s.jwt.GenerateTokenPair(u.ID, u.TenantID, u.LoginID)
	require.NoError(t, err)
	return pair.AccessToken
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) upload(t *testing.T, path, token, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func contractPayload(ctrNum string) map[string]interface{} {
	return map[string]interface{}{
		"ctr_num":    ctrNum,
		"vendor_id":  1,
		"office_id":  1,
		"start_date": "2024-01-01",
		"end_date":   "2024-12-31",
		"currency":   "EUR",
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)
	w := s.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["database"])
}

func TestAuthMiddleware_RejectsMissingAndBadTokens(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(t, http.MethodGet, "/api/contracts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", decode(t, w)["error"])

	w = s.do(t, http.MethodGet, "/api/contracts", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	user := s.createUser(t, &s.tenant.ID, "jdoe", true)
	pair, err := s.jwt.GenerateTokenPair(user.ID, user.TenantID, user.LoginID)
	require.NoError(t, err)
	w = s.do(t, http.MethodGet, "/api/contracts", pair.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "refresh tokens are not access tokens")
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, false)
	s.createUser(t, &s.tenant.ID, "jdoe", true)
	s.createUser(t, &s.tenant.ID, "gone", false)
	s.createUser(t, nil, "root", true)

	w := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"login_id": "jdoe", "password": "correct-horse", "tenant_code": "ACME",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	tokens := body["tokens"].(map[string]interface{})
	assert.NotEmpty(t, tokens["access_token"])
	user := body["user"].(map[string]interface{})
	assert.NotContains(t, user, "password")
	assert.NotNil(t, user["last_login_at"])

	claims, err := s.jwt.ValidateAccessToken(tokens["access_token"].(string))
	require.NoError(t, err)
	require.NotNil(t, claims.TenantID)
	assert.Equal(t, s.tenant.ID, *claims.TenantID)

	w = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"login_id": "root", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"login_id": "jdoe", "password": "correct-horse",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "tenant users need their tenant code")

	w = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"login_id": "gone", "password": "correct-horse", "tenant_code": "ACME",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "account is disabled", decode(t, w)["message"])

	w = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"login_id": "jdoe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin_IsThrottled(t *testing.T) {
	s := newTestServer(t, false)
	s.createUser(t, &s.tenant.ID, "jdoe", true)
	bad := map[string]string{"login_id": "jdoe", "password": "wrong-password", "tenant_code": "ACME"}

	for i := 0; i < 3; i++ {
		w := s.do(t, http.MethodPost, "/auth/login", "", bad)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "invalid credentials", decode(t, w)["message"])
	}
	w := s.do(t, http.MethodPost, "/auth/login", "", bad)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRefreshAndMe(t *testing.T) {
	s := newTestServer(t, false)
	user := s.createUser(t, &s.tenant.ID, "jdoe", true)
	pair, err := s.jwt.GenerateTokenPair(user.ID, user.TenantID, user.LoginID)
	require.NoError(t, err)

	w := s.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": pair.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/auth/me", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["platform"])
	assert.Equal(t, "jdoe", body["user"].(map[string]interface{})["login_id"])

	require.NoError(t, s.db.Model(&user).UpdateColumn("active", false).Error)
	w = s.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": pair.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEntityCRUD(t *testing.T) {
	s := newTestServer(t, false)
	token := s.token(t, s.createUser(t, &s.tenant.ID, "clerk", true))

	w := s.do(t, http.MethodPost, "/api/contracts", token, contractPayload("C-1"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	id := uint(created["id"].(float64))
	assert.Equal(t, float64(s.tenant.ID), created["tenant_id"])
	assert.Equal(t, true, created["active"])

	path := fmt.Sprintf("/api/contracts/%d", id)
	w = s.do(t, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "C-1", decode(t, w)["ctr_num"])

	w = s.do(t, http.MethodPatch, path, token, map[string]interface{}{"currency": "USD"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "USD", decode(t, w)["currency"])

	w = s.do(t, http.MethodPut, path, token, map[string]interface{}{"currency": "TOOLONG"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodPatch, path+"/deactivate", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["active"])

	w = s.do(t, http.MethodDelete, path, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, path, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, w)["error"])

	w = s.do(t, http.MethodGet, "/api/contracts/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEntityCreate_ValidationError(t *testing.T) {
	s := newTestServer(t, false)
	token := s.token(t, s.createUser(t, &s.tenant.ID, "clerk", true))

	payload := contractPayload("C-1")
	payload["vendor_id"] = "abc"
	w := s.do(t, http.MethodPost, "/api/contracts", token, payload)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode(t, w)
	assert.Equal(t, "VALIDATION_ERROR", body["error"])
	fields := body["fields"].([]interface{})
	require.Len(t, fields, 1)
	assert.Equal(t, "vendor_id", fields[0].(map[string]interface{})["field"])
}

func TestEntityList_Envelope(t *testing.T) {
	s := newTestServer(t, false)
	token := s.token(t, s.createUser(t, &s.tenant.ID, "clerk", true))
	for i := 1; i <= 3; i++ {
		w := s.do(t, http.MethodPost, "/api/contracts", token, contractPayload(fmt.Sprintf("C-%d", i)))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := s.do(t, http.MethodGet, "/api/contracts?per_page=2&page=2&sort_by=ctr_num&sort_order=asc", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)

	data := body["data"].([]interface{})
	require.Len(t, data, 1)
	assert.Equal(t, "C-3", data[0].(map[string]interface{})["ctr_num"])

	pagination := body["pagination"].(map[string]interface{})
	assert.Equal(t, float64(3), pagination["total"])
	assert.Equal(t, float64(2), pagination["per_page"])
	assert.Equal(t, float64(2), pagination["current_page"])
	assert.Equal(t, float64(2), pagination["last_page"])
	assert.Equal(t, float64(3), pagination["from"])
	assert.Equal(t, float64(3), pagination["to"])

	w = s.do(t, http.MethodGet, "/api/contracts?ctr_num=c-2", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)

	w = s.do(t, http.MethodGet, "/api/contracts?page=9", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Empty(t, body["data"])
	assert.Nil(t, body["pagination"].(map[string]interface{})["from"])
}

func TestEntity_TenantIsolation(t *testing.T) {
	s := newTestServer(t, false)
	other := models.Tenant{Code: "OTHER", Name: "Other", Active: true}
	require.NoError(t, s.db.Create(&other).Error)

	mine := s.token(t, s.createUser(t, &s.tenant.ID, "mine", true))
	theirs := s.token(t, s.createUser(t, &other.ID, "theirs", true))

	w := s.do(t, http.MethodPost, "/api/contracts", mine, contractPayload("C-1"))
	require.Equal(t, http.StatusCreated, w.Code)
	path := fmt.Sprintf("/api/contracts/%d", uint(decode(t, w)["id"].(float64)))

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path, theirs, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, path, theirs, nil).Code)

	w = s.do(t, http.MethodGet, "/api/contracts", theirs, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["data"])
}

func TestPrivilegeEnforcement(t *testing.T) {
	s := newTestServer(t, true)
	ctx := context.Background()
	user := s.createUser(t, &s.tenant.ID, "clerk", true)
	token := s.token(t, user)

	w := s.do(t, http.MethodGet, "/api/contracts", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "permission denied", decode(t, w)["message"])

	uctx := engine.UserContext{UserID: user.ID, TenantID: user.TenantID, LoginID: user.LoginID}
	role, err := s.catalog.Roles.Service.CreateFromMap(ctx, map[string]interface{}{"code": "VIEWER", "name": "Viewer"}, uctx)
	require.NoError(t, err)
	_, err = s.catalog.SetRolePrivileges(ctx, role.ID, []string{"contracts.view"}, uctx)
	require.NoError(t, err)
	_, err = s.catalog.AssignUserRoles(ctx, user.ID, []uint{role.ID}, uctx)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/contracts", token, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/api/contracts", token, contractPayload("C-1")).Code)

	root := s.token(t, s.createUser(t, nil, "root", true))
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/contracts", root, nil).Code, "platform callers hold every privilege")
}

func TestPlatformOnlyRoutes(t *testing.T) {
	s := newTestServer(t, false)
	tenantToken := s.token(t, s.createUser(t, &s.tenant.ID, "clerk", true))
	root := s.token(t, s.createUser(t, nil, "root", true))

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/tenants", tenantToken, nil).Code)

	w := s.do(t, http.MethodGet, "/api/tenants", root, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/privileges", tenantToken, nil).Code)
	w = s.do(t, http.MethodPost, "/api/privileges", tenantToken, map[string]string{"code": "x.view", "name": "X"})
	assert.Equal(t, http.StatusForbidden, w.Code, "global records are written by platform callers only")
}

func TestImport(t *testing.T) {
	s := newTestServer(t, false)
	token := s.token(t, s.createUser(t, &s.tenant.ID, "clerk", true))

	csv := "ctr_num,vendor_id,office_id,start_date,end_date,currency\n" +
		"C-1,1,1,2024-01-01,2024-12-31,EUR\n" +
		"C-2,,1,2024-01-01,2024-12-31,EUR\n"
	w := s.upload(t, "/api/contracts/import", token, "contracts.csv", csv)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "Import completed with errors. 1 rows imported, 1 errors.", body["message"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, false, data["success"])
	assert.Equal(t, float64(1), data["imported_count"])
	assert.Equal(t, []interface{}{"Row 3: vendor_id is required"}, data["errors"])

	w = s.upload(t, "/api/contracts/import", token, "contracts.csv",
		"ctr_num,vendor_id,office_id,start_date,end_date,currency\nC-3,1,1,2024-01-01,2024-12-31,EUR\n")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["data"].(map[string]interface{})["success"])

	w = s.upload(t, "/api/contracts/import", token, "contracts.txt", "whatever")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_REQUEST", decode(t, w)["error"])
}

func TestExportAndTemplate(t *testing.T) {
	s := newTestServer(t, false)
	token := s.token(t, s.createUser(t, &s.tenant.ID, "clerk", true))
	for _, num := range []string{"C-1", "C-2"} {
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/contracts", token, contractPayload(num)).Code)
	}

	w := s.do(t, http.MethodGet, "/api/contracts/export?format=csv&ctr_num=C-2", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="contracts_export.csv"`, w.Header().Get("Content-Disposition"))
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,tenant_id,ctr_num"), lines[0])
	assert.Contains(t, lines[1], "C-2")

	w = s.do(t, http.MethodGet, "/api/users/export?format=csv", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "password")

	w = s.do(t, http.MethodGet, "/api/contracts/export?format=pdf", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/contracts/xlsx-template", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="contracts_template.xlsx"`, w.Header().Get("Content-Disposition"))
	assert.NotEmpty(t, w.Body.Bytes())
}

func TestEntityList_IgnoresSensitiveColumns(t *testing.T) {
	s := newTestServer(t, false)
	clerk := s.createUser(t, &s.tenant.ID, "clerk", true)
	s.createUser(t, &s.tenant.ID, "other", true)
	token := s.token(t, clerk)

	for _, guess := range []string{clerk.Password[:10], "$2a$10$nomatch"} {
		w := s.do(t, http.MethodGet, "/api/users?password="+url.QueryEscape(guess), token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(2), decode(t, w)["pagination"].(map[string]interface{})["total"], guess)

		w = s.do(t, http.MethodGet, "/api/users/export?format=csv&password="+url.QueryEscape(guess), token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, strings.Split(strings.TrimSpace(w.Body.String()), "\n"), 3, guess)
	}

	w := s.do(t, http.MethodGet, "/api/users?sort_by=password&sort_order=asc", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].([]interface{})
	require.Len(t, data, 2)
	assert.Equal(t, "clerk", data[0].(map[string]interface{})["login_id"])
	assert.Equal(t, "other", data[1].(map[string]interface{})["login_id"])
}

func TestAuthMiddleware_RejectsDeactivatedUsers(t *testing.T) {
	s := newTestServer(t, false)
	user := s.createUser(t, &s.tenant.ID, "jdoe", true)
	token := s.token(t, user)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/contracts", token, nil).Code)

	require.NoError(t, s.db.Model(&user).UpdateColumn("active", false).Error)
	w := s.do(t, http.MethodGet, "/api/contracts", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "user not found or disabled", decode(t, w)["message"])
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/auth/me", token, nil).Code)

	require.NoError(t, s.db.Delete(&user).Error)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/contracts", token, nil).Code)
}

func TestDeleteAssignedRole(t *testing.T) {
	s := newTestServer(t, false)
	ctx := context.Background()
	user := s.createUser(t, &s.tenant.ID, "admin", true)
	token := s.token(t, user)
	uctx := engine.UserContext{UserID: user.ID, TenantID: user.TenantID, LoginID: user.LoginID}

	role, err := s.catalog.Roles.Service.CreateFromMap(ctx, map[string]interface{}{"code": "OPS", "name": "Ops"}, uctx)
	require.NoError(t, err)
	_, err = s.catalog.AssignUserRoles(ctx, user.ID, []uint{role.ID}, uctx)
	require.NoError(t, err)

	w := s.do(t, http.MethodDelete, fmt.Sprintf("/api/roles/%d", role.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var left int64
	require.NoError(t, s.db.Table("user_roles").Where("role_id = ?", role.ID).Count(&left).Error)
	assert.Zero(t, left)
}

func TestAssignmentRoutes(t *testing.T) {
	s := newTestServer(t, false)
	ctx := context.Background()
	user := s.createUser(t, &s.tenant.ID, "admin", true)
	token := s.token(t, user)
	uctx := engine.UserContext{UserID: user.ID, TenantID: user.TenantID, LoginID: user.LoginID}

	role, err := s.catalog.Roles.Service.CreateFromMap(ctx, map[string]interface{}{"code": "OPS", "name": "Ops"}, uctx)
	require.NoError(t, err)

	w := s.do(t, http.MethodPut, fmt.Sprintf("/api/roles/%d/privileges", role.ID), token,
		map[string]interface{}{"codes": []string{"vehicles.view", "contracts.view"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode(t, w)["privileges"], 2)

	w = s.do(t, http.MethodPut, fmt.Sprintf("/api/roles/%d/privileges", role.ID), token,
		map[string]interface{}{"codes": []string{"nope.view"}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, http.MethodPut, fmt.Sprintf("/api/users/%d/roles", user.ID), token,
		map[string]interface{}{"role_ids": []uint{role.ID}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode(t, w)["roles"], 1)
}
