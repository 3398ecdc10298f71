package engine

import (
	"fmt"

	"go.uber.org/zap"
)

// UserContext identifies the caller of one request. It is passed explicitly
// into every repository and service call and never stored globally.
// A nil TenantID marks a platform-level caller that sees every tenant.
type UserContext struct {
	UserID   uint
	TenantID *uint
	LoginID  string
}

// IsPlatform reports whether the caller works across tenants
func (u UserContext) IsPlatform() bool {
	return u.TenantID == nil
}

// UserRef returns the user id as a stamp value, nil for anonymous callers
func (u UserContext) UserRef() *uint {
	if u.UserID == 0 {
		return nil
	}
	id := u.UserID
	return &id
}

// TenantRef returns a copy of the tenant id
func (u UserContext) TenantRef() *uint {
	if u.TenantID == nil {
		return nil
	}
	id := *u.TenantID
	return &id
}

// Fields returns the zap fields identifying the caller
func (u UserContext) Fields() []zap.Field {
	return []zap.Field{
		zap.Uint("user_id", u.UserID),
		zap.String("tenant_id", formatTenant(u.TenantID)),
		zap.String("login_id", u.LoginID),
	}
}

func formatTenant(id *uint) string {
	if id == nil {
		return "platform"
	}
	return fmt.Sprint(*id)
}
