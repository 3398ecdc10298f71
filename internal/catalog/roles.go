package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/aethra/backoffice/internal/errors"
	"github.com/aethra/backoffice/internal/engine"
	"github.com/aethra/backoffice/internal/models"
)

// RolePrivilegesColumn is the import column holding a JSON array of privilege codes
const RolePrivilegesColumn = "privileges"

// persistRole creates an imported role together with its privileges. The role
// and its associations commit or roll back as one unit.
func persistRole(ctx context.Context, svc *engine.Service[models.Role], role *models.Role, row engine.Row, uctx engine.UserContext) error {
	codes, err := parsePrivilegeCodes(row.Cells[RolePrivilegesColumn])
	if err != nil {
		return apperrors.NewValidationError("", apperrors.FieldError{Field: RolePrivilegesColumn, Message: err.Error()})
	}

	return svc.Repository().Transaction(ctx, func(repo *engine.Repository[models.Role], tx *gorm.DB) error {
		privileges, err := resolvePrivileges(tx, codes)
		if err != nil {
			return err
		}
		created, err := svc.WithRepository(repo).Create(ctx, role, uctx)
		if err != nil {
			return err
		}
		if len(privileges) == 0 {
			return nil
		}
		if err := tx.Model(created).Association("Privileges").Append(privileges); err != nil {
			return fmt.Errorf("failed to assign privileges to role %s: %w", created.Code, err)
		}
		return nil
	})
}

// SetRolePrivileges replaces the privileges of a role visible to the caller
func (c *Catalog) SetRolePrivileges(ctx context.Context, roleID uint, codes []string, uctx engine.UserContext) (*models.Role, error) {
	svc := c.Roles.Service
	role, err := svc.Find(ctx, roleID, uctx)
	if err != nil {
		return nil, err
	}

	err = svc.Repository().Transaction(ctx, func(_ *engine.Repository[models.Role], tx *gorm.DB) error {
		privileges, err := resolvePrivileges(tx, uniqueCodes(codes))
		if err != nil {
			return err
		}
		if err := tx.Model(role).Association("Privileges").Replace(privileges); err != nil {
			return fmt.Errorf("failed to replace privileges of role %d: %w", roleID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.loadRole(ctx, roleID, uctx)
}

// AssignUserRoles replaces the roles of a user. Every role must be visible to
// the caller and belong to the user's tenant.
func (c *Catalog) AssignUserRoles(ctx context.Context, userID uint, roleIDs []uint, uctx engine.UserContext) (*models.User, error) {
	user, err := c.Users.Service.Find(ctx, userID, uctx)
	if err != nil {
		return nil, err
	}

	roles := make([]models.Role, 0, len(roleIDs))
	var fields []apperrors.FieldError
	for _, id := range roleIDs {
		role, err := c.Roles.Service.Find(ctx, id, uctx)
		if apperrors.IsNotFound(err) {
			fields = append(fields, apperrors.FieldError{Field: "role_ids", Message: fmt.Sprintf("role %d does not exist", id)})
			continue
		}
		if err != nil {
			return nil, err
		}
		if !sameTenant(role.TenantID, user.TenantID) {
			fields = append(fields, apperrors.FieldError{Field: "role_ids", Message: fmt.Sprintf("role %d belongs to another tenant", id)})
			continue
		}
		roles = append(roles, *role)
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError("", fields...)
	}

	err = c.Users.Service.Repository().Transaction(ctx, func(_ *engine.Repository[models.User], tx *gorm.DB) error {
		if err := tx.Model(user).Association("Roles").Replace(roles); err != nil {
			return fmt.Errorf("failed to replace roles of user %d: %w", userID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	user.Roles = roles
	return user, nil
}

func (c *Catalog) loadRole(ctx context.Context, roleID uint, uctx engine.UserContext) (*models.Role, error) {
	role, err := c.Roles.Service.Find(ctx, roleID, uctx)
	if err != nil {
		return nil, err
	}
	err = c.db.WithContext(ctx).Model(role).
		Preload("Privileges", func(db *gorm.DB) *gorm.DB { return db.Order("code") }).
		Take(role).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load privileges of role %d: %w", roleID, err)
	}
	return role, nil
}

// parsePrivilegeCodes decodes a JSON array of privilege codes; a blank cell means none
func parsePrivilegeCodes(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var codes []string
	if err := json.Unmarshal([]byte(raw), &codes); err != nil {
		return nil, fmt.Errorf("must be a JSON array of privilege codes")
	}
	return uniqueCodes(codes), nil
}

// resolvePrivileges loads the privileges named by codes and fails when any is unknown
func resolvePrivileges(tx *gorm.DB, codes []string) ([]models.Privilege, error) {
	if len(codes) == 0 {
		return []models.Privilege{}, nil
	}
	var privileges []models.Privilege
	if err := tx.Where("code IN ?", codes).Order("code").Find(&privileges).Error; err != nil {
		return nil, fmt.Errorf("failed to load privileges: %w", err)
	}
	if len(privileges) == len(codes) {
		return privileges, nil
	}

	found := make(map[string]bool, len(privileges))
	for _, p := range privileges {
		found[p.Code] = true
	}
	var missing []string
	for _, code := range codes {
		if !found[code] {
			missing = append(missing, code)
		}
	}
	return nil, apperrors.NewValidationError("", apperrors.FieldError{
		Field:   RolePrivilegesColumn,
		Message: "unknown privilege codes: " + strings.Join(missing, ", "),
	})
}

func uniqueCodes(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func sameTenant(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
