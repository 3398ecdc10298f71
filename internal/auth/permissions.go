package auth

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aethra/backoffice/internal/engine"
	"github.com/aethra/backoffice/internal/logger"
	"github.com/aethra/backoffice/internal/models"
)

// Action represents a permission action
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionExport Action = "export"
	ActionImport Action = "import"
)

// Actions lists every action in display order
var Actions = []Action{ActionView, ActionCreate, ActionEdit, ActionDelete, ActionImport, ActionExport}

// PrivilegeCode returns the privilege code guarding action on entity, e.g. "contracts.import"
func PrivilegeCode(entity string, action Action) string {
	return entity + "." + string(action)
}

// PrivilegeService resolves privileges through user_roles, role_privileges and privileges
type PrivilegeService struct {
	db *gorm.DB
}

// NewPrivilegeService creates a new privilege service
func NewPrivilegeService(db *gorm.DB) *PrivilegeService {
	return &PrivilegeService{db: db}
}

// UserPrivileges returns the codes granted to a user by its active roles
func (s *PrivilegeService) UserPrivileges(ctx context.Context, userID uint) ([]string, error) {
	var codes []string
	err := s.db.WithContext(ctx).
		Model(&models.Privilege{}).
		Distinct("privileges.code").
		Joins("JOIN role_privileges ON role_privileges.privilege_id = privileges.id").
		Joins("JOIN roles ON roles.id = role_privileges.role_id AND roles.active = ?", true).
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Order("privileges.code").
		Pluck("privileges.code", &codes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load privileges of user %d: %w", userID, err)
	}
	return codes, nil
}

// HasPrivilege checks if the caller holds a privilege. Platform callers hold every privilege.
func (s *PrivilegeService) HasPrivilege(ctx context.Context, uctx engine.UserContext, code string) (bool, error) {
	if uctx.IsPlatform() {
		return true, nil
	}
	codes, err := s.UserPrivileges(ctx, uctx.UserID)
	if err != nil {
		return false, err
	}
	for _, c := range codes {
		if c == code {
			return true, nil
		}
	}
	logger.FromContext(ctx).Debug("privilege missing",
		zap.String("privilege", code),
		zap.Strings("granted", codes),
	)
	return false, nil
}

// SeedPrivileges creates the action privileges of every entity that do not exist yet
// and returns how many were created
func (s *PrivilegeService) SeedPrivileges(ctx context.Context, entities []string) (int, error) {
	var existing []string
	if err := s.db.WithContext(ctx).Model(&models.Privilege{}).Pluck("code", &existing).Error; err != nil {
		return 0, fmt.Errorf("failed to load privileges: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, code := range existing {
		known[code] = true
	}

	var missing []models.Privilege
	for _, entity := range entities {
		for _, action := range Actions {
			code := PrivilegeCode(entity, action)
			if known[code] {
				continue
			}
			known[code] = true
			missing = append(missing, models.Privilege{
				Code: code,
				Name: privilegeName(entity, action),
			})
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}
	if err := s.db.WithContext(ctx).Create(&missing).Error; err != nil {
		return 0, fmt.Errorf("failed to seed privileges: %w", err)
	}
	return len(missing), nil
}

func privilegeName(entity string, action Action) string {
	verb := string(action)
	return strings.ToUpper(verb[:1]) + verb[1:] + " " + strings.ReplaceAll(entity, "_", " ")
}
