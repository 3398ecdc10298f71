package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/aethra/backoffice/internal/models"
	"github.com/aethra/backoffice/internal/validation"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Tenant{},
		&models.Contract{},
		&models.Privilege{},
		&models.Role{},
		&models.User{},
		&AuditLog{},
	))
	return db
}

func tenantCtx(tenantID, userID uint) UserContext {
	tid := tenantID
	return UserContext{UserID: userID, TenantID: &tid, LoginID: fmt.Sprintf("user%d", userID)}
}

func platformCtx() UserContext {
	return UserContext{UserID: 1, LoginID: "root"}
}

func contractService(t *testing.T, db *gorm.DB) *Service[models.Contract] {
	t.Helper()
	desc, err := NewDescriptor(db, &models.Contract{}, Options{Name: "contracts", Label: "contract", Location: time.UTC})
	require.NoError(t, err)
	repo := NewRepository[models.Contract](db, desc, Paging{})
	return NewService(repo, validation.New(), Hooks[models.Contract]{})
}

func userService(t *testing.T, db *gorm.DB) *Service[models.User] {
	t.Helper()
	desc, err := NewDescriptor(db, &models.User{}, Options{Name: "users", Label: "user", Sensitive: []string{"password"}, Location: time.UTC})
	require.NoError(t, err)
	repo := NewRepository[models.User](db, desc, Paging{})
	return NewService(repo, validation.New(), Hooks[models.User]{})
}

func seedContract(t *testing.T, db *gorm.DB, tenantID uint, ctrNum string, active bool, created time.Time) *models.Contract {
	t.Helper()
	tid := tenantID
	c := &models.Contract{
		TenantID:  &tid,
		CtrNum:    ctrNum,
		VendorID:  1,
		OfficeID:  1,
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		Currency:  "EUR",
		Active:    active,
		AuditFields: models.AuditFields{
			CreatedAt: created,
			UpdatedAt: created,
		},
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

func newContract(ctrNum string) *models.Contract {
	return &models.Contract{
		CtrNum:    ctrNum,
		VendorID:  3,
		OfficeID:  4,
		StartDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		Currency:  "USD",
		Active:    true,
	}
}
