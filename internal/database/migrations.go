package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aethra/backoffice/internal/engine"
	"github.com/aethra/backoffice/internal/models"
)

// MigrationRecord tracks which migrations have been applied
type MigrationRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"uniqueIndex;size:255"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for migrations
func (MigrationRecord) TableName() string {
	return "_backoffice_migrations"
}

// Migration is one named, run-once schema step
type Migration struct {
	Name string
	Up   func(db *gorm.DB) error
}

// Migrations returns every migration in apply order
func Migrations() []Migration {
	return []Migration{
		{Name: "001_catalog_tables", Up: migrateCatalog},
		{Name: "002_tenant_listing_indexes", Up: createListingIndexes},
	}
}

// RunMigrations applies every pending migration
func RunMigrations(db *gorm.DB, log *zap.Logger) error {
	if err := db.AutoMigrate(&MigrationRecord{}); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range Migrations() {
		var count int64
		if err := db.Model(&MigrationRecord{}).Where("name = ?", m.Name).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check migration %s: %w", m.Name, err)
		}
		if count > 0 {
			log.Debug("Migration already applied", zap.String("migration", m.Name))
			continue
		}

		log.Info("Applying migration", zap.String("migration", m.Name))
		if err := m.Up(db); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.Name, err)
		}
		if err := db.Create(&MigrationRecord{Name: m.Name}).Error; err != nil {
			return fmt.Errorf("failed to record migration %s: %w", m.Name, err)
		}
		log.Info("Migration applied", zap.String("migration", m.Name))
	}
	return nil
}

func migrateCatalog(db *gorm.DB) error {
	tables := append(models.All(), &engine.AuditLog{})
	return db.AutoMigrate(tables...)
}

// createListingIndexes adds (tenant_id, updated_at) to every tenant-scoped
// table, matching the default listing order
func createListingIndexes(db *gorm.DB) error {
	dialect := db.Dialector.Name()
	for _, model := range models.All() {
		desc, err := engine.NewDescriptor(db, model, engine.Options{})
		if err != nil {
			return err
		}
		if !desc.TenantScoped {
			continue
		}
		if _, ok := desc.Column(engine.ColumnUpdatedAt); !ok {
			continue
		}

		name := ListingIndexName(desc.Table)
		if db.Migrator().HasIndex(model, name) {
			continue
		}
		ddl := fmt.Sprintf("CREATE INDEX %s ON %s (%s, %s)",
			quoteIdentifier(dialect, name),
			quoteIdentifier(dialect, desc.Table),
			quoteIdentifier(dialect, engine.ColumnTenantID),
			quoteIdentifier(dialect, engine.ColumnUpdatedAt),
		)
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", name, err)
		}
	}
	return nil
}

// ListingIndexName is the name of the tenant listing index of a table
func ListingIndexName(table string) string {
	return "idx_" + table + "_tenant_updated"
}

func quoteIdentifier(dialect, name string) string {
	if dialect == "mysql" {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return pq.QuoteIdentifier(name)
}
