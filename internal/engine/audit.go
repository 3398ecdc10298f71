package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Audit actions
const (
	AuditCreate = "create"
	AuditUpdate = "update"
	AuditDelete = "delete"
)

// AuditLog is one audit trail entry, written in the same transaction as the mutation it records
type AuditLog struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	TenantID      *uint          `json:"tenant_id" gorm:"index"`
	Entity        string         `json:"entity" gorm:"size:64;not null;index:idx_audit_record"`
	RecordID      uint           `json:"record_id" gorm:"not null;index:idx_audit_record"`
	Action        string         `json:"action" gorm:"size:16;not null"`
	UserID        *uint          `json:"user_id"`
	ChangedFields datatypes.JSON `json:"changed_fields"`
	CreatedAt     time.Time      `json:"created_at" gorm:"index"`
}

// TableName returns the table name for audit entries
func (AuditLog) TableName() string {
	return "audit_logs"
}

// AuditWriter records mutations
type AuditWriter struct{}

// Record writes an audit entry using tx
func (AuditWriter) Record(tx *gorm.DB, desc *Descriptor, action string, recordID uint, tenantID *uint, uctx UserContext, changed []string) error {
	var fields datatypes.JSON
	if len(changed) > 0 {
		sorted := append([]string(nil), changed...)
		sort.Strings(sorted)
		b, err := json.Marshal(sorted)
		if err != nil {
			return err
		}
		fields = datatypes.JSON(b)
	}

	entry := AuditLog{
		TenantID:      tenantID,
		Entity:        desc.Table,
		RecordID:      recordID,
		Action:        action,
		UserID:        uctx.UserRef(),
		ChangedFields: fields,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}
