package engine

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TenantScope decides whether, and how, a query is restricted to the caller's tenant
type TenantScope struct{}

// AppliesTo reports whether the record type is tenant-scoped
func (TenantScope) AppliesTo(desc *Descriptor) bool {
	return desc.TenantScoped
}

// Predicate returns a gorm scope adding tenant_id = caller tenant when the
// table is tenant-scoped and the caller belongs to a tenant. It is built
// from uctx on every call.
func (s TenantScope) Predicate(desc *Descriptor, uctx UserContext) func(*gorm.DB) *gorm.DB {
	if !s.AppliesTo(desc) || uctx.TenantID == nil {
		return func(db *gorm.DB) *gorm.DB { return db }
	}
	tenantID := *uctx.TenantID
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(clause.Eq{
			Column: clause.Column{Table: desc.Table, Name: ColumnTenantID},
			Value:  tenantID,
		})
	}
}

// Owns reports whether entity belongs to the caller's tenant
func (s TenantScope) Owns(desc *Descriptor, uctx UserContext, tenantOfEntity *uint) bool {
	if !s.AppliesTo(desc) || uctx.TenantID == nil {
		return true
	}
	return tenantOfEntity != nil && *tenantOfEntity == *uctx.TenantID
}
