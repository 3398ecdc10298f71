// Package models contains the back-office business records.
// Every model is served by the generic engine; tags drive both storage and validation.
package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// AuditFields are the engine-managed stamps carried by every record
type AuditFields struct {
	CreatedBy *uint     `json:"created_by"`
	UpdatedBy *uint     `json:"updated_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// =============================================================================
// PLATFORM MODELS
// =============================================================================

// Tenant represents a customer organization. Tenants are global records.
type Tenant struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	Code   string `json:"code" gorm:"uniqueIndex;not null;size:50" validate:"required,max=50"`
	Name   string `json:"name" gorm:"not null;size:255" validate:"required,max=255"`
	Active bool   `json:"active" gorm:"not null"`
	AuditFields
}

// =============================================================================
// CONTRACT MODELS
// =============================================================================

// Office is a tenant branch that owns contracts and vehicles
type Office struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	TenantID *uint  `json:"tenant_id" gorm:"index"`
	Code     string `json:"code" gorm:"not null;size:50" validate:"required,max=50"`
	Name     string `json:"name" gorm:"not null;size:255" validate:"required,max=255"`
	City     string `json:"city" gorm:"size:100" validate:"max=100"`
	Country  string `json:"country" gorm:"size:2" validate:"omitempty,len=2"`
	Active   bool   `json:"active" gorm:"not null"`
	AuditFields
}

// Vendor is a transport provider
type Vendor struct {
	ID       uint           `json:"id" gorm:"primaryKey"`
	TenantID *uint          `json:"tenant_id" gorm:"index"`
	Code     string         `json:"code" gorm:"not null;size:50" validate:"required,max=50"`
	Name     string         `json:"name" gorm:"not null;size:255" validate:"required,max=255"`
	Email    string         `json:"email" gorm:"size:255" validate:"omitempty,email"`
	Phone    string         `json:"phone" gorm:"size:30" validate:"max=30"`
	Contacts datatypes.JSON `json:"contacts"`
	Active   bool           `json:"active" gorm:"not null"`
	AuditFields
}

// Contract is a rate agreement between an office and a vendor
type Contract struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	TenantID  *uint          `json:"tenant_id" gorm:"index"`
	CtrNum    string         `json:"ctr_num" gorm:"not null;size:50" validate:"required,max=50"`
	VendorID  uint           `json:"vendor_id" gorm:"index" validate:"required"`
	OfficeID  uint           `json:"office_id" gorm:"index" validate:"required"`
	StartDate time.Time      `json:"start_date" validate:"required"`
	EndDate   time.Time      `json:"end_date" validate:"required,gtefield=StartDate"`
	Currency  string         `json:"currency" gorm:"size:3" validate:"required,len=3"`
	Terms     datatypes.JSON `json:"terms"`
	Active    bool           `json:"active" gorm:"not null"`
	AuditFields
}

// SlabRate is one rate band of a contract
type SlabRate struct {
	ID         uint    `json:"id" gorm:"primaryKey"`
	TenantID   *uint   `json:"tenant_id" gorm:"index"`
	ContractID uint    `json:"contract_id" gorm:"index" validate:"required"`
	SlabType   string  `json:"slab_type" gorm:"size:20" validate:"required,oneof=weight distance trip"`
	MinValue   float64 `json:"min_value" validate:"gte=0"`
	MaxValue   float64 `json:"max_value" validate:"gtfield=MinValue"`
	Rate       float64 `json:"rate" validate:"gt=0"`
	AuditFields
}

// =============================================================================
// FLEET MODELS
// =============================================================================

// Vehicle is a truck or van available to an office
type Vehicle struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	TenantID    *uint   `json:"tenant_id" gorm:"index"`
	RegNumber   string  `json:"reg_number" gorm:"not null;size:30" validate:"required,max=30"`
	VehicleType string  `json:"vehicle_type" gorm:"size:30" validate:"required,max=30"`
	CapacityKg  float64 `json:"capacity_kg" validate:"gte=0"`
	VendorID    *uint   `json:"vendor_id" gorm:"index"`
	OfficeID    *uint   `json:"office_id" gorm:"index"`
	Active      bool    `json:"active" gorm:"not null"`
	AuditFields
}

// =============================================================================
// USER MODELS
// =============================================================================

// User is a back-office login
type User struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	TenantID    *uint      `json:"tenant_id" gorm:"index"`
	LoginID     string     `json:"login_id" gorm:"not null;size:100;index" validate:"required,max=100"`
	Name        string     `json:"name" gorm:"size:255" validate:"required,max=255"`
	Email       string     `json:"email" gorm:"size:255" validate:"required,email"`
	Password    string     `json:"password,omitempty" gorm:"not null;size:255" validate:"required,min=8,max=72"`
	LastLoginAt *time.Time `json:"last_login_at"`
	Active      bool       `json:"active" gorm:"not null"`
	AuditFields

	// Relations
	Roles []Role `json:"roles,omitempty" gorm:"many2many:user_roles;" validate:"-"`
}

// MarshalJSON never renders the password hash
func (u User) MarshalJSON() ([]byte, error) {
	type plain User
	p := plain(u)
	p.Password = ""
	return json.Marshal(p)
}

// Role groups privileges for a tenant
type Role struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	TenantID    *uint  `json:"tenant_id" gorm:"index"`
	Code        string `json:"code" gorm:"not null;size:50" validate:"required,max=50"`
	Name        string `json:"name" gorm:"not null;size:100" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	Active      bool   `json:"active" gorm:"not null"`
	AuditFields

	// Relations
	Privileges []Privilege `json:"privileges,omitempty" gorm:"many2many:role_privileges;" validate:"-"`
	// Back-reference; deletes clear the user_roles rows
	Users []User `json:"-" gorm:"many2many:user_roles;-:migration" validate:"-"`
}

// Privilege is a global permission code such as "contracts.import"
type Privilege struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Code        string `json:"code" gorm:"uniqueIndex;not null;size:100" validate:"required,max=100"`
	Name        string `json:"name" gorm:"not null;size:100" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	AuditFields

	// Back-reference; deletes clear the role_privileges rows
	Roles []Role `json:"-" gorm:"many2many:role_privileges;-:migration" validate:"-"`
}

// All returns every model managed by migrations
func All() []interface{} {
	return []interface{}{
		&Tenant{},
		&Office{},
		&Vendor{},
		&Contract{},
		&SlabRate{},
		&Vehicle{},
		&Privilege{},
		&Role{},
		&User{},
	}
}
