// Package engine implements the generic tenant-aware CRUD, query and bulk
// import/export machinery shared by every back-office record type.
package engine

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/aethra/backoffice/internal/security"
)

// Well-known columns
const (
	ColumnID        = "id"
	ColumnTenantID  = "tenant_id"
	ColumnActive    = "active"
	ColumnCreatedBy = "created_by"
	ColumnUpdatedBy = "updated_by"
	ColumnCreatedAt = "created_at"
	ColumnUpdatedAt = "updated_at"
)

// systemColumns are managed by the engine and never taken from client payloads
var systemColumns = map[string]bool{
	ColumnID:        true,
	ColumnTenantID:  true,
	ColumnCreatedBy: true,
	ColumnUpdatedBy: true,
	ColumnCreatedAt: true,
	ColumnUpdatedAt: true,
}

// IsSystemColumn reports whether a column is engine-managed
func IsSystemColumn(name string) bool {
	return systemColumns[name]
}

// Kind classifies a column for filtering, coercion and rendering
type Kind int

const (
	KindOther Kind = iota
	KindString
	KindInt
	KindUint
	KindFloat
	KindBool
	KindTime
	KindJSON
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindJSON:
		return "json"
	default:
		return "other"
	}
}

// Column is one persisted field of a record type
type Column struct {
	Name     string
	Kind     Kind
	Nullable bool
	field    *schema.Field
}

// Options carries the per-entity facts that cannot be derived from the model
type Options struct {
	// Name is the route segment and privilege prefix, e.g. "contracts"
	Name string
	// Label is the human name used in messages, e.g. "contract"
	Label string
	// Sensitive columns are never exported nor offered in templates
	Sensitive []string
	// ImportColumns are template headers that are not persisted columns but
	// are read by a custom import step, e.g. a role's privilege list
	ImportColumns []string
	// SampleRow is an optional worked example appended to the import template
	SampleRow map[string]string
	// Location is used to interpret dates without an explicit offset
	Location *time.Location
}

// Descriptor is the static description of a record type. It is resolved once
// at startup and never re-inspected per call.
type Descriptor struct {
	Name          string
	Label         string
	Table         string
	TenantScoped  bool
	HasActive     bool
	Columns       []Column
	ImportColumns []string
	SampleRow     map[string]string

	columns   map[string]*Column
	sensitive map[string]bool
	primary   *schema.Field
	loc       *time.Location
	modelType reflect.Type
}

var uintPtrType = reflect.TypeOf((*uint)(nil))

// NewDescriptor parses model with the naming strategy of db and builds its descriptor
func NewDescriptor(db *gorm.DB, model interface{}, opts Options) (*Descriptor, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return nil, fmt.Errorf("failed to parse model %T: %w", model, err)
	}
	sch := stmt.Schema

	d := &Descriptor{
		Name:          opts.Name,
		Label:         opts.Label,
		Table:         sch.Table,
		ImportColumns: opts.ImportColumns,
		SampleRow:     opts.SampleRow,
		columns:       make(map[string]*Column, len(sch.DBNames)),
		sensitive:     make(map[string]bool, len(opts.Sensitive)),
		loc:           opts.Location,
		modelType:     sch.ModelType,
	}
	if d.Name == "" {
		d.Name = sch.Table
	}
	if d.Label == "" {
		d.Label = sch.Name
	}
	if d.loc == nil {
		d.loc = time.UTC
	}

	d.primary = sch.PrioritizedPrimaryField
	if d.primary == nil || d.primary.DBName != ColumnID {
		return nil, fmt.Errorf("%s: primary key must be the %q column", d.Table, ColumnID)
	}

	d.Columns = make([]Column, 0, len(sch.DBNames))
	for _, name := range sch.DBNames {
		if err := security.ValidateIdentifier(name); err != nil {
			return nil, fmt.Errorf("%s: %w", d.Table, err)
		}
		field := sch.FieldsByDBName[name]
		d.Columns = append(d.Columns, Column{
			Name:     name,
			Kind:     kindOf(field),
			Nullable: field.FieldType.Kind() == reflect.Ptr,
			field:    field,
		})
	}
	for i := range d.Columns {
		d.columns[d.Columns[i].Name] = &d.Columns[i]
	}

	for _, name := range []string{ColumnTenantID, ColumnCreatedBy, ColumnUpdatedBy} {
		col, ok := d.columns[name]
		if !ok {
			continue
		}
		if col.field.FieldType != uintPtrType {
			return nil, fmt.Errorf("%s.%s must be *uint, got %s", d.Table, name, col.field.FieldType)
		}
	}
	if col, ok := d.columns[ColumnActive]; ok && col.Kind != KindBool {
		return nil, fmt.Errorf("%s.%s must be a bool", d.Table, ColumnActive)
	}

	_, d.TenantScoped = d.columns[ColumnTenantID]
	_, d.HasActive = d.columns[ColumnActive]

	for _, name := range opts.Sensitive {
		if _, ok := d.columns[name]; !ok {
			return nil, fmt.Errorf("%s: sensitive column %q does not exist", d.Table, name)
		}
		d.sensitive[name] = true
	}
	extra := make(map[string]bool, len(opts.ImportColumns))
	for _, name := range opts.ImportColumns {
		if _, ok := d.columns[name]; ok {
			return nil, fmt.Errorf("%s: import column %q shadows a persisted column", d.Table, name)
		}
		extra[name] = true
	}
	for name := range opts.SampleRow {
		if _, ok := d.columns[name]; !ok && !extra[name] {
			return nil, fmt.Errorf("%s: sample row column %q does not exist", d.Table, name)
		}
	}

	return d, nil
}

func kindOf(field *schema.Field) Kind {
	switch field.DataType {
	case schema.String:
		return KindString
	case schema.Int:
		return KindInt
	case schema.Uint:
		return KindUint
	case schema.Float:
		return KindFloat
	case schema.Bool:
		return KindBool
	case schema.Time:
		return KindTime
	case "json", "jsonb":
		return KindJSON
	default:
		return KindOther
	}
}

// Column looks up a column by name
func (d *Descriptor) Column(name string) (Column, bool) {
	col, ok := d.columns[name]
	if !ok {
		return Column{}, false
	}
	return *col, true
}

// IsSensitive reports whether a column must never leave the system
func (d *Descriptor) IsSensitive(name string) bool {
	return d.sensitive[name]
}

// Writable reports whether a client payload may set a column
func (d *Descriptor) Writable(name string) bool {
	_, ok := d.columns[name]
	return ok && !systemColumns[name]
}

// ExportColumns are every column except the sensitive ones
func (d *Descriptor) ExportColumns() []Column {
	cols := make([]Column, 0, len(d.Columns))
	for _, col := range d.Columns {
		if d.sensitive[col.Name] {
			continue
		}
		cols = append(cols, col)
	}
	return cols
}

// TemplateColumns are the columns a user fills in for an import
func (d *Descriptor) TemplateColumns() []Column {
	cols := make([]Column, 0, len(d.Columns))
	for _, col := range d.Columns {
		if systemColumns[col.Name] || d.sensitive[col.Name] {
			continue
		}
		cols = append(cols, col)
	}
	return cols
}

// Location is the time zone used to interpret dates
func (d *Descriptor) Location() *time.Location {
	return d.loc
}

// Set coerces raw into the column's Go type and assigns it on entity, which must be a pointer
func (d *Descriptor) Set(ctx context.Context, entity interface{}, name string, raw interface{}) error {
	col, ok := d.columns[name]
	if !ok {
		return fmt.Errorf("unknown column %q", name)
	}
	rv, err := d.structValue(entity)
	if err != nil {
		return err
	}
	value, err := coerce(col, raw, d.loc)
	if err != nil {
		return err
	}
	return col.field.Set(ctx, rv, value)
}

// Value reads a column from entity, dereferencing pointers; nil pointers yield nil
func (d *Descriptor) Value(ctx context.Context, entity interface{}, name string) interface{} {
	col, ok := d.columns[name]
	if !ok {
		return nil
	}
	rv, err := d.structValue(entity)
	if err != nil {
		return nil
	}
	v, _ := col.field.ValueOf(ctx, rv)
	return deref(v)
}

// ID returns the primary key of entity
func (d *Descriptor) ID(ctx context.Context, entity interface{}) uint {
	rv, err := d.structValue(entity)
	if err != nil {
		return 0
	}
	v, _ := d.primary.ValueOf(ctx, rv)
	id, _ := toUint(v)
	return uint(id)
}

// TenantOf returns the tenant of entity, or nil for global tables and unassigned rows
func (d *Descriptor) TenantOf(ctx context.Context, entity interface{}) *uint {
	if !d.TenantScoped {
		return nil
	}
	col := d.columns[ColumnTenantID]
	rv, err := d.structValue(entity)
	if err != nil {
		return nil
	}
	v, _ := col.field.ValueOf(ctx, rv)
	tid, _ := v.(*uint)
	return tid
}

// stamp assigns an engine-managed *uint column when present
func (d *Descriptor) stamp(ctx context.Context, rv reflect.Value, name string, value *uint) error {
	col, ok := d.columns[name]
	if !ok {
		return nil
	}
	return col.field.Set(ctx, rv, value)
}

func (d *Descriptor) structValue(entity interface{}) (reflect.Value, error) {
	rv := reflect.ValueOf(entity)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return reflect.Value{}, fmt.Errorf("%s: expected a non-nil pointer, got %T", d.Table, entity)
	}
	rv = rv.Elem()
	if rv.Type() != d.modelType {
		return reflect.Value{}, fmt.Errorf("%s: expected *%s, got %T", d.Table, d.modelType, entity)
	}
	return rv, nil
}

func deref(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}
