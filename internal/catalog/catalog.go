// Package catalog wires every business record type into the generic engine
package catalog

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/aethra/backoffice/internal/config"
	"github.com/aethra/backoffice/internal/engine"
	"github.com/aethra/backoffice/internal/models"
	"github.com/aethra/backoffice/internal/tabular"
)

// Module bundles the engine components serving one record type
type Module[T any] struct {
	Service      *engine.Service[T]
	Importer     *engine.Importer[T]
	Exporter     *engine.Exporter[T]
	PlatformOnly bool
}

// Name returns the route segment and privilege prefix
func (m *Module[T]) Name() string {
	return m.Service.Descriptor().Name
}

// Descriptor returns the record type description
func (m *Module[T]) Descriptor() *engine.Descriptor {
	return m.Service.Descriptor()
}

// IsPlatformOnly reports whether only platform callers may use the module
func (m *Module[T]) IsPlatformOnly() bool {
	return m.PlatformOnly
}

// Import loads a spreadsheet into the record type
func (m *Module[T]) Import(ctx context.Context, r io.Reader, filename string, uctx engine.UserContext) (*engine.ImportResult, error) {
	return m.Importer.Import(ctx, r, filename, uctx)
}

// Export renders the filtered listing as a sheet
func (m *Module[T]) Export(ctx context.Context, filters engine.FilterSet, spec engine.SortSpec, uctx engine.UserContext) (*tabular.Sheet, error) {
	return m.Exporter.Export(ctx, filters, spec, uctx)
}

// Template renders the import template
func (m *Module[T]) Template(ctx context.Context) *tabular.Sheet {
	return m.Exporter.Template(ctx)
}

// Bulk is the type-erased spreadsheet surface of a module, used where the
// record type is chosen at runtime
type Bulk interface {
	Name() string
	Descriptor() *engine.Descriptor
	IsPlatformOnly() bool
	Import(ctx context.Context, r io.Reader, filename string, uctx engine.UserContext) (*engine.ImportResult, error)
	Export(ctx context.Context, filters engine.FilterSet, spec engine.SortSpec, uctx engine.UserContext) (*tabular.Sheet, error)
	Template(ctx context.Context) *tabular.Sheet
}

// Catalog holds the module of every record type
type Catalog struct {
	Tenants    *Module[models.Tenant]
	Offices    *Module[models.Office]
	Vendors    *Module[models.Vendor]
	Contracts  *Module[models.Contract]
	SlabRates  *Module[models.SlabRate]
	Vehicles   *Module[models.Vehicle]
	Users      *Module[models.User]
	Roles      *Module[models.Role]
	Privileges *Module[models.Privilege]

	db   *gorm.DB
	bulk map[string]Bulk
}

// New builds the catalog. Descriptors are resolved here, once.
func New(db *gorm.DB, cfg config.EngineConfig, validator engine.Validator) (*Catalog, error) {
	b := builder{
		db:        db,
		validator: validator,
		loc:       cfg.Location,
		paging:    engine.Paging{DefaultPerPage: cfg.DefaultPerPage, MaxPerPage: cfg.MaxPerPage},
	}

	c := &Catalog{db: db}
	var err error

	if c.Tenants, err = newModule[models.Tenant](b, engine.Options{Name: "tenants", Label: "tenant"}, engine.Hooks[models.Tenant]{}, nil); err != nil {
		return nil, err
	}
	c.Tenants.PlatformOnly = true

	if c.Offices, err = newModule[models.Office](b, engine.Options{Name: "offices", Label: "office"}, engine.Hooks[models.Office]{}, nil); err != nil {
		return nil, err
	}
	if c.Vendors, err = newModule[models.Vendor](b, engine.Options{Name: "vendors", Label: "vendor"}, engine.Hooks[models.Vendor]{}, nil); err != nil {
		return nil, err
	}
	if c.Contracts, err = newModule[models.Contract](b, engine.Options{Name: "contracts", Label: "contract", SampleRow: contractSample}, engine.Hooks[models.Contract]{}, nil); err != nil {
		return nil, err
	}
	if c.SlabRates, err = newModule[models.SlabRate](b, engine.Options{Name: "slab_rates", Label: "slab rate", SampleRow: slabRateSample}, engine.Hooks[models.SlabRate]{}, nil); err != nil {
		return nil, err
	}
	if c.Vehicles, err = newModule[models.Vehicle](b, engine.Options{Name: "vehicles", Label: "vehicle"}, engine.Hooks[models.Vehicle]{}, nil); err != nil {
		return nil, err
	}
	if c.Users, err = newModule[models.User](b, engine.Options{Name: "users", Label: "user", Sensitive: []string{"password"}}, userHooks(), persistUser); err != nil {
		return nil, err
	}
	roleOpts := engine.Options{Name: "roles", Label: "role", ImportColumns: []string{RolePrivilegesColumn}, SampleRow: roleSample}
	if c.Roles, err = newModule[models.Role](b, roleOpts, engine.Hooks[models.Role]{}, persistRole); err != nil {
		return nil, err
	}
	if c.Privileges, err = newModule[models.Privilege](b, engine.Options{Name: "privileges", Label: "privilege"}, engine.Hooks[models.Privilege]{}, nil); err != nil {
		return nil, err
	}

	c.bulk = make(map[string]Bulk)
	for _, m := range []Bulk{c.Tenants, c.Offices, c.Vendors, c.Contracts, c.SlabRates, c.Vehicles, c.Users, c.Roles, c.Privileges} {
		c.bulk[m.Name()] = m
	}
	return c, nil
}

// Lookup returns the module registered under name
func (c *Catalog) Lookup(name string) (Bulk, bool) {
	m, ok := c.bulk[name]
	return m, ok
}

// Names returns every module name in alphabetical order
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.bulk))
	for name := range c.bulk {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type builder struct {
	db        *gorm.DB
	validator engine.Validator
	loc       *time.Location
	paging    engine.Paging
}

func newModule[T any](b builder, opts engine.Options, hooks engine.Hooks[T], persist engine.PersistFunc[T]) (*Module[T], error) {
	if opts.Location == nil {
		opts.Location = b.loc
	}
	desc, err := engine.NewDescriptor(b.db, new(T), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", opts.Name, err)
	}
	svc := engine.NewService(engine.NewRepository[T](b.db, desc, b.paging), b.validator, hooks)
	return &Module[T]{
		Service:  svc,
		Importer: engine.NewImporter(svc, persist),
		Exporter: engine.NewExporter(svc.Repository()),
	}, nil
}
