package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"reflect"
	"sort"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/aethra/backoffice/internal/errors"
	"github.com/aethra/backoffice/internal/logger"
)

// Paging holds the page size defaults of a repository
type Paging struct {
	DefaultPerPage int
	MaxPerPage     int
}

// Repository is the tenant-aware storage of one record type
type Repository[T any] struct {
	db     *gorm.DB
	desc   *Descriptor
	query  *QueryBuilder
	scope  TenantScope
	audit  AuditWriter
	paging Paging
}

// NewRepository creates a repository for T described by desc
func NewRepository[T any](db *gorm.DB, desc *Descriptor, paging Paging) *Repository[T] {
	if paging.DefaultPerPage <= 0 {
		paging.DefaultPerPage = DefaultPerPage
	}
	if paging.MaxPerPage <= 0 {
		paging.MaxPerPage = MaxPerPage
	}
	return &Repository[T]{
		db:     db,
		desc:   desc,
		query:  NewQueryBuilder(),
		paging: paging,
	}
}

// Descriptor returns the record type description
func (r *Repository[T]) Descriptor() *Descriptor {
	return r.desc
}

// New returns an empty record with defaults applied; records with an active flag start active
func (r *Repository[T]) New(ctx context.Context) *T {
	entity := new(T)
	if r.desc.HasActive {
		_ = r.desc.Set(ctx, entity, ColumnActive, true)
	}
	return entity
}

// Create stamps the tenant and audit columns from uctx and persists entity.
// A client-supplied primary key is discarded.
func (r *Repository[T]) Create(ctx context.Context, entity *T, uctx UserContext) (*T, error) {
	rv := reflect.ValueOf(entity).Elem()
	if err := r.desc.primary.Set(ctx, rv, reflect.Zero(r.desc.primary.FieldType).Interface()); err != nil {
		return nil, fmt.Errorf("failed to reset primary key: %w", err)
	}
	if r.desc.TenantScoped && uctx.TenantID != nil {
		if err := r.desc.stamp(ctx, rv, ColumnTenantID, uctx.TenantRef()); err != nil {
			return nil, err
		}
	}
	if err := r.desc.stamp(ctx, rv, ColumnCreatedBy, uctx.UserRef()); err != nil {
		return nil, err
	}
	if err := r.desc.stamp(ctx, rv, ColumnUpdatedBy, uctx.UserRef()); err != nil {
		return nil, err
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(entity).Error; err != nil {
			return err
		}
		return r.audit.Record(tx, r.desc, AuditCreate, r.desc.ID(ctx, entity), r.desc.TenantOf(ctx, entity), uctx, nil)
	})
	if err != nil {
		r.log(ctx, uctx).Error("failed to create record", zap.Error(err))
		return nil, fmt.Errorf("failed to create %s: %w", r.desc.Label, err)
	}
	return entity, nil
}

// Find loads a record by id within the caller's tenant. Missing and foreign
// rows both yield a NotFound error.
func (r *Repository[T]) Find(ctx context.Context, id uint, uctx UserContext) (*T, error) {
	var entity T
	db := r.scope.Predicate(r.desc, uctx)(r.db.WithContext(ctx))
	err := db.Where(clause.Eq{Column: clause.Column{Table: r.desc.Table, Name: ColumnID}, Value: id}).Take(&entity).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError(r.desc.Label, id)
		}
		r.log(ctx, uctx).Error("failed to find record", zap.Uint("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to find %s %d: %w", r.desc.Label, id, err)
	}
	return &entity, nil
}

// ListPaginated returns one page of the filtered, sorted listing
func (r *Repository[T]) ListPaginated(ctx context.Context, filters FilterSet, spec SortSpec, page PageRequest, uctx UserContext) (*Page[T], error) {
	page = page.Normalize(r.paging.DefaultPerPage, r.paging.MaxPerPage)
	base := r.query.Filter(r.desc, filters, uctx)(r.db.WithContext(ctx).Model(new(T))).Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		r.log(ctx, uctx).Error("failed to count records", zap.Any("filters", filters), zap.Error(err))
		return nil, fmt.Errorf("failed to count %s records: %w", r.desc.Label, err)
	}

	rows := make([]T, 0, page.PerPage)
	err := r.query.Order(r.desc, spec)(base).Offset(page.Offset()).Limit(page.PerPage).Find(&rows).Error
	if err != nil {
		r.log(ctx, uctx).Error("failed to list records", zap.Any("filters", filters), zap.Error(err))
		return nil, fmt.Errorf("failed to list %s records: %w", r.desc.Label, err)
	}
	return NewPage(rows, total, page), nil
}

// ListAll returns the whole filtered, sorted listing; bulk export reads through it
func (r *Repository[T]) ListAll(ctx context.Context, filters FilterSet, spec SortSpec, uctx UserContext) ([]T, error) {
	rows := make([]T, 0)
	err := r.query.Build(r.db.WithContext(ctx).Model(new(T)), r.desc, filters, spec, uctx).Find(&rows).Error
	if err != nil {
		r.log(ctx, uctx).Error("failed to list records", zap.Any("filters", filters), zap.Error(err))
		return nil, fmt.Errorf("failed to list %s records: %w", r.desc.Label, err)
	}
	return rows, nil
}

// Update re-checks tenant ownership of entity, applies the writable columns
// of data, stamps updated_by and returns the reloaded record
func (r *Repository[T]) Update(ctx context.Context, entity *T, data map[string]interface{}, uctx UserContext) (*T, error) {
	if err := r.authorize(ctx, entity, uctx, AuditUpdate); err != nil {
		return nil, err
	}
	id := r.desc.ID(ctx, entity)
	if id == 0 {
		return nil, apperrors.NewNotFoundError(r.desc.Label, id)
	}

	values, err := r.assignments(data)
	if err != nil {
		return nil, err
	}
	changed := make([]string, 0, len(values))
	for name := range values {
		changed = append(changed, name)
	}
	sort.Strings(changed)
	if _, ok := r.desc.columns[ColumnUpdatedBy]; ok {
		values[ColumnUpdatedBy] = uctx.UserRef()
	}

	tenant := r.desc.TenantOf(ctx, entity)
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := r.scope.Predicate(r.desc, uctx)(tx.Model(entity)).Omit(clause.Associations).Updates(values)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.NewNotFoundError(r.desc.Label, id)
		}
		return r.audit.Record(tx, r.desc, AuditUpdate, id, tenant, uctx, changed)
	})
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, err
		}
		r.log(ctx, uctx).Error("failed to update record", zap.Uint("id", id), zap.Strings("columns", changed), zap.Error(err))
		return nil, fmt.Errorf("failed to update %s %d: %w", r.desc.Label, id, err)
	}

	return r.Find(ctx, id, uctx)
}

// Delete re-checks tenant ownership and hard-deletes entity, reporting whether a row was removed
func (r *Repository[T]) Delete(ctx context.Context, entity *T, uctx UserContext) (bool, error) {
	if err := r.authorize(ctx, entity, uctx, AuditDelete); err != nil {
		return false, err
	}
	id := r.desc.ID(ctx, entity)
	if id == 0 {
		return false, nil
	}

	tenant := r.desc.TenantOf(ctx, entity)
	var removed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := r.scope.Predicate(r.desc, uctx)(tx.Select(clause.Associations)).Delete(entity)
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected > 0
		if !removed {
			return nil
		}
		return r.audit.Record(tx, r.desc, AuditDelete, id, tenant, uctx, nil)
	})
	if err != nil {
		r.log(ctx, uctx).Error("failed to delete record", zap.Uint("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to delete %s %d: %w", r.desc.Label, id, err)
	}
	return removed, nil
}

// Transaction runs fn with a repository bound to one database transaction.
// Returning an error from fn rolls back every mutation made through repo or tx.
func (r *Repository[T]) Transaction(ctx context.Context, fn func(repo *Repository[T], tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bound := *r
		bound.db = tx
		return fn(&bound, tx)
	})
}

// assignments coerces the writable columns of data; system columns and unknown keys are ignored
func (r *Repository[T]) assignments(data map[string]interface{}) (map[string]interface{}, error) {
	values := make(map[string]interface{}, len(data))
	var fields []apperrors.FieldError
	for name, raw := range data {
		if !r.desc.Writable(name) {
			continue
		}
		v, err := coerce(r.desc.columns[name], raw, r.desc.loc)
		if err != nil {
			fields = append(fields, apperrors.FieldError{Field: name, Message: err.Error()})
			continue
		}
		values[name] = v
	}
	if len(fields) > 0 {
		sort.Slice(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
		return nil, apperrors.NewValidationError("", fields...)
	}
	return values, nil
}

func (r *Repository[T]) authorize(ctx context.Context, entity *T, uctx UserContext, action string) error {
	tenant := r.desc.TenantOf(ctx, entity)
	if r.scope.Owns(r.desc, uctx, tenant) {
		return nil
	}
	r.log(ctx, uctx).Warn("tenant mismatch on mutation",
		zap.String("action", action),
		zap.Uint("id", r.desc.ID(ctx, entity)),
		zap.String("record_tenant_id", formatTenant(tenant)),
		zap.String("caller_tenant_id", formatTenant(uctx.TenantID)),
	)
	return apperrors.NewPermissionDeniedError(action, r.desc.Name)
}

func (r *Repository[T]) log(ctx context.Context, uctx UserContext) *zap.Logger {
	return logger.FromContext(ctx).With(zap.String("table", r.desc.Table)).With(uctx.Fields()...)
}
