package engine

import (
	"context"
	"sort"

	apperrors "github.com/aethra/backoffice/internal/errors"
)

// Validator checks a record before it is persisted
type Validator interface {
	Struct(record interface{}) error
}

// Hooks let a record type adjust payloads before they reach storage
type Hooks[T any] struct {
	// BeforeCreate runs after validation, right before the insert
	BeforeCreate func(ctx context.Context, entity *T) error
	// BeforeUpdate runs after the merged record validated; it may rewrite data
	BeforeUpdate func(ctx context.Context, merged *T, data map[string]interface{}) error
}

// Service orchestrates validation, hooks and the repository for one record type
type Service[T any] struct {
	repo      *Repository[T]
	validator Validator
	hooks     Hooks[T]
}

// NewService creates a service
func NewService[T any](repo *Repository[T], validator Validator, hooks Hooks[T]) *Service[T] {
	return &Service[T]{repo: repo, validator: validator, hooks: hooks}
}

// Repository returns the underlying repository
func (s *Service[T]) Repository() *Repository[T] {
	return s.repo
}

// Descriptor returns the record type description
func (s *Service[T]) Descriptor() *Descriptor {
	return s.repo.desc
}

// WithRepository returns a copy of the service bound to repo, typically a transactional one
func (s *Service[T]) WithRepository(repo *Repository[T]) *Service[T] {
	bound := *s
	bound.repo = repo
	return &bound
}

// Create validates entity, runs the create hook and persists it
func (s *Service[T]) Create(ctx context.Context, entity *T, uctx UserContext) (*T, error) {
	if err := s.Validate(entity); err != nil {
		return nil, err
	}
	if s.hooks.BeforeCreate != nil {
		if err := s.hooks.BeforeCreate(ctx, entity); err != nil {
			return nil, err
		}
	}
	return s.repo.Create(ctx, entity, uctx)
}

// CreateFromMap builds a record from a decoded payload and creates it.
// Platform callers may choose tenant_id; everything else engine-managed is ignored.
func (s *Service[T]) CreateFromMap(ctx context.Context, data map[string]interface{}, uctx UserContext) (*T, error) {
	entity := s.repo.New(ctx)
	if err := s.Apply(ctx, entity, data, uctx.IsPlatform()); err != nil {
		return nil, err
	}
	return s.Create(ctx, entity, uctx)
}

// Find loads a record visible to the caller
func (s *Service[T]) Find(ctx context.Context, id uint, uctx UserContext) (*T, error) {
	return s.repo.Find(ctx, id, uctx)
}

// List returns one page of the filtered listing
func (s *Service[T]) List(ctx context.Context, filters FilterSet, spec SortSpec, page PageRequest, uctx UserContext) (*Page[T], error) {
	return s.repo.ListPaginated(ctx, filters, spec, page, uctx)
}

// ListAll returns the whole filtered listing
func (s *Service[T]) ListAll(ctx context.Context, filters FilterSet, spec SortSpec, uctx UserContext) ([]T, error) {
	return s.repo.ListAll(ctx, filters, spec, uctx)
}

// Update applies data to the record with the given id after validating the merged result
func (s *Service[T]) Update(ctx context.Context, id uint, data map[string]interface{}, uctx UserContext) (*T, error) {
	entity, err := s.repo.Find(ctx, id, uctx)
	if err != nil {
		return nil, err
	}

	merged := *entity
	if err := s.Apply(ctx, &merged, data, false); err != nil {
		return nil, err
	}
	if err := s.Validate(&merged); err != nil {
		return nil, err
	}
	if s.hooks.BeforeUpdate != nil {
		if err := s.hooks.BeforeUpdate(ctx, &merged, data); err != nil {
			return nil, err
		}
	}
	return s.repo.Update(ctx, entity, data, uctx)
}

// Deactivate sets active=false. Deactivating an inactive record succeeds.
func (s *Service[T]) Deactivate(ctx context.Context, id uint, uctx UserContext) (*T, error) {
	if !s.repo.desc.HasActive {
		return nil, apperrors.NewBadRequestError(s.repo.desc.Label + " cannot be deactivated")
	}
	return s.Update(ctx, id, map[string]interface{}{ColumnActive: false}, uctx)
}

// Delete hard-deletes the record with the given id
func (s *Service[T]) Delete(ctx context.Context, id uint, uctx UserContext) error {
	entity, err := s.repo.Find(ctx, id, uctx)
	if err != nil {
		return err
	}
	removed, err := s.repo.Delete(ctx, entity, uctx)
	if err != nil {
		return err
	}
	if !removed {
		return apperrors.NewNotFoundError(s.repo.desc.Label, id)
	}
	return nil
}

// Validate runs the struct validator, if one is configured
func (s *Service[T]) Validate(entity *T) error {
	if s.validator == nil {
		return nil
	}
	return s.validator.Struct(entity)
}

// Apply assigns the writable columns of data onto entity, collecting every
// conversion failure into one validation error. With allowTenant the
// tenant_id column is accepted too.
func (s *Service[T]) Apply(ctx context.Context, entity *T, data map[string]interface{}, allowTenant bool) error {
	desc := s.repo.desc
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	var fields []apperrors.FieldError
	for _, name := range names {
		tenantColumn := allowTenant && name == ColumnTenantID && desc.TenantScoped
		if !desc.Writable(name) && !tenantColumn {
			continue
		}
		if err := desc.Set(ctx, entity, name, data[name]); err != nil {
			fields = append(fields, apperrors.FieldError{Field: name, Message: err.Error()})
		}
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError("", fields...)
	}
	return nil
}
