package engine

import (
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aethra/backoffice/internal/security"
)

// Reserved filter keys
const (
	FilterCreatedFrom = "created_from"
	FilterCreatedTo   = "created_to"
	FilterUpdatedFrom = "updated_from"
	FilterUpdatedTo   = "updated_to"
	FilterActive      = "active"
)

// Values of the active filter
const (
	ActiveTrue  = "true"
	ActiveFalse = "false"
	ActiveBoth  = "both"
)

// Sort defaults
const (
	DefaultSortBy    = ColumnUpdatedAt
	DefaultSortOrder = "desc"
)

// Paging defaults
const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// FilterSet maps filter keys to raw values as they arrive in a query string
type FilterSet map[string]string

// SortSpec names the ordering column and direction
type SortSpec struct {
	SortBy    string
	SortOrder string
}

// PageRequest is the requested page window
type PageRequest struct {
	Page    int
	PerPage int
}

// Normalize clamps the window: perPage <= 0 uses the default, perPage above max is capped, page < 1 is 1
func (p PageRequest) Normalize(defaultPerPage, maxPerPage int) PageRequest {
	if defaultPerPage <= 0 {
		defaultPerPage = DefaultPerPage
	}
	if maxPerPage < defaultPerPage {
		maxPerPage = defaultPerPage
	}
	if p.PerPage <= 0 {
		p.PerPage = defaultPerPage
	}
	if p.PerPage > maxPerPage {
		p.PerPage = maxPerPage
	}
	if p.Page < 1 {
		p.Page = 1
	}
	return p
}

// Offset is the number of rows before the page
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PerPage
}

var rangeFilters = []struct {
	key    string
	column string
	lower  bool
}{
	{FilterCreatedFrom, ColumnCreatedAt, true},
	{FilterCreatedTo, ColumnCreatedAt, false},
	{FilterUpdatedFrom, ColumnUpdatedAt, true},
	{FilterUpdatedTo, ColumnUpdatedAt, false},
}

func isReservedFilter(key string) bool {
	switch key {
	case FilterCreatedFrom, FilterCreatedTo, FilterUpdatedFrom, FilterUpdatedTo, FilterActive:
		return true
	}
	return false
}

// QueryBuilder turns filters and sort options into gorm scopes
type QueryBuilder struct {
	scope TenantScope
}

// NewQueryBuilder creates a query builder
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{}
}

// Build applies tenant scope, filters and ordering
func (q *QueryBuilder) Build(db *gorm.DB, desc *Descriptor, filters FilterSet, spec SortSpec, uctx UserContext) *gorm.DB {
	return db.Scopes(q.Filter(desc, filters, uctx), q.Order(desc, spec))
}

// Filter returns a scope applying the tenant predicate first, then date ranges,
// the active flag and column filters. Unknown keys, sensitive columns, empty
// values and values that do not parse into the column type add no predicate.
func (q *QueryBuilder) Filter(desc *Descriptor, filters FilterSet, uctx UserContext) func(*gorm.DB) *gorm.DB {
	tenant := q.scope.Predicate(desc, uctx)
	loc := desc.Location()

	return func(db *gorm.DB) *gorm.DB {
		db = tenant(db)

		for _, rf := range rangeFilters {
			raw := strings.TrimSpace(filters[rf.key])
			if raw == "" {
				continue
			}
			if _, ok := desc.Column(rf.column); !ok {
				continue
			}
			t, err := ParseTime(raw, loc)
			if err != nil {
				continue
			}
			day := startOfDay(t, loc)
			col := clause.Column{Table: desc.Table, Name: rf.column}
			if rf.lower {
				db = db.Where(clause.Gte{Column: col, Value: day})
			} else {
				db = db.Where(clause.Lt{Column: col, Value: day.AddDate(0, 0, 1)})
			}
		}

		if desc.HasActive {
			col := clause.Column{Table: desc.Table, Name: ColumnActive}
			switch strings.ToLower(strings.TrimSpace(filters[FilterActive])) {
			case ActiveBoth:
			case ActiveFalse:
				db = db.Where(clause.Eq{Column: col, Value: false})
			default:
				db = db.Where(clause.Eq{Column: col, Value: true})
			}
		}

		dialect := db.Dialector.Name()
		for _, key := range sortedKeys(filters) {
			if isReservedFilter(key) || desc.IsSensitive(key) {
				continue
			}
			raw := strings.TrimSpace(filters[key])
			if raw == "" {
				continue
			}
			col, ok := desc.Column(key)
			if !ok {
				continue
			}
			db = columnPredicate(db, desc, col, raw, dialect, loc)
		}
		return db
	}
}

func columnPredicate(db *gorm.DB, desc *Descriptor, col Column, raw, dialect string, loc *time.Location) *gorm.DB {
	ref := clause.Column{Table: desc.Table, Name: col.Name}
	switch col.Kind {
	case KindString:
		return db.Where("LOWER(?) LIKE ?"+security.LikeEscapeClause(dialect), ref, security.ContainsPattern(raw))
	case KindInt:
		if n, err := toInt(raw); err == nil {
			return db.Where(clause.Eq{Column: ref, Value: n})
		}
	case KindUint:
		if n, err := toUint(raw); err == nil {
			return db.Where(clause.Eq{Column: ref, Value: n})
		}
	case KindFloat:
		if f, err := toFloat(raw); err == nil {
			return db.Where(clause.Eq{Column: ref, Value: f})
		}
	case KindBool:
		if b, err := toBool(raw); err == nil {
			return db.Where(clause.Eq{Column: ref, Value: b})
		}
	case KindTime:
		if t, err := ParseTime(raw, loc); err == nil {
			day := startOfDay(t, loc)
			return db.Where(clause.Gte{Column: ref, Value: day}).
				Where(clause.Lt{Column: ref, Value: day.AddDate(0, 0, 1)})
		}
	}
	return db
}

// Order returns a scope sorting by a known column with an id tiebreaker.
// Unknown or sensitive columns fall back to updated_at and unknown directions to desc.
func (q *QueryBuilder) Order(desc *Descriptor, spec SortSpec) func(*gorm.DB) *gorm.DB {
	sortBy := strings.TrimSpace(spec.SortBy)
	if _, ok := desc.Column(sortBy); !ok || desc.IsSensitive(sortBy) {
		sortBy = DefaultSortBy
		if _, ok := desc.Column(sortBy); !ok {
			sortBy = ColumnID
		}
	}
	descending := !strings.EqualFold(strings.TrimSpace(spec.SortOrder), "asc")

	return func(db *gorm.DB) *gorm.DB {
		db = db.Order(clause.OrderByColumn{Column: clause.Column{Table: desc.Table, Name: sortBy}, Desc: descending})
		if sortBy != ColumnID {
			db = db.Order(clause.OrderByColumn{Column: clause.Column{Table: desc.Table, Name: ColumnID}, Desc: descending})
		}
		return db
	}
}

func sortedKeys(filters FilterSet) []string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
