// Package tenantdb centralizes the "never forget the tenant filter" invariant.
// Instead of repeating company_id conditions at every query site, services go
// through a DB wrapper that consults the request's tenant.TenantContext and
// merges the company scope into reads, writes and deletes automatically.
package tenantdb

import (
	"context"

	"backend/internal/tenant"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TenantOwned is implemented by every model that carries a company_id column
// and therefore belongs to the tenant-scoped set. Models that do not implement
// it (audit/history tables, cross-company templates) are passed through
// untouched.
type TenantOwned interface {
	GetCompanyID() string
	SetCompanyID(id string)
}

// DB wraps a gorm handle with tenant-aware behavior. The zero value is not
// usable; construct with New.
type DB struct {
	db *gorm.DB
}

// New creates a tenant-aware wrapper around the given gorm handle.
func New(db *gorm.DB) *DB {
	return &DB{db: db}
}

// Gorm exposes the underlying handle for operations that are deliberately
// outside tenant scoping (migrations, health checks). Request-handling code
// should not reach for this.
func (d *DB) Gorm() *gorm.DB {
	return d.db
}

// Scoped returns a gorm handle targeting the given model with the tenant
// filter merged in:
//
//   - context present and model tenant-owned: company_id = ctx.CompanyID is
//     ANDed into the WHERE clause. A caller-supplied company_id condition can
//     only narrow the result further, never widen it to another tenant.
//   - no context: the filter is passed through unmodified. This is the
//     intentional escape hatch for scheduled jobs operating across companies;
//     user-facing routes are guaranteed a context by the tenant middleware.
//
// Updates and deletes issued through the returned handle inherit the filter,
// so a guessed primary key cannot mutate another tenant's row.
func (d *DB) Scoped(ctx context.Context, model any) *gorm.DB {
	query := d.db.WithContext(ctx).Model(model)
	if _, owned := model.(TenantOwned); !owned {
		return query
	}
	tc, ok := tenant.FromContext(ctx)
	if !ok {
		return query
	}
	// 条件限定到模型自身的表，带 JOIN 的查询里 company_id 不会产生歧义
	return query.Where(clause.Eq{
		Column: clause.Column{Table: clause.CurrentTable, Name: "company_id"},
		Value:  tc.CompanyID,
	})
}

// Create inserts the value, stamping the company from the tenant context when
// the payload does not already carry one. Values outside the tenant-scoped set
// are inserted as-is.
func (d *DB) Create(ctx context.Context, value any) error {
	if owned, ok := value.(TenantOwned); ok && owned.GetCompanyID() == "" {
		if tc, present := tenant.FromContext(ctx); present {
			owned.SetCompanyID(tc.CompanyID)
		}
	}
	return d.db.WithContext(ctx).Create(value).Error
}

// First loads a single scoped row into dest. gorm.ErrRecordNotFound is
// returned both for genuinely missing rows and rows belonging to another
// tenant; callers must not distinguish the two.
func (d *DB) First(ctx context.Context, dest any, conds ...any) error {
	return d.Scoped(ctx, dest).First(dest, conds...).Error
}

// Transaction runs fn inside a database transaction. The callback receives a
// derived tenant-aware wrapper, so all operations inside the transaction obey
// the same scoping rules.
func (d *DB) Transaction(ctx context.Context, fn func(tx *DB) error) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&DB{db: tx})
	})
}
