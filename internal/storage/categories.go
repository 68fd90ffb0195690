package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ledger/internal/core"
)

const categoryColumns = `id, tenant_id, name, kind`

func scanCategory(row interface{ Scan(...any) error }) (core.Category, error) {
	var c core.Category
	var kind string
	if err := row.Scan(&c.ID, &c.TenantID, &c.Name, &kind); err != nil {
		return core.Category{}, err
	}
	c.Kind = core.CategoryKind(kind)
	return c, nil
}

// ListCategories returns the tenant's categories ordered by id.
func (q *Queries) ListCategories(ctx context.Context, tenantID int64) ([]core.Category, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE tenant_id = ? ORDER BY id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCategory returns core.ErrCategoryNotFound when id does not belong to the tenant.
func (q *Queries) GetCategory(ctx context.Context, tenantID, id int64) (core.Category, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE tenant_id = ? AND id = ?`, tenantID, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("%w: id %d", core.ErrCategoryNotFound, id)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, err)
	}
	return c, nil
}

// FindCategoryByName matches the name case-insensitively.
func (q *Queries) FindCategoryByName(ctx context.Context, tenantID int64, name string) (core.Category, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE tenant_id = ? AND name = ? COLLATE NOCASE`, tenantID, name)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("%w: %q", core.ErrCategoryNotFound, name)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("find category %q: %w", name, err)
	}
	return c, nil
}

// CreateCategory inserts a category, returning core.ErrDuplicateCategory when
// the tenant already has one with the same name.
func (q *Queries) CreateCategory(ctx context.Context, tenantID int64, name string, kind core.CategoryKind) (core.Category, error) {
	if _, err := q.FindCategoryByName(ctx, tenantID, name); err == nil {
		return core.Category{}, fmt.Errorf("%w: %q", core.ErrDuplicateCategory, name)
	} else if !errors.Is(err, core.ErrCategoryNotFound) {
		return core.Category{}, err
	}

	res, err := q.db.ExecContext(ctx,
		`INSERT INTO categories (tenant_id, name, kind, created_at) VALUES (?, ?, ?, ?)`,
		tenantID, name, string(kind), q.timestamp())
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("category id: %w", err)
	}
	return core.Category{ID: id, TenantID: tenantID, Name: name, Kind: kind}, nil
}
