package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ledger/internal/core"
	"ledger/internal/storage"
)

// CategoryService manages the tenant's category labels.
type CategoryService struct {
	repo *storage.SQLiteRepository
}

func NewCategoryService(repo *storage.SQLiteRepository) *CategoryService {
	return &CategoryService{repo: repo}
}

func (s *CategoryService) List(ctx context.Context, tenantID int64) ([]core.Category, error) {
	if err := checkTenant(tenantID); err != nil {
		return nil, err
	}
	return s.repo.ListCategories(ctx, tenantID)
}

// Create adds a category. Names are unique per tenant ignoring case.
func (s *CategoryService) Create(ctx context.Context, tenantID int64, name string, kind core.CategoryKind) (core.Category, error) {
	if err := checkTenant(tenantID); err != nil {
		return core.Category{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Category{}, core.ErrEmptyCategoryName
	}
	kind = core.CategoryKind(strings.ToLower(strings.TrimSpace(string(kind))))
	if !kind.Valid() {
		return core.Category{}, fmt.Errorf("%w: %q", core.ErrInvalidCategoryKind, kind)
	}

	var c core.Category
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		c, err = q.CreateCategory(ctx, tenantID, name, kind)
		return err
	})
	if err != nil {
		return core.Category{}, err
	}

	slog.InfoContext(ctx, "Category created",
		"tenant_id", tenantID,
		"id", c.ID,
		"name", c.Name,
		"kind", c.Kind)
	return c, nil
}
