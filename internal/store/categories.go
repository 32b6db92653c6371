package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/duka/internal/model"
)

const categoryColumns = `c.id, c.name, c.created_at, c.deleted_at,
	(SELECT COUNT(*) FROM items i WHERE i.category_id = c.id AND i.deleted_at IS NULL)`

func scanCategory(sc interface{ Scan(...any) error }) (*model.Category, error) {
	c := &model.Category{}
	if err := sc.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.DeletedAt, &c.ItemCount); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateCategory creates a new category. A duplicate live name is a conflict.
func CreateCategory(ctx context.Context, db DBTX, name string) (*model.Category, error) {
	result, err := db.ExecContext(ctx, `INSERT INTO categories (name) VALUES (?)`, name)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: category %q already exists", model.ErrConflict, name)
	}
	if err != nil {
		return nil, fmt.Errorf("creating category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting category id: %w", err)
	}

	return GetCategory(ctx, db, id)
}

// GetCategory returns a live category by ID, or nil if there is none.
func GetCategory(ctx context.Context, db DBTX, id int64) (*model.Category, error) {
	c, err := scanCategory(db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories c WHERE c.id = ? AND c.deleted_at IS NULL`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting category: %w", err)
	}
	return c, nil
}

// ListCategories returns all live categories ordered by name.
func ListCategories(ctx context.Context, db DBTX) ([]model.Category, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories c WHERE c.deleted_at IS NULL ORDER BY c.name COLLATE NOCASE, c.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

// CountCategories returns the number of live categories.
func CountCategories(ctx context.Context, db DBTX) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM categories WHERE deleted_at IS NULL`,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting categories: %w", err)
	}
	return n, nil
}

// UpdateCategory renames a category.
func UpdateCategory(ctx context.Context, db DBTX, id int64, name string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE categories SET name = ? WHERE id = ? AND deleted_at IS NULL`, name, id,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: category %q already exists", model.ErrConflict, name)
	}
	if err != nil {
		return fmt.Errorf("updating category: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: category %d", model.ErrNotFound, id)
	}
	return nil
}

// DeleteCategory soft-deletes a category that no live item refers to.
func DeleteCategory(ctx context.Context, db DBTX, id int64) error {
	var inUse int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE category_id = ? AND deleted_at IS NULL`, id,
	).Scan(&inUse); err != nil {
		return fmt.Errorf("checking category usage: %w", err)
	}
	if inUse > 0 {
		return fmt.Errorf("%w: category still has %d items", model.ErrConflict, inUse)
	}

	result, err := db.ExecContext(ctx,
		`UPDATE categories SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`, id,
	)
	if err != nil {
		return fmt.Errorf("deleting category: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: category %d", model.ErrNotFound, id)
	}
	return nil
}
