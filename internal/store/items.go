package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/duka/internal/model"
)

const itemColumns = `i.id, i.name, i.category_id, COALESCE(c.name, ''), i.price, i.status, i.image_mime,
	i.quantity, i.amount_distributed, i.amount_sold, i.total_received, i.distribution, i.version,
	i.created_by, i.created_at, i.updated_at, i.deleted_at`

const itemFrom = ` FROM items i LEFT JOIN categories c ON c.id = i.category_id`

func scanItem(sc interface{ Scan(...any) error }) (*model.Item, error) {
	item := &model.Item{}
	var imageMime sql.NullString
	err := sc.Scan(&item.ID, &item.Name, &item.CategoryID, &item.CategoryName, &item.Price, &item.Status, &imageMime,
		&item.Quantity, &item.AmountDistributed, &item.AmountSold, &item.TotalReceived, &item.Distribution, &item.Version,
		&item.CreatedBy, &item.CreatedAt, &item.UpdatedAt, &item.DeletedAt)
	if err != nil {
		return nil, err
	}
	item.ImageMime = imageMime.String
	return item, nil
}

// InsertItem inserts a new item row with its opening counters and sets
// item.ID. The caller is responsible for recording the matching movement.
func InsertItem(ctx context.Context, db DBTX, item *model.Item) error {
	result, err := db.ExecContext(ctx,
		`INSERT INTO items (name, category_id, price, status, quantity, total_received, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.Name, item.CategoryID, item.Price, item.Status, item.Quantity, item.TotalReceived,
		item.CreatedBy, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting item id: %w", err)
	}
	item.ID = id
	return nil
}

// GetItem returns a live item by ID, or nil if there is none.
func GetItem(ctx context.Context, db DBTX, id int64) (*model.Item, error) {
	item, err := scanItem(db.QueryRowContext(ctx,
		`SELECT `+itemColumns+itemFrom+` WHERE i.id = ? AND i.deleted_at IS NULL`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ItemFilter narrows ListItems. Zero fields are ignored.
type ItemFilter struct {
	Name         string
	CategoryID   int64
	Status       string
	Distribution model.Location
	Created      DateRange
	Page
}

// ListItems returns live items matching f, ordered by id.
func ListItems(ctx context.Context, db DBTX, f ItemFilter) ([]model.Item, error) {
	where := []string{"i.deleted_at IS NULL"}
	var args []any
	if f.Name != "" {
		where = append(where, `i.name LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(f.Name))
	}
	if f.CategoryID != 0 {
		where = append(where, "i.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.Status != "" {
		where = append(where, "i.status = ?")
		args = append(args, f.Status)
	}
	if f.Distribution != model.LocationNone {
		where = append(where, "i.distribution = ?")
		args = append(args, f.Distribution)
	}
	where, args = f.Created.apply("i.created_at", where, args)

	limit, limitArgs := f.Page.clause()
	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+itemFrom+whereClause(where)+` ORDER BY i.id`+limit,
		append(args, limitArgs...)...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// ItemCounts summarizes the live catalog.
type ItemCounts struct {
	Total          int `json:"total"`
	Distributed    int `json:"distributed"`
	WarehouseUnits int `json:"warehouse_units"`
	ShowroomUnits  int `json:"showroom_units"`
	SoldUnits      int `json:"sold_units"`
}

// CountItems returns catalog totals. An item counts as distributed while it
// still has unsold units at a showroom.
func CountItems(ctx context.Context, db DBTX) (ItemCounts, error) {
	var c ItemCounts
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN amount_distributed > 0 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(quantity), 0),
		        COALESCE(SUM(amount_distributed), 0),
		        COALESCE(SUM(amount_sold), 0)
		 FROM items WHERE deleted_at IS NULL`,
	).Scan(&c.Total, &c.Distributed, &c.WarehouseUnits, &c.ShowroomUnits, &c.SoldUnits)
	if err != nil {
		return ItemCounts{}, fmt.Errorf("counting items: %w", err)
	}
	return c, nil
}

// UpdateItemStock writes the stock counters of item if the row still has
// item.Version. It reports false when another writer got there first.
func UpdateItemStock(ctx context.Context, db DBTX, item *model.Item, now time.Time) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET quantity = ?, amount_distributed = ?, amount_sold = ?, total_received = ?,
		        distribution = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ? AND deleted_at IS NULL`,
		item.Quantity, item.AmountDistributed, item.AmountSold, item.TotalReceived,
		item.Distribution, now, item.ID, item.Version,
	)
	if err != nil {
		return false, fmt.Errorf("updating item stock: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("updating item stock: %w", err)
	}
	return n == 1, nil
}

// UpdateItem updates an item's catalog fields. Stock counters only change
// through the ledger.
func UpdateItem(ctx context.Context, db DBTX, id int64, name string, categoryID int64, price decimal.Decimal, status string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET name = ?, category_id = ?, price = ?, status = ?,
		        version = version + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		name, categoryID, price, status, id,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: item %d", model.ErrNotFound, id)
	}
	return nil
}

// DeleteItem soft-deletes an item. Its movements and sales are kept. An
// item still holding units in the warehouse or a showroom is a conflict.
func DeleteItem(ctx context.Context, db DBTX, id int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET deleted_at = CURRENT_TIMESTAMP, version = version + 1
		 WHERE id = ? AND deleted_at IS NULL AND quantity = 0 AND amount_distributed = 0`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	if n, _ := result.RowsAffected(); n > 0 {
		return nil
	}

	var held int
	err = db.QueryRowContext(ctx,
		`SELECT quantity + amount_distributed FROM items WHERE id = ? AND deleted_at IS NULL`, id,
	).Scan(&held)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: item %d", model.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("checking item stock: %w", err)
	}
	return fmt.Errorf("%w: item %d still holds %d units", model.ErrConflict, id, held)
}

// SetItemImage sets an item's image data.
func SetItemImage(ctx context.Context, db DBTX, id int64, image []byte, mime string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET image = ?, image_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		image, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: item %d", model.ErrNotFound, id)
	}
	return nil
}

// GetItemImage returns an item's image data and MIME type. A missing item
// or image yields nil data.
func GetItemImage(ctx context.Context, db DBTX, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM items WHERE id = ? AND deleted_at IS NULL`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return image, mime.String, nil
}
