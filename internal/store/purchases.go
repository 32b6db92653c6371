package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/duka/internal/model"
)

const purchaseColumns = `p.id, p.item_name, p.category_id, COALESCE(c.name, ''), p.quantity_purchased, p.price,
	p.purchase_date, p.status, p.item_id, p.received_at, p.created_by, p.created_at, p.updated_at`

const purchaseFrom = ` FROM purchases p LEFT JOIN categories c ON c.id = p.category_id`

func scanPurchase(sc interface{ Scan(...any) error }) (*model.Purchase, error) {
	p := &model.Purchase{}
	err := sc.Scan(&p.ID, &p.ItemName, &p.CategoryID, &p.CategoryName, &p.QuantityPurchased, &p.Price,
		&p.PurchaseDate, &p.Status, &p.ItemID, &p.ReceivedAt, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CreatePurchase records a purchase. It does not touch item stock; see
// ledger.ReceivePurchase.
func CreatePurchase(ctx context.Context, db DBTX, p *model.Purchase) (*model.Purchase, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO purchases (item_name, category_id, quantity_purchased, price, purchase_date, status, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ItemName, p.CategoryID, p.QuantityPurchased, p.Price, p.PurchaseDate, p.Status, p.CreatedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("creating purchase: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting purchase id: %w", err)
	}

	return GetPurchase(ctx, db, id)
}

// GetPurchase returns a purchase by ID, or nil if there is none.
func GetPurchase(ctx context.Context, db DBTX, id int64) (*model.Purchase, error) {
	p, err := scanPurchase(db.QueryRowContext(ctx,
		`SELECT `+purchaseColumns+purchaseFrom+` WHERE p.id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting purchase: %w", err)
	}
	return p, nil
}

// PurchaseFilter narrows ListPurchases. Received filters on whether the
// purchase has been added to stock when non-nil.
type PurchaseFilter struct {
	ItemName   string
	CategoryID int64
	Dates      DateRange
	Received   *bool
	Page
}

func (f PurchaseFilter) where() (string, []any) {
	var where []string
	var args []any
	if f.ItemName != "" {
		where = append(where, `p.item_name LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(f.ItemName))
	}
	if f.CategoryID != 0 {
		where = append(where, "p.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.Received != nil {
		if *f.Received {
			where = append(where, "p.item_id IS NOT NULL")
		} else {
			where = append(where, "p.item_id IS NULL")
		}
	}
	where, args = f.Dates.apply("p.purchase_date", where, args)
	return whereClause(where), args
}

// ListPurchases returns purchases matching f, newest purchase date first.
func ListPurchases(ctx context.Context, db DBTX, f PurchaseFilter) ([]model.Purchase, error) {
	where, args := f.where()
	limit, limitArgs := f.Page.clause()
	rows, err := db.QueryContext(ctx,
		`SELECT `+purchaseColumns+purchaseFrom+where+` ORDER BY p.purchase_date DESC, p.id DESC`+limit,
		append(args, limitArgs...)...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing purchases: %w", err)
	}
	defer rows.Close()

	var purchases []model.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning purchase: %w", err)
		}
		purchases = append(purchases, *p)
	}
	return purchases, rows.Err()
}

// CountPurchases returns the number of purchases matching f, ignoring paging.
func CountPurchases(ctx context.Context, db DBTX, f PurchaseFilter) (int, error) {
	where, args := f.where()
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM purchases p`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting purchases: %w", err)
	}
	return n, nil
}

// UpdatePurchase replaces the editable fields of a purchase. Once received
// the purchased quantity is fixed, since it is already part of item stock.
func UpdatePurchase(ctx context.Context, db DBTX, p *model.Purchase) error {
	current, err := GetPurchase(ctx, db, p.ID)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("%w: purchase %d", model.ErrNotFound, p.ID)
	}
	if current.Received() && current.QuantityPurchased != p.QuantityPurchased {
		return fmt.Errorf("%w: purchase %d was already received, quantity cannot change", model.ErrConflict, p.ID)
	}

	_, err = db.ExecContext(ctx,
		`UPDATE purchases SET item_name = ?, category_id = ?, quantity_purchased = ?, price = ?,
		        purchase_date = ?, status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		p.ItemName, p.CategoryID, p.QuantityPurchased, p.Price, p.PurchaseDate, p.Status, p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating purchase: %w", err)
	}
	return nil
}

// DeletePurchase removes a purchase that has not been received.
func DeletePurchase(ctx context.Context, db DBTX, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM purchases WHERE id = ? AND item_id IS NULL`, id)
	if err != nil {
		return fmt.Errorf("deleting purchase: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 1 {
		return nil
	}

	p, err := GetPurchase(ctx, db, id)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: purchase %d", model.ErrNotFound, id)
	}
	return fmt.Errorf("%w: purchase %d was already received", model.ErrConflict, id)
}

// MarkPurchaseReceived links a purchase to the item it was received into.
// It reports false if the purchase was already received.
func MarkPurchaseReceived(ctx context.Context, db DBTX, id, itemID int64, at time.Time) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE purchases SET item_id = ?, received_at = ?, updated_at = ?
		 WHERE id = ? AND item_id IS NULL`,
		itemID, at, at, id,
	)
	if err != nil {
		return false, fmt.Errorf("marking purchase received: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("marking purchase received: %w", err)
	}
	return n == 1, nil
}
