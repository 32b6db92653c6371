package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/duka/internal/model"
)

const saleColumns = `s.id, s.item_id, COALESCE(i.name, ''), s.quantity, s.location, s.total_amount,
	s.payment_method, s.customer_name, s.phone_number, s.sold_at, s.sold_by,
	s.created_at, s.updated_at, s.voided_at`

const saleFrom = ` FROM sales s LEFT JOIN items i ON i.id = s.item_id`

func scanSale(sc interface{ Scan(...any) error }) (*model.Sale, error) {
	s := &model.Sale{}
	err := sc.Scan(&s.ID, &s.ItemID, &s.ItemName, &s.Quantity, &s.Location, &s.TotalAmount,
		&s.PaymentMethod, &s.CustomerName, &s.PhoneNumber, &s.SoldAt, &s.SoldBy,
		&s.CreatedAt, &s.UpdatedAt, &s.VoidedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// InsertSale inserts a sale row and sets s.ID. Stock is adjusted by the
// ledger in the same transaction.
func InsertSale(ctx context.Context, db DBTX, s *model.Sale) error {
	result, err := db.ExecContext(ctx,
		`INSERT INTO sales (item_id, quantity, location, total_amount, payment_method, customer_name,
		                    phone_number, sold_at, sold_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ItemID, s.Quantity, s.Location, s.TotalAmount, s.PaymentMethod, s.CustomerName,
		s.PhoneNumber, s.SoldAt, s.SoldBy, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating sale: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting sale id: %w", err)
	}
	s.ID = id
	return nil
}

// GetSale returns a sale by ID, voided or not, or nil if there is none.
func GetSale(ctx context.Context, db DBTX, id int64) (*model.Sale, error) {
	s, err := scanSale(db.QueryRowContext(ctx,
		`SELECT `+saleColumns+saleFrom+` WHERE s.id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting sale: %w", err)
	}
	return s, nil
}

// SaleFilter narrows ListSales. Zero fields are ignored.
type SaleFilter struct {
	ItemID        int64
	Location      model.Location
	PaymentMethod string
	Customer      string
	Dates         DateRange
	Page
}

// ListSales returns sales that have not been voided, ordered by sale date.
func ListSales(ctx context.Context, db DBTX, f SaleFilter) ([]model.Sale, error) {
	where := []string{"s.voided_at IS NULL"}
	var args []any
	if f.ItemID != 0 {
		where = append(where, "s.item_id = ?")
		args = append(args, f.ItemID)
	}
	if f.Location != model.LocationNone {
		where = append(where, "s.location = ?")
		args = append(args, f.Location)
	}
	if f.PaymentMethod != "" {
		where = append(where, "s.payment_method = ?")
		args = append(args, f.PaymentMethod)
	}
	if f.Customer != "" {
		where = append(where, `s.customer_name LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(f.Customer))
	}
	where, args = f.Dates.apply("s.sold_at", where, args)

	limit, limitArgs := f.Page.clause()
	rows, err := db.QueryContext(ctx,
		`SELECT `+saleColumns+saleFrom+whereClause(where)+` ORDER BY s.sold_at, s.id`+limit,
		append(args, limitArgs...)...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sales: %w", err)
	}
	defer rows.Close()

	var sales []model.Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sale: %w", err)
		}
		sales = append(sales, *s)
	}
	return sales, rows.Err()
}

// UpdateSale writes the editable fields of a live sale.
func UpdateSale(ctx context.Context, db DBTX, s *model.Sale) error {
	result, err := db.ExecContext(ctx,
		`UPDATE sales SET quantity = ?, total_amount = ?, payment_method = ?, customer_name = ?,
		        phone_number = ?, sold_at = ?, updated_at = ?
		 WHERE id = ? AND voided_at IS NULL`,
		s.Quantity, s.TotalAmount, s.PaymentMethod, s.CustomerName, s.PhoneNumber, s.SoldAt, s.UpdatedAt, s.ID,
	)
	if err != nil {
		return fmt.Errorf("updating sale: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: sale %d", model.ErrNotFound, s.ID)
	}
	return nil
}

// MarkSaleVoided stamps a live sale as voided.
func MarkSaleVoided(ctx context.Context, db DBTX, id int64, at time.Time) error {
	result, err := db.ExecContext(ctx,
		`UPDATE sales SET voided_at = ?, updated_at = ? WHERE id = ? AND voided_at IS NULL`,
		at, at, id,
	)
	if err != nil {
		return fmt.Errorf("voiding sale: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: sale %d", model.ErrNotFound, id)
	}
	return nil
}
