package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/duka/internal/model"
)

func seedCategory(t *testing.T, db *sql.DB, name string) *model.Category {
	t.Helper()
	c, err := CreateCategory(context.Background(), db, name)
	require.NoError(t, err)
	return c
}

// seedItem inserts an item holding qty units in the warehouse, bypassing
// the ledger. Store tests only care about the row.
func seedItem(t *testing.T, db *sql.DB, categoryID int64, name string, qty int) *model.Item {
	t.Helper()
	now := time.Now().UTC()
	item := &model.Item{
		Name:          name,
		CategoryID:    categoryID,
		Price:         decimal.RequireFromString("10.50"),
		Status:        model.ItemStatusActive,
		Quantity:      qty,
		TotalReceived: qty,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, InsertItem(context.Background(), db, item))
	return item
}

func seedSale(t *testing.T, db *sql.DB, itemID int64, loc model.Location, qty int, amount, method, day string) *model.Sale {
	t.Helper()
	date, err := model.ParseDate(day)
	require.NoError(t, err)
	now := time.Now().UTC()
	s := &model.Sale{
		ItemID:        itemID,
		Quantity:      qty,
		Location:      loc,
		TotalAmount:   decimal.RequireFromString(amount),
		PaymentMethod: method,
		CustomerName:  "Customer",
		PhoneNumber:   "0700000000",
		SoldAt:        date,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, InsertSale(context.Background(), db, s))
	return s
}
