package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/duka/internal/model"
)

const movementColumns = `id, item_id, kind, quantity, location, sale_id, purchase_id,
	idempotency_key, actor_id, created_at`

func scanMovement(sc interface{ Scan(...any) error }) (*model.Movement, error) {
	m := &model.Movement{}
	var key sql.NullString
	err := sc.Scan(&m.ID, &m.ItemID, &m.Kind, &m.Quantity, &m.Location, &m.SaleID, &m.PurchaseID,
		&key, &m.ActorID, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.IdempotencyKey = key.String
	return m, nil
}

// InsertMovement appends a ledger entry and sets m.ID. Movements are never
// updated or deleted.
func InsertMovement(ctx context.Context, db DBTX, m *model.Movement) error {
	result, err := db.ExecContext(ctx,
		`INSERT INTO stock_movements (item_id, kind, quantity, location, sale_id, purchase_id,
		                              idempotency_key, actor_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ItemID, m.Kind, m.Quantity, m.Location, m.SaleID, m.PurchaseID,
		nullString(m.IdempotencyKey), m.ActorID, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("recording movement: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting movement id: %w", err)
	}
	m.ID = id
	return nil
}

// GetMovementByKey returns the movement recorded under an idempotency key,
// or nil if the key is unused.
func GetMovementByKey(ctx context.Context, db DBTX, key string) (*model.Movement, error) {
	m, err := scanMovement(db.QueryRowContext(ctx,
		`SELECT `+movementColumns+` FROM stock_movements WHERE idempotency_key = ?`, key,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting movement by key: %w", err)
	}
	return m, nil
}

// ListMovements returns an item's movement history, newest first.
func ListMovements(ctx context.Context, db DBTX, itemID int64, page Page) ([]model.Movement, error) {
	limit, limitArgs := page.clause()
	rows, err := db.QueryContext(ctx,
		`SELECT `+movementColumns+` FROM stock_movements WHERE item_id = ? ORDER BY id DESC`+limit,
		append([]any{itemID}, limitArgs...)...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing movements: %w", err)
	}
	defer rows.Close()

	var movements []model.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning movement: %w", err)
		}
		movements = append(movements, *m)
	}
	return movements, rows.Err()
}
