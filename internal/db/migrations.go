package db

import (
	"database/sql"
	"fmt"
)

// migrations are applied in order after schema creation and tracked with
// PRAGMA user_version. Append new migrations at the end; never reorder.
var migrations = []string{
	// Migration 1: report queries filter sales by payment method.
	`CREATE INDEX IF NOT EXISTS idx_sales_payment_method ON sales(payment_method) WHERE voided_at IS NULL`,
	// Migration 2: purchase search is a case-insensitive substring match.
	`CREATE INDEX IF NOT EXISTS idx_purchases_item_name ON purchases(item_name COLLATE NOCASE)`,
}

// SchemaVersion returns the number of applied migrations.
func SchemaVersion(db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// Migrate applies migrations newer than the stored schema version.
func Migrate(db *sql.DB) error {
	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}

	for i := current; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", i+1, err)
		}
	}

	return nil
}
