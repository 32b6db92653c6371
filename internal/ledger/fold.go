package ledger

import (
	"context"
	"fmt"

	"github.com/erazemk/duka/internal/model"
	"github.com/erazemk/duka/internal/store"
)

// Balance is the stock position derived from an item's movements.
type Balance struct {
	Warehouse   int `json:"warehouse"`
	Distributed int `json:"distributed"`
	Sold        int `json:"sold"`
	Received    int `json:"received"`
}

// Conserved reports whether the balance obeys the conservation law.
func (b Balance) Conserved() bool {
	if b.Warehouse < 0 || b.Distributed < 0 || b.Sold < 0 {
		return false
	}
	return b.Warehouse+b.Distributed+b.Sold == b.Received
}

// Matches reports whether the balance equals the item's stored counters.
func (b Balance) Matches(item *model.Item) bool {
	return b.Warehouse == item.Quantity &&
		b.Distributed == item.AmountDistributed &&
		b.Sold == item.AmountSold &&
		b.Received == item.TotalReceived
}

// Fold replays movements in any order and returns the resulting balance.
func Fold(movements []model.Movement) Balance {
	var b Balance
	for _, m := range movements {
		switch m.Kind {
		case model.MovementIntake:
			b.Warehouse += m.Quantity
			b.Received += m.Quantity
		case model.MovementDistribute:
			b.Warehouse -= m.Quantity
			b.Distributed += m.Quantity
		case model.MovementSale, model.MovementSaleCorrection:
			b.Distributed -= m.Quantity
			b.Sold += m.Quantity
		case model.MovementSaleVoid:
			b.Distributed += m.Quantity
			b.Sold -= m.Quantity
		}
	}
	return b
}

// Audit is the result of checking an item against its movement log.
type Audit struct {
	Item       *model.Item `json:"item"`
	Balance    Balance     `json:"balance"`
	Consistent bool        `json:"consistent"`
}

// Audit folds an item's movement log and compares it with the stored
// counters. Both are read in one transaction so they describe the same
// instant.
func (l *Ledger) Audit(ctx context.Context, itemID int64) (*Audit, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := loadItem(ctx, tx, itemID)
	if err != nil {
		return nil, err
	}
	movements, err := store.ListMovements(ctx, tx, itemID, store.Page{})
	if err != nil {
		return nil, err
	}

	b := Fold(movements)
	return &Audit{
		Item:       item,
		Balance:    b,
		Consistent: b.Matches(item) && b.Conserved(),
	}, nil
}
