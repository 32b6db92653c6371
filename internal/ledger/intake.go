package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/erazemk/duka/internal/model"
	"github.com/erazemk/duka/internal/store"
)

// CreateItem adds an item to the catalog with an opening warehouse
// quantity. A non-zero opening quantity is recorded as an intake.
func (l *Ledger) CreateItem(ctx context.Context, actor model.Actor, in model.NewItem) (*model.Item, error) {
	const op = "create_item"

	in.Name = strings.TrimSpace(in.Name)
	if in.Status == "" {
		in.Status = model.ItemStatusActive
	}
	switch {
	case in.Name == "":
		return nil, fmt.Errorf("%w: name is required", model.ErrValidation)
	case in.Quantity < 0:
		return nil, fmt.Errorf("%w: quantity must not be negative", model.ErrValidation)
	case in.Price.IsNegative():
		return nil, fmt.Errorf("%w: price must not be negative", model.ErrValidation)
	case !model.ValidItemStatus(in.Status):
		return nil, fmt.Errorf("%w: unknown status %q", model.ErrValidation, in.Status)
	}

	var item *model.Item
	var intake *model.Movement
	err := l.run(ctx, op, func(tx *sql.Tx) error {
		intake = nil
		category, err := store.GetCategory(ctx, tx, in.CategoryID)
		if err != nil {
			return err
		}
		if category == nil {
			return fmt.Errorf("%w: category %d", model.ErrNotFound, in.CategoryID)
		}

		now := l.clock()
		item = &model.Item{
			Name:          in.Name,
			CategoryID:    category.ID,
			CategoryName:  category.Name,
			Price:         in.Price,
			Status:        in.Status,
			Quantity:      in.Quantity,
			TotalReceived: in.Quantity,
			Version:       1,
			CreatedBy:     actor.ID(),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := store.InsertItem(ctx, tx, item); err != nil {
			return err
		}

		if in.Quantity == 0 {
			return nil
		}
		m := &model.Movement{
			ItemID:    item.ID,
			Kind:      model.MovementIntake,
			Quantity:  in.Quantity,
			ActorID:   actor.ID(),
			CreatedAt: now,
		}
		if err := appendMovement(ctx, tx, m); err != nil {
			return err
		}
		intake = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	succeed(op, false, intake)
	l.log.Info("item created", append(actorFields(actor),
		zap.Int64("item_id", item.ID), zap.String("name", item.Name), zap.Int("quantity", item.Quantity))...)
	return item, nil
}

// ReceiveResult is the outcome of adding a purchase to stock.
type ReceiveResult struct {
	Purchase *model.Purchase `json:"purchase"`
	Item     *model.Item     `json:"item"`
	Movement *model.Movement `json:"movement,omitempty"`
}

// ReceivePurchase adds a purchase's quantity to an item's warehouse stock
// and links the two. A purchase can be received only once.
func (l *Ledger) ReceivePurchase(ctx context.Context, actor model.Actor, purchaseID, itemID int64) (*ReceiveResult, error) {
	const op = "receive_purchase"

	var res *ReceiveResult
	err := l.run(ctx, op, func(tx *sql.Tx) error {
		p, err := store.GetPurchase(ctx, tx, purchaseID)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("%w: purchase %d", model.ErrNotFound, purchaseID)
		}
		res, err = l.receive(ctx, tx, actor, p, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}

	succeed(op, false, res.Movement)
	l.log.Info("purchase received", append(actorFields(actor),
		zap.Int64("purchase_id", purchaseID), zap.Int64("item_id", itemID),
		zap.Int("quantity", res.Purchase.QuantityPurchased))...)
	return res, nil
}

// RecordPurchase stores a new purchase and, when itemID is non-zero,
// receives it into that item in the same transaction.
func (l *Ledger) RecordPurchase(ctx context.Context, actor model.Actor, p *model.Purchase, itemID int64) (*ReceiveResult, error) {
	const op = "record_purchase"

	p.ItemName = strings.TrimSpace(p.ItemName)
	if p.Status == "" {
		p.Status = model.PurchaseStatusActive
	}
	switch {
	case p.ItemName == "":
		return nil, fmt.Errorf("%w: item_name is required", model.ErrValidation)
	case p.QuantityPurchased < 1:
		return nil, fmt.Errorf("%w: quantity_purchased must be at least 1", model.ErrValidation)
	case p.Price.IsNegative():
		return nil, fmt.Errorf("%w: price must not be negative", model.ErrValidation)
	case p.Status != model.PurchaseStatusActive && p.Status != model.PurchaseStatusInactive:
		return nil, fmt.Errorf("%w: unknown status %q", model.ErrValidation, p.Status)
	}
	if p.PurchaseDate.IsZero() {
		p.PurchaseDate = model.DateOf(l.clock())
	}
	p.CreatedBy = actor.ID()

	var res *ReceiveResult
	err := l.run(ctx, op, func(tx *sql.Tx) error {
		category, err := store.GetCategory(ctx, tx, p.CategoryID)
		if err != nil {
			return err
		}
		if category == nil {
			return fmt.Errorf("%w: category %d", model.ErrNotFound, p.CategoryID)
		}

		created, err := store.CreatePurchase(ctx, tx, p)
		if err != nil {
			return err
		}
		if itemID == 0 {
			res = &ReceiveResult{Purchase: created}
			return nil
		}
		res, err = l.receive(ctx, tx, actor, created, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}

	succeed(op, false, res.Movement)
	fields := append(actorFields(actor),
		zap.Int64("purchase_id", res.Purchase.ID), zap.String("item_name", p.ItemName),
		zap.Int("quantity", p.QuantityPurchased))
	if res.Item != nil {
		fields = append(fields, zap.Int64("item_id", res.Item.ID))
	}
	l.log.Info("purchase recorded", fields...)
	return res, nil
}

func (l *Ledger) receive(ctx context.Context, tx *sql.Tx, actor model.Actor, p *model.Purchase, itemID int64) (*ReceiveResult, error) {
	if p.Received() {
		return nil, fmt.Errorf("%w: purchase %d was already received", model.ErrValidation, p.ID)
	}
	if p.Status != model.PurchaseStatusActive {
		return nil, fmt.Errorf("%w: purchase %d is inactive", model.ErrValidation, p.ID)
	}

	item, err := loadItem(ctx, tx, itemID)
	if err != nil {
		return nil, err
	}

	now := l.clock()
	item.Quantity += p.QuantityPurchased
	item.TotalReceived += p.QuantityPurchased
	if err := saveItem(ctx, tx, item, now); err != nil {
		return nil, err
	}

	ok, err := store.MarkPurchaseReceived(ctx, tx, p.ID, item.ID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: purchase %d was already received", model.ErrValidation, p.ID)
	}

	purchaseID := p.ID
	m := &model.Movement{
		ItemID:     item.ID,
		Kind:       model.MovementIntake,
		Quantity:   p.QuantityPurchased,
		PurchaseID: &purchaseID,
		ActorID:    actor.ID(),
		CreatedAt:  now,
	}
	if err := appendMovement(ctx, tx, m); err != nil {
		return nil, err
	}

	received := *p
	received.ItemID = &item.ID
	received.ReceivedAt = &now
	received.UpdatedAt = now
	return &ReceiveResult{Purchase: &received, Item: item, Movement: m}, nil
}
