package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erazemk/duka/internal/model"
	"github.com/erazemk/duka/internal/store"
)

// SaleResult is a sale together with the item it drew from.
type SaleResult struct {
	Sale     *model.Sale     `json:"sale"`
	Item     *model.Item     `json:"item"`
	Replayed bool            `json:"replayed"`
	Movement *model.Movement `json:"-"`
}

func validateSaleFields(quantity int, total decimal.Decimal, method string) error {
	switch {
	case quantity < 1:
		return fmt.Errorf("%w: quantity must be at least 1", model.ErrValidation)
	case total.IsNegative():
		return fmt.Errorf("%w: total_amount must not be negative", model.ErrValidation)
	case !model.ValidPaymentMethod(method):
		return fmt.Errorf("%w: payment_method must be cash or credit", model.ErrValidation)
	}
	return nil
}

// RecordSale sells units held at the item's showroom. If in.Location is set
// it must be the showroom currently holding the item.
func (l *Ledger) RecordSale(ctx context.Context, actor model.Actor, in model.SaleInput, key string) (*SaleResult, error) {
	const op = "record_sale"

	if err := validateSaleFields(in.Quantity, in.TotalAmount, in.PaymentMethod); err != nil {
		return nil, err
	}
	if in.Location != model.LocationNone && !in.Location.Valid() {
		return nil, fmt.Errorf("%w: unknown location %q", model.ErrValidation, in.Location)
	}

	var res *SaleResult
	err := l.run(ctx, op, func(tx *sql.Tx) error {
		prior, err := replay(ctx, tx, key, model.MovementSale, in.ItemID)
		if err != nil {
			return err
		}
		if prior != nil {
			return replaySale(ctx, tx, prior, &res)
		}

		item, err := loadItem(ctx, tx, in.ItemID)
		if err != nil {
			return err
		}

		switch {
		case item.Distribution == model.LocationNone:
			return fmt.Errorf("%w: item %d has not been distributed", model.ErrInsufficientStock, item.ID)
		case in.Location != model.LocationNone && in.Location != item.Distribution:
			return fmt.Errorf("%w: item %d is not stocked at %s", model.ErrInsufficientStock, item.ID, in.Location.DisplayName())
		case in.Quantity > item.AmountDistributed:
			return fmt.Errorf("%w: %d requested, %d at %s", model.ErrInsufficientStock,
				in.Quantity, item.AmountDistributed, item.Distribution.DisplayName())
		}

		now := l.clock()
		item.AmountDistributed -= in.Quantity
		item.AmountSold += in.Quantity
		if err := saveItem(ctx, tx, item, now); err != nil {
			return err
		}

		sale := &model.Sale{
			ItemID:        item.ID,
			ItemName:      item.Name,
			Quantity:      in.Quantity,
			Location:      item.Distribution,
			TotalAmount:   in.TotalAmount,
			PaymentMethod: in.PaymentMethod,
			CustomerName:  strings.TrimSpace(in.CustomerName),
			PhoneNumber:   strings.TrimSpace(in.PhoneNumber),
			SoldAt:        in.SoldAt,
			SoldBy:        actor.ID(),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if sale.TotalAmount.IsZero() {
			sale.TotalAmount = item.Price.Mul(decimal.NewFromInt(int64(in.Quantity)))
		}
		if sale.SoldAt.IsZero() {
			sale.SoldAt = model.DateOf(now)
		}
		if err := store.InsertSale(ctx, tx, sale); err != nil {
			return err
		}

		m := &model.Movement{
			ItemID:         item.ID,
			Kind:           model.MovementSale,
			Quantity:       in.Quantity,
			Location:       sale.Location,
			SaleID:         &sale.ID,
			IdempotencyKey: key,
			ActorID:        actor.ID(),
			CreatedAt:      now,
		}
		if err := appendMovement(ctx, tx, m); err != nil {
			return err
		}
		res = &SaleResult{Sale: sale, Item: item, Movement: m}
		return nil
	})
	if err != nil {
		return nil, err
	}

	succeed(op, res.Replayed, res.Movement)
	l.log.Info("sale recorded", append(actorFields(actor),
		zap.Int64("sale_id", res.Sale.ID), zap.Int64("item_id", res.Sale.ItemID),
		zap.Int("quantity", res.Sale.Quantity), zap.String("location", string(res.Sale.Location)),
		zap.Stringer("total", res.Sale.TotalAmount), zap.Bool("replayed", res.Replayed))...)
	return res, nil
}

func replaySale(ctx context.Context, tx *sql.Tx, prior *model.Movement, res **SaleResult) error {
	if prior.SaleID == nil {
		return fmt.Errorf("sale movement %d has no sale", prior.ID)
	}
	sale, err := store.GetSale(ctx, tx, *prior.SaleID)
	if err != nil {
		return err
	}
	if sale == nil {
		return fmt.Errorf("%w: sale %d", model.ErrNotFound, *prior.SaleID)
	}
	item, err := store.GetItem(ctx, tx, sale.ItemID)
	if err != nil {
		return err
	}
	*res = &SaleResult{Sale: sale, Item: item, Movement: prior, Replayed: true}
	return nil
}

// CorrectSale replaces the editable fields of a sale. A quantity change is
// checked against the units still at the showroom and booked as a signed
// correction.
func (l *Ledger) CorrectSale(ctx context.Context, actor model.Actor, saleID int64, c model.SaleCorrection) (*SaleResult, error) {
	const op = "correct_sale"

	if err := validateSaleFields(c.Quantity, c.TotalAmount, c.PaymentMethod); err != nil {
		return nil, err
	}

	var res *SaleResult
	var delta int
	err := l.run(ctx, op, func(tx *sql.Tx) error {
		sale, err := loadLiveSale(ctx, tx, saleID)
		if err != nil {
			return err
		}
		item, err := loadItem(ctx, tx, sale.ItemID)
		if err != nil {
			return err
		}

		delta = c.Quantity - sale.Quantity
		if delta > 0 && item.Distribution != sale.Location {
			return fmt.Errorf("%w: item %d is not stocked at %s", model.ErrInsufficientStock, item.ID, sale.Location.DisplayName())
		}
		if delta > item.AmountDistributed {
			return fmt.Errorf("%w: %d more requested, %d at %s", model.ErrInsufficientStock,
				delta, item.AmountDistributed, item.Distribution.DisplayName())
		}

		now := l.clock()
		var m *model.Movement
		if delta != 0 {
			item.AmountDistributed -= delta
			item.AmountSold += delta
			if err := saveItem(ctx, tx, item, now); err != nil {
				return err
			}
			m = &model.Movement{
				ItemID:    item.ID,
				Kind:      model.MovementSaleCorrection,
				Quantity:  delta,
				Location:  sale.Location,
				SaleID:    &sale.ID,
				ActorID:   actor.ID(),
				CreatedAt: now,
			}
			if err := appendMovement(ctx, tx, m); err != nil {
				return err
			}
		}

		sale.Quantity = c.Quantity
		sale.TotalAmount = c.TotalAmount
		if sale.TotalAmount.IsZero() {
			sale.TotalAmount = item.Price.Mul(decimal.NewFromInt(int64(c.Quantity)))
		}
		sale.PaymentMethod = c.PaymentMethod
		sale.CustomerName = strings.TrimSpace(c.CustomerName)
		sale.PhoneNumber = strings.TrimSpace(c.PhoneNumber)
		if !c.SoldAt.IsZero() {
			sale.SoldAt = c.SoldAt
		}
		sale.UpdatedAt = now
		if err := store.UpdateSale(ctx, tx, sale); err != nil {
			return err
		}

		res = &SaleResult{Sale: sale, Item: item, Movement: m}
		return nil
	})
	if err != nil {
		return nil, err
	}

	succeed(op, false, res.Movement)
	l.log.Info("sale corrected", append(actorFields(actor),
		zap.Int64("sale_id", saleID), zap.Int("quantity", res.Sale.Quantity), zap.Int("delta", delta))...)
	return res, nil
}

// VoidSale cancels a sale and returns its units to the item's showroom
// stock. The sale row is kept, stamped as voided.
func (l *Ledger) VoidSale(ctx context.Context, actor model.Actor, saleID int64) (*SaleResult, error) {
	const op = "void_sale"

	var res *SaleResult
	err := l.run(ctx, op, func(tx *sql.Tx) error {
		sale, err := loadLiveSale(ctx, tx, saleID)
		if err != nil {
			return err
		}
		item, err := loadItem(ctx, tx, sale.ItemID)
		if err != nil {
			return err
		}

		now := l.clock()
		item.AmountDistributed += sale.Quantity
		item.AmountSold -= sale.Quantity
		if item.Distribution == model.LocationNone {
			item.Distribution = sale.Location
		}
		if err := saveItem(ctx, tx, item, now); err != nil {
			return err
		}
		if err := store.MarkSaleVoided(ctx, tx, sale.ID, now); err != nil {
			return err
		}

		m := &model.Movement{
			ItemID:    item.ID,
			Kind:      model.MovementSaleVoid,
			Quantity:  sale.Quantity,
			Location:  sale.Location,
			SaleID:    &sale.ID,
			ActorID:   actor.ID(),
			CreatedAt: now,
		}
		if err := appendMovement(ctx, tx, m); err != nil {
			return err
		}

		sale.VoidedAt = &now
		sale.UpdatedAt = now
		res = &SaleResult{Sale: sale, Item: item, Movement: m}
		return nil
	})
	if err != nil {
		return nil, err
	}

	succeed(op, false, res.Movement)
	l.log.Info("sale voided", append(actorFields(actor),
		zap.Int64("sale_id", saleID), zap.Int64("item_id", res.Item.ID), zap.Int("quantity", res.Sale.Quantity))...)
	return res, nil
}

func loadLiveSale(ctx context.Context, tx *sql.Tx, id int64) (*model.Sale, error) {
	sale, err := store.GetSale(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if sale == nil || sale.VoidedAt != nil {
		return nil, fmt.Errorf("%w: sale %d", model.ErrNotFound, id)
	}
	return sale, nil
}
