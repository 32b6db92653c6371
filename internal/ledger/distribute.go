package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/erazemk/duka/internal/model"
)

// DistributeResult is the item after a distribution. Replayed is set when
// the idempotency key had already been applied.
type DistributeResult struct {
	Item     *model.Item     `json:"item"`
	Movement *model.Movement `json:"movement"`
	Replayed bool            `json:"replayed"`
}

// Distribute moves amount units from the warehouse to a showroom and tags
// the item with that showroom. An amount of zero only retags the item.
func (l *Ledger) Distribute(ctx context.Context, actor model.Actor, itemID int64, amount int, to model.Location, key string) (*DistributeResult, error) {
	const op = "distribute"

	if amount < 0 {
		return nil, fmt.Errorf("%w: amount must not be negative", model.ErrValidation)
	}
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown destination %q", model.ErrValidation, to)
	}

	var res *DistributeResult
	err := l.run(ctx, op, func(tx *sql.Tx) error {
		prior, err := replay(ctx, tx, key, model.MovementDistribute, itemID)
		if err != nil {
			return err
		}

		item, err := loadItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if prior != nil {
			res = &DistributeResult{Item: item, Movement: prior, Replayed: true}
			return nil
		}

		if amount > item.Quantity {
			return fmt.Errorf("%w: %d requested, %d in warehouse", model.ErrInsufficientStock, amount, item.Quantity)
		}

		now := l.clock()
		item.Quantity -= amount
		item.AmountDistributed += amount
		item.Distribution = to
		if err := saveItem(ctx, tx, item, now); err != nil {
			return err
		}

		m := &model.Movement{
			ItemID:         item.ID,
			Kind:           model.MovementDistribute,
			Quantity:       amount,
			Location:       to,
			IdempotencyKey: key,
			ActorID:        actor.ID(),
			CreatedAt:      now,
		}
		if err := appendMovement(ctx, tx, m); err != nil {
			return err
		}
		res = &DistributeResult{Item: item, Movement: m}
		return nil
	})
	if err != nil {
		return nil, err
	}

	succeed(op, res.Replayed, res.Movement)
	l.log.Info("stock distributed", append(actorFields(actor),
		zap.Int64("item_id", itemID), zap.Int("amount", amount), zap.String("to", string(to)),
		zap.Int("warehouse", res.Item.Quantity), zap.Bool("replayed", res.Replayed))...)
	return res, nil
}
