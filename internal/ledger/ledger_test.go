package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/duka/internal/db"
	"github.com/erazemk/duka/internal/model"
	"github.com/erazemk/duka/internal/store"
)

type fixture struct {
	db       *sql.DB
	ledger   *Ledger
	actor    model.Actor
	category *model.Category
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := db.NewTestDB(t)
	ctx := context.Background()

	u, err := store.CreateUser(ctx, database, "clerk", "hash", model.RoleManager)
	require.NoError(t, err)
	c, err := store.CreateCategory(ctx, database, "Phones")
	require.NoError(t, err)

	return &fixture{db: database, ledger: New(database), actor: u.Actor(), category: c}
}

func (f *fixture) item(t *testing.T, qty int) *model.Item {
	t.Helper()
	item, err := f.ledger.CreateItem(context.Background(), f.actor, model.NewItem{
		Name:       "Tecno Spark",
		CategoryID: f.category.ID,
		Price:      decimal.RequireFromString("150.00"),
		Quantity:   qty,
	})
	require.NoError(t, err)
	return item
}

func (f *fixture) reload(t *testing.T, id int64) *model.Item {
	t.Helper()
	item, err := store.GetItem(context.Background(), f.db, id)
	require.NoError(t, err)
	require.NotNil(t, item)
	return item
}

// assertBalanced checks the stored counters against the conservation law
// and against the movement log.
func (f *fixture) assertBalanced(t *testing.T, id int64) {
	t.Helper()
	audit, err := f.ledger.Audit(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, audit.Item.Conserved(), "counters must be conserved: %+v", audit.Item)
	assert.True(t, audit.Consistent, "movement log %+v must match counters %+v", audit.Balance, audit.Item)
}

func sale(itemID int64, qty int) model.SaleInput {
	return model.SaleInput{
		ItemID:        itemID,
		Quantity:      qty,
		PaymentMethod: model.PaymentCash,
		CustomerName:  "Amina",
		PhoneNumber:   "0712345678",
	}
}

func TestDistributeAndSellScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, 100)

	res, err := f.ledger.Distribute(ctx, f.actor, item.ID, 30, model.LocationDar, "")
	require.NoError(t, err)
	assert.Equal(t, 70, res.Item.Quantity)
	assert.Equal(t, 30, res.Item.AmountDistributed)
	assert.Equal(t, model.LocationDar, res.Item.Distribution)
	f.assertBalanced(t, item.ID)

	sold, err := f.ledger.RecordSale(ctx, f.actor, sale(item.ID, 20), "")
	require.NoError(t, err)
	assert.Equal(t, 20, sold.Sale.Quantity)
	assert.Equal(t, model.LocationDar, sold.Sale.Location)
	assert.Equal(t, "3000", sold.Sale.TotalAmount.String(), "defaults to price times quantity")
	assert.Equal(t, 10, sold.Item.AmountDistributed)
	assert.Equal(t, 20, sold.Item.AmountSold)
	f.assertBalanced(t, item.ID)

	_, err = f.ledger.RecordSale(ctx, f.actor, sale(item.ID, 15), "")
	assert.ErrorIs(t, err, model.ErrInsufficientStock)

	_, err = f.ledger.Distribute(ctx, f.actor, item.ID, 150, model.LocationDar, "")
	assert.ErrorIs(t, err, model.ErrInsufficientStock)

	got := f.reload(t, item.ID)
	assert.Equal(t, 70, got.Quantity)
	assert.Equal(t, 10, got.AmountDistributed)
	assert.Equal(t, 20, got.AmountSold)
	assert.Equal(t, 100, got.TotalReceived)
	f.assertBalanced(t, item.ID)

	sales, err := store.ListSales(ctx, f.db, store.SaleFilter{ItemID: item.ID})
	require.NoError(t, err)
	assert.Len(t, sales, 1, "failed sale must not leave a row")
}

func TestDistributeValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, 5)

	tests := []struct {
		name   string
		id     int64
		amount int
		to     model.Location
		want   error
	}{
		{"negative amount", item.ID, -1, model.LocationDar, model.ErrValidation},
		{"unknown showroom", item.ID, 1, "arusha", model.ErrValidation},
		{"no destination", item.ID, 1, model.LocationNone, model.ErrValidation},
		{"missing item", item.ID + 100, 1, model.LocationDar, model.ErrNotFound},
		{"more than warehouse", item.ID, 6, model.LocationDodoma, model.ErrInsufficientStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.Distribute(ctx, f.actor, tt.id, tt.amount, tt.to, "")
			assert.ErrorIs(t, err, tt.want)
		})
	}

	got := f.reload(t, item.ID)
	assert.Equal(t, 5, got.Quantity)
	assert.Equal(t, int64(1), got.Version, "rejected operations must not write")
}

func TestDistributeZeroOnlyRetags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, 5)

	res, err := f.ledger.Distribute(ctx, f.actor, item.ID, 0, model.LocationDodoma, "")
	require.NoError(t, err)
	assert.Equal(t, 5, res.Item.Quantity)
	assert.Equal(t, 0, res.Item.AmountDistributed)
	assert.Equal(t, model.LocationDodoma, res.Item.Distribution)
	f.assertBalanced(t, item.ID)
}

func TestDistributeWholeWarehouse(t *testing.T) {
	f := newFixture(t)
	item := f.item(t, 5)

	res, err := f.ledger.Distribute(context.Background(), f.actor, item.ID, 5, model.LocationDar, "")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Item.Quantity)
	assert.Equal(t, 5, res.Item.AmountDistributed)
}

func TestRecordSaleRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	undistributed := f.item(t, 10)
	item := f.item(t, 10)
	_, err := f.ledger.Distribute(ctx, f.actor, item.ID, 4, model.LocationDar, "")
	require.NoError(t, err)

	wrongPlace := sale(item.ID, 1)
	wrongPlace.Location = model.LocationDodoma
	badMethod := sale(item.ID, 1)
	badMethod.PaymentMethod = "mpesa"
	negative := sale(item.ID, 1)
	negative.TotalAmount = decimal.NewFromInt(-1)

	tests := []struct {
		name string
		in   model.SaleInput
		want error
	}{
		{"not distributed", sale(undistributed.ID, 1), model.ErrInsufficientStock},
		{"other showroom", wrongPlace, model.ErrInsufficientStock},
		{"more than showroom", sale(item.ID, 5), model.ErrInsufficientStock},
		{"zero quantity", sale(item.ID, 0), model.ErrValidation},
		{"unknown payment method", badMethod, model.ErrValidation},
		{"negative total", negative, model.ErrValidation},
		{"missing item", sale(item.ID+100, 1), model.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.RecordSale(ctx, f.actor, tt.in, "")
			assert.ErrorIs(t, err, tt.want)
		})
	}

	got := f.reload(t, item.ID)
	assert.Equal(t, 4, got.AmountDistributed)
	assert.Equal(t, 0, got.AmountSold)
}

func TestRecordSaleExplicitTotalAndLocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, 10)
	_, err := f.ledger.Distribute(ctx, f.actor, item.ID, 10, model.LocationDodoma, "")
	require.NoError(t, err)

	in := sale(item.ID, 10)
	in.Location = model.LocationDodoma
	in.TotalAmount = decimal.RequireFromString("1400.50")
	in.PaymentMethod = model.PaymentCredit
	in.SoldAt, _ = model.ParseDate("2026-02-14")

	res, err := f.ledger.RecordSale(ctx, f.actor, in, "")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Item.AmountDistributed, "selling the whole showroom stock is allowed")

	got, err := store.GetSale(ctx, f.db, res.Sale.ID)
	require.NoError(t, err)
	assert.Equal(t, "1400.5", got.TotalAmount.String())
	assert.Equal(t, "2026-02-14", got.SoldAt.String())
	assert.Equal(t, model.PaymentCredit, got.PaymentMethod)
	assert.Equal(t, &f.actor.UserID, got.SoldBy)
}

func TestIdempotentDistribute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, 10)

	first, err := f.ledger.Distribute(ctx, f.actor, item.ID, 3, model.LocationDar, "req-1")
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := f.ledger.Distribute(ctx, f.actor, item.ID, 3, model.LocationDar, "req-1")
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Movement.ID, second.Movement.ID)
	assert.Equal(t, 7, second.Item.Quantity, "replay must not apply twice")

	_, err = f.ledger.RecordSale(ctx, f.actor, sale(item.ID, 1), "req-1")
	assert.ErrorIs(t, err, model.ErrValidation, "key belongs to a distribution")

	other := f.item(t, 10)
	_, err = f.ledger.Distribute(ctx, f.actor, other.ID, 3, model.LocationDar, "req-1")
	assert.ErrorIs(t, err, model.ErrValidation, "key belongs to another item")

	f.assertBalanced(t, item.ID)
}

func TestIdempotentSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, 10)
	_, err := f.ledger.Distribute(ctx, f.actor, item.ID, 10, model.LocationDar, "")
	require.NoError(t, err)

	first, err := f.ledger.RecordSale(ctx, f.actor, sale(item.ID, 4), "sale-1")
	require.NoError(t, err)
	second, err := f.ledger.RecordSale(ctx, f.actor, sale(item.ID, 4), "sale-1")
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Sale.ID, second.Sale.ID)
	assert.Equal(t, 6, second.Item.AmountDistributed)
	f.assertBalanced(t, item.ID)
}

func TestCorrectSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, 10)
	_, err := f.ledger.Distribute(ctx, f.actor, item.ID, 6, model.LocationDar, "")
	require.NoError(t, err)
	sold, err := f.ledger.RecordSale(ctx, f.actor, sale(item.ID, 2), "")
	require.NoError(t, err)

	correction := model.SaleCorrection{
		Quantity:      5,
		PaymentMethod: model.PaymentCredit,
		CustomerName:  "Juma",
		PhoneNumber:   "0755000000",
	}
	res, err := f.ledger.CorrectSale(ctx, f.actor, sold.Sale.ID, correction)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Sale.Quantity)
	assert.Equal(t, "750", res.Sale.TotalAmount.String())
	assert.Equal(t, 1, res.Item.AmountDistributed)
	assert.Equal(t, 5, res.Item.AmountSold)
	f.assertBalanced(t, item.ID)

	correction.Quantity = 7
	_, err = f.ledger.CorrectSale(ctx, f.actor, sold.Sale.ID, correction)
	assert.ErrorIs(t, err, model.ErrInsufficientStock)

	correction.Quantity = 1
	res, err = f.ledger.CorrectSale(ctx, f.actor, sold.Sale.ID, correction)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Item.AmountDistributed)
	assert.Equal(t, 1, res.Item.AmountSold)
	f.assertBalanced(t, item.ID)

	got, _ := store.GetSale(ctx, f.db, sold.Sale.ID)
	assert.Equal(t, "Juma", got.CustomerName)

	_, err = f.ledger.CorrectSale(ctx, f.actor, sold.Sale.ID+100, correction)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCorrectSaleAfterRetagStaysAtSaleShowroom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, 10)
	_, err := f.ledger.Distribute(ctx, f.actor, item.ID, 3, model.LocationDar, "")
	require.NoError(t, err)
	sold, err := f.ledger.RecordSale(ctx, f.actor, sale(item.ID, 1), "")
	require.NoError(t, err)
	_, err = f.ledger.Distribute(ctx, f.actor, item.ID, 5, model.LocationDodoma, "")
	require.NoError(t, err)
	before := f.reload(t, item.ID)

	_, err = f.ledger.CorrectSale(ctx, f.actor, sold.Sale.ID, model.SaleCorrection{Quantity: 6, PaymentMethod: model.PaymentCash})
	require.ErrorIs(t, err, model.ErrInsufficientStock)

	after := f.reload(t, item.ID)
	assert.Equal(t, before.AmountDistributed, after.AmountDistributed)
	assert.Equal(t, before.AmountSold, after.AmountSold)
	assert.Equal(t, before.Version, after.Version)
	got, _ := store.GetSale(ctx, f.db, sold.Sale.ID)
	assert.Equal(t, 1, got.Quantity)
	assert.Equal(t, model.LocationDar, got.Location)

	// Shrinking the sale is still allowed; the units go to the current pool.
	res, err := f.ledger.CorrectSale(ctx, f.actor, sold.Sale.ID, model.SaleCorrection{Quantity: 1, PaymentMethod: model.PaymentCredit})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCredit, res.Sale.PaymentMethod)
	f.assertBalanced(t, item.ID)
}

func TestVoidSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, 10)
	_, err := f.ledger.Distribute(ctx, f.actor, item.ID, 6, model.LocationDar, "")
	require.NoError(t, err)
	sold, err := f.ledger.RecordSale(ctx, f.actor, sale(item.ID, 6), "")
	require.NoError(t, err)

	res, err := f.ledger.VoidSale(ctx, f.actor, sold.Sale.ID)
	require.NoError(t, err)
	assert.NotNil(t, res.Sale.VoidedAt)
	assert.Equal(t, 6, res.Item.AmountDistributed)
	assert.Equal(t, 0, res.Item.AmountSold)
	f.assertBalanced(t, item.ID)

	_, err = f.ledger.VoidSale(ctx, f.actor, sold.Sale.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.ledger.CorrectSale(ctx, f.actor, sold.Sale.ID, model.SaleCorrection{Quantity: 1, PaymentMethod: model.PaymentCash})
	assert.ErrorIs(t, err, model.ErrNotFound, "voided sales cannot be corrected")

	sales, _ := store.ListSales(ctx, f.db, store.SaleFilter{})
	assert.Empty(t, sales)
}

func TestReceivePurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, 0)

	recorded, err := f.ledger.RecordPurchase(ctx, f.actor, &model.Purchase{
		ItemName:          "Tecno Spark",
		CategoryID:        f.category.ID,
		QuantityPurchased: 40,
		Price:             decimal.RequireFromString("100"),
	}, 0)
	require.NoError(t, err)
	assert.Nil(t, recorded.Item)
	assert.False(t, recorded.Purchase.Received())
	assert.False(t, recorded.Purchase.PurchaseDate.IsZero(), "date defaults to today")

	res, err := f.ledger.ReceivePurchase(ctx, f.actor, recorded.Purchase.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, res.Item.Quantity)
	assert.Equal(t, 40, res.Item.TotalReceived)
	assert.True(t, res.Purchase.Received())
	f.assertBalanced(t, item.ID)

	_, err = f.ledger.ReceivePurchase(ctx, f.actor, recorded.Purchase.ID, item.ID)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = f.ledger.ReceivePurchase(ctx, f.actor, recorded.Purchase.ID+100, item.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	movements, err := store.ListMovements(ctx, f.db, item.ID, store.Page{})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, recorded.Purchase.ID, *movements[0].PurchaseID)
}

func TestRecordPurchaseIntoItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, 5)

	res, err := f.ledger.RecordPurchase(ctx, f.actor, &model.Purchase{
		ItemName:          "Tecno Spark",
		CategoryID:        f.category.ID,
		QuantityPurchased: 10,
	}, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, res.Item.Quantity)
	assert.Equal(t, item.ID, *res.Purchase.ItemID)
	f.assertBalanced(t, item.ID)

	_, err = f.ledger.RecordPurchase(ctx, f.actor, &model.Purchase{
		ItemName:          "Ghost",
		CategoryID:        f.category.ID,
		QuantityPurchased: 10,
	}, item.ID+100)
	assert.ErrorIs(t, err, model.ErrNotFound)

	n, err := store.CountPurchases(ctx, f.db, store.PurchaseFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "failed receive must roll back the purchase row")
}

func TestCreateItemValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.CreateItem(ctx, f.actor, model.NewItem{Name: " ", CategoryID: f.category.ID})
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = f.ledger.CreateItem(ctx, f.actor, model.NewItem{Name: "X", CategoryID: f.category.ID, Quantity: -1})
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = f.ledger.CreateItem(ctx, f.actor, model.NewItem{Name: "X", CategoryID: f.category.ID + 100})
	assert.ErrorIs(t, err, model.ErrNotFound)

	item := f.item(t, 0)
	movements, err := store.ListMovements(ctx, f.db, item.ID, store.Page{})
	require.NoError(t, err)
	assert.Empty(t, movements, "an empty opening stock records no intake")
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, 10)
	_, err := f.ledger.Distribute(ctx, f.actor, item.ID, 10, model.LocationDar, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.ledger.RecordSale(ctx, f.actor, sale(item.ID, 6), "")
		}(i)
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, model.ErrInsufficientStock):
			short++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)

	got := f.reload(t, item.ID)
	assert.Equal(t, 4, got.AmountDistributed)
	assert.Equal(t, 6, got.AmountSold)
	f.assertBalanced(t, item.ID)
}

func TestConcurrentMixedOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, 50)
	_, err := f.ledger.Distribute(ctx, f.actor, item.ID, 20, model.LocationDar, "")
	require.NoError(t, err)

	const workers = 30
	var wg sync.WaitGroup
	var mu sync.Mutex
	sold := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%3 == 0 {
				_, err := f.ledger.Distribute(ctx, f.actor, item.ID, 1, model.LocationDar, fmt.Sprintf("d-%d", i))
				assert.NoError(t, err)
				return
			}
			if _, err := f.ledger.RecordSale(ctx, f.actor, sale(item.ID, 1), ""); err == nil {
				mu.Lock()
				sold++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, model.ErrInsufficientStock)
			}
		}(i)
	}
	wg.Wait()

	got := f.reload(t, item.ID)
	assert.Equal(t, sold, got.AmountSold)
	assert.Equal(t, 20, got.Quantity)
	f.assertBalanced(t, item.ID)
}
