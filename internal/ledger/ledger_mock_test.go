package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/erazemk/duka/internal/metrics"
	"github.com/erazemk/duka/internal/model"
)

var itemRowColumns = []string{
	"id", "name", "category_id", "category_name", "price", "status", "image_mime",
	"quantity", "amount_distributed", "amount_sold", "total_received", "distribution", "version",
	"created_by", "created_at", "updated_at", "deleted_at",
}

func itemRow(version int64, quantity, distributed, sold int, loc string) *sqlmock.Rows {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return sqlmock.NewRows(itemRowColumns).AddRow(
		int64(7), "Tecno Spark", int64(1), "Phones", "150.00", "active", nil,
		quantity, distributed, sold, quantity+distributed+sold, loc, version,
		nil, ts, ts, nil,
	)
}

func newMockLedger(t *testing.T, opts ...Option) (*Ledger, sqlmock.Sqlmock) {
	t.Helper()
	database, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	clock := func() time.Time { return time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC) }
	return New(database, append([]Option{WithClock(clock)}, opts...)...), mock
}

var actor = model.Actor{UserID: 3, Username: "clerk"}

func TestRecordSaleRollsBackWhenMovementFails(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM items i`).WithArgs(int64(7)).
		WillReturnRows(itemRow(4, 70, 30, 0, "dar"))
	mock.ExpectExec(`UPDATE items SET quantity`).
		WithArgs(70, 10, 20, 100, model.LocationDar, sqlmock.AnyArg(), int64(7), int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO sales`).WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec(`INSERT INTO stock_movements`).WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	_, err := l.RecordSale(context.Background(), actor, sale(7, 20), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recording movement")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDistributeRetriesAfterVersionConflict(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l, mock := newMockLedger(t, WithLogger(zap.New(core)))
	before := testutil.ToFloat64(metrics.LedgerRetries.WithLabelValues("distribute"))

	// First snapshot is overtaken by another writer.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM items i`).WillReturnRows(itemRow(1, 10, 0, 0, ""))
	mock.ExpectExec(`UPDATE items SET quantity`).
		WithArgs(6, 4, 0, 10, model.LocationDodoma, sqlmock.AnyArg(), int64(7), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	// The retry sees the other writer's distribution and applies on top.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM items i`).WillReturnRows(itemRow(2, 8, 2, 0, "dar"))
	mock.ExpectExec(`UPDATE items SET quantity`).
		WithArgs(4, 6, 0, 10, model.LocationDodoma, sqlmock.AnyArg(), int64(7), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO stock_movements`).WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectCommit()

	res, err := l.Distribute(context.Background(), actor, 7, 4, model.LocationDodoma, "")
	require.NoError(t, err)
	assert.Equal(t, 4, res.Item.Quantity)
	assert.Equal(t, 6, res.Item.AmountDistributed)
	assert.Equal(t, int64(3), res.Item.Version)
	assert.Equal(t, int64(5), res.Movement.ID)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.LedgerRetries.WithLabelValues("distribute")))
	assert.Equal(t, 1, logs.FilterMessage("retrying ledger operation").Len())
	require.Equal(t, 1, logs.FilterMessage("stock distributed").Len())
	fields := logs.FilterMessage("stock distributed").All()[0].ContextMap()
	assert.Equal(t, "clerk", fields["user"])
}

func TestFailedCommitMovesNoUnits(t *testing.T) {
	l, mock := newMockLedger(t)
	units := metrics.UnitsMoved.WithLabelValues(string(model.MovementDistribute))
	before := testutil.ToFloat64(units)
	failed := testutil.ToFloat64(metrics.LedgerOperations.WithLabelValues("distribute", "error"))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM items i`).WillReturnRows(itemRow(1, 10, 0, 0, ""))
	mock.ExpectExec(`UPDATE items SET quantity`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO stock_movements`).WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

	_, err := l.Distribute(context.Background(), actor, 7, 4, model.LocationDar, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "committing transaction")
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, before, testutil.ToFloat64(units))
	assert.Equal(t, failed+1, testutil.ToFloat64(metrics.LedgerOperations.WithLabelValues("distribute", "error")))

	// The same operation committing counts its units.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM items i`).WillReturnRows(itemRow(1, 10, 0, 0, ""))
	mock.ExpectExec(`UPDATE items SET quantity`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO stock_movements`).WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectCommit()

	_, err = l.Distribute(context.Background(), actor, 7, 4, model.LocationDar, "")
	require.NoError(t, err)
	assert.Equal(t, before+4, testutil.ToFloat64(units))
}

func TestDistributeGivesUpAfterMaxAttempts(t *testing.T) {
	l, mock := newMockLedger(t, WithMaxAttempts(2))

	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT .+ FROM items i`).WillReturnRows(itemRow(int64(i+1), 10, 0, 0, ""))
		mock.ExpectExec(`UPDATE items SET quantity`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()
	}

	_, err := l.Distribute(context.Background(), actor, 7, 1, model.LocationDar, "")
	assert.ErrorIs(t, err, model.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsufficientStockIsNotRetried(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM items i`).WillReturnRows(itemRow(1, 0, 3, 7, "dar"))
	mock.ExpectRollback()

	_, err := l.RecordSale(context.Background(), actor, sale(7, 4), "")
	assert.ErrorIs(t, err, model.ErrInsufficientStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyLookupRunsFirst(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM stock_movements WHERE idempotency_key`).WithArgs("k-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT .+ FROM items i`).WillReturnRows(itemRow(1, 10, 0, 0, ""))
	mock.ExpectExec(`UPDATE items SET quantity`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO stock_movements`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	_, err := l.Distribute(context.Background(), actor, 7, 1, model.LocationDar, "k-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
