// Package ledger owns every change to item stock.
//
// Each operation runs in one IMMEDIATE SQLite transaction: it re-reads the
// item, checks its preconditions against that snapshot, writes the new
// counters guarded by the row version and appends an immutable movement.
// A lost version race restarts the attempt from a fresh snapshot; any other
// failure rolls the transaction back and is returned unchanged.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erazemk/duka/internal/metrics"
	"github.com/erazemk/duka/internal/model"
	"github.com/erazemk/duka/internal/store"
)

// DefaultMaxAttempts bounds how often an operation is retried after losing
// a version race.
const DefaultMaxAttempts = 5

// errStale marks an attempt whose item snapshot was overtaken by another
// writer. It never leaves the package.
var errStale = errors.New("stale item version")

// Ledger applies stock operations.
type Ledger struct {
	db          *sql.DB
	log         *zap.Logger
	maxAttempts int
	now         func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger used for operation events.
func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// WithMaxAttempts sets the retry bound for version conflicts.
func WithMaxAttempts(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a Ledger over db.
func New(db *sql.DB, opts ...Option) *Ledger {
	l := &Ledger{
		db:          db,
		log:         zap.NewNop(),
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// run executes fn in a transaction, retrying from scratch while fn reports
// errStale. fn must not keep state between attempts.
func (l *Ledger) run(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	for attempt := 1; ; attempt++ {
		err := l.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errStale) {
			metrics.LedgerOperations.WithLabelValues(op, outcome(err)).Inc()
			return err
		}
		if attempt >= l.maxAttempts {
			metrics.LedgerOperations.WithLabelValues(op, "conflict").Inc()
			l.log.Warn("ledger operation gave up after version conflicts",
				zap.String("operation", op), zap.Int("attempts", attempt))
			return fmt.Errorf("%w: item changed concurrently, try again", model.ErrConflict)
		}
		metrics.LedgerRetries.WithLabelValues(op).Inc()
		l.log.Debug("retrying ledger operation", zap.String("operation", op), zap.Int("attempt", attempt))
	}
}

func (l *Ledger) attempt(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// succeed records a committed operation and the units its movements moved.
// A replay moved nothing. Nil movements are skipped.
func succeed(op string, replayed bool, moved ...*model.Movement) {
	if replayed {
		metrics.LedgerOperations.WithLabelValues(op, "replayed").Inc()
		return
	}
	metrics.LedgerOperations.WithLabelValues(op, "ok").Inc()
	for _, m := range moved {
		if m == nil {
			continue
		}
		units := m.Quantity
		if units < 0 {
			units = -units
		}
		metrics.UnitsMoved.WithLabelValues(string(m.Kind)).Add(float64(units))
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrValidation):
		return "validation"
	case errors.Is(err, model.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, model.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

// loadItem reads the live item inside tx.
func loadItem(ctx context.Context, tx *sql.Tx, id int64) (*model.Item, error) {
	item, err := store.GetItem(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: item %d", model.ErrNotFound, id)
	}
	return item, nil
}

// saveItem writes item's counters if its version is still current, and
// advances item.Version to match the row.
func saveItem(ctx context.Context, tx *sql.Tx, item *model.Item, now time.Time) error {
	ok, err := store.UpdateItemStock(ctx, tx, item, now)
	if err != nil {
		return err
	}
	if !ok {
		return errStale
	}
	item.Version++
	item.UpdatedAt = now
	return nil
}

// appendMovement records m in the item's movement log.
func appendMovement(ctx context.Context, tx *sql.Tx, m *model.Movement) error {
	return store.InsertMovement(ctx, tx, m)
}

// replay looks up a movement previously recorded under key. It returns nil
// when the key is unused, and a validation error when the key belongs to a
// different operation or item.
func replay(ctx context.Context, tx *sql.Tx, key string, kind model.MovementKind, itemID int64) (*model.Movement, error) {
	if key == "" {
		return nil, nil
	}
	m, err := store.GetMovementByKey(ctx, tx, key)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}
	if m.Kind != kind || (itemID != 0 && m.ItemID != itemID) {
		return nil, fmt.Errorf("%w: idempotency key %q was used for a different operation", model.ErrValidation, key)
	}
	return m, nil
}

func (l *Ledger) clock() time.Time {
	return l.now().UTC()
}

func actorFields(actor model.Actor) []zap.Field {
	return []zap.Field{zap.Int64("user_id", actor.UserID), zap.String("user", actor.Username)}
}
