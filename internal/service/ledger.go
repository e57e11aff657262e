// Package service is the Ledger Engine. Every mutation runs inside one
// store atomic group, so a transaction record and the balances it affects
// are always written together or not at all.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/punchamoorthee/finledger/internal/domain"
	"github.com/punchamoorthee/finledger/internal/logging"
	"github.com/punchamoorthee/finledger/internal/metrics"
	"github.com/punchamoorthee/finledger/internal/query"
	"github.com/punchamoorthee/finledger/internal/store"
)

type Ledger struct {
	store       store.Store
	logger      *logging.Logger
	metrics     metrics.Recorder
	now         func() time.Time
	newID       func() string
	pageSize    int
	maxPageSize int
}

type Option func(*Ledger)

func WithLogger(l *logging.Logger) Option {
	return func(lg *Ledger) { lg.logger = l.Named("ledger") }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(lg *Ledger) { lg.metrics = r }
}

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(lg *Ledger) { lg.now = now }
}

// WithPageSize sets the default and maximum listing page sizes.
func WithPageSize(def, max int) Option {
	return func(lg *Ledger) {
		lg.pageSize = def
		lg.maxPageSize = max
	}
}

func NewLedger(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:       s,
		logger:      logging.NewNoOpLogger(),
		metrics:     metrics.NoOp{},
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
		pageSize:    query.DefaultPageSize,
		maxPageSize: query.MaxPageSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// observe records the outcome of op. It is deferred with a pointer to the
// named error result.
func (l *Ledger) observe(op string, start time.Time, errp *error) {
	var err error
	if errp != nil {
		err = *errp
	}
	outcome := domain.ClassifyError(err)
	elapsed := time.Since(start)
	l.metrics.ObserveOperation(op, outcome, elapsed)

	switch outcome {
	case "ok":
		l.logger.Debug("ledger operation", zap.String("operation", op), zap.Duration("duration", elapsed))
	case "internal", "unavailable":
		l.logger.Error("ledger operation failed",
			zap.String("operation", op),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
	default:
		l.logger.Debug("ledger operation rejected",
			zap.String("operation", op),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
	}
}

// lockOwnedAccounts locks ids and fails with ErrForbidden if any of them
// belongs to someone other than ownerID.
func lockOwnedAccounts(ctx context.Context, tx store.Tx, ownerID string, ids ...string) (map[string]*domain.Account, error) {
	accounts, err := tx.LockAccounts(ctx, ids...)
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if a.OwnerID != ownerID {
			return nil, domain.Errorf(domain.ErrForbidden, "account %s belongs to another owner", a.ID)
		}
	}
	return accounts, nil
}

// assignableCategory returns a category callers may file a regular
// transaction under.
func assignableCategory(ctx context.Context, tx store.Tx, ownerID, id string) (*domain.Category, error) {
	c, err := tx.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != ownerID {
		return nil, domain.Errorf(domain.ErrForbidden, "category %s belongs to another owner", id)
	}
	if c.System {
		return nil, domain.Errorf(domain.ErrValidation, "category %q is reserved for transfers", c.Name)
	}
	if c.Archived {
		return nil, domain.Errorf(domain.ErrInvalidState, "category %s is archived", id)
	}
	return c, nil
}

func requireOwner(ownerID string) error {
	if ownerID == "" {
		return domain.Errorf(domain.ErrValidation, "owner id is required")
	}
	return nil
}
