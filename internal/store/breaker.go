package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/punchamoorthee/finledger/internal/domain"
	"github.com/punchamoorthee/finledger/internal/logging"
	"github.com/punchamoorthee/finledger/internal/query"
)

// BreakerConfig controls when the store circuit opens.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive infrastructure failures that
	// opens the circuit.
	MaxFailures uint32
	// OpenTimeout is how long the circuit stays open before probing again.
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of probes allowed while half-open.
	HalfOpenRequests uint32
}

// DefaultBreakerConfig returns the production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures:      5,
		OpenTimeout:      30 * time.Second,
		HalfOpenRequests: 1,
	}
}

// BreakerStore fails fast with domain.ErrUnavailable while the underlying
// store keeps failing. Business rejections count as successes.
type BreakerStore struct {
	inner  Store
	cb     *gobreaker.CircuitBreaker
	logger *logging.Logger
}

// NewBreakerStore wraps inner with a circuit breaker.
func NewBreakerStore(inner Store, cfg BreakerConfig, logger *logging.Logger) *BreakerStore {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	logger = logger.Named("store-breaker")

	settings := gobreaker.Settings{
		Name:        "ledger-store",
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || domain.IsBusinessError(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &BreakerStore{
		inner:  inner,
		cb:     gobreaker.NewCircuitBreaker(settings),
		logger: logger,
	}
}

// State reports the current circuit state.
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func execute[T any](b *BreakerStore, fn func() (T, error)) (T, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

func (b *BreakerStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	_, err := execute(b, func() (struct{}, error) {
		return struct{}{}, b.inner.WithTx(ctx, fn)
	})
	return err
}

func (b *BreakerStore) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return execute(b, func() (*domain.Account, error) { return b.inner.GetAccount(ctx, id) })
}

func (b *BreakerStore) ListAccounts(ctx context.Context, ownerID string) ([]domain.Account, error) {
	return execute(b, func() ([]domain.Account, error) { return b.inner.ListAccounts(ctx, ownerID) })
}

func (b *BreakerStore) ListCategories(ctx context.Context, ownerID string) ([]domain.Category, error) {
	return execute(b, func() ([]domain.Category, error) { return b.inner.ListCategories(ctx, ownerID) })
}

func (b *BreakerStore) GetTransactionDetail(ctx context.Context, id string) (*domain.TransactionDetail, error) {
	return execute(b, func() (*domain.TransactionDetail, error) { return b.inner.GetTransactionDetail(ctx, id) })
}

func (b *BreakerStore) QueryTransactions(ctx context.Context, ownerID string, p query.Params) (*query.Result, error) {
	return execute(b, func() (*query.Result, error) { return b.inner.QueryTransactions(ctx, ownerID, p) })
}

func (b *BreakerStore) Close() {
	b.inner.Close()
}
