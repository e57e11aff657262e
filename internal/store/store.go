// Package store defines the Ledger Store contract: durable persistence of
// accounts, categories and transactions with all-or-nothing write groups.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/finledger/internal/domain"
	"github.com/punchamoorthee/finledger/internal/query"
)

// Store is the entry point to persistence. Reads outside WithTx observe a
// recent committed snapshot and take no locks.
type Store interface {
	Reader

	// WithTx runs fn inside one atomic group. If fn returns an error, or the
	// commit fails, none of fn's writes are visible afterwards.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close()
}

// Reader is the lock-free read side.
type Reader interface {
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	ListAccounts(ctx context.Context, ownerID string) ([]domain.Account, error)
	ListCategories(ctx context.Context, ownerID string) ([]domain.Category, error)
	GetTransactionDetail(ctx context.Context, id string) (*domain.TransactionDetail, error)

	// QueryTransactions lists active transactions on ownerID's accounts.
	// p must be normalized.
	QueryTransactions(ctx context.Context, ownerID string, p query.Params) (*query.Result, error)
}

// Tx is the write side of one atomic group. Account rows returned by
// LockAccounts stay locked until the group ends; writers lock an account
// before touching its transactions. Missing rows yield domain.ErrNotFound.
type Tx interface {
	// LockAccounts locks the given accounts in a deterministic order and
	// returns them keyed by id.
	LockAccounts(ctx context.Context, ids ...string) (map[string]*domain.Account, error)
	InsertAccount(ctx context.Context, a *domain.Account) error
	SetAccountArchived(ctx context.Context, id string, archived bool) error
	DeleteAccount(ctx context.Context, id string) error

	// AdjustBalance adds delta to the stored balance as a single increment.
	AdjustBalance(ctx context.Context, accountID string, delta decimal.Decimal) error
	SetBalance(ctx context.Context, accountID string, balance decimal.Decimal) error

	// CountTransactions counts transactions on an account, all states or active only.
	CountTransactions(ctx context.Context, accountID string, activeOnly bool) (int, error)
	// SumActiveDeltas returns the sum of deltas of the account's active transactions.
	SumActiveDeltas(ctx context.Context, accountID string) (decimal.Decimal, error)

	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	InsertCategory(ctx context.Context, c *domain.Category) error
	// EnsureTransferCategory returns the owner's system transfer category,
	// inserting candidate if there is none yet.
	EnsureTransferCategory(ctx context.Context, candidate *domain.Category) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error
	CountCategoryTransactions(ctx context.Context, categoryID string) (int, error)

	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	InsertTransaction(ctx context.Context, t *domain.Transaction) error
	// UpdateTransaction rewrites every mutable field of t.
	UpdateTransaction(ctx context.Context, t *domain.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error

	// TransferLegs returns every transaction sharing groupID.
	TransferLegs(ctx context.Context, groupID string) ([]domain.Transaction, error)
	// LegacyTransferCandidates returns transactions on ownerID's accounts
	// without a group id that have the given amount, date and description.
	LegacyTransferCandidates(ctx context.Context, ownerID string, amount decimal.Decimal, date time.Time, description string) ([]domain.Transaction, error)

	GetIdempotencyRecord(ctx context.Context, key string) (*domain.IdempotencyRecord, error)
	PutIdempotencyRecord(ctx context.Context, rec *domain.IdempotencyRecord) error
}
