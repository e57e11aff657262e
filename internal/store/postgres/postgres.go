// Package postgres is the durable Ledger Store on PostgreSQL via pgx.
// Atomic groups run as REPEATABLE READ transactions and account rows are
// locked with SELECT ... FOR UPDATE in id order.
package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/punchamoorthee/finledger/internal/domain"
	"github.com/punchamoorthee/finledger/internal/logging"
	"github.com/punchamoorthee/finledger/internal/query"
	"github.com/punchamoorthee/finledger/internal/store"
)

//go:embed schema.sql
var schema string

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool   *pgxpool.Pool
	logger *logging.Logger
}

var _ store.Store = (*Store)(nil)

// New connects to connString and verifies the connection.
func New(ctx context.Context, connString string, logger *logging.Logger) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return NewFromPool(pool, logger), nil
}

// NewFromPool wraps an existing pool. The store takes ownership of it.
func NewFromPool(pool *pgxpool.Pool, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Store{pool: pool, logger: logger.Named("postgres")}
}

// Migrate creates any missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return translate(err, "tx begin")
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && rbErr != pgx.ErrTxClosed {
			s.logger.Warn("rollback failed", zap.Error(rbErr))
		}
	}()

	if err := fn(&txn{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return translate(err, "tx commit")
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err, "account "+id)
	}
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context, ownerID string) ([]domain.Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE owner_id = $1 ORDER BY name, id`, ownerID)
	if err != nil {
		return nil, translate(err, "list accounts")
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, translate(err, "scan account")
		}
		out = append(out, *a)
	}
	return out, translate(rows.Err(), "list accounts")
}

func (s *Store) ListCategories(ctx context.Context, ownerID string) ([]domain.Category, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE owner_id = $1 ORDER BY name, id`, ownerID)
	if err != nil {
		return nil, translate(err, "list categories")
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, translate(err, "scan category")
		}
		out = append(out, *c)
	}
	return out, translate(rows.Err(), "list categories")
}

func (s *Store) GetTransactionDetail(ctx context.Context, id string) (*domain.TransactionDetail, error) {
	var r detailRow
	err := s.pool.QueryRow(ctx, `SELECT `+detailColumns+detailFrom+` WHERE t.id = $1`, id).Scan(r.dest()...)
	if err != nil {
		return nil, translate(err, "transaction "+id)
	}
	d := r.detail()
	return &d, nil
}

func (s *Store) QueryTransactions(ctx context.Context, ownerID string, p query.Params) (*query.Result, error) {
	lq := buildListQuery(ownerID, p)

	var total int
	if err := s.pool.QueryRow(ctx, lq.count, lq.args...).Scan(&total); err != nil {
		return nil, translate(err, "count transactions")
	}
	pages := query.TotalPages(total, p.Limit)
	page := query.ClampPage(p.Page, pages)

	args := append(append([]any{}, lq.args...), p.Limit, (page-1)*p.Limit)
	rows, err := s.pool.Query(ctx, lq.page, args...)
	if err != nil {
		return nil, translate(err, "query transactions")
	}
	defer rows.Close()

	items := make([]domain.TransactionDetail, 0, p.Limit)
	for rows.Next() {
		var r detailRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, translate(err, "scan transaction")
		}
		items = append(items, r.detail())
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "query transactions")
	}

	return &query.Result{
		Items:       items,
		Total:       total,
		TotalPages:  pages,
		CurrentPage: page,
		Limit:       p.Limit,
	}, nil
}

// CopyAccounts bulk-loads accounts with the COPY protocol. It is meant for
// seeding empty databases and bypasses the engine.
func (s *Store) CopyAccounts(ctx context.Context, accounts []domain.Account) (int64, error) {
	n, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"accounts"},
		[]string{"id", "owner_id", "name", "type", "balance", "initial_balance", "archived", "created_at", "updated_at"},
		pgx.CopyFromSlice(len(accounts), func(i int) ([]any, error) {
			a := accounts[i]
			return []any{a.ID, a.OwnerID, a.Name, string(a.Type), numeric(a.Balance), numeric(a.InitialBalance), a.Archived, a.CreatedAt, a.UpdatedAt}, nil
		}),
	)
	if err != nil {
		return 0, translate(err, "copy accounts")
	}
	return n, nil
}

// COPY only speaks the binary format, which needs a pgtype value rather
// than the text form decimal.Decimal produces as a driver.Valuer.
func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

// CountAccounts returns the number of stored accounts.
func (s *Store) CountAccounts(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, translate(err, "count accounts")
	}
	return n, nil
}
