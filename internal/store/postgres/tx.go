package postgres

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/finledger/internal/domain"
)

// txn implements store.Tx over one pgx transaction.
type txn struct {
	q querier
}

// LockAccounts acquires row locks one account at a time in ascending id
// order, so two groups touching the same accounts cannot deadlock.
func (t *txn) LockAccounts(ctx context.Context, ids ...string) (map[string]*domain.Account, error) {
	ordered := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			ordered = append(ordered, id)
		}
	}
	sort.Strings(ordered)

	out := make(map[string]*domain.Account, len(ordered))
	for _, id := range ordered {
		a, err := scanAccount(t.q.QueryRow(ctx,
			`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return nil, translate(err, "account "+id)
		}
		out[id] = a
	}
	return out, nil
}

func (t *txn) InsertAccount(ctx context.Context, a *domain.Account) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.OwnerID, a.Name, string(a.Type), a.Balance, a.InitialBalance, a.Archived, a.CreatedAt, a.UpdatedAt)
	return translate(err, "insert account")
}

func (t *txn) SetAccountArchived(ctx context.Context, id string, archived bool) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE accounts SET archived = $1, updated_at = now() WHERE id = $2`, archived, id)
	if err != nil {
		return translate(err, "archive account")
	}
	return notFoundIfNone(tag, "account "+id)
}

func (t *txn) DeleteAccount(ctx context.Context, id string) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return translate(err, "delete account "+id)
	}
	return notFoundIfNone(tag, "account "+id)
}

func (t *txn) AdjustBalance(ctx context.Context, accountID string, delta decimal.Decimal) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE accounts SET balance = balance + $1, updated_at = now() WHERE id = $2`, delta, accountID)
	if err != nil {
		return translate(err, "adjust balance")
	}
	return notFoundIfNone(tag, "account "+accountID)
}

func (t *txn) SetBalance(ctx context.Context, accountID string, balance decimal.Decimal) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE accounts SET balance = $1, updated_at = now() WHERE id = $2`, balance, accountID)
	if err != nil {
		return translate(err, "set balance")
	}
	return notFoundIfNone(tag, "account "+accountID)
}

func (t *txn) CountTransactions(ctx context.Context, accountID string, activeOnly bool) (int, error) {
	var n int
	err := t.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE account_id = $1 AND (NOT $2 OR state = 'active')`,
		accountID, activeOnly).Scan(&n)
	return n, translate(err, "count transactions")
}

func (t *txn) SumActiveDeltas(ctx context.Context, accountID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := t.q.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN type = 'income' THEN amount ELSE -amount END), 0)
		FROM transactions WHERE account_id = $1 AND state = 'active'`,
		accountID).Scan(&sum)
	return sum, translate(err, "sum deltas")
}

func (t *txn) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	c, err := scanCategory(t.q.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err, "category "+id)
	}
	return c, nil
}

func (t *txn) InsertCategory(ctx context.Context, c *domain.Category) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO categories (`+categoryColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.OwnerID, c.Name, c.Color, c.Icon, c.Archived, c.System, c.CreatedAt)
	return translate(err, "insert category")
}

func (t *txn) EnsureTransferCategory(ctx context.Context, candidate *domain.Category) (*domain.Category, error) {
	_, err := t.q.Exec(ctx, `
		INSERT INTO categories (`+categoryColumns+`) VALUES ($1, $2, $3, $4, $5, FALSE, TRUE, $6)
		ON CONFLICT (owner_id) WHERE system DO NOTHING`,
		candidate.ID, candidate.OwnerID, candidate.Name, candidate.Color, candidate.Icon, candidate.CreatedAt)
	if err != nil {
		return nil, translate(err, "ensure transfer category")
	}
	c, err := scanCategory(t.q.QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE owner_id = $1 AND system`, candidate.OwnerID))
	if err != nil {
		return nil, translate(err, "transfer category")
	}
	return c, nil
}

func (t *txn) DeleteCategory(ctx context.Context, id string) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return translate(err, "delete category "+id)
	}
	return notFoundIfNone(tag, "category "+id)
}

func (t *txn) CountCategoryTransactions(ctx context.Context, categoryID string) (int, error) {
	var n int
	err := t.q.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE category_id = $1`, categoryID).Scan(&n)
	return n, translate(err, "count category transactions")
}

// GetTransaction takes no row lock. Every write to a transaction first locks
// its account, and REPEATABLE READ rejects an update of a row changed since
// the snapshot with a serialization failure.
func (t *txn) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	var r txRow
	err := t.q.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions t WHERE t.id = $1`, id).Scan(r.dest()...)
	if err != nil {
		return nil, translate(err, "transaction "+id)
	}
	tr := r.transaction()
	return &tr, nil
}

func (t *txn) InsertTransaction(ctx context.Context, tr *domain.Transaction) error {
	group, direction := transferColumns(tr)
	err := t.q.QueryRow(ctx, `
		INSERT INTO transactions (id, account_id, category_id, type, amount, description, date,
			state, transfer_group_id, transfer_direction, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING seq`,
		tr.ID, tr.AccountID, tr.CategoryID, string(tr.Type), tr.Amount, tr.Description, tr.Date,
		string(tr.State), group, direction, tr.CreatedAt, tr.UpdatedAt,
	).Scan(&tr.Seq)
	return translate(err, "insert transaction")
}

func (t *txn) UpdateTransaction(ctx context.Context, tr *domain.Transaction) error {
	group, direction := transferColumns(tr)
	tag, err := t.q.Exec(ctx, `
		UPDATE transactions SET account_id = $2, category_id = $3, type = $4, amount = $5,
			description = $6, date = $7, state = $8, transfer_group_id = $9, transfer_direction = $10,
			updated_at = $11
		WHERE id = $1`,
		tr.ID, tr.AccountID, tr.CategoryID, string(tr.Type), tr.Amount,
		tr.Description, tr.Date, string(tr.State), group, direction, tr.UpdatedAt)
	if err != nil {
		return translate(err, "update transaction")
	}
	return notFoundIfNone(tag, "transaction "+tr.ID)
}

func (t *txn) DeleteTransaction(ctx context.Context, id string) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return translate(err, "delete transaction")
	}
	return notFoundIfNone(tag, "transaction "+id)
}

func (t *txn) TransferLegs(ctx context.Context, groupID string) ([]domain.Transaction, error) {
	return t.transactions(ctx, "transfer legs",
		`SELECT `+transactionColumns+` FROM transactions t WHERE t.transfer_group_id = $1 ORDER BY t.seq`,
		groupID)
}

func (t *txn) LegacyTransferCandidates(ctx context.Context, ownerID string, amount decimal.Decimal, date time.Time, description string) ([]domain.Transaction, error) {
	return t.transactions(ctx, "legacy transfer candidates", `
		SELECT `+transactionColumns+` FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		WHERE a.owner_id = $1 AND t.transfer_group_id IS NULL
			AND t.amount = $2 AND t.date = $3 AND t.description = $4
		ORDER BY t.seq`,
		ownerID, amount, date, description)
}

func (t *txn) transactions(ctx context.Context, what, sql string, args ...any) ([]domain.Transaction, error) {
	rows, err := t.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, translate(err, what)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var r txRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, translate(err, what)
		}
		out = append(out, r.transaction())
	}
	return out, translate(rows.Err(), what)
}

func (t *txn) GetIdempotencyRecord(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	var rec domain.IdempotencyRecord
	err := t.q.QueryRow(ctx,
		`SELECT key, operation, request_hash, response_body, created_at FROM idempotency_keys WHERE key = $1`,
		key).Scan(&rec.Key, &rec.Operation, &rec.RequestHash, &rec.Response, &rec.CreatedAt)
	if err != nil {
		return nil, translate(err, "idempotency key "+key)
	}
	return &rec, nil
}

func (t *txn) PutIdempotencyRecord(ctx context.Context, rec *domain.IdempotencyRecord) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO idempotency_keys (key, operation, request_hash, response_body, created_at) VALUES ($1, $2, $3, $4, $5)`,
		rec.Key, rec.Operation, rec.RequestHash, []byte(rec.Response), rec.CreatedAt)
	return translate(err, "store idempotency key")
}
