// Package memory is an in-process Ledger Store. Each atomic group works on
// a private copy of the data that replaces the committed copy only when the
// group succeeds, so a failed group leaves nothing behind.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/finledger/internal/domain"
	"github.com/punchamoorthee/finledger/internal/query"
	"github.com/punchamoorthee/finledger/internal/store"
)

// FaultFunc is consulted before every write inside a group. A non-nil
// return aborts the write with that error.
type FaultFunc func(op string) error

type data struct {
	accounts     map[string]domain.Account
	categories   map[string]domain.Category
	transactions map[string]domain.Transaction
	idempotency  map[string]domain.IdempotencyRecord
	seq          int64
}

func newData() *data {
	return &data{
		accounts:     make(map[string]domain.Account),
		categories:   make(map[string]domain.Category),
		transactions: make(map[string]domain.Transaction),
		idempotency:  make(map[string]domain.IdempotencyRecord),
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.accounts {
		c.accounts[k] = v
	}
	for k, v := range d.categories {
		c.categories[k] = v
	}
	for k, v := range d.transactions {
		c.transactions[k] = v.Clone()
	}
	for k, v := range d.idempotency {
		c.idempotency[k] = v
	}
	c.seq = d.seq
	return c
}

// Store is safe for concurrent use. Atomic groups are fully serialized.
type Store struct {
	mu    sync.RWMutex
	txMu  sync.Mutex
	data  *data
	fault FaultFunc
}

var _ store.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{data: newData()}
}

// SetFault installs f for subsequent groups; nil removes it.
func (s *Store) SetFault(f FaultFunc) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.fault = f
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.data.clone()
	s.mu.RUnlock()

	if err := fn(&tx{data: work, fault: s.fault}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = work
	s.mu.Unlock()
	return nil
}

func (s *Store) Close() {}

func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.data.accounts[id]
	if !ok {
		return nil, domain.Errorf(domain.ErrNotFound, "account %s", id)
	}
	return &a, nil
}

func (s *Store) ListAccounts(ctx context.Context, ownerID string) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Account
	for _, a := range s.data.accounts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ListCategories(ctx context.Context, ownerID string) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Category
	for _, c := range s.data.categories {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetTransactionDetail(ctx context.Context, id string) (*domain.TransactionDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.data.transactions[id]
	if !ok {
		return nil, domain.Errorf(domain.ErrNotFound, "transaction %s", id)
	}
	d := s.data.detail(t)
	return &d, nil
}

func (s *Store) QueryTransactions(ctx context.Context, ownerID string, p query.Params) (*query.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var visible []domain.TransactionDetail
	for _, t := range s.data.transactions {
		if t.Archived() {
			continue
		}
		a, ok := s.data.accounts[t.AccountID]
		if !ok || a.OwnerID != ownerID {
			continue
		}
		visible = append(visible, s.data.detail(t))
	}
	// map iteration order is random; the query sort breaks ties by Seq.
	sort.Slice(visible, func(i, j int) bool { return visible[i].Seq < visible[j].Seq })

	r := query.Apply(visible, p)
	return &r, nil
}

func (d *data) detail(t domain.Transaction) domain.TransactionDetail {
	return domain.NewTransactionDetail(t.Clone(), d.accounts[t.AccountID], d.categories[t.CategoryID])
}

type tx struct {
	data  *data
	fault FaultFunc
}

func (t *tx) write(op string) error {
	if t.fault == nil {
		return nil
	}
	return t.fault(op)
}

func (t *tx) LockAccounts(ctx context.Context, ids ...string) (map[string]*domain.Account, error) {
	out := make(map[string]*domain.Account, len(ids))
	for _, id := range ids {
		a, ok := t.data.accounts[id]
		if !ok {
			return nil, domain.Errorf(domain.ErrNotFound, "account %s", id)
		}
		out[id] = &a
	}
	return out, nil
}

func (t *tx) InsertAccount(ctx context.Context, a *domain.Account) error {
	if err := t.write("insert_account"); err != nil {
		return err
	}
	if _, exists := t.data.accounts[a.ID]; exists {
		return domain.Errorf(domain.ErrConflict, "account %s already exists", a.ID)
	}
	t.data.accounts[a.ID] = *a
	return nil
}

func (t *tx) SetAccountArchived(ctx context.Context, id string, archived bool) error {
	if err := t.write("set_account_archived"); err != nil {
		return err
	}
	a, ok := t.data.accounts[id]
	if !ok {
		return domain.Errorf(domain.ErrNotFound, "account %s", id)
	}
	a.Archived = archived
	a.UpdatedAt = time.Now().UTC()
	t.data.accounts[id] = a
	return nil
}

func (t *tx) DeleteAccount(ctx context.Context, id string) error {
	if err := t.write("delete_account"); err != nil {
		return err
	}
	if _, ok := t.data.accounts[id]; !ok {
		return domain.Errorf(domain.ErrNotFound, "account %s", id)
	}
	for _, tr := range t.data.transactions {
		if tr.AccountID == id {
			return domain.Errorf(domain.ErrInvalidState, "account %s is referenced by transactions", id)
		}
	}
	delete(t.data.accounts, id)
	return nil
}

func (t *tx) AdjustBalance(ctx context.Context, accountID string, delta decimal.Decimal) error {
	if err := t.write("adjust_balance"); err != nil {
		return err
	}
	a, ok := t.data.accounts[accountID]
	if !ok {
		return domain.Errorf(domain.ErrNotFound, "account %s", accountID)
	}
	a.Balance = a.Balance.Add(delta)
	a.UpdatedAt = time.Now().UTC()
	t.data.accounts[accountID] = a
	return nil
}

func (t *tx) SetBalance(ctx context.Context, accountID string, balance decimal.Decimal) error {
	if err := t.write("set_balance"); err != nil {
		return err
	}
	a, ok := t.data.accounts[accountID]
	if !ok {
		return domain.Errorf(domain.ErrNotFound, "account %s", accountID)
	}
	a.Balance = balance
	a.UpdatedAt = time.Now().UTC()
	t.data.accounts[accountID] = a
	return nil
}

func (t *tx) CountTransactions(ctx context.Context, accountID string, activeOnly bool) (int, error) {
	n := 0
	for _, tr := range t.data.transactions {
		if tr.AccountID != accountID {
			continue
		}
		if activeOnly && tr.Archived() {
			continue
		}
		n++
	}
	return n, nil
}

func (t *tx) SumActiveDeltas(ctx context.Context, accountID string) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, tr := range t.data.transactions {
		if tr.AccountID == accountID && !tr.Archived() {
			sum = sum.Add(tr.Delta())
		}
	}
	return sum, nil
}

func (t *tx) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	c, ok := t.data.categories[id]
	if !ok {
		return nil, domain.Errorf(domain.ErrNotFound, "category %s", id)
	}
	return &c, nil
}

func (t *tx) InsertCategory(ctx context.Context, c *domain.Category) error {
	if err := t.write("insert_category"); err != nil {
		return err
	}
	if _, exists := t.data.categories[c.ID]; exists {
		return domain.Errorf(domain.ErrConflict, "category %s already exists", c.ID)
	}
	t.data.categories[c.ID] = *c
	return nil
}

func (t *tx) EnsureTransferCategory(ctx context.Context, candidate *domain.Category) (*domain.Category, error) {
	for _, c := range t.data.categories {
		if c.OwnerID == candidate.OwnerID && c.System {
			return &c, nil
		}
	}
	if err := t.InsertCategory(ctx, candidate); err != nil {
		return nil, err
	}
	c := *candidate
	return &c, nil
}

func (t *tx) DeleteCategory(ctx context.Context, id string) error {
	if err := t.write("delete_category"); err != nil {
		return err
	}
	if _, ok := t.data.categories[id]; !ok {
		return domain.Errorf(domain.ErrNotFound, "category %s", id)
	}
	delete(t.data.categories, id)
	return nil
}

func (t *tx) CountCategoryTransactions(ctx context.Context, categoryID string) (int, error) {
	n := 0
	for _, tr := range t.data.transactions {
		if tr.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

func (t *tx) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	tr, ok := t.data.transactions[id]
	if !ok {
		return nil, domain.Errorf(domain.ErrNotFound, "transaction %s", id)
	}
	c := tr.Clone()
	return &c, nil
}

func (t *tx) InsertTransaction(ctx context.Context, tr *domain.Transaction) error {
	if err := t.write("insert_transaction"); err != nil {
		return err
	}
	if _, exists := t.data.transactions[tr.ID]; exists {
		return domain.Errorf(domain.ErrConflict, "transaction %s already exists", tr.ID)
	}
	if _, ok := t.data.accounts[tr.AccountID]; !ok {
		return domain.Errorf(domain.ErrNotFound, "account %s", tr.AccountID)
	}
	if _, ok := t.data.categories[tr.CategoryID]; !ok {
		return domain.Errorf(domain.ErrNotFound, "category %s", tr.CategoryID)
	}
	t.data.seq++
	tr.Seq = t.data.seq
	t.data.transactions[tr.ID] = tr.Clone()
	return nil
}

func (t *tx) UpdateTransaction(ctx context.Context, tr *domain.Transaction) error {
	if err := t.write("update_transaction"); err != nil {
		return err
	}
	old, ok := t.data.transactions[tr.ID]
	if !ok {
		return domain.Errorf(domain.ErrNotFound, "transaction %s", tr.ID)
	}
	updated := tr.Clone()
	updated.Seq = old.Seq
	updated.CreatedAt = old.CreatedAt
	t.data.transactions[tr.ID] = updated
	return nil
}

func (t *tx) DeleteTransaction(ctx context.Context, id string) error {
	if err := t.write("delete_transaction"); err != nil {
		return err
	}
	if _, ok := t.data.transactions[id]; !ok {
		return domain.Errorf(domain.ErrNotFound, "transaction %s", id)
	}
	delete(t.data.transactions, id)
	return nil
}

func (t *tx) TransferLegs(ctx context.Context, groupID string) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, tr := range t.data.transactions {
		if tr.Transfer != nil && tr.Transfer.GroupID == groupID {
			out = append(out, tr.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (t *tx) LegacyTransferCandidates(ctx context.Context, ownerID string, amount decimal.Decimal, date time.Time, description string) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, tr := range t.data.transactions {
		if tr.Transfer != nil || tr.Description != description {
			continue
		}
		if !tr.Amount.Equal(amount) || !tr.Date.Equal(date) {
			continue
		}
		if a, ok := t.data.accounts[tr.AccountID]; !ok || a.OwnerID != ownerID {
			continue
		}
		out = append(out, tr.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (t *tx) GetIdempotencyRecord(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	rec, ok := t.data.idempotency[key]
	if !ok {
		return nil, domain.Errorf(domain.ErrNotFound, "idempotency key %s", key)
	}
	return &rec, nil
}

func (t *tx) PutIdempotencyRecord(ctx context.Context, rec *domain.IdempotencyRecord) error {
	if err := t.write("put_idempotency_record"); err != nil {
		return err
	}
	if _, exists := t.data.idempotency[rec.Key]; exists {
		return domain.Errorf(domain.ErrConflict, "idempotency key %s already used", rec.Key)
	}
	t.data.idempotency[rec.Key] = *rec
	return nil
}
