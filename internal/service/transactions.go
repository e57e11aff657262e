package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/finledger/internal/domain"
	"github.com/punchamoorthee/finledger/internal/query"
	"github.com/punchamoorthee/finledger/internal/store"
)

type CreateTransactionInput struct {
	OwnerID        string                 `json:"owner_id"`
	AccountID      string                 `json:"account_id"`
	CategoryID     string                 `json:"category_id"`
	Type           domain.TransactionType `json:"type"`
	Amount         decimal.Decimal        `json:"amount"`
	Description    string                 `json:"description"`
	Date           time.Time              `json:"date"`
	IdempotencyKey string                 `json:"-"`
}

// UnmarshalJSON accepts the date as YYYY-MM-DD or RFC 3339.
func (in *CreateTransactionInput) UnmarshalJSON(b []byte) error {
	type plain CreateTransactionInput
	aux := struct {
		*plain
		Date *domain.Date `json:"date"`
	}{plain: (*plain)(in)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.Date != nil {
		in.Date = time.Time(*aux.Date)
	}
	return nil
}

func (in *CreateTransactionInput) validate() error {
	if err := requireOwner(in.OwnerID); err != nil {
		return err
	}
	if in.AccountID == "" || in.CategoryID == "" {
		return domain.Errorf(domain.ErrValidation, "account_id and category_id are required")
	}
	if !in.Type.Valid() {
		return domain.Errorf(domain.ErrValidation, "type must be income or expense, got %q", in.Type)
	}
	if err := validateAmount(in.Amount); err != nil {
		return err
	}
	if in.Date.IsZero() {
		return domain.Errorf(domain.ErrValidation, "date is required")
	}
	return validateRegularDescription(in.Description)
}

// TransactionPatch carries the fields an update changes; nil fields are kept.
type TransactionPatch struct {
	AccountID   *string                 `json:"account_id,omitempty"`
	CategoryID  *string                 `json:"category_id,omitempty"`
	Type        *domain.TransactionType `json:"type,omitempty"`
	Amount      *decimal.Decimal        `json:"amount,omitempty"`
	Description *string                 `json:"description,omitempty"`
	Date        *time.Time              `json:"date,omitempty"`
}

func (p *TransactionPatch) UnmarshalJSON(b []byte) error {
	type plain TransactionPatch
	aux := struct {
		*plain
		Date *domain.Date `json:"date,omitempty"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.Date != nil {
		d := time.Time(*aux.Date)
		p.Date = &d
	}
	return nil
}

func (p *TransactionPatch) validate() error {
	if p.AccountID != nil && *p.AccountID == "" {
		return domain.Errorf(domain.ErrValidation, "account_id must not be empty")
	}
	if p.CategoryID != nil && *p.CategoryID == "" {
		return domain.Errorf(domain.ErrValidation, "category_id must not be empty")
	}
	if p.Type != nil && !p.Type.Valid() {
		return domain.Errorf(domain.ErrValidation, "type must be income or expense, got %q", *p.Type)
	}
	if p.Amount != nil {
		if err := validateAmount(*p.Amount); err != nil {
			return err
		}
	}
	if p.Date != nil && p.Date.IsZero() {
		return domain.Errorf(domain.ErrValidation, "date must not be zero")
	}
	return nil
}

// LifecycleResult lists the transactions a lifecycle operation changed.
// Orphaned is set when a transfer leg was handled without its sibling.
type LifecycleResult struct {
	Affected []string `json:"affected"`
	Orphaned bool     `json:"orphaned,omitempty"`
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.Errorf(domain.ErrValidation, "amount must be positive, got %s", amount)
	}
	return domain.CheckMoney("amount", amount)
}

// Regular transactions may not look like transfer legs, otherwise they
// would be paired with unrelated postings.
func validateRegularDescription(desc string) error {
	if _, ok := domain.ParseTransferDescription(desc); ok {
		return domain.Errorf(domain.ErrValidation, "description %q uses the transfer marker", desc)
	}
	return nil
}

func (l *Ledger) CreateTransaction(ctx context.Context, in CreateTransactionInput) (_ *domain.TransactionDetail, err error) {
	defer l.observe("create", time.Now(), &err)

	in.Description = strings.TrimSpace(in.Description)
	if err := in.validate(); err != nil {
		return nil, err
	}
	hash, err := requestHash(in)
	if err != nil {
		return nil, err
	}

	var out domain.TransactionDetail
	err = l.store.WithTx(ctx, func(tx store.Tx) error {
		replayed, err := l.replay(ctx, tx, "create", in.OwnerID, in.IdempotencyKey, hash, &out)
		if err != nil || replayed {
			return err
		}

		accounts, err := lockOwnedAccounts(ctx, tx, in.OwnerID, in.AccountID)
		if err != nil {
			return err
		}
		if accounts[in.AccountID].Archived {
			return domain.Errorf(domain.ErrInvalidState, "account %s is archived", in.AccountID)
		}
		if _, err := assignableCategory(ctx, tx, in.OwnerID, in.CategoryID); err != nil {
			return err
		}

		now := l.now()
		t := &domain.Transaction{
			ID:          l.newID(),
			AccountID:   in.AccountID,
			CategoryID:  in.CategoryID,
			Type:        in.Type,
			Amount:      in.Amount,
			Description: in.Description,
			Date:        in.Date,
			State:       domain.StateActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.InsertTransaction(ctx, t); err != nil {
			return err
		}
		if err := tx.AdjustBalance(ctx, t.AccountID, t.Delta()); err != nil {
			return err
		}

		d, err := detailOf(ctx, tx, t)
		if err != nil {
			return err
		}
		out = *d
		return l.remember(ctx, tx, "create", in.OwnerID, in.IdempotencyKey, hash, out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (l *Ledger) GetTransaction(ctx context.Context, ownerID, id string) (_ *domain.TransactionDetail, err error) {
	defer l.observe("get", time.Now(), &err)

	d, err := l.store.GetTransactionDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Account.OwnerID != ownerID {
		return nil, domain.Errorf(domain.ErrForbidden, "transaction %s belongs to another owner", id)
	}
	return d, nil
}

// ListTransactions returns the caller's active transactions filtered, sorted
// and paginated according to p.
func (l *Ledger) ListTransactions(ctx context.Context, ownerID string, p query.Params) (_ *query.Result, err error) {
	defer l.observe("list", time.Now(), &err)

	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	p, err = p.Normalize(l.pageSize, l.maxPageSize)
	if err != nil {
		return nil, err
	}
	return l.store.QueryTransactions(ctx, ownerID, p)
}

func (l *Ledger) UpdateTransaction(ctx context.Context, ownerID, id string, patch TransactionPatch) (_ *domain.TransactionDetail, err error) {
	defer l.observe("update", time.Now(), &err)

	if patch.Description != nil {
		trimmed := strings.TrimSpace(*patch.Description)
		patch.Description = &trimmed
	}
	if err := patch.validate(); err != nil {
		return nil, err
	}

	var out *domain.TransactionDetail
	err = l.store.WithTx(ctx, func(tx store.Tx) error {
		t, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		var updated *domain.Transaction
		if t.Kind() == domain.KindTransfer {
			updated, err = l.updateLeg(ctx, tx, ownerID, t, patch)
		} else {
			updated, err = l.updateRegular(ctx, tx, ownerID, t, patch)
		}
		if err != nil {
			return err
		}
		out, err = detailOf(ctx, tx, updated)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Ledger) updateRegular(ctx context.Context, tx store.Tx, ownerID string, t *domain.Transaction, patch TransactionPatch) (*domain.Transaction, error) {
	target := t.AccountID
	if patch.AccountID != nil {
		target = *patch.AccountID
	}
	accounts, err := lockOwnedAccounts(ctx, tx, ownerID, t.AccountID, target)
	if err != nil {
		return nil, err
	}
	moved := target != t.AccountID
	if moved && accounts[target].Archived {
		return nil, domain.Errorf(domain.ErrInvalidState, "account %s is archived", target)
	}

	updated := t.Clone()
	updated.AccountID = target
	if patch.CategoryID != nil && *patch.CategoryID != t.CategoryID {
		if _, err := assignableCategory(ctx, tx, ownerID, *patch.CategoryID); err != nil {
			return nil, err
		}
		updated.CategoryID = *patch.CategoryID
	}
	if patch.Type != nil {
		updated.Type = *patch.Type
	}
	if patch.Amount != nil {
		updated.Amount = *patch.Amount
	}
	if patch.Description != nil {
		if err := validateRegularDescription(*patch.Description); err != nil {
			return nil, err
		}
		updated.Description = *patch.Description
	}
	if patch.Date != nil {
		updated.Date = *patch.Date
	}
	updated.UpdatedAt = l.now()

	// Archived transactions carry no balance effect, so editing them moves nothing.
	if !t.Archived() {
		if moved {
			if err := tx.AdjustBalance(ctx, t.AccountID, domain.InverseDelta(t.Type, t.Amount)); err != nil {
				return nil, err
			}
			if err := tx.AdjustBalance(ctx, target, updated.Delta()); err != nil {
				return nil, err
			}
		} else if diff := updated.Delta().Sub(t.Delta()); !diff.IsZero() {
			if err := tx.AdjustBalance(ctx, target, diff); err != nil {
				return nil, err
			}
		}
	}
	if err := tx.UpdateTransaction(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// updateLeg edits a transfer leg. Only the description text and the date
// may change and both legs are rewritten together.
func (l *Ledger) updateLeg(ctx context.Context, tx store.Tx, ownerID string, t *domain.Transaction, patch TransactionPatch) (*domain.Transaction, error) {
	if (patch.AccountID != nil && *patch.AccountID != t.AccountID) ||
		(patch.CategoryID != nil && *patch.CategoryID != t.CategoryID) ||
		(patch.Type != nil && *patch.Type != t.Type) ||
		(patch.Amount != nil && !patch.Amount.Equal(t.Amount)) {
		return nil, domain.Errorf(domain.ErrValidation, "transfer legs accept only description and date changes")
	}

	sib, err := l.siblingLeg(ctx, tx, ownerID, t)
	if err != nil {
		return nil, err
	}
	legs := []*domain.Transaction{t}
	ids := []string{t.AccountID}
	if sib != nil {
		legs = append(legs, sib)
		ids = append(ids, sib.AccountID)
	}
	accounts, err := lockOwnedAccounts(ctx, tx, ownerID, ids...)
	if err != nil {
		return nil, err
	}

	now := l.now()
	for i, leg := range legs {
		if patch.Date != nil {
			leg.Date = *patch.Date
		}
		if patch.Description != nil {
			var counter *domain.Account
			if len(legs) == 2 {
				counter = accounts[legs[1-i].AccountID]
			}
			leg.Description = legDescription(leg, counter, *patch.Description)
		}
		leg.UpdatedAt = now
		if err := tx.UpdateTransaction(ctx, leg); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// legDescription renders text with the leg's transfer marker. Without a
// counter account the name from the current description is reused.
func legDescription(leg *domain.Transaction, counter *domain.Account, text string) string {
	marker, ok := domain.ParseTransferDescription(leg.Description)
	dir := marker.Direction
	if leg.Transfer != nil {
		dir = leg.Transfer.Direction
	}
	switch {
	case counter != nil:
		return domain.TransferDescription(dir, counter.Name, text)
	case ok:
		return domain.TransferDescription(dir, marker.CounterAccount, text)
	default:
		return text
	}
}

// ArchiveTransaction soft-deletes a transaction and reverses its balance
// effect. Transfer legs are archived together with their sibling.
func (l *Ledger) ArchiveTransaction(ctx context.Context, ownerID, id string) (*LifecycleResult, error) {
	return l.lifecycle(ctx, ownerID, id, actionArchive)
}

// RestoreTransaction reactivates an archived transaction and reapplies its
// balance effect.
func (l *Ledger) RestoreTransaction(ctx context.Context, ownerID, id string) (*LifecycleResult, error) {
	return l.lifecycle(ctx, ownerID, id, actionRestore)
}

// PermanentlyDeleteTransaction erases an archived transaction. Active
// transactions must be archived first so their balance effect is reversed.
func (l *Ledger) PermanentlyDeleteTransaction(ctx context.Context, ownerID, id string) (*LifecycleResult, error) {
	return l.lifecycle(ctx, ownerID, id, actionDelete)
}

func (l *Ledger) lifecycle(ctx context.Context, ownerID, id string, act action) (_ *LifecycleResult, err error) {
	defer l.observe(act.String(), time.Now(), &err)

	var res *LifecycleResult
	err = l.store.WithTx(ctx, func(tx store.Tx) error {
		t, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		res, err = l.apply(ctx, tx, ownerID, t, act)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

type action int

const (
	actionArchive action = iota
	actionRestore
	actionDelete
)

func (a action) String() string {
	switch a {
	case actionArchive:
		return "archive"
	case actionRestore:
		return "restore"
	default:
		return "permanently_delete"
	}
}

// done reports whether t is already in the state act leads to.
func (a action) done(t *domain.Transaction) bool {
	switch a {
	case actionArchive:
		return t.Archived()
	case actionRestore:
		return !t.Archived()
	}
	return false
}

// apply runs act on t inside tx. Every precondition is checked before the
// first write so a rejected transition leaves tx untouched.
func (l *Ledger) apply(ctx context.Context, tx store.Tx, ownerID string, t *domain.Transaction, act action) (*LifecycleResult, error) {
	if t.Kind() == domain.KindTransfer {
		return l.transitionPair(ctx, tx, ownerID, t, act)
	}
	accounts, err := lockOwnedAccounts(ctx, tx, ownerID, t.AccountID)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(t, accounts[t.AccountID], act); err != nil {
		return nil, err
	}
	if err := l.transition(ctx, tx, t, act); err != nil {
		return nil, err
	}
	return &LifecycleResult{Affected: []string{t.ID}}, nil
}

func checkTransition(t *domain.Transaction, a *domain.Account, act action) error {
	switch act {
	case actionArchive:
		if t.Archived() {
			return domain.Errorf(domain.ErrInvalidState, "transaction %s is already archived", t.ID)
		}
	case actionRestore:
		if !t.Archived() {
			return domain.Errorf(domain.ErrInvalidState, "transaction %s is not archived", t.ID)
		}
		if a.Archived {
			return domain.Errorf(domain.ErrInvalidState, "account %s is archived", a.ID)
		}
	case actionDelete:
		if !t.Archived() {
			return domain.Errorf(domain.ErrInvalidState, "transaction %s is active; archive it first", t.ID)
		}
	}
	return nil
}

func (l *Ledger) transition(ctx context.Context, tx store.Tx, t *domain.Transaction, act action) error {
	switch act {
	case actionArchive:
		t.State = domain.StateArchived
		t.UpdatedAt = l.now()
		if err := tx.UpdateTransaction(ctx, t); err != nil {
			return err
		}
		return tx.AdjustBalance(ctx, t.AccountID, domain.InverseDelta(t.Type, t.Amount))
	case actionRestore:
		t.State = domain.StateActive
		t.UpdatedAt = l.now()
		if err := tx.UpdateTransaction(ctx, t); err != nil {
			return err
		}
		return tx.AdjustBalance(ctx, t.AccountID, domain.Delta(t.Type, t.Amount))
	default:
		return tx.DeleteTransaction(ctx, t.ID)
	}
}

func detailOf(ctx context.Context, tx store.Tx, t *domain.Transaction) (*domain.TransactionDetail, error) {
	accounts, err := tx.LockAccounts(ctx, t.AccountID)
	if err != nil {
		return nil, err
	}
	c, err := tx.GetCategory(ctx, t.CategoryID)
	if err != nil {
		return nil, err
	}
	d := domain.NewTransactionDetail(*t, *accounts[t.AccountID], *c)
	return &d, nil
}
