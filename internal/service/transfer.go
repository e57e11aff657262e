package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/punchamoorthee/finledger/internal/domain"
	"github.com/punchamoorthee/finledger/internal/store"
)

type TransferInput struct {
	OwnerID        string          `json:"owner_id"`
	FromAccountID  string          `json:"from_account_id"`
	ToAccountID    string          `json:"to_account_id"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description"`
	Date           time.Time       `json:"date"`
	IdempotencyKey string          `json:"-"`
}

func (in *TransferInput) UnmarshalJSON(b []byte) error {
	type plain TransferInput
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

func (in *TransferInput) validate() error {
	if err := requireOwner(in.OwnerID); err != nil {
		return err
	}
	if in.FromAccountID == "" || in.ToAccountID == "" {
		return domain.Errorf(domain.ErrValidation, "from_account_id and to_account_id are required")
	}
	if in.FromAccountID == in.ToAccountID {
		return domain.Errorf(domain.ErrValidation, "cannot transfer to the same account")
	}
	if err := validateAmount(in.Amount); err != nil {
		return err
	}
	if in.Date.IsZero() {
		return domain.Errorf(domain.ErrValidation, "date is required")
	}
	return nil
}

// TransferResult holds both legs of a created transfer.
type TransferResult struct {
	GroupID string                   `json:"group_id"`
	Outflow domain.TransactionDetail `json:"outflow"`
	Inflow  domain.TransactionDetail `json:"inflow"`
}

// CreateTransfer moves money between two of the owner's accounts as one
// atomic unit: an expense leg on the source and an income leg on the
// destination, linked by a shared group id.
func (l *Ledger) CreateTransfer(ctx context.Context, in TransferInput) (_ *TransferResult, err error) {
	defer l.observe("create_transfer", time.Now(), &err)

	in.Description = strings.TrimSpace(in.Description)
	if err := in.validate(); err != nil {
		return nil, err
	}
	hash, err := requestHash(in)
	if err != nil {
		return nil, err
	}

	var out TransferResult
	err = l.store.WithTx(ctx, func(tx store.Tx) error {
		replayed, err := l.replay(ctx, tx, "create_transfer", in.OwnerID, in.IdempotencyKey, hash, &out)
		if err != nil || replayed {
			return err
		}

		// Locks are taken in id order regardless of direction.
		accounts, err := lockOwnedAccounts(ctx, tx, in.OwnerID, in.FromAccountID, in.ToAccountID)
		if err != nil {
			return err
		}
		from, to := accounts[in.FromAccountID], accounts[in.ToAccountID]
		for _, a := range []*domain.Account{from, to} {
			if a.Archived {
				return domain.Errorf(domain.ErrInvalidState, "account %s is archived", a.ID)
			}
		}
		if from.Balance.LessThan(in.Amount) {
			return domain.Errorf(domain.ErrInsufficientBalance, "account %s has %s, transfer needs %s",
				from.ID, from.Balance, in.Amount)
		}

		now := l.now()
		category, err := tx.EnsureTransferCategory(ctx, &domain.Category{
			ID:        l.newID(),
			OwnerID:   in.OwnerID,
			Name:      domain.TransferCategoryName,
			System:    true,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}

		groupID := l.newID()
		leg := func(dir domain.Direction, account, counter *domain.Account) *domain.Transaction {
			typ := domain.Income
			if dir == domain.DirectionOut {
				typ = domain.Expense
			}
			return &domain.Transaction{
				ID:          l.newID(),
				AccountID:   account.ID,
				CategoryID:  category.ID,
				Type:        typ,
				Amount:      in.Amount,
				Description: domain.TransferDescription(dir, counter.Name, in.Description),
				Date:        in.Date,
				State:       domain.StateActive,
				Transfer:    &domain.TransferLeg{GroupID: groupID, Direction: dir},
				CreatedAt:   now,
				UpdatedAt:   now,
			}
		}
		outflow := leg(domain.DirectionOut, from, to)
		inflow := leg(domain.DirectionIn, to, from)

		for _, t := range []*domain.Transaction{outflow, inflow} {
			if err := tx.InsertTransaction(ctx, t); err != nil {
				return err
			}
			if err := tx.AdjustBalance(ctx, t.AccountID, t.Delta()); err != nil {
				return err
			}
		}

		out.GroupID = groupID
		od, err := detailOf(ctx, tx, outflow)
		if err != nil {
			return err
		}
		ind, err := detailOf(ctx, tx, inflow)
		if err != nil {
			return err
		}
		out.Outflow, out.Inflow = *od, *ind
		return l.remember(ctx, tx, "create_transfer", in.OwnerID, in.IdempotencyKey, hash, out)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Debug("transfer created",
		zap.String("group_id", out.GroupID),
		zap.String("from", in.FromAccountID),
		zap.String("to", in.ToAccountID),
		zap.String("amount", in.Amount.String()),
	)
	return &out, nil
}

// SiblingLeg returns the other leg of the transfer that id belongs to. The
// boolean is false when id is a leg whose sibling cannot be located.
func (l *Ledger) SiblingLeg(ctx context.Context, ownerID, id string) (_ *domain.Transaction, found bool, err error) {
	defer l.observe("find_sibling", time.Now(), &err)

	var sib *domain.Transaction
	err = l.store.WithTx(ctx, func(tx store.Tx) error {
		t, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if _, err := lockOwnedAccounts(ctx, tx, ownerID, t.AccountID); err != nil {
			return err
		}
		if t.Kind() != domain.KindTransfer {
			return domain.Errorf(domain.ErrValidation, "transaction %s is not a transfer leg", id)
		}
		sib, err = l.siblingLeg(ctx, tx, ownerID, t)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return sib, sib != nil, nil
}

// siblingLeg locates the complementary leg of t, or returns nil when t is
// orphaned. Legs sharing a group id are matched directly. Legs without one
// fall back to the description convention: same amount and date, inverse
// marker, posted to the account the marker names.
func (l *Ledger) siblingLeg(ctx context.Context, tx store.Tx, ownerID string, t *domain.Transaction) (*domain.Transaction, error) {
	if t.Transfer != nil {
		legs, err := tx.TransferLegs(ctx, t.Transfer.GroupID)
		if err != nil {
			return nil, err
		}
		for i := range legs {
			if legs[i].ID != t.ID && legs[i].Transfer.Direction == t.Transfer.Direction.Opposite() {
				return &legs[i], nil
			}
		}
		return nil, nil
	}

	marker, ok := domain.ParseTransferDescription(t.Description)
	if !ok {
		return nil, nil
	}
	own, err := lockOwnedAccounts(ctx, tx, ownerID, t.AccountID)
	if err != nil {
		return nil, err
	}
	want := domain.TransferDescription(marker.Direction.Opposite(), own[t.AccountID].Name, marker.Text)
	candidates, err := tx.LegacyTransferCandidates(ctx, ownerID, t.Amount, t.Date, want)
	if err != nil {
		return nil, err
	}

	wantType := domain.Income
	if marker.Direction == domain.DirectionIn {
		wantType = domain.Expense
	}
	// Identical legacy transfers produce several matches. A leg in the same
	// state as t wins, so a pair already transitioned is never claimed
	// again while its twin is still waiting.
	var fallback *domain.Transaction
	for i := range candidates {
		c := &candidates[i]
		if c.ID == t.ID || c.AccountID == t.AccountID || c.Type != wantType {
			continue
		}
		accounts, err := tx.LockAccounts(ctx, c.AccountID)
		if err != nil {
			return nil, err
		}
		if accounts[c.AccountID].Name != marker.CounterAccount {
			continue
		}
		if c.State == t.State {
			return c, nil
		}
		if fallback == nil {
			fallback = c
		}
	}
	return fallback, nil
}

// transitionPair applies act to t and its sibling together. An orphaned leg
// is transitioned alone. A sibling already in the target state is left as
// is; one that blocks the transition fails the whole pair.
func (l *Ledger) transitionPair(ctx context.Context, tx store.Tx, ownerID string, t *domain.Transaction, act action) (*LifecycleResult, error) {
	sib, err := l.siblingLeg(ctx, tx, ownerID, t)
	if err != nil {
		return nil, err
	}

	legs := []*domain.Transaction{t}
	ids := []string{t.AccountID}
	if sib != nil {
		ids = append(ids, sib.AccountID)
		if !act.done(sib) {
			legs = append(legs, sib)
		}
	}
	accounts, err := lockOwnedAccounts(ctx, tx, ownerID, ids...)
	if err != nil {
		return nil, err
	}
	for _, leg := range legs {
		if err := checkTransition(leg, accounts[leg.AccountID], act); err != nil {
			return nil, err
		}
	}

	res := &LifecycleResult{Orphaned: sib == nil}
	for _, leg := range legs {
		if err := l.transition(ctx, tx, leg, act); err != nil {
			return nil, err
		}
		res.Affected = append(res.Affected, leg.ID)
	}

	if res.Orphaned {
		l.metrics.ObserveOrphanLeg(act.String())
		l.logger.Warn("transfer leg has no sibling, transitioning it alone",
			zap.String("transaction_id", t.ID),
			zap.String("operation", act.String()),
		)
	}
	return res, nil
}
