package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/punchamoorthee/finledger/internal/domain"
	"github.com/punchamoorthee/finledger/internal/store"
)

type CreateAccountInput struct {
	OwnerID        string             `json:"owner_id"`
	Name           string             `json:"name"`
	Type           domain.AccountType `json:"type"`
	InitialBalance decimal.Decimal    `json:"initial_balance"`
}

func (l *Ledger) CreateAccount(ctx context.Context, in CreateAccountInput) (_ *domain.Account, err error) {
	defer l.observe("create_account", time.Now(), &err)

	if err := requireOwner(in.OwnerID); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, domain.Errorf(domain.ErrValidation, "account name is required")
	}
	// Names end at the first ": " in transfer descriptions.
	if strings.Contains(in.Name, ": ") {
		return nil, domain.Errorf(domain.ErrValidation, "account name must not contain \": \"")
	}
	if in.Type == "" {
		in.Type = domain.AccountOther
	}
	if !in.Type.Valid() {
		return nil, domain.Errorf(domain.ErrValidation, "unknown account type %q", in.Type)
	}
	if err := domain.CheckMoney("initial_balance", in.InitialBalance); err != nil {
		return nil, err
	}

	now := l.now()
	a := &domain.Account{
		ID:             l.newID(),
		OwnerID:        in.OwnerID,
		Name:           in.Name,
		Type:           in.Type,
		Balance:        in.InitialBalance,
		InitialBalance: in.InitialBalance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = l.store.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertAccount(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (l *Ledger) GetAccount(ctx context.Context, ownerID, id string) (_ *domain.Account, err error) {
	defer l.observe("get_account", time.Now(), &err)

	a, err := l.store.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.OwnerID != ownerID {
		return nil, domain.Errorf(domain.ErrForbidden, "account %s belongs to another owner", id)
	}
	return a, nil
}

func (l *Ledger) ListAccounts(ctx context.Context, ownerID string) (_ []domain.Account, err error) {
	defer l.observe("list_accounts", time.Now(), &err)

	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	return l.store.ListAccounts(ctx, ownerID)
}

// ArchiveAccount hides an account. It must not carry active transactions.
func (l *Ledger) ArchiveAccount(ctx context.Context, ownerID, id string) (*domain.Account, error) {
	return l.setAccountArchived(ctx, ownerID, id, true)
}

func (l *Ledger) UnarchiveAccount(ctx context.Context, ownerID, id string) (*domain.Account, error) {
	return l.setAccountArchived(ctx, ownerID, id, false)
}

func (l *Ledger) setAccountArchived(ctx context.Context, ownerID, id string, archived bool) (_ *domain.Account, err error) {
	op := "unarchive_account"
	if archived {
		op = "archive_account"
	}
	defer l.observe(op, time.Now(), &err)

	var out *domain.Account
	err = l.store.WithTx(ctx, func(tx store.Tx) error {
		accounts, err := lockOwnedAccounts(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		a := accounts[id]
		if a.Archived == archived {
			return domain.Errorf(domain.ErrInvalidState, "account %s archived=%t already", id, archived)
		}
		if archived {
			n, err := tx.CountTransactions(ctx, id, true)
			if err != nil {
				return err
			}
			if n > 0 {
				return domain.Errorf(domain.ErrInvalidState, "account %s has %d active transactions", id, n)
			}
		}
		if err := tx.SetAccountArchived(ctx, id, archived); err != nil {
			return err
		}
		a.Archived = archived
		a.UpdatedAt = l.now()
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteAccount removes an account that no transaction references.
func (l *Ledger) DeleteAccount(ctx context.Context, ownerID, id string) (err error) {
	defer l.observe("delete_account", time.Now(), &err)

	return l.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := lockOwnedAccounts(ctx, tx, ownerID, id); err != nil {
			return err
		}
		n, err := tx.CountTransactions(ctx, id, false)
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.Errorf(domain.ErrInvalidState, "account %s is referenced by %d transactions", id, n)
		}
		return tx.DeleteAccount(ctx, id)
	})
}

// Reconciliation compares the stored balance with the one implied by the
// account's active transactions.
type Reconciliation struct {
	AccountID string          `json:"account_id"`
	Recorded  decimal.Decimal `json:"recorded"`
	Expected  decimal.Decimal `json:"expected"`
	Drift     decimal.Decimal `json:"drift"`
	Repaired  bool            `json:"repaired"`
}

// Reconcile recomputes the balance of an account. With repair set, a
// drifted balance is overwritten with the expected value.
func (l *Ledger) Reconcile(ctx context.Context, ownerID, id string, repair bool) (_ *Reconciliation, err error) {
	defer l.observe("reconcile", time.Now(), &err)

	var out *Reconciliation
	err = l.store.WithTx(ctx, func(tx store.Tx) error {
		accounts, err := lockOwnedAccounts(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		a := accounts[id]
		sum, err := tx.SumActiveDeltas(ctx, id)
		if err != nil {
			return err
		}
		expected := a.InitialBalance.Add(sum)
		out = &Reconciliation{
			AccountID: id,
			Recorded:  a.Balance,
			Expected:  expected,
			Drift:     a.Balance.Sub(expected),
		}
		if out.Drift.IsZero() {
			return nil
		}

		l.logger.Warn("account balance drift",
			zap.String("account_id", id),
			zap.String("recorded", a.Balance.String()),
			zap.String("expected", expected.String()),
			zap.Bool("repair", repair),
		)
		if !repair {
			return nil
		}
		if err := tx.SetBalance(ctx, id, expected); err != nil {
			return err
		}
		out.Repaired = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
