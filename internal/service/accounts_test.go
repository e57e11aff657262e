package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/punchamoorthee/finledger/internal/domain"
	"github.com/punchamoorthee/finledger/internal/service"
	"github.com/punchamoorthee/finledger/internal/store"
)

func TestAccountGuards(t *testing.T) {
	f := newFixture(t)
	a := f.account("u1", "A", "100")
	food := f.category("u1", "Food")
	d := f.create("u1", a, food, domain.Expense, "10", "snack")

	if _, err := f.ledger.ArchiveAccount(f.ctx, "u1", a.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("archive with active transactions error = %v, want ErrInvalidState", err)
	}
	if _, err := f.ledger.ArchiveTransaction(f.ctx, "u1", d.ID); err != nil {
		t.Fatalf("ArchiveTransaction failed: %v", err)
	}
	archived, err := f.ledger.ArchiveAccount(f.ctx, "u1", a.ID)
	if err != nil {
		t.Fatalf("ArchiveAccount failed: %v", err)
	}
	if !archived.Archived {
		t.Error("account not marked archived")
	}
	if _, err := f.ledger.RestoreTransaction(f.ctx, "u1", d.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("restore onto archived account error = %v, want ErrInvalidState", err)
	}
	if err := f.ledger.DeleteAccount(f.ctx, "u1", a.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("delete of referenced account error = %v, want ErrInvalidState", err)
	}

	if _, err := f.ledger.PermanentlyDeleteTransaction(f.ctx, "u1", d.ID); err != nil {
		t.Fatalf("PermanentlyDeleteTransaction failed: %v", err)
	}
	if err := f.ledger.DeleteAccount(f.ctx, "u2", a.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("delete by other owner error = %v, want ErrForbidden", err)
	}
	if err := f.ledger.DeleteAccount(f.ctx, "u1", a.ID); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}
	if _, err := f.ledger.GetAccount(f.ctx, "u1", a.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetAccount after delete error = %v, want ErrNotFound", err)
	}
}

func TestUnarchiveAccount(t *testing.T) {
	f := newFixture(t)
	a := f.account("u1", "A", "0")

	if _, err := f.ledger.UnarchiveAccount(f.ctx, "u1", a.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("unarchive of active account error = %v, want ErrInvalidState", err)
	}
	if _, err := f.ledger.ArchiveAccount(f.ctx, "u1", a.ID); err != nil {
		t.Fatalf("ArchiveAccount failed: %v", err)
	}
	got, err := f.ledger.UnarchiveAccount(f.ctx, "u1", a.ID)
	if err != nil {
		t.Fatalf("UnarchiveAccount failed: %v", err)
	}
	if got.Archived {
		t.Error("account still archived")
	}
}

func TestCreateAccountValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		in   service.CreateAccountInput
		want error
	}{
		{"no owner", service.CreateAccountInput{Name: "A"}, domain.ErrValidation},
		{"blank name", service.CreateAccountInput{OwnerID: "u1", Name: "  "}, domain.ErrValidation},
		{"marker separator", service.CreateAccountInput{OwnerID: "u1", Name: "A: B"}, domain.ErrValidation},
		{"bad type", service.CreateAccountInput{OwnerID: "u1", Name: "A", Type: "crypto"}, domain.ErrValidation},
		{"fractional cent balance", service.CreateAccountInput{OwnerID: "u1", Name: "A", InitialBalance: dec("0.12345")}, domain.ErrValidation},
		{"huge balance", service.CreateAccountInput{OwnerID: "u1", Name: "A", InitialBalance: dec("-1e17")}, domain.ErrValidation},
		{"defaults type", service.CreateAccountInput{OwnerID: "u1", Name: "Wallet"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := f.ledger.CreateAccount(f.ctx, tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("CreateAccount() error = %v, want %v", err, tt.want)
			}
			if err == nil && a.Type != domain.AccountOther {
				t.Errorf("type = %s, want other", a.Type)
			}
		})
	}
}

func TestCategoryGuards(t *testing.T) {
	f := newFixture(t)
	a := f.account("u1", "A", "100")
	b := f.account("u1", "B", "0")

	if _, err := f.ledger.CreateCategory(f.ctx, service.CreateCategoryInput{OwnerID: "u1", Name: "transfer"}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("reserved name error = %v, want ErrValidation", err)
	}

	food := f.category("u1", "Food")
	d := f.create("u1", a, food, domain.Expense, "10", "snack")
	if err := f.ledger.DeleteCategory(f.ctx, "u1", food.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("delete of referenced category error = %v, want ErrInvalidState", err)
	}
	if err := f.ledger.DeleteCategory(f.ctx, "u2", food.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("delete by other owner error = %v, want ErrForbidden", err)
	}

	tr := f.transfer("u1", a, b, "5", "x")
	if err := f.ledger.DeleteCategory(f.ctx, "u1", tr.Outflow.CategoryID); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("delete of system category error = %v, want ErrValidation", err)
	}

	if _, err := f.ledger.ArchiveTransaction(f.ctx, "u1", d.ID); err != nil {
		t.Fatalf("ArchiveTransaction failed: %v", err)
	}
	if err := f.ledger.DeleteCategory(f.ctx, "u1", food.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("archived transactions still reference the category, error = %v", err)
	}
	if _, err := f.ledger.PermanentlyDeleteTransaction(f.ctx, "u1", d.ID); err != nil {
		t.Fatalf("PermanentlyDeleteTransaction failed: %v", err)
	}
	if err := f.ledger.DeleteCategory(f.ctx, "u1", food.ID); err != nil {
		t.Fatalf("DeleteCategory failed: %v", err)
	}
}

func TestReconcileRepairsDrift(t *testing.T) {
	f := newFixture(t)
	a := f.account("u1", "A", "100")
	food := f.category("u1", "Food")
	f.create("u1", a, food, domain.Expense, "30", "dinner")

	err := f.store.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.SetBalance(context.Background(), a.ID, dec("999"))
	})
	if err != nil {
		t.Fatalf("SetBalance failed: %v", err)
	}

	r, err := f.ledger.Reconcile(f.ctx, "u1", a.ID, false)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if !r.Expected.Equal(dec("70")) || !r.Drift.Equal(dec("929")) || r.Repaired {
		t.Errorf("report = %+v", r)
	}
	f.assertBalance(a, "999")

	r, err = f.ledger.Reconcile(f.ctx, "u1", a.ID, true)
	if err != nil {
		t.Fatalf("Reconcile with repair failed: %v", err)
	}
	if !r.Repaired {
		t.Error("drift not repaired")
	}
	f.assertBalance(a, "70")
	f.assertConsistent()

	if _, err := f.ledger.Reconcile(f.ctx, "u2", a.ID, true); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("reconcile by other owner error = %v, want ErrForbidden", err)
	}
}

func TestIdempotentCreate(t *testing.T) {
	f := newFixture(t)
	a := f.account("u1", "A", "100")
	food := f.category("u1", "Food")

	in := service.CreateTransactionInput{
		OwnerID:        "u1",
		AccountID:      a.ID,
		CategoryID:     food.ID,
		Type:           domain.Expense,
		Amount:         dec("15"),
		Description:    "retry me",
		Date:           day,
		IdempotencyKey: "key-1",
	}
	first, err := f.ledger.CreateTransaction(f.ctx, in)
	if err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
	again, err := f.ledger.CreateTransaction(f.ctx, in)
	if err != nil {
		t.Fatalf("replayed CreateTransaction failed: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("replay id = %s, want %s", again.ID, first.ID)
	}
	f.assertBalance(a, "85")

	in.Amount = dec("16")
	if _, err := f.ledger.CreateTransaction(f.ctx, in); !errors.Is(err, domain.ErrIdempotencyMismatch) {
		t.Errorf("mismatched replay error = %v, want ErrIdempotencyMismatch", err)
	}

	// Keys are scoped per owner.
	theirs := f.account("u2", "B", "0")
	theirFood := f.category("u2", "Food")
	other := in
	other.OwnerID, other.AccountID, other.CategoryID = "u2", theirs.ID, theirFood.ID
	if _, err := f.ledger.CreateTransaction(f.ctx, other); err != nil {
		t.Errorf("same key for another owner failed: %v", err)
	}
	f.assertBalance(a, "85")
	f.assertConsistent()
}

func TestIdempotentTransfer(t *testing.T) {
	f := newFixture(t)
	a := f.account("u1", "A", "100")
	b := f.account("u1", "B", "0")

	in := service.TransferInput{
		OwnerID:        "u1",
		FromAccountID:  a.ID,
		ToAccountID:    b.ID,
		Amount:         dec("60"),
		Description:    "once",
		Date:           day,
		IdempotencyKey: "xfer-1",
	}
	first, err := f.ledger.CreateTransfer(f.ctx, in)
	if err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}
	// A second post would now fail for lack of funds; the replay must not.
	again, err := f.ledger.CreateTransfer(f.ctx, in)
	if err != nil {
		t.Fatalf("replayed CreateTransfer failed: %v", err)
	}
	if again.GroupID != first.GroupID || again.Outflow.ID != first.Outflow.ID {
		t.Errorf("replay = %s, want %s", again.GroupID, first.GroupID)
	}
	f.assertBalance(a, "40")
	f.assertBalance(b, "60")

	// The create operation shares the key space but not the payload.
	food := f.category("u1", "Food")
	_, err = f.ledger.CreateTransaction(f.ctx, service.CreateTransactionInput{
		OwnerID: "u1", AccountID: a.ID, CategoryID: food.ID, Type: domain.Expense,
		Amount: dec("1"), Description: "x", Date: day, IdempotencyKey: "xfer-1",
	})
	if !errors.Is(err, domain.ErrIdempotencyMismatch) {
		t.Errorf("cross-operation key reuse error = %v, want ErrIdempotencyMismatch", err)
	}
}
