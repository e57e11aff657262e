package service_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/punchamoorthee/finledger/internal/domain"
	"github.com/punchamoorthee/finledger/internal/service"
)

func TestTransferArchiveRestoreScenario(t *testing.T) {
	f := newFixture(t)
	a := f.account("u1", "A", "1000")
	b := f.account("u1", "B", "0")

	tr := f.transfer("u1", a, b, "200", "rainy day")
	f.assertBalance(a, "800")
	f.assertBalance(b, "200")

	if tr.Outflow.Type != domain.Expense || tr.Inflow.Type != domain.Income {
		t.Errorf("leg types = %s/%s, want expense/income", tr.Outflow.Type, tr.Inflow.Type)
	}
	if tr.Outflow.Description != "Transfer to B: rainy day" || tr.Inflow.Description != "Transfer from A: rainy day" {
		t.Errorf("descriptions = %q / %q", tr.Outflow.Description, tr.Inflow.Description)
	}
	if tr.Outflow.Transfer.GroupID != tr.GroupID || tr.Inflow.Transfer.GroupID != tr.GroupID {
		t.Errorf("legs not linked by group %s", tr.GroupID)
	}
	if tr.Outflow.Category.Name != domain.TransferCategoryName {
		t.Errorf("category = %q, want Transfer", tr.Outflow.Category.Name)
	}

	res, err := f.ledger.ArchiveTransaction(f.ctx, "u1", tr.Outflow.ID)
	if err != nil {
		t.Fatalf("ArchiveTransaction failed: %v", err)
	}
	if len(res.Affected) != 2 || res.Orphaned {
		t.Errorf("archive result = %+v, want both legs", res)
	}
	f.assertBalance(a, "1000")
	f.assertBalance(b, "0")
	for _, id := range []string{tr.Outflow.ID, tr.Inflow.ID} {
		if got := f.state(id); got != domain.StateArchived {
			t.Errorf("leg %s state = %s, want archived", id, got)
		}
	}

	// Restoring through the other leg brings both back.
	if _, err := f.ledger.RestoreTransaction(f.ctx, "u1", tr.Inflow.ID); err != nil {
		t.Fatalf("RestoreTransaction failed: %v", err)
	}
	f.assertBalance(a, "800")
	f.assertBalance(b, "200")
	for _, id := range []string{tr.Outflow.ID, tr.Inflow.ID} {
		if got := f.state(id); got != domain.StateActive {
			t.Errorf("leg %s state = %s, want active", id, got)
		}
	}
	f.assertConsistent()
}

func TestTransferReusesCategory(t *testing.T) {
	f := newFixture(t)
	a := f.account("u1", "A", "100")
	b := f.account("u1", "B", "0")

	first := f.transfer("u1", a, b, "10", "one")
	second := f.transfer("u1", b, a, "5", "two")
	if first.Outflow.CategoryID != second.Inflow.CategoryID {
		t.Errorf("transfer category recreated: %s vs %s", first.Outflow.CategoryID, second.Inflow.CategoryID)
	}
	cats, err := f.ledger.ListCategories(f.ctx, "u1")
	if err != nil {
		t.Fatalf("ListCategories failed: %v", err)
	}
	if len(cats) != 1 || !cats[0].System {
		t.Errorf("categories = %+v, want a single system category", cats)
	}
	f.assertBalance(a, "95")
	f.assertBalance(b, "5")
}

func TestTransferInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	a := f.account("u1", "A", "50")
	b := f.account("u1", "B", "0")

	_, err := f.ledger.CreateTransfer(f.ctx, service.TransferInput{
		OwnerID:       "u1",
		FromAccountID: a.ID,
		ToAccountID:   b.ID,
		Amount:        dec("100"),
		Description:   "too much",
		Date:          day,
	})
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("CreateTransfer() error = %v, want ErrInsufficientBalance", err)
	}
	f.assertBalance(a, "50")
	f.assertBalance(b, "0")

	res, err := f.ledger.ListTransactions(f.ctx, "u1", defaultParams())
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if res.Total != 0 {
		t.Errorf("transactions = %d, want 0", res.Total)
	}
	cats, _ := f.ledger.ListCategories(f.ctx, "u1")
	if len(cats) != 0 {
		t.Errorf("categories = %d, want 0 after rejected transfer", len(cats))
	}
}

func TestTransferAtomicityUnderFault(t *testing.T) {
	f := newFixture(t)
	a := f.account("u1", "A", "500")
	b := f.account("u1", "B", "0")

	boom := errors.New("disk on fire")
	for _, failAt := range []string{"insert_category", "insert_transaction#2", "adjust_balance#2"} {
		t.Run(failAt, func(t *testing.T) {
			op, nth, _ := strings.Cut(failAt, "#")
			want := 1
			if nth == "2" {
				want = 2
			}
			seen := 0
			f.store.SetFault(func(got string) error {
				if got != op {
					return nil
				}
				seen++
				if seen == want {
					return boom
				}
				return nil
			})
			defer f.store.SetFault(nil)

			_, err := f.ledger.CreateTransfer(f.ctx, service.TransferInput{
				OwnerID:       "u1",
				FromAccountID: a.ID,
				ToAccountID:   b.ID,
				Amount:        dec("100"),
				Description:   "atomic",
				Date:          day,
			})
			if !errors.Is(err, boom) {
				t.Fatalf("CreateTransfer() error = %v, want injected fault", err)
			}
			f.assertBalance(a, "500")
			f.assertBalance(b, "0")
			res, err := f.ledger.ListTransactions(f.ctx, "u1", defaultParams())
			if err != nil {
				t.Fatalf("ListTransactions failed: %v", err)
			}
			if res.Total != 0 {
				t.Errorf("transactions = %d after failed transfer, want 0", res.Total)
			}
		})
	}

	tr := f.transfer("u1", a, b, "100", "atomic")
	f.assertBalance(a, "400")
	f.assertBalance(b, "100")
	res, _ := f.ledger.ListTransactions(f.ctx, "u1", defaultParams())
	if res.Total != 2 {
		t.Errorf("transactions = %d, want 2", res.Total)
	}
	if tr.Outflow.Account.Balance.String() != "400" || tr.Inflow.Account.Balance.String() != "100" {
		t.Errorf("returned balances = %s/%s", tr.Outflow.Account.Balance, tr.Inflow.Account.Balance)
	}
	f.assertConsistent()
}

func TestTransferRejects(t *testing.T) {
	f := newFixture(t)
	a := f.account("u1", "A", "500")
	b := f.account("u1", "B", "0")
	theirs := f.account("u2", "C", "0")
	closed := f.account("u1", "Closed", "0")
	if _, err := f.ledger.ArchiveAccount(f.ctx, "u1", closed.ID); err != nil {
		t.Fatalf("ArchiveAccount failed: %v", err)
	}

	tests := []struct {
		name     string
		from, to string
		amount   string
		want     error
	}{
		{"same account", a.ID, a.ID, "10", domain.ErrValidation},
		{"zero amount", a.ID, b.ID, "0", domain.ErrValidation},
		{"too many decimals", a.ID, b.ID, "1.23456", domain.ErrValidation},
		{"missing account", a.ID, "nope", "10", domain.ErrNotFound},
		{"foreign destination", a.ID, theirs.ID, "10", domain.ErrForbidden},
		{"archived destination", a.ID, closed.ID, "10", domain.ErrInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.CreateTransfer(f.ctx, service.TransferInput{
				OwnerID:       "u1",
				FromAccountID: tt.from,
				ToAccountID:   tt.to,
				Amount:        dec(tt.amount),
				Description:   "x",
				Date:          day,
			})
			if !errors.Is(err, tt.want) {
				t.Fatalf("CreateTransfer() error = %v, want %v", err, tt.want)
			}
		})
	}
	f.assertBalance(a, "500")
	f.assertBalance(theirs, "0")
}

func TestDeletePairRemovesBothLegs(t *testing.T) {
	f := newFixture(t)
	a := f.account("u1", "A", "300")
	b := f.account("u1", "B", "0")
	tr := f.transfer("u1", a, b, "120", "move")

	if _, err := f.ledger.PermanentlyDeleteTransaction(f.ctx, "u1", tr.Inflow.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("delete of active leg error = %v, want ErrInvalidState", err)
	}
	if _, err := f.ledger.ArchiveTransaction(f.ctx, "u1", tr.Inflow.ID); err != nil {
		t.Fatalf("ArchiveTransaction failed: %v", err)
	}
	res, err := f.ledger.PermanentlyDeleteTransaction(f.ctx, "u1", tr.Outflow.ID)
	if err != nil {
		t.Fatalf("PermanentlyDeleteTransaction failed: %v", err)
	}
	if len(res.Affected) != 2 {
		t.Errorf("affected = %v, want both legs", res.Affected)
	}
	for _, id := range []string{tr.Outflow.ID, tr.Inflow.ID} {
		if _, err := f.store.GetTransactionDetail(f.ctx, id); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("leg %s still present: %v", id, err)
		}
	}
	f.assertBalance(a, "300")
	f.assertBalance(b, "0")
	f.assertConsistent()
}

func TestUpdateTransferLegRewritesBothLegs(t *testing.T) {
	f := newFixture(t)
	a := f.account("u1", "A", "300")
	b := f.account("u1", "B", "0")
	tr := f.transfer("u1", a, b, "120", "move")

	text := "holiday fund"
	when := day.AddDate(0, 0, 3)
	out, err := f.ledger.UpdateTransaction(f.ctx, "u1", tr.Inflow.ID, service.TransactionPatch{Description: &text, Date: &when})
	if err != nil {
		t.Fatalf("UpdateTransaction failed: %v", err)
	}
	if out.Description != "Transfer from A: holiday fund" || !out.Date.Equal(when) {
		t.Errorf("updated leg = %q on %s", out.Description, out.Date)
	}
	sib, err := f.ledger.GetTransaction(f.ctx, "u1", tr.Outflow.ID)
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}
	if sib.Description != "Transfer to B: holiday fund" || !sib.Date.Equal(when) {
		t.Errorf("sibling leg = %q on %s", sib.Description, sib.Date)
	}

	amount := dec("1")
	if _, err := f.ledger.UpdateTransaction(f.ctx, "u1", tr.Inflow.ID, service.TransactionPatch{Amount: &amount}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("amount change on leg error = %v, want ErrValidation", err)
	}
	f.assertBalance(a, "180")
	f.assertBalance(b, "120")
}

func legacyLeg(id string, account *domain.Account, categoryID string, typ domain.TransactionType, amount, desc string) domain.Transaction {
	return domain.Transaction{
		ID:          id,
		AccountID:   account.ID,
		CategoryID:  categoryID,
		Type:        typ,
		Amount:      dec(amount),
		Description: desc,
		Date:        day,
		State:       domain.StateActive,
	}
}

func TestLegacyLegsPairByDescription(t *testing.T) {
	f := newFixture(t)
	checking := f.account("u1", "Checking", "1000")
	savings := f.account("u1", "Savings", "0")
	other := f.account("u1", "Other", "0")
	misc := f.category("u1", "Misc")

	f.insertRaw(legacyLeg("out-1", checking, misc.ID, domain.Expense, "250", "Transfer to Savings: rent"))
	f.insertRaw(legacyLeg("in-1", savings, misc.ID, domain.Income, "250", "Transfer from Checking: rent"))
	// Same text and amount on an account the marker does not name.
	f.insertRaw(legacyLeg("decoy", other, misc.ID, domain.Income, "250", "Transfer from Checking: rent"))
	f.assertConsistent()

	sib, found, err := f.ledger.SiblingLeg(f.ctx, "u1", "out-1")
	if err != nil || !found {
		t.Fatalf("SiblingLeg() = %v, %v", found, err)
	}
	if sib.ID != "in-1" {
		t.Errorf("sibling = %s, want in-1", sib.ID)
	}

	res, err := f.ledger.ArchiveTransaction(f.ctx, "u1", "in-1")
	if err != nil {
		t.Fatalf("ArchiveTransaction failed: %v", err)
	}
	if len(res.Affected) != 2 || res.Orphaned {
		t.Errorf("archive result = %+v", res)
	}
	f.assertBalance(checking, "1000")
	f.assertBalance(savings, "0")
	f.assertBalance(other, "250")
	if got := f.state("decoy"); got != domain.StateActive {
		t.Errorf("decoy state = %s, want active", got)
	}
	f.assertConsistent()
}

func TestDuplicateLegacyPairsTransitionSeparately(t *testing.T) {
	f := newFixture(t)
	checking := f.account("u1", "Checking", "1000")
	savings := f.account("u1", "Savings", "0")
	misc := f.category("u1", "Misc")

	for _, n := range []string{"1", "2"} {
		f.insertRaw(legacyLeg("out-"+n, checking, misc.ID, domain.Expense, "100", "Transfer to Savings: rent"))
		f.insertRaw(legacyLeg("in-"+n, savings, misc.ID, domain.Income, "100", "Transfer from Checking: rent"))
	}
	f.assertBalance(checking, "800")
	f.assertBalance(savings, "200")

	for _, id := range []string{"out-1", "out-2"} {
		res, err := f.ledger.ArchiveTransaction(f.ctx, "u1", id)
		if err != nil {
			t.Fatalf("ArchiveTransaction(%s) failed: %v", id, err)
		}
		if len(res.Affected) != 2 || res.Orphaned {
			t.Errorf("archive %s result = %+v, want both legs", id, res)
		}
	}
	for _, id := range []string{"out-1", "in-1", "out-2", "in-2"} {
		if got := f.state(id); got != domain.StateArchived {
			t.Errorf("%s state = %s, want archived", id, got)
		}
	}
	f.assertBalance(checking, "1000")
	f.assertBalance(savings, "0")

	for _, id := range []string{"in-2", "out-2"} {
		res, err := f.ledger.RestoreTransaction(f.ctx, "u1", id)
		if err != nil {
			t.Fatalf("RestoreTransaction(%s) failed: %v", id, err)
		}
		if len(res.Affected) != 2 {
			t.Errorf("restore %s result = %+v, want both legs", id, res)
		}
	}
	f.assertBalance(checking, "800")
	f.assertBalance(savings, "200")
	f.assertConsistent()
}

func TestOrphanLegTransitionsAlone(t *testing.T) {
	f := newFixture(t)
	checking := f.account("u1", "Checking", "100")
	misc := f.category("u1", "Misc")
	f.insertRaw(legacyLeg("lonely", checking, misc.ID, domain.Expense, "40", "Transfer to Closed Account: old"))
	f.assertBalance(checking, "60")

	_, found, err := f.ledger.SiblingLeg(f.ctx, "u1", "lonely")
	if err != nil || found {
		t.Fatalf("SiblingLeg() = %v, %v; want orphan", found, err)
	}

	res, err := f.ledger.ArchiveTransaction(f.ctx, "u1", "lonely")
	if err != nil {
		t.Fatalf("ArchiveTransaction failed: %v", err)
	}
	if !res.Orphaned || len(res.Affected) != 1 {
		t.Errorf("archive result = %+v, want orphaned single leg", res)
	}
	f.assertBalance(checking, "100")

	if _, err := f.ledger.RestoreTransaction(f.ctx, "u1", "lonely"); err != nil {
		t.Fatalf("RestoreTransaction failed: %v", err)
	}
	f.assertBalance(checking, "60")
	if f.metrics.orphans != 2 {
		t.Errorf("orphan observations = %d, want 2", f.metrics.orphans)
	}
	f.assertConsistent()
}

func TestSiblingLegRejectsRegularTransaction(t *testing.T) {
	f := newFixture(t)
	a := f.account("u1", "A", "100")
	food := f.category("u1", "Food")
	d := f.create("u1", a, food, domain.Expense, "5", "tea")

	if _, _, err := f.ledger.SiblingLeg(f.ctx, "u1", d.ID); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("SiblingLeg() error = %v, want ErrValidation", err)
	}
}
