package postgres

import (
	"github.com/punchamoorthee/finledger/internal/domain"
)

const (
	accountColumns  = `id, owner_id, name, type, balance, initial_balance, archived, created_at, updated_at`
	categoryColumns = `id, owner_id, name, color, icon, archived, system, created_at`

	transactionColumns = `t.seq, t.id, t.account_id, t.category_id, t.type, t.amount, t.description, t.date,
		t.state, t.transfer_group_id, t.transfer_direction, t.created_at, t.updated_at`

	detailColumns = transactionColumns + `, a.owner_id, a.name, a.type, a.balance, c.name, c.color, c.icon`
	detailFrom    = ` FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		JOIN categories c ON c.id = t.category_id`
)

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*domain.Account, error) {
	var a domain.Account
	var typ string
	err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &typ, &a.Balance, &a.InitialBalance, &a.Archived, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Type = domain.AccountType(typ)
	return &a, nil
}

func scanCategory(row scanner) (*domain.Category, error) {
	var c domain.Category
	err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Color, &c.Icon, &c.Archived, &c.System, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// txRow is a transactions row before the enum and transfer columns are
// folded into a domain.Transaction.
type txRow struct {
	t         domain.Transaction
	typ       string
	state     string
	group     *string
	direction *string
}

func (r *txRow) dest() []any {
	return []any{
		&r.t.Seq, &r.t.ID, &r.t.AccountID, &r.t.CategoryID, &r.typ, &r.t.Amount, &r.t.Description, &r.t.Date,
		&r.state, &r.group, &r.direction, &r.t.CreatedAt, &r.t.UpdatedAt,
	}
}

func (r *txRow) transaction() domain.Transaction {
	t := r.t
	t.Type = domain.TransactionType(r.typ)
	t.State = domain.State(r.state)
	if r.group != nil {
		leg := domain.TransferLeg{GroupID: *r.group, Direction: domain.DirectionOut}
		if r.direction != nil {
			leg.Direction = domain.Direction(*r.direction)
		}
		t.Transfer = &leg
	}
	return t
}

type detailRow struct {
	txRow
	account     domain.Account
	accountType string
	category    domain.Category
}

func (r *detailRow) dest() []any {
	return append(r.txRow.dest(),
		&r.account.OwnerID, &r.account.Name, &r.accountType, &r.account.Balance,
		&r.category.Name, &r.category.Color, &r.category.Icon,
	)
}

func (r *detailRow) detail() domain.TransactionDetail {
	t := r.transaction()
	a := r.account
	a.ID = t.AccountID
	a.Type = domain.AccountType(r.accountType)
	c := r.category
	c.ID = t.CategoryID
	return domain.NewTransactionDetail(t, a, c)
}

// transferColumns splits a leg into its nullable column values.
func transferColumns(t *domain.Transaction) (group, direction *string) {
	if t.Transfer == nil {
		return nil, nil
	}
	g, d := t.Transfer.GroupID, string(t.Transfer.Direction)
	return &g, &d
}
