package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies an account for display; it has no effect on balance rules.
type AccountType string

const (
	AccountChecking   AccountType = "checking"
	AccountSavings    AccountType = "savings"
	AccountCredit     AccountType = "credit"
	AccountCash       AccountType = "cash"
	AccountInvestment AccountType = "investment"
	AccountOther      AccountType = "other"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountChecking, AccountSavings, AccountCredit, AccountCash, AccountInvestment, AccountOther:
		return true
	}
	return false
}

// Account holds a user's running balance.
// Balance always equals InitialBalance plus the deltas of every active
// transaction posted to the account.
type Account struct {
	ID             string          `json:"id"`
	OwnerID        string          `json:"owner_id"`
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	Balance        decimal.Decimal `json:"balance"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	Archived       bool            `json:"archived"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TransferCategoryName is the name of the per-owner system category that
// every transfer leg is filed under.
const TransferCategoryName = "Transfer"

// Category groups transactions. System categories are managed by the ledger.
type Category struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	Icon      string    `json:"icon,omitempty"`
	Archived  bool      `json:"archived"`
	System    bool      `json:"system"`
	CreatedAt time.Time `json:"created_at"`
}

// TransactionType determines the sign of a transaction's balance delta.
type TransactionType string

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// State is the lifecycle state of a transaction.
type State string

const (
	StateActive   State = "active"
	StateArchived State = "archived"
)

// Kind separates regular transactions from transfer legs in queries.
type Kind string

const (
	KindRegular  Kind = "transaction"
	KindTransfer Kind = "transfer"
)

func (k Kind) Valid() bool {
	return k == KindRegular || k == KindTransfer
}

// Direction is the side of a transfer a leg represents.
type Direction string

const (
	DirectionOut Direction = "out"
	DirectionIn  Direction = "in"
)

// Opposite returns the direction of the sibling leg.
func (d Direction) Opposite() Direction {
	if d == DirectionOut {
		return DirectionIn
	}
	return DirectionOut
}

// TransferLeg links a transaction to its sibling through a shared group id.
type TransferLeg struct {
	GroupID   string    `json:"group_id"`
	Direction Direction `json:"direction"`
}

// Transaction is a single posting against an account.
type Transaction struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	CategoryID  string          `json:"category_id"`
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	State       State           `json:"state"`
	Transfer    *TransferLeg    `json:"transfer,omitempty"`
	Seq         int64           `json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (t *Transaction) Archived() bool { return t.State == StateArchived }

// Delta is the signed contribution of t to its account while active.
func (t *Transaction) Delta() decimal.Decimal { return Delta(t.Type, t.Amount) }

// Kind reports whether t is a transfer leg. Legs created before group ids
// existed are recognized by their description marker.
func (t *Transaction) Kind() Kind {
	if t.Transfer != nil {
		return KindTransfer
	}
	if _, ok := ParseTransferDescription(t.Description); ok {
		return KindTransfer
	}
	return KindRegular
}

// Clone returns a copy that shares no mutable state with t.
func (t Transaction) Clone() Transaction {
	if t.Transfer != nil {
		leg := *t.Transfer
		t.Transfer = &leg
	}
	return t
}

// AccountSummary and CategorySummary are the joined views returned with a
// transaction for display.
type AccountSummary struct {
	ID      string          `json:"id"`
	OwnerID string          `json:"owner_id"`
	Name    string          `json:"name"`
	Type    AccountType     `json:"type"`
	Balance decimal.Decimal `json:"balance"`
}

type CategorySummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

// TransactionDetail is a transaction joined with its account and category.
type TransactionDetail struct {
	Transaction
	Account  AccountSummary  `json:"account"`
	Category CategorySummary `json:"category"`
}

func NewTransactionDetail(t Transaction, a Account, c Category) TransactionDetail {
	return TransactionDetail{
		Transaction: t,
		Account:     AccountSummary{ID: a.ID, OwnerID: a.OwnerID, Name: a.Name, Type: a.Type, Balance: a.Balance},
		Category:    CategorySummary{ID: c.ID, Name: c.Name, Color: c.Color, Icon: c.Icon},
	}
}

// IdempotencyRecord stores the response of a completed mutation so that a
// retried request with the same key replays it instead of posting again.
type IdempotencyRecord struct {
	Key         string          `json:"key"`
	Operation   string          `json:"operation"`
	RequestHash string          `json:"request_hash"`
	Response    json.RawMessage `json:"response"`
	CreatedAt   time.Time       `json:"created_at"`
}
