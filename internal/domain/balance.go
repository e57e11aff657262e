package domain

import "github.com/shopspring/decimal"

// Delta returns the signed amount a transaction of type t contributes to its
// account: income adds, expense subtracts. amount is expected to be positive.
func Delta(t TransactionType, amount decimal.Decimal) decimal.Decimal {
	if t == Expense {
		return amount.Neg()
	}
	return amount
}

// InverseDelta undoes Delta. It is applied when a transaction stops
// contributing to its account.
func InverseDelta(t TransactionType, amount decimal.Decimal) decimal.Decimal {
	return Delta(t, amount).Neg()
}

// Money columns hold 20 digits, 4 of them after the decimal point.
const (
	MoneyScale         = 4
	moneyIntegerDigits = 16
)

var moneyLimit = decimal.New(1, moneyIntegerDigits)

// CheckMoney rejects values the store cannot hold exactly: more than
// MoneyScale decimal places, or a magnitude of 10^16 or more.
func CheckMoney(field string, d decimal.Decimal) error {
	if !d.Truncate(MoneyScale).Equal(d) {
		return Errorf(ErrValidation, "%s %s has more than %d decimal places", field, d, MoneyScale)
	}
	if d.Abs().GreaterThanOrEqual(moneyLimit) {
		return Errorf(ErrValidation, "%s %s is out of range", field, d)
	}
	return nil
}
