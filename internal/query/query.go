// Package query holds the filter, sort and pagination rules for transaction
// listings. Store implementations either push these rules down to their
// backend or apply them in memory with Apply.
package query

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/finledger/internal/domain"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type SortField string

const (
	SortByDate        SortField = "date"
	SortByAmount      SortField = "amount"
	SortByDescription SortField = "description"
	SortByAccount     SortField = "account"
	SortByCategory    SortField = "category"
)

func (f SortField) Valid() bool {
	switch f {
	case SortByDate, SortByAmount, SortByDescription, SortByAccount, SortByCategory:
		return true
	}
	return false
}

type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Filters narrows a listing. Zero values mean "no constraint"; ranges are inclusive.
type Filters struct {
	Search     string
	AccountID  string
	CategoryID string
	Type       domain.TransactionType
	Kind       domain.Kind
	DateFrom   *time.Time
	DateTo     *time.Time
	AmountMin  *decimal.Decimal
	AmountMax  *decimal.Decimal
}

// Params is a complete listing request.
type Params struct {
	Filters
	SortBy    SortField
	SortOrder SortOrder
	Page      int
	Limit     int
}

// Result is one page of a listing. Total counts the whole matching set.
type Result struct {
	Items       []domain.TransactionDetail `json:"items"`
	Total       int                        `json:"total"`
	TotalPages  int                        `json:"total_pages"`
	CurrentPage int                        `json:"current_page"`
	Limit       int                        `json:"limit"`
}

// Normalize fills defaults and validates p. maxLimit caps the page size;
// zero means MaxPageSize.
func (p Params) Normalize(defaultLimit, maxLimit int) (Params, error) {
	if defaultLimit <= 0 {
		defaultLimit = DefaultPageSize
	}
	if maxLimit <= 0 {
		maxLimit = MaxPageSize
	}
	if p.SortBy == "" {
		p.SortBy = SortByDate
	}
	if !p.SortBy.Valid() {
		return p, domain.Errorf(domain.ErrValidation, "unknown sort field %q", p.SortBy)
	}
	p.SortOrder = SortOrder(strings.ToLower(string(p.SortOrder)))
	switch p.SortOrder {
	case "":
		p.SortOrder = Desc
	case Asc, Desc:
	default:
		return p, domain.Errorf(domain.ErrValidation, "unknown sort order %q", p.SortOrder)
	}
	if p.Type != "" && !p.Type.Valid() {
		return p, domain.Errorf(domain.ErrValidation, "unknown transaction type %q", p.Type)
	}
	if p.Kind != "" && !p.Kind.Valid() {
		return p, domain.Errorf(domain.ErrValidation, "unknown transaction kind %q", p.Kind)
	}
	if p.DateFrom != nil && p.DateTo != nil && p.DateTo.Before(*p.DateFrom) {
		return p, domain.Errorf(domain.ErrValidation, "date range ends before it starts")
	}
	if p.AmountMin != nil && p.AmountMax != nil && p.AmountMax.LessThan(*p.AmountMin) {
		return p, domain.Errorf(domain.ErrValidation, "amount range ends before it starts")
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	p.Search = strings.TrimSpace(p.Search)
	return p, nil
}

// TotalPages returns the number of pages needed for total items.
func TotalPages(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// ClampPage keeps page within [1, totalPages], or 1 when there are no pages.
func ClampPage(page, totalPages int) int {
	if totalPages < 1 || page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

// Match reports whether d passes every filter in f.
func Match(f Filters, d *domain.TransactionDetail) bool {
	if f.Search != "" && !strings.Contains(strings.ToLower(d.Description), strings.ToLower(f.Search)) {
		return false
	}
	if f.AccountID != "" && d.AccountID != f.AccountID {
		return false
	}
	if f.CategoryID != "" && d.CategoryID != f.CategoryID {
		return false
	}
	if f.Type != "" && d.Type != f.Type {
		return false
	}
	if f.Kind != "" && d.Transaction.Kind() != f.Kind {
		return false
	}
	if f.DateFrom != nil && d.Date.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && d.Date.After(*f.DateTo) {
		return false
	}
	if f.AmountMin != nil && d.Amount.LessThan(*f.AmountMin) {
		return false
	}
	if f.AmountMax != nil && d.Amount.GreaterThan(*f.AmountMax) {
		return false
	}
	return true
}

// Sort orders items by field. Ties keep insertion order in both directions.
func Sort(items []domain.TransactionDetail, by SortField, order SortOrder) {
	cmp := compareFunc(by)
	sort.SliceStable(items, func(i, j int) bool {
		c := cmp(&items[i], &items[j])
		if c == 0 {
			return items[i].Seq < items[j].Seq
		}
		if order == Asc {
			return c < 0
		}
		return c > 0
	})
}

func compareFunc(by SortField) func(a, b *domain.TransactionDetail) int {
	switch by {
	case SortByAmount:
		return func(a, b *domain.TransactionDetail) int { return a.Amount.Cmp(b.Amount) }
	case SortByDescription:
		return func(a, b *domain.TransactionDetail) int {
			return strings.Compare(strings.ToLower(a.Description), strings.ToLower(b.Description))
		}
	case SortByAccount:
		return func(a, b *domain.TransactionDetail) int {
			return strings.Compare(strings.ToLower(a.Account.Name), strings.ToLower(b.Account.Name))
		}
	case SortByCategory:
		return func(a, b *domain.TransactionDetail) int {
			return strings.Compare(strings.ToLower(a.Category.Name), strings.ToLower(b.Category.Name))
		}
	default:
		return func(a, b *domain.TransactionDetail) int { return a.Date.Compare(b.Date) }
	}
}

// Apply filters, sorts and paginates items in memory. p must be normalized.
func Apply(items []domain.TransactionDetail, p Params) Result {
	matched := make([]domain.TransactionDetail, 0, len(items))
	for i := range items {
		if Match(p.Filters, &items[i]) {
			matched = append(matched, items[i])
		}
	}
	Sort(matched, p.SortBy, p.SortOrder)

	total := len(matched)
	pages := TotalPages(total, p.Limit)
	page := ClampPage(p.Page, pages)

	start := (page - 1) * p.Limit
	end := start + p.Limit
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return Result{
		Items:       matched[start:end],
		Total:       total,
		TotalPages:  pages,
		CurrentPage: page,
		Limit:       p.Limit,
	}
}
