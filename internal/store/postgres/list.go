package postgres

import (
	"fmt"
	"strings"

	"github.com/punchamoorthee/finledger/internal/domain"
	"github.com/punchamoorthee/finledger/internal/query"
)

// transferPredicate mirrors domain.Transaction.Kind: a group id, or a legacy
// description whose first ": " after the prefix is not at its start.
const transferPredicate = `(t.transfer_group_id IS NOT NULL OR
		(t.description ~ '^Transfer (to|from) .*: ' AND t.description !~ '^Transfer (to|from) : '))`

var sortColumns = map[query.SortField]string{
	query.SortByDate:        "t.date",
	query.SortByAmount:      "t.amount",
	query.SortByDescription: "lower(t.description)",
	query.SortByAccount:     "lower(a.name)",
	query.SortByCategory:    "lower(c.name)",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type listQuery struct {
	count string
	// page takes two extra arguments after args: limit and offset.
	page string
	args []any
}

// buildListQuery translates normalized params into SQL. Only active
// transactions on ownerID's accounts are visible.
func buildListQuery(ownerID string, p query.Params) listQuery {
	var where []string
	args := []any{ownerID}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	where = append(where, "a.owner_id = $1", "t.state = 'active'")
	f := p.Filters
	if f.Search != "" {
		where = append(where, "t.description ILIKE '%' || "+arg(likeEscaper.Replace(f.Search))+" || '%'")
	}
	if f.AccountID != "" {
		where = append(where, "t.account_id = "+arg(f.AccountID))
	}
	if f.CategoryID != "" {
		where = append(where, "t.category_id = "+arg(f.CategoryID))
	}
	if f.Type != "" {
		where = append(where, "t.type = "+arg(string(f.Type)))
	}
	switch f.Kind {
	case domain.KindTransfer:
		where = append(where, transferPredicate)
	case domain.KindRegular:
		where = append(where, "NOT "+transferPredicate)
	}
	if f.DateFrom != nil {
		where = append(where, "t.date >= "+arg(*f.DateFrom))
	}
	if f.DateTo != nil {
		where = append(where, "t.date <= "+arg(*f.DateTo))
	}
	if f.AmountMin != nil {
		where = append(where, "t.amount >= "+arg(*f.AmountMin))
	}
	if f.AmountMax != nil {
		where = append(where, "t.amount <= "+arg(*f.AmountMax))
	}

	cond := " WHERE " + strings.Join(where, " AND ")

	column, ok := sortColumns[p.SortBy]
	if !ok {
		column = sortColumns[query.SortByDate]
	}
	dir := "DESC"
	if p.SortOrder == query.Asc {
		dir = "ASC"
	}
	n := len(args)

	return listQuery{
		count: "SELECT COUNT(*)" + detailFrom + cond,
		page: fmt.Sprintf("SELECT %s%s%s ORDER BY %s %s, t.seq ASC LIMIT $%d OFFSET $%d",
			detailColumns, detailFrom, cond, column, dir, n+1, n+2),
		args: args,
	}
}
