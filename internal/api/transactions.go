package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/finledger/internal/domain"
	"github.com/punchamoorthee/finledger/internal/query"
	"github.com/punchamoorthee/finledger/internal/service"
)

func (h *Handler) CreateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	var in service.CreateTransactionInput
	if err := decodeBody(r, &in); err != nil {
		h.respondWithErr(w, r, err)
		return
	}
	in.OwnerID = ownerFrom(r)
	in.IdempotencyKey = r.Header.Get("Idempotency-Key")

	t, err := h.ledger.CreateTransaction(r.Context(), in)
	if err != nil {
		h.respondWithErr(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/transactions/"+t.ID)
	respondWithJSON(w, http.StatusCreated, t)
}

func (h *Handler) CreateTransferHandler(w http.ResponseWriter, r *http.Request) {
	var in service.TransferInput
	if err := decodeBody(r, &in); err != nil {
		h.respondWithErr(w, r, err)
		return
	}
	in.OwnerID = ownerFrom(r)
	in.IdempotencyKey = r.Header.Get("Idempotency-Key")

	res, err := h.ledger.CreateTransfer(r.Context(), in)
	if err != nil {
		h.respondWithErr(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/transactions/"+res.Outflow.ID)
	respondWithJSON(w, http.StatusCreated, res)
}

func (h *Handler) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	p, err := parseListParams(r.URL.Query())
	if err != nil {
		h.respondWithErr(w, r, err)
		return
	}
	res, err := h.ledger.ListTransactions(r.Context(), ownerFrom(r), p)
	if err != nil {
		h.respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func (h *Handler) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	t, err := h.ledger.GetTransaction(r.Context(), ownerFrom(r), mux.Vars(r)["id"])
	if err != nil {
		h.respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, t)
}

func (h *Handler) UpdateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	var patch service.TransactionPatch
	if err := decodeBody(r, &patch); err != nil {
		h.respondWithErr(w, r, err)
		return
	}
	t, err := h.ledger.UpdateTransaction(r.Context(), ownerFrom(r), mux.Vars(r)["id"], patch)
	if err != nil {
		h.respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, t)
}

func (h *Handler) ArchiveTransactionHandler(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.ledger.ArchiveTransaction)
}

func (h *Handler) RestoreTransactionHandler(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.ledger.RestoreTransaction)
}

func (h *Handler) DeleteTransactionHandler(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.ledger.PermanentlyDeleteTransaction)
}

type lifecycleFunc func(ctx context.Context, ownerID, id string) (*service.LifecycleResult, error)

func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request, fn lifecycleFunc) {
	res, err := fn(r.Context(), ownerFrom(r), mux.Vars(r)["id"])
	if err != nil {
		h.respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

type siblingResponse struct {
	Found   bool                `json:"found"`
	Sibling *domain.Transaction `json:"sibling,omitempty"`
}

func (h *Handler) SiblingLegHandler(w http.ResponseWriter, r *http.Request) {
	sib, found, err := h.ledger.SiblingLeg(r.Context(), ownerFrom(r), mux.Vars(r)["id"])
	if err != nil {
		h.respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, siblingResponse{Found: found, Sibling: sib})
}

type bulkRequest struct {
	IDs    []string           `json:"ids"`
	Policy service.BulkPolicy `json:"policy"`
}

func (h *Handler) BulkHandler(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := decodeBody(r, &req); err != nil {
		h.respondWithErr(w, r, err)
		return
	}

	var fn func(ctx context.Context, ownerID string, ids []string, policy service.BulkPolicy) (*service.BulkResult, error)
	switch mux.Vars(r)["action"] {
	case "archive":
		fn = h.ledger.ArchiveMany
	case "restore":
		fn = h.ledger.RestoreMany
	default:
		fn = h.ledger.PermanentlyDeleteMany
	}

	res, err := fn(r.Context(), ownerFrom(r), req.IDs, req.Policy)
	if err != nil {
		h.respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

// parseListParams reads filters, sorting and paging from the query string.
// Dates accept YYYY-MM-DD or RFC 3339.
func parseListParams(v url.Values) (query.Params, error) {
	p := query.Params{
		Filters: query.Filters{
			Search:     v.Get("search"),
			AccountID:  v.Get("account_id"),
			CategoryID: v.Get("category_id"),
			Type:       domain.TransactionType(v.Get("type")),
			Kind:       domain.Kind(v.Get("kind")),
		},
		SortBy:    query.SortField(v.Get("sort_by")),
		SortOrder: query.SortOrder(v.Get("sort_order")),
	}

	var err error
	if p.DateFrom, err = parseDate(v, "date_from"); err != nil {
		return p, err
	}
	if p.DateTo, err = parseDate(v, "date_to"); err != nil {
		return p, err
	}
	if p.AmountMin, err = parseDecimal(v, "amount_min"); err != nil {
		return p, err
	}
	if p.AmountMax, err = parseDecimal(v, "amount_max"); err != nil {
		return p, err
	}
	if p.Page, err = parseInt(v, "page"); err != nil {
		return p, err
	}
	if p.Limit, err = parseInt(v, "limit"); err != nil {
		return p, err
	}
	return p, nil
}

// parseDate reads an optional date filter. A calendar-day upper bound
// covers the whole of that day.
func parseDate(v url.Values, key string) (*time.Time, error) {
	s := strings.TrimSpace(v.Get(key))
	if s == "" {
		return nil, nil
	}
	t, err := domain.ParseDate(s)
	if err != nil {
		return nil, domain.Errorf(domain.ErrValidation, "%s must be YYYY-MM-DD or RFC 3339, got %q", key, s)
	}
	if key == "date_to" && len(s) == len(time.DateOnly) {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func parseDecimal(v url.Values, key string) (*decimal.Decimal, error) {
	s := strings.TrimSpace(v.Get(key))
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, domain.Errorf(domain.ErrValidation, "%s must be a number, got %q", key, s)
	}
	return &d, nil
}

func parseInt(v url.Values, key string) (int, error) {
	s := strings.TrimSpace(v.Get(key))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, domain.Errorf(domain.ErrValidation, "%s must be an integer, got %q", key, s)
	}
	return n, nil
}
