package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/punchamoorthee/finledger/internal/domain"
	"github.com/punchamoorthee/finledger/internal/service"
)

func (h *Handler) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var in service.CreateAccountInput
	if err := decodeBody(r, &in); err != nil {
		h.respondWithErr(w, r, err)
		return
	}
	in.OwnerID = ownerFrom(r)

	a, err := h.ledger.CreateAccount(r.Context(), in)
	if err != nil {
		h.respondWithErr(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/accounts/"+a.ID)
	respondWithJSON(w, http.StatusCreated, a)
}

func (h *Handler) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.ledger.ListAccounts(r.Context(), ownerFrom(r))
	if err != nil {
		h.respondWithErr(w, r, err)
		return
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	respondWithJSON(w, http.StatusOK, accounts)
}

func (h *Handler) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	a, err := h.ledger.GetAccount(r.Context(), ownerFrom(r), mux.Vars(r)["id"])
	if err != nil {
		h.respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, a)
}

func (h *Handler) ArchiveAccountHandler(w http.ResponseWriter, r *http.Request) {
	a, err := h.ledger.ArchiveAccount(r.Context(), ownerFrom(r), mux.Vars(r)["id"])
	if err != nil {
		h.respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, a)
}

func (h *Handler) UnarchiveAccountHandler(w http.ResponseWriter, r *http.Request) {
	a, err := h.ledger.UnarchiveAccount(r.Context(), ownerFrom(r), mux.Vars(r)["id"])
	if err != nil {
		h.respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, a)
}

func (h *Handler) DeleteAccountHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeleteAccount(r.Context(), ownerFrom(r), mux.Vars(r)["id"]); err != nil {
		h.respondWithErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReconcileHandler reports balance drift; ?repair=true rewrites the balance.
func (h *Handler) ReconcileHandler(w http.ResponseWriter, r *http.Request) {
	repair := false
	if v := r.URL.Query().Get("repair"); v != "" {
		var err error
		if repair, err = strconv.ParseBool(v); err != nil {
			h.respondWithErr(w, r, domain.Errorf(domain.ErrValidation, "repair must be a boolean, got %q", v))
			return
		}
	}

	rec, err := h.ledger.Reconcile(r.Context(), ownerFrom(r), mux.Vars(r)["id"], repair)
	if err != nil {
		h.respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rec)
}

func (h *Handler) CreateCategoryHandler(w http.ResponseWriter, r *http.Request) {
	var in service.CreateCategoryInput
	if err := decodeBody(r, &in); err != nil {
		h.respondWithErr(w, r, err)
		return
	}
	in.OwnerID = ownerFrom(r)

	c, err := h.ledger.CreateCategory(r.Context(), in)
	if err != nil {
		h.respondWithErr(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, c)
}

func (h *Handler) ListCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	categories, err := h.ledger.ListCategories(r.Context(), ownerFrom(r))
	if err != nil {
		h.respondWithErr(w, r, err)
		return
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	respondWithJSON(w, http.StatusOK, categories)
}

func (h *Handler) DeleteCategoryHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeleteCategory(r.Context(), ownerFrom(r), mux.Vars(r)["id"]); err != nil {
		h.respondWithErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
