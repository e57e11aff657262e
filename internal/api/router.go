package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter registers the health check and the /api/v1 routes.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.HealthCheckHandler).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(instrument, h.authenticate)

	v1.HandleFunc("/accounts", h.CreateAccountHandler).Methods(http.MethodPost)
	v1.HandleFunc("/accounts", h.ListAccountsHandler).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{id}", h.GetAccountHandler).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{id}", h.DeleteAccountHandler).Methods(http.MethodDelete)
	v1.HandleFunc("/accounts/{id}/archive", h.ArchiveAccountHandler).Methods(http.MethodPost)
	v1.HandleFunc("/accounts/{id}/unarchive", h.UnarchiveAccountHandler).Methods(http.MethodPost)
	v1.HandleFunc("/accounts/{id}/reconcile", h.ReconcileHandler).Methods(http.MethodPost)

	v1.HandleFunc("/categories", h.CreateCategoryHandler).Methods(http.MethodPost)
	v1.HandleFunc("/categories", h.ListCategoriesHandler).Methods(http.MethodGet)
	v1.HandleFunc("/categories/{id}", h.DeleteCategoryHandler).Methods(http.MethodDelete)

	// Registered before /transactions/{id}/... so "bulk" is never read as an id.
	v1.HandleFunc("/transactions/bulk/{action:archive|restore|delete}", h.BulkHandler).Methods(http.MethodPost)

	v1.HandleFunc("/transactions", h.CreateTransactionHandler).Methods(http.MethodPost)
	v1.HandleFunc("/transactions", h.ListTransactionsHandler).Methods(http.MethodGet)
	v1.HandleFunc("/transactions/{id}", h.GetTransactionHandler).Methods(http.MethodGet)
	v1.HandleFunc("/transactions/{id}", h.UpdateTransactionHandler).Methods(http.MethodPatch)
	v1.HandleFunc("/transactions/{id}", h.DeleteTransactionHandler).Methods(http.MethodDelete)
	v1.HandleFunc("/transactions/{id}/archive", h.ArchiveTransactionHandler).Methods(http.MethodPost)
	v1.HandleFunc("/transactions/{id}/restore", h.RestoreTransactionHandler).Methods(http.MethodPost)
	v1.HandleFunc("/transactions/{id}/sibling", h.SiblingLegHandler).Methods(http.MethodGet)

	v1.HandleFunc("/transfers", h.CreateTransferHandler).Methods(http.MethodPost)

	v1.HandleFunc("/auth/revoke", h.RevokeTokenHandler).Methods(http.MethodPost)

	return r
}
