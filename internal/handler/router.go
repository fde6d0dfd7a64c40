package handler

import (
	"net/http"

	"github.com/Dan9191/bank-sync/internal/config"
	"github.com/Dan9191/bank-sync/internal/middleware"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// NewRouter wires the API routes
func NewRouter(h *Handler, cfg *config.Config, log *logrus.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Logging(log))

	// Public routes
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	// Protected routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	authRouter.HandleFunc("/credential", h.SetCredential).Methods(http.MethodPut)
	authRouter.HandleFunc("/sync", h.Sync).Methods(http.MethodPost)
	authRouter.HandleFunc("/sync/backfill", h.Backfill).Methods(http.MethodPost)
	authRouter.HandleFunc("/accounts/reconcile", h.Reconcile).Methods(http.MethodPost)
	authRouter.HandleFunc("/accounts", h.ListAccounts).Methods(http.MethodGet)
	authRouter.HandleFunc("/reports/summary", h.Summary).Methods(http.MethodGet)
	return r
}
