package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Dan9191/bank-sync/internal/ledger"
	"github.com/Dan9191/bank-sync/internal/middleware"
	"github.com/Dan9191/bank-sync/internal/models"
	"github.com/Dan9191/bank-sync/internal/repository"
	"github.com/Dan9191/bank-sync/internal/service"
	"github.com/Dan9191/bank-sync/internal/worker"
	"github.com/sirupsen/logrus"
)

// SyncService is the part of the service the API exposes
type SyncService interface {
	SetCredential(ctx context.Context, userID int64, credential string) error
	Enqueue(op service.Operation, userID int64) error
	ListAccounts(ctx context.Context, userID int64) ([]models.Account, error)
	CategorySummary(ctx context.Context, userID, from, to int64) (models.CategorySummary, error)
	PeriodSummary(ctx context.Context, userID int64, period string) (models.CategorySummary, error)
}

type Handler struct {
	svc       SyncService
	log       *logrus.Logger
	startedAt time.Time
}

func NewHandler(svc SyncService, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log, startedAt: time.Now()}
}

type credentialRequest struct {
	Token string `json:"token"`
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Truncate(time.Second).String(),
	})
}

// SetCredential stores the caller's bank token
func (h *Handler) SetCredential(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.SetCredential(r.Context(), userID, req.Token); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Sync queues an incremental sync of the caller
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, r, service.OpSync)
}

// Backfill queues an import of the caller's previous calendar month
func (h *Handler) Backfill(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, r, service.OpBackfill)
}

// Reconcile queues an account reconciliation of the caller
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, r, service.OpReconcile)
}

// ListAccounts returns the caller's reconciled accounts
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	accounts, err := h.svc.ListAccounts(r.Context(), userID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if accounts == nil {
		accounts = []models.Account{}
	}
	respondJSON(w, http.StatusOK, accounts)
}

// Summary returns spending per category, either for ?period=week|month|year
// or for an explicit ?from=&to= range in epoch seconds.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	q := r.URL.Query()
	var summary models.CategorySummary
	var err error
	if q.Has("from") || q.Has("to") {
		from, ferr := strconv.ParseInt(q.Get("from"), 10, 64)
		to, terr := strconv.ParseInt(q.Get("to"), 10, 64)
		if ferr != nil || terr != nil {
			respondError(w, http.StatusBadRequest, "from and to must be epoch seconds")
			return
		}
		summary, err = h.svc.CategorySummary(r.Context(), userID, from, to)
	} else {
		summary, err = h.svc.PeriodSummary(r.Context(), userID, q.Get("period"))
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request, op service.Operation) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.Enqueue(op, userID); err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "operation": string(op)})
}

// fail maps service errors to HTTP status codes
func (h *Handler) fail(w http.ResponseWriter, err error) {
	var verr *ledger.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, repository.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, repository.ErrCredentialAlreadySet):
		respondError(w, http.StatusConflict, "credential already set")
	case errors.Is(err, worker.ErrQueueFull), errors.Is(err, worker.ErrStopped), errors.Is(err, service.ErrNoQueue):
		respondError(w, http.StatusServiceUnavailable, "try again later")
	default:
		h.log.Errorf("Request failed: %v", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
