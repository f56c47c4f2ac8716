package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Its-SuperNova/duchess-backend-sub000/internal/domain"
	"github.com/Its-SuperNova/duchess-backend-sub000/internal/http/response"
	"github.com/Its-SuperNova/duchess-backend-sub000/internal/session"
)

// SessionHandler exposes the tiered session store to the checkout UI, the
// payment webhook handler, and the order-finalization routine.
type SessionHandler struct {
	store *session.TieredStore
}

func NewSessionHandler(store *session.TieredStore) *SessionHandler {
	return &SessionHandler{store: store}
}

func (h *SessionHandler) Routes(r chi.Router) {
	r.Route("/checkout-sessions", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/stats", h.Stats)
		r.Post("/cleanup", h.Cleanup)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/", h.Update)
			r.Delete("/", h.Delete)
			r.Post("/payment-status", h.UpdatePaymentStatus)
			r.Post("/order", h.UpdateDatabaseOrderID)
		})
	})
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input session.SessionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	for i, item := range input.Items {
		if item.Quantity < 1 {
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "item quantity must be at least 1", map[string]any{"index": i})
			return
		}
	}
	record, err := h.store.CreateSession(r.Context(), input)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to create checkout session", nil)
		return
	}
	response.JSON(w, r, http.StatusCreated, record)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	record, err := h.store.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to load checkout session", nil)
		return
	}
	if record == nil {
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "no active checkout session", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, record)
}

func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch session.SessionPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if patch.PaymentStatus != nil && !patch.PaymentStatus.Valid() {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid payment status", nil)
		return
	}
	record, err := h.store.UpdateSession(r.Context(), chi.URLParam(r, "sessionID"), patch)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to update checkout session", nil)
		return
	}
	if record == nil {
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "no active checkout session", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, record)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.store.DeleteSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to delete checkout session", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"deleted": deleted})
}

func (h *SessionHandler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status domain.PaymentStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if !body.Status.Valid() {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid payment status", nil)
		return
	}
	record, err := h.store.UpdatePaymentStatus(r.Context(), chi.URLParam(r, "sessionID"), body.Status)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to update payment status", nil)
		return
	}
	if record == nil {
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "no active checkout session", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, record)
}

func (h *SessionHandler) UpdateDatabaseOrderID(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrderID string `json:"order_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(body.OrderID) == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "order_id is required", nil)
		return
	}
	record, err := h.store.UpdateDatabaseOrderID(r.Context(), chi.URLParam(r, "sessionID"), body.OrderID)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to link order", nil)
		return
	}
	if record == nil {
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "no active checkout session", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, record)
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	var (
		records []domain.CheckoutSession
		err     error
	)
	if userID != "" {
		records, err = h.store.ListSessionsByUser(r.Context(), userID)
	} else {
		records, err = h.store.ListAllSessions(r.Context())
	}
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to list checkout sessions", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"items": records, "count": len(records)})
}

func (h *SessionHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	removed, err := h.store.CleanupExpiredSessions(r.Context())
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to clean up expired sessions", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"removed": removed})
}

func (h *SessionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to read session stats", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, stats)
}

func (h *SessionHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.store.HealthCheck(r.Context()))
}
