// internal/payment/handler.go
package payment

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"farmmarket/internal/httpx"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the transaction endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/origin/{origin}/{originID}", h.handleGetByOrigin)
	r.Get("/{transactionID}", h.handleGet)
	r.Post("/{transactionID}/receipt", h.handleSubmitReceipt)
	r.Post("/{transactionID}/verify", h.handleVerify)
	return r
}

func (h *Handler) handleGetByOrigin(w http.ResponseWriter, r *http.Request) {
	origin := Origin(chi.URLParam(r, "origin"))
	if origin != OriginReservation && origin != OriginUrgentSale {
		httpx.WriteBadRequest(w, fmt.Errorf("unknown origin %q", origin))
		return
	}
	originID, err := uuid.Parse(chi.URLParam(r, "originID"))
	if err != nil {
		httpx.WriteBadRequest(w, err)
		return
	}

	tx, err := h.service.GetByOrigin(r.Context(), origin, originID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tx)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		httpx.WriteBadRequest(w, err)
		return
	}

	tx, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tx)
}

func (h *Handler) handleSubmitReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		httpx.WriteBadRequest(w, err)
		return
	}
	caller, err := httpx.CallerID(r)
	if err != nil {
		httpx.WriteBadRequest(w, err)
		return
	}

	var req struct {
		ReceiptRef string `json:"receipt_ref" validate:"required"`
		Notes      string `json:"notes" validate:"max=500"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteBadRequest(w, err)
		return
	}

	tx, err := h.service.SubmitReceipt(r.Context(), id, caller, req.ReceiptRef, req.Notes)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tx)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		httpx.WriteBadRequest(w, err)
		return
	}
	caller, err := httpx.CallerID(r)
	if err != nil {
		httpx.WriteBadRequest(w, err)
		return
	}

	var req struct {
		Decision string `json:"decision" validate:"required,oneof=approve dispute"`
		Notes    string `json:"notes" validate:"max=500"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteBadRequest(w, err)
		return
	}

	tx, err := h.service.Verify(r.Context(), id, caller, Decision(req.Decision), req.Notes)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tx)
}
