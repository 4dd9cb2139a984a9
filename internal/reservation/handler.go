// internal/reservation/handler.go
package reservation

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"farmmarket/internal/httpx"
	"farmmarket/internal/payment"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the reservation endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreate)
	r.Get("/buyer", h.handleListByBuyer)
	r.Get("/farmer", h.handleListByFarmer)
	r.Get("/{reservationID}", h.handleGet)
	r.Post("/{reservationID}/approve", h.handleApprove)
	r.Post("/{reservationID}/reject", h.handleReject)
	r.Post("/{reservationID}/cancel", h.handleCancel)
	r.Post("/{reservationID}/expire", h.handleExpire)
	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	caller, err := httpx.CallerID(r)
	if err != nil {
		httpx.WriteBadRequest(w, err)
		return
	}

	var req struct {
		ListingID     string `json:"listing_id" validate:"required,uuid"`
		Quantity      int    `json:"quantity" validate:"required,gt=0"`
		PaymentMethod string `json:"payment_method" validate:"omitempty,oneof=cash bank_transfer mobile_money other"`
		Notes         string `json:"notes" validate:"max=500"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteBadRequest(w, err)
		return
	}
	listingID, err := uuid.Parse(req.ListingID)
	if err != nil {
		httpx.WriteBadRequest(w, err)
		return
	}

	res, err := h.service.Create(r.Context(), caller, listingID, req.Quantity, payment.Method(req.PaymentMethod), req.Notes)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "reservationID"))
	if err != nil {
		httpx.WriteBadRequest(w, err)
		return
	}

	res, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleListByBuyer(w http.ResponseWriter, r *http.Request) {
	caller, err := httpx.CallerID(r)
	if err != nil {
		httpx.WriteBadRequest(w, err)
		return
	}

	out, err := h.service.ListByBuyer(r.Context(), caller)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleListByFarmer(w http.ResponseWriter, r *http.Request) {
	caller, err := httpx.CallerID(r)
	if err != nil {
		httpx.WriteBadRequest(w, err)
		return
	}

	out, err := h.service.ListByFarmer(r.Context(), caller)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, caller, ok := h.idAndCaller(w, r)
	if !ok {
		return
	}

	var req struct {
		Notes string `json:"notes" validate:"max=500"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteBadRequest(w, err)
		return
	}

	res, err := h.service.Approve(r.Context(), id, caller, req.Notes)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	id, caller, ok := h.idAndCaller(w, r)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason" validate:"required,max=500"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteBadRequest(w, err)
		return
	}

	res, err := h.service.Reject(r.Context(), id, caller, req.Reason)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, caller, ok := h.idAndCaller(w, r)
	if !ok {
		return
	}

	res, err := h.service.CancelByBuyer(r.Context(), id, caller)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleExpire(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "reservationID"))
	if err != nil {
		httpx.WriteBadRequest(w, err)
		return
	}

	var req struct {
		Before time.Time `json:"before" validate:"required"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteBadRequest(w, err)
		return
	}

	expired, err := h.service.ExpireIfStale(r.Context(), id, req.Before)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"expired": expired})
}

func (h *Handler) idAndCaller(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "reservationID"))
	if err != nil {
		httpx.WriteBadRequest(w, err)
		return uuid.Nil, uuid.Nil, false
	}
	caller, err := httpx.CallerID(r)
	if err != nil {
		httpx.WriteBadRequest(w, err)
		return uuid.Nil, uuid.Nil, false
	}
	return id, caller, true
}
