// internal/urgentsale/handler.go
package urgentsale

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"farmmarket/internal/httpx"
	"farmmarket/internal/payment"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the urgent sale endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{saleID}", h.handleGet)
	r.Post("/{saleID}/purchase", h.handlePurchase)
	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	caller, err := httpx.CallerID(r)
	if err != nil {
		httpx.WriteBadRequest(w, err)
		return
	}

	var req struct {
		ProductName   string    `json:"product_name" validate:"required,max=200"`
		Description   string    `json:"description" validate:"max=1000"`
		OriginalPrice string    `json:"original_price" validate:"required"`
		ReducedPrice  string    `json:"reduced_price" validate:"required"`
		Quantity      int       `json:"quantity" validate:"required,gt=0"`
		Unit          string    `json:"unit" validate:"omitempty,oneof=kg g basket bag piece bunch liter"`
		BestBefore    time.Time `json:"best_before" validate:"required"`
		Reason        string    `json:"reason" validate:"required,max=500"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteBadRequest(w, err)
		return
	}
	original, err := decimal.NewFromString(req.OriginalPrice)
	if err != nil {
		httpx.WriteBadRequest(w, err)
		return
	}
	reduced, err := decimal.NewFromString(req.ReducedPrice)
	if err != nil {
		httpx.WriteBadRequest(w, err)
		return
	}

	sale, err := h.service.Create(r.Context(), caller, CreateParams{
		ProductName:   req.ProductName,
		Description:   req.Description,
		OriginalPrice: original,
		ReducedPrice:  reduced,
		Quantity:      req.Quantity,
		Unit:          req.Unit,
		BestBefore:    req.BestBefore,
		Reason:        req.Reason,
	})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, sale)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	sales, err := h.service.List(r.Context())
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sales)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "saleID"))
	if err != nil {
		httpx.WriteBadRequest(w, err)
		return
	}

	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sale)
}

func (h *Handler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "saleID"))
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
		Quantity      int    `json:"quantity" validate:"required,gt=0"`
		PaymentMethod string `json:"payment_method" validate:"omitempty,oneof=cash bank_transfer mobile_money other"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteBadRequest(w, err)
		return
	}

	purchase, tx, err := h.service.Purchase(r.Context(), id, caller, req.Quantity, payment.Method(req.PaymentMethod))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"purchase":    purchase,
		"transaction": tx,
	})
}
