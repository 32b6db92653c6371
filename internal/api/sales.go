package api

import (
	"database/sql"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/erazemk/duka/internal/ledger"
	"github.com/erazemk/duka/internal/model"
	"github.com/erazemk/duka/internal/store"
)

// SalesHandler handles sale endpoints.
type SalesHandler struct {
	DB     *sql.DB
	Ledger *ledger.Ledger
}

type createSaleRequest struct {
	ItemID        int64           `json:"item_id" validate:"required,gt=0"`
	Quantity      int             `json:"quantity" validate:"required,gte=1"`
	Location      model.Location  `json:"location" validate:"omitempty,oneof=dar dodoma"`
	TotalAmount   decimal.Decimal `json:"total_amount" validate:"gte=0"`
	PaymentMethod string          `json:"payment_method" validate:"required,oneof=cash credit"`
	CustomerName  string          `json:"customer_name" validate:"max=200"`
	PhoneNumber   string          `json:"phone_number" validate:"max=50"`
	SoldAt        model.Date      `json:"sold_at"`
}

type correctSaleRequest struct {
	Quantity      int             `json:"quantity" validate:"required,gte=1"`
	TotalAmount   decimal.Decimal `json:"total_amount" validate:"gte=0"`
	PaymentMethod string          `json:"payment_method" validate:"required,oneof=cash credit"`
	CustomerName  string          `json:"customer_name" validate:"max=200"`
	PhoneNumber   string          `json:"phone_number" validate:"max=50"`
	SoldAt        model.Date      `json:"sold_at"`
}

// List handles GET /api/sales.
func (h *SalesHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.SaleFilter{
		PaymentMethod: q.Get("payment_method"),
		Customer:      strings.TrimSpace(q.Get("customer")),
	}

	var err error
	if f.ItemID, err = queryInt64(q, "item_id"); err != nil {
		queryError(w, r, err)
		return
	}
	if f.Location, err = queryLocation(q); err != nil {
		queryError(w, r, err)
		return
	}
	if f.Dates, err = queryDates(q); err != nil {
		queryError(w, r, err)
		return
	}
	if f.Page, err = queryPage(q); err != nil {
		queryError(w, r, err)
		return
	}
	if f.PaymentMethod != "" && !model.ValidPaymentMethod(f.PaymentMethod) {
		queryError(w, r, fmt.Errorf("invalid payment_method %q", f.PaymentMethod))
		return
	}

	sales, err := store.ListSales(r.Context(), h.DB, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if sales == nil {
		sales = []model.Sale{}
	}
	jsonResponse(w, http.StatusOK, sales)
}

// Create handles POST /api/sales. A replayed Idempotency-Key answers 200
// with the original sale instead of 201.
func (h *SalesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSaleRequest
	if !bind(w, r, &req) {
		return
	}

	res, err := h.Ledger.RecordSale(r.Context(), GetClaims(r.Context()).Actor(), model.SaleInput{
		ItemID:        req.ItemID,
		Quantity:      req.Quantity,
		Location:      req.Location,
		TotalAmount:   req.TotalAmount,
		PaymentMethod: req.PaymentMethod,
		CustomerName:  req.CustomerName,
		PhoneNumber:   req.PhoneNumber,
		SoldAt:        req.SoldAt,
	}, r.Header.Get(IdempotencyKeyHeader))
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	jsonResponse(w, status, res)
}

// Get handles GET /api/sales/{id}. Voided sales are still returned, with
// voided_at set.
func (h *SalesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "sale")
	if !ok {
		return
	}

	sale, err := store.GetSale(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if sale == nil {
		jsonError(w, http.StatusNotFound, "sale not found")
		return
	}
	jsonResponse(w, http.StatusOK, sale)
}

// Update handles PUT /api/sales/{id}.
func (h *SalesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "sale")
	if !ok {
		return
	}

	var req correctSaleRequest
	if !bind(w, r, &req) {
		return
	}

	res, err := h.Ledger.CorrectSale(r.Context(), GetClaims(r.Context()).Actor(), id, model.SaleCorrection{
		Quantity:      req.Quantity,
		TotalAmount:   req.TotalAmount,
		PaymentMethod: req.PaymentMethod,
		CustomerName:  req.CustomerName,
		PhoneNumber:   req.PhoneNumber,
		SoldAt:        req.SoldAt,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// Delete handles DELETE /api/sales/{id}. The sale is voided, not removed.
func (h *SalesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "sale")
	if !ok {
		return
	}

	res, err := h.Ledger.VoidSale(r.Context(), GetClaims(r.Context()).Actor(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}
