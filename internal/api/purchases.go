package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erazemk/duka/internal/ledger"
	"github.com/erazemk/duka/internal/model"
	"github.com/erazemk/duka/internal/store"
)

// PurchasesHandler handles purchase endpoints.
type PurchasesHandler struct {
	DB     *sql.DB
	Ledger *ledger.Ledger
}

type purchaseRequest struct {
	ItemName          string          `json:"item_name" validate:"required,max=200"`
	CategoryID        int64           `json:"category_id" validate:"required,gt=0"`
	QuantityPurchased int             `json:"quantity_purchased" validate:"required,gte=1"`
	Price             decimal.Decimal `json:"price" validate:"gte=0"`
	PurchaseDate      model.Date      `json:"purchase_date"`
	Status            string          `json:"status" validate:"omitempty,oneof=active inactive"`
	// ItemID receives the purchase into an existing item straight away.
	ItemID int64 `json:"item_id" validate:"gte=0"`
}

type receivePurchaseRequest struct {
	ItemID int64 `json:"item_id" validate:"required,gt=0"`
}

func (req purchaseRequest) purchase() *model.Purchase {
	return &model.Purchase{
		ItemName:          strings.TrimSpace(req.ItemName),
		CategoryID:        req.CategoryID,
		QuantityPurchased: req.QuantityPurchased,
		Price:             req.Price,
		PurchaseDate:      req.PurchaseDate,
		Status:            req.Status,
	}
}

func purchaseFilter(r *http.Request) (store.PurchaseFilter, error) {
	q := r.URL.Query()
	f := store.PurchaseFilter{ItemName: strings.TrimSpace(q.Get("item_name"))}

	var err error
	if f.CategoryID, err = queryInt64(q, "category_id"); err != nil {
		return f, err
	}
	if f.Dates, err = queryDates(q); err != nil {
		return f, err
	}
	if f.Page, err = queryPage(q); err != nil {
		return f, err
	}
	if v := q.Get("received"); v != "" {
		received, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.New("invalid received")
		}
		f.Received = &received
	}
	return f, nil
}

// List handles GET /api/purchases.
func (h *PurchasesHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := purchaseFilter(r)
	if err != nil {
		queryError(w, r, err)
		return
	}

	purchases, err := store.ListPurchases(r.Context(), h.DB, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if purchases == nil {
		purchases = []model.Purchase{}
	}
	jsonResponse(w, http.StatusOK, purchases)
}

// Count handles GET /api/purchases/count.
func (h *PurchasesHandler) Count(w http.ResponseWriter, r *http.Request) {
	f, err := purchaseFilter(r)
	if err != nil {
		queryError(w, r, err)
		return
	}

	n, err := store.CountPurchases(r.Context(), h.DB, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"count": n})
}

// Create handles POST /api/purchases.
func (h *PurchasesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if !bind(w, r, &req) {
		return
	}

	res, err := h.Ledger.RecordPurchase(r.Context(), GetClaims(r.Context()).Actor(), req.purchase(), req.ItemID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, res)
}

// Get handles GET /api/purchases/{id}.
func (h *PurchasesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "purchase")
	if !ok {
		return
	}

	p, err := store.GetPurchase(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if p == nil {
		jsonError(w, http.StatusNotFound, "purchase not found")
		return
	}
	jsonResponse(w, http.StatusOK, p)
}

// Update handles PUT /api/purchases/{id}. A received purchase keeps its
// quantity; changing it is a conflict.
func (h *PurchasesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "purchase")
	if !ok {
		return
	}

	var req purchaseRequest
	if !bind(w, r, &req) {
		return
	}
	p := req.purchase()
	p.ID = id
	if p.Status == "" {
		p.Status = model.PurchaseStatusActive
	}
	if p.ItemName == "" {
		writeError(w, r, fmt.Errorf("%w: item_name is required", model.ErrValidation))
		return
	}
	if p.PurchaseDate.IsZero() {
		writeError(w, r, fmt.Errorf("%w: purchase_date is required", model.ErrValidation))
		return
	}

	category, err := store.GetCategory(r.Context(), h.DB, p.CategoryID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if category == nil {
		writeError(w, r, fmt.Errorf("%w: category %d", model.ErrNotFound, p.CategoryID))
		return
	}

	if err := store.UpdatePurchase(r.Context(), h.DB, p); err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := store.GetPurchase(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logger(r.Context()).Info("purchase updated", zap.Int64("purchase_id", id))
	jsonResponse(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/purchases/{id}.
func (h *PurchasesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "purchase")
	if !ok {
		return
	}

	if err := store.DeletePurchase(r.Context(), h.DB, id); err != nil {
		writeError(w, r, err)
		return
	}

	logger(r.Context()).Info("purchase deleted", zap.Int64("purchase_id", id))
	jsonResponse(w, http.StatusOK, map[string]string{"message": "purchase deleted"})
}

// Receive handles POST /api/purchases/{id}/receive.
func (h *PurchasesHandler) Receive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "purchase")
	if !ok {
		return
	}

	var req receivePurchaseRequest
	if !bind(w, r, &req) {
		return
	}

	res, err := h.Ledger.ReceivePurchase(r.Context(), GetClaims(r.Context()).Actor(), id, req.ItemID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}
