package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erazemk/duka/internal/imaging"
	"github.com/erazemk/duka/internal/ledger"
	"github.com/erazemk/duka/internal/model"
	"github.com/erazemk/duka/internal/store"
)

// IdempotencyKeyHeader lets clients retry ledger mutations safely.
const IdempotencyKeyHeader = "Idempotency-Key"

// ItemsHandler handles item endpoints.
type ItemsHandler struct {
	DB     *sql.DB
	Ledger *ledger.Ledger
	Images imaging.Processor
}

type createItemRequest struct {
	Name       string          `json:"name" validate:"required,max=200"`
	CategoryID int64           `json:"category_id" validate:"required,gt=0"`
	Price      decimal.Decimal `json:"price" validate:"gte=0"`
	Status     string          `json:"status" validate:"omitempty,oneof=active inactive"`
	Quantity   int             `json:"quantity" validate:"gte=0"`
}

type updateItemRequest struct {
	Name       string          `json:"name" validate:"required,max=200"`
	CategoryID int64           `json:"category_id" validate:"required,gt=0"`
	Price      decimal.Decimal `json:"price" validate:"gte=0"`
	Status     string          `json:"status" validate:"required,oneof=active inactive"`
}

type distributeRequest struct {
	Amount   *int           `json:"amount" validate:"required,gte=0"`
	Location model.Location `json:"location" validate:"required,oneof=dar dodoma"`
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.ItemFilter{Name: strings.TrimSpace(q.Get("name")), Status: q.Get("status")}

	var err error
	if f.CategoryID, err = queryInt64(q, "category_id"); err != nil {
		queryError(w, r, err)
		return
	}
	if f.Distribution, err = queryLocation(q); err != nil {
		queryError(w, r, err)
		return
	}
	if f.Created, err = queryDates(q); err != nil {
		queryError(w, r, err)
		return
	}
	if f.Page, err = queryPage(q); err != nil {
		queryError(w, r, err)
		return
	}
	if f.Status != "" && !model.ValidItemStatus(f.Status) {
		queryError(w, r, fmt.Errorf("invalid status %q", f.Status))
		return
	}

	items, err := store.ListItems(r.Context(), h.DB, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Counts handles GET /api/items/counts.
func (h *ItemsHandler) Counts(w http.ResponseWriter, r *http.Request) {
	counts, err := store.CountItems(r.Context(), h.DB)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, counts)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if !bind(w, r, &req) {
		return
	}

	item, err := h.Ledger.CreateItem(r.Context(), GetClaims(r.Context()).Actor(), model.NewItem{
		Name:       req.Name,
		CategoryID: req.CategoryID,
		Price:      req.Price,
		Status:     req.Status,
		Quantity:   req.Quantity,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "item")
	if !ok {
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Update handles PUT /api/items/{id}. Stock counters are not editable here;
// they only change through the ledger.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "item")
	if !ok {
		return
	}

	var req updateItemRequest
	if !bind(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, r, fmt.Errorf("%w: name is required", model.ErrValidation))
		return
	}

	category, err := store.GetCategory(r.Context(), h.DB, req.CategoryID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if category == nil {
		writeError(w, r, fmt.Errorf("%w: category %d", model.ErrNotFound, req.CategoryID))
		return
	}

	if err := store.UpdateItem(r.Context(), h.DB, id, name, req.CategoryID, req.Price, req.Status); err != nil {
		writeError(w, r, err)
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logger(r.Context()).Info("item updated", zap.Int64("item_id", id), zap.String("name", name))
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "item")
	if !ok {
		return
	}

	if err := store.DeleteItem(r.Context(), h.DB, id); err != nil {
		writeError(w, r, err)
		return
	}

	logger(r.Context()).Info("item deleted", zap.Int64("item_id", id))
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// Distribute handles POST /api/items/{id}/distribute.
func (h *ItemsHandler) Distribute(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "item")
	if !ok {
		return
	}

	var req distributeRequest
	if !bind(w, r, &req) {
		return
	}

	res, err := h.Ledger.Distribute(r.Context(), GetClaims(r.Context()).Actor(),
		id, *req.Amount, req.Location, r.Header.Get(IdempotencyKeyHeader))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// Movements handles GET /api/items/{id}/movements.
func (h *ItemsHandler) Movements(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "item")
	if !ok {
		return
	}
	page, err := queryPage(r.URL.Query())
	if err != nil {
		queryError(w, r, err)
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	movements, err := store.ListMovements(r.Context(), h.DB, id, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if movements == nil {
		movements = []model.Movement{}
	}
	jsonResponse(w, http.StatusOK, movements)
}

// Audit handles GET /api/items/{id}/audit.
func (h *ItemsHandler) Audit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "item")
	if !ok {
		return
	}

	audit, err := h.Ledger.Audit(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !audit.Consistent {
		logger(r.Context()).Error("item counters disagree with movement log",
			zap.Int64("item_id", id), zap.Any("balance", audit.Balance))
	}
	jsonResponse(w, http.StatusOK, audit)
}

// UploadImage handles PUT /api/items/{id}/image.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "item")
	if !ok {
		return
	}

	limit := h.Images.MaxBytes
	if limit <= 0 {
		limit = imaging.DefaultMaxBytes
	}
	// Leave room for the multipart framing around the file.
	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, http.StatusRequestEntityTooLarge, "image too large")
			return
		}
		jsonError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	img, err := h.Images.Process(file)
	switch {
	case errors.Is(err, imaging.ErrTooLarge):
		jsonError(w, http.StatusRequestEntityTooLarge, "image too large")
		return
	case errors.Is(err, imaging.ErrUnsupported):
		jsonError(w, http.StatusUnsupportedMediaType, "image must be JPEG, PNG, GIF or WebP")
		return
	case err != nil:
		writeError(w, r, err)
		return
	}

	if err := store.SetItemImage(r.Context(), h.DB, id, img.Data, img.MIME); err != nil {
		writeError(w, r, err)
		return
	}

	logger(r.Context()).Info("item image uploaded", zap.Int64("item_id", id),
		zap.Int("width", img.Width), zap.Int("height", img.Height), zap.Int("bytes", len(img.Data)))
	jsonResponse(w, http.StatusOK, map[string]any{
		"message": "image uploaded",
		"width":   img.Width,
		"height":  img.Height,
	})
}

// GetImage handles GET /api/items/{id}/image.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "item")
	if !ok {
		return
	}

	data, mime, err := store.GetItemImage(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}
