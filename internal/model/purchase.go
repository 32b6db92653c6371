package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase records a stock intake event from a supplier. ItemID is set once
// the purchase has been received into an item's warehouse quantity.
type Purchase struct {
	ID                int64           `json:"id"`
	ItemName          string          `json:"item_name"`
	CategoryID        int64           `json:"category_id"`
	CategoryName      string          `json:"category_name,omitempty"`
	QuantityPurchased int             `json:"quantity_purchased"`
	Price             decimal.Decimal `json:"price"`
	PurchaseDate      Date            `json:"purchase_date"`
	Status            string          `json:"status"`
	ItemID            *int64          `json:"item_id,omitempty"`
	ReceivedAt        *time.Time      `json:"received_at,omitempty"`
	CreatedBy         *int64          `json:"created_by,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Purchase statuses.
const (
	PurchaseStatusActive   = "active"
	PurchaseStatusInactive = "inactive"
)

// Received reports whether the purchase has been added to an item's stock.
func (p *Purchase) Received() bool {
	return p.ItemID != nil
}
