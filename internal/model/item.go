package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a catalog entry together with its stock counters.
//
// Quantity is what remains in the central warehouse, AmountDistributed is
// what sits unsold at the showroom named by Distribution, and AmountSold is
// what has left through sales. TotalReceived is the sum of every intake.
type Item struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	CategoryID        int64           `json:"category_id"`
	CategoryName      string          `json:"category_name,omitempty"`
	Price             decimal.Decimal `json:"price"`
	Status            string          `json:"status"`
	ImageMime         string          `json:"image_mime,omitempty"`
	Quantity          int             `json:"quantity"`
	AmountDistributed int             `json:"amount_distributed"`
	AmountSold        int             `json:"amount_sold"`
	TotalReceived     int             `json:"total_received"`
	Distribution      Location        `json:"distribution"`
	Version           int64           `json:"version"`
	CreatedBy         *int64          `json:"created_by,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	DeletedAt         *time.Time      `json:"deleted_at,omitempty"`
}

// Item statuses.
const (
	ItemStatusActive   = "active"
	ItemStatusInactive = "inactive"
)

// ValidItemStatus reports whether s is a known item status.
func ValidItemStatus(s string) bool {
	return s == ItemStatusActive || s == ItemStatusInactive
}

// Conserved reports whether the stock counters are non-negative and add up
// to the total ever received.
func (i *Item) Conserved() bool {
	if i.Quantity < 0 || i.AmountDistributed < 0 || i.AmountSold < 0 {
		return false
	}
	return i.Quantity+i.AmountDistributed+i.AmountSold == i.TotalReceived
}

// NewItem holds the fields needed to create an item.
type NewItem struct {
	Name       string
	CategoryID int64
	Price      decimal.Decimal
	Status     string
	Quantity   int
}
