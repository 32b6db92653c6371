package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale records units of distributed stock sold to a customer. Quantity is
// always the number of units sold in this transaction.
type Sale struct {
	ID            int64           `json:"id"`
	ItemID        int64           `json:"item_id"`
	ItemName      string          `json:"item_name,omitempty"`
	Quantity      int             `json:"quantity"`
	Location      Location        `json:"location"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentMethod string          `json:"payment_method"`
	CustomerName  string          `json:"customer_name"`
	PhoneNumber   string          `json:"phone_number"`
	SoldAt        Date            `json:"sold_at"`
	SoldBy        *int64          `json:"sold_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	VoidedAt      *time.Time      `json:"voided_at,omitempty"`
}

// Payment methods.
const (
	PaymentCash   = "cash"
	PaymentCredit = "credit"
)

// ValidPaymentMethod reports whether m is a known payment method.
func ValidPaymentMethod(m string) bool {
	return m == PaymentCash || m == PaymentCredit
}

// SaleInput is what a caller supplies to record a sale. A zero TotalAmount
// means price times quantity. An empty Location accepts whichever showroom
// currently holds the item.
type SaleInput struct {
	ItemID        int64
	Quantity      int
	Location      Location
	TotalAmount   decimal.Decimal
	PaymentMethod string
	CustomerName  string
	PhoneNumber   string
	SoldAt        Date
}

// SaleCorrection replaces the editable fields of a sale.
type SaleCorrection struct {
	Quantity      int
	TotalAmount   decimal.Decimal
	PaymentMethod string
	CustomerName  string
	PhoneNumber   string
	SoldAt        Date
}
