package model

import "time"

// MovementKind names a stock transition.
type MovementKind string

// Movement kinds.
const (
	MovementIntake         MovementKind = "intake"
	MovementDistribute     MovementKind = "distribute"
	MovementSale           MovementKind = "sale"
	MovementSaleCorrection MovementKind = "sale_correction"
	MovementSaleVoid       MovementKind = "sale_void"
)

// Movement is an immutable ledger entry. Quantity is signed only for
// sale corrections; every other kind carries a non-negative amount.
type Movement struct {
	ID             int64        `json:"id"`
	ItemID         int64        `json:"item_id"`
	Kind           MovementKind `json:"kind"`
	Quantity       int          `json:"quantity"`
	Location       Location     `json:"location,omitempty"`
	SaleID         *int64       `json:"sale_id,omitempty"`
	PurchaseID     *int64       `json:"purchase_id,omitempty"`
	IdempotencyKey string       `json:"idempotency_key,omitempty"`
	ActorID        *int64       `json:"actor_id,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// Actor is the already-authenticated user a ledger operation is attributed to.
type Actor struct {
	UserID   int64
	Username string
}

// ID returns the actor's user id as a nullable column value.
func (a Actor) ID() *int64 {
	if a.UserID == 0 {
		return nil
	}
	id := a.UserID
	return &id
}
