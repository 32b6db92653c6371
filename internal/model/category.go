package model

import "time"

// Category groups catalog items.
type Category struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	ItemCount int        `json:"item_count"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}
