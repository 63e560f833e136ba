package models

import (
	"pups/src/types"
	"time"
)

// Reservation is the ledger entry for one reservation attempt. Rows are
// written by the lifecycle engine in the same transaction as the listing
// they reference and are kept forever for audit.
type Reservation struct {
	ID           string                  `gorm:"primarykey" json:"id"`
	ListingID    uint                    `gorm:"index" json:"listing_id,omitempty"`
	UserID       uint                    `json:"user_id,omitempty"`
	Status       types.ReservationStatus `gorm:"default:'pending';index" json:"status,omitempty"`
	DepositDueAt *time.Time              `json:"deposit_due_at,omitempty"`

	Listing *Listing `json:"listing,omitempty"`
	User    *User    `json:"user,omitempty"`

	types.Timestamps
}
