package models

import (
	"pups/src/types"
	"time"
)

// Listing is a sellable puppy. Commercial state is the
// (Status, DepositStatus, DepositDueAt) tuple and is only ever written
// through the lifecycle engine; catalog fields are free-form.
//
// Version is the optimistic concurrency token: every committed transition
// increments it, and a commit against a stale version is rejected.
type Listing struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	Name        string     `json:"name,omitempty"`
	Breed       string     `json:"breed,omitempty"`
	Sex         string     `json:"sex,omitempty"`
	Description string     `json:"description,omitempty"`
	Price       float32    `json:"price"`
	Currency    string     `json:"currency,omitempty"`
	Slug        string     `gorm:"uniqueIndex" json:"slug,omitempty"`
	BornAt      *time.Time `json:"born_at,omitempty"`

	Status           types.ListingStatus `gorm:"default:'available';index:idx_listings_overdue" json:"status,omitempty"`
	DepositStatus    types.DepositStatus `gorm:"default:'none';index:idx_listings_overdue" json:"deposit_status,omitempty"`
	DepositDueAt     *time.Time          `gorm:"index:idx_listings_overdue" json:"deposit_due_at,omitempty"`
	DepositReference *string             `json:"-"`
	Version          uint                `gorm:"default:1" json:"-"`

	Reservations []*Reservation `json:"reservations,omitempty"`

	types.Timestamps
}
