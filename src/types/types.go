package types

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

// ListingStatus is the commercial state of a puppy listing. Paired with a
// DepositStatus it forms the tuple the lifecycle engine transitions.
type ListingStatus string

const (
	LISTING_AVAILABLE ListingStatus = "available"
	LISTING_RESERVED  ListingStatus = "reserved"
	LISTING_SOLD      ListingStatus = "sold"
)

type DepositStatus string

const (
	DEPOSIT_NONE    DepositStatus = "none"
	DEPOSIT_PENDING DepositStatus = "pending"
	DEPOSIT_PAID    DepositStatus = "paid"
)

type ReservationStatus string

const (
	RESERVATION_PENDING   ReservationStatus = "pending"
	RESERVATION_ACTIVE    ReservationStatus = "active"
	RESERVATION_CANCELED  ReservationStatus = "cancelled"
	RESERVATION_EXPIRED   ReservationStatus = "expired"
	RESERVATION_COMPLETED ReservationStatus = "completed"
)

type Role string

const (
	ROLE_CUSTOMER Role = "customer"
	ROLE_ADMIN    Role = "admin"
)

type Environment string

const (
	Local      Environment = "local"
	Test       Environment = "test"
	Production Environment = "production"
)

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

type SlugRequestParams struct {
	Slug string `uri:"slug" binding:"required"`
}

type ReserveListingRequestBody struct {
	DepositDueAt string `json:"deposit_due_at" binding:"required,futuredate" time_format:"2006-01-02 15:04:05 -07:00"`
}

type DepositPaidRequestBody struct {
	ListingID uint   `json:"listing_id" binding:"required"`
	Reference string `json:"reference" binding:"required"`
}

type CreateListingRequestBody struct {
	Name        string  `json:"name" binding:"required"`
	Breed       string  `json:"breed" binding:"required"`
	Sex         string  `json:"sex,omitempty"`
	Description string  `json:"description,omitempty"`
	Price       float32 `json:"price" binding:"required"`
	Currency    string  `json:"currency,omitempty"`
	BornAt      *string `json:"born_at,omitempty" binding:"omitempty" time_format:"2006-01-02 15:04:05 -07:00"`
}

type UpdateListingRequestBody struct {
	Name        string  `json:"name,omitempty"`
	Breed       string  `json:"breed,omitempty"`
	Sex         string  `json:"sex,omitempty"`
	Description string  `json:"description,omitempty"`
	Price       float32 `json:"price,omitempty"`
	Currency    string  `json:"currency,omitempty"`
}
