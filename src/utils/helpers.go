package utils

import (
	"context"
	"fmt"
	"log"
	"time"

	"pups/src/config"
	"pups/src/db"
	"pups/src/lib"
	"pups/src/models"
	"pups/src/types"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

const CatalogCacheKey = "puppies:available"
const catalogCacheTTL = 1 * time.Minute

func IsProd() bool {
	return config.API_ENV == string(types.Production)
}

// CreateNewListing adds a puppy to the catalog. New listings always start
// available with no deposit; commercial state is never set directly here.
func CreateNewListing(params *types.CreateListingRequestBody) (uint, error) {
	currency := params.Currency
	if currency == "" {
		currency = "usd"
	}
	listing := models.Listing{
		Name:          params.Name,
		Breed:         params.Breed,
		Sex:           params.Sex,
		Description:   params.Description,
		Price:         params.Price,
		Currency:      currency,
		Status:        types.LISTING_AVAILABLE,
		DepositStatus: types.DEPOSIT_NONE,
	}
	if params.BornAt != nil {
		bornAt, err := time.Parse(config.TIME_PARSE_FORMAT, *params.BornAt)
		if err != nil {
			log.Printf("Error parsing born_at: %s\n", err.Error())
			return 0, err
		}
		listing.BornAt = &bornAt
	}

	database := db.GetDb()
	err := database.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&listing).Error; err != nil {
			return err
		}
		newSlug := slug.Make(fmt.Sprintf("%s %s %d", listing.Name, listing.Breed, listing.ID))
		return tx.
			Model(&models.Listing{}).
			Where(&models.Listing{ID: listing.ID}).
			Update("slug", newSlug).
			Error
	})
	if err != nil {
		log.Printf("CreateNewListing failed: %s\n", err.Error())
		return 0, err
	}
	lib.DropCached(context.Background(), CatalogCacheKey)
	return listing.ID, nil
}

// UpdateListing changes catalog fields only. Status, deposit state and
// version stay untouched; those belong to the lifecycle engine.
func UpdateListing(id uint, params *types.UpdateListingRequestBody) error {
	database := db.GetDb()
	updates := map[string]any{}
	if params.Name != "" {
		updates["name"] = params.Name
	}
	if params.Breed != "" {
		updates["breed"] = params.Breed
	}
	if params.Sex != "" {
		updates["sex"] = params.Sex
	}
	if params.Description != "" {
		updates["description"] = params.Description
	}
	if params.Price > 0 {
		updates["price"] = params.Price
	}
	if params.Currency != "" {
		updates["currency"] = params.Currency
	}
	if len(updates) == 0 {
		return nil
	}
	res := database.
		Model(&models.Listing{}).
		Where(&models.Listing{ID: id}).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	lib.DropCached(context.Background(), CatalogCacheKey)
	return nil
}

// GetAvailableListings returns the public catalog, cache-aside in redis.
func GetAvailableListings() ([]models.Listing, error) {
	ctx := context.Background()
	var listings []models.Listing
	if lib.GetCachedJSON(ctx, CatalogCacheKey, &listings) {
		return listings, nil
	}
	database := db.GetDb()
	err := database.
		Model(&models.Listing{}).
		Where(&models.Listing{Status: types.LISTING_AVAILABLE}).
		Order("created_at DESC").
		Find(&listings).
		Error
	if err != nil {
		return nil, err
	}
	lib.CacheJSON(ctx, CatalogCacheKey, listings, catalogCacheTTL)
	return listings, nil
}

func GetListingBySlug(s string) (*models.Listing, error) {
	database := db.GetDb()
	var listing models.Listing
	err := database.
		Where(&models.Listing{Slug: s}).
		First(&listing).
		Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func GetOwnReservations(userId uint) ([]models.Reservation, error) {
	database := db.GetDb()
	var reservations []models.Reservation
	err := database.
		Model(&models.Reservation{}).
		Where(&models.Reservation{UserID: userId}).
		Preload("Listing").
		Order("created_at DESC").
		Find(&reservations).
		Error
	return reservations, err
}

func GetReservation(id string) (*models.Reservation, error) {
	database := db.GetDb()
	var reservation models.Reservation
	err := database.
		Model(&models.Reservation{}).
		Where(&models.Reservation{ID: id}).
		Preload("Listing").
		First(&reservation).
		Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}
