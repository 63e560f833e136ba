package store

import (
	"errors"
	"time"

	"pups/src/lifecycle"
	"pups/src/models"
	"pups/src/types"

	"gorm.io/gorm"
)

// GormStore implements lifecycle.Store on the application database.
// Listing commits are guarded by the version column: the UPDATE carries
// the version the snapshot was read at, and zero affected rows means a
// concurrent transition won the race.
type GormStore struct {
	db *gorm.DB
}

func New(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) WithTx(fn func(tx lifecycle.Tx) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{tx: tx})
	})
}

func (s *GormStore) FindOverduePending(now time.Time) ([]uint, error) {
	var ids []uint
	err := s.db.
		Model(&models.Listing{}).
		Where("deposit_status = ? AND deposit_due_at < ?", types.DEPOSIT_PENDING, now).
		Pluck("id", &ids).
		Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

type gormTx struct {
	tx *gorm.DB
}

func (t *gormTx) GetListing(id uint) (lifecycle.Snapshot, error) {
	var listing models.Listing
	err := t.tx.
		Where(&models.Listing{ID: id}).
		First(&listing).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return lifecycle.Snapshot{}, lifecycle.ErrNotFound
	}
	if err != nil {
		return lifecycle.Snapshot{}, err
	}
	snap := lifecycle.Snapshot{
		ListingID:        listing.ID,
		Status:           listing.Status,
		DepositStatus:    listing.DepositStatus,
		DepositDueAt:     listing.DepositDueAt,
		DepositReference: listing.DepositReference,
		Version:          listing.Version,
	}

	var entry models.Reservation
	err = t.tx.
		Where("listing_id = ? AND status IN ?", id, []types.ReservationStatus{types.RESERVATION_PENDING, types.RESERVATION_ACTIVE}).
		First(&entry).
		Error
	if err == nil {
		snap.LedgerID = entry.ID
		snap.OwnerID = entry.UserID
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return lifecycle.Snapshot{}, err
	}
	return snap, nil
}

func (t *gormTx) CommitListing(next lifecycle.Snapshot, prevVersion uint) error {
	res := t.tx.
		Model(&models.Listing{}).
		Where("id = ? AND version = ?", next.ListingID, prevVersion).
		Updates(map[string]any{
			"status":            next.Status,
			"deposit_status":    next.DepositStatus,
			"deposit_due_at":    next.DepositDueAt,
			"deposit_reference": next.DepositReference,
			"version":           prevVersion + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return lifecycle.ErrVersionConflict
	}
	return nil
}

func (t *gormTx) InsertLedger(listingID uint, effect lifecycle.LedgerEffect) error {
	entry := models.Reservation{
		ID:           effect.LedgerID,
		ListingID:    listingID,
		UserID:       effect.UserID,
		Status:       effect.Status,
		DepositDueAt: effect.DepositDueAt,
	}
	return t.tx.Create(&entry).Error
}

func (t *gormTx) SetLedgerStatus(ledgerID string, status types.ReservationStatus) error {
	res := t.tx.
		Model(&models.Reservation{}).
		Where(&models.Reservation{ID: ledgerID}).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return lifecycle.ErrNotFound
	}
	return nil
}
