package lifecycle

import (
	"errors"
	"log"
	"time"

	"pups/src/gate"
	"pups/src/types"

	"github.com/google/uuid"
)

// Tx is the per-transaction view of the two stores. The listing mutation
// and the ledger mutation of a single event go through the same Tx and
// commit or roll back together.
type Tx interface {
	GetListing(id uint) (Snapshot, error)
	// CommitListing writes the new state iff the stored version still equals
	// prevVersion, otherwise returns ErrVersionConflict.
	CommitListing(next Snapshot, prevVersion uint) error
	InsertLedger(listingID uint, effect LedgerEffect) error
	SetLedgerStatus(ledgerID string, status types.ReservationStatus) error
}

// Store is the persistence boundary of the reservation core.
type Store interface {
	WithTx(fn func(tx Tx) error) error
	FindOverduePending(now time.Time) ([]uint, error)
}

// Service serializes listing transitions: read a snapshot, run the pure
// engine, commit both mutations transactionally, retry on version
// conflict with freshly re-evaluated preconditions.
type Service struct {
	store   Store
	gate    gate.Gate
	clock   Clock
	retries int
}

const defaultRetries = 3

func NewService(store Store, g gate.Gate, clk Clock) *Service {
	return &Service{
		store:   store,
		gate:    g,
		clock:   clk,
		retries: defaultRetries,
	}
}

// Clock exposes the service clock, mainly for sweep scheduling.
func (s *Service) Clock() Clock {
	return s.clock
}

func (s *Service) Store() Store {
	return s.store
}

// Reserve places a pending-deposit hold on an available listing and
// returns the id of the new ledger entry.
func (s *Service) Reserve(listingID, userID uint, depositDueAt time.Time) (string, error) {
	ev := Reserve{
		UserID:       userID,
		DepositDueAt: depositDueAt.UTC(),
		LedgerID:     uuid.NewString(),
	}
	if err := s.apply(listingID, func(Snapshot) (Event, error) { return ev, nil }); err != nil {
		return "", err
	}
	return ev.LedgerID, nil
}

// MarkDepositPaid records the external payment signal. The reference must
// match the one issued at reservation time.
func (s *Service) MarkDepositPaid(listingID uint, reference string) error {
	return s.apply(listingID, func(Snapshot) (Event, error) {
		return MarkDepositPaid{Reference: reference}, nil
	})
}

// Cancel reverts a reserved listing to available. Only the reservation
// owner or an admin may cancel; the gate decides.
func (s *Service) Cancel(listingID uint, p gate.Principal) error {
	return s.apply(listingID, func(snap Snapshot) (Event, error) {
		// State guard first: cancelling a sold or available listing is a
		// conflict, not an authorization question.
		if snap.Status == types.LISTING_RESERVED &&
			!s.gate.Authorize(p, gate.ActionCancelReservation, gate.Resource{OwnerID: snap.OwnerID}) {
			return nil, ErrUnauthorized
		}
		return Cancel{}, nil
	})
}

// MarkSold finalizes a paid reservation. Admin only.
func (s *Service) MarkSold(listingID uint, p gate.Principal) error {
	return s.apply(listingID, func(Snapshot) (Event, error) {
		if !s.gate.Authorize(p, gate.ActionMarkSold, gate.Resource{}) {
			return nil, ErrUnauthorized
		}
		return MarkSold{}, nil
	})
}

// Expire reverts one overdue pending deposit. Driven by the sweeper, not
// by user traffic; the deadline guard re-checks under the transaction so a
// stale sweep snapshot can never force a listing back.
func (s *Service) Expire(listingID uint) error {
	return s.apply(listingID, func(Snapshot) (Event, error) {
		return Expire{}, nil
	})
}

// apply runs one event through the engine inside a store transaction.
// The event is built after the snapshot read so guards always see current
// state; on version conflict the whole read-validate-commit cycle reruns.
func (s *Service) apply(listingID uint, build func(Snapshot) (Event, error)) error {
	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		err := s.store.WithTx(func(tx Tx) error {
			snap, err := tx.GetListing(listingID)
			if err != nil {
				return err
			}
			ev, err := build(snap)
			if err != nil {
				return err
			}
			outcome, err := Apply(ev, snap, s.clock.Now())
			if err != nil {
				return err
			}
			if err := s.commitLedger(tx, listingID, outcome.Ledger); err != nil {
				return err
			}
			return tx.CommitListing(outcome.Listing, snap.Version)
		})
		if !errors.Is(err, ErrVersionConflict) {
			return err
		}
		lastErr = err
		log.Printf("[lifecycle] version conflict on listing %d, retrying (%d/%d)\n", listingID, attempt+1, s.retries)
	}
	return lastErr
}

func (s *Service) commitLedger(tx Tx, listingID uint, effect LedgerEffect) error {
	switch effect.Op {
	case LedgerInsert:
		return tx.InsertLedger(listingID, effect)
	case LedgerSetStatus:
		return tx.SetLedgerStatus(effect.LedgerID, effect.Status)
	}
	return errors.New("unknown ledger effect")
}
