package lifecycle

import (
	"pups/src/types"
	"time"
)

// Snapshot is the commercial state of one listing as read inside a
// transaction, together with the active ledger entry (if any) and the
// optimistic version token the eventual commit must match.
type Snapshot struct {
	ListingID        uint
	Status           types.ListingStatus
	DepositStatus    types.DepositStatus
	DepositDueAt     *time.Time
	DepositReference *string
	Version          uint

	// LedgerID and OwnerID describe the single ledger entry currently in
	// pending or active state for this listing. Empty when there is none.
	LedgerID string
	OwnerID  uint
}

// Event is one of Reserve, MarkDepositPaid, Cancel, Expire, MarkSold.
type Event interface {
	isEvent()
}

type Reserve struct {
	UserID       uint
	DepositDueAt time.Time
	// LedgerID is the id the new ledger entry will be created under; the
	// caller generates it so Apply stays deterministic.
	LedgerID string
}

type MarkDepositPaid struct {
	Reference string
}

type Cancel struct{}

type Expire struct{}

type MarkSold struct{}

func (Reserve) isEvent()         {}
func (MarkDepositPaid) isEvent() {}
func (Cancel) isEvent()          {}
func (Expire) isEvent()          {}
func (MarkSold) isEvent()        {}

type LedgerOp string

const (
	LedgerInsert    LedgerOp = "insert"
	LedgerSetStatus LedgerOp = "set_status"
)

// LedgerEffect is the ledger mutation that must be committed atomically
// with the listing mutation of the same event.
type LedgerEffect struct {
	Op           LedgerOp
	LedgerID     string
	UserID       uint
	Status       types.ReservationStatus
	DepositDueAt *time.Time
}

// Outcome is the result of a successfully validated event: the full new
// listing state plus the ledger mutation to commit alongside it.
type Outcome struct {
	Listing Snapshot
	Ledger  LedgerEffect
}

// Apply validates ev against the snapshot and either returns the complete
// new state or a typed rejection. It never partially applies an event and
// never touches storage; now is the caller-supplied current time.
func Apply(ev Event, snap Snapshot, now time.Time) (Outcome, error) {
	switch e := ev.(type) {
	case Reserve:
		if snap.Status != types.LISTING_AVAILABLE {
			return Outcome{}, ErrNotAvailable
		}
		due := e.DepositDueAt
		ref := e.LedgerID
		next := snap
		next.Status = types.LISTING_RESERVED
		next.DepositStatus = types.DEPOSIT_PENDING
		next.DepositDueAt = &due
		next.DepositReference = &ref
		next.LedgerID = e.LedgerID
		next.OwnerID = e.UserID
		return Outcome{
			Listing: next,
			Ledger: LedgerEffect{
				Op:           LedgerInsert,
				LedgerID:     e.LedgerID,
				UserID:       e.UserID,
				Status:       types.RESERVATION_PENDING,
				DepositDueAt: &due,
			},
		}, nil

	case MarkDepositPaid:
		if snap.DepositStatus != types.DEPOSIT_PENDING {
			return Outcome{}, ErrNotPending
		}
		if snap.DepositReference == nil || *snap.DepositReference != e.Reference {
			return Outcome{}, ErrReferenceMismatch
		}
		next := snap
		next.DepositStatus = types.DEPOSIT_PAID
		return Outcome{
			Listing: next,
			Ledger:  LedgerEffect{Op: LedgerSetStatus, LedgerID: snap.LedgerID, Status: types.RESERVATION_ACTIVE},
		}, nil

	case Cancel:
		if snap.Status != types.LISTING_RESERVED {
			return Outcome{}, ErrNotAvailable
		}
		return Outcome{
			Listing: revertToAvailable(snap),
			Ledger:  LedgerEffect{Op: LedgerSetStatus, LedgerID: snap.LedgerID, Status: types.RESERVATION_CANCELED},
		}, nil

	case Expire:
		if snap.DepositStatus != types.DEPOSIT_PENDING {
			return Outcome{}, ErrNotPending
		}
		// Due exactly now is not overdue yet; eligibility is strictly past due.
		if snap.DepositDueAt == nil || !now.After(*snap.DepositDueAt) {
			return Outcome{}, ErrDeadlineNotReached
		}
		return Outcome{
			Listing: revertToAvailable(snap),
			Ledger:  LedgerEffect{Op: LedgerSetStatus, LedgerID: snap.LedgerID, Status: types.RESERVATION_EXPIRED},
		}, nil

	case MarkSold:
		if snap.Status != types.LISTING_RESERVED {
			return Outcome{}, ErrNotAvailable
		}
		if snap.DepositStatus != types.DEPOSIT_PAID {
			return Outcome{}, ErrNotPending
		}
		next := snap
		next.Status = types.LISTING_SOLD
		return Outcome{
			Listing: next,
			Ledger:  LedgerEffect{Op: LedgerSetStatus, LedgerID: snap.LedgerID, Status: types.RESERVATION_COMPLETED},
		}, nil
	}
	return Outcome{}, ErrNotAvailable
}

func revertToAvailable(snap Snapshot) Snapshot {
	next := snap
	next.Status = types.LISTING_AVAILABLE
	next.DepositStatus = types.DEPOSIT_NONE
	next.DepositDueAt = nil
	next.DepositReference = nil
	next.LedgerID = ""
	next.OwnerID = 0
	return next
}
