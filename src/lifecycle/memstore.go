package lifecycle

import (
	"maps"
	"sync"
	"time"

	"pups/src/types"
)

// LedgerRow is a ledger entry as held by the in-memory store.
type LedgerRow struct {
	ID           string
	ListingID    uint
	UserID       uint
	Status       types.ReservationStatus
	DepositDueAt *time.Time
}

// MemoryStore is a Store backed by maps, used by tests and local runs
// without a database. Transactions are serialized by a single mutex and
// staged against copies, so a failed transaction leaves no trace.
type MemoryStore struct {
	mu       sync.Mutex
	listings map[uint]Snapshot
	ledger   map[string]LedgerRow
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		listings: make(map[uint]Snapshot),
		ledger:   make(map[string]LedgerRow),
	}
}

// AddListing seeds an available listing under id.
func (m *MemoryStore) AddListing(id uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings[id] = Snapshot{
		ListingID:     id,
		Status:        types.LISTING_AVAILABLE,
		DepositStatus: types.DEPOSIT_NONE,
		Version:       1,
	}
}

// Listing returns the current snapshot for id.
func (m *MemoryStore) Listing(id uint) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.listings[id]
	return snap, ok
}

// LedgerFor returns every ledger row referencing the listing.
func (m *MemoryStore) LedgerFor(listingID uint) []LedgerRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []LedgerRow
	for _, row := range m.ledger {
		if row.ListingID == listingID {
			rows = append(rows, row)
		}
	}
	return rows
}

func (m *MemoryStore) WithTx(fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	staged := &memTx{
		listings: maps.Clone(m.listings),
		ledger:   maps.Clone(m.ledger),
	}
	if err := fn(staged); err != nil {
		return err
	}
	m.listings = staged.listings
	m.ledger = staged.ledger
	return nil
}

func (m *MemoryStore) FindOverduePending(now time.Time) ([]uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uint
	for id, snap := range m.listings {
		if snap.DepositStatus == types.DEPOSIT_PENDING && snap.DepositDueAt != nil && snap.DepositDueAt.Before(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type memTx struct {
	listings map[uint]Snapshot
	ledger   map[string]LedgerRow
}

func (t *memTx) GetListing(id uint) (Snapshot, error) {
	snap, ok := t.listings[id]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return snap, nil
}

func (t *memTx) CommitListing(next Snapshot, prevVersion uint) error {
	current, ok := t.listings[next.ListingID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != prevVersion {
		return ErrVersionConflict
	}
	next.Version = prevVersion + 1
	t.listings[next.ListingID] = next
	return nil
}

func (t *memTx) InsertLedger(listingID uint, effect LedgerEffect) error {
	t.ledger[effect.LedgerID] = LedgerRow{
		ID:           effect.LedgerID,
		ListingID:    listingID,
		UserID:       effect.UserID,
		Status:       effect.Status,
		DepositDueAt: effect.DepositDueAt,
	}
	return nil
}

func (t *memTx) SetLedgerStatus(ledgerID string, status types.ReservationStatus) error {
	row, ok := t.ledger[ledgerID]
	if !ok {
		return ErrNotFound
	}
	row.Status = status
	t.ledger[ledgerID] = row
	return nil
}
