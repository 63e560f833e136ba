package lifecycle

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"pups/src/gate"
	"pups/src/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func newSteppingClock(t time.Time) *steppingClock {
	return &steppingClock{now: t.UTC()}
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *steppingClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T) (*Service, *MemoryStore, *steppingClock) {
	t.Helper()
	store := NewMemoryStore()
	clk := newSteppingClock(testNow)
	svc := NewService(store, gate.NewRoleGate(), clk)
	return svc, store, clk
}

func countPendingActive(store *MemoryStore, listingID uint) int {
	n := 0
	for _, row := range store.LedgerFor(listingID) {
		if row.Status == types.RESERVATION_PENDING || row.Status == types.RESERVATION_ACTIVE {
			n++
		}
	}
	return n
}

var (
	owner    = gate.Principal{UserID: 7, Role: types.ROLE_CUSTOMER}
	stranger = gate.Principal{UserID: 8, Role: types.ROLE_CUSTOMER}
	admin    = gate.Principal{UserID: 99, Role: types.ROLE_ADMIN}
)

func TestServiceReservePaySell(t *testing.T) {
	svc, store, clk := newTestService(t)
	store.AddListing(1)

	ledgerId, err := svc.Reserve(1, owner.UserID, clk.Now().Add(48*time.Hour))
	require.NoError(t, err)
	require.NotEmpty(t, ledgerId)

	snap, ok := store.Listing(1)
	require.True(t, ok)
	assert.Equal(t, types.LISTING_RESERVED, snap.Status)
	assert.Equal(t, types.DEPOSIT_PENDING, snap.DepositStatus)
	require.NotNil(t, snap.DepositReference)
	assert.Equal(t, ledgerId, *snap.DepositReference)
	assert.Equal(t, 1, countPendingActive(store, 1))

	require.NoError(t, svc.MarkDepositPaid(1, ledgerId))
	snap, _ = store.Listing(1)
	assert.Equal(t, types.DEPOSIT_PAID, snap.DepositStatus)

	require.NoError(t, svc.MarkSold(1, admin))
	snap, _ = store.Listing(1)
	assert.Equal(t, types.LISTING_SOLD, snap.Status)

	rows := store.LedgerFor(1)
	require.Len(t, rows, 1)
	assert.Equal(t, types.RESERVATION_COMPLETED, rows[0].Status)
	assert.Equal(t, 0, countPendingActive(store, 1))

	_, err = svc.Reserve(1, stranger.UserID, clk.Now().Add(48*time.Hour))
	assert.ErrorIs(t, err, ErrNotAvailable)
}

func TestServiceCancelAuthorization(t *testing.T) {
	svc, store, clk := newTestService(t)

	t.Run("a stranger cannot cancel someone else's reservation", func(t *testing.T) {
		store.AddListing(1)
		_, err := svc.Reserve(1, owner.UserID, clk.Now().Add(48*time.Hour))
		require.NoError(t, err)

		err = svc.Cancel(1, stranger)
		assert.ErrorIs(t, err, ErrUnauthorized)
		snap, _ := store.Listing(1)
		assert.Equal(t, types.LISTING_RESERVED, snap.Status)
	})

	t.Run("the owner can cancel", func(t *testing.T) {
		require.NoError(t, svc.Cancel(1, owner))
		snap, _ := store.Listing(1)
		assert.Equal(t, types.LISTING_AVAILABLE, snap.Status)
		assert.Equal(t, types.DEPOSIT_NONE, snap.DepositStatus)
		assert.Equal(t, 0, countPendingActive(store, 1))
	})

	t.Run("an admin can cancel on behalf of the owner", func(t *testing.T) {
		store.AddListing(2)
		_, err := svc.Reserve(2, owner.UserID, clk.Now().Add(48*time.Hour))
		require.NoError(t, err)
		require.NoError(t, svc.Cancel(2, admin))
		snap, _ := store.Listing(2)
		assert.Equal(t, types.LISTING_AVAILABLE, snap.Status)
	})

	t.Run("unknown listing reports not found", func(t *testing.T) {
		err := svc.Cancel(404, admin)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestServiceMarkSoldRequiresAdmin(t *testing.T) {
	svc, store, clk := newTestService(t)
	store.AddListing(1)
	ledgerId, err := svc.Reserve(1, owner.UserID, clk.Now().Add(48*time.Hour))
	require.NoError(t, err)
	require.NoError(t, svc.MarkDepositPaid(1, ledgerId))

	err = svc.MarkSold(1, owner)
	assert.ErrorIs(t, err, ErrUnauthorized)
	require.NoError(t, svc.MarkSold(1, admin))
}

func TestServiceExpire(t *testing.T) {
	svc, store, clk := newTestService(t)
	store.AddListing(1)
	ledgerId, err := svc.Reserve(1, owner.UserID, clk.Now().Add(48*time.Hour))
	require.NoError(t, err)

	t.Run("before the deadline nothing expires", func(t *testing.T) {
		err := svc.Expire(1)
		assert.ErrorIs(t, err, ErrDeadlineNotReached)
	})

	t.Run("past the deadline the listing reverts", func(t *testing.T) {
		clk.Advance(49 * time.Hour)
		require.NoError(t, svc.Expire(1))
		snap, _ := store.Listing(1)
		assert.Equal(t, types.LISTING_AVAILABLE, snap.Status)
		rows := store.LedgerFor(1)
		require.Len(t, rows, 1)
		assert.Equal(t, types.RESERVATION_EXPIRED, rows[0].Status)
	})

	t.Run("a late payment signal is cleanly rejected", func(t *testing.T) {
		err := svc.MarkDepositPaid(1, ledgerId)
		assert.ErrorIs(t, err, ErrNotPending)
	})
}

// Mutual exclusion under concurrent reservation attempts: exactly one
// caller wins the listing, and the ledger never holds more than one
// pending or active entry.
func TestConcurrentReserves(t *testing.T) {
	svc, store, clk := newTestService(t)
	store.AddListing(1)

	const attempts = 16
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func(userId uint) {
			defer wg.Done()
			_, err := svc.Reserve(1, userId, clk.Now().Add(48*time.Hour))
			results <- err
		}(uint(i + 1))
	}
	wg.Wait()
	close(results)

	won := 0
	for err := range results {
		if err == nil {
			won++
		} else {
			assert.ErrorIs(t, err, ErrNotAvailable)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, countPendingActive(store, 1))

	snap, _ := store.Listing(1)
	assert.Equal(t, types.LISTING_RESERVED, snap.Status)
}

// A sweep-issued Expire races a fresh Reserve on the same overdue
// listing. Whatever the interleaving, the final state is a legal one and
// at most one ledger entry stays pending.
func TestConcurrentReserveAndExpire(t *testing.T) {
	for range 20 {
		svc, store, clk := newTestService(t)
		store.AddListing(1)
		_, err := svc.Reserve(1, owner.UserID, clk.Now().Add(time.Hour))
		require.NoError(t, err)
		clk.Advance(2 * time.Hour)

		var wg sync.WaitGroup
		var expireErr, reserveErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			expireErr = svc.Expire(1)
		}()
		go func() {
			defer wg.Done()
			_, reserveErr = svc.Reserve(1, stranger.UserID, clk.Now().Add(48*time.Hour))
		}()
		wg.Wait()

		require.NoError(t, expireErr, "the overdue deposit must always expire")

		snap, _ := store.Listing(1)
		if reserveErr == nil {
			assert.Equal(t, types.LISTING_RESERVED, snap.Status)
			assert.Equal(t, types.DEPOSIT_PENDING, snap.DepositStatus)
		} else {
			assert.ErrorIs(t, reserveErr, ErrNotAvailable)
			assert.Equal(t, types.LISTING_AVAILABLE, snap.Status)
			assert.Equal(t, types.DEPOSIT_NONE, snap.DepositStatus)
		}
		assert.LessOrEqual(t, countPendingActive(store, 1), 1)
	}
}

// Random interleavings of every event against one listing. After each
// step the committed snapshot satisfies the structural invariants and the
// ledger holds at most one pending or active entry.
func TestRandomEventSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	svc, store, clk := newTestService(t)
	store.AddListing(1)

	var lastLedgerId string
	for range 500 {
		switch rng.Intn(6) {
		case 0:
			userId := uint(rng.Intn(5) + 1)
			if id, err := svc.Reserve(1, userId, clk.Now().Add(time.Duration(rng.Intn(72))*time.Hour)); err == nil {
				lastLedgerId = id
			}
		case 1:
			svc.MarkDepositPaid(1, lastLedgerId)
		case 2:
			svc.MarkDepositPaid(1, "bogus-reference")
		case 3:
			svc.Cancel(1, admin)
		case 4:
			svc.Expire(1)
		case 5:
			if err := svc.MarkSold(1, admin); err == nil {
				// Sold is terminal; reset so the walk keeps moving.
				store.AddListing(1)
			}
		}
		clk.Advance(time.Duration(rng.Intn(120)) * time.Minute)

		snap, ok := store.Listing(1)
		require.True(t, ok)
		checkInvariants(t, snap)
		assert.LessOrEqual(t, countPendingActive(store, 1), 1)
	}
}

// staleReadStore serves transaction reads from a snapshot captured before
// another writer got in, so commits collide with the stored version until
// the stale reads run out.
type staleReadStore struct {
	inner      Store
	mu         sync.Mutex
	stale      Snapshot
	staleReads int // -1 keeps every read stale
}

func (s *staleReadStore) FindOverduePending(now time.Time) ([]uint, error) {
	return s.inner.FindOverduePending(now)
}

func (s *staleReadStore) WithTx(fn func(Tx) error) error {
	return s.inner.WithTx(func(tx Tx) error {
		return fn(&staleReadTx{Tx: tx, store: s})
	})
}

type staleReadTx struct {
	Tx
	store *staleReadStore
}

func (t *staleReadTx) GetListing(id uint) (Snapshot, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.store.staleReads != 0 {
		if t.store.staleReads > 0 {
			t.store.staleReads--
		}
		return t.store.stale, nil
	}
	return t.Tx.GetListing(id)
}

func TestServiceRetriesConflictAndSucceeds(t *testing.T) {
	svc, store, clk := newTestService(t)
	store.AddListing(1)
	stale, _ := store.Listing(1)

	// Another actor reserves and cancels, bumping the version past the
	// captured snapshot while leaving the listing available.
	_, err := svc.Reserve(1, owner.UserID, clk.Now().Add(48*time.Hour))
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(1, owner))

	wrapped := &staleReadStore{inner: store, stale: stale, staleReads: 1}
	retrying := NewService(wrapped, gate.NewRoleGate(), clk)

	ledgerId, err := retrying.Reserve(1, stranger.UserID, clk.Now().Add(48*time.Hour))
	require.NoError(t, err)
	require.NotEmpty(t, ledgerId)

	snap, _ := store.Listing(1)
	assert.Equal(t, types.LISTING_RESERVED, snap.Status)
	assert.Equal(t, stranger.UserID, snap.OwnerID)
	assert.Equal(t, 1, countPendingActive(store, 1))
}

func TestServiceRetriesConflictAndRejectsCleanly(t *testing.T) {
	svc, store, clk := newTestService(t)
	store.AddListing(1)
	stale, _ := store.Listing(1)

	_, err := svc.Reserve(1, owner.UserID, clk.Now().Add(48*time.Hour))
	require.NoError(t, err)

	// First attempt sees the stale available snapshot, commits into the
	// conflict, then the retry reads the reserved listing and rejects.
	wrapped := &staleReadStore{inner: store, stale: stale, staleReads: 1}
	retrying := NewService(wrapped, gate.NewRoleGate(), clk)

	_, err = retrying.Reserve(1, stranger.UserID, clk.Now().Add(48*time.Hour))
	assert.ErrorIs(t, err, ErrNotAvailable)

	snap, _ := store.Listing(1)
	assert.Equal(t, owner.UserID, snap.OwnerID)
	assert.Equal(t, 1, countPendingActive(store, 1))
}

func TestServiceGivesUpAfterRetryBudget(t *testing.T) {
	svc, store, clk := newTestService(t)
	store.AddListing(1)
	stale, _ := store.Listing(1)

	_, err := svc.Reserve(1, owner.UserID, clk.Now().Add(48*time.Hour))
	require.NoError(t, err)

	wrapped := &staleReadStore{inner: store, stale: stale, staleReads: -1}
	retrying := NewService(wrapped, gate.NewRoleGate(), clk)

	_, err = retrying.Reserve(1, stranger.UserID, clk.Now().Add(48*time.Hour))
	assert.ErrorIs(t, err, ErrVersionConflict)

	snap, _ := store.Listing(1)
	assert.Equal(t, types.LISTING_RESERVED, snap.Status)
	assert.Equal(t, owner.UserID, snap.OwnerID)
	assert.Equal(t, 1, countPendingActive(store, 1))
}
