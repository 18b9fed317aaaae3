package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venuely/reservation-engine/internal/model"
	"github.com/venuely/reservation-engine/internal/repository"
)

// fakeWaitlistStore mirrors WaitlistRepo's CAS semantics in memory. It
// shares a fakeReservationStore so Join's paired insert stays visible to
// the reservation side of each test.
type fakeWaitlistStore struct {
	mu           sync.Mutex
	entries      map[uint64]*model.WaitlistEntry
	nextID       uint64
	reservations *fakeReservationStore
}

// status reads an entry's state under the lock; promotion runs on a
// goroutine in the withdraw path.
func (f *fakeWaitlistStore) status(entryID uint64) model.WaitlistStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[entryID].Status
}

func newFakeWaitlistStore(reservations *fakeReservationStore) *fakeWaitlistStore {
	return &fakeWaitlistStore{
		entries:      map[uint64]*model.WaitlistEntry{},
		reservations: reservations,
	}
}

func (f *fakeWaitlistStore) add(entry *model.WaitlistEntry) *model.WaitlistEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	entry.ID = f.nextID
	if entry.Position == 0 {
		for _, e := range f.entries {
			if e.SlotID == entry.SlotID && e.Position >= entry.Position {
				entry.Position = e.Position + 1
			}
		}
		if entry.Position == 0 {
			entry.Position = 1
		}
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	f.entries[entry.ID] = entry
	return entry
}

func (f *fakeWaitlistStore) InsertWithReservation(_ context.Context, _ *repository.ReservationRepo, res *model.Reservation, entry *model.WaitlistEntry) error {
	f.reservations.add(res)
	entry.ReservationID = res.ID
	f.add(entry)
	return nil
}

func (f *fakeWaitlistStore) NextEligible(_ context.Context, slotID uint64) (*model.WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var slot []model.WaitlistEntry
	for _, e := range f.entries {
		if e.SlotID == slotID {
			slot = append(slot, *e)
		}
	}
	best := model.NextCandidate(slot)
	if best == nil {
		return nil, repository.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (f *fakeWaitlistStore) MarkOfferSent(_ context.Context, entryID uint64, token string, expiresAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[entryID]
	if !ok || !e.Eligible() {
		return false, nil
	}
	e.Status = model.WaitlistOfferSent
	e.OfferToken = &token
	e.OfferExpiresAt = &expiresAt
	return true, nil
}

func (f *fakeWaitlistStore) cas(entryID uint64, from, to model.WaitlistStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[entryID]
	if !ok || e.Status != from {
		return false, nil
	}
	e.Status = to
	return true, nil
}

func (f *fakeWaitlistStore) MarkOfferExpired(_ context.Context, entryID uint64) (bool, error) {
	return f.cas(entryID, model.WaitlistOfferSent, model.WaitlistOfferExpired)
}

func (f *fakeWaitlistStore) MarkConverted(_ context.Context, entryID uint64) (bool, error) {
	return f.cas(entryID, model.WaitlistOfferSent, model.WaitlistConverted)
}

func (f *fakeWaitlistStore) MarkCancelled(_ context.Context, entryID, consumerID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[entryID]
	if !ok || e.ConsumerID != consumerID || e.Status == model.WaitlistConverted || e.Status == model.WaitlistCancelled {
		return false, nil
	}
	e.Status = model.WaitlistCancelled
	return true, nil
}

func (f *fakeWaitlistStore) GetByToken(_ context.Context, token string, consumerID uint64) (*model.WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.OfferToken != nil && *e.OfferToken == token && e.ConsumerID == consumerID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeWaitlistStore) GetForConsumer(_ context.Context, entryID, consumerID uint64) (*model.WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[entryID]
	if !ok || e.ConsumerID != consumerID {
		return nil, repository.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeWaitlistStore) ListBySlot(_ context.Context, slotID uint64) ([]model.WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.WaitlistEntry
	for _, e := range f.entries {
		if e.SlotID == slotID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeWaitlistStore) ListExpiredOffers(_ context.Context, now time.Time, limit int) ([]model.WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.WaitlistEntry
	for _, e := range f.entries {
		if len(out) == limit {
			break
		}
		if e.Status == model.WaitlistOfferSent && e.OfferExpiresAt != nil && e.OfferExpiresAt.Before(now) {
			out = append(out, *e)
		}
	}
	return out, nil
}

type waitlistFixture struct {
	svc       *WaitlistService
	store     *fakeWaitlistStore
	resStore  *fakeReservationStore
	resources *fakeResources
	occupancy *fakeOccupancy
	escrow    *fakeEscrowLedger
	events    *fakeEvents
	now       time.Time
}

func newWaitlistFixture() *waitlistFixture {
	f := &waitlistFixture{
		resStore: newFakeReservationStore(),
		resources: &fakeResources{resources: map[uint64]*model.Resource{
			1: {ID: 1, OperatorID: 10, Name: "terrace", Kind: model.KindTableService,
				Quantity: 1, Currency: "EUR", Active: true},
		}},
		occupancy: &fakeOccupancy{},
		escrow:    &fakeEscrowLedger{},
		events:    &fakeEvents{},
		now:       time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
	}
	f.store = newFakeWaitlistStore(f.resStore)
	avail := NewAvailabilityService(f.resources, f.occupancy)
	f.svc = NewWaitlistService(f.store, nil, f.resStore, avail, f.resources,
		f.escrow, f.events, &fakeAudit{}, fixedNow(f.now), 15*time.Minute)
	return f
}

func (f *waitlistFixture) join(t *testing.T, consumerID uint64) *model.WaitlistEntry {
	t.Helper()
	entry, err := f.svc.Join(context.Background(), JoinWaitlist{
		ResourceID: 1, SlotID: 7, ConsumerID: consumerID, PartySize: 2,
		Window: model.Window{Start: f.now.Add(24 * time.Hour), End: f.now.Add(26 * time.Hour)},
	})
	require.NoError(t, err)
	return entry
}

func TestJoinParksReservationWithEntry(t *testing.T) {
	f := newWaitlistFixture()
	entry := f.join(t, 20)

	assert.Equal(t, model.WaitlistWaiting, entry.Status)
	require.NotZero(t, entry.ReservationID)
	res, err := f.resStore.GetByID(context.Background(), entry.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaitlist, res.Status)
	assert.Equal(t, uint64(10), res.OperatorID)
}

func TestJoinValidation(t *testing.T) {
	f := newWaitlistFixture()
	_, err := f.svc.Join(context.Background(), JoinWaitlist{
		ResourceID: 1, SlotID: 7, ConsumerID: 20, PartySize: 0,
		Window: model.Window{Start: f.now, End: f.now.Add(time.Hour)},
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPromoteNextSendsOffer(t *testing.T) {
	f := newWaitlistFixture()
	first := f.join(t, 20)
	f.join(t, 21)

	require.NoError(t, f.svc.PromoteNext(context.Background(), 7))

	promoted := f.store.entries[first.ID]
	assert.Equal(t, model.WaitlistOfferSent, promoted.Status)
	require.NotNil(t, promoted.OfferToken)
	require.NotNil(t, promoted.OfferExpiresAt)
	assert.Equal(t, f.now.Add(15*time.Minute), *promoted.OfferExpiresAt)

	res, _ := f.resStore.GetByID(context.Background(), promoted.ReservationID)
	assert.Equal(t, model.StatusPendingWaitlist, res.Status)

	require.Len(t, f.events.notifications, 1)
	assert.Equal(t, "waitlist_offer", f.events.notifications[0].Category)
	assert.Equal(t, *promoted.OfferToken, f.events.notifications[0].Data["offer_token"])
}

func TestPromoteNextSkipsWhenSlotStillFull(t *testing.T) {
	f := newWaitlistFixture()
	entry := f.join(t, 20)
	f.occupancy.booked = 1 // quantity is 1

	require.NoError(t, f.svc.PromoteNext(context.Background(), 7))
	assert.Equal(t, model.WaitlistWaiting, f.store.entries[entry.ID].Status)
	assert.Empty(t, f.events.notifications)
}

func TestPromoteNextEmptyQueue(t *testing.T) {
	f := newWaitlistFixture()
	err := f.svc.PromoteNext(context.Background(), 7)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAcceptOfferConfirms(t *testing.T) {
	f := newWaitlistFixture()
	entry := f.join(t, 20)
	require.NoError(t, f.svc.PromoteNext(context.Background(), 7))
	token := *f.store.entries[entry.ID].OfferToken

	res, err := f.svc.AcceptOffer(context.Background(), token, 20)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, res.Status)
	assert.Equal(t, model.WaitlistConverted, f.store.entries[entry.ID].Status)
	assert.Equal(t, []uint64{entry.ReservationID}, f.escrow.ensured)
}

func TestAcceptOfferWrongConsumer(t *testing.T) {
	f := newWaitlistFixture()
	entry := f.join(t, 20)
	require.NoError(t, f.svc.PromoteNext(context.Background(), 7))
	token := *f.store.entries[entry.ID].OfferToken

	_, err := f.svc.AcceptOffer(context.Background(), token, 99)
	assert.ErrorIs(t, err, ErrNotFound, "a leaked token alone must not convert")
}

func TestAcceptOfferExpired(t *testing.T) {
	f := newWaitlistFixture()
	entry := f.join(t, 20)
	require.NoError(t, f.svc.PromoteNext(context.Background(), 7))
	stored := f.store.entries[entry.ID]
	lapsed := f.now.Add(-time.Second)
	stored.OfferExpiresAt = &lapsed

	_, err := f.svc.AcceptOffer(context.Background(), *stored.OfferToken, 20)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, model.WaitlistOfferSent, stored.Status, "expiry belongs to the sweeper, not the accept path")
}

func TestWithdrawCancelsParkedReservation(t *testing.T) {
	f := newWaitlistFixture()
	entry := f.join(t, 20)

	require.NoError(t, f.svc.Withdraw(context.Background(), entry.ID, 20))
	assert.Equal(t, model.WaitlistCancelled, f.store.entries[entry.ID].Status)
	res, _ := f.resStore.GetByID(context.Background(), entry.ReservationID)
	assert.Equal(t, model.StatusCancelledUser, res.Status)
	require.NotNil(t, res.CancellationReason)
	assert.Equal(t, "waitlist withdrawal", *res.CancellationReason)
}

func TestWithdrawOpenOfferPromotesNext(t *testing.T) {
	f := newWaitlistFixture()
	first := f.join(t, 20)
	second := f.join(t, 21)
	require.NoError(t, f.svc.PromoteNext(context.Background(), 7))

	require.NoError(t, f.svc.Withdraw(context.Background(), first.ID, 20))

	// Withdrawal of the open offer hands it to the next in line; the
	// trigger runs on a goroutine, so poll briefly.
	assert.Eventually(t, func() bool {
		return f.store.status(second.ID) == model.WaitlistOfferSent
	}, time.Second, 5*time.Millisecond)
}

func TestSweepExpiredOffersChainsPromotion(t *testing.T) {
	f := newWaitlistFixture()
	first := f.join(t, 20)
	second := f.join(t, 21)
	require.NoError(t, f.svc.PromoteNext(context.Background(), 7))
	stored := f.store.entries[first.ID]
	lapsed := f.now.Add(-time.Minute)
	stored.OfferExpiresAt = &lapsed

	n, err := f.svc.SweepExpiredOffers(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, model.WaitlistOfferExpired, stored.Status)
	res, _ := f.resStore.GetByID(context.Background(), first.ReservationID)
	assert.Equal(t, model.StatusCancelledWaitlist, res.Status)

	// Promotion chains synchronously inside the sweep.
	next := f.store.entries[second.ID]
	assert.Equal(t, model.WaitlistOfferSent, next.Status)
	nextRes, _ := f.resStore.GetByID(context.Background(), second.ReservationID)
	assert.Equal(t, model.StatusPendingWaitlist, nextRes.Status)
}
