package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venuely/reservation-engine/internal/model"
	"github.com/venuely/reservation-engine/internal/repository"
)

// fakeEscrowStore keeps holds in memory and derives the two
// reconciliation listings from a shared fakeReservationStore the way the
// SQL does.
type fakeEscrowStore struct {
	holds        map[uint64]*model.EscrowHold // by reservation id
	nextID       uint64
	reservations *fakeReservationStore
}

func newFakeEscrowStore(reservations *fakeReservationStore) *fakeEscrowStore {
	return &fakeEscrowStore{holds: map[uint64]*model.EscrowHold{}, reservations: reservations}
}

func (f *fakeEscrowStore) GetByReservation(_ context.Context, reservationID uint64) (*model.EscrowHold, error) {
	h, ok := f.holds[reservationID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *h
	return &cp, nil
}

func (f *fakeEscrowStore) Insert(_ context.Context, hold *model.EscrowHold) error {
	if _, ok := f.holds[hold.ReservationID]; ok {
		return repository.ErrConflict
	}
	f.nextID++
	hold.ID = f.nextID
	f.holds[hold.ReservationID] = hold
	return nil
}

func (f *fakeEscrowStore) Settle(_ context.Context, reservationID uint64, reason model.SettleReason, refundPercent int, penaltySubunits int64, settledAt time.Time) (bool, error) {
	h, ok := f.holds[reservationID]
	if !ok || h.Status != model.EscrowHeld {
		return false, nil
	}
	h.Status = model.EscrowSettled
	h.Reason = &reason
	h.RefundPercent = &refundPercent
	h.PenaltySubunits = &penaltySubunits
	h.SettledAt = &settledAt
	return true, nil
}

func (f *fakeEscrowStore) ReservationIDsMissingHold(_ context.Context, limit int) ([]uint64, error) {
	var out []uint64
	for id, r := range f.reservations.byID {
		if r.AmountDeposit > 0 && r.PaymentStatus == model.PaymentPaid {
			if _, ok := f.holds[id]; !ok {
				out = append(out, id)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeEscrowStore) ReservationIDsWithOrphanedHold(_ context.Context, terminal []string, limit int) ([]uint64, error) {
	var out []uint64
	for id, h := range f.holds {
		if h.Status != model.EscrowHeld {
			continue
		}
		r, ok := f.reservations.byID[id]
		if !ok {
			continue
		}
		for _, st := range terminal {
			if string(r.Status) == st {
				out = append(out, id)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type escrowFixture struct {
	svc      *EscrowService
	holds    *fakeEscrowStore
	resStore *fakeReservationStore
	now      time.Time
}

func newEscrowFixture() *escrowFixture {
	f := &escrowFixture{
		resStore: newFakeReservationStore(),
		now:      time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
	}
	f.holds = newFakeEscrowStore(f.resStore)
	f.svc = NewEscrowService(f.holds, f.resStore,
		&fakePolicies{policy: model.DefaultPolicy()}, &fakeAudit{}, fixedNow(f.now))
	return f
}

func (f *escrowFixture) reservation(deposit int64, payment model.PaymentStatus, status model.ReservationStatus) *model.Reservation {
	return f.resStore.add(&model.Reservation{
		ResourceID: 1, ConsumerID: 20, OperatorID: 10, PartySize: 2,
		Window: model.Window{
			Start: f.now.Add(26 * time.Hour),
			End:   f.now.Add(28 * time.Hour),
		},
		StockPool: model.PoolFree, Type: model.TypeStandard,
		AmountDeposit: deposit, Currency: "EUR",
		Status: status, PaymentStatus: payment,
		UpdatedAt: f.now,
	})
}

func TestEnsureHoldCreatesOnce(t *testing.T) {
	f := newEscrowFixture()
	res := f.reservation(10000, model.PaymentPaid, model.StatusConfirmed)

	require.NoError(t, f.svc.EnsureHold(context.Background(), res.ID))
	hold, err := f.holds.GetByReservation(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EscrowHeld, hold.Status)
	assert.Equal(t, int64(10000), hold.AmountSubunits)
	assert.Equal(t, "EUR", hold.Currency)

	require.NoError(t, f.svc.EnsureHold(context.Background(), res.ID))
	assert.Len(t, f.holds.holds, 1)
}

func TestEnsureHoldSkipsUnpaidAndZeroDeposit(t *testing.T) {
	f := newEscrowFixture()

	unpaid := f.reservation(10000, model.PaymentPending, model.StatusConfirmed)
	require.NoError(t, f.svc.EnsureHold(context.Background(), unpaid.ID))

	free := f.reservation(0, model.PaymentPaid, model.StatusConfirmed)
	require.NoError(t, f.svc.EnsureHold(context.Background(), free.ID))

	assert.Empty(t, f.holds.holds)

	assert.ErrorIs(t, f.svc.EnsureHold(context.Background(), 404), ErrNotFound)
}

func TestSettleRecordsOutcomeOnce(t *testing.T) {
	f := newEscrowFixture()
	res := f.reservation(10000, model.PaymentPaid, model.StatusCancelledUser)
	require.NoError(t, f.svc.EnsureHold(context.Background(), res.ID))

	require.NoError(t, f.svc.Settle(context.Background(), res.ID, model.SettleCancel, 50))
	hold, _ := f.holds.GetByReservation(context.Background(), res.ID)
	assert.Equal(t, model.EscrowSettled, hold.Status)
	assert.Equal(t, model.SettleCancel, *hold.Reason)
	assert.Equal(t, 50, *hold.RefundPercent)
	assert.Equal(t, int64(5000), *hold.PenaltySubunits)
	assert.Equal(t, f.now, *hold.SettledAt)

	// A second settle must not rewrite the recorded outcome.
	require.NoError(t, f.svc.Settle(context.Background(), res.ID, model.SettleNoShow, 0))
	hold, _ = f.holds.GetByReservation(context.Background(), res.ID)
	assert.Equal(t, model.SettleCancel, *hold.Reason)
	assert.Equal(t, 50, *hold.RefundPercent)
}

func TestSettleNegativeRefundSelectsReasonDefault(t *testing.T) {
	f := newEscrowFixture()
	res := f.reservation(8000, model.PaymentPaid, model.StatusConsumed)
	require.NoError(t, f.svc.EnsureHold(context.Background(), res.ID))

	require.NoError(t, f.svc.Settle(context.Background(), res.ID, model.SettleCheckin, -1))
	hold, _ := f.holds.GetByReservation(context.Background(), res.ID)
	assert.Equal(t, 0, *hold.RefundPercent, "check-in captures the full deposit")
	assert.Equal(t, int64(8000), *hold.PenaltySubunits)
}

func TestSettleUnknownReservation(t *testing.T) {
	f := newEscrowFixture()
	assert.ErrorIs(t, f.svc.Settle(context.Background(), 404, model.SettleCancel, 100), ErrNotFound)
}

func TestReconcileCreatesMissingHolds(t *testing.T) {
	f := newEscrowFixture()
	res := f.reservation(10000, model.PaymentPaid, model.StatusConfirmed)

	stats, err := f.svc.Reconcile(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.HoldsCreated)
	assert.Equal(t, 0, stats.HoldsSettled)
	assert.Equal(t, 1, stats.ItemsExamined)

	_, err = f.holds.GetByReservation(context.Background(), res.ID)
	assert.NoError(t, err)
}

func TestReconcileSettlesOrphanedHolds(t *testing.T) {
	f := newEscrowFixture()

	consumed := f.reservation(10000, model.PaymentPaid, model.StatusConsumed)
	require.NoError(t, f.svc.EnsureHold(context.Background(), consumed.ID))

	noshow := f.reservation(10000, model.PaymentPaid, model.StatusNoShow)
	require.NoError(t, f.svc.EnsureHold(context.Background(), noshow.ID))

	// Cancelled 26h before start, outside the default 24h penalty
	// window; the hours-to-start rule evaluates at UpdatedAt.
	cancelled := f.reservation(10000, model.PaymentPaid, model.StatusCancelledUser)
	require.NoError(t, f.svc.EnsureHold(context.Background(), cancelled.ID))

	stats, err := f.svc.Reconcile(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.HoldsSettled)
	assert.Equal(t, 0, stats.ItemsFailed)

	h, _ := f.holds.GetByReservation(context.Background(), consumed.ID)
	assert.Equal(t, model.SettleCheckin, *h.Reason)
	assert.Equal(t, 0, *h.RefundPercent)

	h, _ = f.holds.GetByReservation(context.Background(), noshow.ID)
	assert.Equal(t, model.SettleNoShow, *h.Reason)
	assert.Equal(t, 0, *h.RefundPercent, "guaranteed deposit is forfeited in full")

	h, _ = f.holds.GetByReservation(context.Background(), cancelled.ID)
	assert.Equal(t, model.SettleCancel, *h.Reason)
	assert.Equal(t, 100, *h.RefundPercent)
}

func TestReconcileRefundsOperatorTerminationsInFull(t *testing.T) {
	f := newEscrowFixture()

	// All three start in 2h, well inside the default 24h penalty
	// window; the penalty must still not apply, because the consumer
	// did not cause any of these terminations.
	inside := func(status model.ReservationStatus) *model.Reservation {
		res := f.reservation(10000, model.PaymentPaid, status)
		f.resStore.byID[res.ID].Window = model.Window{
			Start: f.now.Add(2 * time.Hour),
			End:   f.now.Add(4 * time.Hour),
		}
		require.NoError(t, f.svc.EnsureHold(context.Background(), res.ID))
		return res
	}
	cancelledPro := inside(model.StatusCancelledPro)
	refused := inside(model.StatusRefused)
	expired := inside(model.StatusExpired)
	lateUser := inside(model.StatusCancelledUser)

	stats, err := f.svc.Reconcile(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.HoldsSettled)

	for _, res := range []*model.Reservation{cancelledPro, refused, expired} {
		h, err := f.holds.GetByReservation(context.Background(), res.ID)
		require.NoError(t, err)
		assert.Equal(t, 100, *h.RefundPercent, "status %s", res.Status)
		assert.Equal(t, int64(0), *h.PenaltySubunits, "status %s", res.Status)
	}

	// The consumer's own late cancellation keeps the policy penalty.
	h, err := f.holds.GetByReservation(context.Background(), lateUser.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, *h.RefundPercent)
	assert.Equal(t, int64(5000), *h.PenaltySubunits)
}
