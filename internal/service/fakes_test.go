package service

import (
	"context"
	"time"

	"github.com/venuely/reservation-engine/internal/model"
	"github.com/venuely/reservation-engine/internal/queue"
	"github.com/venuely/reservation-engine/internal/repository"
)

// In-memory fakes for the consumer-side interfaces of the services.
// They enforce the same scoping and compare-and-swap semantics as the
// SQL they stand in for, so transition guards are exercised for real.

type fakeResources struct {
	resources map[uint64]*model.Resource
	blocked   bool
}

func (f *fakeResources) GetByID(_ context.Context, id uint64) (*model.Resource, error) {
	r, ok := f.resources[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeResources) HasDateBlockOverlap(context.Context, uint64, model.Window) (bool, error) {
	return f.blocked, nil
}

type fakeOccupancy struct {
	booked int
}

func (f *fakeOccupancy) CountOccupying(context.Context, uint64, model.Window, uint64, []string) (int, error) {
	return f.booked, nil
}

type fakeReservationStore struct {
	byID     map[uint64]*model.Reservation
	nextID   uint64
	full     bool
	updates  []repository.StatusUpdate
	payments map[uint64]model.PaymentStatus
}

func newFakeReservationStore() *fakeReservationStore {
	return &fakeReservationStore{
		byID:     map[uint64]*model.Reservation{},
		payments: map[uint64]model.PaymentStatus{},
	}
}

func (f *fakeReservationStore) add(res *model.Reservation) *model.Reservation {
	f.nextID++
	res.ID = f.nextID
	f.byID[res.ID] = res
	return res
}

func (f *fakeReservationStore) InsertAdmitted(_ context.Context, res *model.Reservation, _ uint32, _ []string) error {
	if f.full {
		return repository.ErrConflict
	}
	f.add(res)
	return nil
}

func (f *fakeReservationStore) GetByID(_ context.Context, id uint64) (*model.Reservation, error) {
	r, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReservationStore) GetForConsumer(ctx context.Context, id, consumerID uint64) (*model.Reservation, error) {
	r, err := f.GetByID(ctx, id)
	if err != nil || r.ConsumerID != consumerID {
		return nil, repository.ErrNotFound
	}
	return r, nil
}

func (f *fakeReservationStore) GetForOperator(ctx context.Context, id, operatorID uint64) (*model.Reservation, error) {
	r, err := f.GetByID(ctx, id)
	if err != nil || r.OperatorID != operatorID {
		return nil, repository.ErrNotFound
	}
	return r, nil
}

func (f *fakeReservationStore) UpdateStatus(_ context.Context, u repository.StatusUpdate) (bool, error) {
	f.updates = append(f.updates, u)
	r, ok := f.byID[u.ID]
	if !ok {
		return false, nil
	}
	if u.ConsumerID != 0 && r.ConsumerID != u.ConsumerID {
		return false, nil
	}
	if u.OperatorID != 0 && r.OperatorID != u.OperatorID {
		return false, nil
	}
	allowed := false
	for _, from := range u.From {
		if string(r.Status) == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	r.Status = u.To
	if u.CancellationReason != "" {
		reason := u.CancellationReason
		r.CancellationReason = &reason
	}
	if u.CheckedInAt != nil {
		r.CheckedInAt = u.CheckedInAt
	}
	r.UpdatedAt = time.Now()
	return true, nil
}

func (f *fakeReservationStore) SetPaymentStatus(_ context.Context, id uint64, status model.PaymentStatus) error {
	r, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.PaymentStatus = status
	f.payments[id] = status
	return nil
}

func (f *fakeReservationStore) ListByConsumer(_ context.Context, consumerID uint64) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, r := range f.byID {
		if r.ConsumerID == consumerID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeReservationStore) ListByResourceForOperator(_ context.Context, resourceID, operatorID uint64) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, r := range f.byID {
		if r.ResourceID == resourceID && r.OperatorID == operatorID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeReservationStore) ListPastProcessingDeadline(_ context.Context, statuses []string, now time.Time, limit int) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, r := range f.byID {
		if len(out) == limit {
			break
		}
		if r.ProcessingDeadline == nil || !r.ProcessingDeadline.Before(now) {
			continue
		}
		for _, s := range statuses {
			if string(r.Status) == s {
				out = append(out, *r)
				break
			}
		}
	}
	return out, nil
}

type settleCall struct {
	reservationID uint64
	reason        model.SettleReason
	refundPercent int
}

type fakeEscrowLedger struct {
	ensured []uint64
	settled []settleCall
}

func (f *fakeEscrowLedger) EnsureHold(_ context.Context, reservationID uint64) error {
	f.ensured = append(f.ensured, reservationID)
	return nil
}

func (f *fakeEscrowLedger) Settle(_ context.Context, reservationID uint64, reason model.SettleReason, refundPercent int) error {
	f.settled = append(f.settled, settleCall{reservationID, reason, refundPercent})
	return nil
}

type fakeEvents struct {
	transitions   []queue.TransitionEvent
	notifications []queue.NotificationEvent
}

func (f *fakeEvents) Transition(_ context.Context, ev queue.TransitionEvent) {
	f.transitions = append(f.transitions, ev)
}

func (f *fakeEvents) Notification(_ context.Context, ev queue.NotificationEvent) {
	f.notifications = append(f.notifications, ev)
}

type fakePromoter struct {
	slots chan uint64
}

func newFakePromoter() *fakePromoter { return &fakePromoter{slots: make(chan uint64, 16)} }

func (f *fakePromoter) TriggerPromotionForSlot(slotID uint64) { f.slots <- slotID }

func (f *fakePromoter) triggered(t interface{ Fatalf(string, ...any) }) uint64 {
	select {
	case id := <-f.slots:
		return id
	case <-time.After(time.Second):
		t.Fatalf("no promotion triggered")
		return 0
	}
}

type fakeEntries struct {
	cancelled []uint64
}

func (f *fakeEntries) CancelByReservation(_ context.Context, reservationID uint64) error {
	f.cancelled = append(f.cancelled, reservationID)
	return nil
}

type fakeAudit struct {
	records []repository.AuditRecord
}

func (f *fakeAudit) Append(_ context.Context, rec repository.AuditRecord) error {
	f.records = append(f.records, rec)
	return nil
}

type fakePolicies struct {
	policy model.OperatorPolicy
}

func (f *fakePolicies) ForOperator(context.Context, uint64) (model.OperatorPolicy, error) {
	return f.policy, nil
}

// fixedNow returns a deterministic clock for services under test.
func fixedNow(t time.Time) func() time.Time { return func() time.Time { return t } }
