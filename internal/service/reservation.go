package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/venuely/reservation-engine/internal/model"
	"github.com/venuely/reservation-engine/internal/queue"
	"github.com/venuely/reservation-engine/internal/repository"
)

// DefaultProcessingSLA is how long an operator has to act on a new
// reservation before the sweeper expires it.
const DefaultProcessingSLA = 24 * time.Hour

// reservationStore is the slice of ReservationRepo the state machine
// needs.
type reservationStore interface {
	InsertAdmitted(ctx context.Context, res *model.Reservation, quantity uint32, occupying []string) error
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	GetForConsumer(ctx context.Context, id, consumerID uint64) (*model.Reservation, error)
	GetForOperator(ctx context.Context, id, operatorID uint64) (*model.Reservation, error)
	UpdateStatus(ctx context.Context, u repository.StatusUpdate) (bool, error)
	SetPaymentStatus(ctx context.Context, id uint64, status model.PaymentStatus) error
	ListByConsumer(ctx context.Context, consumerID uint64) ([]model.Reservation, error)
	ListByResourceForOperator(ctx context.Context, resourceID, operatorID uint64) ([]model.Reservation, error)
	ListPastProcessingDeadline(ctx context.Context, statuses []string, now time.Time, limit int) ([]model.Reservation, error)
}

// escrowLedger is what the state machine calls on transitions with a
// financial consequence. Failures are logged, never rolled back into the
// transition.
type escrowLedger interface {
	EnsureHold(ctx context.Context, reservationID uint64) error
	Settle(ctx context.Context, reservationID uint64, reason model.SettleReason, refundPercent int) error
}

// slotPromoter receives the fire-and-forget signal when a transition
// frees capacity on a slot.
type slotPromoter interface {
	TriggerPromotionForSlot(slotID uint64)
}

// entryCanceller withdraws the waitlist entry linked to a reservation.
type entryCanceller interface {
	CancelByReservation(ctx context.Context, reservationID uint64) error
}

// eventSink receives the side-effect events every transition emits.
type eventSink interface {
	Transition(ctx context.Context, ev queue.TransitionEvent)
	Notification(ctx context.Context, ev queue.NotificationEvent)
}

// ReservationService owns the reservation state machine. Every mutating
// operation follows the same contract: load scoped by id and actor
// (authorization is structural), verify the source status, apply the
// transition as a compare-and-swap, then fire side effects that must
// never block or fail the transition itself.
type ReservationService struct {
	store         reservationStore
	availability  *AvailabilityService
	resources     resourceReader
	escrow        escrowLedger
	policies      policyReader
	audit         auditWriter
	events        eventSink
	waitlist      slotPromoter
	entries       entryCanceller
	now           func() time.Time
	processingSLA time.Duration
}

// NewReservationService wires the state machine. now may be nil;
// processingSLA of zero selects the default.
func NewReservationService(
	store reservationStore,
	availability *AvailabilityService,
	resources resourceReader,
	escrow escrowLedger,
	policies policyReader,
	audit auditWriter,
	events eventSink,
	waitlist slotPromoter,
	entries entryCanceller,
	now func() time.Time,
	processingSLA time.Duration,
) *ReservationService {
	if now == nil {
		now = time.Now
	}
	if processingSLA <= 0 {
		processingSLA = DefaultProcessingSLA
	}
	return &ReservationService{
		store: store, availability: availability, resources: resources,
		escrow: escrow, policies: policies, audit: audit, events: events,
		waitlist: waitlist, entries: entries, now: now, processingSLA: processingSLA,
	}
}

// RequestReservation is the admission input.
type RequestReservation struct {
	ResourceID        uint64
	SlotID            *uint64
	ConsumerID        uint64
	PartySize         uint32
	Window            model.Window
	StockPool         model.StockPool
	AmountTotal       int64
	GuaranteeRequired bool
	Metadata          map[string]any
}

// Request admits a new reservation. The capacity check is read-then-
// decided; the guarded insert is what actually resolves concurrent
// admission races, and a loser surfaces ErrCapacityExceeded rather than
// retrying.
func (s *ReservationService) Request(ctx context.Context, req RequestReservation) (*model.Reservation, error) {
	if req.ConsumerID == 0 || req.ResourceID == 0 || req.PartySize == 0 || !req.Window.Valid() {
		return nil, ErrValidation
	}
	resource, err := s.resources.GetByID(ctx, req.ResourceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	avail, err := s.availability.CheckAvailability(ctx, req.ResourceID, req.Window, 0)
	if err != nil {
		return nil, err
	}
	if !avail.Available {
		return nil, ErrCapacityExceeded
	}

	res := s.buildReservation(req, resource)
	err = s.store.InsertAdmitted(ctx, res, resource.Quantity, model.Occupying.Strings())
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// The slot just filled under us.
			return nil, ErrCapacityExceeded
		}
		return nil, err
	}

	s.emit(ctx, res, "", res.Status, actorConsumer(req.ConsumerID), nil)
	s.notifyOperator(ctx, res, "reservation_requested", "New reservation request")
	return res, nil
}

func (s *ReservationService) buildReservation(req RequestReservation, resource *model.Resource) *model.Reservation {
	deadline := s.now().Add(s.processingSLA)
	pool := req.StockPool
	if pool == "" {
		pool = model.PoolFree
	}
	deposit := int64(0)
	if req.GuaranteeRequired {
		deposit = resource.DepositSubunits
		if deposit == 0 {
			deposit = DefaultDepositSubunits
		}
	}
	metadata := req.Metadata
	if req.GuaranteeRequired {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata["guarantee_required"] = true
	}
	return &model.Reservation{
		ResourceID:         req.ResourceID,
		SlotID:             req.SlotID,
		ConsumerID:         req.ConsumerID,
		OperatorID:         resource.OperatorID,
		PartySize:          req.PartySize,
		Window:             req.Window,
		StockPool:          pool,
		Type:               model.TypeStandard,
		AmountTotal:        req.AmountTotal,
		AmountDeposit:      deposit,
		Currency:           resource.Currency,
		Status:             model.StatusRequested,
		PaymentStatus:      model.PaymentPending,
		ProcessingDeadline: &deadline,
		Metadata:           metadata,
	}
}

// Accept confirms a reservation on behalf of its operator.
func (s *ReservationService) Accept(ctx context.Context, id, operatorID uint64) (*model.Reservation, error) {
	res, err := s.store.GetForOperator(ctx, id, operatorID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if !model.Acceptable.Contains(res.Status) {
		return nil, ErrInvalidTransition
	}
	before := res.Status
	ok, err := s.store.UpdateStatus(ctx, repository.StatusUpdate{
		ID: id, OperatorID: operatorID,
		From: model.Acceptable.Strings(),
		To:   model.StatusConfirmed,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	res.Status = model.StatusConfirmed

	if err := s.escrow.EnsureHold(ctx, id); err != nil {
		log.Printf("reservation: ensure hold for %d failed: %v", id, err)
	}
	s.emit(ctx, res, before, res.Status, actorOperator(operatorID), nil)
	s.notifyConsumer(ctx, res, "reservation_accepted", "Your reservation is confirmed")
	return res, nil
}

// Refuse rejects a pre-confirmation reservation. The consumer's deposit,
// if any, is fully refunded.
func (s *ReservationService) Refuse(ctx context.Context, id, operatorID uint64, reason string) (*model.Reservation, error) {
	return s.operatorTerminate(ctx, id, operatorID, reason,
		model.Refusable, model.StatusRefused, "reservation_refused", "Your reservation was refused")
}

// CancelByOperator cancels on the consumer's behalf; the deposit is
// fully refunded because the operator caused the cancellation.
func (s *ReservationService) CancelByOperator(ctx context.Context, id, operatorID uint64, reason string) (*model.Reservation, error) {
	return s.operatorTerminate(ctx, id, operatorID, reason,
		model.CancellableByOperator, model.StatusCancelledPro, "reservation_cancelled", "Your reservation was cancelled by the venue")
}

func (s *ReservationService) operatorTerminate(ctx context.Context, id, operatorID uint64, reason string, from model.StatusSet, to model.ReservationStatus, category, title string) (*model.Reservation, error) {
	res, err := s.store.GetForOperator(ctx, id, operatorID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if !from.Contains(res.Status) {
		return nil, ErrInvalidTransition
	}
	before := res.Status
	ok, err := s.store.UpdateStatus(ctx, repository.StatusUpdate{
		ID: id, OperatorID: operatorID,
		From:               from.Strings(),
		To:                 to,
		CancellationReason: reason,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	res.Status = to

	s.settleAsync(ctx, res, model.SettleCancel, 100)
	s.signalFreedCapacity(res, before)
	s.emit(ctx, res, before, to, actorOperator(operatorID), map[string]any{"reason": reason})
	s.notifyConsumer(ctx, res, category, title)
	return res, nil
}

// CancelByConsumer cancels the consumer's own reservation. The refund
// percentage follows the operator's policy: full refund at or beyond the
// free-cancellation horizon, the configured penalty inside it.
func (s *ReservationService) CancelByConsumer(ctx context.Context, id, consumerID uint64, reason string) (*model.Reservation, error) {
	res, err := s.store.GetForConsumer(ctx, id, consumerID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if !model.CancellableByUser.Contains(res.Status) {
		return nil, ErrInvalidTransition
	}
	before := res.Status
	ok, err := s.store.UpdateStatus(ctx, repository.StatusUpdate{
		ID: id, ConsumerID: consumerID,
		From:               model.CancellableByUser.Strings(),
		To:                 model.StatusCancelledUser,
		CancellationReason: reason,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	res.Status = model.StatusCancelledUser

	if res.AmountDeposit > 0 {
		refund := 100
		if policy, perr := s.policies.ForOperator(ctx, res.OperatorID); perr != nil {
			log.Printf("reservation: policy load for operator %d failed: %v", res.OperatorID, perr)
		} else {
			refund = policy.RefundPercentOnCancel(s.now(), res.Start)
		}
		s.settleAsync(ctx, res, model.SettleCancel, refund)
	}
	if before == model.StatusWaitlist || before == model.StatusPendingWaitlist {
		if err := s.entries.CancelByReservation(ctx, id); err != nil {
			log.Printf("reservation: cancel waitlist entry for %d failed: %v", id, err)
		}
	}
	s.signalFreedCapacity(res, before)
	s.emit(ctx, res, before, res.Status, actorConsumer(consumerID), map[string]any{
		"reason":         reason,
		"hours_to_start": model.HoursToStart(s.now(), res.Start),
	})
	s.notifyOperator(ctx, res, "reservation_cancelled", "A reservation was cancelled")
	return res, nil
}

// CheckIn marks the consumer as arrived and captures the full deposit.
func (s *ReservationService) CheckIn(ctx context.Context, id, operatorID uint64) (*model.Reservation, error) {
	res, err := s.store.GetForOperator(ctx, id, operatorID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if res.Status != model.StatusConfirmed {
		return nil, ErrInvalidTransition
	}
	now := s.now()
	ok, err := s.store.UpdateStatus(ctx, repository.StatusUpdate{
		ID: id, OperatorID: operatorID,
		From:        []string{string(model.StatusConfirmed)},
		To:          model.StatusConsumed,
		CheckedInAt: &now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	before := res.Status
	res.Status = model.StatusConsumed
	res.CheckedInAt = &now

	s.settleAsync(ctx, res, model.SettleCheckin, 0)
	s.emit(ctx, res, before, res.Status, actorOperator(operatorID), nil)
	return res, nil
}

// NoShow marks a confirmed reservation as not honoured. With a
// guaranteed deposit the whole deposit is forfeited; otherwise the
// operator's configured no-show penalty applies.
func (s *ReservationService) NoShow(ctx context.Context, id, operatorID uint64) (*model.Reservation, error) {
	res, err := s.store.GetForOperator(ctx, id, operatorID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if res.Status != model.StatusConfirmed {
		return nil, ErrInvalidTransition
	}
	ok, err := s.store.UpdateStatus(ctx, repository.StatusUpdate{
		ID: id, OperatorID: operatorID,
		From: []string{string(model.StatusConfirmed)},
		To:   model.StatusNoShow,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	before := res.Status
	res.Status = model.StatusNoShow

	if res.AmountDeposit > 0 {
		refund := 0
		if policy, perr := s.policies.ForOperator(ctx, res.OperatorID); perr != nil {
			log.Printf("reservation: policy load for operator %d failed: %v", res.OperatorID, perr)
		} else {
			refund = policy.RefundPercentOnNoShow(true)
		}
		s.settleAsync(ctx, res, model.SettleNoShow, refund)
	}
	s.signalFreedCapacity(res, before)
	s.emit(ctx, res, before, res.Status, actorOperator(operatorID), nil)
	s.notifyConsumer(ctx, res, "reservation_noshow", "You were marked as a no-show")
	return res, nil
}

// PaymentConfirmed records the payment provider's confirmation and
// ensures the escrow hold exists. Called from the provider callback, not
// by either actor.
func (s *ReservationService) PaymentConfirmed(ctx context.Context, id uint64) error {
	if err := s.store.SetPaymentStatus(ctx, id, model.PaymentPaid); err != nil {
		return mapRepoErr(err)
	}
	if err := s.escrow.EnsureHold(ctx, id); err != nil {
		log.Printf("reservation: ensure hold for %d failed: %v", id, err)
	}
	return nil
}

// GetForConsumer returns the consumer's reservation or ErrNotFound.
func (s *ReservationService) GetForConsumer(ctx context.Context, id, consumerID uint64) (*model.Reservation, error) {
	res, err := s.store.GetForConsumer(ctx, id, consumerID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return res, nil
}

// ListForConsumer returns the consumer's reservations, newest first.
func (s *ReservationService) ListForConsumer(ctx context.Context, consumerID uint64) ([]model.Reservation, error) {
	return s.store.ListByConsumer(ctx, consumerID)
}

// ListForOperatorResource returns a resource's reservations for its
// operator.
func (s *ReservationService) ListForOperatorResource(ctx context.Context, resourceID, operatorID uint64) ([]model.Reservation, error) {
	return s.store.ListByResourceForOperator(ctx, resourceID, operatorID)
}

// SweepProcessingDeadlines expires reservations still awaiting operator
// action past their processing deadline. Only the sweeper may force this
// transition; a failure on one reservation never aborts the rest of the
// batch.
func (s *ReservationService) SweepProcessingDeadlines(ctx context.Context, batchSize int) (int, error) {
	overdue, err := s.store.ListPastProcessingDeadline(ctx, model.Acceptable.Strings(), s.now(), batchSize)
	if err != nil {
		return 0, err
	}
	expired := 0
	for i := range overdue {
		res := &overdue[i]
		ok, err := s.store.UpdateStatus(ctx, repository.StatusUpdate{
			ID:   res.ID,
			From: model.Acceptable.Strings(),
			To:   model.StatusExpired,
		})
		if err != nil {
			log.Printf("sweeper: expire reservation %d: %v", res.ID, err)
			continue
		}
		if !ok {
			// An actor got there first; nothing to do.
			continue
		}
		before := res.Status
		res.Status = model.StatusExpired
		expired++

		if res.AmountDeposit > 0 {
			s.settleAsync(ctx, res, model.SettleCancel, 100)
		}
		s.signalFreedCapacity(res, before)
		s.emit(ctx, res, before, res.Status, "sweeper", map[string]any{"deadline": res.ProcessingDeadline})
		s.notifyConsumer(ctx, res, "reservation_expired", "Your reservation request expired")
	}
	return expired, nil
}

// settleAsync calls the escrow ledger without letting a failure reach
// the transition; reconciliation repairs any miss.
func (s *ReservationService) settleAsync(ctx context.Context, res *model.Reservation, reason model.SettleReason, refundPercent int) {
	if res.AmountDeposit == 0 {
		return
	}
	if err := s.escrow.Settle(ctx, res.ID, reason, refundPercent); err != nil {
		log.Printf("reservation: settle %d (%s) failed: %v", res.ID, reason, err)
	}
}

// signalFreedCapacity fires waitlist promotion when a transition leaves
// an occupying state for a non-occupying one. Check-in keeps the unit in
// use, so consumed does not promote.
func (s *ReservationService) signalFreedCapacity(res *model.Reservation, before model.ReservationStatus) {
	if res.SlotID == nil {
		return
	}
	if !model.Occupying.Contains(before) || model.Occupying.Contains(res.Status) {
		return
	}
	if res.Status == model.StatusConsumed {
		return
	}
	s.waitlist.TriggerPromotionForSlot(*res.SlotID)
}

func (s *ReservationService) emit(ctx context.Context, res *model.Reservation, before, after model.ReservationStatus, actor string, detail map[string]any) {
	if err := s.audit.Append(ctx, repository.AuditRecord{
		EntityType: "reservation",
		EntityID:   res.ID,
		Actor:      actor,
		Before:     string(before),
		After:      string(after),
		Detail:     detail,
		OccurredAt: s.now(),
	}); err != nil {
		log.Printf("reservation: audit append failed: %v", err)
	}
	s.events.Transition(ctx, queue.TransitionEvent{
		Entity:     "reservation",
		EntityID:   res.ID,
		Actor:      actor,
		Before:     string(before),
		After:      string(after),
		ResourceID: res.ResourceID,
		ConsumerID: res.ConsumerID,
		OperatorID: res.OperatorID,
		Data:       detail,
	})
}

func (s *ReservationService) notifyConsumer(ctx context.Context, res *model.Reservation, category, title string) {
	s.events.Notification(ctx, queue.NotificationEvent{
		RecipientType: "consumer",
		RecipientID:   res.ConsumerID,
		Category:      category,
		Title:         title,
		Data:          map[string]any{"reservation_id": res.ID},
	})
}

func (s *ReservationService) notifyOperator(ctx context.Context, res *model.Reservation, category, title string) {
	s.events.Notification(ctx, queue.NotificationEvent{
		RecipientType: "operator",
		RecipientID:   res.OperatorID,
		Category:      category,
		Title:         title,
		Data:          map[string]any{"reservation_id": res.ID},
	})
}

func actorConsumer(id uint64) string { return fmt.Sprintf("consumer:%d", id) }
func actorOperator(id uint64) string { return fmt.Sprintf("operator:%d", id) }

func mapRepoErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
