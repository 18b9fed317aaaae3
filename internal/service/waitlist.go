package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/venuely/reservation-engine/internal/model"
	"github.com/venuely/reservation-engine/internal/queue"
	"github.com/venuely/reservation-engine/internal/repository"
)

// DefaultOfferTTL is how long a promoted consumer has to accept the
// offered unit before it moves to the next candidate.
const DefaultOfferTTL = 15 * time.Minute

// waitlistStore is the slice of WaitlistRepo the service needs.
type waitlistStore interface {
	InsertWithReservation(ctx context.Context, reservations *repository.ReservationRepo, res *model.Reservation, entry *model.WaitlistEntry) error
	NextEligible(ctx context.Context, slotID uint64) (*model.WaitlistEntry, error)
	MarkOfferSent(ctx context.Context, entryID uint64, token string, expiresAt time.Time) (bool, error)
	MarkOfferExpired(ctx context.Context, entryID uint64) (bool, error)
	MarkConverted(ctx context.Context, entryID uint64) (bool, error)
	MarkCancelled(ctx context.Context, entryID, consumerID uint64) (bool, error)
	GetByToken(ctx context.Context, token string, consumerID uint64) (*model.WaitlistEntry, error)
	GetForConsumer(ctx context.Context, entryID, consumerID uint64) (*model.WaitlistEntry, error)
	ListBySlot(ctx context.Context, slotID uint64) ([]model.WaitlistEntry, error)
	ListExpiredOffers(ctx context.Context, now time.Time, limit int) ([]model.WaitlistEntry, error)
}

// waitlistReservations is what promotion needs from the reservation
// store; offers flip the linked reservation between waitlist states.
type waitlistReservations interface {
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	UpdateStatus(ctx context.Context, u repository.StatusUpdate) (bool, error)
}

// WaitlistService manages the FIFO queue per slot and the time-boxed
// offer cycle. Promotion is strictly ordered: one offer at a time per
// slot, always to the lowest position.
type WaitlistService struct {
	store        waitlistStore
	reservations waitlistReservations
	resRepo      *repository.ReservationRepo
	availability *AvailabilityService
	resources    resourceReader
	escrow       escrowLedger
	events       eventSink
	audit        auditWriter
	now          func() time.Time
	offerTTL     time.Duration
}

// NewWaitlistService wires the queue. now may be nil; offerTTL of zero
// selects the default.
func NewWaitlistService(
	store waitlistStore,
	resRepo *repository.ReservationRepo,
	reservations waitlistReservations,
	availability *AvailabilityService,
	resources resourceReader,
	escrow escrowLedger,
	events eventSink,
	audit auditWriter,
	now func() time.Time,
	offerTTL time.Duration,
) *WaitlistService {
	if now == nil {
		now = time.Now
	}
	if offerTTL <= 0 {
		offerTTL = DefaultOfferTTL
	}
	return &WaitlistService{
		store: store, resRepo: resRepo, reservations: reservations,
		availability: availability, resources: resources, escrow: escrow,
		events: events, audit: audit, now: now, offerTTL: offerTTL,
	}
}

// JoinWaitlist is the enqueue input. The window and party mirror what a
// direct admission would have carried, so an accepted offer converts
// without asking the consumer anything further.
type JoinWaitlist struct {
	ResourceID        uint64
	SlotID            uint64
	ConsumerID        uint64
	PartySize         uint32
	Window            model.Window
	AmountTotal       int64
	GuaranteeRequired bool
}

// Join appends the consumer to a full slot's queue. The parked
// reservation is created in the same transaction as the entry so the
// two can never disagree.
func (s *WaitlistService) Join(ctx context.Context, req JoinWaitlist) (*model.WaitlistEntry, error) {
	if req.ConsumerID == 0 || req.SlotID == 0 || req.PartySize == 0 || !req.Window.Valid() {
		return nil, ErrValidation
	}
	resource, err := s.resources.GetByID(ctx, req.ResourceID)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	deposit := int64(0)
	metadata := map[string]any(nil)
	if req.GuaranteeRequired {
		deposit = resource.DepositSubunits
		if deposit == 0 {
			deposit = DefaultDepositSubunits
		}
		metadata = map[string]any{"guarantee_required": true}
	}
	slotID := req.SlotID
	res := &model.Reservation{
		ResourceID:    req.ResourceID,
		SlotID:        &slotID,
		ConsumerID:    req.ConsumerID,
		OperatorID:    resource.OperatorID,
		PartySize:     req.PartySize,
		Window:        req.Window,
		StockPool:     model.PoolFree,
		Type:          model.TypeStandard,
		AmountTotal:   req.AmountTotal,
		AmountDeposit: deposit,
		Currency:      resource.Currency,
		Status:        model.StatusWaitlist,
		PaymentStatus: model.PaymentPending,
		Metadata:      metadata,
	}
	entry := &model.WaitlistEntry{
		SlotID:     req.SlotID,
		ResourceID: req.ResourceID,
		ConsumerID: req.ConsumerID,
		Status:     model.WaitlistWaiting,
	}
	if err := s.store.InsertWithReservation(ctx, s.resRepo, res, entry); err != nil {
		return nil, err
	}

	s.emitEntry(ctx, entry, "", entry.Status, actorConsumer(req.ConsumerID), nil)
	return entry, nil
}

// TriggerPromotionForSlot runs the promotion attempt in the background.
// Transitions that free capacity call this; they must not wait on it.
func (s *WaitlistService) TriggerPromotionForSlot(slotID uint64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.PromoteNext(ctx, slotID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			log.Printf("waitlist: promotion for slot %d failed: %v", slotID, err)
		}
	}()
}

// PromoteNext offers the slot to the head of its queue, if capacity is
// actually free and no offer is already outstanding. The MarkOfferSent
// compare-and-swap makes concurrent promotion attempts converge on a
// single offer.
func (s *WaitlistService) PromoteNext(ctx context.Context, slotID uint64) error {
	entry, err := s.store.NextEligible(ctx, slotID)
	if err != nil {
		return err // ErrNotFound when the queue is empty
	}
	res, err := s.reservations.GetByID(ctx, entry.ReservationID)
	if err != nil {
		return mapRepoErr(err)
	}
	avail, err := s.availability.CheckAvailability(ctx, entry.ResourceID, res.Window, res.ID)
	if err != nil {
		return err
	}
	if !avail.Available {
		return nil
	}

	token := uuid.NewString()
	expiresAt := s.now().Add(s.offerTTL)
	ok, err := s.store.MarkOfferSent(ctx, entry.ID, token, expiresAt)
	if err != nil {
		return err
	}
	if !ok {
		// Someone else promoted this entry concurrently.
		return nil
	}
	before := entry.Status
	entry.Status = model.WaitlistOfferSent
	entry.OfferToken = &token
	entry.OfferExpiresAt = &expiresAt

	if _, err := s.reservations.UpdateStatus(ctx, repository.StatusUpdate{
		ID:   entry.ReservationID,
		From: []string{string(model.StatusWaitlist)},
		To:   model.StatusPendingWaitlist,
	}); err != nil {
		log.Printf("waitlist: move reservation %d to pending: %v", entry.ReservationID, err)
	}

	s.emitEntry(ctx, entry, before, entry.Status, "system", map[string]any{"expires_at": expiresAt})
	s.events.Notification(ctx, queue.NotificationEvent{
		RecipientType: "consumer",
		RecipientID:   entry.ConsumerID,
		Category:      "waitlist_offer",
		Title:         "A spot opened up",
		Body:          "Accept within the offer window to confirm your reservation.",
		Data:          map[string]any{"entry_id": entry.ID, "offer_token": token, "expires_at": expiresAt},
	})
	return nil
}

// AcceptOffer converts an open offer into a confirmed reservation. The
// token scopes the lookup together with the consumer, so a leaked token
// alone is useless.
func (s *WaitlistService) AcceptOffer(ctx context.Context, token string, consumerID uint64) (*model.Reservation, error) {
	if token == "" {
		return nil, ErrValidation
	}
	entry, err := s.store.GetByToken(ctx, token, consumerID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if entry.Status != model.WaitlistOfferSent {
		return nil, ErrInvalidTransition
	}
	if entry.OfferExpiresAt != nil && !s.now().Before(*entry.OfferExpiresAt) {
		return nil, ErrInvalidTransition
	}
	ok, err := s.store.MarkConverted(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	before := entry.Status
	entry.Status = model.WaitlistConverted

	if _, err := s.reservations.UpdateStatus(ctx, repository.StatusUpdate{
		ID: entry.ReservationID, ConsumerID: consumerID,
		From: []string{string(model.StatusPendingWaitlist), string(model.StatusWaitlist)},
		To:   model.StatusConfirmed,
	}); err != nil {
		return nil, err
	}
	res, err := s.reservations.GetByID(ctx, entry.ReservationID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if err := s.escrow.EnsureHold(ctx, res.ID); err != nil {
		log.Printf("waitlist: ensure hold for %d failed: %v", res.ID, err)
	}

	s.emitEntry(ctx, entry, before, entry.Status, actorConsumer(consumerID), nil)
	s.events.Notification(ctx, queue.NotificationEvent{
		RecipientType: "operator",
		RecipientID:   res.OperatorID,
		Category:      "waitlist_converted",
		Title:         "A waitlisted consumer confirmed",
		Data:          map[string]any{"reservation_id": res.ID},
	})
	return res, nil
}

// Withdraw removes the consumer's own entry from the queue and cancels
// the parked reservation. Withdrawing an open offer frees the unit, so
// the next candidate is promoted.
func (s *WaitlistService) Withdraw(ctx context.Context, entryID, consumerID uint64) error {
	entry, err := s.store.GetForConsumer(ctx, entryID, consumerID)
	if err != nil {
		return mapRepoErr(err)
	}
	hadOffer := entry.Status == model.WaitlistOfferSent
	ok, err := s.store.MarkCancelled(ctx, entryID, consumerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidTransition
	}
	if _, err := s.reservations.UpdateStatus(ctx, repository.StatusUpdate{
		ID: entry.ReservationID, ConsumerID: consumerID,
		From:               []string{string(model.StatusWaitlist), string(model.StatusPendingWaitlist)},
		To:                 model.StatusCancelledUser,
		CancellationReason: "waitlist withdrawal",
	}); err != nil {
		log.Printf("waitlist: cancel reservation %d on withdrawal: %v", entry.ReservationID, err)
	}
	s.emitEntry(ctx, entry, entry.Status, model.WaitlistCancelled, actorConsumer(consumerID), nil)
	if hadOffer {
		s.TriggerPromotionForSlot(entry.SlotID)
	}
	return nil
}

// ListForSlot returns a slot's queue in promotion order.
func (s *WaitlistService) ListForSlot(ctx context.Context, slotID uint64) ([]model.WaitlistEntry, error) {
	return s.store.ListBySlot(ctx, slotID)
}

// SweepExpiredOffers times out offers whose window has lapsed, cancels
// their parked reservations and chains promotion to the next candidate
// on each affected slot. One failing entry never stops the batch.
func (s *WaitlistService) SweepExpiredOffers(ctx context.Context, batchSize int) (int, error) {
	lapsed, err := s.store.ListExpiredOffers(ctx, s.now(), batchSize)
	if err != nil {
		return 0, err
	}
	expired := 0
	touchedSlots := make(map[uint64]struct{})
	for i := range lapsed {
		entry := &lapsed[i]
		ok, err := s.store.MarkOfferExpired(ctx, entry.ID)
		if err != nil {
			log.Printf("sweeper: expire offer %d: %v", entry.ID, err)
			continue
		}
		if !ok {
			// Accepted or withdrawn between listing and now.
			continue
		}
		expired++
		touchedSlots[entry.SlotID] = struct{}{}

		if _, err := s.reservations.UpdateStatus(ctx, repository.StatusUpdate{
			ID:   entry.ReservationID,
			From: []string{string(model.StatusPendingWaitlist), string(model.StatusWaitlist)},
			To:   model.StatusCancelledWaitlist,
		}); err != nil {
			log.Printf("sweeper: cancel reservation %d for lapsed offer: %v", entry.ReservationID, err)
		}
		s.emitEntry(ctx, entry, model.WaitlistOfferSent, model.WaitlistOfferExpired, "sweeper", nil)
		s.events.Notification(ctx, queue.NotificationEvent{
			RecipientType: "consumer",
			RecipientID:   entry.ConsumerID,
			Category:      "waitlist_offer_expired",
			Title:         "Your waitlist offer expired",
			Data:          map[string]any{"entry_id": entry.ID},
		})
	}
	for slotID := range touchedSlots {
		if err := s.PromoteNext(ctx, slotID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			log.Printf("sweeper: re-promotion for slot %d: %v", slotID, err)
		}
	}
	return expired, nil
}

func (s *WaitlistService) emitEntry(ctx context.Context, entry *model.WaitlistEntry, before, after model.WaitlistStatus, actor string, detail map[string]any) {
	if err := s.audit.Append(ctx, repository.AuditRecord{
		EntityType: "waitlist_entry",
		EntityID:   entry.ID,
		Actor:      actor,
		Before:     string(before),
		After:      string(after),
		Detail:     detail,
		OccurredAt: s.now(),
	}); err != nil {
		log.Printf("waitlist: audit append failed: %v", err)
	}
	s.events.Transition(ctx, queue.TransitionEvent{
		Entity:     "waitlist_entry",
		EntityID:   entry.ID,
		Actor:      actor,
		Before:     string(before),
		After:      string(after),
		ResourceID: entry.ResourceID,
		ConsumerID: entry.ConsumerID,
		Data:       detail,
	})
}
