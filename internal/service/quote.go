package service

import (
	"context"
	"errors"
	"log"
	"time"
	"unicode/utf8"

	"github.com/venuely/reservation-engine/internal/model"
	"github.com/venuely/reservation-engine/internal/queue"
	"github.com/venuely/reservation-engine/internal/repository"
)

// Negotiation SLA defaults. The acknowledge clock starts at submission;
// the quote clock starts at acknowledgement.
const (
	DefaultAcknowledgeSLA = 48 * time.Hour
	DefaultQuoteSLA       = 7 * 24 * time.Hour
)

// quoteStore is the slice of QuoteRepo the service needs.
type quoteStore interface {
	Insert(ctx context.Context, q *model.QuoteRequest) error
	GetForConsumer(ctx context.Context, id, consumerID uint64) (*model.QuoteRequest, error)
	GetForOperator(ctx context.Context, id, operatorID uint64) (*model.QuoteRequest, error)
	Acknowledge(ctx context.Context, id, operatorID uint64, quoteDeadline time.Time) (bool, error)
	MarkQuoteSent(ctx context.Context, id, operatorID uint64, amountSubunits int64) (bool, error)
	Decline(ctx context.Context, id, consumerID uint64) (bool, error)
	Expire(ctx context.Context, id uint64, from model.QuoteStatus) (bool, error)
	Accept(ctx context.Context, id, consumerID uint64, reservations *repository.ReservationRepo, res *model.Reservation) error
	InsertMessage(ctx context.Context, m *model.QuoteMessage) error
	ListMessages(ctx context.Context, quoteID uint64) ([]model.QuoteMessage, error)
	ListPastAcknowledgeDeadline(ctx context.Context, now time.Time, limit int) ([]model.QuoteRequest, error)
	ListPastQuoteDeadline(ctx context.Context, now time.Time, limit int) ([]model.QuoteRequest, error)
}

// QuoteService runs the large-group negotiation workflow: submission,
// two-stage operator SLA, the message thread, and conversion of an
// accepted quote into a confirmed reservation.
type QuoteService struct {
	store          quoteStore
	resources      resourceReader
	resRepo        *repository.ReservationRepo
	events         eventSink
	audit          auditWriter
	now            func() time.Time
	acknowledgeSLA time.Duration
	quoteSLA       time.Duration
}

// NewQuoteService wires the workflow. now may be nil; zero SLAs select
// the defaults.
func NewQuoteService(
	store quoteStore,
	resources resourceReader,
	resRepo *repository.ReservationRepo,
	events eventSink,
	audit auditWriter,
	now func() time.Time,
	acknowledgeSLA, quoteSLA time.Duration,
) *QuoteService {
	if now == nil {
		now = time.Now
	}
	if acknowledgeSLA <= 0 {
		acknowledgeSLA = DefaultAcknowledgeSLA
	}
	if quoteSLA <= 0 {
		quoteSLA = DefaultQuoteSLA
	}
	return &QuoteService{
		store: store, resources: resources, resRepo: resRepo,
		events: events, audit: audit, now: now,
		acknowledgeSLA: acknowledgeSLA, quoteSLA: quoteSLA,
	}
}

// SubmitQuote is the consumer's request for a group booking.
type SubmitQuote struct {
	ResourceID uint64
	ConsumerID uint64
	PartySize  uint32
	Window     model.Window
	Message    string
}

// Submit opens a negotiation. Parties at or below the group threshold
// must use the normal admission path.
func (s *QuoteService) Submit(ctx context.Context, req SubmitQuote) (*model.QuoteRequest, error) {
	if req.ConsumerID == 0 || req.ResourceID == 0 || !req.Window.Valid() {
		return nil, ErrValidation
	}
	if req.PartySize <= model.GroupQuoteMinPartySize {
		return nil, ErrValidation
	}
	resource, err := s.resources.GetByID(ctx, req.ResourceID)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	q := &model.QuoteRequest{
		OperatorID:          resource.OperatorID,
		ConsumerID:          req.ConsumerID,
		ResourceID:          req.ResourceID,
		PartySize:           req.PartySize,
		Window:              req.Window,
		Status:              model.QuoteSubmitted,
		AcknowledgeDeadline: s.now().Add(s.acknowledgeSLA),
	}
	if err := s.store.Insert(ctx, q); err != nil {
		return nil, err
	}
	if req.Message != "" {
		s.appendMessage(ctx, q.ID, model.SenderConsumer, req.ConsumerID, req.Message, nil)
	}

	s.emitQuote(ctx, q, "", q.Status, actorConsumer(req.ConsumerID), nil)
	s.events.Notification(ctx, queue.NotificationEvent{
		RecipientType: "operator",
		RecipientID:   q.OperatorID,
		Category:      "quote_submitted",
		Title:         "New group booking request",
		Data:          map[string]any{"quote_id": q.ID, "party_size": q.PartySize},
	})
	return q, nil
}

// Acknowledge stops the acknowledge clock and starts the quote clock.
func (s *QuoteService) Acknowledge(ctx context.Context, id, operatorID uint64) (*model.QuoteRequest, error) {
	q, err := s.store.GetForOperator(ctx, id, operatorID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if q.Status != model.QuoteSubmitted {
		return nil, ErrInvalidTransition
	}
	quoteDeadline := s.now().Add(s.quoteSLA)
	ok, err := s.store.Acknowledge(ctx, id, operatorID, quoteDeadline)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	before := q.Status
	q.Status = model.QuoteAcknowledged
	q.QuoteDeadline = &quoteDeadline

	s.emitQuote(ctx, q, before, q.Status, actorOperator(operatorID), map[string]any{"quote_deadline": quoteDeadline})
	return q, nil
}

// SendQuote attaches the operator's price and opens the consumer's
// decision.
func (s *QuoteService) SendQuote(ctx context.Context, id, operatorID uint64, amountSubunits int64, message string) (*model.QuoteRequest, error) {
	if amountSubunits <= 0 {
		return nil, ErrValidation
	}
	q, err := s.store.GetForOperator(ctx, id, operatorID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if q.Status != model.QuoteAcknowledged {
		return nil, ErrInvalidTransition
	}
	ok, err := s.store.MarkQuoteSent(ctx, id, operatorID, amountSubunits)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	before := q.Status
	q.Status = model.QuoteSent
	q.AmountQuotedSubunits = &amountSubunits
	if message != "" {
		s.appendMessage(ctx, q.ID, model.SenderOperator, operatorID, message, nil)
	}

	s.emitQuote(ctx, q, before, q.Status, actorOperator(operatorID), map[string]any{"amount_subunits": amountSubunits})
	s.events.Notification(ctx, queue.NotificationEvent{
		RecipientType: "consumer",
		RecipientID:   q.ConsumerID,
		Category:      "quote_sent",
		Title:         "Your group quote is ready",
		Data:          map[string]any{"quote_id": q.ID, "amount_subunits": amountSubunits},
	})
	return q, nil
}

// Accept converts a priced quote into a confirmed reservation in one
// transaction. Group reservations draw on paid stock and skip slot
// capacity accounting.
func (s *QuoteService) Accept(ctx context.Context, id, consumerID uint64) (*model.QuoteRequest, *model.Reservation, error) {
	q, err := s.store.GetForConsumer(ctx, id, consumerID)
	if err != nil {
		return nil, nil, mapRepoErr(err)
	}
	if q.Status != model.QuoteSent {
		return nil, nil, ErrInvalidTransition
	}
	resource, err := s.resources.GetByID(ctx, q.ResourceID)
	if err != nil {
		return nil, nil, mapRepoErr(err)
	}

	amount := int64(0)
	if q.AmountQuotedSubunits != nil {
		amount = *q.AmountQuotedSubunits
	}
	res := &model.Reservation{
		ResourceID:    q.ResourceID,
		ConsumerID:    q.ConsumerID,
		OperatorID:    q.OperatorID,
		PartySize:     q.PartySize,
		Window:        q.Window,
		StockPool:     model.PoolPaid,
		Type:          model.TypeGroupQuote,
		AmountTotal:   amount,
		Currency:      resource.Currency,
		Status:        model.StatusConfirmed,
		PaymentStatus: model.PaymentPending,
		Metadata:      map[string]any{"quote_id": q.ID},
	}
	if err := s.store.Accept(ctx, id, consumerID, s.resRepo, res); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, nil, ErrInvalidTransition
		}
		return nil, nil, err
	}
	before := q.Status
	q.Status = model.QuoteAccepted
	q.ConvertedToReservationID = &res.ID

	s.emitQuote(ctx, q, before, q.Status, actorConsumer(consumerID), map[string]any{"reservation_id": res.ID})
	s.events.Notification(ctx, queue.NotificationEvent{
		RecipientType: "operator",
		RecipientID:   q.OperatorID,
		Category:      "quote_accepted",
		Title:         "A group quote was accepted",
		Data:          map[string]any{"quote_id": q.ID, "reservation_id": res.ID},
	})
	return q, res, nil
}

// Decline closes the negotiation from the consumer's side.
func (s *QuoteService) Decline(ctx context.Context, id, consumerID uint64) (*model.QuoteRequest, error) {
	q, err := s.store.GetForConsumer(ctx, id, consumerID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if q.Status != model.QuoteSent {
		return nil, ErrInvalidTransition
	}
	ok, err := s.store.Decline(ctx, id, consumerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	before := q.Status
	q.Status = model.QuoteDeclined

	s.emitQuote(ctx, q, before, q.Status, actorConsumer(consumerID), nil)
	s.events.Notification(ctx, queue.NotificationEvent{
		RecipientType: "operator",
		RecipientID:   q.OperatorID,
		Category:      "quote_declined",
		Title:         "A group quote was declined",
		Data:          map[string]any{"quote_id": q.ID},
	})
	return q, nil
}

// PostMessage appends to the quote's thread. Either party may write
// while the thread is open; closed threads reject writes.
func (s *QuoteService) PostMessage(ctx context.Context, quoteID uint64, sender model.QuoteSender, senderID uint64, content string, attachments []string) (*model.QuoteMessage, error) {
	if content == "" || utf8.RuneCountInString(content) > model.MaxQuoteMessageLen {
		return nil, ErrValidation
	}
	var q *model.QuoteRequest
	var err error
	switch sender {
	case model.SenderConsumer:
		q, err = s.store.GetForConsumer(ctx, quoteID, senderID)
	case model.SenderOperator:
		q, err = s.store.GetForOperator(ctx, quoteID, senderID)
	default:
		return nil, ErrValidation
	}
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if q.ThreadClosed() {
		return nil, ErrInvalidTransition
	}
	m := &model.QuoteMessage{
		QuoteID:     quoteID,
		Sender:      sender,
		SenderID:    senderID,
		Content:     content,
		Attachments: attachments,
	}
	if err := s.store.InsertMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Messages returns the thread for whichever party owns the quote.
func (s *QuoteService) Messages(ctx context.Context, quoteID uint64, sender model.QuoteSender, actorID uint64) ([]model.QuoteMessage, error) {
	var err error
	switch sender {
	case model.SenderConsumer:
		_, err = s.store.GetForConsumer(ctx, quoteID, actorID)
	case model.SenderOperator:
		_, err = s.store.GetForOperator(ctx, quoteID, actorID)
	default:
		return nil, ErrValidation
	}
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return s.store.ListMessages(ctx, quoteID)
}

// GetForConsumer returns the consumer's quote or ErrNotFound.
func (s *QuoteService) GetForConsumer(ctx context.Context, id, consumerID uint64) (*model.QuoteRequest, error) {
	q, err := s.store.GetForConsumer(ctx, id, consumerID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return q, nil
}

// GetForOperator returns the operator's quote or ErrNotFound.
func (s *QuoteService) GetForOperator(ctx context.Context, id, operatorID uint64) (*model.QuoteRequest, error) {
	q, err := s.store.GetForOperator(ctx, id, operatorID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return q, nil
}

// SweepDeadlines expires quotes whose acknowledge or quote deadline
// lapsed without operator action. Expiry closes the thread with a
// system message so both parties see why.
func (s *QuoteService) SweepDeadlines(ctx context.Context, batchSize int) (int, error) {
	expired := 0
	overdueAck, err := s.store.ListPastAcknowledgeDeadline(ctx, s.now(), batchSize)
	if err != nil {
		return 0, err
	}
	for i := range overdueAck {
		expired += s.expireOne(ctx, &overdueAck[i], model.QuoteSubmitted, "not acknowledged in time")
	}
	overdueQuote, err := s.store.ListPastQuoteDeadline(ctx, s.now(), batchSize)
	if err != nil {
		return expired, err
	}
	for i := range overdueQuote {
		expired += s.expireOne(ctx, &overdueQuote[i], model.QuoteAcknowledged, "no quote sent in time")
	}
	return expired, nil
}

func (s *QuoteService) expireOne(ctx context.Context, q *model.QuoteRequest, from model.QuoteStatus, why string) int {
	ok, err := s.store.Expire(ctx, q.ID, from)
	if err != nil {
		log.Printf("sweeper: expire quote %d: %v", q.ID, err)
		return 0
	}
	if !ok {
		return 0
	}
	before := q.Status
	q.Status = model.QuoteExpired
	s.appendMessage(ctx, q.ID, model.SenderSystem, 0, "This request expired: "+why+".", nil)
	s.emitQuote(ctx, q, before, q.Status, "sweeper", map[string]any{"reason": why})
	s.events.Notification(ctx, queue.NotificationEvent{
		RecipientType: "consumer",
		RecipientID:   q.ConsumerID,
		Category:      "quote_expired",
		Title:         "Your group request expired",
		Data:          map[string]any{"quote_id": q.ID},
	})
	return 1
}

func (s *QuoteService) appendMessage(ctx context.Context, quoteID uint64, sender model.QuoteSender, senderID uint64, content string, attachments []string) {
	if err := s.store.InsertMessage(ctx, &model.QuoteMessage{
		QuoteID: quoteID, Sender: sender, SenderID: senderID,
		Content: content, Attachments: attachments,
	}); err != nil {
		log.Printf("quote: append message to %d failed: %v", quoteID, err)
	}
}

func (s *QuoteService) emitQuote(ctx context.Context, q *model.QuoteRequest, before, after model.QuoteStatus, actor string, detail map[string]any) {
	if err := s.audit.Append(ctx, repository.AuditRecord{
		EntityType: "quote_request",
		EntityID:   q.ID,
		Actor:      actor,
		Before:     string(before),
		After:      string(after),
		Detail:     detail,
		OccurredAt: s.now(),
	}); err != nil {
		log.Printf("quote: audit append failed: %v", err)
	}
	s.events.Transition(ctx, queue.TransitionEvent{
		Entity:     "quote_request",
		EntityID:   q.ID,
		Actor:      actor,
		Before:     string(before),
		After:      string(after),
		ResourceID: q.ResourceID,
		ConsumerID: q.ConsumerID,
		OperatorID: q.OperatorID,
		Data:       detail,
	})
}
