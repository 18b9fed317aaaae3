package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venuely/reservation-engine/internal/model"
	"github.com/venuely/reservation-engine/internal/repository"
)

type fakeQuoteStore struct {
	quotes       map[uint64]*model.QuoteRequest
	messages     []model.QuoteMessage
	nextID       uint64
	reservations *fakeReservationStore
}

func newFakeQuoteStore(reservations *fakeReservationStore) *fakeQuoteStore {
	return &fakeQuoteStore{quotes: map[uint64]*model.QuoteRequest{}, reservations: reservations}
}

func (f *fakeQuoteStore) Insert(_ context.Context, q *model.QuoteRequest) error {
	f.nextID++
	q.ID = f.nextID
	f.quotes[q.ID] = q
	return nil
}

func (f *fakeQuoteStore) GetForConsumer(_ context.Context, id, consumerID uint64) (*model.QuoteRequest, error) {
	q, ok := f.quotes[id]
	if !ok || q.ConsumerID != consumerID {
		return nil, repository.ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (f *fakeQuoteStore) GetForOperator(_ context.Context, id, operatorID uint64) (*model.QuoteRequest, error) {
	q, ok := f.quotes[id]
	if !ok || q.OperatorID != operatorID {
		return nil, repository.ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (f *fakeQuoteStore) cas(id uint64, from, to model.QuoteStatus) bool {
	q, ok := f.quotes[id]
	if !ok || q.Status != from {
		return false
	}
	q.Status = to
	return true
}

func (f *fakeQuoteStore) Acknowledge(_ context.Context, id, operatorID uint64, quoteDeadline time.Time) (bool, error) {
	q, ok := f.quotes[id]
	if !ok || q.OperatorID != operatorID || !f.cas(id, model.QuoteSubmitted, model.QuoteAcknowledged) {
		return false, nil
	}
	q.QuoteDeadline = &quoteDeadline
	return true, nil
}

func (f *fakeQuoteStore) MarkQuoteSent(_ context.Context, id, operatorID uint64, amountSubunits int64) (bool, error) {
	q, ok := f.quotes[id]
	if !ok || q.OperatorID != operatorID || !f.cas(id, model.QuoteAcknowledged, model.QuoteSent) {
		return false, nil
	}
	q.AmountQuotedSubunits = &amountSubunits
	return true, nil
}

func (f *fakeQuoteStore) Decline(_ context.Context, id, consumerID uint64) (bool, error) {
	q, ok := f.quotes[id]
	if !ok || q.ConsumerID != consumerID {
		return false, nil
	}
	return f.cas(id, model.QuoteSent, model.QuoteDeclined), nil
}

func (f *fakeQuoteStore) Expire(_ context.Context, id uint64, from model.QuoteStatus) (bool, error) {
	return f.cas(id, from, model.QuoteExpired), nil
}

func (f *fakeQuoteStore) Accept(_ context.Context, id, consumerID uint64, _ *repository.ReservationRepo, res *model.Reservation) error {
	q, ok := f.quotes[id]
	if !ok || q.ConsumerID != consumerID || !f.cas(id, model.QuoteSent, model.QuoteAccepted) {
		return repository.ErrConflict
	}
	f.reservations.add(res)
	q.ConvertedToReservationID = &res.ID
	return nil
}

func (f *fakeQuoteStore) InsertMessage(_ context.Context, m *model.QuoteMessage) error {
	m.ID = uint64(len(f.messages) + 1)
	f.messages = append(f.messages, *m)
	return nil
}

func (f *fakeQuoteStore) ListMessages(_ context.Context, quoteID uint64) ([]model.QuoteMessage, error) {
	var out []model.QuoteMessage
	for _, m := range f.messages {
		if m.QuoteID == quoteID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeQuoteStore) ListPastAcknowledgeDeadline(_ context.Context, now time.Time, limit int) ([]model.QuoteRequest, error) {
	var out []model.QuoteRequest
	for _, q := range f.quotes {
		if len(out) == limit {
			break
		}
		if q.Status == model.QuoteSubmitted && q.AcknowledgeDeadline.Before(now) {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (f *fakeQuoteStore) ListPastQuoteDeadline(_ context.Context, now time.Time, limit int) ([]model.QuoteRequest, error) {
	var out []model.QuoteRequest
	for _, q := range f.quotes {
		if len(out) == limit {
			break
		}
		if q.Status == model.QuoteAcknowledged && q.QuoteDeadline != nil && q.QuoteDeadline.Before(now) {
			out = append(out, *q)
		}
	}
	return out, nil
}

type quoteFixture struct {
	svc      *QuoteService
	store    *fakeQuoteStore
	resStore *fakeReservationStore
	events   *fakeEvents
	now      time.Time
}

func newQuoteFixture() *quoteFixture {
	f := &quoteFixture{
		resStore: newFakeReservationStore(),
		events:   &fakeEvents{},
		now:      time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
	}
	f.store = newFakeQuoteStore(f.resStore)
	resources := &fakeResources{resources: map[uint64]*model.Resource{
		1: {ID: 1, OperatorID: 10, Name: "banquet hall", Kind: model.KindRental,
			Quantity: 1, Currency: "EUR", Active: true},
	}}
	f.svc = NewQuoteService(f.store, resources, nil, f.events, &fakeAudit{},
		fixedNow(f.now), 48*time.Hour, 7*24*time.Hour)
	return f
}

func (f *quoteFixture) submit(t *testing.T) *model.QuoteRequest {
	t.Helper()
	q, err := f.svc.Submit(context.Background(), SubmitQuote{
		ResourceID: 1, ConsumerID: 20, PartySize: 30,
		Window:  model.Window{Start: f.now.Add(30 * 24 * time.Hour), End: f.now.Add(30*24*time.Hour + 6*time.Hour)},
		Message: "Company dinner, need a vegetarian menu option.",
	})
	require.NoError(t, err)
	return q
}

func TestSubmitStartsAcknowledgeClock(t *testing.T) {
	f := newQuoteFixture()
	q := f.submit(t)

	assert.Equal(t, model.QuoteSubmitted, q.Status)
	assert.Equal(t, uint64(10), q.OperatorID)
	assert.Equal(t, f.now.Add(48*time.Hour), q.AcknowledgeDeadline)
	assert.Nil(t, q.QuoteDeadline, "quote clock starts at acknowledgement")

	msgs, err := f.svc.Messages(context.Background(), q.ID, model.SenderConsumer, 20)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.SenderConsumer, msgs[0].Sender)
}

func TestSubmitRejectsSmallParties(t *testing.T) {
	f := newQuoteFixture()
	for _, size := range []uint32{1, 14, 15} {
		_, err := f.svc.Submit(context.Background(), SubmitQuote{
			ResourceID: 1, ConsumerID: 20, PartySize: size,
			Window: model.Window{Start: f.now.Add(time.Hour), End: f.now.Add(2 * time.Hour)},
		})
		assert.ErrorIs(t, err, ErrValidation, "party of %d belongs on the normal path", size)
	}
}

func TestAcknowledgeStartsQuoteClock(t *testing.T) {
	f := newQuoteFixture()
	q := f.submit(t)

	acked, err := f.svc.Acknowledge(context.Background(), q.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, model.QuoteAcknowledged, acked.Status)
	require.NotNil(t, acked.QuoteDeadline)
	assert.Equal(t, f.now.Add(7*24*time.Hour), *acked.QuoteDeadline)

	_, err = f.svc.Acknowledge(context.Background(), q.ID, 10)
	assert.ErrorIs(t, err, ErrInvalidTransition, "acknowledge is one-shot")
}

func TestSendQuoteRequiresAcknowledgement(t *testing.T) {
	f := newQuoteFixture()
	q := f.submit(t)

	_, err := f.svc.SendQuote(context.Background(), q.ID, 10, 250000, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.Acknowledge(context.Background(), q.ID, 10)
	require.NoError(t, err)
	_, err = f.svc.SendQuote(context.Background(), q.ID, 10, 0, "")
	assert.ErrorIs(t, err, ErrValidation)

	sent, err := f.svc.SendQuote(context.Background(), q.ID, 10, 250000, "Set menu at 83 per head.")
	require.NoError(t, err)
	assert.Equal(t, model.QuoteSent, sent.Status)
	require.NotNil(t, sent.AmountQuotedSubunits)
	assert.Equal(t, int64(250000), *sent.AmountQuotedSubunits)
}

func TestAcceptConvertsToGroupReservation(t *testing.T) {
	f := newQuoteFixture()
	q := f.submit(t)
	_, err := f.svc.Acknowledge(context.Background(), q.ID, 10)
	require.NoError(t, err)
	_, err = f.svc.SendQuote(context.Background(), q.ID, 10, 250000, "")
	require.NoError(t, err)

	accepted, res, err := f.svc.Accept(context.Background(), q.ID, 20)
	require.NoError(t, err)
	assert.Equal(t, model.QuoteAccepted, accepted.Status)
	require.NotNil(t, accepted.ConvertedToReservationID)
	assert.Equal(t, res.ID, *accepted.ConvertedToReservationID)

	assert.Equal(t, model.StatusConfirmed, res.Status)
	assert.Equal(t, model.TypeGroupQuote, res.Type)
	assert.Equal(t, model.PoolPaid, res.StockPool)
	assert.Equal(t, int64(250000), res.AmountTotal)
	assert.Equal(t, uint64(20), res.ConsumerID)
}

func TestAcceptOnlyFromQuoteSent(t *testing.T) {
	f := newQuoteFixture()
	q := f.submit(t)

	_, _, err := f.svc.Accept(context.Background(), q.ID, 20)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDeclineClosesThread(t *testing.T) {
	f := newQuoteFixture()
	q := f.submit(t)
	_, err := f.svc.Acknowledge(context.Background(), q.ID, 10)
	require.NoError(t, err)
	_, err = f.svc.SendQuote(context.Background(), q.ID, 10, 250000, "")
	require.NoError(t, err)

	declined, err := f.svc.Decline(context.Background(), q.ID, 20)
	require.NoError(t, err)
	assert.Equal(t, model.QuoteDeclined, declined.Status)

	_, err = f.svc.PostMessage(context.Background(), q.ID, model.SenderConsumer, 20, "actually, wait", nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPostMessageValidation(t *testing.T) {
	f := newQuoteFixture()
	q := f.submit(t)

	_, err := f.svc.PostMessage(context.Background(), q.ID, model.SenderConsumer, 20, "", nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.PostMessage(context.Background(), q.ID, model.SenderConsumer, 20,
		strings.Repeat("a", model.MaxQuoteMessageLen+1), nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.PostMessage(context.Background(), q.ID, model.SenderOperator, 99, "who is this", nil)
	assert.ErrorIs(t, err, ErrNotFound)

	m, err := f.svc.PostMessage(context.Background(), q.ID, model.SenderOperator, 10, "Can you do the 14th instead?", nil)
	require.NoError(t, err)
	assert.Equal(t, model.SenderOperator, m.Sender)
}

func TestSweepDeadlinesExpiresBothStages(t *testing.T) {
	f := newQuoteFixture()

	unacked := f.submit(t)
	f.store.quotes[unacked.ID].AcknowledgeDeadline = f.now.Add(-time.Hour)

	stalled := f.submit(t)
	_, err := f.svc.Acknowledge(context.Background(), stalled.ID, 10)
	require.NoError(t, err)
	past := f.now.Add(-time.Minute)
	f.store.quotes[stalled.ID].QuoteDeadline = &past

	fresh := f.submit(t)

	n, err := f.svc.SweepDeadlines(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, model.QuoteExpired, f.store.quotes[unacked.ID].Status)
	assert.Equal(t, model.QuoteExpired, f.store.quotes[stalled.ID].Status)
	assert.Equal(t, model.QuoteSubmitted, f.store.quotes[fresh.ID].Status)

	// Expiry leaves a system note in each thread.
	msgs, err := f.store.ListMessages(context.Background(), unacked.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.SenderSystem, msgs[1].Sender)
	assert.Contains(t, msgs[1].Content, "not acknowledged in time")
}
