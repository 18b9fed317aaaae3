package model

import "time"

// QuoteStatus is the lifecycle state of a group-booking negotiation.
type QuoteStatus string

const (
	QuoteSubmitted    QuoteStatus = "submitted"
	QuoteAcknowledged QuoteStatus = "acknowledged"
	QuoteSent         QuoteStatus = "quote_sent"
	QuoteAccepted     QuoteStatus = "quote_accepted"
	QuoteDeclined     QuoteStatus = "quote_declined"
	QuoteExpired      QuoteStatus = "expired"
)

// GroupQuoteMinPartySize is the exclusive lower bound for a quote
// request: party sizes at or below it go through the normal admission
// path instead.
const GroupQuoteMinPartySize = 15

// QuoteRequest is a large-group negotiation with a two-stage SLA: the
// operator must acknowledge, then send a quote, each before its own
// deadline. Acceptance converts the quote into a confirmed reservation,
// bypassing the capacity ledger — group bookings are negotiated
// out-of-band.
type QuoteRequest struct {
	ID                       uint64      // quote_requests.id
	OperatorID               uint64      // quote_requests.operator_id
	ConsumerID               uint64      // quote_requests.consumer_id
	ResourceID               uint64      // quote_requests.resource_id
	PartySize                uint32      // quote_requests.party_size (> GroupQuoteMinPartySize)
	Window                               // quote_requests.starts_at / ends_at
	Status                   QuoteStatus // quote_requests.status
	AcknowledgeDeadline      time.Time   // quote_requests.acknowledge_deadline
	QuoteDeadline            *time.Time  // quote_requests.quote_deadline (set on acknowledgement)
	AmountQuotedSubunits     *int64      // quote_requests.amount_quoted_subunits (set with the quote)
	ConvertedToReservationID *uint64     // quote_requests.converted_to_reservation_id (set on acceptance)
	CreatedAt                time.Time   // quote_requests.created_at
	UpdatedAt                time.Time   // quote_requests.updated_at
}

// ThreadClosed reports whether the message thread rejects writes.
func (q *QuoteRequest) ThreadClosed() bool {
	return q.Status == QuoteExpired || q.Status == QuoteDeclined
}

// QuoteSender identifies who wrote a thread message.
type QuoteSender string

const (
	SenderConsumer QuoteSender = "consumer"
	SenderOperator QuoteSender = "operator"
	SenderSystem   QuoteSender = "system"
)

// MaxQuoteMessageLen caps thread message content length in runes.
const MaxQuoteMessageLen = 4000

// QuoteMessage is one entry in a quote's append-only message thread.
type QuoteMessage struct {
	ID          uint64      // quote_messages.id
	QuoteID     uint64      // quote_messages.quote_id
	Sender      QuoteSender // quote_messages.sender
	SenderID    uint64      // quote_messages.sender_id (0 for system)
	Content     string      // quote_messages.content
	Attachments []string    // quote_messages.attachments (JSON array of URLs)
	CreatedAt   time.Time   // quote_messages.created_at
}
