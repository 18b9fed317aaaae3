package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/venuely/reservation-engine/internal/model"
	"github.com/venuely/reservation-engine/internal/repository"
)

// DefaultDepositSubunits is the deposit applied when a reservation
// requires a guarantee but its resource has no deposit plan configured.
// A single global default; it is not resource-type-specific.
const DefaultDepositSubunits = 5000

// escrowStore is the slice of EscrowRepo the escrow ledger needs.
type escrowStore interface {
	GetByReservation(ctx context.Context, reservationID uint64) (*model.EscrowHold, error)
	Insert(ctx context.Context, hold *model.EscrowHold) error
	Settle(ctx context.Context, reservationID uint64, reason model.SettleReason, refundPercent int, penaltySubunits int64, settledAt time.Time) (bool, error)
	ReservationIDsMissingHold(ctx context.Context, limit int) ([]uint64, error)
	ReservationIDsWithOrphanedHold(ctx context.Context, terminal []string, limit int) ([]uint64, error)
}

// reservationReader loads reservations without an ownership scope, for
// internal callers only.
type reservationReader interface {
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
}

// auditWriter appends immutable transition records.
type auditWriter interface {
	Append(ctx context.Context, rec repository.AuditRecord) error
}

// policyReader loads per-operator cancellation configuration.
type policyReader interface {
	ForOperator(ctx context.Context, operatorID uint64) (model.OperatorPolicy, error)
}

// EscrowService is the escrow ledger: hold/settle bookkeeping tied 1:1 to
// reservations. Actual fund movement is delegated to the payment
// provider and assumed idempotent per (reservation, reason).
type EscrowService struct {
	holds        escrowStore
	reservations reservationReader
	policies     policyReader
	audit        auditWriter
	now          func() time.Time
}

// NewEscrowService constructs the escrow ledger. now may be nil, in which
// case time.Now is used.
func NewEscrowService(holds escrowStore, reservations reservationReader, policies policyReader, audit auditWriter, now func() time.Time) *EscrowService {
	if now == nil {
		now = time.Now
	}
	return &EscrowService{holds: holds, reservations: reservations, policies: policies, audit: audit, now: now}
}

// DefaultRefundPercent returns the refund applied when a settlement
// reason carries no caller-supplied percentage. Check-in captures the
// full deposit.
func DefaultRefundPercent(reason model.SettleReason) int {
	if reason == model.SettleCheckin {
		return 0
	}
	return 100
}

// EnsureHold creates a held row for a reservation's deposit. Idempotent:
// a no-op when the deposit is zero, payment is not confirmed, or a hold
// already exists (including losing the insert race).
func (s *EscrowService) EnsureHold(ctx context.Context, reservationID uint64) error {
	res, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if res.AmountDeposit == 0 || res.PaymentStatus != model.PaymentPaid {
		return nil
	}
	if _, err := s.holds.GetByReservation(ctx, reservationID); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	hold := &model.EscrowHold{
		ReservationID:  reservationID,
		AmountSubunits: res.AmountDeposit,
		Currency:       res.Currency,
		Status:         model.EscrowHeld,
	}
	if err := s.holds.Insert(ctx, hold); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil
		}
		return err
	}
	s.auditHold(ctx, hold)
	return nil
}

// Settle resolves a reservation's hold exactly once, recording reason and
// refund percent for audit. Idempotent: a second call finds the hold
// already settled and returns nil without touching anything. A negative
// refundPercent selects the reason's default.
func (s *EscrowService) Settle(ctx context.Context, reservationID uint64, reason model.SettleReason, refundPercent int) error {
	hold, err := s.holds.GetByReservation(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if hold.Status == model.EscrowSettled {
		return nil
	}
	if refundPercent < 0 {
		refundPercent = DefaultRefundPercent(reason)
	}
	penalty := model.Penalty(hold.AmountSubunits, refundPercent)
	done, err := s.holds.Settle(ctx, reservationID, reason, refundPercent, penalty, s.now())
	if err != nil {
		return err
	}
	if !done {
		// Lost a settle race; the winner recorded the outcome.
		return nil
	}
	if err := s.audit.Append(ctx, repository.AuditRecord{
		EntityType: "escrow_hold",
		EntityID:   hold.ID,
		Actor:      "system",
		Before:     string(model.EscrowHeld),
		After:      string(model.EscrowSettled),
		Detail: map[string]any{
			"reservation_id":   reservationID,
			"reason":           string(reason),
			"refund_percent":   refundPercent,
			"penalty_subunits": penalty,
		},
		OccurredAt: s.now(),
	}); err != nil {
		log.Printf("escrow: audit append failed: %v", err)
	}
	return nil
}

// ReconcileStats counts the repairs performed by one reconciliation run.
type ReconcileStats struct {
	HoldsCreated  int `json:"holds_created"`
	HoldsSettled  int `json:"holds_settled"`
	ItemsFailed   int `json:"items_failed"`
	ItemsExamined int `json:"items_examined"`
}

// Reconcile is the safety net for the fire-and-forget escrow calls made
// inside state transitions: it re-derives the expected hold/settle state
// for every reservation with a non-zero deposit and repairs drift. Safe
// to run concurrently with itself and with live transitions; every
// repair goes through the same idempotent EnsureHold/Settle paths.
func (s *EscrowService) Reconcile(ctx context.Context, batchSize int) (ReconcileStats, error) {
	var stats ReconcileStats

	missing, err := s.holds.ReservationIDsMissingHold(ctx, batchSize)
	if err != nil {
		return stats, err
	}
	for _, id := range missing {
		stats.ItemsExamined++
		if err := s.EnsureHold(ctx, id); err != nil {
			stats.ItemsFailed++
			log.Printf("escrow: reconcile ensure hold %d: %v", id, err)
			continue
		}
		stats.HoldsCreated++
	}

	orphaned, err := s.holds.ReservationIDsWithOrphanedHold(ctx, model.Terminal.Strings(), batchSize)
	if err != nil {
		return stats, err
	}
	for _, id := range orphaned {
		stats.ItemsExamined++
		if err := s.settleOrphan(ctx, id); err != nil {
			stats.ItemsFailed++
			log.Printf("escrow: reconcile settle %d: %v", id, err)
			continue
		}
		stats.HoldsSettled++
	}
	return stats, nil
}

// settleOrphan settles a held hold whose reservation already reached a
// terminal status, deriving reason and refund from that status the same
// way the live transition would have.
func (s *EscrowService) settleOrphan(ctx context.Context, reservationID uint64) error {
	res, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return err
	}
	policy, err := s.policies.ForOperator(ctx, res.OperatorID)
	if err != nil {
		return err
	}
	var (
		reason model.SettleReason
		refund int
	)
	switch res.Status {
	case model.StatusConsumed:
		reason, refund = model.SettleCheckin, 0
	case model.StatusNoShow:
		reason, refund = model.SettleNoShow, policy.RefundPercentOnNoShow(res.AmountDeposit > 0)
	case model.StatusCancelledUser:
		// Only a consumer cancellation carries the penalty window. The
		// hours-to-start rule is evaluated against the moment the row
		// last changed, which is when the cancellation actually happened.
		reason, refund = model.SettleCancel, policy.RefundPercentOnCancel(res.UpdatedAt, res.Start)
	default:
		// Refused, cancelled by the operator, expired or a lapsed
		// waitlist offer: never the consumer's fault, refund in full.
		reason, refund = model.SettleCancel, 100
	}
	return s.Settle(ctx, reservationID, reason, refund)
}

func (s *EscrowService) auditHold(ctx context.Context, hold *model.EscrowHold) {
	if err := s.audit.Append(ctx, repository.AuditRecord{
		EntityType: "escrow_hold",
		EntityID:   hold.ID,
		Actor:      "system",
		Before:     "",
		After:      string(model.EscrowHeld),
		Detail: map[string]any{
			"reservation_id":  hold.ReservationID,
			"amount_subunits": hold.AmountSubunits,
		},
		OccurredAt: s.now(),
	}); err != nil {
		log.Printf("escrow: audit append failed: %v", err)
	}
}
