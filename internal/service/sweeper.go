package service

import (
	"context"
	"log"
	"time"
)

// DefaultSweepBatchSize bounds how many rows each sweep pass touches.
const DefaultSweepBatchSize = 200

// Sweeper drives every deadline in the engine from one entry point.
// Each pass is idempotent and re-entrant: transitions are compare-and-
// swaps, so two overlapping passes (or a pass racing a user action)
// converge instead of double-firing.
type Sweeper struct {
	reservations *ReservationService
	waitlist     *WaitlistService
	quotes       *QuoteService
	escrow       *EscrowService
	batchSize    int
}

// NewSweeper wires the sweep passes. batchSize of zero selects the
// default.
func NewSweeper(reservations *ReservationService, waitlist *WaitlistService, quotes *QuoteService, escrow *EscrowService, batchSize int) *Sweeper {
	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}
	return &Sweeper{
		reservations: reservations, waitlist: waitlist,
		quotes: quotes, escrow: escrow, batchSize: batchSize,
	}
}

// SweepResult summarizes one full pass.
type SweepResult struct {
	ReservationsExpired int            `json:"reservations_expired"`
	OffersExpired       int            `json:"offers_expired"`
	QuotesExpired       int            `json:"quotes_expired"`
	Escrow              ReconcileStats `json:"escrow"`
	Errors              []string       `json:"errors,omitempty"`
	Elapsed             string         `json:"elapsed"`
}

// Run executes all passes in order. A failing pass is recorded and the
// remaining passes still run.
func (s *Sweeper) Run(ctx context.Context) SweepResult {
	start := time.Now()
	var result SweepResult

	n, err := s.reservations.SweepProcessingDeadlines(ctx, s.batchSize)
	result.ReservationsExpired = n
	result.collect("processing_deadlines", err)

	n, err = s.waitlist.SweepExpiredOffers(ctx, s.batchSize)
	result.OffersExpired = n
	result.collect("waitlist_offers", err)

	n, err = s.quotes.SweepDeadlines(ctx, s.batchSize)
	result.QuotesExpired = n
	result.collect("quote_deadlines", err)

	stats, err := s.escrow.Reconcile(ctx, s.batchSize)
	result.Escrow = stats
	result.collect("escrow_reconcile", err)

	result.Elapsed = time.Since(start).String()
	log.Printf("sweeper: pass done in %s: reservations=%d offers=%d quotes=%d escrow_created=%d escrow_settled=%d errors=%d",
		result.Elapsed, result.ReservationsExpired, result.OffersExpired, result.QuotesExpired,
		result.Escrow.HoldsCreated, result.Escrow.HoldsSettled, len(result.Errors))
	return result
}

// Start runs passes on a fixed interval until ctx is cancelled. Meant
// for single-instance deployments; multi-instance setups call the sweep
// endpoint from an external scheduler instead.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Printf("sweeper: started, interval=%s", interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("sweeper: stopped")
			return
		case <-ticker.C:
			s.Run(ctx)
		}
	}
}

func (r *SweepResult) collect(pass string, err error) {
	if err != nil {
		log.Printf("sweeper: %s pass: %v", pass, err)
		r.Errors = append(r.Errors, pass+": "+err.Error())
	}
}
