package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/venuely/reservation-engine/internal/config"
	"github.com/venuely/reservation-engine/internal/database"
	"github.com/venuely/reservation-engine/internal/handler"
	"github.com/venuely/reservation-engine/internal/notify"
	"github.com/venuely/reservation-engine/internal/queue"
	"github.com/venuely/reservation-engine/internal/repository"
	"github.com/venuely/reservation-engine/internal/router"
	"github.com/venuely/reservation-engine/internal/service"
)

func main() {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable: rate limiting and response cache disabled")
	}

	reservationRepo := repository.NewReservationRepo(db)
	resourceRepo := repository.NewResourceRepo(db)
	waitlistRepo := repository.NewWaitlistRepo(db)
	escrowRepo := repository.NewEscrowRepo(db)
	quoteRepo := repository.NewQuoteRepo(db)
	pricingRepo := repository.NewPricingRepo(db)
	policyRepo := repository.NewPolicyRepo(db)
	auditRepo := repository.NewAuditRepo(db)

	events := queue.NewPublisher(cfg.AMQPURL)
	go queue.StartNotificationDispatcher(cfg.AMQPURL, notify.LogNotifier{})

	availability := service.NewAvailabilityService(resourceRepo, reservationRepo)
	escrow := service.NewEscrowService(escrowRepo, reservationRepo, policyRepo, auditRepo, nil)
	waitlist := service.NewWaitlistService(
		waitlistRepo, reservationRepo, reservationRepo, availability,
		resourceRepo, escrow, events, auditRepo, nil, cfg.OfferTTL)
	reservations := service.NewReservationService(
		reservationRepo, availability, resourceRepo, escrow, policyRepo,
		auditRepo, events, waitlist, waitlistRepo, nil, cfg.ProcessingSLA)
	quotes := service.NewQuoteService(
		quoteRepo, resourceRepo, reservationRepo, events, auditRepo,
		nil, cfg.AcknowledgeSLA, cfg.QuoteSLA)
	sweeper := service.NewSweeper(reservations, waitlist, quotes, escrow, cfg.SweepBatch)

	if cfg.SweepInterval > 0 {
		go sweeper.Start(context.Background(), cfg.SweepInterval)
	}

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Handlers{
		Consumer:    handler.NewConsumerHandler(reservations, availability),
		Waitlist:    handler.NewWaitlistHandler(waitlist),
		Quote:       handler.NewQuoteHandler(quotes),
		OperatorRes: handler.NewOperatorReservationHandler(reservations),
		OperatorCat: handler.NewOperatorResourceHandler(resourceRepo, pricingRepo, policyRepo),
		Pricing:     handler.NewPricingHandler(pricingRepo),
		Internal:    handler.NewInternalHandler(reservations, sweeper),
	}, db, rdb, cfg.JWTSecret, cfg.SweepSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
