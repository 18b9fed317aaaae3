package router // package router wires HTTP routes to handlers

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/venuely/reservation-engine/internal/config"
	"github.com/venuely/reservation-engine/internal/handler"
	"github.com/venuely/reservation-engine/internal/middleware"
)

// Handlers bundles everything the route tables need.
type Handlers struct {
	Consumer    *handler.ConsumerHandler
	Waitlist    *handler.WaitlistHandler
	Quote       *handler.QuoteHandler
	OperatorRes *handler.OperatorReservationHandler
	OperatorCat *handler.OperatorResourceHandler
	Pricing     *handler.PricingHandler
	Internal    *handler.InternalHandler
}

// Register wires every route group: public reads, the consumer and
// operator surfaces behind JWT+role middleware, and the shared-secret
// internal surface. The Redis-backed rate limiter and response cache
// are applied where they make sense and silently disabled when rdb is
// nil.
func Register(e *echo.Echo, h Handlers, db *sql.DB, rdb *redis.Client, jwtSecret, sweepSecret string) {
	e.GET("/healthz", handler.Health(db))

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	registerPublic(e, h, limiter, cache)
	registerConsumer(e, h, jwtSecret, limiter)
	registerOperator(e, h, jwtSecret, limiter)

	internal := e.Group("/internal")
	internal.Use(middleware.RequireSweepSecret(sweepSecret))
	internal.POST("/sweep", h.Internal.Sweep)
	internal.POST("/payments/confirmed", h.Internal.PaymentConfirmed)
}

// registerPublic wires the unauthenticated read routes. These are the
// only routes behind the response cache; everything that mutates or is
// actor-scoped bypasses it.
func registerPublic(e *echo.Echo, h Handlers, limiter, cache echo.MiddlewareFunc) {
	pub := e.Group("/v1", limiter, cache)
	pub.GET("/resources/:id/availability", h.Consumer.CheckAvailability)
	pub.GET("/resources/:id/rental-quote", h.Pricing.RentalQuote)
}
