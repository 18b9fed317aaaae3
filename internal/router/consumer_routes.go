package router

import (
	"github.com/labstack/echo/v4"

	"github.com/venuely/reservation-engine/internal/middleware"
	"github.com/venuely/reservation-engine/internal/model"
)

// registerConsumer wires the consumer surface. Every route requires the
// CONSUMER role; ownership of individual rows is enforced by the
// consumer-scoped queries underneath, not here.
func registerConsumer(e *echo.Echo, h Handlers, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1", limiter)
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("CONSUMER"))

	g.POST("/reservations", h.Consumer.CreateReservation)
	g.GET("/reservations", h.Consumer.ListReservations)
	g.GET("/reservations/:id", h.Consumer.GetReservation)
	g.POST("/reservations/:id/cancel", h.Consumer.CancelReservation)

	g.POST("/waitlist", h.Waitlist.Join)
	g.POST("/waitlist/offers/:token/accept", h.Waitlist.AcceptOffer)
	g.DELETE("/waitlist/:id", h.Waitlist.Withdraw)

	g.POST("/quotes", h.Quote.Submit)
	g.GET("/quotes/:id", h.Quote.GetForConsumer)
	g.POST("/quotes/:id/accept", h.Quote.Accept)
	g.POST("/quotes/:id/decline", h.Quote.Decline)
	g.GET("/quotes/:id/messages", h.Quote.ListMessages(model.SenderConsumer))
	g.POST("/quotes/:id/messages", h.Quote.PostMessage(model.SenderConsumer))
}
