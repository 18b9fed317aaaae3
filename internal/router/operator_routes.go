package router

import (
	"github.com/labstack/echo/v4"

	"github.com/venuely/reservation-engine/internal/middleware"
	"github.com/venuely/reservation-engine/internal/model"
)

// registerOperator wires the operator surface under /v1/operator.
func registerOperator(e *echo.Echo, h Handlers, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/operator", limiter)
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("OPERATOR"))

	g.POST("/resources", h.OperatorCat.CreateResource)
	g.GET("/resources", h.OperatorCat.ListResources)
	g.PUT("/resources/:id", h.OperatorCat.UpdateResource)
	g.DELETE("/resources/:id", h.OperatorCat.DeleteResource)
	g.POST("/resources/:id/blocks", h.OperatorCat.AddDateBlock)
	g.POST("/resources/:id/slots", h.OperatorCat.CreateSlot)
	g.GET("/resources/:id/slots", h.OperatorCat.ListSlots)
	g.PUT("/resources/:id/rate-card", h.OperatorCat.SaveRateCard)
	g.POST("/resources/:id/seasons", h.OperatorCat.AddSeasonRange)
	g.GET("/resources/:id/reservations", h.OperatorRes.ListByResource)

	g.GET("/policy", h.OperatorCat.GetPolicy)
	g.PUT("/policy", h.OperatorCat.SavePolicy)

	g.POST("/reservations/:id/accept", h.OperatorRes.Accept)
	g.POST("/reservations/:id/refuse", h.OperatorRes.Refuse)
	g.POST("/reservations/:id/cancel", h.OperatorRes.Cancel)
	g.POST("/reservations/:id/checkin", h.OperatorRes.CheckIn)
	g.POST("/reservations/:id/noshow", h.OperatorRes.NoShow)

	g.GET("/slots/:id/waitlist", h.Waitlist.ListSlotQueue)

	g.POST("/quotes/:id/acknowledge", h.Quote.Acknowledge)
	g.POST("/quotes/:id/quote", h.Quote.SendQuote)
	g.GET("/quotes/:id", h.Quote.GetForOperator)
	g.GET("/quotes/:id/messages", h.Quote.ListMessages(model.SenderOperator))
	g.POST("/quotes/:id/messages", h.Quote.PostMessage(model.SenderOperator))
}
