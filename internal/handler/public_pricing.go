// This file defines the public pricing endpoint. Rental price quotes are
// derived entirely from the operator's rate card and season calendar, so
// they can be served without authentication and cached aggressively.
package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/venuely/reservation-engine/internal/repository"
	"github.com/venuely/reservation-engine/internal/service"
)

// PricingHandler serves rental price quotes.
type PricingHandler struct {
	Pricing *repository.PricingRepo
}

// NewPricingHandler constructs a PricingHandler.
func NewPricingHandler(pricing *repository.PricingRepo) *PricingHandler {
	if pricing == nil {
		panic("nil repository passed to NewPricingHandler")
	}
	return &PricingHandler{Pricing: pricing}
}

// RentalQuote handles GET /v1/resources/:id/rental-quote. Days are
// classified per calendar date of the stay; the night of departure is
// not charged.
func (h *PricingHandler) RentalQuote(c echo.Context) error {
	resourceID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resource id"})
	}
	window, err := parseWindow(c.QueryParam("from"), c.QueryParam("to"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid rental period"})
	}
	ctx := c.Request().Context()
	card, err := h.Pricing.RateCard(ctx, resourceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	seasons, err := h.Pricing.SeasonRanges(ctx, resourceID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	quote, err := service.QuoteRentalPrice(*card, seasons, window.Start, window.End)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid rental period"})
	}
	return c.JSON(http.StatusOK, quote)
}
