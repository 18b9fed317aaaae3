package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/venuely/reservation-engine/internal/service"
)

// InternalHandler serves the platform-internal surface: the payment
// provider callback and the sweep trigger. These routes sit behind the
// shared-secret middleware, not user JWTs.
type InternalHandler struct {
	Reservations *service.ReservationService
	Sweeper      *service.Sweeper
}

// NewInternalHandler constructs an InternalHandler.
func NewInternalHandler(reservations *service.ReservationService, sweeper *service.Sweeper) *InternalHandler {
	if reservations == nil || sweeper == nil {
		panic("nil dependency passed to NewInternalHandler")
	}
	return &InternalHandler{Reservations: reservations, Sweeper: sweeper}
}

// PaymentConfirmed handles POST /internal/payments/confirmed, the
// callback from the platform payment service. Idempotent: repeated
// confirmations of the same reservation are harmless.
func (h *InternalHandler) PaymentConfirmed(c echo.Context) error {
	var body struct {
		ReservationID uint64 `json:"reservation_id"`
	}
	if err := c.Bind(&body); err != nil || body.ReservationID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reservation_id is required"})
	}
	if err := h.Reservations.PaymentConfirmed(c.Request().Context(), body.ReservationID); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "recorded"})
}

// Sweep handles POST /internal/sweep. External schedulers call this on
// multi-instance deployments instead of the in-process ticker.
func (h *InternalHandler) Sweep(c echo.Context) error {
	result := h.Sweeper.Run(c.Request().Context())
	return c.JSON(http.StatusOK, result)
}
