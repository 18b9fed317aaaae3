package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/venuely/reservation-engine/internal/service"
)

// OperatorReservationHandler serves the operator's side of the state
// machine: accepting, refusing, cancelling and attendance marking.
type OperatorReservationHandler struct {
	Reservations *service.ReservationService
}

// NewOperatorReservationHandler constructs the handler.
func NewOperatorReservationHandler(reservations *service.ReservationService) *OperatorReservationHandler {
	if reservations == nil {
		panic("nil service passed to NewOperatorReservationHandler")
	}
	return &OperatorReservationHandler{Reservations: reservations}
}

// Accept handles POST /v1/operator/reservations/:id/accept.
func (h *OperatorReservationHandler) Accept(c echo.Context) error {
	return h.transition(c, func(ctx echo.Context, id, operatorID uint64) (any, error) {
		return h.Reservations.Accept(ctx.Request().Context(), id, operatorID)
	})
}

// Refuse handles POST /v1/operator/reservations/:id/refuse.
func (h *OperatorReservationHandler) Refuse(c echo.Context) error {
	reason := bindReason(c)
	return h.transition(c, func(ctx echo.Context, id, operatorID uint64) (any, error) {
		return h.Reservations.Refuse(ctx.Request().Context(), id, operatorID, reason)
	})
}

// Cancel handles POST /v1/operator/reservations/:id/cancel.
func (h *OperatorReservationHandler) Cancel(c echo.Context) error {
	reason := bindReason(c)
	return h.transition(c, func(ctx echo.Context, id, operatorID uint64) (any, error) {
		return h.Reservations.CancelByOperator(ctx.Request().Context(), id, operatorID, reason)
	})
}

// CheckIn handles POST /v1/operator/reservations/:id/checkin.
func (h *OperatorReservationHandler) CheckIn(c echo.Context) error {
	return h.transition(c, func(ctx echo.Context, id, operatorID uint64) (any, error) {
		return h.Reservations.CheckIn(ctx.Request().Context(), id, operatorID)
	})
}

// NoShow handles POST /v1/operator/reservations/:id/noshow.
func (h *OperatorReservationHandler) NoShow(c echo.Context) error {
	return h.transition(c, func(ctx echo.Context, id, operatorID uint64) (any, error) {
		return h.Reservations.NoShow(ctx.Request().Context(), id, operatorID)
	})
}

// ListByResource handles GET /v1/operator/resources/:id/reservations.
func (h *OperatorReservationHandler) ListByResource(c echo.Context) error {
	operatorID, err := getActorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	resourceID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resource id"})
	}
	list, err := h.Reservations.ListForOperatorResource(c.Request().Context(), resourceID, operatorID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": list})
}

// transition factors the shared id/actor plumbing out of the five state
// transition routes.
func (h *OperatorReservationHandler) transition(c echo.Context, apply func(echo.Context, uint64, uint64) (any, error)) error {
	operatorID, err := getActorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	res, err := apply(c, id, operatorID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func bindReason(c echo.Context) string {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.Bind(&body)
	return body.Reason
}
