package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/venuely/reservation-engine/internal/model"
	"github.com/venuely/reservation-engine/internal/service"
)

// ConsumerHandler serves the consumer-facing reservation surface. All
// methods assume the JWT middleware has authenticated the caller and
// the role middleware has verified the CONSUMER role; ownership is then
// enforced by consumer-scoped queries, never by comparing ids in the
// handler.
type ConsumerHandler struct {
	Reservations *service.ReservationService
	Availability *service.AvailabilityService
}

// NewConsumerHandler constructs a ConsumerHandler. Dependencies must be
// non-nil.
func NewConsumerHandler(reservations *service.ReservationService, availability *service.AvailabilityService) *ConsumerHandler {
	if reservations == nil || availability == nil {
		panic("nil service passed to NewConsumerHandler")
	}
	return &ConsumerHandler{Reservations: reservations, Availability: availability}
}

// CreateReservation handles POST /v1/reservations. A full slot answers
// 409 capacity_exceeded; the client may then join the waitlist instead.
func (h *ConsumerHandler) CreateReservation(c echo.Context) error {
	consumerID, err := getActorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		ResourceID        uint64         `json:"resource_id"`
		SlotID            *uint64        `json:"slot_id"`
		PartySize         uint32         `json:"party_size"`
		StartsAt          string         `json:"starts_at"`
		EndsAt            string         `json:"ends_at"`
		StockPool         string         `json:"stock_pool"`
		AmountTotal       int64          `json:"amount_total_subunits"`
		GuaranteeRequired bool           `json:"guarantee_required"`
		Metadata          map[string]any `json:"metadata"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	window, err := parseWindow(body.StartsAt, body.EndsAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation window"})
	}
	res, err := h.Reservations.Request(c.Request().Context(), service.RequestReservation{
		ResourceID:        body.ResourceID,
		SlotID:            body.SlotID,
		ConsumerID:        consumerID,
		PartySize:         body.PartySize,
		Window:            window,
		StockPool:         model.StockPool(body.StockPool),
		AmountTotal:       body.AmountTotal,
		GuaranteeRequired: body.GuaranteeRequired,
		Metadata:          body.Metadata,
	})
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// ListReservations handles GET /v1/reservations.
func (h *ConsumerHandler) ListReservations(c echo.Context) error {
	consumerID, err := getActorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	list, err := h.Reservations.ListForConsumer(c.Request().Context(), consumerID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": list})
}

// GetReservation handles GET /v1/reservations/:id.
func (h *ConsumerHandler) GetReservation(c echo.Context) error {
	consumerID, err := getActorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	res, err := h.Reservations.GetForConsumer(c.Request().Context(), id, consumerID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// CancelReservation handles POST /v1/reservations/:id/cancel.
func (h *ConsumerHandler) CancelReservation(c echo.Context) error {
	consumerID, err := getActorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.Bind(&body) // reason is optional
	res, err := h.Reservations.CancelByConsumer(c.Request().Context(), id, consumerID, body.Reason)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// CheckAvailability handles GET /v1/resources/:id/availability. Public
// to any authenticated caller.
func (h *ConsumerHandler) CheckAvailability(c echo.Context) error {
	resourceID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resource id"})
	}
	window, err := parseWindow(c.QueryParam("starts_at"), c.QueryParam("ends_at"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid availability window"})
	}
	avail, err := h.Availability.CheckAvailability(c.Request().Context(), resourceID, window, 0)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, avail)
}
