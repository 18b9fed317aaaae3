package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/venuely/reservation-engine/internal/service"
)

// WaitlistHandler serves the consumer-facing waitlist surface: joining
// a full slot's queue, responding to offers and withdrawing.
type WaitlistHandler struct {
	Waitlist *service.WaitlistService
}

// NewWaitlistHandler constructs a WaitlistHandler.
func NewWaitlistHandler(waitlist *service.WaitlistService) *WaitlistHandler {
	if waitlist == nil {
		panic("nil service passed to NewWaitlistHandler")
	}
	return &WaitlistHandler{Waitlist: waitlist}
}

// Join handles POST /v1/waitlist. The caller supplies the same booking
// intent a direct reservation would carry; it is parked until a unit
// frees up.
func (h *WaitlistHandler) Join(c echo.Context) error {
	consumerID, err := getActorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		ResourceID        uint64 `json:"resource_id"`
		SlotID            uint64 `json:"slot_id"`
		PartySize         uint32 `json:"party_size"`
		StartsAt          string `json:"starts_at"`
		EndsAt            string `json:"ends_at"`
		AmountTotal       int64  `json:"amount_total_subunits"`
		GuaranteeRequired bool   `json:"guarantee_required"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	window, err := parseWindow(body.StartsAt, body.EndsAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation window"})
	}
	entry, err := h.Waitlist.Join(c.Request().Context(), service.JoinWaitlist{
		ResourceID:        body.ResourceID,
		SlotID:            body.SlotID,
		ConsumerID:        consumerID,
		PartySize:         body.PartySize,
		Window:            window,
		AmountTotal:       body.AmountTotal,
		GuaranteeRequired: body.GuaranteeRequired,
	})
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, entry)
}

// AcceptOffer handles POST /v1/waitlist/offers/:token/accept. The token
// is single-use and bound to the consumer it was offered to.
func (h *WaitlistHandler) AcceptOffer(c echo.Context) error {
	consumerID, err := getActorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	token := c.Param("token")
	res, err := h.Waitlist.AcceptOffer(c.Request().Context(), token, consumerID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Withdraw handles DELETE /v1/waitlist/:id.
func (h *WaitlistHandler) Withdraw(c echo.Context) error {
	consumerID, err := getActorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid entry id"})
	}
	if err := h.Waitlist.Withdraw(c.Request().Context(), id, consumerID); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "withdrawn"})
}

// ListSlotQueue handles GET /v1/operator/slots/:id/waitlist, letting an
// operator inspect a slot's queue in promotion order.
func (h *WaitlistHandler) ListSlotQueue(c echo.Context) error {
	if _, err := getActorID(c); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	slotID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	entries, err := h.Waitlist.ListForSlot(c.Request().Context(), slotID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"entries": entries})
}
