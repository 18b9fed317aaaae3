package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/venuely/reservation-engine/internal/model"
	"github.com/venuely/reservation-engine/internal/service"
)

// QuoteHandler serves both sides of the group-booking negotiation. The
// role middleware decides which routes reach which methods; the service
// scopes every lookup by the acting party.
type QuoteHandler struct {
	Quotes *service.QuoteService
}

// NewQuoteHandler constructs a QuoteHandler.
func NewQuoteHandler(quotes *service.QuoteService) *QuoteHandler {
	if quotes == nil {
		panic("nil service passed to NewQuoteHandler")
	}
	return &QuoteHandler{Quotes: quotes}
}

// Submit handles POST /v1/quotes (consumer).
func (h *QuoteHandler) Submit(c echo.Context) error {
	consumerID, err := getActorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		ResourceID uint64 `json:"resource_id"`
		PartySize  uint32 `json:"party_size"`
		StartsAt   string `json:"starts_at"`
		EndsAt     string `json:"ends_at"`
		Message    string `json:"message"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	window, err := parseWindow(body.StartsAt, body.EndsAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid quote window"})
	}
	q, err := h.Quotes.Submit(c.Request().Context(), service.SubmitQuote{
		ResourceID: body.ResourceID,
		ConsumerID: consumerID,
		PartySize:  body.PartySize,
		Window:     window,
		Message:    body.Message,
	})
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, q)
}

// GetForConsumer handles GET /v1/quotes/:id (consumer).
func (h *QuoteHandler) GetForConsumer(c echo.Context) error {
	consumerID, err := getActorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid quote id"})
	}
	q, err := h.Quotes.GetForConsumer(c.Request().Context(), id, consumerID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, q)
}

// Accept handles POST /v1/quotes/:id/accept (consumer).
func (h *QuoteHandler) Accept(c echo.Context) error {
	consumerID, err := getActorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid quote id"})
	}
	q, res, err := h.Quotes.Accept(c.Request().Context(), id, consumerID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"quote": q, "reservation": res})
}

// Decline handles POST /v1/quotes/:id/decline (consumer).
func (h *QuoteHandler) Decline(c echo.Context) error {
	consumerID, err := getActorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid quote id"})
	}
	q, err := h.Quotes.Decline(c.Request().Context(), id, consumerID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, q)
}

// Acknowledge handles POST /v1/operator/quotes/:id/acknowledge.
func (h *QuoteHandler) Acknowledge(c echo.Context) error {
	operatorID, err := getActorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid quote id"})
	}
	q, err := h.Quotes.Acknowledge(c.Request().Context(), id, operatorID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, q)
}

// SendQuote handles POST /v1/operator/quotes/:id/quote.
func (h *QuoteHandler) SendQuote(c echo.Context) error {
	operatorID, err := getActorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid quote id"})
	}
	var body struct {
		AmountSubunits int64  `json:"amount_subunits"`
		Message        string `json:"message"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	q, err := h.Quotes.SendQuote(c.Request().Context(), id, operatorID, body.AmountSubunits, body.Message)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, q)
}

// GetForOperator handles GET /v1/operator/quotes/:id.
func (h *QuoteHandler) GetForOperator(c echo.Context) error {
	operatorID, err := getActorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid quote id"})
	}
	q, err := h.Quotes.GetForOperator(c.Request().Context(), id, operatorID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, q)
}

// PostMessage serves both thread-write routes; sender tells the method
// which side is talking.
func (h *QuoteHandler) PostMessage(sender model.QuoteSender) echo.HandlerFunc {
	return func(c echo.Context) error {
		actorID, err := getActorID(c)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		id, ok := pathID(c, "id")
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid quote id"})
		}
		var body struct {
			Content     string   `json:"content"`
			Attachments []string `json:"attachments"`
		}
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
		}
		m, err := h.Quotes.PostMessage(c.Request().Context(), id, sender, actorID, body.Content, body.Attachments)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(http.StatusCreated, m)
	}
}

// ListMessages serves both thread-read routes.
func (h *QuoteHandler) ListMessages(sender model.QuoteSender) echo.HandlerFunc {
	return func(c echo.Context) error {
		actorID, err := getActorID(c)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		id, ok := pathID(c, "id")
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid quote id"})
		}
		msgs, err := h.Quotes.Messages(c.Request().Context(), id, sender, actorID)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"messages": msgs})
	}
}
