package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/venuely/reservation-engine/internal/model"
	"github.com/venuely/reservation-engine/internal/repository"
)

// OperatorResourceHandler serves the operator's catalogue surface:
// resources, blocked windows, slots, rental pricing and the
// cancellation policy. Repositories are used directly here; there are
// no cross-entity rules to mediate, only owner-scoped persistence.
type OperatorResourceHandler struct {
	Resources *repository.ResourceRepo
	Pricing   *repository.PricingRepo
	Policies  *repository.PolicyRepo
}

// NewOperatorResourceHandler constructs the handler.
func NewOperatorResourceHandler(resources *repository.ResourceRepo, pricing *repository.PricingRepo, policies *repository.PolicyRepo) *OperatorResourceHandler {
	if resources == nil || pricing == nil || policies == nil {
		panic("nil repository passed to NewOperatorResourceHandler")
	}
	return &OperatorResourceHandler{Resources: resources, Pricing: pricing, Policies: policies}
}

type resourcePayload struct {
	Name               string `json:"name"`
	Kind               string `json:"kind"`
	Quantity           uint32 `json:"quantity"`
	PaidStockPercent   uint8  `json:"paid_stock_percent"`
	FreeStockPercent   uint8  `json:"free_stock_percent"`
	BufferStockPercent uint8  `json:"buffer_stock_percent"`
	DepositSubunits    int64  `json:"deposit_subunits"`
	Currency           string `json:"currency"`
	Active             *bool  `json:"active"`
}

func (p *resourcePayload) validate() string {
	if p.Name == "" {
		return "name is required"
	}
	switch model.ResourceKind(p.Kind) {
	case model.KindTableService, model.KindRental, model.KindEventSlot:
	default:
		return "kind must be table_service, rental or event_slot"
	}
	if p.Quantity == 0 {
		return "quantity must be positive"
	}
	if int(p.PaidStockPercent)+int(p.FreeStockPercent)+int(p.BufferStockPercent) != 100 {
		return "stock pool percentages must sum to 100"
	}
	if len(p.Currency) != 3 {
		return "currency must be an ISO 4217 code"
	}
	return ""
}

// CreateResource handles POST /v1/operator/resources.
func (h *OperatorResourceHandler) CreateResource(c echo.Context) error {
	operatorID, err := getActorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body resourcePayload
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if msg := body.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	res := &model.Resource{
		OperatorID:         operatorID,
		Name:               body.Name,
		Kind:               model.ResourceKind(body.Kind),
		Quantity:           body.Quantity,
		PaidStockPercent:   body.PaidStockPercent,
		FreeStockPercent:   body.FreeStockPercent,
		BufferStockPercent: body.BufferStockPercent,
		DepositSubunits:    body.DepositSubunits,
		Currency:           body.Currency,
		Active:             true,
	}
	if body.Active != nil {
		res.Active = *body.Active
	}
	if err := h.Resources.Create(c.Request().Context(), res); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusCreated, res)
}

// UpdateResource handles PUT /v1/operator/resources/:id.
func (h *OperatorResourceHandler) UpdateResource(c echo.Context) error {
	operatorID, err := getActorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resource id"})
	}
	res, err := h.Resources.GetForOperator(c.Request().Context(), id, operatorID)
	if err != nil {
		return repoError(c, err)
	}
	var body resourcePayload
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if msg := body.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	res.Name = body.Name
	res.Kind = model.ResourceKind(body.Kind)
	res.Quantity = body.Quantity
	res.PaidStockPercent = body.PaidStockPercent
	res.FreeStockPercent = body.FreeStockPercent
	res.BufferStockPercent = body.BufferStockPercent
	res.DepositSubunits = body.DepositSubunits
	res.Currency = body.Currency
	if body.Active != nil {
		res.Active = *body.Active
	}
	if err := h.Resources.Update(c.Request().Context(), res); err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ListResources handles GET /v1/operator/resources.
func (h *OperatorResourceHandler) ListResources(c echo.Context) error {
	operatorID, err := getActorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	list, err := h.Resources.ListByOperator(c.Request().Context(), operatorID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"resources": list})
}

// DeleteResource handles DELETE /v1/operator/resources/:id. Soft
// delete only; existing reservations keep their reference.
func (h *OperatorResourceHandler) DeleteResource(c echo.Context) error {
	operatorID, err := getActorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resource id"})
	}
	if err := h.Resources.SoftDelete(c.Request().Context(), id, operatorID); err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "deleted"})
}

// AddDateBlock handles POST /v1/operator/resources/:id/blocks.
func (h *OperatorResourceHandler) AddDateBlock(c echo.Context) error {
	operatorID, err := getActorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	resourceID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resource id"})
	}
	var body struct {
		StartsAt string `json:"starts_at"`
		EndsAt   string `json:"ends_at"`
		Reason   string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	window, err := parseWindow(body.StartsAt, body.EndsAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid block window"})
	}
	block := &model.DateBlock{ResourceID: resourceID, Window: window, Reason: body.Reason}
	if err := h.Resources.AddDateBlock(c.Request().Context(), operatorID, block); err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusCreated, block)
}

// CreateSlot handles POST /v1/operator/resources/:id/slots.
func (h *OperatorResourceHandler) CreateSlot(c echo.Context) error {
	operatorID, err := getActorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	resourceID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resource id"})
	}
	var body struct {
		StartsAt string `json:"starts_at"`
		EndsAt   string `json:"ends_at"`
		Source   string `json:"source"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	window, err := parseWindow(body.StartsAt, body.EndsAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot window"})
	}
	source := model.SlotSource(body.Source)
	if source == "" {
		source = model.SlotFromDate
	}
	if source != model.SlotFromTemplate && source != model.SlotFromDate {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "source must be template or date"})
	}
	slot := &model.Slot{ResourceID: resourceID, Window: window, Source: source}
	if err := h.Resources.CreateSlot(c.Request().Context(), operatorID, slot); err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusCreated, slot)
}

// ListSlots handles GET /v1/operator/resources/:id/slots.
func (h *OperatorResourceHandler) ListSlots(c echo.Context) error {
	if _, err := getActorID(c); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	resourceID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resource id"})
	}
	after := time.Now()
	if raw := c.QueryParam("after"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid after timestamp"})
		}
		after = parsed
	}
	slots, err := h.Resources.ListSlots(c.Request().Context(), resourceID, after)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"slots": slots})
}

// SaveRateCard handles PUT /v1/operator/resources/:id/rate-card.
func (h *OperatorResourceHandler) SaveRateCard(c echo.Context) error {
	operatorID, err := getActorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	resourceID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resource id"})
	}
	var body struct {
		StandardDaySubunits     int64 `json:"standard_day_subunits"`
		WeekendDaySubunits      int64 `json:"weekend_day_subunits"`
		HighSeasonDaySubunits   int64 `json:"high_season_day_subunits"`
		LongStayDays            int   `json:"long_stay_days"`
		LongStayDiscountPercent int   `json:"long_stay_discount_percent"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.StandardDaySubunits <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "standard_day_subunits must be positive"})
	}
	if body.LongStayDiscountPercent < 0 || body.LongStayDiscountPercent > 100 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "long_stay_discount_percent must be 0-100"})
	}
	card := &model.RateCard{
		ResourceID:              resourceID,
		StandardDaySubunits:     body.StandardDaySubunits,
		WeekendDaySubunits:      body.WeekendDaySubunits,
		HighSeasonDaySubunits:   body.HighSeasonDaySubunits,
		LongStayDays:            body.LongStayDays,
		LongStayDiscountPercent: body.LongStayDiscountPercent,
	}
	if err := h.Pricing.SaveRateCard(c.Request().Context(), operatorID, card); err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusOK, card)
}

// AddSeasonRange handles POST /v1/operator/resources/:id/seasons.
func (h *OperatorResourceHandler) AddSeasonRange(c echo.Context) error {
	operatorID, err := getActorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	resourceID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resource id"})
	}
	var body struct {
		FromDate string `json:"from_date"`
		ToDate   string `json:"to_date"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	from, err := time.Parse("2006-01-02", body.FromDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid from_date"})
	}
	to, err := time.Parse("2006-01-02", body.ToDate)
	if err != nil || to.Before(from) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid to_date"})
	}
	season := &model.SeasonRange{ResourceID: resourceID, From: from, To: to}
	if err := h.Pricing.AddSeasonRange(c.Request().Context(), operatorID, season); err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusCreated, season)
}

// GetPolicy handles GET /v1/operator/policy.
func (h *OperatorResourceHandler) GetPolicy(c echo.Context) error {
	operatorID, err := getActorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	policy, err := h.Policies.ForOperator(c.Request().Context(), operatorID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, policy)
}

// SavePolicy handles PUT /v1/operator/policy.
func (h *OperatorResourceHandler) SavePolicy(c echo.Context) error {
	operatorID, err := getActorID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body model.OperatorPolicy
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.FreeCancellationHours < 0 ||
		body.CancellationPenaltyPercent < 0 || body.CancellationPenaltyPercent > 100 ||
		body.NoShowPenaltyPercent < 0 || body.NoShowPenaltyPercent > 100 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid policy values"})
	}
	if err := h.Policies.Save(c.Request().Context(), operatorID, body); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, body)
}

// repoError maps repository sentinels for the routes that talk to
// repositories directly.
func repoError(c echo.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
}
