package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/venuely/reservation-engine/internal/model"
	"github.com/venuely/reservation-engine/internal/service"
)

// getActorID extracts the authenticated platform user id placed in the
// context by the JWT middleware.
func getActorID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// serviceError maps the service layer's sentinel errors onto HTTP
// responses. Ownership failures surface as not_found on purpose: the
// API never confirms that a foreign id exists.
func serviceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
	case errors.Is(err, service.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": "invalid_transition"})
	case errors.Is(err, service.ErrCapacityExceeded):
		return c.JSON(http.StatusConflict, echo.Map{"error": "capacity_exceeded"})
	case errors.Is(err, service.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_failed"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error"})
	}
}

// parseWindow validates and converts the RFC3339 pair every booking
// payload carries.
func parseWindow(startsAt, endsAt string) (model.Window, error) {
	start, err := time.Parse(time.RFC3339, startsAt)
	if err != nil {
		return model.Window{}, err
	}
	end, err := time.Parse(time.RFC3339, endsAt)
	if err != nil {
		return model.Window{}, err
	}
	w := model.Window{Start: start.UTC(), End: end.UTC()}
	if !w.Valid() {
		return model.Window{}, errors.New("ends_at must be after starts_at")
	}
	return w, nil
}
