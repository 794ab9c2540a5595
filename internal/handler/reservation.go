package handler

import (
	"context"  // provides context with cancellation for store calls
	"net/http" // HTTP status codes
	"time"     // working with timeouts

	"github.com/labstack/echo/v4" // Echo web framework
	"go.uber.org/zap"

	"github.com/iliyamo/event-seat-reservation/internal/middleware"
	"github.com/iliyamo/event-seat-reservation/internal/service"
)

// CustomerHandler serves the endpoints of a logged-in ticket holder.  All
// methods assume that JWT authentication and role validation has already
// been performed by middleware; the token subject is the ticket id.
type CustomerHandler struct {
	Reservations *service.ReservationService
	Profiles     *service.ProfileService
	Log          *zap.Logger
}

func NewCustomerHandler(res *service.ReservationService, profiles *service.ProfileService, log *zap.Logger) *CustomerHandler {
	if res == nil || profiles == nil {
		panic("nil service passed to NewCustomerHandler")
	}
	return &CustomerHandler{Reservations: res, Profiles: profiles, Log: log}
}

type reserveReq struct {
	IDs []string `json:"ids"`
}

// Reserve handles POST /v1/reservations.  The body carries the ids of the
// selected seats; the whole selection is committed or nothing is.
func (h *CustomerHandler) Reserve(c echo.Context) error {
	ticketID, ok := middleware.Subject(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req reserveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Reservations.Reserve(ctx, ticketID, req.IDs)
	if err != nil {
		return respondError(c, h.Log, err, "reservation failed")
	}
	return c.JSON(http.StatusOK, res)
}

// Profile handles GET /v1/me/profile.
func (h *CustomerHandler) Profile(c echo.Context) error {
	ticketID, ok := middleware.Subject(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Profiles.Profile(ctx, ticketID)
	if err != nil {
		return respondError(c, h.Log, err, "load profile failed")
	}
	return c.JSON(http.StatusOK, p)
}
