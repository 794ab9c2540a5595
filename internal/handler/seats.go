package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/event-seat-reservation/internal/feed"
	"github.com/iliyamo/event-seat-reservation/internal/service"
)

// SeatHandler serves the public seat endpoints: venue topology, the current
// availability snapshot and the availability websocket.
type SeatHandler struct {
	Seats *service.SeatService
	Hub   *feed.Hub
	Log   *zap.Logger
}

func NewSeatHandler(seats *service.SeatService, hub *feed.Hub, log *zap.Logger) *SeatHandler {
	return &SeatHandler{Seats: seats, Hub: hub, Log: log}
}

// Metadata handles GET /v1/seats/metadata.  The response is cached in Redis
// and invalidated by the admin upsert.
func (h *SeatHandler) Metadata(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	seats, err := h.Seats.Topology(ctx)
	if err != nil {
		return respondError(c, h.Log, err, "load seats failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"seats": seats})
}

// Availability handles GET /v1/seats/availability.
func (h *SeatHandler) Availability(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	snap, err := h.Seats.Availability(ctx)
	if err != nil {
		return respondError(c, h.Log, err, "load availability failed")
	}
	return c.JSON(http.StatusOK, snap)
}

// Stream handles GET /v1/seats/availability/ws.
func (h *SeatHandler) Stream(c echo.Context) error {
	return h.Hub.ServeWS(c)
}
