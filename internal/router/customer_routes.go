package router

import (
	"github.com/iliyamo/event-seat-reservation/internal/handler"
	"github.com/iliyamo/event-seat-reservation/internal/middleware"
	"github.com/labstack/echo/v4"
)

// RegisterCustomer registers ticket holder endpoints under /v1.  All routes
// require a valid JWT and the CUSTOMER role.  The reservation commit is
// additionally throttled per ticket.
func RegisterCustomer(e *echo.Echo, h *handler.CustomerHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("CUSTOMER"),
	)
	g.GET("/me/profile", h.Profile)
	g.POST("/reservations", h.Reserve, limit)
}
