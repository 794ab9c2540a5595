package router

import (
    "github.com/iliyamo/event-seat-reservation/internal/handler"
    "github.com/iliyamo/event-seat-reservation/internal/middleware"
    "github.com/labstack/echo/v4"
)

// RegisterAdmin registers the operator endpoints under /v1/admin.  Each
// route requires a valid JWT carrying the ADMIN role.  Admin tokens are
// minted outside this service with the shared secret.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
    g := e.Group(
        "/v1/admin",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole("ADMIN"),
    )
    // Customer provisioning and ticket lookups
    g.POST("/customers", h.CreateCustomer)
    g.GET("/tickets/:code/seats", h.TicketSeats)
    // Venue check-in of confirmed seats
    g.POST("/checkin", h.CheckIn)
    // Seat topology maintenance; ?since=RFC3339 lists seats changed after a point in time
    g.GET("/seats", h.UpdatedSeats)
    g.PUT("/seats", h.UpsertSeats)
}
