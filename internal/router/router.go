package router // package router defines how HTTP routes are registered for the API

import (
	"context"

	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/event-seat-reservation/internal/handler"    // handlers that implement the endpoints
	"github.com/iliyamo/event-seat-reservation/internal/middleware" // rate limiting and response caching
)

// RegisterRoutes registers the probes used by load balancers and monitoring
// systems.  /healthz reports liveness only while /readyz also checks that
// the store answers.
func RegisterRoutes(e *echo.Echo, ready func(ctx context.Context) error) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(ready))
}

// RegisterAuth registers the login endpoint.  limit throttles attempts per
// client IP so that ticket codes cannot be brute forced.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login, limit)
}

// RegisterSeats registers the unauthenticated seat endpoints.  The venue
// topology changes rarely and is served through the Redis response cache;
// availability is always read fresh or streamed over the websocket.
func RegisterSeats(e *echo.Echo, s *handler.SeatHandler, cache *middleware.RedisCache) {
	e.GET("/v1/seats/metadata", s.Metadata, cache.Middleware())
	e.GET("/v1/seats/availability", s.Availability)
	e.GET("/v1/seats/availability/ws", s.Stream)
}
