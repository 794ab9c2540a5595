package handler // declare the package name; contains HTTP handlers

import (
    "context"  // context bounds the readiness probe
    "net/http" // net/http provides status codes and response helpers
    "time"     // timeout for the readiness probe

    "github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Health is a simple health‑check endpoint used by load balancers and
// monitoring systems to verify that the service is running.  It returns
// a plain text "ok" message with an HTTP 200 status code.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}

// Ready returns a handler that answers 200 once probe succeeds and 503
// otherwise.  probe typically reads the seat availability from the store.
func Ready(probe func(ctx context.Context) error) echo.HandlerFunc {
    return func(c echo.Context) error {
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
        defer cancel()
        if err := probe(ctx); err != nil {
            return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
        }
        return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
    }
}
