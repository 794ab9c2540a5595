package middleware

// identity.go holds the accessors for the identity JWTAuth stores in the
// Echo context.  Rate limit keys use "anon" when no token was presented.

import "github.com/labstack/echo/v4"

// Subject returns the authenticated subject (the ticket id for customers).
func Subject(c echo.Context) (string, bool) {
    s, ok := c.Get(CtxSubject).(string)
    return s, ok && s != ""
}

// Role returns the role claim of the authenticated caller.
func Role(c echo.Context) string {
    r, _ := c.Get(CtxRole).(string)
    return r
}

// currentUserID returns the subject or "anon".
func currentUserID(c echo.Context) string {
    if s, ok := Subject(c); ok {
        return s
    }
    return "anon"
}
