package handler

import (
	"context"  // provides context with cancellation for store calls
	"net/http" // HTTP status codes and primitives
	"time"     // timeouts for store calls

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing
	"go.uber.org/zap"

	"github.com/iliyamo/event-seat-reservation/internal/service"
)

// AuthHandler exchanges ticket credentials for a bearer token.
type AuthHandler struct {
	Auth *service.AuthService
	Log  *zap.Logger
}

func NewAuthHandler(auth *service.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Auth: auth, Log: log}
}

type loginReq struct {
	Email      string `json:"email"`
	TicketCode string `json:"ticketCode"`
}

type tokenResp struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// Login handles POST /v1/auth/login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tok, err := h.Auth.Login(ctx, req.Email, req.TicketCode)
	if err != nil {
		return respondError(c, h.Log, err, "login failed")
	}
	return c.JSON(http.StatusOK, tokenResp{Token: tok.Token, Expires: tok.Exp})
}
