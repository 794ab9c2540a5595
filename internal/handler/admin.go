package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/service"
)

// AdminHandler bundles the services behind the /v1/admin routes.
type AdminHandler struct {
	Customers *service.CustomerService
	CheckIns  *service.CheckInService
	Seats     *service.SeatService
	Log       *zap.Logger
}

func NewAdminHandler(customers *service.CustomerService, checkins *service.CheckInService, seats *service.SeatService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{Customers: customers, CheckIns: checkins, Seats: seats, Log: log}
}

type createCustomerReq struct {
	Email   string         `json:"email"`
	OrderID string         `json:"order_id"`
	Quotas  map[string]int `json:"quotas"`
}

// CreateCustomer handles POST /v1/admin/customers.
func (h *AdminHandler) CreateCustomer(c echo.Context) error {
	var req createCustomerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cust, ticket, err := h.Customers.Create(ctx, service.CreateCustomerInput{
		Email:   req.Email,
		OrderID: req.OrderID,
		Quotas:  req.Quotas,
	})
	if err != nil {
		return respondError(c, h.Log, err, "Failed to create customer")
	}
	return c.JSON(http.StatusCreated, echo.Map{"customer": cust, "ticket": ticket})
}

type checkInReq struct {
	TicketCode string   `json:"ticketCode"`
	SeatIDs    []string `json:"seatIds"`
}

// CheckIn handles POST /v1/admin/checkin.
func (h *AdminHandler) CheckIn(c echo.Context) error {
	var req checkInReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.TicketCode = strings.TrimSpace(req.TicketCode)
	if req.TicketCode == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ticketCode required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	seats, err := h.CheckIns.CheckIn(ctx, req.TicketCode, req.SeatIDs)
	if err != nil {
		return respondError(c, h.Log, err, "check-in failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"seats": seats})
}

// TicketSeats handles GET /v1/admin/tickets/:code/seats.
func (h *AdminHandler) TicketSeats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ticket, seats, err := h.Seats.TicketSeats(ctx, c.Param("code"))
	if err != nil {
		return respondError(c, h.Log, err, "load ticket seats failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"ticket": ticket, "seats": seats})
}

// UpdatedSeats handles GET /v1/admin/seats?since=<RFC3339>.  Without since
// every seat is returned.
func (h *AdminHandler) UpdatedSeats(c echo.Context) error {
	since := time.Time{}
	if raw := c.QueryParam("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "since must be an RFC3339 timestamp"})
		}
		since = t
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	seats, err := h.Seats.UpdatedSince(ctx, since)
	if err != nil {
		return respondError(c, h.Log, err, "load seats failed")
	}
	if seats == nil {
		seats = []model.Seat{}
	}
	return c.JSON(http.StatusOK, echo.Map{"seats": seats, "as_of": time.Now().UTC()})
}

type upsertSeatsReq struct {
	Seats []model.Seat `json:"seats"`
}

// UpsertSeats handles PUT /v1/admin/seats.
func (h *AdminHandler) UpsertSeats(c echo.Context) error {
	var req upsertSeatsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	if err := h.Seats.Upsert(ctx, req.Seats); err != nil {
		return respondError(c, h.Log, err, "upsert seats failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"upserted": len(req.Seats)})
}
