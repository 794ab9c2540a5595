package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-reservation/internal/config"
	"github.com/iliyamo/event-seat-reservation/internal/feed"
	"github.com/iliyamo/event-seat-reservation/internal/handler"
	"github.com/iliyamo/event-seat-reservation/internal/middleware"
	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/repository"
	"github.com/iliyamo/event-seat-reservation/internal/service"
	"github.com/iliyamo/event-seat-reservation/internal/utils"
)

const secret = "router-test-secret"

// newApp wires every route on a memory store holding one row A1..A4.
func newApp(t *testing.T) *echo.Echo {
	t.Helper()
	store := repository.NewMemoryStore()
	row := make([]model.Seat, 4)
	for i := range row {
		id := fmt.Sprintf("A%d", i+1)
		row[i] = model.Seat{ID: id, Label: id, Level: "Level 1", Category: "catA"}
		if i > 0 {
			row[i].LeftID = fmt.Sprintf("A%d", i)
		}
		if i < len(row)-1 {
			row[i].RightID = fmt.Sprintf("A%d", i+2)
		}
	}
	if err := store.UpsertSeats(context.Background(), row); err != nil {
		t.Fatal(err)
	}

	hub := feed.NewHub(store.Availability, nil)
	cache := middleware.NewRedisCache(config.CacheConfig{}, nil, nil)
	noLimit := middleware.NewTokenBucket(config.RateLimitConfig{}, config.Bucket{}, "test", middleware.ByIP, nil, nil)

	seats := service.NewSeatService(store, hub, cache, nil)
	e := echo.New()
	RegisterRoutes(e, func(ctx context.Context) error {
		_, err := store.Availability(ctx)
		return err
	})
	RegisterAuth(e, handler.NewAuthHandler(service.NewAuthService(store, secret, time.Hour), nil), noLimit)
	RegisterSeats(e, handler.NewSeatHandler(seats, hub, nil), cache)
	RegisterCustomer(e, handler.NewCustomerHandler(
		service.NewReservationService(store, hub, nil, nil),
		service.NewProfileService(store), nil), secret, noLimit)
	RegisterAdmin(e, handler.NewAdminHandler(
		service.NewCustomerService(store, time.UTC, nil),
		service.NewCheckInService(store, nil), seats, nil), secret)
	return e
}

func do(t *testing.T, e *echo.Echo, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func adminToken(t *testing.T) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, "ops", "ADMIN", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok.Token
}

func TestProbes(t *testing.T) {
	e := newApp(t)
	if rec := do(t, e, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
	if rec := do(t, e, http.MethodGet, "/readyz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d", rec.Code)
	}
}

func TestReservationFlow(t *testing.T) {
	e := newApp(t)
	admin := adminToken(t)

	rec := do(t, e, http.MethodPost, "/v1/admin/customers", admin, map[string]any{
		"email":  "Guest@Example.com",
		"quotas": map[string]int{"catA": 2},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create customer = %d %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Ticket model.Ticket `json:"ticket"`
	}
	decode(t, rec, &created)
	code := created.Ticket.Code
	if len(code) != 8 {
		t.Fatalf("ticket code %q", code)
	}

	rec = do(t, e, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "guest@example.com", "ticketCode": "nope0000"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login = %d", rec.Code)
	}
	rec = do(t, e, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "guest@example.com", "ticketCode": code})
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d %s", rec.Code, rec.Body.String())
	}
	var login struct {
		Token string `json:"token"`
	}
	decode(t, rec, &login)

	rec = do(t, e, http.MethodGet, "/v1/seats/metadata", "", nil)
	var meta struct {
		Seats []model.Seat `json:"seats"`
	}
	decode(t, rec, &meta)
	if len(meta.Seats) != 4 {
		t.Fatalf("metadata seats = %d", len(meta.Seats))
	}

	if rec = do(t, e, http.MethodPost, "/v1/reservations", "", map[string]any{"ids": []string{"A1", "A2"}}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous reserve = %d", rec.Code)
	}
	// A2+A3 would strand A1 and A4.
	rec = do(t, e, http.MethodPost, "/v1/reservations", login.Token, map[string]any{"ids": []string{"A2", "A3"}})
	if rec.Code != http.StatusConflict {
		t.Fatalf("isolating reserve = %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, e, http.MethodPost, "/v1/reservations", login.Token, map[string]any{"ids": []string{"A1", "A2"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("reserve = %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, e, http.MethodPost, "/v1/reservations", login.Token, map[string]any{"ids": []string{"A3", "A4"}})
	if rec.Code != http.StatusConflict {
		t.Fatalf("second reserve = %d", rec.Code)
	}

	rec = do(t, e, http.MethodGet, "/v1/seats/availability", "", nil)
	var snap feed.Snapshot
	decode(t, rec, &snap)
	if snap.Seats["A1"] || snap.Seats["A2"] || !snap.Seats["A3"] {
		t.Fatalf("availability = %v", snap.Seats)
	}

	rec = do(t, e, http.MethodGet, "/v1/me/profile", login.Token, nil)
	var profile service.Profile
	decode(t, rec, &profile)
	if !profile.SeatConfirmed || len(profile.Seats) != 2 || profile.TicketCode != code {
		t.Fatalf("profile = %+v", profile)
	}

	if rec = do(t, e, http.MethodPost, "/v1/admin/checkin", login.Token, map[string]any{"ticketCode": code, "seatIds": []string{"A1"}}); rec.Code != http.StatusForbidden {
		t.Fatalf("customer on admin route = %d", rec.Code)
	}
	rec = do(t, e, http.MethodPost, "/v1/admin/checkin", admin, map[string]any{"ticketCode": code, "seatIds": []string{"A1"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("checkin = %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, e, http.MethodPost, "/v1/admin/checkin", admin, map[string]any{"ticketCode": code, "seatIds": []string{"A1"}})
	if rec.Code != http.StatusConflict {
		t.Fatalf("repeated checkin = %d", rec.Code)
	}

	rec = do(t, e, http.MethodGet, "/v1/admin/tickets/"+code+"/seats", admin, nil)
	var ts struct {
		Seats []service.TicketSeat `json:"seats"`
	}
	decode(t, rec, &ts)
	checked := 0
	for _, s := range ts.Seats {
		if s.CheckedIn {
			checked++
		}
	}
	if len(ts.Seats) != 2 || checked != 1 {
		t.Fatalf("ticket seats = %+v", ts.Seats)
	}
}

func TestAdminSeats(t *testing.T) {
	e := newApp(t)
	admin := adminToken(t)

	if rec := do(t, e, http.MethodGet, "/v1/admin/seats?since=yesterday", admin, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad since = %d", rec.Code)
	}
	rec := do(t, e, http.MethodPut, "/v1/admin/seats", admin, map[string]any{
		"seats": []model.Seat{{ID: "B1", Level: "Level 2", Category: "catB"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert = %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, e, http.MethodPut, "/v1/admin/seats", admin, map[string]any{
		"seats": []model.Seat{{ID: "B2", Category: "catB", LeftID: "ZZ9"}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown neighbour = %d", rec.Code)
	}

	since := time.Now().Add(-time.Minute).UTC().Format(time.RFC3339)
	rec = do(t, e, http.MethodGet, "/v1/admin/seats?since="+since, admin, nil)
	var out struct {
		Seats []model.Seat `json:"seats"`
	}
	decode(t, rec, &out)
	if len(out.Seats) != 5 {
		t.Fatalf("updated seats = %d", len(out.Seats))
	}
}
