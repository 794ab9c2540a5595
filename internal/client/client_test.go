package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientFlow(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["ticketCode"] != "0Ha4_DAY" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Invalid email or ticket code"}`))
			return
		}
		_, _ = w.Write([]byte(`{"token":"tok"}`))
	})
	mux.HandleFunc("/v1/reservations", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var in struct {
			IDs []string `json:"ids"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		if len(in.IDs) == 1 {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"Seat A3 will be isolated if the reservation is made"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ticket_id":"t1","notified":true}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	c := New(srv.URL + "/")

	err := c.Login(ctx, "a@example.com", "wrong")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || apiErr.Message != "Invalid email or ticket code" {
		t.Fatalf("bad login error = %v", err)
	}
	if err := c.Login(ctx, "a@example.com", "0Ha4_DAY"); err != nil {
		t.Fatal(err)
	}
	if c.Token() != "tok" {
		t.Fatalf("token = %q", c.Token())
	}

	if _, err := c.Reserve(ctx, []string{"A2"}); !errors.As(err, &apiErr) || apiErr.Status != http.StatusConflict {
		t.Fatalf("reserve error = %v", err)
	}
	res, err := c.Reserve(ctx, []string{"A1", "A2"})
	if err != nil {
		t.Fatal(err)
	}
	if res.TicketID != "t1" || !res.Notified || gotAuth != "Bearer tok" {
		t.Fatalf("res=%+v auth=%q", res, gotAuth)
	}
}

func TestStreamSourceScheme(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8080":  "ws://localhost:8080/v1/seats/availability/ws",
		"https://seats.example/": "wss://seats.example/v1/seats/availability/ws",
	}
	for base, want := range cases {
		src, err := New(base).StreamSource()
		if err != nil {
			t.Fatal(err)
		}
		if src.URL != want {
			t.Fatalf("%s: got %s, want %s", base, src.URL, want)
		}
	}
}
