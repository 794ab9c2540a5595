// Package client is a small HTTP client for the customer side of the seat
// reservation API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iliyamo/event-seat-reservation/internal/feed"
	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/service"
)

// APIError is a non-2xx answer.  Message carries the server's "error" field.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// Client talks to one API host.  Login stores the bearer token used by the
// authenticated calls.
type Client struct {
	BaseURL string
	HTTP    *http.Client

	token string
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Token returns the bearer token obtained by Login.
func (c *Client) Token() string { return c.token }

// Login exchanges the ticket credentials for a token.
func (c *Client) Login(ctx context.Context, email, ticketCode string) error {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "ticketCode": ticketCode}
	if err := c.do(ctx, http.MethodPost, "/v1/auth/login", body, &out); err != nil {
		return err
	}
	c.token = out.Token
	return nil
}

// Metadata returns the venue topology.
func (c *Client) Metadata(ctx context.Context) ([]model.Seat, error) {
	var out struct {
		Seats []model.Seat `json:"seats"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/seats/metadata", nil, &out)
	return out.Seats, err
}

// Availability returns the current availability snapshot.
func (c *Client) Availability(ctx context.Context) (feed.Snapshot, error) {
	var out feed.Snapshot
	err := c.do(ctx, http.MethodGet, "/v1/seats/availability", nil, &out)
	return out, err
}

func (c *Client) Profile(ctx context.Context) (*service.Profile, error) {
	var out service.Profile
	if err := c.do(ctx, http.MethodGet, "/v1/me/profile", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reserve commits seatIDs for the logged-in ticket.
func (c *Client) Reserve(ctx context.Context, seatIDs []string) (*service.ReserveResult, error) {
	var out service.ReserveResult
	if err := c.do(ctx, http.MethodPost, "/v1/reservations", map[string][]string{"ids": seatIDs}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StreamSource returns a feed source for the availability websocket.
func (c *Client) StreamSource() (*feed.WSSource, error) {
	u, err := url.Parse(c.BaseURL + "/v1/seats/availability/ws")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return &feed.WSSource{URL: u.String()}, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &e)
		if e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
