package queue

import (
    "context"
    "encoding/json"
    "errors"
    "net/http"
    "net/http/httptest"
    "os"
    "path/filepath"
    "strings"
    "testing"
)

func sampleEvent() SeatsConfirmedEvent {
    return SeatsConfirmedEvent{
        TicketID:    "t1",
        TicketCode:  "0ABC_DAY",
        Email:       "guest@example.com",
        ConfirmedAt: "2025-01-02T03:04:05Z",
        Seats: []ConfirmedSeat{
            {ID: "H12", Label: "H12", Level: "Level 1", Category: "catA"},
            {ID: "H13", Label: "H13", Level: "Level 1", Category: "catA"},
        },
    }
}

func TestLogHandlerAppends(t *testing.T) {
    dir := t.TempDir()
    h := &LogHandler{Dir: dir}
    for i := 0; i < 2; i++ {
        if err := h.Handle(context.Background(), sampleEvent()); err != nil {
            t.Fatal(err)
        }
    }
    b, err := os.ReadFile(filepath.Join(dir, "confirmations.log"))
    if err != nil {
        t.Fatal(err)
    }
    lines := strings.Split(strings.TrimSpace(string(b)), "\n")
    if len(lines) != 2 {
        t.Fatalf("expected 2 lines, got %d", len(lines))
    }
    if !strings.Contains(lines[0], "ticket_code=0ABC_DAY") || !strings.Contains(lines[0], "seats=[H12,H13]") {
        t.Fatalf("unexpected line %q", lines[0])
    }
}

func TestMailHandlerPostsConfirmation(t *testing.T) {
    var got mailRequest
    var creds string
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        creds = r.Header.Get("X-Internal-API-Credentials")
        if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
            t.Errorf("decode: %v", err)
        }
        w.WriteHeader(http.StatusOK)
    }))
    defer srv.Close()

    h := &MailHandler{URL: srv.URL, Credentials: "secret"}
    if err := h.Handle(context.Background(), sampleEvent()); err != nil {
        t.Fatal(err)
    }
    if creds != "secret" {
        t.Fatalf("credentials header = %q", creds)
    }
    if got.Email != "guest@example.com" || got.TicketCode != "0ABC_DAY" || len(got.Seats) != 2 || got.Seats[0] != "H12" {
        t.Fatalf("unexpected body %+v", got)
    }
}

func TestMailHandlerRejectsFailureStatus(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusBadGateway)
    }))
    defer srv.Close()

    h := &MailHandler{URL: srv.URL}
    if err := h.Handle(context.Background(), sampleEvent()); err == nil {
        t.Fatal("expected error for 502")
    }
}

func TestConsumerHandleDecodes(t *testing.T) {
    var seen SeatsConfirmedEvent
    c := NewConsumer("", "", HandlerFunc(func(_ context.Context, ev SeatsConfirmedEvent) error {
        seen = ev
        return nil
    }), nil)
    body, _ := json.Marshal(sampleEvent())
    if err := c.handle(context.Background(), body); err != nil {
        t.Fatal(err)
    }
    if seen.TicketID != "t1" || len(seen.Seats) != 2 {
        t.Fatalf("unexpected event %+v", seen)
    }
    if err := c.handle(context.Background(), []byte("{")); err == nil {
        t.Fatal("expected unmarshal error")
    }
}

func TestHandlersStopAtFirstError(t *testing.T) {
    boom := errors.New("boom")
    calls := 0
    hs := Handlers{
        HandlerFunc(func(context.Context, SeatsConfirmedEvent) error { calls++; return boom }),
        HandlerFunc(func(context.Context, SeatsConfirmedEvent) error { calls++; return nil }),
    }
    if err := hs.Handle(context.Background(), sampleEvent()); !errors.Is(err, boom) {
        t.Fatalf("got %v", err)
    }
    if calls != 1 {
        t.Fatalf("calls = %d", calls)
    }
}
