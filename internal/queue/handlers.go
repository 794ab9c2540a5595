package queue

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "os"
    "path/filepath"
    "strings"
    "sync"
    "time"
)

// LogHandler appends every event to <Dir>/confirmations.log in a
// single-line, human-friendly format.
type LogHandler struct {
    Dir string
    mu  sync.Mutex
}

// Handle implements Handler.
func (h *LogHandler) Handle(_ context.Context, ev SeatsConfirmedEvent) error {
    dir := h.Dir
    if dir == "" {
        dir = "logs"
    }
    h.mu.Lock()
    defer h.mu.Unlock()

    if err := os.MkdirAll(dir, 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(filepath.Join(dir, "confirmations.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    labels := make([]string, 0, len(ev.Seats))
    for _, s := range ev.Seats {
        labels = append(labels, s.Label)
    }
    line := fmt.Sprintf("[%s] Seats confirmed | ticket_id=%s | ticket_code=%s | email=%q | seats=[%s]\n",
        ev.ConfirmedAt, ev.TicketID, ev.TicketCode, ev.Email, strings.Join(labels, ","))
    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// MailHandler asks the mail service to send the seat confirmation email.
type MailHandler struct {
    URL         string
    Credentials string
    Client      *http.Client
}

type mailRequest struct {
    Email      string   `json:"email"`
    TicketCode string   `json:"ticketCode"`
    Seats      []string `json:"seats"`
}

// Handle implements Handler.
func (h *MailHandler) Handle(ctx context.Context, ev SeatsConfirmedEvent) error {
    body, err := json.Marshal(mailRequest{Email: ev.Email, TicketCode: ev.TicketCode, Seats: ev.SeatIDs()})
    if err != nil {
        return err
    }
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
    if err != nil {
        return err
    }
    req.Header.Set("Content-Type", "application/json")
    if h.Credentials != "" {
        req.Header.Set("X-Internal-API-Credentials", h.Credentials)
    }

    client := h.Client
    if client == nil {
        client = &http.Client{Timeout: 10 * time.Second}
    }
    resp, err := client.Do(req)
    if err != nil {
        return fmt.Errorf("mail service: %w", err)
    }
    defer resp.Body.Close()
    if resp.StatusCode >= 300 {
        return fmt.Errorf("mail service: unexpected status %d", resp.StatusCode)
    }
    return nil
}
