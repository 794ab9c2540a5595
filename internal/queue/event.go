// Package queue defines message payloads exchanged over the message broker.
package queue

// ConfirmedQueueName is the durable queue carrying SeatsConfirmedEvent.
const ConfirmedQueueName = "seats.confirmed"

// SeatsConfirmedEvent is published once a ticket's seats have been committed.
// It contains enough information for downstream consumers to send the
// confirmation email without querying the primary store.
type SeatsConfirmedEvent struct {
    TicketID    string          `json:"ticket_id"`
    TicketCode  string          `json:"ticket_code"`
    Email       string          `json:"email"`
    Seats       []ConfirmedSeat `json:"seats"`
    ConfirmedAt string          `json:"confirmed_at"`
}

// ConfirmedSeat is one committed seat as shown to the customer.
type ConfirmedSeat struct {
    ID       string `json:"id"`
    Label    string `json:"label"`
    Level    string `json:"level"`
    Category string `json:"category"`
}

// SeatIDs returns the ids of the confirmed seats in event order.
func (e SeatsConfirmedEvent) SeatIDs() []string {
    ids := make([]string, 0, len(e.Seats))
    for _, s := range e.Seats {
        ids = append(ids, s.ID)
    }
    return ids
}
