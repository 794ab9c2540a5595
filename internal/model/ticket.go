package model

import "time"

// Ticket is an entitlement to reserve a fixed number of seats per category.
// SeatConfirmed only ever moves from false to true.
type Ticket struct {
    ID            string         `json:"id" bson:"_id"`
    Code          string         `json:"code" bson:"code"`
    Quotas        map[string]int `json:"quotas" bson:"quotas"`
    SeatConfirmed bool           `json:"seat_confirmed" bson:"seatConfirmed"`
    ConfirmedAt   *time.Time     `json:"confirmed_at,omitempty" bson:"confirmedAt,omitempty"`
    UpdatedAt     time.Time      `json:"updated_at" bson:"updatedAt"`
}

// Quota returns the number of seats of a category the ticket may hold.
// Categories without an entry have a quota of zero.
func (t Ticket) Quota(category string) int {
    return t.Quotas[category]
}

// Customer owns one or more tickets and is identified by email.
type Customer struct {
    ID        string    `json:"id" bson:"_id"`
    Email     string    `json:"email" bson:"email"`
    TicketIDs []string  `json:"ticket_ids" bson:"ticketIds"`
    UpdatedAt time.Time `json:"updated_at" bson:"updatedAt"`
}

// Roles carried in the JWT role claim.
const (
    RoleCustomer = "CUSTOMER"
    RoleAdmin    = "ADMIN"
)
