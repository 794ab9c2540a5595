package repository

import (
	"context"
	"time"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

// Tx exposes the reads and writes available inside RunAtomic.  Reads observe
// writes made earlier in the same transaction.
type Tx interface {
	GetTicket(ctx context.Context, id string) (*model.Ticket, error)
	GetTicketByCode(ctx context.Context, code string) (*model.Ticket, error)
	// GetSeats returns the requested seats keyed by id; unknown ids are
	// simply absent from the result.
	GetSeats(ctx context.Context, ids []string) (map[string]model.Seat, error)
	SeatsReservedBy(ctx context.Context, ticketID string) ([]model.Seat, error)
	MarkSeatsReserved(ctx context.Context, ids []string, ticketID string, at time.Time) error
	// SetAvailability updates the availability projection read by the feed.
	SetAvailability(ctx context.Context, updates map[string]bool) error
	ConfirmTicket(ctx context.Context, ticketID string, at time.Time) error
	CheckedIn(ctx context.Context, ids []string) (map[string]bool, error)
	MarkCheckedIn(ctx context.Context, ids []string, ticketID string, at time.Time) error
}

// Store is the authoritative seat/ticket/customer storage.
type Store interface {
	// RunAtomic executes fn in a transaction.  Contention is retried
	// transparently by replaying fn; fn must therefore be free of side
	// effects outside tx.  Errors returned by fn abort the transaction and
	// are returned unchanged.
	RunAtomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	SeatTopology(ctx context.Context) ([]model.Seat, error)
	UpsertSeats(ctx context.Context, seats []model.Seat) error
	SeatsUpdatedSince(ctx context.Context, since time.Time) ([]model.Seat, error)
	SeatsReservedBy(ctx context.Context, ticketID string) ([]model.Seat, error)
	// Availability reads the projection maintained by SetAvailability.
	Availability(ctx context.Context) (map[string]bool, error)
	CheckedInSeats(ctx context.Context, ticketID string) (map[string]bool, error)

	GetTicket(ctx context.Context, id string) (*model.Ticket, error)
	GetTicketByCode(ctx context.Context, code string) (*model.Ticket, error)
	GetCustomerByEmail(ctx context.Context, email string) (*model.Customer, error)
	GetCustomerByTicketID(ctx context.Context, ticketID string) (*model.Customer, error)
	// CreateCustomer stores a customer together with its first ticket.
	CreateCustomer(ctx context.Context, c *model.Customer, t *model.Ticket) error

	Close(ctx context.Context) error
}
