package service

import (
	"context"
	"errors"

	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/repository"
)

// Profile is what a logged-in customer sees about their ticket.
type Profile struct {
	Email         string         `json:"email"`
	TicketCode    string         `json:"ticket_code"`
	Quotas        map[string]int `json:"quotas"`
	SeatConfirmed bool           `json:"seat_confirmed"`
	Seats         []model.Seat   `json:"seats"`
}

type ProfileService struct {
	store repository.Store
}

func NewProfileService(store repository.Store) *ProfileService {
	return &ProfileService{store: store}
}

// Profile loads the profile of the ticket holder.
func (s *ProfileService) Profile(ctx context.Context, ticketID string) (*Profile, error) {
	customer, err := s.store.GetCustomerByTicketID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.NotFoundf("TicketId Not Found")
		}
		return nil, err
	}
	ticket, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	seats, err := s.store.SeatsReservedBy(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if seats == nil {
		seats = []model.Seat{}
	}
	return &Profile{
		Email:         customer.Email,
		TicketCode:    ticket.Code,
		Quotas:        ticket.Quotas,
		SeatConfirmed: ticket.SeatConfirmed,
		Seats:         seats,
	}, nil
}
