package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/repository"
)

// TicketSeat is a seat held by a ticket together with its check-in flag.
type TicketSeat struct {
	model.Seat
	CheckedIn bool `json:"checked_in"`
}

// CheckInService records arrivals at the venue entrance.
type CheckInService struct {
	store repository.Store
	log   *zap.Logger
	now   func() time.Time
}

func NewCheckInService(store repository.Store, log *zap.Logger) *CheckInService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CheckInService{store: store, log: log, now: time.Now}
}

// CheckIn marks seatIDs of the ticket identified by code as checked in and
// returns every seat of the ticket with its flag.
func (s *CheckInService) CheckIn(ctx context.Context, code string, seatIDs []string) ([]TicketSeat, error) {
	if len(seatIDs) == 0 {
		return nil, repository.BadRequestf("No seats to check in")
	}
	at := s.now().UTC()
	var ticketID string
	err := s.store.RunAtomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		ticket, err := tx.GetTicketByCode(ctx, code)
		if err != nil {
			return err
		}
		if !ticket.SeatConfirmed {
			return repository.BadRequestf("Seat need to be confirmed first")
		}
		ticketID = ticket.ID

		seats, err := tx.GetSeats(ctx, seatIDs)
		if err != nil {
			return err
		}
		for _, id := range seatIDs {
			seat, ok := seats[id]
			if !ok {
				return repository.NotFoundf("Seat %s does not exist", id)
			}
			if seat.ReservedBy != ticket.ID {
				return repository.Conflictf("Seat %s is not reserved by this ticket", id)
			}
		}
		checked, err := tx.CheckedIn(ctx, seatIDs)
		if err != nil {
			return err
		}
		for _, id := range seatIDs {
			if checked[id] {
				return repository.Conflictf("Seat %s is already checked in", id)
			}
		}
		return tx.MarkCheckedIn(ctx, seatIDs, ticket.ID, at)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("seats checked in", zap.String("ticket_id", ticketID), zap.Strings("seats", seatIDs))
	return ticketSeats(ctx, s.store, ticketID)
}

// ticketSeats lists the seats reserved by a ticket with their check-in flags.
func ticketSeats(ctx context.Context, store repository.Store, ticketID string) ([]TicketSeat, error) {
	seats, err := store.SeatsReservedBy(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	checked, err := store.CheckedInSeats(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	out := make([]TicketSeat, 0, len(seats))
	for _, seat := range seats {
		out = append(out, TicketSeat{Seat: seat, CheckedIn: checked[seat.ID]})
	}
	return out, nil
}
