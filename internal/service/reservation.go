// Package service implements the server side operations of the seat
// reservation system on top of repository.Store.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/event-seat-reservation/internal/feed"
	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/queue"
	"github.com/iliyamo/event-seat-reservation/internal/repository"
	"github.com/iliyamo/event-seat-reservation/internal/seating"
)

// notifyTimeout bounds the confirmation publish that follows a commit.
const notifyTimeout = 5 * time.Second

// Notifier emits the confirmation of a committed reservation.
// *queue.Publisher implements it.
type Notifier interface {
	PublishSeatsConfirmed(ctx context.Context, ev queue.SeatsConfirmedEvent) error
}

// ReserveResult describes a committed reservation.
type ReserveResult struct {
	TicketID    string       `json:"ticket_id"`
	Seats       []model.Seat `json:"seats"`
	ConfirmedAt time.Time    `json:"confirmed_at"`
	// Notified is false when the confirmation could not be handed to the
	// notification queue.  The reservation stands regardless.
	Notified bool `json:"notified"`
}

// ReservationService commits a ticket's seat selection.
type ReservationService struct {
	store    repository.Store
	feed     feed.Publisher
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

// NewReservationService wires the committer.  pub and notifier may be nil.
func NewReservationService(store repository.Store, pub feed.Publisher, notifier Notifier, log *zap.Logger) *ReservationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReservationService{store: store, feed: pub, notifier: notifier, log: log, now: time.Now}
}

// Reserve validates seatIDs against the authoritative state and commits
// them for ticketID in one transaction.  Either every seat is reserved and
// the ticket confirmed, or nothing changes.
func (s *ReservationService) Reserve(ctx context.Context, ticketID string, seatIDs []string) (*ReserveResult, error) {
	if len(seatIDs) == 0 {
		return nil, repository.BadRequestf("No seats selected")
	}
	seen := make(map[string]bool, len(seatIDs))
	for _, id := range seatIDs {
		if id == "" {
			return nil, repository.BadRequestf("Seat id must not be empty")
		}
		if seen[id] {
			return nil, repository.BadRequestf("Seat %s is listed more than once", id)
		}
		seen[id] = true
	}

	at := s.now().UTC()
	var reserved []model.Seat
	err := s.store.RunAtomic(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		reserved, err = commitSeats(ctx, tx, ticketID, seatIDs, at)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("reservation committed", zap.String("ticket_id", ticketID), zap.Strings("seats", seatIDs))

	s.publishAvailability(ctx)
	res := &ReserveResult{TicketID: ticketID, Seats: reserved, ConfirmedAt: at}
	res.Notified = s.notify(ctx, ticketID, reserved, at)
	return res, nil
}

// commitSeats runs inside RunAtomic and may be replayed.
func commitSeats(ctx context.Context, tx repository.Tx, ticketID string, ids []string, at time.Time) ([]model.Seat, error) {
	ticket, err := tx.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.SeatConfirmed {
		return nil, repository.Conflictf("Seats are already confirmed")
	}

	seats, err := tx.GetSeats(ctx, ids)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, id := range ids {
		seat, ok := seats[id]
		if !ok {
			return nil, repository.NotFoundf("Seat %s does not exist", id)
		}
		if seat.NotSelectable {
			return nil, repository.BadRequestf("Seat %s is not selectable", id)
		}
		if !seat.IsAvailable && seat.ReservedBy != ticketID {
			return nil, repository.Conflictf("Seat %s is not available", id)
		}
		if seat.IsAvailable {
			counts[seat.Category]++
		}
	}

	// Seats pre-filled for this ticket count towards its quota.
	prefilled, err := tx.SeatsReservedBy(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	for _, seat := range prefilled {
		counts[seat.Category]++
	}
	if !seating.QuotaMatches(ticket.Quotas, counts) {
		return nil, repository.Conflictf("Ticket category counts do not match actual reserved seats (expected: %s, got: %s)",
			seating.FormatCounts(expected(ticket.Quotas, counts)), seating.FormatCounts(counts))
	}

	topo, err := neighborhood(ctx, tx, seats, ids)
	if err != nil {
		return nil, err
	}
	occupied := func(id string) bool {
		seat, ok := topo[id]
		return !ok || !seat.IsAvailable
	}
	if isolated := seating.WouldIsolate(topo, ids, occupied); len(isolated) > 0 {
		return nil, repository.Conflictf("Seat %s will be isolated if the reservation is made", isolated[0])
	}

	if err := tx.MarkSeatsReserved(ctx, ids, ticketID, at); err != nil {
		return nil, err
	}
	updates := make(map[string]bool, len(ids))
	for _, id := range ids {
		updates[id] = false
	}
	if err := tx.SetAvailability(ctx, updates); err != nil {
		return nil, err
	}
	if err := tx.ConfirmTicket(ctx, ticketID, at); err != nil {
		return nil, err
	}

	out := make([]model.Seat, 0, len(ids))
	for _, id := range ids {
		seat := seats[id]
		seat.IsAvailable = false
		seat.ReservedBy = ticketID
		seat.UpdatedAt = at
		out = append(out, seat)
	}
	return out, nil
}

// neighborhood loads the candidates' neighbours and their neighbours so the
// isolation check sees the committed state around every candidate.  A
// declared neighbour that does not exist is an error; a missing seat two
// hops away counts as occupied.
func neighborhood(ctx context.Context, tx repository.Tx, candidates map[string]model.Seat, ids []string) (seating.Topology, error) {
	topo := make(seating.Topology, len(candidates)*3)
	for id, seat := range candidates {
		topo[id] = seat
	}

	var first []string
	for _, id := range ids {
		for _, n := range candidates[id].Neighbors() {
			if _, ok := topo[n]; !ok {
				first = append(first, n)
			}
		}
	}
	if len(first) > 0 {
		loaded, err := tx.GetSeats(ctx, first)
		if err != nil {
			return nil, err
		}
		for _, id := range first {
			seat, ok := loaded[id]
			if !ok {
				return nil, repository.NotFoundf("Neighbour seat %s does not exist", id)
			}
			topo[id] = seat
		}
	}

	var second []string
	for _, id := range first {
		for _, n := range topo[id].Neighbors() {
			if _, ok := topo[n]; !ok {
				second = append(second, n)
			}
		}
	}
	if len(second) > 0 {
		loaded, err := tx.GetSeats(ctx, second)
		if err != nil {
			return nil, err
		}
		for id, seat := range loaded {
			topo[id] = seat
		}
	}
	return topo, nil
}

// expected lists every quota category, including those with zero counts, so
// the error message shows the full entitlement.
func expected(quotas, counts map[string]int) map[string]int {
	out := make(map[string]int, len(quotas)+len(counts))
	for cat := range counts {
		out[cat] = 0
	}
	for cat, n := range quotas {
		out[cat] = n
	}
	return out
}

func (s *ReservationService) publishAvailability(ctx context.Context) {
	if s.feed == nil {
		return
	}
	avail, err := s.store.Availability(ctx)
	if err != nil {
		s.log.Warn("load availability for feed failed", zap.Error(err))
		return
	}
	if err := s.feed.Publish(ctx, feed.NewSnapshot(avail)); err != nil {
		s.log.Warn("publish availability failed", zap.Error(err))
	}
}

func (s *ReservationService) notify(ctx context.Context, ticketID string, seats []model.Seat, at time.Time) bool {
	if s.notifier == nil {
		return false
	}
	ev := queue.SeatsConfirmedEvent{
		TicketID:    ticketID,
		ConfirmedAt: at.Format(time.RFC3339),
	}
	if t, err := s.store.GetTicket(ctx, ticketID); err == nil {
		ev.TicketCode = t.Code
	}
	if c, err := s.store.GetCustomerByTicketID(ctx, ticketID); err == nil {
		ev.Email = c.Email
	} else {
		s.log.Warn("confirmation without customer email", zap.String("ticket_id", ticketID), zap.Error(err))
	}
	for _, seat := range seats {
		ev.Seats = append(ev.Seats, queue.ConfirmedSeat{ID: seat.ID, Label: seat.Label, Level: seat.Level, Category: seat.Category})
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := s.notifier.PublishSeatsConfirmed(ctx, ev); err != nil {
		s.log.Error("confirmation notification failed", zap.String("ticket_id", ticketID), zap.Error(err))
		return false
	}
	return true
}
