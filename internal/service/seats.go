package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/event-seat-reservation/internal/feed"
	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/repository"
)

// seatIDPattern keeps ids usable as document field names and URL segments.
var seatIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Invalidator drops cached responses under a key prefix.
type Invalidator interface {
	Invalidate(ctx context.Context, prefix string) error
}

// MetadataCachePrefix is the route prefix of cached topology responses.
const MetadataCachePrefix = "/v1/seats/metadata"

// SeatService serves the venue topology and the admin seat operations.
type SeatService struct {
	store repository.Store
	feed  feed.Publisher
	cache Invalidator
	log   *zap.Logger
}

// NewSeatService wires the service.  pub and cache may be nil.
func NewSeatService(store repository.Store, pub feed.Publisher, cache Invalidator, log *zap.Logger) *SeatService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SeatService{store: store, feed: pub, cache: cache, log: log}
}

// Topology returns every seat ordered by id.
func (s *SeatService) Topology(ctx context.Context) ([]model.Seat, error) {
	return s.store.SeatTopology(ctx)
}

// Availability returns the current availability snapshot.
func (s *SeatService) Availability(ctx context.Context) (feed.Snapshot, error) {
	avail, err := s.store.Availability(ctx)
	if err != nil {
		return feed.Snapshot{}, err
	}
	return feed.NewSnapshot(avail), nil
}

// UpdatedSince returns seats modified after since.
func (s *SeatService) UpdatedSince(ctx context.Context, since time.Time) ([]model.Seat, error) {
	return s.store.SeatsUpdatedSince(ctx, since)
}

// TicketSeats returns the ticket identified by code and its seats with
// check-in flags.
func (s *SeatService) TicketSeats(ctx context.Context, code string) (*model.Ticket, []TicketSeat, error) {
	ticket, err := s.store.GetTicketByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	seats, err := ticketSeats(ctx, s.store, ticket.ID)
	if err != nil {
		return nil, nil, err
	}
	return ticket, seats, nil
}

// Upsert creates or updates seat topology.  Availability of existing seats
// is preserved; new seats start available.  Adjacency links must point to
// seats that exist either in the store or in the same request.
func (s *SeatService) Upsert(ctx context.Context, seats []model.Seat) error {
	if len(seats) == 0 {
		return repository.BadRequestf("No seats given")
	}
	existing, err := s.store.SeatTopology(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing)+len(seats))
	for _, seat := range existing {
		known[seat.ID] = true
	}
	batch := make(map[string]bool, len(seats))
	for i := range seats {
		seat := &seats[i]
		seat.ID = strings.TrimSpace(seat.ID)
		if !seatIDPattern.MatchString(seat.ID) {
			return repository.BadRequestf("Invalid seat id %q", seat.ID)
		}
		if batch[seat.ID] {
			return repository.BadRequestf("Seat %s is listed more than once", seat.ID)
		}
		if strings.TrimSpace(seat.Category) == "" {
			return repository.BadRequestf("Seat %s has no category", seat.ID)
		}
		if seat.Label == "" {
			seat.Label = seat.ID
		}
		batch[seat.ID] = true
		known[seat.ID] = true
	}
	for _, seat := range seats {
		for _, n := range seat.Neighbors() {
			if n == seat.ID {
				return repository.BadRequestf("Seat %s cannot neighbour itself", seat.ID)
			}
			if !known[n] {
				return repository.BadRequestf("Seat %s references unknown neighbour %s", seat.ID, n)
			}
		}
	}

	if err := s.store.UpsertSeats(ctx, seats); err != nil {
		return err
	}
	s.log.Info("seat topology upserted", zap.Int("count", len(seats)))

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, MetadataCachePrefix); err != nil {
			s.log.Warn("invalidate metadata cache failed", zap.Error(err))
		}
	}
	if s.feed != nil {
		if snap, err := s.Availability(ctx); err == nil {
			if err := s.feed.Publish(ctx, snap); err != nil {
				s.log.Warn("publish availability failed", zap.Error(err))
			}
		}
	}
	return nil
}
