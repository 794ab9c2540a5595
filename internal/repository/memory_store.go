package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

// MemoryStore keeps everything in process memory.  Transactions are
// optimistic: reads record the version they observed, writes are buffered,
// and commit validates every observed version before applying the writes.
// A transaction that lost a race is replayed.
type MemoryStore struct {
	mu        sync.RWMutex
	seats     map[string]model.Seat
	tickets   map[string]model.Ticket
	customers map[string]model.Customer
	avail     map[string]bool
	checkins  map[string]model.CheckIn
	versions  map[string]uint64

	// beforeCommit runs between fn and validation; tests use it to force
	// interleavings.
	beforeCommit func()
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seats:     make(map[string]model.Seat),
		tickets:   make(map[string]model.Ticket),
		customers: make(map[string]model.Customer),
		avail:     make(map[string]bool),
		checkins:  make(map[string]model.CheckIn),
		versions:  make(map[string]uint64),
	}
}

func seatKey(id string) string    { return "seat:" + id }
func ticketKey(id string) string  { return "ticket:" + id }
func checkinKey(id string) string { return "checkin:" + id }

// RunAtomic implements Store.
func (s *MemoryStore) RunAtomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tx := &memTx{
			s:       s,
			reads:   make(map[string]uint64),
			seats:   make(map[string]model.Seat),
			tickets: make(map[string]model.Ticket),
			avail:   make(map[string]bool),
			checks:  make(map[string]model.CheckIn),
		}
		err := fn(ctx, tx)
		if err == nil {
			if s.beforeCommit != nil {
				s.beforeCommit()
			}
			err = s.commit(tx)
		} else if !s.valid(tx) {
			// fn saw a torn view; its verdict does not count.
			err = errRetry
		}
		if !errors.Is(err, errRetry) {
			return err
		}
		if attempt >= maxAttempts {
			return Conflictf("too much contention, please retry")
		}
	}
}

func (s *MemoryStore) valid(tx *memTx) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validLocked(tx)
}

func (s *MemoryStore) validLocked(tx *memTx) bool {
	for k, v := range tx.reads {
		if s.versions[k] != v {
			return false
		}
	}
	return true
}

func (s *MemoryStore) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.validLocked(tx) {
		return errRetry
	}
	for id, seat := range tx.seats {
		s.seats[id] = seat
		s.versions[seatKey(id)]++
	}
	for id, t := range tx.tickets {
		s.tickets[id] = t
		s.versions[ticketKey(id)]++
	}
	for id, v := range tx.avail {
		s.avail[id] = v
	}
	for id, c := range tx.checks {
		s.checkins[id] = c
		s.versions[checkinKey(id)]++
	}
	return nil
}

// memTx is the buffered transaction of MemoryStore.
type memTx struct {
	s       *MemoryStore
	reads   map[string]uint64
	seats   map[string]model.Seat
	tickets map[string]model.Ticket
	avail   map[string]bool
	checks  map[string]model.CheckIn
}

func (tx *memTx) observe(key string) {
	if _, ok := tx.reads[key]; !ok {
		tx.reads[key] = tx.s.versions[key]
	}
}

func (tx *memTx) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	if t, ok := tx.tickets[id]; ok {
		return cloneTicket(t), nil
	}
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	tx.observe(ticketKey(id))
	t, ok := tx.s.tickets[id]
	if !ok {
		return nil, NotFoundf("Ticket not found")
	}
	return cloneTicket(t), nil
}

func (tx *memTx) GetTicketByCode(ctx context.Context, code string) (*model.Ticket, error) {
	tx.s.mu.RLock()
	var id string
	for _, t := range tx.s.tickets {
		if t.Code == code {
			id = t.ID
			break
		}
	}
	tx.s.mu.RUnlock()
	if id == "" {
		return nil, NotFoundf("Ticket not found")
	}
	return tx.GetTicket(ctx, id)
}

func (tx *memTx) GetSeats(ctx context.Context, ids []string) (map[string]model.Seat, error) {
	out := make(map[string]model.Seat, len(ids))
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	for _, id := range ids {
		if seat, ok := tx.seats[id]; ok {
			out[id] = seat
			continue
		}
		tx.observe(seatKey(id))
		if seat, ok := tx.s.seats[id]; ok {
			out[id] = seat
		}
	}
	return out, nil
}

func (tx *memTx) SeatsReservedBy(ctx context.Context, ticketID string) ([]model.Seat, error) {
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	var out []model.Seat
	for id, seat := range tx.s.seats {
		tx.observe(seatKey(id))
		if w, ok := tx.seats[id]; ok {
			seat = w
		}
		if seat.ReservedBy == ticketID {
			out = append(out, seat)
		}
	}
	sortSeats(out)
	return out, nil
}

func (tx *memTx) MarkSeatsReserved(ctx context.Context, ids []string, ticketID string, at time.Time) error {
	seats, err := tx.GetSeats(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		seat, ok := seats[id]
		if !ok {
			return NotFoundf("Seat %s does not exist", id)
		}
		seat.IsAvailable = false
		seat.ReservedBy = ticketID
		seat.UpdatedAt = at
		tx.seats[id] = seat
	}
	return nil
}

func (tx *memTx) SetAvailability(ctx context.Context, updates map[string]bool) error {
	for id, v := range updates {
		tx.avail[id] = v
	}
	return nil
}

func (tx *memTx) ConfirmTicket(ctx context.Context, ticketID string, at time.Time) error {
	t, err := tx.GetTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	t.SeatConfirmed = true
	t.ConfirmedAt = &at
	t.UpdatedAt = at
	tx.tickets[ticketID] = *t
	return nil
}

func (tx *memTx) CheckedIn(ctx context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	for _, id := range ids {
		if _, ok := tx.checks[id]; ok {
			out[id] = true
			continue
		}
		tx.observe(checkinKey(id))
		_, out[id] = tx.s.checkins[id]
	}
	return out, nil
}

func (tx *memTx) MarkCheckedIn(ctx context.Context, ids []string, ticketID string, at time.Time) error {
	for _, id := range ids {
		tx.checks[id] = model.CheckIn{SeatID: id, TicketID: ticketID, CheckedInAt: at}
	}
	return nil
}

// SeatTopology implements Store.
func (s *MemoryStore) SeatTopology(ctx context.Context) ([]model.Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Seat, 0, len(s.seats))
	for _, seat := range s.seats {
		out = append(out, seat)
	}
	sortSeats(out)
	return out, nil
}

// UpsertSeats writes topology fields.  Existing availability is preserved;
// new seats start available.
func (s *MemoryStore) UpsertSeats(ctx context.Context, seats []model.Seat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, seat := range seats {
		if cur, ok := s.seats[seat.ID]; ok {
			seat.IsAvailable = cur.IsAvailable
			seat.ReservedBy = cur.ReservedBy
		} else {
			seat.IsAvailable = true
			seat.ReservedBy = ""
			s.avail[seat.ID] = true
		}
		seat.UpdatedAt = now
		s.seats[seat.ID] = seat
		s.versions[seatKey(seat.ID)]++
	}
	return nil
}

// SeatsUpdatedSince implements Store.
func (s *MemoryStore) SeatsUpdatedSince(ctx context.Context, since time.Time) ([]model.Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Seat
	for _, seat := range s.seats {
		if seat.UpdatedAt.After(since) {
			out = append(out, seat)
		}
	}
	sortSeats(out)
	return out, nil
}

// SeatsReservedBy implements Store.
func (s *MemoryStore) SeatsReservedBy(ctx context.Context, ticketID string) ([]model.Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Seat
	for _, seat := range s.seats {
		if seat.ReservedBy == ticketID {
			out = append(out, seat)
		}
	}
	sortSeats(out)
	return out, nil
}

// Availability implements Store.
func (s *MemoryStore) Availability(ctx context.Context) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.avail))
	for id, v := range s.avail {
		out[id] = v
	}
	return out, nil
}

// CheckedInSeats implements Store.
func (s *MemoryStore) CheckedInSeats(ctx context.Context, ticketID string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool)
	for id, seat := range s.seats {
		if seat.ReservedBy == ticketID {
			_, out[id] = s.checkins[id]
		}
	}
	return out, nil
}

// GetTicket implements Store.
func (s *MemoryStore) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, NotFoundf("Ticket not found")
	}
	return cloneTicket(t), nil
}

// GetTicketByCode implements Store.
func (s *MemoryStore) GetTicketByCode(ctx context.Context, code string) (*model.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tickets {
		if t.Code == code {
			return cloneTicket(t), nil
		}
	}
	return nil, NotFoundf("Ticket not found")
}

// GetCustomerByEmail implements Store.
func (s *MemoryStore) GetCustomerByEmail(ctx context.Context, email string) (*model.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.customers {
		if strings.EqualFold(c.Email, email) {
			return cloneCustomer(c), nil
		}
	}
	return nil, NotFoundf("Customer not found")
}

// GetCustomerByTicketID implements Store.
func (s *MemoryStore) GetCustomerByTicketID(ctx context.Context, ticketID string) (*model.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.customers {
		for _, id := range c.TicketIDs {
			if id == ticketID {
				return cloneCustomer(c), nil
			}
		}
	}
	return nil, NotFoundf("Customer not found")
}

// CreateCustomer implements Store.
func (s *MemoryStore) CreateCustomer(ctx context.Context, c *model.Customer, t *model.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.customers {
		if strings.EqualFold(cur.Email, c.Email) {
			return Conflictf("Customer %s already exists", c.Email)
		}
	}
	for _, cur := range s.tickets {
		if cur.Code == t.Code {
			return Conflictf("Ticket code %s already in use", t.Code)
		}
	}
	s.tickets[t.ID] = *cloneTicket(*t)
	s.versions[ticketKey(t.ID)]++
	s.customers[c.ID] = *cloneCustomer(*c)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close(ctx context.Context) error { return nil }

func cloneTicket(t model.Ticket) *model.Ticket {
	q := make(map[string]int, len(t.Quotas))
	for k, v := range t.Quotas {
		q[k] = v
	}
	t.Quotas = q
	if t.ConfirmedAt != nil {
		at := *t.ConfirmedAt
		t.ConfirmedAt = &at
	}
	return &t
}

func cloneCustomer(c model.Customer) *model.Customer {
	c.TicketIDs = append([]string(nil), c.TicketIDs...)
	return &c
}

func sortSeats(seats []model.Seat) {
	sort.Slice(seats, func(i, j int) bool { return seats[i].ID < seats[j].ID })
}
