package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

// MySQL error numbers that mean the transaction may simply be replayed.
const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
	mysqlErrDuplicateEntry  = 1062
)

// SQLStore implements Store on MySQL.  Transactional reads take row locks
// (SELECT ... FOR UPDATE); deadlocks and lock wait timeouts are retried.
type SQLStore struct {
	db        *sql.DB
	Seats     *SeatRepo
	Tickets   *TicketRepo
	Customers *CustomerRepo
}

// NewSQLStore wraps an open MySQL handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:        db,
		Seats:     NewSeatRepo(db),
		Tickets:   NewTicketRepo(db),
		Customers: NewCustomerRepo(db),
	}
}

// DB exposes the underlying handle.
func (s *SQLStore) DB() *sql.DB { return s.db }

func retryable(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlErrDeadlock || me.Number == mysqlErrLockWaitTimeout
	}
	return false
}

func duplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlErrDuplicateEntry
}

// RunAtomic implements Store.
func (s *SQLStore) RunAtomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	for attempt := 1; ; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil || !retryable(err) {
			return err
		}
		if attempt >= maxAttempts {
			return Conflictf("too much contention, please retry")
		}
	}
}

func (s *SQLStore) runOnce(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, &sqlTx{tx: tx, s: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

type sqlTx struct {
	tx *sql.Tx
	s  *SQLStore
}

func (t *sqlTx) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	return t.s.Tickets.GetByIDTx(ctx, t.tx, id)
}

func (t *sqlTx) GetTicketByCode(ctx context.Context, code string) (*model.Ticket, error) {
	return t.s.Tickets.GetByCodeTx(ctx, t.tx, code)
}

func (t *sqlTx) GetSeats(ctx context.Context, ids []string) (map[string]model.Seat, error) {
	return t.s.Seats.GetByIDsTx(ctx, t.tx, ids)
}

func (t *sqlTx) SeatsReservedBy(ctx context.Context, ticketID string) ([]model.Seat, error) {
	return t.s.Seats.ListReservedByTx(ctx, t.tx, ticketID)
}

func (t *sqlTx) MarkSeatsReserved(ctx context.Context, ids []string, ticketID string, at time.Time) error {
	return t.s.Seats.MarkReservedTx(ctx, t.tx, ids, ticketID, at)
}

func (t *sqlTx) SetAvailability(ctx context.Context, updates map[string]bool) error {
	return t.s.Seats.SetAvailabilityTx(ctx, t.tx, updates, time.Now())
}

func (t *sqlTx) ConfirmTicket(ctx context.Context, ticketID string, at time.Time) error {
	return t.s.Tickets.ConfirmTx(ctx, t.tx, ticketID, at)
}

func (t *sqlTx) CheckedIn(ctx context.Context, ids []string) (map[string]bool, error) {
	return t.s.Seats.CheckedInTx(ctx, t.tx, ids)
}

func (t *sqlTx) MarkCheckedIn(ctx context.Context, ids []string, ticketID string, at time.Time) error {
	return t.s.Seats.MarkCheckedInTx(ctx, t.tx, ids, ticketID, at)
}

// SeatTopology implements Store.
func (s *SQLStore) SeatTopology(ctx context.Context) ([]model.Seat, error) {
	return s.Seats.List(ctx)
}

// UpsertSeats implements Store.
func (s *SQLStore) UpsertSeats(ctx context.Context, seats []model.Seat) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := s.Seats.UpsertTx(ctx, tx, seats, time.Now()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// SeatsUpdatedSince implements Store.
func (s *SQLStore) SeatsUpdatedSince(ctx context.Context, since time.Time) ([]model.Seat, error) {
	return s.Seats.ListUpdatedSince(ctx, since)
}

// SeatsReservedBy implements Store.
func (s *SQLStore) SeatsReservedBy(ctx context.Context, ticketID string) ([]model.Seat, error) {
	return s.Seats.ListReservedBy(ctx, ticketID)
}

// Availability implements Store.
func (s *SQLStore) Availability(ctx context.Context) (map[string]bool, error) {
	return s.Seats.Availability(ctx)
}

// CheckedInSeats implements Store.
func (s *SQLStore) CheckedInSeats(ctx context.Context, ticketID string) (map[string]bool, error) {
	return s.Seats.CheckedInByTicket(ctx, ticketID)
}

// GetTicket implements Store.
func (s *SQLStore) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	return s.Tickets.GetByID(ctx, id)
}

// GetTicketByCode implements Store.
func (s *SQLStore) GetTicketByCode(ctx context.Context, code string) (*model.Ticket, error) {
	return s.Tickets.GetByCode(ctx, code)
}

// GetCustomerByEmail implements Store.
func (s *SQLStore) GetCustomerByEmail(ctx context.Context, email string) (*model.Customer, error) {
	return s.Customers.GetByEmail(ctx, email)
}

// GetCustomerByTicketID implements Store.
func (s *SQLStore) GetCustomerByTicketID(ctx context.Context, ticketID string) (*model.Customer, error) {
	return s.Customers.GetByTicketID(ctx, ticketID)
}

// CreateCustomer implements Store.
func (s *SQLStore) CreateCustomer(ctx context.Context, c *model.Customer, t *model.Ticket) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := s.Tickets.CreateTx(ctx, tx, t); err != nil {
		if duplicate(err) {
			return Conflictf("Ticket code %s already in use", t.Code)
		}
		return err
	}
	if err := s.Customers.CreateTx(ctx, tx, c); err != nil {
		if duplicate(err) {
			return Conflictf("Customer %s already exists", c.Email)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Close implements Store.
func (s *SQLStore) Close(ctx context.Context) error { return s.db.Close() }
