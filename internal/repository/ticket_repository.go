package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

// TicketRepo reads and writes tickets and their category quotas.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo constructs a TicketRepo.
func NewTicketRepo(db *sql.DB) *TicketRepo {
	return &TicketRepo{db: db}
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *TicketRepo) get(ctx context.Context, q queryer, where string, arg any, lock bool) (*model.Ticket, error) {
	query := `SELECT id, code, seat_confirmed, confirmed_at, updated_at FROM tickets WHERE ` + where
	if lock {
		query += ` FOR UPDATE`
	}
	var (
		t           model.Ticket
		confirmedAt sql.NullTime
	)
	err := q.QueryRowContext(ctx, query, arg).Scan(&t.ID, &t.Code, &t.SeatConfirmed, &confirmedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NotFoundf("Ticket not found")
		}
		return nil, err
	}
	if confirmedAt.Valid {
		at := confirmedAt.Time
		t.ConfirmedAt = &at
	}
	t.Quotas, err = r.quotas(ctx, q, t.ID)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TicketRepo) quotas(ctx context.Context, q queryer, ticketID string) (map[string]int, error) {
	rows, err := q.QueryContext(ctx, `SELECT category, quota FROM ticket_quotas WHERE ticket_id = ?`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var (
			cat string
			n   int
		)
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		out[cat] = n
	}
	return out, rows.Err()
}

// GetByID loads a ticket without locking.
func (r *TicketRepo) GetByID(ctx context.Context, id string) (*model.Ticket, error) {
	return r.get(ctx, r.db, "id = ?", id, false)
}

// GetByCode loads a ticket by its login code.
func (r *TicketRepo) GetByCode(ctx context.Context, code string) (*model.Ticket, error) {
	return r.get(ctx, r.db, "code = ?", code, false)
}

// GetByIDTx loads and locks a ticket.
func (r *TicketRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (*model.Ticket, error) {
	return r.get(ctx, tx, "id = ?", id, true)
}

// GetByCodeTx loads and locks a ticket by code.
func (r *TicketRepo) GetByCodeTx(ctx context.Context, tx *sql.Tx, code string) (*model.Ticket, error) {
	return r.get(ctx, tx, "code = ?", code, true)
}

// CreateTx inserts a ticket and its quotas.
func (r *TicketRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Ticket) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tickets (id, code, seat_confirmed, updated_at) VALUES (?, ?, 0, ?)`,
		t.ID, t.Code, t.UpdatedAt.UTC()); err != nil {
		return err
	}
	for cat, n := range t.Quotas {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ticket_quotas (ticket_id, category, quota) VALUES (?, ?, ?)`,
			t.ID, cat, n); err != nil {
			return err
		}
	}
	return nil
}

// ConfirmTx performs the one-way seat_confirmed transition.
func (r *TicketRepo) ConfirmTx(ctx context.Context, tx *sql.Tx, id string, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE tickets SET seat_confirmed = 1, confirmed_at = ?, updated_at = ? WHERE id = ? AND seat_confirmed = 0`,
		at.UTC(), at.UTC(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Conflictf("Seats are already confirmed")
	}
	return nil
}
