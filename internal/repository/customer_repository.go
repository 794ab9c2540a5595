package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

// CustomerRepo stores customers and the tickets they own.
type CustomerRepo struct {
	db *sql.DB
}

// NewCustomerRepo constructs a CustomerRepo.
func NewCustomerRepo(db *sql.DB) *CustomerRepo {
	return &CustomerRepo{db: db}
}

func (r *CustomerRepo) get(ctx context.Context, query string, arg any) (*model.Customer, error) {
	var c model.Customer
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&c.ID, &c.Email, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NotFoundf("Customer not found")
		}
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT ticket_id FROM customer_tickets WHERE customer_id = ? ORDER BY ticket_id`, c.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		c.TicketIDs = append(c.TicketIDs, id)
	}
	return &c, rows.Err()
}

// GetByEmail finds a customer by email (case-insensitive collation).
func (r *CustomerRepo) GetByEmail(ctx context.Context, email string) (*model.Customer, error) {
	return r.get(ctx, `SELECT id, email, updated_at FROM customers WHERE email = ?`, email)
}

// GetByTicketID finds the owner of a ticket.
func (r *CustomerRepo) GetByTicketID(ctx context.Context, ticketID string) (*model.Customer, error) {
	return r.get(ctx, `SELECT c.id, c.email, c.updated_at
	                     FROM customers c
	                     JOIN customer_tickets ct ON ct.customer_id = c.id
	                    WHERE ct.ticket_id = ?`, ticketID)
}

// CreateTx inserts a customer and links its tickets.
func (r *CustomerRepo) CreateTx(ctx context.Context, tx *sql.Tx, c *model.Customer) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO customers (id, email, updated_at) VALUES (?, ?, ?)`,
		c.ID, c.Email, c.UpdatedAt.UTC()); err != nil {
		return err
	}
	for _, tid := range c.TicketIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO customer_tickets (customer_id, ticket_id) VALUES (?, ?)`, c.ID, tid); err != nil {
			return err
		}
	}
	return nil
}
