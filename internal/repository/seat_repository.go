package repository // repository defines data access for seats

import (
	"context"      // context allows query cancellation and timeouts
	"database/sql" // sql provides DB primitives
	"strings"
	"time"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

const seatColumns = `id, label, level, category, loc_x, loc_y, loc_rot, not_selectable,
	left_id, right_id, is_available, reserved_by, updated_at`

// SeatRepo provides methods to work with seats in MySQL.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSeat(sc rowScanner) (model.Seat, error) {
	var (
		s                       model.Seat
		left, right, reservedBy sql.NullString
	)
	err := sc.Scan(&s.ID, &s.Label, &s.Level, &s.Category,
		&s.Location.X, &s.Location.Y, &s.Location.Rot, &s.NotSelectable,
		&left, &right, &s.IsAvailable, &reservedBy, &s.UpdatedAt)
	if err != nil {
		return s, err
	}
	s.LeftID = left.String
	s.RightID = right.String
	s.ReservedBy = reservedBy.String
	return s, nil
}

func collectSeats(rows *sql.Rows) ([]model.Seat, error) {
	defer rows.Close()
	var out []model.Seat
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// List returns every seat ordered by id.
func (r *SeatRepo) List(ctx context.Context) ([]model.Seat, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+seatColumns+` FROM seats ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collectSeats(rows)
}

// ListUpdatedSince returns seats modified strictly after since.
func (r *SeatRepo) ListUpdatedSince(ctx context.Context, since time.Time) ([]model.Seat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+seatColumns+` FROM seats WHERE updated_at > ? ORDER BY id`, since.UTC())
	if err != nil {
		return nil, err
	}
	return collectSeats(rows)
}

// ListReservedBy returns the seats held by a ticket.
func (r *SeatRepo) ListReservedBy(ctx context.Context, ticketID string) ([]model.Seat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+seatColumns+` FROM seats WHERE reserved_by = ? ORDER BY id`, ticketID)
	if err != nil {
		return nil, err
	}
	return collectSeats(rows)
}

// GetByIDsTx locks and returns the requested seats.  Rows are locked in id
// order so concurrent reservations acquire locks consistently.
func (r *SeatRepo) GetByIDsTx(ctx context.Context, tx *sql.Tx, ids []string) (map[string]model.Seat, error) {
	out := make(map[string]model.Seat, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q := `SELECT ` + seatColumns + ` FROM seats WHERE id IN (` + placeholders(len(ids)) + `) ORDER BY id FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, stringArgs(ids)...)
	if err != nil {
		return nil, err
	}
	seats, err := collectSeats(rows)
	if err != nil {
		return nil, err
	}
	for _, s := range seats {
		out[s.ID] = s
	}
	return out, nil
}

// ListReservedByTx locks and returns the seats held by a ticket.
func (r *SeatRepo) ListReservedByTx(ctx context.Context, tx *sql.Tx, ticketID string) ([]model.Seat, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+seatColumns+` FROM seats WHERE reserved_by = ? ORDER BY id FOR UPDATE`, ticketID)
	if err != nil {
		return nil, err
	}
	return collectSeats(rows)
}

// MarkReservedTx flips seats to unavailable and records the holder.
func (r *SeatRepo) MarkReservedTx(ctx context.Context, tx *sql.Tx, ids []string, ticketID string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	args := append([]any{ticketID, at.UTC()}, stringArgs(ids)...)
	_, err := tx.ExecContext(ctx,
		`UPDATE seats SET is_available = 0, reserved_by = ?, updated_at = ? WHERE id IN (`+placeholders(len(ids))+`)`,
		args...)
	return err
}

// UpsertTx writes topology columns.  Availability columns of existing rows
// are left untouched and the availability projection gets a row per new
// seat.
func (r *SeatRepo) UpsertTx(ctx context.Context, tx *sql.Tx, seats []model.Seat, at time.Time) error {
	if len(seats) == 0 {
		return nil
	}
	query := `INSERT INTO seats (id, label, level, category, loc_x, loc_y, loc_rot, not_selectable, left_id, right_id, updated_at) VALUES `
	args := make([]any, 0, len(seats)*11)
	for i, s := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
		args = append(args, s.ID, s.Label, s.Level, s.Category, s.Location.X, s.Location.Y, s.Location.Rot,
			s.NotSelectable, nullString(s.LeftID), nullString(s.RightID), at.UTC())
	}
	query += ` ON DUPLICATE KEY UPDATE label = VALUES(label), level = VALUES(level), category = VALUES(category),
		loc_x = VALUES(loc_x), loc_y = VALUES(loc_y), loc_rot = VALUES(loc_rot),
		not_selectable = VALUES(not_selectable), left_id = VALUES(left_id), right_id = VALUES(right_id),
		updated_at = VALUES(updated_at)`
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}

	avail := `INSERT IGNORE INTO seat_availability (seat_id, is_available, updated_at) VALUES `
	aargs := make([]any, 0, len(seats)*2)
	for i, s := range seats {
		if i > 0 {
			avail += ","
		}
		avail += "(?, 1, ?)"
		aargs = append(aargs, s.ID, at.UTC())
	}
	_, err := tx.ExecContext(ctx, avail, aargs...)
	return err
}

// Availability reads the projection consumed by the real-time feed.
func (r *SeatRepo) Availability(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT seat_id, is_available FROM seat_availability`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var (
			id string
			ok bool
		)
		if err := rows.Scan(&id, &ok); err != nil {
			return nil, err
		}
		out[id] = ok
	}
	return out, rows.Err()
}

// SetAvailabilityTx upserts projection rows.
func (r *SeatRepo) SetAvailabilityTx(ctx context.Context, tx *sql.Tx, updates map[string]bool, at time.Time) error {
	if len(updates) == 0 {
		return nil
	}
	query := `INSERT INTO seat_availability (seat_id, is_available, updated_at) VALUES `
	args := make([]any, 0, len(updates)*3)
	i := 0
	for id, v := range updates {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, id, v, at.UTC())
		i++
	}
	query += ` ON DUPLICATE KEY UPDATE is_available = VALUES(is_available), updated_at = VALUES(updated_at)`
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// CheckedInTx locks check-in rows of the given seats.
func (r *SeatRepo) CheckedInTx(ctx context.Context, tx *sql.Tx, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = false
	}
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT seat_id FROM seat_checkins WHERE seat_id IN (`+placeholders(len(ids))+`) FOR UPDATE`,
		stringArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// MarkCheckedInTx inserts check-in rows.
func (r *SeatRepo) MarkCheckedInTx(ctx context.Context, tx *sql.Tx, ids []string, ticketID string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query := `INSERT INTO seat_checkins (seat_id, ticket_id, checked_in_at) VALUES `
	args := make([]any, 0, len(ids)*3)
	for i, id := range ids {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, id, ticketID, at.UTC())
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// CheckedInByTicket reports the check-in flag of every seat held by a ticket.
func (r *SeatRepo) CheckedInByTicket(ctx context.Context, ticketID string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.id, c.seat_id IS NOT NULL
		   FROM seats s
		   LEFT JOIN seat_checkins c ON c.seat_id = s.id
		  WHERE s.reserved_by = ?`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var (
			id      string
			checked bool
		)
		if err := rows.Scan(&id, &checked); err != nil {
			return nil, err
		}
		out[id] = checked
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
