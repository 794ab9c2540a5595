package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/repository"
	"github.com/iliyamo/event-seat-reservation/internal/utils"
)

// codeAttempts bounds regeneration of a ticket code that collided with an
// existing one.
const codeAttempts = 3

// CreateCustomerInput is the admin request to issue a ticket.
type CreateCustomerInput struct {
	Email string
	// OrderID supplies the last four characters of the ticket code.  When
	// empty the generated ticket id is used instead.
	OrderID string
	Quotas  map[string]int
}

// CustomerService issues customers and their tickets.
type CustomerService struct {
	store repository.Store
	loc   *time.Location
	log   *zap.Logger
	now   func() time.Time
}

// NewCustomerService returns a service generating ticket codes in the event's
// time zone loc (UTC when nil).
func NewCustomerService(store repository.Store, loc *time.Location, log *zap.Logger) *CustomerService {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CustomerService{store: store, loc: loc, log: log, now: time.Now}
}

// Create stores a new customer with one ticket.
func (s *CustomerService) Create(ctx context.Context, in CreateCustomerInput) (*model.Customer, *model.Ticket, error) {
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return nil, nil, err
	}
	total := 0
	quotas := make(map[string]int, len(in.Quotas))
	for cat, n := range in.Quotas {
		if strings.TrimSpace(cat) == "" {
			return nil, nil, repository.BadRequestf("Category name must not be empty")
		}
		if n < 0 {
			return nil, nil, repository.BadRequestf("Quota for %s must not be negative", cat)
		}
		quotas[cat] = n
		total += n
	}
	if total == 0 {
		return nil, nil, repository.BadRequestf("Ticket must entitle at least one seat")
	}

	for attempt := 1; ; attempt++ {
		now := s.now()
		ticketID := uuid.NewString()
		orderID := in.OrderID
		if orderID == "" {
			orderID = strings.ReplaceAll(ticketID, "-", "")
		}
		t := &model.Ticket{
			ID:        ticketID,
			Code:      utils.TicketCode(now, s.loc, orderID),
			Quotas:    quotas,
			UpdatedAt: now.UTC(),
		}
		c := &model.Customer{
			ID:        uuid.NewString(),
			Email:     email,
			TicketIDs: []string{ticketID},
			UpdatedAt: now.UTC(),
		}
		err := s.store.CreateCustomer(ctx, c, t)
		if err == nil {
			s.log.Info("customer created", zap.String("customer_id", c.ID), zap.String("ticket_id", t.ID))
			return c, t, nil
		}
		// A code collision is only worth retrying when the suffix is random.
		if !errors.Is(err, repository.ErrConflict) || in.OrderID != "" || attempt >= codeAttempts || s.emailTaken(ctx, email) {
			return nil, nil, err
		}
	}
}

func (s *CustomerService) emailTaken(ctx context.Context, email string) bool {
	_, err := s.store.GetCustomerByEmail(ctx, email)
	return err == nil
}

// NormalizeEmail trims and lower-cases an address after checking its syntax.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", repository.BadRequestf("Field `email` required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", repository.BadRequestf("Invalid email address")
	}
	return email, nil
}
