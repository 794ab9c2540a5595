package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/repository"
	"github.com/iliyamo/event-seat-reservation/internal/utils"
)

const invalidCredentials = "Invalid email or ticket code"

// AuthService exchanges an email and ticket code for a customer token.
type AuthService struct {
	store  repository.Store
	secret string
	ttl    time.Duration
}

func NewAuthService(store repository.Store, secret string, ttl time.Duration) *AuthService {
	return &AuthService{store: store, secret: secret, ttl: ttl}
}

// Login returns a CUSTOMER token whose subject is the ticket id.  Unknown
// emails, unknown codes and codes of another customer all fail the same way.
func (s *AuthService) Login(ctx context.Context, email, code string) (utils.AccessToken, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return utils.AccessToken{}, repository.BadRequestf("Fields `email` and `ticketCode` required")
	}

	customer, err := s.store.GetCustomerByEmail(ctx, email)
	if err != nil {
		return utils.AccessToken{}, credentialsError(err)
	}
	ticket, err := s.store.GetTicketByCode(ctx, code)
	if err != nil {
		return utils.AccessToken{}, credentialsError(err)
	}
	owned := false
	for _, id := range customer.TicketIDs {
		if id == ticket.ID {
			owned = true
			break
		}
	}
	if !owned {
		return utils.AccessToken{}, repository.Unauthorizedf(invalidCredentials)
	}
	return utils.NewAccessToken(s.secret, ticket.ID, model.RoleCustomer, s.ttl)
}

func credentialsError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Unauthorizedf(invalidCredentials)
	}
	return err
}
