package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/saldo-pay/saldo/internal/identity"
)

var (
	// ErrNotAdmin is returned when a valid account lacks admin rights.
	ErrNotAdmin = errors.New("not an admin")
	// ErrTokenRevoked is returned for a token that was logged out.
	ErrTokenRevoked = errors.New("token revoked")
)

// Service issues, verifies and revokes tokens.
type Service struct {
	users    *identity.Service
	tokens   *Tokens
	denylist Denylist
	logger   *slog.Logger
}

func NewService(users *identity.Service, tokens *Tokens, denylist Denylist, logger *slog.Logger) *Service {
	return &Service{users: users, tokens: tokens, denylist: denylist, logger: logger}
}

// ClientToken issues a wallet client token.
func (s *Service) ClientToken() (Issued, error) {
	return s.tokens.IssueClient()
}

// AdminLogin validates credentials and issues an admin token.
func (s *Service) AdminLogin(ctx context.Context, creds identity.Credentials) (Issued, error) {
	user, err := s.users.Authenticate(ctx, creds)
	if err != nil {
		return Issued{}, err
	}
	if !user.IsAdmin {
		return Issued{}, ErrNotAdmin
	}
	issued, err := s.tokens.IssueAdmin(user.ID, user.Email)
	if err != nil {
		return Issued{}, fmt.Errorf("sign admin token: %w", err)
	}
	s.logger.Info("admin signed in", slog.String("user_id", user.ID), slog.String("token_id", issued.ID))
	return issued, nil
}

// VerifyClient checks a client bearer token.
func (s *Service) VerifyClient(raw string) (*Claims, error) {
	return s.tokens.Parse(raw, KindClient)
}

// VerifyAdmin checks an admin bearer token, its revocation state and the
// account behind it.
func (s *Service) VerifyAdmin(ctx context.Context, raw string) (*Claims, identity.User, error) {
	claims, err := s.tokens.Parse(raw, KindAdmin)
	if err != nil {
		return nil, identity.User{}, err
	}
	revoked, err := s.denylist.Revoked(ctx, claims.ID)
	if err != nil {
		return nil, identity.User{}, fmt.Errorf("check denylist: %w", err)
	}
	if revoked {
		return nil, identity.User{}, ErrTokenRevoked
	}
	user, err := s.users.Get(ctx, claims.Subject)
	if err != nil {
		return nil, identity.User{}, err
	}
	if !user.IsAdmin {
		return nil, identity.User{}, ErrNotAdmin
	}
	return claims, user, nil
}

// Logout revokes the token until its natural expiry.
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ExpiresAt == nil {
		return ErrTokenInvalid
	}
	if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("revoke token %s: %w", claims.ID, err)
	}
	s.logger.Info("admin signed out", slog.String("user_id", claims.Subject), slog.String("token_id", claims.ID))
	return nil
}
