package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/saldo-pay/saldo/internal/logging"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := NewService(NewMemoryRepository(), logging.Discard())
	ctx := context.Background()

	user, err := svc.Register(ctx, "Ops", Credentials{Email: "Ops@Example.com", Password: "s3cret-pass"}, true)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	authed, err := svc.Authenticate(ctx, Credentials{Email: "ops@example.com", Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if authed.ID != user.ID || !authed.IsAdmin {
		t.Fatalf("unexpected user %+v", authed)
	}

	found, err := svc.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found.Email != "ops@example.com" {
		t.Fatalf("expected normalised email, got %s", found.Email)
	}
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	svc := NewService(NewMemoryRepository(), logging.Discard())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Ops", Credentials{Email: "ops@example.com", Password: "s3cret-pass"}, true); err != nil {
		t.Fatalf("register: %v", err)
	}

	cases := []Credentials{
		{Email: "ops@example.com", Password: "wrong-pass"},
		{Email: "nobody@example.com", Password: "s3cret-pass"},
	}
	for _, creds := range cases {
		if _, err := svc.Authenticate(ctx, creds); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected invalid credentials for %s, got %v", creds.Email, err)
		}
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc := NewService(NewMemoryRepository(), logging.Discard())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "A", Credentials{Email: "a@example.com", Password: "password-1"}, false); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, "B", Credentials{Email: "A@example.com", Password: "password-2"}, false); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, logging.Discard())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := svc.EnsureAdmin(ctx, "admin@example.com", "admin-password"); err != nil {
			t.Fatalf("ensure admin #%d: %v", i, err)
		}
	}
	user, err := repo.FindByEmail(ctx, "admin@example.com")
	if err != nil {
		t.Fatalf("find admin: %v", err)
	}
	if !user.IsAdmin {
		t.Fatalf("seeded user must be an admin")
	}

	if err := svc.EnsureAdmin(ctx, "", ""); err != nil {
		t.Fatalf("empty config should be a no-op: %v", err)
	}
}
