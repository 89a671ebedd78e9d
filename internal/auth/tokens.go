package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// Kind separates admin tokens from client tokens. A token of one kind is
// never accepted where the other is expected.
type Kind string

const (
	KindAdmin  Kind = "admin"
	KindClient Kind = "client"
)

const clientSubject = "client"

var (
	ErrTokenMalformed = errors.New("invalid token format")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenInvalid   = errors.New("invalid token")
)

// Claims is the payload of every token issued by the service.
type Claims struct {
	Kind  Kind   `json:"typ"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Issued is a freshly signed token.
type Issued struct {
	Token     string
	ID        string
	ExpiresIn time.Duration
}

// Tokens signs and verifies HS256 tokens.
type Tokens struct {
	secret    []byte
	issuer    string
	adminTTL  time.Duration
	clientTTL time.Duration
	now       func() time.Time
}

// NewTokens builds a token issuer.
func NewTokens(secret, issuer string, adminTTL, clientTTL time.Duration) *Tokens {
	return &Tokens{
		secret:    []byte(secret),
		issuer:    issuer,
		adminTTL:  adminTTL,
		clientTTL: clientTTL,
		now:       time.Now,
	}
}

// IssueAdmin signs a token for an administrator.
func (t *Tokens) IssueAdmin(userID, email string) (Issued, error) {
	return t.issue(KindAdmin, userID, email, t.adminTTL)
}

// IssueClient signs a wallet client token.
func (t *Tokens) IssueClient() (Issued, error) {
	return t.issue(KindClient, clientSubject, "", t.clientTTL)
}

func (t *Tokens) issue(kind Kind, subject, email string, ttl time.Duration) (Issued, error) {
	now := t.now()
	id := ulid.Make().String()
	claims := Claims{
		Kind:  kind,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    t.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return Issued{}, err
	}
	return Issued{Token: signed, ID: id, ExpiresIn: ttl}, nil
}

// Parse verifies raw and checks that it is a token of the expected kind.
func (t *Tokens) Parse(raw string, kind Kind) (*Claims, error) {
	claims := new(Claims)
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	token, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil || !token.Valid:
		return nil, ErrTokenInvalid
	}
	if claims.Kind != kind || claims.ID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
