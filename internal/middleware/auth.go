package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/saldo-pay/saldo/internal/auth"
	"github.com/saldo-pay/saldo/internal/identity"
	"github.com/saldo-pay/saldo/internal/response"
)

// AdminUserKey is the fiber local holding the authenticated identity.User.
const AdminUserKey = "auth.admin"

func bearerToken(c *fiber.Ctx) string {
	authz := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[len("Bearer "):])
}

// ClientAuth guards the wallet routes with a client token.
func ClientAuth(svc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := bearerToken(c)
		if raw == "" {
			return response.NewError(http.StatusUnauthorized, "Token not provided")
		}
		claims, err := svc.VerifyClient(raw)
		switch {
		case errors.Is(err, auth.ErrTokenMalformed):
			return response.NewError(http.StatusUnauthorized, "Invalid token format")
		case errors.Is(err, auth.ErrTokenExpired):
			return response.NewError(http.StatusUnauthorized, "Token expired")
		case err != nil:
			return response.NewError(http.StatusUnauthorized, "Invalid token")
		}
		c.Locals(auth.ClaimsKey, claims)
		return c.Next()
	}
}

// AdminAuth guards the admin area. Failures carry a machine-readable error_code.
func AdminAuth(svc *auth.Service, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := bearerToken(c)
		if raw == "" {
			return response.WithCode(http.StatusUnauthorized, "TOKEN_NOT_PROVIDED", "Token not provided")
		}
		claims, user, err := svc.VerifyAdmin(c.UserContext(), raw)
		switch {
		case err == nil:
		case errors.Is(err, auth.ErrTokenExpired):
			return response.WithCode(http.StatusUnauthorized, "TOKEN_EXPIRED", "Token has expired")
		case errors.Is(err, auth.ErrTokenMalformed), errors.Is(err, auth.ErrTokenInvalid), errors.Is(err, auth.ErrTokenRevoked):
			return response.WithCode(http.StatusUnauthorized, "TOKEN_INVALID", "Token is invalid")
		case errors.Is(err, identity.ErrUserNotFound):
			return response.WithCode(http.StatusNotFound, "USER_NOT_FOUND", "User not found")
		case errors.Is(err, auth.ErrNotAdmin):
			return response.WithCode(http.StatusForbidden, "NOT_ADMIN", "Unauthorized access. Admin only")
		default:
			logger.Error("admin authentication failed", slog.Any("error", err))
			return response.WithCode(http.StatusInternalServerError, "SERVER_ERROR", "An error occurred while processing your request")
		}
		c.Locals(auth.ClaimsKey, claims)
		c.Locals(AdminUserKey, user)
		return c.Next()
	}
}
