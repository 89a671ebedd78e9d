package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/saldo-pay/saldo/internal/identity"
	"github.com/saldo-pay/saldo/internal/request"
	"github.com/saldo-pay/saldo/internal/response"
)

// ClaimsKey is the fiber local under which auth middleware stores *Claims.
const ClaimsKey = "auth.claims"

// Handler exposes login and logout endpoints.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// TokenResponse is returned by both login endpoints.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func tokenResponse(issued Issued) TokenResponse {
	return TokenResponse{AccessToken: issued.Token, TokenType: "bearer", ExpiresIn: int64(issued.ExpiresIn.Seconds())}
}

// ClientLogin issues a client token.
func (h *Handler) ClientLogin(c *fiber.Ctx) error {
	issued, err := h.svc.ClientToken()
	if err != nil {
		h.logger.Error("client token issue failed", slog.Any("error", err))
		return response.NewError(http.StatusInternalServerError, "Could not create token")
	}
	return c.Status(http.StatusOK).JSON(tokenResponse(issued))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AdminLogin validates admin credentials and returns a token.
func (h *Handler) AdminLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.NewError(http.StatusBadRequest, "Invalid request body")
	}
	email, err := request.Email(req.Email)
	if err != nil {
		return err
	}
	if req.Password == "" {
		return response.Validation("The password field is required.")
	}

	issued, err := h.svc.AdminLogin(c.UserContext(), identity.Credentials{Email: email, Password: req.Password})
	switch {
	case err == nil:
		return response.OK(c, "Login successful", tokenResponse(issued))
	case errors.Is(err, identity.ErrInvalidCredentials):
		return response.NewError(http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, ErrNotAdmin):
		return response.NewError(http.StatusForbidden, "Unauthorized access")
	default:
		h.logger.Error("admin login failed", slog.Any("error", err))
		return response.NewError(http.StatusInternalServerError, "Login failed")
	}
}

// AdminLogout revokes the presented admin token.
func (h *Handler) AdminLogout(c *fiber.Ctx) error {
	claims, _ := c.Locals(ClaimsKey).(*Claims)
	if err := h.svc.Logout(c.UserContext(), claims); err != nil {
		h.logger.Error("admin logout failed", slog.Any("error", err))
		return response.NewError(http.StatusInternalServerError, "Logout failed")
	}
	return response.OK(c, "Successfully logged out", nil)
}
