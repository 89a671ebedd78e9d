package withdrawal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/saldo-pay/saldo/internal/ledger"
	"github.com/saldo-pay/saldo/internal/money"
	"github.com/saldo-pay/saldo/internal/request"
	"github.com/saldo-pay/saldo/internal/response"
)

// Handler exposes the withdrawal endpoint.
type Handler struct {
	ledger *ledger.Service
	logger *slog.Logger
}

// NewHandler constructs a withdrawal handler.
func NewHandler(l *ledger.Service, logger *slog.Logger) *Handler {
	return &Handler{ledger: l, logger: logger}
}

type withdrawRequest struct {
	Amount json.Number `json:"amount"`
}

// Response is the body of a successful withdrawal.
type Response struct {
	OrderID    string      `json:"order_id"`
	Amount     money.Money `json:"amount"`
	NewAmount  money.Money `json:"new_amount"`
	Status     int         `json:"status"`
	StatusName string      `json:"status_name"`
}

// Withdraw debits the balance.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req withdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Validation("The given data was invalid.")
	}
	amount, err := request.Amount(req.Amount)
	if err != nil {
		return err
	}

	res, err := h.ledger.Withdraw(c.UserContext(), amount)
	if err != nil {
		// Insufficient funds is reported as a server error with the amounts involved.
		var insufficient *ledger.InsufficientFundsError
		if errors.As(err, &insufficient) {
			return response.NewError(http.StatusInternalServerError, fmt.Sprintf(
				"Insufficient balance. Available: %s, Required: %s", insufficient.Available, insufficient.Required))
		}
		h.logger.Error("withdrawal failed", slog.String("amount", amount.String()), slog.Any("error", err))
		return response.NewError(http.StatusInternalServerError, "Failed to withdrawal amount")
	}

	return response.OK(c, "Withdrawal successfully", Response{
		OrderID:    res.Transaction.OrderID,
		Amount:     res.Transaction.Amount,
		NewAmount:  res.NewBalance,
		Status:     res.Transaction.Status.CatalogID(),
		StatusName: res.Transaction.Status.String(),
	})
}
