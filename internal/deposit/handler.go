package deposit

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/saldo-pay/saldo/internal/gateway"
	"github.com/saldo-pay/saldo/internal/ledger"
	"github.com/saldo-pay/saldo/internal/request"
	"github.com/saldo-pay/saldo/internal/response"
)

// Handler exposes HTTP endpoints for deposits and gateway notifications.
type Handler struct {
	service  *Service
	currency string
	logger   *slog.Logger
}

// NewHandler constructs a deposit handler.
func NewHandler(service *Service, currency string, logger *slog.Logger) *Handler {
	return &Handler{service: service, currency: currency, logger: logger}
}

// Balance returns the current amount.
func (h *Handler) Balance(c *fiber.Ctx) error {
	bal, err := h.service.Balance(c.UserContext())
	if err != nil {
		h.logger.Error("get amount failed", slog.Any("error", err))
		return response.NewError(http.StatusInternalServerError, "Failed to get amount")
	}
	return response.OK(c, "Amount retrieved successfully", BalanceResponse{
		Amount:    bal,
		Formatted: bal.Grouped(),
		Currency:  h.currency,
	})
}

// Create records a deposit, through the gateway when it is enabled.
func (h *Handler) Create(c *fiber.Ctx) error {
	in, err := h.parse(c)
	if err != nil {
		return err
	}
	result, err := h.service.Create(c.UserContext(), in)
	if err != nil {
		return h.depositError(in.OrderID, err)
	}
	return response.OK(c, "Amount added successfully", toDepositResponse(result))
}

// Manual records a direct deposit regardless of the gateway setting.
func (h *Handler) Manual(c *fiber.Ctx) error {
	in, err := h.parse(c)
	if err != nil {
		return err
	}
	result, err := h.service.Manual(c.UserContext(), in)
	if err != nil {
		return h.depositError(in.OrderID, err)
	}
	return response.OK(c, "Amount added successfully", toDepositResponse(result))
}

// Callback processes a payment notification from the gateway.
func (h *Handler) Callback(c *fiber.Ctx) error {
	var cb Callback
	if err := c.BodyParser(&cb); err != nil {
		return response.NewError(http.StatusBadRequest, "Invalid notification payload")
	}

	tx, err := h.service.HandleCallback(c.UserContext(), cb)
	switch {
	case err == nil:
		return response.OK(c, "Notification processed", CallbackResponse{
			OrderID:       tx.OrderID,
			Status:        tx.Status.String(),
			PaymentStatus: tx.PaymentStatus,
		})
	case errors.Is(err, gateway.ErrSignatureInvalid):
		return response.NewError(http.StatusForbidden, "Invalid signature")
	case errors.Is(err, ledger.ErrAlreadySettled):
		return response.OK(c, "Notification already processed", CallbackResponse{
			OrderID:       tx.OrderID,
			Status:        tx.Status.String(),
			PaymentStatus: tx.PaymentStatus,
		})
	case errors.Is(err, ledger.ErrAmountMismatch):
		return response.NewError(http.StatusBadRequest, "Gross amount does not match the transaction")
	case errors.Is(err, ledger.ErrNotFound):
		return response.NewError(http.StatusNotFound, "Transaction not found")
	default:
		h.logger.Error("payment notification failed", slog.String("order_id", cb.OrderID), slog.Any("error", err))
		return response.NewError(http.StatusInternalServerError, "Failed to process notification")
	}
}

// GenerateOrderID returns a fresh order id.
func (h *Handler) GenerateOrderID(c *fiber.Ctx) error {
	id, err := h.service.GenerateOrderID(c.UserContext())
	if err != nil {
		h.logger.Error("generate order id failed", slog.Any("error", err))
		return response.NewError(http.StatusInternalServerError, "Failed to generate order id")
	}
	return response.OK(c, "Order id generated successfully", OrderIDResponse{OrderID: id})
}

// TransactionStatus passes the gateway's status for an order through.
func (h *Handler) TransactionStatus(c *fiber.Ctx) error {
	orderID := c.Params("order_id")
	status, err := h.service.Status(c.UserContext(), orderID)
	switch {
	case err == nil:
		return response.OK(c, "Transaction status retrieved successfully", status)
	case errors.Is(err, gateway.ErrNotFound):
		return response.NewError(http.StatusNotFound, "Transaction not found")
	default:
		h.logger.Error("transaction status lookup failed", slog.String("order_id", orderID), slog.Any("error", err))
		return response.NewError(http.StatusInternalServerError, "Failed to get transaction status")
	}
}

func (h *Handler) parse(c *fiber.Ctx) (Input, error) {
	var req CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return Input{}, response.Validation("The given data was invalid.")
	}
	orderID, err := request.OrderID(req.OrderID)
	if err != nil {
		return Input{}, err
	}
	amount, err := request.Amount(req.Amount)
	if err != nil {
		return Input{}, err
	}
	ts, err := request.Timestamp(req.Timestamp, h.service.Location())
	if err != nil {
		return Input{}, err
	}
	return Input{OrderID: orderID, Amount: amount, Timestamp: ts}, nil
}

func (h *Handler) depositError(orderID string, err error) error {
	switch {
	case errors.Is(err, ErrFractionalAmount):
		return response.Validation("The amount field must be a whole number.")
	case errors.Is(err, ledger.ErrDuplicateOrderID):
		return response.NewError(http.StatusInternalServerError, "Failed to create transaction")
	case errors.Is(err, gateway.ErrGatewayUnavailable):
		return response.NewError(http.StatusInternalServerError, "Failed to create payment")
	default:
		h.logger.Error("add amount failed", slog.String("order_id", orderID), slog.Any("error", err))
		return response.NewError(http.StatusInternalServerError, "Failed to add amount")
	}
}
