package history

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/saldo-pay/saldo/internal/ledger"
	"github.com/saldo-pay/saldo/internal/money"
	"github.com/saldo-pay/saldo/internal/request"
	"github.com/saldo-pay/saldo/internal/response"
)

// AdminPerPage is the default page size of the admin dashboard.
const AdminPerPage = 10

// Handler lists transactions for clients and administrators.
type Handler struct {
	ledger *ledger.Service
	logger *slog.Logger
}

// NewHandler constructs a history handler.
func NewHandler(l *ledger.Service, logger *slog.Logger) *Handler {
	return &Handler{ledger: l, logger: logger}
}

// Item is one rendered transaction.
type Item struct {
	ID            string      `json:"id"`
	OrderID       string      `json:"order_id"`
	Type          string      `json:"type"`
	Amount        money.Money `json:"amount"`
	Description   string      `json:"description"`
	Status        string      `json:"status"`
	PaymentStatus string      `json:"payment_status"`
	Date          time.Time   `json:"date"`
}

// Pagination describes the position of a page in the full result.
type Pagination struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
	From        int `json:"from"`
	To          int `json:"to"`
}

// PageResponse is a page of rendered transactions.
type PageResponse struct {
	Transactions []Item     `json:"transactions"`
	Pagination   Pagination `json:"pagination"`
}

// List serves the client transaction history.
func (h *Handler) List(c *fiber.Ctx) error {
	f := ledger.Filter{OrderBy: ledger.ByTransactionDate}
	if raw := c.Query("type"); raw != "" {
		typ, err := ledger.ParseType(raw)
		if err != nil {
			return response.Validation("The selected type is invalid.")
		}
		f.Type = &typ
	}
	window, err := ledger.ParseWindow(c.Query("filter"))
	if err != nil {
		return response.Validation("The selected filter is invalid.")
	}
	f.Window = window
	if err := h.paging(c, &f); err != nil {
		return err
	}
	if f.PerPage > ledger.MaxPerPage {
		return response.Validation("The per page field must not be greater than 100.")
	}

	page, err := h.ledger.History(c.UserContext(), f)
	if err != nil {
		return h.queryError(err, "Failed to get transaction history")
	}
	return response.OK(c, "Transaction history retrieved successfully", render(page))
}

// AdminList serves the admin dashboard, newest records first, with an
// optional search over type and amount.
func (h *Handler) AdminList(c *fiber.Ctx) error {
	f := ledger.Filter{OrderBy: ledger.ByCreatedAt, Search: c.Query("search"), PerPage: AdminPerPage}
	if err := h.paging(c, &f); err != nil {
		return err
	}
	if f.PerPage > ledger.MaxPerPage {
		f.PerPage = ledger.MaxPerPage
	}

	page, err := h.ledger.History(c.UserContext(), f)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidFilter) {
			return response.Validation(err.Error())
		}
		h.logger.Error("admin transaction listing failed", slog.Any("error", err))
		return response.WithCode(http.StatusInternalServerError, "SERVER_ERROR", "An error occurred while processing your request")
	}
	return response.OK(c, "Success", render(page))
}

func (h *Handler) paging(c *fiber.Ctx, f *ledger.Filter) error {
	perPage, err := request.OptionalInt("per_page", c.Query("per_page"), 1)
	if err != nil {
		return err
	}
	if perPage > 0 {
		f.PerPage = perPage
	}
	page, err := request.OptionalInt("page", c.Query("page"), 1)
	if err != nil {
		return err
	}
	f.Page = page
	return nil
}

func (h *Handler) queryError(err error, message string) error {
	if errors.Is(err, ledger.ErrInvalidFilter) {
		return response.Validation(err.Error())
	}
	h.logger.Error("transaction query failed", slog.Any("error", err))
	return response.NewError(http.StatusInternalServerError, message)
}

func render(p ledger.Page) PageResponse {
	items := make([]Item, 0, len(p.Items))
	for _, tx := range p.Items {
		items = append(items, Item{
			ID:            tx.ID,
			OrderID:       tx.OrderID,
			Type:          tx.Type.Label(),
			Amount:        tx.Amount,
			Description:   tx.Description,
			Status:        tx.Status.String(),
			PaymentStatus: tx.PaymentStatus,
			Date:          tx.TransactionDate,
		})
	}
	return PageResponse{
		Transactions: items,
		Pagination: Pagination{
			CurrentPage: p.CurrentPage,
			PerPage:     p.PerPage,
			Total:       p.Total,
			LastPage:    p.LastPage,
			From:        p.From(),
			To:          p.To(),
		},
	}
}
