package deposit

import (
	"encoding/json"

	"github.com/saldo-pay/saldo/internal/money"
)

// CreateRequest captures a deposit submitted by the client.
type CreateRequest struct {
	OrderID   string      `json:"order_id"`
	Amount    json.Number `json:"amount"`
	Timestamp string      `json:"timestamp"`
}

// BalanceResponse reports the current balance.
type BalanceResponse struct {
	Amount    money.Money `json:"amount"`
	Formatted string      `json:"formatted"`
	Currency  string      `json:"currency"`
}

// DepositResponse represents the API response for a recorded deposit.
type DepositResponse struct {
	OrderID     string      `json:"order_id"`
	Amount      money.Money `json:"amount"`
	Status      int         `json:"status"`
	StatusName  string      `json:"status_name"`
	SnapToken   string      `json:"snap_token,omitempty"`
	RedirectURL string      `json:"redirect_url,omitempty"`
}

// CallbackResponse acknowledges a processed notification.
type CallbackResponse struct {
	OrderID       string `json:"order_id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}

// OrderIDResponse carries a freshly generated order id.
type OrderIDResponse struct {
	OrderID string `json:"order_id"`
}

func toDepositResponse(r Result) DepositResponse {
	resp := DepositResponse{
		OrderID:    r.Transaction.OrderID,
		Amount:     r.Transaction.Amount,
		Status:     r.Transaction.Status.CatalogID(),
		StatusName: r.Transaction.Status.String(),
	}
	if r.Handle != nil {
		resp.SnapToken = r.Handle.Token
		resp.RedirectURL = r.Handle.RedirectURL
	}
	return resp
}
