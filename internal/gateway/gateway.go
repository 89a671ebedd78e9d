package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/saldo-pay/saldo/internal/money"
)

var (
	// ErrSignatureInvalid indicates a notification whose signature does not match.
	ErrSignatureInvalid = errors.New("invalid signature")
	// ErrGatewayUnavailable wraps failures talking to the payment provider.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrNotFound indicates the provider does not know the order id.
	ErrNotFound = errors.New("transaction not found at payment gateway")
)

// Gateway represents a connector to an external payment provider.
type Gateway interface {
	CreatePayment(ctx context.Context, req PaymentRequest) (PaymentHandle, error)
	Status(ctx context.Context, orderID string) (ProviderStatus, error)
}

// PaymentRequest carries what the provider needs to open a payment page.
type PaymentRequest struct {
	OrderID string
	Amount  money.Money
	Expiry  time.Duration
}

// PaymentHandle is the provider's reference for a pending payment.
type PaymentHandle struct {
	Token       string `json:"snap_token"`
	RedirectURL string `json:"redirect_url"`
}

// ProviderStatus mirrors the provider's view of a transaction.
type ProviderStatus struct {
	OrderID           string `json:"order_id"`
	TransactionID     string `json:"transaction_id,omitempty"`
	TransactionStatus string `json:"transaction_status"`
	StatusCode        string `json:"status_code"`
	StatusMessage     string `json:"status_message,omitempty"`
	PaymentType       string `json:"payment_type,omitempty"`
	FraudStatus       string `json:"fraud_status,omitempty"`
	GrossAmount       string `json:"gross_amount"`
	TransactionTime   string `json:"transaction_time,omitempty"`
}

// Static simulates a provider that accepts every payment. It is used when no
// real gateway is configured.
type Static struct{}

// CreatePayment returns a synthetic token.
func (Static) CreatePayment(_ context.Context, req PaymentRequest) (PaymentHandle, error) {
	token := uuid.NewString()
	return PaymentHandle{Token: token, RedirectURL: "https://payments.invalid/snap/v2/vtweb/" + token}, nil
}

// Status reports ErrNotFound for every order; the stub keeps no payments.
func (Static) Status(context.Context, string) (ProviderStatus, error) {
	return ProviderStatus{}, ErrNotFound
}
