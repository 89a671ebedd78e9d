package deposit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/saldo-pay/saldo/internal/gateway"
	"github.com/saldo-pay/saldo/internal/ledger"
	"github.com/saldo-pay/saldo/internal/money"
	"github.com/saldo-pay/saldo/internal/request"
)

// ErrFractionalAmount rejects gateway deposits with a fractional part, since
// the gateway charges whole units only.
var ErrFractionalAmount = errors.New("gateway deposits must be whole amounts")

// Config decides how deposits are funded.
type Config struct {
	// UseGateway routes POST /deposit through the payment gateway.
	UseGateway bool
	// ServerKey authenticates gateway notifications.
	ServerKey string
	// Expiry bounds the lifetime of a payment page.
	Expiry time.Duration
}

// Service coordinates deposits between the ledger and the payment gateway.
type Service struct {
	ledger  *ledger.Service
	gateway gateway.Gateway
	cfg     Config
	logger  *slog.Logger
}

// NewService prepares a deposit service. A nil gateway falls back to the static stub.
func NewService(l *ledger.Service, gw gateway.Gateway, cfg Config, logger *slog.Logger) *Service {
	if gw == nil {
		gw = gateway.Static{}
	}
	return &Service{ledger: l, gateway: gw, cfg: cfg, logger: logger}
}

// Input captures a validated deposit request.
type Input struct {
	OrderID   string
	Amount    money.Money
	Timestamp time.Time
}

// Result is the outcome of a deposit. Handle is set for gateway-backed deposits.
type Result struct {
	Transaction ledger.Transaction
	Handle      *gateway.PaymentHandle
}

// Create records a deposit, opening a gateway payment first when configured.
func (s *Service) Create(ctx context.Context, in Input) (Result, error) {
	if !s.cfg.UseGateway {
		return s.Manual(ctx, in)
	}
	if !in.Amount.IsWhole() {
		return Result{}, fmt.Errorf("deposit %s of %s: %w", in.OrderID, in.Amount, ErrFractionalAmount)
	}

	if _, err := s.ledger.Find(ctx, in.OrderID); err == nil {
		return Result{}, fmt.Errorf("deposit %s: %w", in.OrderID, ledger.ErrDuplicateOrderID)
	} else if !errors.Is(err, ledger.ErrNotFound) {
		return Result{}, err
	}

	handle, err := s.gateway.CreatePayment(ctx, gateway.PaymentRequest{
		OrderID: in.OrderID,
		Amount:  in.Amount,
		Expiry:  s.cfg.Expiry,
	})
	if err != nil {
		return Result{}, err
	}

	tx, err := s.ledger.Deposit(ctx, ledger.DepositInput{
		OrderID:       in.OrderID,
		Amount:        in.Amount,
		Timestamp:     in.Timestamp,
		GatewayHandle: handle.Token,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Transaction: tx, Handle: &handle}, nil
}

// Manual records a direct deposit that credits the balance immediately.
func (s *Service) Manual(ctx context.Context, in Input) (Result, error) {
	tx, err := s.ledger.Deposit(ctx, ledger.DepositInput{
		OrderID:   in.OrderID,
		Amount:    in.Amount,
		Timestamp: in.Timestamp,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Transaction: tx}, nil
}

// Callback is a payment notification as posted by the gateway.
type Callback struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	PaymentType       string `json:"payment_type"`
	FraudStatus       string `json:"fraud_status"`
	TransactionID     string `json:"transaction_id"`
}

// HandleCallback authenticates a notification and reconciles it. Nothing is
// read or written before the signature has been verified. The notified gross
// amount must match the recorded deposit.
func (s *Service) HandleCallback(ctx context.Context, cb Callback) (ledger.Transaction, error) {
	if !gateway.VerifySignature(cb.OrderID, cb.StatusCode, cb.GrossAmount, s.cfg.ServerKey, cb.SignatureKey) {
		s.logger.Warn("rejected payment notification",
			slog.String("order_id", cb.OrderID),
			slog.String("transaction_status", cb.TransactionStatus),
		)
		return ledger.Transaction{}, gateway.ErrSignatureInvalid
	}

	gross, err := money.Parse(cb.GrossAmount)
	if err != nil {
		s.logger.Warn("unreadable gross amount in payment notification",
			slog.String("order_id", cb.OrderID),
			slog.String("gross_amount", cb.GrossAmount),
		)
		return ledger.Transaction{}, fmt.Errorf("%w: %v", ledger.ErrAmountMismatch, err)
	}

	return s.ledger.Reconcile(ctx, ledger.Notification{
		OrderID:           cb.OrderID,
		TransactionStatus: cb.TransactionStatus,
		PaymentType:       cb.PaymentType,
		FraudStatus:       cb.FraudStatus,
		GrossAmount:       &gross,
	})
}

// Status returns the gateway's view of a recorded order. Orders missing from
// the ledger are ErrNotFound. When the gateway has no record of a known order
// the ledger's own view is returned.
func (s *Service) Status(ctx context.Context, orderID string) (gateway.ProviderStatus, error) {
	tx, err := s.ledger.Find(ctx, orderID)
	if errors.Is(err, ledger.ErrNotFound) {
		return gateway.ProviderStatus{}, fmt.Errorf("status %s: %w", orderID, gateway.ErrNotFound)
	}
	if err != nil {
		return gateway.ProviderStatus{}, err
	}

	status, err := s.gateway.Status(ctx, orderID)
	if errors.Is(err, gateway.ErrNotFound) {
		return recordedStatus(tx), nil
	}
	return status, err
}

func recordedStatus(tx ledger.Transaction) gateway.ProviderStatus {
	code := "202"
	switch tx.Status {
	case ledger.StatusSuccess:
		code = "200"
	case ledger.StatusPending, ledger.StatusAuthorized, ledger.StatusChallenge:
		code = "201"
	}
	return gateway.ProviderStatus{
		OrderID:           tx.OrderID,
		TransactionStatus: tx.PaymentStatus,
		StatusCode:        code,
		StatusMessage:     "Transaction recorded in ledger",
		GrossAmount:       tx.Amount.String(),
		TransactionTime:   tx.TransactionDate.Format(request.TimestampLayout),
	}
}

// Balance returns the current balance.
func (s *Service) Balance(ctx context.Context) (money.Money, error) {
	return s.ledger.Balance(ctx)
}

// GenerateOrderID returns a fresh, unused order id.
func (s *Service) GenerateOrderID(ctx context.Context) (string, error) {
	return s.ledger.GenerateOrderID(ctx)
}

// Location is the time zone deposit timestamps are read in.
func (s *Service) Location() *time.Location { return s.ledger.Location() }
