package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/saldo-pay/saldo/internal/metrics"
	"github.com/saldo-pay/saldo/internal/money"
)

const (
	depositDescription    = "Deposit transaction"
	withdrawalDescription = "Withdrawal transaction"
	withdrawalPrefix      = "Withdrawal"
)

// Service owns every write to the balance and the transaction log.
type Service struct {
	store         Store
	orderIDs      *OrderIDGenerator
	withdrawalIDs *OrderIDGenerator
	loc           *time.Location
	logger        *slog.Logger
	now           func() time.Time
}

// ServiceConfig tunes a Service.
type ServiceConfig struct {
	OrderIDPrefix string
	Location      *time.Location
}

// NewService builds a ledger service on top of the given store.
func NewService(store Store, cfg ServiceConfig, logger *slog.Logger) *Service {
	if cfg.OrderIDPrefix == "" {
		cfg.OrderIDPrefix = "INV"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	ids := NewOrderIDGenerator(cfg.OrderIDPrefix, store.Transactions())
	return &Service{
		store:         store,
		orderIDs:      ids,
		withdrawalIDs: ids.WithPrefix(withdrawalPrefix),
		loc:           cfg.Location,
		logger:        logger,
		now:           time.Now,
	}
}

// Location is the time zone used for transaction dates and history windows.
func (s *Service) Location() *time.Location { return s.loc }

// Balance returns the current running balance.
func (s *Service) Balance(ctx context.Context) (money.Money, error) {
	return s.store.Balances().Balance(ctx)
}

// GenerateOrderID returns a fresh deposit order id.
func (s *Service) GenerateOrderID(ctx context.Context) (string, error) {
	return s.orderIDs.Generate(ctx)
}

// DepositInput captures a deposit request. A non-empty GatewayHandle marks a
// gateway-backed deposit that stays pending until a settlement notification.
type DepositInput struct {
	OrderID       string
	Amount        money.Money
	Timestamp     time.Time
	GatewayHandle string
}

// Deposit records a deposit. Direct deposits credit the balance in the same
// atomic unit as the insert.
func (s *Service) Deposit(ctx context.Context, in DepositInput) (Transaction, error) {
	defer observe("deposit", time.Now())
	if in.Amount.IsNegative() {
		return Transaction{}, money.ErrInvalidAmount
	}

	status := StatusSuccess
	if in.GatewayHandle != "" {
		status = StatusPending
	}
	now := s.now()
	if in.Timestamp.IsZero() {
		in.Timestamp = now.In(s.loc)
	}
	tx := Transaction{
		ID:              uuid.NewString(),
		OrderID:         in.OrderID,
		Amount:          in.Amount,
		Type:            TypeDeposit,
		Status:          status,
		PaymentStatus:   status.PaymentStatus(),
		Description:     depositDescription,
		TransactionDate: in.Timestamp,
		GatewayHandle:   in.GatewayHandle,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.store.Atomically(ctx, func(u Unit) error {
		if err := u.Transactions().Append(ctx, tx); err != nil {
			return err
		}
		if status != StatusSuccess {
			return nil
		}
		_, err := u.Balances().Credit(ctx, tx.Amount)
		return err
	})
	if err != nil {
		s.fail("deposit", tx.OrderID, err)
		return Transaction{}, fmt.Errorf("deposit %s: %w", tx.OrderID, err)
	}

	metrics.LedgerOperations.WithLabelValues("deposit", status.String()).Inc()
	s.logger.Info("deposit recorded",
		slog.String("order_id", tx.OrderID),
		slog.String("amount", tx.Amount.String()),
		slog.String("status", status.String()),
	)
	return tx, nil
}

// WithdrawalResult is the outcome of a successful withdrawal.
type WithdrawalResult struct {
	Transaction Transaction
	NewBalance  money.Money
}

// Withdraw debits the balance and records a successful withdrawal atomically.
func (s *Service) Withdraw(ctx context.Context, amount money.Money) (WithdrawalResult, error) {
	defer observe("withdrawal", time.Now())
	if amount.IsNegative() {
		return WithdrawalResult{}, money.ErrInvalidAmount
	}

	available, err := s.store.Balances().Balance(ctx)
	if err != nil {
		s.fail("withdrawal", "", err)
		return WithdrawalResult{}, fmt.Errorf("read balance: %w", err)
	}
	if available.LessThan(amount) {
		metrics.LedgerOperations.WithLabelValues("withdrawal", "insufficient_funds").Inc()
		return WithdrawalResult{}, &InsufficientFundsError{Available: available, Required: amount}
	}

	var (
		tx      Transaction
		balance money.Money
	)
	// The id is checked before the unit opens, so a concurrent writer can still
	// claim it. One redraw covers that race.
	for attempt := 0; ; attempt++ {
		tx, err = s.newWithdrawal(ctx, amount)
		if err != nil {
			s.fail("withdrawal", "", err)
			return WithdrawalResult{}, err
		}
		err = s.store.Atomically(ctx, func(u Unit) error {
			// Debit re-validates sufficiency against the balance inside the unit.
			newBalance, err := u.Balances().Debit(ctx, amount)
			if err != nil {
				return err
			}
			balance = newBalance
			return u.Transactions().Append(ctx, tx)
		})
		if attempt == 0 && errors.Is(err, ErrDuplicateOrderID) {
			s.logger.Warn("withdrawal order id taken, redrawing", slog.String("order_id", tx.OrderID))
			continue
		}
		break
	}
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			metrics.LedgerOperations.WithLabelValues("withdrawal", "insufficient_funds").Inc()
			return WithdrawalResult{}, err
		}
		s.fail("withdrawal", tx.OrderID, err)
		return WithdrawalResult{}, fmt.Errorf("withdraw %s: %w", tx.OrderID, err)
	}

	metrics.LedgerOperations.WithLabelValues("withdrawal", "success").Inc()
	s.logger.Info("withdrawal recorded",
		slog.String("order_id", tx.OrderID),
		slog.String("amount", amount.String()),
		slog.String("new_balance", balance.String()),
	)
	return WithdrawalResult{Transaction: tx, NewBalance: balance}, nil
}

func (s *Service) newWithdrawal(ctx context.Context, amount money.Money) (Transaction, error) {
	orderID, err := s.withdrawalIDs.Generate(ctx)
	if err != nil {
		return Transaction{}, err
	}
	now := s.now()
	return Transaction{
		ID:              uuid.NewString(),
		OrderID:         orderID,
		Amount:          amount,
		Type:            TypeWithdrawal,
		Status:          StatusSuccess,
		PaymentStatus:   StatusSuccess.PaymentStatus(),
		Description:     withdrawalDescription,
		TransactionDate: now.In(s.loc),
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Notification is an authenticated payment status update from the gateway.
type Notification struct {
	OrderID           string
	TransactionStatus string
	PaymentType       string
	FraudStatus       string
	// GrossAmount, when set, must equal the recorded amount.
	GrossAmount *money.Money
}

// Reconcile applies a gateway notification to its pending transaction. The
// balance is credited only on the transition into Success, and a transaction
// in a terminal status is left untouched with ErrAlreadySettled. A gross amount
// that differs from the recorded one fails with ErrAmountMismatch.
func (s *Service) Reconcile(ctx context.Context, n Notification) (Transaction, error) {
	defer observe("reconcile", time.Now())
	next := MapProviderStatus(n.TransactionStatus, n.PaymentType, n.FraudStatus)
	metrics.GatewayNotifications.WithLabelValues(next.String()).Inc()

	var result Transaction
	err := s.store.Atomically(ctx, func(u Unit) error {
		tx, err := u.Transactions().FindByOrderID(ctx, n.OrderID)
		if err != nil {
			return err
		}
		if tx.Status.Terminal() {
			result = tx
			return ErrAlreadySettled
		}
		if n.GrossAmount != nil && !n.GrossAmount.Equal(tx.Amount) {
			result = tx
			return ErrAmountMismatch
		}
		if err := u.Transactions().UpdateStatus(ctx, tx.OrderID, next, next.PaymentStatus()); err != nil {
			return err
		}
		if next == StatusSuccess && tx.Type == TypeDeposit {
			if _, err := u.Balances().Credit(ctx, tx.Amount); err != nil {
				return err
			}
		}
		tx.Status = next
		tx.PaymentStatus = next.PaymentStatus()
		result = tx
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrAlreadySettled):
		metrics.LedgerOperations.WithLabelValues("reconcile", "already_settled").Inc()
		s.logger.Warn("notification for settled transaction ignored",
			slog.String("order_id", n.OrderID),
			slog.String("current_status", result.Status.String()),
			slog.String("incoming_status", next.String()),
		)
		return result, err
	case errors.Is(err, ErrAmountMismatch):
		metrics.LedgerOperations.WithLabelValues("reconcile", "amount_mismatch").Inc()
		s.logger.Warn("notification amount does not match transaction",
			slog.String("order_id", n.OrderID),
			slog.String("recorded_amount", result.Amount.String()),
			slog.String("notified_amount", n.GrossAmount.String()),
		)
		return result, err
	case errors.Is(err, ErrNotFound):
		return Transaction{}, err
	default:
		s.fail("reconcile", n.OrderID, err)
		return Transaction{}, fmt.Errorf("reconcile %s: %w", n.OrderID, err)
	}

	metrics.LedgerOperations.WithLabelValues("reconcile", next.String()).Inc()
	s.logger.Info("transaction reconciled",
		slog.String("order_id", result.OrderID),
		slog.String("status", next.String()),
		slog.Bool("credited", next == StatusSuccess),
	)
	return result, nil
}

// Find returns the live transaction carrying orderID.
func (s *Service) Find(ctx context.Context, orderID string) (Transaction, error) {
	return s.store.Transactions().FindByOrderID(ctx, orderID)
}

// History queries the transaction log relative to the current time.
func (s *Service) History(ctx context.Context, f Filter) (Page, error) {
	f.Now = s.now().In(s.loc)
	page, err := s.store.Transactions().Query(ctx, f)
	if err != nil && !errors.Is(err, ErrInvalidFilter) {
		s.fail("history", "", err)
	}
	return page, err
}

func (s *Service) fail(operation, orderID string, err error) {
	metrics.LedgerOperations.WithLabelValues(operation, "error").Inc()
	if errors.Is(err, ErrDuplicateOrderID) {
		s.logger.Warn("ledger operation rejected",
			slog.String("operation", operation),
			slog.String("order_id", orderID),
			slog.Any("error", err),
		)
		return
	}
	s.logger.Error("ledger operation failed",
		slog.String("operation", operation),
		slog.String("order_id", orderID),
		slog.Any("error", err),
	)
}

func observe(operation string, start time.Time) {
	metrics.LedgerOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
