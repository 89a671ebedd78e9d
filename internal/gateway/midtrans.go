package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
)

// MidtransConfig configures the Midtrans connector.
type MidtransConfig struct {
	ServerKey  string
	Production bool
}

// Midtrans opens Snap payments and queries the Core API for status.
type Midtrans struct {
	snap   snap.Client
	core   coreapi.Client
	logger *slog.Logger
}

// NewMidtrans builds a connector for the configured environment.
func NewMidtrans(cfg MidtransConfig, logger *slog.Logger) *Midtrans {
	env := midtrans.Sandbox
	if cfg.Production {
		env = midtrans.Production
	}
	m := &Midtrans{logger: logger}
	m.snap.New(cfg.ServerKey, env)
	m.core.New(cfg.ServerKey, env)
	return m
}

// CreatePayment requests a Snap token for the order. Midtrans charges IDR in
// whole units so the amount is sent without its fractional part.
func (m *Midtrans) CreatePayment(_ context.Context, req PaymentRequest) (PaymentHandle, error) {
	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: req.Amount.MinorUnits(),
		},
	}
	if minutes := int64(req.Expiry.Minutes()); minutes > 0 {
		snapReq.Expiry = &snap.ExpiryDetails{Unit: "minute", Duration: minutes}
	}

	resp, mErr := m.snap.CreateTransaction(snapReq)
	if mErr != nil {
		m.logger.Error("midtrans snap request failed",
			slog.String("order_id", req.OrderID),
			slog.Int("status_code", mErr.GetStatusCode()),
			slog.String("error", mErr.GetMessage()),
		)
		return PaymentHandle{}, fmt.Errorf("%w: %s", ErrGatewayUnavailable, mErr.GetMessage())
	}
	if resp == nil || resp.Token == "" {
		return PaymentHandle{}, fmt.Errorf("%w: empty snap token", ErrGatewayUnavailable)
	}
	return PaymentHandle{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

// Status returns the provider's current status for orderID.
func (m *Midtrans) Status(_ context.Context, orderID string) (ProviderStatus, error) {
	resp, mErr := m.core.CheckTransaction(orderID)
	if mErr != nil {
		if mErr.GetStatusCode() == http.StatusNotFound {
			return ProviderStatus{}, ErrNotFound
		}
		m.logger.Error("midtrans status request failed",
			slog.String("order_id", orderID),
			slog.Int("status_code", mErr.GetStatusCode()),
			slog.String("error", mErr.GetMessage()),
		)
		return ProviderStatus{}, fmt.Errorf("%w: %s", ErrGatewayUnavailable, mErr.GetMessage())
	}
	if resp == nil {
		return ProviderStatus{}, fmt.Errorf("%w: empty status response", ErrGatewayUnavailable)
	}
	if resp.StatusCode == strconv.Itoa(http.StatusNotFound) {
		return ProviderStatus{}, ErrNotFound
	}
	return ProviderStatus{
		OrderID:           resp.OrderID,
		TransactionID:     resp.TransactionID,
		TransactionStatus: resp.TransactionStatus,
		StatusCode:        resp.StatusCode,
		StatusMessage:     resp.StatusMessage,
		PaymentType:       resp.PaymentType,
		FraudStatus:       resp.FraudStatus,
		GrossAmount:       resp.GrossAmount,
		TransactionTime:   resp.TransactionTime,
	}, nil
}
