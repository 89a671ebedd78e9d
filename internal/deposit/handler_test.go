package deposit

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saldo-pay/saldo/internal/gateway"
	"github.com/saldo-pay/saldo/internal/logging"
	"github.com/saldo-pay/saldo/internal/response"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setupApp(t *testing.T, svc *Service) *fiber.App {
	t.Helper()
	app := fiber.New(fiber.Config{ErrorHandler: response.ErrorHandler(logging.Discard())})
	h := NewHandler(svc, "IDR", logging.Discard())
	app.Get("/deposit", h.Balance)
	app.Post("/deposit", h.Create)
	app.Post("/deposit/manual", h.Manual)
	app.Post("/deposit/callback", h.Callback)
	app.Get("/deposit/generate-order-id", h.GenerateOrderID)
	app.Get("/deposit/transaction-status/:order_id", h.TransactionStatus)
	return app
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestHandlerDirectDepositAndBalance(t *testing.T) {
	app := setupApp(t, NewService(newLedger(), nil, Config{}, logging.Discard()))

	status, env := do(t, app, http.MethodPost, "/deposit", map[string]any{
		"order_id":  "A1",
		"amount":    1000,
		"timestamp": "2025-03-26 10:00:00",
	})
	require.Equal(t, http.StatusOK, status, env.Message)
	assert.Equal(t, "Amount added successfully", env.Message)

	var created DepositResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "A1", created.OrderID)
	assert.Equal(t, "1000.00", created.Amount.String())
	assert.Equal(t, 2, created.Status)
	assert.Empty(t, created.SnapToken)

	status, env = do(t, app, http.MethodGet, "/deposit", nil)
	require.Equal(t, http.StatusOK, status)
	var bal BalanceResponse
	require.NoError(t, json.Unmarshal(env.Data, &bal))
	assert.Equal(t, "1000.00", bal.Amount.String())
	assert.Equal(t, "1.000,00", bal.Formatted)
	assert.Equal(t, "IDR", bal.Currency)
}

func TestHandlerValidation(t *testing.T) {
	app := setupApp(t, NewService(newLedger(), nil, Config{}, logging.Discard()))

	cases := []struct {
		body map[string]any
		want string
	}{
		{map[string]any{"amount": 1, "timestamp": "2025-03-26 10:00:00"}, "The order id field is required."},
		{map[string]any{"order_id": "bad id", "amount": 1, "timestamp": "2025-03-26 10:00:00"}, "The order id field format is invalid."},
		{map[string]any{"order_id": "A2", "amount": -5, "timestamp": "2025-03-26 10:00:00"}, "The amount field must be at least 0."},
		{map[string]any{"order_id": "A2", "amount": 5, "timestamp": "26/03/2025"}, "The timestamp field must match the format Y-m-d H:i:s."},
	}
	for _, tc := range cases {
		status, env := do(t, app, http.MethodPost, "/deposit", tc.body)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Equal(t, "error", env.Status)
		assert.Equal(t, tc.want, env.Message)
	}
}

func TestHandlerDuplicateOrderIDIsInternalError(t *testing.T) {
	app := setupApp(t, NewService(newLedger(), nil, Config{}, logging.Discard()))
	body := map[string]any{"order_id": "DUP", "amount": "10.50", "timestamp": "2025-03-26 10:00:00"}

	status, _ := do(t, app, http.MethodPost, "/deposit/manual", body)
	require.Equal(t, http.StatusOK, status)

	status, env := do(t, app, http.MethodPost, "/deposit/manual", body)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Failed to create transaction", env.Message)
}

func TestHandlerGatewayFlow(t *testing.T) {
	svc := NewService(newLedger(), gateway.Static{}, Config{UseGateway: true, ServerKey: serverKey, Expiry: time.Hour}, logging.Discard())
	app := setupApp(t, svc)

	status, env := do(t, app, http.MethodGet, "/deposit/generate-order-id", nil)
	require.Equal(t, http.StatusOK, status)
	var gen OrderIDResponse
	require.NoError(t, json.Unmarshal(env.Data, &gen))
	require.NotEmpty(t, gen.OrderID)

	status, env = do(t, app, http.MethodPost, "/deposit", map[string]any{
		"order_id":  gen.OrderID,
		"amount":    "75000",
		"timestamp": "2025-03-26 10:00:00",
	})
	require.Equal(t, http.StatusOK, status, env.Message)
	var created DepositResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, 1, created.Status)
	assert.NotEmpty(t, created.SnapToken)
	assert.NotEmpty(t, created.RedirectURL)

	forged := signed(gen.OrderID, "settlement", "75000.00")
	forged.SignatureKey = strings.Repeat("0", 128)
	status, env = do(t, app, http.MethodPost, "/deposit/callback", forged)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Invalid signature", env.Message)

	status, _ = do(t, app, http.MethodPost, "/deposit/callback", signed(gen.OrderID, "settlement", "75000.00"))
	assert.Equal(t, http.StatusOK, status)

	status, env = do(t, app, http.MethodPost, "/deposit/callback", signed(gen.OrderID, "settlement", "75000.00"))
	assert.Equal(t, http.StatusOK, status, "replayed notifications are acknowledged")
	assert.Equal(t, "Notification already processed", env.Message)

	status, _ = do(t, app, http.MethodPost, "/deposit/callback", signed("INV-missing", "settlement", "1.00"))
	assert.Equal(t, http.StatusNotFound, status)

	status, env = do(t, app, http.MethodGet, "/deposit", nil)
	require.Equal(t, http.StatusOK, status)
	var bal BalanceResponse
	require.NoError(t, json.Unmarshal(env.Data, &bal))
	assert.Equal(t, "75000.00", bal.Amount.String())
}

func TestHandlerTransactionStatus(t *testing.T) {
	app := setupApp(t, NewService(newLedger(), gateway.Static{}, Config{UseGateway: true, ServerKey: serverKey}, logging.Discard()))
	status, env := do(t, app, http.MethodGet, "/deposit/transaction-status/INV-9", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Transaction not found", env.Message)

	status, _ = do(t, app, http.MethodPost, "/deposit", map[string]any{
		"order_id":  "INV-9",
		"amount":    "1200",
		"timestamp": "2025-03-26 10:00:00",
	})
	require.Equal(t, http.StatusOK, status)

	status, env = do(t, app, http.MethodGet, "/deposit/transaction-status/INV-9", nil)
	require.Equal(t, http.StatusOK, status)
	var ps gateway.ProviderStatus
	require.NoError(t, json.Unmarshal(env.Data, &ps))
	assert.Equal(t, "INV-9", ps.OrderID)
	assert.Equal(t, "pending", ps.TransactionStatus)
	assert.Equal(t, "1200.00", ps.GrossAmount)
}

func TestHandlerGatewayAmountChecks(t *testing.T) {
	app := setupApp(t, NewService(newLedger(), gateway.Static{}, Config{UseGateway: true, ServerKey: serverKey}, logging.Discard()))

	status, env := do(t, app, http.MethodPost, "/deposit", map[string]any{
		"order_id":  "INV-11",
		"amount":    "100.50",
		"timestamp": "2025-03-26 10:00:00",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "The amount field must be a whole number.", env.Message)

	status, _ = do(t, app, http.MethodPost, "/deposit", map[string]any{
		"order_id":  "INV-11",
		"amount":    "100",
		"timestamp": "2025-03-26 10:00:00",
	})
	require.Equal(t, http.StatusOK, status)

	status, env = do(t, app, http.MethodPost, "/deposit/callback", signed("INV-11", "settlement", "1.00"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Gross amount does not match the transaction", env.Message)

	status, env = do(t, app, http.MethodGet, "/deposit", nil)
	require.Equal(t, http.StatusOK, status)
	var bal BalanceResponse
	require.NoError(t, json.Unmarshal(env.Data, &bal))
	assert.True(t, bal.Amount.IsZero())
}
