package ledger

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saldo-pay/saldo/internal/money"
)

// newPostgresStore connects to TEST_DATABASE_URL and empties the ledger
// tables. Tests using it are skipped when the variable is unset.
func newPostgresStore(t *testing.T) (*PostgresStore, *pgxpool.Pool) {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	store := NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// Migrate must be repeatable.
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE transactions, balances`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return store, pool
}

func TestPostgresStore_CreditDebit(t *testing.T) {
	store, _ := newPostgresStore(t)
	ctx := context.Background()

	bal, err := store.Balances().Balance(ctx)
	if err != nil || !bal.IsZero() {
		t.Fatalf("empty balance: %s, %v", bal, err)
	}
	if bal, err = store.Balances().Credit(ctx, money.MustParse("100.25")); err != nil || bal.String() != "100.25" {
		t.Fatalf("credit: %s, %v", bal, err)
	}
	if bal, err = store.Balances().Debit(ctx, money.MustParse("40")); err != nil || bal.String() != "60.25" {
		t.Fatalf("debit: %s, %v", bal, err)
	}

	_, err = store.Balances().Debit(ctx, money.MustParse("60.26"))
	var insufficient *InsufficientFundsError
	if !errors.As(err, &insufficient) || insufficient.Available.String() != "60.25" {
		t.Fatalf("expected insufficient funds with 60.25 available, got %v", err)
	}
	if bal, _ = store.Balances().Balance(ctx); bal.String() != "60.25" {
		t.Fatalf("rejected debit changed the balance to %s", bal)
	}
}

func TestPostgresStore_CreditRestartsSoftDeletedBalance(t *testing.T) {
	store, pool := newPostgresStore(t)
	ctx := context.Background()

	if _, err := store.Balances().Credit(ctx, money.MustParse("500")); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := pool.Exec(ctx, `UPDATE balances SET deleted_at = now() WHERE id = 1`); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if bal, _ := store.Balances().Balance(ctx); !bal.IsZero() {
		t.Fatalf("soft-deleted balance should read as zero, got %s", bal)
	}

	bal, err := store.Balances().Credit(ctx, money.MustParse("20"))
	if err != nil {
		t.Fatalf("credit after delete: %v", err)
	}
	if bal.String() != "20.00" {
		t.Fatalf("expected 20.00, got %s", bal)
	}
}

func TestPostgresStore_AppendAndFind(t *testing.T) {
	store, _ := newPostgresStore(t)
	ctx := context.Background()
	when := time.Date(2025, 3, 26, 10, 0, 0, 0, time.UTC)
	tx := Transaction{
		OrderID:         "INV-1",
		Amount:          money.MustParse("12.34"),
		Type:            TypeDeposit,
		Status:          StatusPending,
		PaymentStatus:   StatusPending.PaymentStatus(),
		Description:     depositDescription,
		TransactionDate: when,
		GatewayHandle:   "snap-1",
	}

	if err := store.Transactions().Append(ctx, tx); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Transactions().Append(ctx, tx); !errors.Is(err, ErrDuplicateOrderID) {
		t.Fatalf("expected duplicate order id, got %v", err)
	}
	if ok, err := store.Transactions().Exists(ctx, "INV-1"); err != nil || !ok {
		t.Fatalf("exists: %v, %v", ok, err)
	}

	got, err := store.Transactions().FindByOrderID(ctx, "INV-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Amount.String() != "12.34" || got.Status != StatusPending || got.GatewayHandle != "snap-1" || !got.TransactionDate.Equal(when) {
		t.Fatalf("unexpected row: %+v", got)
	}
	if _, err := store.Transactions().FindByOrderID(ctx, "INV-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.Transactions().UpdateStatus(ctx, "INV-2", StatusSuccess, "success"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
}

func TestPostgresStore_QuerySearch(t *testing.T) {
	store, pool := newPostgresStore(t)
	ctx := context.Background()
	entries := []Transaction{
		{OrderID: "today-dep", Amount: money.MustParse("100"), Type: TypeDeposit, Status: StatusSuccess, TransactionDate: queryNow.Add(-3 * time.Hour)},
		{OrderID: "month-wd", Amount: money.MustParse("250.50"), Type: TypeWithdrawal, Status: StatusSuccess, TransactionDate: time.Date(2024, time.June, 2, 8, 0, 0, 0, time.UTC)},
		{OrderID: "year-wd", Amount: money.MustParse("40"), Type: TypeWithdrawal, Status: StatusSuccess, TransactionDate: time.Date(2024, time.February, 10, 8, 0, 0, 0, time.UTC)},
		{OrderID: "removed", Amount: money.MustParse("5"), Type: TypeWithdrawal, Status: StatusSuccess, TransactionDate: queryNow},
	}
	for _, tx := range entries {
		tx.PaymentStatus = tx.Status.PaymentStatus()
		if err := store.Transactions().Append(ctx, tx); err != nil {
			t.Fatalf("append %s: %v", tx.OrderID, err)
		}
	}
	if _, err := pool.Exec(ctx, `UPDATE transactions SET deleted_at = now() WHERE order_id = 'removed'`); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	page, err := store.Transactions().Query(ctx, Filter{Search: "Withdrawal", Now: queryNow})
	if err != nil {
		t.Fatalf("search by type: %v", err)
	}
	assertIDs(t, page, "month-wd", "year-wd")

	page, err = store.Transactions().Query(ctx, Filter{Search: "250.5", Now: queryNow})
	if err != nil {
		t.Fatalf("search by amount: %v", err)
	}
	assertIDs(t, page, "month-wd")

	page, err = store.Transactions().Query(ctx, Filter{Window: WindowMonth, Now: queryNow, PerPage: 1})
	if err != nil {
		t.Fatalf("month window: %v", err)
	}
	if page.Total != 2 || page.LastPage != 2 {
		t.Fatalf("unexpected paging: %+v", page)
	}
	assertIDs(t, page, "today-dep")
}

func TestPostgresStore_ConcurrentReconcileCreditsOnce(t *testing.T) {
	store, _ := newPostgresStore(t)
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := svc.Deposit(ctx, DepositInput{OrderID: "G1", Amount: money.MustParse("75.50"), GatewayHandle: "snap"}); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	const deliveries = 10
	var (
		wg      sync.WaitGroup
		applied atomic.Int32
	)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Reconcile(ctx, Notification{OrderID: "G1", TransactionStatus: "settlement"})
			switch {
			case err == nil:
				applied.Add(1)
			case errors.Is(err, ErrAlreadySettled):
			default:
				t.Errorf("reconcile: %v", err)
			}
		}()
	}
	wg.Wait()

	if applied.Load() != 1 {
		t.Fatalf("expected one applied notification, got %d", applied.Load())
	}
	if got := balanceOf(t, svc); got != "75.50" {
		t.Fatalf("expected 75.50, got %s", got)
	}
}

func TestPostgresStore_WithdrawRollsBackOnDuplicate(t *testing.T) {
	store, _ := newPostgresStore(t)
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := svc.Deposit(ctx, DepositInput{OrderID: "Withdrawal-20260301093000-0003", Amount: money.MustParse("100")}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	svc.withdrawalIDs.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }
	svc.withdrawalIDs.suffix = func() int { return 3 }
	svc.withdrawalIDs.exists = func(context.Context, string) (bool, error) { return false, nil }

	if _, err := svc.Withdraw(ctx, money.MustParse("10")); !errors.Is(err, ErrDuplicateOrderID) {
		t.Fatalf("expected duplicate order id, got %v", err)
	}
	if got := balanceOf(t, svc); got != "100.00" {
		t.Fatalf("debit was not rolled back, balance %s", got)
	}
}
