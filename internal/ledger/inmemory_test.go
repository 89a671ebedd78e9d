package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/saldo-pay/saldo/internal/money"
)

var queryNow = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

func seedHistory(t *testing.T, s *MemoryStore) {
	t.Helper()
	ctx := context.Background()
	deleted := queryNow.Add(-time.Hour)
	entries := []Transaction{
		{OrderID: "today-dep", Amount: money.MustParse("100"), Type: TypeDeposit, Status: StatusSuccess, TransactionDate: queryNow.Add(-3 * time.Hour)},
		{OrderID: "month-wd", Amount: money.MustParse("250.50"), Type: TypeWithdrawal, Status: StatusSuccess, TransactionDate: time.Date(2024, time.June, 2, 8, 0, 0, 0, time.UTC)},
		{OrderID: "year-wd", Amount: money.MustParse("40"), Type: TypeWithdrawal, Status: StatusSuccess, TransactionDate: time.Date(2024, time.February, 10, 8, 0, 0, 0, time.UTC)},
		{OrderID: "last-year-dep", Amount: money.MustParse("75"), Type: TypeDeposit, Status: StatusPending, TransactionDate: time.Date(2023, time.June, 15, 12, 0, 0, 0, time.UTC)},
		{OrderID: "removed", Amount: money.MustParse("5"), Type: TypeDeposit, Status: StatusSuccess, TransactionDate: queryNow, DeletedAt: &deleted},
	}
	for _, tx := range entries {
		if err := s.Transactions().Append(ctx, tx); err != nil {
			t.Fatalf("append %s: %v", tx.OrderID, err)
		}
	}
}

func orderIDs(p Page) []string {
	ids := make([]string, 0, len(p.Items))
	for _, tx := range p.Items {
		ids = append(ids, tx.OrderID)
	}
	return ids
}

func assertIDs(t *testing.T, got Page, want ...string) {
	t.Helper()
	ids := orderIDs(got)
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}
}

func TestMemoryStore_QueryWindows(t *testing.T) {
	s := NewInMemory()
	seedHistory(t, s)
	ctx := context.Background()

	cases := []struct {
		window Window
		want   []string
	}{
		{WindowNone, []string{"today-dep", "month-wd", "year-wd", "last-year-dep"}},
		{WindowDay, []string{"today-dep"}},
		{WindowMonth, []string{"today-dep", "month-wd"}},
		{WindowYear, []string{"today-dep", "month-wd", "year-wd"}},
	}
	for _, tc := range cases {
		page, err := s.Transactions().Query(ctx, Filter{Window: tc.window, Now: queryNow})
		if err != nil {
			t.Fatalf("query %q: %v", tc.window, err)
		}
		assertIDs(t, page, tc.want...)
	}
}

func TestMemoryStore_QueryType(t *testing.T) {
	s := NewInMemory()
	seedHistory(t, s)

	typ := TypeWithdrawal
	page, err := s.Transactions().Query(context.Background(), Filter{Type: &typ, Now: queryNow})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	assertIDs(t, page, "month-wd", "year-wd")
	for _, tx := range page.Items {
		if tx.Type != TypeWithdrawal {
			t.Fatalf("unexpected type %s for %s", tx.Type, tx.OrderID)
		}
	}
}

func TestMemoryStore_QueryPagination(t *testing.T) {
	s := NewInMemory()
	seedHistory(t, s)
	ctx := context.Background()

	for i, want := range []string{"today-dep", "month-wd", "year-wd"} {
		page, err := s.Transactions().Query(ctx, Filter{Window: WindowYear, Page: i + 1, PerPage: 1, Now: queryNow})
		if err != nil {
			t.Fatalf("page %d: %v", i+1, err)
		}
		if page.Total != 3 || page.LastPage != 3 {
			t.Fatalf("expected total 3 over 3 pages, got total=%d last=%d", page.Total, page.LastPage)
		}
		assertIDs(t, page, want)
	}

	beyond, err := s.Transactions().Query(ctx, Filter{Window: WindowYear, Page: 9, PerPage: 1, Now: queryNow})
	if err != nil {
		t.Fatalf("out of range page should not fail: %v", err)
	}
	if len(beyond.Items) != 0 || beyond.From() != 0 {
		t.Fatalf("expected empty page, got %v", orderIDs(beyond))
	}
}

func TestMemoryStore_QueryRejectsInvalidPaging(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	for _, f := range []Filter{{PerPage: 101}, {PerPage: -1}, {Page: -2}} {
		if _, err := s.Transactions().Query(ctx, f); !errors.Is(err, ErrInvalidFilter) {
			t.Fatalf("expected invalid filter for %+v, got %v", f, err)
		}
	}

	page, err := s.Transactions().Query(ctx, Filter{})
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if page.CurrentPage != 1 || page.PerPage != DefaultPerPage || page.LastPage != 1 {
		t.Fatalf("unexpected defaults: %+v", page)
	}
}

func TestMemoryStore_QuerySearch(t *testing.T) {
	s := NewInMemory()
	seedHistory(t, s)
	ctx := context.Background()

	page, err := s.Transactions().Query(ctx, Filter{Search: "Withdrawal", Now: queryNow})
	if err != nil {
		t.Fatalf("search by type: %v", err)
	}
	assertIDs(t, page, "month-wd", "year-wd")

	page, err = s.Transactions().Query(ctx, Filter{Search: "250.5", Now: queryNow})
	if err != nil {
		t.Fatalf("search by amount: %v", err)
	}
	assertIDs(t, page, "month-wd")
}

func TestMemoryStore_AppendRejectsDuplicateOrderID(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	tx := Transaction{OrderID: "INV-1", Amount: money.MustParse("1"), Type: TypeDeposit, Status: StatusSuccess}

	if err := s.Transactions().Append(ctx, tx); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Transactions().Append(ctx, tx); !errors.Is(err, ErrDuplicateOrderID) {
		t.Fatalf("expected duplicate order id, got %v", err)
	}
}

func TestMemoryStore_DebitChecksSufficiency(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	if bal, _ := s.Balances().Balance(ctx); !bal.IsZero() {
		t.Fatalf("expected lazily zero balance, got %s", bal)
	}
	if _, err := s.Balances().Credit(ctx, money.MustParse("10")); err != nil {
		t.Fatalf("credit: %v", err)
	}

	_, err := s.Balances().Debit(ctx, money.MustParse("10.01"))
	var insufficient *InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if insufficient.Available.String() != "10.00" || insufficient.Required.String() != "10.01" {
		t.Fatalf("unexpected amounts: %v", insufficient)
	}

	bal, err := s.Balances().Debit(ctx, money.MustParse("10"))
	if err != nil {
		t.Fatalf("debit full balance: %v", err)
	}
	if !bal.IsZero() {
		t.Fatalf("expected zero, got %s", bal)
	}
}

func TestMemoryStore_AtomicallyDiscardsOnError(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Atomically(ctx, func(u Unit) error {
		if _, err := u.Balances().Credit(ctx, money.MustParse("99")); err != nil {
			return err
		}
		if err := u.Transactions().Append(ctx, Transaction{OrderID: "lost", Type: TypeDeposit}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	bal, _ := s.Balances().Balance(ctx)
	if !bal.IsZero() {
		t.Fatalf("balance leaked from failed unit: %s", bal)
	}
	if ok, _ := s.Transactions().Exists(ctx, "lost"); ok {
		t.Fatalf("transaction leaked from failed unit")
	}
}
