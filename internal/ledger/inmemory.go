package ledger

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saldo-pay/saldo/internal/money"
)

type memState struct {
	balance money.Money
	txs     []Transaction
	byOrder map[string]int
}

func (s *memState) clone() *memState {
	cp := &memState{
		balance: s.balance,
		txs:     make([]Transaction, len(s.txs)),
		byOrder: make(map[string]int, len(s.byOrder)),
	}
	copy(cp.txs, s.txs)
	for k, v := range s.byOrder {
		cp.byOrder[k] = v
	}
	return cp
}

// MemoryStore is a concurrency-safe in-memory Store used in development and tests.
// Atomically runs against a copy of the state and swaps it in on success.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
}

// NewInMemory creates an empty in-memory ledger.
func NewInMemory() *MemoryStore {
	return &MemoryStore{state: &memState{byOrder: make(map[string]int)}}
}

func (s *MemoryStore) Balances() BalanceStore       { return lockedUnit{s} }
func (s *MemoryStore) Transactions() TransactionLog { return lockedUnit{s} }

// Atomically serialises fn against every other writer.
func (s *MemoryStore) Atomically(ctx context.Context, fn func(u Unit) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.state.clone()
	if err := fn(memUnit{state: staged}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = staged
	return nil
}

// lockedUnit serves single calls made outside Atomically.
type lockedUnit struct{ s *MemoryStore }

func (l lockedUnit) Balance(ctx context.Context) (money.Money, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()
	return memUnit{state: l.s.state}.Balance(ctx)
}

func (l lockedUnit) Credit(ctx context.Context, amount money.Money) (money.Money, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return memUnit{state: l.s.state}.Credit(ctx, amount)
}

func (l lockedUnit) Debit(ctx context.Context, amount money.Money) (money.Money, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return memUnit{state: l.s.state}.Debit(ctx, amount)
}

func (l lockedUnit) Append(ctx context.Context, tx Transaction) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return memUnit{state: l.s.state}.Append(ctx, tx)
}

func (l lockedUnit) Exists(ctx context.Context, orderID string) (bool, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()
	return memUnit{state: l.s.state}.Exists(ctx, orderID)
}

func (l lockedUnit) FindByOrderID(ctx context.Context, orderID string) (Transaction, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()
	return memUnit{state: l.s.state}.FindByOrderID(ctx, orderID)
}

func (l lockedUnit) UpdateStatus(ctx context.Context, orderID string, status Status, paymentStatus string) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return memUnit{state: l.s.state}.UpdateStatus(ctx, orderID, status, paymentStatus)
}

func (l lockedUnit) Query(ctx context.Context, f Filter) (Page, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()
	return memUnit{state: l.s.state}.Query(ctx, f)
}

// memUnit operates on a state the caller already holds the lock for.
type memUnit struct{ state *memState }

func (u memUnit) Balances() BalanceStore       { return u }
func (u memUnit) Transactions() TransactionLog { return u }

func (u memUnit) Balance(_ context.Context) (money.Money, error) {
	return u.state.balance, nil
}

func (u memUnit) Credit(_ context.Context, amount money.Money) (money.Money, error) {
	u.state.balance = u.state.balance.Add(amount)
	return u.state.balance, nil
}

func (u memUnit) Debit(_ context.Context, amount money.Money) (money.Money, error) {
	if u.state.balance.LessThan(amount) {
		return u.state.balance, &InsufficientFundsError{Available: u.state.balance, Required: amount}
	}
	u.state.balance = u.state.balance.Sub(amount)
	return u.state.balance, nil
}

func (u memUnit) Append(_ context.Context, tx Transaction) error {
	if _, exists := u.state.byOrder[tx.OrderID]; exists {
		return ErrDuplicateOrderID
	}
	now := time.Now()
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	if tx.UpdatedAt.IsZero() {
		tx.UpdatedAt = tx.CreatedAt
	}
	u.state.byOrder[tx.OrderID] = len(u.state.txs)
	u.state.txs = append(u.state.txs, tx)
	return nil
}

func (u memUnit) Exists(_ context.Context, orderID string) (bool, error) {
	_, ok := u.state.byOrder[orderID]
	return ok, nil
}

func (u memUnit) FindByOrderID(_ context.Context, orderID string) (Transaction, error) {
	idx, ok := u.state.byOrder[orderID]
	if !ok || u.state.txs[idx].DeletedAt != nil {
		return Transaction{}, ErrNotFound
	}
	return u.state.txs[idx], nil
}

func (u memUnit) UpdateStatus(_ context.Context, orderID string, status Status, paymentStatus string) error {
	idx, ok := u.state.byOrder[orderID]
	if !ok || u.state.txs[idx].DeletedAt != nil {
		return ErrNotFound
	}
	tx := u.state.txs[idx]
	tx.Status = status
	tx.PaymentStatus = paymentStatus
	tx.UpdatedAt = time.Now()
	u.state.txs[idx] = tx
	return nil
}

func (u memUnit) Query(_ context.Context, f Filter) (Page, error) {
	f, err := f.Normalize(DefaultPerPage)
	if err != nil {
		return Page{}, err
	}
	if f.Now.IsZero() {
		f.Now = time.Now()
	}
	start, end, windowed := f.Window.Bounds(f.Now)
	search := strings.ToLower(strings.TrimSpace(f.Search))

	type indexed struct {
		pos int
		tx  Transaction
	}
	var matched []indexed
	for i, tx := range u.state.txs {
		if tx.DeletedAt != nil {
			continue
		}
		if f.Type != nil && tx.Type != *f.Type {
			continue
		}
		if windowed && (tx.TransactionDate.Before(start) || !tx.TransactionDate.Before(end)) {
			continue
		}
		if search != "" && !matchesSearch(tx, search) {
			continue
		}
		matched = append(matched, indexed{pos: i, tx: tx})
	}

	key := func(tx Transaction) time.Time {
		if f.OrderBy == ByCreatedAt {
			return tx.CreatedAt
		}
		return tx.TransactionDate
	}
	sort.SliceStable(matched, func(i, j int) bool {
		ki, kj := key(matched[i].tx), key(matched[j].tx)
		if !ki.Equal(kj) {
			return ki.After(kj)
		}
		return matched[i].pos > matched[j].pos
	})

	total := len(matched)
	var items []Transaction
	for i := f.offset(); i < total && len(items) < f.PerPage; i++ {
		items = append(items, matched[i].tx)
	}
	return newPage(items, f, total), nil
}

func matchesSearch(tx Transaction, search string) bool {
	return strings.Contains(tx.Type.String(), search) ||
		strings.Contains(strconv.Itoa(int(tx.Type)), search) ||
		strings.Contains(tx.Amount.String(), search)
}
