package ledger

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saldo-pay/saldo/internal/money"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists the balance and the transaction log in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the schema and seeds the status catalog.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply ledger schema: %w", err)
	}
	for _, e := range StatusCatalog {
		if _, err := s.db.Exec(ctx, `INSERT INTO status_transactions (id, name) VALUES ($1, $2)
            ON CONFLICT (id) DO NOTHING`, e.ID, e.Name); err != nil {
			return fmt.Errorf("seed status %s: %w", e.Name, err)
		}
	}
	return nil
}

func (s *PostgresStore) Balances() BalanceStore       { return pgUnit{q: s.db} }
func (s *PostgresStore) Transactions() TransactionLog { return pgUnit{q: s.db} }

// Atomically runs fn inside a database transaction, committing only when fn succeeds.
func (s *PostgresStore) Atomically(ctx context.Context, fn func(u Unit) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(pgUnit{q: tx, locking: true}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgUnit struct {
	q       querier
	locking bool
}

func (u pgUnit) Balances() BalanceStore       { return u }
func (u pgUnit) Transactions() TransactionLog { return u }

func (u pgUnit) Balance(ctx context.Context) (money.Money, error) {
	var raw string
	err := u.q.QueryRow(ctx, `SELECT amount::text FROM balances WHERE id = 1 AND deleted_at IS NULL`).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return money.Zero, nil
	}
	if err != nil {
		return money.Money{}, err
	}
	return money.Parse(raw)
}

// Credit adds to the live balance. A soft-deleted row restarts from zero.
func (u pgUnit) Credit(ctx context.Context, amount money.Money) (money.Money, error) {
	const query = `
        INSERT INTO balances (id, amount) VALUES (1, $1::text::numeric)
        ON CONFLICT (id) DO UPDATE
            SET amount = CASE WHEN balances.deleted_at IS NULL THEN balances.amount ELSE 0 END + EXCLUDED.amount,
                updated_at = now(), deleted_at = NULL
        RETURNING amount::text`
	var raw string
	if err := u.q.QueryRow(ctx, query, amount.String()).Scan(&raw); err != nil {
		return money.Money{}, err
	}
	return money.Parse(raw)
}

// Debit applies the sufficiency check in the UPDATE itself, so concurrent
// debits re-evaluate it against the latest committed balance.
func (u pgUnit) Debit(ctx context.Context, amount money.Money) (money.Money, error) {
	const query = `
        UPDATE balances SET amount = amount - $1::text::numeric, updated_at = now()
        WHERE id = 1 AND deleted_at IS NULL AND amount >= $1::text::numeric
        RETURNING amount::text`
	var raw string
	err := u.q.QueryRow(ctx, query, amount.String()).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		available, balErr := u.Balance(ctx)
		if balErr != nil {
			return money.Money{}, balErr
		}
		if amount.IsZero() {
			return available, nil
		}
		return available, &InsufficientFundsError{Available: available, Required: amount}
	}
	if err != nil {
		return money.Money{}, err
	}
	return money.Parse(raw)
}

func (u pgUnit) Append(ctx context.Context, tx Transaction) error {
	id := uuid.New()
	if tx.ID != "" {
		parsed, err := uuid.Parse(tx.ID)
		if err != nil {
			return err
		}
		id = parsed
	}
	var handle *string
	if tx.GatewayHandle != "" {
		handle = &tx.GatewayHandle
	}
	_, err := u.q.Exec(ctx, `INSERT INTO transactions
        (id, order_id, amount, snap_token, payment_status, type_transaction, status_transaction_id, description, transaction_date)
        VALUES ($1, $2, $3::text::numeric, $4, $5, $6, $7, $8, $9)`,
		id, tx.OrderID, tx.Amount.String(), handle, tx.PaymentStatus, int(tx.Type), tx.Status.CatalogID(), tx.Description, tx.TransactionDate)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateOrderID
	}
	return err
}

func (u pgUnit) Exists(ctx context.Context, orderID string) (bool, error) {
	var exists bool
	err := u.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE order_id = $1)`, orderID).Scan(&exists)
	return exists, err
}

const transactionColumns = `id, order_id, amount::text, snap_token, payment_status, type_transaction,
    status_transaction_id, COALESCE(description, ''), transaction_date, created_at, updated_at, deleted_at`

func (u pgUnit) FindByOrderID(ctx context.Context, orderID string) (Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE order_id = $1 AND deleted_at IS NULL`
	if u.locking {
		query += ` FOR UPDATE`
	}
	tx, err := scanTransaction(u.q.QueryRow(ctx, query, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrNotFound
	}
	return tx, err
}

func (u pgUnit) UpdateStatus(ctx context.Context, orderID string, status Status, paymentStatus string) error {
	cmd, err := u.q.Exec(ctx, `UPDATE transactions
        SET status_transaction_id = $1, payment_status = $2, updated_at = now()
        WHERE order_id = $3 AND deleted_at IS NULL`, status.CatalogID(), paymentStatus, orderID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (u pgUnit) Query(ctx context.Context, f Filter) (Page, error) {
	f, err := f.Normalize(DefaultPerPage)
	if err != nil {
		return Page{}, err
	}
	if f.Now.IsZero() {
		f.Now = time.Now()
	}

	where := []string{"deleted_at IS NULL"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Type != nil {
		where = append(where, "type_transaction = "+arg(int(*f.Type)))
	}
	if start, end, ok := f.Window.Bounds(f.Now); ok {
		where = append(where, "transaction_date >= "+arg(start), "transaction_date < "+arg(end))
	}
	if search := strings.ToLower(strings.TrimSpace(f.Search)); search != "" {
		p := arg("%" + likeEscaper.Replace(search) + "%")
		where = append(where, fmt.Sprintf(`(type_transaction::text LIKE %[1]s
            OR (CASE type_transaction WHEN 1 THEN 'deposit' ELSE 'withdrawal' END) LIKE %[1]s
            OR amount::text LIKE %[1]s)`, p))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := u.q.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE `+clause, args...).Scan(&total); err != nil {
		return Page{}, err
	}

	order := "transaction_date DESC, created_at DESC"
	if f.OrderBy == ByCreatedAt {
		order = "created_at DESC, transaction_date DESC"
	}
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE %s ORDER BY %s LIMIT %s OFFSET %s`,
		transactionColumns, clause, order, arg(f.PerPage), arg(f.offset()))

	rows, err := u.q.Query(ctx, query, args...)
	if err != nil {
		return Page{}, err
	}
	defer rows.Close()

	var items []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return Page{}, err
		}
		items = append(items, tx)
	}
	if err := rows.Err(); err != nil {
		return Page{}, err
	}
	return newPage(items, f, total), nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		tx       Transaction
		id       uuid.UUID
		amount   string
		handle   *string
		typ      int
		statusID int
	)
	if err := row.Scan(&id, &tx.OrderID, &amount, &handle, &tx.PaymentStatus, &typ, &statusID,
		&tx.Description, &tx.TransactionDate, &tx.CreatedAt, &tx.UpdatedAt, &tx.DeletedAt); err != nil {
		return Transaction{}, err
	}
	m, err := money.Parse(amount)
	if err != nil {
		return Transaction{}, err
	}
	tx.ID = id.String()
	tx.Amount = m
	tx.Type = Type(typ)
	tx.Status = StatusFromCatalogID(statusID)
	if handle != nil {
		tx.GatewayHandle = *handle
	}
	return tx, nil
}
