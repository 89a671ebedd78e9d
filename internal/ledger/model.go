package ledger

import (
	"time"

	"github.com/saldo-pay/saldo/internal/money"
)

// Type distinguishes deposits from withdrawals. The numeric values match the
// type_transaction column.
type Type int

const (
	TypeDeposit    Type = 1
	TypeWithdrawal Type = 2
)

// String returns the lower-case filter name of the type.
func (t Type) String() string {
	switch t {
	case TypeDeposit:
		return "deposit"
	case TypeWithdrawal:
		return "withdrawal"
	default:
		return "unknown"
	}
}

// Label returns the display name used in listings.
func (t Type) Label() string {
	switch t {
	case TypeDeposit:
		return "Deposit"
	case TypeWithdrawal:
		return "Withdrawal"
	default:
		return "Unknown"
	}
}

// ParseType maps a filter value onto a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "deposit":
		return TypeDeposit, nil
	case "withdrawal":
		return TypeWithdrawal, nil
	default:
		return 0, invalidFilter("type must be one of deposit, withdrawal")
	}
}

// Transaction is one immutable entry of the ledger. Only Status and
// PaymentStatus change after creation.
type Transaction struct {
	ID              string
	OrderID         string
	Amount          money.Money
	Type            Type
	Status          Status
	PaymentStatus   string
	Description     string
	TransactionDate time.Time
	GatewayHandle   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time
}

// Window restricts history to the calendar period containing now.
type Window string

const (
	WindowNone  Window = ""
	WindowDay   Window = "day"
	WindowMonth Window = "month"
	WindowYear  Window = "year"
)

// ParseWindow validates a time filter value. The empty string means no filter.
func ParseWindow(s string) (Window, error) {
	switch w := Window(s); w {
	case WindowNone, WindowDay, WindowMonth, WindowYear:
		return w, nil
	default:
		return "", invalidFilter("filter must be one of day, month, year")
	}
}

// Bounds returns the half-open interval [start, end) of the window around now.
func (w Window) Bounds(now time.Time) (time.Time, time.Time, bool) {
	y, m, d := now.Date()
	loc := now.Location()
	switch w {
	case WindowDay:
		start := time.Date(y, m, d, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 0, 1), true
	case WindowMonth:
		start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0), true
	case WindowYear:
		start := time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(1, 0, 0), true
	default:
		return time.Time{}, time.Time{}, false
	}
}

// Ordering selects the sort column of a query. Both sort descending.
type Ordering int

const (
	ByTransactionDate Ordering = iota
	ByCreatedAt
)

const (
	DefaultPerPage = 15
	MaxPerPage     = 100
)

// Filter describes a transaction log query.
type Filter struct {
	Type    *Type
	Window  Window
	Search  string
	Page    int
	PerPage int
	OrderBy Ordering
	// Now anchors Window. The store fills it in when zero.
	Now time.Time
}

// Normalize applies defaults and validates paging bounds.
func (f Filter) Normalize(defaultPerPage int) (Filter, error) {
	if f.Page == 0 {
		f.Page = 1
	}
	if f.PerPage == 0 {
		f.PerPage = defaultPerPage
	}
	if f.Page < 1 {
		return f, invalidFilter("page must be at least 1")
	}
	if f.PerPage < 1 || f.PerPage > MaxPerPage {
		return f, invalidFilter("per_page must be between 1 and 100")
	}
	return f, nil
}

func (f Filter) offset() int { return (f.Page - 1) * f.PerPage }

// Page is one page of a query result.
type Page struct {
	Items       []Transaction
	CurrentPage int
	PerPage     int
	Total       int
	LastPage    int
}

func newPage(items []Transaction, f Filter, total int) Page {
	last := (total + f.PerPage - 1) / f.PerPage
	if last < 1 {
		last = 1
	}
	if items == nil {
		items = []Transaction{}
	}
	return Page{Items: items, CurrentPage: f.Page, PerPage: f.PerPage, Total: total, LastPage: last}
}

// From is the 1-based position of the first item on the page, or 0 when empty.
func (p Page) From() int {
	if len(p.Items) == 0 {
		return 0
	}
	return (p.CurrentPage-1)*p.PerPage + 1
}

// To is the 1-based position of the last item on the page, or 0 when empty.
func (p Page) To() int {
	if len(p.Items) == 0 {
		return 0
	}
	return p.From() + len(p.Items) - 1
}
