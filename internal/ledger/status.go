package ledger

import "strings"

// Status is the lifecycle state of a transaction.
type Status int

const (
	StatusPending Status = iota + 1
	StatusSuccess
	StatusDenied
	StatusExpired
	StatusCancelled
	StatusRefunded
	StatusPartiallyRefunded
	StatusAuthorized
	StatusChallenge
	StatusUnknown
)

// CatalogEntry is one row of the status_transactions reference table.
type CatalogEntry struct {
	ID     int
	Name   string
	Status Status
}

// StatusCatalog is the fixed status reference data. A denied payment is
// recorded as "failed".
var StatusCatalog = []CatalogEntry{
	{ID: 1, Name: "pending", Status: StatusPending},
	{ID: 2, Name: "success", Status: StatusSuccess},
	{ID: 3, Name: "failed", Status: StatusDenied},
	{ID: 4, Name: "expired", Status: StatusExpired},
	{ID: 5, Name: "cancelled", Status: StatusCancelled},
	{ID: 6, Name: "refunded", Status: StatusRefunded},
	{ID: 7, Name: "partially_refunded", Status: StatusPartiallyRefunded},
	{ID: 8, Name: "authorized", Status: StatusAuthorized},
	{ID: 9, Name: "challenge", Status: StatusChallenge},
	{ID: 10, Name: "unknown", Status: StatusUnknown},
}

// CatalogID returns the reference id persisted for the status.
func (s Status) CatalogID() int {
	for _, e := range StatusCatalog {
		if e.Status == s {
			return e.ID
		}
	}
	return StatusUnknown.CatalogID()
}

// StatusFromCatalogID is the inverse of CatalogID.
func StatusFromCatalogID(id int) Status {
	for _, e := range StatusCatalog {
		if e.ID == id {
			return e.Status
		}
	}
	return StatusUnknown
}

// String returns the catalog display name.
func (s Status) String() string {
	for _, e := range StatusCatalog {
		if e.Status == s {
			return e.Name
		}
	}
	return "unknown"
}

// PaymentStatus returns the gateway-facing status word stored alongside the
// catalog id. It differs from String only for denied payments.
func (s Status) PaymentStatus() string {
	if s == StatusDenied {
		return "denied"
	}
	return s.String()
}

// Terminal reports whether no further transition is accepted.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusDenied, StatusExpired, StatusCancelled:
		return true
	default:
		return false
	}
}

// MapProviderStatus translates a gateway notification into an internal status.
func MapProviderStatus(transactionStatus, paymentType, fraudStatus string) Status {
	switch strings.ToLower(transactionStatus) {
	case "capture":
		if paymentType == "credit_card" && fraudStatus == "challenge" {
			return StatusChallenge
		}
		return StatusSuccess
	case "settlement":
		return StatusSuccess
	case "pending":
		return StatusPending
	case "deny":
		return StatusDenied
	case "expire":
		return StatusExpired
	case "cancel":
		return StatusCancelled
	case "refund":
		return StatusRefunded
	case "partial_refund":
		return StatusPartiallyRefunded
	case "authorize":
		return StatusAuthorized
	default:
		return StatusUnknown
	}
}
