// Package request holds the input rules shared by the HTTP handlers. Every
// failure is a 422 response.Error carrying the message shown to the client.
package request

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/saldo-pay/saldo/internal/money"
	"github.com/saldo-pay/saldo/internal/response"
)

// TimestampLayout is the accepted format of client supplied timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

const maxOrderIDLength = 255

var orderIDPattern = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)

// Amount validates a required, numeric, non-negative amount.
func Amount(raw json.Number) (money.Money, error) {
	s := strings.TrimSpace(raw.String())
	if s == "" {
		return money.Money{}, response.Validation("The amount field is required.")
	}
	m, err := money.Parse(s)
	if err != nil {
		return money.Money{}, response.Validation("The amount field must be a number.")
	}
	if m.IsNegative() {
		return money.Money{}, response.Validation("The amount field must be at least 0.")
	}
	return m, nil
}

// OrderID validates a client supplied order id.
func OrderID(raw string) (string, error) {
	switch {
	case raw == "":
		return "", response.Validation("The order id field is required.")
	case len(raw) > maxOrderIDLength:
		return "", response.Validation(fmt.Sprintf("The order id field must not be greater than %d characters.", maxOrderIDLength))
	case !orderIDPattern.MatchString(raw):
		return "", response.Validation("The order id field format is invalid.")
	}
	return raw, nil
}

// Timestamp parses a required timestamp in the service time zone.
func Timestamp(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Time{}, response.Validation("The timestamp field is required.")
	}
	t, err := time.ParseInLocation(TimestampLayout, raw, loc)
	if err != nil {
		return time.Time{}, response.Validation("The timestamp field must match the format Y-m-d H:i:s.")
	}
	return t, nil
}

// Email performs a light shape check on an email address.
func Email(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", response.Validation("The email field is required.")
	}
	at := strings.LastIndexByte(raw, '@')
	if at < 1 || at == len(raw)-1 || !strings.Contains(raw[at:], ".") {
		return "", response.Validation("The email field must be a valid email address.")
	}
	return strings.ToLower(raw), nil
}

// OptionalInt parses an optional integer query parameter bounded below by min.
// An empty value returns 0.
func OptionalInt(field, raw string, min int) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, response.Validation(fmt.Sprintf("The %s field must be an integer.", label(field)))
	}
	if n < min {
		return 0, response.Validation(fmt.Sprintf("The %s field must be at least %d.", label(field), min))
	}
	return n, nil
}

func label(field string) string { return strings.ReplaceAll(field, "_", " ") }
