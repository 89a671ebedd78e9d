package ledger

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

const orderIDTimeLayout = "20060102150405"

// OrderIDGenerator produces identifiers of the form PREFIX-YYYYMMDDhhmmss-NNNN.
type OrderIDGenerator struct {
	prefix string
	exists func(ctx context.Context, orderID string) (bool, error)
	now    func() time.Time
	suffix func() int
}

// NewOrderIDGenerator builds a generator that checks candidates against the log.
func NewOrderIDGenerator(prefix string, log TransactionLog) *OrderIDGenerator {
	return &OrderIDGenerator{
		prefix: prefix,
		exists: log.Exists,
		now:    time.Now,
		suffix: func() int { return rand.Intn(10000) },
	}
}

// WithPrefix returns a copy using another prefix.
func (g *OrderIDGenerator) WithPrefix(prefix string) *OrderIDGenerator {
	cp := *g
	cp.prefix = prefix
	return &cp
}

// Generate returns an order id not yet present in the log. On collision only
// the random suffix is redrawn. The loop has no retry cap; with 10^4 suffixes
// per second it terminates unless that second is saturated.
func (g *OrderIDGenerator) Generate(ctx context.Context) (string, error) {
	stamp := g.now().Format(orderIDTimeLayout)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate := fmt.Sprintf("%s-%s-%04d", g.prefix, stamp, g.suffix())
		taken, err := g.exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check order id %s: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
}
