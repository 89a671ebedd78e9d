package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/saldo-pay/saldo/internal/response"
)

const (
	idempotencyKeyHeader    = "Idempotency-Key"
	idempotentReplayHeader  = "Idempotent-Replayed"
	idempotencyPrefix       = "idempotency:v1:"
	inProgressMarker        = "__in_progress__"
	idempotencyStoreTimeout = 2 * time.Second
)

// replayedResponse is what a repeated request receives instead of running
// the handler again.
type replayedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        string `json:"body"`
}

type replayCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// Idempotency lets clients retry a mutating request by sending the same
// Idempotency-Key. Keys are scoped to method and path. While the first
// request runs, repeats get 409. Once it completes with a status below 500,
// repeats within ttl get the recorded response. Server errors release the
// key so the client can retry. Without the header, or without Redis, the
// middleware does nothing.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	rc := replayCache{redis: cache, ttl: ttl, logger: logger}
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}
		key := strings.TrimSpace(c.Get(idempotencyKeyHeader))
		if key == "" || cache == nil {
			return c.Next()
		}
		slot := idempotencyPrefix + c.Method() + ":" + c.Path() + ":" + key

		recorded, found, err := rc.lookup(slot)
		if err != nil {
			rc.logger.Error("idempotency lookup failed", slog.String("key", key), slog.Any("error", err))
			return response.NewError(fiber.StatusInternalServerError, "Idempotency store failure")
		}
		if found {
			if recorded == nil {
				return response.NewError(fiber.StatusConflict, "Duplicate request currently processing")
			}
			c.Set(idempotentReplayHeader, "true")
			if recorded.ContentType != "" {
				c.Set(fiber.HeaderContentType, recorded.ContentType)
			}
			return c.Status(recorded.Status).SendString(recorded.Body)
		}

		reserved, err := rc.reserve(slot)
		if err != nil {
			rc.logger.Error("idempotency reservation failed", slog.String("key", key), slog.Any("error", err))
			return response.NewError(fiber.StatusInternalServerError, "Idempotency reservation failure")
		}
		if !reserved {
			return response.NewError(fiber.StatusConflict, "Duplicate request currently processing")
		}

		if err := c.Next(); err != nil {
			rc.release(slot)
			return err
		}
		status := c.Response().StatusCode()
		if status >= fiber.StatusInternalServerError {
			rc.release(slot)
			return nil
		}

		if err := rc.record(slot, replayedResponse{
			Status:      status,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        string(c.Response().Body()),
		}); err != nil {
			rc.logger.Error("failed to record idempotent response", slog.String("key", key), slog.Any("error", err))
			rc.release(slot)
			return response.NewError(fiber.StatusInternalServerError, "Idempotency persistence failure")
		}
		return nil
	}
}

// lookup reports whether slot is taken. A nil response with found set means
// the first request is still running.
func (rc replayCache) lookup(slot string) (*replayedResponse, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), idempotencyStoreTimeout)
	defer cancel()

	raw, err := rc.redis.Get(ctx, slot).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if raw == inProgressMarker {
		return nil, true, nil
	}
	var recorded replayedResponse
	if err := json.Unmarshal([]byte(raw), &recorded); err != nil {
		return nil, false, err
	}
	return &recorded, true, nil
}

func (rc replayCache) reserve(slot string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), idempotencyStoreTimeout)
	defer cancel()
	return rc.redis.SetNX(ctx, slot, inProgressMarker, rc.ttl).Result()
}

func (rc replayCache) record(slot string, resp replayedResponse) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), idempotencyStoreTimeout)
	defer cancel()
	return rc.redis.Set(ctx, slot, payload, rc.ttl).Err()
}

func (rc replayCache) release(slot string) {
	ctx, cancel := context.WithTimeout(context.Background(), idempotencyStoreTimeout)
	defer cancel()
	if err := rc.redis.Del(ctx, slot).Err(); err != nil {
		rc.logger.Warn("failed to release idempotency key", slog.String("slot", slot), slog.Any("error", err))
	}
}
