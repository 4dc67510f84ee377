// Package notify holds alert-side adapters around the fan-out: suppression
// of duplicate alerts across redelivered events.
package notify

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/edumatch/matching-service/internal/domain"
)

// RedisDeduper marks alerted (applicant, opportunity) pairs in Redis with a
// TTL. SETNX makes the check-and-mark atomic across concurrent consumers.
type RedisDeduper struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedisDeduper constructs a deduper with the given dedupe window.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{Client: client, TTL: ttl}
}

// FirstAlert reports whether this pair has not been alerted within the TTL
// window, marking it as alerted when it has not.
func (d *RedisDeduper) FirstAlert(ctx domain.Context, applicantID, opportunityID string) (bool, error) {
	key := fmt.Sprintf("match-alert:%s:%s", opportunityID, applicantID)
	ok, err := d.Client.SetNX(ctx, key, 1, d.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("op=dedupe.first_alert: %w", err)
	}
	return ok, nil
}
