package redis

import (
	"context"
	"fmt"
	"time"

	"purchase-entitlement-service/internal/domain/ports/repository"
)

var _ repository.DeliveryDedupe = (*DeliveryDedupe)(nil)

// DeliveryDedupe remembers processor payment ids for the dedupe TTL so a
// redelivered webhook can skip re-running side effects. SETNX keeps the check
// and the mark atomic across concurrent deliveries.
type DeliveryDedupe struct {
	client RedisClient
	ttl    time.Duration
}

func NewDeliveryDedupe(client RedisClient, ttl time.Duration) *DeliveryDedupe {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &DeliveryDedupe{client: client, ttl: ttl}
}

func (d *DeliveryDedupe) MarkIfFirst(ctx context.Context, processor, paymentID string) (bool, error) {
	return d.client.SetNX(ctx, dedupeKey(processor, paymentID), 1, d.ttl)
}

func (d *DeliveryDedupe) Forget(ctx context.Context, processor, paymentID string) error {
	return d.client.Del(ctx, dedupeKey(processor, paymentID))
}

func dedupeKey(processor, paymentID string) string {
	return fmt.Sprintf("webhook:seen:%s:%s", processor, paymentID)
}
