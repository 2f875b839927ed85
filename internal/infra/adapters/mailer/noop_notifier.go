package mailer

import (
	"context"

	"purchase-entitlement-service/internal/domain/ports/adapter"
)

var _ adapter.FulfillmentNotifier = (*NoopNotifier)(nil)

// NoopNotifier swallows notifications in dev mode.
type NoopNotifier struct{}

func NewNoopNotifier() *NoopNotifier { return &NoopNotifier{} }

func (NoopNotifier) SendPurchaseConfirmation(ctx context.Context, email string, plan string) error {
	return nil
}
