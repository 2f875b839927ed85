package adapter

import "context"

// FulfillmentNotifier requests delivery of the post-purchase notification.
// Callers treat it as fire-and-forget: failures are logged, never retried
// synchronously, and never surfaced as a handler failure.
type FulfillmentNotifier interface {
	SendPurchaseConfirmation(ctx context.Context, email string, plan string) error
}
