package processor

import (
	"context"

	"purchase-entitlement-service/internal/domain"
	"purchase-entitlement-service/internal/domain/ports/adapter"
)

var _ adapter.ProcessorGateway = (*NoopGateway)(nil)

// NoopGateway is a dev-mode stand-in that never finds payments.
type NoopGateway struct{}

func NewNoopGateway() *NoopGateway { return &NoopGateway{} }

func (NoopGateway) Name() string { return "noop" }

func (NoopGateway) FetchPayment(ctx context.Context, paymentID string) (*adapter.PaymentNotice, error) {
	return nil, domain.ErrNotFound
}
