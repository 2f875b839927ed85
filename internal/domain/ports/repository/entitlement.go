package repository

import (
	"context"

	"purchase-entitlement-service/internal/domain/model"
)

// EntitlementProfileRepository stores the derived per-account entitlement
// truth. Upsert-by-account semantics: at most one row per account.
type EntitlementProfileRepository interface {
	FindByAccountID(ctx context.Context, tx Tx, accountID string) (*model.EntitlementProfile, error)
	Upsert(ctx context.Context, tx Tx, profile *model.EntitlementProfile) error
}

// SubscriptionRecordRepository is the append-only payment/renewal history.
type SubscriptionRecordRepository interface {
	Append(ctx context.Context, tx Tx, rec *model.SubscriptionRecord) error
	// FindLatestApproved returns the most recently created approved record for
	// the account, or domain.ErrNotFound.
	FindLatestApproved(ctx context.Context, tx Tx, accountID string) (*model.SubscriptionRecord, error)
	ListByAccount(ctx context.Context, tx Tx, accountID string) ([]*model.SubscriptionRecord, error)
}

// DeliveryDedupe tracks processor payment ids whose side effects completed,
// so a redelivered webhook can skip re-running them. Best effort: a dedupe
// miss is safe because provisioning itself is idempotent.
type DeliveryDedupe interface {
	// MarkIfFirst records (processor, paymentID) and reports whether this is
	// the first time the pair was seen.
	MarkIfFirst(ctx context.Context, processor, paymentID string) (bool, error)
	// Forget removes the mark, so a delivery whose side effects failed after
	// marking can be retried by the processor.
	Forget(ctx context.Context, processor, paymentID string) error
}
