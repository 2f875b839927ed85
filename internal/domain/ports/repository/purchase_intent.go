package repository

import (
	"context"
	"time"

	"purchase-entitlement-service/internal/domain/model"
)

// PurchaseIntentRepository owns the checkout audit trail. Intents are created
// by the purchase-creation flow and mutated only by the webhook/matcher
// pipeline; they are never deleted.
type PurchaseIntentRepository interface {
	Save(ctx context.Context, tx Tx, intent *model.PurchaseIntent) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PurchaseIntent, error)

	// Matching tiers. FindByExternalReference is a full-string match;
	// ListByExternalReferenceFragment returns intents whose reference contains
	// the fragment, newest first.
	FindByExternalReference(ctx context.Context, tx Tx, ref string) (*model.PurchaseIntent, error)
	ListByExternalReferenceFragment(ctx context.Context, tx Tx, fragment string) ([]*model.PurchaseIntent, error)
	FindByProcessorReference(ctx context.Context, tx Tx, processorRef string) (*model.PurchaseIntent, error)
	FindLatestPending(ctx context.Context, tx Tx) (*model.PurchaseIntent, error)

	// TransitionIfPending performs the optimistic status write: it updates
	// status (plus optional email / processor payment id) only while the row is
	// still pending, and reports whether a row was changed.
	TransitionIfPending(ctx context.Context, tx Tx, id string, next model.IntentStatus, email, paymentID *string) (bool, error)
	// Touch re-writes status and updated_at unconditionally. Used on webhook
	// redelivery, where the handler still records the delivery but the
	// transition itself already happened.
	Touch(ctx context.Context, tx Tx, id string, status model.IntentStatus) error

	// Access-verification reads.
	ListApprovedByEmailSince(ctx context.Context, tx Tx, email string, since time.Time) ([]*model.PurchaseIntent, error)
	ListApprovedByEmail(ctx context.Context, tx Tx, email string) ([]*model.PurchaseIntent, error)

	// Reconciler scan: pending intents older than the cutoff that carry a
	// processor payment id we can re-query.
	ListStalePendingWithPaymentID(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.PurchaseIntent, error)
}
