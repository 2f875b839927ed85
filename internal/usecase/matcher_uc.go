// File: internal/usecase/matcher_uc.go
package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"purchase-entitlement-service/internal/domain"
	"purchase-entitlement-service/internal/domain/model"
	"purchase-entitlement-service/internal/domain/ports/adapter"
	"purchase-entitlement-service/internal/domain/ports/repository"
	"purchase-entitlement-service/internal/infra/metrics"
)

// MatchTier identifies which lookup strategy located the intent.
type MatchTier string

const (
	TierExternalReference  MatchTier = "external_reference"
	TierProcessorReference MatchTier = "processor_reference"
	TierFallbackPending    MatchTier = "fallback_latest_pending"
)

// Compile-time check
var _ OrderMatcher = (*orderMatcher)(nil)

// OrderMatcher resolves an inbound notification to exactly one purchase
// intent, or reports domain.ErrOrderNotFound. It never creates intents.
type OrderMatcher interface {
	Match(ctx context.Context, tx repository.Tx, notice *adapter.PaymentNotice) (*model.PurchaseIntent, MatchTier, error)
}

type orderMatcher struct {
	intents repository.PurchaseIntentRepository
	log     *zerolog.Logger
}

func NewOrderMatcher(intents repository.PurchaseIntentRepository, logger *zerolog.Logger) *orderMatcher {
	return &orderMatcher{intents: intents, log: logger}
}

// Match applies the tiers in order; first success wins.
//
// Tier 3 is a deliberate best-effort heuristic for notifications that carry
// no reliable identifier: it picks the single most recently created pending
// intent. When two checkouts are pending concurrently for different customers
// this can misattribute a payment, so every fallback match is logged at Warn
// with enough context for postmortem reconciliation.
func (m *orderMatcher) Match(ctx context.Context, tx repository.Tx, notice *adapter.PaymentNotice) (*model.PurchaseIntent, MatchTier, error) {
	// Tier 1: our own correlation token, round-tripped through the processor.
	if ref := notice.ExternalReference; ref != "" && model.HasWellFormedReference(ref) {
		intent, err := m.intents.FindByExternalReference(ctx, tx, ref)
		if err == nil {
			metrics.ObserveOrderMatch(string(TierExternalReference))
			return intent, TierExternalReference, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, "", err
		}
		// No full-string hit; accept a containment match only if it is unique.
		candidates, err := m.intents.ListByExternalReferenceFragment(ctx, tx, ref)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, "", err
		}
		if len(candidates) == 1 {
			metrics.ObserveOrderMatch(string(TierExternalReference))
			return candidates[0], TierExternalReference, nil
		}
		if len(candidates) > 1 {
			m.log.Warn().
				Str("step", "match_tier1").
				Str("external_reference", ref).
				Int("candidates", len(candidates)).
				Msg("ambiguous external reference fragment, falling through")
		}
	}

	// Tier 2: processor's own preference/checkout id.
	if notice.ProcessorReferenceID != "" {
		intent, err := m.intents.FindByProcessorReference(ctx, tx, notice.ProcessorReferenceID)
		if err == nil {
			metrics.ObserveOrderMatch(string(TierProcessorReference))
			return intent, TierProcessorReference, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, "", err
		}
	}

	// Tier 3: fallback. Known correctness risk, kept loud on purpose.
	intent, err := m.intents.FindLatestPending(ctx, tx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, "", domain.ErrOrderNotFound
		}
		return nil, "", err
	}
	metrics.ObserveOrderMatch(string(TierFallbackPending))
	metrics.ObserveFallbackMatch(notice.Processor)
	m.log.Warn().
		Str("step", "match_fallback").
		Str("processor", notice.Processor).
		Str("payment_id", notice.PaymentID).
		Str("intent_id", intent.ID).
		Msg("fallback match: notification carried no reliable identifier; latest pending intent selected")
	return intent, TierFallbackPending, nil
}
