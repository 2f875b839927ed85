// File: internal/infra/sched/intent_reconciler.go
package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"purchase-entitlement-service/internal/domain"
	"purchase-entitlement-service/internal/domain/ports/adapter"
	"purchase-entitlement-service/internal/domain/ports/repository"
	"purchase-entitlement-service/internal/infra/metrics"
	"purchase-entitlement-service/internal/usecase"
)

// IntentReconciler periodically scans for stale pending intents that carry a
// processor payment id and re-fetches their detail, pushing the result through
// the same webhook pipeline. This covers lost or long-delayed webhook
// deliveries; intents without a payment id can only be resolved by the
// customer's access-verification call.
type IntentReconciler struct {
	intents    repository.PurchaseIntentRepository
	gateway    adapter.ProcessorGateway
	pipeline   usecase.WebhookPipeline
	interval   time.Duration
	staleAfter time.Duration
	batchSize  int
	log        *zerolog.Logger
}

func NewIntentReconciler(
	intents repository.PurchaseIntentRepository,
	gateway adapter.ProcessorGateway,
	pipeline usecase.WebhookPipeline,
	interval, staleAfter time.Duration,
	batchSize int,
	logger *zerolog.Logger,
) *IntentReconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	return &IntentReconciler{
		intents:    intents,
		gateway:    gateway,
		pipeline:   pipeline,
		interval:   interval,
		staleAfter: staleAfter,
		batchSize:  batchSize,
		log:        logger,
	}
}

func (w *IntentReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *IntentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	stale, err := w.intents.ListStalePendingWithPaymentID(ctx, nil, cutoff, w.batchSize)
	if err != nil {
		metrics.ObserveReconcilerRun("list_error")
		w.log.Error().Err(err).Str("step", "reconcile_list").Msg("stale intent scan failed")
		return
	}
	if len(stale) == 0 {
		metrics.ObserveReconcilerRun("empty")
		return
	}

	for _, intent := range stale {
		if intent.Processor != w.gateway.Name() || intent.ProcessorPaymentID == nil {
			continue
		}
		notice, err := w.gateway.FetchPayment(ctx, *intent.ProcessorPaymentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				w.log.Warn().Str("step", "reconcile_fetch").Str("intent_id", intent.ID).Msg("payment no longer known to processor")
				continue
			}
			w.log.Error().Err(err).Str("step", "reconcile_fetch").Str("intent_id", intent.ID).Msg("payment re-fetch failed")
			continue
		}
		if _, err := w.pipeline.Apply(ctx, notice); err != nil {
			w.log.Error().Err(err).Str("step", "reconcile_apply").Str("intent_id", intent.ID).Msg("reconcile apply failed")
			continue
		}
		w.log.Info().Str("step", "reconcile_done").Str("intent_id", intent.ID).Msg("stale intent reconciled")
	}
	metrics.ObserveReconcilerRun("processed")
}
