// File: internal/usecase/webhook_uc.go
package usecase

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"purchase-entitlement-service/internal/domain"
	"purchase-entitlement-service/internal/domain/model"
	"purchase-entitlement-service/internal/domain/ports/adapter"
	"purchase-entitlement-service/internal/domain/ports/repository"
	"purchase-entitlement-service/internal/infra/metrics"
)

// WebhookOutcome is the business result of one notification. Everything here
// is a valid 2xx response; only infrastructure failures bubble up as errors.
type WebhookOutcome struct {
	Status   string // "approved" | "rejected" | "cancelled" | "duplicate" | "order_not_found" | "unchanged"
	IntentID string
	Tier     MatchTier
}

// transition results carried out of the tx closure.
const (
	txTransitioned = "transitioned"
	txNonTerminal  = "non_terminal"
	txDuplicate    = "duplicate"
	txRefused      = "refused"
)

// Compile-time check
var _ WebhookPipeline = (*webhookPipeline)(nil)

// WebhookPipeline applies one normalized payment notice: match, transition,
// provision. Both processor handlers and the reconciler feed it, so every
// producer shares identical semantics.
type WebhookPipeline interface {
	Apply(ctx context.Context, notice *adapter.PaymentNotice) (*WebhookOutcome, error)
}

type webhookPipeline struct {
	intents     repository.PurchaseIntentRepository
	matcher     OrderMatcher
	provisioner AccountProvisioner
	dedupe      repository.DeliveryDedupe
	notifier    adapter.FulfillmentNotifier
	txm         repository.TransactionManager
	log         *zerolog.Logger
}

func NewWebhookPipeline(
	intents repository.PurchaseIntentRepository,
	matcher OrderMatcher,
	provisioner AccountProvisioner,
	dedupe repository.DeliveryDedupe,
	notifier adapter.FulfillmentNotifier,
	txm repository.TransactionManager,
	logger *zerolog.Logger,
) *webhookPipeline {
	return &webhookPipeline{
		intents:     intents,
		matcher:     matcher,
		provisioner: provisioner,
		dedupe:      dedupe,
		notifier:    notifier,
		txm:         txm,
		log:         logger,
	}
}

func (w *webhookPipeline) Apply(ctx context.Context, notice *adapter.PaymentNotice) (*WebhookOutcome, error) {
	log := w.log.With().
		Str("processor", notice.Processor).
		Str("payment_id", notice.PaymentID).
		Logger()

	var (
		intent *model.PurchaseIntent
		tier   MatchTier
		next   model.IntentStatus
		result string
	)
	txErr := w.txm.WithTx(ctx, pgx.TxOptions{}, func(txCtx context.Context, tx repository.Tx) error {
		var err error
		intent, tier, err = w.matcher.Match(txCtx, tx, notice)
		if err != nil {
			return err
		}
		// Re-read under a row lock so concurrent deliveries serialize on the
		// read-then-conditional-write below.
		intent, err = w.intents.FindByID(txCtx, tx, intent.ID)
		if err != nil {
			return err
		}

		var ok bool
		next, ok = statusFromNotice(notice.Status)
		if !ok {
			result = txNonTerminal
			return nil
		}

		var emailUpdate *string
		if intent.ShouldOverwriteEmail(notice.PayerEmail) {
			emailUpdate = &notice.PayerEmail
		}
		var paymentIDUpdate *string
		if notice.PaymentID != "" && intent.ProcessorPaymentID == nil {
			paymentIDUpdate = &notice.PaymentID
		}

		switch {
		case intent.Status == model.IntentStatusPending && intent.CanTransitionTo(next):
			changed, err := w.intents.TransitionIfPending(txCtx, tx, intent.ID, next, emailUpdate, paymentIDUpdate)
			if err != nil {
				return err
			}
			if !changed {
				// Lost the optimistic race against a concurrent delivery; the
				// other writer owns the transition and provisioning converges
				// anyway.
				log.Info().Str("step", "webhook_transition").Msg("concurrent transition already applied")
			}
			intent.Status = next
			if emailUpdate != nil {
				intent.Email = emailUpdate
			}
			if paymentIDUpdate != nil {
				intent.ProcessorPaymentID = paymentIDUpdate
			}
			result = txTransitioned
		case intent.Status == next:
			// Redelivery of a settled outcome still records the delivery.
			if err := w.intents.Touch(txCtx, tx, intent.ID, next); err != nil {
				return err
			}
			result = txDuplicate
		default:
			result = txRefused
		}
		return nil
	})
	if txErr != nil {
		if errors.Is(txErr, domain.ErrOrderNotFound) {
			// A missing order is a business outcome, not a fault: answering
			// with an error here would only cause processor retry storms.
			metrics.ObserveWebhook(notice.Processor, "order_not_found")
			log.Info().Str("step", "webhook_match").Msg("order_not_found")
			return &WebhookOutcome{Status: "order_not_found"}, nil
		}
		metrics.ObserveWebhook(notice.Processor, "error")
		return nil, txErr
	}
	log = log.With().Str("intent_id", intent.ID).Str("tier", string(tier)).Logger()

	if notice.Amount > 0 && intent.Amount > 0 && notice.Amount != intent.Amount {
		log.Warn().Str("step", "webhook_amount").
			Int64("notified_amount", notice.Amount).
			Str("notified_currency", notice.Currency).
			Int64("intent_amount", intent.Amount).
			Str("intent_currency", intent.Currency).
			Msg("processor amount differs from checkout amount")
	}

	switch result {
	case txNonTerminal:
		metrics.ObserveWebhook(notice.Processor, "unchanged")
		log.Info().Str("step", "webhook_status").Str("status", notice.Status).Msg("non-terminal processor status, nothing to apply")
		return &WebhookOutcome{Status: "unchanged", IntentID: intent.ID, Tier: tier}, nil
	case txRefused:
		metrics.ObserveWebhook(notice.Processor, "invalid_transition")
		log.Warn().Str("step", "webhook_transition").
			Str("from", string(intent.Status)).
			Str("to", string(next)).
			Msg("transition refused, intent already terminal")
		return &WebhookOutcome{Status: "unchanged", IntentID: intent.ID, Tier: tier}, nil
	case txDuplicate:
		if next != model.IntentStatusApproved {
			metrics.ObserveWebhook(notice.Processor, "duplicate")
			log.Info().Str("step", "webhook_redelivery").Msg("already settled, nothing to re-run")
			return &WebhookOutcome{Status: "duplicate", IntentID: intent.ID, Tier: tier}, nil
		}
		// An approved redelivery falls through to the provisioning gate: when
		// a previous delivery transitioned the intent but failed before its
		// side effects completed, the completion marker below is still absent
		// and the retry finishes the job.
	}

	if next != model.IntentStatusApproved {
		metrics.ObserveWebhook(notice.Processor, string(next))
		log.Info().Str("step", "webhook_settled").Str("status", string(next)).Msg("intent settled without provisioning")
		return &WebhookOutcome{Status: string(next), IntentID: intent.ID, Tier: tier}, nil
	}

	email := intent.KnownEmail()
	if email == "" {
		// Masked or absent payer email and nothing stored: the transition
		// stands, provisioning waits for the customer's access-verification
		// call, which carries a real address.
		metrics.ObserveWebhook(notice.Processor, "approved_no_email")
		log.Warn().Str("step", "webhook_provision").Msg("approved without usable email, deferring provisioning")
		return &WebhookOutcome{Status: "approved", IntentID: intent.ID, Tier: tier}, nil
	}

	plan := intent.PlanType
	if plan == "" && notice.PlanHint != "" {
		plan = model.PlanType(notice.PlanHint)
	}

	// The dedupe key is the side-effect completion marker for this payment.
	// It is claimed here, released again if provisioning fails, and left in
	// place on success so a clean redelivery skips re-provisioning. If the
	// store is down the delivery proceeds only when this call performed the
	// transition; ConfirmPurchase tolerates the re-run for everything except
	// appending a second subscription record.
	provision := result == txTransitioned
	marked := false
	if notice.PaymentID != "" {
		if f, derr := w.dedupe.MarkIfFirst(ctx, notice.Processor, notice.PaymentID); derr == nil {
			provision = f
			marked = f
		} else {
			log.Warn().Err(derr).Str("step", "webhook_dedupe").Msg("dedupe store unavailable, proceeding")
		}
	}

	if provision {
		if _, err := w.provisioner.ConfirmPurchase(ctx, email, plan, intent.Amount, intent.Currency); err != nil {
			if marked {
				if derr := w.dedupe.Forget(ctx, notice.Processor, notice.PaymentID); derr != nil {
					log.Warn().Err(derr).Str("step", "webhook_dedupe").Msg("could not release completion marker")
				}
			}
			metrics.ObserveWebhook(notice.Processor, "error")
			return nil, err
		}
		w.notifyFulfillment(ctx, &log, email, plan, notice.PayerEmail)
		metrics.ObserveWebhook(notice.Processor, "approved")
		return &WebhookOutcome{Status: "approved", IntentID: intent.ID, Tier: tier}, nil
	}

	log.Info().Str("step", "webhook_provision").Msg("duplicate delivery, side effects already completed")
	metrics.ObserveWebhook(notice.Processor, "duplicate")
	return &WebhookOutcome{Status: "duplicate", IntentID: intent.ID, Tier: tier}, nil
}

// notifyFulfillment requests the post-purchase notification without blocking
// the handler response. Skipped entirely when the processor masked the payer
// address for this delivery.
func (w *webhookPipeline) notifyFulfillment(ctx context.Context, log *zerolog.Logger, email string, plan model.PlanType, rawPayerEmail string) {
	if model.IsMaskedEmail(rawPayerEmail) {
		log.Info().Str("step", "webhook_notify").Msg("payer email masked, fulfillment notification skipped")
		return
	}
	notify := *log
	go func() {
		if err := w.notifier.SendPurchaseConfirmation(context.WithoutCancel(ctx), email, string(plan)); err != nil {
			notify.Error().Err(err).Str("step", "webhook_notify").Msg("fulfillment notification failed")
		}
	}()
}

func statusFromNotice(s string) (model.IntentStatus, bool) {
	switch s {
	case "approved":
		return model.IntentStatusApproved, true
	case "rejected":
		return model.IntentStatusRejected, true
	case "cancelled":
		return model.IntentStatusCancelled, true
	default:
		return "", false
	}
}
