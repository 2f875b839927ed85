// File: internal/usecase/access_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"purchase-entitlement-service/internal/domain"
	"purchase-entitlement-service/internal/domain/model"
	"purchase-entitlement-service/internal/domain/ports/adapter"
	"purchase-entitlement-service/internal/domain/ports/repository"
	"purchase-entitlement-service/internal/infra/metrics"
)

// RecencyWindow bounds the first, cheap approved-intent query; the lookup
// widens to all-time before giving up.
const RecencyWindow = 24 * time.Hour

// AccessGrant is the answer to "do I have access right now".
type AccessGrant struct {
	HasValidPayment bool
	AccessToken     string
	RefreshToken    string
	AccountID       string
	Email           string
	Message         string
}

// Compile-time check
var _ AccessVerifier = (*accessVerifier)(nil)

// AccessVerifier is the synchronous query path a client polls after checkout.
// It must reach the same terminal entitlement state as the webhook path
// regardless of delivery ordering, which it does by funnelling into the same
// idempotent AccountProvisioner.
type AccessVerifier interface {
	Verify(ctx context.Context, email string) (*AccessGrant, error)
}

type accessVerifier struct {
	intents     repository.PurchaseIntentRepository
	provisioner AccountProvisioner
	sessions    adapter.SessionIssuer
	log         *zerolog.Logger
}

func NewAccessVerifier(
	intents repository.PurchaseIntentRepository,
	provisioner AccountProvisioner,
	sessions adapter.SessionIssuer,
	logger *zerolog.Logger,
) *accessVerifier {
	return &accessVerifier{intents: intents, provisioner: provisioner, sessions: sessions, log: logger}
}

func (v *accessVerifier) Verify(ctx context.Context, email string) (*AccessGrant, error) {
	if email == "" {
		return nil, domain.ErrInvalidArgument
	}
	approved, err := v.intents.ListApprovedByEmailSince(ctx, nil, email, time.Now().Add(-RecencyWindow))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if len(approved) == 0 {
		approved, err = v.intents.ListApprovedByEmail(ctx, nil, email)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	if len(approved) == 0 {
		metrics.ObserveAccessCheck("no_payment")
		v.log.Info().Str("step", "access_verify").Msg("no approved purchase intents")
		return &AccessGrant{HasValidPayment: false, Email: email, Message: "no valid payment found"}, nil
	}

	// Idempotent even when the webhook already provisioned this purchase.
	intent := approved[0]
	account, err := v.provisioner.ConfirmPurchase(ctx, email, intent.PlanType, intent.Amount, intent.Currency)
	if err != nil {
		metrics.ObserveAccessCheck("error")
		return nil, err
	}

	access, refresh, err := v.sessions.IssueSession(ctx, account.ID, email)
	if err != nil {
		metrics.ObserveAccessCheck("error")
		return nil, errors.Join(domain.ErrUpstream, err)
	}

	metrics.ObserveAccessCheck("granted")
	v.log.Info().Str("step", "access_verify").Str("account_id", account.ID).Msg("access granted")
	return &AccessGrant{
		HasValidPayment: true,
		AccessToken:     access,
		RefreshToken:    refresh,
		AccountID:       account.ID,
		Email:           email,
		Message:         "payment verified",
	}, nil
}

// Compile-time check
var _ ProfileViewer = (*profileViewer)(nil)

// ProfileViewer serves the client-facing subscription read model. This is the
// only caller of the entitlement calculator.
type ProfileViewer interface {
	AccessView(ctx context.Context, accountID string) (*model.AccessView, error)
}

type profileViewer struct {
	profiles repository.EntitlementProfileRepository
	records  repository.SubscriptionRecordRepository
}

func NewProfileViewer(profiles repository.EntitlementProfileRepository, records repository.SubscriptionRecordRepository) *profileViewer {
	return &profileViewer{profiles: profiles, records: records}
}

func (p *profileViewer) AccessView(ctx context.Context, accountID string) (*model.AccessView, error) {
	if accountID == "" {
		return nil, domain.ErrInvalidArgument
	}
	profile, err := p.profiles.FindByAccountID(ctx, nil, accountID)
	if err != nil {
		return nil, err
	}
	latest, err := p.records.FindLatestApproved(ctx, nil, accountID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		latest = nil
	}
	view := model.ComputeAccessView(profile, latest, time.Now())
	return &view, nil
}
