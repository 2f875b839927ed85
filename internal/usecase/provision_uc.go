// File: internal/usecase/provision_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"purchase-entitlement-service/internal/domain"
	"purchase-entitlement-service/internal/domain/model"
	"purchase-entitlement-service/internal/domain/ports/adapter"
	"purchase-entitlement-service/internal/domain/ports/repository"
	"purchase-entitlement-service/internal/infra/metrics"
)

// Compile-time check
var _ AccountProvisioner = (*accountProvisioner)(nil)

// AccountProvisioner is the single idempotent "confirm purchase" operation.
// Both the webhook pipeline and the access-verification path call it, which
// is what guarantees the two paths converge on the same entitlement state.
type AccountProvisioner interface {
	// ConfirmPurchase ensures an account exists for email with a premium
	// entitlement profile and appends one approved subscription record.
	// Calling it twice for the same email never creates a second account or a
	// duplicate profile row; callers are responsible for not invoking it twice
	// for the same webhook delivery.
	ConfirmPurchase(ctx context.Context, email string, plan model.PlanType, amount int64, currency string) (*model.Account, error)
}

type accountProvisioner struct {
	identity adapter.IdentityProvider
	profiles repository.EntitlementProfileRepository
	records  repository.SubscriptionRecordRepository
	log      *zerolog.Logger
}

func NewAccountProvisioner(
	identity adapter.IdentityProvider,
	profiles repository.EntitlementProfileRepository,
	records repository.SubscriptionRecordRepository,
	logger *zerolog.Logger,
) *accountProvisioner {
	return &accountProvisioner{identity: identity, profiles: profiles, records: records, log: logger}
}

func (p *accountProvisioner) ConfirmPurchase(ctx context.Context, email string, plan model.PlanType, amount int64, currency string) (*model.Account, error) {
	if email == "" {
		return nil, domain.ErrInvalidArgument
	}

	account, err := p.identity.FindAccountByEmail(ctx, email)
	switch {
	case err == nil:
		p.log.Debug().Str("step", "provision_lookup").Str("account_id", account.ID).Msg("existing account found")
	case errors.Is(err, domain.ErrNotFound):
		// The credential is opaque and never transmitted to the customer;
		// access is granted via session issuance, not password login.
		account, err = p.identity.CreateAccount(ctx, email, uuid.NewString())
		if err != nil {
			metrics.ObserveProvisioning("account_create_failed")
			return nil, fmt.Errorf("create account: %w", errors.Join(domain.ErrUpstream, err))
		}
		metrics.ObserveProvisioning("account_created")
		p.log.Info().Str("step", "provision_create").Str("account_id", account.ID).Msg("account created")
	default:
		return nil, fmt.Errorf("lookup account: %w", errors.Join(domain.ErrUpstream, err))
	}

	// Entitlement writes after this point never roll back the account: the
	// system favors "account exists, entitlement self-heals on the next
	// access-verification call" over losing the account entirely.
	if err := p.upsertPremiumProfile(ctx, account.ID); err != nil {
		metrics.ObserveProvisioning("partial_profile_write")
		p.log.Error().Err(err).
			Str("step", "provision_profile").
			Str("account_id", account.ID).
			Msg("entitlement profile write failed; account kept, will self-heal")
		return account, nil
	}

	rec := &model.SubscriptionRecord{
		ID:        ulid.Make().String(),
		AccountID: account.ID,
		PlanType:  plan,
		Amount:    amount,
		Currency:  currency,
		Status:    model.RecordStatusApproved,
		CreatedAt: time.Now(),
	}
	if interval, ok := plan.Interval(); ok {
		exp := rec.CreatedAt.Add(interval)
		rec.ExpiresAt = &exp
	}
	if err := p.records.Append(ctx, nil, rec); err != nil {
		metrics.ObserveProvisioning("partial_record_write")
		p.log.Error().Err(err).
			Str("step", "provision_record").
			Str("account_id", account.ID).
			Msg("subscription record write failed; account kept, will self-heal")
		return account, nil
	}

	metrics.ObserveProvisioning("confirmed")
	p.log.Info().
		Str("step", "provision_done").
		Str("account_id", account.ID).
		Str("plan", string(plan)).
		Msg("purchase confirmed")
	return account, nil
}

// upsertPremiumProfile creates the profile on first confirmation and upgrades
// it in place afterwards. The upgrade is monotone: a premium account is never
// downgraded through this path.
func (p *accountProvisioner) upsertPremiumProfile(ctx context.Context, accountID string) error {
	profile, err := p.profiles.FindByAccountID(ctx, nil, accountID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		profile, err = model.NewPremiumProfile(accountID)
		if err != nil {
			return err
		}
		return p.profiles.Upsert(ctx, nil, profile)
	}
	profile.UpgradeToPremium()
	return p.profiles.Upsert(ctx, nil, profile)
}
