package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"purchase-entitlement-service/internal/domain"
	"purchase-entitlement-service/internal/domain/model"
	"purchase-entitlement-service/internal/domain/ports/repository"
)

var _ repository.EntitlementProfileRepository = (*entitlementProfileRepo)(nil)

type entitlementProfileRepo struct{ pool *pgxpool.Pool }

func NewEntitlementProfileRepo(pool *pgxpool.Pool) *entitlementProfileRepo {
	return &entitlementProfileRepo{pool: pool}
}

func (r *entitlementProfileRepo) FindByAccountID(ctx context.Context, tx repository.Tx, accountID string) (*model.EntitlementProfile, error) {
	q := `SELECT account_id, is_premium, subscription_status, trial_end_date, onboarding_completed, updated_at FROM entitlement_profiles WHERE account_id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", accountID)
	if err != nil {
		return nil, err
	}
	p := &model.EntitlementProfile{}
	if err := row.Scan(&p.AccountID, &p.IsPremium, &p.SubscriptionStatus, &p.TrialEndDate, &p.OnboardingCompleted, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

// Upsert keeps the one-row-per-account invariant at the storage level: the
// account id is the primary key, so concurrent provisioning calls collapse
// into a single row.
func (r *entitlementProfileRepo) Upsert(ctx context.Context, tx repository.Tx, p *model.EntitlementProfile) error {
	const q = `
INSERT INTO entitlement_profiles (
  account_id, is_premium, subscription_status, trial_end_date, onboarding_completed, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6
) ON CONFLICT (account_id) DO UPDATE SET
  is_premium=$2, subscription_status=$3, trial_end_date=$4, onboarding_completed=$5, updated_at=$6;`

	_, err := execSQL(ctx, r.pool, tx, q, p.AccountID, p.IsPremium, p.SubscriptionStatus, p.TrialEndDate, p.OnboardingCompleted, p.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}
