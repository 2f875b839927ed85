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

var _ repository.SubscriptionRecordRepository = (*subscriptionRecordRepo)(nil)

type subscriptionRecordRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRecordRepo(pool *pgxpool.Pool) *subscriptionRecordRepo {
	return &subscriptionRecordRepo{pool: pool}
}

const recordColumns = `id, account_id, plan_type, amount, currency, status, expires_at, created_at`

func (r *subscriptionRecordRepo) Append(ctx context.Context, tx repository.Tx, rec *model.SubscriptionRecord) error {
	const q = `
INSERT INTO subscription_records (
  id, account_id, plan_type, amount, currency, status, expires_at, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
);`
	_, err := execSQL(ctx, r.pool, tx, q, rec.ID, rec.AccountID, rec.PlanType, rec.Amount, rec.Currency, rec.Status, rec.ExpiresAt, rec.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriptionRecordRepo) FindLatestApproved(ctx context.Context, tx repository.Tx, accountID string) (*model.SubscriptionRecord, error) {
	const q = `SELECT ` + recordColumns + ` FROM subscription_records WHERE account_id=$1 AND status='approved' ORDER BY created_at DESC, id DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, accountID)
	if err != nil {
		return nil, err
	}
	rec := &model.SubscriptionRecord{}
	if err := row.Scan(&rec.ID, &rec.AccountID, &rec.PlanType, &rec.Amount, &rec.Currency, &rec.Status, &rec.ExpiresAt, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return rec, nil
}

func (r *subscriptionRecordRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string) ([]*model.SubscriptionRecord, error) {
	const q = `SELECT ` + recordColumns + ` FROM subscription_records WHERE account_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, accountID)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.SubscriptionRecord
	for rows.Next() {
		rec := new(model.SubscriptionRecord)
		if err := rows.Scan(&rec.ID, &rec.AccountID, &rec.PlanType, &rec.Amount, &rec.Currency, &rec.Status, &rec.ExpiresAt, &rec.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, rec)
	}
	if rows.Err() != nil {
		return nil, domain.ErrOperationFailed
	}
	return out, nil
}
