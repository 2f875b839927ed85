package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"purchase-entitlement-service/internal/domain"
	"purchase-entitlement-service/internal/domain/model"
	"purchase-entitlement-service/internal/domain/ports/repository"
)

var _ repository.PurchaseIntentRepository = (*purchaseIntentRepo)(nil)

type purchaseIntentRepo struct{ pool *pgxpool.Pool }

func NewPurchaseIntentRepo(pool *pgxpool.Pool) *purchaseIntentRepo {
	return &purchaseIntentRepo{pool: pool}
}

const intentColumns = `id, email, processor_reference_id, processor_payment_id, external_reference, processor, amount, currency, plan_type, status, created_at, updated_at`

func scanIntent(row pgx.Row) (*model.PurchaseIntent, error) {
	p := &model.PurchaseIntent{}
	if err := row.Scan(&p.ID, &p.Email, &p.ProcessorReferenceID, &p.ProcessorPaymentID, &p.ExternalReference, &p.Processor, &p.Amount, &p.Currency, &p.PlanType, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *purchaseIntentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PurchaseIntent) error {
	const q = `
INSERT INTO purchase_intents (
  id, email, processor_reference_id, processor_payment_id, external_reference, processor, amount, currency, plan_type, status, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
) ON CONFLICT (id) DO UPDATE SET
  email=$2, processor_reference_id=$3, processor_payment_id=$4, external_reference=$5, processor=$6, amount=$7, currency=$8, plan_type=$9, status=$10, updated_at=$12;`

	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Email, p.ProcessorReferenceID, p.ProcessorPaymentID, p.ExternalReference, p.Processor, p.Amount, p.Currency, p.PlanType, p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *purchaseIntentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PurchaseIntent, error) {
	q := `SELECT ` + intentColumns + ` FROM purchase_intents WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	return scanIntent(row)
}

func (r *purchaseIntentRepo) FindByExternalReference(ctx context.Context, tx repository.Tx, ref string) (*model.PurchaseIntent, error) {
	const q = `SELECT ` + intentColumns + ` FROM purchase_intents WHERE external_reference=$1 ORDER BY created_at DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, ref)
	if err != nil {
		return nil, err
	}
	return scanIntent(row)
}

func (r *purchaseIntentRepo) ListByExternalReferenceFragment(ctx context.Context, tx repository.Tx, fragment string) ([]*model.PurchaseIntent, error) {
	const q = `SELECT ` + intentColumns + ` FROM purchase_intents WHERE external_reference LIKE '%' || $1 || '%' ORDER BY created_at DESC LIMIT 50;`
	return r.list(ctx, tx, q, fragment)
}

func (r *purchaseIntentRepo) FindByProcessorReference(ctx context.Context, tx repository.Tx, processorRef string) (*model.PurchaseIntent, error) {
	const q = `SELECT ` + intentColumns + ` FROM purchase_intents WHERE processor_reference_id=$1 ORDER BY created_at DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, processorRef)
	if err != nil {
		return nil, err
	}
	return scanIntent(row)
}

func (r *purchaseIntentRepo) FindLatestPending(ctx context.Context, tx repository.Tx) (*model.PurchaseIntent, error) {
	const q = `SELECT ` + intentColumns + ` FROM purchase_intents WHERE status='pending' ORDER BY created_at DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	return scanIntent(row)
}

func (r *purchaseIntentRepo) TransitionIfPending(ctx context.Context, tx repository.Tx, id string, next model.IntentStatus, email, paymentID *string) (bool, error) {
	const q = `
UPDATE purchase_intents
SET status=$2,
    email=COALESCE($3, email),
    processor_payment_id=COALESCE($4, processor_payment_id),
    updated_at=NOW()
WHERE id=$1 AND status='pending';`
	tag, err := execSQL(ctx, r.pool, tx, q, id, next, email, paymentID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return tag.RowsAffected() == 1, nil
}

func (r *purchaseIntentRepo) Touch(ctx context.Context, tx repository.Tx, id string, status model.IntentStatus) error {
	const q = `UPDATE purchase_intents SET status=$2, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, status)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *purchaseIntentRepo) ListApprovedByEmailSince(ctx context.Context, tx repository.Tx, email string, since time.Time) ([]*model.PurchaseIntent, error) {
	const q = `SELECT ` + intentColumns + ` FROM purchase_intents WHERE email=$1 AND status='approved' AND updated_at >= $2 ORDER BY updated_at DESC;`
	return r.list(ctx, tx, q, email, since)
}

func (r *purchaseIntentRepo) ListApprovedByEmail(ctx context.Context, tx repository.Tx, email string) ([]*model.PurchaseIntent, error) {
	const q = `SELECT ` + intentColumns + ` FROM purchase_intents WHERE email=$1 AND status='approved' ORDER BY updated_at DESC;`
	return r.list(ctx, tx, q, email)
}

func (r *purchaseIntentRepo) ListStalePendingWithPaymentID(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PurchaseIntent, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + intentColumns + ` FROM purchase_intents WHERE status='pending' AND processor_payment_id IS NOT NULL AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	return r.list(ctx, tx, q, olderThan, limit)
}

func (r *purchaseIntentRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.PurchaseIntent, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.PurchaseIntent
	for rows.Next() {
		p := new(model.PurchaseIntent)
		if err := rows.Scan(&p.ID, &p.Email, &p.ProcessorReferenceID, &p.ProcessorPaymentID, &p.ExternalReference, &p.Processor, &p.Amount, &p.Currency, &p.PlanType, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, domain.ErrOperationFailed
	}
	return out, nil
}
