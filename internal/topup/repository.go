package topup

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tenanttruth/backend/internal/models"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *Repository) Create(ctx context.Context, t *models.Topup) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO topups (id, user_id, tier, credits_amount, amount_cents, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, t.ID, t.UserID, t.Tier, t.CreditsAmount, t.AmountCents, t.Currency, t.Status).Scan(&t.CreatedAt)
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Topup, error) {
	var t models.Topup
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, tier, credits_amount, amount_cents, currency, status, provider_ref, completed_at, created_at
		FROM topups WHERE id = $1
	`, id).Scan(&t.ID, &t.UserID, &t.Tier, &t.CreditsAmount, &t.AmountCents, &t.Currency, &t.Status, &t.ProviderRef, &t.CompletedAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// MarkCompletedTx flips a pending top-up to completed. The status guard in
// the WHERE clause makes completion idempotent: a second provider
// notification matches no row and reports ok=false.
func (r *Repository) MarkCompletedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, providerRef string, at time.Time) (*models.Topup, bool, error) {
	var t models.Topup
	err := tx.QueryRow(ctx, `
		UPDATE topups SET status = $2, provider_ref = $3, completed_at = $4
		WHERE id = $1 AND status = $5
		RETURNING id, user_id, tier, credits_amount, amount_cents, currency, status, provider_ref, completed_at, created_at
	`, id, models.TopupStatusCompleted, providerRef, at, models.TopupStatusPending).
		Scan(&t.ID, &t.UserID, &t.Tier, &t.CreditsAmount, &t.AmountCents, &t.Currency, &t.Status, &t.ProviderRef, &t.CompletedAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &t, true, nil
}
