package unlock

import (
	"context"
	"errors"

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

// Get returns the viewer's grant for a review, or nil when none exists.
func (r *Repository) Get(ctx context.Context, userID, reviewID uuid.UUID) (*models.UnlockGrant, error) {
	var g models.UnlockGrant
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, review_id, tier, granted_at
		FROM unlock_grants WHERE user_id = $1 AND review_id = $2
	`, userID, reviewID).Scan(&g.UserID, &g.ReviewID, &g.Tier, &g.GrantedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// GetForUpdateTx locks the grant row so concurrent purchases for the same
// (user, review) serialize. Returns nil when no grant exists yet.
func (r *Repository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, userID, reviewID uuid.UUID) (*models.UnlockGrant, error) {
	var g models.UnlockGrant
	err := tx.QueryRow(ctx, `
		SELECT user_id, review_id, tier, granted_at
		FROM unlock_grants WHERE user_id = $1 AND review_id = $2
		FOR UPDATE
	`, userID, reviewID).Scan(&g.UserID, &g.ReviewID, &g.Tier, &g.GrantedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// UpsertTx writes the grant at the given tier. One row per (user, review).
// The conflict action only fires when the new tier out-ranks the stored one,
// so a grant can never regress; FOR UPDATE on an absent row takes no lock, so
// this guard is also what serializes racing first purchases (the conflicting
// insert blocks on the other transaction's row, then re-checks the tier).
// Returns false when the stored grant already covers the requested tier.
func (r *Repository) UpsertTx(ctx context.Context, tx pgx.Tx, g *models.UnlockGrant) (bool, error) {
	err := tx.QueryRow(ctx, `
		INSERT INTO unlock_grants (user_id, review_id, tier)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, review_id) DO UPDATE
			SET tier = EXCLUDED.tier, granted_at = now()
			WHERE CASE unlock_grants.tier WHEN 'summary' THEN 1 WHEN 'detailed' THEN 2 WHEN 'full' THEN 3 END
			    < CASE EXCLUDED.tier      WHEN 'summary' THEN 1 WHEN 'detailed' THEN 2 WHEN 'full' THEN 3 END
		RETURNING granted_at
	`, g.UserID, g.ReviewID, g.Tier).Scan(&g.GrantedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
