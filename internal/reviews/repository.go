package reviews

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tenanttruth/backend/internal/models"
)

// Repository is the read path over reviews. Authoring and moderation live in
// another service; this one only serves published reviews through the
// visibility resolver.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const reviewColumns = `id, property_id, tenant_id, overall_rating, review_text, COALESCE(public_excerpt, ''), category_ratings, photos, status, verification_status, created_at`

func scanReview(row pgx.Row) (*models.Review, error) {
	var rv models.Review
	err := row.Scan(&rv.ID, &rv.PropertyID, &rv.TenantID, &rv.OverallRating, &rv.ReviewText,
		&rv.PublicExcerpt, &rv.CategoryRatings, &rv.Photos, &rv.Status, &rv.VerificationStatus, &rv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rv, nil
}

// GetByID returns the review, or nil when it does not exist.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	rv, err := scanReview(r.pool.QueryRow(ctx, `
		SELECT `+reviewColumns+` FROM property_reviews WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rv, err
}

// ListPublishedByProperty returns the property's published reviews, newest
// first.
func (r *Repository) ListPublishedByProperty(ctx context.Context, propertyID uuid.UUID) ([]*models.Review, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reviewColumns+` FROM property_reviews
		WHERE property_id = $1 AND status = $2
		ORDER BY created_at DESC
	`, propertyID, models.ReviewStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rv)
	}
	return list, rows.Err()
}
