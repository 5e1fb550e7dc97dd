package contact

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

func (r *Repository) CreateTx(ctx context.Context, tx pgx.Tx, cr *models.ContactRequest) error {
	return tx.QueryRow(ctx, `
		INSERT INTO contact_requests (id, requester_id, tenant_id, property_id, review_id, status, message, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, cr.ID, cr.RequesterID, cr.TenantID, cr.PropertyID, cr.ReviewID, cr.Status, cr.Message, cr.ExpiresAt).Scan(&cr.CreatedAt)
}

const requestColumns = `id, requester_id, tenant_id, property_id, review_id, status, COALESCE(message, ''), responded_at, expires_at, created_at`

func scanRequest(row pgx.Row) (*models.ContactRequest, error) {
	var cr models.ContactRequest
	err := row.Scan(&cr.ID, &cr.RequesterID, &cr.TenantID, &cr.PropertyID, &cr.ReviewID,
		&cr.Status, &cr.Message, &cr.RespondedAt, &cr.ExpiresAt, &cr.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &cr, nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.ContactRequest, error) {
	cr, err := scanRequest(r.pool.QueryRow(ctx, `
		SELECT `+requestColumns+` FROM contact_requests WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return cr, err
}

// GetForUpdateTx locks the request row so concurrent responses serialize.
func (r *Repository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.ContactRequest, error) {
	cr, err := scanRequest(tx.QueryRow(ctx, `
		SELECT `+requestColumns+` FROM contact_requests WHERE id = $1 FOR UPDATE
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return cr, err
}

func (r *Repository) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string, respondedAt *time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE contact_requests SET status = $2, responded_at = $3 WHERE id = $1
	`, id, status, respondedAt)
	return err
}

// MarkExpired persists a lazily-detected expiry. The guard on status keeps
// the transition monotone even if a response races the expiry write.
func (r *Repository) MarkExpired(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE contact_requests SET status = $2 WHERE id = $1 AND status = $3
	`, id, models.ContactStatusExpired, models.ContactStatusPending)
	return err
}

// ExpireOverdue bulk-expires pending requests past their deadline. Used by
// the housekeeping sweeper; correctness never depends on it because expiry
// is also computed at read time.
func (r *Repository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE contact_requests SET status = $1 WHERE status = $2 AND expires_at < $3
	`, models.ContactStatusExpired, models.ContactStatusPending, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) listQuery(ctx context.Context, query string, args ...any) ([]*models.ContactRequest, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.ContactRequest
	for rows.Next() {
		cr, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, cr)
	}
	return list, rows.Err()
}

// ListByUser returns requests the user sent or received, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.ContactRequest, error) {
	return r.listQuery(ctx, `
		SELECT `+requestColumns+` FROM contact_requests
		WHERE requester_id = $1 OR tenant_id = $1
		ORDER BY created_at DESC
	`, userID)
}

// ListAcceptedByUser returns the user's accepted requests (their open
// conversations), newest first.
func (r *Repository) ListAcceptedByUser(ctx context.Context, userID uuid.UUID) ([]*models.ContactRequest, error) {
	return r.listQuery(ctx, `
		SELECT `+requestColumns+` FROM contact_requests
		WHERE (requester_id = $1 OR tenant_id = $1) AND status = $2
		ORDER BY created_at DESC
	`, userID, models.ContactStatusAccepted)
}
