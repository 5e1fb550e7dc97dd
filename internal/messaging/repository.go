package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tenanttruth/backend/internal/models"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends a message. The seq column is a bigserial, so insertion
// order breaks created_at ties within a thread.
func (r *Repository) Insert(ctx context.Context, m *models.Message) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO messages (id, thread_id, sender_id, body)
		VALUES ($1, $2, $3, $4)
		RETURNING seq, created_at
	`, m.ID, m.ThreadID, m.SenderID, m.Body).Scan(&m.Seq, &m.CreatedAt)
}

// ListByThread returns the thread's messages in append order.
func (r *Repository) ListByThread(ctx context.Context, threadID uuid.UUID) ([]*models.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, thread_id, sender_id, body, seq, created_at
		FROM messages WHERE thread_id = $1
		ORDER BY created_at ASC, seq ASC
	`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.SenderID, &m.Body, &m.Seq, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &m)
	}
	return list, rows.Err()
}

// MarkRead advances the reader's last-seen marker for the thread. Unread
// state is derived from this marker, never stored per message.
func (r *Repository) MarkRead(ctx context.Context, threadID, userID uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO thread_reads (thread_id, user_id, last_seen_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (thread_id, user_id) DO UPDATE SET last_seen_at = GREATEST(thread_reads.last_seen_at, EXCLUDED.last_seen_at)
	`, threadID, userID, at)
	return err
}

// UnreadCount counts the other party's messages newer than the reader's
// last-seen marker (all of them when no marker exists).
func (r *Repository) UnreadCount(ctx context.Context, threadID, userID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages m
		WHERE m.thread_id = $1 AND m.sender_id <> $2
		  AND m.created_at > COALESCE(
			(SELECT last_seen_at FROM thread_reads WHERE thread_id = $1 AND user_id = $2),
			'-infinity'::timestamptz)
	`, threadID, userID).Scan(&n)
	return n, err
}
