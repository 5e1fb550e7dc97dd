package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tenanttruth/backend/internal/models"
)

// ErrInvalidAmount is returned for a zero-amount entry. Every entry must
// move credits one way or the other.
var ErrInvalidAmount = errors.New("ledger entry amount must be non-zero")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append inserts an entry in its own transaction. Entries are immutable once
// the insert commits; there is no update or delete path.
func (r *Repository) Append(ctx context.Context, e *models.LedgerEntry) error {
	if e.Amount == 0 {
		return ErrInvalidAmount
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO ledger_entries (id, user_id, amount, entry_type, ref_type, ref_id, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq, created_at
	`, e.ID, e.UserID, e.Amount, e.EntryType, e.RefType, e.RefID, e.Description).Scan(&e.Seq, &e.CreatedAt)
}

// AppendTx inserts an entry inside the caller's transaction, so a debit's
// balance update and its ledger entry commit as one atomic unit.
func (r *Repository) AppendTx(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error {
	if e.Amount == 0 {
		return ErrInvalidAmount
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return tx.QueryRow(ctx, `
		INSERT INTO ledger_entries (id, user_id, amount, entry_type, ref_type, ref_id, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq, created_at
	`, e.ID, e.UserID, e.Amount, e.EntryType, e.RefType, e.RefID, e.Description).Scan(&e.Seq, &e.CreatedAt)
}

// BalanceOf sums all entries for the user. This is the source of truth the
// wallets table is derived from.
func (r *Repository) BalanceOf(ctx context.Context, userID uuid.UUID) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE user_id = $1
	`, userID).Scan(&total)
	return total, err
}

// ListByUser returns the user's entries in insertion order, newest or oldest
// first per the caller's request. seq breaks created_at ties.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, newestFirst bool) ([]*models.LedgerEntry, error) {
	order := "ASC"
	if newestFirst {
		order = "DESC"
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, seq, user_id, amount, entry_type, ref_type, ref_id, description, created_at
		FROM ledger_entries WHERE user_id = $1 ORDER BY created_at `+order+`, seq `+order,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.Seq, &e.UserID, &e.Amount, &e.EntryType, &e.RefType, &e.RefID, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}
