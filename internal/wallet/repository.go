package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
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

// EnsureTx creates the wallet row lazily. A wallet is never deleted, so a
// zero-balance row persists once created.
func (r *Repository) EnsureTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO wallets (user_id, balance_credits) VALUES ($1, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	return err
}

// TryDeductTx atomically deducts amount if the balance covers it. The
// conditional UPDATE is the check-and-act step: two concurrent debits
// against the same wallet serialize on the row, so a balance sufficient for
// only one never pays for both. Returns ok=false if the balance was too low
// (or no wallet exists yet).
func (r *Repository) TryDeductTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int) (newBalance int, ok bool, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE wallets SET balance_credits = balance_credits - $1, updated_at = now()
		WHERE user_id = $2 AND balance_credits >= $1
		RETURNING balance_credits
	`, amount, userID).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return newBalance, true, nil
}

// AddTx adds amount to the wallet and returns the new balance. Call EnsureTx
// first so the row exists.
func (r *Repository) AddTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE wallets SET balance_credits = balance_credits + $1, updated_at = now()
		WHERE user_id = $2
		RETURNING balance_credits
	`, amount, userID).Scan(&newBalance)
	return newBalance, err
}

// BalanceTx reads the balance inside the caller's transaction. A missing
// wallet reads as zero.
func (r *Repository) BalanceTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int, error) {
	var balance int
	err := tx.QueryRow(ctx, `
		SELECT COALESCE((SELECT balance_credits FROM wallets WHERE user_id = $1), 0)
	`, userID).Scan(&balance)
	return balance, err
}

// Balance reads the current balance outside any transaction.
func (r *Repository) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	var balance int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE((SELECT balance_credits FROM wallets WHERE user_id = $1), 0)
	`, userID).Scan(&balance)
	return balance, err
}
