package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tenanttruth/backend/internal/models"
)

// ErrInvalidAmount is returned when a debit or credit amount is not positive.
var ErrInvalidAmount = errors.New("amount must be positive")

// InsufficientCreditsError reports a failed debit with the exact amounts, so
// the client can prompt a top-up for the difference.
type InsufficientCreditsError struct {
	Need int
	Have int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: need %d, have %d", e.Need, e.Have)
}

// Store is the wallet persistence interface (implemented by Repository).
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	EnsureTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error
	TryDeductTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int) (newBalance int, ok bool, err error)
	AddTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int) (newBalance int, err error)
	BalanceTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int, error)
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
}

// LedgerAppender is the minimal ledger interface the wallet needs.
type LedgerAppender interface {
	AppendTx(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error
}

// Service keeps the wallets table and the ledger in lockstep: every balance
// change commits together with its ledger entry, so no operation can observe
// a state where the two disagree.
type Service struct {
	store  Store
	ledger LedgerAppender
}

func NewService(store Store, ledger LedgerAppender) *Service {
	return &Service{store: store, ledger: ledger}
}

// Balance returns the user's current balance (zero for a wallet that was
// never credited).
func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.store.Balance(ctx, userID)
}

// DebitTx deducts amount inside the caller's transaction and appends the
// matching negative ledger entry. Fails with *InsufficientCreditsError
// without touching anything if the balance is too low.
func (s *Service) DebitTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, entryType, refType string, refID *uuid.UUID, description string) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	newBalance, ok, err := s.store.TryDeductTx(ctx, tx, userID, amount)
	if err != nil {
		return 0, err
	}
	if !ok {
		have, err := s.store.BalanceTx(ctx, tx, userID)
		if err != nil {
			return 0, err
		}
		return 0, &InsufficientCreditsError{Need: amount, Have: have}
	}
	entry := &models.LedgerEntry{
		UserID:      userID,
		Amount:      -amount,
		EntryType:   entryType,
		RefType:     refPtr(refType),
		RefID:       refID,
		Description: description,
	}
	if err := s.ledger.AppendTx(ctx, tx, entry); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// Debit runs DebitTx in its own transaction.
func (s *Service) Debit(ctx context.Context, userID uuid.UUID, amount int, entryType, refType string, refID *uuid.UUID, description string) (int, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)
	newBalance, err := s.DebitTx(ctx, tx, userID, amount, entryType, refType, refID, description)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// CreditTx adds amount inside the caller's transaction, creating the wallet
// lazily, and appends the matching positive ledger entry.
func (s *Service) CreditTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, entryType, refType string, refID *uuid.UUID, description string) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if err := s.store.EnsureTx(ctx, tx, userID); err != nil {
		return 0, err
	}
	newBalance, err := s.store.AddTx(ctx, tx, userID, amount)
	if err != nil {
		return 0, err
	}
	entry := &models.LedgerEntry{
		UserID:      userID,
		Amount:      amount,
		EntryType:   entryType,
		RefType:     refPtr(refType),
		RefID:       refID,
		Description: description,
	}
	if err := s.ledger.AppendTx(ctx, tx, entry); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// Credit runs CreditTx in its own transaction.
func (s *Service) Credit(ctx context.Context, userID uuid.UUID, amount int, entryType, refType string, refID *uuid.UUID, description string) (int, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)
	newBalance, err := s.CreditTx(ctx, tx, userID, amount, entryType, refType, refID, description)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// AdminAdjust applies a signed support correction as an admin_adjustment
// entry. Negative adjustments obey the same non-negative balance rule as any
// debit.
func (s *Service) AdminAdjust(ctx context.Context, userID uuid.UUID, delta int, description string) (int, error) {
	switch {
	case delta > 0:
		return s.Credit(ctx, userID, delta, models.EntryTypeAdminAdjustment, "", nil, description)
	case delta < 0:
		return s.Debit(ctx, userID, -delta, models.EntryTypeAdminAdjustment, "", nil, description)
	default:
		return 0, ErrInvalidAmount
	}
}

func refPtr(refType string) *string {
	if refType == "" {
		return nil
	}
	return &refType
}
