package topup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tenanttruth/backend/internal/models"
	"github.com/tenanttruth/backend/internal/pricing"
)

// Store is the top-up persistence interface.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, t *models.Topup) error
	Get(ctx context.Context, id uuid.UUID) (*models.Topup, error)
	MarkCompletedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, providerRef string, at time.Time) (*models.Topup, bool, error)
}

// WalletOps is the minimal wallet interface for crediting completed top-ups.
type WalletOps interface {
	CreditTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, entryType, refType string, refID *uuid.UUID, description string) (int, error)
}

// Checkout is what the client needs to hand the user to the payment
// provider.
type Checkout struct {
	TopupID     uuid.UUID `json:"topup_id"`
	CheckoutURL string    `json:"checkout_url"`
}

// Service records top-up intents and their results. The card flow itself
// happens at the provider; the ledger only ever sees the completed result.
type Service struct {
	topups          Store
	wallet          WalletOps
	prices          *pricing.Table
	checkoutBaseURL string
	now             func() time.Time
}

func NewService(topups Store, wallet WalletOps, prices *pricing.Table, checkoutBaseURL string) *Service {
	return &Service{
		topups:          topups,
		wallet:          wallet,
		prices:          prices,
		checkoutBaseURL: checkoutBaseURL,
		now:             time.Now,
	}
}

// CreateCheckout validates the tier, records a pending top-up and returns
// the checkout handle. Fails with pricing.ErrUnknownTier for an unknown
// tier; nothing is charged or credited here.
func (s *Service) CreateCheckout(ctx context.Context, userID uuid.UUID, tier pricing.TopupTier) (*Checkout, error) {
	credits, err := s.prices.CreditsFor(tier)
	if err != nil {
		return nil, err
	}
	cents, err := s.prices.PriceOf(tier)
	if err != nil {
		return nil, err
	}
	t := &models.Topup{
		ID:            uuid.New(),
		UserID:        userID,
		Tier:          string(tier),
		CreditsAmount: credits,
		AmountCents:   cents,
		Currency:      "USD",
		Status:        models.TopupStatusPending,
	}
	if err := s.topups.Create(ctx, t); err != nil {
		return nil, err
	}
	return &Checkout{
		TopupID:     t.ID,
		CheckoutURL: fmt.Sprintf("%s/%s", s.checkoutBaseURL, t.ID),
	}, nil
}

// Complete records a successful provider payment: flips the top-up to
// completed and credits the wallet with a topup ledger entry, all in one
// transaction. Idempotent — an already-completed top-up is a no-op, so
// repeated provider notifications never double-credit.
func (s *Service) Complete(ctx context.Context, topupID uuid.UUID, providerRef string) error {
	tx, err := s.topups.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	t, ok, err := s.topups.MarkCompletedTx(ctx, tx, topupID, providerRef, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	_, err = s.wallet.CreditTx(ctx, tx, t.UserID, t.CreditsAmount,
		models.EntryTypeTopup, models.RefTypeTopup, &t.ID,
		fmt.Sprintf("Top-up: %d credits (%s tier)", t.CreditsAmount, t.Tier))
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}
