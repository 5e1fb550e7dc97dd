package unlock

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tenanttruth/backend/internal/models"
	"github.com/tenanttruth/backend/internal/pricing"
)

// GrantStore is the grant persistence interface needed by the authorizer.
type GrantStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Get(ctx context.Context, userID, reviewID uuid.UUID) (*models.UnlockGrant, error)
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, userID, reviewID uuid.UUID) (*models.UnlockGrant, error)
	UpsertTx(ctx context.Context, tx pgx.Tx, g *models.UnlockGrant) (bool, error)
}

// WalletOps is the minimal wallet interface for unlock purchases.
type WalletOps interface {
	DebitTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, entryType, refType string, refID *uuid.UUID, description string) (int, error)
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
}

// Access is the result of a pure grant check, used to decide which
// projection to serve before any purchase is attempted.
type Access struct {
	HasSummary  bool               `json:"has_summary"`
	HasDetailed bool               `json:"has_detailed"`
	HasFull     bool               `json:"has_full"`
	HighestTier *models.UnlockTier `json:"highest_tier"`
}

// PurchaseResult reports the outcome of Purchase. Charged is zero for the
// idempotent no-op case.
type PurchaseResult struct {
	Grant      *models.UnlockGrant `json:"grant"`
	Charged    int                 `json:"credits_charged"`
	NewBalance int                 `json:"new_balance"`
}

// Authorizer runs the per-(user, review) grant state machine:
// no_grant -> summary -> detailed -> full, monotone, no regression.
type Authorizer struct {
	grants GrantStore
	wallet WalletOps
	prices *pricing.Table
}

func NewAuthorizer(grants GrantStore, wallet WalletOps, prices *pricing.Table) *Authorizer {
	return &Authorizer{grants: grants, wallet: wallet, prices: prices}
}

// Purchase buys the requested tier for the viewer. Holding the tier (or a
// higher one) already is a no-op success: the user is never double-charged
// for a tier they own. Debit and grant upsert commit as one transaction; a
// failed debit leaves the grant untouched.
func (a *Authorizer) Purchase(ctx context.Context, userID, reviewID uuid.UUID, tier models.UnlockTier) (*PurchaseResult, error) {
	cost, err := a.prices.UnlockCost(tier)
	if err != nil {
		return nil, err
	}

	tx, err := a.grants.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	existing, err := a.grants.GetForUpdateTx(ctx, tx, userID, reviewID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Tier.AtLeast(tier) {
		balance, err := a.wallet.Balance(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &PurchaseResult{Grant: existing, Charged: 0, NewBalance: balance}, nil
	}

	// The grant write goes first: the locking read above takes no lock on an
	// absent row, so racing first purchases only serialize at the tier-guarded
	// upsert. Losing the race means a concurrent purchase landed an equal or
	// higher tier; treat it like the owned-tier no-op and charge nothing.
	grant := &models.UnlockGrant{UserID: userID, ReviewID: reviewID, Tier: tier}
	applied, err := a.grants.UpsertTx(ctx, tx, grant)
	if err != nil {
		return nil, err
	}
	if !applied {
		current, err := a.grants.Get(ctx, userID, reviewID)
		if err != nil {
			return nil, err
		}
		balance, err := a.wallet.Balance(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &PurchaseResult{Grant: current, Charged: 0, NewBalance: balance}, nil
	}

	newBalance, err := a.wallet.DebitTx(ctx, tx, userID, cost,
		models.EntryTypeUnlockPurchase, models.RefTypeReview, &reviewID,
		fmt.Sprintf("Unlock review (%s): %d credits", tier, cost))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &PurchaseResult{Grant: grant, Charged: cost, NewBalance: newBalance}, nil
}

// CheckAccess is a pure read of the viewer's grant for a review.
func (a *Authorizer) CheckAccess(ctx context.Context, userID, reviewID uuid.UUID) (Access, error) {
	grant, err := a.grants.Get(ctx, userID, reviewID)
	if err != nil {
		return Access{}, err
	}
	return AccessFromGrant(grant), nil
}

// AccessFromGrant derives the access flags from a grant (nil = no grant).
func AccessFromGrant(grant *models.UnlockGrant) Access {
	if grant == nil {
		return Access{}
	}
	tier := grant.Tier
	return Access{
		HasSummary:  tier.AtLeast(models.TierSummary),
		HasDetailed: tier.AtLeast(models.TierDetailed),
		HasFull:     tier.AtLeast(models.TierFull),
		HighestTier: &tier,
	}
}
