package pricing

import (
	"errors"

	"github.com/tenanttruth/backend/internal/config"
	"github.com/tenanttruth/backend/internal/models"
)

// ErrUnknownTier is returned for an unrecognized unlock or top-up tier.
var ErrUnknownTier = errors.New("unknown tier")

// TopupTier identifies a purchasable credit bundle.
type TopupTier string

const (
	TopupSmall  TopupTier = "small"
	TopupMedium TopupTier = "medium"
	TopupLarge  TopupTier = "large"
)

// Table is the immutable pricing configuration, frozen at construction. A
// debit operation holds one *Table for its whole duration, so a price change
// (a new Table in a new process) can never produce a partially-applied
// charge. Unlock tiers are priced absolutely, not incrementally.
type Table struct {
	version        int
	unlock         map[models.UnlockTier]int
	contactRequest int
	topups         map[TopupTier]config.TopupPlan
}

func NewTable(cfg config.Pricing) *Table {
	return &Table{
		version: cfg.Version,
		unlock: map[models.UnlockTier]int{
			models.TierSummary:  cfg.UnlockSummary,
			models.TierDetailed: cfg.UnlockDetailed,
			models.TierFull:     cfg.UnlockFull,
		},
		contactRequest: cfg.ContactRequest,
		topups: map[TopupTier]config.TopupPlan{
			TopupSmall:  cfg.TopupSmall,
			TopupMedium: cfg.TopupMedium,
			TopupLarge:  cfg.TopupLarge,
		},
	}
}

// UnlockCost returns the credit cost of the given unlock tier.
func (t *Table) UnlockCost(tier models.UnlockTier) (int, error) {
	cost, ok := t.unlock[tier]
	if !ok {
		return 0, ErrUnknownTier
	}
	return cost, nil
}

// ContactRequestCost returns the credit cost of a contact request.
func (t *Table) ContactRequestCost() int {
	return t.contactRequest
}

// CreditsFor returns the credits granted by a top-up tier.
func (t *Table) CreditsFor(tier TopupTier) (int, error) {
	plan, ok := t.topups[tier]
	if !ok {
		return 0, ErrUnknownTier
	}
	return plan.Credits, nil
}

// PriceOf returns the money price of a top-up tier, in cents.
func (t *Table) PriceOf(tier TopupTier) (int, error) {
	plan, ok := t.topups[tier]
	if !ok {
		return 0, ErrUnknownTier
	}
	return plan.PriceCents, nil
}

// Snapshot is the read-only pricing view served to clients.
type Snapshot struct {
	Version            int `json:"version"`
	UnlockSummary      int `json:"unlock_summary"`
	UnlockDetailed     int `json:"unlock_detailed"`
	UnlockFull         int `json:"unlock_full"`
	ContactRequest     int `json:"contact_request"`
	TopupSmallCents    int `json:"topup_small_cents"`
	TopupSmallCredits  int `json:"topup_small_credits"`
	TopupMediumCents   int `json:"topup_medium_cents"`
	TopupMediumCredits int `json:"topup_medium_credits"`
	TopupLargeCents    int `json:"topup_large_cents"`
	TopupLargeCredits  int `json:"topup_large_credits"`
}

func (t *Table) Snapshot() Snapshot {
	return Snapshot{
		Version:            t.version,
		UnlockSummary:      t.unlock[models.TierSummary],
		UnlockDetailed:     t.unlock[models.TierDetailed],
		UnlockFull:         t.unlock[models.TierFull],
		ContactRequest:     t.contactRequest,
		TopupSmallCents:    t.topups[TopupSmall].PriceCents,
		TopupSmallCredits:  t.topups[TopupSmall].Credits,
		TopupMediumCents:   t.topups[TopupMedium].PriceCents,
		TopupMediumCredits: t.topups[TopupMedium].Credits,
		TopupLargeCents:    t.topups[TopupLarge].PriceCents,
		TopupLargeCredits:  t.topups[TopupLarge].Credits,
	}
}
