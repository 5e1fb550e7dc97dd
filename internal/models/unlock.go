package models

import (
	"time"

	"github.com/google/uuid"
)

// UnlockTier is an ordered review-visibility level: summary < detailed < full.
type UnlockTier string

const (
	TierSummary  UnlockTier = "summary"
	TierDetailed UnlockTier = "detailed"
	TierFull     UnlockTier = "full"
)

var tierRanks = map[UnlockTier]int{
	TierSummary:  1,
	TierDetailed: 2,
	TierFull:     3,
}

// Rank returns the tier's position in the total order, or 0 for an
// unrecognized tier.
func (t UnlockTier) Rank() int { return tierRanks[t] }

// Valid reports whether t is a known tier.
func (t UnlockTier) Valid() bool { return tierRanks[t] != 0 }

// AtLeast reports whether t covers o (t >= o in the tier order).
func (t UnlockTier) AtLeast(o UnlockTier) bool { return t.Rank() >= o.Rank() }

// UnlockGrant records that a user has paid for a tier on a specific review.
// At most one grant per (user_id, review_id); re-purchase only ever raises
// the tier, never lowers it, and grants are never deleted.
type UnlockGrant struct {
	UserID    uuid.UUID  `json:"user_id"`
	ReviewID  uuid.UUID  `json:"review_id"`
	Tier      UnlockTier `json:"tier"`
	GrantedAt time.Time  `json:"granted_at"`
}
