package models

import (
	"time"

	"github.com/google/uuid"
)

// Top-up status enums. Completion is idempotent: a completed top-up credits
// the wallet exactly once no matter how often the provider notifies us.
const (
	TopupStatusPending   = "pending"
	TopupStatusCompleted = "completed"
	TopupStatusFailed    = "failed"
)

// Topup tracks one checkout with the external payment provider. The card
// flow itself is out of scope; the ledger only records the result.
type Topup struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	Tier          string     `json:"tier"`
	CreditsAmount int        `json:"credits_amount"`
	AmountCents   int        `json:"amount_cents"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	ProviderRef   *string    `json:"provider_ref,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
