package models

import (
	"time"

	"github.com/google/uuid"
)

// Ledger entry_type enums. The ledger is append-only; corrections are new
// offsetting refund/admin_adjustment entries, never updates.
const (
	EntryTypeTopup           = "topup"
	EntryTypeUnlockPurchase  = "unlock_purchase"
	EntryTypeContactPurchase = "contact_purchase"
	EntryTypeRefund          = "refund"
	EntryTypeAdminAdjustment = "admin_adjustment"
)

// Ledger ref_type values, pointing at the entity that caused the entry.
const (
	RefTypeReview         = "review"
	RefTypeContactRequest = "contact_request"
	RefTypeTopup          = "topup"
)

// LedgerEntry is one immutable credit movement. Positive amount = credit,
// negative = debit. The sum of a user's entries is the wallet balance. The
// seq column is a bigserial; it orders entries by insertion even when their
// timestamps collide.
type LedgerEntry struct {
	ID          uuid.UUID  `json:"id"`
	Seq         int64      `json:"seq"`
	UserID      uuid.UUID  `json:"user_id"`
	Amount      int        `json:"amount"`
	EntryType   string     `json:"entry_type"`
	RefType     *string    `json:"ref_type,omitempty"`
	RefID       *uuid.UUID `json:"ref_id,omitempty"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Wallet is the cached balance view derived from the ledger, one row per
// user, created lazily on first ledger entry. balance_credits is never
// negative and always equals the sum of the user's ledger entries.
type Wallet struct {
	UserID         uuid.UUID `json:"user_id"`
	BalanceCredits int       `json:"balance_credits"`
	UpdatedAt      time.Time `json:"updated_at"`
}
