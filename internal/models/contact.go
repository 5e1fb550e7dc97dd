package models

import (
	"time"

	"github.com/google/uuid"
)

// ContactRequest status enums. pending is the only non-terminal state;
// transitions are monotone (no way out of a terminal state).
const (
	ContactStatusPending  = "pending"
	ContactStatusAccepted = "accepted"
	ContactStatusDeclined = "declined"
	ContactStatusExpired  = "expired"
)

// ContactRequest is a paid, time-limited introduction from a viewer to a
// reviewing tenant. expires_at is fixed at creation and never extended.
type ContactRequest struct {
	ID          uuid.UUID  `json:"id"`
	RequesterID uuid.UUID  `json:"requester_id"`
	TenantID    uuid.UUID  `json:"tenant_id"`
	PropertyID  uuid.UUID  `json:"property_id"`
	ReviewID    *uuid.UUID `json:"review_id,omitempty"`
	Status      string     `json:"status"`
	Message     string     `json:"message,omitempty"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Terminal reports whether the status admits no further transitions.
func (c *ContactRequest) Terminal() bool { return c.Status != ContactStatusPending }

// ExpiredBy reports whether a still-pending request has passed its deadline
// at the given instant. Expiry is a computed predicate, not a timer.
func (c *ContactRequest) ExpiredBy(now time.Time) bool {
	return c.Status == ContactStatusPending && now.After(c.ExpiresAt)
}

// Participant reports whether userID is one of the two parties.
func (c *ContactRequest) Participant(userID uuid.UUID) bool {
	return userID == c.RequesterID || userID == c.TenantID
}

// Message is one immutable message in the thread opened by an accepted
// contact request (thread_id = contact request id). Ordering within a
// thread is created_at, ties broken by the insertion sequence.
type Message struct {
	ID        uuid.UUID `json:"id"`
	ThreadID  uuid.UUID `json:"thread_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Body      string    `json:"body"`
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
}
