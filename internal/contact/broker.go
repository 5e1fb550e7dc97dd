package contact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tenanttruth/backend/internal/models"
	"github.com/tenanttruth/backend/internal/pricing"
)

var (
	// ErrInvalidTransition is returned for any event against a terminal
	// request (accepted, declined or expired).
	ErrInvalidTransition = errors.New("contact request is no longer pending")
	// ErrForbidden is returned when the actor is not allowed: responding to
	// someone else's request, or contacting yourself.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned for an unknown request id.
	ErrNotFound = errors.New("contact request not found")
)

// RequestStore is the persistence interface needed by the broker.
type RequestStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	CreateTx(ctx context.Context, tx pgx.Tx, cr *models.ContactRequest) error
	Get(ctx context.Context, id uuid.UUID) (*models.ContactRequest, error)
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.ContactRequest, error)
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string, respondedAt *time.Time) error
	MarkExpired(ctx context.Context, id uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.ContactRequest, error)
	ListAcceptedByUser(ctx context.Context, userID uuid.UUID) ([]*models.ContactRequest, error)
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

// WalletOps is the minimal wallet interface for contact purchases.
type WalletOps interface {
	DebitTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, entryType, refType string, refID *uuid.UUID, description string) (int, error)
}

// PurchaseResult reports a successful contact purchase.
type PurchaseResult struct {
	Request    *models.ContactRequest `json:"request"`
	Charged    int                    `json:"credits_charged"`
	NewBalance int                    `json:"new_balance"`
}

// Broker governs paid introductions: pending -> accepted | declined, and
// pending -> expired once the deadline passes. Terminal states are sticky.
// The payment is for the request itself; a decline or expiry does not
// refund (platform policy).
type Broker struct {
	requests RequestStore
	wallet   WalletOps
	prices   *pricing.Table
	ttl      time.Duration
	now      func() time.Time
}

func NewBroker(requests RequestStore, wallet WalletOps, prices *pricing.Table, ttl time.Duration) *Broker {
	return &Broker{
		requests: requests,
		wallet:   wallet,
		prices:   prices,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Purchase debits the requester and creates the pending request in one
// transaction. A failed debit creates nothing. expires_at is fixed here and
// never extended.
func (b *Broker) Purchase(ctx context.Context, requesterID, tenantID, propertyID uuid.UUID, reviewID *uuid.UUID, message string) (*PurchaseResult, error) {
	if requesterID == tenantID {
		return nil, ErrForbidden
	}
	cost := b.prices.ContactRequestCost()

	cr := &models.ContactRequest{
		ID:          uuid.New(),
		RequesterID: requesterID,
		TenantID:    tenantID,
		PropertyID:  propertyID,
		ReviewID:    reviewID,
		Status:      models.ContactStatusPending,
		Message:     message,
		ExpiresAt:   b.now().Add(b.ttl),
	}

	tx, err := b.requests.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	newBalance, err := b.wallet.DebitTx(ctx, tx, requesterID, cost,
		models.EntryTypeContactPurchase, models.RefTypeContactRequest, &cr.ID,
		fmt.Sprintf("Contact request: %d credits", cost))
	if err != nil {
		return nil, err
	}
	if err := b.requests.CreateTx(ctx, tx, cr); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &PurchaseResult{Request: cr, Charged: cost, NewBalance: newBalance}, nil
}

// Respond applies the tenant's accept/decline. Only the addressed tenant may
// respond; a request past its deadline is expired instead, and the response
// fails ErrInvalidTransition.
func (b *Broker) Respond(ctx context.Context, id, actorID uuid.UUID, accept bool) (*models.ContactRequest, error) {
	tx, err := b.requests.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	cr, err := b.requests.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if cr == nil {
		return nil, ErrNotFound
	}
	if cr.TenantID != actorID {
		return nil, ErrForbidden
	}
	if cr.Terminal() {
		return nil, ErrInvalidTransition
	}
	if cr.ExpiredBy(b.now()) {
		if err := b.requests.UpdateStatusTx(ctx, tx, id, models.ContactStatusExpired, nil); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return nil, ErrInvalidTransition
	}

	status := models.ContactStatusDeclined
	if accept {
		status = models.ContactStatusAccepted
	}
	respondedAt := b.now()
	if err := b.requests.UpdateStatusTx(ctx, tx, id, status, &respondedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	cr.Status = status
	cr.RespondedAt = &respondedAt
	return cr, nil
}

// Request returns the request with lazy expiry applied, persisting the
// expired status best-effort. Used internally and by the messaging layer.
func (b *Broker) Request(ctx context.Context, id uuid.UUID) (*models.ContactRequest, error) {
	cr, err := b.requests.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cr == nil {
		return nil, ErrNotFound
	}
	if cr.ExpiredBy(b.now()) {
		cr.Status = models.ContactStatusExpired
		if err := b.requests.MarkExpired(ctx, id); err != nil {
			return nil, err
		}
	}
	return cr, nil
}

// Get returns the request to one of its participants.
func (b *Broker) Get(ctx context.Context, id, actorID uuid.UUID) (*models.ContactRequest, error) {
	cr, err := b.Request(ctx, id)
	if err != nil {
		return nil, err
	}
	if !cr.Participant(actorID) {
		return nil, ErrForbidden
	}
	return cr, nil
}

// ListForUser returns the user's requests, both sent and received, with
// lazy expiry applied to each.
func (b *Broker) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.ContactRequest, error) {
	list, err := b.requests.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := b.now()
	for _, cr := range list {
		if cr.ExpiredBy(now) {
			cr.Status = models.ContactStatusExpired
		}
	}
	return list, nil
}

// Conversations returns the user's accepted requests, newest first.
func (b *Broker) Conversations(ctx context.Context, userID uuid.UUID) ([]*models.ContactRequest, error) {
	return b.requests.ListAcceptedByUser(ctx, userID)
}

// ExpireOverdue bulk-expires overdue pending requests (housekeeping).
func (b *Broker) ExpireOverdue(ctx context.Context) (int64, error) {
	return b.requests.ExpireOverdue(ctx, b.now())
}
