package contact

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tenanttruth/backend/internal/config"
	"github.com/tenanttruth/backend/internal/models"
	"github.com/tenanttruth/backend/internal/pricing"
	"github.com/tenanttruth/backend/internal/wallet"
)

// ---------------------------------------------------------------------------
// In-memory mocks for RequestStore and WalletOps.
// ---------------------------------------------------------------------------

// --- noopTx satisfies pgx.Tx for test use; only Commit/Rollback are called. ---

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

// --- RequestStore mock ---

type mockRequests struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*models.ContactRequest
}

func newMockRequests() *mockRequests {
	return &mockRequests{requests: make(map[uuid.UUID]*models.ContactRequest)}
}

func (m *mockRequests) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

func (m *mockRequests) CreateTx(_ context.Context, _ pgx.Tx, cr *models.ContactRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *cr
	m.requests[cr.ID] = &cp
	return nil
}

func (m *mockRequests) Get(_ context.Context, id uuid.UUID) (*models.ContactRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cr, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	cp := *cr
	return &cp, nil
}

func (m *mockRequests) GetForUpdateTx(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*models.ContactRequest, error) {
	return m.Get(ctx, id)
}

func (m *mockRequests) UpdateStatusTx(_ context.Context, _ pgx.Tx, id uuid.UUID, status string, respondedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cr, ok := m.requests[id]
	if !ok {
		return errors.New("not found")
	}
	cr.Status = status
	cr.RespondedAt = respondedAt
	return nil
}

func (m *mockRequests) MarkExpired(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cr, ok := m.requests[id]
	if !ok {
		return errors.New("not found")
	}
	if cr.Status == models.ContactStatusPending {
		cr.Status = models.ContactStatusExpired
	}
	return nil
}

func (m *mockRequests) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.ContactRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ContactRequest
	for _, cr := range m.requests {
		if cr.Participant(userID) {
			cp := *cr
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRequests) ListAcceptedByUser(_ context.Context, userID uuid.UUID) ([]*models.ContactRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ContactRequest
	for _, cr := range m.requests {
		if cr.Participant(userID) && cr.Status == models.ContactStatusAccepted {
			cp := *cr
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRequests) ExpireOverdue(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, cr := range m.requests {
		if cr.ExpiredBy(now) {
			cr.Status = models.ContactStatusExpired
			n++
		}
	}
	return n, nil
}

func (m *mockRequests) status(id uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[id].Status
}

// --- WalletOps mock ---

type mockWallet struct {
	mu      sync.Mutex
	balance int
	entries []int // signed deltas, debits negative
}

func (m *mockWallet) DebitTx(_ context.Context, _ pgx.Tx, _ uuid.UUID, amount int, _, _ string, _ *uuid.UUID, _ string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balance < amount {
		return 0, &wallet.InsufficientCreditsError{Need: amount, Have: m.balance}
	}
	m.balance -= amount
	m.entries = append(m.entries, -amount)
	return m.balance, nil
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

const testTTL = 72 * time.Hour

func testBroker(balance int) (*Broker, *mockRequests, *mockWallet) {
	requests := newMockRequests()
	w := &mockWallet{balance: balance}
	prices := pricing.NewTable(config.Pricing{ContactRequest: 25})
	return NewBroker(requests, w, prices, testTTL), requests, w
}

// frozen pins the broker clock to a fixed instant and returns it.
func frozen(b *Broker) time.Time {
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return at }
	return at
}

// ---------------------------------------------------------------------------
// 1. TestPurchase
// ---------------------------------------------------------------------------

func TestPurchase(t *testing.T) {
	b, requests, w := testBroker(100)
	at := frozen(b)

	requester := uuid.New()
	tenant := uuid.New()
	property := uuid.New()

	ctx := context.Background()
	res, err := b.Purchase(ctx, requester, tenant, property, nil, "hi, how was the landlord?")
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if res.Charged != 25 || res.NewBalance != 75 {
		t.Errorf("charge: got %d/%d, want 25/75", res.Charged, res.NewBalance)
	}
	if res.Request.Status != models.ContactStatusPending {
		t.Errorf("status: got %s, want pending", res.Request.Status)
	}
	if !res.Request.ExpiresAt.Equal(at.Add(testTTL)) {
		t.Errorf("expires_at: got %v, want %v", res.Request.ExpiresAt, at.Add(testTTL))
	}

	stored, _ := requests.Get(ctx, res.Request.ID)
	if stored == nil {
		t.Fatal("request not persisted")
	}
	if len(w.entries) != 1 || w.entries[0] != -25 {
		t.Errorf("wallet entries: %v, want one -25 debit", w.entries)
	}
}

// ---------------------------------------------------------------------------
// 2. TestPurchase_SelfContact
// ---------------------------------------------------------------------------

func TestPurchase_SelfContact(t *testing.T) {
	b, requests, w := testBroker(100)
	u := uuid.New()

	_, err := b.Purchase(context.Background(), u, u, uuid.New(), nil, "")
	if err != ErrForbidden {
		t.Fatalf("expected ErrForbidden, got: %v", err)
	}
	if len(requests.requests) != 0 || len(w.entries) != 0 {
		t.Error("self-contact must not charge or persist anything")
	}
}

// ---------------------------------------------------------------------------
// 3. TestPurchase_Insufficient
// ---------------------------------------------------------------------------

func TestPurchase_Insufficient(t *testing.T) {
	b, requests, _ := testBroker(10)

	_, err := b.Purchase(context.Background(), uuid.New(), uuid.New(), uuid.New(), nil, "")
	var insufficient *wallet.InsufficientCreditsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientCreditsError, got: %v", err)
	}
	if insufficient.Need != 25 || insufficient.Have != 10 {
		t.Errorf("error amounts: need %d have %d, want need 25 have 10", insufficient.Need, insufficient.Have)
	}
	if len(requests.requests) != 0 {
		t.Error("failed purchase must not create a request")
	}
}

// ---------------------------------------------------------------------------
// 4. TestRespond_AcceptAndDecline
// ---------------------------------------------------------------------------

func TestRespond_AcceptAndDecline(t *testing.T) {
	b, _, w := testBroker(100)
	frozen(b)

	requester := uuid.New()
	tenant := uuid.New()
	ctx := context.Background()

	accepted, err := b.Purchase(ctx, requester, tenant, uuid.New(), nil, "")
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	declined, err := b.Purchase(ctx, requester, tenant, uuid.New(), nil, "")
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}

	cr, err := b.Respond(ctx, accepted.Request.ID, tenant, true)
	if err != nil {
		t.Fatalf("Respond accept: %v", err)
	}
	if cr.Status != models.ContactStatusAccepted || cr.RespondedAt == nil {
		t.Errorf("accepted request: %+v", cr)
	}

	cr, err = b.Respond(ctx, declined.Request.ID, tenant, false)
	if err != nil {
		t.Fatalf("Respond decline: %v", err)
	}
	if cr.Status != models.ContactStatusDeclined {
		t.Errorf("declined status: got %s", cr.Status)
	}

	// A decline does not refund: the two debits are the only wallet entries.
	if len(w.entries) != 2 {
		t.Errorf("wallet entries after decline: %v, want exactly the two debits", w.entries)
	}
	if w.balance != 50 {
		t.Errorf("balance after decline: got %d, want 50 (no refund)", w.balance)
	}
}

// ---------------------------------------------------------------------------
// 5. TestRespond_OnlyTenant
// ---------------------------------------------------------------------------

func TestRespond_OnlyTenant(t *testing.T) {
	b, _, _ := testBroker(100)
	frozen(b)

	requester := uuid.New()
	tenant := uuid.New()
	ctx := context.Background()

	res, err := b.Purchase(ctx, requester, tenant, uuid.New(), nil, "")
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}

	// Neither the requester nor a stranger may respond.
	if _, err := b.Respond(ctx, res.Request.ID, requester, true); err != ErrForbidden {
		t.Errorf("requester respond: expected ErrForbidden, got: %v", err)
	}
	if _, err := b.Respond(ctx, res.Request.ID, uuid.New(), true); err != ErrForbidden {
		t.Errorf("stranger respond: expected ErrForbidden, got: %v", err)
	}

	if _, err := b.Respond(ctx, uuid.New(), tenant, true); err != ErrNotFound {
		t.Errorf("unknown id: expected ErrNotFound, got: %v", err)
	}
}

// ---------------------------------------------------------------------------
// 6. TestRespond_TerminalIsSticky
// ---------------------------------------------------------------------------

func TestRespond_TerminalIsSticky(t *testing.T) {
	b, requests, _ := testBroker(100)
	frozen(b)

	requester := uuid.New()
	tenant := uuid.New()
	ctx := context.Background()

	res, err := b.Purchase(ctx, requester, tenant, uuid.New(), nil, "")
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if _, err := b.Respond(ctx, res.Request.ID, tenant, false); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	// Declined stays declined, even for an accept.
	if _, err := b.Respond(ctx, res.Request.ID, tenant, true); err != ErrInvalidTransition {
		t.Errorf("expected ErrInvalidTransition, got: %v", err)
	}
	if got := requests.status(res.Request.ID); got != models.ContactStatusDeclined {
		t.Errorf("status after repeat respond: got %s, want declined", got)
	}
}

// ---------------------------------------------------------------------------
// 7. TestRespond_PastDeadlineExpires
//    A response after the deadline persists the expired state and fails;
//    the payment stays spent.
// ---------------------------------------------------------------------------

func TestRespond_PastDeadlineExpires(t *testing.T) {
	b, requests, w := testBroker(100)
	at := frozen(b)

	requester := uuid.New()
	tenant := uuid.New()
	ctx := context.Background()

	res, err := b.Purchase(ctx, requester, tenant, uuid.New(), nil, "")
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}

	// Clock jumps past the deadline before the tenant responds.
	b.now = func() time.Time { return at.Add(testTTL + time.Hour) }

	if _, err := b.Respond(ctx, res.Request.ID, tenant, true); err != ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition, got: %v", err)
	}
	if got := requests.status(res.Request.ID); got != models.ContactStatusExpired {
		t.Errorf("status: got %s, want expired", got)
	}
	if w.balance != 75 {
		t.Errorf("balance after expiry: got %d, want 75 (no refund)", w.balance)
	}

	// Expired is terminal: a later response still fails.
	if _, err := b.Respond(ctx, res.Request.ID, tenant, false); err != ErrInvalidTransition {
		t.Errorf("respond on expired: expected ErrInvalidTransition, got: %v", err)
	}
}

// ---------------------------------------------------------------------------
// 8. TestRequest_LazyExpiry
// ---------------------------------------------------------------------------

func TestRequest_LazyExpiry(t *testing.T) {
	b, requests, _ := testBroker(100)
	at := frozen(b)

	res, err := b.Purchase(context.Background(), uuid.New(), uuid.New(), uuid.New(), nil, "")
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}

	b.now = func() time.Time { return at.Add(testTTL + time.Minute) }

	cr, err := b.Request(context.Background(), res.Request.ID)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if cr.Status != models.ContactStatusExpired {
		t.Errorf("read status: got %s, want expired", cr.Status)
	}
	// The expiry is persisted, not just computed for the response.
	if got := requests.status(res.Request.ID); got != models.ContactStatusExpired {
		t.Errorf("stored status: got %s, want expired", got)
	}
}

// ---------------------------------------------------------------------------
// 9. TestExpireOverdue
// ---------------------------------------------------------------------------

func TestExpireOverdue(t *testing.T) {
	b, requests, _ := testBroker(100)
	at := frozen(b)

	ctx := context.Background()
	overdue, _ := b.Purchase(ctx, uuid.New(), uuid.New(), uuid.New(), nil, "")
	fresh, _ := b.Purchase(ctx, uuid.New(), uuid.New(), uuid.New(), nil, "")

	// Accepted requests are never swept.
	acceptedRes, _ := b.Purchase(ctx, uuid.New(), uuid.New(), uuid.New(), nil, "")
	if _, err := b.Respond(ctx, acceptedRes.Request.ID, acceptedRes.Request.TenantID, true); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	// Push only the first request past its deadline.
	requests.mu.Lock()
	requests.requests[overdue.Request.ID].ExpiresAt = at.Add(-time.Hour)
	requests.mu.Unlock()

	n, err := b.ExpireOverdue(ctx)
	if err != nil {
		t.Fatalf("ExpireOverdue: %v", err)
	}
	if n != 1 {
		t.Errorf("swept count: got %d, want 1", n)
	}
	if got := requests.status(overdue.Request.ID); got != models.ContactStatusExpired {
		t.Errorf("overdue status: got %s, want expired", got)
	}
	if got := requests.status(fresh.Request.ID); got != models.ContactStatusPending {
		t.Errorf("fresh status: got %s, want pending", got)
	}
	if got := requests.status(acceptedRes.Request.ID); got != models.ContactStatusAccepted {
		t.Errorf("accepted status: got %s, want accepted", got)
	}
}
