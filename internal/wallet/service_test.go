package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tenanttruth/backend/internal/models"
)

// ---------------------------------------------------------------------------
// In-memory mocks for Store and LedgerAppender. These let us test the real
// debit/credit logic without a database.
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

// --- Store mock ---

type mockStore struct {
	mu       sync.Mutex
	balances map[uuid.UUID]int
}

func newMockStore() *mockStore {
	return &mockStore{balances: make(map[uuid.UUID]int)}
}

func (m *mockStore) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

func (m *mockStore) EnsureTx(_ context.Context, _ pgx.Tx, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balances[userID]; !ok {
		m.balances[userID] = 0
	}
	return nil
}

func (m *mockStore) TryDeductTx(_ context.Context, _ pgx.Tx, userID uuid.UUID, amount int) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.balances[userID]
	if b < amount {
		return 0, false, nil
	}
	m.balances[userID] = b - amount
	return b - amount, true, nil
}

func (m *mockStore) AddTx(_ context.Context, _ pgx.Tx, userID uuid.UUID, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] += amount
	return m.balances[userID], nil
}

func (m *mockStore) BalanceTx(_ context.Context, _ pgx.Tx, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID], nil
}

func (m *mockStore) Balance(_ context.Context, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID], nil
}

// --- LedgerAppender mock ---

type mockLedger struct {
	mu      sync.Mutex
	seq     int64
	entries []*models.LedgerEntry
}

func (m *mockLedger) AppendTx(_ context.Context, _ pgx.Tx, e *models.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	e.Seq = m.seq
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *mockLedger) all() []*models.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.LedgerEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// ---------------------------------------------------------------------------
// 1. TestDebit
// ---------------------------------------------------------------------------

func TestDebit(t *testing.T) {
	user := uuid.New()
	review := uuid.New()

	store := newMockStore()
	store.balances[user] = 100
	ledger := &mockLedger{}
	svc := NewService(store, ledger)

	ctx := context.Background()
	newBalance, err := svc.Debit(ctx, user, 30, models.EntryTypeUnlockPurchase, models.RefTypeReview, &review, "unlock")
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if newBalance != 70 {
		t.Errorf("new balance: got %d, want 70", newBalance)
	}

	entries := ledger.all()
	if len(entries) != 1 {
		t.Fatalf("ledger entries: got %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Amount != -30 {
		t.Errorf("ledger amount: got %d, want -30 (debits are negative)", e.Amount)
	}
	if e.EntryType != models.EntryTypeUnlockPurchase {
		t.Errorf("entry type: got %q", e.EntryType)
	}
	if e.RefType == nil || *e.RefType != models.RefTypeReview {
		t.Error("entry should reference the review ref type")
	}
	if e.RefID == nil || *e.RefID != review {
		t.Error("entry should reference the review id")
	}
}

// ---------------------------------------------------------------------------
// 2. TestDebit_Insufficient
// ---------------------------------------------------------------------------

func TestDebit_Insufficient(t *testing.T) {
	user := uuid.New()

	store := newMockStore()
	store.balances[user] = 10
	ledger := &mockLedger{}
	svc := NewService(store, ledger)

	ctx := context.Background()
	_, err := svc.Debit(ctx, user, 25, models.EntryTypeContactPurchase, "", nil, "contact")

	var insufficient *InsufficientCreditsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientCreditsError, got: %v", err)
	}
	if insufficient.Need != 25 || insufficient.Have != 10 {
		t.Errorf("error amounts: need %d have %d, want need 25 have 10", insufficient.Need, insufficient.Have)
	}

	// Balance untouched, no ledger entry written.
	if b, _ := store.Balance(ctx, user); b != 10 {
		t.Errorf("balance after failed debit: got %d, want 10", b)
	}
	if n := len(ledger.all()); n != 0 {
		t.Errorf("expected 0 ledger entries after failed debit, got %d", n)
	}
}

// ---------------------------------------------------------------------------
// 3. TestDebit_InvalidAmount
// ---------------------------------------------------------------------------

func TestDebit_InvalidAmount(t *testing.T) {
	svc := NewService(newMockStore(), &mockLedger{})
	ctx := context.Background()

	for _, amount := range []int{0, -5} {
		if _, err := svc.Debit(ctx, uuid.New(), amount, models.EntryTypeUnlockPurchase, "", nil, ""); err != ErrInvalidAmount {
			t.Errorf("amount %d: expected ErrInvalidAmount, got: %v", amount, err)
		}
	}
}

// ---------------------------------------------------------------------------
// 4. TestCredit_CreatesWalletLazily
// ---------------------------------------------------------------------------

func TestCredit_CreatesWalletLazily(t *testing.T) {
	user := uuid.New()
	topupID := uuid.New()

	store := newMockStore()
	ledger := &mockLedger{}
	svc := NewService(store, ledger)

	ctx := context.Background()

	// No wallet exists yet; balance reads zero.
	if b, _ := svc.Balance(ctx, user); b != 0 {
		t.Errorf("balance of unknown user: got %d, want 0", b)
	}

	newBalance, err := svc.Credit(ctx, user, 50, models.EntryTypeTopup, models.RefTypeTopup, &topupID, "top-up")
	if err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if newBalance != 50 {
		t.Errorf("new balance: got %d, want 50", newBalance)
	}

	entries := ledger.all()
	if len(entries) != 1 || entries[0].Amount != 50 {
		t.Fatalf("expected one +50 ledger entry, got %+v", entries)
	}
}

// ---------------------------------------------------------------------------
// 5. TestLedgerBalanceInvariant
//    Mixed operations: SUM(signed ledger amounts) must equal the balance.
// ---------------------------------------------------------------------------

func TestLedgerBalanceInvariant(t *testing.T) {
	user := uuid.New()

	store := newMockStore()
	ledger := &mockLedger{}
	svc := NewService(store, ledger)

	ctx := context.Background()
	if _, err := svc.Credit(ctx, user, 100, models.EntryTypeTopup, "", nil, "top-up"); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if _, err := svc.Debit(ctx, user, 30, models.EntryTypeUnlockPurchase, "", nil, "unlock"); err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if _, err := svc.Debit(ctx, user, 25, models.EntryTypeContactPurchase, "", nil, "contact"); err != nil {
		t.Fatalf("Debit: %v", err)
	}
	// A failed debit must not add an entry.
	if _, err := svc.Debit(ctx, user, 9999, models.EntryTypeUnlockPurchase, "", nil, "too big"); err == nil {
		t.Fatal("expected insufficient credits error")
	}

	sum := 0
	lastSeq := int64(0)
	for _, e := range ledger.all() {
		sum += e.Amount
		// seq orders entries by insertion even when timestamps collide.
		if e.Seq <= lastSeq {
			t.Errorf("entry seq %d not after %d", e.Seq, lastSeq)
		}
		lastSeq = e.Seq
	}
	balance, _ := svc.Balance(ctx, user)
	if sum != balance {
		t.Errorf("ledger sum %d != balance %d", sum, balance)
	}
	if balance != 45 {
		t.Errorf("balance: got %d, want 45", balance)
	}
}

// ---------------------------------------------------------------------------
// 6. TestDebit_ConcurrentCannotOverdraw
//    Two simultaneous debits each larger than half the balance; the
//    conditional deduction lets exactly one through.
// ---------------------------------------------------------------------------

func TestDebit_ConcurrentCannotOverdraw(t *testing.T) {
	user := uuid.New()

	store := newMockStore()
	store.balances[user] = 50
	ledger := &mockLedger{}
	svc := NewService(store, ledger)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Debit(context.Background(), user, 30, models.EntryTypeUnlockPurchase, "", nil, "unlock")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, refused int
	for err := range errs {
		var insufficient *InsufficientCreditsError
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &insufficient):
			refused++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || refused != 1 {
		t.Fatalf("outcomes: %d succeeded, %d refused; want exactly one of each", succeeded, refused)
	}
	if b, _ := store.Balance(context.Background(), user); b != 20 {
		t.Errorf("final balance: got %d, want 20", b)
	}
	if n := len(ledger.all()); n != 1 {
		t.Errorf("ledger entries: got %d, want 1", n)
	}
}

// ---------------------------------------------------------------------------
// 7. TestAdminAdjust
// ---------------------------------------------------------------------------

func TestAdminAdjust(t *testing.T) {
	user := uuid.New()

	store := newMockStore()
	ledger := &mockLedger{}
	svc := NewService(store, ledger)

	ctx := context.Background()
	if _, err := svc.AdminAdjust(ctx, user, 40, "goodwill"); err != nil {
		t.Fatalf("AdminAdjust +40: %v", err)
	}
	if _, err := svc.AdminAdjust(ctx, user, -15, "correction"); err != nil {
		t.Fatalf("AdminAdjust -15: %v", err)
	}
	if _, err := svc.AdminAdjust(ctx, user, 0, "noop"); err != ErrInvalidAmount {
		t.Errorf("zero adjustment: expected ErrInvalidAmount, got: %v", err)
	}

	// A negative adjustment below the balance must fail like any debit.
	if _, err := svc.AdminAdjust(ctx, user, -1000, "too much"); err == nil {
		t.Fatal("expected insufficient credits error for over-deduction")
	}

	if b, _ := svc.Balance(ctx, user); b != 25 {
		t.Errorf("balance: got %d, want 25", b)
	}
	for _, e := range ledger.all() {
		if e.EntryType != models.EntryTypeAdminAdjustment {
			t.Errorf("entry type: got %q, want admin_adjustment", e.EntryType)
		}
	}
}
