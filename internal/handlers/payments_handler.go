package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/tenanttruth/backend/internal/contact"
	"github.com/tenanttruth/backend/internal/middleware"
	"github.com/tenanttruth/backend/internal/models"
	"github.com/tenanttruth/backend/internal/pricing"
	"github.com/tenanttruth/backend/internal/topup"
	"github.com/tenanttruth/backend/internal/unlock"
)

// WalletReader is the subset of the wallet service needed here.
type WalletReader interface {
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
}

// LedgerReader serves the caller's transaction history.
type LedgerReader interface {
	ListByUser(ctx context.Context, userID uuid.UUID, newestFirst bool) ([]*models.LedgerEntry, error)
}

// UnlockService abstracts the unlock authorizer.
type UnlockService interface {
	Purchase(ctx context.Context, userID, reviewID uuid.UUID, tier models.UnlockTier) (*unlock.PurchaseResult, error)
	CheckAccess(ctx context.Context, userID, reviewID uuid.UUID) (unlock.Access, error)
}

// ContactPurchaser abstracts the contact broker's purchase path.
type ContactPurchaser interface {
	Purchase(ctx context.Context, requesterID, tenantID, propertyID uuid.UUID, reviewID *uuid.UUID, message string) (*contact.PurchaseResult, error)
}

// TopupService abstracts top-up checkout issuance and completion.
type TopupService interface {
	CreateCheckout(ctx context.Context, userID uuid.UUID, tier pricing.TopupTier) (*topup.Checkout, error)
	Complete(ctx context.Context, topupID uuid.UUID, providerRef string) error
}

// ReviewFinder checks review existence for unlock/contact purchases.
type ReviewFinder interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Review, error)
}

// PaymentsHandler serves the /payments endpoints.
type PaymentsHandler struct {
	Wallet        WalletReader
	Ledger        LedgerReader
	Unlocks       UnlockService
	Contacts      ContactPurchaser
	Topups        TopupService
	Reviews       ReviewFinder
	Prices        *pricing.Table
	WebhookSecret []byte
	Logger        *slog.Logger
}

// --- GET /payments/wallet ---

type walletResponse struct {
	UserID         string `json:"user_id"`
	BalanceCredits int    `json:"balance_credits"`
}

func (h *PaymentsHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	balance, err := h.Wallet.Balance(r.Context(), user.ID)
	if err != nil {
		writeCoreError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, walletResponse{UserID: user.ID.String(), BalanceCredits: balance})
}

// --- POST /payments/topup ---

type topupRequest struct {
	Tier string `json:"tier"`
}

func (h *PaymentsHandler) CreateTopup(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	var req topupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	checkout, err := h.Topups.CreateCheckout(r.Context(), user.ID, pricing.TopupTier(req.Tier))
	if err != nil {
		writeCoreError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkout)
}

// --- POST /payments/webhook ---

type webhookEvent struct {
	Type        string `json:"type"`
	TopupID     string `json:"topup_id"`
	ProviderRef string `json:"provider_ref"`
}

// TopupWebhook records the result of a provider checkout. The request is
// authenticated by an HMAC-SHA256 signature over the raw body, not by a
// user token.
func (h *PaymentsHandler) TopupWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return
	}
	if !h.validSignature(body, r.Header.Get("X-Webhook-Signature")) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid webhook signature"})
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if event.Type != "topup.completed" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	topupID, err := uuid.Parse(event.TopupID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid topup_id"})
		return
	}
	if err := h.Topups.Complete(r.Context(), topupID, event.ProviderRef); err != nil {
		writeCoreError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *PaymentsHandler) validSignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, h.WebhookSecret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// --- POST /payments/unlock ---

type unlockRequest struct {
	ReviewID string `json:"review_id"`
	Tier     string `json:"tier"`
}

func (h *PaymentsHandler) PurchaseUnlock(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	var req unlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	reviewID, err := uuid.Parse(req.ReviewID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid review_id"})
		return
	}

	review, err := h.Reviews.GetByID(r.Context(), reviewID)
	if err != nil {
		writeCoreError(w, h.Logger, err)
		return
	}
	if review == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "review not found"})
		return
	}

	result, err := h.Unlocks.Purchase(r.Context(), user.ID, reviewID, models.UnlockTier(req.Tier))
	if err != nil {
		writeCoreError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- GET /payments/unlocks/check ---

func (h *PaymentsHandler) CheckUnlock(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	reviewID, err := uuid.Parse(r.URL.Query().Get("review_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid review_id"})
		return
	}
	access, err := h.Unlocks.CheckAccess(r.Context(), user.ID, reviewID)
	if err != nil {
		writeCoreError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, access)
}

// --- POST /payments/contact-request ---

type contactRequestPayload struct {
	TenantID   string  `json:"tenant_id"`
	PropertyID string  `json:"property_id"`
	ReviewID   *string `json:"review_id,omitempty"`
	Message    string  `json:"message,omitempty"`
}

func (h *PaymentsHandler) PurchaseContactRequest(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	var req contactRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant_id"})
		return
	}
	propertyID, err := uuid.Parse(req.PropertyID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid property_id"})
		return
	}
	var reviewID *uuid.UUID
	if req.ReviewID != nil {
		id, err := uuid.Parse(*req.ReviewID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid review_id"})
			return
		}
		review, err := h.Reviews.GetByID(r.Context(), id)
		if err != nil {
			writeCoreError(w, h.Logger, err)
			return
		}
		if review == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "review not found"})
			return
		}
		reviewID = &id
	}

	result, err := h.Contacts.Purchase(r.Context(), user.ID, tenantID, propertyID, reviewID, req.Message)
	if err != nil {
		writeCoreError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// --- GET /payments/ledger ---

func (h *PaymentsHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	newestFirst := r.URL.Query().Get("order") != "oldest"
	entries, err := h.Ledger.ListByUser(r.Context(), user.ID, newestFirst)
	if err != nil {
		writeCoreError(w, h.Logger, err)
		return
	}
	if entries == nil {
		entries = []*models.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- GET /payments/pricing ---

func (h *PaymentsHandler) GetPricing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Prices.Snapshot())
}
