package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tenanttruth/backend/internal/contact"
	"github.com/tenanttruth/backend/internal/ledger"
	"github.com/tenanttruth/backend/internal/messaging"
	"github.com/tenanttruth/backend/internal/pricing"
	"github.com/tenanttruth/backend/internal/wallet"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeCoreError maps the core error taxonomy onto HTTP statuses. An
// insufficient-credits failure carries the exact need/have amounts so the
// client can prompt a top-up; everything else surfaces as a generic
// rejection without internal detail.
func writeCoreError(w http.ResponseWriter, log *slog.Logger, err error) {
	var insufficient *wallet.InsufficientCreditsError
	switch {
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusPaymentRequired, map[string]interface{}{
			"error": "insufficient credits",
			"need":  insufficient.Need,
			"have":  insufficient.Have,
		})
	case errors.Is(err, pricing.ErrUnknownTier):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown tier"})
	case errors.Is(err, wallet.ErrInvalidAmount), errors.Is(err, ledger.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount"})
	case errors.Is(err, messaging.ErrEmptyBody):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message body must not be empty"})
	case errors.Is(err, contact.ErrForbidden), errors.Is(err, messaging.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, contact.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, contact.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "invalid transition"})
	case errors.Is(err, messaging.ErrThreadNotAccepted):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "contact request has not been accepted"})
	default:
		log.Error("internal error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
