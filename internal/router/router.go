package router

import (
	"net/http"

	"github.com/tenanttruth/backend/internal/handlers"
	"github.com/tenanttruth/backend/internal/middleware"
)

// New returns the API http.Handler. Middleware chain per route:
// Auth -> handler for everything that acts on the caller's wallet or
// threads, OptionalAuth -> handler for review reads (anonymous viewers
// get the snippet projection), nothing for pricing, webhook and health.
func New(payments *handlers.PaymentsHandler, messages *handlers.MessagesHandler, reviews *handlers.ReviewsHandler, jwtSecret []byte) http.Handler {
	mux := http.NewServeMux()

	auth := middleware.Auth(jwtSecret)
	optional := middleware.OptionalAuth(jwtSecret)

	// Payments & credits
	mux.Handle("GET /payments/wallet", auth(http.HandlerFunc(payments.GetWallet)))
	mux.Handle("GET /payments/ledger", auth(http.HandlerFunc(payments.GetLedger)))
	mux.Handle("POST /payments/topup", auth(http.HandlerFunc(payments.CreateTopup)))
	mux.Handle("POST /payments/unlock", auth(http.HandlerFunc(payments.PurchaseUnlock)))
	mux.Handle("GET /payments/unlocks/check", auth(http.HandlerFunc(payments.CheckUnlock)))
	mux.Handle("POST /payments/contact-request", auth(http.HandlerFunc(payments.PurchaseContactRequest)))
	mux.HandleFunc("GET /payments/pricing", payments.GetPricing)
	mux.HandleFunc("POST /payments/webhook", payments.TopupWebhook)

	// Contact requests & messaging
	mux.Handle("GET /messages/contact-requests", auth(http.HandlerFunc(messages.ListContactRequests)))
	mux.Handle("PATCH /messages/contact-requests/{id}", auth(http.HandlerFunc(messages.RespondContactRequest)))
	mux.Handle("GET /messages/conversations", auth(http.HandlerFunc(messages.ListConversations)))
	mux.Handle("GET /messages/conversations/{id}", auth(http.HandlerFunc(messages.GetMessages)))
	mux.Handle("POST /messages/conversations/{id}", auth(http.HandlerFunc(messages.SendMessage)))
	mux.Handle("POST /messages/conversations/{id}/read", auth(http.HandlerFunc(messages.MarkConversationRead)))

	// Reviews (redacted for anonymous viewers)
	mux.Handle("GET /reviews/property/{propertyID}", optional(http.HandlerFunc(reviews.ListPropertyReviews)))
	mux.Handle("GET /reviews/{id}", optional(http.HandlerFunc(reviews.GetReview)))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return mux
}
