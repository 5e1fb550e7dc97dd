package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/tenanttruth/backend/internal/middleware"
	"github.com/tenanttruth/backend/internal/models"
)

// ContactResponder abstracts the contact broker's read/respond paths.
type ContactResponder interface {
	Respond(ctx context.Context, id, actorID uuid.UUID, accept bool) (*models.ContactRequest, error)
	Get(ctx context.Context, id, actorID uuid.UUID) (*models.ContactRequest, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.ContactRequest, error)
	Conversations(ctx context.Context, userID uuid.UUID) ([]*models.ContactRequest, error)
}

// ThreadService abstracts the message thread operations.
type ThreadService interface {
	Send(ctx context.Context, threadID, senderID uuid.UUID, body string) (*models.Message, error)
	List(ctx context.Context, threadID, readerID uuid.UUID) ([]*models.Message, error)
	MarkRead(ctx context.Context, threadID, readerID uuid.UUID) error
	Unread(ctx context.Context, threadID, readerID uuid.UUID) (int, error)
}

// MessagesHandler serves the /messages endpoints.
type MessagesHandler struct {
	Contacts ContactResponder
	Threads  ThreadService
	Logger   *slog.Logger
}

// --- GET /messages/contact-requests ---

func (h *MessagesHandler) ListContactRequests(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	list, err := h.Contacts.ListForUser(r.Context(), user.ID)
	if err != nil {
		writeCoreError(w, h.Logger, err)
		return
	}
	if list == nil {
		list = []*models.ContactRequest{}
	}
	writeJSON(w, http.StatusOK, list)
}

// --- PATCH /messages/contact-requests/{id} ---

type respondRequest struct {
	Status string `json:"status"`
}

func (h *MessagesHandler) RespondContactRequest(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Status != models.ContactStatusAccepted && req.Status != models.ContactStatusDeclined {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status must be accepted or declined"})
		return
	}

	cr, err := h.Contacts.Respond(r.Context(), id, user.ID, req.Status == models.ContactStatusAccepted)
	if err != nil {
		writeCoreError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cr)
}

// --- GET /messages/conversations ---

type conversationResponse struct {
	Request *models.ContactRequest `json:"request"`
	Unread  int                    `json:"unread"`
}

func (h *MessagesHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	list, err := h.Contacts.Conversations(r.Context(), user.ID)
	if err != nil {
		writeCoreError(w, h.Logger, err)
		return
	}
	out := make([]conversationResponse, 0, len(list))
	for _, cr := range list {
		unread, err := h.Threads.Unread(r.Context(), cr.ID, user.ID)
		if err != nil {
			writeCoreError(w, h.Logger, err)
			return
		}
		out = append(out, conversationResponse{Request: cr, Unread: unread})
	}
	writeJSON(w, http.StatusOK, out)
}

// --- GET /messages/conversations/{id} ---

func (h *MessagesHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	threadID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	msgs, err := h.Threads.List(r.Context(), threadID, user.ID)
	if err != nil {
		writeCoreError(w, h.Logger, err)
		return
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// --- POST /messages/conversations/{id} ---

type sendMessageRequest struct {
	Body string `json:"body"`
}

func (h *MessagesHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	threadID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	msg, err := h.Threads.Send(r.Context(), threadID, user.ID, req.Body)
	if err != nil {
		writeCoreError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// --- POST /messages/conversations/{id}/read ---

func (h *MessagesHandler) MarkConversationRead(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	threadID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	if err := h.Threads.MarkRead(r.Context(), threadID, user.ID); err != nil {
		writeCoreError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
