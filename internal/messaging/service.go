package messaging

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tenanttruth/backend/internal/models"
)

var (
	// ErrThreadNotAccepted is returned when the owning contact request is
	// not in accepted state. Only the tenant's acceptance resolves it.
	ErrThreadNotAccepted = errors.New("contact request has not been accepted")
	// ErrForbidden is returned when the actor is not one of the two parties.
	ErrForbidden = errors.New("not a participant in this conversation")
	// ErrEmptyBody rejects blank messages.
	ErrEmptyBody = errors.New("message body must not be empty")
)

// RequestSource resolves a thread id (= contact request id) to the request
// with lazy expiry already applied. Implemented by contact.Broker.
type RequestSource interface {
	Request(ctx context.Context, id uuid.UUID) (*models.ContactRequest, error)
}

// MessageStore is the message persistence interface.
type MessageStore interface {
	Insert(ctx context.Context, m *models.Message) error
	ListByThread(ctx context.Context, threadID uuid.UUID) ([]*models.Message, error)
	MarkRead(ctx context.Context, threadID, userID uuid.UUID, at time.Time) error
	UnreadCount(ctx context.Context, threadID, userID uuid.UUID) (int, error)
}

// Service gates message threads on their contact request: only the two
// parties of an accepted request may read or write, and messages are
// immutable once appended.
type Service struct {
	requests RequestSource
	messages MessageStore
	now      func() time.Time
}

func NewService(requests RequestSource, messages MessageStore) *Service {
	return &Service{requests: requests, messages: messages, now: time.Now}
}

// thread authorizes the actor for the thread and returns the owning request.
func (s *Service) thread(ctx context.Context, threadID, actorID uuid.UUID) (*models.ContactRequest, error) {
	cr, err := s.requests.Request(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !cr.Participant(actorID) {
		return nil, ErrForbidden
	}
	if cr.Status != models.ContactStatusAccepted {
		return nil, ErrThreadNotAccepted
	}
	return cr, nil
}

// Send appends a message to the thread.
func (s *Service) Send(ctx context.Context, threadID, senderID uuid.UUID, body string) (*models.Message, error) {
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyBody
	}
	if _, err := s.thread(ctx, threadID, senderID); err != nil {
		return nil, err
	}
	m := &models.Message{
		ID:       uuid.New(),
		ThreadID: threadID,
		SenderID: senderID,
		Body:     body,
	}
	if err := s.messages.Insert(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// List returns the thread's messages in append order.
func (s *Service) List(ctx context.Context, threadID, readerID uuid.UUID) ([]*models.Message, error) {
	if _, err := s.thread(ctx, threadID, readerID); err != nil {
		return nil, err
	}
	return s.messages.ListByThread(ctx, threadID)
}

// MarkRead advances the reader's last-seen marker to now.
func (s *Service) MarkRead(ctx context.Context, threadID, readerID uuid.UUID) error {
	if _, err := s.thread(ctx, threadID, readerID); err != nil {
		return err
	}
	return s.messages.MarkRead(ctx, threadID, readerID, s.now())
}

// Unread derives the reader's unread count from the last-seen marker.
func (s *Service) Unread(ctx context.Context, threadID, readerID uuid.UUID) (int, error) {
	if _, err := s.thread(ctx, threadID, readerID); err != nil {
		return 0, err
	}
	return s.messages.UnreadCount(ctx, threadID, readerID)
}
