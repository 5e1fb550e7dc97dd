package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/tenanttruth/backend/internal/models"
)

type Service interface {
	BalanceOf(ctx context.Context, userID uuid.UUID) (int, error)
	ListByUser(ctx context.Context, userID uuid.UUID, newestFirst bool) ([]*models.LedgerEntry, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) Service {
	return &service{repo: repo}
}

var _ Service = (*service)(nil)

func (s *service) BalanceOf(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.BalanceOf(ctx, userID)
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, newestFirst bool) ([]*models.LedgerEntry, error) {
	return s.repo.ListByUser(ctx, userID, newestFirst)
}
