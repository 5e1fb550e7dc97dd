package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/tenanttruth/backend/internal/middleware"
	"github.com/tenanttruth/backend/internal/models"
	"github.com/tenanttruth/backend/internal/unlock"
	"github.com/tenanttruth/backend/internal/visibility"
)

// ReviewLister is the review read path used by the projection endpoints.
type ReviewLister interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Review, error)
	ListPublishedByProperty(ctx context.Context, propertyID uuid.UUID) ([]*models.Review, error)
}

// AccessChecker resolves a viewer's grant for a review.
type AccessChecker interface {
	CheckAccess(ctx context.Context, userID, reviewID uuid.UUID) (unlock.Access, error)
}

// ReviewsHandler serves published reviews through the visibility resolver,
// so every response carries an explicit projection tier.
type ReviewsHandler struct {
	Reviews ReviewLister
	Access  AccessChecker
	Logger  *slog.Logger
}

// viewerTier returns the viewer's grant tier for a review, or nil for
// anonymous viewers and viewers without a grant.
func (h *ReviewsHandler) viewerTier(ctx context.Context, viewer *middleware.User, reviewID uuid.UUID) (*models.UnlockTier, error) {
	if viewer == nil {
		return nil, nil
	}
	access, err := h.Access.CheckAccess(ctx, viewer.ID, reviewID)
	if err != nil {
		return nil, err
	}
	return access.HighestTier, nil
}

// --- GET /reviews/property/{propertyID} ---

func (h *ReviewsHandler) ListPropertyReviews(w http.ResponseWriter, r *http.Request) {
	propertyID, err := uuid.Parse(r.PathValue("propertyID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid property id"})
		return
	}
	viewer := middleware.UserFromCtx(r.Context())

	list, err := h.Reviews.ListPublishedByProperty(r.Context(), propertyID)
	if err != nil {
		writeCoreError(w, h.Logger, err)
		return
	}

	items := make([]visibility.Projection, 0, len(list))
	for _, rv := range list {
		tier, err := h.viewerTier(r.Context(), viewer, rv.ID)
		if err != nil {
			writeCoreError(w, h.Logger, err)
			return
		}
		viewerID := uuid.Nil
		if viewer != nil {
			viewerID = viewer.ID
		}
		items = append(items, visibility.Resolve(rv, tier, viewerID))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

// --- GET /reviews/{id} ---

func (h *ReviewsHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	reviewID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid review id"})
		return
	}
	viewer := middleware.UserFromCtx(r.Context())

	rv, err := h.Reviews.GetByID(r.Context(), reviewID)
	if err != nil {
		writeCoreError(w, h.Logger, err)
		return
	}
	if rv == nil || rv.Status != models.ReviewStatusPublished {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "review not found"})
		return
	}

	tier, err := h.viewerTier(r.Context(), viewer, rv.ID)
	if err != nil {
		writeCoreError(w, h.Logger, err)
		return
	}
	viewerID := uuid.Nil
	if viewer != nil {
		viewerID = viewer.ID
	}
	writeJSON(w, http.StatusOK, visibility.Resolve(rv, tier, viewerID))
}
