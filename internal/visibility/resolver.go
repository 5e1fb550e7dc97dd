package visibility

import (
	"time"

	"github.com/google/uuid"

	"github.com/tenanttruth/backend/internal/models"
)

// Tier tags the projection explicitly so no consumer has to sniff payload
// shape to know what it was served.
type Tier string

const (
	TierSnippet  Tier = "snippet"
	TierSummary  Tier = "summary"
	TierDetailed Tier = "detailed"
	TierFull     Tier = "full"
)

// excerptLimit caps snippet/summary text, counted in runes.
const excerptLimit = 200

// Projection is the redacted view of a review a given viewer may see.
type Projection struct {
	Tier               Tier           `json:"tier"`
	ID                 uuid.UUID      `json:"id"`
	OverallRating      float64        `json:"overall_rating"`
	PublicExcerpt      string         `json:"public_excerpt"`
	CreatedAt          time.Time      `json:"created_at"`
	VerificationStatus string         `json:"verification_status"`
	ReviewText         string         `json:"review_text,omitempty"`
	CategoryRatings    map[string]int `json:"category_ratings,omitempty"`
	Photos             []string       `json:"photos,omitempty"`
}

// Resolve is a pure function of (review, grant tier, viewer identity). It
// performs no I/O; all state changes happen through the unlock authorizer.
// grant is nil for viewers without one; viewerID is uuid.Nil for
// unauthenticated viewers. The review's own author always sees everything.
func Resolve(r *models.Review, grant *models.UnlockTier, viewerID uuid.UUID) Projection {
	p := Projection{
		Tier:               TierSnippet,
		ID:                 r.ID,
		OverallRating:      r.OverallRating,
		PublicExcerpt:      truncate(r.PublicExcerpt, excerptLimit),
		CreatedAt:          r.CreatedAt,
		VerificationStatus: r.VerificationStatus,
	}

	if viewerID != uuid.Nil && viewerID == r.TenantID {
		return full(r, p)
	}
	if grant == nil {
		return p
	}

	switch *grant {
	case models.TierSummary:
		p.Tier = TierSummary
		p.ReviewText = truncate(r.ReviewText, excerptLimit)
	case models.TierDetailed:
		p.Tier = TierDetailed
		p.ReviewText = r.ReviewText
		p.CategoryRatings = r.CategoryRatings
	case models.TierFull:
		return full(r, p)
	}
	return p
}

func full(r *models.Review, p Projection) Projection {
	p.Tier = TierFull
	p.ReviewText = r.ReviewText
	p.CategoryRatings = r.CategoryRatings
	p.Photos = r.Photos
	return p
}

// truncate cuts s to at most limit runes, marking the cut with an ellipsis.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
