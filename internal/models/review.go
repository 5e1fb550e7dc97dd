package models

import (
	"time"

	"github.com/google/uuid"
)

// Review status enums (authoring/moderation lives outside this service;
// only published reviews are served).
const (
	ReviewStatusDraft     = "draft"
	ReviewStatusSubmitted = "submitted"
	ReviewStatusPublished = "published"
	ReviewStatusDisputed  = "disputed"
	ReviewStatusRemoved   = "removed"
)

const (
	VerificationUnverified = "unverified"
	VerificationPending    = "pending"
	VerificationVerified   = "verified"
	VerificationRejected   = "rejected"
)

// Review is the full record a tenant wrote about a property. What a given
// viewer actually sees is decided by the visibility resolver from the
// viewer's unlock grant; this struct is never serialized directly to
// non-author viewers.
type Review struct {
	ID                 uuid.UUID      `json:"id"`
	PropertyID         uuid.UUID      `json:"property_id"`
	TenantID           uuid.UUID      `json:"tenant_id"`
	OverallRating      float64        `json:"overall_rating"`
	ReviewText         string         `json:"review_text"`
	PublicExcerpt      string         `json:"public_excerpt"`
	CategoryRatings    map[string]int `json:"category_ratings"`
	Photos             []string       `json:"photos"`
	Status             string         `json:"status"`
	VerificationStatus string         `json:"verification_status"`
	CreatedAt          time.Time      `json:"created_at"`
}
