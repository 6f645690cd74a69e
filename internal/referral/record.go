// Package referral holds the domain model for harvested referral offers and
// the gateway that deduplicates and persists them.
package referral

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no record matches a lookup.
	ErrNotFound = errors.New("referral record not found")
	// ErrDuplicate is returned when an insert collides with an existing
	// (brand, code, link) triple.
	ErrDuplicate = errors.New("referral record already exists")
	// ErrIneligible is returned for candidates missing a brand or both
	// code and link.
	ErrIneligible = errors.New("record needs a brand and a code or link")
)

// Candidate is a record extracted from a single forum post. It is transient:
// either it becomes a stored Record or it is dropped.
type Candidate struct {
	Brand           string
	Code            string
	Link            string
	Tags            []string
	PostDate        time.Time
	ExpirationDate  time.Time
	SourceID        string
	SourcePermalink string
}

// Eligible reports whether the candidate carries at least one of code/link.
func (c *Candidate) Eligible() bool {
	return c.Code != "" || c.Link != ""
}

// Record is a persisted referral offer.
type Record struct {
	ID              string
	Brand           string
	Code            string
	Link            string
	Tags            []string
	PostDate        time.Time
	ExpirationDate  time.Time
	IsValid         bool
	LastValidated   time.Time
	SourceID        string
	SourcePermalink string
	CreatedAt       time.Time
}

// Filter narrows a List query.
type Filter struct {
	// Query matches brand, code or link, case-insensitively.
	Query string
	Brand string
	Tag   string
	Valid *bool
	Limit int
}

// Repository defines the storage operations for referral records.
type Repository interface {
	Insert(ctx context.Context, record *Record) error
	// FindDuplicate returns an existing record with the same brand whose
	// code or link matches either non-empty argument. ErrNotFound when none.
	FindDuplicate(ctx context.Context, brand, code, link string) (*Record, error)
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, filter Filter) ([]*Record, error)
	Update(ctx context.Context, record *Record) error
	Delete(ctx context.Context, id string) error

	// ListExpired returns valid records whose expiration date is strictly
	// before asOf.
	ListExpired(ctx context.Context, asOf time.Time) ([]*Record, error)
	// Invalidate flips is_valid off and refreshes last_validated.
	Invalidate(ctx context.Context, id string, at time.Time) error
}
