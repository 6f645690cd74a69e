package referral

import (
	"context"
	"errors"
	"time"

	"github.com/refhound/refhound/internal/analytics"
	"github.com/refhound/refhound/internal/messaging"
	"go.uber.org/zap"
)

// IDGenerator produces unique record identifiers.
type IDGenerator func() string

// Gateway performs the dedup-then-insert step for extracted candidates.
// The pre-check is best effort; the store's uniqueness constraint on
// (brand, code, link) backstops the race between check and insert.
type Gateway struct {
	repo            Repository
	newID           IDGenerator
	now             func() time.Time
	publishIngested messaging.Publish[analytics.RecordIngestedEvent]
	logger          *zap.Logger
}

// NewGateway creates a gateway over the given repository.
func NewGateway(
	repo Repository,
	newID IDGenerator,
	publishIngested messaging.Publish[analytics.RecordIngestedEvent],
	logger *zap.Logger,
) *Gateway {
	return &Gateway{
		repo:            repo,
		newID:           newID,
		now:             time.Now,
		publishIngested: publishIngested,
		logger:          logger,
	}
}

// WithClock overrides the gateway's time source.
func (g *Gateway) WithClock(now func() time.Time) *Gateway {
	g.now = now

	return g
}

// Ingest validates, deduplicates and stores a candidate, returning the
// stored record. It returns ErrIneligible without touching the store when
// the candidate lacks a brand or both code and link, and ErrDuplicate when
// an existing record shares the brand and either field.
func (g *Gateway) Ingest(ctx context.Context, cand *Candidate) (*Record, error) {
	if cand.Brand == "" || !cand.Eligible() {
		return nil, ErrIneligible
	}

	existing, err := g.repo.FindDuplicate(ctx, cand.Brand, cand.Code, cand.Link)
	if err == nil && existing != nil {
		return nil, ErrDuplicate
	}

	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := g.now()

	postDate := cand.PostDate
	if postDate.IsZero() {
		postDate = now
	}

	record := &Record{
		ID:              g.newID(),
		Brand:           cand.Brand,
		Code:            cand.Code,
		Link:            cand.Link,
		Tags:            cand.Tags,
		PostDate:        postDate,
		ExpirationDate:  cand.ExpirationDate,
		IsValid:         true,
		LastValidated:   now,
		SourceID:        cand.SourceID,
		SourcePermalink: cand.SourcePermalink,
		CreatedAt:       now,
	}

	if err := g.repo.Insert(ctx, record); err != nil {
		return nil, err
	}

	g.publishEvent(record)

	return record, nil
}

// Save is the pipeline-facing wrapper around Ingest: ineligible candidates
// and duplicates (pre-check or constraint violation) collapse to a false
// return, never an error.
func (g *Gateway) Save(ctx context.Context, cand *Candidate) (bool, error) {
	_, err := g.Ingest(ctx, cand)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrIneligible):
		return false, nil
	case errors.Is(err, ErrDuplicate):
		g.logger.Debug("duplicate record skipped",
			zap.String("brand", cand.Brand),
			zap.String("code", cand.Code),
		)

		return false, nil
	default:
		return false, err
	}
}

func (g *Gateway) publishEvent(record *Record) {
	event := &analytics.RecordIngestedEvent{
		RecordID:   record.ID,
		Brand:      record.Brand,
		Code:       record.Code,
		Link:       record.Link,
		Tags:       record.Tags,
		Source:     record.SourcePermalink,
		IngestedAt: record.CreatedAt,
	}

	if err := g.publishIngested(event); err != nil {
		g.logger.Error("failed to publish ingest event",
			zap.String("record_id", record.ID),
			zap.Error(err),
		)
	}
}
