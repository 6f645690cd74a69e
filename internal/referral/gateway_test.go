package referral_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/refhound/refhound/internal/analytics"
	"github.com/refhound/refhound/internal/messaging"
	"github.com/refhound/refhound/internal/referral"
	"github.com/refhound/refhound/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func staticID(id string) referral.IDGenerator {
	return func() string { return id }
}

func countingID() (referral.IDGenerator, *int) {
	n := 0

	return func() string {
		n++

		return string(rune('a' + n))
	}, &n
}

// trackingRepo counts store accesses so tests can assert the pre-check
// short-circuits before any store call.
type trackingRepo struct {
	referral.Repository
	findCalls   int
	insertCalls int
}

func (r *trackingRepo) FindDuplicate(ctx context.Context, brand, code, link string) (*referral.Record, error) {
	r.findCalls++

	return r.Repository.FindDuplicate(ctx, brand, code, link)
}

func (r *trackingRepo) Insert(ctx context.Context, record *referral.Record) error {
	r.insertCalls++

	return r.Repository.Insert(ctx, record)
}

func newGateway(repo referral.Repository) *referral.Gateway {
	gen, _ := countingID()

	return referral.NewGateway(
		repo,
		gen,
		messaging.NopPublish[analytics.RecordIngestedEvent](),
		zap.NewNop(),
	)
}

func validCandidate() *referral.Candidate {
	return &referral.Candidate{
		Brand:          "Acme",
		Code:           "FRIEND20",
		Tags:           []string{"retail"},
		PostDate:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		ExpirationDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		SourceID:       "abc123",
	}
}

func TestGateway_Save(t *testing.T) {
	t.Run("saves an eligible candidate", func(t *testing.T) {
		gateway := newGateway(store.NewMemoryStore())

		saved, err := gateway.Save(context.Background(), validCandidate())

		require.NoError(t, err)
		assert.True(t, saved)
	})

	t.Run("missing both code and link skips without store access", func(t *testing.T) {
		repo := &trackingRepo{Repository: store.NewMemoryStore()}
		gateway := newGateway(repo)

		cand := validCandidate()
		cand.Code = ""
		cand.Link = ""

		saved, err := gateway.Save(context.Background(), cand)

		require.NoError(t, err)
		assert.False(t, saved)
		assert.Zero(t, repo.findCalls)
		assert.Zero(t, repo.insertCalls)
	})

	t.Run("missing brand skips without store access", func(t *testing.T) {
		repo := &trackingRepo{Repository: store.NewMemoryStore()}
		gateway := newGateway(repo)

		cand := validCandidate()
		cand.Brand = ""

		saved, err := gateway.Save(context.Background(), cand)

		require.NoError(t, err)
		assert.False(t, saved)
		assert.Zero(t, repo.findCalls)
	})

	t.Run("second save of the same triple is a no-op", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		gateway := newGateway(memStore)

		first, err := gateway.Save(context.Background(), validCandidate())
		require.NoError(t, err)
		require.True(t, first)

		second, err := gateway.Save(context.Background(), validCandidate())
		require.NoError(t, err)
		assert.False(t, second)

		records, err := memStore.List(context.Background(), referral.Filter{})
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("link match alone makes a duplicate when both fields present", func(t *testing.T) {
		memStore := store.NewMemoryStore()
		gateway := newGateway(memStore)

		existing := validCandidate()
		existing.Code = "OLD10"
		existing.Link = "https://acme.example/ref"

		saved, err := gateway.Save(context.Background(), existing)
		require.NoError(t, err)
		require.True(t, saved)

		// Different code, same link.
		cand := validCandidate()
		cand.Code = "NEW20"
		cand.Link = "https://acme.example/ref"

		saved, err = gateway.Save(context.Background(), cand)

		require.NoError(t, err)
		assert.False(t, saved)
	})

	t.Run("same code under a different brand is not a duplicate", func(t *testing.T) {
		gateway := newGateway(store.NewMemoryStore())

		saved, err := gateway.Save(context.Background(), validCandidate())
		require.NoError(t, err)
		require.True(t, saved)

		cand := validCandidate()
		cand.Brand = "Umbrella"

		saved, err = gateway.Save(context.Background(), cand)

		require.NoError(t, err)
		assert.True(t, saved)
	})

	t.Run("constraint violation at insert is a skip not an error", func(t *testing.T) {
		// FindDuplicate misses but Insert reports a conflict: the race
		// between check and insert, decided by the store's constraint.
		repo := &racingRepo{}
		gateway := newGateway(repo)

		saved, err := gateway.Save(context.Background(), validCandidate())

		require.NoError(t, err)
		assert.False(t, saved)
	})

	t.Run("store failure surfaces as an error", func(t *testing.T) {
		repo := &failingRepo{err: errors.New("connection reset")}
		gateway := newGateway(repo)

		saved, err := gateway.Save(context.Background(), validCandidate())

		assert.False(t, saved)
		assert.Error(t, err)
	})
}

func TestGateway_Ingest(t *testing.T) {
	t.Run("sets validity fields and defaults post date", func(t *testing.T) {
		now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
		gateway := referral.NewGateway(
			store.NewMemoryStore(),
			staticID("fixed-id"),
			messaging.NopPublish[analytics.RecordIngestedEvent](),
			zap.NewNop(),
		).WithClock(func() time.Time { return now })

		cand := validCandidate()
		cand.PostDate = time.Time{}

		record, err := gateway.Ingest(context.Background(), cand)

		require.NoError(t, err)
		assert.Equal(t, "fixed-id", record.ID)
		assert.True(t, record.IsValid)
		assert.Equal(t, now, record.LastValidated)
		assert.Equal(t, now, record.PostDate)
		assert.Equal(t, cand.ExpirationDate, record.ExpirationDate)
	})

	t.Run("ineligible candidate yields ErrIneligible", func(t *testing.T) {
		gateway := newGateway(store.NewMemoryStore())

		cand := validCandidate()
		cand.Code = ""
		cand.Link = ""

		record, err := gateway.Ingest(context.Background(), cand)

		assert.Nil(t, record)
		assert.ErrorIs(t, err, referral.ErrIneligible)
	})

	t.Run("duplicate yields ErrDuplicate", func(t *testing.T) {
		gateway := newGateway(store.NewMemoryStore())

		_, err := gateway.Ingest(context.Background(), validCandidate())
		require.NoError(t, err)

		record, err := gateway.Ingest(context.Background(), validCandidate())

		assert.Nil(t, record)
		assert.ErrorIs(t, err, referral.ErrDuplicate)
	})
}

// racingRepo simulates losing the check-then-insert race: the duplicate
// check misses but the insert hits the uniqueness constraint.
type racingRepo struct {
	store.MemoryStore
}

func (r *racingRepo) FindDuplicate(context.Context, string, string, string) (*referral.Record, error) {
	return nil, referral.ErrNotFound
}

func (r *racingRepo) Insert(context.Context, *referral.Record) error {
	return referral.ErrDuplicate
}

type failingRepo struct {
	store.MemoryStore
	err error
}

func (r *failingRepo) FindDuplicate(context.Context, string, string, string) (*referral.Record, error) {
	return nil, r.err
}
