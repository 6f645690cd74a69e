package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/refhound/refhound/internal/referral"
)

// MemoryStore is an in-memory implementation of referral.Repository.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*referral.Record
}

// NewMemoryStore creates an empty in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*referral.Record),
	}
}

func (m *MemoryStore) Insert(_ context.Context, record *referral.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.records {
		if existing.Brand == record.Brand &&
			existing.Code == record.Code &&
			existing.Link == record.Link {
			return referral.ErrDuplicate
		}
	}

	m.records[record.ID] = clone(record)

	return nil
}

func (m *MemoryStore) FindDuplicate(_ context.Context, brand, code, link string) (*referral.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, record := range m.records {
		if record.Brand != brand {
			continue
		}

		if (code != "" && record.Code == code) || (link != "" && record.Link == link) {
			return clone(record), nil
		}
	}

	return nil, referral.ErrNotFound
}

func (m *MemoryStore) Get(_ context.Context, id string) (*referral.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.records[id]
	if !ok {
		return nil, referral.ErrNotFound
	}

	return clone(record), nil
}

func (m *MemoryStore) List(_ context.Context, filter referral.Filter) ([]*referral.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []*referral.Record

	for _, record := range m.records {
		if matches(record, filter) {
			records = append(records, clone(record))
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].PostDate.Equal(records[j].PostDate) {
			return records[i].PostDate.After(records[j].PostDate)
		}

		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	limit := clampLimit(filter.Limit)
	if len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}

func (m *MemoryStore) Update(_ context.Context, record *referral.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[record.ID]; !ok {
		return referral.ErrNotFound
	}

	for _, existing := range m.records {
		if existing.ID != record.ID &&
			existing.Brand == record.Brand &&
			existing.Code == record.Code &&
			existing.Link == record.Link {
			return referral.ErrDuplicate
		}
	}

	updated := clone(record)
	updated.CreatedAt = m.records[record.ID].CreatedAt
	m.records[record.ID] = updated

	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return referral.ErrNotFound
	}

	delete(m.records, id)

	return nil
}

func (m *MemoryStore) ListExpired(_ context.Context, asOf time.Time) ([]*referral.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var expired []*referral.Record

	for _, record := range m.records {
		if record.IsValid && record.ExpirationDate.Before(asOf) {
			expired = append(expired, clone(record))
		}
	}

	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ExpirationDate.Before(expired[j].ExpirationDate)
	})

	return expired, nil
}

func (m *MemoryStore) Invalidate(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[id]
	if !ok {
		return referral.ErrNotFound
	}

	record.IsValid = false
	record.LastValidated = at

	return nil
}

func matches(record *referral.Record, filter referral.Filter) bool {
	if filter.Brand != "" && record.Brand != filter.Brand {
		return false
	}

	if filter.Valid != nil && record.IsValid != *filter.Valid {
		return false
	}

	if filter.Tag != "" {
		found := false

		for _, tag := range record.Tags {
			if tag == filter.Tag {
				found = true

				break
			}
		}

		if !found {
			return false
		}
	}

	if filter.Query != "" {
		q := strings.ToLower(filter.Query)
		if !strings.Contains(strings.ToLower(record.Brand), q) &&
			!strings.Contains(strings.ToLower(record.Code), q) &&
			!strings.Contains(strings.ToLower(record.Link), q) {
			return false
		}
	}

	return true
}

func clone(record *referral.Record) *referral.Record {
	copied := *record
	copied.Tags = append([]string(nil), record.Tags...)

	return &copied
}

// Compile-time check.
var _ referral.Repository = (*MemoryStore)(nil)
