package state

import (
	"sync"

	"github.com/TheMichaelB/vaultcopy/internal/models"
)

// MockStore keeps run records in memory.
type MockStore struct {
	mu   sync.RWMutex
	runs map[string]models.RunRecord
}

// NewMockStore creates an in-memory run store.
func NewMockStore() *MockStore {
	return &MockStore{
		runs: make(map[string]models.RunRecord),
	}
}

// Save stores a copy of rec.
func (m *MockStore) Save(rec *models.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs[rec.ID] = *rec
	return nil
}

// Load returns a copy of the stored record.
func (m *MockStore) Load(id string) (*models.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return &rec, nil
}

// List returns records, newest first.
func (m *MockStore) List(limit int) ([]*models.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]*models.RunRecord, 0, len(m.runs))
	for _, rec := range m.runs {
		rec := rec
		records = append(records, &rec)
	}

	sortNewestFirst(records)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Delete removes a record.
func (m *MockStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.runs, id)
	return nil
}

// Migrate copies all records to target.
func (m *MockStore) Migrate(target Store) error {
	records, err := m.List(0)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := target.Save(rec); err != nil {
			return err
		}
	}
	return nil
}

// Close releases resources.
func (m *MockStore) Close() error {
	return nil
}
