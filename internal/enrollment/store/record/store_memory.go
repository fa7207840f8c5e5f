// Package record persists committed enrollment records and allocates their
// per-day sequence numbers.
package record

import (
	"context"
	"fmt"
	"sync"

	"farmerid/internal/enrollment/models"
	id "farmerid/pkg/domain"
	"farmerid/pkg/platform/sentinel"
)

// Error Contract:
//   - FindByID returns ErrNotFound when the record does not exist
//   - Put returns ErrConflict when the record ID is already taken
//   - Put returns ErrCredentialEnrolled when the credential already backs a record
//   - FindByIDs skips unknown IDs and preserves request order
//   - infrastructure failures are wrapped with ErrUnavailable

// ErrCredentialEnrolled marks a Put whose credential already backs another
// record. A proven credential yields at most one record.
var ErrCredentialEnrolled = fmt.Errorf("credential already enrolled: %w", sentinel.ErrConflict)

// InMemoryStore is the development record store. Sequence allocation and
// writes share one mutex, which is the single coordination point for IDs.
type InMemoryStore struct {
	mu          sync.RWMutex
	sequences   map[string]int64
	records     map[id.RecordID]*models.EnrollmentRecord
	credentials map[string]id.RecordID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		sequences:   make(map[string]int64),
		records:     make(map[id.RecordID]*models.EnrollmentRecord),
		credentials: make(map[string]id.RecordID),
	}
}

func (s *InMemoryStore) NextSequence(_ context.Context, day string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequences[day]++
	return s.sequences[day], nil
}

func (s *InMemoryStore) Put(_ context.Context, record *models.EnrollmentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.ID]; ok {
		return fmt.Errorf("record %s: %w", record.ID, sentinel.ErrConflict)
	}
	if existing, ok := s.credentials[record.CredentialID]; ok {
		return fmt.Errorf("record %s: credential used by %s: %w", record.ID, existing, ErrCredentialEnrolled)
	}
	stored := *record
	s.records[record.ID] = &stored
	s.credentials[record.CredentialID] = record.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, recordID id.RecordID) (*models.EnrollmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[recordID]
	if !ok {
		return nil, fmt.Errorf("record not found: %w", sentinel.ErrNotFound)
	}
	out := *rec
	return &out, nil
}

func (s *InMemoryStore) FindByIDs(_ context.Context, recordIDs []id.RecordID) ([]*models.EnrollmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.EnrollmentRecord, 0, len(recordIDs))
	for _, recordID := range recordIDs {
		if rec, ok := s.records[recordID]; ok {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Count reports stored records.
func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
