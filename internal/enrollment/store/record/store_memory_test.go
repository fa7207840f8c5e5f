package record

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"farmerid/internal/enrollment/models"
	id "farmerid/pkg/domain"
	"farmerid/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
}

func newRecord(recordID id.RecordID) *models.EnrollmentRecord {
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	return &models.EnrollmentRecord{
		ID: recordID,
		Identity: models.Identity{
			FirstName: "Wanjiru", LastName: "Kamau", NationalID: "12345678",
			Phone: "+254700000000", County: "Nakuru",
		},
		Location:          models.Location{Latitude: 1.2921, Longitude: 36.8219, CapturedAt: now},
		Photo:             []byte("JPEGDATA"),
		CredentialID:      "cred-" + recordID.String(),
		BiometricVerified: true,
		RegisteredAt:      now,
	}
}

func (s *InMemoryStoreSuite) TestNextSequence() {
	s.Run("starts at one and increments per day", func() {
		ctx := context.Background()
		first, err := s.store.NextSequence(ctx, "20240305")
		s.Require().NoError(err)
		second, err := s.store.NextSequence(ctx, "20240305")
		s.Require().NoError(err)
		other, err := s.store.NextSequence(ctx, "20240306")
		s.Require().NoError(err)

		s.Equal(int64(1), first)
		s.Equal(int64(2), second)
		s.Equal(int64(1), other)
	})

	s.Run("concurrent allocations are unique", func() {
		const workers = 100
		var wg sync.WaitGroup
		seen := make(chan int64, workers)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				seq, err := s.store.NextSequence(context.Background(), "20240307")
				s.NoError(err)
				seen <- seq
			}()
		}
		wg.Wait()
		close(seen)

		unique := map[int64]bool{}
		for seq := range seen {
			s.False(unique[seq], "duplicate sequence %d", seq)
			unique[seq] = true
		}
		s.Len(unique, workers)
	})
}

func (s *InMemoryStoreSuite) TestPutAndFind() {
	ctx := context.Background()
	rec := newRecord(id.NewRecordID("20240305", 1))
	s.Require().NoError(s.store.Put(ctx, rec))

	s.Run("find returns a copy of the stored record", func() {
		got, err := s.store.FindByID(ctx, rec.ID)
		s.Require().NoError(err)
		s.Equal(rec, got)
		got.Identity.FirstName = "changed"

		again, err := s.store.FindByID(ctx, rec.ID)
		s.Require().NoError(err)
		s.Equal("Wanjiru", again.Identity.FirstName)
	})

	s.Run("duplicate id is a conflict", func() {
		err := s.store.Put(ctx, newRecord(rec.ID))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("reused credential is rejected", func() {
		reused := newRecord(id.NewRecordID("20240305", 50))
		reused.CredentialID = rec.CredentialID
		err := s.store.Put(ctx, reused)
		s.ErrorIs(err, ErrCredentialEnrolled)
		s.ErrorIs(err, sentinel.ErrConflict)

		_, err = s.store.FindByID(ctx, reused.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("unknown id is not found", func() {
		_, err := s.store.FindByID(ctx, id.NewRecordID("20240305", 99))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("find many keeps order and skips unknown ids", func() {
		second := newRecord(id.NewRecordID("20240305", 2))
		s.Require().NoError(s.store.Put(ctx, second))

		got, err := s.store.FindByIDs(ctx, []id.RecordID{second.ID, id.NewRecordID("20240305", 42), rec.ID})
		s.Require().NoError(err)
		s.Require().Len(got, 2)
		s.Equal(second.ID, got[0].ID)
		s.Equal(rec.ID, got[1].ID)
	})
}

func (s *InMemoryStoreSuite) TestNoTx() {
	called := false
	err := NoTx{}.RunInTx(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	s.NoError(err)
	s.True(called)
}
