package service

import (
	"context"
	"errors"

	"farmerid/internal/enrollment/models"
	id "farmerid/pkg/domain"
	dErrors "farmerid/pkg/domain-errors"
	"farmerid/pkg/platform/sentinel"
)

// GetRecord loads one committed record.
func (s *Service) GetRecord(ctx context.Context, recordID id.RecordID) (*models.EnrollmentRecord, error) {
	ctx, span := s.tracer.Start(ctx, "enrollment.GetRecord")
	defer span.End()

	rec, err := s.records.FindByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "failed to load record")
	}
	return rec, nil
}

// ListRecords loads the records that exist among recordIDs, in request order.
func (s *Service) ListRecords(ctx context.Context, recordIDs []id.RecordID) ([]*models.EnrollmentRecord, error) {
	ctx, span := s.tracer.Start(ctx, "enrollment.ListRecords")
	defer span.End()

	if len(recordIDs) == 0 {
		return []*models.EnrollmentRecord{}, nil
	}
	recs, err := s.records.FindByIDs(ctx, recordIDs)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "failed to load records")
	}
	return recs, nil
}
