package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"farmerid/internal/enrollment/models"
	id "farmerid/pkg/domain"
	"farmerid/pkg/platform/sentinel"
	txcontext "farmerid/pkg/platform/tx"
)

const (
	uniqueViolation     = "23505"
	credentialUniqueKey = "enrollment_records_credential_id_key"
)

// Schema creates the record tables. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS enrollment_sequences (
	day        TEXT PRIMARY KEY,
	last_value BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS enrollment_records (
	id                   TEXT PRIMARY KEY,
	first_name           TEXT NOT NULL,
	last_name            TEXT NOT NULL,
	national_id          TEXT NOT NULL,
	phone                TEXT NOT NULL,
	county               TEXT NOT NULL,
	village              TEXT NOT NULL DEFAULT '',
	farm_size            TEXT NOT NULL DEFAULT '',
	primary_crop         TEXT NOT NULL DEFAULT '',
	latitude             DOUBLE PRECISION NOT NULL,
	longitude            DOUBLE PRECISION NOT NULL,
	location_captured_at TIMESTAMPTZ NOT NULL,
	photo                BYTEA NOT NULL,
	credential_id        TEXT NOT NULL,
	biometric_verified   BOOLEAN NOT NULL,
	capture_device       TEXT NOT NULL DEFAULT '',
	registered_at        TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS enrollment_records_credential_id_key
	ON enrollment_records (credential_id);
`

// PostgresStore keeps records and per-day counters in PostgreSQL. When the
// context carries a transaction (see pkg/platform/tx) all statements join it.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema applies Schema.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure record schema: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// NextSequence atomically increments the counter for day. The row lock taken
// by the upsert serialises concurrent allocations for the same day.
func (s *PostgresStore) NextSequence(ctx context.Context, day string) (int64, error) {
	query := `
		INSERT INTO enrollment_sequences (day, last_value)
		VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET
			last_value = enrollment_sequences.last_value + 1
		RETURNING last_value
	`
	var seq int64
	if err := s.execer(ctx).QueryRowContext(ctx, query, day).Scan(&seq); err != nil {
		return 0, fmt.Errorf("allocate sequence: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return seq, nil
}

func (s *PostgresStore) Put(ctx context.Context, record *models.EnrollmentRecord) error {
	query := `
		INSERT INTO enrollment_records (
			id, first_name, last_name, national_id, phone, county, village, farm_size, primary_crop,
			latitude, longitude, location_captured_at, photo, credential_id, biometric_verified,
			capture_device, registered_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	ident := record.Identity
	_, err := s.execer(ctx).ExecContext(ctx, query,
		record.ID.String(), ident.FirstName, ident.LastName, ident.NationalID, ident.Phone, ident.County,
		ident.Village, ident.FarmSize, ident.PrimaryCrop,
		record.Location.Latitude, record.Location.Longitude, record.Location.CapturedAt.UTC(),
		record.Photo, record.CredentialID, record.BiometricVerified,
		record.CaptureDevice, record.RegisteredAt.UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName == credentialUniqueKey {
				return fmt.Errorf("record %s: %w", record.ID, ErrCredentialEnrolled)
			}
			return fmt.Errorf("record %s: %w", record.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert record: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return nil
}

const selectRecord = `
	SELECT id, first_name, last_name, national_id, phone, county, village, farm_size, primary_crop,
		latitude, longitude, location_captured_at, photo, credential_id, biometric_verified,
		capture_device, registered_at
	FROM enrollment_records
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.EnrollmentRecord, error) {
	var (
		rec          models.EnrollmentRecord
		recordID     string
		capturedAt   time.Time
		registeredAt time.Time
	)
	err := row.Scan(
		&recordID, &rec.Identity.FirstName, &rec.Identity.LastName, &rec.Identity.NationalID,
		&rec.Identity.Phone, &rec.Identity.County, &rec.Identity.Village, &rec.Identity.FarmSize,
		&rec.Identity.PrimaryCrop, &rec.Location.Latitude, &rec.Location.Longitude, &capturedAt,
		&rec.Photo, &rec.CredentialID, &rec.BiometricVerified, &rec.CaptureDevice, &registeredAt,
	)
	if err != nil {
		return nil, err
	}
	rec.ID = id.RecordID(recordID)
	rec.Location.CapturedAt = capturedAt.UTC()
	rec.RegisteredAt = registeredAt.UTC()
	return &rec, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, recordID id.RecordID) (*models.EnrollmentRecord, error) {
	rec, err := scanRecord(s.execer(ctx).QueryRowContext(ctx, selectRecord+` WHERE id = $1`, recordID.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find record: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return rec, nil
}

func (s *PostgresStore) FindByIDs(ctx context.Context, recordIDs []id.RecordID) ([]*models.EnrollmentRecord, error) {
	if len(recordIDs) == 0 {
		return []*models.EnrollmentRecord{}, nil
	}
	keys := make([]string, len(recordIDs))
	for i, recordID := range recordIDs {
		keys[i] = recordID.String()
	}

	rows, err := s.execer(ctx).QueryContext(ctx, selectRecord+` WHERE id = ANY($1::text[])`, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("find records: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	defer rows.Close()

	found := make(map[id.RecordID]*models.EnrollmentRecord, len(keys))
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		found[rec.ID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", errors.Join(sentinel.ErrUnavailable, err))
	}

	out := make([]*models.EnrollmentRecord, 0, len(found))
	for _, recordID := range recordIDs {
		if rec, ok := found[recordID]; ok {
			out = append(out, rec)
			delete(found, recordID)
		}
	}
	return out, nil
}
