package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/asaskevich/govalidator"

	"farmerid/internal/enrollment/models"
	"farmerid/internal/enrollment/store/record"
	id "farmerid/pkg/domain"
	dErrors "farmerid/pkg/domain-errors"
	"farmerid/pkg/requestcontext"
)

// Committer turns a proven session into a durable record. It is the only
// component that drains a session's evidence.
type Committer struct {
	records RecordStore
	tx      Transactor
}

func NewCommitter(records RecordStore, tx Transactor) *Committer {
	return &Committer{records: records, tx: tx}
}

// Commit validates sess and identity, persists the record and resets sess.
//
// Checks run in order and the first failure wins: possession proof, then
// identity fields (presence, then format), then captured location and photo.
// On any failure sess is left untouched, so the client can fix only what is
// missing. A store failure writes nothing and is safe to retry. A credential
// that already backs a record ends the session: it is reset and the commit
// reports a conflict.
func (c *Committer) Commit(ctx context.Context, sess *models.Session, identity models.Identity) (*models.EnrollmentRecord, error) {
	// Checked here as well as by the caller: no record without proof.
	if !sess.Has(models.FlagPossessionProven) || sess.CredentialID == "" {
		return nil, dErrors.New(dErrors.CodeBiometricRequired, "biometric verification required")
	}
	if field := identity.FirstMissing(); field != "" {
		return nil, dErrors.MissingField(field)
	}
	if err := validateIdentity(identity); err != nil {
		return nil, err
	}
	if !sess.Has(models.FlagLocationCaptured) || sess.Location == nil {
		return nil, dErrors.MissingField("location")
	}
	if !sess.Has(models.FlagPhotoCaptured) || len(sess.Photo) == 0 {
		return nil, dErrors.MissingField("photo")
	}

	now := requestcontext.Now(ctx)
	day := models.RecordDay(now)
	rec := &models.EnrollmentRecord{
		Identity:          identity,
		Location:          *sess.Location,
		Photo:             append([]byte(nil), sess.Photo...),
		CredentialID:      sess.CredentialID,
		BiometricVerified: true,
		CaptureDevice:     sess.CaptureDevice,
		RegisteredAt:      now,
	}

	err := c.tx.RunInTx(ctx, func(ctx context.Context) error {
		seq, err := c.records.NextSequence(ctx, day)
		if err != nil {
			return err
		}
		rec.ID = id.NewRecordID(day, seq)
		return c.records.Put(ctx, rec)
	})
	if errors.Is(err, record.ErrCredentialEnrolled) {
		sess.Reset(now)
		return nil, dErrors.Wrap(err, dErrors.CodeConflict, "credential already enrolled")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "failed to persist enrollment record")
	}

	sess.Reset(now)
	return rec, nil
}

const maxFieldLength = 128

// validateIdentity bounds field sizes and checks the phone number format.
// Presence is checked first by FirstMissing.
func validateIdentity(identity models.Identity) error {
	fields := []struct {
		name  string
		value string
	}{
		{"firstName", identity.FirstName},
		{"lastName", identity.LastName},
		{"idNumber", identity.NationalID},
		{"phone", identity.Phone},
		{"county", identity.County},
		{"village", identity.Village},
		{"farmSize", identity.FarmSize},
		{"primaryCrop", identity.PrimaryCrop},
	}
	for _, f := range fields {
		if !govalidator.StringLength(f.value, "0", strconv.Itoa(maxFieldLength)) {
			return invalidField(f.name, fmt.Sprintf("%s must be at most %d characters", f.name, maxFieldLength))
		}
	}
	if !govalidator.Matches(identity.Phone, `^\+?[0-9 ]{6,20}$`) {
		return invalidField("phone", "phone must be a telephone number")
	}
	return nil
}

func invalidField(field, message string) error {
	return &dErrors.Error{Code: dErrors.CodeInvalidEvidence, Message: message, Field: field}
}
