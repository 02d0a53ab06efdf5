package store

import (
	"context"
	"database/sql"
	"errors"

	"revshare/internal/models"
)

// IdentityStore holds the KYC profile mirrored from the identity provider.
type IdentityStore struct {
	db DB
}

func NewIdentityStore(db DB) *IdentityStore {
	return &IdentityStore{db: db}
}

// KYCStatus reports NOT_SUBMITTED for users without a profile.
func (s *IdentityStore) KYCStatus(ctx context.Context, userID string) (models.KYCStatus, error) {
	var status models.KYCStatus
	err := s.db.GetContext(ctx, &status, `SELECT status FROM kyc_profiles WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.KYCNotSubmitted, nil
	}
	if err != nil {
		return "", err
	}
	return status, nil
}

func (s *IdentityStore) SaveSubmission(ctx context.Context, tx Execer, userID, document string) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO kyc_profiles (user_id, status, document, submitted_at)
		VALUES ($1, 'PENDING', $2, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET status = 'PENDING', document = EXCLUDED.document, submitted_at = NOW(), reviewed_at = NULL
		WHERE kyc_profiles.status <> 'VERIFIED'
	`, userID, document)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (s *IdentityStore) SetStatus(ctx context.Context, tx Execer, userID string, status models.KYCStatus) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE kyc_profiles SET status = $1, reviewed_at = NOW() WHERE user_id = $2
	`, status, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
