package services

import (
	"context"
	"encoding/json"

	"revshare/internal/db"
	"revshare/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// KYCService records identity submissions and the provider's decisions.
type KYCService struct {
	txRunner db.TxRunner
	identity IdentityStore
	audit    AuditStore
	log      *zap.Logger
}

func NewKYCService(txRunner db.TxRunner, stores Stores, log *zap.Logger) *KYCService {
	return &KYCService{txRunner: txRunner, identity: stores.Identity, audit: stores.Audit, log: log}
}

func (s *KYCService) Status(ctx context.Context, userID string) (models.KYCStatus, error) {
	return s.identity.KYCStatus(ctx, userID)
}

// Submit stores a validated document and puts the profile under review.
func (s *KYCService) Submit(ctx context.Context, userID string, doc models.KYCDocument) (models.KYCStatus, error) {
	if err := doc.Validate(); err != nil {
		return "", validation("invalid_kyc_document", "%s", err.Error())
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		saved, err := s.identity.SaveSubmission(ctx, tx, userID, string(payload))
		if err != nil {
			return err
		}
		if !saved {
			return ErrDuplicateKYCSubmission
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	s.log.Info("kyc submitted", zap.String("user_id", userID), zap.String("kind", string(doc.Kind)))
	return models.KYCPending, nil
}

// Decide records VERIFIED or REJECTED for a submitted profile.
func (s *KYCService) Decide(ctx context.Context, adminID, userID string, status models.KYCStatus) error {
	if status != models.KYCVerified && status != models.KYCRejected {
		return validation("invalid_status", "status must be VERIFIED or REJECTED")
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		n, err := s.identity.SetStatus(ctx, tx, userID, status)
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound("kyc_profile")
		}
		data, _ := json.Marshal(map[string]any{"status": status})
		return s.audit.Log(ctx, tx, adminID, "decide_kyc", "kyc_profile", userID, string(data))
	})
	if err != nil {
		return err
	}
	s.log.Info("kyc decision recorded", zap.String("user_id", userID), zap.String("status", string(status)))
	return nil
}
