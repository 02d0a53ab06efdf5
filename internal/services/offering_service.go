package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"revshare/internal/db"
	"revshare/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type OfferingService struct {
	txRunner  db.TxRunner
	offerings OfferingStore
	audit     AuditStore
	log       *zap.Logger
	now       func() time.Time
}

func NewOfferingService(txRunner db.TxRunner, stores Stores, log *zap.Logger) *OfferingService {
	return &OfferingService{
		txRunner:  txRunner,
		offerings: stores.Offerings,
		audit:     stores.Audit,
		log:       log,
		now:       time.Now,
	}
}

type OfferingInput struct {
	ChannelID       string          `json:"channel_id"`
	Title           string          `json:"title"`
	TotalShares     int64           `json:"total_shares"`
	SharePercentage decimal.Decimal `json:"share_percentage"`
	PricePerShare   int64           `json:"price_per_share"`
	MinInvestment   int64           `json:"min_investment"`
	MaxInvestment   int64           `json:"max_investment"`
}

func (in OfferingInput) validate() error {
	switch {
	case strings.TrimSpace(in.ChannelID) == "":
		return validation("invalid_channel", "channel id is required")
	case strings.TrimSpace(in.Title) == "":
		return validation("invalid_title", "title is required")
	case in.TotalShares <= 0:
		return validation("invalid_shares", "total shares must be positive")
	case !in.SharePercentage.IsPositive() || in.SharePercentage.GreaterThan(decimal.NewFromInt(1)):
		return validation("invalid_share_percentage", "share percentage must be in (0, 1]")
	case in.PricePerShare <= 0:
		return validation("invalid_price", "price per share must be positive")
	case in.MinInvestment < 0 || in.MaxInvestment < 0:
		return validation("invalid_bounds", "investment bounds must not be negative")
	case in.MaxInvestment > 0 && in.MinInvestment > in.MaxInvestment:
		return validation("invalid_bounds", "minimum investment exceeds maximum")
	}
	return nil
}

// Create adds a DRAFT offering with every share available.
func (s *OfferingService) Create(ctx context.Context, adminID string, in OfferingInput) (models.Offering, error) {
	if err := in.validate(); err != nil {
		return models.Offering{}, err
	}
	offering := models.Offering{
		ID:              uuid.NewString(),
		ChannelID:       strings.TrimSpace(in.ChannelID),
		Title:           strings.TrimSpace(in.Title),
		TotalShares:     in.TotalShares,
		AvailableShares: in.TotalShares,
		SharePercentage: in.SharePercentage,
		PricePerShare:   in.PricePerShare,
		MinInvestment:   in.MinInvestment,
		MaxInvestment:   in.MaxInvestment,
		Status:          models.OfferingDraft,
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.offerings.Create(ctx, tx, offering); err != nil {
			return err
		}
		data, _ := json.Marshal(offering)
		return s.audit.Log(ctx, tx, adminID, "create_offering", "offering", offering.ID, string(data))
	})
	if err != nil {
		return models.Offering{}, err
	}
	offering.CreatedAt = s.now().UTC()
	s.log.Info("offering created", zap.String("offering_id", offering.ID), zap.String("channel_id", offering.ChannelID))
	return offering, nil
}

func offeringTransitionAllowed(from, to models.OfferingStatus) bool {
	switch from {
	case models.OfferingDraft:
		return to == models.OfferingActive || to == models.OfferingClosed
	case models.OfferingActive:
		return to == models.OfferingClosed
	}
	return false
}

// SetStatus moves an offering DRAFT -> ACTIVE -> CLOSED.
func (s *OfferingService) SetStatus(ctx context.Context, adminID, offeringID string, status models.OfferingStatus) (models.Offering, error) {
	var offering models.Offering
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		offering, err = s.offerings.GetForUpdate(ctx, tx, offeringID)
		if err != nil {
			return lookup(err, "offering")
		}
		if !offeringTransitionAllowed(offering.Status, status) {
			return ErrInvalidTransition
		}
		if err := s.offerings.UpdateStatus(ctx, tx, offering.ID, status); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{"from": offering.Status, "to": status})
		return s.audit.Log(ctx, tx, adminID, "set_offering_status", "offering", offering.ID, string(data))
	})
	if err != nil {
		return models.Offering{}, err
	}
	offering.Status = status
	s.log.Info("offering status changed", zap.String("offering_id", offering.ID), zap.String("status", string(status)))
	return offering, nil
}

func (s *OfferingService) Get(ctx context.Context, offeringID string) (models.Offering, error) {
	offering, err := s.offerings.GetByID(ctx, offeringID)
	if err != nil {
		return models.Offering{}, lookup(err, "offering")
	}
	return offering, nil
}

func (s *OfferingService) List(ctx context.Context, status string) ([]models.Offering, error) {
	return s.offerings.List(ctx, status)
}
