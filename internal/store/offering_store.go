package store

import (
	"context"

	"revshare/internal/models"
)

const offeringColumns = `id, channel_id, title, total_shares, available_shares, share_percentage,
	price_per_share, min_investment, max_investment, status, created_at`

type OfferingStore struct {
	db DB
}

func NewOfferingStore(db DB) *OfferingStore {
	return &OfferingStore{db: db}
}

func (s *OfferingStore) Create(ctx context.Context, tx Execer, o models.Offering) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO offerings (id, channel_id, title, total_shares, available_shares, share_percentage, price_per_share, min_investment, max_investment, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, o.ID, o.ChannelID, o.Title, o.TotalShares, o.AvailableShares, o.SharePercentage,
		o.PricePerShare, o.MinInvestment, o.MaxInvestment, o.Status)
	return err
}

func (s *OfferingStore) GetByID(ctx context.Context, id string) (models.Offering, error) {
	var row models.Offering
	err := s.db.GetContext(ctx, &row, `SELECT `+offeringColumns+` FROM offerings WHERE id = $1`, id)
	if err != nil {
		return models.Offering{}, err
	}
	return row, nil
}

func (s *OfferingStore) GetForUpdate(ctx context.Context, tx Getter, id string) (models.Offering, error) {
	var row models.Offering
	err := tx.GetContext(ctx, &row, `SELECT `+offeringColumns+` FROM offerings WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return models.Offering{}, err
	}
	return row, nil
}

// AdjustAvailableShares applies delta only if the result stays within
// [0, total_shares]. Zero rows affected means the guard refused it.
func (s *OfferingStore) AdjustAvailableShares(ctx context.Context, tx Execer, id string, delta int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE offerings
		SET available_shares = available_shares + $1
		WHERE id = $2 AND available_shares + $1 BETWEEN 0 AND total_shares
	`, delta, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *OfferingStore) UpdateStatus(ctx context.Context, tx Execer, id string, status models.OfferingStatus) error {
	_, err := tx.ExecContext(ctx, `UPDATE offerings SET status = $1 WHERE id = $2`, status, id)
	return err
}

func (s *OfferingStore) ListActiveByChannel(ctx context.Context, channelID string) ([]models.Offering, error) {
	var rows []models.Offering
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+offeringColumns+`
		FROM offerings
		WHERE channel_id = $1 AND status = 'ACTIVE'
		ORDER BY created_at
	`, channelID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *OfferingStore) List(ctx context.Context, status string) ([]models.Offering, error) {
	var rows []models.Offering
	query := `SELECT ` + offeringColumns + ` FROM offerings`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
