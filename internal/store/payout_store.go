package store

import (
	"context"
	"time"

	"revshare/internal/models"
)

const payoutColumns = `p.id, p.investment_id, p.investor_id, p.offering_id, p.revenue_month, p.amount,
	p.status, p.failure_reason, p.transaction_id, p.paid_at, p.created_at`

type PayoutStore struct {
	db DB
}

func NewPayoutStore(db DB) *PayoutStore {
	return &PayoutStore{db: db}
}

// CreateIfAbsent inserts a PENDING payout unless one already exists for the
// (investment, revenue month) pair. It reports whether a row was inserted.
func (s *PayoutStore) CreateIfAbsent(ctx context.Context, tx Execer, p models.Payout) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO payouts (id, investment_id, investor_id, offering_id, revenue_month, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (investment_id, revenue_month) DO NOTHING
	`, p.ID, p.InvestmentID, p.InvestorID, p.OfferingID, p.RevenueMonth, p.Amount, p.Status)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (s *PayoutStore) GetForUpdate(ctx context.Context, tx Getter, id string) (models.Payout, error) {
	var row models.Payout
	err := tx.GetContext(ctx, &row, `SELECT `+payoutColumns+` FROM payouts p WHERE p.id = $1 FOR UPDATE`, id)
	if err != nil {
		return models.Payout{}, err
	}
	return row, nil
}

func (s *PayoutStore) MarkCompleted(ctx context.Context, tx Execer, id, transactionID string, paidAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payouts
		SET status = 'COMPLETED', transaction_id = $1, paid_at = $2, failure_reason = NULL
		WHERE id = $3
	`, transactionID, paidAt, id)
	return err
}

func (s *PayoutStore) MarkFailed(ctx context.Context, tx Execer, id, reason string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payouts SET status = 'FAILED', failure_reason = $1 WHERE id = $2
	`, reason, id)
	return err
}

func (s *PayoutStore) ListByPeriod(ctx context.Context, channelID, revenueMonth string) ([]models.Payout, error) {
	return s.listForChannel(ctx, channelID, revenueMonth, "")
}

func (s *PayoutStore) ListFailed(ctx context.Context, channelID, revenueMonth string) ([]models.Payout, error) {
	return s.listForChannel(ctx, channelID, revenueMonth, string(models.PayoutFailed))
}

func (s *PayoutStore) ListByInvestor(ctx context.Context, investorID string) ([]models.Payout, error) {
	var rows []models.Payout
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+payoutColumns+`
		FROM payouts p
		WHERE p.investor_id = $1
		ORDER BY p.revenue_month DESC, p.created_at DESC
	`, investorID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *PayoutStore) listForChannel(ctx context.Context, channelID, revenueMonth, status string) ([]models.Payout, error) {
	var rows []models.Payout
	query := `
		SELECT ` + payoutColumns + `
		FROM payouts p
		JOIN offerings o ON o.id = p.offering_id
		WHERE o.channel_id = $1 AND p.revenue_month = $2`
	args := []any{channelID, revenueMonth}
	if status != "" {
		query += ` AND p.status = $3`
		args = append(args, status)
	}
	query += ` ORDER BY p.created_at`
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
