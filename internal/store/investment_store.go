package store

import (
	"context"
	"time"

	"revshare/internal/models"
)

const investmentColumns = `id, investor_id, offering_id, transaction_id, shares, total_amount, status,
	funding_source, created_at, confirmed_at`

type InvestmentStore struct {
	db DB
}

func NewInvestmentStore(db DB) *InvestmentStore {
	return &InvestmentStore{db: db}
}

func (s *InvestmentStore) Create(ctx context.Context, tx Execer, inv models.Investment) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO investments (id, investor_id, offering_id, transaction_id, shares, total_amount, status, funding_source, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, inv.ID, inv.InvestorID, inv.OfferingID, inv.TransactionID, inv.Shares, inv.TotalAmount,
		inv.Status, inv.FundingSource, inv.ConfirmedAt)
	return err
}

func (s *InvestmentStore) GetByID(ctx context.Context, id string) (models.Investment, error) {
	var row models.Investment
	err := s.db.GetContext(ctx, &row, `SELECT `+investmentColumns+` FROM investments WHERE id = $1`, id)
	if err != nil {
		return models.Investment{}, err
	}
	return row, nil
}

func (s *InvestmentStore) GetForUpdate(ctx context.Context, tx Getter, id string) (models.Investment, error) {
	var row models.Investment
	err := tx.GetContext(ctx, &row, `SELECT `+investmentColumns+` FROM investments WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return models.Investment{}, err
	}
	return row, nil
}

func (s *InvestmentStore) GetByTransactionForUpdate(ctx context.Context, tx Getter, transactionID string) (models.Investment, error) {
	var row models.Investment
	err := tx.GetContext(ctx, &row, `
		SELECT `+investmentColumns+`
		FROM investments
		WHERE transaction_id = $1
		FOR UPDATE
	`, transactionID)
	if err != nil {
		return models.Investment{}, err
	}
	return row, nil
}

func (s *InvestmentStore) UpdateStatus(ctx context.Context, tx Execer, id string, status models.InvestmentStatus, confirmedAt *time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE investments SET status = $1, confirmed_at = $2 WHERE id = $3
	`, status, confirmedAt, id)
	return err
}

func (s *InvestmentStore) ListConfirmedByOffering(ctx context.Context, offeringID string) ([]models.Investment, error) {
	var rows []models.Investment
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+investmentColumns+`
		FROM investments
		WHERE offering_id = $1 AND status = 'CONFIRMED'
		ORDER BY created_at
	`, offeringID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *InvestmentStore) ListByInvestor(ctx context.Context, investorID string) ([]models.Investment, error) {
	var rows []models.Investment
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+investmentColumns+`
		FROM investments
		WHERE investor_id = $1
		ORDER BY created_at DESC
	`, investorID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListStalePending returns ids of PENDING investments created before cutoff.
func (s *InvestmentStore) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT id
		FROM investments
		WHERE status = 'PENDING' AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// PendingTotalByInvestor sums the amounts of the investor's PENDING
// investments. A nil q reads outside any transaction.
func (s *InvestmentStore) PendingTotalByInvestor(ctx context.Context, q Getter, investorID string) (int64, error) {
	if q == nil {
		q = s.db
	}
	var total int64
	err := q.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(total_amount), 0)
		FROM investments
		WHERE investor_id = $1 AND status = 'PENDING'
	`, investorID)
	if err != nil {
		return 0, err
	}
	return total, nil
}
