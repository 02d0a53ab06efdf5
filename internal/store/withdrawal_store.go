package store

import (
	"context"

	"revshare/internal/models"
)

const withdrawalColumns = `id, user_id, wallet_id, bank_account_id, transaction_id, amount, fee, net_amount,
	status, failure_reason, requested_at, processed_at, completed_at`

type WithdrawalStore struct {
	db DB
}

func NewWithdrawalStore(db DB) *WithdrawalStore {
	return &WithdrawalStore{db: db}
}

func (s *WithdrawalStore) Create(ctx context.Context, tx Execer, w models.Withdrawal) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO withdrawals (id, user_id, wallet_id, bank_account_id, transaction_id, amount, fee, net_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, w.ID, w.UserID, w.WalletID, w.BankAccountID, w.TransactionID, w.Amount, w.Fee, w.NetAmount, w.Status)
	return err
}

func (s *WithdrawalStore) GetByID(ctx context.Context, id string) (models.Withdrawal, error) {
	var row models.Withdrawal
	err := s.db.GetContext(ctx, &row, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, id)
	if err != nil {
		return models.Withdrawal{}, err
	}
	return row, nil
}

func (s *WithdrawalStore) GetForUpdate(ctx context.Context, tx Getter, id string) (models.Withdrawal, error) {
	var row models.Withdrawal
	err := tx.GetContext(ctx, &row, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return models.Withdrawal{}, err
	}
	return row, nil
}

// CountActiveByUser counts PENDING and PROCESSING withdrawals.
func (s *WithdrawalStore) CountActiveByUser(ctx context.Context, tx Getter, userID string) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, `
		SELECT COUNT(1) FROM withdrawals
		WHERE user_id = $1 AND status IN ('PENDING', 'PROCESSING')
	`, userID)
	return count, err
}

func (s *WithdrawalStore) CountActiveByBankAccount(ctx context.Context, tx Getter, bankAccountID string) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, `
		SELECT COUNT(1) FROM withdrawals
		WHERE bank_account_id = $1 AND status IN ('PENDING', 'PROCESSING')
	`, bankAccountID)
	return count, err
}

func (s *WithdrawalStore) UpdateStatus(ctx context.Context, tx Execer, w models.Withdrawal) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE withdrawals
		SET status = $1, failure_reason = $2, processed_at = $3, completed_at = $4
		WHERE id = $5
	`, w.Status, w.FailureReason, w.ProcessedAt, w.CompletedAt, w.ID)
	return err
}

func (s *WithdrawalStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Withdrawal, error) {
	var rows []models.Withdrawal
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+withdrawalColumns+`
		FROM withdrawals
		WHERE user_id = $1
		ORDER BY requested_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *WithdrawalStore) ListByStatus(ctx context.Context, status models.WithdrawalStatus, limit, offset int) ([]models.Withdrawal, error) {
	var rows []models.Withdrawal
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+withdrawalColumns+`
		FROM withdrawals
		WHERE status = $1
		ORDER BY requested_at ASC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
