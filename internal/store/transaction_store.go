package store

import (
	"context"
	"fmt"

	"revshare/internal/models"
)

const transactionColumns = `id, user_id, wallet_id, type, status, amount, currency, description,
	metadata, external_ref, client_request_id, created_at, updated_at`

type TransactionStore struct {
	db DB
}

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

// Create inserts the transaction. It reports false when a row with the same
// client_request_id already exists.
func (s *TransactionStore) Create(ctx context.Context, tx Execer, input models.Transaction) (bool, error) {
	metadata := input.Metadata
	if metadata == "" {
		metadata = "{}"
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, wallet_id, type, status, amount, currency, description, metadata, external_ref, client_request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (client_request_id) DO NOTHING
	`, input.ID, input.UserID, input.WalletID, input.Type, input.Status, input.Amount, input.Currency,
		input.Description, metadata, input.ExternalRef, input.ClientRequestID)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (s *TransactionStore) UpdateStatus(ctx context.Context, tx Execer, transactionID string, status models.TransactionStatus) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE transactions SET status = $1, updated_at = NOW() WHERE id = $2
	`, status, transactionID)
	return err
}

func (s *TransactionStore) SetExternalRef(ctx context.Context, tx Execer, transactionID, ref string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE transactions SET external_ref = $1, updated_at = NOW() WHERE id = $2
	`, ref, transactionID)
	return err
}

func (s *TransactionStore) GetByExternalRefForUpdate(ctx context.Context, tx Getter, ref string) (models.Transaction, error) {
	var row models.Transaction
	err := tx.GetContext(ctx, &row, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE external_ref = $1
		FOR UPDATE
	`, ref)
	if err != nil {
		return models.Transaction{}, err
	}
	return row, nil
}

func (s *TransactionStore) ListByUser(ctx context.Context, userID, txType string, limit, offset int) ([]models.Transaction, error) {
	var rows []models.Transaction
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1`
	args := []any{userID}
	param := 2
	if txType != "" {
		query += " AND type = $2"
		args = append(args, txType)
		param = 3
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", param, param+1)
	args = append(args, limit, offset)
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
