package store

import (
	"context"

	"revshare/internal/models"
)

const bankAccountColumns = `id, wallet_id, holder_name, bank_name, routing_number, last4, account_hash,
	is_default, is_verified, status, created_at`

type BankAccountStore struct {
	db DB
}

func NewBankAccountStore(db DB) *BankAccountStore {
	return &BankAccountStore{db: db}
}

func (s *BankAccountStore) Create(ctx context.Context, tx Execer, account models.BankAccount) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO bank_accounts (id, wallet_id, holder_name, bank_name, routing_number, last4, account_hash, is_default, is_verified, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, account.ID, account.WalletID, account.HolderName, account.BankName, account.RoutingNumber,
		account.Last4, account.AccountHash, account.IsDefault, account.IsVerified, account.Status)
	return err
}

func (s *BankAccountStore) CountByWallet(ctx context.Context, tx Getter, walletID string) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, `SELECT COUNT(1) FROM bank_accounts WHERE wallet_id = $1`, walletID)
	return count, err
}

func (s *BankAccountStore) ExistsByHash(ctx context.Context, tx Getter, walletID, hash string) (bool, error) {
	var count int
	err := tx.GetContext(ctx, &count, `
		SELECT COUNT(1) FROM bank_accounts WHERE wallet_id = $1 AND account_hash = $2
	`, walletID, hash)
	return count > 0, err
}

func (s *BankAccountStore) GetByID(ctx context.Context, id string) (models.BankAccount, error) {
	var row models.BankAccount
	err := s.db.GetContext(ctx, &row, `SELECT `+bankAccountColumns+` FROM bank_accounts WHERE id = $1`, id)
	if err != nil {
		return models.BankAccount{}, err
	}
	return row, nil
}

func (s *BankAccountStore) GetForUpdate(ctx context.Context, tx Getter, id string) (models.BankAccount, error) {
	var row models.BankAccount
	err := tx.GetContext(ctx, &row, `SELECT `+bankAccountColumns+` FROM bank_accounts WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return models.BankAccount{}, err
	}
	return row, nil
}

func (s *BankAccountStore) ListByWallet(ctx context.Context, walletID string) ([]models.BankAccount, error) {
	var rows []models.BankAccount
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+bankAccountColumns+`
		FROM bank_accounts
		WHERE wallet_id = $1
		ORDER BY is_default DESC, created_at DESC
	`, walletID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SetDefault flips the default flag so only accountID is default.
func (s *BankAccountStore) SetDefault(ctx context.Context, tx Execer, walletID, accountID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE bank_accounts SET is_default = (id = $2) WHERE wallet_id = $1
	`, walletID, accountID)
	return err
}

// PromoteNewest makes the most recently added account of the wallet the
// default one. It is a no-op for a wallet without accounts.
func (s *BankAccountStore) PromoteNewest(ctx context.Context, tx Execer, walletID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE bank_accounts SET is_default = TRUE
		WHERE id = (
			SELECT id FROM bank_accounts WHERE wallet_id = $1 ORDER BY created_at DESC LIMIT 1
		)
	`, walletID)
	return err
}

func (s *BankAccountStore) Delete(ctx context.Context, tx Execer, id string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM bank_accounts WHERE id = $1`, id)
	return err
}

func (s *BankAccountStore) SetVerification(ctx context.Context, tx Execer, id string, status models.BankAccountStatus) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE bank_accounts SET status = $1, is_verified = $2 WHERE id = $3
	`, status, status == models.BankAccountVerified, id)
	return err
}
