package store

import (
	"context"

	"revshare/internal/models"
)

const walletColumns = `id, user_id, currency, balance, pending_balance, locked_balance,
	total_deposited, total_invested, total_withdrawn, total_earnings,
	last_activity_at, created_at, updated_at`

type WalletStore struct {
	db DB
}

func NewWalletStore(db DB) *WalletStore {
	return &WalletStore{db: db}
}

// Ensure creates the user's wallet if it does not exist yet and returns it
// row-locked.
func (s *WalletStore) Ensure(ctx context.Context, tx Tx, id, userID, currency string) (models.Wallet, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (id, user_id, currency)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING
	`, id, userID, currency); err != nil {
		return models.Wallet{}, err
	}
	return s.GetByUserForUpdate(ctx, tx, userID)
}

func (s *WalletStore) GetByUser(ctx context.Context, userID string) (models.Wallet, error) {
	var row models.Wallet
	err := s.db.GetContext(ctx, &row, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID)
	if err != nil {
		return models.Wallet{}, err
	}
	return row, nil
}

func (s *WalletStore) GetByID(ctx context.Context, walletID string) (models.Wallet, error) {
	var row models.Wallet
	err := s.db.GetContext(ctx, &row, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, walletID)
	if err != nil {
		return models.Wallet{}, err
	}
	return row, nil
}

func (s *WalletStore) GetForUpdate(ctx context.Context, tx Getter, walletID string) (models.Wallet, error) {
	var row models.Wallet
	err := tx.GetContext(ctx, &row, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, walletID)
	if err != nil {
		return models.Wallet{}, err
	}
	return row, nil
}

func (s *WalletStore) GetByUserForUpdate(ctx context.Context, tx Getter, userID string) (models.Wallet, error) {
	var row models.Wallet
	err := tx.GetContext(ctx, &row, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 FOR UPDATE`, userID)
	if err != nil {
		return models.Wallet{}, err
	}
	return row, nil
}

// UpdateBalances writes every money column of a wallet previously read with
// GetForUpdate in the same transaction.
func (s *WalletStore) UpdateBalances(ctx context.Context, tx Execer, wallet models.Wallet) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = $1,
		    pending_balance = $2,
		    locked_balance = $3,
		    total_deposited = $4,
		    total_invested = $5,
		    total_withdrawn = $6,
		    total_earnings = $7,
		    last_activity_at = NOW(),
		    updated_at = NOW()
		WHERE id = $8
	`, wallet.Balance, wallet.PendingBalance, wallet.LockedBalance, wallet.TotalDeposited,
		wallet.TotalInvested, wallet.TotalWithdrawn, wallet.TotalEarnings, wallet.ID)
	return err
}

func (s *WalletStore) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, `SELECT id FROM wallets ORDER BY created_at`); err != nil {
		return nil, err
	}
	return ids, nil
}
