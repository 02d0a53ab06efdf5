package store

import (
	"context"
	"time"

	"revshare/internal/models"
)

const ledgerColumns = `id, wallet_id, seq, entry_type, debit, credit, balance, description,
	reference_type, reference_id, created_at`

type LedgerStore struct {
	db DB
}

func NewLedgerStore(db DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// Append inserts one entry and fills in the database-assigned seq and
// created_at. It only accepts an open transaction.
func (s *LedgerStore) Append(ctx context.Context, tx Getter, entry models.LedgerEntry) (models.LedgerEntry, error) {
	var assigned struct {
		Seq       int64     `db:"seq"`
		CreatedAt time.Time `db:"created_at"`
	}
	err := tx.GetContext(ctx, &assigned, `
		INSERT INTO ledger_entries (id, wallet_id, entry_type, debit, credit, balance, description, reference_type, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq, created_at
	`, entry.ID, entry.WalletID, entry.EntryType, entry.Debit, entry.Credit, entry.Balance,
		entry.Description, entry.ReferenceType, entry.ReferenceID)
	if err != nil {
		return models.LedgerEntry{}, err
	}
	entry.Seq = assigned.Seq
	entry.CreatedAt = assigned.CreatedAt
	return entry, nil
}

func (s *LedgerStore) ListByWallet(ctx context.Context, walletID string, limit, offset int) ([]models.LedgerEntry, error) {
	var rows []models.LedgerEntry
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+ledgerColumns+`
		FROM ledger_entries
		WHERE wallet_id = $1
		ORDER BY seq DESC
		LIMIT $2 OFFSET $3
	`, walletID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// AllByWallet returns the full history in posting order. Pass the
// transaction that read the wallet to get a consistent snapshot.
func (s *LedgerStore) AllByWallet(ctx context.Context, q Selecter, walletID string) ([]models.LedgerEntry, error) {
	var rows []models.LedgerEntry
	err := q.SelectContext(ctx, &rows, `
		SELECT `+ledgerColumns+`
		FROM ledger_entries
		WHERE wallet_id = $1
		ORDER BY seq ASC
	`, walletID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
