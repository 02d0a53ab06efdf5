package services

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"revshare/internal/db"
	"revshare/internal/models"
	"revshare/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

type BankAccountService struct {
	txRunner     db.TxRunner
	wallets      WalletStore
	bankAccounts BankAccountStore
	withdrawals  WithdrawalStore
	audit        AuditStore
	gate         *ComplianceGate
	hashKey      []byte
	currency     string
	log          *zap.Logger
}

// NewBankAccountService keys account fingerprints with hashKey. Keys longer
// than blake2b allows are compressed first.
func NewBankAccountService(txRunner db.TxRunner, stores Stores, gate *ComplianceGate, hashKey, currency string, log *zap.Logger) *BankAccountService {
	key := []byte(hashKey)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	return &BankAccountService{
		txRunner:     txRunner,
		wallets:      stores.Wallets,
		bankAccounts: stores.BankAccounts,
		withdrawals:  stores.Withdrawals,
		audit:        stores.Audit,
		gate:         gate,
		hashKey:      key,
		currency:     currency,
		log:          log,
	}
}

type BankAccountInput struct {
	HolderName    string `json:"holder_name"`
	BankName      string `json:"bank_name"`
	RoutingNumber string `json:"routing_number"`
	AccountNumber string `json:"account_number"`
}

func (in BankAccountInput) validate() error {
	if err := validator.ValidateName(in.HolderName); err != nil {
		return validation("invalid_holder_name", "account holder name is required")
	}
	if err := validator.ValidateName(in.BankName); err != nil {
		return validation("invalid_bank_name", "bank name is required")
	}
	if err := validator.ValidateRoutingNumber(in.RoutingNumber); err != nil {
		return validation("invalid_routing_number", "routing number must be 9 digits")
	}
	if err := validator.ValidateAccountNumber(in.AccountNumber); err != nil {
		return validation("invalid_account_number", "account number must be 4 to 17 digits")
	}
	return nil
}

// fingerprint is a keyed one-way hash of the full account number.
func (s *BankAccountService) fingerprint(routing, account string) (string, error) {
	h, err := blake2b.New256(s.hashKey)
	if err != nil {
		return "", err
	}
	h.Write([]byte(routing))
	h.Write([]byte{0})
	h.Write([]byte(account))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Add stores a new unverified bank account. The first account of a wallet
// becomes its default.
func (s *BankAccountService) Add(ctx context.Context, userID string, in BankAccountInput) (models.BankAccount, error) {
	in.HolderName = strings.TrimSpace(in.HolderName)
	in.BankName = strings.TrimSpace(in.BankName)
	if err := in.validate(); err != nil {
		return models.BankAccount{}, err
	}
	if err := mustBeEligible(s.gate.CheckBankAccountEligibility(ctx, userID)); err != nil {
		return models.BankAccount{}, err
	}
	hash, err := s.fingerprint(in.RoutingNumber, in.AccountNumber)
	if err != nil {
		return models.BankAccount{}, err
	}
	account := models.BankAccount{
		ID:            uuid.NewString(),
		HolderName:    in.HolderName,
		BankName:      in.BankName,
		RoutingNumber: in.RoutingNumber,
		Last4:         in.AccountNumber[len(in.AccountNumber)-4:],
		AccountHash:   hash,
		Status:        models.BankAccountPending,
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		wallet, err := s.wallets.Ensure(ctx, tx, uuid.NewString(), userID, s.currency)
		if err != nil {
			return err
		}
		account.WalletID = wallet.ID
		count, err := s.bankAccounts.CountByWallet(ctx, tx, wallet.ID)
		if err != nil {
			return err
		}
		if count >= models.MaxBankAccounts {
			return ErrBankAccountLimit
		}
		exists, err := s.bankAccounts.ExistsByHash(ctx, tx, wallet.ID, hash)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateBankAccount
		}
		account.IsDefault = count == 0
		if err := s.bankAccounts.Create(ctx, tx, account); err != nil {
			if db.IsUniqueViolation(err) {
				return ErrDuplicateBankAccount
			}
			return err
		}
		return nil
	})
	if err != nil {
		return models.BankAccount{}, err
	}
	s.log.Info("bank account added",
		zap.String("bank_account_id", account.ID),
		zap.String("wallet_id", account.WalletID),
		zap.Bool("default", account.IsDefault))
	return account, nil
}

// owned locks the caller's wallet and the account, which must belong to it.
func (s *BankAccountService) owned(ctx context.Context, tx *sqlx.Tx, userID, accountID string) (models.Wallet, models.BankAccount, error) {
	wallet, err := s.wallets.GetByUserForUpdate(ctx, tx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Wallet{}, models.BankAccount{}, notFound("bank_account")
	}
	if err != nil {
		return models.Wallet{}, models.BankAccount{}, err
	}
	account, err := s.bankAccounts.GetForUpdate(ctx, tx, accountID)
	if err != nil {
		return models.Wallet{}, models.BankAccount{}, lookup(err, "bank_account")
	}
	if account.WalletID != wallet.ID {
		return models.Wallet{}, models.BankAccount{}, notFound("bank_account")
	}
	return wallet, account, nil
}

func (s *BankAccountService) SetDefault(ctx context.Context, userID, accountID string) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		wallet, account, err := s.owned(ctx, tx, userID, accountID)
		if err != nil {
			return err
		}
		return s.bankAccounts.SetDefault(ctx, tx, wallet.ID, account.ID)
	})
}

// Delete removes an account no active withdrawal refers to. Removing the
// default promotes the newest remaining account.
func (s *BankAccountService) Delete(ctx context.Context, userID, accountID string) error {
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		wallet, account, err := s.owned(ctx, tx, userID, accountID)
		if err != nil {
			return err
		}
		active, err := s.withdrawals.CountActiveByBankAccount(ctx, tx, account.ID)
		if err != nil {
			return err
		}
		if active > 0 {
			return ErrBankAccountInUse
		}
		if err := s.bankAccounts.Delete(ctx, tx, account.ID); err != nil {
			return err
		}
		if account.IsDefault {
			return s.bankAccounts.PromoteNewest(ctx, tx, wallet.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("bank account deleted", zap.String("bank_account_id", accountID))
	return nil
}

func (s *BankAccountService) List(ctx context.Context, userID string) ([]models.BankAccount, error) {
	wallet, err := s.wallets.GetByUser(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return []models.BankAccount{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.bankAccounts.ListByWallet(ctx, wallet.ID)
}

// Verify records the verification provider's result for an account.
func (s *BankAccountService) Verify(ctx context.Context, adminID, accountID string, status models.BankAccountStatus) (models.BankAccount, error) {
	if status != models.BankAccountVerified && status != models.BankAccountRejected {
		return models.BankAccount{}, validation("invalid_status", "status must be VERIFIED or REJECTED")
	}
	var account models.BankAccount
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		account, err = s.bankAccounts.GetForUpdate(ctx, tx, accountID)
		if err != nil {
			return lookup(err, "bank_account")
		}
		if err := s.bankAccounts.SetVerification(ctx, tx, account.ID, status); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{"status": status})
		return s.audit.Log(ctx, tx, adminID, "verify_bank_account", "bank_account", account.ID, string(data))
	})
	if err != nil {
		return models.BankAccount{}, err
	}
	account.Status = status
	account.IsVerified = status == models.BankAccountVerified
	s.log.Info("bank account verification recorded",
		zap.String("bank_account_id", account.ID),
		zap.String("status", string(status)))
	return account, nil
}
