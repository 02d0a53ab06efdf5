package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"revshare/internal/models"
	"revshare/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// memDB is an in-memory implementation of every store the services use.
// memTxRunner serializes units of work and restores a snapshot when one
// fails, which is enough to observe rollback and row-lock semantics.
type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	clock        time.Time
	seq          int64
	wallets      map[string]models.Wallet
	ledger       []models.LedgerEntry
	transactions map[string]models.Transaction
	bankAccounts map[string]models.BankAccount
	withdrawals  map[string]models.Withdrawal
	offerings    map[string]models.Offering
	investments  map[string]models.Investment
	payouts      map[string]models.Payout
	audit        []models.AuditLog
	kyc          map[string]models.KYCStatus

	// failAppend, when set, is returned by the next ledger append.
	failAppend error
}

func newMemDB() *memDB {
	return &memDB{
		clock:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		wallets:      map[string]models.Wallet{},
		transactions: map[string]models.Transaction{},
		bankAccounts: map[string]models.BankAccount{},
		withdrawals:  map[string]models.Withdrawal{},
		offerings:    map[string]models.Offering{},
		investments:  map[string]models.Investment{},
		payouts:      map[string]models.Payout{},
		kyc:          map[string]models.KYCStatus{},
	}
}

func (m *memDB) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

type memSnapshot struct {
	seq          int64
	wallets      map[string]models.Wallet
	ledger       []models.LedgerEntry
	transactions map[string]models.Transaction
	bankAccounts map[string]models.BankAccount
	withdrawals  map[string]models.Withdrawal
	offerings    map[string]models.Offering
	investments  map[string]models.Investment
	payouts      map[string]models.Payout
	audit        []models.AuditLog
	kyc          map[string]models.KYCStatus
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *memDB) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memSnapshot{
		seq:          m.seq,
		wallets:      copyMap(m.wallets),
		ledger:       append([]models.LedgerEntry(nil), m.ledger...),
		transactions: copyMap(m.transactions),
		bankAccounts: copyMap(m.bankAccounts),
		withdrawals:  copyMap(m.withdrawals),
		offerings:    copyMap(m.offerings),
		investments:  copyMap(m.investments),
		payouts:      copyMap(m.payouts),
		audit:        append([]models.AuditLog(nil), m.audit...),
		kyc:          copyMap(m.kyc),
	}
}

func (m *memDB) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq = s.seq
	m.wallets = s.wallets
	m.ledger = s.ledger
	m.transactions = s.transactions
	m.bankAccounts = s.bankAccounts
	m.withdrawals = s.withdrawals
	m.offerings = s.offerings
	m.investments = s.investments
	m.payouts = s.payouts
	m.audit = s.audit
	m.kyc = s.kyc
}

func (m *memDB) stores() Stores {
	return Stores{
		Wallets:      memWallets{m},
		Ledger:       memLedger{m},
		Transactions: memTransactions{m},
		BankAccounts: memBankAccounts{m},
		Withdrawals:  memWithdrawals{m},
		Offerings:    memOfferings{m},
		Investments:  memInvestments{m},
		Payouts:      memPayouts{m},
		Audit:        memAudit{m},
		Identity:     memIdentity{m},
	}
}

func uniqueViolation() error {
	return &pq.Error{Code: "23505"}
}

type memTxRunner struct {
	db *memDB
}

func (r memTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	r.db.txMu.Lock()
	defer r.db.txMu.Unlock()
	snap := r.db.snapshot()
	if err := fn(nil); err != nil {
		r.db.restore(snap)
		return err
	}
	return nil
}

type memWallets struct{ *memDB }

func (m memWallets) Ensure(ctx context.Context, tx store.Tx, id, userID, currency string) (models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.wallets {
		if w.UserID == userID {
			return w, nil
		}
	}
	now := m.tick()
	w := models.Wallet{ID: id, UserID: userID, Currency: currency, CreatedAt: now, UpdatedAt: now}
	m.wallets[id] = w
	return w, nil
}

func (m memWallets) GetByUser(ctx context.Context, userID string) (models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.wallets {
		if w.UserID == userID {
			return w, nil
		}
	}
	return models.Wallet{}, sql.ErrNoRows
}

func (m memWallets) GetByID(ctx context.Context, walletID string) (models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[walletID]
	if !ok {
		return models.Wallet{}, sql.ErrNoRows
	}
	return w, nil
}

func (m memWallets) GetForUpdate(ctx context.Context, tx store.Getter, walletID string) (models.Wallet, error) {
	return m.GetByID(ctx, walletID)
}

func (m memWallets) GetByUserForUpdate(ctx context.Context, tx store.Getter, userID string) (models.Wallet, error) {
	return m.GetByUser(ctx, userID)
}

func (m memWallets) UpdateBalances(ctx context.Context, tx store.Execer, wallet models.Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if wallet.Balance < 0 || wallet.LockedBalance < 0 || wallet.PendingBalance < 0 {
		return &pq.Error{Code: "23514"}
	}
	current, ok := m.wallets[wallet.ID]
	if !ok {
		return sql.ErrNoRows
	}
	now := m.tick()
	current.Balance = wallet.Balance
	current.LockedBalance = wallet.LockedBalance
	current.PendingBalance = wallet.PendingBalance
	current.TotalDeposited = wallet.TotalDeposited
	current.TotalInvested = wallet.TotalInvested
	current.TotalWithdrawn = wallet.TotalWithdrawn
	current.TotalEarnings = wallet.TotalEarnings
	current.LastActivityAt = &now
	current.UpdatedAt = now
	m.wallets[wallet.ID] = current
	return nil
}

func (m memWallets) ListIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.wallets))
	for id := range m.wallets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

type memLedger struct{ *memDB }

func (m memLedger) Append(ctx context.Context, tx store.Getter, entry models.LedgerEntry) (models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend != nil {
		err := m.failAppend
		m.failAppend = nil
		return models.LedgerEntry{}, err
	}
	if entry.EntryType == models.EntryDeposit || entry.EntryType == models.EntryPayout {
		for _, existing := range m.ledger {
			if existing.EntryType == entry.EntryType && existing.ReferenceType == entry.ReferenceType && existing.ReferenceID == entry.ReferenceID {
				return models.LedgerEntry{}, uniqueViolation()
			}
		}
	}
	m.seq++
	entry.Seq = m.seq
	entry.CreatedAt = m.tick()
	m.ledger = append(m.ledger, entry)
	return entry, nil
}

func (m memLedger) ListByWallet(ctx context.Context, walletID string, limit, offset int) ([]models.LedgerEntry, error) {
	entries, _ := m.AllByWallet(ctx, nil, walletID)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Seq > entries[j].Seq })
	return page(entries, limit, offset), nil
}

func (m memLedger) AllByWallet(ctx context.Context, q store.Selecter, walletID string) ([]models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LedgerEntry
	for _, e := range m.ledger {
		if e.WalletID == walletID {
			out = append(out, e)
		}
	}
	return out, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

type memTransactions struct{ *memDB }

func (m memTransactions) Create(ctx context.Context, tx store.Execer, input models.Transaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if input.ClientRequestID != nil {
		for _, t := range m.transactions {
			if t.ClientRequestID != nil && *t.ClientRequestID == *input.ClientRequestID {
				return false, nil
			}
		}
	}
	if _, ok := m.transactions[input.ID]; ok {
		return false, uniqueViolation()
	}
	if input.Metadata == "" {
		input.Metadata = "{}"
	}
	input.CreatedAt = m.tick()
	input.UpdatedAt = input.CreatedAt
	m.transactions[input.ID] = input
	return true, nil
}

func (m memTransactions) UpdateStatus(ctx context.Context, tx store.Execer, transactionID string, status models.TransactionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[transactionID]
	if !ok {
		return sql.ErrNoRows
	}
	t.Status = status
	m.transactions[transactionID] = t
	return nil
}

func (m memTransactions) SetExternalRef(ctx context.Context, tx store.Execer, transactionID, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[transactionID]
	if !ok {
		return sql.ErrNoRows
	}
	t.ExternalRef = &ref
	m.transactions[transactionID] = t
	return nil
}

func (m memTransactions) GetByExternalRefForUpdate(ctx context.Context, tx store.Getter, ref string) (models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.transactions {
		if t.ExternalRef != nil && *t.ExternalRef == ref {
			return t, nil
		}
	}
	return models.Transaction{}, sql.ErrNoRows
}

func (m memTransactions) ListByUser(ctx context.Context, userID, txType string, limit, offset int) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Transaction
	for _, t := range m.transactions {
		if t.UserID != nil && *t.UserID == userID && (txType == "" || string(t.Type) == txType) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (m memTransactions) byType(txType models.TransactionType) []models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Transaction
	for _, t := range m.transactions {
		if t.Type == txType {
			out = append(out, t)
		}
	}
	return out
}

type memBankAccounts struct{ *memDB }

func (m memBankAccounts) Create(ctx context.Context, tx store.Execer, account models.BankAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.bankAccounts {
		if a.WalletID == account.WalletID && a.AccountHash == account.AccountHash {
			return uniqueViolation()
		}
	}
	account.CreatedAt = m.tick()
	m.bankAccounts[account.ID] = account
	return nil
}

func (m memBankAccounts) CountByWallet(ctx context.Context, tx store.Getter, walletID string) (int, error) {
	accounts, _ := m.ListByWallet(ctx, walletID)
	return len(accounts), nil
}

func (m memBankAccounts) ExistsByHash(ctx context.Context, tx store.Getter, walletID, hash string) (bool, error) {
	accounts, _ := m.ListByWallet(ctx, walletID)
	for _, a := range accounts {
		if a.AccountHash == hash {
			return true, nil
		}
	}
	return false, nil
}

func (m memBankAccounts) GetByID(ctx context.Context, id string) (models.BankAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.bankAccounts[id]
	if !ok {
		return models.BankAccount{}, sql.ErrNoRows
	}
	return a, nil
}

func (m memBankAccounts) GetForUpdate(ctx context.Context, tx store.Getter, id string) (models.BankAccount, error) {
	return m.GetByID(ctx, id)
}

func (m memBankAccounts) ListByWallet(ctx context.Context, walletID string) ([]models.BankAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.BankAccount{}
	for _, a := range m.bankAccounts {
		if a.WalletID == walletID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m memBankAccounts) SetDefault(ctx context.Context, tx store.Execer, walletID, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range m.bankAccounts {
		if a.WalletID == walletID {
			a.IsDefault = id == accountID
			m.bankAccounts[id] = a
		}
	}
	return nil
}

func (m memBankAccounts) PromoteNewest(ctx context.Context, tx store.Execer, walletID string) error {
	accounts, _ := m.ListByWallet(ctx, walletID)
	if len(accounts) == 0 {
		return nil
	}
	return m.SetDefault(ctx, tx, walletID, accounts[0].ID)
}

func (m memBankAccounts) Delete(ctx context.Context, tx store.Execer, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bankAccounts, id)
	return nil
}

func (m memBankAccounts) SetVerification(ctx context.Context, tx store.Execer, id string, status models.BankAccountStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.bankAccounts[id]
	if !ok {
		return sql.ErrNoRows
	}
	a.Status = status
	a.IsVerified = status == models.BankAccountVerified
	m.bankAccounts[id] = a
	return nil
}

type memWithdrawals struct{ *memDB }

func (m memWithdrawals) Create(ctx context.Context, tx store.Execer, w models.Withdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.withdrawals {
		if existing.UserID == w.UserID && !existing.Status.Terminal() {
			return uniqueViolation()
		}
	}
	m.withdrawals[w.ID] = w
	return nil
}

func (m memWithdrawals) GetByID(ctx context.Context, id string) (models.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.withdrawals[id]
	if !ok {
		return models.Withdrawal{}, sql.ErrNoRows
	}
	return w, nil
}

func (m memWithdrawals) GetForUpdate(ctx context.Context, tx store.Getter, id string) (models.Withdrawal, error) {
	return m.GetByID(ctx, id)
}

func (m memWithdrawals) count(match func(models.Withdrawal) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, w := range m.withdrawals {
		if !w.Status.Terminal() && match(w) {
			n++
		}
	}
	return n
}

func (m memWithdrawals) CountActiveByUser(ctx context.Context, tx store.Getter, userID string) (int, error) {
	return m.count(func(w models.Withdrawal) bool { return w.UserID == userID }), nil
}

func (m memWithdrawals) CountActiveByBankAccount(ctx context.Context, tx store.Getter, bankAccountID string) (int, error) {
	return m.count(func(w models.Withdrawal) bool { return w.BankAccountID == bankAccountID }), nil
}

func (m memWithdrawals) UpdateStatus(ctx context.Context, tx store.Execer, w models.Withdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.withdrawals[w.ID]
	if !ok {
		return sql.ErrNoRows
	}
	current.Status = w.Status
	current.FailureReason = w.FailureReason
	current.ProcessedAt = w.ProcessedAt
	current.CompletedAt = w.CompletedAt
	m.withdrawals[w.ID] = current
	return nil
}

func (m memWithdrawals) list(match func(models.Withdrawal) bool, limit, offset int) []models.Withdrawal {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Withdrawal{}
	for _, w := range m.withdrawals {
		if match(w) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return page(out, limit, offset)
}

func (m memWithdrawals) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Withdrawal, error) {
	return m.list(func(w models.Withdrawal) bool { return w.UserID == userID }, limit, offset), nil
}

func (m memWithdrawals) ListByStatus(ctx context.Context, status models.WithdrawalStatus, limit, offset int) ([]models.Withdrawal, error) {
	return m.list(func(w models.Withdrawal) bool { return w.Status == status }, limit, offset), nil
}

type memOfferings struct{ *memDB }

func (m memOfferings) Create(ctx context.Context, tx store.Execer, o models.Offering) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.CreatedAt = m.tick()
	m.offerings[o.ID] = o
	return nil
}

func (m memOfferings) GetByID(ctx context.Context, id string) (models.Offering, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offerings[id]
	if !ok {
		return models.Offering{}, sql.ErrNoRows
	}
	return o, nil
}

func (m memOfferings) GetForUpdate(ctx context.Context, tx store.Getter, id string) (models.Offering, error) {
	return m.GetByID(ctx, id)
}

func (m memOfferings) AdjustAvailableShares(ctx context.Context, tx store.Execer, id string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offerings[id]
	if !ok {
		return 0, nil
	}
	next := o.AvailableShares + delta
	if next < 0 || next > o.TotalShares {
		return 0, nil
	}
	o.AvailableShares = next
	m.offerings[id] = o
	return 1, nil
}

func (m memOfferings) UpdateStatus(ctx context.Context, tx store.Execer, id string, status models.OfferingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offerings[id]
	if !ok {
		return sql.ErrNoRows
	}
	o.Status = status
	m.offerings[id] = o
	return nil
}

func (m memOfferings) ListActiveByChannel(ctx context.Context, channelID string) ([]models.Offering, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Offering
	for _, o := range m.offerings {
		if o.ChannelID == channelID && o.Status == models.OfferingActive {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m memOfferings) List(ctx context.Context, status string) ([]models.Offering, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Offering{}
	for _, o := range m.offerings {
		if status == "" || string(o.Status) == status {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type memInvestments struct{ *memDB }

func (m memInvestments) Create(ctx context.Context, tx store.Execer, inv models.Investment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = m.tick()
	}
	m.investments[inv.ID] = inv
	return nil
}

func (m memInvestments) GetByID(ctx context.Context, id string) (models.Investment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.investments[id]
	if !ok {
		return models.Investment{}, sql.ErrNoRows
	}
	return inv, nil
}

func (m memInvestments) GetForUpdate(ctx context.Context, tx store.Getter, id string) (models.Investment, error) {
	return m.GetByID(ctx, id)
}

func (m memInvestments) GetByTransactionForUpdate(ctx context.Context, tx store.Getter, transactionID string) (models.Investment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.investments {
		if inv.TransactionID == transactionID {
			return inv, nil
		}
	}
	return models.Investment{}, sql.ErrNoRows
}

func (m memInvestments) UpdateStatus(ctx context.Context, tx store.Execer, id string, status models.InvestmentStatus, confirmedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.investments[id]
	if !ok {
		return sql.ErrNoRows
	}
	inv.Status = status
	if confirmedAt != nil {
		inv.ConfirmedAt = confirmedAt
	}
	m.investments[id] = inv
	return nil
}

func (m memInvestments) list(match func(models.Investment) bool) []models.Investment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Investment{}
	for _, inv := range m.investments {
		if match(inv) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m memInvestments) ListConfirmedByOffering(ctx context.Context, offeringID string) ([]models.Investment, error) {
	return m.list(func(inv models.Investment) bool {
		return inv.OfferingID == offeringID && inv.Status == models.InvestmentConfirmed
	}), nil
}

func (m memInvestments) ListByInvestor(ctx context.Context, investorID string) ([]models.Investment, error) {
	return m.list(func(inv models.Investment) bool { return inv.InvestorID == investorID }), nil
}

func (m memInvestments) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	stale := m.list(func(inv models.Investment) bool {
		return inv.Status == models.InvestmentPending && inv.CreatedAt.Before(cutoff)
	})
	ids := make([]string, 0, len(stale))
	for _, inv := range page(stale, limit, 0) {
		ids = append(ids, inv.ID)
	}
	return ids, nil
}

func (m memInvestments) PendingTotalByInvestor(ctx context.Context, q store.Getter, investorID string) (int64, error) {
	var total int64
	for _, inv := range m.list(func(inv models.Investment) bool {
		return inv.InvestorID == investorID && inv.Status == models.InvestmentPending
	}) {
		total += inv.TotalAmount
	}
	return total, nil
}

type memPayouts struct{ *memDB }

func (m memPayouts) CreateIfAbsent(ctx context.Context, tx store.Execer, p models.Payout) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.payouts {
		if existing.InvestmentID == p.InvestmentID && existing.RevenueMonth == p.RevenueMonth {
			return false, nil
		}
	}
	p.CreatedAt = m.tick()
	m.payouts[p.ID] = p
	return true, nil
}

func (m memPayouts) GetForUpdate(ctx context.Context, tx store.Getter, id string) (models.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payouts[id]
	if !ok {
		return models.Payout{}, sql.ErrNoRows
	}
	return p, nil
}

func (m memPayouts) MarkCompleted(ctx context.Context, tx store.Execer, id, transactionID string, paidAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payouts[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.Status = models.PayoutCompleted
	p.TransactionID = &transactionID
	p.PaidAt = &paidAt
	p.FailureReason = nil
	m.payouts[id] = p
	return nil
}

func (m memPayouts) MarkFailed(ctx context.Context, tx store.Execer, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payouts[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.Status = models.PayoutFailed
	p.FailureReason = &reason
	m.payouts[id] = p
	return nil
}

func (m memPayouts) list(match func(models.Payout) bool) []models.Payout {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Payout{}
	for _, p := range m.payouts {
		if match(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m memPayouts) inChannel(p models.Payout, channelID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offerings[p.OfferingID].ChannelID == channelID
}

func (m memPayouts) ListByPeriod(ctx context.Context, channelID, revenueMonth string) ([]models.Payout, error) {
	all := m.list(func(p models.Payout) bool { return p.RevenueMonth == revenueMonth })
	out := []models.Payout{}
	for _, p := range all {
		if m.inChannel(p, channelID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m memPayouts) ListFailed(ctx context.Context, channelID, revenueMonth string) ([]models.Payout, error) {
	period, _ := m.ListByPeriod(ctx, channelID, revenueMonth)
	out := []models.Payout{}
	for _, p := range period {
		if p.Status == models.PayoutFailed {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m memPayouts) ListByInvestor(ctx context.Context, investorID string) ([]models.Payout, error) {
	return m.list(func(p models.Payout) bool { return p.InvestorID == investorID }), nil
}

type memAudit struct{ *memDB }

func (m memAudit) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := models.AuditLog{Action: action, EntityType: entityType, EntityID: entityID, Data: data, CreatedAt: m.tick()}
	if actorID != "" {
		entry.ActorUserID = &actorID
	}
	m.audit = append(m.audit, entry)
	return nil
}

type memIdentity struct{ *memDB }

func (m memIdentity) KYCStatus(ctx context.Context, userID string) (models.KYCStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.kyc[userID]
	if !ok {
		return models.KYCNotSubmitted, nil
	}
	return status, nil
}

func (m memIdentity) SaveSubmission(ctx context.Context, tx store.Execer, userID, document string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.kyc[userID] == models.KYCVerified {
		return false, nil
	}
	m.kyc[userID] = models.KYCPending
	return true, nil
}

func (m memIdentity) SetStatus(ctx context.Context, tx store.Execer, userID string, status models.KYCStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.kyc[userID]; !ok {
		return 0, nil
	}
	m.kyc[userID] = status
	return 1, nil
}
