package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"revshare/internal/cache"
	"revshare/internal/config"
	"revshare/internal/events"
	"revshare/internal/models"
	"revshare/internal/payments"
	"revshare/internal/websocket"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingHub struct {
	mu      sync.Mutex
	updates map[string][]websocket.BalanceUpdate
}

func (h *recordingHub) BroadcastBalance(userID string, update websocket.BalanceUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.updates == nil {
		h.updates = map[string][]websocket.BalanceUpdate{}
	}
	h.updates[userID] = append(h.updates[userID], update)
}

func (h *recordingHub) last(userID string) (websocket.BalanceUpdate, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	updates := h.updates[userID]
	if len(updates) == 0 {
		return websocket.BalanceUpdate{}, false
	}
	return updates[len(updates)-1], true
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, evt := range p.events {
		if evt.Type == eventType {
			n++
		}
	}
	return n
}

type stubProcessor struct {
	mu  sync.Mutex
	n   int
	err error
}

func (p *stubProcessor) CreatePaymentIntent(ctx context.Context, req payments.PaymentIntentRequest) (payments.PaymentIntent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return payments.PaymentIntent{}, p.err
	}
	p.n++
	id := fmt.Sprintf("pi_%d", p.n)
	return payments.PaymentIntent{ID: id, ClientSecret: id + "_secret"}, nil
}

// flakyDisburser fails for the investors in failFor and otherwise pays into
// the wallet.
type flakyDisburser struct {
	mu      sync.Mutex
	failFor map[string]bool
	wallet  *WalletDisburser
}

func (d *flakyDisburser) Disburse(ctx context.Context, p payments.Disbursement) error {
	d.mu.Lock()
	fail := d.failFor[p.InvestorID]
	d.mu.Unlock()
	if fail {
		return errors.New("destination bank rejected transfer")
	}
	return d.wallet.Disburse(ctx, p)
}

func (d *flakyDisburser) setFailing(investorID string, fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failFor == nil {
		d.failFor = map[string]bool{}
	}
	d.failFor[investorID] = fail
}

func testPolicy() config.Policy {
	return config.Policy{
		Currency:                "USD",
		MinWithdrawal:           1000,
		MaxWithdrawal:           5_000_000,
		WithdrawalFeePercent:    decimal.RequireFromString("1.5"),
		SingleInvestmentCap:     25_000_000,
		CumulativeInvestmentCap: 100_000_000,
		PlatformFeeRate:         decimal.RequireFromString("0.05"),
		PendingInvestmentTTL:    30 * time.Minute,
		SettlementConcurrency:   4,
	}
}

type harness struct {
	t         *testing.T
	ctx       context.Context
	db        *memDB
	stores    Stores
	hub       *recordingHub
	publisher *recordingPublisher
	processor *stubProcessor
	disburser *flakyDisburser
	guard     *cache.LocalGuard
	policy    config.Policy

	ledger       *LedgerService
	gate         *ComplianceGate
	withdrawals  *WithdrawalService
	investments  *InvestmentService
	payments     *PaymentService
	bankAccounts *BankAccountService
	offerings    *OfferingService
	kyc          *KYCService
	settlement   *SettlementService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := newMemDB()
	runner := memTxRunner{db: db}
	stores := db.stores()
	log := zap.NewNop()
	policy := testPolicy()
	h := &harness{
		t:         t,
		ctx:       context.Background(),
		db:        db,
		stores:    stores,
		hub:       &recordingHub{},
		publisher: &recordingPublisher{},
		processor: &stubProcessor{},
		guard:     cache.NewLocalGuard(),
		policy:    policy,
	}
	notifier := NewNotifier(h.hub, h.publisher, log)
	h.gate = NewComplianceGate(stores.Identity, stores.Wallets, stores.Investments, policy)
	h.ledger = NewLedgerService(runner, stores, policy.Currency, log)
	h.withdrawals = NewWithdrawalService(runner, stores, h.gate, notifier, policy, log)
	h.investments = NewInvestmentService(runner, stores, h.gate, h.processor, notifier, policy, log)
	h.payments = NewPaymentService(runner, stores, h.investments, h.processor, h.guard, notifier, policy.Currency, log)
	h.bankAccounts = NewBankAccountService(runner, stores, h.gate, "test-hash-key", policy.Currency, log)
	h.offerings = NewOfferingService(runner, stores, log)
	h.kyc = NewKYCService(runner, stores, log)
	h.disburser = &flakyDisburser{wallet: NewWalletDisburser(runner, stores, notifier, policy.Currency)}
	h.settlement = NewSettlementService(runner, stores, h.disburser, h.guard, notifier, policy, log)
	return h
}

func (h *harness) setKYC(userID string, status models.KYCStatus) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()
	h.db.kyc[userID] = status
}

// fund deposits amount through the processor path so the ledger stays
// consistent.
func (h *harness) fund(userID string, amount int64) models.Wallet {
	h.t.Helper()
	res, err := h.payments.Deposit(h.ctx, userID, amount)
	require.NoError(h.t, err)
	outcome, err := h.payments.HandlePaymentEvent(h.ctx, payments.PaymentEvent{
		PaymentIntentID: *res.Transaction.ExternalRef,
		Succeeded:       true,
		Amount:          amount,
	})
	require.NoError(h.t, err)
	require.False(h.t, outcome.Duplicate)
	return h.wallet(userID)
}

func (h *harness) wallet(userID string) models.Wallet {
	h.t.Helper()
	wallet, err := h.stores.Wallets.GetByUser(h.ctx, userID)
	require.NoError(h.t, err)
	return wallet
}

// verifiedUser has verified KYC, a funded wallet and a verified default bank
// account.
func (h *harness) verifiedUser(userID string, balance int64) models.BankAccount {
	h.t.Helper()
	h.setKYC(userID, models.KYCVerified)
	if balance > 0 {
		h.fund(userID, balance)
	}
	account, err := h.bankAccounts.Add(h.ctx, userID, BankAccountInput{
		HolderName:    "Holder " + userID,
		BankName:      "First Bank",
		RoutingNumber: "021000021",
		AccountNumber: "000123456789",
	})
	require.NoError(h.t, err)
	account, err = h.bankAccounts.Verify(h.ctx, "admin", account.ID, models.BankAccountVerified)
	require.NoError(h.t, err)
	return account
}

func (h *harness) activeOffering(channelID string, totalShares int64, percentage string, price int64) models.Offering {
	h.t.Helper()
	offering, err := h.offerings.Create(h.ctx, "admin", OfferingInput{
		ChannelID:       channelID,
		Title:           "Channel " + channelID,
		TotalShares:     totalShares,
		SharePercentage: decimal.RequireFromString(percentage),
		PricePerShare:   price,
		MinInvestment:   price,
	})
	require.NoError(h.t, err)
	offering, err = h.offerings.SetStatus(h.ctx, "admin", offering.ID, models.OfferingActive)
	require.NoError(h.t, err)
	return offering
}

func (h *harness) offering(id string) models.Offering {
	h.t.Helper()
	offering, err := h.stores.Offerings.GetByID(h.ctx, id)
	require.NoError(h.t, err)
	return offering
}

func (h *harness) ledgerTypes(userID string) []models.EntryType {
	h.t.Helper()
	wallet := h.wallet(userID)
	entries, err := h.stores.Ledger.AllByWallet(h.ctx, nil, wallet.ID)
	require.NoError(h.t, err)
	types := make([]models.EntryType, 0, len(entries))
	for _, e := range entries {
		types = append(types, e.EntryType)
	}
	return types
}

// requireConsistent replays every wallet's ledger.
func (h *harness) requireConsistent() {
	h.t.Helper()
	broken, checked, err := h.ledger.VerifyAll(h.ctx)
	require.NoError(h.t, err)
	require.Empty(h.t, broken)
	require.Positive(h.t, checked)
}
