package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"revshare/internal/auth"
	"revshare/internal/config"
	"revshare/internal/models"
	"revshare/internal/payments"
	"revshare/internal/services"
	"revshare/internal/store"
	"revshare/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "secret"

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	return fn(nil)
}

// The service stubs embed their interface so a test only wires the calls
// it expects; anything else panics.

type stubLedger struct {
	LedgerService
	walletFn    func(ctx context.Context, userID string) (models.Wallet, error)
	historyFn   func(ctx context.Context, userID string, limit, offset int) ([]models.LedgerEntry, error)
	txFn        func(ctx context.Context, userID string, txType models.TransactionType, limit, offset int) ([]models.Transaction, error)
	verifyFn    func(ctx context.Context, walletID string) (services.ReplayReport, error)
	verifyAllFn func(ctx context.Context) ([]services.ReplayReport, int, error)
}

func (s stubLedger) Wallet(ctx context.Context, userID string) (models.Wallet, error) {
	return s.walletFn(ctx, userID)
}

func (s stubLedger) History(ctx context.Context, userID string, limit, offset int) ([]models.LedgerEntry, error) {
	return s.historyFn(ctx, userID, limit, offset)
}

func (s stubLedger) Transactions(ctx context.Context, userID string, txType models.TransactionType, limit, offset int) ([]models.Transaction, error) {
	return s.txFn(ctx, userID, txType, limit, offset)
}

func (s stubLedger) VerifyWallet(ctx context.Context, walletID string) (services.ReplayReport, error) {
	return s.verifyFn(ctx, walletID)
}

func (s stubLedger) VerifyAll(ctx context.Context) ([]services.ReplayReport, int, error) {
	return s.verifyAllFn(ctx)
}

type stubCompliance struct {
	checkFn func(ctx context.Context, userID string, amount int64) (services.Eligibility, error)
}

func (s stubCompliance) CheckInvestmentEligibility(ctx context.Context, userID string, amount int64) (services.Eligibility, error) {
	return s.checkFn(ctx, userID, amount)
}

type stubPayments struct {
	PaymentService
	depositFn func(ctx context.Context, userID string, amount int64) (services.DepositResult, error)
	eventFn   func(ctx context.Context, evt payments.PaymentEvent) (services.PaymentOutcome, error)
}

func (s stubPayments) Deposit(ctx context.Context, userID string, amount int64) (services.DepositResult, error) {
	return s.depositFn(ctx, userID, amount)
}

func (s stubPayments) HandlePaymentEvent(ctx context.Context, evt payments.PaymentEvent) (services.PaymentOutcome, error) {
	return s.eventFn(ctx, evt)
}

type stubWithdrawals struct {
	WithdrawalService
	feeFn     func(amount int64) int64
	requestFn func(ctx context.Context, req services.WithdrawalRequest) (models.Withdrawal, error)
	approveFn func(ctx context.Context, adminID, withdrawalID string) (models.Withdrawal, error)
	rejectFn  func(ctx context.Context, adminID, withdrawalID, reason string) (models.Withdrawal, error)
	listFn    func(ctx context.Context, status models.WithdrawalStatus, limit, offset int) ([]models.Withdrawal, error)
}

func (s stubWithdrawals) Fee(amount int64) int64 {
	return s.feeFn(amount)
}

func (s stubWithdrawals) Request(ctx context.Context, req services.WithdrawalRequest) (models.Withdrawal, error) {
	return s.requestFn(ctx, req)
}

func (s stubWithdrawals) Approve(ctx context.Context, adminID, withdrawalID string) (models.Withdrawal, error) {
	return s.approveFn(ctx, adminID, withdrawalID)
}

func (s stubWithdrawals) Reject(ctx context.Context, adminID, withdrawalID, reason string) (models.Withdrawal, error) {
	return s.rejectFn(ctx, adminID, withdrawalID, reason)
}

func (s stubWithdrawals) ListByStatus(ctx context.Context, status models.WithdrawalStatus, limit, offset int) ([]models.Withdrawal, error) {
	return s.listFn(ctx, status, limit, offset)
}

type stubInvestments struct {
	InvestmentService
	createFn     func(ctx context.Context, req services.InvestmentRequest) (services.InvestmentResult, error)
	fromWalletFn func(ctx context.Context, req services.InvestmentRequest) (models.Investment, error)
}

func (s stubInvestments) Create(ctx context.Context, req services.InvestmentRequest) (services.InvestmentResult, error) {
	return s.createFn(ctx, req)
}

func (s stubInvestments) CreateFromWallet(ctx context.Context, req services.InvestmentRequest) (models.Investment, error) {
	return s.fromWalletFn(ctx, req)
}

type stubOfferings struct {
	OfferingService
	createFn func(ctx context.Context, adminID string, in services.OfferingInput) (models.Offering, error)
	listFn   func(ctx context.Context, status string) ([]models.Offering, error)
}

func (s stubOfferings) Create(ctx context.Context, adminID string, in services.OfferingInput) (models.Offering, error) {
	return s.createFn(ctx, adminID, in)
}

func (s stubOfferings) List(ctx context.Context, status string) ([]models.Offering, error) {
	return s.listFn(ctx, status)
}

type stubSettlement struct {
	SettlementService
	reconcileFn func(ctx context.Context, actorID string, req services.SettlementRequest) (services.SettlementSummary, error)
}

func (s stubSettlement) Reconcile(ctx context.Context, actorID string, req services.SettlementRequest) (services.SettlementSummary, error) {
	return s.reconcileFn(ctx, actorID, req)
}

// stubAdminStore serves fixed super admins and role grants.
type stubAdminStore struct {
	super   map[string]bool
	roles   map[string][]string
	granted []string
	revoked []string
}

func (s *stubAdminStore) IsAdmin(_ context.Context, userID string) (bool, bool, error) {
	if s.super[userID] {
		return true, true, nil
	}
	_, ok := s.roles[userID]
	return ok, false, nil
}

func (s *stubAdminStore) HasRole(_ context.Context, userID, role string) (bool, error) {
	for _, r := range s.roles[userID] {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubAdminStore) Get(ctx context.Context, userID string) (models.Admin, error) {
	isAdmin, isSuper, _ := s.IsAdmin(ctx, userID)
	if !isAdmin {
		return models.Admin{}, sql.ErrNoRows
	}
	return models.Admin{UserID: userID, IsSuper: isSuper, Roles: s.roles[userID]}, nil
}

func (s *stubAdminStore) CreateAdmin(_ context.Context, _ store.Execer, userID string, isSuper bool, _ *string) error {
	if s.roles == nil {
		s.roles = map[string][]string{}
	}
	if _, ok := s.roles[userID]; !ok && !s.super[userID] {
		s.roles[userID] = []string{}
	}
	return nil
}

func (s *stubAdminStore) GrantRole(_ context.Context, _ store.Execer, adminUserID, role, _ string) error {
	s.granted = append(s.granted, adminUserID+":"+role)
	s.roles[adminUserID] = append(s.roles[adminUserID], role)
	return nil
}

func (s *stubAdminStore) RevokeRole(_ context.Context, _ store.Execer, adminUserID, role string) (bool, error) {
	held := s.roles[adminUserID]
	for i, r := range held {
		if r == role {
			s.roles[adminUserID] = append(held[:i], held[i+1:]...)
			s.revoked = append(s.revoked, adminUserID+":"+role)
			return true, nil
		}
	}
	return false, nil
}

type stubAuditStore struct {
	actions []string
}

func (s *stubAuditStore) Log(_ context.Context, _ store.Execer, _, action, _, _, _ string) error {
	s.actions = append(s.actions, action)
	return nil
}

func (s *stubAuditStore) List(context.Context, string, int, int) ([]models.AuditLog, error) {
	return []models.AuditLog{}, nil
}

type testEnv struct {
	handler *Handler
	routes  http.Handler
	admins  *stubAdminStore
	audit   *stubAuditStore
}

func newTestEnv(svc Services) *testEnv {
	admins := &stubAdminStore{
		super: map[string]bool{"root": true},
		roles: map[string][]string{},
	}
	audit := &stubAuditStore{}
	cfg := config.Config{
		JWTSecret:      testSecret,
		WebhookSecret:  "hook-secret",
		AllowedOrigins: "*",
	}
	h := New(fakeTxRunner{}, cfg, admins, audit, svc, websocket.NewHub([]string{"*"}, zap.NewNop()), zap.NewNop())
	return &testEnv{handler: h, routes: h.Routes(), admins: admins, audit: audit}
}

func newRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	return httptest.NewRequest(method, path, reader)
}

// call sends a request through the full router, authenticated as userID
// when it is non-empty.
func (e *testEnv) call(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	req := newRequest(t, method, path, body)
	if userID != "" {
		token, err := auth.GenerateToken(testSecret, userID, time.Minute)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.routes.ServeHTTP(rr, req)
	return rr
}

// callWithHeader posts an unauthenticated webhook carrying secret.
func (e *testEnv) callWithHeader(t *testing.T, path, secret string, body any) *httptest.ResponseRecorder {
	t.Helper()
	req := newRequest(t, http.MethodPost, path, body)
	if secret != "" {
		req.Header.Set(webhookSecretHeader, secret)
	}
	rr := httptest.NewRecorder()
	e.routes.ServeHTTP(rr, req)
	return rr
}

func decodeMap(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}
