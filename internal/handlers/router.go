package handlers

import (
	"net/http"
	"strings"

	"revshare/internal/config"
	"revshare/internal/db"
	"revshare/internal/middleware"
	"revshare/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type Handler struct {
	txRunner db.TxRunner
	cfg      config.Config
	admin    AdminStore
	audit    AuditStore
	svc      Services
	hub      *websocket.Hub
	log      *zap.Logger
}

func New(txRunner db.TxRunner, cfg config.Config, admin AdminStore, audit AuditStore, svc Services, hub *websocket.Hub, log *zap.Logger) *Handler {
	return &Handler{
		txRunner: txRunner,
		cfg:      cfg,
		admin:    admin,
		audit:    audit,
		svc:      svc,
		hub:      hub,
		log:      log,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestLogger(h.log))
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(h.cfg.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Post("/webhooks/payments", h.PaymentWebhook)
	router.Get("/ws/balances", h.WSBalances)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))

		r.Get("/wallet", h.GetWallet)
		r.Get("/wallet/ledger", h.ListLedger)
		r.Get("/wallet/transactions", h.ListTransactions)
		r.Post("/wallet/deposits", h.CreateDeposit)

		r.Get("/bank-accounts", h.ListBankAccounts)
		r.Post("/bank-accounts", h.AddBankAccount)
		r.Post("/bank-accounts/{id}/default", h.SetDefaultBankAccount)
		r.Delete("/bank-accounts/{id}", h.DeleteBankAccount)

		r.Get("/withdrawals", h.ListWithdrawals)
		r.Post("/withdrawals", h.RequestWithdrawal)
		r.Get("/withdrawals/fee", h.WithdrawalFee)
		r.Get("/withdrawals/{id}", h.GetWithdrawal)
		r.Post("/withdrawals/{id}/cancel", h.CancelWithdrawal)

		r.Get("/offerings", h.ListOfferings)
		r.Get("/offerings/{id}", h.GetOffering)
		r.Get("/investments", h.ListInvestments)
		r.Post("/investments", h.CreateInvestment)
		r.Get("/investments/{id}", h.GetInvestment)
		r.Post("/investments/{id}/cancel", h.CancelInvestment)
		r.Get("/eligibility/investment", h.InvestmentEligibility)
		r.Get("/payouts", h.ListMyPayouts)

		r.Get("/kyc", h.KYCStatus)
		r.Post("/kyc", h.SubmitKYC)
	})

	router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))

		r.With(middleware.RequireAdmin(h.admin, "")).Get("/me", h.CurrentAdmin)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.admin, middleware.RoleWithdrawals))
			r.Get("/withdrawals", h.AdminListWithdrawals)
			r.Post("/withdrawals/{id}/approve", h.ApproveWithdrawal)
			r.Post("/withdrawals/{id}/complete", h.CompleteWithdrawal)
			r.Post("/withdrawals/{id}/reject", h.RejectWithdrawal)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.admin, middleware.RoleCompliance))
			r.Post("/bank-accounts/{id}/verify", h.VerifyBankAccount)
			r.Post("/kyc/{userID}/decision", h.DecideKYC)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.admin, middleware.RoleOfferings))
			r.Post("/offerings", h.CreateOffering)
			r.Post("/offerings/{id}/status", h.SetOfferingStatus)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.admin, middleware.RoleSettlement))
			r.Post("/settlements", h.RunSettlement)
			r.Post("/settlements/retry", h.RetryPayouts)
			r.Get("/settlements/payouts", h.ListPeriodPayouts)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.admin, middleware.RoleAudit))
			r.Get("/audit", h.ListAuditLogs)
			r.Get("/wallets/reconcile", h.ReconcileWallets)
			r.Get("/wallets/{id}/reconcile", h.ReconcileWallet)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.admin, middleware.SuperOnly))
			r.Post("/promote", h.PromoteAdmin)
			r.Post("/roles/grant", h.GrantRole)
			r.Post("/roles/revoke", h.RevokeRole)
		})
	})
	return router
}

func requestID(r *http.Request) string {
	return chimiddleware.GetReqID(r.Context())
}
