package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"revshare/internal/cache"
	"revshare/internal/config"
	"revshare/internal/db"
	"revshare/internal/events"
	"revshare/internal/handlers"
	"revshare/internal/jobs"
	"revshare/internal/logger"
	"revshare/internal/payments"
	"revshare/internal/services"
	"revshare/internal/store"
	"revshare/internal/websocket"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logr, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logr.Sync() }()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer database.Close()
	txRunner := db.NewTxRunner(database)

	var guard cache.Guard = cache.NewLocalGuard()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer rdb.Close()
		guard = cache.NewRedisGuard(rdb)
		logr.Info("using redis claim guard", zap.String("addr", cfg.RedisAddr))
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		logr.Info("publishing events to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	defer publisher.Close()

	audit := store.NewAuditStore(database)
	stores := services.Stores{
		Wallets:      store.NewWalletStore(database),
		Ledger:       store.NewLedgerStore(database),
		Transactions: store.NewTransactionStore(database),
		BankAccounts: store.NewBankAccountStore(database),
		Withdrawals:  store.NewWithdrawalStore(database),
		Offerings:    store.NewOfferingStore(database),
		Investments:  store.NewInvestmentStore(database),
		Payouts:      store.NewPayoutStore(database),
		Audit:        audit,
		Identity:     store.NewIdentityStore(database),
	}
	admins := store.NewAdminStore(database)
	hub := websocket.NewHub(strings.Split(cfg.AllowedOrigins, ","), logr)
	notifier := services.NewNotifier(hub, publisher, logr)
	processor := payments.SandboxProcessor{}
	policy := cfg.Policy

	gate := services.NewComplianceGate(stores.Identity, stores.Wallets, stores.Investments, policy)
	ledger := services.NewLedgerService(txRunner, stores, policy.Currency, logr)
	investments := services.NewInvestmentService(txRunner, stores, gate, processor, notifier, policy, logr)
	disburser := services.NewWalletDisburser(txRunner, stores, notifier, policy.Currency)
	svc := handlers.Services{
		Ledger:       ledger,
		Compliance:   gate,
		Payments:     services.NewPaymentService(txRunner, stores, investments, processor, guard, notifier, policy.Currency, logr),
		Withdrawals:  services.NewWithdrawalService(txRunner, stores, gate, notifier, policy, logr),
		Investments:  investments,
		BankAccounts: services.NewBankAccountService(txRunner, stores, gate, cfg.BankHashKey, policy.Currency, logr),
		Offerings:    services.NewOfferingService(txRunner, stores, logr),
		KYC:          services.NewKYCService(txRunner, stores, logr),
		Settlement:   services.NewSettlementService(txRunner, stores, disburser, guard, notifier, policy, logr),
	}

	ctx := context.Background()
	if err := bootstrapAdmin(ctx, txRunner, admins, cfg.BootstrapAdminID, logr); err != nil {
		logr.Fatal("failed to bootstrap admin", zap.Error(err))
	}

	scheduler, err := jobs.NewScheduler(jobs.NewJobRunner(investments, ledger, logr), policy, logr)
	if err != nil {
		logr.Fatal("failed to schedule jobs", zap.Error(err))
	}
	scheduler.Start()

	handler := handlers.New(txRunner, cfg, admins, audit, svc, hub, logr)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logr.Info("revshare API listening", zap.String("addr", server.Addr), zap.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server error", zap.Error(err))
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("shutdown error", zap.Error(err))
	}
	scheduler.Stop()
	logr.Info("shutdown complete")
}
