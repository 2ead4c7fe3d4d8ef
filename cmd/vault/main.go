package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"evidence-vault/conf"
	"evidence-vault/controller"
	"evidence-vault/controller/handler"
	"evidence-vault/database"
	"evidence-vault/model/dao"
	"evidence-vault/service/audit_service"
	"evidence-vault/service/deal_service"
	"evidence-vault/service/migration_service"
	"evidence-vault/service/pin_service"
	"evidence-vault/storage"
)

func main() {
	env := flag.String("env", "mainnet", "deployment environment: loc, testnet, mainnet")
	flag.Parse()

	initEnv(*env)

	if err := conf.InitConfig(); err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	if err := initDatabase(); err != nil {
		log.Fatalf("❌ Failed to initialize record store: %v", err)
	}

	if err := database.InitRedis(); err != nil {
		// Cache is an optimization; the service runs without it.
		log.Printf("⚠️  Redis unavailable, continuing without cache: %v", err)
	}

	staging, err := storage.NewStorage()
	if err != nil {
		log.Fatalf("❌ Failed to initialize staging storage: %v", err)
	}

	pinClient := pin_service.NewPinClient(
		conf.Cfg.Pin.ApiUrl,
		conf.Cfg.Pin.ApiToken,
		conf.Cfg.Pin.Gateways,
		time.Duration(conf.Cfg.Pin.UploadTimeoutSec)*time.Second,
		time.Duration(conf.Cfg.Pin.DownloadTimeoutSec)*time.Second,
	)

	gate := deal_service.NewPaymentGate(
		conf.Cfg.Deal.ApiUrl,
		conf.Cfg.Deal.ApiToken,
		conf.Cfg.Deal.Network,
		conf.Cfg.Deal.TokenKind,
		conf.Cfg.Deal.MinBalance,
		time.Duration(conf.Cfg.Deal.RequestTimeoutSec)*time.Second,
	)

	dealClient := deal_service.NewDealClient(
		conf.Cfg.Deal.ApiUrl,
		conf.Cfg.Deal.ApiToken,
		conf.Cfg.Deal.Network,
		conf.Cfg.Deal.DealDurationDays,
		time.Duration(conf.Cfg.Deal.RequestTimeoutSec)*time.Second,
		pinClient,
		gate,
		dao.NewPaymentLedgerDAO(),
	)

	migrationService := migration_service.NewMigrationService(
		dealClient,
		gate,
		conf.Cfg.Migration.BatchSize,
		time.Duration(conf.Cfg.Migration.StalledThresholdMin)*time.Minute,
	)
	processor := migration_service.NewMigrationProcessor(
		migrationService,
		time.Duration(conf.Cfg.Migration.ProcessIntervalSec)*time.Second,
	)
	processor.Start()

	ledgerClient := audit_service.NewLedgerClient(
		conf.Cfg.Ledger.NodeUrl,
		conf.Cfg.Ledger.OperatorId,
		time.Duration(conf.Cfg.Ledger.SubmitTimeoutSec)*time.Second,
	)
	registry, err := audit_service.NewTopicRegistry(ledgerClient, conf.Cfg.Ledger.TopicId, conf.Cfg.Ledger.TopicMemo)
	if err != nil {
		log.Fatalf("❌ Invalid audit topic configuration: %v", err)
	}
	auditService := audit_service.NewAuditService(registry, ledgerClient)
	verifier := audit_service.NewMirrorVerifier(
		conf.Cfg.Ledger.MirrorUrl,
		time.Duration(conf.Cfg.Ledger.SubmitTimeoutSec)*time.Second,
	)

	router := controller.SetupRouter(
		handler.NewFileHandler(pinClient, gate, staging),
		handler.NewMigrationHandler(migrationService),
		handler.NewAuditHandler(auditService, registry, verifier),
	)

	server := &http.Server{
		Addr:    conf.Cfg.Net + ":" + conf.Cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("🚀 Evidence vault listening on %s (env: %s)", server.Addr, *env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server error: %v", err)
		}
	}()

	waitForShutdown()
	shutdownServer(server, processor)
}

func initEnv(env string) {
	switch env {
	case "loc":
		conf.SystemEnvironmentEnum = conf.LocalEnvironmentEnum
	case "testnet":
		conf.SystemEnvironmentEnum = conf.TestnetEnvironmentEnum
	default:
		conf.SystemEnvironmentEnum = conf.MainnetEnvironmentEnum
	}
}

func initDatabase() error {
	switch conf.Cfg.Database.Type {
	case "pebble":
		return database.InitDatabase(database.DBTypePebble, &database.PebbleConfig{
			DataDir: conf.Cfg.Database.DataDir,
		})
	default:
		return database.InitDatabase(database.DBTypeMySQL, &database.MySQLConfig{
			DSN:          conf.Cfg.Database.Dsn,
			MaxOpenConns: conf.Cfg.Database.MaxOpenConns,
			MaxIdleConns: conf.Cfg.Database.MaxIdleConns,
		})
	}
}

func waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutdown signal received")
}

func shutdownServer(server *http.Server, processor *migration_service.MigrationProcessor) {
	processor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Forced shutdown: %v", err)
	}

	if err := database.CloseRedis(); err != nil {
		log.Printf("⚠️  Redis close: %v", err)
	}
	if database.DB != nil {
		if err := database.DB.Close(); err != nil {
			log.Printf("⚠️  Record store close: %v", err)
		}
	}
	log.Println("👋 Evidence vault stopped")
}
