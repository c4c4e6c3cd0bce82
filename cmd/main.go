package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/audit"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/cache"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/coordinator"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/identity"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/logger"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/rpcnode"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/server"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/wallet"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zl := logger.New()
	defer zl.Sync()

	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Config error:", err)
		return
	}

	node := rpcnode.New(cfg.NodeRPCURL, cfg.ContractAddress, zl)

	w := wallet.NewStatic(cfg.WalletAccount, cfg.ChainID)
	monitor := identity.NewMonitor(w, node, cfg.ChainID, zl)
	monitor.Watch(ctx)

	shipmentCache := cache.New(monitor.Context().Read(), zl)
	if err := shipmentCache.Refresh(ctx); err != nil {
		zl.Warn("initial cache fill failed, starting with empty snapshot", zap.Error(err))
	}

	var producer audit.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = audit.NewKafkaProducer(cfg.KafkaBrokers)
	} else {
		producer = audit.NewConsoleProducer()
	}
	auditManager := audit.NewManager(producer, cfg.AuditTopic, 2, 5, 500*time.Millisecond)
	auditManager.Start(ctx)

	coord := coordinator.New(monitor, shipmentCache, auditManager, cfg.FinalityTimeout, zl)

	srv := server.New(coord, server.AuthConfig{User: cfg.APIUser, PasswordHash: cfg.APIPasswordHash}, zl)

	go func() {
		if err := srv.Run(cfg.HTTPPort); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Println("Server started on port " + cfg.HTTPPort)

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}
	auditManager.Shutdown(shutdownCtx)

	log.Println("Server gracefully stopped")
}
