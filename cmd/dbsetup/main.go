// Package main is the database setup/status CLI.
//
//	dbsetup setup   applies the remote schema
//	dbsetup status  prints which backend the adapter would use and why
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/eventsx/backend/config"
	"github.com/eventsx/backend/internal/store"
	"github.com/eventsx/backend/internal/store/local"
	"github.com/eventsx/backend/internal/store/remote"
	"github.com/eventsx/backend/pkg/database"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: dbsetup <setup|status>")
		os.Exit(2)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch os.Args[1] {
	case "setup":
		runSetup(ctx, cfg, logger)
	case "status":
		runStatus(ctx, cfg, logger)
	default:
		fmt.Fprintln(os.Stderr, "usage: dbsetup <setup|status>")
		os.Exit(2)
	}
}

func runSetup(ctx context.Context, cfg *config.Config, logger *zap.Logger) {
	if !cfg.Remote.Configured() {
		logger.Fatal("no remote database configured; set DATABASE_URL or DB_HOST")
	}
	pool, err := database.NewPostgresPool(cfg.Remote.DSN(), logger)
	if err != nil {
		logger.Fatal("connect", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("apply schema", zap.Error(err))
	}
	fmt.Println("remote schema applied")
}

func runStatus(ctx context.Context, cfg *config.Config, logger *zap.Logger) {
	localStore, err := local.New(cfg.Local.Path, logger)
	if err != nil {
		logger.Fatal("local store", zap.Error(err))
	}

	var remoteStore store.Store
	if cfg.Remote.Configured() {
		pool, err := database.NewPostgresPool(cfg.Remote.DSN(), logger)
		if err != nil {
			logger.Warn("remote unreachable", zap.Error(err))
		} else {
			defer pool.Close()
			remoteStore = remote.New(pool, logger, cfg.Adapter.MaxRetries, cfg.Adapter.RetryDelay)
		}
	}

	adapter := store.NewAdapter(remoteStore, localStore, logger, cfg.Adapter.ProbeTimeout, nil)
	st := adapter.Status(ctx)
	fmt.Printf("mode:    %s\n", st.Mode)
	fmt.Printf("status:  %s\n", st.Status)
	fmt.Printf("message: %s\n", st.Message)
}
