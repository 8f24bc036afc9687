package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ayo6706/liquidity-settlement/internal/config"
	"github.com/ayo6706/liquidity-settlement/internal/db"
	"go.uber.org/zap"
)

func main() {
	steps := flag.Int("steps", 0, "migrations to apply; 0 applies all pending, negative rolls back")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if err := db.Migrate(context.Background(), cfg.DatabaseURL, *steps); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
}
