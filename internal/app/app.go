package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ayo6706/liquidity-settlement/internal/api"
	"github.com/ayo6706/liquidity-settlement/internal/catalog"
	"github.com/ayo6706/liquidity-settlement/internal/chain"
	"github.com/ayo6706/liquidity-settlement/internal/chain/simulated"
	"github.com/ayo6706/liquidity-settlement/internal/config"
	"github.com/ayo6706/liquidity-settlement/internal/db"
	"github.com/ayo6706/liquidity-settlement/internal/lock"
	"github.com/ayo6706/liquidity-settlement/internal/notification"
	"github.com/ayo6706/liquidity-settlement/internal/observability"
	"github.com/ayo6706/liquidity-settlement/internal/repository"
	"github.com/ayo6706/liquidity-settlement/internal/service"
	"github.com/ayo6706/liquidity-settlement/internal/settings"
	"github.com/ayo6706/liquidity-settlement/internal/strategy"
	"github.com/ayo6706/liquidity-settlement/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Run bootstraps the HTTP server and the scheduled jobs, blocking until
// shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, cfg.DatabaseURL, 0); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	store := repository.NewStore(pool)
	assets := catalog.New(store)
	toggles := settings.NewStore(redisClient, store, cfg.SettingsCacheTTL)
	notifier := notification.NewRedisNotifier(redisClient, notification.DefaultChannel)
	locker := lock.NewRedisLocker(redisClient)

	network, err := newNetwork(cfg.Chain)
	if err != nil {
		return err
	}
	networks := chain.NewRegistry(network)
	classifier := strategy.NewClassifier(networks.Blockchains()...)

	liquiditySvc := service.NewLiquidityService(store, networks, assets, toggles, classifier, cfg.Strategies, notifier)
	payoutSvc := service.NewPayoutService(store, networks, assets, toggles, classifier, cfg.Strategies, notifier, service.PayoutOptions{
		BatchSize:         cfg.PayoutBatchSize,
		RollbackOnFailure: cfg.PayoutRollbackOnFailure,
	})
	utxoSvc := service.NewUTXOService(network, service.UTXOPolicy{
		Address:         cfg.UTXO.Address,
		MinOperateValue: cfg.UTXO.MinOperateValue,
		MinSplitValue:   cfg.UTXO.MinSplitValue,
		MaxCount:        cfg.UTXO.MaxCount,
		MergeBatch:      cfg.UTXO.MergeBatch,
	})

	jobs := []*worker.Job{
		worker.NewLiquidityWorker(liquiditySvc, locker, cfg.LiquidityInterval),
		worker.NewPayoutWorker(payoutSvc, locker, cfg.PayoutInterval),
		worker.NewUTXOWorker(utxoSvc, locker, cfg.UTXOInterval),
	}
	stops := make([]func(), 0, len(jobs))
	for _, job := range jobs {
		stops = append(stops, job.Run(ctx))
		logger.Info("worker started", zap.Stringer("job", job))
	}

	router := api.NewRouter(cfg, logger, pool, redisClient, api.Services{
		Liquidity: liquiditySvc,
		Payouts:   payoutSvc,
		Assets:    assets,
		Notifier:  notifier,
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping workers")
	for _, stop := range stops {
		stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

// newNetwork builds the chain connection. Only the simulated node ships with
// this service; a real node client is plugged in through chain.FuncClient.
func newNetwork(cfg config.ChainConfig) (chain.Network, error) {
	if !cfg.Simulated {
		return chain.Network{}, fmt.Errorf("no node client for %s: set CHAIN_SIMULATED=true or provide a chain.Client", cfg.Blockchain)
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), max(int(cfg.RequestsPerSec), 1))
	}
	client := chain.NewRetryingClient(simulated.NewNode(), chain.RetryPolicy{
		Attempts: cfg.RetryAttempts,
		Delay:    cfg.RetryDelay,
	}, limiter)
	zap.L().Warn("using simulated chain node", zap.String("blockchain", string(cfg.Blockchain)))
	return chain.Network{
		Blockchain:       cfg.Blockchain,
		Client:           client,
		LiquidityAddress: cfg.LiquidityAddress,
		PayoutAddress:    cfg.PayoutAddress,
		FeeAsset:         cfg.FeeAsset,
	}, nil
}

func newLogger(level, file string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if file == "" {
		return logger, nil
	}

	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   file,
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	})
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(cfg.EncoderConfig), sink, cfg.Level)
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	})), nil
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
