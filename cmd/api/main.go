package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"staytoken/internal/api"
	"staytoken/internal/config"
	"staytoken/internal/controller"
	"staytoken/internal/database"
	"staytoken/internal/domain"
	"staytoken/internal/events"
	"staytoken/internal/export"
	"staytoken/internal/factory"
	"staytoken/internal/ledger"
	"staytoken/internal/logging"
	"staytoken/internal/marketplace"
	"staytoken/internal/metrics"
	"staytoken/internal/models"
	"staytoken/internal/repository"
	"staytoken/internal/royalty"
	"staytoken/internal/signature"
	"staytoken/internal/treasury"
	"staytoken/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventBus := events.NewEventBus()

	// Журнал аудита пишется асинхронно
	journalWorker := worker.NewJournalWorker(db, worker.RetryPolicy{}, &logger)
	journalWorker.Attach(eventBus)
	go journalWorker.Start(ctx)

	valueLedger := ledger.NewTokenLedger()

	admin := models.Address(cfg.Protocol.AdminAddress).Normalize()
	ctrl := controller.New(models.Address(cfg.Protocol.ControllerAddress), db, eventBus, &logger)
	if err := ctrl.Bootstrap(ctx, admin); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	tr := treasury.New(models.Address(cfg.Protocol.TreasuryAddress), valueLedger, db, eventBus, &logger)
	engine := royalty.NewEngine(db, eventBus, &logger)
	verifier := signature.NewVerifier()

	if err := ctrl.SetTreasury(ctx, admin, tr); err != nil {
		return err
	}
	if err := ctrl.SetSettlementCurrency(ctx, admin, models.Address(cfg.Protocol.CurrencyAddress), valueLedger); err != nil {
		return err
	}
	if err := ctrl.SetRoyaltyEngine(ctx, admin, engine); err != nil {
		return err
	}
	if err := ctrl.SetSignatureVerifier(ctx, admin, verifier); err != nil {
		return err
	}
	if cfg.Protocol.CommissionBps > 0 {
		if err := ctrl.SetCommission(ctx, admin, cfg.Protocol.CommissionBps); err != nil {
			return err
		}
	}
	if err := ctrl.SetContractName(ctx, admin, cfg.Protocol.ContractName); err != nil {
		return err
	}

	registries := factory.New(db, eventBus, &logger)

	market := marketplace.New(models.Address(cfg.Protocol.MarketplaceAddress), db, valueLedger, engine, eventBus, &logger)
	if err := ctrl.GrantRole(ctx, admin, models.CapabilityMarketplace, market.Address()); err != nil {
		return err
	}

	cache := initCache(cfg, &logger)

	var exporter *export.Exporter
	if cfg.Exports.Path != "" {
		exporter = export.New(db, cfg.Exports.Path, &logger)
	}

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go servePrometheus(cfg.Monitoring.PrometheusPort, &logger)
	}

	if !cfg.API.Enabled {
		logger.Info().Msg("API disabled, serving protocol components only")
		<-ctx.Done()
		return nil
	}

	apiServer := api.NewHTTPServer(cfg.API, ctrl, db, cache, registries, exporter, &logger)
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error().Err(err).Msg("API server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return apiServer.Shutdown(shutdownCtx)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	logger := logging.Component(baseLogger, "api-main")

	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if cfg == nil {
		return os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для базы данных")
		return err
	}
	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для экспорта")
		return err
	}
	return nil
}

func initCache(cfg *config.Config, logger *zerolog.Logger) domain.CacheRepository {
	if !cfg.Cache.Enabled {
		return nil
	}

	ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	memory := repository.NewMemoryCacheRepository(ttl)

	if cfg.Redis.Address == "" {
		logger.Info().Msg("Redis not configured, using in-memory cache")
		return memory
	}

	client := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, client); err != nil {
		logger.Error().Err(err).Msg("Redis unavailable at start, failover will recover")
	}

	primary := repository.NewRedisCacheRepository(client, ttl)
	return repository.NewFailoverCacheRepository(primary, memory, logger)
}

func servePrometheus(port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	logger.Info().Str("addr", addr).Msg("Prometheus metrics listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
