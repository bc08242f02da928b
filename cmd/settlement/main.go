package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	httpadapter "github.com/couchcryptid/storm-parametric-settlement/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/storm-parametric-settlement/internal/adapter/kafka"
	"github.com/couchcryptid/storm-parametric-settlement/internal/adapter/sqlite"
	"github.com/couchcryptid/storm-parametric-settlement/internal/adapter/weatherapi"
	"github.com/couchcryptid/storm-parametric-settlement/internal/attestation"
	"github.com/couchcryptid/storm-parametric-settlement/internal/config"
	"github.com/couchcryptid/storm-parametric-settlement/internal/domain"
	"github.com/couchcryptid/storm-parametric-settlement/internal/events"
	"github.com/couchcryptid/storm-parametric-settlement/internal/impact"
	"github.com/couchcryptid/storm-parametric-settlement/internal/observability"
	"github.com/couchcryptid/storm-parametric-settlement/internal/oracle"
	"github.com/couchcryptid/storm-parametric-settlement/internal/pipeline"
	"github.com/couchcryptid/storm-parametric-settlement/internal/policy"
	"github.com/couchcryptid/storm-parametric-settlement/internal/refdata"
	"github.com/couchcryptid/storm-parametric-settlement/internal/risk"
	"github.com/couchcryptid/storm-parametric-settlement/internal/settlement"
	"github.com/couchcryptid/storm-parametric-settlement/internal/treasury"
	"github.com/couchcryptid/storm-parametric-settlement/internal/weather"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ref, err := refdata.Load(cfg.RefdataPath)
	if err != nil {
		logger.Error("failed to load reference data", "error", err)
		os.Exit(1)
	}
	logger.Info("reference data loaded", "locations", len(ref.Locations()))

	verifier, err := newVerifier(cfg, logger)
	if err != nil {
		logger.Error("failed to load operator registry", "error", err)
		os.Exit(1)
	}

	var (
		notifiers domain.Notifiers
		ready     httpadapter.ReadinessChecks
		vault     domain.Treasury
		balance   httpadapter.BalanceFunc
		journal   httpadapter.NotificationLog
		db        *gorm.DB
	)

	// Durable journal and treasury ledger (feature-flagged via DATABASE_DSN).
	if cfg.DatabaseDSN != "" {
		db, err = sqlite.Open(ctx, cfg.DatabaseDSN, logger)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		j := sqlite.NewJournal(db)
		t := sqlite.NewTreasury(db, clock, cfg.TreasuryStrict)
		notifiers = append(notifiers, j)
		journal = j
		vault = t
		balance = t.Balance
		ready = append(ready, httpadapter.ReadinessFunc(func(ctx context.Context) error {
			return sqlite.Ping(ctx, db)
		}))
	} else {
		m := treasury.NewMemory(clock, decimal.Zero)
		m.Strict = cfg.TreasuryStrict
		vault = m
		balance = func(context.Context) (decimal.Decimal, error) { return m.Balance(), nil }
		logger.Info("database disabled, treasury kept in memory")
	}

	// Kafka notification publisher (feature-flagged via KAFKA_ENABLED).
	var (
		writer    *kafkaadapter.Writer
		publisher *pipeline.Publisher
	)
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg)
		publisher = pipeline.NewPublisher(writer, logger, metrics, cfg.BatchSize, cfg.BatchFlushInterval)
		notifiers = append(notifiers, publisher)
	}

	// Weather feed: remote API with an LRU cache, or the in-memory oracle table.
	var (
		feed    domain.WeatherFeed
		updater httpadapter.WeatherUpdater
	)
	if cfg.WeatherAPIURL != "" {
		client := weatherapi.NewClient(cfg.WeatherAPIURL, cfg.WeatherAPIToken, cfg.WeatherAPITimeout, metrics, logger)
		cached, err := weatherapi.NewCachedFeed(client, cfg.WeatherCacheSize, cfg.WeatherCacheTTL, clock, metrics)
		if err != nil {
			logger.Error("failed to create weather cache", "error", err)
			os.Exit(1)
		}
		feed = cached
		logger.Info("weather api enabled", "url", cfg.WeatherAPIURL, "cache_size", cfg.WeatherCacheSize, "ttl", cfg.WeatherCacheTTL)
	} else {
		store := weather.NewStore(clock)
		feed, updater = store, store
		logger.Info("weather api disabled, using oracle table")
	}

	registry := events.NewRegistry(verifier, notifiers, clock, logger, metrics, events.Options{
		Threshold:  cfg.QuorumThreshold,
		RejectLate: cfg.RejectLateAttestations,
	})
	ledger := policy.NewLedger(vault, notifiers, clock, logger, metrics, policy.Terms{
		PremiumRateBPS:  cfg.PremiumRateBPS,
		CancelRefundBPS: cfg.CancelRefundBPS,
		Duration:        cfg.PolicyDuration,
	})
	claims := settlement.NewService(ledger, registry, vault, notifiers, clock, logger, metrics)
	riskEngine := risk.NewEngine(ref, feed, clock, logger, metrics, risk.Options{
		Season:          risk.SeasonMode(cfg.SeasonMode),
		HistoryCapacity: cfg.RiskHistoryCapacity,
	})
	impactEngine := impact.NewEngine(ref, clock, logger, metrics, cfg.ImpactHistoryCapacity)

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Deps{
		Policies: ledger,
		Events:   registry,
		Claims:   claims,
		Risk:     riskEngine,
		Impact:   impactEngine,
		Weather:  feed,
		Updater:  updater,
		Reviewer: oracle.MockReviewer{Coverage: func(ctx context.Context, id uint64) (decimal.Decimal, error) {
			p, err := ledger.Get(ctx, id)
			return p.Coverage, err
		}},
		Fraud:   oracle.MockAnalyzer{},
		Journal: journal,
		Balance: balance,
		Ready:   ready,
	}, logger)

	var wg sync.WaitGroup

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start attestation intake and notification publisher.
	var reader *kafkaadapter.Reader
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg)
		intake := pipeline.New(reader, registry, logger, metrics, cfg.BatchSize)

		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := intake.Run(ctx); err != nil {
				logger.Error("attestation intake error", "error", err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := publisher.Run(ctx, cfg.ShutdownTimeout); err != nil {
				logger.Error("notification publisher error", "error", err)
			}
		}()
	} else {
		logger.Info("kafka disabled, attestations accepted over http only")
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	wg.Wait()
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if db != nil {
		if err := sqlite.Close(db); err != nil {
			logger.Error("database close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

func newVerifier(cfg *config.Config, logger *slog.Logger) (attestation.Verifier, error) {
	if cfg.SignatureMode == config.SignaturesAlwaysValid {
		logger.Warn("signature verification disabled, every attestation is accepted")
		return attestation.AlwaysValid{}, nil
	}
	reg, err := attestation.LoadRegistry(cfg.OperatorRegistryPath)
	if err != nil {
		return nil, err
	}
	logger.Info("operator registry loaded", "operators", len(reg.Operators()))
	return reg, nil
}
