package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/medlens/internal/config"
	"github.com/kailas-cloud/medlens/internal/db"
	dbGoRedis "github.com/kailas-cloud/medlens/internal/db/goredis"
	dbPostgres "github.com/kailas-cloud/medlens/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/medlens/internal/db/redis"
	"github.com/kailas-cloud/medlens/internal/domain"
	logpkg "github.com/kailas-cloud/medlens/internal/logger"
	"github.com/kailas-cloud/medlens/internal/metrics"
	"github.com/kailas-cloud/medlens/internal/repository/classcache"
	diagnosisrepo "github.com/kailas-cloud/medlens/internal/repository/diagnosis"
	knowledgerepo "github.com/kailas-cloud/medlens/internal/repository/knowledge"
	chiTransport "github.com/kailas-cloud/medlens/internal/transport/chi"
	"github.com/kailas-cloud/medlens/internal/transport/modelserver"
	openaiCls "github.com/kailas-cloud/medlens/internal/transport/openai"
	diagnosisuc "github.com/kailas-cloud/medlens/internal/usecase/diagnosis"
	healthuc "github.com/kailas-cloud/medlens/internal/usecase/health"
	knowledgeuc "github.com/kailas-cloud/medlens/internal/usecase/knowledge"
	"github.com/kailas-cloud/medlens/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting medlens API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("classifier_provider", cfg.Classifier.Provider),
		zap.String("knowledge_dir", cfg.Knowledge.Dir),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics()
	metrics.RegisterDiagnosisMetrics()

	ctx := context.Background()

	// Redis backs the diagnosis store and the classifier cache
	var store db.Store
	if cfg.NeedsRedis() {
		store, err = openStore(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
		}
		defer store.Close()
		logger.Info("Connected to database", zap.String("driver", cfg.Database.Driver))
	}

	// Knowledge base must load before serving
	loader, err := knowledgerepo.New(cfg.Knowledge.Format, cfg.Knowledge.Dir)
	if err != nil {
		logger.Fatal("Invalid knowledge source", zap.Error(err))
	}
	knowledgeSvc := knowledgeuc.New(loader, cfg.Knowledge.AllowList, logger)
	if _, err := knowledgeSvc.Reload(ctx); err != nil {
		logger.Fatal("Failed to load knowledge base", zap.Error(err))
	}

	classifier, err := buildClassifier(cfg, store, logger)
	if err != nil {
		logger.Fatal("Failed to create classifier", zap.Error(err))
	}

	// Diagnosis repository
	var (
		repo     diagnosisuc.Repository
		dbPinger healthuc.DBPinger
	)
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		conn, err := openPostgres(ctx, cfg.Postgres)
		if err != nil {
			logger.Fatal("Failed to open postgres", zap.Error(err))
		}
		defer func() { _ = conn.Close() }()
		repo = diagnosisrepo.NewPostgres(conn)
		dbPinger = healthuc.PingerFunc(conn.PingContext)
	default:
		repo = diagnosisrepo.NewRedis(store)
		dbPinger = store
	}

	diagnosisSvc := diagnosisuc.New(knowledgeSvc, repo, classifier, cfg.Classifier.Labels, logger).
		WithClassifierTimeout(time.Duration(cfg.Classifier.TimeoutSec) * time.Second).
		WithPagination(cfg.Storage.DefaultPageSize, cfg.Storage.MaxPageSize)

	// Pass nil interface (not a typed nil) when there is no classifier.
	var classifierChecker healthuc.Checker
	if hc, ok := classifier.(healthuc.Checker); ok {
		classifierChecker = hc
	}
	healthSvc := healthuc.New(dbPinger, knowledgeSvc, classifierChecker)

	server := chiTransport.NewServer(diagnosisSvc, knowledgeSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(chiTransport.JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.WideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown; SIGHUP reloads the knowledge base
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	for running := true; running; {
		select {
		case <-hup:
			if _, err := knowledgeSvc.Reload(ctx); err != nil {
				logger.Error("Knowledge base reload failed, keeping previous snapshot", zap.Error(err))
			}
		case <-quit:
			running = false
		}
	}
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// openStore connects the configured Redis driver and waits for it to answer.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (db.Store, error) {
	var (
		store db.Store
		err   error
	)
	switch cfg.Driver {
	case config.DriverGoRedis:
		store, err = dbGoRedis.NewStore(dbGoRedis.Config{
			Addr:     cfg.Addrs[0],
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		})
	default:
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	return store, nil
}

func openPostgres(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	conn, err := dbPostgres.Open(dbPostgres.Config{
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeSec) * time.Second,
	})
	if err != nil {
		return nil, err
	}
	if err := dbPostgres.EnsureSchema(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// buildClassifier assembles the classifier chain: provider -> cached.
// Returns a nil interface when no provider is configured.
func buildClassifier(cfg config.Config, store db.Store, logger *zap.Logger) (domain.Classifier, error) {
	cc := cfg.Classifier
	timeout := time.Duration(cc.TimeoutSec) * time.Second

	var (
		base      domain.Classifier
		namespace string
	)
	switch cc.Provider {
	case config.ProviderModelServer:
		ms, err := modelserver.NewClassifier(&modelserver.Config{
			PredictURL: cc.ModelServer.PredictURL,
			HealthURL:  cc.ModelServer.HealthURL,
			Labels:     domain.SkinLabels,
			Timeout:    timeout,
			Provider:   config.ProviderModelServer,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		base, namespace = ms, config.ProviderModelServer
	case config.ProviderOpenAI:
		base = openaiCls.NewClassifier(&openaiCls.Config{
			APIKey:    cc.OpenAI.APIKey,
			BaseURL:   cc.OpenAI.BaseURL,
			Model:     cc.OpenAI.Model,
			Labels:    domain.SkinLabels,
			MaxTokens: cc.OpenAI.MaxTokens,
			Provider:  config.ProviderOpenAI,
			Logger:    logger,
		})
		namespace = config.ProviderOpenAI + ":" + strings.ToLower(cc.OpenAI.Model)
	default:
		return nil, nil
	}

	logger.Info("Classifier created", zap.String("provider", cc.Provider), zap.Bool("cache", cc.Cache.Enabled))

	if cc.Cache.Enabled && store != nil {
		ttl := time.Duration(cc.Cache.TTLSec) * time.Second
		return classcache.New(base, store, namespace, ttl, metrics.ClassifierCacheTotal, logger), nil
	}
	return base, nil
}
