package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/suggest/internal/catalogue"
	"github.com/kailas-cloud/suggest/internal/config"
	"github.com/kailas-cloud/suggest/internal/db"
	dbRedis "github.com/kailas-cloud/suggest/internal/db/redis"
	"github.com/kailas-cloud/suggest/internal/domain"
	domcat "github.com/kailas-cloud/suggest/internal/domain/catalogue"
	"github.com/kailas-cloud/suggest/internal/domain/profile"
	logpkg "github.com/kailas-cloud/suggest/internal/logger"
	"github.com/kailas-cloud/suggest/internal/metrics"
	"github.com/kailas-cloud/suggest/internal/repository/audit"
	"github.com/kailas-cloud/suggest/internal/repository/embcache"
	"github.com/kailas-cloud/suggest/internal/repository/knn"
	chiTransport "github.com/kailas-cloud/suggest/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/suggest/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/suggest/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/suggest/internal/usecase/health"
	"github.com/kailas-cloud/suggest/internal/usecase/recommend"
	"github.com/kailas-cloud/suggest/internal/version"
)

func main() {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

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

	logger.Info("Starting suggest API server",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Int("categories", len(cfg.Catalogue.Categories)),
	)

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRecommendationMetrics()

	ctx := context.Background()

	// Redis and Valkey share the rueidis store
	var store db.Store
	if cfg.Database.Enabled() {
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create database store", zap.Error(err))
		}
		defer s.Close()

		if err := s.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Database not ready", zap.Error(err))
		}
		logger.Info("Connected to database", zap.Strings("addrs", cfg.Database.Addrs))
		store = s
	}

	embedder := buildEmbedder(cfg.Embedding, store, logger)

	var publisher catalogue.Publisher
	if store != nil {
		publisher = knn.New(store, knn.HNSWConfig{
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		}, logger)
	}

	loadStart := time.Now()
	registry, err := catalogue.NewLoader(embedder, publisher, logger).Load(ctx, categories(cfg.Catalogue))
	if err != nil {
		logger.Fatal("Failed to load catalogue", zap.Error(err))
	}
	holder := domcat.NewHolder(registry)
	logger.Info("Catalogue loaded",
		zap.Strings("categories", registry.Categories()),
		zap.Duration("took", time.Since(loadStart)),
	)

	builder := profile.NewBuilder(profile.WithExactAge(cfg.Query.ExactAge))
	opts := []recommend.Option{
		recommend.WithTopK(cfg.Recommend.TopK),
		recommend.WithExplainConfig(recommend.ExplainConfig{
			Threshold:    cfg.Explain.SharedThreshold(),
			QueryTopN:    cfg.Explain.QueryTopN,
			DocumentTopN: cfg.Explain.DocumentTopN,
			MinNgram:     cfg.Explain.NgramMin,
			MaxNgram:     cfg.Explain.NgramMax,
		}),
	}
	if w := buildAudit(cfg.Audit, store); w != nil {
		opts = append(opts, recommend.WithAudit(w, cfg.Audit.IsRequired()))
	}
	recommendSvc := recommend.New(holder, builder, embedder, opts...)

	// Pass an untyped nil when there is no database: a nil *Store in the interface is not nil.
	var pinger healthuc.DBPinger
	if store != nil {
		pinger = store
	}
	healthSvc := healthuc.New(pinger, embedder, holder)

	server := chiTransport.NewServer(recommendSvc, healthSvc, logger)
	router := chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Normalizing.
func buildEmbedder(cfg config.EmbeddingConfig, store db.Store, logger *zap.Logger) *domain.NormalizingEmbedder {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		User:       cfg.User,
		Provider:   cfg.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if cfg.Cache && store != nil {
		embedder = embcache.New(base, store, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider, cfg.Model, cfg.MaxBatch, logger)

	// outermost so cached raw vectors stay provider-native
	return domain.NewNormalizingEmbedder(embedder)
}

func buildAudit(cfg config.AuditConfig, store db.Store) recommend.AuditWriter {
	switch cfg.Driver {
	case config.AuditFile:
		return audit.NewFileWriter(cfg.Path, cfg.PerRequest)
	case config.AuditRedis:
		if store != nil {
			return audit.NewRedisWriter(store, time.Duration(cfg.TTLSec)*time.Second)
		}
	}
	return nil
}

func categories(cfg config.CatalogueConfig) []catalogue.Category {
	out := make([]catalogue.Category, len(cfg.Categories))
	for i, c := range cfg.Categories {
		out[i] = catalogue.Category{
			Name:           c.Name,
			Dir:            c.Dir,
			Backend:        catalogue.Backend(c.Backend),
			IndexName:      c.IndexName,
			Metric:         domcat.Metric(c.Metric),
			Stopwords:      c.Stopwords,
			ChunkMaxLength: c.ChunkMaxLength,
		}
	}
	return out
}
