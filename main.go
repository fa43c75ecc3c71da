package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/juanmh10/RAG-AWS/internal/ai"
	"github.com/juanmh10/RAG-AWS/internal/api"
	"github.com/juanmh10/RAG-AWS/internal/blob"
	"github.com/juanmh10/RAG-AWS/internal/config"
	"github.com/juanmh10/RAG-AWS/internal/extract"
	"github.com/juanmh10/RAG-AWS/internal/indexstore"
	"github.com/juanmh10/RAG-AWS/internal/ledger"
	"github.com/juanmh10/RAG-AWS/internal/quota"
	"github.com/juanmh10/RAG-AWS/internal/redis"
	"github.com/juanmh10/RAG-AWS/internal/session"
	"github.com/juanmh10/RAG-AWS/internal/worker"
)

func main() {
	cfgPath := os.Getenv("RAGPDF_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	docs, artifacts, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatal("open blob stores", zap.Error(err))
	}

	var quotaBackend quota.Backend
	if cfg.Storage.Mode == "memory" {
		quotaBackend = quota.NewMemoryBackend()
	} else {
		rdb, err := redis.NewRedisClient(cfg)
		if err != nil {
			logger.Fatal("create redis client", zap.Error(err))
		}
		defer rdb.Close()
		quotaBackend = quota.NewRedisBackend(rdb)
	}

	pdfExtractor, err := extract.NewPDFExtractor(ctx)
	if err != nil {
		logger.Fatal("init pdf extractor", zap.Error(err))
	}
	extractors := extract.NewChain(logger, pdfExtractor, extract.NewPlainTextExtractor())

	embedder, err := ai.NewTextEmbedder(ctx, cfg.AI)
	if err != nil {
		logger.Fatal("init embedder", zap.Error(err))
	}
	completer, err := ai.NewCompleter(ctx, cfg.AI)
	if err != nil {
		logger.Fatal("init chat model", zap.Error(err))
	}

	workers := worker.NewManager(
		cfg.Worker.QueueSize,
		time.Duration(cfg.Worker.IdleTimeoutMinutes)*time.Minute,
		logger,
	)

	sessions := session.NewService(
		docs,
		indexstore.New(artifacts, logger),
		ledger.New(artifacts),
		quota.NewTracker(quotaBackend, cfg.Quota.MaxTokensPerSession),
		extractors,
		embedder,
		completer,
		workers,
		session.Options{
			ChunkSize:    cfg.Index.ChunkSize,
			ChunkOverlap: cfg.Index.ChunkOverlap,
			TopK:         cfg.Index.TopK,
		},
		logger,
	)

	router := gin.Default()
	api.NewHandler(sessions, logger).RegisterRoutes(router)

	logger.Info("server starting", zap.String("address", cfg.Server.Address))
	if err := router.Run(cfg.Server.Address); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func openStores(ctx context.Context, cfg *config.Config) (docs, artifacts blob.Store, err error) {
	if cfg.Storage.Mode == "memory" {
		return blob.NewMemoryStore(), blob.NewMemoryStore(), nil
	}
	docs, err = blob.NewS3Store(ctx, blob.S3Options{
		Bucket:          cfg.Storage.PDFBucket,
		Region:          cfg.Storage.Region,
		Endpoint:        cfg.Storage.Endpoint,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
	})
	if err != nil {
		return nil, nil, err
	}
	artifacts, err = blob.NewS3Store(ctx, blob.S3Options{
		Bucket:          cfg.Storage.IndexBucket,
		Region:          cfg.Storage.Region,
		Endpoint:        cfg.Storage.Endpoint,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
	})
	if err != nil {
		return nil, nil, err
	}
	return docs, artifacts, nil
}
