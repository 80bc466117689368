package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/your-org/clipflow/internal/acquire"
	"github.com/your-org/clipflow/internal/backend"
	"github.com/your-org/clipflow/internal/discord"
	"github.com/your-org/clipflow/internal/ingestion"
	"github.com/your-org/clipflow/internal/normalize"
	"github.com/your-org/clipflow/pkg/config"
	"github.com/your-org/clipflow/pkg/kafka"
	"github.com/your-org/clipflow/pkg/logger"
	"github.com/your-org/clipflow/pkg/metrics"
	"github.com/your-org/clipflow/pkg/storage/objectstore"
	"github.com/your-org/clipflow/pkg/tracing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logr, err := logger.New(logger.Options{
		Level:   cfg.App.LogLevel,
		Console: cfg.App.Environment == "development",
		Service: cfg.App.Name,
		Version: cfg.App.Version,
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	traceShutdown, err := tracing.Init(ctx, tracing.Config{
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRatio:    cfg.Tracing.SampleRatio,
		Attributes:     tracing.ParseResourceAttributes(cfg.Tracing.ResourceAttr),
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
	})
	if err != nil {
		logr.Fatal("init tracing", zap.Error(err))
	}
	defer traceShutdown(context.Background()) //nolint:errcheck

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	api := backend.NewClient(backend.ClientParams{
		BaseURL:      cfg.Backend.URL,
		Username:     cfg.Backend.Username,
		Password:     cfg.Backend.Password,
		HTTPClient:   &http.Client{},
		MaxErrorBody: cfg.Backend.MaxErrorBody,
	})
	session := backend.NewSession(backend.SessionParams{
		Auth:          api,
		Logger:        logr,
		Metrics:       m,
		RefreshPeriod: cfg.Backend.RefreshPeriod,
		RefreshTick:   cfg.Backend.RefreshTick,
		LoginTimeout:  cfg.Backend.LoginTimeout,
	})
	if err := session.Refresh(ctx); err != nil {
		logr.Fatal("initial backend login", zap.Error(err))
	}

	params := ingestion.Params{
		Uploader:      api,
		Credentials:   session,
		Logger:        logr,
		Metrics:       m,
		UploadTimeout: cfg.Backend.UploadTimeout,
		QueueSize:     cfg.Discord.QueueSize,
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.OutcomeTopic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			Compression:  kafka.CompressionFromString(cfg.Kafka.CompressionCodec),
			RequiredAcks: kafkago.RequireAll,
			MaxAttempts:  cfg.Kafka.Retries,
		})
		defer producer.Close() //nolint:errcheck
		params.Publisher = producer
	}

	if cfg.Storage.Provider != "" {
		store, err := objectstore.New(objectstore.Config{
			Provider:  cfg.Storage.Provider,
			Endpoint:  cfg.Storage.Endpoint,
			Region:    cfg.Storage.Region,
			Bucket:    cfg.Storage.Bucket,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			logr.Fatal("init object store", zap.Error(err))
		}
		defer store.Close() //nolint:errcheck
		params.Archive = store
	}

	params.Acquirer = acquire.New(acquire.Params{
		WorkDir:    cfg.Pipeline.WorkDir,
		Extensions: cfg.Pipeline.Extensions,
		Downloader: acquire.NewYtDLP(cfg.Pipeline.YtDLPPath, cfg.Pipeline.RateLimitBytes),
		HTTPClient: &http.Client{},
		RateLimit:  cfg.Pipeline.RateLimitBytes,
		Timeout:    cfg.Pipeline.DownloadTimeout,
		Logger:     logr,
	})

	if cfg.Normalize.Enabled {
		params.Normalizer = normalize.New(normalize.NewFFmpeg(cfg.Normalize.FfmpegPath, normalize.Profile{
			VideoCodec: cfg.Normalize.VideoCodec,
			AudioCodec: cfg.Normalize.AudioCodec,
			Preset:     cfg.Normalize.Preset,
			CRF:        cfg.Normalize.CRF,
		}), cfg.Normalize.Timeout, logr)
	}

	bot, err := discord.New(cfg.Discord.Token, cfg.Discord.Status, logr)
	if err != nil {
		logr.Fatal("init discord", zap.Error(err))
	}
	selfID, err := bot.SelfID(ctx)
	if err != nil {
		logr.Fatal("resolve bot user", zap.Error(err))
	}
	params.Acks = bot
	params.Classifier = ingestion.NewClassifier(ingestion.Rules{
		ChannelIDs: cfg.Discord.ChannelIDs,
		SelfID:     selfID,
		MediaHosts: cfg.Pipeline.MediaHosts,
		CDNHosts:   cfg.Pipeline.CDNHosts,
		Extensions: cfg.Pipeline.Extensions,
	})

	service := ingestion.NewService(params)

	handler := ingestion.NewHTTPHandler(service, session, reg, logr)
	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logr.Info("ops server starting", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("ops server failed", zap.Error(err))
			stop()
		}
	}()

	go session.Run(ctx)

	if err := bot.Start(ctx, service); err != nil {
		logr.Fatal("start discord", zap.Error(err))
	}

	logr.Info("clipflow running", zap.Strings("channels", cfg.Discord.ChannelIDs))
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("event lane stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := bot.Close(); err != nil {
		logr.Error("discord close failed", zap.Error(err))
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("ops server shutdown failed", zap.Error(err))
	}
}
