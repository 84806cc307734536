package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/your-org/modflow/internal/channel"
	"github.com/your-org/modflow/internal/classify"
	"github.com/your-org/modflow/internal/job"
	"github.com/your-org/modflow/internal/moderation"
	"github.com/your-org/modflow/pkg/awsclient"
	"github.com/your-org/modflow/pkg/config"
	"github.com/your-org/modflow/pkg/kafka"
	"github.com/your-org/modflow/pkg/logger"
	"github.com/your-org/modflow/pkg/storage/objectstore"
	"github.com/your-org/modflow/pkg/tracing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logr, err := logger.New(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	traceShutdown, err := tracing.Init(ctx, tracing.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
		Attributes:  parseResourceAttributes(cfg.Tracing.ResourceAttr),
		ServiceName: cfg.App.Name,
	})
	if err != nil {
		logr.Fatal("init tracing", zap.Error(err))
	}
	defer traceShutdown(context.Background()) //nolint:errcheck

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.ResultsTopic,
		BatchSize:    cfg.Kafka.BatchSize,
		BatchTimeout: cfg.Kafka.BatchTimeout,
		Compression:  kafka.CompressionFromString(cfg.Kafka.CompressionCodec),
		RequiredAcks: kafkago.RequireAll,
		MaxAttempts:  cfg.Kafka.Retries,
	})

	store, err := objectstore.New(ctx, objectstore.Config{
		Provider:  cfg.Storage.Provider,
		Endpoint:  cfg.Storage.Endpoint,
		Region:    cfg.Storage.Region,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		logr.Fatal("init object store", zap.Error(err))
	}

	awsCfg, err := awsclient.Load(ctx, awsclient.Config{
		Region:    cfg.AWS.Region,
		AccessKey: cfg.AWS.AccessKey,
		SecretKey: cfg.AWS.SecretKey,
		Endpoint:  cfg.AWS.Endpoint,
	})
	if err != nil {
		logr.Fatal("init AWS config", zap.Error(err))
	}

	sqsClient := sqs.NewFromConfig(awsCfg)
	channels := channel.NewManager(channel.Params{
		SNS:       sns.NewFromConfig(awsCfg),
		SQS:       sqsClient,
		IAM:       iam.NewFromConfig(awsCfg),
		Publisher: cfg.Moderation.PublisherService,
		Logger:    logr,
	})
	jobs := job.NewController(rekognition.NewFromConfig(awsCfg), sqsClient, logr)

	service := moderation.NewService(moderation.Params{
		Store:    store,
		Channels: channels,
		Jobs:     jobs,
		Producer: producer,
		Taxonomy: classify.Default,
		Defaults: moderation.Defaults{
			MinConfidence: cfg.Moderation.MinConfidence,
			PollInterval:  cfg.Moderation.PollInterval,
			AwaitTimeout:  cfg.Moderation.AwaitTimeout,
			ChannelPrefix: cfg.Moderation.ChannelPrefix,
			StagingPrefix: cfg.Moderation.StagingPrefix,
		},
		Logger: logr,
	})

	handler := moderation.NewHTTPHandler(service, logr, cfg.Upload.MaxSizeBytes, cfg.Upload.MultipartMemBytes, cfg.HTTP.WriteTimeout)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logr.Error("http server shutdown failed", zap.Error(err))
		}
		if err := producer.Close(shutdownCtx); err != nil {
			logr.Error("producer shutdown failed", zap.Error(err))
		}
	}()

	logr.Info("moderation service starting", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Fatal("http server failed", zap.Error(err))
	}
}

func parseResourceAttributes(raw string) map[string]string {
	if raw == "" {
		return map[string]string{}
	}
	attrs := map[string]string{}
	pairs := strings.Split(raw, ",")
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		if !strings.Contains(pair, "=") {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		attrs[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return attrs
}
