package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/podgraph/backend/internal/queue"
	"github.com/podgraph/backend/internal/server"
	"github.com/podgraph/backend/internal/storage"
	"github.com/podgraph/backend/internal/util"
	"github.com/podgraph/backend/pkg/graph"
	"github.com/podgraph/backend/pkg/leaselock"
	"github.com/podgraph/backend/pkg/logger"
	"github.com/podgraph/backend/pkg/logger/console"
	"github.com/podgraph/backend/pkg/store"
	graphstorage "github.com/podgraph/backend/pkg/store/pgx"
	"github.com/podgraph/backend/pkg/youtube"
)

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	aiClient, err := util.NewAIClient()
	if err != nil {
		logger.Fatal("Could not create AI client", "err", err)
	}

	// Transcript cache
	var cache storage.TranscriptCache
	if bucket := util.GetEnv("AWS_BUCKET"); bucket != "" {
		s3Client, err := storage.NewS3Client(ctx)
		if err != nil {
			logger.Fatal("Could not create S3 client", "err", err)
		}
		cache = storage.NewS3TranscriptCache(s3Client, bucket)
	} else {
		logger.Warn("AWS_BUCKET not set, transcripts are cached in memory only")
		cache = storage.NewMemoryTranscriptCache()
	}

	// Init pgx client
	pgConn, err := server.NewPool(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	graphClient, err := graph.NewGraphClient(graph.NewGraphClientParams{
		EmbeddingBatchSize: util.GetEnvInt("EMBED_BATCH_SIZE", store.DefaultEmbeddingBatchSize),
	})
	if err != nil {
		logger.Fatal("Could not create graph client", "err", err)
	}

	deps := queue.IngestDeps{
		Store:            graphstorage.NewGraphDBStorageWithConnection(pgConn),
		AI:               aiClient,
		Cache:            cache,
		YouTube:          youtube.NewClient(),
		Locker:           leaselock.New(pgConn),
		Graph:            graphClient,
		CaptionsLang:     util.GetEnvString("CAPTIONS_LANG", "en"),
		MaxCaptionTokens: util.GetEnvInt("CAPTIONS_MAX_TOKENS", 0),
		LockTTL:          time.Duration(util.GetEnvInt("INGEST_LOCK_TTL_SEC", 600)) * time.Second,
	}

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{queue.IngestQueue}); err != nil {
		logger.Fatal("Failed to setup queues", "err", err)
	}

	// Ingestion is expensive, only one message is in flight per worker
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, true); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := consumerCh.Consume(
		queue.IngestQueue,
		queue.IngestQueue+"_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.IngestQueue, "err", err)
	}

	logger.Info("Listening for messages", "queue", queue.IngestQueue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Info("Message channel closed", "queue", queue.IngestQueue)
					stop()
					return
				}

				startTime := time.Now()
				logger.Info("Received message", "queue", queue.IngestQueue)

				processingErr := queue.ProcessIngestMessage(ctx, deps, string(msg.Body))
				if processingErr != nil {
					logger.Error("Error processing message", "queue", queue.IngestQueue, "err", processingErr)
					retry := queue.ShouldRetry(msg, processingErr)
					if retry {
						if err := queue.ResetJobForRetry(ctx, deps.Store, msg.Body, processingErr); err != nil {
							logger.Warn("Failed to reset job for retry", "err", err)
						}
					}
					queue.HandleProcessingError(ctx, consumerCh, msg, queue.IngestQueue, retry)
				} else {
					if err := msg.Ack(false); err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", queue.IngestQueue)
				}

				metrics := aiClient.GetMetrics()
				logger.Info(
					"AI Metrics",
					"input_tokens", metrics.InputTokens,
					"output_tokens", metrics.OutputTokens,
					"total_tokens", metrics.TotalTokens,
					"duration", formatDuration(time.Duration(metrics.DurationMs)*time.Millisecond),
				)
				logger.Info("Processing time", "duration", formatDuration(time.Since(startTime)))
				logger.Info("Waiting for next message")
				aiClient.ResetMetrics()
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}
