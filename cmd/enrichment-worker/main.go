package main

import (
	"context"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ariefcatur/go-store-core/internal/config"
	"github.com/ariefcatur/go-store-core/internal/enrichment"
	kafkax "github.com/ariefcatur/go-store-core/internal/kafka"
	"github.com/ariefcatur/go-store-core/internal/logging"
	"github.com/ariefcatur/go-store-core/internal/observability"
	"github.com/ariefcatur/go-store-core/internal/postgres"
	"github.com/ariefcatur/go-store-core/internal/recruiting"
	"github.com/ariefcatur/go-store-core/internal/redisx"
	"github.com/ariefcatur/go-store-core/internal/support"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// The worker applies analyzer completions delivered over Kafka and sweeps
// enrichment requests that never got an answer. It needs no analyzer client.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	lg, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName+"-enrichment")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		ServiceName: cfg.ServiceName + "-enrichment",
		Endpoint:    cfg.OtelEndpoint,
		AuthHeader:  cfg.OtelAuthHeader,
	})
	if err != nil {
		lg.Fatal("tracing setup", zap.Error(err))
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		lg.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	elog := lg.Named("enrichment")
	tickets := &enrichment.Service{
		Kind:     enrichment.KindTicket,
		Store:    &support.Repo{DB: db},
		Validate: enrichment.ValidateSuggestion,
		Timeout:  cfg.EnrichmentTimeout,
		Log:      elog,
	}
	applications := &enrichment.Service{
		Kind:     enrichment.KindCVApplication,
		Store:    &recruiting.Repo{DB: db},
		Validate: enrichment.ValidateScored,
		Timeout:  cfg.EnrichmentTimeout,
		Log:      elog,
	}

	handler := &enrichment.CompletionHandler{
		Receivers: map[enrichment.Kind]enrichment.Receiver{
			enrichment.KindTicket:        tickets,
			enrichment.KindCVApplication: applications,
		},
		Dedup: &redisx.Dedup{RDB: rdb, Service: "enrichment"},
		Log:   elog,
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.EnrichmentGroup, enrichment.TopicEnrichmentCompleted, cfg.EnrichmentWorkers, lg)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		lg.Info("completion consumer started",
			zap.String("group", cfg.EnrichmentGroup),
			zap.String("topic", enrichment.TopicEnrichmentCompleted),
			zap.Int("workers", cfg.EnrichmentWorkers),
		)
		if err := cons.Start(ctx, handler.Handle); err != nil {
			lg.Error("consumer exit", zap.Error(err))
			stop()
		}
	}()
	go func() {
		defer wg.Done()
		tickets.Sweep(ctx, cfg.EnrichmentSweepInterval)
	}()
	go func() {
		defer wg.Done()
		applications.Sweep(ctx, cfg.EnrichmentSweepInterval)
	}()

	<-ctx.Done()
	lg.Info("shutting down worker")
	wg.Wait()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := shutdownTracing(ctx2); err != nil {
		lg.Warn("tracing shutdown", zap.Error(err))
	}
}
