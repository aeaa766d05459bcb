package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-store-core/internal/catalog"
	"github.com/ariefcatur/go-store-core/internal/config"
	"github.com/ariefcatur/go-store-core/internal/enrichment"
	"github.com/ariefcatur/go-store-core/internal/httpx"
	"github.com/ariefcatur/go-store-core/internal/inventory"
	"github.com/ariefcatur/go-store-core/internal/invoices"
	kafkax "github.com/ariefcatur/go-store-core/internal/kafka"
	"github.com/ariefcatur/go-store-core/internal/logging"
	"github.com/ariefcatur/go-store-core/internal/observability"
	"github.com/ariefcatur/go-store-core/internal/orders"
	"github.com/ariefcatur/go-store-core/internal/postgres"
	"github.com/ariefcatur/go-store-core/internal/recruiting"
	"github.com/ariefcatur/go-store-core/internal/redisx"
	"github.com/ariefcatur/go-store-core/internal/support"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	lg, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		ServiceName: cfg.ServiceName,
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
	if cfg.MigrateOnStart {
		if err := postgres.Migrate(db, lg); err != nil {
			lg.Fatal("migrate", zap.Error(err))
		}
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers: satu per topic
	created := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, lg)
	changed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024, lg)
	producers := []*kafkax.Producer{created, changed}

	notifiers := orders.MultiNotifier{&orders.KafkaNotifier{Created: created, StatusChanged: changed, Service: cfg.ServiceName}}
	var webhook *orders.WebhookNotifier
	if cfg.OrderWebhookURL != "" {
		webhook = orders.NewWebhookNotifier(cfg.OrderWebhookURL, 256, lg)
		webhook.Start()
		notifiers = append(notifiers, webhook)
	}

	var analyzer enrichment.Analyzer = enrichment.NewHTTPAnalyzer(cfg.AnalyzerURL)
	if cfg.AnalyzerTransport == "kafka" {
		jobs := kafkax.NewProducer(cfg.KafkaBrokers, enrichment.TopicEnrichmentRequested, 256, lg)
		producers = append(producers, jobs)
		analyzer = &enrichment.KafkaAnalyzer{Producer: jobs, Service: cfg.ServiceName}
	}
	for _, p := range producers {
		p.Start()
	}

	// Services
	products := &catalog.Repo{DB: db}
	engine := &orders.Engine{
		Catalog:  products,
		Guard:    &inventory.Guard{DB: db},
		Store:    &orders.Repo{DB: db},
		Notifier: notifiers,
		Log:      lg.Named("orders"),
	}
	generator := &invoices.Generator{
		Orders: engine,
		Store:  &invoices.Repo{DB: db},
		Log:    lg.Named("invoices"),
	}
	engine.OnCancel = generator
	ticketRepo := &support.Repo{DB: db}
	appRepo := &recruiting.Repo{DB: db}
	ticketEnrichment := &enrichment.Service{
		Kind:        enrichment.KindTicket,
		Store:       ticketRepo,
		Analyzer:    analyzer,
		Validate:    enrichment.ValidateSuggestion,
		Timeout:     cfg.EnrichmentTimeout,
		CallbackURL: func(id string) string { return cfg.PublicBaseURL + "/callbacks/tickets/" + id },
		Log:         lg.Named("enrichment"),
	}
	appEnrichment := &enrichment.Service{
		Kind:        enrichment.KindCVApplication,
		Store:       appRepo,
		Analyzer:    analyzer,
		Validate:    enrichment.ValidateScored,
		Timeout:     cfg.EnrichmentTimeout,
		CallbackURL: func(id string) string { return cfg.PublicBaseURL + "/callbacks/applications/" + id },
		Log:         lg.Named("enrichment"),
	}

	router := httpx.NewRouter(lg.Named("http"),
		&httpx.CatalogHandler{Products: products},
		&httpx.OrdersHandler{Orders: engine, Cache: &redisx.StatusCache{RDB: rdb}, Log: lg.Named("http")},
		&httpx.InvoicesHandler{Invoices: generator},
		&httpx.TicketsHandler{
			Tickets:    &support.Service{Store: ticketRepo, Log: lg.Named("support")},
			Enrichment: ticketEnrichment,
			Timeout:    cfg.EnrichmentTimeout,
		},
		&httpx.ApplicationsHandler{
			Applications: &recruiting.Service{Store: appRepo, Log: lg.Named("recruiting")},
			Enrichment:   appEnrichment,
			Timeout:      cfg.EnrichmentTimeout,
		},
	)

	// HTTP server
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpx.Instrument(router, cfg.ServiceName),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		lg.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("listen", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	if webhook != nil {
		webhook.Close()
	}
	for _, p := range producers {
		p.Close() // tutup inbox -> flush & close writer
	}
	for _, p := range producers {
		p.WaitClosed()
	}
	if err := shutdownTracing(ctx2); err != nil {
		lg.Warn("tracing shutdown", zap.Error(err))
	}
}
