package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"station-cloud/internal/ingest"
	"station-cloud/internal/observability/metrics"
	obspostgres "station-cloud/internal/observation/infrastructure/postgres"
	"station-cloud/internal/relay"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db)

	repo := obspostgres.NewObservationRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Fatalf("schema error: %v", err)
	}

	broker, err := relay.NewBrokerClient(ctx, relay.BrokerConfig{URL: cfg.BrokerURL}, logger)
	if err != nil {
		logger.Fatalf("broker connect error: %v", err)
	}
	defer broker.Close()

	publisher := relay.NewPublisher(broker, logger)

	simCfg, err := ingest.LoadSimulatorConfig(cfg.StationsConfig)
	if err != nil {
		logger.Fatalf("stations config error: %v", err)
	}
	source, err := ingest.NewSimulator(simCfg, time.Now().UnixNano())
	if err != nil {
		logger.Fatalf("simulator error: %v", err)
	}

	service, err := ingest.NewService(source, repo, publisher, logger)
	if err != nil {
		logger.Fatalf("ingest service error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	server := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	logger.Printf("ingesting readings for %d stations every %ds", len(simCfg.Stations), simCfg.IntervalSeconds)
	if err := service.Run(ctx); err != nil {
		logger.Printf("ingest stopped: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

type config struct {
	DatabaseURL    string
	BrokerURL      string
	HTTPAddr       string
	StationsConfig string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:    getenvDefault("DATABASE_URL", ""),
		BrokerURL:      getenvDefault("BROKER_URL", "redis://localhost:6379/0"),
		HTTPAddr:       getenvDefault("HTTP_ADDR", ":8081"),
		StationsConfig: getenvDefault("STATIONS_CONFIG", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
