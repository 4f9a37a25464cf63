package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"station-cloud/internal/observability/metrics"
	"station-cloud/internal/relay"
	relayhttp "station-cloud/internal/relay/interfaces/http"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Init(nil)

	broker, err := relay.NewBrokerClient(ctx, relay.BrokerConfig{URL: cfg.BrokerURL}, logger)
	if err != nil {
		logger.Fatalf("broker connect error: %v", err)
	}
	defer broker.Close()

	hub := relay.NewHub(logger)
	subscriber, err := relay.NewSubscriber(broker, hub, logger,
		relay.WithWarnThreshold(cfg.BroadcastWarnThreshold),
		relay.WithReconnectBackoff(cfg.ReconnectInitial, cfg.ReconnectMax),
	)
	if err != nil {
		logger.Fatalf("relay subscriber error: %v", err)
	}
	go subscriber.Run(ctx)

	streamHandler, err := relayhttp.NewStreamHandler(hub, subscriber, logger)
	if err != nil {
		logger.Fatalf("stream handler error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/v1/observations/stream", streamHandler)
	mux.Handle("/healthz", relayhttp.NewHealthHandler(subscriber, hub, nil))
	mux.Handle("/readyz", relayhttp.NewReadyHandler(subscriber))
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(mux, logger)}
	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

type config struct {
	HTTPAddr               string
	BrokerURL              string
	BroadcastWarnThreshold time.Duration
	ReconnectInitial       time.Duration
	ReconnectMax           time.Duration
}

func loadConfig() config {
	return config{
		HTTPAddr:               getenvDefault("HTTP_ADDR", ":8080"),
		BrokerURL:              getenvDefault("BROKER_URL", "redis://localhost:6379/0"),
		BroadcastWarnThreshold: getenvDuration("BROADCAST_WARN_THRESHOLD", 200*time.Millisecond),
		ReconnectInitial:       getenvDuration("BROKER_RECONNECT_INITIAL", 500*time.Millisecond),
		ReconnectMax:           getenvDuration("BROKER_RECONNECT_MAX", 30*time.Second),
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush keeps the stream endpoint working behind the logging wrapper.
func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
