// Command watcher runs the protocol monitoring daemon: it mirrors ledger
// state through the block-synchronized store, flags troves approaching
// liquidation, previews redemptions and serves health and metrics endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hydroclient/config"
	"hydroclient/decimal"
	"hydroclient/ledger/rpc"
	"hydroclient/observability/logging"
	telemetry "hydroclient/observability/otel"
	"hydroclient/services/watcher/monitor"
	"hydroclient/store"
)

func main() {
	var cfgPath string
	var previewRaw string
	flag.StringVar(&cfgPath, "config", "", "path to an optional YAML config file")
	flag.StringVar(&previewRaw, "preview-amount", "0", "HUSD amount to preview redeeming each block")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("validate config: %v", err)
	}

	logger := logging.Setup("hydro-watcher", cfg.Environment, logging.Options{File: cfg.LogFile})
	logger.Info("starting watcher", "config", cfg.Sanitized())

	if strings.TrimSpace(cfg.OTELEndpoint) != "" {
		shutdown, err := telemetry.Init(context.Background(), telemetry.Config{
			ServiceName: "hydro-watcher",
			Environment: cfg.Environment,
			Endpoint:    cfg.OTELEndpoint,
			Insecure:    cfg.OTELInsecure,
			Headers:     telemetry.ParseHeaders(cfg.OTELHeaders),
			Metrics:     true,
			Traces:      true,
		})
		if err != nil {
			log.Fatalf("init telemetry: %v", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	preview, err := decimal.Parse(previewRaw)
	if err != nil {
		log.Fatalf("parse preview amount: %v", err)
	}

	ledgerClient, err := rpc.NewClient(rpc.Config{
		BaseURL:            cfg.LedgerRPCURL,
		BearerToken:        cfg.LedgerRPCToken,
		SharedSecretHeader: cfg.SharedSecretHeader,
		SharedSecretValue:  cfg.SharedSecretValue,
		TLSClientCAFile:    cfg.TLSClientCAFile,
		AllowInsecure:      cfg.AllowInsecure,
		PollInterval:       cfg.PollInterval,
	})
	if err != nil {
		log.Fatalf("ledger client: %v", err)
	}

	stateStore, err := store.New(store.Config{
		Reader:             ledgerClient,
		Watcher:            ledgerClient,
		User:               cfg.User(),
		Frontend:           cfg.Frontend(),
		MinRefreshInterval: cfg.MinRefreshInterval,
		Logger:             logger,
	})
	if err != nil {
		log.Fatalf("store: %v", err)
	}

	riskMonitor, err := monitor.New(monitor.Config{
		Reader:        ledgerClient,
		Store:         stateStore,
		Logger:        logger,
		PreviewAmount: preview,
	})
	if err != nil {
		log.Fatalf("monitor: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := stateStore.Start(ctx); err != nil {
		log.Fatalf("start store: %v", err)
	}
	defer stateStore.Stop()

	monitorErr := make(chan error, 1)
	go func() {
		monitorErr <- riskMonitor.Run(ctx)
	}()

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if stateStore.State() != store.Loaded {
			http.Error(w, stateStore.State().String(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("watcher listening", "addr", cfg.Listen)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "err", err)
		}
	case err := <-monitorErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("monitor failed", "err", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "err", err)
	}
	os.Exit(0)
}
