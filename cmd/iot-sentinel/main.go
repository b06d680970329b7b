package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"iot-sentinel/internal/api"
	"iot-sentinel/internal/config"
	"iot-sentinel/internal/detect"
	"iot-sentinel/internal/escalate"
	"iot-sentinel/internal/metrics"
	"iot-sentinel/internal/middleware"
	"iot-sentinel/internal/storage"
	"iot-sentinel/internal/utils"
)

// bearerToken attributes audit entries to the presented API token.
// Token verification belongs to the upstream gateway; the raw token is
// an opaque identity here.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return token
	}
	return ""
}

func main() {
	var (
		configFile = flag.String("config", "configs/sentinel.yaml", "Configuration file path (YAML)")
		port       = flag.String("port", "", "Override server port")
	)
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Printf("Failed to load config %s: %v\n", *configFile, err)
		fmt.Println("Using default configuration...")
		cfg = config.Default()
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.Format)

	m := metrics.New()
	store := storage.NewStore(storage.Limits{
		MaxReadings: cfg.Storage.MaxReadings,
		MaxEvents:   cfg.Storage.MaxEvents,
		MaxAlerts:   cfg.Storage.MaxAlerts,
		MaxAuditLog: cfg.Storage.MaxAuditLog,
	}, logger)

	engine := detect.NewEngine(*cfg, store, logger)
	sink := escalate.NewSink(store, m, logger)
	guard := middleware.NewGuard(cfg.RateLimits, cfg.Suspicion, logger)
	analyzer := middleware.NewTrafficAnalyzer(cfg.Suspicion, guard, sink, logger)
	interceptor := middleware.NewInterceptor(guard, analyzer, sink, store, m, logger)
	interceptor.SetUserResolver(bearerToken)

	handlers := api.NewHandlers(store, engine, sink, guard, m, logger)
	router := api.NewRouter(handlers, interceptor, m.Handler())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Maintenance: decay suspicion counters, prune rate windows, expire
	// blocks.
	stopSweeper := make(chan struct{})
	go guard.RunSweeper(time.Duration(cfg.Suspicion.SweepIntervalSeconds)*time.Second, stopSweeper)

	// Periodic retraining, never on the request path. The first attempt
	// runs at startup; with too little history the engine stays in
	// rule-based mode.
	go func() {
		if engine.Train(ctx) {
			m.ModelActive.Set(1)
		}
		ticker := time.NewTicker(time.Duration(cfg.Detection.RetrainIntervalHours) * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if engine.Train(ctx) {
					m.ModelActive.Set(1)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutting down...")
		close(stopSweeper)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Server shutdown error: %v", err)
		}
	}()

	logger.Infof("iot-sentinel listening on port %s", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
