// Regwatch Worker — выполняет jobs исследований.
//
// Worker:
//   - получает research.requested из RabbitMQ
//   - подбирает забытые queued jobs опросом БД
//   - вызывает внешний сервис исследований и сохраняет результат
//
// Workers масштабируются горизонтально: захват job — переход
// queued → running с проверкой статуса в БД.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Regwatch/internal/config"
	"github.com/shaiso/Regwatch/internal/mq"
	"github.com/shaiso/Regwatch/internal/repo"
	"github.com/shaiso/Regwatch/internal/telemetry"
	"github.com/shaiso/Regwatch/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.Worker.ResearchURL == "" {
		fmt.Fprintln(os.Stderr, "config: RESEARCH_URL is required")
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	logger.Info("starting regwatch-worker")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	mqConn, err := mq.Dial(ctx, cfg.RabbitURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
	} else {
		defer mqConn.Close()
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
	}

	w := worker.New(worker.Config{
		Jobs:         repo.NewJobRepo(pool),
		Researcher:   &worker.HTTPResearcher{BaseURL: cfg.Worker.ResearchURL},
		Conn:         mqConn,
		PollInterval: cfg.Worker.PollInterval,
		Logger:       logger,
	})
	w.Start(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":" + cfg.WorkerPort
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	w.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)

	logger.Info("regwatch-worker stopped")
}
