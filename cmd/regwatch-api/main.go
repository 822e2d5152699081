// Regwatch API — HTTP API для управления расписаниями исследований,
// просмотра jobs и ручного запуска.
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

	"github.com/shaiso/Regwatch/internal/api"
	"github.com/shaiso/Regwatch/internal/config"
	"github.com/shaiso/Regwatch/internal/mq"
	"github.com/shaiso/Regwatch/internal/repo"
	"github.com/shaiso/Regwatch/internal/scheduler"
	"github.com/shaiso/Regwatch/internal/telemetry"
	"github.com/shaiso/Regwatch/internal/worker"
)

var startTime = time.Now()

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	logger.Info("starting regwatch-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := repo.Migrate(ctx, pool); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	scheduleRepo := repo.NewScheduleRepo(pool)
	jobRepo := repo.NewJobRepo(pool)

	// RabbitMQ опционален: без него worker найдёт jobs опросом БД
	var notifier worker.Notifier
	mqConn, err := mq.Dial(ctx, cfg.RabbitURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, jobs will be picked up by polling", "error", err)
	} else {
		defer mqConn.Close()
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		notifier = mq.NewPublisher(mqConn, logger)
	}

	dispatcher := scheduler.NewDispatcher(
		worker.NewQueueExecutor(jobRepo, notifier, logger),
		cfg.Scheduler.DispatchTimeout,
		logger,
	)

	handler := api.NewHandler(api.Config{
		Schedules:          scheduler.NewService(scheduler.ServiceConfig{Store: scheduleRepo, Logger: logger}),
		Jobs:               jobRepo,
		Guard:              scheduler.NewDuplicateGuard(jobRepo, logger),
		Dispatcher:         dispatcher,
		DispatchRatePerMin: cfg.DispatchRatePerMin,
		Logger:             logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime).Round(time.Second))
	})
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	addr := ":" + cfg.APIPort
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
