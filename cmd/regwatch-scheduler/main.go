// Regwatch Scheduler — каждые SCHED_TICK_INTERVAL выбирает due
// расписания и ставит исследования в очередь.
//
// Рассчитан на единственный экземпляр: advisory lock в PostgreSQL
// не даёт запустить второй против той же БД.
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
	"github.com/shaiso/Regwatch/internal/scheduler"
	"github.com/shaiso/Regwatch/internal/telemetry"
	"github.com/shaiso/Regwatch/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	logger.Info("starting regwatch-scheduler")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

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

	lock, err := repo.TryLockScheduler(ctx, pool)
	if err != nil {
		logger.Error("failed to take scheduler lock", "error", err)
		os.Exit(1)
	}
	if lock == nil {
		logger.Error("another scheduler instance holds the lock, exiting")
		os.Exit(1)
	}
	defer lock.Release(context.Background())
	logger.Info("scheduler lock acquired")

	scheduleRepo := repo.NewScheduleRepo(pool)
	jobRepo := repo.NewJobRepo(pool)

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

	sched := scheduler.New(scheduler.Config{
		Schedules: scheduleRepo,
		Guard:     scheduler.NewDuplicateGuard(jobRepo, logger),
		Dispatcher: scheduler.NewDispatcher(
			worker.NewQueueExecutor(jobRepo, notifier, logger),
			cfg.Scheduler.DispatchTimeout,
			logger,
		),
		Logger:    logger,
		Interval:  cfg.Scheduler.TickInterval,
		BatchSize: cfg.Scheduler.BatchSize,
	})
	sched.Start(ctx)

	// HTTP: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":" + cfg.SchedPort
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)

	logger.Info("regwatch-scheduler stopped")
}
