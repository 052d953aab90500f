package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/estatehub/session-service/internal/config"
	apphttp "github.com/estatehub/session-service/internal/http"
	"github.com/estatehub/session-service/internal/lock"
	"github.com/estatehub/session-service/internal/service"
	"github.com/estatehub/session-service/internal/storage"
	"github.com/estatehub/session-service/internal/storage/redisstore"
)

// Константы для определения окружения.
const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// statsLockName — имя распределённой блокировки задания пересчёта метрик:
// при нескольких репликах сервиса пересчёт выполняет ровно одна.
const statsLockName = "cron:session-stats"

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting application", "env", cfg.Env)

	// Корневой контекст по сигналам.
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	// Подключение к Redis c таймаутом.
	storeCtx, storeCancel := context.WithTimeout(rootCtx, 10*time.Second)
	str, err := redisstore.New(storeCtx, cfg.Redis.RedisURL)
	storeCancel()
	if err != nil {
		log.Error("redis_connect_failed", slog.String("err", err.Error()))
		rootCancel()
		os.Exit(1)
	}
	log.Info("redis_connected")

	// Сервис.
	srvc := service.New(str, cfg.Auth)
	log.Info("service_initialized")

	// Метрика активных сессий, обновляется фоновым заданием под блокировкой.
	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "session_active_families",
		Help: "Number of active session families in the store.",
	})
	prometheus.MustRegister(activeSessions)

	var ready int32 // 0 — not ready; 1 — ready

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if atomic.LoadInt32(&ready) == 1 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})

	mux.Handle("/metrics", promhttp.Handler())

	// Основные маршруты сервиса.
	mux.Handle("/", apphttp.NewRouter(srvc, apphttp.Options{
		Logger:  log,
		Timeout: cfg.Timeouts.Service,
	}))

	addr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Фоновый пересчёт метрики активных сессий под распределённой блокировкой.
	locker := lock.New(str.Client())
	startSessionStats(rootCtx, str, locker, log, cfg.Jobs, activeSessions)

	serveErrCh := make(chan error, 1)
	go func() {
		log.Info("http_listen_start", slog.String("addr", addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	atomic.StoreInt32(&ready, 1)

	// Ожидание сигнала завершения или фатальной ошибки сервера.
	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		if err != nil {
			log.Error("http_serve_failed", slog.String("err", err.Error()))
		}
	}

	atomic.StoreInt32(&ready, 0)

	// Graceful stop с таймаутом.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_force_stop", slog.String("err", err.Error()))
	}
	shutdownCancel()

	// Явная очистка перед выходом.
	rootCancel()
	_ = str.Close()

	log.Info("service_stopped")
	os.Exit(0)
}

// setupLogger настраивает slog по окружению.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return log
}

// startSessionStats запускает фоновую задачу, которая периодически считает
// активные семейства сессий и обновляет gauge. Тело задачи обёрнуто в
// распределённую блокировку: пересчёт идёт ровно в одной реплике, остальные
// молча пропускают тик.
func startSessionStats(ctx context.Context, store storage.SessionStore, locker *lock.Locker, log *slog.Logger, cfg config.JobsConfig, gauge prometheus.Gauge) {
	if cfg.StatsPeriod <= 0 {
		return
	}

	go func() {
		t := time.NewTicker(cfg.StatsPeriod)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				// дедлайн на весь тик: захват блокировки и SCAN не должны
				// висеть на недоступном Redis дольше TTL блокировки.
				tickCtx, cancel := context.WithTimeout(ctx, cfg.StatsLockTTL)
				_, err := locker.WithLock(tickCtx, statsLockName, cfg.StatsLockTTL, func(ctx context.Context) error {
					n, err := store.CountFamilies(ctx)
					if err != nil {
						return err
					}
					gauge.Set(float64(n))
					return nil
				})
				cancel()
				if err != nil {
					log.Error("session_stats_failed", slog.String("err", err.Error()))
				}
			}
		}
	}()
}
