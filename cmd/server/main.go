package main // Entry point package

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/unit-inventory/internal/config"
	"github.com/iliyamo/unit-inventory/internal/database"
	"github.com/iliyamo/unit-inventory/internal/feed"
	"github.com/iliyamo/unit-inventory/internal/handler"
	"github.com/iliyamo/unit-inventory/internal/logging"
	"github.com/iliyamo/unit-inventory/internal/metrics"
	"github.com/iliyamo/unit-inventory/internal/middleware"
	"github.com/iliyamo/unit-inventory/internal/queue"
	"github.com/iliyamo/unit-inventory/internal/repository"
	"github.com/iliyamo/unit-inventory/internal/router"
	"github.com/iliyamo/unit-inventory/internal/scheduler"
	"github.com/iliyamo/unit-inventory/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	os.Exit(finish(log, run(cfg, log)))
}

// finish logs the outcome of run and flushes the logger, returning the
// process exit code.  os.Exit skips deferred calls, so the flush happens
// here.
func finish(log *zap.Logger, err error) int {
	code := 0
	if err != nil {
		log.Error("server stopped", zap.Error(err))
		code = 1
	} else {
		log.Info("server stopped")
	}
	_ = log.Sync()
	return code
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(database.Options{
		Driver:     cfg.DBDriver,
		User:       cfg.DBUser,
		Pass:       cfg.DBPass,
		Host:       cfg.DBHost,
		Port:       cfg.DBPort,
		Name:       cfg.DBName,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("database ready", zap.String("driver", cfg.DBDriver))

	staff := repository.NewStaffRepo(db)
	if err := handler.EnsureManager(ctx, cfg, staff, log); err != nil {
		return err
	}

	rdb := config.NewRedisClient(log)
	if rdb != nil {
		defer rdb.Close()
	}
	m := metrics.New()

	// ---- Sales feed ----
	if cfg.Feed.URL == "" {
		log.Warn("SALES_FEED_URL not set; inventory is served without the sold overlay")
	}
	client := feed.NewClient(feed.Options{URL: cfg.Feed.URL, Timeout: cfg.Feed.Timeout, Attempts: cfg.Feed.Attempts}, log.Named("feed"))
	sold := feed.NewCache(client, cfg.Feed.MaxAge, log.Named("feed"), m, feed.WithFailureCooldown(cfg.Feed.RetryAfter))

	// ---- Service ----
	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb, log)
	opts := []service.Option{
		service.WithHoldDuration(cfg.HoldDuration),
		service.WithFeedWait(cfg.Feed.Wait),
		service.WithRecorder(m),
	}
	if rdb != nil {
		opts = append(opts, service.WithCache(cache))
	}
	if cfg.RabbitURL != "" {
		pub := queue.NewPublisher(cfg.RabbitURL, log.Named("queue"))
		defer pub.Close()
		opts = append(opts, service.WithEvents(pub))

		go func() {
			if err := queue.StartAuditConsumer(ctx, cfg.RabbitURL, cfg.AuditDir, log.Named("audit")); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit consumer stopped", zap.Error(err))
			}
		}()
	} else {
		log.Info("RABBITMQ_URL not set; unit change events disabled")
	}
	svc := service.NewInventoryService(repository.NewUnitRepo(db), sold, log.Named("inventory"), opts...)
	defer svc.Drain()

	// ---- Background jobs ----
	sched := scheduler.New(log)
	if err := sched.Add("sales-feed-refresh", cfg.Feed.RefreshSchedule, cfg.Feed.Timeout*time.Duration(cfg.Feed.Attempts+1), svc.RefreshFeed); err != nil {
		return err
	}
	if err := sched.Add("lapsed-hold-report", cfg.HoldReportSchedule, time.Minute, func(ctx context.Context) error {
		_, err := svc.ReportLapsedHolds(ctx)
		return err
	}); err != nil {
		return err
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	// ---- HTTP ----
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.BodyLimit("1M"))
	e.Use(middleware.RequestLogger(log.Named("http")))

	router.RegisterRoutes(e, db, m.Handler())
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, staff, log), cfg.JWTSecret)
	router.RegisterUnits(e, handler.NewUnitHandler(svc, log), cfg.JWTSecret, cache,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log.Named("ratelimit")))

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
