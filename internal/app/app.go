package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"contact-intake-go/config"
	"contact-intake-go/internal/database"
	"contact-intake-go/internal/handler"
	"contact-intake-go/internal/intake"
	"contact-intake-go/internal/logging"
	"contact-intake-go/internal/metrics"
	"contact-intake-go/internal/notifier"
	"contact-intake-go/internal/ratelimit"
	"contact-intake-go/internal/repository"
	"contact-intake-go/internal/scheduler"
	"contact-intake-go/internal/server"
)

// Run initializes and starts the application
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logFile, err := logging.Setup(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	defer logFile.Close()

	logrus.Info("Starting Contact Intake Service")

	dbConn, err := database.InitDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close(dbConn)

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	repo := repository.New(dbConn)

	store, closeStore, err := newRateLimitStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to create rate limit store: %w", err)
	}
	defer closeStore()

	limiter := ratelimit.NewLimiter(store,
		ratelimit.Window{Name: "short", Limit: cfg.RateLimit.ShortLimit, Length: cfg.RateLimit.ShortWindow},
		ratelimit.Window{Name: "daily", Limit: cfg.RateLimit.DailyLimit, Length: cfg.RateLimit.DailyWindow},
		ratelimit.WithRecorder(m),
	)

	n, err := notifier.New(cfg.Notifier)
	if err != nil {
		return fmt.Errorf("failed to create notifier: %w", err)
	}
	logrus.Infof("Using %s notifier", cfg.Notifier.Driver)

	supervisor := intake.NewSupervisor(cfg.Intake.MaxInFlight, m)
	pipeline := intake.NewPipeline(repo, n, supervisor,
		intake.WithMetrics(m),
		intake.WithNotifyTimeout(cfg.Notifier.Timeout),
	)

	sweeper := scheduler.NewScheduler(&cfg.Sweeper, repo, m)

	h := handler.NewHandlers(handler.Dependencies{
		Pipeline:      pipeline,
		Limiter:       limiter,
		KeyFunc:       ratelimit.DefaultKeyFunc(cfg.Server.ClientIPHeader, cfg.Server.TrustProxy),
		Messages:      repo,
		Sweeper:       sweeper,
		Metrics:       m,
		Ping:          pinger(dbConn),
		InFlight:      supervisor.InFlight,
		AdminToken:    cfg.Server.AdminToken,
		CountryHeader: cfg.Server.CountryHeader,
	})
	router := server.SetupRouter(h, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("failed to start sweeper: %w", err)
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	if err := sweeper.Stop(); err != nil {
		logrus.Errorf("Failed to stop sweeper: %v", err)
	}
	sweeper.Wait()

	// pending notifications still need the database
	if err := supervisor.Shutdown(ctx); err != nil {
		logrus.Errorf("Background notifications did not finish: %v", err)
	}

	logrus.Info("Server stopped gracefully")
	return nil
}

func newRateLimitStore(cfg *config.Config) (ratelimit.Store, func(), error) {
	switch strings.ToLower(cfg.RateLimit.Backend) {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			// the limiter fails open, so an unreachable Redis is not fatal
			logrus.Warnf("Redis at %s is unreachable: %v", cfg.Redis.Addr, err)
		}

		logrus.Infof("Using Redis rate limit store at %s", cfg.Redis.Addr)
		closeFn := func() {
			if err := rdb.Close(); err != nil {
				logrus.Errorf("Failed to close Redis client: %v", err)
			}
		}
		return ratelimit.NewRedisStore(rdb), closeFn, nil
	case "memory", "":
		logrus.Infof("Using in-memory rate limit store (max %d entries per window)", cfg.RateLimit.MaxEntries)
		return ratelimit.NewMemoryStore(cfg.RateLimit.MaxEntries), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported rate limit backend %q", cfg.RateLimit.Backend)
	}
}

func pinger(db *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return database.Ping(ctx, db)
	}
}
