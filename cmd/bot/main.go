package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fish-shop/seafood-bot/internal/bot"
	"github.com/fish-shop/seafood-bot/internal/database"
	"github.com/fish-shop/seafood-bot/internal/health"
	"github.com/fish-shop/seafood-bot/internal/i18n"
	"github.com/fish-shop/seafood-bot/internal/idempotency"
	"github.com/fish-shop/seafood-bot/internal/lifecycle"
	"github.com/fish-shop/seafood-bot/internal/middleware"
	"github.com/fish-shop/seafood-bot/internal/moltin"
	"github.com/fish-shop/seafood-bot/internal/ratelimit"
	"github.com/fish-shop/seafood-bot/internal/repository"
	"github.com/fish-shop/seafood-bot/internal/state"
	"github.com/fish-shop/seafood-bot/internal/user"
	"github.com/fish-shop/seafood-bot/internal/usercache"
	"github.com/fish-shop/seafood-bot/pkg/config"
	"github.com/fish-shop/seafood-bot/pkg/graceful"
	"github.com/fish-shop/seafood-bot/pkg/logger"
	"github.com/fish-shop/seafood-bot/pkg/metrics"
	appredis "github.com/fish-shop/seafood-bot/pkg/redis"

	_ "github.com/lib/pq"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	log, levelVar := logger.New(*cfg)
	config.WatchLogLevel(v, func(level string) {
		levelVar.Set(logger.ParseLevel(level))
		log.Info("log level changed", slog.String("level", level))
	})

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		}); err != nil {
			log.Error("failed to initialize sentry", slog.Any("error", err))
			os.Exit(1)
		}
	}

	log.Info("starting seafood shop bot", slog.String("env", cfg.AppEnv))

	if err := run(ctx, cfg, log); err != nil {
		log.Error("bot terminated with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		return err
	}

	migrator := database.NewMigrator(db, log)
	if err := migrator.ApplyDir(ctx, "migrations"); err != nil {
		return err
	}

	redisClient, err := appredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}

	catalog, err := i18n.LoadFromDir(cfg.I18n.Dir, cfg.I18n.DefaultLang)
	if err != nil {
		return err
	}
	tr := catalog.Translator(cfg.I18n.DefaultLang)

	storage := state.NewRedisStorage(redisClient, log)
	fsm := state.NewMachine(storage, log, redisClient)

	tokens := moltin.NewTokenSource(cfg.Moltin.BaseURL, cfg.Moltin.ClientID, &http.Client{Timeout: cfg.Moltin.Timeout})
	shop := moltin.NewClient(cfg.Moltin, tokens, log)

	idempotencyManager := idempotency.NewManager(idempotency.NewRedisStore(redisClient, log), log)

	limiter := ratelimit.NewAdaptiveLimiter(
		ratelimit.NewRedisLimiter(redisClient, log),
		ratelimit.NewMemoryLimiter(log),
		log,
	)
	rateLimitMw := middleware.NewRateLimitMiddleware(limiter, ratelimit.NewRules(cfg.RateLimit), tr, log)

	userRepo := repository.NewUserRepository(db, log)
	users := user.NewService(userRepo, usercache.NewCache(redisClient, 15*time.Minute), log)

	b, err := bot.New(*cfg, log, fsm, shop, tr, idempotencyManager, rateLimitMw, users)
	if err != nil {
		return err
	}

	checker := health.NewChecker(log)
	checker.AddCheck("postgres", health.NewDBChecker(db))
	checker.AddCheck("redis", health.NewRedisChecker(redisClient))
	checker.AddCheck("telegram", health.NewTelegramChecker(b.Telebot()))
	checker.AddCheck("moltin", health.NewMoltinChecker(tokens))

	server := graceful.NewServer(log, cfg.Server.Port, opsMux(log, checker), cfg.Server.ShutdownTimeout)

	stateCollector := metrics.NewStateCollector(fsm)
	go stateCollector.Run(ctx)

	go b.Start()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Run(ctx)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	shutdown := lifecycle.NewShutdown(log)
	shutdown.Register("telegram_bot", func(context.Context) error {
		b.Stop()
		return nil
	})
	shutdown.Register("postgres", func(context.Context) error {
		return db.Close()
	})
	shutdown.Register("redis", func(context.Context) error {
		return redisClient.Close()
	})
	if cfg.Sentry.Enabled {
		shutdown.Register("sentry", func(context.Context) error {
			sentry.Flush(2 * time.Second)
			return nil
		})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	return shutdown.Execute(shutdownCtx)
}

func opsMux(log *slog.Logger, checker *health.Checker) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		results := checker.Check(r.Context())

		status := http.StatusOK
		for _, v := range results {
			if v != "OK" {
				status = http.StatusServiceUnavailable
				break
			}
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		for name, result := range results {
			_, _ = w.Write([]byte(name + ": " + result + "\n"))
		}
	})

	return logger.Middleware(middleware.HTTPLogging(log)(mux))
}
