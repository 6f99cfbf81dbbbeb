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

	"github.com/joho/godotenv"
	"github.com/sihhaapp/sihha/internal/api"
	"github.com/sihhaapp/sihha/internal/cache"
	"github.com/sihhaapp/sihha/internal/config"
	"github.com/sihhaapp/sihha/internal/database"
	"github.com/sihhaapp/sihha/internal/logging"
	"github.com/sihhaapp/sihha/internal/server"
	"github.com/sihhaapp/sihha/internal/stats"
	"github.com/sihhaapp/sihha/internal/storage"
	"github.com/sihhaapp/sihha/internal/triage"
	"go.uber.org/zap"
)

const serviceName = "sihha"

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			*s = append(*s, v)
		}
	}
	return nil
}

var (
	addr           string
	dsn            string
	signingKey     string
	redisAddr      string
	logLevel       string
	logFormat      string
	allowedOrigins stringSliceFlag
)

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func main() {
	// a missing .env is fine; real deployments set the environment directly
	_ = godotenv.Load()

	flag.StringVar(&addr, "addr", envOr("ADDR", ":"+envOr("PORT", "4000")), "server address")
	flag.StringVar(&dsn, "dsn", envOr("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=sihha sslmode=disable"), "database connection string")
	flag.StringVar(&signingKey, "signing-key", envOr("JWT_SECRET", ""), "base64 encoded signing key")
	flag.StringVar(&redisAddr, "redis-addr", envOr("REDIS_ADDR", ""), "redis address, empty disables the cache")
	flag.StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "info"), "log level")
	flag.StringVar(&logFormat, "log-format", envOr("LOG_FORMAT", "json"), "log format (json or console)")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	if len(allowedOrigins) == 0 {
		allowedOrigins.Set(envOr("CORS_ORIGINS", "http://localhost:3000"))
	}

	logger, err := logging.NewLogger(logLevel, logFormat, serviceName)
	if err != nil {
		log.Fatal("logger:", err)
	}
	defer logger.Sync()

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins)
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	cfg.Redis.Addr = redisAddr

	repo, err := database.NewPgRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open", zap.Error(err))
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("db close", zap.Error(err))
		}
	}()

	if err := repo.Migrate(); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	opts := []api.Option{
		api.WithTriageClient(triage.NewOpenAIClient(cfg.OpenAI.APIKey)),
	}

	if cfg.Redis.Addr != "" {
		kv := cache.NewRedisKV(cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB))
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := kv.Ping(pingCtx); err != nil {
			logger.Warn("redis unavailable, presence throttling disabled", zap.Error(err))
			kv.Close()
		} else {
			opts = append(opts, api.WithCache(kv))
			defer kv.Close()
		}
		cancel()
	}

	if cfg.Storage.Enabled() {
		store, err := storage.NewS3Store(context.Background(), cfg.Storage, logger)
		if err != nil {
			logger.Warn("object storage disabled", zap.Error(err))
		} else {
			opts = append(opts, api.WithObjectStore(store))
		}
	}

	if !cfg.LiveKit.Enabled() {
		logger.Warn("livekit is not configured, live join is disabled")
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	chatServer := server.NewChatServer(logger, statsUpdater)

	app := api.NewApp(mux, logger, chatServer, repo, statsUpdater, cfg, opts...)

	if err := app.EnsureAdminAccount(context.Background()); err != nil {
		logger.Fatal("ensure admin account", zap.Error(err))
	}

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go chatServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Info("received signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server", zap.Error(err))
		}
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := app.Shutdown(shutDownCtx); err != nil {
		logger.Error("HTTP server shutdown", zap.Error(err))
	}

	logger.Info("shutting down chat server")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Error("chat server shutdown", zap.Error(err))
	}

	logger.Info("shutdown complete")
}
