package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"theme-vault/internal/accounts"
	"theme-vault/internal/api"
	"theme-vault/internal/catalog"
	"theme-vault/internal/config"
	"theme-vault/internal/db"
	"theme-vault/internal/discord"
	"theme-vault/internal/github"
	"theme-vault/internal/logging"
	"theme-vault/internal/redis"
	"theme-vault/internal/storage"
	"theme-vault/internal/submissions"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_api", "service", "theme-vault", "http_addr", cfg.HTTPAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to PostgreSQL
	dbConn, err := db.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Error("db_connect_failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	if err := dbConn.EnsureSchema(ctx); err != nil {
		logger.Error("schema_ensure_failed", "error", err)
		os.Exit(1)
	}

	// Connect to Redis
	redisClient, err := redis.New(cfg.RedisDSN)
	if err != nil {
		logger.Error("redis_connect_failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// Thumbnail storage: R2 when configured, local simulator otherwise
	var store storage.Client
	if cfg.R2Endpoint != "" {
		store, err = storage.NewS3Client(storage.S3Config{
			Endpoint:  cfg.R2Endpoint,
			Bucket:    cfg.R2Bucket,
			PublicURL: cfg.R2PublicURL,
			Region:    cfg.R2Region,
		})
		if err != nil {
			logger.Error("storage_init_failed", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("storage_simulator_active", "reason", "R2_ENDPOINT not set")
		store = storage.NewSimulator(cfg.R2Bucket, cfg.R2Endpoint)
	}

	discordClient := discord.NewClient(logger, cfg.DiscordAPIBase, cfg.DiscordWebhookURL, cfg.SiteBaseURL)
	discordClient.ConfigureOAuth(cfg.DiscordClientID, cfg.DiscordClientSecret, cfg.DiscordRedirectURI)
	sourceResolver := github.NewResolver(logger, cfg.GithubAPIBase, cfg.GithubToken)

	accountSvc := accounts.NewService(logger, dbConn)
	submissionSvc := submissions.NewService(logger, dbConn, sourceResolver, discordClient, store, cfg.PlaceholderPreview)
	catalogSvc := catalog.NewService(logger, dbConn.Pool, redisClient)

	srv := api.NewServer(logger, dbConn, redisClient, cfg, discordClient, accountSvc, submissionSvc, catalogSvc)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_listen_failed", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("api_started", "addr", cfg.HTTPAddr)

	// graceful shutdown
	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// parar aceitar novas requisições http
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", "error", err)
	} else {
		logger.Info("http_server_stopped")
	}

	// fechar conexões redis
	if err := redisClient.Close(); err != nil {
		logger.Warn("redis_close_error", "error", err)
	} else {
		logger.Info("redis_closed")
	}

	dbConn.Close()
	logger.Info("db_closed")

	logger.Info("api_stopped")
}
