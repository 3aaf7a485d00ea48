package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/klubhuset/backend/internal/api"
	"github.com/klubhuset/backend/internal/factory"
	redisstorage "github.com/klubhuset/backend/internal/storage/redis"
)

func main() {
	// A .env file is optional; real deployments set the environment directly
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "klubhuset-server",
		Short:         "Klubhuset community backend: games, polls and admin presence",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v)
		},
	}

	flags := cmd.Flags()
	flags.String("host", "", "listen host (empty for all interfaces)")
	flags.Int("port", 8080, "listen port")
	flags.String("storage", factory.StorageTypeMemory, "storage backend: memory, redis or postgres")
	flags.String("redis-url", "", "redis connection URL (storage=redis)")
	flags.String("postgres-dsn", "", "postgres connection string (storage=postgres)")
	flags.String("jwt-private-key", "keys/private.pem", "path to the RS256 private key")
	flags.String("jwt-public-key", "keys/public.pem", "path to the RS256 public key")
	flags.String("log-level", "info", "log level: debug, info, warn or error")

	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}
	v.SetEnvPrefix("KLUBHUS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return cmd
}

func run(v *viper.Viper) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(v.GetString("log-level")),
	}))
	slog.SetDefault(logger)

	cfg := factory.Config{
		Logger:            logger,
		StorageType:       v.GetString("storage"),
		JWTPrivateKeyPath: v.GetString("jwt-private-key"),
		JWTPublicKeyPath:  v.GetString("jwt-public-key"),
	}

	switch cfg.StorageType {
	case factory.StorageTypeRedis:
		redisURL := v.GetString("redis-url")
		if redisURL == "" {
			return errors.New("redis-url (KLUBHUS_REDIS_URL) required when storage=redis")
		}
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = redisURL
		cfg.RedisConfig = &redisCfg
	case factory.StorageTypePostgres:
		cfg.PostgresDSN = v.GetString("postgres-dsn")
		if cfg.PostgresDSN == "" {
			return errors.New("postgres-dsn (KLUBHUS_POSTGRES_DSN) required when storage=postgres")
		}
	}

	app, err := factory.New(cfg)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("failed to close storage", slog.String("error", err.Error()))
		}
	}()

	serverCfg := api.DefaultServerConfig()
	serverCfg.Host = v.GetString("host")
	serverCfg.Port = v.GetInt("port")
	server := api.NewServer(app.Handler, serverCfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started", slog.String("addr", server.Addr()))

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			return err
		}
	case <-ctx.Done():
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			return err
		}
	}

	logger.Info("server stopped")
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
