// Command postauth-server serves the postAuth engine over HTTP.
//
// Settings come from an optional YAML file (-config, or ./postauth.yaml) with
// POSTAUTH_* environment overrides; a .env file is loaded first when present.
//
// Run a throwaway development instance:
//
//	POSTAUTH_APP_ENV=development \
//	POSTAUTH_STORE_DRIVER=miniredis \
//	POSTAUTH_HTTP_COOKIE_SECURE=false \
//	SESSION_SECRET=$(openssl rand -hex 32) \
//	PASSWORD_PEPPER=$(openssl rand -hex 16) \
//	go run ./cmd/postauth-server
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	postAuth "github.com/MrEthical07/postAuth"
	"github.com/MrEthical07/postAuth/httpapi"
	"github.com/MrEthical07/postAuth/sms"
	"github.com/MrEthical07/postAuth/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML settings file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("warning: .env not loaded: %v", err)
	}

	settings, err := loadSettings(*configPath)
	if err != nil {
		log.Fatalf("settings: %v", err)
	}

	logger, err := newLogger(settings.development())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if err := run(settings, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(settings *Settings, logger *zap.Logger) error {
	cfg, err := settings.engineConfig()
	if err != nil {
		return fmt.Errorf("engine config: %w", err)
	}

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	accounts, rdb, closeStore, err := openStore(initCtx, settings, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// The throttle shares the store's Redis when there is one.
	if cfg.Throttle.Enabled && rdb == nil {
		rdb = newRedisClient(settings.Redis)
		defer rdb.Close()
		if err := rdb.Ping(initCtx).Err(); err != nil {
			return fmt.Errorf("throttle redis: %w", err)
		}
	}

	if err := accounts.Migrate(initCtx, store.DefaultSchema()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	gateway, err := newGateway(settings, logger)
	if err != nil {
		return err
	}

	builder := postAuth.New().
		WithConfig(cfg).
		WithStore(accounts).
		WithSMSGateway(gateway).
		WithLogger(logger).
		WithAuditSink(newAuditSink(settings, logger))
	if cfg.Throttle.Enabled {
		builder.WithThrottleClient(rdb)
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	if err := seedAdmin(initCtx, engine, settings.Admin, logger); err != nil {
		return err
	}
	cancel()

	api := httpapi.New(engine, httpapi.Options{
		CookieSecure:   settings.HTTP.CookieSecure,
		AllowedOrigins: settings.HTTP.AllowedOrigins,
		TrustProxy:     settings.HTTP.TrustProxy,
		Logger:         logger,
	})
	srv := &http.Server{
		Addr:         settings.HTTP.Addr,
		Handler:      api.Handler(),
		ReadTimeout:  settings.HTTP.ReadTimeout,
		WriteTimeout: settings.HTTP.WriteTimeout,
		IdleTimeout:  settings.HTTP.IdleTimeout,
		ErrorLog:     zap.NewStdLog(logger.Named("http")),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("store", settings.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), settings.HTTP.ShutdownTimeout)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}

func newRedisClient(cfg RedisCfg) redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Addr},
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// openStore returns the configured account store, the Redis client behind it
// (nil for memory and mongo), and a release func.
func openStore(ctx context.Context, settings *Settings, logger *zap.Logger) (store.Store, redis.UniversalClient, func(), error) {
	switch settings.Store.Driver {
	case "memory":
		logger.Warn("using in-memory store; accounts are lost on restart")
		return store.NewMemoryStore(), nil, func() {}, nil

	case "miniredis":
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		logger.Warn("using embedded miniredis; accounts are lost on restart", zap.String("addr", mr.Addr()))
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		return store.NewRedisStore(rdb, settings.Redis.Prefix), rdb, func() {
			_ = rdb.Close()
			mr.Close()
		}, nil

	case "redis":
		rdb := newRedisClient(settings.Redis)
		s := store.NewRedisStore(rdb, settings.Redis.Prefix)
		if err := s.Ping(ctx); err != nil {
			_ = rdb.Close()
			return nil, nil, nil, fmt.Errorf("redis: %w", err)
		}
		return s, rdb, func() { _ = rdb.Close() }, nil

	case "mongo":
		client, err := store.ConnectMongo(ctx, settings.Mongo.URI)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("mongo: %w", err)
		}
		s := store.NewMongoStore(client, settings.Mongo.Database)
		return s, nil, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.Close(ctx); err != nil {
				logger.Warn("mongo disconnect failed", zap.Error(err))
			}
		}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown store driver %q", settings.Store.Driver)
	}
}

func newGateway(settings *Settings, logger *zap.Logger) (sms.Gateway, error) {
	switch settings.SMS.Driver {
	case "http":
		gw, err := sms.NewHTTPGateway(settings.SMS.Endpoint, settings.SMS.APIKey, &http.Client{Timeout: settings.SMS.Timeout})
		if err != nil {
			return nil, fmt.Errorf("sms gateway: %w", err)
		}
		return gw, nil
	case "log":
		logger.Warn("sms delivery disabled; messages are suppressed")
		return sms.NewLogGateway(logger.Named("sms")), nil
	default:
		return nil, fmt.Errorf("unknown sms driver %q", settings.SMS.Driver)
	}
}

func newAuditSink(settings *Settings, logger *zap.Logger) postAuth.AuditSink {
	switch settings.Audit.Output {
	case "stdout":
		return postAuth.NewJSONWriterSink(os.Stdout)
	case "none":
		return postAuth.NoOpSink{}
	default:
		return postAuth.NewZapSink(logger)
	}
}

// seedAdmin creates the bootstrap administrator once. An existing account
// with the same username or email is left untouched.
func seedAdmin(ctx context.Context, engine *postAuth.Engine, admin AdminCfg, logger *zap.Logger) error {
	if admin.Username == "" {
		return nil
	}
	codes, err := engine.SeedAccount(ctx, postAuth.RegisterInput{
		Username:    admin.Username,
		Email:       admin.Email,
		Password:    admin.Password,
		PhoneNumber: admin.PhoneNumber,
	}, postAuth.RoleAdmin)
	switch {
	case postAuth.KindOf(err) == postAuth.KindConflict:
		logger.Info("bootstrap admin already present", zap.String("username", admin.Username))
		return nil
	case err != nil:
		return fmt.Errorf("seed admin: %w", err)
	}
	logger.Info("bootstrap admin created", zap.String("username", admin.Username), zap.Int("recovery_codes", len(codes)))
	// Recovery codes are printed once for the operator; they are never logged.
	fmt.Fprintln(os.Stderr, "bootstrap admin recovery codes:")
	for _, c := range codes {
		fmt.Fprintln(os.Stderr, "  "+c)
	}
	return nil
}
