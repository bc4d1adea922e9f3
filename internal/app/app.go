// Package app wires configuration, storage and HTTP into a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/clipper/clipper-api/internal/api"
	"github.com/clipper/clipper-api/internal/core/ports"
	"github.com/clipper/clipper-api/internal/core/service"
	mongostore "github.com/clipper/clipper-api/internal/infrastructure/db/mongo"
	redisstore "github.com/clipper/clipper-api/internal/infrastructure/db/redis"
	"github.com/clipper/clipper-api/internal/infrastructure/maintenance"
	"github.com/clipper/clipper-api/internal/infrastructure/memory"
	"github.com/clipper/clipper-api/internal/pkg/config"
)

const shutdownTimeout = 10 * time.Second

// App owns every long-lived resource of the API process.
type App struct {
	cfg     *config.Config
	log     zerolog.Logger
	echo    *echo.Echo
	janitor *maintenance.Janitor

	mongoClient *mongo.Client
	redisClient *redis.Client
}

type storage struct {
	users    ports.UserRepository
	tokens   ports.RefreshTokenRepository
	attempts ports.AttemptStore
	counters ports.CounterStore
	sweepers []maintenance.Sweeper

	db  *mongo.Database
	rdb *redis.Client
}

// NewApp connects the configured drivers and builds the HTTP server.
func NewApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}

	st, err := a.openStorage(ctx)
	if err != nil {
		a.close(context.Background())
		return nil, err
	}

	issuer, err := service.NewTokenIssuer(service.TokenConfig{
		SigningKey: cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		AccessTTL:  cfg.JWT.AccessTTL(),
		RefreshTTL: cfg.JWT.RefreshTTL(),
	})
	if err != nil {
		a.close(context.Background())
		return nil, fmt.Errorf("token issuer: %w", err)
	}

	ledger := service.NewRefreshLedger(st.tokens, issuer, issuer.RefreshTTL())
	guard := service.NewBruteForceGuard(st.attempts, ports.LockoutPolicy{
		MaxAttempts: cfg.BruteForce.MaxAttempts,
		Lockout:     cfg.BruteForce.Lockout,
		Horizon:     cfg.BruteForce.Horizon,
	}, log.With().Str("component", "bruteforce").Logger())
	limiter := service.NewRateLimiter(st.counters, cfg.RateLimit.Window, map[service.EndpointClass]int{
		service.ClassGlobal:    cfg.RateLimit.Global,
		service.ClassSensitive: cfg.RateLimit.Sensitive,
	})

	evaluator := service.NewEvaluator(log.With().Str("component", "authorization").Logger())
	if st.db != nil {
		for _, rt := range mongostore.ResolvedResourceTypes() {
			r, err := mongostore.NewOwnershipResolver(st.db, rt)
			if err != nil {
				a.close(context.Background())
				return nil, err
			}
			evaluator.Register(rt, r)
		}
	}

	sessions, err := service.NewSessionService(service.SessionDeps{
		Users:  st.users,
		Tokens: issuer,
		Ledger: ledger,
		Guard:  guard,
		Log:    log.With().Str("component", "session").Logger(),
	})
	if err != nil {
		a.close(context.Background())
		return nil, err
	}

	a.echo = api.NewRouter(api.RouterDeps{
		Sessions:   sessions,
		Users:      st.users,
		Tokens:     issuer,
		Authorizer: evaluator,
		Limiter:    limiter,
		Log:        log.With().Str("component", "http").Logger(),
		TrustProxy: cfg.RateLimit.TrustProxy,
		Errors:     api.ErrorOptions{RevealLockout: cfg.Auth.RevealLockout},
		Mongo:      st.db,
		Redis:      st.rdb,
	})
	a.echo.Server.ReadTimeout = 15 * time.Second
	a.echo.Server.WriteTimeout = 15 * time.Second
	a.echo.Server.IdleTimeout = 60 * time.Second

	a.janitor = maintenance.NewJanitor(cfg.MaintenanceInterval, ledger,
		log.With().Str("component", "maintenance").Logger(), st.sweepers...)

	return a, nil
}

func (a *App) openStorage(ctx context.Context) (*storage, error) {
	st := &storage{}

	switch a.cfg.StoreDriver {
	case config.DriverMongo:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{
			URI:      a.cfg.Mongo.URI,
			Database: a.cfg.Mongo.Database,
			AppName:  "clipper-api",
		})
		if err != nil {
			return nil, err
		}
		a.mongoClient = client
		users := mongostore.NewUserRepository(db)
		tokens := mongostore.NewRefreshTokenRepository(db)
		if err := mongostore.EnsureIndexes(ctx, users, tokens); err != nil {
			return nil, err
		}
		st.users, st.tokens, st.db = users, tokens, db
		a.log.Info().Str("database", a.cfg.Mongo.Database).Msg("connected to MongoDB")
	default:
		st.users = memory.NewUserRepository()
		st.tokens = memory.NewRefreshTokenRepository()
		a.log.Warn().Msg("using in-memory user and refresh token storage")
	}

	switch a.cfg.CacheDriver {
	case config.DriverRedis:
		rdb, err := redisstore.Connect(ctx, redisstore.Config{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		a.redisClient = rdb
		st.attempts = redisstore.NewAttemptStore(rdb)
		st.counters = redisstore.NewCounterStore(rdb)
		st.rdb = rdb
		a.log.Info().Str("addr", a.cfg.Redis.Addr).Msg("connected to Redis")
	default:
		attempts := memory.NewAttemptStore()
		counters := memory.NewCounterStore()
		st.attempts, st.counters = attempts, counters
		st.sweepers = []maintenance.Sweeper{attempts, counters}
		a.log.Warn().Msg("using in-memory rate limit and brute force storage")
	}

	return st, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.echo
}

// Run starts the HTTP server and the janitor and blocks until ctx is
// cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	a.janitor.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + a.cfg.Port
		a.log.Info().Str("addr", addr).Msg("starting HTTP server")
		if err := a.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		a.close(context.Background())
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.echo.Shutdown(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("http server shutdown error")
	}
	a.close(shutdownCtx)
	a.log.Info().Msg("application shutdown complete")
	return nil
}

func (a *App) close(ctx context.Context) {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Error().Err(err).Msg("redis close error")
		}
	}
	if a.mongoClient != nil {
		if err := a.mongoClient.Disconnect(ctx); err != nil {
			a.log.Error().Err(err).Msg("mongo disconnect error")
		}
	}
}
