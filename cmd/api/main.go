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

	"github.com/gin-gonic/gin"

	"urlguard/internal/config"
	"urlguard/internal/db"
	"urlguard/internal/enforce"
	httpserver "urlguard/internal/http"
	"urlguard/internal/logging"
	"urlguard/internal/permission"
	"urlguard/internal/rbac"
	"urlguard/internal/seed"
	"urlguard/internal/urlnorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("load config")
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	gin.SetMode(gin.ReleaseMode)

	ctx := context.Background()

	gdb, err := db.Connect(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logging.Fatal().Err(err).Msg("connect database")
	}
	if err := db.AutoMigrate(gdb); err != nil {
		logging.Fatal().Err(err).Msg("migrate database")
	}

	norm := urlnorm.New(cfg.I18n.Languages, cfg.I18n.DefaultLanguage)
	store := permission.NewStore(gdb, norm)

	cache, closeCache, err := newDecisionCache(ctx, cfg.Cache)
	if err != nil {
		logging.Fatal().Err(err).Msg("init decision cache")
	}
	defer closeCache()

	checker := &rbac.Checker{Store: store, Normalizer: norm, Cache: cache}
	store.OnChange(checker.Invalidate)

	if cfg.Seed.Enabled {
		if err := seed.FirstSetup(ctx, gdb, store, seed.Options{
			AdminEmail:    cfg.Seed.AdminEmail,
			AdminPassword: cfg.Seed.AdminPassword,
		}); err != nil {
			logging.Fatal().Err(err).Msg("seed")
		}
	}

	r, table := httpserver.NewRouter(httpserver.Deps{
		DB:         gdb,
		Store:      store,
		Checker:    checker,
		Normalizer: norm,
		Policy: enforce.Policy{
			Enabled:        cfg.Permission.Enabled,
			CheckAllRoutes: cfg.Permission.CheckAllRoutes,
			ExemptURLs:     cfg.Permission.ExemptURLs,
		},
		JWTSecret: cfg.Auth.JWTSecret,
		TokenTTL:  cfg.Auth.TokenTTL,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info().
			Str("addr", srv.Addr).
			Int("routes", len(table.ListKnownRoutes())).
			Bool("enforcement", cfg.Permission.Enabled).
			Str("cache", cfg.Cache.Backend).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("listen")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logging.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("shutdown")
	}
}

// newDecisionCache builds the configured cache. The returned func releases
// its resources.
func newDecisionCache(ctx context.Context, cfg config.CacheConfig) (rbac.DecisionCache, func(), error) {
	switch cfg.Backend {
	case "memory":
		c := rbac.NewMemoryCache(cfg.TTL)
		return c, c.Stop, nil
	case "redis":
		client, err := rbac.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return rbac.NewRedisCache(client, "", cfg.TTL), func() { _ = client.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}
