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

	"github.com/rs/zerolog"

	"cartupsell/backend/internal/cache"
	"cartupsell/backend/internal/config"
	"cartupsell/backend/internal/httpapi"
	"cartupsell/backend/internal/images"
	"cartupsell/backend/internal/logging"
	"cartupsell/backend/internal/ranking"
	"cartupsell/backend/internal/recommendation"
	"cartupsell/backend/internal/rules"
	"cartupsell/backend/internal/service"
	"cartupsell/backend/internal/simulation"
	"cartupsell/backend/internal/store"
	"cartupsell/backend/internal/store/memory"
	pgstore "cartupsell/backend/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid security configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, closers := openRepository(ctx, cfg, logger)
	responses, cacheClosers := openResponseCache(ctx, cfg, logger)
	closers = append(closers, cacheClosers...)

	ranker := ranking.NewRanker(repo, ranking.Options{
		QueryTimeout:     cfg.QueryTimeout(),
		FailureThreshold: cfg.Ranking.FailureThreshold,
		BreakerTimeout:   cfg.BreakerTimeout(),
	}, logger)
	ruleCache := rules.NewMemoryCache(ranker, logger)
	imageResolver := images.NewResolver(images.DirStore{Root: cfg.Upsell.ImageRoot})
	oracle := recommendation.NewRepositoryOracle(repo, logger)
	resolver := recommendation.NewResolver(ruleCache, oracle, imageResolver, logger)
	simulator := simulation.NewSimulator(ruleCache, resolver, repo, logger, simulation.Options{})

	svc := service.New(ruleCache, resolver, simulator, repo, responses, logger, service.Options{
		DefaultLimit: cfg.Upsell.DefaultLimit,
		ResponseTTL:  cfg.ResponseTTL(),
	})
	auth := httpapi.NewAuthManager(cfg.Auth.Secret, cfg.TokenTTL(), cfg.Auth.ManagerPIN)
	api := httpapi.New(svc, auth, logger, httpapi.Options{
		AllowedOrigin:      cfg.Server.AllowedOrigin,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Address()).Msg("upsell backend listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error().Err(err).Msg("close error")
		}
	}

	logger.Info().Msg("server stopped")
}

func openRepository(ctx context.Context, cfg config.Config, logger zerolog.Logger) (store.Repository, []func() error) {
	if cfg.Database.URL == "" {
		logger.Info().Str("repository", "memory").Msg("repository ready")
		return memory.NewSeeded(), nil
	}

	pg, err := pgstore.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
	}
	if err := pg.EnsureSimulationTable(ctx); err != nil {
		logger.Fatal().Err(err).Msg("prepare simulation table")
	}
	logger.Info().Str("repository", "postgres").Msg("repository ready")
	return pg, []func() error{pg.Close}
}

func openResponseCache(ctx context.Context, cfg config.Config, logger zerolog.Logger) (cache.UpsellCache, []func() error) {
	if cfg.Redis.Addr == "" {
		logger.Info().Str("cache", "noop").Msg("response cache ready")
		return cache.NoopUpsellCache{}, nil
	}

	redisCache := cache.NewRedisUpsellCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := redisCache.Ping(ctx); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, using noop cache")
		_ = redisCache.Close()
		return cache.NoopUpsellCache{}, nil
	}
	logger.Info().Str("cache", "redis").Msg("response cache ready")
	return redisCache, []func() error{redisCache.Close}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.Auth.Secret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.Auth.ManagerPIN) < 6 {
		return fmt.Errorf("MANAGER_PIN must be set and at least 6 digits")
	}
	if err := validatePINStrength(cfg.Auth.ManagerPIN); err != nil {
		return fmt.Errorf("MANAGER_PIN is too weak: %w", err)
	}
	return nil
}

// validatePINStrength rejects PINs that are all the same digit,
// sequential (ascending or descending), or from a known-weak list.
func validatePINStrength(pin string) error {
	known := map[string]bool{
		"123456": true, "654321": true, "000000": true, "111111": true,
		"222222": true, "333333": true, "444444": true, "555555": true,
		"666666": true, "777777": true, "888888": true, "999999": true,
		"121212": true, "112233": true, "123123": true,
	}
	if known[pin] {
		return fmt.Errorf("common PIN not allowed")
	}

	allSame := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("all-same-digit PIN not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential PIN not allowed")
	}

	return nil
}
