package main

import (
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"

	"cartupsell/backend/internal/cache"
	"cartupsell/backend/internal/config"
)

func securityConfig(secret, pin string) config.Config {
	var cfg config.Config
	cfg.Auth.Secret = secret
	cfg.Auth.ManagerPIN = pin
	return cfg
}

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(securityConfig("short", "123456"))
	if err == nil {
		t.Fatalf("expected weak security config to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(securityConfig("0123456789abcdef0123456789abcdef", "739154"))
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestValidatePINStrength(t *testing.T) {
	weak := []string{"000000", "987654", "345678", "121212"}
	for _, pin := range weak {
		if err := validatePINStrength(pin); err == nil {
			t.Fatalf("expected %s to be rejected", pin)
		}
	}
	if err := validatePINStrength("482913"); err != nil {
		t.Fatalf("expected 482913 to pass, got %v", err)
	}
}

func TestOpenRepositoryWithoutDatabaseUsesMemory(t *testing.T) {
	repo, closers := openRepository(context.Background(), config.Config{}, zerolog.New(io.Discard))
	if repo == nil {
		t.Fatalf("expected in-memory repository")
	}
	if len(closers) != 0 {
		t.Fatalf("expected no closers for in-memory repository, got %d", len(closers))
	}
	facts, err := repo.AggregateSales(context.Background(), false)
	if err != nil || len(facts) == 0 {
		t.Fatalf("expected seeded catalog, got %d facts err=%v", len(facts), err)
	}
}

func TestOpenResponseCacheWithoutRedisIsNoop(t *testing.T) {
	responses, closers := openResponseCache(context.Background(), config.Config{}, zerolog.New(io.Discard))
	if _, ok := responses.(cache.NoopUpsellCache); !ok {
		t.Fatalf("expected noop cache, got %T", responses)
	}
	if len(closers) != 0 {
		t.Fatalf("expected no closers, got %d", len(closers))
	}
}
