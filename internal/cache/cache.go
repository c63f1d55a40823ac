package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"cartupsell/backend/internal/domain"
)

const KeyPrefix = "upsell:resolve:"

// UpsellCache stores resolved upsell responses for a short time.
type UpsellCache interface {
	Get(ctx context.Context, key string) (*domain.UpsellResult, bool, error)
	Set(ctx context.Context, key string, value *domain.UpsellResult, ttl time.Duration) error
	// Flush drops every cached response.
	Flush(ctx context.Context) error
}

type NoopUpsellCache struct{}

func (NoopUpsellCache) Get(_ context.Context, _ string) (*domain.UpsellResult, bool, error) {
	return nil, false, nil
}

func (NoopUpsellCache) Set(_ context.Context, _ string, _ *domain.UpsellResult, _ time.Duration) error {
	return nil
}

func (NoopUpsellCache) Flush(_ context.Context) error {
	return nil
}

// BuildKey hashes an already normalized cart and the limit. Callers that normalize
// the same way get the same key for equivalent carts.
func BuildKey(normalizedCart []string, limit int) string {
	parts := make([]string, 0, len(normalizedCart)+1)
	parts = append(parts, normalizedCart...)
	parts = append(parts, "l:"+strconv.Itoa(limit))

	hash := sha1.Sum([]byte(strings.Join(parts, "|")))
	return KeyPrefix + hex.EncodeToString(hash[:])
}
