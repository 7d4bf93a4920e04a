package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMiss is returned when no live entry exists for a key. Expired entries
// are reported as misses.
var ErrMiss = errors.New("cache: miss")

// Store persists serialized analysis results keyed by region or coordinate.
// Both backends treat values as opaque bytes; callers own the encoding.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// RegionKey derives a stable cache key from a free-form region description.
// Case and surrounding whitespace do not affect the key, so "Texas" and
// " texas " share one entry.
func RegionKey(scope, region string) string {
	norm := strings.ToLower(strings.TrimSpace(region))
	sum := sha256.Sum256([]byte(norm))
	return fmt.Sprintf("%s:%s", scope, hex.EncodeToString(sum[:]))
}

// CoordinateKey derives a cache key from a lat/lng pair rounded to four
// decimal places (roughly 11 meters), enough to collapse jittered inputs.
func CoordinateKey(scope string, lat, lng float64) string {
	return fmt.Sprintf("%s:%.4f,%.4f", scope, lat, lng)
}
