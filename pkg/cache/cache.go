// Package cache provides byte-oriented caches for upstream API responses.
//
// The GitHub client stores repository metadata and raw JSON files here so
// that repeated validations of the same project within the TTL do not spend
// GitHub rate limit. Three backends are provided:
//   - [RedisCache]: shared cache for the API and the sync worker
//   - [FileCache]: local directory cache for CLI usage
//   - [NullCache]: caching disabled
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values under string keys.
type Cache interface {
	// Get returns the value for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of 0 means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
