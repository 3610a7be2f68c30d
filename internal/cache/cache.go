// internal/cache/cache.go
package cache

import (
	"context"
	"time"
)

// Cache is the tenant-scoped key/value port the intelligence services
// depend on. Values are UTF-8 JSON strings; entries expire by TTL.
// A miss is (value="", found=false, err=nil); errors mean the backend
// itself failed and callers treat them as a miss/no-op.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
