// internal/intelligence/cachekey.go
package intelligence

import (
	"crypto/sha256"
	"encoding/hex"
)

const contextKeyPrefix = "intelligence:context:"

// ContextCacheKey derives a stable tenant-scoped cache key. The
// 128-bit digest prefix keeps keys short while making collisions
// across (lead, location, bot) tuples negligible.
func ContextCacheKey(leadID, locationID, botType string) string {
	sum := sha256.Sum256([]byte(leadID + "|" + locationID + "|" + botType))
	return contextKeyPrefix + hex.EncodeToString(sum[:16])
}
