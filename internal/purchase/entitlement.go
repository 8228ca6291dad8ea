package purchase

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	gocache "github.com/patrickmn/go-cache"
)

const DefaultEntitlementTTL = 30 * time.Minute

// EntitlementCache is the per-session view of "has this buyer purchased this dataset".
// It is never shared across sessions and is cleared on wallet account change.
type EntitlementCache struct {
	cache *gocache.Cache
}

func NewEntitlementCache(ttl time.Duration) *EntitlementCache {
	if ttl <= 0 {
		ttl = DefaultEntitlementTTL
	}
	return &EntitlementCache{cache: gocache.New(ttl, 2*ttl)}
}

func entitlementKey(datasetID snowflake.ID, buyer string) string {
	return fmt.Sprintf("%d|%s", datasetID, strings.ToLower(strings.TrimSpace(buyer)))
}

func (c *EntitlementCache) Set(datasetID snowflake.ID, buyer string, entitled bool) {
	if c == nil {
		return
	}
	c.cache.SetDefault(entitlementKey(datasetID, buyer), entitled)
}

// Get returns the cached value and whether one was present.
func (c *EntitlementCache) Get(datasetID snowflake.ID, buyer string) (bool, bool) {
	if c == nil {
		return false, false
	}
	v, ok := c.cache.Get(entitlementKey(datasetID, buyer))
	if !ok {
		return false, false
	}
	entitled, _ := v.(bool)
	return entitled, true
}

func (c *EntitlementCache) Clear() {
	if c == nil {
		return
	}
	c.cache.Flush()
}
