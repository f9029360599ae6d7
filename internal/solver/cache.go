package solver

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/isam2go/isam2/internal/linalg"
	"github.com/isam2go/isam2/pkg/cache"
)

// linearCache backs ISAM2Params.CacheLinearizedFactors with a bounded
// concurrent cache over theine-go, keyed by the factor's insertion index
// hashed with xxhash, mirroring the teacher's cache_key_hasher.go idiom.
type linearCache struct {
	backing cache.Cache
}

// newLinearCache builds a linearCache admitting up to maxEntries linear
// factors (cost 1 per entry).
func newLinearCache(maxEntries int64) (*linearCache, error) {
	backing, err := cache.NewTheineCache(maxEntries)
	if err != nil {
		return nil, err
	}
	return &linearCache{backing: backing}, nil
}

func cacheKey(factorIdx int) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(factorIdx))
	return xxhash.Sum64(buf[:])
}

func (c *linearCache) get(factorIdx int) (linalg.LinearFactor, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.backing.Get(cacheKey(factorIdx))
	if !ok {
		return nil, false
	}
	lf, ok := v.(linalg.LinearFactor)
	return lf, ok
}

func (c *linearCache) set(factorIdx int, lf linalg.LinearFactor) {
	if c == nil {
		return
	}
	c.backing.Set(cacheKey(factorIdx), lf, 1)
}

func (c *linearCache) remove(factorIdx int) {
	if c == nil {
		return
	}
	c.backing.Remove(cacheKey(factorIdx))
}

func (c *linearCache) Close() {
	if c != nil {
		c.backing.Close()
	}
}
