package cache

import (
	"github.com/Yiling-J/theine-go"
)

// TheineCache adapts a theine-go bounded concurrent LRU into the Cache
// interface. Keys and values are type-erased at this boundary; callers own
// the type assertions on the value side.
type TheineCache struct {
	client *theine.Cache[any, any]
}

// NewTheineCache builds a cache admitting up to maxCost total cost.
func NewTheineCache(maxCost int64) (*TheineCache, error) {
	client, err := theine.NewBuilder[any, any](maxCost).Build()
	if err != nil {
		return nil, err
	}
	return &TheineCache{client: client}, nil
}

func (c *TheineCache) Get(key any) (any, bool) {
	return c.client.Get(key)
}

func (c *TheineCache) Set(key any, entry any, cost int64) bool {
	return c.client.Set(key, entry, cost)
}

func (c *TheineCache) Remove(key any) {
	c.client.Delete(key)
}

func (c *TheineCache) Close() {
	c.client.Close()
}
