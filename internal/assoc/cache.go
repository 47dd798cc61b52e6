package assoc

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

type result struct {
	entry Entry
	err   error
}

type cache interface {
	Get(mime string) (result, bool)
	Add(mime string, r result)
	Len() int
}

func newCache(size int) (cache, error) {
	switch {
	case size < 0:
		return nil, fmt.Errorf("cache size must not be negative, got %d", size)
	case size == 0:
		return &mapCache{m: make(map[string]result)}, nil
	default:
		c, err := lru.New[string, result](size)
		if err != nil {
			return nil, fmt.Errorf("initializing lru cache: %w", err)
		}
		return lruCache{c: c}, nil
	}
}

// mapCache is never pruned. The table is immutable and the number of
// distinct mime types on a system is small.
type mapCache struct {
	mx sync.RWMutex
	m  map[string]result
}

func (c *mapCache) Get(mime string) (result, bool) {
	c.mx.RLock()
	defer c.mx.RUnlock()
	r, ok := c.m[mime]
	return r, ok
}

func (c *mapCache) Add(mime string, r result) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.m[mime] = r
}

func (c *mapCache) Len() int {
	c.mx.RLock()
	defer c.mx.RUnlock()
	return len(c.m)
}

type lruCache struct {
	c *lru.Cache[string, result]
}

func (c lruCache) Get(mime string) (result, bool) {
	return c.c.Get(mime)
}

func (c lruCache) Add(mime string, r result) {
	c.c.Add(mime, r)
}

func (c lruCache) Len() int {
	return c.c.Len()
}
