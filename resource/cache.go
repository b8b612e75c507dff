package resource

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// LoaderFunc loads the sound stored under key.
type LoaderFunc func(key string) (*Sound, error)

// Cache is an LRU of decoded sounds. It is safe for concurrent use.
type Cache struct {
	sounds *lru.Cache[string, *Sound]
	group  singleflight.Group
	load   LoaderFunc
}

// NewCache creates a cache holding up to size sounds loaded from disk.
func NewCache(size int) (*Cache, error) {
	return NewCacheWithLoader(size, Load)
}

// NewCacheWithLoader creates a cache that fills misses with load.
func NewCacheWithLoader(size int, load LoaderFunc) (*Cache, error) {
	sounds, err := lru.New[string, *Sound](size)
	if err != nil {
		return nil, fmt.Errorf("sound cache: %w", err)
	}
	return &Cache{sounds: sounds, load: load}, nil
}

// Get returns the sound for key, loading it on a miss. Concurrent misses
// for the same key share one load.
func (c *Cache) Get(key string) (*Sound, error) {
	if snd, ok := c.sounds.Get(key); ok {
		return snd, nil
	}

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		if snd, ok := c.sounds.Get(key); ok {
			return snd, nil
		}
		snd, err := c.load(key)
		if err != nil {
			return nil, err
		}
		if evicted := c.sounds.Add(key, snd); evicted {
			logrus.WithFields(logrus.Fields{
				"function": "Cache.Get",
				"key":      key,
			}).Debug("Sound cache evicted least recently used entry")
		}
		return snd, nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "Cache.Get",
		"key":      key,
		"shared":   shared,
	}).Debug("Sound cache miss filled")

	return v.(*Sound), nil
}

// Put stores a sound that was decoded elsewhere.
func (c *Cache) Put(key string, snd *Sound) {
	c.sounds.Add(key, snd)
}

// Len returns the number of cached sounds.
func (c *Cache) Len() int { return c.sounds.Len() }

// Purge drops every cached sound.
func (c *Cache) Purge() { c.sounds.Purge() }
