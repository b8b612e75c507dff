package resource

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/opd-ai/voicecore/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingLoader(calls *atomic.Int32) LoaderFunc {
	return func(key string) (*Sound, error) {
		calls.Add(1)
		if key == "missing" {
			return nil, errors.New("no such sound")
		}
		return NewSound(key, []float32{0.25}, format.Float32(8000, 1))
	}
}

func TestCacheHit(t *testing.T) {
	var calls atomic.Int32
	cache, err := NewCacheWithLoader(4, countingLoader(&calls))
	require.NoError(t, err)

	first, err := cache.Get("ring")
	require.NoError(t, err)
	second, err := cache.Get("ring")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, cache.Len())
}

func TestCacheEviction(t *testing.T) {
	var calls atomic.Int32
	cache, err := NewCacheWithLoader(2, countingLoader(&calls))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := cache.Get(fmt.Sprintf("s%d", i))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cache.Len())

	_, err = cache.Get("s0")
	require.NoError(t, err)
	assert.Equal(t, int32(4), calls.Load(), "evicted entry must be reloaded")
}

func TestCacheLoadError(t *testing.T) {
	var calls atomic.Int32
	cache, err := NewCacheWithLoader(2, countingLoader(&calls))
	require.NoError(t, err)

	_, err = cache.Get("missing")
	assert.Error(t, err)
	assert.Equal(t, 0, cache.Len())
}

func TestCacheConcurrentGet(t *testing.T) {
	var calls atomic.Int32
	cache, err := NewCacheWithLoader(2, countingLoader(&calls))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snd, err := cache.Get("shared")
			assert.NoError(t, err)
			assert.NotNil(t, snd)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(16))
	assert.Equal(t, 1, cache.Len())
}

func TestCachePutAndPurge(t *testing.T) {
	cache, err := NewCacheWithLoader(2, func(string) (*Sound, error) {
		return nil, errors.New("loader should not run")
	})
	require.NoError(t, err)

	snd, err := NewSound("pre", []float32{1}, format.Float32(8000, 1))
	require.NoError(t, err)
	cache.Put("pre", snd)

	got, err := cache.Get("pre")
	require.NoError(t, err)
	assert.Same(t, snd, got)

	cache.Purge()
	assert.Equal(t, 0, cache.Len())
}

func TestNewCacheInvalidSize(t *testing.T) {
	_, err := NewCache(0)
	assert.Error(t, err)
}
