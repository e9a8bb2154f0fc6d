package store

import (
	"sync"
	"time"

	"github.com/facebookgo/clock"
)

// A sizecache remembers the size or non-existence of remote objects so the
// S3 store does not need a HEAD request for every Open. A size of 0 means
// unknown, a negative size means the key does not exist. Misses expire sooner
// than hits.
type sizecache struct {
	m     sync.Mutex
	cache map[string]sizeEntry
	clock clock.Clock
}

type sizeEntry struct {
	expire time.Time
	size   int64
}

const (
	// sizeDeleted marks a key as known to be missing.
	sizeDeleted int64 = -1

	defaultMissTTL = 3 * time.Hour
	defaultHitTTL  = 240 * time.Hour
)

func newSizeCache() *sizecache {
	return &sizecache{
		cache: make(map[string]sizeEntry),
		clock: clock.New(),
	}
}

// Get returns the size associated with key. If key is not cached, or its
// entry has expired, fill is called to find the size.
func (s *sizecache) Get(key string, fill func(key string) (int64, error)) (int64, error) {
	s.m.Lock()
	entry, ok := s.cache[key]
	if ok && s.clock.Now().After(entry.expire) {
		delete(s.cache, key)
		entry = sizeEntry{}
	}
	s.m.Unlock()
	switch {
	case entry.size > 0:
		return entry.size, nil
	case entry.size < 0:
		return 0, ErrNotExist
	}
	size, err := fill(key)
	if err != nil {
		return 0, err
	}
	s.Set(key, size)
	return size, nil
}

// Set caches a size for key. Use sizeDeleted to mark the key as missing.
func (s *sizecache) Set(key string, size int64) {
	ttl := defaultHitTTL
	switch {
	case size < 0:
		ttl = defaultMissTTL
	case size == 0:
		ttl = 0
	}
	s.m.Lock()
	s.cache[key] = sizeEntry{expire: s.clock.Now().Add(ttl), size: size}
	s.m.Unlock()
}
