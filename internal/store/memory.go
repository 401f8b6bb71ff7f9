package store

import (
	"context"
	"path"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store on process memory. It is the degrade
// target when Redis is unreachable at boot, and the store double in
// tests. All state is guarded by a single mutex; a janitor goroutine
// evicts expired entries so abandoned keys do not accumulate.
type MemoryStore struct {
	mu     sync.Mutex
	data   map[string]memEntry
	zsets  map[string]map[string]float64
	now    func() time.Time
	stopCh chan struct{}
	once   sync.Once
}

type memEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewMemory creates a memory store with a background janitor.
func NewMemory() *MemoryStore {
	m := &MemoryStore{
		data:   make(map[string]memEntry),
		zsets:  make(map[string]map[string]float64),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	go m.janitor()
	return m
}

// Stop terminates the janitor goroutine.
func (m *MemoryStore) Stop() {
	m.once.Do(func() { close(m.stopCh) })
}

func (m *MemoryStore) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.evictExpired()
		case <-m.stopCh:
			return
		}
	}
}

func (m *MemoryStore) evictExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, e := range m.data {
		if e.expired(now) {
			delete(m.data, k)
			delete(m.zsets, k)
		}
	}
}

// Get returns the value for key, or nil if absent or expired. An empty
// stored value comes back as an empty non-nil slice.
func (m *MemoryStore) Get(ctx context.Context, key string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[key]
	if !ok || e.expired(m.now()) {
		return nil
	}
	// Sorted-set expiry shadows are not values.
	if len(e.value) == 0 {
		if _, zok := m.zsets[key]; zok {
			return nil
		}
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out
}

// Set stores value under key.
func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.data[key] = e
	return true
}

// Del removes keys and returns how many existed.
func (m *MemoryStore) Del(ctx context.Context, keys ...string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var n int64
	for _, k := range keys {
		e, hadData := m.data[k]
		_, hadZSet := m.zsets[k]
		delete(m.data, k)
		delete(m.zsets, k)
		if (hadData && !e.expired(now)) || hadZSet {
			n++
		}
	}
	return n
}

// Exists reports whether key is present and unexpired.
func (m *MemoryStore) Exists(ctx context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.data[key]; ok && !e.expired(m.now()) {
		return true
	}
	_, ok := m.zsets[key]
	return ok
}

// TTL returns the remaining lifetime of key in seconds.
func (m *MemoryStore) TTL(ctx context.Context, key string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[key]
	if !ok {
		if _, zok := m.zsets[key]; zok {
			return TTLNoExpiry
		}
		return TTLMissing
	}
	if e.expiresAt.IsZero() {
		return TTLNoExpiry
	}
	remaining := e.expiresAt.Sub(m.now())
	if remaining <= 0 {
		return TTLMissing
	}
	return int64(remaining / time.Second)
}

// Expire refreshes the TTL on an existing key or sorted set.
func (m *MemoryStore) Expire(ctx context.Context, key string, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.data[key]; ok && !e.expired(m.now()) {
		e.expiresAt = m.now().Add(ttl)
		m.data[key] = e
		return true
	}
	// Sorted sets carry their expiry via a shadow entry.
	if _, ok := m.zsets[key]; ok {
		m.data[key] = memEntry{expiresAt: m.now().Add(ttl)}
		return true
	}
	return false
}

// ZAdd inserts member into the sorted set at key.
func (m *MemoryStore) ZAdd(ctx context.Context, key string, score float64, member string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	zs, ok := m.zsets[key]
	if !ok {
		zs = make(map[string]float64)
		m.zsets[key] = zs
	}
	zs[member] = score
	return true
}

// ZRangeByScore returns members with scores in [min, max], ascending.
func (m *MemoryStore) ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	zs, ok := m.zsets[key]
	if !ok {
		return nil, true
	}
	type pair struct {
		member string
		score  float64
	}
	pairs := make([]pair, 0, len(zs))
	for member, score := range zs {
		if score >= min && score <= max {
			pairs = append(pairs, pair{member, score})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].score < pairs[j].score })
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.member
	}
	return out, true
}

// ZRemRangeByScore removes members with scores in [min, max].
func (m *MemoryStore) ZRemRangeByScore(ctx context.Context, key string, min, max float64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	zs, ok := m.zsets[key]
	if !ok {
		return 0
	}
	var n int64
	for member, score := range zs {
		if score >= min && score <= max {
			delete(zs, member)
			n++
		}
	}
	if len(zs) == 0 {
		delete(m.zsets, key)
	}
	return n
}

// KeysByPattern returns keys matching a glob-style pattern.
func (m *MemoryStore) KeysByPattern(ctx context.Context, pattern string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var out []string
	for k, e := range m.data {
		if e.expired(now) {
			continue
		}
		if matched, err := path.Match(pattern, k); err == nil && matched {
			out = append(out, k)
		}
	}
	for k := range m.zsets {
		if _, dup := m.data[k]; dup {
			continue
		}
		if matched, err := path.Match(pattern, k); err == nil && matched {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Ping always succeeds for the memory store.
func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close stops the janitor.
func (m *MemoryStore) Close() error {
	m.Stop()
	return nil
}

var _ Store = (*MemoryStore)(nil)
