package admission

import (
	"context"
	"sort"
	"sync"
	"time"
)

const (
	maxMemoryEntries = 10_000
	sweepTarget      = maxMemoryEntries * 3 / 4
)

type memoryEntry struct {
	count int64
	reset time.Time
}

// MemoryCounters is a process-local, bounded counter store. It is the
// fallback when Redis is unavailable and the default in tests. Capacity is
// fixed: expired entries are swept and, past the cap, the oldest windows are
// evicted first so a long-lived process cannot grow without bound. Counts
// are not shared across instances; running more than one replica without the
// Redis backend weakens the limits accordingly.
type MemoryCounters struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemoryCounters creates an empty in-memory counter store
func NewMemoryCounters() *MemoryCounters {
	return &MemoryCounters{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// Incr implements Counters
func (m *MemoryCounters) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	e, ok := m.entries[key]
	if !ok || !now.Before(e.reset) {
		if len(m.entries) > maxMemoryEntries*9/10 {
			m.sweep(now)
		}
		e = &memoryEntry{count: 0, reset: now.Add(window)}
		m.entries[key] = e
	}

	e.count++
	return e.count, e.reset.Sub(now), nil
}

// Count implements Counters
func (m *MemoryCounters) Count(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || !m.now().Before(e.reset) {
		return 0, nil
	}
	return e.count, nil
}

// sweep drops expired entries and, if the store is still over capacity,
// evicts the oldest windows down to 75% of the cap to avoid thrashing.
// Caller holds the lock.
func (m *MemoryCounters) sweep(now time.Time) {
	for key, e := range m.entries {
		if !now.Before(e.reset) {
			delete(m.entries, key)
		}
	}

	if len(m.entries) <= maxMemoryEntries {
		return
	}

	type aged struct {
		key   string
		reset time.Time
	}
	all := make([]aged, 0, len(m.entries))
	for key, e := range m.entries {
		all = append(all, aged{key: key, reset: e.reset})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].reset.Before(all[j].reset) })

	for _, a := range all[:len(all)-sweepTarget] {
		delete(m.entries, a.key)
	}
}
