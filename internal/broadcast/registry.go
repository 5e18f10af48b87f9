package broadcast

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kursadbilgin/broadcast-engine/internal/domain"
)

// DefaultStatusRetention is how long a completed batch stays readable.
const DefaultStatusRetention = 5 * time.Minute

// StatusRegistry stores the live and final status of batches for polling.
// The dispatch engine is the only writer of an entry; readers never mutate.
type StatusRegistry interface {
	// Put replaces the entry for batchID wholesale.
	Put(ctx context.Context, batchID string, status domain.BatchStatus) error
	// Get returns the entry, or false when it never existed or was evicted.
	Get(ctx context.Context, batchID string) (domain.BatchStatus, bool, error)
	// ScheduleEviction removes the entry once delay elapses, unless a later Put replaced it.
	ScheduleEviction(ctx context.Context, batchID string, delay time.Duration) error
	// MarkCancelled flags an existing entry as cancelled. It is advisory only:
	// a dispatch that is already running does not observe the flag and its next
	// Put overwrites it.
	MarkCancelled(ctx context.Context, batchID string) (bool, error)
}

var _ StatusRegistry = (*MemoryRegistry)(nil)

type registryEntry struct {
	status     domain.BatchStatus
	generation uint64
}

// MemoryRegistry is an in-process StatusRegistry. Every Put stamps the entry
// with a fresh generation and eviction timers only remove the generation they
// were scheduled for, so a reused batch id is never evicted by an older timer.
type MemoryRegistry struct {
	mu         sync.RWMutex
	entries    map[string]registryEntry
	generation uint64
	afterFunc  func(d time.Duration, f func())
}

func NewMemoryRegistry() *MemoryRegistry {
	return newMemoryRegistry(func(d time.Duration, f func()) {
		time.AfterFunc(d, f)
	})
}

func newMemoryRegistry(afterFunc func(d time.Duration, f func())) *MemoryRegistry {
	if afterFunc == nil {
		afterFunc = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}

	return &MemoryRegistry{
		entries:   make(map[string]registryEntry),
		afterFunc: afterFunc,
	}
}

func (r *MemoryRegistry) Put(_ context.Context, batchID string, status domain.BatchStatus) error {
	key := strings.TrimSpace(batchID)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.generation++
	r.entries[key] = registryEntry{
		status:     status.Clone(),
		generation: r.generation,
	}
	return nil
}

func (r *MemoryRegistry) Get(_ context.Context, batchID string) (domain.BatchStatus, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[strings.TrimSpace(batchID)]
	if !ok {
		return domain.BatchStatus{}, false, nil
	}
	return entry.status.Clone(), true, nil
}

func (r *MemoryRegistry) ScheduleEviction(_ context.Context, batchID string, delay time.Duration) error {
	key := strings.TrimSpace(batchID)

	r.mu.RLock()
	entry, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	generation := entry.generation
	r.afterFunc(delay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		if current, ok := r.entries[key]; ok && current.generation == generation {
			delete(r.entries, key)
		}
	})
	return nil
}

func (r *MemoryRegistry) MarkCancelled(_ context.Context, batchID string) (bool, error) {
	key := strings.TrimSpace(batchID)

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok {
		return false, nil
	}
	// The generation is kept so a pending eviction still applies.
	entry.status.Status = domain.StatusCancelled
	r.entries[key] = entry
	return true, nil
}

func (r *MemoryRegistry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
