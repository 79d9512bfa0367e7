// Package dedupe remembers assignment creations by idempotency key so a
// retried request is answered with the original result.
package dedupe

import (
	"container/list"
	"context"
	"sync"

	"github.com/okian/occupancy/internal/domain/model"
)

// State is the outcome of Reserve.
type State int

const (
	// Reserved means the key was new and the caller owns the creation.
	Reserved State = iota
	// InFlight means another caller holds the key and has not finished.
	InFlight
	// Completed means the key already produced an assignment.
	Completed
)

// Keeper tracks idempotency keys of assignment creations.
type Keeper interface {
	// Reserve atomically checks key and claims it if unseen. On Completed the
	// stored assignment is returned.
	Reserve(ctx context.Context, key string) (model.Assignment, State)

	// Complete stores the created assignment under a reserved key.
	Complete(ctx context.Context, key string, a model.Assignment)

	// Release forgets a reserved key so a failed creation can be retried.
	Release(ctx context.Context, key string)

	Size() int64
}

type entry struct {
	key  string
	done bool
	a    model.Assignment
}

// inMemoryKeeper is a Keeper bounded by maxSize. The oldest key is evicted
// first once the bound is reached; maxSize <= 0 means unbounded.
type inMemoryKeeper struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front is oldest
	maxSize int
}

// NewInMemoryKeeper creates an in-memory Keeper.
func NewInMemoryKeeper(opts ...Option) Keeper {
	k := &inMemoryKeeper{
		maxSize: 10_000,
	}
	for _, opt := range opts {
		opt(k)
	}
	k.entries = make(map[string]*list.Element)
	k.order = list.New()
	return k
}

func (k *inMemoryKeeper) Reserve(_ context.Context, key string) (model.Assignment, State) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if el, ok := k.entries[key]; ok {
		e := el.Value.(*entry)
		if e.done {
			return e.a, Completed
		}
		return model.Assignment{}, InFlight
	}

	if k.maxSize > 0 && len(k.entries) >= k.maxSize {
		k.evictOldest()
	}
	k.entries[key] = k.order.PushBack(&entry{key: key})
	return model.Assignment{}, Reserved
}

func (k *inMemoryKeeper) Complete(_ context.Context, key string, a model.Assignment) {
	k.mu.Lock()
	defer k.mu.Unlock()

	el, ok := k.entries[key]
	if !ok {
		// Evicted while in flight.
		if k.maxSize > 0 && len(k.entries) >= k.maxSize {
			k.evictOldest()
		}
		el = k.order.PushBack(&entry{key: key})
		k.entries[key] = el
	}
	e := el.Value.(*entry)
	e.done = true
	e.a = a
}

func (k *inMemoryKeeper) Release(_ context.Context, key string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if el, ok := k.entries[key]; ok && !el.Value.(*entry).done {
		k.order.Remove(el)
		delete(k.entries, key)
	}
}

// evictOldest must be called with k.mu held.
func (k *inMemoryKeeper) evictOldest() {
	front := k.order.Front()
	if front == nil {
		return
	}
	k.order.Remove(front)
	delete(k.entries, front.Value.(*entry).key)
}

// Size returns the number of remembered keys.
func (k *inMemoryKeeper) Size() int64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return int64(len(k.entries))
}
