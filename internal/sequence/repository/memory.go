package repository

import (
	"context"
	"sync"

	"github.com/spsweb/erp-core/internal/sequence/domain"
)

type scopeKey struct {
	company, branch, scopeType, qualifier string
}

// MemorySequenceRepository issues sequence numbers from process memory.
// Used by tests; mirrors the row-lock semantics with a per-key mutex.
type MemorySequenceRepository struct {
	mu       sync.Mutex
	locks    map[scopeKey]*sync.Mutex
	counters map[scopeKey]int64
}

func NewMemorySequenceRepository() *MemorySequenceRepository {
	return &MemorySequenceRepository{
		locks:    make(map[scopeKey]*sync.Mutex),
		counters: make(map[scopeKey]int64),
	}
}

func (r *MemorySequenceRepository) keyLock(key scopeKey) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	return l
}

func (r *MemorySequenceRepository) Next(ctx context.Context, company, branch string, scope domain.Scope) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	key := scopeKey{company, branch, scope.Type, scope.Qualifier}
	l := r.keyLock(key)
	l.Lock()
	defer l.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[key]++
	return r.counters[key], nil
}

// Current returns the last issued value for a key without advancing it
func (r *MemorySequenceRepository) Current(company, branch string, scope domain.Scope) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[scopeKey{company, branch, scope.Type, scope.Qualifier}]
}
