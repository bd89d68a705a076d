package repository

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/spsweb/erp-core/internal/params/domain"
)

type paramKey struct {
	company, branch, key string
}

// MemoryParameterStore keeps parameters in process memory. Used by tests.
type MemoryParameterStore struct {
	mu     sync.RWMutex
	values map[paramKey]string
	logs   []domain.ChangeLog
}

func NewMemoryParameterStore() *MemoryParameterStore {
	return &MemoryParameterStore{values: make(map[paramKey]string)}
}

func (s *MemoryParameterStore) Get(ctx context.Context, company, branch, key string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[paramKey{company, branch, key}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return json.RawMessage(v), nil
}

func (s *MemoryParameterStore) Put(ctx context.Context, company, branch, key string, value json.RawMessage) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := paramKey{company, branch, key}
	var previous json.RawMessage
	if v, ok := s.values[k]; ok {
		previous = json.RawMessage(v)
	}
	s.values[k] = string(value)
	return previous, nil
}

func (s *MemoryParameterStore) EnsureDefaults(ctx context.Context, company, branch string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	created := 0
	for key, spec := range domain.Registry {
		k := paramKey{company, branch, key}
		if _, ok := s.values[k]; ok {
			continue
		}
		value, err := json.Marshal(spec.Default)
		if err != nil {
			return created, err
		}
		s.values[k] = string(value)
		created++
	}
	return created, nil
}

func (s *MemoryParameterStore) AppendLog(ctx context.Context, entry domain.ChangeLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return nil
}

// Logs returns a copy of the recorded audit entries
func (s *MemoryParameterStore) Logs() []domain.ChangeLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ChangeLog, len(s.logs))
	copy(out, s.logs)
	return out
}
