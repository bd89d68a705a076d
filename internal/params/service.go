package params

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spsweb/erp-core/internal/params/domain"
	"github.com/spsweb/erp-core/pkg/logger"
)

const cacheTTL = 5 * time.Minute

// Service resolves per-tenant parameters, falling back to the built-in
// registry defaults for absent keys. Reads go through an optional redis
// cache; a nil or unreachable client degrades to direct store reads.
type Service struct {
	slug  string
	store domain.Store
	cache *redis.Client
}

func NewService(slug string, store domain.Store, cache *redis.Client) *Service {
	return &Service{slug: slug, store: store, cache: cache}
}

func (s *Service) cacheKey(company, branch, key string) string {
	return fmt.Sprintf("params:%s:%s:%s:%s", s.slug, company, branch, key)
}

// Get returns the raw JSON value for a key, consulting cache, store, and
// registry default in that order.
func (s *Service) Get(ctx context.Context, company, branch, key string) (json.RawMessage, error) {
	ck := s.cacheKey(company, branch, key)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, ck).Bytes(); err == nil && len(cached) > 0 {
			return json.RawMessage(cached), nil
		}
	}

	value, err := s.store.Get(ctx, company, branch, key)
	if errors.Is(err, domain.ErrNotFound) {
		spec, ok := domain.Registry[key]
		if !ok {
			return nil, fmt.Errorf("unregistered parameter %q", key)
		}
		value, err = json.Marshal(spec.Default)
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, ck, []byte(value), cacheTTL).Err(); err != nil {
			logger.Debug(ctx).Err(err).Str("key", key).Msg("Parameter cache write failed")
		}
	}
	return value, nil
}

// GetBool resolves a boolean parameter
func (s *Service) GetBool(ctx context.Context, company, branch, key string) (bool, error) {
	raw, err := s.Get(ctx, company, branch, key)
	if err != nil {
		return false, err
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, fmt.Errorf("parameter %q is not a boolean: %w", key, err)
	}
	return v, nil
}

// Set writes a parameter value, invalidates the cache entry and appends an
// audit log row. Audit failures are logged, never fatal.
func (s *Service) Set(ctx context.Context, company, branch, key string, value interface{}, actor string) error {
	if _, ok := domain.Registry[key]; !ok {
		return fmt.Errorf("unregistered parameter %q", key)
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}

	previous, err := s.store.Put(ctx, company, branch, key, encoded)
	if err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Del(ctx, s.cacheKey(company, branch, key)).Err(); err != nil {
			logger.Debug(ctx).Err(err).Str("key", key).Msg("Parameter cache invalidation failed")
		}
	}

	entry := domain.ChangeLog{
		Table:     domain.Parameter{}.TableName(),
		RecordKey: fmt.Sprintf("%s/%s/%s", company, branch, key),
		Action:    "update",
		OldValue:  string(previous),
		NewValue:  string(encoded),
		Actor:     actor,
	}
	if err := s.store.AppendLog(ctx, entry); err != nil {
		logger.Error(ctx).Err(err).Str("key", key).Msg("Failed to record parameter audit log")
	}
	return nil
}

// Sync seeds registry defaults for a company/branch pair. Idempotent.
func (s *Service) Sync(ctx context.Context, company, branch string) (int, error) {
	created, err := s.store.EnsureDefaults(ctx, company, branch)
	if err != nil {
		return created, err
	}
	if created > 0 {
		logger.Info(ctx).
			Str("company", company).
			Str("branch", branch).
			Int("created", created).
			Msg("Parameter defaults synced")
	}
	return created, nil
}
