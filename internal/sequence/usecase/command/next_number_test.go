package command

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/spsweb/erp-core/internal/sequence/domain"
	"github.com/spsweb/erp-core/internal/sequence/repository"
)

// flakyGenerator fails with a transient error for the first n calls
type flakyGenerator struct {
	mu       sync.Mutex
	failures int
	calls    int
	err      error
	next     int64
}

func (g *flakyGenerator) Next(ctx context.Context, company, branch string, scope domain.Scope) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.calls <= g.failures {
		return 0, g.err
	}
	g.next++
	return g.next, nil
}

func TestHandle_RequiresScopeType(t *testing.T) {
	h := NewNextNumberHandler(repository.NewMemorySequenceRepository())

	_, err := h.Handle(context.Background(), NextNumberCommand{Company: "1", Branch: "1"})
	if err == nil {
		t.Fatal("expected error for empty scope type")
	}
}

func TestHandle_SequentialValues(t *testing.T) {
	h := NewNextNumberHandler(repository.NewMemorySequenceRepository())
	cmd := NextNumberCommand{Company: "1", Branch: "1", Scope: domain.Scope{Type: domain.ScopeProduct}}

	for want := int64(1); want <= 5; want++ {
		got, err := h.Handle(context.Background(), cmd)
		if err != nil {
			t.Fatalf("handle: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}
}

func TestHandle_IndependentScopes(t *testing.T) {
	gen := repository.NewMemorySequenceRepository()
	h := NewNextNumberHandler(gen)
	ctx := context.Background()

	keys := []NextNumberCommand{
		{Company: "1", Branch: "1", Scope: domain.Scope{Type: domain.ScopeProduct}},
		{Company: "1", Branch: "2", Scope: domain.Scope{Type: domain.ScopeProduct}},
		{Company: "1", Branch: "1", Scope: domain.Scope{Type: domain.ScopeLot, Qualifier: "SKU-9"}},
	}
	for _, cmd := range keys {
		got, err := h.Handle(ctx, cmd)
		if err != nil {
			t.Fatalf("handle %v: %v", cmd.Scope, err)
		}
		if got != 1 {
			t.Errorf("scope %v should start at 1, got %d", cmd.Scope, got)
		}
	}
}

func TestHandle_ConcurrentNoGapsNoDuplicates(t *testing.T) {
	h := NewNextNumberHandler(repository.NewMemorySequenceRepository())
	cmd := NextNumberCommand{Company: "1", Branch: "1", Scope: domain.Scope{Type: domain.ScopeProduct}}

	const m = 100
	values := make([]int64, m)
	var wg sync.WaitGroup
	for i := 0; i < m; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := h.Handle(context.Background(), cmd)
			if err != nil {
				t.Errorf("handle: %v", err)
				return
			}
			values[i] = v
		}(i)
	}
	wg.Wait()

	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	for i, v := range values {
		if v != int64(i+1) {
			t.Fatalf("expected contiguous set 1..%d, position %d holds %d", m, i, v)
		}
	}
}

func TestHandle_RetriesTransientConflicts(t *testing.T) {
	gen := &flakyGenerator{failures: 2, err: errors.New("deadlock detected")}
	h := NewNextNumberHandler(gen)

	got, err := h.Handle(context.Background(), NextNumberCommand{
		Company: "1", Branch: "1", Scope: domain.Scope{Type: domain.ScopeProduct},
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
	if gen.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", gen.calls)
	}
}

func TestHandle_ExhaustsRetryBudget(t *testing.T) {
	gen := &flakyGenerator{failures: 10, err: errors.New("deadlock detected")}
	h := NewNextNumberHandler(gen)

	_, err := h.Handle(context.Background(), NextNumberCommand{
		Company: "1", Branch: "1", Scope: domain.Scope{Type: domain.ScopeProduct},
	})
	if !errors.Is(err, domain.ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if gen.calls != maxAttempts {
		t.Errorf("expected %d attempts, got %d", maxAttempts, gen.calls)
	}
}

func TestHandle_NonRetryableFailsImmediately(t *testing.T) {
	gen := &flakyGenerator{failures: 10, err: errors.New("permission denied")}
	h := NewNextNumberHandler(gen)

	_, err := h.Handle(context.Background(), NextNumberCommand{
		Company: "1", Branch: "1", Scope: domain.Scope{Type: domain.ScopeProduct},
	})
	if errors.Is(err, domain.ErrRetriesExhausted) {
		t.Fatal("non-retryable error must not be wrapped as retries exhausted")
	}
	if err == nil {
		t.Fatal("expected error")
	}
	if gen.calls != 1 {
		t.Errorf("expected a single attempt, got %d", gen.calls)
	}
}
