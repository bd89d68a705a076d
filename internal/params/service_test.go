package params

import (
	"context"
	"testing"

	"github.com/spsweb/erp-core/internal/params/domain"
	"github.com/spsweb/erp-core/internal/params/repository"
)

func newTestService() (*Service, *repository.MemoryParameterStore) {
	store := repository.NewMemoryParameterStore()
	return NewService("acme", store, nil), store
}

func TestGet_FallsBackToRegistryDefault(t *testing.T) {
	svc, _ := newTestService()

	got, err := svc.GetBool(context.Background(), "1", "1", domain.KeyStockControlEnabled)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got {
		t.Error("stock control should default to enabled")
	}

	got, err = svc.GetBool(context.Background(), "1", "1", domain.KeyAllowNegativeStock)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got {
		t.Error("negative stock should default to disallowed")
	}
}

func TestGet_UnregisteredKey(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.Get(context.Background(), "1", "1", "no_such_key"); err == nil {
		t.Fatal("expected error for unregistered key")
	}
}

func TestSet_OverridesDefaultPerBranch(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if err := svc.Set(ctx, "1", "1", domain.KeyAllowNegativeStock, true, "admin"); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := svc.GetBool(ctx, "1", "1", domain.KeyAllowNegativeStock)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got {
		t.Error("override not visible")
	}

	// Other branches keep the default.
	got, err = svc.GetBool(ctx, "1", "2", domain.KeyAllowNegativeStock)
	if err != nil {
		t.Fatalf("get other branch: %v", err)
	}
	if got {
		t.Error("override must not leak to other branches")
	}
}

func TestSet_RejectsUnregisteredKey(t *testing.T) {
	svc, _ := newTestService()

	if err := svc.Set(context.Background(), "1", "1", "no_such_key", true, "admin"); err == nil {
		t.Fatal("expected error for unregistered key")
	}
}

func TestSet_AppendsAuditLog(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	if err := svc.Set(ctx, "1", "1", domain.KeyLotTrackingEnabled, true, "admin"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := svc.Set(ctx, "1", "1", domain.KeyLotTrackingEnabled, false, "admin"); err != nil {
		t.Fatalf("second set: %v", err)
	}

	logs := store.Logs()
	if len(logs) != 2 {
		t.Fatalf("expected 2 audit rows, got %d", len(logs))
	}
	last := logs[1]
	if last.OldValue != "true" || last.NewValue != "false" {
		t.Errorf("audit row should carry old and new values, got %q -> %q", last.OldValue, last.NewValue)
	}
	if last.Actor != "admin" {
		t.Errorf("audit row actor: expected admin, got %q", last.Actor)
	}
}

func TestSync_SeedsDefaultsIdempotently(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Sync(ctx, "1", "1")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if created != len(domain.Registry) {
		t.Errorf("expected %d created parameters, got %d", len(domain.Registry), created)
	}

	created, err = svc.Sync(ctx, "1", "1")
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if created != 0 {
		t.Errorf("second sync must create nothing, got %d", created)
	}
}

func TestSync_DoesNotClobberOverrides(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if err := svc.Set(ctx, "1", "1", domain.KeyAllowNegativeStock, true, "admin"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := svc.Sync(ctx, "1", "1"); err != nil {
		t.Fatalf("sync: %v", err)
	}

	got, err := svc.GetBool(ctx, "1", "1", domain.KeyAllowNegativeStock)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got {
		t.Error("sync must not overwrite an existing value")
	}
}
