package command

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/spsweb/erp-core/internal/params"
	paramsdomain "github.com/spsweb/erp-core/internal/params/domain"
	paramsrepo "github.com/spsweb/erp-core/internal/params/repository"
	"github.com/spsweb/erp-core/internal/stock/domain"
	"github.com/spsweb/erp-core/internal/stock/repository"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

type fixture struct {
	ledger  *repository.MemoryLedgerRepository
	params  *params.Service
	handler *ApplyMovementHandler
}

func newFixture(t *testing.T, overrides map[string]interface{}) *fixture {
	t.Helper()
	ledger := repository.NewMemoryLedgerRepository()
	svc := params.NewService("acme", paramsrepo.NewMemoryParameterStore(), nil)
	for key, value := range overrides {
		if err := svc.Set(context.Background(), "1", "1", key, value, "test"); err != nil {
			t.Fatalf("set parameter %s: %v", key, err)
		}
	}
	return &fixture{
		ledger:  ledger,
		params:  svc,
		handler: NewApplyMovementHandler(ledger, svc),
	}
}

func (f *fixture) apply(t *testing.T, direction domain.Direction, qty string, unitCost *decimal.Decimal) *domain.StockMovement {
	t.Helper()
	m, err := f.handler.Handle(context.Background(), ApplyMovementCommand{
		Company:   "1",
		Branch:    "1",
		Warehouse: "MAIN",
		Item:      "SKU-1",
		Direction: direction,
		Quantity:  dec(qty),
		UnitCost:  unitCost,
		Actor:     "tester",
	})
	if err != nil {
		t.Fatalf("apply %s %s: %v", direction, qty, err)
	}
	return m
}

func (f *fixture) balance(t *testing.T) *domain.StockBalance {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), domain.BalanceKey{
		Company: "1", Branch: "1", Warehouse: "MAIN", Item: "SKU-1",
	})
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return b
}

func assertDecimal(t *testing.T, label string, got, want decimal.Decimal) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("%s: expected %s, got %s", label, want, got)
	}
}

func TestApply_InboundEstablishesAverage(t *testing.T) {
	f := newFixture(t, nil)

	f.apply(t, domain.DirectionIn, "10", decPtr("5"))

	b := f.balance(t)
	assertDecimal(t, "quantity", b.Quantity, dec("10"))
	assertDecimal(t, "avg cost", b.AvgUnitCost, dec("5"))
}

func TestApply_InboundRecomputesWeightedAverage(t *testing.T) {
	f := newFixture(t, nil)

	f.apply(t, domain.DirectionIn, "10", decPtr("5"))
	f.apply(t, domain.DirectionIn, "10", decPtr("7"))

	b := f.balance(t)
	assertDecimal(t, "quantity", b.Quantity, dec("20"))
	// (10*5 + 10*7) / 20
	assertDecimal(t, "avg cost", b.AvgUnitCost, dec("6"))
}

func TestApply_OutboundLeavesAverageUntouched(t *testing.T) {
	f := newFixture(t, nil)

	f.apply(t, domain.DirectionIn, "10", decPtr("5"))
	f.apply(t, domain.DirectionIn, "10", decPtr("7"))
	m := f.apply(t, domain.DirectionOut, "5", nil)

	b := f.balance(t)
	assertDecimal(t, "quantity", b.Quantity, dec("15"))
	assertDecimal(t, "avg cost", b.AvgUnitCost, dec("6"))
	// Outbound without a caller cost is valued at the pre-movement average.
	assertDecimal(t, "movement unit cost", m.UnitCost, dec("6"))
	assertDecimal(t, "movement total cost", m.TotalCost, dec("30.00"))
}

func TestApply_InsufficientStockRejectedAtomically(t *testing.T) {
	f := newFixture(t, nil)
	f.apply(t, domain.DirectionIn, "10", decPtr("5"))

	_, err := f.handler.Handle(context.Background(), ApplyMovementCommand{
		Company: "1", Branch: "1", Warehouse: "MAIN", Item: "SKU-1",
		Direction: domain.DirectionOut,
		Quantity:  dec("11"),
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	b := f.balance(t)
	assertDecimal(t, "quantity after rejection", b.Quantity, dec("10"))
	movements, _ := f.ledger.Movements(context.Background(), domain.BalanceKey{
		Company: "1", Branch: "1", Warehouse: "MAIN", Item: "SKU-1",
	}, 0, 0)
	if len(movements) != 1 {
		t.Errorf("rejected movement must not be recorded, got %d movements", len(movements))
	}
	if f.ledger.HistoryCount() != 1 {
		t.Errorf("rejected movement must not leave history rows, got %d", f.ledger.HistoryCount())
	}
}

func TestApply_NegativeStockAllowedByPolicy(t *testing.T) {
	f := newFixture(t, map[string]interface{}{
		paramsdomain.KeyAllowNegativeStock: true,
	})
	f.apply(t, domain.DirectionIn, "10", decPtr("5"))
	f.apply(t, domain.DirectionOut, "15", nil)

	b := f.balance(t)
	assertDecimal(t, "quantity", b.Quantity, dec("-5"))
	assertDecimal(t, "avg cost", b.AvgUnitCost, dec("5"))
}

func TestApply_StockControlOffRecordsWithoutBalanceChange(t *testing.T) {
	f := newFixture(t, map[string]interface{}{
		paramsdomain.KeyStockControlEnabled: false,
	})

	f.apply(t, domain.DirectionIn, "10", decPtr("5"))
	f.apply(t, domain.DirectionOut, "500", nil)

	b := f.balance(t)
	assertDecimal(t, "quantity", b.Quantity, decimal.Zero)
	assertDecimal(t, "avg cost", b.AvgUnitCost, decimal.Zero)

	movements, _ := f.ledger.Movements(context.Background(), domain.BalanceKey{
		Company: "1", Branch: "1", Warehouse: "MAIN", Item: "SKU-1",
	}, 0, 0)
	if len(movements) != 2 {
		t.Errorf("expected 2 recorded movements, got %d", len(movements))
	}
	if f.ledger.HistoryCount() != 2 {
		t.Errorf("expected 2 history rows, got %d", f.ledger.HistoryCount())
	}
}

func TestApply_InvalidInput(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.handler.Handle(context.Background(), ApplyMovementCommand{
		Company: "1", Branch: "1", Warehouse: "MAIN", Item: "SKU-1",
		Direction: domain.DirectionIn,
		Quantity:  dec("0"),
	})
	if !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Errorf("zero quantity: expected ErrInvalidQuantity, got %v", err)
	}

	_, err = f.handler.Handle(context.Background(), ApplyMovementCommand{
		Company: "1", Branch: "1", Warehouse: "MAIN", Item: "SKU-1",
		Direction: domain.Direction("SIDEWAYS"),
		Quantity:  dec("1"),
	})
	if !errors.Is(err, domain.ErrInvalidDirection) {
		t.Errorf("bad direction: expected ErrInvalidDirection, got %v", err)
	}

	_, err = f.handler.Handle(context.Background(), ApplyMovementCommand{
		Company: "1", Branch: "1", Warehouse: "MAIN", Item: "SKU-1",
		Direction: domain.DirectionIn,
		Quantity:  dec("1"),
		UnitCost:  decPtr("-5"),
	})
	if err == nil {
		t.Error("negative unit cost must be rejected")
	}
}

func TestApply_InboundRequiresUnitCost(t *testing.T) {
	f := newFixture(t, nil)
	f.apply(t, domain.DirectionIn, "10", decPtr("5"))

	_, err := f.handler.Handle(context.Background(), ApplyMovementCommand{
		Company: "1", Branch: "1", Warehouse: "MAIN", Item: "SKU-1",
		Direction: domain.DirectionIn,
		Quantity:  dec("10"),
	})
	if !errors.Is(err, domain.ErrUnitCostRequired) {
		t.Fatalf("expected ErrUnitCostRequired, got %v", err)
	}

	// A zero-valued receipt would have dragged the average from 5 to 2.5.
	b := f.balance(t)
	assertDecimal(t, "quantity", b.Quantity, dec("10"))
	assertDecimal(t, "avg cost", b.AvgUnitCost, dec("5"))
}

func TestApply_ConcurrentOutboundsNeverOversell(t *testing.T) {
	f := newFixture(t, nil)
	f.apply(t, domain.DirectionIn, "10", decPtr("5"))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.handler.Handle(context.Background(), ApplyMovementCommand{
				Company: "1", Branch: "1", Warehouse: "MAIN", Item: "SKU-1",
				Direction: domain.DirectionOut,
				Quantity:  dec("6"),
			})
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			if !errors.Is(err, domain.ErrInsufficientStock) {
				t.Fatalf("unexpected error: %v", err)
			}
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("expected exactly one rejection, got %d", failures)
	}
	assertDecimal(t, "final quantity", f.balance(t).Quantity, dec("4"))
}

func TestApply_LotTrackingMintsAndConsumes(t *testing.T) {
	f := newFixture(t, map[string]interface{}{
		paramsdomain.KeyLotTrackingEnabled: true,
	})

	first := f.apply(t, domain.DirectionIn, "10", decPtr("5"))
	second := f.apply(t, domain.DirectionIn, "5", decPtr("7"))

	if first.LotNumber == nil || *first.LotNumber != 1 {
		t.Fatalf("first inbound should mint lot 1, got %v", first.LotNumber)
	}
	if second.LotNumber == nil || *second.LotNumber != 2 {
		t.Fatalf("second inbound should mint lot 2, got %v", second.LotNumber)
	}

	f.apply(t, domain.DirectionOut, "12", nil)

	lots := f.ledger.Lots("1", "1", "SKU-1")
	if len(lots) != 2 {
		t.Fatalf("expected 2 lots, got %d", len(lots))
	}
	assertDecimal(t, "oldest lot drained first", lots[0].Balance, decimal.Zero)
	assertDecimal(t, "newest lot keeps remainder", lots[1].Balance, dec("3"))
}

func TestApply_LotShortfallRejectedWithoutNegatives(t *testing.T) {
	f := newFixture(t, map[string]interface{}{
		paramsdomain.KeyLotTrackingEnabled: true,
	})
	f.apply(t, domain.DirectionIn, "10", decPtr("5"))

	_, err := f.handler.Handle(context.Background(), ApplyMovementCommand{
		Company: "1", Branch: "1", Warehouse: "MAIN", Item: "SKU-1",
		Direction: domain.DirectionOut,
		Quantity:  dec("12"),
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	lots := f.ledger.Lots("1", "1", "SKU-1")
	if len(lots) != 1 {
		t.Fatalf("expected 1 lot, got %d", len(lots))
	}
	assertDecimal(t, "lot untouched after rejection", lots[0].Balance, dec("10"))
	assertDecimal(t, "balance untouched after rejection", f.balance(t).Quantity, dec("10"))
}

func TestApply_FractionalAverageRoundsToSixPlaces(t *testing.T) {
	f := newFixture(t, nil)

	f.apply(t, domain.DirectionIn, "3", decPtr("10"))
	f.apply(t, domain.DirectionIn, "4", decPtr("12"))

	// (3*10 + 4*12) / 7 = 78/7 = 11.142857...
	assertDecimal(t, "avg cost", f.balance(t).AvgUnitCost, dec("11.142857"))
}
