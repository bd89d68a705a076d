package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testLots(balances ...string) []*Lot {
	lots := make([]*Lot, 0, len(balances))
	for i, b := range balances {
		lots = append(lots, &Lot{
			Product: "SKU-1",
			Number:  int64(i + 1),
			Balance: dec(b),
			Active:  true,
		})
	}
	return lots
}

func TestConsume_DrainsOldestFirst(t *testing.T) {
	lots := testLots("10", "5")

	touched, err := Consume(lots, dec("12"), false)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(touched) != 2 {
		t.Fatalf("expected 2 touched lots, got %d", len(touched))
	}
	if !lots[0].Balance.IsZero() {
		t.Errorf("oldest lot should be drained, balance %s", lots[0].Balance)
	}
	if !lots[1].Balance.Equal(dec("3")) {
		t.Errorf("newest lot should keep 3, balance %s", lots[1].Balance)
	}
}

func TestConsume_PartialLeavesNewerLotsUntouched(t *testing.T) {
	lots := testLots("10", "5")

	touched, err := Consume(lots, dec("4"), false)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(touched) != 1 {
		t.Fatalf("expected 1 touched lot, got %d", len(touched))
	}
	if !lots[0].Balance.Equal(dec("6")) {
		t.Errorf("oldest lot balance: expected 6, got %s", lots[0].Balance)
	}
	if !lots[1].Balance.Equal(dec("5")) {
		t.Errorf("newer lot must stay untouched, got %s", lots[1].Balance)
	}
}

func TestConsume_SkipsInactiveLots(t *testing.T) {
	lots := testLots("10", "5")
	lots[0].Active = false

	if _, err := Consume(lots, dec("8"), false); !errors.Is(err, ErrInsufficientLotStock) {
		t.Fatalf("inactive balance must not count, got %v", err)
	}

	touched, err := Consume(lots, dec("5"), false)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(touched) != 1 || touched[0] != lots[1] {
		t.Error("only the active lot should be consumed")
	}
	if !lots[0].Balance.Equal(dec("10")) {
		t.Errorf("inactive lot must stay untouched, got %s", lots[0].Balance)
	}
}

func TestConsume_InsufficientWithoutNegatives(t *testing.T) {
	lots := testLots("10", "5")

	_, err := Consume(lots, dec("16"), false)
	if !errors.Is(err, ErrInsufficientLotStock) {
		t.Fatalf("expected ErrInsufficientLotStock, got %v", err)
	}
	if !lots[0].Balance.Equal(dec("10")) || !lots[1].Balance.Equal(dec("5")) {
		t.Error("failed consume must not mutate lot balances")
	}
}

func TestConsume_ShortfallLandsOnNewestLot(t *testing.T) {
	lots := testLots("10", "5")

	touched, err := Consume(lots, dec("16"), true)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(touched) != 2 {
		t.Fatalf("expected 2 touched lots, got %d", len(touched))
	}
	if !lots[0].Balance.IsZero() {
		t.Errorf("oldest lot should be drained, got %s", lots[0].Balance)
	}
	if !lots[1].Balance.Equal(dec("-1")) {
		t.Errorf("newest lot should absorb the shortfall, got %s", lots[1].Balance)
	}
}

func TestConsume_NoActiveLotsWithNegatives(t *testing.T) {
	lots := testLots("10")
	lots[0].Active = false

	if _, err := Consume(lots, dec("1"), true); !errors.Is(err, ErrInsufficientLotStock) {
		t.Fatalf("no active lot can absorb a shortfall, got %v", err)
	}
}
