package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestWeightedAverage(t *testing.T) {
	cases := []struct {
		name     string
		qty      string
		avg      string
		inQty    string
		inCost   string
		expected string
	}{
		{"first receipt", "0", "0", "10", "5", "5"},
		{"blends costs", "10", "5", "10", "7", "6"},
		{"repeats at same cost", "20", "6", "10", "6", "6"},
		{"rounds to six places", "3", "10", "4", "12", "11.142857"},
		{"recovers from negative balance", "-5", "4", "10", "6", "8"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			current := StockBalance{Quantity: dec(c.qty), AvgUnitCost: dec(c.avg)}
			got := WeightedAverage(current, dec(c.inQty), dec(c.inCost))
			if !got.Equal(dec(c.expected)) {
				t.Errorf("expected %s, got %s", c.expected, got)
			}
		})
	}
}

func TestWeightedAverage_NonPositiveResultQuantity(t *testing.T) {
	current := StockBalance{Quantity: dec("-10"), AvgUnitCost: dec("5")}
	got := WeightedAverage(current, dec("10"), dec("8"))
	if !got.IsZero() {
		t.Errorf("non-positive resulting quantity must reset the average, got %s", got)
	}
}
