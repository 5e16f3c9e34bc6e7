package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCommissionSchedules(t *testing.T) {
	tests := []struct {
		name     string
		schedule CommissionSchedule
		qty      string
		price    string
		want     string
	}{
		{"zero", ZeroCommission{}, "100", "10", "0"},
		{"fixed", FixedCommission{PerOrder: d("2.5")}, "100", "10", "2.5"},
		{"fixed on nothing", FixedCommission{PerOrder: d("2.5")}, "0", "10", "0"},
		{"per share", PerShareCommission{Rate: d("0.005"), Min: d("1")}, "1000", "10", "5"},
		{"per share minimum", PerShareCommission{Rate: d("0.005"), Min: d("1")}, "10", "10", "1"},
		{"per share capped", PerShareCommission{Rate: d("0.005"), Min: d("1"), Max: d("3")}, "1000", "10", "3"},
		{"percent", PercentCommission{Rate: d("0.001")}, "100", "50", "5"},
		{"ibkr nl minimum", IBKRNetherlandsFixedUSD(), "10", "10", "1.70"},
		{"ibkr nl rate", IBKRNetherlandsFixedUSD(), "100", "100", "5"},
		{"ibkr nl cap", IBKRNetherlandsFixedUSD(), "1000", "1000", "39"},
		{"ibkr fx minimum", IBKRForexTier1(), "1000", "1.1", "2"},
		{"func", CommissionFunc(func(q, p decimal.Decimal) decimal.Decimal { return q.Mul(p).Div(d("100")) }), "10", "10", "1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.schedule.Commission(d(tc.qty), d(tc.price))
			assert.True(t, d(tc.want).Equal(got), "got %s want %s", got, tc.want)
		})
	}
}
