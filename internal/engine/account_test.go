package engine

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simtrader/types"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestAccount(cfg AccountConfig, cash string, positions ...*Position) *Account {
	cfg.InitialCash = d(cash)
	a := NewAccount(cfg)
	for _, p := range positions {
		a.positions[p.Symbol] = p
	}
	return a
}

func TestAccountApply(t *testing.T) {
	ts := time.UnixMilli(1)
	shorting := AccountConfig{AllowShortSelling: true}
	tests := []struct {
		name         string
		cfg          AccountConfig
		cash         string
		start        []*Position
		qty          string
		price        string
		wantCash     string
		wantPosition Position
		wantRealized string
		wantStatus   types.OrderStatus
		wantErr      error
	}{
		{
			name:     "open long",
			cfg:      AccountConfig{Commission: FixedCommission{PerOrder: d("1.00")}},
			cash:     "10000",
			qty:      "10",
			price:    "100",
			wantCash: "8999",
			wantPosition: Position{
				Symbol: "AAPL", Quantity: d("10"), AvgCost: d("100"), LastPrice: d("100"),
			},
			wantRealized: "0",
			wantStatus:   types.OrderFilled,
		},
		{
			name: "scale-in long (avg cost updates)",
			cash: "10000",
			start: []*Position{
				{Symbol: "AAPL", Quantity: d("10"), AvgCost: d("100"), LastPrice: d("100")},
			},
			qty:      "5",
			price:    "110",
			wantCash: "9450",
			wantPosition: Position{
				Symbol: "AAPL", Quantity: d("15"), AvgCost: d("103.3333333333333333"), LastPrice: d("110"),
			},
			wantRealized: "0",
			wantStatus:   types.OrderFilled,
		},
		{
			name: "reduce long",
			cash: "0",
			start: []*Position{
				{Symbol: "AAPL", Quantity: d("10"), AvgCost: d("100"), LastPrice: d("100")},
			},
			qty:      "-4",
			price:    "120",
			wantCash: "480",
			wantPosition: Position{
				Symbol: "AAPL", Quantity: d("6"), AvgCost: d("100"), LastPrice: d("120"), RealizedPnL: d("80"),
			},
			wantRealized: "80",
			wantStatus:   types.OrderFilled,
		},
		{
			name: "close long at a loss",
			cash: "0",
			start: []*Position{
				{Symbol: "AAPL", Quantity: d("10"), AvgCost: d("100"), LastPrice: d("100")},
			},
			qty:      "-10",
			price:    "90",
			wantCash: "900",
			wantPosition: Position{
				Symbol: "AAPL", Quantity: d("0"), AvgCost: d("0"), LastPrice: d("90"), RealizedPnL: d("-100"),
			},
			wantRealized: "-100",
			wantStatus:   types.OrderFilled,
		},
		{
			name: "flip long to short",
			cfg:  shorting,
			cash: "0",
			start: []*Position{
				{Symbol: "AAPL", Quantity: d("10"), AvgCost: d("100"), LastPrice: d("100")},
			},
			qty:      "-15",
			price:    "110",
			wantCash: "1650",
			wantPosition: Position{
				Symbol: "AAPL", Quantity: d("-5"), AvgCost: d("110"), LastPrice: d("110"), RealizedPnL: d("100"),
			},
			wantRealized: "100",
			wantStatus:   types.OrderFilled,
		},
		{
			name: "cover short",
			cfg:  shorting,
			cash: "1500",
			start: []*Position{
				{Symbol: "AAPL", Quantity: d("-10"), AvgCost: d("50"), LastPrice: d("50")},
			},
			qty:      "10",
			price:    "40",
			wantCash: "1100",
			wantPosition: Position{
				Symbol: "AAPL", Quantity: d("0"), AvgCost: d("0"), LastPrice: d("40"), RealizedPnL: d("100"),
			},
			wantRealized: "100",
			wantStatus:   types.OrderFilled,
		},
		{
			name:         "short selling disabled",
			cash:         "1000",
			qty:          "-1",
			price:        "10",
			wantCash:     "1000",
			wantPosition: Position{Symbol: "AAPL"},
			wantRealized: "0",
			wantStatus:   types.OrderCancelled,
			wantErr:      ErrOrderRejected,
		},
		{
			name:         "insufficient cash",
			cfg:          AccountConfig{Commission: FixedCommission{PerOrder: d("1")}},
			cash:         "200",
			qty:          "2",
			price:        "100",
			wantCash:     "200",
			wantPosition: Position{Symbol: "AAPL"},
			wantRealized: "0",
			wantStatus:   types.OrderCancelled,
			wantErr:      ErrOrderRejected,
		},
		{
			name:     "margin allows negative cash",
			cfg:      AccountConfig{AllowMargin: true},
			cash:     "100",
			qty:      "2",
			price:    "100",
			wantCash: "-100",
			wantPosition: Position{
				Symbol: "AAPL", Quantity: d("2"), AvgCost: d("100"), LastPrice: d("100"),
			},
			wantRealized: "0",
			wantStatus:   types.OrderFilled,
		},
		{
			name:         "no valid price",
			cash:         "100",
			qty:          "1",
			price:        "0",
			wantCash:     "100",
			wantPosition: Position{Symbol: "AAPL"},
			wantRealized: "0",
			wantStatus:   types.OrderCancelled,
			wantErr:      ErrOrderRejected,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := newTestAccount(tc.cfg, tc.cash, tc.start...)
			o := types.NewOrder(1, "AAPL", d(tc.qty), "test", ts)

			rec, err := a.Apply(o, d(tc.price), ts)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tc.wantStatus, rec.Status)
			assert.True(t, d(tc.wantRealized).Equal(rec.RealizedPnL), "realized %s", rec.RealizedPnL)
			assert.True(t, d(tc.wantCash).Equal(a.Cash()), "cash %s", a.Cash())

			got := a.Position("AAPL")
			assert.True(t, tc.wantPosition.Quantity.Equal(got.Quantity), "qty %s", got.Quantity)
			assert.True(t, tc.wantPosition.AvgCost.Equal(got.AvgCost), "avg %s", got.AvgCost)
			assert.True(t, tc.wantPosition.LastPrice.Equal(got.LastPrice), "last %s", got.LastPrice)
			assert.True(t, tc.wantPosition.RealizedPnL.Equal(got.RealizedPnL), "realized %s", got.RealizedPnL)

			log := a.Log()
			require.Len(t, log, 1)
			assert.Equal(t, rec, log[0])
		})
	}
}

func TestAccountNAVInvariant(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	symbols := []string{"AAA", "BBB", "CCC"}
	a := NewAccount(AccountConfig{
		InitialCash:       d("100000"),
		AllowShortSelling: true,
		AllowMargin:       true,
		Commission:        PercentCommission{Rate: d("0.001"), Min: d("1")},
	})
	prices := PriceMap{"AAA": d("50"), "BBB": d("120"), "CCC": d("8")}

	for i := range 2000 {
		sym := symbols[rng.IntN(len(symbols))]
		// random walk of the price in cents, never below one cent
		move := decimal.NewFromInt(int64(rng.IntN(201) - 100)).Div(decimal.NewFromInt(100))
		prices[sym] = decimal.Max(prices[sym].Add(move), d("0.01"))
		a.Mark(prices)

		delta := decimal.NewFromInt(int64(rng.IntN(21) - 10))
		cashBefore := a.Cash()
		rec, err := a.Apply(types.NewOrder(int64(i), sym, delta, "", time.UnixMilli(int64(i))), prices[sym], time.UnixMilli(int64(i)))
		if delta.IsZero() {
			require.ErrorIs(t, err, ErrOrderRejected)
			continue
		}
		require.NoError(t, err)

		// cash moves exactly once: trade value plus commission
		wantCash := cashBefore.Sub(rec.Value()).Sub(rec.Commission)
		require.True(t, wantCash.Equal(a.Cash()), "step %d cash %s want %s", i, a.Cash(), wantCash)

		nav := a.Cash()
		for _, s := range symbols {
			nav = nav.Add(a.Position(s).Quantity.Mul(prices[s]))
		}
		require.True(t, nav.Equal(a.NetAssetValue()), "step %d nav %s want %s", i, a.NetAssetValue(), nav)
	}
}

func TestAccountSnapshotAndView(t *testing.T) {
	a := newTestAccount(AccountConfig{}, "1000")
	_, err := a.Apply(types.NewOrder(1, "AAPL", d("2"), "", time.UnixMilli(1)), d("100"), time.UnixMilli(1))
	require.NoError(t, err)
	a.Mark(PriceMap{"AAPL": d("110")})

	s := a.Snapshot(time.UnixMilli(2))
	assert.True(t, d("800").Equal(s.Cash))
	assert.True(t, d("1020").Equal(s.NAV))
	assert.Len(t, a.Snapshots(), 1)

	view := a.View(time.UnixMilli(2))
	pos := view.Positions["AAPL"]
	assert.True(t, d("20").Equal(pos.UnrealizedPnL()))
	assert.Equal(t, []string{"AAPL"}, a.Symbols())
}

func TestWeightedAvgPrice(t *testing.T) {
	tests := []struct {
		name             string
		existingAvgPrice decimal.Decimal
		existingQty      decimal.Decimal
		newPrice         decimal.Decimal
		newQty           decimal.Decimal
		want             decimal.Decimal
	}{
		{
			name:             "existing qty zero → returns newPrice",
			existingAvgPrice: decimal.RequireFromString("0"),
			existingQty:      decimal.RequireFromString("0"),
			newPrice:         decimal.RequireFromString("123.45"),
			newQty:           decimal.RequireFromString("10"),
			want:             decimal.RequireFromString("123.45"),
		},
		{
			name:             "new qty zero → unchanged average",
			existingAvgPrice: decimal.RequireFromString("100"),
			existingQty:      decimal.RequireFromString("10"),
			newPrice:         decimal.RequireFromString("150"),
			newQty:           decimal.RequireFromString("0"),
			want:             decimal.RequireFromString("100"),
		},
		{
			name:             "simple mix",
			existingAvgPrice: decimal.RequireFromString("100"),
			existingQty:      decimal.RequireFromString("10"),
			newPrice:         decimal.RequireFromString("110"),
			newQty:           decimal.RequireFromString("5"),
			want:             decimal.RequireFromString("103.3333333333333333"),
		},
		{
			name:             "identical prices",
			existingAvgPrice: decimal.RequireFromString("42.00"),
			existingQty:      decimal.RequireFromString("7"),
			newPrice:         decimal.RequireFromString("42.00"),
			newQty:           decimal.RequireFromString("3"),
			want:             decimal.RequireFromString("42.00"),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := weightedAvg(tc.existingAvgPrice, tc.existingQty, tc.newPrice, tc.newQty)
			if !got.Equal(tc.want) {
				t.Fatalf("got %s, want %s", got.String(), tc.want.String())
			}
		})
	}
}
