package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simtrader/internal/data"
	"simtrader/internal/indicator"
	"simtrader/types"
)

var t0 = time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return t0.AddDate(0, 0, n)
}

// mockBar closes at close on day n.
func mockBar(symbol string, n int, close string) types.Bar {
	c := d(close)
	return types.Bar{
		Symbol:    symbol,
		Open:      c,
		High:      c,
		Low:       c,
		Close:     c,
		Volume:    decimal.NewFromInt(100),
		Interval:  types.Day,
		Timestamp: day(n),
	}
}

func mockBars(symbol string, days ...int) []types.Bar {
	out := make([]types.Bar, len(days))
	for i, n := range days {
		out[i] = mockBar(symbol, n, decimal.NewFromInt(int64(100+n)).String())
	}
	return out
}

func mockEngine(strat Strategy, account AccountConfig, bars ...types.Bar) *Engine {
	seen := map[string]bool{}
	var feeds []FeedConfig
	for _, b := range bars {
		if !seen[b.Symbol] {
			seen[b.Symbol] = true
			feeds = append(feeds, NewFeedConfig(b.Symbol, types.Day, time.Time{}, time.Time{}))
		}
	}
	if account.InitialCash.IsZero() {
		account.InitialCash = d("1000")
	}
	cfg := Config{Feeds: feeds, Account: account}
	return NewEngine(cfg, data.NewMemory(bars...), strat)
}

// funcStrategy adapts closures to Strategy.
type funcStrategy struct {
	init   func(c *Context) error
	onStep func(c *Context, s Step) error
}

func (f *funcStrategy) Init(c *Context) error {
	if f.init == nil {
		return nil
	}
	return f.init(c)
}

func (f *funcStrategy) OnStep(c *Context, s Step) error {
	return f.onStep(c, s)
}

func TestLoop_MergesStreamsByTimestamp(t *testing.T) {
	var got []Step
	strat := &funcStrategy{onStep: func(c *Context, s Step) error {
		got = append(got, s)
		return nil
	}}
	bars := append(mockBars("A", 1, 3, 5), mockBars("B", 2, 3, 4)...)

	res, err := mockEngine(strat, AccountConfig{}, bars...).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, int64(5), res.Steps)

	want := []struct {
		day      int
		advanced []string
	}{
		{1, []string{"A"}},
		{2, []string{"B"}},
		{3, []string{"A", "B"}},
		{4, []string{"B"}},
		{5, []string{"A"}},
	}
	for i, w := range want {
		assert.Equal(t, int64(i+1), got[i].Index)
		assert.True(t, day(w.day).Equal(got[i].Time), "step %d time %s", i, got[i].Time)
		assert.Equal(t, w.advanced, got[i].Advanced)
	}
}

func TestLoop_InstrumentsNotReadyUntilFirstBar(t *testing.T) {
	var ready []bool
	var readErr error
	strat := &funcStrategy{onStep: func(c *Context, s Step) error {
		ready = append(ready, c.Ready("B"))
		if s.Index == 1 {
			inst, err := c.Instrument("B")
			require.NoError(t, err)
			_, readErr = inst.Price()
		}
		return nil
	}}
	bars := append(mockBars("A", 1, 2, 3), mockBars("B", 2, 3)...)

	_, err := mockEngine(strat, AccountConfig{}, bars...).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, true}, ready)
	assert.ErrorIs(t, readErr, ErrDataUnavailable)
}

func TestLoop_OrdersFillAtStepClose(t *testing.T) {
	var qtyDuringStep decimal.Decimal
	strat := &funcStrategy{onStep: func(c *Context, s Step) error {
		switch s.Index {
		case 1:
			_, err := c.Trade("A", d("5"), "entry")
			require.NoError(t, err)
			qtyDuringStep = c.Position("A").Quantity
			assert.Len(t, c.Pending(), 1)
		case 2:
			_, err := c.Trade("A", d("-5"), "exit")
			require.NoError(t, err)
		}
		return nil
	}}
	bars := []types.Bar{
		mockBar("A", 1, "10"),
		mockBar("A", 2, "11"),
		mockBar("A", 3, "12"),
	}
	account := AccountConfig{Commission: FixedCommission{PerOrder: d("1")}}

	res, err := mockEngine(strat, account, bars...).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, qtyDuringStep.IsZero(), "position changed before settlement")
	require.Len(t, res.Orders, 2)

	buy, sell := res.Orders[0], res.Orders[1]
	assert.Equal(t, types.OrderFilled, buy.Status)
	assert.True(t, d("10").Equal(buy.Price), "buy price %s", buy.Price)
	assert.True(t, day(1).Equal(buy.FilledAt))
	assert.Equal(t, types.OrderFilled, sell.Status)
	assert.True(t, d("11").Equal(sell.Price), "sell price %s", sell.Price)
	assert.True(t, d("5").Equal(sell.RealizedPnL))

	// 1000 - 50 - 1 + 55 - 1
	assert.True(t, d("1003").Equal(res.Account.Cash), "cash %s", res.Account.Cash)
	require.Len(t, res.Snapshots, 3)
	assert.True(t, d("949").Equal(res.Snapshots[0].Cash))
	assert.True(t, d("999").Equal(res.Snapshots[0].NAV))
	assert.True(t, d("1003").Equal(res.Snapshots[2].NAV))
}

func TestLoop_OrderCancelledWithoutPrice(t *testing.T) {
	strat := &funcStrategy{onStep: func(c *Context, s Step) error {
		if s.Index == 1 {
			_, err := c.Trade("B", d("1"), "early")
			require.NoError(t, err)
		}
		return nil
	}}
	bars := append(mockBars("A", 1, 2), mockBars("B", 2)...)

	res, err := mockEngine(strat, AccountConfig{}, bars...).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Orders, 1)
	assert.Equal(t, types.OrderCancelled, res.Orders[0].Status)
	assert.Contains(t, res.Orders[0].Reason, ErrDataUnavailable.Error())
	assert.True(t, d("1000").Equal(res.Account.Cash))
}

func TestLoop_RequireFreshBar(t *testing.T) {
	trade := func(c *Context, s Step) error {
		if s.Index == 2 {
			_, err := c.Trade("A", d("1"), "stale")
			require.NoError(t, err)
		}
		return nil
	}
	bars := append(mockBars("A", 1, 3), mockBars("B", 2)...)

	res, err := mockEngine(&funcStrategy{onStep: trade}, AccountConfig{}, bars...).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Orders, 1)
	assert.Equal(t, types.OrderFilled, res.Orders[0].Status)
	assert.True(t, d("101").Equal(res.Orders[0].Price), "last known close")

	res, err = mockEngine(&funcStrategy{onStep: trade}, AccountConfig{RequireFreshBar: true}, bars...).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Orders, 1)
	assert.Equal(t, types.OrderCancelled, res.Orders[0].Status)
}

func TestLoop_UnknownInstrument(t *testing.T) {
	var tradeErr error
	strat := &funcStrategy{onStep: func(c *Context, s Step) error {
		_, tradeErr = c.Trade("ZZZ", d("1"), "")
		return nil
	}}

	_, err := mockEngine(strat, AccountConfig{}, mockBars("A", 1)...).Run(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, tradeErr, ErrUnknownInstrument)
}

func TestLoop_WarmupErrorsDoNotStopTheRun(t *testing.T) {
	var values []string
	strat := &funcStrategy{onStep: func(c *Context, s Step) error {
		inst, err := c.Instrument("A")
		if err != nil {
			return err
		}
		sma, err := indicator.SMA(c.Cache(), inst.Close, 3)
		if err != nil {
			return err
		}
		v, err := sma.Get(0)
		if err != nil {
			return err
		}
		values = append(values, v.String())
		return nil
	}}

	res, err := mockEngine(strat, AccountConfig{}, mockBars("A", 1, 2, 3, 4, 5)...).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Steps)
	assert.Equal(t, []string{"102", "103", "104"}, values)
}

func TestLoop_FatalStepErrorStopsTheRun(t *testing.T) {
	boom := assert.AnError
	strat := &funcStrategy{onStep: func(c *Context, s Step) error {
		if s.Index == 2 {
			return boom
		}
		return nil
	}}

	_, err := mockEngine(strat, AccountConfig{}, mockBars("A", 1, 2, 3)...).Run(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestLoop_ContextCancelStopsAtStepBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	steps := 0
	strat := &funcStrategy{onStep: func(c *Context, s Step) error {
		steps++
		if s.Index == 2 {
			cancel()
		}
		return nil
	}}

	_, err := mockEngine(strat, AccountConfig{}, mockBars("A", 1, 2, 3, 4)...).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, steps)
}

type runnerStrategy struct {
	funcStrategy
	seen int
}

func (r *runnerStrategy) Run(c *Context) error {
	for s := range c.Steps() {
		r.seen++
		if _, err := c.Trade("A", d("1"), "runner"); err != nil {
			return err
		}
		if s.Index == 2 {
			break
		}
	}
	return nil
}

func TestLoop_RunnerDrivesSteps(t *testing.T) {
	strat := &runnerStrategy{}
	strat.onStep = func(*Context, Step) error {
		t.Fatal("OnStep called for a Runner")
		return nil
	}

	res, err := mockEngine(strat, AccountConfig{}, mockBars("A", 1, 2, 3, 4)...).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, strat.seen)
	assert.Equal(t, int64(2), res.Steps)
	// the order placed in the step that broke out is still settled
	require.Len(t, res.Orders, 2)
	assert.Equal(t, types.OrderFilled, res.Orders[1].Status)
}

func TestLoop_EachRunGetsAFreshCache(t *testing.T) {
	var runs []string
	strat := &funcStrategy{onStep: func(c *Context, s Step) error {
		if s.Index == 1 {
			runs = append(runs, c.Run().String())
			assert.Zero(t, c.Cache().Len())
		}
		inst, _ := c.Instrument("A")
		_, err := indicator.SMA(c.Cache(), inst.Close, 2)
		return err
	}}
	e := mockEngine(strat, AccountConfig{}, mockBars("A", 1, 2, 3)...)

	_, err := e.Run(context.Background())
	require.NoError(t, err)
	_, err = e.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.NotEqual(t, runs[0], runs[1])
}

func TestEngine_IntradayRunReports(t *testing.T) {
	minuteBar := func(n int, close string) types.Bar {
		c := d(close)
		return types.Bar{
			Symbol:    "A",
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    decimal.NewFromInt(100),
			Interval:  types.OneMinute,
			Timestamp: t0.Add(time.Duration(n) * time.Minute),
		}
	}
	strat := &funcStrategy{onStep: func(c *Context, s Step) error {
		if s.Index == 1 {
			_, err := c.Trade("A", d("5"), "entry")
			return err
		}
		return nil
	}}
	cfg := Config{
		Feeds:   NewFeedConfigs(NewFeedConfig("A", types.OneMinute, time.Time{}, time.Time{})),
		Account: NewAccountConfig(d("1000"), false),
	}
	src := data.NewMemory(minuteBar(0, "100"), minuteBar(1, "120"))

	res, err := NewEngine(cfg, src, strat).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, d("100").Equal(res.Report.NetProfit), "net profit %s", res.Report.NetProfit)
	assert.True(t, res.Report.CAGR.IsZero(), "cagr %s", res.Report.CAGR)
	for _, m := range Metrics {
		_, err := res.Report.Metric(m)
		assert.NoError(t, err, m)
	}
}
