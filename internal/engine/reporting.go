package engine

import (
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"

	"simtrader/types"
)

// Fitness metric names accepted by Report.Metric.
const (
	MetricNetProfit   = "net_profit"
	MetricTotalReturn = "total_return"
	MetricSharpe      = "sharpe"
	MetricSortino     = "sortino"
	MetricNAV         = "nav"
	MetricCalmar      = "calmar"
)

var Metrics = []string{MetricNetProfit, MetricTotalReturn, MetricSharpe, MetricSortino, MetricNAV, MetricCalmar}

type Report struct {
	Run uuid.UUID

	// Meta / period info
	StartDate   time.Time
	EndDate     time.Time
	TotalPeriod time.Duration
	TotalTrades int
	Orders      int
	Cancelled   int

	// Absolute performance
	InitialNAV           decimal.Decimal
	FinalNAV             decimal.Decimal
	NetProfit            decimal.Decimal
	TotalReturn          decimal.Decimal
	NetAvgProfitPerTrade decimal.Decimal
	CAGR                 decimal.Decimal

	// Trade-level distribution metrics
	WinRate decimal.Decimal
	AvgWin  decimal.Decimal
	AvgLoss decimal.Decimal

	// Drawdown & loss streak metrics
	MaxDrawdown          decimal.Decimal
	MaxDrawdownPercent   decimal.Decimal
	MaxDrawdownDuration  time.Duration
	MaxConsecutiveLosses int

	// Risk-adjusted metrics
	Volatility   decimal.Decimal
	SharpeRatio  decimal.Decimal
	SortinoRatio decimal.Decimal
	ProfitFactor decimal.Decimal

	// Costs
	TotalFees decimal.Decimal

	RoundTrips []types.RoundTrip
}

// Metric returns the named fitness value. Higher is better for all of them.
func (r *Report) Metric(name string) (decimal.Decimal, error) {
	switch name {
	case MetricNetProfit:
		return r.NetProfit, nil
	case MetricTotalReturn:
		return r.TotalReturn, nil
	case MetricSharpe:
		return r.SharpeRatio, nil
	case MetricSortino:
		return r.SortinoRatio, nil
	case MetricNAV:
		return r.FinalNAV, nil
	case MetricCalmar:
		if r.MaxDrawdownPercent.IsZero() {
			return decimal.Zero, nil
		}
		return r.CAGR.Div(r.MaxDrawdownPercent), nil
	}
	return decimal.Zero, fmt.Errorf("%q: %w", name, ErrUnknownMetric)
}

func (r *Report) Print(w io.Writer) {
	fmt.Fprintln(w, "===== Trading Report =====")
	fmt.Fprintf(w, "Run:                   %s\n", r.Run)
	fmt.Fprintf(w, "Start Date:            %s\n", r.StartDate.Format("2006-01-02"))
	fmt.Fprintf(w, "End Date:              %s\n", r.EndDate.Format("2006-01-02"))
	fmt.Fprintf(w, "Total Period:          %d days\n", r.TotalPeriod/(24*time.Hour))
	fmt.Fprintf(w, "Orders:                %d (%d cancelled)\n", r.Orders, r.Cancelled)
	fmt.Fprintf(w, "Total Trades:          %d\n", r.TotalTrades)

	fmt.Fprintln(w, "\n-- Absolute Performance --")
	fmt.Fprintf(w, "Initial NAV:           %s\n", r.InitialNAV.StringFixed(2))
	fmt.Fprintf(w, "Final NAV:             %s\n", r.FinalNAV.StringFixed(2))
	fmt.Fprintf(w, "Net Profit:            %s\n", r.NetProfit.StringFixed(2))
	fmt.Fprintf(w, "Total Return:          %s\n", r.TotalReturn.StringFixed(4))
	fmt.Fprintf(w, "Avg Profit/Trade:      %s\n", r.NetAvgProfitPerTrade.StringFixed(2))
	fmt.Fprintf(w, "CAGR:                  %s\n", r.CAGR.StringFixed(4))

	fmt.Fprintln(w, "\n-- Trade-Level Metrics --")
	fmt.Fprintf(w, "Win Rate:              %s\n", r.WinRate.StringFixed(4))
	fmt.Fprintf(w, "Avg Win:               %s\n", r.AvgWin.StringFixed(2))
	fmt.Fprintf(w, "Avg Loss:              %s\n", r.AvgLoss.StringFixed(2))

	fmt.Fprintln(w, "\n-- Drawdown Metrics --")
	fmt.Fprintf(w, "Max Drawdown:          %s\n", r.MaxDrawdown.StringFixed(2))
	fmt.Fprintf(w, "Max Drawdown %%:        %s\n", r.MaxDrawdownPercent.StringFixed(4))
	fmt.Fprintf(w, "Max Drawdown Duration: %v\n", r.MaxDrawdownDuration)
	fmt.Fprintf(w, "Max Consecutive Losses:%d\n", r.MaxConsecutiveLosses)

	fmt.Fprintln(w, "\n-- Risk-Adjusted Metrics --")
	fmt.Fprintf(w, "Volatility:            %s\n", r.Volatility.StringFixed(4))
	fmt.Fprintf(w, "Sharpe Ratio:          %s\n", r.SharpeRatio.StringFixed(4))
	fmt.Fprintf(w, "Sortino Ratio:         %s\n", r.SortinoRatio.StringFixed(4))
	fmt.Fprintf(w, "Profit Factor:         %s\n", r.ProfitFactor.StringFixed(4))

	fmt.Fprintln(w, "\n-- Costs --")
	fmt.Fprintf(w, "Total Fees:            %s\n", r.TotalFees.StringFixed(2))

	fmt.Fprintln(w, "==========================")
}

func generateReport(run uuid.UUID, acct *Account, cfg ReportingConfig) *Report {
	snapshots := acct.Snapshots()
	orders := acct.Log()
	trips := roundTrips(orders)

	report := &Report{
		Run:        run,
		Orders:     len(orders),
		InitialNAV: acct.InitialCash(),
		FinalNAV:   acct.InitialCash(),
		TotalFees:  acct.TotalFees(),
		RoundTrips: trips,
	}
	for _, o := range orders {
		if o.Status == types.OrderCancelled {
			report.Cancelled++
		}
	}
	if len(snapshots) > 0 {
		report.StartDate = snapshots[0].Time
		report.EndDate = snapshots[len(snapshots)-1].Time
		report.TotalPeriod = report.EndDate.Sub(report.StartDate).Truncate(24 * time.Hour)
		report.FinalNAV = snapshots[len(snapshots)-1].NAV
	}
	report.NetProfit = report.FinalNAV.Sub(report.InitialNAV)
	if report.InitialNAV.IsPositive() {
		report.TotalReturn = report.NetProfit.Div(report.InitialNAV)
	}
	closed := closedTrips(trips)
	report.TotalTrades = len(closed)

	periods := cfg.Interval.PeriodsPerYear()

	var wg sync.WaitGroup
	wg.Add(7)
	go func() {
		report.NetAvgProfitPerTrade = calcNetAvgProfitPerTrade(closed, &wg)
	}()
	go func() {
		report.WinRate, report.AvgWin, report.AvgLoss, report.ProfitFactor = calcWinLoss(closed, &wg)
	}()
	go func() {
		report.CAGR = calcCAGR(report.InitialNAV, snapshots, &wg)
	}()
	go func() {
		report.MaxDrawdown, report.MaxDrawdownPercent, report.MaxDrawdownDuration = calcDrawdownMetrics(report.InitialNAV, snapshots, &wg)
	}()
	go func() {
		report.MaxConsecutiveLosses = calcMaxConsecutiveLosses(closed, &wg)
	}()
	go func() {
		report.SharpeRatio, report.Volatility = calcSharpeRatio(report.InitialNAV, snapshots, cfg.RiskFreeRate, periods, &wg)
	}()
	go func() {
		report.SortinoRatio = calcSortinoRatio(report.InitialNAV, snapshots, cfg.RiskFreeRate, periods, &wg)
	}()
	wg.Wait()

	return report
}

// roundTrips walks the filled orders per symbol and cuts a trip each time
// the position returns to flat or flips sign. An open trip at the end of
// the log is kept with a zero Closed time.
func roundTrips(orders []types.OrderRecord) []types.RoundTrip {
	type state struct {
		qty  decimal.Decimal
		trip *types.RoundTrip
	}
	open := make(map[string]*state)
	var trips []types.RoundTrip

	for _, o := range orders {
		if o.Status != types.OrderFilled {
			continue
		}
		st := open[o.Symbol]
		if st == nil {
			st = &state{}
			open[o.Symbol] = st
		}
		if st.trip == nil {
			st.trip = &types.RoundTrip{Symbol: o.Symbol, Opened: o.FilledAt}
		}
		st.trip.Fills++
		st.trip.Fees = st.trip.Fees.Add(o.Commission)
		st.trip.GrossPnL = st.trip.GrossPnL.Add(o.RealizedPnL)

		prev := st.qty
		st.qty = st.qty.Add(o.Quantity)
		if st.qty.IsZero() || (!prev.IsZero() && !sameSide(prev, st.qty)) {
			st.trip.Closed = o.FilledAt
			trips = append(trips, *st.trip)
			st.trip = nil
			if !st.qty.IsZero() {
				st.trip = &types.RoundTrip{Symbol: o.Symbol, Opened: o.FilledAt}
			}
		}
	}
	for _, st := range open {
		if st.trip != nil && !st.qty.IsZero() {
			trips = append(trips, *st.trip)
		}
	}
	sort.SliceStable(trips, func(i, j int) bool {
		return trips[i].Opened.Before(trips[j].Opened)
	})
	return trips
}

func closedTrips(trips []types.RoundTrip) []types.RoundTrip {
	var out []types.RoundTrip
	for _, t := range trips {
		if !t.Closed.IsZero() {
			out = append(out, t)
		}
	}
	return out
}

func calcNetAvgProfitPerTrade(trips []types.RoundTrip, wg *sync.WaitGroup) decimal.Decimal {
	defer wg.Done()
	if len(trips) == 0 {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, t := range trips {
		total = total.Add(t.NetPnL())
	}
	return total.Div(decimal.NewFromInt(int64(len(trips))))
}

func calcWinLoss(trips []types.RoundTrip, wg *sync.WaitGroup) (winRate, avgWin, avgLoss, profitFactor decimal.Decimal) {
	defer wg.Done()

	sumWins := decimal.Zero
	sumLosses := decimal.Zero // absolute loss amounts
	winCount := 0
	lossCount := 0
	for _, t := range trips {
		net := t.NetPnL()
		switch {
		case net.IsPositive():
			sumWins = sumWins.Add(net)
			winCount++
		case net.IsNegative():
			sumLosses = sumLosses.Add(net.Abs())
			lossCount++
		}
	}

	winRate, avgWin, avgLoss, profitFactor = decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	if len(trips) > 0 {
		winRate = decimal.NewFromInt(int64(winCount)).Div(decimal.NewFromInt(int64(len(trips))))
	}
	if winCount > 0 {
		avgWin = sumWins.Div(decimal.NewFromInt(int64(winCount)))
	}
	if lossCount > 0 {
		avgLoss = sumLosses.Div(decimal.NewFromInt(int64(lossCount)))
	}
	if sumLosses.IsPositive() {
		profitFactor = sumWins.Div(sumLosses)
	}
	return winRate, avgWin, avgLoss, profitFactor
}

func calcCAGR(initial decimal.Decimal, snapshots []types.NAVSnapshot, wg *sync.WaitGroup) decimal.Decimal {
	defer wg.Done()
	if len(snapshots) < 2 || !initial.IsPositive() {
		return decimal.Zero
	}

	first := snapshots[0]
	last := snapshots[len(snapshots)-1]

	// time difference in years (using 365.25 days to account for leap years)
	duration := last.Time.Sub(first.Time)
	if duration <= 0 {
		return decimal.Zero
	}
	years := duration.Hours() / (24.0 * 365.25)

	ratio := last.NAV.Div(initial)
	if !ratio.IsPositive() {
		return decimal.Zero
	}

	return finite(math.Pow(ratio.InexactFloat64(), 1.0/years) - 1.0)
}

func calcDrawdownMetrics(initial decimal.Decimal, snapshots []types.NAVSnapshot, wg *sync.WaitGroup) (decimal.Decimal, decimal.Decimal, time.Duration) {
	defer wg.Done()
	if len(snapshots) == 0 {
		return decimal.Zero, decimal.Zero, 0
	}

	peak := initial
	peakTime := snapshots[0].Time

	maxDD := decimal.Zero
	maxDDPct := decimal.Zero
	var maxDDDuration time.Duration

	for _, snap := range snapshots {
		if snap.NAV.GreaterThan(peak) {
			peak = snap.NAV
			peakTime = snap.Time
		}
		if !peak.IsPositive() {
			continue
		}
		dd := peak.Sub(snap.NAV)
		if dd.GreaterThan(maxDD) {
			maxDD = dd
			maxDDPct = dd.Div(peak)
		}
		if dd.IsPositive() {
			if d := snap.Time.Sub(peakTime); d > maxDDDuration {
				maxDDDuration = d
			}
		}
	}
	return maxDD, maxDDPct, maxDDDuration
}

func calcMaxConsecutiveLosses(trips []types.RoundTrip, wg *sync.WaitGroup) int {
	defer wg.Done()

	byClose := make([]types.RoundTrip, len(trips))
	copy(byClose, trips)
	sort.SliceStable(byClose, func(i, j int) bool {
		return byClose[i].Closed.Before(byClose[j].Closed)
	})

	maxLossStreak := 0
	currentStreak := 0
	for _, t := range byClose {
		if t.NetPnL().IsNegative() {
			currentStreak++
			maxLossStreak = max(maxLossStreak, currentStreak)
		} else {
			currentStreak = 0
		}
	}
	return maxLossStreak
}

// stepExcessReturns converts the NAV path into per-step returns minus the
// per-step risk-free rate.
func stepExcessReturns(initial decimal.Decimal, snapshots []types.NAVSnapshot, annualRiskFree decimal.Decimal, periods float64) []float64 {
	if periods <= 0 || len(snapshots) == 0 {
		return nil
	}
	rf := math.Pow(1.0+annualRiskFree.InexactFloat64(), 1.0/periods) - 1.0

	out := make([]float64, 0, len(snapshots))
	prev := initial
	for _, snap := range snapshots {
		if prev.IsPositive() {
			r := snap.NAV.Div(prev).Sub(decimal.NewFromInt(1)).InexactFloat64()
			out = append(out, r-rf)
		}
		prev = snap.NAV
	}
	return out
}

func calcSharpeRatio(initial decimal.Decimal, snapshots []types.NAVSnapshot, annualRiskFree decimal.Decimal, periods float64, wg *sync.WaitGroup) (sharpe, volatility decimal.Decimal) {
	defer wg.Done()
	excess := stepExcessReturns(initial, snapshots, annualRiskFree, periods)
	if len(excess) < 2 {
		return decimal.Zero, decimal.Zero
	}
	mean, err := stats.Mean(excess)
	if err != nil {
		return decimal.Zero, decimal.Zero
	}
	sd, err := stats.StandardDeviationSample(excess)
	if err != nil || sd == 0 {
		return decimal.Zero, decimal.Zero
	}
	annual := math.Sqrt(periods)
	return finite(mean / sd * annual), finite(sd * annual)
}

func calcSortinoRatio(initial decimal.Decimal, snapshots []types.NAVSnapshot, annualRiskFree decimal.Decimal, periods float64, wg *sync.WaitGroup) decimal.Decimal {
	defer wg.Done()
	excess := stepExcessReturns(initial, snapshots, annualRiskFree, periods)
	if len(excess) < 2 {
		return decimal.Zero
	}
	mean, err := stats.Mean(excess)
	if err != nil {
		return decimal.Zero
	}
	downside := make([]float64, len(excess))
	for i, x := range excess {
		downside[i] = math.Min(x, 0)
	}
	// root mean square of the downside returns
	sq, err := stats.Mean(squares(downside))
	if err != nil || sq == 0 {
		return decimal.Zero
	}
	return finite(mean / math.Sqrt(sq) * math.Sqrt(periods))
}

// finite converts f, mapping overflow and NaN to zero. Annualizing runs
// that span minutes overflows float64.
func finite(f float64) decimal.Decimal {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

func squares(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = x * x
	}
	return out
}
