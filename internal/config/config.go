// Package config loads the YAML file that describes a backtest or an
// optimization and converts it into engine and optimizer configs.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"simtrader/internal/data"
	"simtrader/internal/engine"
	"simtrader/internal/optimizer"
	"simtrader/internal/repository"
	"simtrader/types"
)

var ErrInvalid = errors.New("invalid config")

type File struct {
	Data      DataConfig      `yaml:"data"`
	Feeds     []FeedConfig    `yaml:"feeds"`
	Account   AccountConfig   `yaml:"account"`
	Reporting ReportingConfig `yaml:"reporting"`
	Strategy  StrategyConfig  `yaml:"strategy"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Output    OutputConfig    `yaml:"output"`
}

// DataConfig selects the bar sources. With both set, Postgres has priority
// and the CSV directory backfills.
type DataConfig struct {
	CSVDir      string `yaml:"csv_dir"`
	PostgresURL string `yaml:"postgres_url"`
}

type FeedConfig struct {
	Symbol   string `yaml:"symbol"`
	Interval string `yaml:"interval"`
	Start    string `yaml:"start"`
	End      string `yaml:"end"`
}

type CommissionConfig struct {
	// zero, fixed, per_share, percent, ibkr_nl, ibkr_fx
	Type     string `yaml:"type"`
	PerOrder string `yaml:"per_order"`
	Rate     string `yaml:"rate"`
	Min      string `yaml:"min"`
	Max      string `yaml:"max"`
}

type AccountConfig struct {
	InitialCash       string           `yaml:"initial_cash"`
	AllowShortSelling bool             `yaml:"allow_short_selling"`
	AllowMargin       bool             `yaml:"allow_margin"`
	RequireFreshBar   bool             `yaml:"require_fresh_bar"`
	Commission        CommissionConfig `yaml:"commission"`
}

type ReportingConfig struct {
	RiskFreeRate string `yaml:"risk_free_rate"`
	Interval     string `yaml:"interval"`
}

type StrategyConfig struct {
	Name   string            `yaml:"name"`
	Params map[string]string `yaml:"params"`
}

type RangeConfig struct {
	Name string `yaml:"name"`
	Min  string `yaml:"min"`
	Max  string `yaml:"max"`
	Step string `yaml:"step"`
}

type OptimizerConfig struct {
	Workers    int           `yaml:"workers"`
	JobTimeout string        `yaml:"job_timeout"`
	Metric     string        `yaml:"metric"`
	Ranges     []RangeConfig `yaml:"ranges"`
	Top        int           `yaml:"top"`
}

type OutputConfig struct {
	OrderLog string `yaml:"order_log"`
}

// Load reads and validates the file at path.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*File, error) {
	f := &File{}
	if err := yaml.Unmarshal(raw, f); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	f.applyDefaults()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) applyDefaults() {
	if f.Account.InitialCash == "" {
		f.Account.InitialCash = "100000"
	}
	if f.Optimizer.Metric == "" {
		f.Optimizer.Metric = engine.MetricSharpe
	}
	if f.Optimizer.Top == 0 {
		f.Optimizer.Top = 10
	}
	for i := range f.Feeds {
		if f.Feeds[i].Interval == "" {
			f.Feeds[i].Interval = string(types.Day)
		}
	}
}

// Validate checks everything a run needs. Optimizer ranges are checked by
// Ranges so that a plain backtest does not need them.
func (f *File) Validate() error {
	if f.Data.CSVDir == "" && f.Data.PostgresURL == "" {
		return fmt.Errorf("%w: data.csv_dir or data.postgres_url is required", ErrInvalid)
	}
	if f.Strategy.Name == "" {
		return fmt.Errorf("%w: strategy.name is required", ErrInvalid)
	}
	if !slices.Contains(engine.Metrics, f.Optimizer.Metric) {
		return fmt.Errorf("%w: optimizer.metric %q, want one of %v", ErrInvalid, f.Optimizer.Metric, engine.Metrics)
	}
	if f.Optimizer.Workers < 0 {
		return fmt.Errorf("%w: optimizer.workers must not be negative", ErrInvalid)
	}
	cfg, err := f.EngineConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := f.StrategyParams(); err != nil {
		return err
	}
	return nil
}

// EngineConfig converts the feeds, account and reporting sections.
func (f *File) EngineConfig() (engine.Config, error) {
	feeds := make([]engine.FeedConfig, 0, len(f.Feeds))
	for i, fc := range f.Feeds {
		interval, err := types.ParseInterval(fc.Interval)
		if err != nil {
			return engine.Config{}, fmt.Errorf("%w: feeds[%d]: %w", ErrInvalid, i, err)
		}
		start, err := parseDate(fc.Start)
		if err != nil {
			return engine.Config{}, fmt.Errorf("%w: feeds[%d].start: %w", ErrInvalid, i, err)
		}
		end, err := parseDate(fc.End)
		if err != nil {
			return engine.Config{}, fmt.Errorf("%w: feeds[%d].end: %w", ErrInvalid, i, err)
		}
		feeds = append(feeds, engine.NewFeedConfig(fc.Symbol, interval, start, end))
	}

	cash, err := parseDecimal("account.initial_cash", f.Account.InitialCash, decimal.Zero)
	if err != nil {
		return engine.Config{}, err
	}
	account := engine.NewAccountConfig(cash, f.Account.AllowShortSelling)
	account.AllowMargin = f.Account.AllowMargin
	account.RequireFreshBar = f.Account.RequireFreshBar
	if account.Commission, err = f.Account.Commission.schedule(); err != nil {
		return engine.Config{}, err
	}

	rfr, err := parseDecimal("reporting.risk_free_rate", f.Reporting.RiskFreeRate, decimal.Zero)
	if err != nil {
		return engine.Config{}, err
	}
	var reportInterval types.Interval
	if f.Reporting.Interval != "" {
		if reportInterval, err = types.ParseInterval(f.Reporting.Interval); err != nil {
			return engine.Config{}, fmt.Errorf("%w: reporting.interval: %w", ErrInvalid, err)
		}
	}

	return engine.Config{
		Feeds:     engine.NewFeedConfigs(feeds...),
		Account:   account,
		Reporting: engine.NewReportingConfig(rfr, reportInterval),
	}, nil
}

func (c CommissionConfig) schedule() (engine.CommissionSchedule, error) {
	rate, err := parseDecimal("commission.rate", c.Rate, decimal.Zero)
	if err != nil {
		return nil, err
	}
	lo, err := parseDecimal("commission.min", c.Min, decimal.Zero)
	if err != nil {
		return nil, err
	}
	hi, err := parseDecimal("commission.max", c.Max, decimal.Zero)
	if err != nil {
		return nil, err
	}
	perOrder, err := parseDecimal("commission.per_order", c.PerOrder, decimal.Zero)
	if err != nil {
		return nil, err
	}

	switch c.Type {
	case "", "zero":
		return engine.ZeroCommission{}, nil
	case "fixed":
		return engine.FixedCommission{PerOrder: perOrder}, nil
	case "per_share":
		return engine.PerShareCommission{Rate: rate, Min: lo, Max: hi}, nil
	case "percent":
		return engine.PercentCommission{Rate: rate, Min: lo, Max: hi}, nil
	case "ibkr_nl":
		return engine.IBKRNetherlandsFixedUSD(), nil
	case "ibkr_fx":
		return engine.IBKRForexTier1(), nil
	}
	return nil, fmt.Errorf("%w: unknown commission type %q", ErrInvalid, c.Type)
}

// StrategyParams converts the fixed strategy parameters.
func (f *File) StrategyParams() (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(f.Strategy.Params))
	for k, v := range f.Strategy.Params {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("%w: strategy.params.%s: %w", ErrInvalid, k, err)
		}
		out[k] = d
	}
	return out, nil
}

// Ranges converts the optimizer ranges. Range semantics are checked by the
// optimizer itself.
func (f *File) Ranges() ([]optimizer.Range, error) {
	out := make([]optimizer.Range, 0, len(f.Optimizer.Ranges))
	for i, r := range f.Optimizer.Ranges {
		field := fmt.Sprintf("optimizer.ranges[%d]", i)
		lo, err := parseDecimal(field+".min", r.Min, decimal.Zero)
		if err != nil {
			return nil, err
		}
		hi, err := parseDecimal(field+".max", r.Max, lo)
		if err != nil {
			return nil, err
		}
		step, err := parseDecimal(field+".step", r.Step, decimal.NewFromInt(1))
		if err != nil {
			return nil, err
		}
		out = append(out, optimizer.NewRange(r.Name, lo, hi, step))
	}
	return out, nil
}

// OptimizerConfig builds the optimizer settings around the ranges.
func (f *File) OptimizerConfig(metrics *optimizer.Metrics, showProgress bool) (optimizer.Config, error) {
	ranges, err := f.Ranges()
	if err != nil {
		return optimizer.Config{}, err
	}
	var timeout time.Duration
	if f.Optimizer.JobTimeout != "" {
		if timeout, err = time.ParseDuration(f.Optimizer.JobTimeout); err != nil {
			return optimizer.Config{}, fmt.Errorf("%w: optimizer.job_timeout: %w", ErrInvalid, err)
		}
	}
	return optimizer.Config{
		Ranges:       ranges,
		Workers:      f.Optimizer.Workers,
		JobTimeout:   timeout,
		Metrics:      metrics,
		ShowProgress: showProgress,
	}, nil
}

// OpenSource builds the configured bar source. The returned close function
// releases database connections.
func (f *File) OpenSource(ctx context.Context) (data.Source, func(), error) {
	var sources []data.Source
	closeFn := func() {}
	if f.Data.PostgresURL != "" {
		db, err := repository.NewDatabase(ctx, f.Data.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		sources = append(sources, db)
		closeFn = db.Close
	}
	if f.Data.CSVDir != "" {
		sources = append(sources, data.NewCSV(f.Data.CSVDir))
	}
	if len(sources) == 1 {
		return sources[0], closeFn, nil
	}
	return data.NewSplice(sources...), closeFn, nil
}

// Requests lists the feeds as shared-store preload requests.
func (f *File) Requests() ([]data.Request, error) {
	cfg, err := f.EngineConfig()
	if err != nil {
		return nil, err
	}
	out := make([]data.Request, len(cfg.Feeds))
	for i, fc := range cfg.Feeds {
		out[i] = data.Request{Symbol: fc.Symbol, Interval: fc.Interval, Start: fc.Start, End: fc.End}
	}
	return out, nil
}

func parseDecimal(field, s string, def decimal.Decimal) (decimal.Decimal, error) {
	if s == "" {
		return def, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %w", ErrInvalid, field, err)
	}
	return d, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateTime, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
