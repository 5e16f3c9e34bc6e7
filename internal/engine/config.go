package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"simtrader/types"
)

type FeedConfig struct {
	Symbol   string
	Interval types.Interval
	Start    time.Time
	End      time.Time
}

func NewFeedConfigs(feeds ...FeedConfig) []FeedConfig {
	return feeds
}

func NewFeedConfig(symbol string, interval types.Interval, start, end time.Time) FeedConfig {
	return FeedConfig{
		Symbol:   symbol,
		Interval: interval,
		Start:    start,
		End:      end,
	}
}

type AccountConfig struct {
	InitialCash       decimal.Decimal
	AllowShortSelling bool
	// AllowMargin lets buys take cash below zero.
	AllowMargin bool
	Commission  CommissionSchedule
	// RequireFreshBar cancels orders on instruments that did not produce a
	// bar at the fill step instead of filling at the last known close.
	RequireFreshBar bool
}

func NewAccountConfig(initialCash decimal.Decimal, allowShortSelling bool) AccountConfig {
	return AccountConfig{
		InitialCash:       initialCash,
		AllowShortSelling: allowShortSelling,
		Commission:        ZeroCommission{},
	}
}

type ReportingConfig struct {
	RiskFreeRate decimal.Decimal
	// Interval sets the annualization of per-step returns. Defaults to the
	// first feed's interval.
	Interval types.Interval
}

func NewReportingConfig(riskFreeRate decimal.Decimal, interval types.Interval) ReportingConfig {
	return ReportingConfig{
		RiskFreeRate: riskFreeRate,
		Interval:     interval,
	}
}

// Config describes one backtest run.
type Config struct {
	Feeds        []FeedConfig
	Account      AccountConfig
	Reporting    ReportingConfig
	ShowProgress bool
}

func (c Config) Validate() error {
	if len(c.Feeds) == 0 {
		return fmt.Errorf("%w: no feeds", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(c.Feeds))
	for _, f := range c.Feeds {
		if f.Symbol == "" {
			return fmt.Errorf("%w: feed without symbol", ErrInvalidConfig)
		}
		if seen[f.Symbol] {
			return fmt.Errorf("%w: duplicate feed %s", ErrInvalidConfig, f.Symbol)
		}
		seen[f.Symbol] = true
		if !f.Start.IsZero() && !f.End.IsZero() && !f.Start.Before(f.End) {
			return fmt.Errorf("%w: %s start %s not before end %s", ErrInvalidConfig, f.Symbol, f.Start, f.End)
		}
	}
	if c.Account.InitialCash.IsNegative() {
		return fmt.Errorf("%w: negative initial cash", ErrInvalidConfig)
	}
	return nil
}
