package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"simtrader/internal/cache"
	"simtrader/internal/data"
	"simtrader/types"
)

// Engine runs one strategy over the configured feeds. An Engine is not safe
// for concurrent use; the optimizer builds one per job.
type Engine struct {
	cfg      Config
	src      data.Source
	strategy Strategy
	cache    *cache.Cache
}

// Result is the outcome of one run.
type Result struct {
	Run       uuid.UUID
	Steps     int64
	Report    *Report
	Orders    []types.OrderRecord
	Snapshots []types.NAVSnapshot
	Account   types.AccountView
}

func NewEngine(cfg Config, src data.Source, strat Strategy) *Engine {
	return &Engine{
		cfg:      cfg,
		src:      src,
		strategy: strat,
		cache:    cache.New(uuid.Nil),
	}
}

// Run loads the feeds, replays them through the strategy and reports.
// Every call is a fresh run with its own id and an emptied cache.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	if e.strategy == nil {
		return nil, fmt.Errorf("%w: no strategy", ErrInvalidConfig)
	}

	bars, err := e.loadData(ctx)
	if err != nil {
		return nil, err
	}

	run := uuid.New()
	e.cache.Reset(run)
	rc := newContext(ctx, e.cache, e.cfg.Account, e.cfg.Feeds, bars)

	started := time.Now()
	log.Debug().Str("run", run.String()).Int("feeds", len(e.cfg.Feeds)).Msg("run started")

	if e.cfg.ShowProgress {
		bar := initProgressBar(rc.merger.remaining())
		rc.onStep = func(s Step) {
			_ = bar.Add(len(s.Advanced))
		}
		defer func() { _ = bar.Finish() }()
	}

	if err := e.strategy.Init(rc); err != nil {
		return nil, fmt.Errorf("init strategy: %w", err)
	}
	if r, ok := e.strategy.(Runner); ok {
		err = r.Run(rc)
	} else {
		err = e.drive(rc)
	}
	if err == nil {
		err = rc.Err()
	}
	if err != nil {
		return nil, err
	}

	res := &Result{
		Run:       run,
		Steps:     rc.steps,
		Orders:    rc.account.Log(),
		Snapshots: rc.account.Snapshots(),
		Account:   rc.Account(),
	}
	res.Report = generateReport(run, rc.account, e.reportingConfig())
	hits, misses := e.cache.Stats()
	log.Debug().
		Str("run", run.String()).
		Int64("steps", res.Steps).
		Int("orders", len(res.Orders)).
		Int("cacheHits", hits).
		Int("cacheMisses", misses).
		Dur("elapsed", time.Since(started)).
		Msg("run finished")
	return res, nil
}

// drive calls OnStep for each simulated time. Recoverable read errors skip
// the step; anything else ends the run.
func (e *Engine) drive(rc *Context) error {
	for step := range rc.Steps() {
		err := e.strategy.OnStep(rc, step)
		if err == nil {
			continue
		}
		if recoverable(err) {
			log.Debug().Err(err).Str("run", rc.Run().String()).Int64("step", step.Index).Msg("step skipped")
			continue
		}
		return fmt.Errorf("step %d at %s: %w", step.Index, step.Time.Format(time.RFC3339), err)
	}
	return nil
}

func (e *Engine) loadData(ctx context.Context) (map[string][]types.Bar, error) {
	out := make(map[string][]types.Bar, len(e.cfg.Feeds))
	for _, feed := range e.cfg.Feeds {
		bars, err := e.src.Bars(ctx, feed.Symbol, feed.Interval, feed.Start, feed.End)
		if err != nil && !errors.Is(err, data.ErrNoBars) {
			return nil, fmt.Errorf("load %s: %w", feed.Symbol, err)
		}
		if err := data.Validate(feed.Symbol, bars); err != nil {
			return nil, err
		}
		out[feed.Symbol] = bars
	}
	return out, nil
}

func (e *Engine) reportingConfig() ReportingConfig {
	rc := e.cfg.Reporting
	if rc.Interval == "" && len(e.cfg.Feeds) > 0 {
		rc.Interval = e.cfg.Feeds[0].Interval
	}
	return rc
}

func initProgressBar(maxTicks int) *progressbar.ProgressBar {
	return progressbar.NewOptions(maxTicks,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription("Backtesting in progress..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
