package optimizer

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"

	"simtrader/internal/data"
	"simtrader/internal/engine"
)

type Config struct {
	Ranges       []Range
	Workers      int
	JobTimeout   time.Duration
	Metrics      *Metrics
	ShowProgress bool
}

// Result is one completed job.
type Result struct {
	JobID    uuid.UUID
	Params   ParameterSet
	Fitness  decimal.Decimal
	Report   *engine.Report
	Duration time.Duration
}

// Results holds the ranked completions and the jobs that did not complete.
type Results struct {
	Ranked    []Result
	Failed    []*JobError
	Cancelled []ParameterSet
}

// Best is the top ranked result.
func (r *Results) Best() (Result, bool) {
	if len(r.Ranked) == 0 {
		return Result{}, false
	}
	return r.Ranked[0], true
}

// Optimizer runs a grid search. The grid is scheduled when New returns so
// individual jobs can be cancelled before Run.
type Optimizer struct {
	grid      []ParameterSet
	scheduler *Scheduler
	objective Objective
	progress  bool
}

func New(cfg Config, objective Objective) (*Optimizer, error) {
	if objective == nil {
		return nil, fmt.Errorf("%w: no objective", ErrConfiguration)
	}
	grid, err := Grid(cfg.Ranges...)
	if err != nil {
		return nil, err
	}
	sched, err := NewScheduler(SchedulerConfig{Workers: cfg.Workers, JobTimeout: cfg.JobTimeout, Metrics: cfg.Metrics})
	if err != nil {
		return nil, err
	}
	for _, p := range grid {
		sched.Submit(p)
	}
	return &Optimizer{grid: grid, scheduler: sched, objective: objective, progress: cfg.ShowProgress}, nil
}

// Size is the number of grid points.
func (o *Optimizer) Size() int {
	return len(o.grid)
}

func (o *Optimizer) Jobs() []*Job {
	return o.scheduler.Jobs()
}

// Run executes every job and ranks the completed ones by fitness, highest
// first. Ties keep a stable order by parameter key.
func (o *Optimizer) Run(ctx context.Context) (*Results, error) {
	jobs := o.scheduler.Jobs()
	log.Info().Int("jobs", len(jobs)).Int("workers", o.scheduler.Workers()).Msg("optimization started")

	if o.progress {
		bar := initProgressBar(len(jobs))
		var mu sync.Mutex
		o.scheduler.onDone = func(*Job) {
			mu.Lock()
			defer mu.Unlock()
			_ = bar.Add(1)
		}
		defer func() { _ = bar.Finish() }()
	}

	runErr := o.scheduler.Run(ctx, o.objective)

	res := &Results{}
	for _, j := range jobs {
		switch j.State() {
		case JobCompleted:
			eval := j.Evaluation()
			res.Ranked = append(res.Ranked, Result{
				JobID:    j.ID,
				Params:   j.Params,
				Fitness:  eval.Fitness,
				Report:   eval.Report,
				Duration: j.Duration(),
			})
		case JobFailed:
			var jerr *JobError
			if !errors.As(j.Err(), &jerr) {
				jerr = &JobError{Params: j.Params, Err: j.Err()}
			}
			res.Failed = append(res.Failed, jerr)
		case JobCancelled:
			res.Cancelled = append(res.Cancelled, j.Params)
		}
	}
	sort.SliceStable(res.Ranked, func(a, b int) bool {
		fa, fb := res.Ranked[a].Fitness, res.Ranked[b].Fitness
		if !fa.Equal(fb) {
			return fa.GreaterThan(fb)
		}
		return res.Ranked[a].Params.Key() < res.Ranked[b].Params.Key()
	})

	log.Info().
		Int("completed", len(res.Ranked)).
		Int("failed", len(res.Failed)).
		Int("cancelled", len(res.Cancelled)).
		Msg("optimization finished")
	return res, runErr
}

// EngineObjective runs the registered strategy with the job's parameters
// layered over fixed and scores the report with metric, or with the
// strategy's own Fitness when it implements engine.Scorer.
func EngineObjective(cfg engine.Config, src data.Source, strategy string, fixed map[string]decimal.Decimal, metric string) Objective {
	cfg.ShowProgress = false
	return func(ctx context.Context, params ParameterSet) (Evaluation, error) {
		all := maps.Clone(fixed)
		if all == nil {
			all = make(map[string]decimal.Decimal, len(params))
		}
		maps.Copy(all, params)

		strat, err := engine.NewStrategy(strategy, all)
		if err != nil {
			return Evaluation{}, err
		}
		res, err := engine.NewEngine(cfg, src, strat).Run(ctx)
		if err != nil {
			return Evaluation{}, err
		}

		var fitness decimal.Decimal
		if scorer, ok := strat.(engine.Scorer); ok {
			fitness, err = scorer.Fitness(res.Report)
		} else {
			fitness, err = res.Report.Metric(metric)
		}
		if err != nil {
			return Evaluation{}, err
		}
		return Evaluation{Fitness: fitness, Report: res.Report}, nil
	}
}

func initProgressBar(maxTicks int) *progressbar.ProgressBar {
	return progressbar.NewOptions(maxTicks,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("Optimizing..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
