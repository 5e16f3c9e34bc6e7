package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"simtrader/internal/config"
	"simtrader/internal/data"
	"simtrader/internal/optimizer"
)

var metricsAddr string

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Grid search the configured parameter ranges",
	Long: `Runs one backtest per combination of the optimizer ranges on a bounded
worker pool and ranks the completed runs by the configured metric.
Interrupting cancels the jobs that have not started yet.`,
	RunE: runOptimize,
}

func init() {
	optimizeCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while optimizing")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return err
	}
	fixed, err := cfg.StrategyParams()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	optCfg, err := cfg.OptimizerConfig(optimizer.NewMetrics(reg), !noProgress)
	if err != nil {
		return err
	}
	if metricsAddr != "" {
		srv := serveMetrics(metricsAddr, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	src, closeSource, err := cfg.OpenSource(ctx)
	if err != nil {
		return err
	}
	defer closeSource()

	// every job reads the same bars
	store := data.NewSharedStore(src)
	reqs, err := cfg.Requests()
	if err != nil {
		return err
	}
	if err := store.Preload(ctx, reqs...); err != nil {
		return err
	}

	objective := optimizer.EngineObjective(engineCfg, store, cfg.Strategy.Name, fixed, cfg.Optimizer.Metric)
	opt, err := optimizer.New(optCfg, objective)
	if err != nil {
		return err
	}
	log.Info().Int("combinations", opt.Size()).Str("strategy", cfg.Strategy.Name).Msg("optimizing")

	results, err := opt.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	printResults(cmd, results, cfg.Optimizer.Metric, cfg.Optimizer.Top)
	return err
}

func printResults(cmd *cobra.Command, results *optimizer.Results, metric string, top int) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RANK\t%s\tNET PROFIT\tMAX DD %%\tTRADES\tPARAMS\n", metric)
	for i, r := range results.Ranked {
		if i == top {
			break
		}
		if r.Report == nil {
			fmt.Fprintf(w, "%d\t%s\t-\t-\t-\t%s\n", i+1, r.Fitness.StringFixed(4), r.Params)
			continue
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
			i+1,
			r.Fitness.StringFixed(4),
			r.Report.NetProfit.StringFixed(2),
			r.Report.MaxDrawdownPercent.StringFixed(4),
			r.Report.TotalTrades,
			r.Params,
		)
	}
	_ = w.Flush()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\ncompleted %d, failed %d, cancelled %d\n", len(results.Ranked), len(results.Failed), len(results.Cancelled))
	for _, jerr := range results.Failed {
		fmt.Fprintf(out, "  failed %s: %v\n", jerr.Params, jerr.Err)
	}
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server")
		}
	}()
	return srv
}
