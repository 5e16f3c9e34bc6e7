package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"simtrader/internal/config"
	"simtrader/internal/engine"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single backtest with the configured strategy parameters",
	RunE:  runBacktest,
}

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List registered strategies",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range engine.Strategies() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func runBacktest(cmd *cobra.Command, args []string) error {
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
	engineCfg.ShowProgress = !noProgress

	params, err := cfg.StrategyParams()
	if err != nil {
		return err
	}
	strat, err := engine.NewStrategy(cfg.Strategy.Name, params)
	if err != nil {
		return err
	}

	src, closeSource, err := cfg.OpenSource(ctx)
	if err != nil {
		return err
	}
	defer closeSource()

	res, err := engine.NewEngine(engineCfg, src, strat).Run(ctx)
	if err != nil {
		return fmt.Errorf("run %s: %w", cfg.Strategy.Name, err)
	}
	res.Report.Print(cmd.OutOrStdout())

	if cfg.Output.OrderLog != "" {
		if err := engine.WriteOrderLogFile(cfg.Output.OrderLog, res.Orders); err != nil {
			return err
		}
		log.Info().Str("path", cfg.Output.OrderLog).Int("orders", len(res.Orders)).Msg("order log written")
	}
	return nil
}
