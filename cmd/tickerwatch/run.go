package main

import (
	"context"
	"strings"

	"github.com/rxtech-lab/tickerwatch/internal/config"
	"github.com/rxtech-lab/tickerwatch/internal/logger"
	"github.com/rxtech-lab/tickerwatch/internal/pipeline"
	"github.com/rxtech-lab/tickerwatch/internal/report"
	"github.com/rxtech-lab/tickerwatch/internal/status"
	"github.com/rxtech-lab/tickerwatch/internal/types"
	"github.com/rxtech-lab/tickerwatch/pkg/marketdata"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// runAction loads the configuration, prints the CSV header and runs the
// pipeline until the process is interrupted.
func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: cmd.String("config"),
		EnvFile:    cmd.String("env-file"),
		Override:   flagOverrides(cmd),
	})
	if err != nil {
		return err
	}

	log, err := logger.NewLoggerWithLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	client, err := marketdata.NewClient(cfg.ClientConfig(), log.Named("marketdata"))
	if err != nil {
		return err
	}

	writer := report.NewCSVWriter(cmd.Root().Writer)
	if err := writer.WriteHeader(); err != nil {
		return err
	}

	counters := status.NewCounters()

	p, err := pipeline.New(cfg.PipelineConfig(), client, writer, counters, log.Named("pipeline"))
	if err != nil {
		return err
	}

	log.Info("Starting tickerwatch",
		zap.Strings("symbols", cfg.Symbols),
		zap.String("provider", client.ProviderName()),
		zap.Time("from", cfg.From),
		zap.String("interval", string(cfg.Interval)),
		zap.Duration("period", cfg.Period),
	)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.StatusAddr != "" {
		server := status.NewServer(cfg.StatusAddr, counters, p.State, log.Named("status"))
		g.Go(func() error {
			return server.Run(gctx)
		})
	}

	g.Go(func() error {
		return p.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("Stopped", zap.Uint64("rows", writer.Rows()))

	return nil
}

// flagOverrides applies only the flags given explicitly, so flag defaults
// never mask the config file or the environment.
func flagOverrides(cmd *cli.Command) func(*config.Config) {
	return func(cfg *config.Config) {
		if symbols := collectSymbols(cmd.StringSlice("symbols"), cmd.Args().Slice()); len(symbols) > 0 {
			cfg.Symbols = symbols
		}

		if cmd.IsSet("from") {
			cfg.From = cmd.Timestamp("from")
		}

		if cmd.IsSet("interval") {
			cfg.Interval = types.Interval(cmd.String("interval"))
		}

		if cmd.IsSet("period") {
			cfg.Period = cmd.Duration("period")
		}

		if cmd.IsSet("provider") {
			cfg.Provider = cmd.String("provider")
		}

		if cmd.IsSet("polygon-api-key") {
			cfg.PolygonAPIKey = cmd.String("polygon-api-key")
		}

		if cmd.IsSet("log-level") {
			cfg.LogLevel = cmd.String("log-level")
		}

		if cmd.IsSet("status-addr") {
			cfg.StatusAddr = cmd.String("status-addr")
		}
	}
}

// collectSymbols merges flag and positional symbols, splitting on commas and
// dropping blanks and duplicates while keeping first-seen order.
func collectSymbols(lists ...[]string) []string {
	seen := make(map[string]struct{})
	symbols := make([]string, 0)

	for _, list := range lists {
		for _, item := range list {
			for _, symbol := range strings.Split(item, ",") {
				symbol = strings.TrimSpace(symbol)
				if symbol == "" {
					continue
				}

				if _, ok := seen[symbol]; ok {
					continue
				}

				seen[symbol] = struct{}{}
				symbols = append(symbols, symbol)
			}
		}
	}

	return symbols
}
