package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rxtech-lab/tickerwatch/internal/config"
	"github.com/rxtech-lab/tickerwatch/internal/types"
	"github.com/rxtech-lab/tickerwatch/internal/version"
	"github.com/rxtech-lab/tickerwatch/pkg/marketdata/provider"
	"github.com/urfave/cli/v3"
)

func newCommand() *cli.Command {
	defaults := config.Default()

	return &cli.Command{
		Name:      "tickerwatch",
		Usage:     "Poll market data and print a rolling summary per symbol as CSV",
		ArgsUsage: "[SYMBOL...]",
		Version:   version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "symbols",
				Aliases: []string{"s"},
				Usage:   "Comma separated ticker symbols, merged with positional arguments",
			},
			&cli.TimestampFlag{
				Name:    "from",
				Aliases: []string{"f"},
				Usage:   "Fixed start of every history query in `RFC3339` format",
				Config: cli.TimestampConfig{
					Layouts: []string{time.RFC3339},
				},
			},
			&cli.StringFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   fmt.Sprintf("Sampling interval (one of %s)", joinIntervals()),
				Value:   string(defaults.Interval),
			},
			&cli.DurationFlag{
				Name:  "period",
				Usage: "Time between two scheduler ticks",
				Value: defaults.Period,
			},
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   fmt.Sprintf("Market data provider (one of %s)", strings.Join(provider.GetSupportedProviders(), ", ")),
				Value:   defaults.Provider,
			},
			&cli.StringFlag{
				Name:    "polygon-api-key",
				Usage:   "Polygon.io API key",
				Sources: cli.EnvVars("POLYGON_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a dotenv file; ignored when missing",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
				Value: defaults.LogLevel,
			},
			&cli.StringFlag{
				Name:  "status-addr",
				Usage: "Serve /healthz and /status on this address; empty disables it",
			},
		},
		Commands: []*cli.Command{
			providersCommand(),
			schemaCommand(),
		},
		Action: runAction,
	}
}

func joinIntervals() string {
	names := make([]string, 0, len(types.SupportedIntervals))
	for _, interval := range types.SupportedIntervals {
		names = append(names, string(interval))
	}

	return strings.Join(names, ", ")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		stop()
		log.Fatal(err)
	}
}
