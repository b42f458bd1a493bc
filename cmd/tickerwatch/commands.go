package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rxtech-lab/tickerwatch/internal/config"
	"github.com/rxtech-lab/tickerwatch/pkg/marketdata/provider"
	"github.com/urfave/cli/v3"
)

func providersCommand() *cli.Command {
	return &cli.Command{
		Name:  "providers",
		Usage: "List the supported market data providers",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the provider list as JSON",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			infos := provider.ListProviderInfo()
			out := cmd.Root().Writer

			if cmd.Bool("json") {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")

				return encoder.Encode(infos)
			}

			for _, info := range infos {
				auth := ""
				if info.RequiresAuth {
					auth = " (requires API key)"
				}

				if _, err := fmt.Fprintf(out, "%-8s %s%s\n", info.Name, info.DisplayName, auth); err != nil {
					return err
				}
			}

			return nil
		},
	}
}

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Print the JSON schema of the config file",
		Action: func(_ context.Context, cmd *cli.Command) error {
			schema, err := config.SchemaJSON()
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.Root().Writer, schema)

			return err
		},
	}
}
