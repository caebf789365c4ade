// Command rpsim runs retirement portfolio Monte Carlo simulations and serves
// historical market data.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rpsim/retirement-simulator/internal/calculation"
	"github.com/rpsim/retirement-simulator/internal/config"
	"github.com/rpsim/retirement-simulator/internal/historical"
	"github.com/rpsim/retirement-simulator/internal/output"
	"github.com/rpsim/retirement-simulator/internal/server"
	"github.com/rpsim/retirement-simulator/pkg/logger"
)

var (
	logLevel  string
	logPretty bool
	log       zerolog.Logger
)

func main() {
	root := &cobra.Command{
		Use:   "rpsim",
		Short: "Retirement portfolio Monte Carlo simulator",
		Long: `rpsim models retirement portfolio sustainability under uncertain
investment returns. It simulates many independent decades-long futures under a
chosen statistical return model and reports the distribution of outcomes.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log = logger.New(logger.Config{Level: logLevel, Pretty: logPretty})
			logger.SetGlobalLogger(log)
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&logPretty, "pretty", true, "pretty console log output")

	root.AddCommand(newSimulateCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newHistoricalCmd())
	root.AddCommand(newExampleCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newSimulateCmd() *cobra.Command {
	var (
		configPath string
		format     string
		outPath    string
		trials     int
		model      string
		seed       uint64
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a Monte Carlo simulation from a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			parser := config.NewInputParser()
			runCfg, err := parser.LoadFromFile(configPath)
			if err != nil {
				return err
			}

			// Flag overrides, applied after file validation.
			if trials > 0 {
				runCfg.Trials = trials
			}
			if model != "" {
				kind, err := calculation.ParseModelKind(model)
				if err != nil {
					return err
				}
				runCfg.Model = kind
			}
			if seed != 0 {
				runCfg.Seed = seed
			}

			result, err := runSimulation(runCfg)
			if err != nil {
				return err
			}

			data, err := output.Render(format, result)
			if err != nil {
				return err
			}
			if outPath != "" {
				if err := os.WriteFile(outPath, data, 0o644); err != nil {
					return fmt.Errorf("failed to write output: %w", err)
				}
				log.Info().Str("path", outPath).Msg("report written")
				return nil
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML run configuration (required)")
	cmd.Flags().StringVarP(&format, "format", "f", "console", "output format (console, json, csv)")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write the report to a file instead of stdout")
	cmd.Flags().IntVar(&trials, "trials", 0, "override the configured trial count")
	cmd.Flags().StringVar(&model, "model", "", "override the configured return model")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "override the random seed")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runSimulation(runCfg *config.RunConfig) (*calculation.MonteCarloResult, error) {
	modelCfg := calculation.ModelConfig{
		Kind:             runCfg.Model,
		Horizon:          runCfg.Parameters.HorizonYears,
		DegreesOfFreedom: runCfg.DegreesOfFreedom,
	}

	if runCfg.Model == calculation.ModelBootstrap {
		provider := historical.NewProvider(runCfg.DataPath)
		if err := provider.Load(); err != nil {
			return nil, err
		}
		snapshot, err := provider.Snapshot()
		if err != nil {
			return nil, err
		}
		modelCfg.Historical = snapshot
	}

	factory, err := calculation.NewFactory(modelCfg)
	if err != nil {
		return nil, err
	}

	sim, err := calculation.NewMonteCarloSimulator(factory, &runCfg.Parameters, calculation.MonteCarloConfig{
		Trials:  runCfg.Trials,
		Seed:    runCfg.Seed,
		Workers: runCfg.Workers,
	}, log)
	if err != nil {
		return nil, err
	}

	return sim.Run()
}

func newServeCmd() *cobra.Command {
	var (
		port     int
		dataPath string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve historical data and simulation runs over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := historical.NewProvider(dataPath)
			if err := provider.Load(); err != nil {
				return err
			}

			srv := server.New(server.Config{
				Port:     port,
				Log:      log,
				Provider: provider,
				DataPath: dataPath,
			})

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "listen port")
	cmd.Flags().StringVarP(&dataPath, "data", "d", "data/market-history.csv", "path to the historical data CSV")

	return cmd
}

func newHistoricalCmd() *cobra.Command {
	var dataPath string

	cmd := &cobra.Command{
		Use:   "historical",
		Short: "Query the historical market dataset",
	}
	cmd.PersistentFlags().StringVarP(&dataPath, "data", "d", "data/market-history.csv", "path to the historical data CSV")

	loadProvider := func() (*historical.Provider, error) {
		provider := historical.NewProvider(dataPath)
		if err := provider.Load(); err != nil {
			return nil, err
		}
		return provider, nil
	}

	printJSON := func(v interface{}) error {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "summary",
		Short: "Print summary statistics over the full available history",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := loadProvider()
			if err != nil {
				return err
			}
			summary, err := provider.Summarize()
			if err != nil {
				return err
			}
			return printJSON(summary)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "range",
		Short: "Print the available year range",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := loadProvider()
			if err != nil {
				return err
			}
			yr, err := provider.YearRange()
			if err != nil {
				return err
			}
			return printJSON(yr)
		},
	})

	return cmd
}

func newExampleCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "example",
		Short: "Write an example run configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			parser := config.NewInputParser()
			if err := parser.WriteExample(outPath); err != nil {
				return err
			}
			log.Info().Str("path", outPath).Msg("example configuration written")
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "rpsim-config.yaml", "destination path")

	return cmd
}
