// Package config loads and validates the simulation run configuration from
// YAML files and turns it into typed parameters for the calculation engine.
package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rpsim/retirement-simulator/internal/calculation"
	"github.com/rpsim/retirement-simulator/internal/domain"
)

// FileConfig mirrors the schema of a run configuration file. The same shape
// serves YAML files and the JSON body of the simulate endpoint.
type FileConfig struct {
	Simulation domain.SimulationParameters `yaml:"simulation" json:"simulation"`
	Run        RunSettings                 `yaml:"run" json:"run"`
}

// RunSettings is the orchestration half of the configuration surface.
type RunSettings struct {
	Trials           int    `yaml:"trials" json:"trials"`
	Model            string `yaml:"model" json:"model"`
	Seed             uint64 `yaml:"seed" json:"seed"`
	Workers          int    `yaml:"workers" json:"workers"`
	HistoricalData   string `yaml:"historical_data" json:"historical_data"`
	DegreesOfFreedom int    `yaml:"degrees_of_freedom" json:"degrees_of_freedom"`
}

// RunConfig is the validated, typed result handed to the engine.
type RunConfig struct {
	Parameters       domain.SimulationParameters
	Trials           int
	Model            calculation.ModelKind
	Seed             uint64
	Workers          int
	DataPath         string
	DegreesOfFreedom int
}

// InputParser handles parsing of run configuration files
type InputParser struct{}

// NewInputParser creates a new input parser
func NewInputParser() *InputParser {
	return &InputParser{}
}

// LoadFromFile loads and validates a YAML configuration file.
func (ip *InputParser) LoadFromFile(filename string) (*RunConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return ip.Resolve(&fc)
}

// Resolve validates a parsed file configuration and converts it to the typed
// run configuration. Allocations given as percentages summing to 100 are
// normalized to weights summing to 1.
func (ip *InputParser) Resolve(fc *FileConfig) (*RunConfig, error) {
	fc.Simulation.Allocation = normalizeAllocation(fc.Simulation.Allocation)

	if err := fc.Simulation.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := ip.validateRun(&fc.Run); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	kind, err := calculation.ParseModelKind(fc.Run.Model)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	if kind == calculation.ModelBootstrap && fc.Run.HistoricalData == "" {
		return nil, fmt.Errorf("configuration validation failed: historical_data path is required for the %s model", kind)
	}

	return &RunConfig{
		Parameters:       fc.Simulation,
		Trials:           fc.Run.Trials,
		Model:            kind,
		Seed:             fc.Run.Seed,
		Workers:          fc.Run.Workers,
		DataPath:         fc.Run.HistoricalData,
		DegreesOfFreedom: fc.Run.DegreesOfFreedom,
	}, nil
}

// validateRun validates the orchestration settings.
func (ip *InputParser) validateRun(run *RunSettings) error {
	if run.Trials <= 0 {
		return fmt.Errorf("trial count must be positive, got %d", run.Trials)
	}
	if run.Model == "" {
		return fmt.Errorf("return model is required")
	}
	if run.Workers < 0 {
		return fmt.Errorf("workers cannot be negative, got %d", run.Workers)
	}
	if run.DegreesOfFreedom < 0 {
		return fmt.Errorf("degrees of freedom cannot be negative, got %d", run.DegreesOfFreedom)
	}
	return nil
}

// normalizeAllocation accepts weights that sum to 100 (percentages) and
// rescales them to sum to 1. Fraction-form allocations pass through.
func normalizeAllocation(alloc domain.Allocation) domain.Allocation {
	sum := decimal.Zero
	for _, w := range alloc {
		sum = sum.Add(w)
	}

	hundred := decimal.NewFromInt(100)
	tolerance := decimal.New(1, -6)
	if sum.Sub(hundred).Abs().GreaterThan(tolerance) {
		return alloc
	}

	normalized := make(domain.Allocation, len(alloc))
	for class, w := range alloc {
		normalized[class] = w.Div(hundred)
	}
	return normalized
}

// ExampleConfiguration returns a fully populated configuration matching the
// documented defaults. Used by the example subcommand.
func (ip *InputParser) ExampleConfiguration() *FileConfig {
	return &FileConfig{
		Simulation: domain.SimulationParameters{
			StartingPortfolio: decimal.NewFromInt(750000),
			AnnualSpending:    decimal.NewFromInt(50000),
			Allocation: domain.Allocation{
				domain.AssetStocks: decimal.NewFromFloat(0.60),
				domain.AssetBonds:  decimal.NewFromFloat(0.30),
				domain.AssetCash:   decimal.NewFromFloat(0.10),
			},
			HorizonYears:  40,
			RetirementAge: 50,
			SocialSecurity: &domain.SocialSecurityRule{
				StartAge:      67,
				AnnualBenefit: decimal.NewFromInt(15000),
			},
			Supplemental: &domain.SupplementalIncomeRule{
				Enabled:      true,
				Trigger:      domain.TriggerWithdrawalRate,
				Threshold:    decimal.NewFromFloat(0.075),
				AnnualIncome: decimal.NewFromInt(25000),
				MaxAge:       65,
			},
		},
		Run: RunSettings{
			Trials:         10000,
			Model:          string(calculation.ModelNormal),
			Workers:        calculation.DefaultWorkers,
			HistoricalData: "data/market-history.csv",
		},
	}
}

// WriteExample marshals the example configuration to YAML at path.
func (ip *InputParser) WriteExample(path string) error {
	data, err := yaml.Marshal(ip.ExampleConfiguration())
	if err != nil {
		return fmt.Errorf("failed to marshal example configuration: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write example configuration: %w", err)
	}
	return nil
}
