package calculation

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/rpsim/retirement-simulator/internal/domain"
)

// DefaultWorkers bounds how many trials run concurrently.
const DefaultWorkers = 10

// MonteCarloConfig holds the orchestration knobs. Trials must be positive;
// a zero Seed is replaced with a time-derived one; zero Workers falls back
// to DefaultWorkers.
type MonteCarloConfig struct {
	Trials  int
	Seed    uint64
	Workers int
}

// MonteCarloSimulator runs many statistically independent trials and folds
// them into aggregate statistics. Trials share only the immutable parameter
// set and the model factory; each trial gets its own model instance and
// portfolio state.
type MonteCarloSimulator struct {
	factory ModelFactory
	params  *domain.SimulationParameters
	cfg     MonteCarloConfig
	log     zerolog.Logger
}

// MonteCarloResult bundles aggregate statistics with the run configuration
// echo. Raw outcomes are retained in memory for chart consumers but excluded
// from serialization.
type MonteCarloResult struct {
	Outcomes []domain.SimulationOutcome `json:"-"`

	Stats      domain.AggregateStatistics  `json:"statistics"`
	Model      string                      `json:"model"`
	Seed       uint64                      `json:"seed"`
	Parameters domain.SimulationParameters `json:"parameters"`
	Elapsed    time.Duration               `json:"-"`
}

// NewMonteCarloSimulator validates the whole experiment up front: parameters,
// trial count, and factory all fail fast here rather than mid-run.
func NewMonteCarloSimulator(factory ModelFactory, params *domain.SimulationParameters, cfg MonteCarloConfig, log zerolog.Logger) (*MonteCarloSimulator, error) {
	if factory == nil {
		return nil, fmt.Errorf("return model factory is required")
	}
	if params == nil {
		return nil, fmt.Errorf("simulation parameters are required")
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation parameters: %w", err)
	}
	if cfg.Trials <= 0 {
		return nil, fmt.Errorf("trial count must be positive, got %d", cfg.Trials)
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}

	return &MonteCarloSimulator{
		factory: factory,
		params:  params,
		cfg:     cfg,
		log:     log.With().Str("component", "montecarlo").Logger(),
	}, nil
}

// Run executes all trials and aggregates the results.
func (mcs *MonteCarloSimulator) Run() (*MonteCarloResult, error) {
	start := time.Now()
	mcs.log.Info().
		Int("trials", mcs.cfg.Trials).
		Str("model", mcs.factory.Name()).
		Int("horizon_years", mcs.params.HorizonYears).
		Msg("starting Monte Carlo run")

	outcomes := make([]domain.SimulationOutcome, mcs.cfg.Trials)
	errs := make([]error, mcs.cfg.Trials)
	var completed int64

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, mcs.cfg.Workers)

	for i := 0; i < mcs.cfg.Trials; i++ {
		wg.Add(1)
		go func(trial int) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			model := mcs.factory.Model(mcs.cfg.Seed + uint64(trial))
			outcome, err := NewPathSimulator(mcs.params, model).Run()
			if err != nil {
				errs[trial] = err
				return
			}
			outcomes[trial] = *outcome

			if n := atomic.AddInt64(&completed, 1); n%1000 == 0 {
				mcs.log.Debug().Int64("completed", n).Msg("trial progress")
			}
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("trial failed: %w", err)
		}
	}

	stats := Aggregate(outcomes, mcs.params.HorizonYears)
	elapsed := time.Since(start)
	mcs.log.Info().
		Str("success_rate", stats.SuccessRate.String()).
		Dur("elapsed", elapsed).
		Msg("Monte Carlo run complete")

	return &MonteCarloResult{
		Outcomes:   outcomes,
		Stats:      stats,
		Model:      mcs.factory.Name(),
		Seed:       mcs.cfg.Seed,
		Parameters: *mcs.params,
		Elapsed:    elapsed,
	}, nil
}
