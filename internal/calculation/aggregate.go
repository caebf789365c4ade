package calculation

import (
	"github.com/shopspring/decimal"

	"github.com/rpsim/retirement-simulator/internal/domain"
	"github.com/rpsim/retirement-simulator/pkg/stats"
)

// Aggregate folds per-trial outcomes into the cross-trial result surface.
// Percentiles are computed independently per period across all trials.
// Depletion statistics cover only the failed subset and are absent when every
// trial succeeded.
func Aggregate(outcomes []domain.SimulationOutcome, horizon int) domain.AggregateStatistics {
	trials := len(outcomes)
	agg := domain.AggregateStatistics{
		Trials:       trials,
		HorizonYears: horizon,
	}
	if trials == 0 {
		return agg
	}

	failures := 0
	finalValues := make([]decimal.Decimal, trials)
	workYears := make([]decimal.Decimal, trials)
	anyWork := 0
	maxYears := 0
	var depletionAges []decimal.Decimal
	earliest, latest := 0, 0

	for i := range outcomes {
		o := &outcomes[i]
		finalValues[i] = o.FinalValue()

		years := o.SupplementalYears()
		workYears[i] = decimal.NewFromInt(int64(years))
		if years > 0 {
			anyWork++
		}
		if years > maxYears {
			maxYears = years
		}

		if !o.Success {
			failures++
			depletionAges = append(depletionAges, decimal.NewFromInt(int64(o.DepletionAge)))
			if len(depletionAges) == 1 || o.DepletionAge < earliest {
				earliest = o.DepletionAge
			}
			if o.DepletionAge > latest {
				latest = o.DepletionAge
			}
		}
	}

	trialsDec := decimal.NewFromInt(int64(trials))
	agg.SuccessRate = decimal.NewFromInt(int64(trials - failures)).Div(trialsDec)
	agg.FailureRate = decimal.NewFromInt(int64(failures)).Div(trialsDec)

	agg.FinalPortfolio = distribution(finalValues)
	agg.PortfolioOverTime = percentileBands(outcomes, horizon)

	stats.SortValues(workYears)
	agg.SupplementalWork = domain.SupplementalWorkStats{
		MedianYears:        stats.Median(workYears),
		MeanYears:          stats.Mean(workYears),
		MaxYears:           maxYears,
		P90Years:           stats.Percentile(workYears, 90),
		ProbabilityAnyWork: decimal.NewFromInt(int64(anyWork)).Div(trialsDec),
	}

	if failures > 0 {
		stats.SortValues(depletionAges)
		agg.Depletion = &domain.DepletionStats{
			FailedTrials: failures,
			MedianAge:    stats.Median(depletionAges),
			MeanAge:      stats.Mean(depletionAges),
			EarliestAge:  earliest,
			LatestAge:    latest,
		}
	}

	return agg
}

func distribution(values []decimal.Decimal) domain.DistributionStats {
	mean := stats.Mean(values)
	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	stats.SortValues(sorted)

	return domain.DistributionStats{
		Median: stats.Median(sorted),
		Mean:   mean,
		P10:    stats.Percentile(sorted, 10),
		P25:    stats.Percentile(sorted, 25),
		P75:    stats.Percentile(sorted, 75),
		P90:    stats.Percentile(sorted, 90),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
	}
}

func percentileBands(outcomes []domain.SimulationOutcome, horizon int) domain.PercentileBands {
	bands := domain.PercentileBands{
		P10: make([]decimal.Decimal, horizon),
		P25: make([]decimal.Decimal, horizon),
		P50: make([]decimal.Decimal, horizon),
		P75: make([]decimal.Decimal, horizon),
		P90: make([]decimal.Decimal, horizon),
	}

	values := make([]decimal.Decimal, len(outcomes))
	for period := 0; period < horizon; period++ {
		for i := range outcomes {
			values[i] = outcomes[i].Records[period].PortfolioEnd
		}
		stats.SortValues(values)
		bands.P10[period] = stats.Percentile(values, 10)
		bands.P25[period] = stats.Percentile(values, 25)
		bands.P50[period] = stats.Percentile(values, 50)
		bands.P75[period] = stats.Percentile(values, 75)
		bands.P90[period] = stats.Percentile(values, 90)
	}

	return bands
}
