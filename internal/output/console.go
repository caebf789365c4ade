package output

import (
	"fmt"
	"strings"

	"github.com/rpsim/retirement-simulator/internal/calculation"
)

const consoleRuleWidth = 70

// ConsoleFormatter renders the aggregate statistics as a sectioned plain-text
// summary.
type ConsoleFormatter struct{}

// Name implements Formatter.
func (ConsoleFormatter) Name() string { return "console" }

// Format implements Formatter.
func (ConsoleFormatter) Format(result *calculation.MonteCarloResult) ([]byte, error) {
	var b strings.Builder
	stats := result.Stats
	params := result.Parameters

	rule := strings.Repeat("=", consoleRuleWidth)
	sub := strings.Repeat("-", consoleRuleWidth)

	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "MONTE CARLO SIMULATION SUMMARY")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Simulations:        %d\n", stats.Trials)
	fmt.Fprintf(&b, "Return model:       %s\n", result.Model)
	fmt.Fprintf(&b, "Retirement age:     %d\n", params.RetirementAge)
	fmt.Fprintf(&b, "Horizon:            %d years\n", stats.HorizonYears)
	fmt.Fprintf(&b, "Starting portfolio: %s\n", FormatCurrency(params.StartingPortfolio))
	fmt.Fprintf(&b, "Annual spending:    %s\n", FormatCurrency(params.AnnualSpending))
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, sub)
	fmt.Fprintln(&b, "SUCCESS METRICS")
	fmt.Fprintln(&b, sub)
	fmt.Fprintf(&b, "Success rate: %s\n", FormatPercentage(stats.SuccessRate))
	fmt.Fprintf(&b, "Failure rate: %s\n", FormatPercentage(stats.FailureRate))
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, sub)
	fmt.Fprintln(&b, "FINAL PORTFOLIO VALUE")
	fmt.Fprintln(&b, sub)
	fp := stats.FinalPortfolio
	fmt.Fprintf(&b, "Median:  %s\n", FormatCurrency(fp.Median))
	fmt.Fprintf(&b, "Mean:    %s\n", FormatCurrency(fp.Mean))
	fmt.Fprintf(&b, "10th %%:  %s\n", FormatCurrency(fp.P10))
	fmt.Fprintf(&b, "90th %%:  %s\n", FormatCurrency(fp.P90))
	fmt.Fprintf(&b, "Min:     %s\n", FormatCurrency(fp.Min))
	fmt.Fprintf(&b, "Max:     %s\n", FormatCurrency(fp.Max))
	fmt.Fprintln(&b)

	if params.Supplemental != nil && params.Supplemental.Enabled {
		fmt.Fprintln(&b, sub)
		fmt.Fprintln(&b, "PART-TIME WORK")
		fmt.Fprintln(&b, sub)
		sw := stats.SupplementalWork
		fmt.Fprintf(&b, "Probability of needing part-time work: %s\n", FormatPercentage(sw.ProbabilityAnyWork))
		fmt.Fprintf(&b, "Years of work (median): %s\n", sw.MedianYears.StringFixed(1))
		fmt.Fprintf(&b, "Years of work (mean):   %s\n", sw.MeanYears.StringFixed(1))
		fmt.Fprintf(&b, "Years of work (max):    %d\n", sw.MaxYears)
		fmt.Fprintf(&b, "Years of work (90th%%):  %s\n", sw.P90Years.StringFixed(1))
		fmt.Fprintln(&b)
	}

	if stats.Depletion != nil {
		fmt.Fprintln(&b, sub)
		fmt.Fprintln(&b, "FAILURE SCENARIOS (Portfolio Depletion)")
		fmt.Fprintln(&b, sub)
		d := stats.Depletion
		fmt.Fprintf(&b, "Failed trials:        %d\n", d.FailedTrials)
		fmt.Fprintf(&b, "Median depletion age: %s\n", d.MedianAge.StringFixed(0))
		fmt.Fprintf(&b, "Earliest depletion:   %d\n", d.EarliestAge)
		fmt.Fprintf(&b, "Latest depletion:     %d\n", d.LatestAge)
		fmt.Fprintln(&b)
	}

	writeTrajectory(&b, result)
	fmt.Fprintln(&b, rule)

	return []byte(b.String()), nil
}

// writeTrajectory prints percentile bands at a handful of milestone periods.
func writeTrajectory(b *strings.Builder, result *calculation.MonteCarloResult) {
	bands := result.Stats.PortfolioOverTime
	horizon := result.Stats.HorizonYears
	if horizon == 0 || len(bands.P50) != horizon {
		return
	}

	sub := strings.Repeat("-", consoleRuleWidth)
	fmt.Fprintln(b, sub)
	fmt.Fprintln(b, "PORTFOLIO VALUE TRAJECTORY (selected years)")
	fmt.Fprintln(b, sub)
	fmt.Fprintf(b, "%-6s %-5s %14s %14s %14s\n", "Year", "Age", "10th %", "Median", "90th %")

	for _, period := range milestonePeriods(horizon) {
		age := result.Parameters.RetirementAge + period
		fmt.Fprintf(b, "%-6d %-5d %14s %14s %14s\n",
			period,
			age,
			FormatCurrency(bands.P10[period]),
			FormatCurrency(bands.P50[period]),
			FormatCurrency(bands.P90[period]),
		)
	}
}

func milestonePeriods(horizon int) []int {
	step := 5
	if horizon <= 10 {
		step = 1
	}
	var periods []int
	for p := 0; p < horizon; p += step {
		periods = append(periods, p)
	}
	if periods[len(periods)-1] != horizon-1 {
		periods = append(periods, horizon-1)
	}
	return periods
}
