package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/rpsim/retirement-simulator/internal/calculation"
)

// CSVFormatter exports the per-period percentile bands, one row per period,
// for external chart tooling.
type CSVFormatter struct{}

// Name implements Formatter.
func (CSVFormatter) Name() string { return "csv" }

// Format implements Formatter.
func (CSVFormatter) Format(result *calculation.MonteCarloResult) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"period", "age", "p10", "p25", "p50", "p75", "p90"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	bands := result.Stats.PortfolioOverTime
	for period := 0; period < result.Stats.HorizonYears; period++ {
		row := []string{
			strconv.Itoa(period),
			strconv.Itoa(result.Parameters.RetirementAge + period),
			bands.P10[period].StringFixed(2),
			bands.P25[period].StringFixed(2),
			bands.P50[period].StringFixed(2),
			bands.P75[period].StringFixed(2),
			bands.P90[period].StringFixed(2),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}
