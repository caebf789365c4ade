package output

import (
	"encoding/csv"
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpsim/retirement-simulator/internal/calculation"
	"github.com/rpsim/retirement-simulator/internal/domain"
)

func sampleResult(t *testing.T) *calculation.MonteCarloResult {
	t.Helper()

	params := &domain.SimulationParameters{
		StartingPortfolio: decimal.NewFromInt(750000),
		AnnualSpending:    decimal.NewFromInt(50000),
		Allocation: domain.Allocation{
			domain.AssetStocks: decimal.NewFromFloat(0.6),
			domain.AssetBonds:  decimal.NewFromFloat(0.3),
			domain.AssetCash:   decimal.NewFromFloat(0.1),
		},
		HorizonYears:  20,
		RetirementAge: 50,
		Supplemental: &domain.SupplementalIncomeRule{
			Enabled:      true,
			Trigger:      domain.TriggerWithdrawalRate,
			Threshold:    decimal.NewFromFloat(0.075),
			AnnualIncome: decimal.NewFromInt(25000),
			MaxAge:       65,
		},
	}

	factory, err := calculation.NewNormalModelFactory(20, calculation.MarketAssumptions{})
	require.NoError(t, err)
	sim, err := calculation.NewMonteCarloSimulator(factory, params, calculation.MonteCarloConfig{Trials: 50, Seed: 9}, zerolog.Nop())
	require.NoError(t, err)
	result, err := sim.Run()
	require.NoError(t, err)
	return result
}

func TestGetFormatterByName(t *testing.T) {
	for _, name := range []string{"console", "json", "csv"} {
		f := GetFormatterByName(name)
		require.NotNil(t, f, name)
		assert.Equal(t, name, f.Name())
	}
	assert.Nil(t, GetFormatterByName("xml"))
	assert.ElementsMatch(t, []string{"console", "json", "csv"}, AvailableFormatterNames())
}

func TestRender_UnsupportedFormat(t *testing.T) {
	_, err := Render("xml", sampleResult(t))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestConsoleFormatter(t *testing.T) {
	out, err := Render("console", sampleResult(t))
	require.NoError(t, err)

	text := string(out)
	for _, section := range []string{
		"MONTE CARLO SIMULATION SUMMARY",
		"SUCCESS METRICS",
		"FINAL PORTFOLIO VALUE",
		"PART-TIME WORK",
		"Success rate:",
		"Starting portfolio: $750000",
	} {
		assert.Contains(t, text, section)
	}
}

func TestJSONFormatter(t *testing.T) {
	result := sampleResult(t)
	out, err := Render("json", result)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Contains(t, decoded, "statistics")
	assert.Contains(t, decoded, "model")
	assert.Contains(t, decoded, "parameters")
	// Raw per-trial outcomes stay out of the serialized surface.
	assert.NotContains(t, decoded, "outcomes")

	var stats struct {
		Trials      int    `json:"trials"`
		SuccessRate string `json:"success_rate"`
	}
	require.NoError(t, json.Unmarshal(decoded["statistics"], &stats))
	assert.Equal(t, 50, stats.Trials)
	assert.NotEmpty(t, stats.SuccessRate)
}

func TestCSVFormatter(t *testing.T) {
	result := sampleResult(t)
	out, err := Render("csv", result)
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1+result.Stats.HorizonYears)
	assert.Equal(t, []string{"period", "age", "p10", "p25", "p50", "p75", "p90"}, rows[0])

	first := rows[1]
	assert.Equal(t, "0", first[0])
	assert.Equal(t, strconv.Itoa(result.Parameters.RetirementAge), first[1])
	for _, cell := range first[2:] {
		_, err := decimal.NewFromString(cell)
		assert.NoError(t, err)
	}
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "$750000", FormatCurrency(decimal.NewFromFloat(750000.4)))
	assert.Equal(t, "92.5%", FormatPercentage(decimal.NewFromFloat(0.925)))
}
