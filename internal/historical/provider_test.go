package historical

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpsim/retirement-simulator/internal/domain"
)

const sampleCSV = `year,sp500_return,long_bond_yield,one_year_rate,cpi
1990,-0.031,8.6,7.9,130.7
1991,0.305,8.1,5.9,136.2
1992,0.076,7.7,3.9,140.3
1993,0.101,6.6,3.4,144.5
1994,0.013,7.4,5.3,148.2
`

func writeSample(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func loadedProvider(t *testing.T) *Provider {
	t.Helper()
	p := NewProvider(writeSample(t, sampleCSV))
	require.NoError(t, p.Load())
	return p
}

func TestProvider_QueriesBeforeLoadFail(t *testing.T) {
	p := NewProvider("nonexistent.csv")
	assert.False(t, p.Loaded())

	_, err := p.Snapshot()
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = p.Returns(ReturnsFilter{})
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = p.YearRange()
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = p.Summarize()
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestProvider_LoadMissingFile(t *testing.T) {
	p := NewProvider(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, p.Load())
}

func TestProvider_LoadCleansDataset(t *testing.T) {
	p := loadedProvider(t)
	assert.True(t, p.Loaded())

	rows, err := p.Snapshot()
	require.NoError(t, err)

	// The first index year contributes only its CPI level.
	require.Len(t, rows, 4)
	assert.Equal(t, 1991, rows[0].Year)
	assert.Equal(t, 1994, rows[3].Year)

	// Yield columns are percentages; stocks are already fractional.
	assert.InDelta(t, 0.305, rows[0].Stocks, 1e-12)
	assert.InDelta(t, 0.081, rows[0].Bonds, 1e-12)
	assert.InDelta(t, 0.059, rows[0].Cash, 1e-12)

	// Inflation is the CPI index change: 136.2/130.7 - 1.
	assert.InDelta(t, 136.2/130.7-1, rows[0].Inflation, 1e-12)
	assert.InDelta(t, 148.2/144.5-1, rows[3].Inflation, 1e-12)
}

func TestProvider_LoadSkipsMalformedRows(t *testing.T) {
	csv := `year,sp500_return,long_bond_yield,one_year_rate,cpi
1990,-0.031,8.6,7.9,130.7
not-a-year,0.1,5.0,3.0,135.0
1991,bad,8.1,5.9,136.2
1992,0.076,7.7,3.9,140.3
`
	p := NewProvider(writeSample(t, csv))
	require.NoError(t, p.Load())

	rows, err := p.Snapshot()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1992, rows[0].Year)
	// The skipped 1991 row must not contribute a CPI level either.
	assert.InDelta(t, 140.3/130.7-1, rows[0].Inflation, 1e-12)
}

func TestProvider_LoadRejectsEmptyDataset(t *testing.T) {
	csv := "year,sp500_return,long_bond_yield,one_year_rate,cpi\n1990,-0.031,8.6,7.9,130.7\n"
	p := NewProvider(writeSample(t, csv))
	assert.Error(t, p.Load())
}

func TestProvider_Returns(t *testing.T) {
	p := loadedProvider(t)

	result, err := p.Returns(ReturnsFilter{StartYear: 1992, EndYear: 1993})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, 1992, result.StartYear)
	assert.Equal(t, 1993, result.EndYear)
	assert.Equal(t, []string{"stocks", "bonds", "cash", "inflation"}, result.Assets)

	result, err = p.Returns(ReturnsFilter{Assets: []domain.AssetClass{domain.AssetStocks}})
	require.NoError(t, err)
	assert.Equal(t, 4, result.Count)
	assert.Equal(t, []string{"stocks"}, result.Assets)
	for _, row := range result.Rows {
		require.NotNil(t, row.Stocks)
		assert.Nil(t, row.Bonds)
		assert.Nil(t, row.Cash)
		assert.Nil(t, row.Inflation)
	}

	_, err = p.Returns(ReturnsFilter{Assets: []domain.AssetClass{"gold"}})
	assert.Error(t, err)

	// An unfiltered query carries every series.
	result, err = p.Returns(ReturnsFilter{})
	require.NoError(t, err)
	for _, row := range result.Rows {
		require.NotNil(t, row.Stocks)
		require.NotNil(t, row.Bonds)
		require.NotNil(t, row.Cash)
		require.NotNil(t, row.Inflation)
	}
	assert.InDelta(t, 0.305, *result.Rows[0].Stocks, 1e-12)

	_, err = p.Returns(ReturnsFilter{StartYear: 2050})
	assert.ErrorIs(t, err, ErrNoDataInRange)
}

func TestProvider_YearRange(t *testing.T) {
	p := loadedProvider(t)

	r, err := p.YearRange()
	require.NoError(t, err)
	assert.Equal(t, 1991, r.MinYear)
	assert.Equal(t, 1994, r.MaxYear)
	assert.Equal(t, 4, r.TotalYears)
}

func TestProvider_Summarize(t *testing.T) {
	p := loadedProvider(t)

	s, err := p.Summarize()
	require.NoError(t, err)
	assert.Equal(t, "1991-1994", s.Period)
	assert.Equal(t, 4, s.Years)

	wantMean := (0.305 + 0.076 + 0.101 + 0.013) / 4
	assert.InDelta(t, wantMean, s.Stocks.Mean, 1e-12)
	assert.InDelta(t, 0.013, s.Stocks.Min, 1e-12)
	assert.InDelta(t, 0.305, s.Stocks.Max, 1e-12)
	assert.True(t, s.Stocks.StdDev > 0)
	assert.GreaterOrEqual(t, s.Stocks.Max, s.Stocks.Median)
	assert.LessOrEqual(t, s.Stocks.Min, s.Stocks.Median)

	for _, c := range []float64{
		s.Correlations.StocksBonds,
		s.Correlations.StocksCash,
		s.Correlations.StocksInflation,
		s.Correlations.BondsCash,
		s.Correlations.BondsInflation,
		s.Correlations.CashInflation,
	} {
		assert.False(t, math.IsNaN(c))
		assert.LessOrEqual(t, math.Abs(c), 1+1e-9)
	}
}
