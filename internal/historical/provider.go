// Package historical loads and serves the cleaned yearly market history used
// by the bootstrap return model and the reporting endpoints. The dataset is
// loaded once, before any simulation runs, and is read-only afterwards; all
// trials share the same immutable snapshot.
package historical

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rpsim/retirement-simulator/internal/domain"
	"github.com/rpsim/retirement-simulator/pkg/stats"
)

// Named conditions so collaborator failures propagate distinctly instead of
// being masked as zero returns.
var (
	ErrNotLoaded     = errors.New("historical data not loaded")
	ErrNoDataInRange = errors.New("no historical data in requested year range")
)

// YearlyReturns is one cleaned row of market history. All values are simple
// fractional returns for that year.
type YearlyReturns struct {
	Year      int     `json:"year"`
	Stocks    float64 `json:"stocks"`
	Bonds     float64 `json:"bonds"`
	Cash      float64 `json:"cash"`
	Inflation float64 `json:"inflation"`
}

// ReturnsFilter narrows a Returns query. Zero year bounds mean unbounded;
// an empty asset list means all series.
type ReturnsFilter struct {
	StartYear int
	EndYear   int
	Assets    []domain.AssetClass
}

// ReturnsRow is one row of a filtered Returns answer. Series outside the
// requested subset are omitted entirely.
type ReturnsRow struct {
	Year      int      `json:"year"`
	Stocks    *float64 `json:"stocks,omitempty"`
	Bonds     *float64 `json:"bonds,omitempty"`
	Cash      *float64 `json:"cash,omitempty"`
	Inflation *float64 `json:"inflation,omitempty"`
}

// ReturnsResult is the answer to a filtered Returns query.
type ReturnsResult struct {
	Rows      []ReturnsRow `json:"data"`
	Count     int          `json:"count"`
	StartYear int          `json:"start_year"`
	EndYear   int          `json:"end_year"`
	Assets    []string     `json:"assets"`
	Source    string       `json:"source"`
}

// YearRange reports the span of available history.
type YearRange struct {
	MinYear    int    `json:"min_year"`
	MaxYear    int    `json:"max_year"`
	TotalYears int    `json:"total_years"`
	Source     string `json:"source"`
}

// SeriesStats is the summary of one asset-class series.
type SeriesStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
}

// CorrelationMatrix holds the pairwise correlations among all four series.
type CorrelationMatrix struct {
	StocksBonds     float64 `json:"stocks_bonds"`
	StocksCash      float64 `json:"stocks_cash"`
	StocksInflation float64 `json:"stocks_inflation"`
	BondsCash       float64 `json:"bonds_cash"`
	BondsInflation  float64 `json:"bonds_inflation"`
	CashInflation   float64 `json:"cash_inflation"`
}

// Summary reports per-series statistics over the full available history.
type Summary struct {
	Stocks       SeriesStats       `json:"stocks"`
	Bonds        SeriesStats       `json:"bonds"`
	Cash         SeriesStats       `json:"cash"`
	Inflation    SeriesStats       `json:"inflation"`
	Correlations CorrelationMatrix `json:"correlations"`
	Period       string            `json:"period"`
	Years        int               `json:"n_years"`
}

// Provider serves queries over a CSV-backed historical dataset. Safe for
// concurrent readers once Load has returned.
type Provider struct {
	path   string
	source string
	rows   []YearlyReturns
	loaded bool
}

// NewProvider creates a provider for the dataset at path. Load must be
// called before any query.
func NewProvider(path string) *Provider {
	return &Provider{path: path, source: "shiller"}
}

// Load reads and cleans the dataset. The expected header is
// year,sp500_return,long_bond_yield,one_year_rate,cpi; the bond yield and
// one-year rate columns are percentages, the stock column is a fractional
// total return, and inflation is derived as the period-over-period change of
// the CPI column. The first index year produces no inflation figure and is
// excluded from the snapshot.
func (p *Provider) Load() error {
	if p.loaded {
		return nil
	}

	file, err := os.Open(p.path)
	if err != nil {
		return fmt.Errorf("failed to open historical data file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read header from %s: %w", p.path, err)
	}
	if len(header) < 5 {
		return fmt.Errorf("invalid historical data format in %s: expected 5 columns, got %d", p.path, len(header))
	}

	var rows []YearlyReturns
	prevCPI := 0.0
	havePrev := false

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read data row: %w", err)
		}
		if len(record) < 5 {
			continue // Skip malformed rows
		}

		year, err := strconv.Atoi(record[0])
		if err != nil {
			continue // Skip rows with invalid year
		}
		values := make([]float64, 4)
		ok := true
		for i := 0; i < 4; i++ {
			v, err := strconv.ParseFloat(record[i+1], 64)
			if err != nil {
				ok = false
				break
			}
			values[i] = v
		}
		if !ok {
			continue
		}

		cpi := values[3]
		if !havePrev {
			// No prior index level, so no inflation rate for this year.
			prevCPI = cpi
			havePrev = true
			continue
		}
		if prevCPI == 0 {
			return fmt.Errorf("invalid CPI level 0 before year %d", year)
		}

		rows = append(rows, YearlyReturns{
			Year:      year,
			Stocks:    values[0],
			Bonds:     values[1] / 100,
			Cash:      values[2] / 100,
			Inflation: cpi/prevCPI - 1,
		})
		prevCPI = cpi
	}

	if len(rows) == 0 {
		return fmt.Errorf("no usable rows in historical data file %s", p.path)
	}

	p.rows = rows
	p.loaded = true
	return nil
}

// Loaded reports whether the dataset has been loaded.
func (p *Provider) Loaded() bool {
	return p.loaded
}

// Snapshot returns the full cleaned dataset, ordered chronologically. The
// returned slice is shared and must be treated as read-only.
func (p *Provider) Snapshot() ([]YearlyReturns, error) {
	if !p.loaded {
		return nil, ErrNotLoaded
	}
	return p.rows, nil
}

// Returns answers a filtered query over the dataset.
func (p *Provider) Returns(filter ReturnsFilter) (*ReturnsResult, error) {
	if !p.loaded {
		return nil, ErrNotLoaded
	}

	assets, err := normalizeAssets(filter.Assets)
	if err != nil {
		return nil, err
	}

	include := make(map[string]bool, len(assets))
	for _, a := range assets {
		include[a] = true
	}

	var rows []ReturnsRow
	for _, row := range p.rows {
		if filter.StartYear != 0 && row.Year < filter.StartYear {
			continue
		}
		if filter.EndYear != 0 && row.Year > filter.EndYear {
			continue
		}
		rows = append(rows, projectRow(row, include))
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %d-%d", ErrNoDataInRange, filter.StartYear, filter.EndYear)
	}

	return &ReturnsResult{
		Rows:      rows,
		Count:     len(rows),
		StartYear: rows[0].Year,
		EndYear:   rows[len(rows)-1].Year,
		Assets:    assets,
		Source:    p.source,
	}, nil
}

// YearRange answers the available-span query.
func (p *Provider) YearRange() (*YearRange, error) {
	if !p.loaded {
		return nil, ErrNotLoaded
	}
	return &YearRange{
		MinYear:    p.rows[0].Year,
		MaxYear:    p.rows[len(p.rows)-1].Year,
		TotalYears: len(p.rows),
		Source:     p.source,
	}, nil
}

// Summarize computes summary statistics over the full available history.
func (p *Provider) Summarize() (*Summary, error) {
	if !p.loaded {
		return nil, ErrNotLoaded
	}

	stocks := p.series(func(r YearlyReturns) float64 { return r.Stocks })
	bonds := p.series(func(r YearlyReturns) float64 { return r.Bonds })
	cash := p.series(func(r YearlyReturns) float64 { return r.Cash })
	inflation := p.series(func(r YearlyReturns) float64 { return r.Inflation })

	return &Summary{
		Stocks:    seriesStats(stocks),
		Bonds:     seriesStats(bonds),
		Cash:      seriesStats(cash),
		Inflation: seriesStats(inflation),
		Correlations: CorrelationMatrix{
			StocksBonds:     stats.Correlation(stocks, bonds),
			StocksCash:      stats.Correlation(stocks, cash),
			StocksInflation: stats.Correlation(stocks, inflation),
			BondsCash:       stats.Correlation(bonds, cash),
			BondsInflation:  stats.Correlation(bonds, inflation),
			CashInflation:   stats.Correlation(cash, inflation),
		},
		Period: fmt.Sprintf("%d-%d", p.rows[0].Year, p.rows[len(p.rows)-1].Year),
		Years:  len(p.rows),
	}, nil
}

func (p *Provider) series(get func(YearlyReturns) float64) []float64 {
	out := make([]float64, len(p.rows))
	for i, row := range p.rows {
		out[i] = get(row)
	}
	return out
}

func seriesStats(data []float64) SeriesStats {
	mean, std := stats.MeanStd(data)
	min, max := data[0], data[0]
	for _, v := range data[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return SeriesStats{
		Mean:   mean,
		StdDev: std,
		Min:    min,
		Max:    max,
		Median: stats.FloatMedian(data),
	}
}

// projectRow keeps only the requested series of one yearly row.
func projectRow(row YearlyReturns, include map[string]bool) ReturnsRow {
	out := ReturnsRow{Year: row.Year}
	if include["stocks"] {
		v := row.Stocks
		out.Stocks = &v
	}
	if include["bonds"] {
		v := row.Bonds
		out.Bonds = &v
	}
	if include["cash"] {
		v := row.Cash
		out.Cash = &v
	}
	if include["inflation"] {
		v := row.Inflation
		out.Inflation = &v
	}
	return out
}

func normalizeAssets(assets []domain.AssetClass) ([]string, error) {
	if len(assets) == 0 {
		return []string{"stocks", "bonds", "cash", "inflation"}, nil
	}
	out := make([]string, 0, len(assets))
	for _, a := range assets {
		switch a {
		case domain.AssetStocks, domain.AssetBonds, domain.AssetCash, domain.AssetInflation:
			out = append(out, string(a))
		default:
			return nil, fmt.Errorf("unknown asset class: %s", a)
		}
	}
	return out, nil
}
