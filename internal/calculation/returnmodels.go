package calculation

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/rpsim/retirement-simulator/internal/domain"
	"github.com/rpsim/retirement-simulator/internal/historical"
)

// ModelKind identifies one of the interchangeable return-generating models.
type ModelKind string

const (
	ModelNormal        ModelKind = "normal"
	ModelFatTailed     ModelKind = "fat_tailed"
	ModelMeanReverting ModelKind = "mean_reverting"
	ModelBootstrap     ModelKind = "historical_bootstrap"
)

// ParseModelKind validates a model identifier from the configuration surface.
func ParseModelKind(s string) (ModelKind, error) {
	switch ModelKind(s) {
	case ModelNormal, ModelFatTailed, ModelMeanReverting, ModelBootstrap:
		return ModelKind(s), nil
	default:
		return "", fmt.Errorf("unknown return model: %q", s)
	}
}

// ReturnModel produces one full horizon of per-period asset returns. A model
// instance is bound to a single trial's private random source and must not be
// shared across trials.
type ReturnModel interface {
	Name() string
	Generate() []domain.AssetReturnSample
}

// ModelFactory hands out independent ReturnModel instances, one per trial.
// All validation happens at factory construction; Model never fails.
type ModelFactory interface {
	Name() string
	Model(seed uint64) ReturnModel
}

// Series indices into the mean/volatility vectors and correlation matrix.
const (
	idxStocks = iota
	idxBonds
	idxCash
	idxInflation
	numSeries
)

// MarketAssumptions parameterizes the normal and fat-tailed models: nominal
// annual means, volatilities, and the correlation structure among stocks,
// bonds, cash, and inflation.
type MarketAssumptions struct {
	Means        [numSeries]float64
	Volatilities [numSeries]float64
	Correlations [numSeries][numSeries]float64
}

// DefaultMarketAssumptions returns the baseline long-run capital market
// assumptions used when a run does not override them.
func DefaultMarketAssumptions() MarketAssumptions {
	return MarketAssumptions{
		Means:        [numSeries]float64{0.10, 0.04, 0.025, 0.025},
		Volatilities: [numSeries]float64{0.18, 0.06, 0.005, 0.025},
		Correlations: [numSeries][numSeries]float64{
			{1.0, -0.1, 0.0, 0.2},
			{-0.1, 1.0, 0.0, -0.3},
			{0.0, 0.0, 1.0, 0.9},
			{0.2, -0.3, 0.9, 1.0},
		},
	}
}

// isZero reports whether the assumptions are entirely unset.
func (a MarketAssumptions) isZero() bool {
	return a == MarketAssumptions{}
}

// Covariance builds the covariance matrix as corr[i][j] * vol[i] * vol[j].
func (a MarketAssumptions) Covariance() *mat.SymDense {
	cov := mat.NewSymDense(numSeries, nil)
	for i := 0; i < numSeries; i++ {
		for j := i; j < numSeries; j++ {
			cov.SetSym(i, j, a.Correlations[i][j]*a.Volatilities[i]*a.Volatilities[j])
		}
	}
	return cov
}

func sampleFromVector(v []float64) domain.AssetReturnSample {
	return domain.AssetReturnSample{
		Stocks:    decimal.NewFromFloat(v[idxStocks]),
		Bonds:     decimal.NewFromFloat(v[idxBonds]),
		Cash:      decimal.NewFromFloat(v[idxCash]),
		Inflation: decimal.NewFromFloat(v[idxInflation]),
	}
}

// NormalModelFactory produces i.i.d. draws from a correlated multivariate
// normal distribution over (stocks, bonds, cash, inflation).
type NormalModelFactory struct {
	horizon     int
	assumptions MarketAssumptions
	means       []float64
	cov         *mat.SymDense
}

// NewNormalModelFactory validates the assumptions and horizon. The covariance
// matrix must be positive definite.
func NewNormalModelFactory(horizon int, assumptions MarketAssumptions) (*NormalModelFactory, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d", horizon)
	}
	if assumptions.isZero() {
		assumptions = DefaultMarketAssumptions()
	}

	cov := assumptions.Covariance()
	means := assumptions.Means[:]
	if _, ok := distmv.NewNormal(means, cov, rand.NewSource(1)); !ok {
		return nil, fmt.Errorf("covariance matrix is not positive definite")
	}

	return &NormalModelFactory{
		horizon:     horizon,
		assumptions: assumptions,
		means:       means,
		cov:         cov,
	}, nil
}

// Name implements ModelFactory.
func (f *NormalModelFactory) Name() string { return string(ModelNormal) }

// Model implements ModelFactory.
func (f *NormalModelFactory) Model(seed uint64) ReturnModel {
	dist, _ := distmv.NewNormal(f.means, f.cov, rand.NewSource(seed))
	return &normalModel{horizon: f.horizon, dist: dist}
}

type normalModel struct {
	horizon int
	dist    *distmv.Normal
}

func (m *normalModel) Name() string { return string(ModelNormal) }

func (m *normalModel) Generate() []domain.AssetReturnSample {
	samples := make([]domain.AssetReturnSample, m.horizon)
	buf := make([]float64, numSeries)
	for t := range samples {
		samples[t] = sampleFromVector(m.dist.Rand(buf))
	}
	return samples
}

// StudentTModelFactory produces draws from a multivariate Student-t
// distribution: a zero-mean correlated normal innovation scaled per period by
// sqrt(df / chi-squared draw), plus the mean vector. Heavier tails than the
// normal model at the same covariance.
type StudentTModelFactory struct {
	horizon     int
	assumptions MarketAssumptions
	df          float64
	cov         *mat.SymDense
}

// DefaultDegreesOfFreedom keeps tails heavy but the variance finite.
const DefaultDegreesOfFreedom = 5

// NewStudentTModelFactory validates the configuration. Degrees of freedom
// must exceed 2 so the variance is finite.
func NewStudentTModelFactory(horizon, degreesOfFreedom int, assumptions MarketAssumptions) (*StudentTModelFactory, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d", horizon)
	}
	if degreesOfFreedom == 0 {
		degreesOfFreedom = DefaultDegreesOfFreedom
	}
	if degreesOfFreedom <= 2 {
		return nil, fmt.Errorf("degrees of freedom must exceed 2, got %d", degreesOfFreedom)
	}
	if assumptions.isZero() {
		assumptions = DefaultMarketAssumptions()
	}

	cov := assumptions.Covariance()
	zero := make([]float64, numSeries)
	if _, ok := distmv.NewNormal(zero, cov, rand.NewSource(1)); !ok {
		return nil, fmt.Errorf("covariance matrix is not positive definite")
	}

	return &StudentTModelFactory{
		horizon:     horizon,
		assumptions: assumptions,
		df:          float64(degreesOfFreedom),
		cov:         cov,
	}, nil
}

// Name implements ModelFactory.
func (f *StudentTModelFactory) Name() string { return string(ModelFatTailed) }

// Model implements ModelFactory.
func (f *StudentTModelFactory) Model(seed uint64) ReturnModel {
	src := rand.NewSource(seed)
	innovations, _ := distmv.NewNormal(make([]float64, numSeries), f.cov, src)
	return &studentTModel{
		horizon:     f.horizon,
		means:       f.assumptions.Means,
		innovations: innovations,
		chi2:        distuv.ChiSquared{K: f.df, Src: src},
		df:          f.df,
	}
}

type studentTModel struct {
	horizon     int
	means       [numSeries]float64
	innovations *distmv.Normal
	chi2        distuv.ChiSquared
	df          float64
}

func (m *studentTModel) Name() string { return string(ModelFatTailed) }

func (m *studentTModel) Generate() []domain.AssetReturnSample {
	samples := make([]domain.AssetReturnSample, m.horizon)
	buf := make([]float64, numSeries)
	for t := range samples {
		m.innovations.Rand(buf)
		scale := math.Sqrt(m.df / m.chi2.Rand())
		for i := range buf {
			buf[i] = m.means[i] + buf[i]*scale
		}
		samples[t] = sampleFromVector(buf)
	}
	return samples
}

// AR1Params parameterizes one series of the mean-reverting model: long-run
// mean, autoregression coefficient, and the historical unconditional standard
// deviation the innovation volatility is rescaled from.
type AR1Params struct {
	Mean    float64
	Phi     float64
	HistStd float64
}

// MeanReversionParams holds the AR(1) configuration for every series. Series
// are modeled independently; the absence of cross-asset correlation in this
// variant is intentional.
type MeanReversionParams struct {
	Stocks    AR1Params
	Bonds     AR1Params
	Cash      AR1Params
	Inflation AR1Params
}

// DefaultMeanReversionParams applies mild mean reversion to stocks and bonds,
// treats cash as i.i.d., and gives inflation mild momentum.
func DefaultMeanReversionParams() MeanReversionParams {
	return MeanReversionParams{
		Stocks:    AR1Params{Mean: 0.10, Phi: -0.3, HistStd: 0.20},
		Bonds:     AR1Params{Mean: 0.05, Phi: -0.3, HistStd: 0.06},
		Cash:      AR1Params{Mean: 0.025, Phi: 0, HistStd: 0.005},
		Inflation: AR1Params{Mean: 0.025, Phi: 0.3, HistStd: 0.025},
	}
}

func (p MeanReversionParams) isZero() bool {
	return p == MeanReversionParams{}
}

func (p MeanReversionParams) series() [numSeries]AR1Params {
	return [numSeries]AR1Params{p.Stocks, p.Bonds, p.Cash, p.Inflation}
}

// MeanRevertingModelFactory produces returns from independent per-series
// AR(1) processes: r[t] = mu + phi*(r[t-1] - mu) + eps, eps ~ N(0, sigma),
// with sigma = histStd * sqrt(1 - phi^2) so the unconditional variance
// matches the historical target. Period 0 is seeded at the long-run mean.
type MeanRevertingModelFactory struct {
	horizon int
	params  MeanReversionParams
	sigmas  [numSeries]float64
}

// NewMeanRevertingModelFactory validates the configuration; every |phi| must
// be below 1 for the process to be stationary.
func NewMeanRevertingModelFactory(horizon int, params MeanReversionParams) (*MeanRevertingModelFactory, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d", horizon)
	}
	if params.isZero() {
		params = DefaultMeanReversionParams()
	}

	var sigmas [numSeries]float64
	names := [numSeries]string{"stocks", "bonds", "cash", "inflation"}
	for i, s := range params.series() {
		if math.Abs(s.Phi) >= 1 {
			return nil, fmt.Errorf("AR(1) coefficient for %s must satisfy |phi| < 1, got %v", names[i], s.Phi)
		}
		if s.HistStd < 0 {
			return nil, fmt.Errorf("historical std for %s cannot be negative, got %v", names[i], s.HistStd)
		}
		sigmas[i] = s.HistStd * math.Sqrt(1-s.Phi*s.Phi)
	}

	return &MeanRevertingModelFactory{horizon: horizon, params: params, sigmas: sigmas}, nil
}

// Name implements ModelFactory.
func (f *MeanRevertingModelFactory) Name() string { return string(ModelMeanReverting) }

// Model implements ModelFactory.
func (f *MeanRevertingModelFactory) Model(seed uint64) ReturnModel {
	return &meanRevertingModel{
		horizon: f.horizon,
		series:  f.params.series(),
		sigmas:  f.sigmas,
		src:     rand.NewSource(seed),
	}
}

type meanRevertingModel struct {
	horizon int
	series  [numSeries]AR1Params
	sigmas  [numSeries]float64
	src     rand.Source
}

func (m *meanRevertingModel) Name() string { return string(ModelMeanReverting) }

func (m *meanRevertingModel) Generate() []domain.AssetReturnSample {
	var paths [numSeries][]float64
	for i, s := range m.series {
		paths[i] = m.generateSeries(s, m.sigmas[i])
	}

	samples := make([]domain.AssetReturnSample, m.horizon)
	for t := range samples {
		samples[t] = sampleFromVector([]float64{
			paths[idxStocks][t],
			paths[idxBonds][t],
			paths[idxCash][t],
			paths[idxInflation][t],
		})
	}
	return samples
}

func (m *meanRevertingModel) generateSeries(p AR1Params, sigma float64) []float64 {
	path := make([]float64, m.horizon)
	path[0] = p.Mean
	if m.horizon == 1 {
		return path
	}

	var noise distuv.Normal
	if sigma > 0 {
		noise = distuv.Normal{Mu: 0, Sigma: sigma, Src: m.src}
	}
	for t := 1; t < m.horizon; t++ {
		eps := 0.0
		if sigma > 0 {
			eps = noise.Rand()
		}
		path[t] = p.Mean + p.Phi*(path[t-1]-p.Mean) + eps
	}
	return path
}

// BootstrapModelFactory resamples full historical rows (stocks, bonds, cash,
// inflation together) with replacement, preserving the empirical joint
// distribution without a parametric assumption. Inflation comes from the
// historical CPI series, not a separate model.
type BootstrapModelFactory struct {
	horizon int
	rows    []historical.YearlyReturns
}

// NewBootstrapModelFactory validates the horizon and requires a non-empty
// historical snapshot. Sampling is with replacement, so horizons longer than
// the dataset are fine.
func NewBootstrapModelFactory(horizon int, rows []historical.YearlyReturns) (*BootstrapModelFactory, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d", horizon)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("bootstrap model requires historical data: %w", historical.ErrNotLoaded)
	}
	return &BootstrapModelFactory{horizon: horizon, rows: rows}, nil
}

// Name implements ModelFactory.
func (f *BootstrapModelFactory) Name() string { return string(ModelBootstrap) }

// Model implements ModelFactory.
func (f *BootstrapModelFactory) Model(seed uint64) ReturnModel {
	return &bootstrapModel{
		horizon: f.horizon,
		rows:    f.rows,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

type bootstrapModel struct {
	horizon int
	rows    []historical.YearlyReturns
	rng     *rand.Rand
}

func (m *bootstrapModel) Name() string { return string(ModelBootstrap) }

func (m *bootstrapModel) Generate() []domain.AssetReturnSample {
	samples := make([]domain.AssetReturnSample, m.horizon)
	for t := range samples {
		row := m.rows[m.rng.Intn(len(m.rows))]
		samples[t] = domain.AssetReturnSample{
			Stocks:    decimal.NewFromFloat(row.Stocks),
			Bonds:     decimal.NewFromFloat(row.Bonds),
			Cash:      decimal.NewFromFloat(row.Cash),
			Inflation: decimal.NewFromFloat(row.Inflation),
		}
	}
	return samples
}

// ModelConfig gathers everything needed to build any factory variant.
type ModelConfig struct {
	Kind             ModelKind
	Horizon          int
	Assumptions      MarketAssumptions
	DegreesOfFreedom int
	MeanReversion    MeanReversionParams
	Historical       []historical.YearlyReturns
}

// NewFactory builds the factory selected by cfg.Kind.
func NewFactory(cfg ModelConfig) (ModelFactory, error) {
	switch cfg.Kind {
	case ModelNormal:
		return NewNormalModelFactory(cfg.Horizon, cfg.Assumptions)
	case ModelFatTailed:
		return NewStudentTModelFactory(cfg.Horizon, cfg.DegreesOfFreedom, cfg.Assumptions)
	case ModelMeanReverting:
		return NewMeanRevertingModelFactory(cfg.Horizon, cfg.MeanReversion)
	case ModelBootstrap:
		return NewBootstrapModelFactory(cfg.Horizon, cfg.Historical)
	default:
		return nil, fmt.Errorf("unknown return model: %q", cfg.Kind)
	}
}
