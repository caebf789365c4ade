package domain

import (
	"github.com/shopspring/decimal"
)

// AssetReturnSample holds one period's realized returns and inflation, all as
// simple fractional rates (0.07 = +7%).
type AssetReturnSample struct {
	Stocks    decimal.Decimal `json:"stocks"`
	Bonds     decimal.Decimal `json:"bonds"`
	Cash      decimal.Decimal `json:"cash"`
	Inflation decimal.Decimal `json:"inflation"`
}

// SimulationRecord captures the complete state transition of a single period
// within one trial. Records are append-only and ordered by period index.
type SimulationRecord struct {
	Period int `json:"period"`
	Age    int `json:"age"`

	PortfolioStart decimal.Decimal `json:"portfolio_start"`
	PortfolioEnd   decimal.Decimal `json:"portfolio_end"`
	StocksValue    decimal.Decimal `json:"stocks_value"`
	BondsValue     decimal.Decimal `json:"bonds_value"`
	CashValue      decimal.Decimal `json:"cash_value"`

	SpendingNeed       decimal.Decimal `json:"spending_need"`
	SocialSecurity     decimal.Decimal `json:"social_security"`
	SupplementalIncome decimal.Decimal `json:"supplemental_income"`
	NetWithdrawal      decimal.Decimal `json:"net_withdrawal"`
	WithdrawalRate     decimal.Decimal `json:"withdrawal_rate"`
	InflationRate      decimal.Decimal `json:"inflation_rate"`
}

// SimulationOutcome is one complete trial: a full-length record sequence plus
// the terminal verdict. DepletionPeriod and DepletionAge are -1 for
// successful trials.
type SimulationOutcome struct {
	Records         []SimulationRecord `json:"records"`
	Success         bool               `json:"success"`
	DepletionPeriod int                `json:"depletion_period"`
	DepletionAge    int                `json:"depletion_age"`
}

// FinalValue returns the portfolio value at the end of the last period.
func (o *SimulationOutcome) FinalValue() decimal.Decimal {
	if len(o.Records) == 0 {
		return decimal.Zero
	}
	return o.Records[len(o.Records)-1].PortfolioEnd
}

// SupplementalYears counts the periods in which supplemental income was
// earned.
func (o *SimulationOutcome) SupplementalYears() int {
	count := 0
	for _, rec := range o.Records {
		if rec.SupplementalIncome.IsPositive() {
			count++
		}
	}
	return count
}

// DistributionStats summarizes a cross-trial distribution of dollar values.
type DistributionStats struct {
	Median decimal.Decimal `json:"median"`
	Mean   decimal.Decimal `json:"mean"`
	P10    decimal.Decimal `json:"p10"`
	P25    decimal.Decimal `json:"p25"`
	P75    decimal.Decimal `json:"p75"`
	P90    decimal.Decimal `json:"p90"`
	Min    decimal.Decimal `json:"min"`
	Max    decimal.Decimal `json:"max"`
}

// PercentileBands holds per-period percentile trajectories of end-of-period
// portfolio value across all trials. Each slice has one entry per period.
type PercentileBands struct {
	P10 []decimal.Decimal `json:"p10"`
	P25 []decimal.Decimal `json:"p25"`
	P50 []decimal.Decimal `json:"p50"`
	P75 []decimal.Decimal `json:"p75"`
	P90 []decimal.Decimal `json:"p90"`
}

// SupplementalWorkStats summarizes the per-trial count of years with
// supplemental income across all trials.
type SupplementalWorkStats struct {
	MedianYears        decimal.Decimal `json:"median_years"`
	MeanYears          decimal.Decimal `json:"mean_years"`
	MaxYears           int             `json:"max_years"`
	P90Years           decimal.Decimal `json:"p90_years"`
	ProbabilityAnyWork decimal.Decimal `json:"probability_any_work"`
}

// DepletionStats summarizes depletion ages over the failed subset of trials.
// The whole struct is absent (nil) when no trial failed.
type DepletionStats struct {
	FailedTrials int             `json:"failed_trials"`
	MedianAge    decimal.Decimal `json:"median_age"`
	MeanAge      decimal.Decimal `json:"mean_age"`
	EarliestAge  int             `json:"earliest_age"`
	LatestAge    int             `json:"latest_age"`
}

// AggregateStatistics is the cross-trial result surface, recomputed from
// scratch for every run and suitable for direct serialization.
type AggregateStatistics struct {
	Trials       int `json:"trials"`
	HorizonYears int `json:"horizon_years"`

	SuccessRate decimal.Decimal `json:"success_rate"`
	FailureRate decimal.Decimal `json:"failure_rate"`

	FinalPortfolio    DistributionStats     `json:"final_portfolio"`
	PortfolioOverTime PercentileBands       `json:"portfolio_over_time"`
	SupplementalWork  SupplementalWorkStats `json:"supplemental_work"`
	Depletion         *DepletionStats       `json:"depletion,omitempty"`
}
