package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AssetClass identifies one of the portfolio's investable asset classes.
type AssetClass string

const (
	AssetStocks AssetClass = "stocks"
	AssetBonds  AssetClass = "bonds"
	AssetCash   AssetClass = "cash"

	// AssetInflation is not investable; it labels the inflation series in
	// historical queries and summary statistics.
	AssetInflation AssetClass = "inflation"
)

// InvestableAssets lists the asset classes a portfolio can hold, in the
// canonical order used throughout the simulator.
var InvestableAssets = []AssetClass{AssetStocks, AssetBonds, AssetCash}

// allocationTolerance is the floating tolerance for the sum-to-one check.
var allocationTolerance = decimal.New(1, -9)

// Allocation maps each investable asset class to its target portfolio weight.
type Allocation map[AssetClass]decimal.Decimal

// Validate checks that all weights are non-negative and sum to 1.0 within
// tolerance, and that no unknown asset class is present.
func (a Allocation) Validate() error {
	if len(a) == 0 {
		return fmt.Errorf("target allocation is empty")
	}

	sum := decimal.Zero
	for class, weight := range a {
		switch class {
		case AssetStocks, AssetBonds, AssetCash:
		default:
			return fmt.Errorf("unknown asset class in allocation: %s", class)
		}
		if weight.IsNegative() {
			return fmt.Errorf("allocation weight for %s is negative: %s", class, weight)
		}
		sum = sum.Add(weight)
	}

	if sum.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(allocationTolerance) {
		return fmt.Errorf("allocation weights must sum to 1.0, got %s", sum)
	}

	return nil
}

// Weight returns the target weight for an asset class, zero if absent.
func (a Allocation) Weight(class AssetClass) decimal.Decimal {
	return a[class]
}

// SocialSecurityRule describes an inflation-adjusted annual benefit that
// begins at a fixed age. The benefit amount is in today's dollars.
type SocialSecurityRule struct {
	StartAge      int             `json:"start_age" yaml:"start_age"`
	AnnualBenefit decimal.Decimal `json:"annual_benefit" yaml:"annual_benefit"`
}

// TriggerType selects how the supplemental-income rule decides whether
// part-time income is needed in a given period.
type TriggerType string

const (
	// TriggerWithdrawalRate trips when the preliminary withdrawal rate
	// exceeds the threshold. Subject to the rule's MaxAge.
	TriggerWithdrawalRate TriggerType = "withdrawal_rate"

	// TriggerPercentOfPeak trips when the portfolio falls below
	// threshold x the inflation-adjusted peak value.
	TriggerPercentOfPeak TriggerType = "percent_of_peak"

	// TriggerPercentOfStarting trips when the portfolio falls below
	// threshold x the inflation-adjusted starting value.
	TriggerPercentOfStarting TriggerType = "percent_of_starting"
)

// SupplementalIncomeRule describes conditional part-time income earned only
// in periods where the configured trigger trips. Income is in today's
// dollars. MaxAge applies only to the withdrawal-rate trigger.
type SupplementalIncomeRule struct {
	Enabled      bool            `json:"enabled" yaml:"enabled"`
	Trigger      TriggerType     `json:"trigger" yaml:"trigger"`
	Threshold    decimal.Decimal `json:"threshold" yaml:"threshold"`
	AnnualIncome decimal.Decimal `json:"annual_income" yaml:"annual_income"`
	MaxAge       int             `json:"max_age" yaml:"max_age"`
}

// Validate checks the rule's fields. A disabled rule is always valid.
func (r *SupplementalIncomeRule) Validate() error {
	if r == nil || !r.Enabled {
		return nil
	}

	switch r.Trigger {
	case TriggerWithdrawalRate, TriggerPercentOfPeak, TriggerPercentOfStarting:
	default:
		return fmt.Errorf("unknown supplemental income trigger: %q", r.Trigger)
	}
	if !r.Threshold.IsPositive() {
		return fmt.Errorf("supplemental income threshold must be positive, got %s", r.Threshold)
	}
	if r.AnnualIncome.IsNegative() {
		return fmt.Errorf("supplemental annual income cannot be negative, got %s", r.AnnualIncome)
	}
	if r.Trigger == TriggerWithdrawalRate && r.MaxAge <= 0 {
		return fmt.Errorf("withdrawal-rate trigger requires a positive max age")
	}

	return nil
}

// SimulationParameters is the immutable parameter set for one experiment.
// All dollar amounts are in today's dollars; per-period inflation adjustment
// happens inside the simulator.
type SimulationParameters struct {
	StartingPortfolio decimal.Decimal         `json:"starting_portfolio" yaml:"starting_portfolio"`
	AnnualSpending    decimal.Decimal         `json:"annual_spending" yaml:"annual_spending"`
	Allocation        Allocation              `json:"target_allocation" yaml:"target_allocation"`
	HorizonYears      int                     `json:"horizon_years" yaml:"horizon_years"`
	RetirementAge     int                     `json:"retirement_age" yaml:"retirement_age"`
	SocialSecurity    *SocialSecurityRule     `json:"social_security,omitempty" yaml:"social_security"`
	Supplemental      *SupplementalIncomeRule `json:"supplemental_income,omitempty" yaml:"supplemental_income"`
}

// Validate checks all construction invariants. Orchestrator and simulator
// assume a validated parameter set.
func (p *SimulationParameters) Validate() error {
	if !p.StartingPortfolio.IsPositive() {
		return fmt.Errorf("starting portfolio must be positive, got %s", p.StartingPortfolio)
	}
	if p.AnnualSpending.IsNegative() {
		return fmt.Errorf("annual spending cannot be negative, got %s", p.AnnualSpending)
	}
	if p.HorizonYears <= 0 {
		return fmt.Errorf("horizon must be positive, got %d years", p.HorizonYears)
	}
	if p.RetirementAge <= 0 {
		return fmt.Errorf("retirement age must be positive, got %d", p.RetirementAge)
	}
	if err := p.Allocation.Validate(); err != nil {
		return fmt.Errorf("invalid target allocation: %w", err)
	}
	if p.SocialSecurity != nil {
		if p.SocialSecurity.StartAge <= 0 {
			return fmt.Errorf("social security start age must be positive, got %d", p.SocialSecurity.StartAge)
		}
		if p.SocialSecurity.AnnualBenefit.IsNegative() {
			return fmt.Errorf("social security benefit cannot be negative, got %s", p.SocialSecurity.AnnualBenefit)
		}
	}
	if err := p.Supplemental.Validate(); err != nil {
		return err
	}

	return nil
}
