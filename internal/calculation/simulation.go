package calculation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rpsim/retirement-simulator/internal/domain"
)

var one = decimal.NewFromInt(1)

// PortfolioState is the mutable per-trial portfolio: per-class balances, the
// cumulative inflation multiplier, and the peak observed real value. Each
// trial owns its state exclusively; nothing here is shared across trials.
type PortfolioState struct {
	Stocks decimal.Decimal
	Bonds  decimal.Decimal
	Cash   decimal.Decimal

	CumulativeInflation decimal.Decimal
	PeakRealValue       decimal.Decimal
}

// NewPortfolioState splits the starting portfolio across the target
// allocation.
func NewPortfolioState(params *domain.SimulationParameters) *PortfolioState {
	total := params.StartingPortfolio
	return &PortfolioState{
		Stocks:              total.Mul(params.Allocation.Weight(domain.AssetStocks)),
		Bonds:               total.Mul(params.Allocation.Weight(domain.AssetBonds)),
		Cash:                total.Mul(params.Allocation.Weight(domain.AssetCash)),
		CumulativeInflation: one,
		PeakRealValue:       total,
	}
}

// TotalValue sums the asset-class balances.
func (s *PortfolioState) TotalValue() decimal.Decimal {
	return s.Stocks.Add(s.Bonds).Add(s.Cash)
}

// clampToZero zeroes out all balances once the portfolio is depleted. Negative
// excursions never persist past the period in which they occur.
func (s *PortfolioState) clampToZero() {
	s.Stocks = decimal.Zero
	s.Bonds = decimal.Zero
	s.Cash = decimal.Zero
}

// PathSimulator steps one portfolio through a full horizon using one return
// model instance.
type PathSimulator struct {
	params *domain.SimulationParameters
	model  ReturnModel
}

// NewPathSimulator pairs a validated parameter set with a trial-private
// return model.
func NewPathSimulator(params *domain.SimulationParameters, model ReturnModel) *PathSimulator {
	return &PathSimulator{params: params, model: model}
}

// Run executes the full horizon and returns the completed outcome. The
// simulation never exits early on depletion; it clamps to zero and keeps
// producing records so every trial yields a fixed-length trajectory.
func (ps *PathSimulator) Run() (*domain.SimulationOutcome, error) {
	horizon := ps.params.HorizonYears
	returns := ps.model.Generate()
	if len(returns) != horizon {
		return nil, fmt.Errorf("return model %s produced %d periods, want %d", ps.model.Name(), len(returns), horizon)
	}

	state := NewPortfolioState(ps.params)
	outcome := &domain.SimulationOutcome{
		Records:         make([]domain.SimulationRecord, 0, horizon),
		Success:         true,
		DepletionPeriod: -1,
		DepletionAge:    -1,
	}

	for period := 0; period < horizon; period++ {
		age := ps.params.RetirementAge + period
		startValue := state.TotalValue()

		spendingNeed := ps.params.AnnualSpending.Mul(state.CumulativeInflation)
		ssIncome := ps.socialSecurityIncome(age, state.CumulativeInflation)
		preliminary := decimal.Max(decimal.Zero, spendingNeed.Sub(ssIncome))
		supplemental := ps.supplementalIncome(age, startValue, preliminary, state)

		netWithdrawal := decimal.Max(decimal.Zero, spendingNeed.Sub(ssIncome).Sub(supplemental))
		withdrawalRate := decimal.Zero
		if startValue.IsPositive() {
			withdrawalRate = netWithdrawal.Div(startValue)
		}

		// Proportional withdrawal keeps the allocation mix intact.
		if startValue.IsPositive() && netWithdrawal.IsPositive() {
			factor := one.Sub(netWithdrawal.Div(startValue))
			state.Stocks = state.Stocks.Mul(factor)
			state.Bonds = state.Bonds.Mul(factor)
			state.Cash = state.Cash.Mul(factor)
		}

		sample := returns[period]
		state.CumulativeInflation = state.CumulativeInflation.Mul(one.Add(sample.Inflation))

		state.Stocks = state.Stocks.Mul(one.Add(sample.Stocks))
		state.Bonds = state.Bonds.Mul(one.Add(sample.Bonds))
		state.Cash = state.Cash.Mul(one.Add(sample.Cash))

		endValue := state.TotalValue()
		if endValue.LessThanOrEqual(decimal.Zero) {
			state.clampToZero()
			endValue = decimal.Zero
			if outcome.Success {
				outcome.Success = false
				outcome.DepletionPeriod = period
				outcome.DepletionAge = age
			}
		} else {
			state.Stocks = endValue.Mul(ps.params.Allocation.Weight(domain.AssetStocks))
			state.Bonds = endValue.Mul(ps.params.Allocation.Weight(domain.AssetBonds))
			state.Cash = endValue.Mul(ps.params.Allocation.Weight(domain.AssetCash))
		}

		// A -100% inflation draw zeroes the cumulative multiplier; the real
		// value is undefined then and the peak simply stops advancing.
		if state.CumulativeInflation.IsPositive() {
			realValue := endValue.Div(state.CumulativeInflation)
			if realValue.GreaterThan(state.PeakRealValue) {
				state.PeakRealValue = realValue
			}
		}

		outcome.Records = append(outcome.Records, domain.SimulationRecord{
			Period:             period,
			Age:                age,
			PortfolioStart:     startValue,
			PortfolioEnd:       endValue,
			StocksValue:        state.Stocks,
			BondsValue:         state.Bonds,
			CashValue:          state.Cash,
			SpendingNeed:       spendingNeed,
			SocialSecurity:     ssIncome,
			SupplementalIncome: supplemental,
			NetWithdrawal:      netWithdrawal,
			WithdrawalRate:     withdrawalRate,
			InflationRate:      sample.Inflation,
		})
	}

	return outcome, nil
}

func (ps *PathSimulator) socialSecurityIncome(age int, cumInflation decimal.Decimal) decimal.Decimal {
	ss := ps.params.SocialSecurity
	if ss == nil || age < ss.StartAge {
		return decimal.Zero
	}
	return ss.AnnualBenefit.Mul(cumInflation)
}

// supplementalIncome evaluates the part-time income trigger for one period.
// The withdrawal-rate variant trips when the projected rate exceeds the
// threshold (capped by MaxAge); the peak and starting variants trip when the
// portfolio has fallen below threshold times the inflation-adjusted
// reference value.
func (ps *PathSimulator) supplementalIncome(age int, currentValue, preliminaryWithdrawal decimal.Decimal, state *PortfolioState) decimal.Decimal {
	rule := ps.params.Supplemental
	if rule == nil || !rule.Enabled || !currentValue.IsPositive() {
		return decimal.Zero
	}

	tripped := false
	switch rule.Trigger {
	case domain.TriggerWithdrawalRate:
		if age <= rule.MaxAge {
			rate := preliminaryWithdrawal.Div(currentValue)
			tripped = rate.GreaterThan(rule.Threshold)
		}
	case domain.TriggerPercentOfPeak:
		reference := state.PeakRealValue.Mul(state.CumulativeInflation)
		if reference.IsPositive() {
			tripped = currentValue.Div(reference).LessThan(rule.Threshold)
		}
	case domain.TriggerPercentOfStarting:
		reference := ps.params.StartingPortfolio.Mul(state.CumulativeInflation)
		if reference.IsPositive() {
			tripped = currentValue.Div(reference).LessThan(rule.Threshold)
		}
	}

	if !tripped {
		return decimal.Zero
	}
	return rule.AnnualIncome.Mul(state.CumulativeInflation)
}
