package calculation

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rpsim/retirement-simulator/internal/domain"
)

// sequenceModel replays a fixed list of per-period samples.
type sequenceModel struct {
	samples []domain.AssetReturnSample
}

func (m *sequenceModel) Name() string                          { return "sequence" }
func (m *sequenceModel) Generate() []domain.AssetReturnSample { return m.samples }

func zeroReturns(horizon int) *sequenceModel {
	return &sequenceModel{samples: make([]domain.AssetReturnSample, horizon)}
}

func constantReturns(horizon int, sample domain.AssetReturnSample) *sequenceModel {
	samples := make([]domain.AssetReturnSample, horizon)
	for i := range samples {
		samples[i] = sample
	}
	return &sequenceModel{samples: samples}
}

func baseParams(horizon int) *domain.SimulationParameters {
	return &domain.SimulationParameters{
		StartingPortfolio: decimal.NewFromInt(750000),
		AnnualSpending:    decimal.NewFromInt(50000),
		Allocation: domain.Allocation{
			domain.AssetStocks: decimal.NewFromFloat(0.6),
			domain.AssetBonds:  decimal.NewFromFloat(0.3),
			domain.AssetCash:   decimal.NewFromFloat(0.1),
		},
		HorizonYears:  horizon,
		RetirementAge: 50,
	}
}

func TestPathSimulator_ZeroSpendingZeroReturnsIsFixedPoint(t *testing.T) {
	params := baseParams(20)
	params.AnnualSpending = decimal.Zero

	outcome, err := NewPathSimulator(params, zeroReturns(20)).Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !outcome.Success {
		t.Error("expected success with zero spending and zero returns")
	}
	want := decimal.NewFromInt(750000)
	for _, rec := range outcome.Records {
		if !rec.PortfolioStart.Equal(want) {
			t.Errorf("period %d: start value %s, want %s", rec.Period, rec.PortfolioStart, want)
		}
		if !rec.PortfolioEnd.Equal(want) {
			t.Errorf("period %d: end value %s, want %s", rec.Period, rec.PortfolioEnd, want)
		}
	}
}

func TestPathSimulator_ImmediateDepletion(t *testing.T) {
	params := baseParams(10)
	params.StartingPortfolio = decimal.NewFromInt(100)
	params.AnnualSpending = decimal.NewFromInt(1000000)

	outcome, err := NewPathSimulator(params, zeroReturns(10)).Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if outcome.Success {
		t.Error("expected failure")
	}
	if outcome.DepletionPeriod != 0 {
		t.Errorf("depletion period = %d, want 0", outcome.DepletionPeriod)
	}
	if outcome.DepletionAge != 50 {
		t.Errorf("depletion age = %d, want 50", outcome.DepletionAge)
	}
	if len(outcome.Records) != 10 {
		t.Fatalf("got %d records, want 10", len(outcome.Records))
	}
	for _, rec := range outcome.Records {
		if !rec.PortfolioEnd.IsZero() {
			t.Errorf("period %d: end value %s after depletion, want 0", rec.Period, rec.PortfolioEnd)
		}
		if rec.WithdrawalRate.IsNegative() {
			t.Errorf("period %d: negative withdrawal rate %s", rec.Period, rec.WithdrawalRate)
		}
	}
	// Once the portfolio is empty there is nothing to withdraw from.
	for _, rec := range outcome.Records[1:] {
		if !rec.WithdrawalRate.IsZero() {
			t.Errorf("period %d: withdrawal rate %s with zero portfolio, want 0", rec.Period, rec.WithdrawalRate)
		}
	}
}

func TestPathSimulator_AlwaysProducesFullHorizon(t *testing.T) {
	for _, horizon := range []int{1, 5, 40} {
		params := baseParams(horizon)
		outcome, err := NewPathSimulator(params, zeroReturns(horizon)).Run()
		if err != nil {
			t.Fatalf("horizon %d: Run failed: %v", horizon, err)
		}
		if len(outcome.Records) != horizon {
			t.Errorf("horizon %d: got %d records", horizon, len(outcome.Records))
		}
	}
}

func TestPathSimulator_RebalanceRestoresTargetWeights(t *testing.T) {
	params := baseParams(15)
	model := constantReturns(15, domain.AssetReturnSample{
		Stocks:    decimal.NewFromFloat(0.10),
		Bonds:     decimal.NewFromFloat(0.02),
		Cash:      decimal.NewFromFloat(0.005),
		Inflation: decimal.NewFromFloat(0.03),
	})

	outcome, err := NewPathSimulator(params, model).Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	tolerance := decimal.New(1, -9)
	for _, rec := range outcome.Records {
		if rec.PortfolioEnd.IsZero() {
			continue
		}
		checks := []struct {
			class  domain.AssetClass
			value  decimal.Decimal
			weight decimal.Decimal
		}{
			{domain.AssetStocks, rec.StocksValue, params.Allocation.Weight(domain.AssetStocks)},
			{domain.AssetBonds, rec.BondsValue, params.Allocation.Weight(domain.AssetBonds)},
			{domain.AssetCash, rec.CashValue, params.Allocation.Weight(domain.AssetCash)},
		}
		for _, c := range checks {
			got := c.value.Div(rec.PortfolioEnd)
			if got.Sub(c.weight).Abs().GreaterThan(tolerance) {
				t.Errorf("period %d: %s weight %s, want %s", rec.Period, c.class, got, c.weight)
			}
		}
	}
}

func TestPathSimulator_SocialSecurityStartsAtConfiguredAge(t *testing.T) {
	params := baseParams(25)
	params.SocialSecurity = &domain.SocialSecurityRule{
		StartAge:      67,
		AnnualBenefit: decimal.NewFromInt(15000),
	}

	outcome, err := NewPathSimulator(params, zeroReturns(25)).Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	benefit := decimal.NewFromInt(15000)
	for _, rec := range outcome.Records {
		if rec.Age < 67 {
			if !rec.SocialSecurity.IsZero() {
				t.Errorf("age %d: social security %s before start age", rec.Age, rec.SocialSecurity)
			}
		} else if !rec.SocialSecurity.Equal(benefit) {
			t.Errorf("age %d: social security %s, want %s", rec.Age, rec.SocialSecurity, benefit)
		}
	}

	// With zero inflation the net withdrawal drops by exactly the benefit.
	last := outcome.Records[len(outcome.Records)-1]
	wantNet := decimal.NewFromInt(35000)
	if !last.NetWithdrawal.Equal(wantNet) {
		t.Errorf("net withdrawal after SS = %s, want %s", last.NetWithdrawal, wantNet)
	}
}

func TestPathSimulator_WithdrawalRateTrigger(t *testing.T) {
	params := baseParams(20)
	params.StartingPortfolio = decimal.NewFromInt(100000)
	params.AnnualSpending = decimal.NewFromInt(10000) // 10% rate, above threshold
	params.Supplemental = &domain.SupplementalIncomeRule{
		Enabled:      true,
		Trigger:      domain.TriggerWithdrawalRate,
		Threshold:    decimal.NewFromFloat(0.075),
		AnnualIncome: decimal.NewFromInt(25000),
		MaxAge:       55,
	}

	outcome, err := NewPathSimulator(params, zeroReturns(20)).Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	income := decimal.NewFromInt(25000)
	for _, rec := range outcome.Records {
		if rec.PortfolioStart.IsZero() {
			continue
		}
		if rec.Age <= 55 {
			if !rec.SupplementalIncome.Equal(income) {
				t.Errorf("age %d: supplemental income %s, want %s", rec.Age, rec.SupplementalIncome, income)
			}
			if !rec.NetWithdrawal.IsZero() {
				t.Errorf("age %d: net withdrawal %s, want 0 (income covers spending)", rec.Age, rec.NetWithdrawal)
			}
		} else if !rec.SupplementalIncome.IsZero() {
			t.Errorf("age %d: supplemental income %s past max age", rec.Age, rec.SupplementalIncome)
		}
	}
}

func TestPathSimulator_WithdrawalRateTriggerBelowThreshold(t *testing.T) {
	params := baseParams(5)
	params.StartingPortfolio = decimal.NewFromInt(1000000)
	params.AnnualSpending = decimal.NewFromInt(30000) // 3% rate, below threshold
	params.Supplemental = &domain.SupplementalIncomeRule{
		Enabled:      true,
		Trigger:      domain.TriggerWithdrawalRate,
		Threshold:    decimal.NewFromFloat(0.075),
		AnnualIncome: decimal.NewFromInt(25000),
		MaxAge:       65,
	}

	outcome, err := NewPathSimulator(params, zeroReturns(5)).Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, rec := range outcome.Records {
		if !rec.SupplementalIncome.IsZero() {
			t.Errorf("period %d: unexpected supplemental income %s", rec.Period, rec.SupplementalIncome)
		}
	}
}

func TestPathSimulator_PercentOfStartingTrigger(t *testing.T) {
	params := baseParams(3)
	params.StartingPortfolio = decimal.NewFromInt(1000)
	params.AnnualSpending = decimal.Zero
	params.Supplemental = &domain.SupplementalIncomeRule{
		Enabled:      true,
		Trigger:      domain.TriggerPercentOfStarting,
		Threshold:    decimal.NewFromFloat(0.8),
		AnnualIncome: decimal.NewFromInt(25000),
	}

	crash := domain.AssetReturnSample{
		Stocks: decimal.NewFromFloat(-0.5),
		Bonds:  decimal.NewFromFloat(-0.5),
		Cash:   decimal.NewFromFloat(-0.5),
	}
	model := &sequenceModel{samples: []domain.AssetReturnSample{crash, {}, {}}}

	outcome, err := NewPathSimulator(params, model).Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !outcome.Records[0].SupplementalIncome.IsZero() {
		t.Error("trigger should not trip before any losses")
	}
	// After the 50% crash the portfolio sits at half its starting value.
	if !outcome.Records[1].SupplementalIncome.Equal(decimal.NewFromInt(25000)) {
		t.Errorf("period 1: supplemental income %s, want 25000", outcome.Records[1].SupplementalIncome)
	}
}

func TestPathSimulator_PercentOfPeakTrigger(t *testing.T) {
	params := baseParams(3)
	params.StartingPortfolio = decimal.NewFromInt(1000)
	params.AnnualSpending = decimal.Zero
	params.Supplemental = &domain.SupplementalIncomeRule{
		Enabled:      true,
		Trigger:      domain.TriggerPercentOfPeak,
		Threshold:    decimal.NewFromFloat(0.8),
		AnnualIncome: decimal.NewFromInt(25000),
	}

	double := domain.AssetReturnSample{
		Stocks: decimal.NewFromInt(1),
		Bonds:  decimal.NewFromInt(1),
		Cash:   decimal.NewFromInt(1),
	}
	crash := domain.AssetReturnSample{
		Stocks: decimal.NewFromFloat(-0.6),
		Bonds:  decimal.NewFromFloat(-0.6),
		Cash:   decimal.NewFromFloat(-0.6),
	}
	model := &sequenceModel{samples: []domain.AssetReturnSample{double, crash, {}}}

	outcome, err := NewPathSimulator(params, model).Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Period 1 starts at the peak itself; period 2 starts at 40% of peak.
	if !outcome.Records[1].SupplementalIncome.IsZero() {
		t.Error("trigger should not trip at the peak")
	}
	if !outcome.Records[2].SupplementalIncome.Equal(decimal.NewFromInt(25000)) {
		t.Errorf("period 2: supplemental income %s, want 25000", outcome.Records[2].SupplementalIncome)
	}
}

func TestPathSimulator_FailureIsMonotone(t *testing.T) {
	params := baseParams(8)
	params.StartingPortfolio = decimal.NewFromInt(1000)
	params.AnnualSpending = decimal.NewFromInt(600)

	// A crash depletes the portfolio early; strong recovery returns
	// afterwards must not resurrect the trial.
	crash := domain.AssetReturnSample{
		Stocks: decimal.NewFromFloat(-0.9),
		Bonds:  decimal.NewFromFloat(-0.9),
		Cash:   decimal.NewFromFloat(-0.9),
	}
	boom := domain.AssetReturnSample{
		Stocks: decimal.NewFromInt(10),
		Bonds:  decimal.NewFromInt(10),
		Cash:   decimal.NewFromInt(10),
	}
	samples := []domain.AssetReturnSample{crash, crash, boom, boom, boom, boom, boom, boom}
	outcome, err := NewPathSimulator(params, &sequenceModel{samples: samples}).Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Success {
		t.Fatal("expected depletion")
	}
	for _, rec := range outcome.Records[outcome.DepletionPeriod:] {
		if !rec.PortfolioEnd.IsZero() {
			t.Errorf("period %d: value %s after depletion", rec.Period, rec.PortfolioEnd)
		}
	}
}

func TestPathSimulator_ClampAfterDepletion(t *testing.T) {
	params := baseParams(6)
	params.StartingPortfolio = decimal.NewFromInt(1000)
	params.AnnualSpending = decimal.NewFromInt(2000)

	outcome, err := NewPathSimulator(params, zeroReturns(6)).Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Success {
		t.Fatal("expected depletion")
	}
	for _, rec := range outcome.Records[outcome.DepletionPeriod:] {
		if !rec.PortfolioEnd.IsZero() {
			t.Errorf("period %d: value %s, want 0", rec.Period, rec.PortfolioEnd)
		}
		if rec.StocksValue.IsNegative() || rec.BondsValue.IsNegative() || rec.CashValue.IsNegative() {
			t.Errorf("period %d: negative balance persisted", rec.Period)
		}
	}
}

func TestPathSimulator_SurvivesPriceLevelCollapse(t *testing.T) {
	params := baseParams(4)
	params.Supplemental = &domain.SupplementalIncomeRule{
		Enabled:      true,
		Trigger:      domain.TriggerPercentOfPeak,
		Threshold:    decimal.NewFromFloat(0.8),
		AnnualIncome: decimal.NewFromInt(25000),
	}

	// A -100% inflation draw drives the cumulative multiplier to zero; the
	// remaining periods must still complete.
	collapse := domain.AssetReturnSample{Inflation: decimal.NewFromInt(-1)}
	samples := []domain.AssetReturnSample{{}, collapse, {}, {}}

	outcome, err := NewPathSimulator(params, &sequenceModel{samples: samples}).Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(outcome.Records) != 4 {
		t.Fatalf("got %d records, want 4", len(outcome.Records))
	}
	// The multiplier hits zero after period 1's draw, so spending from
	// period 2 on is inflation-scaled to nothing.
	for _, rec := range outcome.Records[2:] {
		if !rec.SpendingNeed.IsZero() {
			t.Errorf("period %d: spending need %s with zero price level", rec.Period, rec.SpendingNeed)
		}
	}
}

func TestPathSimulator_ModelLengthMismatch(t *testing.T) {
	params := baseParams(10)
	short := zeroReturns(4)
	if _, err := NewPathSimulator(params, short).Run(); err == nil {
		t.Error("expected error for short return series")
	}
}
