package matching

import (
	"testing"
	"time"

	"github.com/steeldragon666/abfi-nextgen-sub001/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func TestScore_WorkedExample(t *testing.T) {
	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	available := start.Add(5 * 24 * time.Hour)
	demand := &domain.DemandSignal{
		AnnualVolumeTonnes: 1000,
		MaxTransportKm:     f64(150),
		MaxPricePerTonne:   f64(100),
		RequiredStartDate:  &start,
	}
	supply := &domain.SupplyListing{
		AvailableVolumeTonnes: 1200,
		AskingPricePerTonne:   f64(95),
		AvailableFrom:         &available,
	}

	composite, breakdown := DefaultScoringPolicy().Score(demand, supply, 120)

	assert.InDelta(t, 20, breakdown[FactorDistance].Score, 0.01)
	assert.InDelta(t, 100, breakdown[FactorVolume].Score, 0.01)
	assert.InDelta(t, 90, breakdown[FactorTiming].Score, 0.01)
	assert.InDelta(t, 100, breakdown[FactorPrice].Score, 0.01)
	assert.InDelta(t, 70, breakdown[FactorQuality].Score, 0.01) // carbon intensity unknown
	assert.InDelta(t, 0.25*20+0.25*100+0.20*90+0.15*100+0.15*70, composite, 0.01)
}

func TestScore_AlwaysInRange(t *testing.T) {
	cases := []struct {
		name     string
		demand   domain.DemandSignal
		supply   domain.SupplyListing
		distance float64
	}{
		{"zero distance, huge volume", domain.DemandSignal{AnnualVolumeTonnes: 1}, domain.SupplyListing{AvailableVolumeTonnes: 1e9}, 0},
		{"distance at radius edge", domain.DemandSignal{AnnualVolumeTonnes: 100, MaxTransportKm: f64(50)}, domain.SupplyListing{AvailableVolumeTonnes: 10}, 50},
		{"beyond radius", domain.DemandSignal{AnnualVolumeTonnes: 100}, domain.SupplyListing{AvailableVolumeTonnes: 10}, 1e6},
		{"zero volumes", domain.DemandSignal{}, domain.SupplyListing{}, 10},
		{"extreme carbon intensity", domain.DemandSignal{AnnualVolumeTonnes: 100}, domain.SupplyListing{AvailableVolumeTonnes: 100, CarbonIntensity: f64(5000)}, 10},
		{"negative carbon intensity", domain.DemandSignal{AnnualVolumeTonnes: 100}, domain.SupplyListing{AvailableVolumeTonnes: 100, CarbonIntensity: f64(-50)}, 10},
	}
	policy := DefaultScoringPolicy()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			composite, breakdown := policy.Score(&tc.demand, &tc.supply, tc.distance)
			assert.GreaterOrEqual(t, composite, 0.0)
			assert.LessOrEqual(t, composite, 100.0)
			for factor, f := range breakdown {
				assert.GreaterOrEqual(t, f.Score, 0.0, factor)
				assert.LessOrEqual(t, f.Score, 100.0, factor)
			}
		})
	}
}

func TestScore_PriceBands(t *testing.T) {
	policy := DefaultScoringPolicy()
	demand := &domain.DemandSignal{AnnualVolumeTonnes: 100, MaxPricePerTonne: f64(100)}

	cases := []struct {
		ask      float64
		expected float64
	}{
		{100, 100},
		{105, 80},
		{110, 80},
		{115, 60},
		{120, 60},
		{121, 30},
	}
	for _, tc := range cases {
		supply := &domain.SupplyListing{AvailableVolumeTonnes: 100, AskingPricePerTonne: f64(tc.ask)}
		_, breakdown := policy.Score(demand, supply, 10)
		assert.Equal(t, tc.expected, breakdown[FactorPrice].Score, "ask %.0f", tc.ask)
	}
}

func TestScore_UnknownFactors(t *testing.T) {
	policy := DefaultScoringPolicy()
	demand := &domain.DemandSignal{AnnualVolumeTonnes: 100}
	supply := &domain.SupplyListing{AvailableVolumeTonnes: 100}

	_, breakdown := policy.Score(demand, supply, 10)
	assert.Equal(t, policy.TimingUnknownScore, breakdown[FactorTiming].Score)
	assert.Equal(t, policy.PriceUnknownScore, breakdown[FactorPrice].Score)
	assert.Equal(t, policy.QualityUnknownScore, breakdown[FactorQuality].Score)
}

func TestScore_TimingPenalty(t *testing.T) {
	policy := DefaultScoringPolicy()
	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	// 60 days out exhausts the 2-points-per-day penalty entirely.
	far := start.Add(60 * 24 * time.Hour)
	demand := &domain.DemandSignal{AnnualVolumeTonnes: 100, RequiredStartDate: &start}
	supply := &domain.SupplyListing{AvailableVolumeTonnes: 100, AvailableFrom: &far}
	_, breakdown := policy.Score(demand, supply, 10)
	assert.Equal(t, 0.0, breakdown[FactorTiming].Score)

	// Early availability is penalised the same as late.
	early := start.Add(-5 * 24 * time.Hour)
	supply.AvailableFrom = &early
	_, breakdown = policy.Score(demand, supply, 10)
	assert.InDelta(t, 90, breakdown[FactorTiming].Score, 0.01)
}

func TestScore_WeightsSumToOne(t *testing.T) {
	p := DefaultScoringPolicy()
	sum := p.DistanceWeight + p.VolumeWeight + p.TimingWeight + p.PriceWeight + p.QualityWeight
	require.InDelta(t, 1.0, sum, 1e-9)
}
