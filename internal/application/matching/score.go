package matching

import (
	"math"

	"github.com/steeldragon666/abfi-nextgen-sub001/internal/domain"
)

// Factor names used in the score breakdown.
const (
	FactorDistance = "distance"
	FactorVolume   = "volume"
	FactorTiming   = "timing"
	FactorPrice    = "price"
	FactorQuality  = "quality"
)

// ScoringPolicy holds the weights and tolerance bands of the match score.
// The values are business policy, so they are injected rather than hard-coded
// at the call sites; DefaultScoringPolicy returns the platform defaults.
type ScoringPolicy struct {
	DistanceWeight float64
	VolumeWeight   float64
	TimingWeight   float64
	PriceWeight    float64
	QualityWeight  float64

	// TimingPenaltyPerDay is subtracted from 100 per day of offset between
	// supply availability and required start.
	TimingPenaltyPerDay float64
	// TimingUnknownScore applies when either date is missing.
	TimingUnknownScore float64

	// Price tolerance bands: at or under the ceiling, then within 10%, then
	// within 20%, then anything dearer.
	PriceAtOrUnderScore  float64
	PriceWithin10Score   float64
	PriceWithin20Score   float64
	PriceBeyond20Score   float64
	PriceUnknownScore    float64

	QualityUnknownScore float64
}

// DefaultScoringPolicy returns the stock weights and tolerance bands.
func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{
		DistanceWeight:      0.25,
		VolumeWeight:        0.25,
		TimingWeight:        0.20,
		PriceWeight:         0.15,
		QualityWeight:       0.15,
		TimingPenaltyPerDay: 2,
		TimingUnknownScore:  50,
		PriceAtOrUnderScore: 100,
		PriceWithin10Score:  80,
		PriceWithin20Score:  60,
		PriceBeyond20Score:  30,
		PriceUnknownScore:   70,
		QualityUnknownScore: 70,
	}
}

// Score computes the composite match score in [0,100] and its per-factor
// breakdown for a demand signal against one supply listing at the given
// precomputed distance.
func (p ScoringPolicy) Score(demand *domain.DemandSignal, supply *domain.SupplyListing, distanceKm float64) (float64, domain.ScoreBreakdown) {
	breakdown := domain.ScoreBreakdown{
		FactorDistance: {Raw: distanceKm, Weight: p.DistanceWeight, Score: p.distanceScore(demand, distanceKm)},
		FactorVolume:   {Raw: supply.AvailableVolumeTonnes, Weight: p.VolumeWeight, Score: p.volumeScore(demand, supply)},
		FactorTiming:   {Raw: timingOffsetDays(demand, supply), Weight: p.TimingWeight, Score: p.timingScore(demand, supply)},
		FactorPrice:    {Raw: askingPrice(supply), Weight: p.PriceWeight, Score: p.priceScore(demand, supply)},
		FactorQuality:  {Raw: carbonIntensity(supply), Weight: p.QualityWeight, Score: p.qualityScore(supply)},
	}

	composite := 0.0
	for _, f := range breakdown {
		composite += f.Score * f.Weight
	}
	return round2(composite), breakdown
}

func (p ScoringPolicy) distanceScore(demand *domain.DemandSignal, distanceKm float64) float64 {
	radius := demand.TransportRadiusKm()
	return round2(clamp(100-(distanceKm/radius)*100, 0, 100))
}

func (p ScoringPolicy) volumeScore(demand *domain.DemandSignal, supply *domain.SupplyListing) float64 {
	if demand.AnnualVolumeTonnes <= 0 {
		return 100
	}
	return round2(clamp((supply.AvailableVolumeTonnes/demand.AnnualVolumeTonnes)*100, 0, 100))
}

func (p ScoringPolicy) timingScore(demand *domain.DemandSignal, supply *domain.SupplyListing) float64 {
	if demand.RequiredStartDate == nil || supply.AvailableFrom == nil {
		return p.TimingUnknownScore
	}
	days := math.Abs(supply.AvailableFrom.Sub(*demand.RequiredStartDate).Hours() / 24)
	return round2(clamp(100-p.TimingPenaltyPerDay*days, 0, 100))
}

func (p ScoringPolicy) priceScore(demand *domain.DemandSignal, supply *domain.SupplyListing) float64 {
	if demand.MaxPricePerTonne == nil || supply.AskingPricePerTonne == nil {
		return p.PriceUnknownScore
	}
	ask, ceiling := *supply.AskingPricePerTonne, *demand.MaxPricePerTonne
	switch {
	case ask <= ceiling:
		return p.PriceAtOrUnderScore
	case ask <= ceiling*1.10:
		return p.PriceWithin10Score
	case ask <= ceiling*1.20:
		return p.PriceWithin20Score
	default:
		return p.PriceBeyond20Score
	}
}

func (p ScoringPolicy) qualityScore(supply *domain.SupplyListing) float64 {
	if supply.CarbonIntensity == nil {
		return p.QualityUnknownScore
	}
	return round2(clamp(100-*supply.CarbonIntensity, 0, 100))
}

func timingOffsetDays(demand *domain.DemandSignal, supply *domain.SupplyListing) float64 {
	if demand.RequiredStartDate == nil || supply.AvailableFrom == nil {
		return 0
	}
	return math.Abs(supply.AvailableFrom.Sub(*demand.RequiredStartDate).Hours() / 24)
}

func askingPrice(supply *domain.SupplyListing) float64 {
	if supply.AskingPricePerTonne == nil {
		return 0
	}
	return *supply.AskingPricePerTonne
}

func carbonIntensity(supply *domain.SupplyListing) float64 {
	if supply.CarbonIntensity == nil {
		return 0
	}
	return *supply.CarbonIntensity
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
