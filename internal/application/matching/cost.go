package matching

// Transport cost model constants. The estimate is indicative, not a live
// quote: distance x volume x rate, discounted for bulk and for long-haul
// efficiency.
const (
	ratePerTonneKm       = 0.15
	discountPer100Tonnes = 0.05
	maxVolumeDiscount    = 0.20
	longHaulThresholdKm  = 100.0
	longHaulEfficiency   = 0.95
)

// EstimateTransportCost returns the estimated cost of moving volumeTonnes
// over distanceKm. Inputs below zero are treated as zero.
func EstimateTransportCost(distanceKm, volumeTonnes float64) float64 {
	if distanceKm < 0 {
		distanceKm = 0
	}
	if volumeTonnes < 0 {
		volumeTonnes = 0
	}

	discount := (volumeTonnes / 100) * discountPer100Tonnes
	if discount > maxVolumeDiscount {
		discount = maxVolumeDiscount
	}

	efficiency := 1.0
	if distanceKm > longHaulThresholdKm {
		efficiency = longHaulEfficiency
	}

	return distanceKm * volumeTonnes * ratePerTonneKm * (1 - discount) * efficiency
}
