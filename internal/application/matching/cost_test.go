package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTransportCost_WorkedExample(t *testing.T) {
	// 50 km x 200 t: discount min(0.20, 2x0.05)=0.10, no long-haul efficiency.
	assert.InDelta(t, 1350, EstimateTransportCost(50, 200), 0.001)
}

func TestEstimateTransportCost_MonotonicInDistance(t *testing.T) {
	prev := 0.0
	for d := 0.0; d <= 500; d += 10 {
		cost := EstimateTransportCost(d, 150)
		assert.GreaterOrEqual(t, cost, prev, "distance %.0f", d)
		prev = cost
	}
}

func TestEstimateTransportCost_DiscountCap(t *testing.T) {
	// 1000 t would be a 50% discount uncapped; cap holds it at 20%.
	// 50 x 1000 x 0.15 x 0.80 = 6000.
	assert.InDelta(t, 6000, EstimateTransportCost(50, 1000), 0.001)

	// Even absurd volume never exceeds the cap.
	assert.InDelta(t, 50*1e6*0.15*0.80, EstimateTransportCost(50, 1e6), 0.01)
}

func TestEstimateTransportCost_LongHaulEfficiency(t *testing.T) {
	// 100 t gives a 5% bulk discount. The threshold itself is not long haul;
	// just past it the 0.95 efficiency factor applies.
	assert.InDelta(t, 100*100*0.15*0.95, EstimateTransportCost(100, 100), 0.001)
	assert.InDelta(t, 101*100*0.15*0.95*0.95, EstimateTransportCost(101, 100), 0.001)
}

func TestEstimateTransportCost_NegativeInputs(t *testing.T) {
	assert.Equal(t, 0.0, EstimateTransportCost(-10, 100))
	assert.Equal(t, 0.0, EstimateTransportCost(100, -10))
	assert.Equal(t, 0.0, EstimateTransportCost(0, 0))
}
