package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCPUScore_Breakpoints(t *testing.T) {
	assert.InDelta(t, 100.0, NormalizeCPUScore(0), 0.001)
	assert.InDelta(t, 100.0, NormalizeCPUScore(20), 0.001)
	assert.InDelta(t, 55.0, NormalizeCPUScore(50), 0.001)
	assert.InDelta(t, 25.0, NormalizeCPUScore(80), 0.001)
	assert.InDelta(t, 0.0, NormalizeCPUScore(100), 0.001)
}

func TestNormalizeRAMScore_Breakpoints(t *testing.T) {
	assert.InDelta(t, 100.0, NormalizeRAMScore(0), 0.001)
	assert.InDelta(t, 100.0, NormalizeRAMScore(30), 0.001)
	assert.InDelta(t, 64.0, NormalizeRAMScore(60), 0.001)
	assert.InDelta(t, 39.0, NormalizeRAMScore(85), 0.001)
	assert.InDelta(t, 0.0, NormalizeRAMScore(100), 0.001)
}

func TestNormalizeTemperatureScore_SweetBand(t *testing.T) {
	assert.InDelta(t, 100.0, NormalizeTemperatureScore(20), 0.001)
	assert.InDelta(t, 100.0, NormalizeTemperatureScore(30), 0.001)
	assert.InDelta(t, 100.0, NormalizeTemperatureScore(40), 0.001)
}

func TestNormalizeTemperatureScore_Shells(t *testing.T) {
	// symmetric degradation outside the sweet band
	assert.InDelta(t, 90.0, NormalizeTemperatureScore(15), 0.001)
	assert.InDelta(t, 80.0, NormalizeTemperatureScore(50), 0.001)
	assert.InDelta(t, 75.0, NormalizeTemperatureScore(10), 0.001)
	assert.InDelta(t, 50.0, NormalizeTemperatureScore(60), 0.001)
	assert.InDelta(t, 0.0, NormalizeTemperatureScore(70), 0.001)
}

func TestNormalizeDiskScore_Breakpoints(t *testing.T) {
	assert.InDelta(t, 100.0, NormalizeDiskScore(100), 0.001)
	assert.InDelta(t, 100.0, NormalizeDiskScore(50), 0.001)
	assert.InDelta(t, 80.0, NormalizeDiskScore(30), 0.001)
	assert.InDelta(t, 60.0, NormalizeDiskScore(20), 0.001)
	assert.InDelta(t, 30.0, NormalizeDiskScore(10), 0.001)
	assert.InDelta(t, 0.0, NormalizeDiskScore(0), 0.001)
}

func TestNormalizeConnectivityScore(t *testing.T) {
	assert.Equal(t, 100.0, NormalizeConnectivityScore(true))
	assert.Equal(t, 0.0, NormalizeConnectivityScore(false))
}

func TestScore_HealthyScenario(t *testing.T) {
	score := Score(20, 30, 30, 80, true, DefaultWeights())
	assert.GreaterOrEqual(t, score, 80.0)
}

func TestScore_CriticalScenario(t *testing.T) {
	score := Score(90, 95, 80, 5, false, DefaultWeights())
	assert.Less(t, score, 40.0)
}

func TestScore_BoundsFuzz(t *testing.T) {
	percentages := []float64{0, 50, 100}
	temperatures := []float64{-50, 0, 25, 75, 150}

	for _, cpu := range percentages {
		for _, ram := range percentages {
			for _, disk := range percentages {
				for _, temp := range temperatures {
					for _, conn := range []bool{true, false} {
						score := Score(cpu, ram, temp, disk, conn, DefaultWeights())
						assert.GreaterOrEqual(t, score, 0.0,
							"cpu=%v ram=%v temp=%v disk=%v conn=%v", cpu, ram, temp, disk, conn)
						assert.LessOrEqual(t, score, 100.0,
							"cpu=%v ram=%v temp=%v disk=%v conn=%v", cpu, ram, temp, disk, conn)
					}
				}
			}
		}
	}
}

func TestScore_SkewedWeightsStillClamped(t *testing.T) {
	w := NewWeights(1, 1, 1, 1, 1)
	score := Score(0, 0, 30, 100, true, w)
	assert.Equal(t, 100.0, score)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, "healthy", StatusFor(80))
	assert.Equal(t, "warning", StatusFor(60))
	assert.Equal(t, "warning", StatusFor(79.99))
	assert.Equal(t, "critical", StatusFor(59.99))
	assert.Equal(t, "critical", StatusFor(0))
}
