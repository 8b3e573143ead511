package health

import (
	"log/slog"
	"math"
)

// Weights control how much each metric contributes to the composite score.
// They are expected to sum to 1.0.
type Weights struct {
	CPU          float64
	RAM          float64
	Temperature  float64
	Disk         float64
	Connectivity float64
}

// DefaultWeights returns the standard metric weighting.
func DefaultWeights() Weights {
	return Weights{
		CPU:          0.25,
		RAM:          0.25,
		Temperature:  0.30,
		Disk:         0.15,
		Connectivity: 0.05,
	}
}

// NewWeights builds a Weights and warns if the sum deviates from 1.0.
// A skewed sum is accepted; the composite score is still clamped to [0,100].
func NewWeights(cpu, ram, temp, disk, connectivity float64) Weights {
	w := Weights{
		CPU:          cpu,
		RAM:          ram,
		Temperature:  temp,
		Disk:         disk,
		Connectivity: connectivity,
	}
	total := cpu + ram + temp + disk + connectivity
	if math.Abs(total-1.0) > 0.01 {
		slog.Warn("Health score weights do not sum to 1.0",
			"total", total,
			"cpu", cpu,
			"ram", ram,
			"temperature", temp,
			"disk", disk,
			"connectivity", connectivity)
	}
	return w
}

// NormalizeCPUScore maps CPU usage (percent) to a 0-100 sub-score.
// Lower usage scores higher.
func NormalizeCPUScore(cpuUsage float64) float64 {
	switch {
	case cpuUsage <= 20:
		return 100.0
	case cpuUsage <= 50:
		return 100.0 - (cpuUsage-20)*1.5
	case cpuUsage <= 80:
		return 55.0 - (cpuUsage-50)*1.0
	default:
		return math.Max(0.0, 25.0-(cpuUsage-80)*1.25)
	}
}

// NormalizeRAMScore maps RAM usage (percent) to a 0-100 sub-score.
func NormalizeRAMScore(ramUsage float64) float64 {
	switch {
	case ramUsage <= 30:
		return 100.0
	case ramUsage <= 60:
		return 100.0 - (ramUsage-30)*1.2
	case ramUsage <= 85:
		return 64.0 - (ramUsage-60)*1.0
	default:
		return math.Max(0.0, 39.0-(ramUsage-85)*2.6)
	}
}

// NormalizeTemperatureScore maps temperature (Celsius) to a 0-100 sub-score.
// The 20-40 band scores 100; the score degrades in shells outward on both sides.
func NormalizeTemperatureScore(temperature float64) float64 {
	switch {
	case temperature >= 20 && temperature <= 40:
		return 100.0
	case temperature >= 15 && temperature < 20:
		return 100.0 - (20-temperature)*2.0
	case temperature > 40 && temperature <= 50:
		return 100.0 - (temperature-40)*2.0
	case temperature >= 10 && temperature < 15:
		return 90.0 - (15-temperature)*3.0
	case temperature > 50 && temperature <= 60:
		return 80.0 - (temperature-50)*3.0
	case temperature >= 5 && temperature < 10:
		return 75.0 - (10-temperature)*5.0
	case temperature > 60 && temperature <= 70:
		return 50.0 - (temperature-60)*5.0
	default:
		return math.Max(0.0, 25.0-math.Abs(temperature-35)*0.5)
	}
}

// NormalizeDiskScore maps free disk space (percent) to a 0-100 sub-score.
// More free space scores higher.
func NormalizeDiskScore(freeDiskSpace float64) float64 {
	switch {
	case freeDiskSpace >= 50:
		return 100.0
	case freeDiskSpace >= 30:
		return 100.0 - (50-freeDiskSpace)*1.0
	case freeDiskSpace >= 20:
		return 80.0 - (30-freeDiskSpace)*2.0
	case freeDiskSpace >= 10:
		return 60.0 - (20-freeDiskSpace)*3.0
	default:
		return math.Max(0.0, 30.0-(10-freeDiskSpace)*3.0)
	}
}

// NormalizeConnectivityScore maps connectivity to a binary sub-score.
func NormalizeConnectivityScore(connectivity bool) float64 {
	if connectivity {
		return 100.0
	}
	return 0.0
}

// Score computes the weighted composite health score in [0,100], rounded to
// two decimals. It never panics; a non-finite result is downgraded to 0, so
// callers must treat 0 as "could not assess" as well as genuinely unhealthy.
func Score(cpuUsage, ramUsage, temperature, freeDiskSpace float64, connectivity bool, w Weights) float64 {
	cpuScore := NormalizeCPUScore(cpuUsage)
	ramScore := NormalizeRAMScore(ramUsage)
	tempScore := NormalizeTemperatureScore(temperature)
	diskScore := NormalizeDiskScore(freeDiskSpace)
	connScore := NormalizeConnectivityScore(connectivity)

	score := cpuScore*w.CPU +
		ramScore*w.RAM +
		tempScore*w.Temperature +
		diskScore*w.Disk +
		connScore*w.Connectivity

	if math.IsNaN(score) || math.IsInf(score, 0) {
		slog.Error("Health score computation produced a non-finite value",
			"cpu_usage", cpuUsage,
			"ram_usage", ramUsage,
			"temperature", temperature,
			"free_disk_space", freeDiskSpace,
			"connectivity", connectivity)
		return 0.0
	}

	score = math.Max(0.0, math.Min(100.0, score))
	return math.Round(score*100) / 100
}

// StatusFor buckets a health score into healthy/warning/critical.
func StatusFor(score float64) string {
	switch {
	case score >= 80:
		return "healthy"
	case score >= 60:
		return "warning"
	default:
		return "critical"
	}
}
