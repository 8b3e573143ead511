package main

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/sensors"
)

type reading struct {
	CPUUsage      float64
	RAMUsage      float64
	Temperature   float64
	FreeDiskSpace float64
	DNSLatency    float64
	Connectivity  bool
	BootTimestamp time.Time
}

type profile interface {
	next() reading
}

func newProfile(name string, seed int64) profile {
	switch name {
	case "local":
		return &localProfile{boot: hostBootTime()}
	case "iot":
		return newWalkProfile(seed, walkParams{
			cpuBase: 15, cpuJitter: 10,
			ramBase: 35, ramJitter: 8,
			tempBase: 45, tempJitter: 12,
			diskBase: 70, diskDrift: 0.02,
			latencyBase: 40, latencyJitter: 60,
			dropoutChance: 0.05,
		})
	case "router":
		return newWalkProfile(seed, walkParams{
			cpuBase: 30, cpuJitter: 20,
			ramBase: 55, ramJitter: 10,
			tempBase: 55, tempJitter: 8,
			diskBase: 85, diskDrift: 0.001,
			latencyBase: 15, latencyJitter: 25,
			dropoutChance: 0.02,
		})
	default: // server
		return newWalkProfile(seed, walkParams{
			cpuBase: 40, cpuJitter: 30,
			ramBase: 50, ramJitter: 15,
			tempBase: 38, tempJitter: 6,
			diskBase: 60, diskDrift: 0.05,
			latencyBase: 10, latencyJitter: 15,
			dropoutChance: 0.01,
		})
	}
}

type walkParams struct {
	cpuBase, cpuJitter         float64
	ramBase, ramJitter         float64
	tempBase, tempJitter       float64
	diskBase, diskDrift        float64
	latencyBase, latencyJitter float64
	dropoutChance              float64
}

// walkProfile produces a bounded random walk around each metric's baseline,
// with occasional connectivity dropouts and slowly shrinking disk space.
type walkProfile struct {
	rng    *rand.Rand
	params walkParams
	boot   time.Time

	cpu, ram, temp, disk float64
}

func newWalkProfile(seed int64, params walkParams) *walkProfile {
	return &walkProfile{
		rng:    rand.New(rand.NewSource(time.Now().UnixNano() + seed)),
		params: params,
		boot:   time.Now().Add(-time.Duration(6+seed) * time.Hour),
		cpu:    params.cpuBase,
		ram:    params.ramBase,
		temp:   params.tempBase,
		disk:   params.diskBase,
	}
}

func (p *walkProfile) next() reading {
	p.cpu = clamp(p.cpu+p.step(p.params.cpuJitter), 0, 100)
	p.ram = clamp(p.ram+p.step(p.params.ramJitter), 0, 100)
	p.temp = clamp(p.temp+p.step(p.params.tempJitter), -10, 110)
	p.disk = clamp(p.disk-p.rng.Float64()*p.params.diskDrift, 0, 100)

	latency := p.params.latencyBase + p.rng.Float64()*p.params.latencyJitter
	connected := p.rng.Float64() >= p.params.dropoutChance
	if !connected {
		latency = p.params.latencyBase + 500 + p.rng.Float64()*2000
	}

	return reading{
		CPUUsage:      p.cpu,
		RAMUsage:      p.ram,
		Temperature:   p.temp,
		FreeDiskSpace: p.disk,
		DNSLatency:    latency,
		Connectivity:  connected,
		BootTimestamp: p.boot,
	}
}

// step pulls the walk gently back toward zero offset so metrics hover
// around the baseline instead of wandering off.
func (p *walkProfile) step(jitter float64) float64 {
	return (p.rng.Float64() - 0.5) * jitter * 0.4
}

// localProfile reports the actual metrics of the machine running the
// simulator.
type localProfile struct {
	boot time.Time
}

func (p *localProfile) next() reading {
	r := reading{
		Temperature:   40,
		DNSLatency:    10,
		Connectivity:  true,
		BootTimestamp: p.boot,
	}

	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		r.CPUUsage = percentages[0]
	} else {
		slog.Warn("Failed to read CPU usage", "error", err)
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		r.RAMUsage = vm.UsedPercent
	} else {
		slog.Warn("Failed to read memory usage", "error", err)
	}

	if usage, err := disk.Usage("/"); err == nil {
		r.FreeDiskSpace = 100 - usage.UsedPercent
	} else {
		slog.Warn("Failed to read disk usage", "error", err)
	}

	if temps, err := sensors.SensorsTemperatures(); err == nil && len(temps) > 0 {
		r.Temperature = temps[0].Temperature
	}

	return r
}

func hostBootTime() time.Time {
	if ts, err := host.BootTime(); err == nil {
		return time.Unix(int64(ts), 0)
	}
	return time.Now().Add(-time.Hour)
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
