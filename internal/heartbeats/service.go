package heartbeats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/devicewatch/devicewatch/internal/alerts"
	"github.com/devicewatch/devicewatch/internal/cache"
	"github.com/devicewatch/devicewatch/internal/health"
	"github.com/devicewatch/devicewatch/internal/metrics"
	"github.com/devicewatch/devicewatch/internal/store"
	"github.com/devicewatch/devicewatch/internal/ws"
)

var ErrDeviceNotFound = errors.New("device not found")

// Telemetry is one raw reading reported by a device.
type Telemetry struct {
	DeviceID      string
	CPUUsage      float64
	RAMUsage      float64
	Temperature   float64
	FreeDiskSpace float64
	DNSLatency    float64
	Connectivity  bool
	BootTimestamp time.Time
}

// Store is the slice of persistence the ingest pipeline needs.
type Store interface {
	GetDeviceForUser(ctx context.Context, deviceID, userID string) (store.Device, error)
	CreateHeartbeat(ctx context.Context, hb store.Heartbeat) (store.Heartbeat, error)
	UpdateDeviceLastSeen(ctx context.Context, deviceID string, seenAt time.Time) error
	LatestHeartbeat(ctx context.Context, deviceID string) (store.Heartbeat, error)
}

// Broadcaster pushes device updates to websocket subscribers.
type Broadcaster interface {
	BroadcastToDevice(deviceID string, event ws.Event)
}

type Service struct {
	store       Store
	cache       *cache.HeartbeatCache
	engine      *alerts.Engine
	broadcaster Broadcaster
	weights     health.Weights
}

func NewService(s Store, c *cache.HeartbeatCache, engine *alerts.Engine, b Broadcaster, weights health.Weights) *Service {
	return &Service{
		store:       s,
		cache:       c,
		engine:      engine,
		broadcaster: b,
		weights:     weights,
	}
}

// Ingest scores and persists one telemetry reading, then fans out the update
// and evaluates the device's alert rules. Broadcast and alert evaluation
// failures never fail the request, the heartbeat is already durable.
func (s *Service) Ingest(ctx context.Context, userID string, t Telemetry) (store.Heartbeat, error) {
	device, err := s.store.GetDeviceForUser(ctx, t.DeviceID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Heartbeat{}, ErrDeviceNotFound
		}
		return store.Heartbeat{}, fmt.Errorf("lookup device: %w", err)
	}

	score := health.Score(t.CPUUsage, t.RAMUsage, t.Temperature, t.FreeDiskSpace, t.Connectivity, s.weights)

	saved, err := s.store.CreateHeartbeat(ctx, store.Heartbeat{
		DeviceID:      device.ID,
		CPUUsage:      t.CPUUsage,
		RAMUsage:      t.RAMUsage,
		Temperature:   t.Temperature,
		FreeDiskSpace: t.FreeDiskSpace,
		DNSLatency:    t.DNSLatency,
		Connectivity:  t.Connectivity,
		BootTimestamp: t.BootTimestamp.UTC(),
		HealthScore:   score,
	})
	if err != nil {
		return store.Heartbeat{}, fmt.Errorf("save heartbeat: %w", err)
	}

	if err := s.store.UpdateDeviceLastSeen(ctx, device.ID, saved.Timestamp); err != nil {
		slog.Warn("Failed to update device last_seen", "device_id", device.ID, "error", err)
	}

	if err := s.cache.SetLatest(ctx, saved); err != nil {
		slog.Warn("Failed to cache heartbeat", "device_id", device.ID, "error", err)
	}

	metrics.HeartbeatsReceived.Inc()
	metrics.HealthScoreObserved.Observe(score)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToDevice(device.ID, ws.DeviceUpdateEvent(device.ID, UpdatePayload(saved)))
	}

	if s.engine != nil {
		fields, raw := EvaluationFields(saved)
		triggered := s.engine.EvaluateDeviceAlerts(ctx, device.ID, fields, raw)
		metrics.AlertsTriggered.Add(float64(len(triggered)))
	}

	return saved, nil
}

// Latest returns the freshest heartbeat for a device, cache first.
func (s *Service) Latest(ctx context.Context, deviceID, userID string) (store.Heartbeat, error) {
	if _, err := s.store.GetDeviceForUser(ctx, deviceID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Heartbeat{}, ErrDeviceNotFound
		}
		return store.Heartbeat{}, fmt.Errorf("lookup device: %w", err)
	}

	if hb, err := s.cache.GetLatest(ctx, deviceID); err == nil {
		return hb, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		slog.Warn("Heartbeat cache read failed", "device_id", deviceID, "error", err)
	}

	hb, err := s.store.LatestHeartbeat(ctx, deviceID)
	if err != nil {
		return store.Heartbeat{}, err
	}
	if cacheErr := s.cache.SetLatest(ctx, hb); cacheErr != nil {
		slog.Warn("Failed to cache heartbeat", "device_id", deviceID, "error", cacheErr)
	}
	return hb, nil
}

// EvaluationFields flattens a heartbeat into the metric map the alert rules
// compare against, plus the raw payload included in notifications.
// Connectivity is exposed as 1 or 0 so numeric operators work on it.
func EvaluationFields(hb store.Heartbeat) (map[string]float64, map[string]any) {
	connectivity := 0.0
	if hb.Connectivity {
		connectivity = 1.0
	}

	fields := map[string]float64{
		"cpu_usage":       hb.CPUUsage,
		"ram_usage":       hb.RAMUsage,
		"temperature":     hb.Temperature,
		"free_disk_space": hb.FreeDiskSpace,
		"dns_latency":     hb.DNSLatency,
		"connectivity":    connectivity,
		"health_score":    hb.HealthScore,
	}

	raw := map[string]any{
		"cpu_usage":       hb.CPUUsage,
		"ram_usage":       hb.RAMUsage,
		"temperature":     hb.Temperature,
		"free_disk_space": hb.FreeDiskSpace,
		"dns_latency":     hb.DNSLatency,
		"connectivity":    hb.Connectivity,
		"health_score":    hb.HealthScore,
		"timestamp":       hb.Timestamp.UTC().Format(time.RFC3339),
	}
	return fields, raw
}

// UpdatePayload is the device_update event body.
func UpdatePayload(hb store.Heartbeat) map[string]any {
	return map[string]any{
		"heartbeat_id":    hb.ID,
		"cpu_usage":       hb.CPUUsage,
		"ram_usage":       hb.RAMUsage,
		"temperature":     hb.Temperature,
		"free_disk_space": hb.FreeDiskSpace,
		"dns_latency":     hb.DNSLatency,
		"connectivity":    hb.Connectivity,
		"health_score":    hb.HealthScore,
		"health_status":   health.StatusFor(hb.HealthScore),
		"timestamp":       hb.Timestamp.UTC().Format(time.RFC3339),
	}
}
