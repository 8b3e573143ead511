package alerts

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DeviceRef is the slice of a device the engine needs for evaluation and
// notification payloads.
type DeviceRef struct {
	ID     string
	Name   string
	UserID string
}

// Store is the persistence surface the engine depends on.
type Store interface {
	// DeviceRef returns ErrDeviceNotFound for an unknown device.
	DeviceRef(ctx context.Context, deviceID string) (DeviceRef, error)
	ActiveAlertsForDevice(ctx context.Context, deviceID string) ([]Alert, error)
	// SaveTriggerState persists last_triggered and trigger_count for the alert.
	SaveTriggerState(ctx context.Context, alert *Alert) error
}

// Notification is the payload emitted when an alert newly fires.
type Notification struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Description       string         `json:"description"`
	DeviceID          string         `json:"device_id"`
	DeviceName        string         `json:"device_name"`
	Conditions        []Condition    `json:"conditions"`
	ConditionsSummary string         `json:"conditions_summary"`
	TriggeredAt       time.Time      `json:"triggered_at"`
	HeartbeatData     map[string]any `json:"heartbeat_data"`
	UserID            string         `json:"user_id"`
}

// Notifier delivers a notification to the owning user's live connections.
type Notifier interface {
	NotifyAlertTriggered(userID string, n Notification)
}

// Engine evaluates a device's active alerts against incoming heartbeats and
// performs the trigger state transitions. Evaluation for a given device is
// serialized so that back-to-back heartbeats cannot both observe "not
// triggered" and double-fire inside one debounce window.
type Engine struct {
	store    Store
	notifier Notifier

	mu          sync.Mutex
	deviceLocks map[string]*sync.Mutex
}

func NewEngine(store Store, notifier Notifier) *Engine {
	return &Engine{
		store:       store,
		notifier:    notifier,
		deviceLocks: make(map[string]*sync.Mutex),
	}
}

func (e *Engine) lockFor(deviceID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.deviceLocks[deviceID]
	if !ok {
		l = &sync.Mutex{}
		e.deviceLocks[deviceID] = l
	}
	return l
}

// EvaluateDeviceAlerts runs every active alert of the device against the
// heartbeat fields and returns the alerts that newly fired. fields carries
// the numeric view used for comparisons (connectivity as 0/1); raw is the
// payload echoed into notifications. Alerts already inside their debounce
// window are skipped, which makes notifications edge-triggered: one per
// debounce episode, not one per qualifying heartbeat. A failure on one alert
// is logged and does not abort evaluation of its siblings.
func (e *Engine) EvaluateDeviceAlerts(ctx context.Context, deviceID string, fields map[string]float64, raw map[string]any) []Alert {
	lock := e.lockFor(deviceID)
	lock.Lock()
	defer lock.Unlock()

	device, err := e.store.DeviceRef(ctx, deviceID)
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			slog.Warn("Device not found for alert evaluation", "device_id", deviceID)
		} else {
			slog.Error("Failed to load device for alert evaluation", "device_id", deviceID, "error", err)
		}
		return nil
	}

	active, err := e.store.ActiveAlertsForDevice(ctx, deviceID)
	if err != nil {
		slog.Error("Failed to load active alerts", "device_id", deviceID, "error", err)
		return nil
	}

	now := time.Now().UTC()
	var triggered []Alert

	for i := range active {
		alert := &active[i]
		if !alert.EvaluateConditions(fields) {
			continue
		}
		if alert.IsTriggered(now) {
			// Still inside the debounce window; do not re-notify.
			continue
		}

		alert.Trigger()
		if err := e.store.SaveTriggerState(ctx, alert); err != nil {
			slog.Error("Failed to persist alert trigger",
				"alert_id", alert.ID,
				"device_id", deviceID,
				"error", err)
			continue
		}

		slog.Info("Alert triggered",
			"alert_id", alert.ID,
			"alert_name", alert.Name,
			"device_id", deviceID,
			"conditions", alert.ConditionsSummary())

		if e.notifier != nil {
			e.notifier.NotifyAlertTriggered(device.UserID, Notification{
				ID:                alert.ID,
				Name:              alert.Name,
				Description:       alert.Description,
				DeviceID:          alert.DeviceID,
				DeviceName:        device.Name,
				Conditions:        alert.Conditions,
				ConditionsSummary: alert.ConditionsSummary(),
				TriggeredAt:       *alert.LastTriggered,
				HeartbeatData:     raw,
				UserID:            device.UserID,
			})
		}

		triggered = append(triggered, *alert)
	}

	return triggered
}

// ResetTrigger clears the trigger state of one alert under the same
// per-device serialization as evaluation, so a reset cannot race a
// concurrent heartbeat's evaluate-then-trigger sequence.
func (e *Engine) ResetTrigger(ctx context.Context, alert *Alert) error {
	lock := e.lockFor(alert.DeviceID)
	lock.Lock()
	defer lock.Unlock()

	alert.Reset()
	if err := e.store.SaveTriggerState(ctx, alert); err != nil {
		return err
	}
	slog.Info("Alert trigger state reset", "alert_id", alert.ID)
	return nil
}
