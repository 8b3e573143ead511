package ws

import (
	"time"

	"github.com/devicewatch/devicewatch/internal/alerts"
)

// Event is the JSON envelope pushed to subscribers.
type Event struct {
	Type      string `json:"type"`
	DeviceID  string `json:"device_id,omitempty"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// DeviceUpdateEvent wraps a heartbeat (plus derived fields) for the device's
// subscribers.
func DeviceUpdateEvent(deviceID string, data any) Event {
	return Event{
		Type:      "device_update",
		DeviceID:  deviceID,
		Data:      data,
		Timestamp: nowRFC3339(),
	}
}

// AlertTriggeredEvent wraps an alert notification for the owning user's
// subscribers.
func AlertTriggeredEvent(data any) Event {
	return Event{
		Type:      "alert_triggered",
		Data:      data,
		Timestamp: nowRFC3339(),
	}
}

// SystemStatusEvent wraps a status snapshot for every subscriber.
func SystemStatusEvent(data any) Event {
	return Event{
		Type:      "system_status",
		Data:      data,
		Timestamp: nowRFC3339(),
	}
}

// Notifier adapts the registry to the alert engine's delivery boundary.
type Notifier struct {
	registry *Registry
}

func NewNotifier(registry *Registry) *Notifier {
	return &Notifier{registry: registry}
}

func (n *Notifier) NotifyAlertTriggered(userID string, notification alerts.Notification) {
	n.registry.BroadcastToUser(userID, AlertTriggeredEvent(notification))
}
