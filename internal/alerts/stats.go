package alerts

import (
	"context"
	"log/slog"
	"time"
)

// TriggeredSummary is one row of the most-triggered leaderboard.
type TriggeredSummary struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	DeviceName    string     `json:"device_name"`
	TriggerCount  int        `json:"trigger_count"`
	LastTriggered *time.Time `json:"last_triggered"`
}

// Statistics is the aggregate view over all alerts of a user's devices.
type Statistics struct {
	TotalAlerts     int                `json:"total_alerts"`
	ActiveAlerts    int                `json:"active_alerts"`
	TriggeredAlerts int                `json:"triggered_alerts"`
	AlertsByDevice  map[string]int     `json:"alerts_by_device"`
	MostTriggered   []TriggeredSummary `json:"most_triggered_alerts"`
}

// DeviceSummary is the per-device alert digest.
type DeviceSummary struct {
	DeviceID        string          `json:"device_id"`
	DeviceName      string          `json:"device_name"`
	TotalAlerts     int             `json:"total_alerts"`
	ActiveAlerts    int             `json:"active_alerts"`
	TriggeredAlerts int             `json:"triggered_alerts"`
	TotalTriggers   int             `json:"total_triggers"`
	RecentTriggers  []RecentTrigger `json:"recent_triggers"`
}

type RecentTrigger struct {
	AlertName   string    `json:"alert_name"`
	TriggeredAt time.Time `json:"triggered_at"`
	Conditions  string    `json:"conditions"`
}

// StatsStore is the read-only persistence surface for alert statistics.
type StatsStore interface {
	CountAlertsForUser(ctx context.Context, userID string) (total, active, triggered int, err error)
	AlertCountsByDeviceName(ctx context.Context, userID string) (map[string]int, error)
	MostTriggeredAlerts(ctx context.Context, userID string, limit int) ([]TriggeredSummary, error)
	DeviceWithAlerts(ctx context.Context, deviceID, userID string) (DeviceRef, []Alert, error)
}

// StatsService answers aggregate alert queries from current persisted state.
// Expected data volumes make caching unnecessary.
type StatsService struct {
	store StatsStore
}

func NewStatsService(store StatsStore) *StatsService {
	return &StatsService{store: store}
}

const mostTriggeredLimit = 5

func (s *StatsService) Statistics(ctx context.Context, userID string) (Statistics, error) {
	stats := Statistics{
		AlertsByDevice: map[string]int{},
		MostTriggered:  []TriggeredSummary{},
	}

	total, active, triggered, err := s.store.CountAlertsForUser(ctx, userID)
	if err != nil {
		return stats, err
	}
	stats.TotalAlerts = total
	stats.ActiveAlerts = active
	stats.TriggeredAlerts = triggered

	byDevice, err := s.store.AlertCountsByDeviceName(ctx, userID)
	if err != nil {
		return stats, err
	}
	if byDevice != nil {
		stats.AlertsByDevice = byDevice
	}

	most, err := s.store.MostTriggeredAlerts(ctx, userID, mostTriggeredLimit)
	if err != nil {
		return stats, err
	}
	if most != nil {
		stats.MostTriggered = most
	}

	slog.Debug("Alert statistics computed", "user_id", userID, "total", total)
	return stats, nil
}

const recentTriggerWindow = 24 * time.Hour

// ForDevice builds the alert digest of one device, ownership-checked.
func (s *StatsService) ForDevice(ctx context.Context, deviceID, userID string) (DeviceSummary, error) {
	device, deviceAlerts, err := s.store.DeviceWithAlerts(ctx, deviceID, userID)
	if err != nil {
		return DeviceSummary{}, err
	}

	now := time.Now().UTC()
	summary := DeviceSummary{
		DeviceID:       device.ID,
		DeviceName:     device.Name,
		TotalAlerts:    len(deviceAlerts),
		RecentTriggers: []RecentTrigger{},
	}

	for i := range deviceAlerts {
		a := &deviceAlerts[i]
		if a.IsActive {
			summary.ActiveAlerts++
		}
		if a.IsTriggered(now) {
			summary.TriggeredAlerts++
		}
		summary.TotalTriggers += a.TriggerCount

		if a.LastTriggered != nil && now.Sub(a.LastTriggered.UTC()) < recentTriggerWindow {
			summary.RecentTriggers = append(summary.RecentTriggers, RecentTrigger{
				AlertName:   a.Name,
				TriggeredAt: a.LastTriggered.UTC(),
				Conditions:  a.ConditionsSummary(),
			})
		}
	}

	return summary, nil
}
