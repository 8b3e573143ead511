package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatsStore struct {
	total, active, triggered int
	byDevice                 map[string]int
	most                     []TriggeredSummary
	device                   DeviceRef
	deviceAlerts             []Alert
}

func (s *fakeStatsStore) CountAlertsForUser(context.Context, string) (int, int, int, error) {
	return s.total, s.active, s.triggered, nil
}

func (s *fakeStatsStore) AlertCountsByDeviceName(context.Context, string) (map[string]int, error) {
	return s.byDevice, nil
}

func (s *fakeStatsStore) MostTriggeredAlerts(context.Context, string, int) ([]TriggeredSummary, error) {
	return s.most, nil
}

func (s *fakeStatsStore) DeviceWithAlerts(context.Context, string, string) (DeviceRef, []Alert, error) {
	return s.device, s.deviceAlerts, nil
}

func TestStatsService_Statistics(t *testing.T) {
	last := time.Now().UTC()
	store := &fakeStatsStore{
		total: 7, active: 5, triggered: 2,
		byDevice: map[string]int{"rack-7": 4, "gw-2": 3},
		most: []TriggeredSummary{
			{ID: "a", Name: "hot", DeviceName: "rack-7", TriggerCount: 12, LastTriggered: &last},
		},
	}
	svc := NewStatsService(store)

	stats, err := svc.Statistics(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 7, stats.TotalAlerts)
	assert.Equal(t, 5, stats.ActiveAlerts)
	assert.Equal(t, 2, stats.TriggeredAlerts)
	assert.Equal(t, 4, stats.AlertsByDevice["rack-7"])
	require.Len(t, stats.MostTriggered, 1)
	assert.Equal(t, 12, stats.MostTriggered[0].TriggerCount)
}

func TestStatsService_Statistics_EmptyUser(t *testing.T) {
	svc := NewStatsService(&fakeStatsStore{})

	stats, err := svc.Statistics(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalAlerts)
	assert.NotNil(t, stats.AlertsByDevice)
	assert.NotNil(t, stats.MostTriggered)
}

func TestStatsService_ForDevice(t *testing.T) {
	now := time.Now().UTC()
	recent := now.Add(-time.Hour)
	stale := now.Add(-36 * time.Hour)

	store := &fakeStatsStore{
		device: DeviceRef{ID: "dev-1", Name: "rack-7", UserID: "user-1"},
		deviceAlerts: []Alert{
			{ID: "a", Name: "hot", IsActive: true, DurationMinutes: 5, LastTriggered: &recent, TriggerCount: 3,
				Conditions: []Condition{{Metric: MetricTemperature, Operator: OpGreater, Value: 60}}},
			{ID: "b", Name: "old", IsActive: false, DurationMinutes: 5, LastTriggered: &stale, TriggerCount: 9},
			{ID: "c", Name: "quiet", IsActive: true, DurationMinutes: 5},
		},
	}
	svc := NewStatsService(store)

	summary, err := svc.ForDevice(context.Background(), "dev-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "rack-7", summary.DeviceName)
	assert.Equal(t, 3, summary.TotalAlerts)
	assert.Equal(t, 2, summary.ActiveAlerts)
	assert.Equal(t, 0, summary.TriggeredAlerts) // recent trigger is outside its 5m window
	assert.Equal(t, 12, summary.TotalTriggers)
	require.Len(t, summary.RecentTriggers, 1)
	assert.Equal(t, "hot", summary.RecentTriggers[0].AlertName)
	assert.Equal(t, "temperature > 60", summary.RecentTriggers[0].Conditions)
}
