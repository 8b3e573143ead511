package alerts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	devices map[string]DeviceRef
	alerts  map[string]*Alert

	saveErrFor string
	saveCalls  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		devices: make(map[string]DeviceRef),
		alerts:  make(map[string]*Alert),
	}
}

func (s *fakeStore) DeviceRef(_ context.Context, deviceID string) (DeviceRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[deviceID]
	if !ok {
		return DeviceRef{}, ErrDeviceNotFound
	}
	return d, nil
}

func (s *fakeStore) ActiveAlertsForDevice(_ context.Context, deviceID string) ([]Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Alert
	for _, a := range s.alerts {
		if a.DeviceID == deviceID && a.IsActive {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *fakeStore) SaveTriggerState(_ context.Context, alert *Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	if alert.ID == s.saveErrFor {
		return errors.New("persistence unavailable")
	}
	stored, ok := s.alerts[alert.ID]
	if !ok {
		return errors.New("unknown alert")
	}
	stored.LastTriggered = alert.LastTriggered
	stored.TriggerCount = alert.TriggerCount
	return nil
}

type fakeNotifier struct {
	mu            sync.Mutex
	notifications []Notification
	users         []string
}

func (n *fakeNotifier) NotifyAlertTriggered(userID string, notification Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users = append(n.users, userID)
	n.notifications = append(n.notifications, notification)
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notifications)
}

func cpuFields(cpu float64) map[string]float64 {
	return map[string]float64{"cpu_usage": cpu}
}

func setupEngine() (*Engine, *fakeStore, *fakeNotifier) {
	store := newFakeStore()
	store.devices["dev-1"] = DeviceRef{ID: "dev-1", Name: "rack-7", UserID: "user-1"}
	notifier := &fakeNotifier{}
	return NewEngine(store, notifier), store, notifier
}

func TestEngine_UnknownDeviceReturnsEmpty(t *testing.T) {
	engine, _, notifier := setupEngine()
	triggered := engine.EvaluateDeviceAlerts(context.Background(), "nope", cpuFields(99), nil)
	assert.Empty(t, triggered)
	assert.Equal(t, 0, notifier.count())
}

func TestEngine_TriggersAndNotifies(t *testing.T) {
	engine, store, notifier := setupEngine()
	store.alerts["alert-1"] = activeAlert(Condition{Metric: MetricCPUUsage, Operator: OpGreater, Value: 80})

	raw := map[string]any{"cpu_usage": 95.0, "connectivity": true}
	triggered := engine.EvaluateDeviceAlerts(context.Background(), "dev-1", cpuFields(95), raw)

	require.Len(t, triggered, 1)
	assert.Equal(t, 1, triggered[0].TriggerCount)
	require.Equal(t, 1, notifier.count())

	n := notifier.notifications[0]
	assert.Equal(t, "alert-1", n.ID)
	assert.Equal(t, "rack-7", n.DeviceName)
	assert.Equal(t, "user-1", n.UserID)
	assert.Equal(t, "cpu_usage > 80", n.ConditionsSummary)
	assert.Equal(t, raw, n.HeartbeatData)
	assert.Equal(t, []string{"user-1"}, notifier.users)

	// Persisted state matches.
	assert.Equal(t, 1, store.alerts["alert-1"].TriggerCount)
	assert.NotNil(t, store.alerts["alert-1"].LastTriggered)
}

func TestEngine_EdgeTriggeredWithinDebounceWindow(t *testing.T) {
	engine, store, notifier := setupEngine()
	store.alerts["alert-1"] = activeAlert(Condition{Metric: MetricCPUUsage, Operator: OpGreater, Value: 80})

	// Two qualifying heartbeats one second apart: exactly one notification,
	// trigger_count incremented exactly once.
	first := engine.EvaluateDeviceAlerts(context.Background(), "dev-1", cpuFields(95), nil)
	time.Sleep(time.Second)
	second := engine.EvaluateDeviceAlerts(context.Background(), "dev-1", cpuFields(95), nil)

	assert.Len(t, first, 1)
	assert.Empty(t, second)
	assert.Equal(t, 1, notifier.count())
	assert.Equal(t, 1, store.alerts["alert-1"].TriggerCount)

	// A heartbeat after the window expires re-triggers.
	past := time.Now().UTC().Add(-6 * time.Minute)
	store.alerts["alert-1"].LastTriggered = &past

	third := engine.EvaluateDeviceAlerts(context.Background(), "dev-1", cpuFields(95), nil)
	assert.Len(t, third, 1)
	assert.Equal(t, 2, notifier.count())
	assert.Equal(t, 2, store.alerts["alert-1"].TriggerCount)
}

func TestEngine_ResetAllowsImmediateRetrigger(t *testing.T) {
	engine, store, notifier := setupEngine()
	store.alerts["alert-1"] = activeAlert(Condition{Metric: MetricCPUUsage, Operator: OpGreater, Value: 80})

	engine.EvaluateDeviceAlerts(context.Background(), "dev-1", cpuFields(95), nil)
	require.Equal(t, 1, notifier.count())

	reset := *store.alerts["alert-1"]
	require.NoError(t, engine.ResetTrigger(context.Background(), &reset))
	assert.Nil(t, store.alerts["alert-1"].LastTriggered)
	assert.Equal(t, 1, store.alerts["alert-1"].TriggerCount)

	// Re-triggers even though the original debounce window has not elapsed.
	engine.EvaluateDeviceAlerts(context.Background(), "dev-1", cpuFields(95), nil)
	assert.Equal(t, 2, notifier.count())
	assert.Equal(t, 2, store.alerts["alert-1"].TriggerCount)
}

func TestEngine_PerRuleFailureIsolation(t *testing.T) {
	engine, store, notifier := setupEngine()
	store.alerts["alert-bad"] = &Alert{
		ID: "alert-bad", Name: "bad", DeviceID: "dev-1", IsActive: true,
		DurationMinutes: 5,
		Conditions:      []Condition{{Metric: MetricCPUUsage, Operator: OpGreater, Value: 80}},
	}
	store.alerts["alert-good"] = &Alert{
		ID: "alert-good", Name: "good", DeviceID: "dev-1", IsActive: true,
		DurationMinutes: 5,
		Conditions:      []Condition{{Metric: MetricCPUUsage, Operator: OpGreater, Value: 80}},
	}
	store.saveErrFor = "alert-bad"

	triggered := engine.EvaluateDeviceAlerts(context.Background(), "dev-1", cpuFields(95), nil)

	// The failing alert is skipped, the sibling still fires and notifies.
	require.Len(t, triggered, 1)
	assert.Equal(t, "alert-good", triggered[0].ID)
	assert.Equal(t, 1, notifier.count())
}

func TestEngine_ConcurrentHeartbeatsSingleNotification(t *testing.T) {
	engine, store, notifier := setupEngine()
	store.alerts["alert-1"] = activeAlert(Condition{Metric: MetricCPUUsage, Operator: OpGreater, Value: 80})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			engine.EvaluateDeviceAlerts(context.Background(), "dev-1", cpuFields(95), nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, notifier.count())
	assert.Equal(t, 1, store.alerts["alert-1"].TriggerCount)
}

func TestEngine_InactiveAlertsAreNotEvaluated(t *testing.T) {
	engine, store, notifier := setupEngine()
	inactive := activeAlert(Condition{Metric: MetricCPUUsage, Operator: OpGreater, Value: 80})
	inactive.IsActive = false
	store.alerts["alert-1"] = inactive

	triggered := engine.EvaluateDeviceAlerts(context.Background(), "dev-1", cpuFields(95), nil)
	assert.Empty(t, triggered)
	assert.Equal(t, 0, notifier.count())
}
