package heartbeats

import (
	"context"
	"testing"
	"time"

	"github.com/devicewatch/devicewatch/internal/health"
	"github.com/devicewatch/devicewatch/internal/store"
	"github.com/devicewatch/devicewatch/internal/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	device     store.Device
	deviceErr  error
	saved      []store.Heartbeat
	lastSeen   time.Time
	latest     store.Heartbeat
	latestErr  error
	createdSeq int
}

func (f *fakeStore) GetDeviceForUser(_ context.Context, deviceID, userID string) (store.Device, error) {
	if f.deviceErr != nil {
		return store.Device{}, f.deviceErr
	}
	if deviceID != f.device.ID || userID != f.device.UserID {
		return store.Device{}, store.ErrNotFound
	}
	return f.device, nil
}

func (f *fakeStore) CreateHeartbeat(_ context.Context, hb store.Heartbeat) (store.Heartbeat, error) {
	f.createdSeq++
	hb.ID = "hb-1"
	hb.Timestamp = time.Now().UTC()
	f.saved = append(f.saved, hb)
	return hb, nil
}

func (f *fakeStore) UpdateDeviceLastSeen(_ context.Context, _ string, seenAt time.Time) error {
	f.lastSeen = seenAt
	return nil
}

func (f *fakeStore) LatestHeartbeat(_ context.Context, _ string) (store.Heartbeat, error) {
	return f.latest, f.latestErr
}

type fakeBroadcaster struct {
	events []ws.Event
}

func (f *fakeBroadcaster) BroadcastToDevice(_ string, event ws.Event) {
	f.events = append(f.events, event)
}

func healthyTelemetry(deviceID string) Telemetry {
	return Telemetry{
		DeviceID:      deviceID,
		CPUUsage:      10,
		RAMUsage:      20,
		Temperature:   30,
		FreeDiskSpace: 80,
		DNSLatency:    12,
		Connectivity:  true,
		BootTimestamp: time.Now().Add(-time.Hour),
	}
}

func TestIngestScoresPersistsAndBroadcasts(t *testing.T) {
	fs := &fakeStore{device: store.Device{ID: "dev-1", Name: "rack-1", UserID: "user-1"}}
	fb := &fakeBroadcaster{}
	svc := NewService(fs, nil, nil, fb, health.DefaultWeights())

	hb, err := svc.Ingest(context.Background(), "user-1", healthyTelemetry("dev-1"))
	require.NoError(t, err)

	assert.Equal(t, 100.0, hb.HealthScore)
	require.Len(t, fs.saved, 1)
	assert.Equal(t, "dev-1", fs.saved[0].DeviceID)
	assert.Equal(t, hb.Timestamp, fs.lastSeen)

	require.Len(t, fb.events, 1)
	assert.Equal(t, "device_update", fb.events[0].Type)
	assert.Equal(t, "dev-1", fb.events[0].DeviceID)
	payload, ok := fb.events[0].Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 100.0, payload["health_score"])
	assert.Equal(t, "healthy", payload["health_status"])
}

func TestIngestUnknownDevice(t *testing.T) {
	fs := &fakeStore{device: store.Device{ID: "dev-1", UserID: "user-1"}}
	svc := NewService(fs, nil, nil, nil, health.DefaultWeights())

	_, err := svc.Ingest(context.Background(), "user-1", healthyTelemetry("dev-unknown"))
	assert.ErrorIs(t, err, ErrDeviceNotFound)
	assert.Empty(t, fs.saved)
}

func TestIngestRejectsForeignDevice(t *testing.T) {
	fs := &fakeStore{device: store.Device{ID: "dev-1", UserID: "user-1"}}
	svc := NewService(fs, nil, nil, nil, health.DefaultWeights())

	_, err := svc.Ingest(context.Background(), "user-2", healthyTelemetry("dev-1"))
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestLatestFallsBackToDatabase(t *testing.T) {
	want := store.Heartbeat{ID: "hb-9", DeviceID: "dev-1", HealthScore: 87.5}
	fs := &fakeStore{
		device: store.Device{ID: "dev-1", UserID: "user-1"},
		latest: want,
	}
	svc := NewService(fs, nil, nil, nil, health.DefaultWeights())

	got, err := svc.Latest(context.Background(), "dev-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLatestUnknownDevice(t *testing.T) {
	fs := &fakeStore{device: store.Device{ID: "dev-1", UserID: "user-1"}}
	svc := NewService(fs, nil, nil, nil, health.DefaultWeights())

	_, err := svc.Latest(context.Background(), "other", "user-1")
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestEvaluationFieldsConnectivity(t *testing.T) {
	fields, raw := EvaluationFields(store.Heartbeat{Connectivity: true, HealthScore: 55})
	assert.Equal(t, 1.0, fields["connectivity"])
	assert.Equal(t, true, raw["connectivity"])
	assert.Equal(t, 55.0, fields["health_score"])

	fields, raw = EvaluationFields(store.Heartbeat{Connectivity: false})
	assert.Equal(t, 0.0, fields["connectivity"])
	assert.Equal(t, false, raw["connectivity"])
}
