package ws

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records payloads and can be told to fail sends.
type fakeConn struct {
	mu       sync.Mutex
	received [][]byte
	failSend bool
	closed   bool
}

func (f *fakeConn) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return errors.New("send on dead connection")
	}
	f.received = append(f.received, payload)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received)
}

func TestRegistry_BroadcastToDevice(t *testing.T) {
	r := NewRegistry()
	conn := &fakeConn{}
	r.Subscribe(conn, DeviceKey, "dev-1")

	r.BroadcastToDevice("dev-1", DeviceUpdateEvent("dev-1", map[string]any{"cpu_usage": 42.0}))
	assert.Equal(t, 1, conn.count())
}

func TestRegistry_KeyIsolation(t *testing.T) {
	r := NewRegistry()
	deviceConn := &fakeConn{}
	userConn := &fakeConn{}
	r.Subscribe(deviceConn, DeviceKey, "dev-1")
	r.Subscribe(userConn, UserKey, "user-1")

	r.BroadcastToDevice("dev-1", DeviceUpdateEvent("dev-1", nil))
	assert.Equal(t, 1, deviceConn.count())
	assert.Equal(t, 0, userConn.count())

	r.BroadcastToUser("user-1", AlertTriggeredEvent(nil))
	assert.Equal(t, 1, deviceConn.count())
	assert.Equal(t, 1, userConn.count())
}

func TestRegistry_BroadcastAll_OneCopyPerConnection(t *testing.T) {
	r := NewRegistry()
	conn := &fakeConn{}
	// Subscribed under both kinds and two device keys.
	r.Subscribe(conn, DeviceKey, "dev-1")
	r.Subscribe(conn, DeviceKey, "dev-2")
	r.Subscribe(conn, UserKey, "user-1")

	r.BroadcastAll(SystemStatusEvent(map[string]any{"ok": true}))
	assert.Equal(t, 1, conn.count())
}

func TestRegistry_Unsubscribe_PrunesEmptyKeys(t *testing.T) {
	r := NewRegistry()
	conn := &fakeConn{}
	r.Subscribe(conn, DeviceKey, "dev-1")
	r.Unsubscribe(conn, DeviceKey, "dev-1")

	stats := r.ConnStats()
	assert.Equal(t, 0, stats.UniqueDevices)
	assert.Equal(t, 0, stats.DeviceConnections)

	// Broadcasting to the removed key is a no-op.
	r.BroadcastToDevice("dev-1", DeviceUpdateEvent("dev-1", nil))
	assert.Equal(t, 0, conn.count())
}

func TestRegistry_DeadConnectionPrunedEverywhere(t *testing.T) {
	r := NewRegistry()
	dead := &fakeConn{failSend: true}
	alive := &fakeConn{}

	r.Subscribe(dead, DeviceKey, "dev-1")
	r.Subscribe(dead, UserKey, "user-1")
	r.Subscribe(alive, DeviceKey, "dev-1")

	r.BroadcastToDevice("dev-1", DeviceUpdateEvent("dev-1", nil))

	// Failure is isolated: the healthy connection still got the event.
	assert.Equal(t, 1, alive.count())
	assert.True(t, dead.closed)

	// The dead connection is gone from every key, including the user key
	// that was not part of the broadcast.
	stats := r.ConnStats()
	assert.Equal(t, 1, stats.DeviceConnections)
	assert.Equal(t, 0, stats.UserConnections)
	assert.Equal(t, 0, stats.UniqueUsers)
}

func TestRegistry_Drop_RemovesAllMemberships(t *testing.T) {
	r := NewRegistry()
	conn := &fakeConn{}
	r.Subscribe(conn, DeviceKey, "dev-1")
	r.Subscribe(conn, DeviceKey, "dev-2")
	r.Subscribe(conn, UserKey, "user-1")

	r.Drop(conn)

	stats := r.ConnStats()
	assert.Equal(t, 0, stats.DeviceConnections)
	assert.Equal(t, 0, stats.UserConnections)
	assert.Equal(t, 0, stats.UniqueDevices)
	assert.Equal(t, 0, stats.UniqueUsers)
}

func TestRegistry_ConnStats(t *testing.T) {
	r := NewRegistry()
	a := &fakeConn{}
	b := &fakeConn{}
	r.Subscribe(a, DeviceKey, "dev-1")
	r.Subscribe(b, DeviceKey, "dev-1")
	r.Subscribe(a, UserKey, "user-1")

	stats := r.ConnStats()
	assert.Equal(t, 2, stats.DeviceConnections)
	assert.Equal(t, 1, stats.UserConnections)
	assert.Equal(t, 1, stats.UniqueDevices)
	assert.Equal(t, 1, stats.UniqueUsers)
	assert.NotEmpty(t, stats.Timestamp)
}

func TestRegistry_SubscribeEmptyIDIsNoop(t *testing.T) {
	r := NewRegistry()
	conn := &fakeConn{}
	r.Subscribe(conn, DeviceKey, "")
	r.Subscribe(conn, UserKey, "")

	stats := r.ConnStats()
	assert.Equal(t, 0, stats.DeviceConnections+stats.UserConnections)
}

func TestRegistry_ConcurrentSubscribeBroadcast(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	conns := make([]*fakeConn, 20)
	for i := range conns {
		conns[i] = &fakeConn{}
	}

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Subscribe(conns[i], DeviceKey, "dev-1")
			r.BroadcastToDevice("dev-1", DeviceUpdateEvent("dev-1", nil))
			r.Unsubscribe(conns[i], DeviceKey, "dev-1")
		}(i)
	}
	wg.Wait()

	stats := r.ConnStats()
	require.Equal(t, 0, stats.DeviceConnections)
}
