package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/devicewatch/devicewatch/internal/metrics"
)

// Conn is a live subscriber connection. Send must be safe for use from
// multiple goroutines and must fail, not block forever, when the peer is gone.
type Conn interface {
	Send(payload []byte) error
	Close() error
}

// KeyKind distinguishes the two subscription namespaces.
type KeyKind int

const (
	DeviceKey KeyKind = iota
	UserKey
)

// Stats is the registry's monitoring surface.
type Stats struct {
	DeviceConnections int    `json:"total_device_connections"`
	UserConnections   int    `json:"total_user_connections"`
	UniqueDevices     int    `json:"unique_devices"`
	UniqueUsers       int    `json:"unique_users"`
	Timestamp         string `json:"timestamp"`
}

// Registry maintains live-connection memberships keyed by device and by user
// and fans events out to them. A connection may appear under any number of
// keys of either kind. All map mutations run under one lock; broadcasts
// snapshot the membership before sending so slow peers never hold the lock.
type Registry struct {
	mu         sync.RWMutex
	deviceSubs map[string]map[Conn]struct{}
	userSubs   map[string]map[Conn]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		deviceSubs: make(map[string]map[Conn]struct{}),
		userSubs:   make(map[string]map[Conn]struct{}),
	}
}

func (r *Registry) subsFor(kind KeyKind) map[string]map[Conn]struct{} {
	if kind == DeviceKey {
		return r.deviceSubs
	}
	return r.userSubs
}

// Subscribe adds the connection to the given key's membership set.
func (r *Registry) Subscribe(conn Conn, kind KeyKind, id string) {
	if id == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.subsFor(kind)
	set, ok := subs[id]
	if !ok {
		set = make(map[Conn]struct{})
		subs[id] = set
	}
	set[conn] = struct{}{}

	if kind == DeviceKey {
		slog.Info("Connection subscribed to device", "device_id", id)
	} else {
		slog.Info("Connection subscribed to user", "user_id", id)
	}
}

// Unsubscribe removes the connection from the given key. An emptied key is
// deleted so the maps never accumulate dead entries.
func (r *Registry) Unsubscribe(conn Conn, kind KeyKind, id string) {
	if id == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(conn, kind, id)
}

func (r *Registry) removeLocked(conn Conn, kind KeyKind, id string) {
	subs := r.subsFor(kind)
	set, ok := subs[id]
	if !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(subs, id)
	}
}

// Drop removes the connection from every key of both kinds. Connection
// lifetime tasks call this on disconnect; broadcast calls it for any
// connection whose send failed.
func (r *Registry) Drop(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropLocked(conn)
}

func (r *Registry) dropLocked(conn Conn) {
	for id, set := range r.deviceSubs {
		if _, ok := set[conn]; ok {
			delete(set, conn)
			if len(set) == 0 {
				delete(r.deviceSubs, id)
			}
		}
	}
	for id, set := range r.userSubs {
		if _, ok := set[conn]; ok {
			delete(set, conn)
			if len(set) == 0 {
				delete(r.userSubs, id)
			}
		}
	}
}

// BroadcastToDevice sends the event to every connection subscribed to the
// device key. Connections added after the membership snapshot is taken miss
// this broadcast.
func (r *Registry) BroadcastToDevice(deviceID string, event Event) {
	r.broadcastKey(DeviceKey, deviceID, event)
}

// BroadcastToUser sends the event to every connection subscribed to the user key.
func (r *Registry) BroadcastToUser(userID string, event Event) {
	r.broadcastKey(UserKey, userID, event)
}

func (r *Registry) broadcastKey(kind KeyKind, id string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to serialize broadcast event", "type", event.Type, "error", err)
		return
	}

	r.mu.RLock()
	set := r.subsFor(kind)[id]
	targets := make([]Conn, 0, len(set))
	for conn := range set {
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	r.deliver(targets, payload)
}

// BroadcastAll sends the event to the union of every connection across both
// maps; a connection subscribed under several keys receives exactly one copy.
func (r *Registry) BroadcastAll(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to serialize broadcast event", "type", event.Type, "error", err)
		return
	}

	r.mu.RLock()
	union := make(map[Conn]struct{})
	for _, set := range r.deviceSubs {
		for conn := range set {
			union[conn] = struct{}{}
		}
	}
	for _, set := range r.userSubs {
		for conn := range set {
			union[conn] = struct{}{}
		}
	}
	targets := make([]Conn, 0, len(union))
	for conn := range union {
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	r.deliver(targets, payload)
}

// deliver sends outside the lock. A connection whose send fails is treated as
// dead: it is removed from every key it holds and closed.
func (r *Registry) deliver(targets []Conn, payload []byte) {
	var dead []Conn
	for _, conn := range targets {
		if err := conn.Send(payload); err != nil {
			slog.Warn("Failed to send to connection, dropping it", "error", err)
			metrics.BroadcastFailures.Inc()
			dead = append(dead, conn)
		}
	}

	if len(dead) == 0 {
		return
	}

	r.mu.Lock()
	for _, conn := range dead {
		r.dropLocked(conn)
	}
	r.mu.Unlock()

	for _, conn := range dead {
		_ = conn.Close()
	}
}

// ConnStats counts current memberships.
func (r *Registry) ConnStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var deviceConns, userConns int
	for _, set := range r.deviceSubs {
		deviceConns += len(set)
	}
	for _, set := range r.userSubs {
		userConns += len(set)
	}

	return Stats{
		DeviceConnections: deviceConns,
		UserConnections:   userConns,
		UniqueDevices:     len(r.deviceSubs),
		UniqueUsers:       len(r.userSubs),
		Timestamp:         nowRFC3339(),
	}
}
