package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

// onlineWindow is how recently a device must have reported to count as online.
const onlineWindow = 5 * time.Minute

// Store is the hand-written pgx query layer over the devicewatch schema.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type User struct {
	ID             string
	Email          string
	FullName       string
	HashedPassword string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Device struct {
	ID           string
	Name         string
	Location     string
	SerialNumber string
	Description  string
	UserID       string
	LastSeen     *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsOnline reports whether the device was seen inside the online window.
func (d *Device) IsOnline(now time.Time) bool {
	if d.LastSeen == nil {
		return false
	}
	return now.UTC().Sub(d.LastSeen.UTC()) < onlineWindow
}

type Heartbeat struct {
	ID            string
	DeviceID      string
	CPUUsage      float64
	RAMUsage      float64
	Temperature   float64
	FreeDiskSpace float64
	DNSLatency    float64
	Connectivity  bool
	BootTimestamp time.Time
	HealthScore   float64
	Timestamp     time.Time
}

// HealthScoreStats is the aggregate over a device's recent heartbeats.
type HealthScoreStats struct {
	Current *float64
	Average *float64
	Min     *float64
	Max     *float64
	Count   int
}

func parseUUID(id string) (pgtype.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return pgtype.UUID{}, ErrNotFound
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}

func uuidToString(id [16]byte) string {
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		id[0:4], id[4:6], id[6:8], id[8:10], id[10:16])
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time.UTC()
	return &t
}
