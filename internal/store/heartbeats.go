package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const heartbeatColumns = `id, device_id, cpu_usage, ram_usage, temperature, free_disk_space,
	dns_latency, connectivity, boot_timestamp, health_score, timestamp`

func (s *Store) CreateHeartbeat(ctx context.Context, hb Heartbeat) (Heartbeat, error) {
	deviceID, err := parseUUID(hb.DeviceID)
	if err != nil {
		return Heartbeat{}, ErrNotFound
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO heartbeats (device_id, cpu_usage, ram_usage, temperature, free_disk_space,
			dns_latency, connectivity, boot_timestamp, health_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+heartbeatColumns,
		deviceID, hb.CPUUsage, hb.RAMUsage, hb.Temperature, hb.FreeDiskSpace,
		hb.DNSLatency, hb.Connectivity,
		pgtype.Timestamptz{Time: hb.BootTimestamp.UTC(), Valid: true}, hb.HealthScore)

	created, err := scanHeartbeat(row)
	if err != nil {
		return Heartbeat{}, fmt.Errorf("create heartbeat: %w", err)
	}
	return created, nil
}

// ListHeartbeats returns the device's heartbeats inside the trailing window,
// newest first.
func (s *Store) ListHeartbeats(ctx context.Context, deviceID string, window time.Duration, limit int) ([]Heartbeat, error) {
	pgID, err := parseUUID(deviceID)
	if err != nil {
		return nil, ErrNotFound
	}

	since := time.Now().UTC().Add(-window)
	rows, err := s.pool.Query(ctx, `
		SELECT `+heartbeatColumns+` FROM heartbeats
		WHERE device_id = $1 AND timestamp >= $2
		ORDER BY timestamp DESC
		LIMIT $3`,
		pgID, pgtype.Timestamptz{Time: since, Valid: true}, limit)
	if err != nil {
		return nil, fmt.Errorf("list heartbeats: %w", err)
	}
	defer rows.Close()

	var heartbeats []Heartbeat
	for rows.Next() {
		hb, err := scanHeartbeat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan heartbeat: %w", err)
		}
		heartbeats = append(heartbeats, hb)
	}
	return heartbeats, rows.Err()
}

func (s *Store) LatestHeartbeat(ctx context.Context, deviceID string) (Heartbeat, error) {
	pgID, err := parseUUID(deviceID)
	if err != nil {
		return Heartbeat{}, ErrNotFound
	}

	row := s.pool.QueryRow(ctx, `
		SELECT `+heartbeatColumns+` FROM heartbeats
		WHERE device_id = $1
		ORDER BY timestamp DESC
		LIMIT 1`, pgID)

	hb, err := scanHeartbeat(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Heartbeat{}, ErrNotFound
		}
		return Heartbeat{}, fmt.Errorf("latest heartbeat: %w", err)
	}
	return hb, nil
}

// HeartbeatHealthStats aggregates health scores over the trailing window.
// Current is the most recent score, not the window maximum.
func (s *Store) HeartbeatHealthStats(ctx context.Context, deviceID string, window time.Duration) (HealthScoreStats, error) {
	pgID, err := parseUUID(deviceID)
	if err != nil {
		return HealthScoreStats{}, ErrNotFound
	}

	since := pgtype.Timestamptz{Time: time.Now().UTC().Add(-window), Valid: true}

	var stats HealthScoreStats
	err = s.pool.QueryRow(ctx, `
		SELECT
			(SELECT health_score FROM heartbeats
				WHERE device_id = $1 AND timestamp >= $2
				ORDER BY timestamp DESC LIMIT 1),
			round(avg(health_score)::numeric, 2)::float8,
			min(health_score),
			max(health_score),
			count(*)
		FROM heartbeats
		WHERE device_id = $1 AND timestamp >= $2`,
		pgID, since).Scan(&stats.Current, &stats.Average, &stats.Min, &stats.Max, &stats.Count)
	if err != nil {
		return HealthScoreStats{}, fmt.Errorf("heartbeat health stats: %w", err)
	}
	return stats, nil
}

func scanHeartbeat(row pgx.Row) (Heartbeat, error) {
	var (
		id, deviceID    pgtype.UUID
		bootTS, capture pgtype.Timestamptz
		hb              Heartbeat
	)
	if err := row.Scan(&id, &deviceID, &hb.CPUUsage, &hb.RAMUsage, &hb.Temperature,
		&hb.FreeDiskSpace, &hb.DNSLatency, &hb.Connectivity, &bootTS, &hb.HealthScore, &capture); err != nil {
		return Heartbeat{}, err
	}
	hb.ID = uuidToString(id.Bytes)
	hb.DeviceID = uuidToString(deviceID.Bytes)
	hb.BootTimestamp = bootTS.Time.UTC()
	hb.Timestamp = capture.Time.UTC()
	return hb, nil
}
