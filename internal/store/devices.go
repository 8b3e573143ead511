package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

var ErrSerialExists = errors.New("device with this serial number already exists")

const deviceColumns = `id, name, location, serial_number, COALESCE(description, ''), user_id, last_seen, created_at, updated_at`

func (s *Store) CreateDevice(ctx context.Context, d Device) (Device, error) {
	userID, err := parseUUID(d.UserID)
	if err != nil {
		return Device{}, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO devices (name, location, serial_number, description, user_id)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		RETURNING `+deviceColumns,
		d.Name, d.Location, d.SerialNumber, d.Description, userID)

	created, err := scanDevice(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Device{}, ErrSerialExists
		}
		return Device{}, fmt.Errorf("create device: %w", err)
	}
	return created, nil
}

func (s *Store) GetDeviceByID(ctx context.Context, deviceID string) (Device, error) {
	pgID, err := parseUUID(deviceID)
	if err != nil {
		return Device{}, ErrNotFound
	}

	row := s.pool.QueryRow(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = $1`, pgID)
	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, ErrNotFound
		}
		return Device{}, fmt.Errorf("get device: %w", err)
	}
	return device, nil
}

// GetDeviceForUser loads a device only if it belongs to the user.
func (s *Store) GetDeviceForUser(ctx context.Context, deviceID, userID string) (Device, error) {
	pgID, err := parseUUID(deviceID)
	if err != nil {
		return Device{}, ErrNotFound
	}
	pgUserID, err := parseUUID(userID)
	if err != nil {
		return Device{}, ErrNotFound
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE id = $1 AND user_id = $2`, pgID, pgUserID)
	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, ErrNotFound
		}
		return Device{}, fmt.Errorf("get device for user: %w", err)
	}
	return device, nil
}

// ListDevicesForUser pages through a user's devices, optionally filtered by a
// case-insensitive search over name and location.
func (s *Store) ListDevicesForUser(ctx context.Context, userID, search string, limit, offset int) ([]Device, int64, error) {
	pgUserID, err := parseUUID(userID)
	if err != nil {
		return nil, 0, ErrNotFound
	}

	pattern := "%" + search + "%"

	var total int64
	err = s.pool.QueryRow(ctx, `
		SELECT count(*) FROM devices
		WHERE user_id = $1 AND ($2 = '' OR name ILIKE $3 OR location ILIKE $3)`,
		pgUserID, search, pattern).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count devices: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+deviceColumns+` FROM devices
		WHERE user_id = $1 AND ($2 = '' OR name ILIKE $3 OR location ILIKE $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`,
		pgUserID, search, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan device: %w", err)
		}
		devices = append(devices, device)
	}
	return devices, total, rows.Err()
}

func (s *Store) UpdateDevice(ctx context.Context, d Device) (Device, error) {
	pgID, err := parseUUID(d.ID)
	if err != nil {
		return Device{}, ErrNotFound
	}
	pgUserID, err := parseUUID(d.UserID)
	if err != nil {
		return Device{}, ErrNotFound
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE devices
		SET name = $3, location = $4, description = NULLIF($5, ''), updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING `+deviceColumns,
		pgID, pgUserID, d.Name, d.Location, d.Description)

	updated, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, ErrNotFound
		}
		return Device{}, fmt.Errorf("update device: %w", err)
	}
	return updated, nil
}

func (s *Store) DeleteDevice(ctx context.Context, deviceID, userID string) error {
	pgID, err := parseUUID(deviceID)
	if err != nil {
		return ErrNotFound
	}
	pgUserID, err := parseUUID(userID)
	if err != nil {
		return ErrNotFound
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM devices WHERE id = $1 AND user_id = $2`, pgID, pgUserID)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// BulkDeleteDevices deletes the user's devices among the given ids and
// reports how many were removed. Unknown ids and other users' devices are
// silently skipped.
func (s *Store) BulkDeleteDevices(ctx context.Context, deviceIDs []string, userID string) (int64, error) {
	pgUserID, err := parseUUID(userID)
	if err != nil {
		return 0, ErrNotFound
	}

	ids := make([]pgtype.UUID, 0, len(deviceIDs))
	for _, id := range deviceIDs {
		pgID, err := parseUUID(id)
		if err != nil {
			continue
		}
		ids = append(ids, pgID)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM devices WHERE id = ANY($1) AND user_id = $2`, ids, pgUserID)
	if err != nil {
		return 0, fmt.Errorf("bulk delete devices: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) UpdateDeviceLastSeen(ctx context.Context, deviceID string, seenAt time.Time) error {
	pgID, err := parseUUID(deviceID)
	if err != nil {
		return ErrNotFound
	}

	_, err = s.pool.Exec(ctx, `UPDATE devices SET last_seen = $2 WHERE id = $1`,
		pgID, pgtype.Timestamptz{Time: seenAt.UTC(), Valid: true})
	if err != nil {
		return fmt.Errorf("update last seen: %w", err)
	}
	return nil
}

func scanDevice(row pgx.Row) (Device, error) {
	var (
		id, userID           pgtype.UUID
		lastSeen             pgtype.Timestamptz
		createdAt, updatedAt pgtype.Timestamptz
		d                    Device
	)
	if err := row.Scan(&id, &d.Name, &d.Location, &d.SerialNumber, &d.Description,
		&userID, &lastSeen, &createdAt, &updatedAt); err != nil {
		return Device{}, err
	}
	d.ID = uuidToString(id.Bytes)
	d.UserID = uuidToString(userID.Bytes)
	d.LastSeen = timePtr(lastSeen)
	d.CreatedAt = createdAt.Time.UTC()
	d.UpdatedAt = updatedAt.Time.UTC()
	return d, nil
}
