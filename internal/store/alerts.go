package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/devicewatch/devicewatch/internal/alerts"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const alertColumns = `a.id, a.name, COALESCE(a.description, ''), a.device_id, a.conditions,
	a.duration_minutes, a.is_active, a.last_triggered, a.trigger_count, a.created_at, a.updated_at`

func (s *Store) CreateAlert(ctx context.Context, a alerts.Alert) (alerts.Alert, error) {
	deviceID, err := parseUUID(a.DeviceID)
	if err != nil {
		return alerts.Alert{}, alerts.ErrDeviceNotFound
	}

	conditions, err := json.Marshal(a.Conditions)
	if err != nil {
		return alerts.Alert{}, fmt.Errorf("marshal conditions: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO alerts AS a (name, description, device_id, conditions, duration_minutes, is_active)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)
		RETURNING `+alertColumns,
		a.Name, a.Description, deviceID, conditions, a.DurationMinutes, a.IsActive)

	created, err := scanAlert(row)
	if err != nil {
		return alerts.Alert{}, fmt.Errorf("create alert: %w", err)
	}
	return created, nil
}

// GetAlertForUser loads an alert only if it sits on one of the user's devices.
func (s *Store) GetAlertForUser(ctx context.Context, alertID, userID string) (alerts.Alert, error) {
	pgID, err := parseUUID(alertID)
	if err != nil {
		return alerts.Alert{}, alerts.ErrAlertNotFound
	}
	pgUserID, err := parseUUID(userID)
	if err != nil {
		return alerts.Alert{}, alerts.ErrAlertNotFound
	}

	row := s.pool.QueryRow(ctx, `
		SELECT `+alertColumns+` FROM alerts a
		JOIN devices d ON d.id = a.device_id
		WHERE a.id = $1 AND d.user_id = $2`, pgID, pgUserID)

	alert, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return alerts.Alert{}, alerts.ErrAlertNotFound
		}
		return alerts.Alert{}, fmt.Errorf("get alert: %w", err)
	}
	return alert, nil
}

// ListAlertsForUser pages through the alerts on a user's devices, optionally
// filtered by device and active flag.
func (s *Store) ListAlertsForUser(ctx context.Context, userID, deviceID string, isActive *bool, limit, offset int) ([]alerts.Alert, int64, error) {
	pgUserID, err := parseUUID(userID)
	if err != nil {
		return nil, 0, ErrNotFound
	}

	deviceFilter := pgtype.UUID{}
	if deviceID != "" {
		deviceFilter, err = parseUUID(deviceID)
		if err != nil {
			return nil, 0, alerts.ErrDeviceNotFound
		}
	}

	var total int64
	err = s.pool.QueryRow(ctx, `
		SELECT count(*) FROM alerts a
		JOIN devices d ON d.id = a.device_id
		WHERE d.user_id = $1
		  AND ($2::uuid IS NULL OR a.device_id = $2)
		  AND ($3::boolean IS NULL OR a.is_active = $3)`,
		pgUserID, deviceFilter, isActive).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+alertColumns+` FROM alerts a
		JOIN devices d ON d.id = a.device_id
		WHERE d.user_id = $1
		  AND ($2::uuid IS NULL OR a.device_id = $2)
		  AND ($3::boolean IS NULL OR a.is_active = $3)
		ORDER BY a.created_at DESC
		LIMIT $4 OFFSET $5`,
		pgUserID, deviceFilter, isActive, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var result []alerts.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan alert: %w", err)
		}
		result = append(result, alert)
	}
	return result, total, rows.Err()
}

func (s *Store) UpdateAlert(ctx context.Context, a alerts.Alert, userID string) (alerts.Alert, error) {
	pgID, err := parseUUID(a.ID)
	if err != nil {
		return alerts.Alert{}, alerts.ErrAlertNotFound
	}
	pgUserID, err := parseUUID(userID)
	if err != nil {
		return alerts.Alert{}, alerts.ErrAlertNotFound
	}

	conditions, err := json.Marshal(a.Conditions)
	if err != nil {
		return alerts.Alert{}, fmt.Errorf("marshal conditions: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE alerts a
		SET name = $3, description = NULLIF($4, ''), conditions = $5,
			duration_minutes = $6, is_active = $7, updated_at = now()
		FROM devices d
		WHERE a.id = $1 AND d.id = a.device_id AND d.user_id = $2
		RETURNING `+alertColumns,
		pgID, pgUserID, a.Name, a.Description, conditions, a.DurationMinutes, a.IsActive)

	updated, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return alerts.Alert{}, alerts.ErrAlertNotFound
		}
		return alerts.Alert{}, fmt.Errorf("update alert: %w", err)
	}
	return updated, nil
}

func (s *Store) DeleteAlert(ctx context.Context, alertID, userID string) error {
	pgID, err := parseUUID(alertID)
	if err != nil {
		return alerts.ErrAlertNotFound
	}
	pgUserID, err := parseUUID(userID)
	if err != nil {
		return alerts.ErrAlertNotFound
	}

	tag, err := s.pool.Exec(ctx, `
		DELETE FROM alerts a
		USING devices d
		WHERE a.id = $1 AND d.id = a.device_id AND d.user_id = $2`, pgID, pgUserID)
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return alerts.ErrAlertNotFound
	}
	return nil
}

func (s *Store) ToggleAlert(ctx context.Context, alertID, userID string) (alerts.Alert, error) {
	pgID, err := parseUUID(alertID)
	if err != nil {
		return alerts.Alert{}, alerts.ErrAlertNotFound
	}
	pgUserID, err := parseUUID(userID)
	if err != nil {
		return alerts.Alert{}, alerts.ErrAlertNotFound
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE alerts a
		SET is_active = NOT a.is_active, updated_at = now()
		FROM devices d
		WHERE a.id = $1 AND d.id = a.device_id AND d.user_id = $2
		RETURNING `+alertColumns, pgID, pgUserID)

	toggled, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return alerts.Alert{}, alerts.ErrAlertNotFound
		}
		return alerts.Alert{}, fmt.Errorf("toggle alert: %w", err)
	}
	return toggled, nil
}

// DeviceRef implements the alert engine's store interface.
func (s *Store) DeviceRef(ctx context.Context, deviceID string) (alerts.DeviceRef, error) {
	pgID, err := parseUUID(deviceID)
	if err != nil {
		return alerts.DeviceRef{}, alerts.ErrDeviceNotFound
	}

	var (
		id, userID pgtype.UUID
		name       string
	)
	err = s.pool.QueryRow(ctx,
		`SELECT id, name, user_id FROM devices WHERE id = $1`, pgID).Scan(&id, &name, &userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return alerts.DeviceRef{}, alerts.ErrDeviceNotFound
		}
		return alerts.DeviceRef{}, fmt.Errorf("device ref: %w", err)
	}
	return alerts.DeviceRef{
		ID:     uuidToString(id.Bytes),
		Name:   name,
		UserID: uuidToString(userID.Bytes),
	}, nil
}

func (s *Store) ActiveAlertsForDevice(ctx context.Context, deviceID string) ([]alerts.Alert, error) {
	pgID, err := parseUUID(deviceID)
	if err != nil {
		return nil, alerts.ErrDeviceNotFound
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+alertColumns+` FROM alerts a
		WHERE a.device_id = $1 AND a.is_active
		ORDER BY a.created_at`, pgID)
	if err != nil {
		return nil, fmt.Errorf("active alerts: %w", err)
	}
	defer rows.Close()

	var result []alerts.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		result = append(result, alert)
	}
	return result, rows.Err()
}

// SaveTriggerState persists only the mutable trigger bookkeeping.
func (s *Store) SaveTriggerState(ctx context.Context, a *alerts.Alert) error {
	pgID, err := parseUUID(a.ID)
	if err != nil {
		return alerts.ErrAlertNotFound
	}

	lastTriggered := pgtype.Timestamptz{}
	if a.LastTriggered != nil {
		lastTriggered = pgtype.Timestamptz{Time: a.LastTriggered.UTC(), Valid: true}
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE alerts SET last_triggered = $2, trigger_count = $3, updated_at = now()
		WHERE id = $1`, pgID, lastTriggered, a.TriggerCount)
	if err != nil {
		return fmt.Errorf("save trigger state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return alerts.ErrAlertNotFound
	}
	return nil
}

// CountAlertsForUser implements the statistics store interface.
func (s *Store) CountAlertsForUser(ctx context.Context, userID string) (int, int, int, error) {
	pgUserID, err := parseUUID(userID)
	if err != nil {
		return 0, 0, 0, ErrNotFound
	}

	var total, active, triggered int
	err = s.pool.QueryRow(ctx, `
		SELECT count(*),
			count(*) FILTER (WHERE a.is_active),
			count(*) FILTER (WHERE a.last_triggered IS NOT NULL)
		FROM alerts a
		JOIN devices d ON d.id = a.device_id
		WHERE d.user_id = $1`, pgUserID).Scan(&total, &active, &triggered)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("count alerts for user: %w", err)
	}
	return total, active, triggered, nil
}

func (s *Store) AlertCountsByDeviceName(ctx context.Context, userID string) (map[string]int, error) {
	pgUserID, err := parseUUID(userID)
	if err != nil {
		return nil, ErrNotFound
	}

	rows, err := s.pool.Query(ctx, `
		SELECT d.name, count(a.id)
		FROM devices d
		JOIN alerts a ON a.device_id = d.id
		WHERE d.user_id = $1
		GROUP BY d.name`, pgUserID)
	if err != nil {
		return nil, fmt.Errorf("alert counts by device: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("scan alert count: %w", err)
		}
		counts[name] = count
	}
	return counts, rows.Err()
}

func (s *Store) MostTriggeredAlerts(ctx context.Context, userID string, limit int) ([]alerts.TriggeredSummary, error) {
	pgUserID, err := parseUUID(userID)
	if err != nil {
		return nil, ErrNotFound
	}

	rows, err := s.pool.Query(ctx, `
		SELECT a.id, a.name, d.name, a.trigger_count, a.last_triggered
		FROM alerts a
		JOIN devices d ON d.id = a.device_id
		WHERE d.user_id = $1 AND a.trigger_count > 0
		ORDER BY a.trigger_count DESC
		LIMIT $2`, pgUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("most triggered alerts: %w", err)
	}
	defer rows.Close()

	var result []alerts.TriggeredSummary
	for rows.Next() {
		var (
			id            pgtype.UUID
			lastTriggered pgtype.Timestamptz
			row           alerts.TriggeredSummary
		)
		if err := rows.Scan(&id, &row.Name, &row.DeviceName, &row.TriggerCount, &lastTriggered); err != nil {
			return nil, fmt.Errorf("scan triggered summary: %w", err)
		}
		row.ID = uuidToString(id.Bytes)
		row.LastTriggered = timePtr(lastTriggered)
		result = append(result, row)
	}
	return result, rows.Err()
}

// DeviceWithAlerts loads a device (ownership-checked) together with all of
// its alerts, for the per-device summary.
func (s *Store) DeviceWithAlerts(ctx context.Context, deviceID, userID string) (alerts.DeviceRef, []alerts.Alert, error) {
	device, err := s.GetDeviceForUser(ctx, deviceID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return alerts.DeviceRef{}, nil, alerts.ErrDeviceNotFound
		}
		return alerts.DeviceRef{}, nil, err
	}

	pgID, _ := parseUUID(deviceID)
	rows, err := s.pool.Query(ctx, `
		SELECT `+alertColumns+` FROM alerts a WHERE a.device_id = $1 ORDER BY a.created_at`, pgID)
	if err != nil {
		return alerts.DeviceRef{}, nil, fmt.Errorf("device alerts: %w", err)
	}
	defer rows.Close()

	var deviceAlerts []alerts.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return alerts.DeviceRef{}, nil, fmt.Errorf("scan alert: %w", err)
		}
		deviceAlerts = append(deviceAlerts, alert)
	}

	ref := alerts.DeviceRef{ID: device.ID, Name: device.Name, UserID: device.UserID}
	return ref, deviceAlerts, rows.Err()
}

func scanAlert(row pgx.Row) (alerts.Alert, error) {
	var (
		id, deviceID         pgtype.UUID
		conditions           []byte
		lastTriggered        pgtype.Timestamptz
		createdAt, updatedAt pgtype.Timestamptz
		a                    alerts.Alert
	)
	if err := row.Scan(&id, &a.Name, &a.Description, &deviceID, &conditions,
		&a.DurationMinutes, &a.IsActive, &lastTriggered, &a.TriggerCount, &createdAt, &updatedAt); err != nil {
		return alerts.Alert{}, err
	}
	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &a.Conditions); err != nil {
			return alerts.Alert{}, fmt.Errorf("unmarshal conditions: %w", err)
		}
	}
	a.ID = uuidToString(id.Bytes)
	a.DeviceID = uuidToString(deviceID.Bytes)
	a.LastTriggered = timePtr(lastTriggered)
	a.CreatedAt = createdAt.Time.UTC()
	a.UpdatedAt = updatedAt.Time.UTC()
	return a, nil
}
