package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "evscan/pkg/domain"
)

// PostgresStore appends audit events to the audit_events table. Rows are never
// updated or deleted.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	var userID sql.NullString
	if !event.UserID.IsNil() {
		userID = sql.NullString{String: event.UserID.String(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, event_time, action, principal, user_id, device_id, scan_id, outcome, reason, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, uuid.NewString(), event.Timestamp, string(event.Action), event.Principal,
		userID, event.DeviceID, event.ScanID, event.Outcome, event.Reason, event.RequestID)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByDevice(ctx context.Context, deviceID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_time, action, principal, user_id, device_id, scan_id, outcome, reason, request_id
		FROM audit_events
		WHERE device_id = $1
		ORDER BY event_time
	`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event  Event
			action string
			userID sql.NullString
		)
		if err := rows.Scan(&event.Timestamp, &action, &event.Principal, &userID,
			&event.DeviceID, &event.ScanID, &event.Outcome, &event.Reason, &event.RequestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Action = Action(action)
		if userID.Valid {
			uid, err := id.ParseUserID(userID.String)
			if err != nil {
				return nil, fmt.Errorf("parse user id: %w", err)
			}
			event.UserID = uid
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
