package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	id "evscan/pkg/domain"
	"evscan/pkg/platform/sentinel"
)

// PostgresStore persists device links with a unique (user, device) constraint.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, link Link) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO device_links (user_id, device_id, device_name, linked_at)
		VALUES ($1, $2, $3, $4)
	`, link.UserID.String(), link.DeviceID, link.DeviceName, link.LinkedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert device link: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, userID id.UserID, deviceID string) (*Link, error) {
	var (
		link  Link
		rawID string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, device_id, device_name, linked_at
		FROM device_links
		WHERE user_id = $1 AND device_id = $2
	`, userID.String(), deviceID).Scan(&rawID, &link.DeviceID, &link.DeviceName, &link.LinkedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find device link: %w", err)
	}
	uid, err := id.ParseUserID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	link.UserID = uid
	return &link, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]Link, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, device_id, device_name, linked_at
		FROM device_links
		WHERE user_id = $1
		ORDER BY device_id
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list device links: %w", err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var (
			link  Link
			rawID string
		)
		if err := rows.Scan(&rawID, &link.DeviceID, &link.DeviceName, &link.LinkedAt); err != nil {
			return nil, fmt.Errorf("scan device link row: %w", err)
		}
		uid, err := id.ParseUserID(rawID)
		if err != nil {
			return nil, fmt.Errorf("parse user id: %w", err)
		}
		link.UserID = uid
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate device links: %w", err)
	}
	return links, nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID id.UserID, deviceID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM device_links
		WHERE user_id = $1 AND device_id = $2
	`, userID.String(), deviceID)
	if err != nil {
		return fmt.Errorf("delete device link: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete device link result: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
