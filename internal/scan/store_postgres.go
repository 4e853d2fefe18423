package scan

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	id "evscan/pkg/domain"
	"evscan/pkg/platform/sentinel"
)

// PostgresStore persists scan records and their assessments. Each Save runs
// in its own transaction; records are keyed by (device, timestamp) so a
// corrected resubmission replaces the earlier record instead of duplicating it.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, record ScanRecord, assessment HealthAssessment) (id.ScanID, error) {
	categories, err := json.Marshal(record.Categories)
	if err != nil {
		return id.ScanID{}, fmt.Errorf("marshal categories: %w", err)
	}
	subScores, err := json.Marshal(assessment.SubScores)
	if err != nil {
		return id.ScanID{}, fmt.Errorf("marshal sub scores: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return id.ScanID{}, fmt.Errorf("begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var rawID string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO scan_records (id, device_id, scan_timestamp, categories, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (device_id, scan_timestamp)
		DO UPDATE SET categories = EXCLUDED.categories, created_at = EXCLUDED.created_at
		RETURNING id
	`, record.ID.String(), record.DeviceID, record.ScanTimestamp, categories, record.CreatedAt).Scan(&rawID)
	if err != nil {
		return id.ScanID{}, fmt.Errorf("upsert scan record: %w", err)
	}

	// On conflict the row keeps its original id; that is the one callers must
	// see so the returned scan_id stays resolvable.
	storedID, err := id.ParseScanID(rawID)
	if err != nil {
		return id.ScanID{}, fmt.Errorf("parse stored scan id: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO health_assessments (scan_id, device_id, sub_scores, overall, level)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (scan_id)
		DO UPDATE SET sub_scores = EXCLUDED.sub_scores, overall = EXCLUDED.overall, level = EXCLUDED.level
	`, rawID, assessment.DeviceID, subScores, assessment.Overall, string(assessment.Level))
	if err != nil {
		return id.ScanID{}, fmt.Errorf("upsert health assessment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return id.ScanID{}, fmt.Errorf("commit save tx: %w", err)
	}
	return storedID, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, scanID id.ScanID) (*ScanRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, device_id, scan_timestamp, categories, created_at
		FROM scan_records
		WHERE id = $1
	`, scanID.String())
	record, err := scanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find scan record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ListByDevices(ctx context.Context, deviceIDs []string, q Query) ([]ScanRecord, int, error) {
	devices := deviceIDs
	if q.DeviceID != "" {
		devices = []string{q.DeviceID}
	}

	where := `WHERE device_id = ANY($1)`
	args := []any{pq.Array(devices)}
	if q.StartDate != nil {
		args = append(args, *q.StartDate)
		where += fmt.Sprintf(" AND scan_timestamp >= $%d", len(args))
	}
	if q.EndDate != nil {
		args = append(args, *q.EndDate)
		where += fmt.Sprintf(" AND scan_timestamp <= $%d", len(args))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scan_records `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count scan records: %w", err)
	}

	query := `
		SELECT id, device_id, scan_timestamp, categories, created_at
		FROM scan_records ` + where + `
		ORDER BY scan_timestamp DESC`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list scan records: %w", err)
	}
	defer rows.Close()

	var records []ScanRecord
	for rows.Next() {
		record, err := scanRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan record row: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate scan records: %w", err)
	}
	return records, total, nil
}

func (s *PostgresStore) LatestByDevice(ctx context.Context, deviceID string) (*ScanRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, device_id, scan_timestamp, categories, created_at
		FROM scan_records
		WHERE device_id = $1
		ORDER BY scan_timestamp DESC
		LIMIT 1
	`, deviceID)
	record, err := scanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("latest scan record: %w", err)
	}
	return record, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(row rowScanner) (*ScanRecord, error) {
	var (
		record     ScanRecord
		rawID      string
		categories []byte
	)
	if err := row.Scan(&rawID, &record.DeviceID, &record.ScanTimestamp, &categories, &record.CreatedAt); err != nil {
		return nil, err
	}
	scanID, err := id.ParseScanID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse scan id: %w", err)
	}
	record.ID = scanID
	if err := json.Unmarshal(categories, &record.Categories); err != nil {
		return nil, fmt.Errorf("unmarshal categories: %w", err)
	}
	return &record, nil
}
