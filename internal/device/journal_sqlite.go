package device

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// SQLiteJournal implements Journal on the device_snapshots table.
type SQLiteJournal struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteJournal creates a journal on an open, migrated SQLite connection.
func NewSQLiteJournal(db *sql.DB) *SQLiteJournal {
	return &SQLiteJournal{db: db, now: time.Now}
}

// Record inserts a snapshot row.
func (j *SQLiteJournal) Record(ctx context.Context, snap Snapshot, source Source, passID string) error {
	if err := ValidateID(snap.ID); err != nil {
		return err
	}
	if source == "" {
		source = SourceSimulation
	}

	var brightness sql.NullInt64
	if snap.Brightness != nil {
		brightness = sql.NullInt64{Int64: int64(*snap.Brightness), Valid: true}
	}
	var temperature sql.NullFloat64
	if snap.Temperature != nil {
		temperature = sql.NullFloat64{Float64: *snap.Temperature, Valid: true}
	}
	var securityStatus sql.NullString
	if snap.SecurityStatus != nil {
		securityStatus = sql.NullString{String: string(*snap.SecurityStatus), Valid: true}
	}

	recordedAt := snap.Timestamp
	if recordedAt.IsZero() {
		recordedAt = j.now()
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO device_snapshots
		   (device_id, kind, status, brightness, temperature, security_status, source, pass_id, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, string(snap.Kind), string(snap.Status),
		brightness, temperature, securityStatus,
		string(source), passID, recordedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting device snapshot: %w", err)
	}
	return nil
}

// History returns recent snapshots for a device, newest first.
// Limit defaults to 50 and is capped at 500.
func (j *SQLiteJournal) History(ctx context.Context, deviceID string, limit int) ([]JournalEntry, error) {
	if err := ValidateID(deviceID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, device_id, kind, status, brightness, temperature, security_status,
		        source, pass_id, recorded_at
		 FROM device_snapshots
		 WHERE device_id = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		deviceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying device snapshots: %w", err)
	}
	defer rows.Close()

	entries := make([]JournalEntry, 0, limit)
	for rows.Next() {
		var (
			e              JournalEntry
			kind, status   string
			source         string
			brightness     sql.NullInt64
			temperature    sql.NullFloat64
			securityStatus sql.NullString
			recordedAt     int64
		)
		if err := rows.Scan(&e.ID, &e.Snapshot.ID, &kind, &status, &brightness, &temperature,
			&securityStatus, &source, &e.PassID, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning device snapshot: %w", err)
		}

		e.Snapshot.Kind = Kind(kind)
		e.Snapshot.Status = Status(status)
		e.Snapshot.Timestamp = time.UnixMilli(recordedAt).UTC()
		e.Source = Source(source)
		if brightness.Valid {
			v := int(brightness.Int64)
			e.Snapshot.Brightness = &v
		}
		if temperature.Valid {
			v := temperature.Float64
			e.Snapshot.Temperature = &v
		}
		if securityStatus.Valid {
			v := SecurityStatus(securityStatus.String)
			e.Snapshot.SecurityStatus = &v
		}

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device snapshots: %w", err)
	}

	return entries, nil
}

// Prune deletes snapshots older than the retention window.
func (j *SQLiteJournal) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("%w: retention must be positive", ErrInvalidArgument)
	}

	cutoff := j.now().Add(-olderThan).UTC().UnixMilli()
	result, err := j.db.ExecContext(ctx, "DELETE FROM device_snapshots WHERE recorded_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting device snapshots: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}
