package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/class-record-api/internal/models"
)

const attendanceColumns = `id, student_id, schedule_id, session_type, week, status, remarks, recorded_by, date, created_at, updated_at`

const upsertAttendanceQuery = `INSERT INTO attendance_records (id, student_id, schedule_id, session_type, week, status, remarks, recorded_by, date, created_at, updated_at)
VALUES (:id, :student_id, :schedule_id, :session_type, :week, :status, :remarks, :recorded_by, :date, :created_at, :updated_at)
ON CONFLICT (student_id, schedule_id, session_type, week)
DO UPDATE SET status = EXCLUDED.status, remarks = EXCLUDED.remarks, recorded_by = EXCLUDED.recorded_by, date = EXCLUDED.date, updated_at = EXCLUDED.updated_at`

// AttendanceRepository persists per-session attendance records. One logical
// record exists per (student, schedule, session type, week).
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository creates a new attendance repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

func stampAttendance(record *models.AttendanceRecord, now time.Time) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.Date.IsZero() {
		record.Date = now
	}
	record.UpdatedAt = now
}

// Upsert inserts or overwrites the record at its key.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	stampAttendance(record, time.Now().UTC())
	if _, err := r.db.NamedExecContext(ctx, upsertAttendanceQuery, record); err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

// BulkUpsert writes all records in one transaction.
func (r *AttendanceRepository) BulkUpsert(ctx context.Context, records []models.AttendanceRecord) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk attendance: %w", err)
	}
	now := time.Now().UTC()
	for i := range records {
		stampAttendance(&records[i], now)
		if _, err := tx.NamedExecContext(ctx, upsertAttendanceQuery, records[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("bulk upsert attendance: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk attendance: %w", err)
	}
	return nil
}

// ListByKey returns the records of one session.
func (r *AttendanceRepository) ListByKey(ctx context.Context, key models.SessionKey) ([]models.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records WHERE schedule_id = $1 AND session_type = $2 AND week = $3`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, key.ScheduleID, key.SessionType, key.Week); err != nil {
		return nil, fmt.Errorf("list session attendance: %w", err)
	}
	return records, nil
}

// ListByStudent returns a student's records for a schedule.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, scheduleID, studentID string) ([]models.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records WHERE schedule_id = $1 AND student_id = $2 ORDER BY session_type, week`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, scheduleID, studentID); err != nil {
		return nil, fmt.Errorf("list student attendance: %w", err)
	}
	return records, nil
}

type overrideRow struct {
	StudentID string                  `db:"student_id"`
	Status    models.AttendanceStatus `db:"status"`
	UpdatedAt time.Time               `db:"updated_at"`
}

// ListOverrides returns the terminal status of every overridden student of a
// schedule. When D and FA coexist the most recently written wins.
func (r *AttendanceRepository) ListOverrides(ctx context.Context, scheduleID string) (map[string]models.AttendanceStatus, error) {
	const query = `SELECT student_id, status, MAX(updated_at) AS updated_at FROM attendance_records
WHERE schedule_id = $1 AND status IN ($2, $3) GROUP BY student_id, status`
	var rows []overrideRow
	if err := r.db.SelectContext(ctx, &rows, query, scheduleID, models.AttendanceStatusDropped, models.AttendanceStatusFailedAbs); err != nil {
		return nil, fmt.Errorf("list attendance overrides: %w", err)
	}
	latest := make(map[string]overrideRow, len(rows))
	for _, row := range rows {
		if current, ok := latest[row.StudentID]; !ok || row.UpdatedAt.After(current.UpdatedAt) {
			latest[row.StudentID] = row
		}
	}
	overrides := make(map[string]models.AttendanceStatus, len(latest))
	for studentID, row := range latest {
		overrides[studentID] = row.Status
	}
	return overrides, nil
}

// DeleteByStatus removes every record of the student carrying exactly status
// and reports how many rows were removed.
func (r *AttendanceRepository) DeleteByStatus(ctx context.Context, scheduleID, studentID string, status models.AttendanceStatus) (int64, error) {
	const query = `DELETE FROM attendance_records WHERE schedule_id = $1 AND student_id = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, scheduleID, studentID, status)
	if err != nil {
		return 0, fmt.Errorf("delete attendance by status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("attendance rows affected: %w", err)
	}
	return affected, nil
}

// DeleteAtKey removes the student's record at a key when it carries status.
func (r *AttendanceRepository) DeleteAtKey(ctx context.Context, key models.SessionKey, studentID string, status models.AttendanceStatus) (bool, error) {
	const query = `DELETE FROM attendance_records WHERE schedule_id = $1 AND session_type = $2 AND week = $3 AND student_id = $4 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, key.ScheduleID, key.SessionType, key.Week, studentID, status)
	if err != nil {
		return false, fmt.Errorf("delete attendance at key: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("attendance rows affected: %w", err)
	}
	return affected > 0, nil
}
