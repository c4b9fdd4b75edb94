package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/class-record-api/internal/models"
)

var (
	// ErrCancellationExists is returned when the session already has a cancellation row.
	ErrCancellationExists = errors.New("session cancellation already exists")
	// ErrCancellationMissing is returned when restoring a session without a cancellation row.
	ErrCancellationMissing = errors.New("session cancellation not found")
)

// SessionCancellationRepository persists whole-session cancellations together
// with their CC consequences.
type SessionCancellationRepository struct {
	db *sqlx.DB
}

// NewSessionCancellationRepository constructs the repository.
func NewSessionCancellationRepository(db *sqlx.DB) *SessionCancellationRepository {
	return &SessionCancellationRepository{db: db}
}

// Find loads the cancellation row of a session. An active session yields sql.ErrNoRows.
func (r *SessionCancellationRepository) Find(ctx context.Context, key models.SessionKey) (*models.SessionCancellation, error) {
	const query = `SELECT id, schedule_id, session_type, week, reason, cancelled_by, cancelled_at FROM session_cancellations
WHERE schedule_id = $1 AND session_type = $2 AND week = $3`
	var cancellation models.SessionCancellation
	if err := r.db.GetContext(ctx, &cancellation, query, key.ScheduleID, key.SessionType, key.Week); err != nil {
		return nil, err
	}
	return &cancellation, nil
}

// ListBySchedule returns every cancelled session of a schedule.
func (r *SessionCancellationRepository) ListBySchedule(ctx context.Context, scheduleID string) ([]models.SessionCancellation, error) {
	const query = `SELECT id, schedule_id, session_type, week, reason, cancelled_by, cancelled_at FROM session_cancellations
WHERE schedule_id = $1 ORDER BY session_type, week`
	var cancellations []models.SessionCancellation
	if err := r.db.SelectContext(ctx, &cancellations, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list session cancellations: %w", err)
	}
	return cancellations, nil
}

// Cancel stores the cancellation row and writes CC for every listed student
// in one transaction.
func (r *SessionCancellationRepository) Cancel(ctx context.Context, cancellation *models.SessionCancellation, studentIDs []string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cancel session: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if cancellation.ID == "" {
		cancellation.ID = uuid.NewString()
	}
	if cancellation.CancelledAt.IsZero() {
		cancellation.CancelledAt = now
	}
	const insertQuery = `INSERT INTO session_cancellations (id, schedule_id, session_type, week, reason, cancelled_by, cancelled_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (schedule_id, session_type, week) DO NOTHING RETURNING id`
	var insertedID string
	if err = tx.QueryRowxContext(ctx, insertQuery, cancellation.ID, cancellation.ScheduleID, cancellation.SessionType, cancellation.Week,
		cancellation.Reason, cancellation.CancelledBy, cancellation.CancelledAt).Scan(&insertedID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCancellationExists
		}
		return fmt.Errorf("insert session cancellation: %w", err)
	}

	reason := cancellation.Reason
	for _, studentID := range studentIDs {
		record := models.AttendanceRecord{
			StudentID:   studentID,
			ScheduleID:  cancellation.ScheduleID,
			SessionType: cancellation.SessionType,
			Week:        cancellation.Week,
			Status:      models.AttendanceStatusCancelled,
			Remarks:     &reason,
			RecordedBy:  cancellation.CancelledBy,
		}
		stampAttendance(&record, now)
		if _, err = tx.NamedExecContext(ctx, upsertAttendanceQuery, record); err != nil {
			return fmt.Errorf("write cancelled attendance for %s: %w", studentID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit cancel session: %w", err)
	}
	return nil
}

// Restore deletes the cancellation row and the CC records of the listed
// students at the key in one transaction. It returns the number of CC records
// removed.
func (r *SessionCancellationRepository) Restore(ctx context.Context, key models.SessionKey, studentIDs []string) (restored int64, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin restore session: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const deleteRow = `DELETE FROM session_cancellations WHERE schedule_id = $1 AND session_type = $2 AND week = $3 RETURNING id`
	var deletedID string
	if err = tx.QueryRowxContext(ctx, deleteRow, key.ScheduleID, key.SessionType, key.Week).Scan(&deletedID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrCancellationMissing
		}
		return 0, fmt.Errorf("delete session cancellation: %w", err)
	}

	if len(studentIDs) > 0 {
		const deleteRecords = `DELETE FROM attendance_records
WHERE schedule_id = $1 AND session_type = $2 AND week = $3 AND status = $4 AND student_id = ANY($5)`
		res, execErr := tx.ExecContext(ctx, deleteRecords, key.ScheduleID, key.SessionType, key.Week, models.AttendanceStatusCancelled, pq.Array(studentIDs))
		if execErr != nil {
			return 0, fmt.Errorf("delete cancelled attendance: %w", execErr)
		}
		if restored, err = res.RowsAffected(); err != nil {
			return 0, fmt.Errorf("cancelled attendance rows affected: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit restore session: %w", err)
	}
	return restored, nil
}
