package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/class-record-api/internal/models"
)

// EnrollmentRepository reads schedule rosters.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ListBySchedule returns every active enrollment of a schedule ordered by name.
func (r *EnrollmentRepository) ListBySchedule(ctx context.Context, scheduleID string) ([]models.Enrollment, error) {
	const query = `SELECT id, schedule_id, student_id, student_name, status FROM schedule_enrollments WHERE schedule_id = $1 AND status = $2 ORDER BY student_name ASC`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, scheduleID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list enrollments by schedule: %w", err)
	}
	return enrollments, nil
}

// Find loads a single enrollment. A missing enrollment yields sql.ErrNoRows.
func (r *EnrollmentRepository) Find(ctx context.Context, scheduleID, studentID string) (*models.Enrollment, error) {
	const query = `SELECT id, schedule_id, student_id, student_name, status FROM schedule_enrollments WHERE schedule_id = $1 AND student_id = $2`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, scheduleID, studentID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}
