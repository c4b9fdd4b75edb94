package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/class-record-api/internal/models"
)

// ScheduleRepository provides read access to schedules.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// FindByID loads a schedule by id. A missing schedule yields sql.ErrNoRows.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	const query = `SELECT id, course_code, title, section, class_type, instructor_id, created_at, updated_at FROM schedules WHERE id = $1`
	var sched models.Schedule
	if err := r.db.GetContext(ctx, &sched, query, id); err != nil {
		return nil, err
	}
	return &sched, nil
}
