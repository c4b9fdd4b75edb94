package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/class-record-api/internal/grading"
	"github.com/noah-isme/class-record-api/internal/models"
)

// ErrNoCurrentMax is returned by Rescale when no max score is known for the key.
var ErrNoCurrentMax = errors.New("no current max score for item")

const gradeItemColumns = `id, student_id, schedule_id, term, component, item_number, score, max_score, recorded_by, created_at, updated_at`

const upsertGradeItemQuery = `INSERT INTO grade_items (id, student_id, schedule_id, term, component, item_number, score, max_score, recorded_by, created_at, updated_at)
VALUES (:id, :student_id, :schedule_id, :term, :component, :item_number, :score, :max_score, :recorded_by, :created_at, :updated_at)
ON CONFLICT (student_id, schedule_id, term, component, item_number)
DO UPDATE SET score = EXCLUDED.score, max_score = EXCLUDED.max_score, recorded_by = EXCLUDED.recorded_by, updated_at = EXCLUDED.updated_at`

// GradeItemRepository persists raw item scores and per-item max scores.
type GradeItemRepository struct {
	db *sqlx.DB
}

// NewGradeItemRepository creates a new grade item repository.
func NewGradeItemRepository(db *sqlx.DB) *GradeItemRepository {
	return &GradeItemRepository{db: db}
}

// ListBySchedule returns every item of a schedule.
func (r *GradeItemRepository) ListBySchedule(ctx context.Context, scheduleID string) ([]models.GradeItem, error) {
	query := `SELECT ` + gradeItemColumns + ` FROM grade_items WHERE schedule_id = $1 ORDER BY student_id, term, component, item_number`
	var items []models.GradeItem
	if err := r.db.SelectContext(ctx, &items, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list grade items: %w", err)
	}
	return items, nil
}

// ListByStudent returns the items of one student in a schedule.
func (r *GradeItemRepository) ListByStudent(ctx context.Context, scheduleID, studentID string) ([]models.GradeItem, error) {
	query := `SELECT ` + gradeItemColumns + ` FROM grade_items WHERE schedule_id = $1 AND student_id = $2 ORDER BY term, component, item_number`
	var items []models.GradeItem
	if err := r.db.SelectContext(ctx, &items, query, scheduleID, studentID); err != nil {
		return nil, fmt.Errorf("list student grade items: %w", err)
	}
	return items, nil
}

func stampGradeItem(item *models.GradeItem, now time.Time) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
}

// Upsert inserts or updates a single item score.
func (r *GradeItemRepository) Upsert(ctx context.Context, item *models.GradeItem) error {
	stampGradeItem(item, time.Now().UTC())
	if _, err := r.db.NamedExecContext(ctx, upsertGradeItemQuery, item); err != nil {
		return fmt.Errorf("upsert grade item: %w", err)
	}
	return nil
}

// BulkUpsert inserts or updates multiple items in a transaction.
func (r *GradeItemRepository) BulkUpsert(ctx context.Context, items []models.GradeItem) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk grade items: %w", err)
	}
	now := time.Now().UTC()
	for i := range items {
		stampGradeItem(&items[i], now)
		if _, err := tx.NamedExecContext(ctx, upsertGradeItemQuery, items[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("bulk upsert grade item: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grade items: %w", err)
	}
	return nil
}

// Delete removes a student's item at a key and reports whether a row existed.
func (r *GradeItemRepository) Delete(ctx context.Context, studentID string, key models.MaxScoreKey) (bool, error) {
	const query = `DELETE FROM grade_items WHERE student_id = $1 AND schedule_id = $2 AND term = $3 AND component = $4 AND item_number = $5`
	res, err := r.db.ExecContext(ctx, query, studentID, key.ScheduleID, key.Term, key.Component, key.ItemNumber)
	if err != nil {
		return false, fmt.Errorf("delete grade item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("grade item rows affected: %w", err)
	}
	return affected > 0, nil
}

// FindMaxScore loads the stored max of a key. A missing row yields sql.ErrNoRows.
func (r *GradeItemRepository) FindMaxScore(ctx context.Context, key models.MaxScoreKey) (*models.ItemMaxScore, error) {
	const query = `SELECT schedule_id, component, item_number, term, max_score, updated_by, updated_at FROM grade_item_max_scores
WHERE schedule_id = $1 AND component = $2 AND item_number = $3 AND term = $4`
	var stored models.ItemMaxScore
	if err := r.db.GetContext(ctx, &stored, query, key.ScheduleID, key.Component, key.ItemNumber, key.Term); err != nil {
		return nil, err
	}
	return &stored, nil
}

// ListMaxScores returns every stored max of a schedule.
func (r *GradeItemRepository) ListMaxScores(ctx context.Context, scheduleID string) ([]models.ItemMaxScore, error) {
	const query = `SELECT schedule_id, component, item_number, term, max_score, updated_by, updated_at FROM grade_item_max_scores
WHERE schedule_id = $1 ORDER BY term, component, item_number`
	var stored []models.ItemMaxScore
	if err := r.db.SelectContext(ctx, &stored, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list max scores: %w", err)
	}
	return stored, nil
}

type rescaleRow struct {
	ID        string  `db:"id"`
	StudentID string  `db:"student_id"`
	Score     float64 `db:"score"`
}

// Rescale changes the max score of one key and proportionally rescales every
// recorded score at that key in a single transaction. The current max resolves
// from the stored max, then the largest max recorded on items at the key, then
// fallback. With none of those ErrNoCurrentMax is returned and nothing changes.
func (r *GradeItemRepository) Rescale(ctx context.Context, key models.MaxScoreKey, newMax float64, fallback *float64, actor string) (result *models.RescaleResult, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin rescale transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	lockKey := fmt.Sprintf("%s|%s|%d|%s", key.ScheduleID, key.Component, key.ItemNumber, key.Term)
	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
		return nil, fmt.Errorf("lock max score key: %w", err)
	}

	current, err := currentMaxTx(ctx, tx, key, fallback)
	if err != nil {
		return nil, err
	}

	result = &models.RescaleResult{Key: key, PreviousMax: current, NewMax: newMax}
	if grading.NeedsRescale(current, newMax) {
		var rows []rescaleRow
		const selectQuery = `SELECT id, student_id, score FROM grade_items
WHERE schedule_id = $1 AND component = $2 AND item_number = $3 AND term = $4 ORDER BY student_id FOR UPDATE`
		if err = tx.SelectContext(ctx, &rows, selectQuery, key.ScheduleID, key.Component, key.ItemNumber, key.Term); err != nil {
			return nil, fmt.Errorf("lock grade items: %w", err)
		}
		now := time.Now().UTC()
		const updateQuery = `UPDATE grade_items SET score = $1, max_score = $2, updated_at = $3 WHERE id = $4`
		for _, row := range rows {
			next := grading.RescaleScore(row.Score, current, newMax)
			if _, err = tx.ExecContext(ctx, updateQuery, next, newMax, now, row.ID); err != nil {
				return nil, fmt.Errorf("rescale grade item %s: %w", row.ID, err)
			}
			if next != row.Score {
				result.Changes = append(result.Changes, models.ScoreChange{StudentID: row.StudentID, Before: row.Score, After: next})
			}
		}
		result.Rescaled = true
	}

	const upsertMax = `INSERT INTO grade_item_max_scores (schedule_id, component, item_number, term, max_score, updated_by, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (schedule_id, component, item_number, term)
DO UPDATE SET max_score = EXCLUDED.max_score, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	if _, err = tx.ExecContext(ctx, upsertMax, key.ScheduleID, key.Component, key.ItemNumber, key.Term, newMax, actor, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("store max score: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit rescale: %w", err)
	}
	return result, nil
}

func currentMaxTx(ctx context.Context, tx *sqlx.Tx, key models.MaxScoreKey, fallback *float64) (float64, error) {
	var stored float64
	const storedQuery = `SELECT max_score FROM grade_item_max_scores WHERE schedule_id = $1 AND component = $2 AND item_number = $3 AND term = $4`
	err := tx.GetContext(ctx, &stored, storedQuery, key.ScheduleID, key.Component, key.ItemNumber, key.Term)
	switch {
	case err == nil:
		return stored, nil
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("read stored max score: %w", err)
	}

	var recorded sql.NullFloat64
	const recordedQuery = `SELECT MAX(max_score) FROM grade_items WHERE schedule_id = $1 AND component = $2 AND item_number = $3 AND term = $4`
	if err := tx.GetContext(ctx, &recorded, recordedQuery, key.ScheduleID, key.Component, key.ItemNumber, key.Term); err != nil {
		return 0, fmt.Errorf("read recorded max score: %w", err)
	}
	if recorded.Valid {
		return recorded.Float64, nil
	}
	if fallback != nil {
		return *fallback, nil
	}
	return 0, ErrNoCurrentMax
}
