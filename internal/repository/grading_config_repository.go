package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/class-record-api/internal/models"
)

// GradingConfigRepository persists edited grading configs, one row per
// component ordered by position.
type GradingConfigRepository struct {
	db *sqlx.DB
}

// NewGradingConfigRepository constructs the repository.
func NewGradingConfigRepository(db *sqlx.DB) *GradingConfigRepository {
	return &GradingConfigRepository{db: db}
}

type gradingConfigRow struct {
	models.GradingComponent
	UpdatedBy string    `db:"updated_by"`
	UpdatedAt time.Time `db:"updated_at"`
}

// StoredGradingConfig is the raw stored component list of a class type.
type StoredGradingConfig struct {
	Components []models.GradingComponent
	UpdatedBy  string
	UpdatedAt  time.Time
}

// FindByClassType returns the stored components of a class type. A class type
// without rows yields an empty result and no error.
func (r *GradingConfigRepository) FindByClassType(ctx context.Context, classType string) (*StoredGradingConfig, error) {
	const query = `SELECT class_type, position, name, weight, items, max_score, updated_by, updated_at FROM grading_configs WHERE class_type = $1 ORDER BY position ASC`
	var rows []gradingConfigRow
	if err := r.db.SelectContext(ctx, &rows, query, classType); err != nil {
		return nil, fmt.Errorf("find grading config: %w", err)
	}
	stored := &StoredGradingConfig{Components: make([]models.GradingComponent, 0, len(rows))}
	for _, row := range rows {
		stored.Components = append(stored.Components, row.GradingComponent)
		if row.UpdatedAt.After(stored.UpdatedAt) {
			stored.UpdatedAt = row.UpdatedAt
			stored.UpdatedBy = row.UpdatedBy
		}
	}
	return stored, nil
}

// Replace swaps the stored components of a class type in one transaction.
func (r *GradingConfigRepository) Replace(ctx context.Context, classType string, components []models.GradingComponent, actor string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin grading config transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM grading_configs WHERE class_type = $1`, classType); err != nil {
		return fmt.Errorf("clear grading config: %w", err)
	}

	now := time.Now().UTC()
	const insertQuery = `INSERT INTO grading_configs (class_type, position, name, weight, items, max_score, updated_by, updated_at)
VALUES (:class_type, :position, :name, :weight, :items, :max_score, :updated_by, :updated_at)`
	for i, comp := range components {
		comp.ClassType = classType
		comp.Position = i
		row := gradingConfigRow{GradingComponent: comp, UpdatedBy: actor, UpdatedAt: now}
		if _, err = tx.NamedExecContext(ctx, insertQuery, row); err != nil {
			return fmt.Errorf("insert grading component %s: %w", comp.Name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit grading config: %w", err)
	}
	return nil
}

// Delete removes every stored component of a class type and reports how many
// rows were removed.
func (r *GradingConfigRepository) Delete(ctx context.Context, classType string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM grading_configs WHERE class_type = $1`, classType)
	if err != nil {
		return 0, fmt.Errorf("delete grading config: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("grading config rows affected: %w", err)
	}
	return affected, nil
}
