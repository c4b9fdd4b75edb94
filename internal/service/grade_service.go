package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/class-record-api/internal/grading"
	"github.com/noah-isme/class-record-api/internal/models"
	appErrors "github.com/noah-isme/class-record-api/pkg/errors"
)

type scheduleReader interface {
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
}

type enrollmentReader interface {
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.Enrollment, error)
	Find(ctx context.Context, scheduleID, studentID string) (*models.Enrollment, error)
}

type gradeItemRepository interface {
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.GradeItem, error)
	ListByStudent(ctx context.Context, scheduleID, studentID string) ([]models.GradeItem, error)
	Upsert(ctx context.Context, item *models.GradeItem) error
	BulkUpsert(ctx context.Context, items []models.GradeItem) error
	Delete(ctx context.Context, studentID string, key models.MaxScoreKey) (bool, error)
	FindMaxScore(ctx context.Context, key models.MaxScoreKey) (*models.ItemMaxScore, error)
}

type overrideReader interface {
	ListOverrides(ctx context.Context, scheduleID string) (map[string]models.AttendanceStatus, error)
}

type gradingConfigResolver interface {
	Resolve(ctx context.Context, classType string) (*models.GradingConfig, error)
}

// UpsertScoreRequest enters or clears one item score. A nil score deletes the
// item.
type UpsertScoreRequest struct {
	StudentID  string   `json:"student_id" validate:"required"`
	Term       string   `json:"term" validate:"required,term"`
	Component  string   `json:"component" validate:"required"`
	ItemNumber int      `json:"item_number" validate:"gte=1"`
	Score      *float64 `json:"score" validate:"omitempty,gte=0"`
	MaxScore   *float64 `json:"max_score" validate:"omitempty,gt=0"`
}

// BulkScoreItem is one entry of a bulk score request.
type BulkScoreItem struct {
	StudentID  string   `json:"student_id" validate:"required"`
	Term       string   `json:"term" validate:"required,term"`
	Component  string   `json:"component" validate:"required"`
	ItemNumber int      `json:"item_number" validate:"gte=1"`
	Score      float64  `json:"score" validate:"gte=0"`
	MaxScore   *float64 `json:"max_score" validate:"omitempty,gt=0"`
}

// BulkScoreRequest enters many scores of a schedule at once.
type BulkScoreRequest struct {
	Mode  string          `json:"mode" validate:"required,bulk_mode"`
	Items []BulkScoreItem `json:"items" validate:"required,min=1,dive"`
}

// ScoreWriteFailure reports one rejected entry of a bulk score request.
type ScoreWriteFailure struct {
	StudentID  string      `json:"student_id"`
	Term       models.Term `json:"term"`
	Component  string      `json:"component"`
	ItemNumber int         `json:"item_number"`
	Reason     string      `json:"reason"`
}

// BulkScoreResult summarises bulk score entry.
type BulkScoreResult struct {
	Processed int                 `json:"processed"`
	Success   int                 `json:"success"`
	Failures  []ScoreWriteFailure `json:"failures,omitempty"`
}

// GradeService records item scores and derives term and summary grades.
type GradeService struct {
	schedules   scheduleReader
	enrollments enrollmentReader
	items       gradeItemRepository
	overrides   overrideReader
	configs     gradingConfigResolver
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewGradeService constructs the grade service. cache and metrics may be nil.
func NewGradeService(schedules scheduleReader, enrollments enrollmentReader, items gradeItemRepository, overrides overrideReader, configs gradingConfigResolver, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{
		schedules:   schedules,
		enrollments: enrollments,
		items:       items,
		overrides:   overrides,
		configs:     configs,
		cache:       cache,
		metrics:     metrics,
		validator:   newValidator(validate),
		logger:      logger,
	}
}

// ClassRecord computes the grade sheet of every enrolled student of a schedule.
func (s *GradeService) ClassRecord(ctx context.Context, scheduleID string) (*models.ClassRecord, error) {
	var cached models.ClassRecord
	if s.cache.Get(ctx, ClassRecordCacheKey(scheduleID), &cached) {
		return &cached, nil
	}
	gen := s.cache.ScheduleGeneration(scheduleID)

	schedule, config, err := s.loadSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.enrollments.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, internalError(err, "failed to load roster")
	}
	start := time.Now()
	items, err := s.items.ListBySchedule(ctx, scheduleID)
	s.metrics.ObserveDBQuery("grade_items_by_schedule", time.Since(start))
	if err != nil {
		return nil, internalError(err, "failed to load grade items")
	}
	overrides, err := s.overrides.ListOverrides(ctx, scheduleID)
	if err != nil {
		return nil, internalError(err, "failed to load attendance overrides")
	}

	byStudent := make(map[string][]models.GradeItem)
	for _, item := range items {
		byStudent[item.StudentID] = append(byStudent[item.StudentID], item)
	}

	record := &models.ClassRecord{Schedule: *schedule, Config: *config, Students: make([]models.GradeSummary, 0, len(enrollments))}
	for _, enrollment := range enrollments {
		if !enrollment.Active() {
			continue
		}
		summary := grading.StudentSummary(enrollment.StudentID, scheduleID, byStudent[enrollment.StudentID], *config, overrideOf(overrides, enrollment.StudentID))
		summary.StudentName = enrollment.StudentName
		record.Students = append(record.Students, summary)
	}

	s.cache.SetScheduleView(ctx, scheduleID, gen, ClassRecordCacheKey(scheduleID), record)
	return record, nil
}

// StudentGrades computes one student's grades in a schedule.
func (s *GradeService) StudentGrades(ctx context.Context, scheduleID, studentID string) (*models.GradeSummary, error) {
	var cached models.GradeSummary
	if s.cache.Get(ctx, StudentGradesCacheKey(scheduleID, studentID), &cached) {
		return &cached, nil
	}
	gen := s.cache.ScheduleGeneration(scheduleID)

	_, config, err := s.loadSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	enrollment, err := s.loadEnrollment(ctx, scheduleID, studentID)
	if err != nil {
		return nil, err
	}
	items, err := s.items.ListByStudent(ctx, scheduleID, studentID)
	if err != nil {
		return nil, internalError(err, "failed to load grade items")
	}
	overrides, err := s.overrides.ListOverrides(ctx, scheduleID)
	if err != nil {
		return nil, internalError(err, "failed to load attendance overrides")
	}

	summary := grading.StudentSummary(studentID, scheduleID, items, *config, overrideOf(overrides, studentID))
	summary.StudentName = enrollment.StudentName
	s.cache.SetScheduleView(ctx, scheduleID, gen, StudentGradesCacheKey(scheduleID, studentID), summary)
	return &summary, nil
}

// UpsertScore enters one item score, or deletes the item when the score is
// nil. The returned item is nil after a delete.
func (s *GradeService) UpsertScore(ctx context.Context, scheduleID string, req UpsertScoreRequest, actor string) (*models.GradeItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid score payload")
	}
	_, config, err := s.loadSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadEnrollment(ctx, scheduleID, req.StudentID); err != nil {
		return nil, err
	}

	key := models.MaxScoreKey{
		ScheduleID: scheduleID,
		Component:  grading.NormalizeComponent(req.Component),
		ItemNumber: req.ItemNumber,
		Term:       models.Term(strings.ToLower(req.Term)),
	}

	if req.Score == nil {
		deleted, err := s.items.Delete(ctx, req.StudentID, key)
		if err != nil {
			return nil, internalError(err, "failed to clear score")
		}
		if deleted {
			s.metrics.RecordScoreWrite("delete", 1)
			s.cache.InvalidateSchedule(ctx, scheduleID)
		}
		return nil, nil
	}

	item, err := s.prepareItem(ctx, *config, req.StudentID, key, *req.Score, req.MaxScore, actor)
	if err != nil {
		return nil, err
	}
	if err := s.items.Upsert(ctx, item); err != nil {
		return nil, internalError(err, "failed to store score")
	}
	s.metrics.RecordScoreWrite("upsert", 1)
	s.cache.InvalidateSchedule(ctx, scheduleID)
	return item, nil
}

// BulkUpsertScores enters many scores. In atomic mode any rejected entry
// aborts the whole batch; in partialOnError mode valid entries are stored and
// rejected ones reported.
func (s *GradeService) BulkUpsertScores(ctx context.Context, scheduleID string, req BulkScoreRequest, actor string) (*BulkScoreResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid bulk score payload")
	}
	_, config, err := s.loadSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.enrollments.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, internalError(err, "failed to load roster")
	}
	enrolled := make(map[string]bool, len(enrollments))
	for _, enrollment := range enrollments {
		enrolled[enrollment.StudentID] = enrollment.Active()
	}

	result := &BulkScoreResult{Processed: len(req.Items)}
	prepared := make([]models.GradeItem, 0, len(req.Items))
	for _, entry := range req.Items {
		key := models.MaxScoreKey{
			ScheduleID: scheduleID,
			Component:  grading.NormalizeComponent(entry.Component),
			ItemNumber: entry.ItemNumber,
			Term:       models.Term(strings.ToLower(entry.Term)),
		}
		var item *models.GradeItem
		if !enrolled[entry.StudentID] {
			err = appErrors.Clone(appErrors.ErrNotFound, "student not enrolled in schedule")
		} else {
			item, err = s.prepareItem(ctx, *config, entry.StudentID, key, entry.Score, entry.MaxScore, actor)
		}
		if err != nil {
			failure := ScoreWriteFailure{StudentID: entry.StudentID, Term: key.Term, Component: key.Component, ItemNumber: key.ItemNumber, Reason: appErrors.FromError(err).Message}
			if models.BulkOperationMode(req.Mode) == models.BulkModeAtomic {
				return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status,
					fmt.Sprintf("entry for %s %s #%d rejected: %s", failure.StudentID, failure.Component, failure.ItemNumber, failure.Reason))
			}
			result.Failures = append(result.Failures, failure)
			continue
		}
		prepared = append(prepared, *item)
	}

	if models.BulkOperationMode(req.Mode) == models.BulkModeAtomic {
		if err := s.items.BulkUpsert(ctx, prepared); err != nil {
			return nil, internalError(err, "failed to store scores")
		}
		result.Success = len(prepared)
	} else {
		for i := range prepared {
			item := &prepared[i]
			if err := s.items.Upsert(ctx, item); err != nil {
				s.logger.Warn("bulk score write failed", zap.String("student_id", item.StudentID), zap.String("component", item.Component), zap.Error(err))
				result.Failures = append(result.Failures, ScoreWriteFailure{StudentID: item.StudentID, Term: item.Term, Component: item.Component, ItemNumber: item.ItemNumber, Reason: "failed to store score"})
				continue
			}
			result.Success++
		}
	}

	if result.Success > 0 {
		s.metrics.RecordScoreWrite("upsert", result.Success)
		s.cache.InvalidateSchedule(ctx, scheduleID)
	}
	return result, nil
}

// prepareItem resolves the max score of the item and checks the score
// against it. The max resolves from the stored per-item max, then the config
// default of the component, then the payload. A stored max of 0 admits only a
// score of 0.
func (s *GradeService) prepareItem(ctx context.Context, config models.GradingConfig, studentID string, key models.MaxScoreKey, score float64, payloadMax *float64, actor string) (*models.GradeItem, error) {
	if score < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "score must not be negative")
	}
	maxScore, err := s.resolveItemMax(ctx, config, key, payloadMax)
	if err != nil {
		return nil, err
	}
	if score > maxScore {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("score %.2f exceeds max score %.2f", score, maxScore))
	}
	return &models.GradeItem{
		StudentID:  studentID,
		ScheduleID: key.ScheduleID,
		Term:       key.Term,
		Component:  key.Component,
		ItemNumber: key.ItemNumber,
		Score:      score,
		MaxScore:   maxScore,
		RecordedBy: actor,
	}, nil
}

func (s *GradeService) resolveItemMax(ctx context.Context, config models.GradingConfig, key models.MaxScoreKey, payloadMax *float64) (float64, error) {
	stored, err := s.items.FindMaxScore(ctx, key)
	switch {
	case err == nil:
		return stored.MaxScore, nil
	case !errors.Is(err, sql.ErrNoRows):
		return 0, internalError(err, "failed to load max score")
	}
	if comp, ok := grading.Lookup(config, key.Component); ok {
		return comp.MaxScore, nil
	}
	if payloadMax != nil && *payloadMax > 0 {
		return *payloadMax, nil
	}
	return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("component %q is not part of the grading config", key.Component))
}

func (s *GradeService) loadSchedule(ctx context.Context, scheduleID string) (*models.Schedule, *models.GradingConfig, error) {
	return loadScheduleConfig(ctx, s.schedules, s.configs, scheduleID)
}

func (s *GradeService) loadEnrollment(ctx context.Context, scheduleID, studentID string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.Find(ctx, scheduleID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not enrolled in schedule")
		}
		return nil, internalError(err, "failed to load enrollment")
	}
	if !enrollment.Active() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not enrolled in schedule")
	}
	return enrollment, nil
}

func loadScheduleConfig(ctx context.Context, schedules scheduleReader, configs gradingConfigResolver, scheduleID string) (*models.Schedule, *models.GradingConfig, error) {
	schedule, err := schedules.FindByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, nil, internalError(err, "failed to load schedule")
	}
	config, err := configs.Resolve(ctx, schedule.ClassType)
	if err != nil {
		return nil, nil, err
	}
	return schedule, config, nil
}

func overrideOf(overrides map[string]models.AttendanceStatus, studentID string) *models.AttendanceStatus {
	status, ok := overrides[studentID]
	if !ok {
		return nil
	}
	return &status
}
