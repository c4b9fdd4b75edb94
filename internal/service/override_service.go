package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/class-record-api/internal/attendance"
	"github.com/noah-isme/class-record-api/internal/models"
	appErrors "github.com/noah-isme/class-record-api/pkg/errors"
)

const defaultFanoutWorkers = 6

type overrideWriter interface {
	Upsert(ctx context.Context, record *models.AttendanceRecord) error
	DeleteByStatus(ctx context.Context, scheduleID, studentID string, status models.AttendanceStatus) (int64, error)
}

// ApplyOverrideRequest sets a schedule-wide D or FA status for a student.
type ApplyOverrideRequest struct {
	Status string  `json:"status" validate:"required,override_status"`
	Reason *string `json:"reason"`
}

// RemoveOverrideRequest clears a D or FA status. FA removal requires a reason.
type RemoveOverrideRequest struct {
	Status string `json:"status" validate:"required,override_status"`
	Reason string `json:"reason"`
}

// RemoveOverrideResult reports how many session records were cleared.
type RemoveOverrideResult struct {
	Status  models.AttendanceStatus `json:"status"`
	Removed int64                   `json:"removed"`
}

// OverrideService applies and removes terminal per-student statuses across
// every session of a schedule.
type OverrideService struct {
	schedules   scheduleReader
	enrollments enrollmentReader
	records     overrideWriter
	cache       *CacheService
	weeks       int
	workers     int
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewOverrideService constructs the service. workers bounds the concurrent
// upserts issued by Apply.
func NewOverrideService(schedules scheduleReader, enrollments enrollmentReader, records overrideWriter, cache *CacheService, weeks, workers int, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *OverrideService {
	if weeks <= 0 {
		weeks = attendance.DefaultWeeks
	}
	if workers <= 0 {
		workers = defaultFanoutWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverrideService{
		schedules:   schedules,
		enrollments: enrollments,
		records:     records,
		cache:       cache,
		weeks:       weeks,
		workers:     workers,
		metrics:     metrics,
		validator:   newValidator(validate),
		logger:      logger,
	}
}

// Apply writes the status to every lecture and lab week of the schedule. Each
// key is an independent idempotent upsert; failed keys are reported and the
// whole request may be re-issued.
func (s *OverrideService) Apply(ctx context.Context, scheduleID, studentID string, req ApplyOverrideRequest, actor string) (*models.BulkAttendanceResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid override payload")
	}
	status := models.AttendanceStatus(strings.ToUpper(req.Status))
	if err := s.checkStudent(ctx, scheduleID, studentID); err != nil {
		return nil, err
	}

	var remarks *string
	if req.Reason != nil {
		if trimmed := strings.TrimSpace(*req.Reason); trimmed != "" {
			remarks = &trimmed
		}
	}

	keys := attendance.OverrideKeys(scheduleID, s.weeks)
	result := &models.BulkAttendanceResult{Processed: len(keys)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, key := range keys {
		if gctx.Err() != nil {
			break
		}
		key := key
		g.Go(func() error {
			record := &models.AttendanceRecord{
				StudentID:   studentID,
				ScheduleID:  key.ScheduleID,
				SessionType: key.SessionType,
				Week:        key.Week,
				Status:      status,
				Remarks:     remarks,
				RecordedBy:  actor,
			}
			err := s.records.Upsert(gctx, record)
			s.metrics.RecordOverrideWrite(string(status), err == nil)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("override write failed",
					zap.String("student_id", studentID),
					zap.String("session_type", string(key.SessionType)),
					zap.Int("week", key.Week),
					zap.Error(err),
				)
				result.Failures = append(result.Failures, models.AttendanceWriteFailure{
					StudentID:   studentID,
					SessionType: key.SessionType,
					Week:        key.Week,
					Reason:      "failed to write override",
				})
				return nil
			}
			result.Success++
			return nil
		})
	}
	_ = g.Wait()

	if issued := result.Success + len(result.Failures); issued < len(keys) {
		for _, key := range keys[issued:] {
			result.Failures = append(result.Failures, models.AttendanceWriteFailure{
				StudentID:   studentID,
				SessionType: key.SessionType,
				Week:        key.Week,
				Reason:      "request cancelled",
			})
		}
	}

	s.cache.InvalidateSchedule(ctx, scheduleID)
	s.logger.Info("attendance override applied",
		zap.String("schedule_id", scheduleID),
		zap.String("student_id", studentID),
		zap.String("status", string(status)),
		zap.String("actor", actor),
		zap.Int("written", result.Success),
		zap.Int("failed", len(result.Failures)),
	)
	return result, nil
}

// Remove deletes every record carrying exactly the given status for the
// student. The affected keys become unmarked.
func (s *OverrideService) Remove(ctx context.Context, scheduleID, studentID string, req RemoveOverrideRequest, actor string) (*RemoveOverrideResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid override payload")
	}
	status := models.AttendanceStatus(strings.ToUpper(req.Status))
	if err := attendance.ValidateOverride(status, req.Reason, true); err != nil {
		return nil, validationError(err, err.Error())
	}
	if err := s.checkStudent(ctx, scheduleID, studentID); err != nil {
		return nil, err
	}

	removed, err := s.records.DeleteByStatus(ctx, scheduleID, studentID, status)
	if err != nil {
		return nil, internalError(err, "failed to remove override")
	}
	if removed == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student has no "+string(status)+" records in schedule")
	}

	s.cache.InvalidateSchedule(ctx, scheduleID)
	s.logger.Info("attendance override removed",
		zap.String("schedule_id", scheduleID),
		zap.String("student_id", studentID),
		zap.String("status", string(status)),
		zap.String("reason", strings.TrimSpace(req.Reason)),
		zap.String("actor", actor),
		zap.Int64("removed", removed),
	)
	return &RemoveOverrideResult{Status: status, Removed: removed}, nil
}

func (s *OverrideService) checkStudent(ctx context.Context, scheduleID, studentID string) error {
	if _, err := s.schedules.FindByID(ctx, scheduleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return internalError(err, "failed to load schedule")
	}
	enrollment, err := s.enrollments.Find(ctx, scheduleID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not enrolled in schedule")
		}
		return internalError(err, "failed to load enrollment")
	}
	if enrollment == nil || !enrollment.Active() {
		return appErrors.Clone(appErrors.ErrNotFound, "student not enrolled in schedule")
	}
	return nil
}
