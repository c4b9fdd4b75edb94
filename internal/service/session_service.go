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

	"github.com/noah-isme/class-record-api/internal/attendance"
	"github.com/noah-isme/class-record-api/internal/models"
	"github.com/noah-isme/class-record-api/internal/repository"
	appErrors "github.com/noah-isme/class-record-api/pkg/errors"
)

type attendanceRepository interface {
	Upsert(ctx context.Context, record *models.AttendanceRecord) error
	BulkUpsert(ctx context.Context, records []models.AttendanceRecord) error
	ListByKey(ctx context.Context, key models.SessionKey) ([]models.AttendanceRecord, error)
	ListByStudent(ctx context.Context, scheduleID, studentID string) ([]models.AttendanceRecord, error)
	ListOverrides(ctx context.Context, scheduleID string) (map[string]models.AttendanceStatus, error)
	DeleteByStatus(ctx context.Context, scheduleID, studentID string, status models.AttendanceStatus) (int64, error)
	DeleteAtKey(ctx context.Context, key models.SessionKey, studentID string, status models.AttendanceStatus) (bool, error)
}

type sessionCancellationRepository interface {
	Find(ctx context.Context, key models.SessionKey) (*models.SessionCancellation, error)
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.SessionCancellation, error)
	Cancel(ctx context.Context, cancellation *models.SessionCancellation, studentIDs []string) error
	Restore(ctx context.Context, key models.SessionKey, studentIDs []string) (int64, error)
}

// CancelSessionRequest carries the reason of a cancellation.
type CancelSessionRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// MarkAttendanceRequest records one student's status for a session.
type MarkAttendanceRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	Status    string  `json:"status" validate:"required,markable_status"`
	Remarks   *string `json:"remarks"`
	Date      string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// BulkMarkItem is one entry of a bulk mark request.
type BulkMarkItem struct {
	StudentID string  `json:"student_id" validate:"required"`
	Status    string  `json:"status" validate:"required,markable_status"`
	Remarks   *string `json:"remarks"`
}

// BulkMarkRequest marks many students of one session.
type BulkMarkRequest struct {
	Mode  string         `json:"mode" validate:"required,bulk_mode"`
	Date  string         `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Items []BulkMarkItem `json:"items" validate:"required,min=1,dive"`
}

// SessionService drives the per-session Active/Cancelled state machine and
// per-session marking.
type SessionService struct {
	schedules     scheduleReader
	enrollments   enrollmentReader
	records       attendanceRepository
	cancellations sessionCancellationRepository
	weeks         int
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewSessionService constructs the service. weeks <= 0 falls back to the
// default term length.
func NewSessionService(schedules scheduleReader, enrollments enrollmentReader, records attendanceRepository, cancellations sessionCancellationRepository, weeks int, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if weeks <= 0 {
		weeks = attendance.DefaultWeeks
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		schedules:     schedules,
		enrollments:   enrollments,
		records:       records,
		cancellations: cancellations,
		weeks:         weeks,
		metrics:       metrics,
		validator:     newValidator(validate),
		logger:        logger,
	}
}

// View reports the explicit state, the derived fully-cancelled predicate and
// the effective roster of a session.
func (s *SessionService) View(ctx context.Context, key models.SessionKey) (*models.SessionView, error) {
	if err := s.checkKey(ctx, key); err != nil {
		return nil, err
	}
	cancellation, err := s.findCancellation(ctx, key)
	if err != nil {
		return nil, err
	}
	enrollments, overrides, err := s.roster(ctx, key.ScheduleID)
	if err != nil {
		return nil, err
	}
	records, err := s.records.ListByKey(ctx, key)
	if err != nil {
		return nil, internalError(err, "failed to load session attendance")
	}
	view := attendance.View(key, cancellation, enrollments, records, overrides)
	return &view, nil
}

// Cancel moves an Active session to Cancelled: the cancellation row and CC
// for every enrolled, non-overridden student are written together.
func (s *SessionService) Cancel(ctx context.Context, key models.SessionKey, req CancelSessionRequest, actor string) (*models.SessionView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid cancellation payload")
	}
	if err := s.checkKey(ctx, key); err != nil {
		return nil, err
	}
	cancellation, err := s.findCancellation(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := attendance.CheckCancel(attendance.StateOf(cancellation), req.Reason); err != nil {
		return nil, mapTransitionError(err)
	}
	enrollments, overrides, err := s.roster(ctx, key.ScheduleID)
	if err != nil {
		return nil, err
	}
	targets := attendance.CancellationTargets(enrollments, overrides)

	row := &models.SessionCancellation{
		ScheduleID:  key.ScheduleID,
		SessionType: key.SessionType,
		Week:        key.Week,
		Reason:      strings.TrimSpace(req.Reason),
		CancelledBy: actor,
	}
	if err := s.cancellations.Cancel(ctx, row, targets); err != nil {
		if errors.Is(err, repository.ErrCancellationExists) {
			return nil, appErrors.Clone(appErrors.ErrSessionCancelled, "session already cancelled")
		}
		return nil, internalError(err, "failed to cancel session")
	}

	s.metrics.RecordSessionTransition("cancel")
	s.logger.Info("session cancelled", sessionFields(key, actor, zap.String("reason", row.Reason), zap.Int("students", len(targets)))...)
	return s.View(ctx, key)
}

// Restore moves a Cancelled session back to Active, removing the cancellation
// row and the CC records of non-overridden students together.
func (s *SessionService) Restore(ctx context.Context, key models.SessionKey, actor string) (*models.SessionView, error) {
	if err := s.checkKey(ctx, key); err != nil {
		return nil, err
	}
	cancellation, err := s.findCancellation(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := attendance.CheckRestore(attendance.StateOf(cancellation)); err != nil {
		return nil, mapTransitionError(err)
	}
	enrollments, overrides, err := s.roster(ctx, key.ScheduleID)
	if err != nil {
		return nil, err
	}
	targets := attendance.CancellationTargets(enrollments, overrides)

	restored, err := s.cancellations.Restore(ctx, key, targets)
	if err != nil {
		if errors.Is(err, repository.ErrCancellationMissing) {
			return nil, appErrors.Clone(appErrors.ErrSessionActive, "session is not cancelled")
		}
		return nil, internalError(err, "failed to restore session")
	}

	s.metrics.RecordSessionTransition("restore")
	s.logger.Info("session restored", sessionFields(key, actor, zap.Int64("records", restored))...)
	return s.View(ctx, key)
}

// CancelOne marks a single student CC without touching the session state.
func (s *SessionService) CancelOne(ctx context.Context, key models.SessionKey, studentID string, req CancelSessionRequest, actor string) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid cancellation payload")
	}
	if err := s.checkWritable(ctx, key, studentID); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	record := &models.AttendanceRecord{
		StudentID:   studentID,
		ScheduleID:  key.ScheduleID,
		SessionType: key.SessionType,
		Week:        key.Week,
		Status:      models.AttendanceStatusCancelled,
		Remarks:     &reason,
		RecordedBy:  actor,
	}
	if err := s.records.Upsert(ctx, record); err != nil {
		return nil, internalError(err, "failed to cancel student session")
	}
	s.metrics.RecordSessionTransition("cancel_one")
	s.logger.Info("student session cancelled", sessionFields(key, actor, zap.String("student_id", studentID), zap.String("reason", reason))...)
	return record, nil
}

// RestoreOne removes a single student's CC at an active session.
func (s *SessionService) RestoreOne(ctx context.Context, key models.SessionKey, studentID, actor string) error {
	if err := s.checkWritable(ctx, key, studentID); err != nil {
		return err
	}
	removed, err := s.records.DeleteAtKey(ctx, key, studentID, models.AttendanceStatusCancelled)
	if err != nil {
		return internalError(err, "failed to restore student session")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "student has no cancelled record at this session")
	}
	s.metrics.RecordSessionTransition("restore_one")
	s.logger.Info("student session restored", sessionFields(key, actor, zap.String("student_id", studentID))...)
	return nil
}

// Mark records P/A/L/E for one student.
func (s *SessionService) Mark(ctx context.Context, key models.SessionKey, req MarkAttendanceRequest, actor string) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid attendance payload")
	}
	date, err := parseSessionDate(req.Date)
	if err != nil {
		return nil, err
	}
	if err := s.checkWritable(ctx, key, req.StudentID); err != nil {
		return nil, err
	}
	record := &models.AttendanceRecord{
		StudentID:   req.StudentID,
		ScheduleID:  key.ScheduleID,
		SessionType: key.SessionType,
		Week:        key.Week,
		Status:      models.AttendanceStatus(strings.ToUpper(req.Status)),
		Remarks:     req.Remarks,
		RecordedBy:  actor,
		Date:        date,
	}
	if err := s.records.Upsert(ctx, record); err != nil {
		return nil, internalError(err, "failed to record attendance")
	}
	return record, nil
}

// BulkMark records statuses for many students of one session. Atomic mode
// rejects the batch on the first invalid entry and writes in one transaction;
// partialOnError writes what it can and reports the rest.
func (s *SessionService) BulkMark(ctx context.Context, key models.SessionKey, req BulkMarkRequest, actor string) (*models.BulkAttendanceResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid bulk attendance payload")
	}
	date, err := parseSessionDate(req.Date)
	if err != nil {
		return nil, err
	}
	if err := s.checkKey(ctx, key); err != nil {
		return nil, err
	}
	cancellation, err := s.findCancellation(ctx, key)
	if err != nil {
		return nil, err
	}
	if cancellation != nil {
		return nil, appErrors.Clone(appErrors.ErrSessionCancelled, "session is cancelled")
	}
	enrollments, overrides, err := s.roster(ctx, key.ScheduleID)
	if err != nil {
		return nil, err
	}
	enrolled := make(map[string]bool, len(enrollments))
	for _, enrollment := range enrollments {
		enrolled[enrollment.StudentID] = enrollment.Active()
	}

	atomic := models.BulkOperationMode(req.Mode) == models.BulkModeAtomic
	result := &models.BulkAttendanceResult{Processed: len(req.Items)}
	records := make([]models.AttendanceRecord, 0, len(req.Items))
	for _, item := range req.Items {
		reason := ""
		switch {
		case !enrolled[item.StudentID]:
			reason = "student not enrolled in schedule"
		case overrides[item.StudentID] != "":
			reason = appErrors.ErrStudentOverridden.Message
		}
		if reason != "" {
			if atomic {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s: %s", item.StudentID, reason))
			}
			result.Failures = append(result.Failures, models.AttendanceWriteFailure{StudentID: item.StudentID, SessionType: key.SessionType, Week: key.Week, Reason: reason})
			continue
		}
		records = append(records, models.AttendanceRecord{
			StudentID:   item.StudentID,
			ScheduleID:  key.ScheduleID,
			SessionType: key.SessionType,
			Week:        key.Week,
			Status:      models.AttendanceStatus(strings.ToUpper(item.Status)),
			Remarks:     item.Remarks,
			RecordedBy:  actor,
			Date:        date,
		})
	}

	if atomic {
		if err := s.records.BulkUpsert(ctx, records); err != nil {
			return nil, internalError(err, "failed to record attendance")
		}
		result.Success = len(records)
		return result, nil
	}
	for i := range records {
		if err := s.records.Upsert(ctx, &records[i]); err != nil {
			s.logger.Warn("bulk attendance write failed", zap.String("student_id", records[i].StudentID), zap.Error(err))
			result.Failures = append(result.Failures, models.AttendanceWriteFailure{StudentID: records[i].StudentID, SessionType: key.SessionType, Week: key.Week, Reason: "failed to record attendance"})
			continue
		}
		result.Success++
	}
	return result, nil
}

// StudentSheet returns a student's attendance grid with overrides applied.
func (s *SessionService) StudentSheet(ctx context.Context, scheduleID, studentID string) (*models.StudentAttendance, error) {
	if err := s.checkSchedule(ctx, scheduleID); err != nil {
		return nil, err
	}
	if err := s.checkEnrolled(ctx, scheduleID, studentID); err != nil {
		return nil, err
	}
	records, err := s.records.ListByStudent(ctx, scheduleID, studentID)
	if err != nil {
		return nil, internalError(err, "failed to load student attendance")
	}
	cancellations, err := s.cancellations.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, internalError(err, "failed to load session cancellations")
	}
	cancelled := make(map[models.SessionKey]bool, len(cancellations))
	for _, c := range cancellations {
		cancelled[models.SessionKey{ScheduleID: c.ScheduleID, SessionType: c.SessionType, Week: c.Week}] = true
	}
	sheet := attendance.Sheet(studentID, scheduleID, s.weeks, records, cancelled)
	return &sheet, nil
}

// checkWritable guards per-student writes: the session must be active, the
// student enrolled and not overridden.
func (s *SessionService) checkWritable(ctx context.Context, key models.SessionKey, studentID string) error {
	if err := s.checkKey(ctx, key); err != nil {
		return err
	}
	cancellation, err := s.findCancellation(ctx, key)
	if err != nil {
		return err
	}
	if cancellation != nil {
		return appErrors.Clone(appErrors.ErrSessionCancelled, "session is cancelled")
	}
	if err := s.checkEnrolled(ctx, key.ScheduleID, studentID); err != nil {
		return err
	}
	overrides, err := s.records.ListOverrides(ctx, key.ScheduleID)
	if err != nil {
		return internalError(err, "failed to load attendance overrides")
	}
	if _, overridden := overrides[studentID]; overridden {
		return appErrors.Clone(appErrors.ErrStudentOverridden, "")
	}
	return nil
}

func (s *SessionService) checkKey(ctx context.Context, key models.SessionKey) error {
	if err := attendance.ValidateKey(key, s.weeks); err != nil {
		return validationError(err, err.Error())
	}
	return s.checkSchedule(ctx, key.ScheduleID)
}

func (s *SessionService) checkSchedule(ctx context.Context, scheduleID string) error {
	if _, err := s.schedules.FindByID(ctx, scheduleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return internalError(err, "failed to load schedule")
	}
	return nil
}

func (s *SessionService) checkEnrolled(ctx context.Context, scheduleID, studentID string) error {
	enrollment, err := s.enrollments.Find(ctx, scheduleID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not enrolled in schedule")
		}
		return internalError(err, "failed to load enrollment")
	}
	if !enrollment.Active() {
		return appErrors.Clone(appErrors.ErrNotFound, "student not enrolled in schedule")
	}
	return nil
}

func (s *SessionService) findCancellation(ctx context.Context, key models.SessionKey) (*models.SessionCancellation, error) {
	cancellation, err := s.cancellations.Find(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, internalError(err, "failed to load session state")
	}
	return cancellation, nil
}

func (s *SessionService) roster(ctx context.Context, scheduleID string) ([]models.Enrollment, map[string]models.AttendanceStatus, error) {
	enrollments, err := s.enrollments.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, nil, internalError(err, "failed to load roster")
	}
	overrides, err := s.records.ListOverrides(ctx, scheduleID)
	if err != nil {
		return nil, nil, internalError(err, "failed to load attendance overrides")
	}
	return enrollments, overrides, nil
}

func mapTransitionError(err error) error {
	switch {
	case errors.Is(err, attendance.ErrReasonRequired):
		return appErrors.Clone(appErrors.ErrValidation, "reason is required")
	case errors.Is(err, attendance.ErrAlreadyCancelled):
		return appErrors.Clone(appErrors.ErrSessionCancelled, "session already cancelled")
	case errors.Is(err, attendance.ErrNotCancelled):
		return appErrors.Clone(appErrors.ErrSessionActive, "session is not cancelled")
	default:
		return internalError(err, "invalid session transition")
	}
}

func parseSessionDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, validationError(err, "date must use YYYY-MM-DD")
	}
	return date, nil
}

func sessionFields(key models.SessionKey, actor string, extra ...zap.Field) []zap.Field {
	fields := []zap.Field{
		zap.String("schedule_id", key.ScheduleID),
		zap.String("session_type", string(key.SessionType)),
		zap.Int("week", key.Week),
		zap.String("actor", actor),
	}
	return append(fields, extra...)
}
