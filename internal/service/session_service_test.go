package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/class-record-api/internal/models"
	appErrors "github.com/noah-isme/class-record-api/pkg/errors"
)

type sessionFixture struct {
	svc           *SessionService
	records       *mockAttendanceRepo
	cancellations *mockCancellationRepo
}

var lectureWeek3 = models.SessionKey{ScheduleID: "sch-1", SessionType: models.SessionLecture, Week: 3}

func newSessionFixture(t *testing.T) sessionFixture {
	t.Helper()
	schedules := &mockScheduleRepo{schedules: map[string]*models.Schedule{"sch-1": {ID: "sch-1", ClassType: models.ClassTypeLecture}}}
	enrollments := &mockEnrollmentRepo{enrollments: []models.Enrollment{
		{ScheduleID: "sch-1", StudentID: "stu-1", StudentName: "Bea Santos"},
		{ScheduleID: "sch-1", StudentID: "stu-2", StudentName: "Carlo Reyes"},
		{ScheduleID: "sch-1", StudentID: "stu-3", StudentName: "Dina Lim"},
	}}
	records := newMockAttendanceRepo()
	cancellations := newMockCancellationRepo(records)
	svc := NewSessionService(schedules, enrollments, records, cancellations, 18, nil, validator.New(), zap.NewNop())
	return sessionFixture{svc: svc, records: records, cancellations: cancellations}
}

func (f sessionFixture) override(t *testing.T, studentID string, status models.AttendanceStatus) {
	t.Helper()
	require.NoError(t, f.records.Upsert(context.Background(), &models.AttendanceRecord{
		StudentID: studentID, ScheduleID: "sch-1", SessionType: models.SessionLab, Week: 1, Status: status,
	}))
}

func TestSessionServiceCancelRestoreRoundTrip(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.override(t, "stu-3", models.AttendanceStatusDropped)

	_, err := f.svc.Mark(ctx, lectureWeek3, MarkAttendanceRequest{StudentID: "stu-1", Status: "P"}, "instructor")
	require.NoError(t, err)

	view, err := f.svc.Cancel(ctx, lectureWeek3, CancelSessionRequest{Reason: "typhoon"}, "instructor")
	require.NoError(t, err)
	assert.Equal(t, models.SessionCancelled, view.State)
	assert.True(t, view.FullyCancelled)
	assert.True(t, view.Consistent)
	require.NotNil(t, view.Cancellation)
	assert.Equal(t, "typhoon", view.Cancellation.Reason)
	assert.Equal(t, models.AttendanceStatusCancelled, f.records.statusAt("stu-1", lectureWeek3))
	assert.Equal(t, models.AttendanceStatusCancelled, f.records.statusAt("stu-2", lectureWeek3))
	assert.Empty(t, f.records.statusAt("stu-3", lectureWeek3))

	var dina models.SessionRosterEntry
	for _, entry := range view.Students {
		if entry.StudentID == "stu-3" {
			dina = entry
		}
	}
	assert.True(t, dina.Overridden)
	require.NotNil(t, dina.Effective)
	assert.Equal(t, models.AttendanceStatusDropped, *dina.Effective)

	view, err = f.svc.Restore(ctx, lectureWeek3, "instructor")
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, view.State)
	assert.False(t, view.FullyCancelled)
	assert.True(t, view.Consistent)
	assert.Empty(t, f.records.statusAt("stu-1", lectureWeek3))
	assert.Empty(t, f.records.statusAt("stu-2", lectureWeek3))
}

func TestSessionServiceTransitionConflicts(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	_, err := f.svc.Restore(ctx, lectureWeek3, "instructor")
	assert.ErrorIs(t, err, appErrors.ErrSessionActive)

	_, err = f.svc.Cancel(ctx, lectureWeek3, CancelSessionRequest{Reason: "   "}, "instructor")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Cancel(ctx, lectureWeek3, CancelSessionRequest{Reason: "holiday"}, "instructor")
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, lectureWeek3, CancelSessionRequest{Reason: "holiday"}, "instructor")
	assert.ErrorIs(t, err, appErrors.ErrSessionCancelled)
}

func TestSessionServiceRejectsInvalidKey(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	_, err := f.svc.View(ctx, models.SessionKey{ScheduleID: "sch-1", SessionType: models.SessionLab, Week: 19})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.View(ctx, models.SessionKey{ScheduleID: "sch-1", SessionType: "seminar", Week: 1})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.View(ctx, models.SessionKey{ScheduleID: "missing", SessionType: models.SessionLab, Week: 1})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestSessionServiceMarkGuards(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.override(t, "stu-2", models.AttendanceStatusFailedAbs)

	_, err := f.svc.Mark(ctx, lectureWeek3, MarkAttendanceRequest{StudentID: "stu-1", Status: "CC"}, "instructor")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Mark(ctx, lectureWeek3, MarkAttendanceRequest{StudentID: "stu-1", Status: "P", Date: "03/10/2026"}, "instructor")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Mark(ctx, lectureWeek3, MarkAttendanceRequest{StudentID: "stu-2", Status: "P"}, "instructor")
	assert.ErrorIs(t, err, appErrors.ErrStudentOverridden)

	_, err = f.svc.Mark(ctx, lectureWeek3, MarkAttendanceRequest{StudentID: "stu-9", Status: "P"}, "instructor")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	record, err := f.svc.Mark(ctx, lectureWeek3, MarkAttendanceRequest{StudentID: "stu-1", Status: "l", Date: "2026-03-10"}, "instructor")
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusLate, record.Status)
	assert.Equal(t, "2026-03-10", record.Date.Format("2006-01-02"))

	_, err = f.svc.Cancel(ctx, lectureWeek3, CancelSessionRequest{Reason: "fire drill"}, "instructor")
	require.NoError(t, err)
	_, err = f.svc.Mark(ctx, lectureWeek3, MarkAttendanceRequest{StudentID: "stu-1", Status: "P"}, "instructor")
	assert.ErrorIs(t, err, appErrors.ErrSessionCancelled)
}

func TestSessionServiceCancelOneDerivesFullyCancelled(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	for _, studentID := range []string{"stu-1", "stu-2"} {
		_, err := f.svc.CancelOne(ctx, lectureWeek3, studentID, CancelSessionRequest{Reason: "excused activity"}, "instructor")
		require.NoError(t, err)
	}
	view, err := f.svc.View(ctx, lectureWeek3)
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, view.State)
	assert.False(t, view.FullyCancelled)

	_, err = f.svc.CancelOne(ctx, lectureWeek3, "stu-3", CancelSessionRequest{Reason: "excused activity"}, "instructor")
	require.NoError(t, err)
	view, err = f.svc.View(ctx, lectureWeek3)
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, view.State)
	assert.True(t, view.FullyCancelled)
	assert.False(t, view.Consistent)

	require.NoError(t, f.svc.RestoreOne(ctx, lectureWeek3, "stu-3", "instructor"))
	err = f.svc.RestoreOne(ctx, lectureWeek3, "stu-3", "instructor")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestSessionServiceRestoreOneRejectedWhileCancelled(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	_, err := f.svc.Cancel(ctx, lectureWeek3, CancelSessionRequest{Reason: "holiday"}, "instructor")
	require.NoError(t, err)

	err = f.svc.RestoreOne(ctx, lectureWeek3, "stu-1", "instructor")
	assert.ErrorIs(t, err, appErrors.ErrSessionCancelled)
	assert.Equal(t, models.AttendanceStatusCancelled, f.records.statusAt("stu-1", lectureWeek3))
}

func TestSessionServiceBulkMark(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.override(t, "stu-3", models.AttendanceStatusDropped)

	items := []BulkMarkItem{
		{StudentID: "stu-1", Status: "P"},
		{StudentID: "stu-2", Status: "A"},
		{StudentID: "stu-3", Status: "P"},
	}

	_, err := f.svc.BulkMark(ctx, lectureWeek3, BulkMarkRequest{Mode: string(models.BulkModeAtomic), Items: items}, "instructor")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Empty(t, f.records.statusAt("stu-1", lectureWeek3))

	result, err := f.svc.BulkMark(ctx, lectureWeek3, BulkMarkRequest{Mode: string(models.BulkModePartialOnError), Items: items}, "instructor")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 2, result.Success)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "stu-3", result.Failures[0].StudentID)
	assert.Equal(t, models.AttendanceStatusAbsent, f.records.statusAt("stu-2", lectureWeek3))

	result, err = f.svc.BulkMark(ctx, lectureWeek3, BulkMarkRequest{Mode: string(models.BulkModeAtomic), Items: items[:2]}, "instructor")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Success)
}

func TestSessionServiceStudentSheet(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	_, err := f.svc.Mark(ctx, lectureWeek3, MarkAttendanceRequest{StudentID: "stu-1", Status: "P"}, "instructor")
	require.NoError(t, err)
	lab2 := models.SessionKey{ScheduleID: "sch-1", SessionType: models.SessionLab, Week: 2}
	_, err = f.svc.Mark(ctx, lab2, MarkAttendanceRequest{StudentID: "stu-1", Status: "A"}, "instructor")
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, models.SessionKey{ScheduleID: "sch-1", SessionType: models.SessionLecture, Week: 4}, CancelSessionRequest{Reason: "holiday"}, "instructor")
	require.NoError(t, err)

	sheet, err := f.svc.StudentSheet(ctx, "sch-1", "stu-1")
	require.NoError(t, err)
	require.Len(t, sheet.Cells, 36)
	assert.True(t, sheet.Cells[3].Cancelled)
	assert.Equal(t, 1, sheet.Summary.Present)
	assert.Equal(t, 1, sheet.Summary.Absent)
	assert.Equal(t, 1, sheet.Summary.Cancelled)
	require.NotNil(t, sheet.Summary.Rate)
	assert.Equal(t, 50.0, *sheet.Summary.Rate)
	assert.Nil(t, sheet.Override)
}
