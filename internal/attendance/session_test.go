package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/class-record-api/internal/models"
)

func status(s models.AttendanceStatus) *models.AttendanceStatus { return &s }

func roster(ids ...string) []models.Enrollment {
	out := make([]models.Enrollment, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Enrollment{ScheduleID: "sch-1", StudentID: id, StudentName: "Student " + id, Status: models.EnrollmentStatusActive})
	}
	return out
}

func record(studentID string, sessionType models.SessionType, week int, s models.AttendanceStatus) models.AttendanceRecord {
	return models.AttendanceRecord{StudentID: studentID, ScheduleID: "sch-1", SessionType: sessionType, Week: week, Status: s}
}

func TestValidateKey(t *testing.T) {
	assert.NoError(t, ValidateKey(models.SessionKey{ScheduleID: "sch-1", SessionType: models.SessionLab, Week: 18}, 18))
	assert.Error(t, ValidateKey(models.SessionKey{ScheduleID: "sch-1", SessionType: models.SessionLab, Week: 19}, 18))
	assert.Error(t, ValidateKey(models.SessionKey{ScheduleID: "sch-1", SessionType: models.SessionLecture, Week: 0}, 18))
	assert.Error(t, ValidateKey(models.SessionKey{ScheduleID: "sch-1", SessionType: "seminar", Week: 1}, 18))
	assert.Error(t, ValidateKey(models.SessionKey{SessionType: models.SessionLecture, Week: 1}, 18))
}

func TestCancelRestoreTransitions(t *testing.T) {
	assert.ErrorIs(t, CheckCancel(models.SessionActive, " "), ErrReasonRequired)
	assert.NoError(t, CheckCancel(models.SessionActive, "typhoon"))
	assert.ErrorIs(t, CheckCancel(models.SessionCancelled, "typhoon"), ErrAlreadyCancelled)

	assert.ErrorIs(t, CheckRestore(models.SessionActive), ErrNotCancelled)
	assert.NoError(t, CheckRestore(models.SessionCancelled))

	assert.Equal(t, models.SessionActive, StateOf(nil))
	assert.Equal(t, models.SessionCancelled, StateOf(&models.SessionCancellation{CancelledAt: time.Now()}))
}

func TestRosterOverridePrecedence(t *testing.T) {
	records := []models.AttendanceRecord{
		record("s1", models.SessionLecture, 3, models.AttendanceStatusPresent),
		record("s2", models.SessionLecture, 3, models.AttendanceStatusAbsent),
	}
	overrides := map[string]models.AttendanceStatus{"s2": models.AttendanceStatusDropped}

	entries := Roster(roster("s1", "s2", "s3"), records, overrides)
	require.Len(t, entries, 3)
	assert.Equal(t, models.AttendanceStatusPresent, *entries[0].Effective)
	assert.True(t, entries[1].Overridden)
	assert.Equal(t, models.AttendanceStatusAbsent, *entries[1].Stored)
	assert.Equal(t, models.AttendanceStatusDropped, *entries[1].Effective)
	assert.Nil(t, entries[2].Effective)
}

func TestRosterSkipsWithdrawn(t *testing.T) {
	enrollments := roster("s1", "s2")
	enrollments[1].Status = models.EnrollmentStatusWithdrawn

	entries := Roster(enrollments, nil, nil)
	require.Len(t, entries, 1)
	assert.Equal(t, "s1", entries[0].StudentID)
}

func TestFullyCancelledIgnoresOverriddenStudents(t *testing.T) {
	records := []models.AttendanceRecord{
		record("s1", models.SessionLab, 5, models.AttendanceStatusCancelled),
		record("s2", models.SessionLab, 5, models.AttendanceStatusCancelled),
	}
	overrides := map[string]models.AttendanceStatus{"s3": models.AttendanceStatusFailedAbs}

	assert.True(t, FullyCancelled(Roster(roster("s1", "s2", "s3"), records, overrides)))
	assert.False(t, FullyCancelled(Roster(roster("s1", "s2", "s3"), records, nil)))
}

func TestFullyCancelledNeedsCountedStudent(t *testing.T) {
	overrides := map[string]models.AttendanceStatus{"s1": models.AttendanceStatusDropped}
	assert.False(t, FullyCancelled(Roster(roster("s1"), nil, overrides)))
	assert.False(t, FullyCancelled(nil))
}

func TestViewReportsBothSignals(t *testing.T) {
	key := models.SessionKey{ScheduleID: "sch-1", SessionType: models.SessionLecture, Week: 2}
	records := []models.AttendanceRecord{
		record("s1", models.SessionLecture, 2, models.AttendanceStatusCancelled),
		record("s2", models.SessionLecture, 2, models.AttendanceStatusCancelled),
	}

	derivedOnly := View(key, nil, roster("s1", "s2"), records, nil)
	assert.Equal(t, models.SessionActive, derivedOnly.State)
	assert.True(t, derivedOnly.FullyCancelled)
	assert.False(t, derivedOnly.Consistent)

	cancellation := &models.SessionCancellation{ScheduleID: "sch-1", SessionType: models.SessionLecture, Week: 2, Reason: "holiday"}
	both := View(key, cancellation, roster("s1", "s2"), records, nil)
	assert.Equal(t, models.SessionCancelled, both.State)
	assert.True(t, both.Consistent)

	active := View(key, nil, roster("s1", "s2"), nil, nil)
	assert.True(t, active.Consistent)
	assert.False(t, active.FullyCancelled)
}

func TestCancellationTargets(t *testing.T) {
	enrollments := roster("s1", "s2", "s3")
	enrollments[2].Status = models.EnrollmentStatusWithdrawn
	overrides := map[string]models.AttendanceStatus{"s2": models.AttendanceStatusDropped}

	assert.Equal(t, []string{"s1"}, CancellationTargets(enrollments, overrides))
}
