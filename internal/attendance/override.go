package attendance

import (
	"fmt"
	"math"
	"strings"

	"github.com/noah-isme/class-record-api/internal/models"
)

// OverrideKeys enumerates every session key an override covers: each week of
// both session types, lecture first.
func OverrideKeys(scheduleID string, weeks int) []models.SessionKey {
	if weeks <= 0 {
		weeks = DefaultWeeks
	}
	keys := make([]models.SessionKey, 0, len(models.SessionTypes)*weeks)
	for _, sessionType := range models.SessionTypes {
		for week := 1; week <= weeks; week++ {
			keys = append(keys, models.SessionKey{ScheduleID: scheduleID, SessionType: sessionType, Week: week})
		}
	}
	return keys
}

// ValidateOverride checks the status of an apply or remove request. Removing
// FA requires a reason.
func ValidateOverride(status models.AttendanceStatus, reason string, removing bool) error {
	if !status.Terminal() {
		return fmt.Errorf("override status must be D or FA")
	}
	if removing && status == models.AttendanceStatusFailedAbs && strings.TrimSpace(reason) == "" {
		return fmt.Errorf("reason is required to remove FA")
	}
	return nil
}

// ActiveOverride returns the terminal status carried by a student's records,
// if any. When D and FA coexist the most recently updated wins.
func ActiveOverride(records []models.AttendanceRecord) *models.AttendanceStatus {
	var found *models.AttendanceRecord
	for i := range records {
		record := &records[i]
		if !record.Status.Terminal() {
			continue
		}
		if found == nil || record.UpdatedAt.After(found.UpdatedAt) {
			found = record
		}
	}
	if found == nil {
		return nil
	}
	status := found.Status
	return &status
}

// Effective resolves the status shown for one key: an override wins over the
// stored status.
func Effective(stored, override *models.AttendanceStatus) *models.AttendanceStatus {
	if override != nil {
		return override
	}
	return stored
}

// Sheet builds a student's attendance grid with the summary. Cancelled marks
// keys whose session carries a cancellation row.
func Sheet(studentID, scheduleID string, weeks int, records []models.AttendanceRecord, cancelled map[models.SessionKey]bool) models.StudentAttendance {
	byKey := make(map[models.SessionKey]models.AttendanceStatus, len(records))
	for _, record := range records {
		byKey[record.Key()] = record.Status
	}
	override := ActiveOverride(records)

	keys := OverrideKeys(scheduleID, weeks)
	cells := make([]models.AttendanceCell, 0, len(keys))
	for _, key := range keys {
		cell := models.AttendanceCell{SessionType: key.SessionType, Week: key.Week, Cancelled: cancelled[key]}
		var stored *models.AttendanceStatus
		if status, ok := byKey[key]; ok {
			s := status
			stored = &s
		}
		cell.Status = Effective(stored, override)
		cells = append(cells, cell)
	}

	return models.StudentAttendance{
		StudentID:  studentID,
		ScheduleID: scheduleID,
		Override:   override,
		Cells:      cells,
		Summary:    Summarize(cells, override != nil),
	}
}

// Summarize counts effective statuses. The rate is (P+L+E)/(P+L+E+A)*100 with
// CC excluded, rounded to two decimals; it is nil while overridden or when no
// session counts.
func Summarize(cells []models.AttendanceCell, overridden bool) models.AttendanceSummary {
	var summary models.AttendanceSummary
	for _, cell := range cells {
		if cell.Status == nil {
			summary.Unmarked++
			continue
		}
		switch *cell.Status {
		case models.AttendanceStatusPresent:
			summary.Present++
		case models.AttendanceStatusAbsent:
			summary.Absent++
		case models.AttendanceStatusLate:
			summary.Late++
		case models.AttendanceStatusExcused:
			summary.Excused++
		case models.AttendanceStatusCancelled:
			summary.Cancelled++
		case models.AttendanceStatusDropped:
			summary.Dropped++
		case models.AttendanceStatusFailedAbs:
			summary.FailedAbsences++
		}
	}
	if overridden {
		return summary
	}
	attended := summary.Present + summary.Late + summary.Excused
	countable := attended + summary.Absent
	if countable == 0 {
		return summary
	}
	rate := math.Round(float64(attended)/float64(countable)*10000) / 100
	summary.Rate = &rate
	return summary
}
