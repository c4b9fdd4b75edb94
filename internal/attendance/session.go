package attendance

import (
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/class-record-api/internal/models"
)

// DefaultWeeks is the number of weeks in a term when none is configured.
const DefaultWeeks = 18

var (
	// ErrAlreadyCancelled is returned when cancelling a cancelled session.
	ErrAlreadyCancelled = errors.New("session already cancelled")
	// ErrNotCancelled is returned when restoring an active session.
	ErrNotCancelled = errors.New("session is not cancelled")
	// ErrReasonRequired is returned when a cancellation carries no reason.
	ErrReasonRequired = errors.New("reason is required")
)

// ValidateKey checks the session type and week range of a key.
func ValidateKey(key models.SessionKey, weeks int) error {
	if strings.TrimSpace(key.ScheduleID) == "" {
		return fmt.Errorf("schedule id required")
	}
	if !key.SessionType.Valid() {
		return fmt.Errorf("invalid session type %q", key.SessionType)
	}
	if weeks <= 0 {
		weeks = DefaultWeeks
	}
	if key.Week < 1 || key.Week > weeks {
		return fmt.Errorf("week must be within 1-%d", weeks)
	}
	return nil
}

// StateOf reports the explicit state of a session from its cancellation row.
func StateOf(cancellation *models.SessionCancellation) models.SessionState {
	if cancellation != nil {
		return models.SessionCancelled
	}
	return models.SessionActive
}

// CheckCancel validates the Active -> Cancelled transition.
func CheckCancel(state models.SessionState, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}
	if state == models.SessionCancelled {
		return ErrAlreadyCancelled
	}
	return nil
}

// CheckRestore validates the Cancelled -> Active transition.
func CheckRestore(state models.SessionState) error {
	if state != models.SessionCancelled {
		return ErrNotCancelled
	}
	return nil
}

// Roster joins the enrolled students of a schedule with their stored status
// at one key and the schedule-wide overrides. Overrides take precedence over
// the stored status.
func Roster(enrollments []models.Enrollment, records []models.AttendanceRecord, overrides map[string]models.AttendanceStatus) []models.SessionRosterEntry {
	stored := make(map[string]models.AttendanceStatus, len(records))
	for _, record := range records {
		stored[record.StudentID] = record.Status
	}

	entries := make([]models.SessionRosterEntry, 0, len(enrollments))
	for _, enrollment := range enrollments {
		if !enrollment.Active() {
			continue
		}
		entry := models.SessionRosterEntry{StudentID: enrollment.StudentID, StudentName: enrollment.StudentName}
		if status, ok := stored[enrollment.StudentID]; ok {
			s := status
			entry.Stored = &s
		}
		var override *models.AttendanceStatus
		if status, ok := overrides[enrollment.StudentID]; ok {
			o := status
			override = &o
			entry.Overridden = true
		}
		entry.Effective = Effective(entry.Stored, override)
		entries = append(entries, entry)
	}
	return entries
}

// FullyCancelled reports whether every non-overridden student of the roster
// carries CC. A roster without such students is never fully cancelled.
func FullyCancelled(entries []models.SessionRosterEntry) bool {
	counted := 0
	for _, entry := range entries {
		if entry.Overridden {
			continue
		}
		if entry.Stored == nil || *entry.Stored != models.AttendanceStatusCancelled {
			return false
		}
		counted++
	}
	return counted > 0
}

// View assembles the session view. The explicit state and the derived
// predicate are reported side by side; Consistent is false when they disagree.
func View(key models.SessionKey, cancellation *models.SessionCancellation, enrollments []models.Enrollment, records []models.AttendanceRecord, overrides map[string]models.AttendanceStatus) models.SessionView {
	entries := Roster(enrollments, records, overrides)
	state := StateOf(cancellation)
	fully := FullyCancelled(entries)
	return models.SessionView{
		Key:            key,
		State:          state,
		Cancellation:   cancellation,
		FullyCancelled: fully,
		Consistent:     (state == models.SessionCancelled) == fully,
		Students:       entries,
	}
}

// CancellationTargets lists the students that receive CC when the whole
// session is cancelled or restored: enrolled and not overridden.
func CancellationTargets(enrollments []models.Enrollment, overrides map[string]models.AttendanceStatus) []string {
	targets := make([]string, 0, len(enrollments))
	for _, enrollment := range enrollments {
		if !enrollment.Active() {
			continue
		}
		if _, overridden := overrides[enrollment.StudentID]; overridden {
			continue
		}
		targets = append(targets, enrollment.StudentID)
	}
	return targets
}
