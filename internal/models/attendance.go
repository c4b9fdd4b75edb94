package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent   AttendanceStatus = "P"
	AttendanceStatusAbsent    AttendanceStatus = "A"
	AttendanceStatusLate      AttendanceStatus = "L"
	AttendanceStatusExcused   AttendanceStatus = "E"
	AttendanceStatusCancelled AttendanceStatus = "CC"
	AttendanceStatusDropped   AttendanceStatus = "D"
	AttendanceStatusFailedAbs AttendanceStatus = "FA"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusExcused,
		AttendanceStatusCancelled, AttendanceStatusDropped, AttendanceStatusFailedAbs:
		return true
	default:
		return false
	}
}

// Markable reports whether the status may be written by per-session marking.
func (s AttendanceStatus) Markable() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status is a schedule-wide override (D / FA).
func (s AttendanceStatus) Terminal() bool {
	return s == AttendanceStatusDropped || s == AttendanceStatusFailedAbs
}

// SessionType distinguishes lecture and laboratory meetings.
type SessionType string

const (
	SessionLecture SessionType = "lecture"
	SessionLab     SessionType = "lab"
)

// SessionTypes lists both session types.
var SessionTypes = []SessionType{SessionLecture, SessionLab}

// Valid returns true when the session type is supported.
func (t SessionType) Valid() bool {
	return t == SessionLecture || t == SessionLab
}

// BulkOperationMode controls how bulk writes behave on errors.
type BulkOperationMode string

const (
	BulkModeAtomic         BulkOperationMode = "atomic"
	BulkModePartialOnError BulkOperationMode = "partialOnError"
)

// SessionKey addresses one meeting of a schedule.
type SessionKey struct {
	ScheduleID  string      `db:"schedule_id" json:"schedule_id"`
	SessionType SessionType `db:"session_type" json:"session_type"`
	Week        int         `db:"week" json:"week"`
}

// AttendanceRecord is the stored status of a student for one session.
type AttendanceRecord struct {
	ID          string           `db:"id" json:"id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	ScheduleID  string           `db:"schedule_id" json:"schedule_id"`
	SessionType SessionType      `db:"session_type" json:"session_type"`
	Week        int              `db:"week" json:"week"`
	Status      AttendanceStatus `db:"status" json:"status"`
	Remarks     *string          `db:"remarks" json:"remarks,omitempty"`
	RecordedBy  string           `db:"recorded_by" json:"recorded_by"`
	Date        time.Time        `db:"date" json:"date"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// Key returns the session the record belongs to.
func (r AttendanceRecord) Key() SessionKey {
	return SessionKey{ScheduleID: r.ScheduleID, SessionType: r.SessionType, Week: r.Week}
}

// SessionCancellation exists while a session is cancelled.
type SessionCancellation struct {
	ID          string      `db:"id" json:"id"`
	ScheduleID  string      `db:"schedule_id" json:"schedule_id"`
	SessionType SessionType `db:"session_type" json:"session_type"`
	Week        int         `db:"week" json:"week"`
	Reason      string      `db:"reason" json:"reason"`
	CancelledBy string      `db:"cancelled_by" json:"cancelled_by"`
	CancelledAt time.Time   `db:"cancelled_at" json:"cancelled_at"`
}

// SessionState is the explicit state of a session.
type SessionState string

const (
	SessionActive    SessionState = "Active"
	SessionCancelled SessionState = "Cancelled"
)

// SessionRosterEntry is the effective status of one student in a session.
type SessionRosterEntry struct {
	StudentID   string            `json:"student_id"`
	StudentName string            `json:"student_name"`
	Stored      *AttendanceStatus `json:"stored_status,omitempty"`
	Effective   *AttendanceStatus `json:"effective_status,omitempty"`
	Overridden  bool              `json:"overridden"`
}

// SessionView reports both cancellation signals of a session side by side.
type SessionView struct {
	Key            SessionKey           `json:"key"`
	State          SessionState         `json:"state"`
	Cancellation   *SessionCancellation `json:"cancellation,omitempty"`
	FullyCancelled bool                 `json:"fully_cancelled"`
	Consistent     bool                 `json:"consistent"`
	Students       []SessionRosterEntry `json:"students"`
}

// AttendanceCell is one (session type, week) slot in a student's grid.
type AttendanceCell struct {
	SessionType SessionType       `json:"session_type"`
	Week        int               `json:"week"`
	Status      *AttendanceStatus `json:"status,omitempty"`
	Cancelled   bool              `json:"cancelled"`
}

// AttendanceSummary counts effective statuses. Rate is nil while the student
// carries a terminal override or has no countable sessions.
type AttendanceSummary struct {
	Present        int      `json:"present"`
	Absent         int      `json:"absent"`
	Late           int      `json:"late"`
	Excused        int      `json:"excused"`
	Cancelled      int      `json:"cancelled"`
	Dropped        int      `json:"dropped"`
	FailedAbsences int      `json:"failed_absences"`
	Unmarked       int      `json:"unmarked"`
	Rate           *float64 `json:"rate"`
}

// StudentAttendance is a student's full attendance sheet for a schedule.
type StudentAttendance struct {
	StudentID  string            `json:"student_id"`
	ScheduleID string            `json:"schedule_id"`
	Override   *AttendanceStatus `json:"override,omitempty"`
	Cells      []AttendanceCell  `json:"cells"`
	Summary    AttendanceSummary `json:"summary"`
}

// AttendanceWriteFailure reports one failed write of a bulk operation.
type AttendanceWriteFailure struct {
	StudentID   string      `json:"student_id"`
	SessionType SessionType `json:"session_type"`
	Week        int         `json:"week"`
	Reason      string      `json:"reason"`
}

// BulkAttendanceResult summarises a fan-out of attendance writes.
type BulkAttendanceResult struct {
	Processed int                      `json:"processed"`
	Success   int                      `json:"success"`
	Failures  []AttendanceWriteFailure `json:"failures,omitempty"`
}
