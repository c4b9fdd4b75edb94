package models

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusWithdrawn EnrollmentStatus = "WITHDRAWN"
)

// Enrollment places a student on a schedule's roster.
type Enrollment struct {
	ID          string           `db:"id" json:"id"`
	ScheduleID  string           `db:"schedule_id" json:"schedule_id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	StudentName string           `db:"student_name" json:"student_name"`
	Status      EnrollmentStatus `db:"status" json:"status"`
}

// Active reports whether the student is still on the roster.
func (e Enrollment) Active() bool {
	return e.Status == "" || e.Status == EnrollmentStatusActive
}
