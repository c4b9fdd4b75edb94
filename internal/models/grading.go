package models

import "time"

// Class types select the grading weight table of a schedule.
const (
	ClassTypeLecture    = "LECTURE"
	ClassTypeLectureLab = "LECTURE+LAB"
	ClassTypeMajor      = "MAJOR"
	ClassTypeNSTP       = "NSTP"
	ClassTypeOJT        = "OJT"
)

// ClassTypes lists the supported class types in display order.
var ClassTypes = []string{ClassTypeLecture, ClassTypeLectureLab, ClassTypeMajor, ClassTypeNSTP, ClassTypeOJT}

// Term is a grading period.
type Term string

const (
	TermMidterm Term = "midterm"
	TermFinal   Term = "final"
)

// Valid returns true when the term is supported.
func (t Term) Valid() bool {
	return t == TermMidterm || t == TermFinal
}

// Config sources reported with a resolved grading config.
const (
	ConfigSourceStored  = "stored"
	ConfigSourceDefault = "default"
)

// GradingComponent is one weighted category of a grading config.
type GradingComponent struct {
	ClassType string  `db:"class_type" json:"-"`
	Position  int     `db:"position" json:"-"`
	Name      string  `db:"name" json:"name"`
	Weight    float64 `db:"weight" json:"weight"`
	Items     int     `db:"items" json:"items"`
	MaxScore  float64 `db:"max_score" json:"max_score"`
}

// GradingConfig is the resolved component list for a class type.
type GradingConfig struct {
	ClassType  string             `json:"class_type"`
	Source     string             `json:"source"`
	Components []GradingComponent `json:"components"`
	UpdatedBy  *string            `json:"updated_by,omitempty"`
	UpdatedAt  *time.Time         `json:"updated_at,omitempty"`
}

// GradeItem is a raw score for one item of a component.
type GradeItem struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	ScheduleID string    `db:"schedule_id" json:"schedule_id"`
	Term       Term      `db:"term" json:"term"`
	Component  string    `db:"component" json:"component"`
	ItemNumber int       `db:"item_number" json:"item_number"`
	Score      float64   `db:"score" json:"score"`
	MaxScore   float64   `db:"max_score" json:"max_score"`
	RecordedBy string    `db:"recorded_by" json:"recorded_by"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// MaxScoreKey addresses one item column of a schedule's class record.
type MaxScoreKey struct {
	ScheduleID string `db:"schedule_id" json:"schedule_id"`
	Component  string `db:"component" json:"component"`
	ItemNumber int    `db:"item_number" json:"item_number"`
	Term       Term   `db:"term" json:"term"`
}

// ItemMaxScore is a stored per-item maximum score.
type ItemMaxScore struct {
	MaxScoreKey
	MaxScore  float64   `db:"max_score" json:"max_score"`
	UpdatedBy string    `db:"updated_by" json:"updated_by"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ScoreChange records one score touched by a rescale.
type ScoreChange struct {
	StudentID string  `json:"student_id"`
	Before    float64 `json:"before"`
	After     float64 `json:"after"`
}

// RescaleResult describes the outcome of a max score edit.
type RescaleResult struct {
	Key         MaxScoreKey   `json:"key"`
	PreviousMax float64       `json:"previous_max"`
	NewMax      float64       `json:"new_max"`
	Rescaled    bool          `json:"rescaled"`
	Changes     []ScoreChange `json:"changes,omitempty"`
}

// ComponentResult is the per-component breakdown of a term grade.
type ComponentResult struct {
	Name     string  `json:"name"`
	Weight   float64 `json:"weight"`
	Items    int     `json:"items"`
	Score    float64 `json:"score"`
	MaxScore float64 `json:"max_score"`
	Percent  float64 `json:"percent"`
}

// TermGrade is the derived grade of one term. GradePoint is nil when no
// weighted component has recorded items.
type TermGrade struct {
	Term            Term              `json:"term"`
	GradePoint      *float64          `json:"grade_point"`
	WeightedPercent *float64          `json:"weighted_percent"`
	Components      []ComponentResult `json:"components"`
}

// SummaryStatus is the verdict reported for a student's schedule.
type SummaryStatus string

const (
	SummaryPassed         SummaryStatus = "Passed"
	SummaryFailed         SummaryStatus = "Failed"
	SummaryIncomplete     SummaryStatus = "Incomplete"
	SummaryDropped        SummaryStatus = "Dropped"
	SummaryFailedAbsences SummaryStatus = "Failed (Absences)"
)

// GradeSummary combines both terms for a student.
type GradeSummary struct {
	StudentID    string            `json:"student_id"`
	StudentName  string            `json:"student_name,omitempty"`
	ScheduleID   string            `json:"schedule_id"`
	Midterm      TermGrade         `json:"midterm"`
	Final        TermGrade         `json:"final"`
	SummaryGrade *float64          `json:"summary_grade"`
	Status       SummaryStatus     `json:"status"`
	Override     *AttendanceStatus `json:"override,omitempty"`
}

// ClassRecord is the grade sheet of a schedule.
type ClassRecord struct {
	Schedule Schedule       `json:"schedule"`
	Config   GradingConfig  `json:"config"`
	Students []GradeSummary `json:"students"`
}
