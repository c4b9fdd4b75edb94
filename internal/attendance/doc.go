// Package attendance holds the rules of the attendance sheet: the per-session
// Active/Cancelled state machine, the derived "fully cancelled" predicate and
// the precedence of schedule-wide Dropped / Failed-for-Absences overrides over
// per-session statuses. Persistence lives in the repository and service
// layers.
package attendance
