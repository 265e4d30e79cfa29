package reset

import "time"

// Window is the half-open interval [Start, End) describing one task day for
// a user, anchored at their configured reset time. All boundaries are UTC.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(w.Start) && t.Before(w.End)
}

// Status classifies a task against a reset window.
type Status int

const (
	// StatusActive marks a task that belongs to the current window: either
	// pending, or completed within the window.
	StatusActive Status = iota
	// StatusCarriedOver marks a task completed in a prior window that keeps
	// its completion because its due date is still pending.
	StatusCarriedOver
	// StatusReset marks a task completed in a prior window whose completion
	// must be revoked.
	StatusReset
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusCarriedOver:
		return "carried_over"
	case StatusReset:
		return "reset"
	default:
		return "unknown"
	}
}

// TaskState is the minimal view of a task the classifier needs. DueDate is a
// calendar date stored as midnight UTC.
type TaskState struct {
	Completed   bool
	CompletedAt *time.Time
	DueDate     *time.Time
}

// WindowFor resolves the reset window containing now for a user with the
// given reset time. The window starts at the most recent reset instant at or
// before now and ends exactly one day later, so windows tile time with no
// gaps or overlaps, including across month and year boundaries.
//
// resetHour and resetMinute are assumed valid; ranges are enforced where the
// user sets them.
func WindowFor(resetHour, resetMinute int, now time.Time) Window {
	now = now.UTC()
	anchor := time.Date(now.Year(), now.Month(), now.Day(), resetHour, resetMinute, 0, 0, time.UTC)
	if now.Before(anchor) {
		anchor = anchor.AddDate(0, 0, -1)
	}
	return Window{Start: anchor, End: anchor.AddDate(0, 0, 1)}
}

// Classify decides how a task relates to the current window. It is a pure
// function: callers apply the resulting mutation (for StatusReset, clearing
// the completion flag and CompletedAt) either lazily at read time or as a
// batch sweep, and both paths agree because both go through here.
func Classify(task TaskState, w Window, now time.Time) Status {
	if !task.Completed || task.CompletedAt == nil {
		return StatusActive
	}
	if !task.CompletedAt.UTC().Before(w.Start) {
		return StatusActive
	}
	if task.DueDate != nil && !task.DueDate.UTC().Before(DayOf(now)) {
		return StatusCarriedOver
	}
	return StatusReset
}

// IsOverdue reports whether the task's due date lies strictly before now's
// UTC date and the task is not completed. Overdue detection is independent
// of reset windows.
func IsOverdue(task TaskState, now time.Time) bool {
	if task.DueDate == nil || task.Completed {
		return false
	}
	return task.DueDate.UTC().Before(DayOf(now))
}

// DayOf truncates an instant to its UTC calendar date (midnight UTC).
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
