// Package visibility decides which tasks a user sees in a scope and derives
// the filtered and sorted views shown on top of that set. Everything here is
// pure: no storage, no clock reads.
package visibility

import (
	"slices"
	"time"

	"familytasks/internal/models"
)

// DueSoonWindow is the horizon used for the "due soon" statistic
const DueSoonWindow = 24 * time.Hour

// VisibleTasks returns the tasks belonging to scope. A group scope keeps
// every task of that group regardless of owner; the personal scope keeps
// only userID's ungrouped tasks.
func VisibleTasks(scope models.Scope, userID string, tasks []models.Task) []models.Task {
	groupID, inGroup := scope.GroupID()
	return filter(tasks, func(t *models.Task) bool {
		if inGroup {
			return t.InGroup(groupID)
		}
		return t.IsPersonal() && t.OwnerUserID == userID
	})
}

// AssignedToMe returns the tasks referenced by userID's assignments, in
// task order, independent of any scope
func AssignedToMe(assignments []models.TaskAssignment, tasks []models.Task, userID string) []models.Task {
	mine := make(map[string]struct{})
	for _, a := range assignments {
		if a.UserID == userID {
			mine[a.TaskID] = struct{}{}
		}
	}
	return filter(tasks, func(t *models.Task) bool {
		_, ok := mine[t.ID]
		return ok
	})
}

// Completed returns the completed tasks
func Completed(tasks []models.Task) []models.Task {
	return filter(tasks, func(t *models.Task) bool { return t.Completed })
}

// Overdue returns open tasks whose due date has passed
func Overdue(tasks []models.Task, now time.Time) []models.Task {
	return filter(tasks, func(t *models.Task) bool { return isOverdue(t, now) })
}

// DueWithin returns tasks due in [now, now+window)
func DueWithin(tasks []models.Task, now time.Time, window time.Duration) []models.Task {
	return filter(tasks, func(t *models.Task) bool { return isDueWithin(t, now, window) })
}

// DueOn returns tasks whose due date falls on day's calendar date, read in
// day's location. Time of day is ignored on both sides.
func DueOn(tasks []models.Task, day time.Time) []models.Task {
	y, m, d := day.Date()
	return filter(tasks, func(t *models.Task) bool {
		ty, tm, td := t.DueDate.In(day.Location()).Date()
		return ty == y && tm == m && td == d
	})
}

// SortByDueDate returns a copy of tasks ordered by due date ascending.
// Tasks with equal due dates keep their input order.
func SortByDueDate(tasks []models.Task) []models.Task {
	sorted := slices.Clone(tasks)
	slices.SortStableFunc(sorted, func(a, b models.Task) int {
		return a.DueDate.Compare(b.DueDate)
	})
	return sorted
}

// SortByPriority returns a copy of tasks ordered high, medium, low.
// Tasks with equal priority keep their input order.
func SortByPriority(tasks []models.Task) []models.Task {
	sorted := slices.Clone(tasks)
	slices.SortStableFunc(sorted, func(a, b models.Task) int {
		return b.Priority.Rank() - a.Priority.Rank()
	})
	return sorted
}

// Stats summarizes tasks as of now
func Stats(tasks []models.Task, now time.Time) models.TaskStats {
	stats := models.TaskStats{Total: len(tasks)}
	for i := range tasks {
		t := &tasks[i]
		switch {
		case t.Completed:
			stats.Completed++
		case isOverdue(t, now):
			stats.Overdue++
		case isDueWithin(t, now, DueSoonWindow):
			stats.DueSoon++
		}
	}
	return stats
}

func isOverdue(t *models.Task, now time.Time) bool {
	return !t.Completed && t.DueDate.Before(now)
}

func isDueWithin(t *models.Task, now time.Time, window time.Duration) bool {
	return !t.DueDate.Before(now) && t.DueDate.Before(now.Add(window))
}

func filter(tasks []models.Task, keep func(*models.Task) bool) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	for i := range tasks {
		if keep(&tasks[i]) {
			out = append(out, tasks[i])
		}
	}
	return out
}
