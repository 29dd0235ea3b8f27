package models

import (
	"fmt"
	"time"
)

// Priority of a task
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank orders priorities: high > medium > low. Unknown values rank lowest.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// ParsePriority converts user input into a Priority
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(s); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	}
	return "", fmt.Errorf("invalid priority %q", s)
}

// Category of a task
type Category string

const (
	CategoryHome     Category = "home"
	CategorySchool   Category = "school"
	CategoryShopping Category = "shopping"
	CategoryOther    Category = "other"
)

// ParseCategory converts user input into a Category
func ParseCategory(s string) (Category, error) {
	switch c := Category(s); c {
	case CategoryHome, CategorySchool, CategoryShopping, CategoryOther:
		return c, nil
	}
	return "", fmt.Errorf("invalid category %q", s)
}

// Task is a unit of work owned by a user, optionally shared with a family group
type Task struct {
	ID          string
	Title       string
	Description string
	Priority    Priority
	Category    Category
	DueDate     time.Time
	Completed   bool
	OwnerUserID string
	GroupID     *string // nil for a personal task
	CreatedAt   time.Time
	UpdatedAt   time.Time

	GroupName string // Populated via JOIN
}

// IsPersonal reports whether the task belongs to no family group
func (t *Task) IsPersonal() bool {
	return t.GroupID == nil
}

// InGroup reports whether the task belongs to the given group
func (t *Task) InGroup(groupID string) bool {
	return t.GroupID != nil && *t.GroupID == groupID
}

// TaskAssignment links a task to a user other than its owner
type TaskAssignment struct {
	TaskID           string
	UserID           string
	AssignedByUserID string
	CreatedAt        time.Time
}

// AssignedTask is an assignment joined with its task and the assigner's profile
type AssignedTask struct {
	Assignment TaskAssignment
	Task       Task
	AssignedBy User
}

// TaskStats summarizes a task collection
type TaskStats struct {
	Total     int
	Completed int
	Overdue   int
	DueSoon   int
}
