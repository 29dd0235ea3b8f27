package repository

import (
	"context"
	"fmt"

	"familytasks/internal/database"
	"familytasks/internal/models"
)

// AssignmentRepository handles database operations for task assignments
type AssignmentRepository struct {
	db *database.DB
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *database.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// AssignTask records an assignment. Assigning the same user twice is a
// no-op; the return value reports whether a row was created.
func (r *AssignmentRepository) AssignTask(ctx context.Context, a *models.TaskAssignment) (bool, error) {
	a.CreatedAt = orNow(a.CreatedAt)
	query := r.db.GetDialect().InsertIgnore(
		"INSERT INTO task_assignments (task_id, user_id, assigned_by, created_at) VALUES (?, ?, ?, ?)")
	result, err := r.db.ExecContext(ctx, query, a.TaskID, a.UserID, a.AssignedByUserID, a.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to assign task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// ListForUser retrieves the assignment rows addressed to a user
func (r *AssignmentRepository) ListForUser(ctx context.Context, userID string) ([]models.TaskAssignment, error) {
	query := `SELECT task_id, user_id, assigned_by, created_at FROM task_assignments
		WHERE user_id = ? ORDER BY created_at DESC, task_id DESC`
	return r.list(ctx, query, userID)
}

func (r *AssignmentRepository) list(ctx context.Context, query string, args ...any) ([]models.TaskAssignment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []models.TaskAssignment
	for rows.Next() {
		var a models.TaskAssignment
		if err := rows.Scan(&a.TaskID, &a.UserID, &a.AssignedByUserID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// ListAssignedTasks retrieves the tasks assigned to a user together with
// the assigning user's profile, most recent assignment first
func (r *AssignmentRepository) ListAssignedTasks(ctx context.Context, userID string) ([]models.AssignedTask, error) {
	query := `
		SELECT a.task_id, a.user_id, a.assigned_by, a.created_at,
		` + taskColumns + `,
		       COALESCE(p.id, ''), COALESCE(p.email, ''), COALESCE(p.full_name, '')
		FROM task_assignments a
		INNER JOIN tasks t ON t.id = a.task_id
		LEFT JOIN family_groups g ON g.id = t.family_group_id
		LEFT JOIN profiles p ON p.id = a.assigned_by
		WHERE a.user_id = ?
		ORDER BY a.created_at DESC, a.task_id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assigned tasks: %w", err)
	}
	defer rows.Close()

	var assigned []models.AssignedTask
	for rows.Next() {
		var at models.AssignedTask
		a := &at.Assignment
		task, err := scanTask(framedScanner{
			row:  rows,
			head: []any{&a.TaskID, &a.UserID, &a.AssignedByUserID, &a.CreatedAt},
			tail: []any{&at.AssignedBy.ID, &at.AssignedBy.Email, &at.AssignedBy.FullName},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan assigned task: %w", err)
		}
		at.Task = *task
		assigned = append(assigned, at)
	}
	return assigned, rows.Err()
}

// framedScanner lets a row scanner for one table read a joined row whose
// columns are surrounded by other tables' columns
type framedScanner struct {
	row  rowScanner
	head []any
	tail []any
}

func (f framedScanner) Scan(dest ...any) error {
	all := make([]any, 0, len(f.head)+len(dest)+len(f.tail))
	all = append(all, f.head...)
	all = append(all, dest...)
	all = append(all, f.tail...)
	return f.row.Scan(all...)
}
