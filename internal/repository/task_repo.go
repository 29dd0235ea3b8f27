package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"familytasks/internal/database"
	"familytasks/internal/models"
)

// TaskRepository handles database operations for tasks
type TaskRepository struct {
	db *database.DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *database.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `
	t.id, t.title, t.description, t.priority, t.category, t.due_date, t.completed,
	t.user_id, t.family_group_id, t.created_at, t.updated_at, COALESCE(g.name, '')
`

const taskFrom = `
	FROM tasks t
	LEFT JOIN family_groups g ON g.id = t.family_group_id
`

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var priority, category string
	var groupID sql.NullString
	if err := row.Scan(
		&t.ID, &t.Title, &t.Description, &priority, &category, &t.DueDate, &t.Completed,
		&t.OwnerUserID, &groupID, &t.CreatedAt, &t.UpdatedAt, &t.GroupName,
	); err != nil {
		return nil, err
	}
	t.Priority = models.Priority(priority)
	t.Category = models.Category(category)
	if groupID.Valid {
		id := groupID.String
		t.GroupID = &id
	}
	return &t, nil
}

// CreateTask stores a new task and fills in its ID and timestamps. A task
// created in a group requires the owner to be a member of that group.
func (r *TaskRepository) CreateTask(ctx context.Context, task *models.Task) error {
	task.ID = newID()
	task.CreatedAt = orNow(task.CreatedAt)
	task.UpdatedAt = task.CreatedAt
	task.DueDate = task.DueDate.UTC().Truncate(time.Microsecond)

	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		var groupID any
		if task.GroupID != nil {
			var name string
			err := tx.QueryRowContext(ctx, "SELECT name FROM family_groups WHERE id = ?", *task.GroupID).Scan(&name)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to get family group: %w", err)
			}

			member, err := isMember(ctx, tx, *task.GroupID, task.OwnerUserID)
			if err != nil {
				return err
			}
			if !member {
				return ErrPolicyDenied
			}
			task.GroupName = name
			groupID = *task.GroupID
		}

		query := `INSERT INTO tasks (id, title, description, priority, category, due_date, completed,
			user_id, family_group_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		_, err := tx.ExecContext(ctx, query,
			task.ID, task.Title, task.Description, string(task.Priority), string(task.Category),
			task.DueDate, task.Completed, task.OwnerUserID, groupID, task.CreatedAt, task.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}
		return nil
	})
}

// GetTask retrieves a task by ID
func (r *TaskRepository) GetTask(ctx context.Context, id string) (*models.Task, error) {
	query := "SELECT " + taskColumns + taskFrom + " WHERE t.id = ?"
	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// ListForScope retrieves the tasks stored under a scope, newest first.
// The personal scope holds the user's own ungrouped tasks; a group scope
// holds every task of that group.
func (r *TaskRepository) ListForScope(ctx context.Context, userID string, scope models.Scope) ([]models.Task, error) {
	if groupID, ok := scope.GroupID(); ok {
		query := "SELECT " + taskColumns + taskFrom +
			" WHERE t.family_group_id = ? ORDER BY t.created_at DESC, t.id DESC"
		return r.list(ctx, query, groupID)
	}
	query := "SELECT " + taskColumns + taskFrom +
		" WHERE t.family_group_id IS NULL AND t.user_id = ? ORDER BY t.created_at DESC, t.id DESC"
	return r.list(ctx, query, userID)
}

// ListVisible retrieves every task a user can see across all scopes:
// personal tasks plus the tasks of each group the user belongs to
func (r *TaskRepository) ListVisible(ctx context.Context, userID string) ([]models.Task, error) {
	query := "SELECT " + taskColumns + taskFrom + `
		WHERE (t.family_group_id IS NULL AND t.user_id = ?)
		   OR t.family_group_id IN (SELECT family_group_id FROM user_family_groups WHERE user_id = ?)
		ORDER BY t.created_at DESC, t.id DESC`
	return r.list(ctx, query, userID, userID)
}

// CanAccess reports whether a user may see a task: as the owner of a
// personal task, as a member of the task's group, or as an assignee
func (r *TaskRepository) CanAccess(ctx context.Context, taskID, userID string) (bool, error) {
	query := `
		SELECT COUNT(*) FROM tasks t
		WHERE t.id = ? AND (
			(t.family_group_id IS NULL AND t.user_id = ?)
			OR EXISTS (SELECT 1 FROM user_family_groups m WHERE m.family_group_id = t.family_group_id AND m.user_id = ?)
			OR EXISTS (SELECT 1 FROM task_assignments a WHERE a.task_id = t.id AND a.user_id = ?)
		)
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, taskID, userID, userID, userID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check task access: %w", err)
	}
	return count > 0, nil
}

// SetCompleted updates a task's completion flag and reports whether the task exists
func (r *TaskRepository) SetCompleted(ctx context.Context, taskID string, completed bool) (bool, error) {
	query := "UPDATE tasks SET completed = ?, updated_at = ? WHERE id = ?"
	result, err := r.db.ExecContext(ctx, query, completed, now(), taskID)
	if err != nil {
		return false, fmt.Errorf("failed to update task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (r *TaskRepository) list(ctx context.Context, query string, args ...any) ([]models.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}

	return tasks, rows.Err()
}
