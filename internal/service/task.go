package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"familytasks/internal/apperr"
	"familytasks/internal/models"
	"familytasks/internal/realtime"
	"familytasks/internal/validation"
	"familytasks/internal/visibility"
)

// TaskInput holds user-supplied fields of a new task
type TaskInput struct {
	Title       string
	Description string
	Priority    string
	Category    string
	DueDate     time.Time
}

// TaskView selects a derived view of a scope's tasks
type TaskView string

const (
	ViewAll       TaskView = "all"
	ViewCompleted TaskView = "completed"
	ViewOverdue   TaskView = "overdue"
	ViewDue       TaskView = "due"
	ViewAssigned  TaskView = "assigned"
)

// TaskSort selects the order of a task list
type TaskSort string

const (
	SortNewest   TaskSort = ""
	SortDueDate  TaskSort = "due"
	SortPriority TaskSort = "priority"
)

// TaskQuery describes which tasks of a scope to list and how
type TaskQuery struct {
	View   TaskView
	Within time.Duration // window for ViewDue; defaults to a day
	Sort   TaskSort
}

// TaskService reads and mutates tasks within a scope
type TaskService struct {
	tasks       TaskStore
	assignments AssignmentStore
	profiles    ProfileStore
	members     *MembershipService
	feed        *TaskFeed
	hub         realtime.Hub
	logger      *zap.Logger
	now         func() time.Time
}

// NewTaskService creates a new task service
func NewTaskService(
	tasks TaskStore,
	assignments AssignmentStore,
	profiles ProfileStore,
	members *MembershipService,
	feed *TaskFeed,
	hub realtime.Hub,
	logger *zap.Logger,
) *TaskService {
	return &TaskService{
		tasks:       tasks,
		assignments: assignments,
		profiles:    profiles,
		members:     members,
		feed:        feed,
		hub:         hub,
		logger:      orNop(logger).Named("tasks"),
		now:         time.Now,
	}
}

// CreateTask creates a task owned by userID in scope
func (s *TaskService) CreateTask(ctx context.Context, userID string, scope models.Scope, in TaskInput) (*models.Task, error) {
	if err := validation.RequireID("user_id", userID); err != nil {
		return nil, err
	}
	if err := validation.ValidateTaskTitle(in.Title); err != nil {
		return nil, err
	}
	priority, err := models.ParsePriority(strings.ToLower(strings.TrimSpace(in.Priority)))
	if err != nil {
		return nil, apperr.Validation("priority: " + err.Error())
	}
	category, err := models.ParseCategory(strings.ToLower(strings.TrimSpace(in.Category)))
	if err != nil {
		return nil, apperr.Validation("category: " + err.Error())
	}
	if in.DueDate.IsZero() {
		return nil, apperr.Validation("due_date: due date is required")
	}
	if err := s.members.RequireScope(ctx, userID, scope); err != nil {
		return nil, err
	}

	task := &models.Task{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Priority:    priority,
		Category:    category,
		DueDate:     in.DueDate,
		OwnerUserID: userID,
	}
	if groupID, ok := scope.GroupID(); ok {
		task.GroupID = &groupID
	}

	if err := s.tasks.CreateTask(ctx, task); err != nil {
		return nil, classify("create task", err, ErrGroupNotFound)
	}

	s.feed.Apply(userID, scope, upsertTask(*task))
	s.logger.Info("Task created", zap.String("task_id", task.ID), zap.String("scope", scope.String()))
	notify(ctx, s.hub, s.logger, taskChange(task))
	return task, nil
}

// ListTasks returns the tasks userID sees in scope, filtered and sorted by q
func (s *TaskService) ListTasks(ctx context.Context, userID string, scope models.Scope, q TaskQuery) ([]models.Task, error) {
	tasks, err := s.scopeTasks(ctx, userID, scope)
	if err != nil {
		return nil, err
	}

	now := s.now()
	switch q.View {
	case ViewAll, "":
	case ViewCompleted:
		tasks = visibility.Completed(tasks)
	case ViewOverdue:
		tasks = visibility.Overdue(tasks, now)
	case ViewDue:
		within := q.Within
		if within <= 0 {
			within = visibility.DueSoonWindow
		}
		tasks = visibility.DueWithin(tasks, now, within)
	case ViewAssigned:
		assignments, err := s.assignments.ListForUser(ctx, userID)
		if err != nil {
			return nil, classify("list assignments", err, nil)
		}
		tasks = visibility.AssignedToMe(assignments, tasks, userID)
	default:
		return nil, apperr.Validation("view: unknown view " + string(q.View))
	}

	switch q.Sort {
	case SortNewest:
	case SortDueDate:
		tasks = visibility.SortByDueDate(tasks)
	case SortPriority:
		tasks = visibility.SortByPriority(tasks)
	default:
		return nil, apperr.Validation("sort: unknown sort " + string(q.Sort))
	}
	return tasks, nil
}

// Stats summarizes the tasks userID sees in scope
func (s *TaskService) Stats(ctx context.Context, userID string, scope models.Scope) (models.TaskStats, error) {
	tasks, err := s.scopeTasks(ctx, userID, scope)
	if err != nil {
		return models.TaskStats{}, err
	}
	return visibility.Stats(tasks, s.now()), nil
}

// Calendar returns the tasks of scope due on day's calendar date, earliest first
func (s *TaskService) Calendar(ctx context.Context, userID string, scope models.Scope, day time.Time) ([]models.Task, error) {
	tasks, err := s.scopeTasks(ctx, userID, scope)
	if err != nil {
		return nil, err
	}
	return visibility.SortByDueDate(visibility.DueOn(tasks, day)), nil
}

func (s *TaskService) scopeTasks(ctx context.Context, userID string, scope models.Scope) ([]models.Task, error) {
	if err := validation.RequireID("user_id", userID); err != nil {
		return nil, err
	}
	if err := s.members.RequireScope(ctx, userID, scope); err != nil {
		return nil, err
	}
	tasks, err := s.feed.Tasks(ctx, userID, scope)
	if err != nil {
		return nil, err
	}
	return visibility.VisibleTasks(scope, userID, tasks), nil
}

// SetCompleted sets a task's completion flag. Any user who can see the task
// may change it.
func (s *TaskService) SetCompleted(ctx context.Context, userID, taskID string, completed bool) (*models.Task, error) {
	if err := s.requireAccess(ctx, userID, taskID); err != nil {
		return nil, err
	}

	found, err := s.tasks.SetCompleted(ctx, taskID, completed)
	if err != nil {
		return nil, classify("update task", err, ErrTaskNotFound)
	}
	if !found {
		return nil, ErrTaskNotFound
	}

	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, classify("get task", err, ErrTaskNotFound)
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}

	s.feed.Apply(task.OwnerUserID, taskScope(task), upsertTask(*task))
	notify(ctx, s.hub, s.logger, taskChange(task))
	return task, nil
}

// AssignTask assigns a task to assigneeID. Group tasks may be assigned to
// members of the group by any member; personal tasks only by their owner.
func (s *TaskService) AssignTask(ctx context.Context, actingUserID, taskID, assigneeID string) (*models.TaskAssignment, error) {
	if err := validation.RequireID("assignee_id", assigneeID); err != nil {
		return nil, err
	}
	if err := s.requireAccess(ctx, actingUserID, taskID); err != nil {
		return nil, err
	}

	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, classify("get task", err, ErrTaskNotFound)
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}

	if groupID, ok := taskScope(task).GroupID(); ok {
		if err := s.members.RequireMember(ctx, actingUserID, groupID); err != nil {
			return nil, err
		}
		if err := s.members.RequireMember(ctx, assigneeID, groupID); err != nil {
			return nil, apperr.Validation("assignee_id: assignee is not a member of the task's family group")
		}
	} else {
		if task.OwnerUserID != actingUserID {
			return nil, apperr.ErrForbidden
		}
		assignee, err := s.profiles.GetUserByID(ctx, assigneeID)
		if err != nil {
			return nil, classify("get profile", err, nil)
		}
		if assignee == nil {
			return nil, apperr.NotFound("assignee not found")
		}
	}

	assignment := &models.TaskAssignment{TaskID: taskID, UserID: assigneeID, AssignedByUserID: actingUserID}
	if _, err := s.assignments.AssignTask(ctx, assignment); err != nil {
		return nil, classify("assign task", err, ErrTaskNotFound)
	}

	s.logger.Info("Task assigned", zap.String("task_id", taskID), zap.String("assignee_id", assigneeID))
	change := taskChange(task)
	change.Entity = realtime.EntityAssignments
	notify(ctx, s.hub, s.logger, change)
	return assignment, nil
}

// ListAssigned returns the tasks assigned to userID across every scope
func (s *TaskService) ListAssigned(ctx context.Context, userID string) ([]models.AssignedTask, error) {
	if err := validation.RequireID("user_id", userID); err != nil {
		return nil, err
	}
	assigned, err := s.assignments.ListAssignedTasks(ctx, userID)
	if err != nil {
		return nil, classify("list assigned tasks", err, nil)
	}
	return assigned, nil
}

// DueOn returns the open tasks userID can see or was assigned, due on
// day's calendar date
func (s *TaskService) DueOn(ctx context.Context, userID string, day time.Time) ([]models.Task, error) {
	visible, err := s.tasks.ListVisible(ctx, userID)
	if err != nil {
		return nil, classify("list tasks", err, nil)
	}
	assigned, err := s.ListAssigned(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(visible))
	for _, t := range visible {
		seen[t.ID] = struct{}{}
	}
	for _, a := range assigned {
		if _, ok := seen[a.Task.ID]; !ok {
			visible = append(visible, a.Task)
		}
	}

	due := visibility.DueOn(visible, day)
	open := due[:0]
	for _, t := range due {
		if !t.Completed {
			open = append(open, t)
		}
	}
	return visibility.SortByDueDate(open), nil
}

func (s *TaskService) requireAccess(ctx context.Context, userID, taskID string) error {
	if err := validation.RequireID("user_id", userID); err != nil {
		return err
	}
	if err := validation.RequireID("task_id", taskID); err != nil {
		return err
	}
	ok, err := s.tasks.CanAccess(ctx, taskID, userID)
	if err != nil {
		return classify("check task access", err, nil)
	}
	if !ok {
		return ErrTaskNotFound
	}
	return nil
}

// taskChange addresses a task change to the feed entry holding the task:
// its group, or its owner's personal list
func taskChange(task *models.Task) realtime.Change {
	change := realtime.Change{Entity: realtime.EntityTasks, UserID: task.OwnerUserID}
	if task.GroupID != nil {
		change.GroupID = *task.GroupID
	}
	return change
}

func taskScope(task *models.Task) models.Scope {
	if task.GroupID != nil {
		return models.GroupScope(*task.GroupID)
	}
	return models.PersonalScope()
}
