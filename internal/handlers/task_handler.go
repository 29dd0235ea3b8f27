package handlers

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"familytasks/internal/apperr"
	"familytasks/internal/models"
	"familytasks/internal/service"
)

const dateLayout = "2006-01-02"

// TaskHandler handles task HTTP requests
type TaskHandler struct {
	tasks  *service.TaskService
	logger *zap.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(tasks *service.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: orNop(logger)}
}

// ListTasks returns the caller's tasks in ?scope=, filtered by ?view= and
// ordered by ?sort=
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	q := r.URL.Query()
	query := service.TaskQuery{
		View: service.TaskView(q.Get("view")),
		Sort: service.TaskSort(q.Get("sort")),
	}
	if within := q.Get("within"); within != "" {
		d, err := time.ParseDuration(within)
		if err != nil || d <= 0 {
			respondWithError(w, r, h.logger, apperr.Validation("within: expected a positive duration such as 24h"))
			return
		}
		query.Within = d
	}

	tasks, err := h.tasks.ListTasks(r.Context(), user.ID, models.ParseScope(q.Get("scope")), query)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, newTaskViews(tasks))
}

type createTaskRequest struct {
	Scope       string `json:"scope"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Category    string `json:"category"`
	DueDate     string `json:"due_date"`
}

// CreateTask creates a task in the scope named by the body
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	var due time.Time
	if req.DueDate != "" {
		due, err = parseDueDate(req.DueDate)
		if err != nil {
			respondWithError(w, r, h.logger, err)
			return
		}
	}

	task, err := h.tasks.CreateTask(r.Context(), user.ID, models.ParseScope(req.Scope), service.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Category:    req.Category,
		DueDate:     due,
	})
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, newTaskView(task))
}

type completeTaskRequest struct {
	Completed *bool `json:"completed"`
}

// CompleteTask sets the completion flag of a task; an empty body completes it
func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	var req completeTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	completed := true
	if req.Completed != nil {
		completed = *req.Completed
	}

	task, err := h.tasks.SetCompleted(r.Context(), user.ID, r.PathValue("id"), completed)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, newTaskView(task))
}

type assignTaskRequest struct {
	UserID string `json:"user_id"`
}

// AssignTask assigns the task in the path to another user
func (h *TaskHandler) AssignTask(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	var req assignTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	a, err := h.tasks.AssignTask(r.Context(), user.ID, r.PathValue("id"), req.UserID)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, AssignmentView{
		TaskID:           a.TaskID,
		UserID:           a.UserID,
		AssignedByUserID: a.AssignedByUserID,
		CreatedAt:        a.CreatedAt,
	})
}

// ListAssigned returns tasks assigned to the caller across all scopes
func (h *TaskHandler) ListAssigned(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	assigned, err := h.tasks.ListAssigned(r.Context(), user.ID)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, newAssignedTaskViews(assigned))
}

// Stats summarizes the caller's tasks in ?scope=
func (h *TaskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	stats, err := h.tasks.Stats(r.Context(), user.ID, models.ParseScope(r.URL.Query().Get("scope")))
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, StatsView{
		Total:     stats.Total,
		Completed: stats.Completed,
		Overdue:   stats.Overdue,
		DueSoon:   stats.DueSoon,
	})
}

// Calendar returns the tasks in ?scope= due on ?date= (YYYY-MM-DD).
//
// The date is a UTC day unless ?tz= says otherwise. Due dates are stored as
// instants, so a client that submitted "2024-05-10T21:00:00-05:00" finds the
// task on 2024-05-10 only with tz=-05:00 (or a zone such as America/Chicago);
// in UTC it falls on 2024-05-11.
func (h *TaskHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	q := r.URL.Query()
	loc, err := parseZone(q.Get("tz"))
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	day, err := time.ParseInLocation(dateLayout, q.Get("date"), loc)
	if err != nil {
		respondWithError(w, r, h.logger, apperr.Validation("date: expected YYYY-MM-DD"))
		return
	}

	tasks, err := h.tasks.Calendar(r.Context(), user.ID, models.ParseScope(q.Get("scope")), day)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, newTaskViews(tasks))
}

// parseZone accepts an IANA zone name or a UTC offset as written in RFC 3339
// ("-05:00", "+0530", "Z"). Empty means UTC.
func parseZone(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.UTC, nil
	}
	for _, layout := range []string{"Z07:00", "-0700"} {
		if t, err := time.Parse(layout, tz); err == nil {
			_, offset := t.Zone()
			return time.FixedZone(tz, offset), nil
		}
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, apperr.Validation("tz: unknown time zone")
	}
	return loc, nil
}

// parseDueDate accepts RFC 3339 timestamps and bare dates
func parseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, apperr.Validation("due_date: expected RFC 3339 timestamp or YYYY-MM-DD")
}
