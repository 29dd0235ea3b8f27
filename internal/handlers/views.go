package handlers

import (
	"time"

	"familytasks/internal/models"
)

type UserView struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	FullName    string `json:"full_name,omitempty"`
	DisplayName string `json:"display_name"`
}

type GroupView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type MemberView struct {
	User     UserView  `json:"user"`
	JoinedAt time.Time `json:"joined_at"`
}

type InvitationView struct {
	ID           string    `json:"id"`
	GroupID      string    `json:"group_id"`
	GroupName    string    `json:"group_name,omitempty"`
	InviterID    string    `json:"inviter_id"`
	InviterName  string    `json:"inviter_name,omitempty"`
	InviterEmail string    `json:"inviter_email,omitempty"`
	InviteeEmail string    `json:"invitee_email"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

type TaskView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Priority    string    `json:"priority"`
	Category    string    `json:"category"`
	DueDate     time.Time `json:"due_date"`
	Completed   bool      `json:"completed"`
	OwnerUserID string    `json:"owner_user_id"`
	GroupID     *string   `json:"group_id"`
	GroupName   string    `json:"group_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type AssignmentView struct {
	TaskID           string    `json:"task_id"`
	UserID           string    `json:"user_id"`
	AssignedByUserID string    `json:"assigned_by_user_id"`
	CreatedAt        time.Time `json:"created_at"`
}

type AssignedTaskView struct {
	Task       TaskView  `json:"task"`
	AssignedBy UserView  `json:"assigned_by"`
	AssignedAt time.Time `json:"assigned_at"`
}

type StatsView struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Overdue   int `json:"overdue"`
	DueSoon   int `json:"due_soon"`
}

type ScopeView struct {
	Scope string `json:"scope"`
}

func newUserView(u *models.User) UserView {
	return UserView{ID: u.ID, Email: u.Email, FullName: u.FullName, DisplayName: u.DisplayName()}
}

func newGroupViews(groups []models.FamilyGroup) []GroupView {
	views := make([]GroupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, GroupView{ID: g.ID, Name: g.Name, CreatedAt: g.CreatedAt})
	}
	return views
}

func newMemberViews(members []models.GroupMember) []MemberView {
	views := make([]MemberView, 0, len(members))
	for i := range members {
		views = append(views, MemberView{
			User:     newUserView(&members[i].User),
			JoinedAt: members[i].Membership.JoinedAt,
		})
	}
	return views
}

func newInvitationView(inv *models.Invitation) InvitationView {
	return InvitationView{
		ID:           inv.ID,
		GroupID:      inv.GroupID,
		GroupName:    inv.GroupName,
		InviterID:    inv.InviterID,
		InviterName:  inv.InviterName,
		InviterEmail: inv.InviterMail,
		InviteeEmail: inv.InviteeEmail,
		Status:       string(inv.Status),
		CreatedAt:    inv.CreatedAt,
	}
}

func newInvitationViews(invs []models.Invitation) []InvitationView {
	views := make([]InvitationView, 0, len(invs))
	for i := range invs {
		views = append(views, newInvitationView(&invs[i]))
	}
	return views
}

func newTaskView(t *models.Task) TaskView {
	return TaskView{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    string(t.Priority),
		Category:    string(t.Category),
		DueDate:     t.DueDate,
		Completed:   t.Completed,
		OwnerUserID: t.OwnerUserID,
		GroupID:     t.GroupID,
		GroupName:   t.GroupName,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func newTaskViews(tasks []models.Task) []TaskView {
	views := make([]TaskView, 0, len(tasks))
	for i := range tasks {
		views = append(views, newTaskView(&tasks[i]))
	}
	return views
}

func newAssignedTaskViews(assigned []models.AssignedTask) []AssignedTaskView {
	views := make([]AssignedTaskView, 0, len(assigned))
	for i := range assigned {
		a := &assigned[i]
		views = append(views, AssignedTaskView{
			Task:       newTaskView(&a.Task),
			AssignedBy: newUserView(&a.AssignedBy),
			AssignedAt: a.Assignment.CreatedAt,
		})
	}
	return views
}
