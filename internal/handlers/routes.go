package handlers

import "net/http"

// Handlers groups the HTTP handlers served by the API
type Handlers struct {
	Account     *AccountHandler
	Groups      *GroupHandler
	Invitations *InvitationHandler
	Tasks       *TaskHandler
	Readiness   *Readiness
}

// NewRouter registers every route and wraps the mux in the shared middleware
func NewRouter(h Handlers, mw *Middleware) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", mw.RateLimitByIP(h.Readiness))

	api := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, mw.RequireAuth(fn))
	}

	api("GET /api/me", h.Account.Me)
	api("POST /api/scope", h.Account.SwitchScope)

	api("GET /api/groups", h.Groups.ListGroups)
	api("POST /api/groups", h.Groups.CreateGroup)
	api("GET /api/groups/{id}", h.Groups.GetGroup)
	api("POST /api/groups/{id}/join", h.Groups.JoinGroup)
	api("POST /api/groups/{id}/leave", h.Groups.LeaveGroup)
	api("GET /api/groups/{id}/members", h.Groups.ListMembers)
	api("POST /api/groups/{id}/invitations", h.Invitations.Invite)

	api("GET /api/invitations/received", h.Invitations.ListReceived)
	api("GET /api/invitations/sent", h.Invitations.ListSent)
	api("POST /api/invitations/{id}/accept", h.Invitations.Accept)
	api("POST /api/invitations/{id}/reject", h.Invitations.Reject)

	api("GET /api/tasks", h.Tasks.ListTasks)
	api("POST /api/tasks", h.Tasks.CreateTask)
	api("GET /api/tasks/assigned", h.Tasks.ListAssigned)
	api("GET /api/tasks/stats", h.Tasks.Stats)
	api("GET /api/tasks/calendar", h.Tasks.Calendar)
	api("POST /api/tasks/{id}/complete", h.Tasks.CompleteTask)
	api("POST /api/tasks/{id}/assign", h.Tasks.AssignTask)

	return mw.RequestID(mw.Logging(mw.Recover(mux)))
}
