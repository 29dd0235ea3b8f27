package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"familytasks/internal/database"
	"familytasks/internal/database/dbtest"
	"familytasks/internal/models"
)

func createProfile(t *testing.T, db *database.DB, id, email string) {
	t.Helper()
	if err := NewUserRepository(db).UpsertProfile(context.Background(), &models.User{ID: id, Email: email, FullName: id}); err != nil {
		t.Fatalf("UpsertProfile(%s) error = %v", id, err)
	}
}

func TestUpsertProfileKeepsName(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	users := NewUserRepository(db)

	if err := users.UpsertProfile(ctx, &models.User{ID: "u1", Email: "a@example.com", FullName: "Ann"}); err != nil {
		t.Fatalf("UpsertProfile() error = %v", err)
	}
	u := &models.User{ID: "u1", Email: "ann@example.com"}
	if err := users.UpsertProfile(ctx, u); err != nil {
		t.Fatalf("UpsertProfile() error = %v", err)
	}

	got, err := users.GetUserByEmail(ctx, "ann@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if got == nil || got.FullName != "Ann" {
		t.Errorf("GetUserByEmail() = %+v, want name Ann", got)
	}

	missing, err := users.GetUserByID(ctx, "nobody")
	if err != nil || missing != nil {
		t.Errorf("GetUserByID(nobody) = %v, %v, want nil, nil", missing, err)
	}
}

func TestUpsertProfileReassignedEmail(t *testing.T) {
	tests := []struct {
		name      string
		seed      []models.User
		upsert    models.User
		wantGone  string
		wantCount int
	}{
		{
			name:      "new identity reuses email",
			seed:      []models.User{{ID: "old-id", Email: "mom@example.com", FullName: "Mom"}},
			upsert:    models.User{ID: "new-id", Email: "mom@example.com", FullName: "Mom"},
			wantGone:  "old-id",
			wantCount: 1,
		},
		{
			name: "existing identity takes email",
			seed: []models.User{
				{ID: "u1", Email: "a@example.com", FullName: "Ann"},
				{ID: "u2", Email: "b@example.com", FullName: "Bea"},
			},
			upsert:    models.User{ID: "u1", Email: "b@example.com"},
			wantGone:  "u2",
			wantCount: 1,
		},
		{
			name:      "unrelated profiles untouched",
			seed:      []models.User{{ID: "u1", Email: "a@example.com"}},
			upsert:    models.User{ID: "u2", Email: "b@example.com"},
			wantCount: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := dbtest.New(t)
			ctx := context.Background()
			users := NewUserRepository(db)
			for _, u := range tt.seed {
				if err := users.UpsertProfile(ctx, &u); err != nil {
					t.Fatalf("seed UpsertProfile(%s) error = %v", u.ID, err)
				}
			}

			u := tt.upsert
			if err := users.UpsertProfile(ctx, &u); err != nil {
				t.Fatalf("UpsertProfile() error = %v", err)
			}

			owner, err := users.GetUserByEmail(ctx, tt.upsert.Email)
			if err != nil || owner == nil || owner.ID != tt.upsert.ID {
				t.Errorf("GetUserByEmail() = %+v, %v, want owner %s", owner, err, tt.upsert.ID)
			}
			if tt.wantGone != "" {
				if gone, _ := users.GetUserByID(ctx, tt.wantGone); gone != nil {
					t.Errorf("stale profile %s still present: %+v", tt.wantGone, gone)
				}
			}
			all, _ := users.ListUsers(ctx)
			if len(all) != tt.wantCount {
				t.Errorf("ListUsers() = %d profiles, want %d", len(all), tt.wantCount)
			}
		})
	}
}

func TestUpsertProfileConcurrentFirstLogin(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	users := NewUserRepository(db)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- users.UpsertProfile(ctx, &models.User{ID: "u1", Email: "a@example.com", FullName: "Ann"})
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("UpsertProfile() error = %v", err)
		}
	}
	if all, _ := users.ListUsers(ctx); len(all) != 1 {
		t.Errorf("ListUsers() = %d profiles, want 1", len(all))
	}
}

func TestCreateGroupAddsCreator(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	families := NewFamilyRepository(db)

	group, err := families.CreateGroup(ctx, "Smiths", "u1")
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}

	groups, err := families.ListUserGroups(ctx, "u1")
	if err != nil {
		t.Fatalf("ListUserGroups() error = %v", err)
	}
	if len(groups) != 1 || groups[0].ID != group.ID || groups[0].Name != "Smiths" {
		t.Errorf("ListUserGroups() = %+v, want [%s]", groups, group.ID)
	}

	added, err := families.AddMember(ctx, group.ID, "u1")
	if err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	if added {
		t.Error("AddMember() for existing member reported a new row")
	}
	if n, _ := families.CountMembers(ctx, group.ID); n != 1 {
		t.Errorf("CountMembers() = %d, want 1", n)
	}
}

func TestRemoveMember(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	families := NewFamilyRepository(db)
	createProfile(t, db, "u2", "b@example.com")

	group, err := families.CreateGroup(ctx, "Smiths", "u1")
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}
	if _, err := families.AddMember(ctx, group.ID, "u2"); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}

	members, err := families.ListMembers(ctx, group.ID)
	if err != nil {
		t.Fatalf("ListMembers() error = %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("ListMembers() returned %d members, want 2", len(members))
	}

	removed, err := families.RemoveMember(ctx, group.ID, "u2")
	if err != nil || !removed {
		t.Fatalf("RemoveMember() = %v, %v, want true, nil", removed, err)
	}
	removed, err = families.RemoveMember(ctx, group.ID, "u2")
	if err != nil || removed {
		t.Errorf("second RemoveMember() = %v, %v, want false, nil", removed, err)
	}
	if member, _ := families.IsMember(ctx, group.ID, "u2"); member {
		t.Error("IsMember() = true after removal")
	}
}

// invitationFixture creates a group owned by u1 and a profile for u2 <b@example.com>.
func invitationFixture(t *testing.T) (*database.DB, *InvitationRepository, *FamilyRepository, *models.FamilyGroup) {
	t.Helper()
	db := dbtest.New(t)
	createProfile(t, db, "u1", "a@example.com")
	createProfile(t, db, "u2", "b@example.com")
	families := NewFamilyRepository(db)
	group, err := families.CreateGroup(context.Background(), "Smiths", "u1")
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}
	return db, NewInvitationRepository(db), families, group
}

func TestCreateInvitation(t *testing.T) {
	_, invitations, _, group := invitationFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		inv     models.Invitation
		wantErr error
	}{
		{
			name: "member invites",
			inv:  models.Invitation{GroupID: group.ID, InviterID: "u1", InviteeEmail: "b@example.com"},
		},
		{
			name:    "duplicate pending",
			inv:     models.Invitation{GroupID: group.ID, InviterID: "u1", InviteeEmail: "b@example.com"},
			wantErr: ErrDuplicatePending,
		},
		{
			name:    "non-member inviter",
			inv:     models.Invitation{GroupID: group.ID, InviterID: "u2", InviteeEmail: "c@example.com"},
			wantErr: ErrPolicyDenied,
		},
		{
			name:    "unknown group",
			inv:     models.Invitation{GroupID: "missing", InviterID: "u1", InviteeEmail: "c@example.com"},
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := tt.inv
			err := invitations.CreateInvitation(ctx, &inv)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CreateInvitation() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && (inv.ID == "" || inv.Status != models.InvitationPending || inv.GroupName != "Smiths") {
				t.Errorf("CreateInvitation() = %+v", inv)
			}
		})
	}
}

func TestPendingInvitationIndex(t *testing.T) {
	tests := []struct {
		name       string
		firstState string
		secondTo   string
		wantUnique bool
	}{
		{name: "second pending for same email", firstState: "pending", secondTo: "b@example.com", wantUnique: true},
		{name: "pending after accepted", firstState: "accepted", secondTo: "b@example.com"},
		{name: "pending after rejected", firstState: "rejected", secondTo: "b@example.com"},
		{name: "pending for other email", firstState: "pending", secondTo: "c@example.com"},
	}

	insert := `INSERT INTO family_group_invitations (id, family_group_id, inviter_id, invitee_email, status, created_at)
		VALUES (?, ?, 'u1', ?, ?, ?)`

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, _, _, group := invitationFixture(t)
			ctx := context.Background()
			ts := time.Now().UTC()

			if _, err := db.ExecContext(ctx, insert, "i1", group.ID, "b@example.com", tt.firstState, ts); err != nil {
				t.Fatalf("first insert error = %v", err)
			}
			_, err := db.ExecContext(ctx, insert, "i2", group.ID, tt.secondTo, "pending", ts)
			if got := err != nil && db.Dialect.IsUniqueViolation(err); got != tt.wantUnique {
				t.Errorf("second insert error = %v, want unique violation %v", err, tt.wantUnique)
			}
			if !tt.wantUnique && err != nil {
				t.Errorf("second insert error = %v", err)
			}
		})
	}
}

func TestAcceptInvitation(t *testing.T) {
	_, invitations, families, group := invitationFixture(t)
	ctx := context.Background()

	inv := &models.Invitation{GroupID: group.ID, InviterID: "u1", InviteeEmail: "b@example.com"}
	if err := invitations.CreateInvitation(ctx, inv); err != nil {
		t.Fatalf("CreateInvitation() error = %v", err)
	}

	if _, err := invitations.AcceptInvitation(ctx, inv.ID, "u1"); !errors.Is(err, ErrPolicyDenied) {
		t.Errorf("AcceptInvitation() by inviter error = %v, want %v", err, ErrPolicyDenied)
	}

	accepted, err := invitations.AcceptInvitation(ctx, inv.ID, "u2")
	if err != nil {
		t.Fatalf("AcceptInvitation() error = %v", err)
	}
	if accepted.Status != models.InvitationAccepted {
		t.Errorf("AcceptInvitation() status = %s, want accepted", accepted.Status)
	}
	if member, _ := families.IsMember(ctx, group.ID, "u2"); !member {
		t.Error("invitee is not a member after accept")
	}

	if _, err := invitations.AcceptInvitation(ctx, inv.ID, "u2"); !errors.Is(err, ErrNotPending) {
		t.Errorf("second AcceptInvitation() error = %v, want %v", err, ErrNotPending)
	}
	if _, err := invitations.RejectInvitation(ctx, inv.ID, "u2"); !errors.Is(err, ErrNotPending) {
		t.Errorf("RejectInvitation() after accept error = %v, want %v", err, ErrNotPending)
	}
	if _, err := invitations.AcceptInvitation(ctx, "missing", "u2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("AcceptInvitation(missing) error = %v, want %v", err, ErrNotFound)
	}

	got, err := invitations.GetInvitation(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvitation() error = %v", err)
	}
	if got.Status != models.InvitationAccepted {
		t.Errorf("stored status = %s, want accepted", got.Status)
	}
}

func TestAcceptInvitationConcurrent(t *testing.T) {
	_, invitations, families, group := invitationFixture(t)
	ctx := context.Background()

	inv := &models.Invitation{GroupID: group.ID, InviterID: "u1", InviteeEmail: "b@example.com"}
	if err := invitations.CreateInvitation(ctx, inv); err != nil {
		t.Fatalf("CreateInvitation() error = %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = invitations.AcceptInvitation(ctx, inv.ID, "u2")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrNotPending):
		default:
			t.Errorf("AcceptInvitation() unexpected error = %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("%d accepts succeeded, want 1", succeeded)
	}
	if n, _ := families.CountMembers(ctx, group.ID); n != 2 {
		t.Errorf("CountMembers() = %d, want 2", n)
	}
}

func TestRejectInvitation(t *testing.T) {
	_, invitations, families, group := invitationFixture(t)
	ctx := context.Background()

	inv := &models.Invitation{GroupID: group.ID, InviterID: "u1", InviteeEmail: "b@example.com"}
	if err := invitations.CreateInvitation(ctx, inv); err != nil {
		t.Fatalf("CreateInvitation() error = %v", err)
	}

	rejected, err := invitations.RejectInvitation(ctx, inv.ID, "u2")
	if err != nil {
		t.Fatalf("RejectInvitation() error = %v", err)
	}
	if rejected.Status != models.InvitationRejected {
		t.Errorf("status = %s, want rejected", rejected.Status)
	}
	if member, _ := families.IsMember(ctx, group.ID, "u2"); member {
		t.Error("invitee became a member after reject")
	}
	if _, err := invitations.AcceptInvitation(ctx, inv.ID, "u2"); !errors.Is(err, ErrNotPending) {
		t.Errorf("AcceptInvitation() after reject error = %v, want %v", err, ErrNotPending)
	}

	// A settled invitation no longer blocks a fresh one.
	again := &models.Invitation{GroupID: group.ID, InviterID: "u1", InviteeEmail: "b@example.com"}
	if err := invitations.CreateInvitation(ctx, again); err != nil {
		t.Errorf("CreateInvitation() after reject error = %v", err)
	}
}

func TestListInvitations(t *testing.T) {
	_, invitations, _, group := invitationFixture(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	first := &models.Invitation{GroupID: group.ID, InviterID: "u1", InviteeEmail: "b@example.com", CreatedAt: base}
	second := &models.Invitation{GroupID: group.ID, InviterID: "u1", InviteeEmail: "c@example.com", CreatedAt: base.Add(time.Hour)}
	for _, inv := range []*models.Invitation{first, second} {
		if err := invitations.CreateInvitation(ctx, inv); err != nil {
			t.Fatalf("CreateInvitation() error = %v", err)
		}
	}
	if _, err := invitations.RejectInvitation(ctx, first.ID, "u2"); err != nil {
		t.Fatalf("RejectInvitation() error = %v", err)
	}

	sent, err := invitations.ListSentBy(ctx, "u1")
	if err != nil {
		t.Fatalf("ListSentBy() error = %v", err)
	}
	if len(sent) != 2 || sent[0].ID != second.ID || sent[1].ID != first.ID {
		t.Errorf("ListSentBy() order wrong: %+v", sent)
	}
	if sent[1].Status != models.InvitationRejected {
		t.Errorf("ListSentBy() lost status: %s", sent[1].Status)
	}

	received, err := invitations.ListPendingForEmail(ctx, "b@example.com")
	if err != nil {
		t.Fatalf("ListPendingForEmail() error = %v", err)
	}
	if len(received) != 0 {
		t.Errorf("ListPendingForEmail(b) = %+v, want none", received)
	}

	received, err = invitations.ListPendingForEmail(ctx, "c@example.com")
	if err != nil {
		t.Fatalf("ListPendingForEmail() error = %v", err)
	}
	if len(received) != 1 || received[0].GroupName != "Smiths" || received[0].InviterMail != "a@example.com" {
		t.Errorf("ListPendingForEmail(c) = %+v", received)
	}
}

func TestTaskScopes(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	families := NewFamilyRepository(db)
	tasks := NewTaskRepository(db)
	assignments := NewAssignmentRepository(db)
	createProfile(t, db, "u1", "a@example.com")

	group, err := families.CreateGroup(ctx, "Smiths", "u1")
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}
	due := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	personal := &models.Task{Title: "Homework", Priority: models.PriorityHigh, Category: models.CategorySchool,
		DueDate: due, OwnerUserID: "u1", CreatedAt: base}
	shared := &models.Task{Title: "Groceries", Priority: models.PriorityLow, Category: models.CategoryShopping,
		DueDate: due, OwnerUserID: "u1", GroupID: &group.ID, CreatedAt: base.Add(time.Minute)}
	other := &models.Task{Title: "Other", Priority: models.PriorityLow, Category: models.CategoryOther,
		DueDate: due, OwnerUserID: "u2", CreatedAt: base.Add(2 * time.Minute)}
	for _, task := range []*models.Task{personal, shared, other} {
		if err := tasks.CreateTask(ctx, task); err != nil {
			t.Fatalf("CreateTask(%s) error = %v", task.Title, err)
		}
	}

	outsider := &models.Task{Title: "Sneaky", Priority: models.PriorityLow, Category: models.CategoryOther,
		DueDate: due, OwnerUserID: "u2", GroupID: &group.ID}
	if err := tasks.CreateTask(ctx, outsider); !errors.Is(err, ErrPolicyDenied) {
		t.Errorf("CreateTask() by non-member error = %v, want %v", err, ErrPolicyDenied)
	}

	got, err := tasks.ListForScope(ctx, "u1", models.PersonalScope())
	if err != nil {
		t.Fatalf("ListForScope(personal) error = %v", err)
	}
	if len(got) != 1 || got[0].ID != personal.ID {
		t.Errorf("ListForScope(personal) = %+v", got)
	}
	if !got[0].DueDate.Equal(due) || got[0].Priority != models.PriorityHigh {
		t.Errorf("task round trip lost fields: %+v", got[0])
	}

	got, err = tasks.ListForScope(ctx, "u1", models.GroupScope(group.ID))
	if err != nil {
		t.Fatalf("ListForScope(group) error = %v", err)
	}
	if len(got) != 1 || got[0].ID != shared.ID || got[0].GroupName != "Smiths" {
		t.Errorf("ListForScope(group) = %+v", got)
	}

	visible, err := tasks.ListVisible(ctx, "u1")
	if err != nil {
		t.Fatalf("ListVisible() error = %v", err)
	}
	if len(visible) != 2 || visible[0].ID != shared.ID || visible[1].ID != personal.ID {
		t.Errorf("ListVisible() = %+v, want newest first [shared personal]", visible)
	}

	if ok, _ := tasks.CanAccess(ctx, other.ID, "u1"); ok {
		t.Error("CanAccess() = true for another user's personal task")
	}
	if _, err := assignments.AssignTask(ctx, &models.TaskAssignment{TaskID: other.ID, UserID: "u1", AssignedByUserID: "u2"}); err != nil {
		t.Fatalf("AssignTask() error = %v", err)
	}
	if ok, _ := tasks.CanAccess(ctx, other.ID, "u1"); !ok {
		t.Error("CanAccess() = false for an assignee")
	}

	found, err := tasks.SetCompleted(ctx, personal.ID, true)
	if err != nil || !found {
		t.Fatalf("SetCompleted() = %v, %v", found, err)
	}
	stored, err := tasks.GetTask(ctx, personal.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if !stored.Completed {
		t.Error("task not completed after SetCompleted")
	}
	if found, _ := tasks.SetCompleted(ctx, "missing", true); found {
		t.Error("SetCompleted(missing) reported a row")
	}
}

func TestListAssignedTasks(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	tasks := NewTaskRepository(db)
	assignments := NewAssignmentRepository(db)
	createProfile(t, db, "u1", "a@example.com")

	task := &models.Task{Title: "Dishes", Priority: models.PriorityMedium, Category: models.CategoryHome,
		DueDate: time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC), OwnerUserID: "u1"}
	if err := tasks.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	a := &models.TaskAssignment{TaskID: task.ID, UserID: "u2", AssignedByUserID: "u1"}
	created, err := assignments.AssignTask(ctx, a)
	if err != nil || !created {
		t.Fatalf("AssignTask() = %v, %v", created, err)
	}
	created, err = assignments.AssignTask(ctx, a)
	if err != nil || created {
		t.Errorf("repeated AssignTask() = %v, %v, want false, nil", created, err)
	}

	assigned, err := assignments.ListAssignedTasks(ctx, "u2")
	if err != nil {
		t.Fatalf("ListAssignedTasks() error = %v", err)
	}
	if len(assigned) != 1 {
		t.Fatalf("ListAssignedTasks() returned %d rows, want 1", len(assigned))
	}
	if assigned[0].Task.Title != "Dishes" || assigned[0].AssignedBy.Email != "a@example.com" {
		t.Errorf("ListAssignedTasks() = %+v", assigned[0])
	}

	rows, err := assignments.ListForUser(ctx, "u2")
	if err != nil || len(rows) != 1 {
		t.Errorf("ListForUser() = %v, %v", rows, err)
	}
}
