package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"familytasks/internal/database/dbtest"
	"familytasks/internal/models"
	"familytasks/internal/repository"
)

func TestBackupRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, "u1", "parent@example.com")
	env.user(t, "u2", "kid@example.com")

	group, _ := env.members.CreateGroup(ctx, "u1", "Smiths")
	if _, err := env.invitations.Invite(ctx, group.ID, "u1", "kid@example.com"); err != nil {
		t.Fatalf("Invite() error = %v", err)
	}
	task, err := env.tasks.CreateTask(ctx, "u1", models.GroupScope(group.ID),
		TaskInput{Title: "dishes", Priority: "high", Category: "home", DueDate: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if _, err := env.tasks.CreateTask(ctx, "u2", models.PersonalScope(),
		TaskInput{Title: "diary", Priority: "low", Category: "other", DueDate: time.Date(2024, 5, 11, 9, 0, 0, 0, time.UTC)}); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if _, err := env.tasks.AssignTask(ctx, "u1", task.ID, "u1"); err != nil {
		t.Fatalf("AssignTask() error = %v", err)
	}

	var buf bytes.Buffer
	backup, err := NewBackupService(env.db, nil).ExportToWriter(ctx, &buf)
	if err != nil {
		t.Fatalf("ExportToWriter() error = %v", err)
	}
	if len(backup.Profiles) != 2 || len(backup.Groups) != 1 || len(backup.Members) != 1 ||
		len(backup.Invitations) != 1 || len(backup.Tasks) != 2 || len(backup.Assignments) != 1 {
		t.Fatalf("unexpected export counts: %+v", backup)
	}

	restored := dbtest.New(t)
	importer := NewBackupService(restored, nil)
	data := buf.Bytes()
	for range 2 {
		if err := importer.ImportFromReader(ctx, bytes.NewReader(data)); err != nil {
			t.Fatalf("ImportFromReader() error = %v", err)
		}
	}

	tasks, err := repository.NewTaskRepository(restored).ListForScope(ctx, "u1", models.GroupScope(group.ID))
	if err != nil {
		t.Fatalf("ListForScope() error = %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != task.ID || tasks[0].GroupName != "Smiths" {
		t.Errorf("restored tasks = %+v", tasks)
	}
	if member, _ := repository.NewFamilyRepository(restored).IsMember(ctx, group.ID, "u1"); !member {
		t.Error("membership not restored")
	}
}

func TestImportRejectsUnknownVersion(t *testing.T) {
	db := dbtest.New(t)
	err := NewBackupService(db, nil).ImportFromReader(context.Background(), bytes.NewBufferString(`{"version":"9"}`))
	if err == nil {
		t.Error("ImportFromReader() accepted an unknown version")
	}
}

func TestClear(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, "u1", "parent@example.com")

	group, err := env.members.CreateGroup(ctx, "u1", "Smiths")
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}
	if _, err := env.tasks.CreateTask(ctx, "u1", models.GroupScope(group.ID),
		TaskInput{Title: "dishes", Priority: "high", Category: "home", DueDate: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)}); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	svc := NewBackupService(env.db, nil)
	if err := svc.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	backup, err := svc.ExportToWriter(ctx, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("ExportToWriter() error = %v", err)
	}
	if len(backup.Profiles)+len(backup.Groups)+len(backup.Members)+len(backup.Tasks) != 0 {
		t.Errorf("rows left after Clear(): %+v", backup)
	}
}
