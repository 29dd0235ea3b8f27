package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"familytasks/internal/database"
)

// BackupVersion identifies the layout of BackupData
const BackupVersion = "1.0"

// BackupData represents the complete database backup structure
type BackupData struct {
	Version     string             `json:"version"`
	ExportedAt  time.Time          `json:"exported_at"`
	Profiles    []ProfileBackup    `json:"profiles"`
	Groups      []GroupBackup      `json:"family_groups"`
	Members     []MemberBackup     `json:"memberships"`
	Invitations []InvitationBackup `json:"invitations"`
	Tasks       []TaskBackup       `json:"tasks"`
	Assignments []AssignmentBackup `json:"task_assignments"`
}

// ProfileBackup represents a profile record for backup
type ProfileBackup struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GroupBackup represents a family group record for backup
type GroupBackup struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// MemberBackup represents a membership record for backup
type MemberBackup struct {
	UserID   string    `json:"user_id"`
	GroupID  string    `json:"family_group_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// InvitationBackup represents an invitation record for backup
type InvitationBackup struct {
	ID           string    `json:"id"`
	GroupID      string    `json:"family_group_id"`
	InviterID    string    `json:"inviter_id"`
	InviteeEmail string    `json:"invitee_email"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// TaskBackup represents a task record for backup
type TaskBackup struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    string    `json:"priority"`
	Category    string    `json:"category"`
	DueDate     time.Time `json:"due_date"`
	Completed   bool      `json:"completed"`
	UserID      string    `json:"user_id"`
	GroupID     *string   `json:"family_group_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AssignmentBackup represents a task assignment record for backup
type AssignmentBackup struct {
	TaskID     string    `json:"task_id"`
	UserID     string    `json:"user_id"`
	AssignedBy string    `json:"assigned_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// BackupService handles database backup and restore operations
type BackupService struct {
	db     *database.DB
	logger *zap.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB, logger *zap.Logger) *BackupService {
	return &BackupService{db: db, logger: orNop(logger).Named("backup")}
}

// Export creates a complete backup of the database to a file
func (s *BackupService) Export(ctx context.Context, outputPath string) (*BackupData, error) {
	file, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	backup, err := s.ExportToWriter(ctx, file)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Database exported", zap.String("path", outputPath))
	return backup, nil
}

// ExportToWriter writes a complete backup as indented JSON
func (s *BackupService) ExportToWriter(ctx context.Context, w io.Writer) (*BackupData, error) {
	backup := &BackupData{
		Version:    BackupVersion,
		ExportedAt: time.Now().UTC(),
	}

	steps := []struct {
		name string
		fn   func(context.Context, *BackupData) error
	}{
		{"profiles", s.exportProfiles},
		{"family groups", s.exportGroups},
		{"memberships", s.exportMembers},
		{"invitations", s.exportInvitations},
		{"tasks", s.exportTasks},
		{"task assignments", s.exportAssignments},
	}
	for _, step := range steps {
		if err := step.fn(ctx, backup); err != nil {
			return nil, fmt.Errorf("failed to export %s: %w", step.name, err)
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}

	s.logger.Info("Export complete",
		zap.Int("profiles", len(backup.Profiles)),
		zap.Int("family_groups", len(backup.Groups)),
		zap.Int("memberships", len(backup.Members)),
		zap.Int("invitations", len(backup.Invitations)),
		zap.Int("tasks", len(backup.Tasks)),
		zap.Int("task_assignments", len(backup.Assignments)),
	)
	return backup, nil
}

// Import restores a backup file into the database
func (s *BackupService) Import(ctx context.Context, inputPath string) error {
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	return s.ImportFromReader(ctx, file)
}

// ImportFromReader restores a backup in one transaction. Rows that already
// exist are left untouched, so importing the same backup twice is harmless.
func (s *BackupService) ImportFromReader(ctx context.Context, reader io.Reader) error {
	var backup BackupData
	if err := json.NewDecoder(reader).Decode(&backup); err != nil {
		return fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != BackupVersion {
		return fmt.Errorf("unsupported backup version %q", backup.Version)
	}

	s.logger.Info("Importing backup", zap.Time("exported_at", backup.ExportedAt))

	return s.db.WithTx(ctx, func(tx *database.Tx) error {
		insert := func(what, query string, args ...any) error {
			if _, err := tx.ExecContext(ctx, tx.GetDialect().InsertIgnore(query), args...); err != nil {
				return fmt.Errorf("failed to import %s: %w", what, err)
			}
			return nil
		}

		// Import in order of dependencies
		for _, p := range backup.Profiles {
			if err := insert("profile "+p.ID,
				"INSERT INTO profiles (id, email, full_name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
				p.ID, p.Email, p.FullName, p.CreatedAt, p.UpdatedAt); err != nil {
				return err
			}
		}
		for _, g := range backup.Groups {
			if err := insert("family group "+g.ID,
				"INSERT INTO family_groups (id, name, created_by, created_at) VALUES (?, ?, ?, ?)",
				g.ID, g.Name, g.CreatedBy, g.CreatedAt); err != nil {
				return err
			}
		}
		for _, m := range backup.Members {
			if err := insert("membership "+m.UserID,
				"INSERT INTO user_family_groups (user_id, family_group_id, joined_at) VALUES (?, ?, ?)",
				m.UserID, m.GroupID, m.JoinedAt); err != nil {
				return err
			}
		}
		for _, i := range backup.Invitations {
			if err := insert("invitation "+i.ID,
				"INSERT INTO family_group_invitations (id, family_group_id, inviter_id, invitee_email, status, created_at) VALUES (?, ?, ?, ?, ?, ?)",
				i.ID, i.GroupID, i.InviterID, i.InviteeEmail, i.Status, i.CreatedAt); err != nil {
				return err
			}
		}
		for _, t := range backup.Tasks {
			var groupID any
			if t.GroupID != nil {
				groupID = *t.GroupID
			}
			if err := insert("task "+t.ID,
				`INSERT INTO tasks (id, title, description, priority, category, due_date, completed, user_id, family_group_id, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				t.ID, t.Title, t.Description, t.Priority, t.Category, t.DueDate, t.Completed, t.UserID, groupID, t.CreatedAt, t.UpdatedAt); err != nil {
				return err
			}
		}
		for _, a := range backup.Assignments {
			if err := insert("assignment "+a.TaskID,
				"INSERT INTO task_assignments (task_id, user_id, assigned_by, created_at) VALUES (?, ?, ?, ?)",
				a.TaskID, a.UserID, a.AssignedBy, a.CreatedAt); err != nil {
				return err
			}
		}

		s.logger.Info("Import complete",
			zap.Int("profiles", len(backup.Profiles)),
			zap.Int("family_groups", len(backup.Groups)),
			zap.Int("tasks", len(backup.Tasks)),
		)
		return nil
	})
}

// clearOrder lists tables children first so foreign keys never dangle
var clearOrder = []string{
	"task_assignments",
	"tasks",
	"family_group_invitations",
	"user_family_groups",
	"family_groups",
	"profiles",
}

// Clear deletes every row of every application table in one transaction
func (s *BackupService) Clear(ctx context.Context) error {
	return s.db.WithTx(ctx, func(tx *database.Tx) error {
		for _, table := range clearOrder {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear table %s: %w", table, err)
			}
			s.logger.Info("Cleared table", zap.String("table", table))
		}
		return nil
	})
}

// scanAll runs query and hands each row to scan
func (s *BackupService) scanAll(ctx context.Context, query string, scan func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *BackupService) exportProfiles(ctx context.Context, backup *BackupData) error {
	query := "SELECT id, email, full_name, created_at, updated_at FROM profiles ORDER BY created_at, id"
	return s.scanAll(ctx, query, func(rows *sql.Rows) error {
		var p ProfileBackup
		if err := rows.Scan(&p.ID, &p.Email, &p.FullName, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return err
		}
		backup.Profiles = append(backup.Profiles, p)
		return nil
	})
}

func (s *BackupService) exportGroups(ctx context.Context, backup *BackupData) error {
	query := "SELECT id, name, created_by, created_at FROM family_groups ORDER BY created_at, id"
	return s.scanAll(ctx, query, func(rows *sql.Rows) error {
		var g GroupBackup
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedBy, &g.CreatedAt); err != nil {
			return err
		}
		backup.Groups = append(backup.Groups, g)
		return nil
	})
}

func (s *BackupService) exportMembers(ctx context.Context, backup *BackupData) error {
	query := "SELECT user_id, family_group_id, joined_at FROM user_family_groups ORDER BY family_group_id, joined_at, user_id"
	return s.scanAll(ctx, query, func(rows *sql.Rows) error {
		var m MemberBackup
		if err := rows.Scan(&m.UserID, &m.GroupID, &m.JoinedAt); err != nil {
			return err
		}
		backup.Members = append(backup.Members, m)
		return nil
	})
}

func (s *BackupService) exportInvitations(ctx context.Context, backup *BackupData) error {
	query := "SELECT id, family_group_id, inviter_id, invitee_email, status, created_at FROM family_group_invitations ORDER BY created_at, id"
	return s.scanAll(ctx, query, func(rows *sql.Rows) error {
		var i InvitationBackup
		if err := rows.Scan(&i.ID, &i.GroupID, &i.InviterID, &i.InviteeEmail, &i.Status, &i.CreatedAt); err != nil {
			return err
		}
		backup.Invitations = append(backup.Invitations, i)
		return nil
	})
}

func (s *BackupService) exportTasks(ctx context.Context, backup *BackupData) error {
	query := `SELECT id, title, description, priority, category, due_date, completed, user_id, family_group_id, created_at, updated_at
		FROM tasks ORDER BY created_at, id`
	return s.scanAll(ctx, query, func(rows *sql.Rows) error {
		var t TaskBackup
		var groupID sql.NullString
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Priority, &t.Category, &t.DueDate, &t.Completed,
			&t.UserID, &groupID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return err
		}
		if groupID.Valid {
			t.GroupID = &groupID.String
		}
		backup.Tasks = append(backup.Tasks, t)
		return nil
	})
}

func (s *BackupService) exportAssignments(ctx context.Context, backup *BackupData) error {
	query := "SELECT task_id, user_id, assigned_by, created_at FROM task_assignments ORDER BY created_at, task_id, user_id"
	return s.scanAll(ctx, query, func(rows *sql.Rows) error {
		var a AssignmentBackup
		if err := rows.Scan(&a.TaskID, &a.UserID, &a.AssignedBy, &a.CreatedAt); err != nil {
			return err
		}
		backup.Assignments = append(backup.Assignments, a)
		return nil
	})
}
