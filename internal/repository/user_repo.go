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

// UserRepository stores local profiles of externally authenticated users
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// UpsertProfile records the latest email and name seen for a user. An email
// now belongs to user.ID, so a profile of another ID still holding it is
// stale and is removed.
func (r *UserRepository) UpsertProfile(ctx context.Context, user *models.User) error {
	ts := now()
	upsert := func(tx *database.Tx) error {
		return upsertProfile(ctx, tx, user, ts)
	}

	err := r.db.WithTx(ctx, upsert)
	if err != nil && r.db.Dialect.IsUniqueViolation(err) {
		// Another request created the profile first; it is visible now.
		err = r.db.WithTx(ctx, upsert)
	}
	return err
}

func upsertProfile(ctx context.Context, tx *database.Tx, user *models.User, ts time.Time) error {
	existing, err := getProfile(ctx, tx, "SELECT id, email, full_name, created_at, updated_at FROM profiles WHERE id = ?", user.ID)
	if err != nil {
		return err
	}

	if existing != nil && existing.Email == user.Email && (user.FullName == "" || existing.FullName == user.FullName) {
		*user = *existing
		return nil
	}

	if existing == nil || existing.Email != user.Email {
		if _, err := tx.ExecContext(ctx, "DELETE FROM profiles WHERE email = ? AND id <> ?", user.Email, user.ID); err != nil {
			return fmt.Errorf("failed to release email: %w", err)
		}
	}

	if existing == nil {
		query := "INSERT INTO profiles (id, email, full_name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)"
		if _, err := tx.ExecContext(ctx, query, user.ID, user.Email, user.FullName, ts, ts); err != nil {
			return fmt.Errorf("failed to create profile: %w", err)
		}
		user.CreatedAt, user.UpdatedAt = ts, ts
		return nil
	}

	if user.FullName == "" {
		user.FullName = existing.FullName
	}
	query := "UPDATE profiles SET email = ?, full_name = ?, updated_at = ? WHERE id = ?"
	if _, err := tx.ExecContext(ctx, query, user.Email, user.FullName, ts, user.ID); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	user.CreatedAt, user.UpdatedAt = existing.CreatedAt, ts
	return nil
}

// GetUserByID retrieves a profile by ID
func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := "SELECT id, email, full_name, created_at, updated_at FROM profiles WHERE id = ?"
	return r.getOne(ctx, query, id)
}

// GetUserByEmail retrieves a profile by email
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := "SELECT id, email, full_name, created_at, updated_at FROM profiles WHERE email = ?"
	return r.getOne(ctx, query, email)
}

// ListUsers retrieves all profiles
func (r *UserRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	query := "SELECT id, email, full_name, created_at, updated_at FROM profiles ORDER BY created_at ASC"
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	return getProfile(ctx, r.db, query, arg)
}

func getProfile(ctx context.Context, db database.DBTX, query string, arg any) (*models.User, error) {
	u := &models.User{}
	err := db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Email, &u.FullName, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return u, nil
}
