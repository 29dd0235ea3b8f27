// Package jobs holds scheduled background work.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"familytasks/internal/models"
)

// UserLister lists every known user
type UserLister interface {
	ListUsers(ctx context.Context) ([]models.User, error)
}

// DueTasks returns a user's open tasks due on a calendar day
type DueTasks interface {
	DueOn(ctx context.Context, userID string, day time.Time) ([]models.Task, error)
}

// DigestMailer sends the digest email
type DigestMailer interface {
	SendDueDigest(ctx context.Context, user *models.User, tasks []models.Task, day time.Time) error
}

// DigestConfig controls when the digest runs
type DigestConfig struct {
	Schedule string         // standard five-field cron spec
	Location *time.Location // zone of the schedule and of "today"
	Timeout  time.Duration  // upper bound for one run
}

// DigestJob emails every user the list of tasks due today
type DigestJob struct {
	users  UserLister
	tasks  DueTasks
	mailer DigestMailer
	logger *zap.Logger
	cron   *cron.Cron
	cfg    DigestConfig
	now    func() time.Time
}

// NewDigestJob creates a digest job scheduled per cfg
func NewDigestJob(users UserLister, tasks DueTasks, mailer DigestMailer, logger *zap.Logger, cfg DigestConfig) (*DigestJob, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	job := &DigestJob{
		users:  users,
		tasks:  tasks,
		mailer: mailer,
		logger: logger.Named("digest"),
		cron:   cron.New(cron.WithLocation(cfg.Location)),
		cfg:    cfg,
		now:    time.Now,
	}

	_, err := job.cron.AddFunc(cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()
		if _, err := job.RunOnce(ctx); err != nil {
			job.logger.Error("Digest run failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid digest schedule %q: %w", cfg.Schedule, err)
	}

	return job, nil
}

// Start launches the cron scheduler.
func (j *DigestJob) Start() {
	if j == nil || j.cron == nil {
		return
	}
	j.cron.Start()
	j.logger.Info("Digest job started", zap.String("schedule", j.cfg.Schedule))
}

// Stop waits for a running digest to finish or ctx to expire.
func (j *DigestJob) Stop(ctx context.Context) error {
	if j == nil || j.cron == nil {
		return nil
	}
	stopCtx := j.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	j.logger.Info("Digest job stopped")
	return nil
}

// RunOnce sends today's digest to every user with tasks due today and
// reports how many emails went out. A failure for one user does not stop
// the others.
func (j *DigestJob) RunOnce(ctx context.Context) (int, error) {
	users, err := j.users.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	today := j.now().In(j.cfg.Location)
	var sent int
	var result error
	for i := range users {
		if err := ctx.Err(); err != nil {
			return sent, errors.Join(result, err)
		}
		user := &users[i]

		tasks, err := j.tasks.DueOn(ctx, user.ID, today)
		if err != nil {
			j.logger.Warn("Failed to load due tasks", zap.String("user_id", user.ID), zap.Error(err))
			result = errors.Join(result, err)
			continue
		}
		if len(tasks) == 0 {
			continue
		}
		if err := j.mailer.SendDueDigest(ctx, user, tasks, today); err != nil {
			j.logger.Warn("Failed to send digest", zap.String("user_id", user.ID), zap.Error(err))
			result = errors.Join(result, err)
			continue
		}
		sent++
	}

	j.logger.Info("Digest run complete", zap.Int("users", len(users)), zap.Int("sent", sent))
	return sent, result
}
