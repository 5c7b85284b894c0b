// Package scheduler runs the periodic expiry and reminder sweeps over every organization's tasks.
// Sweeps run with system authority and bypass request authorization.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yukikurage/taskflow-api/internal/constants"
	"github.com/yukikurage/taskflow-api/internal/lifecycle"
	"github.com/yukikurage/taskflow-api/internal/logs"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/notify"
	"github.com/yukikurage/taskflow-api/internal/repository"
)

const defaultInterval = time.Hour

// Config sets the sweep cadence.
type Config struct {
	ExpiryInterval   time.Duration
	ReminderInterval time.Duration
	// ReminderOffset delays the first reminder sweep so both sweeps do not start together.
	ReminderOffset time.Duration
}

// SweepResult counts the tasks a sweep handled.
type SweepResult struct {
	Processed int
	Failed    int
}

// Scheduler owns the two sweeps and their tickers.
type Scheduler struct {
	tasks    repository.TaskRepository
	notifier notify.Notifier
	cfg      Config
	now      func() time.Time

	expiryRunning   atomic.Bool
	reminderRunning atomic.Bool
	inflight        sync.WaitGroup
}

// New creates a Scheduler. Non-positive intervals fall back to one hour.
func New(tasks repository.TaskRepository, notifier notify.Notifier, cfg Config) *Scheduler {
	if cfg.ExpiryInterval <= 0 {
		cfg.ExpiryInterval = defaultInterval
	}
	if cfg.ReminderInterval <= 0 {
		cfg.ReminderInterval = defaultInterval
	}
	if cfg.ReminderOffset < 0 {
		cfg.ReminderOffset = 0
	}
	return &Scheduler{tasks: tasks, notifier: notifier, cfg: cfg, now: time.Now}
}

// Run starts both loops and blocks until ctx is cancelled and the loops have returned.
// The expiry sweep runs once immediately; reminders start after ReminderOffset.
func (s *Scheduler) Run(ctx context.Context) {
	logs.Logger.WithFields(logrus.Fields{
		"expiry_interval":   s.cfg.ExpiryInterval.String(),
		"reminder_interval": s.cfg.ReminderInterval.String(),
		"reminder_offset":   s.cfg.ReminderOffset.String(),
	}).Info("Scheduler started")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.loop(ctx, "expiry", 0, s.cfg.ExpiryInterval, &s.expiryRunning, s.ExpireOverdue)
	}()
	go func() {
		defer wg.Done()
		s.loop(ctx, "reminder", s.cfg.ReminderOffset, s.cfg.ReminderInterval, &s.reminderRunning, s.SendReminders)
	}()
	wg.Wait()
	s.inflight.Wait()

	logs.Logger.Info("Scheduler stopped")
}

func (s *Scheduler) loop(
	ctx context.Context,
	name string,
	delay, interval time.Duration,
	running *atomic.Bool,
	sweep func(context.Context) (SweepResult, error),
) {
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	s.spawn(ctx, name, running, sweep)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.spawn(ctx, name, running, sweep)
		}
	}
}

// spawn runs a tick in the background so a slow sweep cannot hold back the ticker.
func (s *Scheduler) spawn(
	ctx context.Context,
	name string,
	running *atomic.Bool,
	sweep func(context.Context) (SweepResult, error),
) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.tick(ctx, name, running, sweep)
	}()
}

// tick runs one sweep unless the previous sweep of the same kind is still running.
// It reports whether the sweep ran.
func (s *Scheduler) tick(
	ctx context.Context,
	name string,
	running *atomic.Bool,
	sweep func(context.Context) (SweepResult, error),
) bool {
	if !running.CompareAndSwap(false, true) {
		logs.Logger.WithField("sweep", name).Warn("Previous sweep still running, skipping tick")
		return false
	}
	defer running.Store(false)

	started := time.Now()
	result, err := sweep(ctx)
	entry := logs.Logger.WithFields(logrus.Fields{
		"sweep":     name,
		"processed": result.Processed,
		"failed":    result.Failed,
		"duration":  time.Since(started).String(),
	})
	if err != nil {
		entry.WithError(err).Error("Sweep failed")
		return true
	}
	entry.Info("Sweep finished")
	return true
}

// ExpireOverdue marks every open task past its due date as expired and notifies its assignees.
// A failure on one task is logged and does not stop the sweep.
func (s *Scheduler) ExpireOverdue(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	now := s.now()

	tasks, err := s.tasks.ListOpenDueBefore(now)
	if err != nil {
		return result, err
	}

	for i := range tasks {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		task := &tasks[i]

		if err := lifecycle.ForceExpire(task, now); err != nil {
			if errors.Is(err, lifecycle.ErrNotOpen) {
				continue
			}
			result.Failed++
			continue
		}
		if err := s.tasks.Update(task); err != nil {
			result.Failed++
			logs.Logger.WithError(err).WithField("task_id", task.ID).Error("Failed to expire task")
			continue
		}
		result.Processed++

		recipients := assignees(task)
		if len(recipients) == 0 || !task.Organization.EmailNotificationsEnabled() {
			continue
		}
		if err := s.notifier.TaskExpired(ctx, task, recipients); err != nil {
			logs.Logger.WithError(err).WithField("task_id", task.ID).Warn("Expiry notification failed")
		}
	}

	return result, nil
}

// SendReminders notifies assignees of open tasks due within the next 24 hours.
// Tasks are not modified. The window is fixed; per-organization reminder_hours is not consulted.
func (s *Scheduler) SendReminders(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	now := s.now()

	tasks, err := s.tasks.ListOpenDueBetween(now, now.Add(constants.ReminderWindow))
	if err != nil {
		return result, err
	}

	for i := range tasks {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		task := &tasks[i]

		if !task.Organization.RemindersEnabled() {
			continue
		}
		recipients := assignees(task)
		if len(recipients) == 0 {
			continue
		}

		if err := s.notifier.TaskReminder(ctx, task, recipients); err != nil {
			result.Failed++
			logs.Logger.WithError(err).WithField("task_id", task.ID).Warn("Reminder notification failed")
			continue
		}
		result.Processed++
	}

	return result, nil
}

func assignees(task *models.Task) []models.User {
	users := make([]models.User, 0, len(task.Assignments))
	for _, a := range task.Assignments {
		users = append(users, a.User)
	}
	return users
}
