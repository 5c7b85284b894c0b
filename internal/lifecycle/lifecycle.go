// Package lifecycle holds the task status state machine and the append-only task histories.
//
// Functions here mutate the task value they are given but never persist it; callers save
// the task once a transition succeeds. History slices are always replaced, never written
// through, so a copy of a task taken before a transition keeps its old history.
package lifecycle

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/yukikurage/taskflow-api/internal/constants"
	"github.com/yukikurage/taskflow-api/internal/models"
)

// ErrInvalidTransition is the kind of every TransitionError.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrNotOpen is returned by ForceExpire for tasks that are already completed or expired.
var ErrNotOpen = errors.New("task is not open")

// TransitionError reports an edge missing from the transition table.
type TransitionError struct {
	From models.TaskStatus
	To   models.TaskStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change task status from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// transitions lists the edges users may take. Expiry is reachable only through ForceExpire.
var transitions = map[models.TaskStatus][]models.TaskStatus{
	models.TaskStatusTodo:       {models.TaskStatusInProgress},
	models.TaskStatusInProgress: {models.TaskStatusCompleted, models.TaskStatusTodo},
	models.TaskStatusCompleted:  {models.TaskStatusInProgress},
	models.TaskStatusExpired:    {models.TaskStatusInProgress},
}

// CanTransition reports whether from -> to is a user-reachable edge.
func CanTransition(from, to models.TaskStatus) bool {
	return slices.Contains(transitions[from], to)
}

// AllowedTransitions returns the statuses reachable from from.
func AllowedTransitions(from models.TaskStatus) []models.TaskStatus {
	return slices.Clone(transitions[from])
}

// DefaultComment is the history comment used when the actor leaves none.
func DefaultComment(to models.TaskStatus) string {
	return fmt.Sprintf("Status changed to %s", to)
}

// Transition moves task to status to on behalf of actorID.
// Entering completed records the completer; leaving it keeps completion fields as history.
func Transition(task *models.Task, to models.TaskStatus, actorID uint64, comment string, now time.Time) error {
	if !CanTransition(task.Status, to) {
		return &TransitionError{From: task.Status, To: to}
	}
	if comment == "" {
		comment = DefaultComment(to)
	}

	actor := actorID
	task.StatusHistory = appendStatus(task.StatusHistory, models.StatusChange{
		Status:    to,
		ChangedAt: now,
		ChangedBy: &actor,
		Comment:   comment,
	})
	task.Status = to

	if to == models.TaskStatusCompleted {
		completedAt := now
		task.CompletedAt = &completedAt
		task.CompletedByID = &actor
	}
	return nil
}

// ForceExpire marks an open task expired with system authority.
func ForceExpire(task *models.Task, now time.Time) error {
	if !task.Status.Open() {
		return ErrNotOpen
	}

	task.StatusHistory = appendStatus(task.StatusHistory, models.StatusChange{
		Status:    models.TaskStatusExpired,
		ChangedAt: now,
		Comment:   constants.ExpiryComment,
	})
	task.Status = models.TaskStatusExpired
	return nil
}

// RecordAssignments appends an assignment entry for every id in next that is not in current,
// and returns those newly added ids in order.
func RecordAssignments(task *models.Task, current, next []uint64, assignedBy uint64, now time.Time) []uint64 {
	var added []uint64
	for _, id := range next {
		if slices.Contains(current, id) || slices.Contains(added, id) {
			continue
		}
		added = append(added, id)
	}
	if len(added) == 0 {
		return nil
	}

	history := slices.Clone([]models.AssignmentRecord(task.AssignmentHistory))
	for _, id := range added {
		history = append(history, models.AssignmentRecord{
			UserID:     id,
			AssignedAt: now,
			AssignedBy: assignedBy,
		})
	}
	task.AssignmentHistory = history
	return added
}

func appendStatus(history []models.StatusChange, entry models.StatusChange) []models.StatusChange {
	next := make([]models.StatusChange, len(history), len(history)+1)
	copy(next, history)
	return append(next, entry)
}
