package services

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"

	"github.com/yukikurage/taskflow-api/internal/models"
)

var (
	ErrInvalidUpdate   = newError(ErrValidation, "only title, description, category, priority, due_date and assigned_to can be updated")
	ErrEmptyTaskUpdate = newError(ErrValidation, "no updatable fields provided")
	ErrMalformedPatch  = newError(ErrValidation, "request body must be a JSON object")
)

// updatableTaskFields is the allow-list for task detail updates.
// Status is deliberately absent: it only changes through UpdateTaskStatus.
var updatableTaskFields = map[string]struct{}{
	"title":       {},
	"description": {},
	"category":    {},
	"priority":    {},
	"due_date":    {},
	"assigned_to": {},
}

// TaskPatch holds the task details an admin or manager may change.
// Nil fields are left untouched; a non-nil empty AssignedTo clears the assignees.
type TaskPatch struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	Category    *string              `json:"category"`
	Priority    *models.TaskPriority `json:"priority"`
	DueDate     *time.Time           `json:"due_date"`
	AssignedTo  *[]uint64            `json:"assigned_to"`
}

// DecodeTaskPatch parses a JSON body into a TaskPatch, rejecting keys outside the allow-list.
func DecodeTaskPatch(body []byte) (TaskPatch, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return TaskPatch{}, ErrMalformedPatch
	}
	if len(raw) == 0 {
		return TaskPatch{}, ErrEmptyTaskUpdate
	}

	var rejected []string
	for key := range raw {
		if _, ok := updatableTaskFields[key]; !ok {
			rejected = append(rejected, key)
		}
	}
	if len(rejected) > 0 {
		sort.Strings(rejected)
		return TaskPatch{}, &FieldsError{Err: ErrInvalidUpdate, Fields: rejected}
	}

	var patch TaskPatch
	decoder := json.NewDecoder(bytes.NewReader(body))
	if err := decoder.Decode(&patch); err != nil {
		return TaskPatch{}, &FieldsError{Err: ErrMalformedPatch, Fields: []string{err.Error()}}
	}
	return patch, nil
}
