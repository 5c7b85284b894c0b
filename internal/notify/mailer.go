package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yukikurage/taskflow-api/internal/models"
)

// Notifier is the notification gateway used by services and the scheduler.
// Implementations try every recipient and return the joined delivery errors.
type Notifier interface {
	TaskAssigned(ctx context.Context, task *models.Task, recipients []models.User, assignedBy *models.User) error
	StatusChanged(ctx context.Context, task *models.Task, recipients []models.User, changedBy *models.User, comment string) error
	TaskExpired(ctx context.Context, task *models.Task, recipients []models.User) error
	TaskReminder(ctx context.Context, task *models.Task, recipients []models.User) error
	Invitation(ctx context.Context, invite InvitationMessage) error
}

// InvitationMessage holds what the invitation email shows.
type InvitationMessage struct {
	Email            string
	OrganizationName string
	Role             models.Role
	InvitedBy        string
	Link             string
	ExpiresAt        time.Time
}

// Mailer implements Notifier over an EmailClient
type Mailer struct {
	client EmailClient
	from   string
}

// NewMailer creates a Mailer sending from the given address
func NewMailer(client EmailClient, from string) *Mailer {
	return &Mailer{client: client, from: from}
}

const dueDateLayout = "Mon, 02 Jan 2006 15:04 MST"

// TaskAssigned tells new assignees about a task
func (m *Mailer) TaskAssigned(ctx context.Context, task *models.Task, recipients []models.User, assignedBy *models.User) error {
	subject := fmt.Sprintf("New task assigned: %s", task.Title)
	body := fmt.Sprintf(
		"%s assigned you a task.\n\n%s\n\nCategory: %s\nPriority: %s\nDue: %s\n",
		nameOf(assignedBy), taskSummary(task), task.Category, task.Priority, task.DueDate.Format(dueDateLayout),
	)
	return m.sendAll(ctx, recipients, subject, body)
}

// StatusChanged tells assignees that someone else moved a task
func (m *Mailer) StatusChanged(ctx context.Context, task *models.Task, recipients []models.User, changedBy *models.User, comment string) error {
	subject := fmt.Sprintf("Task status updated: %s", task.Title)
	body := fmt.Sprintf(
		"%s changed the status of \"%s\" to %s.\n\nComment: %s\n",
		nameOf(changedBy), task.Title, task.Status, comment,
	)
	return m.sendAll(ctx, recipients, subject, body)
}

// TaskExpired tells assignees that a task passed its due date
func (m *Mailer) TaskExpired(ctx context.Context, task *models.Task, recipients []models.User) error {
	subject := fmt.Sprintf("Task expired: %s", task.Title)
	body := fmt.Sprintf(
		"The task \"%s\" passed its due date (%s) and was marked as expired.\n",
		task.Title, task.DueDate.Format(dueDateLayout),
	)
	return m.sendAll(ctx, recipients, subject, body)
}

// TaskReminder reminds assignees of an upcoming due date
func (m *Mailer) TaskReminder(ctx context.Context, task *models.Task, recipients []models.User) error {
	subject := fmt.Sprintf("Task Reminder: %s", task.Title)
	body := fmt.Sprintf(
		"This is a reminder that \"%s\" is due on %s.\n\nCurrent status: %s\n",
		task.Title, task.DueDate.Format(dueDateLayout), task.Status,
	)
	return m.sendAll(ctx, recipients, subject, body)
}

// Invitation sends the join link to an invited email
func (m *Mailer) Invitation(ctx context.Context, invite InvitationMessage) error {
	subject := fmt.Sprintf("Invitation to join %s", invite.OrganizationName)
	body := fmt.Sprintf(
		"%s invited you to join %s as a %s.\n\nAccept the invitation: %s\n\nThis link expires on %s.\n",
		invite.InvitedBy, invite.OrganizationName, invite.Role, invite.Link, invite.ExpiresAt.Format(dueDateLayout),
	)
	return m.client.Send(ctx, m.from, invite.Email, subject, body)
}

func (m *Mailer) sendAll(ctx context.Context, recipients []models.User, subject, body string) error {
	var errs []error
	for _, r := range recipients {
		if strings.TrimSpace(r.Email) == "" {
			continue
		}
		greeting := fmt.Sprintf("Hi %s,\n\n", r.FullName())
		if err := m.client.Send(ctx, m.from, r.Email, subject, greeting+body); err != nil {
			errs = append(errs, fmt.Errorf("notify %s: %w", r.Email, err))
		}
	}
	return errors.Join(errs...)
}

func taskSummary(task *models.Task) string {
	if task.Description == "" {
		return task.Title
	}
	return task.Title + "\n" + task.Description
}

func nameOf(user *models.User) string {
	if user == nil {
		return "Someone"
	}
	return user.FullName()
}
