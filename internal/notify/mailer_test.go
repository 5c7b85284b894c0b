package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/taskflow-api/internal/models"
)

type sentMail struct {
	from, to, subject, body string
}

type fakeClient struct {
	sent    []sentMail
	failFor map[string]error
}

func (f *fakeClient) Send(_ context.Context, from, to, subject, body string) error {
	if err := f.failFor[to]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentMail{from: from, to: to, subject: subject, body: body})
	return nil
}

func TestMailer_TaskAssigned(t *testing.T) {
	client := &fakeClient{}
	mailer := NewMailer(client, "noreply@example.com")
	task := &models.Task{
		Title:    "Homepage mockups",
		Category: "Design",
		Priority: models.PriorityHigh,
		DueDate:  time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	alice := models.User{Email: "alice@example.com", FirstName: "Alice"}
	admin := &models.User{FirstName: "Ada", LastName: "Admin"}

	require.NoError(t, mailer.TaskAssigned(context.Background(), task, []models.User{alice}, admin))
	require.Len(t, client.sent, 1)
	assert.Equal(t, "noreply@example.com", client.sent[0].from)
	assert.Equal(t, "alice@example.com", client.sent[0].to)
	assert.Equal(t, "New task assigned: Homepage mockups", client.sent[0].subject)
	assert.Contains(t, client.sent[0].body, "Hi Alice")
	assert.Contains(t, client.sent[0].body, "Ada Admin assigned you a task")
}

func TestMailer_ContinuesAfterFailure(t *testing.T) {
	boom := errors.New("provider down")
	client := &fakeClient{failFor: map[string]error{"bob@example.com": boom}}
	mailer := NewMailer(client, "noreply@example.com")
	task := &models.Task{Title: "Report", Status: models.TaskStatusCompleted}

	recipients := []models.User{
		{Email: "bob@example.com"},
		{Email: ""},
		{Email: "carol@example.com"},
	}
	err := mailer.StatusChanged(context.Background(), task, recipients, nil, "done")
	assert.ErrorIs(t, err, boom)
	require.Len(t, client.sent, 1)
	assert.Equal(t, "carol@example.com", client.sent[0].to)
	assert.Contains(t, client.sent[0].body, "Someone changed the status")
}

func TestMailer_Invitation(t *testing.T) {
	client := &fakeClient{}
	mailer := NewMailer(client, "noreply@example.com")

	err := mailer.Invitation(context.Background(), InvitationMessage{
		Email:            "new@example.com",
		OrganizationName: "Acme",
		Role:             models.RoleManager,
		InvitedBy:        "Ada",
		Link:             "https://app.example.com/join/abc",
		ExpiresAt:        time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, client.sent, 1)
	assert.Equal(t, "Invitation to join Acme", client.sent[0].subject)
	assert.Contains(t, client.sent[0].body, "https://app.example.com/join/abc")
	assert.Contains(t, client.sent[0].body, "as a manager")
}

func TestNewClient_FallsBackToLog(t *testing.T) {
	_, ok := NewClient("").(LogClient)
	assert.True(t, ok)

	_, ok = NewClient("key").(*SendGridClient)
	assert.True(t, ok)

	assert.Error(t, NewSendGridClient("").Send(context.Background(), "a@b.c", "d@e.f", "s", "b"))
}
