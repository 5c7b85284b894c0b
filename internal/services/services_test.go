package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yukikurage/taskflow-api/internal/auth"
	"github.com/yukikurage/taskflow-api/internal/database"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/notify"
	"github.com/yukikurage/taskflow-api/internal/policy"
	"github.com/yukikurage/taskflow-api/internal/repository"
	"gorm.io/gorm"
)

type notification struct {
	kind       string
	taskID     uint64
	recipients []string
	comment    string
}

// recordingNotifier keeps every notification it is asked to send
type recordingNotifier struct {
	mu      sync.Mutex
	sent    []notification
	invites []notify.InvitationMessage
	err     error
}

func (n *recordingNotifier) record(kind string, task *models.Task, recipients []models.User, comment string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	emails := make([]string, len(recipients))
	for i, u := range recipients {
		emails[i] = u.Email
	}
	n.sent = append(n.sent, notification{kind: kind, taskID: task.ID, recipients: emails, comment: comment})
	return n.err
}

func (n *recordingNotifier) TaskAssigned(_ context.Context, task *models.Task, recipients []models.User, _ *models.User) error {
	return n.record("assigned", task, recipients, "")
}

func (n *recordingNotifier) StatusChanged(_ context.Context, task *models.Task, recipients []models.User, _ *models.User, comment string) error {
	return n.record("status", task, recipients, comment)
}

func (n *recordingNotifier) TaskExpired(_ context.Context, task *models.Task, recipients []models.User) error {
	return n.record("expired", task, recipients, "")
}

func (n *recordingNotifier) TaskReminder(_ context.Context, task *models.Task, recipients []models.User) error {
	return n.record("reminder", task, recipients, "")
}

func (n *recordingNotifier) Invitation(_ context.Context, invite notify.InvitationMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.invites = append(n.invites, invite)
	return n.err
}

func (n *recordingNotifier) notifications() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.sent...)
}

type serviceTestEnv struct {
	db          *gorm.DB
	notifier    *recordingNotifier
	auth        *AuthService
	orgs        *OrganizationService
	invitations *InvitationService
	tasks       *TaskService
	now         time.Time
}

func setupServiceTestEnv(t *testing.T) *serviceTestEnv {
	t.Helper()

	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.MigrateDatabase(db))

	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)

	env := &serviceTestEnv{
		db:       db,
		notifier: &recordingNotifier{},
		now:      time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return env.now }

	env.invitations = NewInvitationService(invitationRepo, orgRepo, userRepo, env.notifier, InvitationConfig{
		FrontendURL: "http://app.test/",
	})
	env.invitations.now = clock
	env.auth = NewAuthService(userRepo, orgRepo, env.invitations, auth.NewTokenManager("test-secret", time.Hour))
	env.orgs = NewOrganizationService(orgRepo, userRepo)
	env.tasks = NewTaskService(taskRepo, orgRepo, userRepo, env.notifier, nil)
	env.tasks.now = clock

	return env
}

// register creates a user through AuthService and returns it with its policy actor
func (e *serviceTestEnv) register(t *testing.T, input RegisterInput) (*models.User, policy.Actor) {
	t.Helper()

	if input.Password == "" {
		input.Password = "supersecret"
	}
	result, err := e.auth.Register(input)
	require.NoError(t, err)

	actor, _ := policy.NewActor(result.User)
	return result.User, actor
}

// join invites email into the inviter's organization with role and registers the invitee
func (e *serviceTestEnv) join(t *testing.T, inviter policy.Actor, email, firstName string, role models.Role) (*models.User, policy.Actor) {
	t.Helper()

	invite, err := e.invitations.Invite(context.Background(), inviter, InviteInput{Email: email, Role: string(role)})
	require.NoError(t, err)

	return e.register(t, RegisterInput{
		Email:       email,
		FirstName:   firstName,
		InviteToken: invite.Invitation.Token,
	})
}
