package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yukikurage/taskflow-api/internal/models"
)

func actorWithRole(role models.Role) Actor {
	return Actor{UserID: 1, Role: role, OrganizationID: 10}
}

func TestCanRejectsUnknownAction(t *testing.T) {
	assert.False(t, Can(actorWithRole(models.RoleAdmin), Action(99)))
}

func TestCanMatrix(t *testing.T) {
	tests := []struct {
		action  Action
		admin   bool
		manager bool
		member  bool
	}{
		{ActionViewOrganization, true, true, true},
		{ActionUpdateOrganization, true, false, false},
		{ActionInviteMember, true, true, false},
		{ActionManageInvitations, true, true, false},
		{ActionChangeMemberRole, true, false, false},
		{ActionRemoveMember, true, false, false},
		{ActionCreateTask, true, true, false},
		{ActionEditTask, true, true, false},
		{ActionDeleteTask, true, true, false},
		{ActionViewAllTasks, true, true, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.admin, Can(actorWithRole(models.RoleAdmin), tt.action), "admin action %d", tt.action)
		assert.Equal(t, tt.manager, Can(actorWithRole(models.RoleManager), tt.action), "manager action %d", tt.action)
		assert.Equal(t, tt.member, Can(actorWithRole(models.RoleMember), tt.action), "member action %d", tt.action)
		assert.False(t, Can(actorWithRole(models.Role("owner")), tt.action), "unknown role action %d", tt.action)
	}
}

func TestCanInvite(t *testing.T) {
	tests := []struct {
		name  string
		actor models.Role
		role  models.Role
		want  bool
	}{
		{"admin invites member", models.RoleAdmin, models.RoleMember, true},
		{"admin invites manager", models.RoleAdmin, models.RoleManager, true},
		{"admin cannot grant admin", models.RoleAdmin, models.RoleAdmin, false},
		{"manager invites manager", models.RoleManager, models.RoleManager, true},
		{"manager cannot grant admin", models.RoleManager, models.RoleAdmin, false},
		{"member cannot invite", models.RoleMember, models.RoleMember, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanInvite(actorWithRole(tt.actor), tt.role))
		})
	}
}

func TestCanManageMember(t *testing.T) {
	orgID := uint64(10)
	otherOrg := uint64(11)
	admin := actorWithRole(models.RoleAdmin)

	self := &models.User{ID: 1, OrganizationID: &orgID}
	colleague := &models.User{ID: 2, OrganizationID: &orgID}
	outsider := &models.User{ID: 3, OrganizationID: &otherOrg}

	assert.True(t, CanManageMember(admin, ActionChangeMemberRole, colleague))
	assert.True(t, CanManageMember(admin, ActionRemoveMember, colleague))
	assert.False(t, CanManageMember(admin, ActionChangeMemberRole, self))
	assert.False(t, CanManageMember(admin, ActionRemoveMember, self))
	assert.False(t, CanManageMember(admin, ActionRemoveMember, outsider))
	assert.False(t, CanManageMember(admin, ActionCreateTask, colleague))
	assert.False(t, CanManageMember(actorWithRole(models.RoleManager), ActionRemoveMember, colleague))
}

func TestCanModifyTask(t *testing.T) {
	task := &models.Task{
		OrganizationID: 10,
		Assignments:    []models.TaskAssignment{{UserID: 5}},
	}

	assert.True(t, CanModifyTask(actorWithRole(models.RoleAdmin), task))
	assert.True(t, CanModifyTask(actorWithRole(models.RoleManager), task))
	assert.False(t, CanModifyTask(actorWithRole(models.RoleMember), task))
	assert.True(t, CanModifyTask(Actor{UserID: 5, Role: models.RoleMember, OrganizationID: 10}, task))

	// another tenant never passes, whatever the role
	assert.False(t, CanModifyTask(Actor{UserID: 5, Role: models.RoleAdmin, OrganizationID: 11}, task))
	assert.False(t, CanViewTask(actorWithRole(models.RoleMember), task))
}

func TestNewActor(t *testing.T) {
	_, ok := NewActor(&models.User{ID: 1})
	assert.False(t, ok)

	orgID := uint64(10)
	actor, ok := NewActor(&models.User{ID: 1, Role: models.RoleManager, OrganizationID: &orgID})
	assert.True(t, ok)
	assert.Equal(t, Actor{UserID: 1, Role: models.RoleManager, OrganizationID: 10}, actor)
}
