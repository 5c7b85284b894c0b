package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yukikurage/taskflow-api/internal/constants"
	"github.com/yukikurage/taskflow-api/internal/logs"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/notify"
	"github.com/yukikurage/taskflow-api/internal/policy"
	"github.com/yukikurage/taskflow-api/internal/repository"
	"github.com/yukikurage/taskflow-api/internal/utils"
	"gorm.io/gorm"
)

var (
	ErrInvalidInviteRole          = newError(ErrValidation, "role must be member or manager")
	ErrDuplicateInvitation        = newError(ErrConflict, "a pending invitation already exists for this email")
	ErrUserAlreadyMember          = newError(ErrConflict, "user is already a member of this organization")
	ErrAlreadyInOrganization      = newError(ErrConflict, "you already belong to an organization")
	ErrInvalidOrExpiredInvitation = newError(ErrValidation, "invalid or expired invitation")
	ErrInvitationNotFound         = newError(ErrNotFound, "invitation not found")
	ErrInvitationNotPending       = newError(ErrConflict, "invitation is no longer pending")
	ErrInvitationEmailMismatch    = newError(ErrForbidden, "this invitation was sent to a different email address")
	ErrInvitationDelivery         = errors.New("invitation was created but the email could not be sent")
)

// InvitationConfig configures links and acceptance rules.
type InvitationConfig struct {
	FrontendURL       string
	RequireEmailMatch bool
}

// InvitationService issues, verifies and redeems organization invitations.
type InvitationService struct {
	invitationRepo repository.InvitationRepository
	orgRepo        repository.OrganizationRepository
	userRepo       repository.UserRepository
	notifier       notify.Notifier
	cfg            InvitationConfig
	now            func() time.Time
}

// NewInvitationService creates a new InvitationService.
func NewInvitationService(
	invitationRepo repository.InvitationRepository,
	orgRepo repository.OrganizationRepository,
	userRepo repository.UserRepository,
	notifier notify.Notifier,
	cfg InvitationConfig,
) *InvitationService {
	return &InvitationService{
		invitationRepo: invitationRepo,
		orgRepo:        orgRepo,
		userRepo:       userRepo,
		notifier:       notifier,
		cfg:            cfg,
		now:            time.Now,
	}
}

// InviteInput represents an invitation request.
type InviteInput struct {
	Email string
	Role  string
}

// InviteResult is the persisted invitation and its join link.
type InviteResult struct {
	Invitation *models.Invitation
	Link       string
}

// InvitationPreview is what an unauthenticated visitor may see about an invitation.
type InvitationPreview struct {
	Email            string
	OrganizationName string
	Role             models.Role
	ExpiresAt        time.Time
}

// Invite creates a pending invitation and emails its link.
// When the email fails the invitation stays persisted and ErrInvitationDelivery is returned with the result.
func (s *InvitationService) Invite(ctx context.Context, actor policy.Actor, input InviteInput) (*InviteResult, error) {
	if !policy.Can(actor, policy.ActionInviteMember) {
		return nil, ErrPermissionDenied
	}

	email := models.NormalizeEmail(input.Email)
	if !looksLikeEmail(email) {
		return nil, ErrInvalidEmail
	}
	role, ok := models.ParseRole(input.Role)
	if !ok || !policy.CanInvite(actor, role) {
		return nil, ErrInvalidInviteRole
	}

	if existing, err := s.userRepo.FindByEmail(email); err == nil {
		if existing.IsActive && existing.BelongsTo(actor.OrganizationID) {
			return nil, ErrUserAlreadyMember
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check user: %w", err)
	}

	now := s.now()
	if err := s.ensureNoPendingInvitation(actor.OrganizationID, email, now); err != nil {
		return nil, err
	}

	token, err := utils.GenerateInviteToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate invitation token: %w", err)
	}

	invitation := &models.Invitation{
		Token:          token,
		Email:          email,
		OrganizationID: actor.OrganizationID,
		Role:           role,
		Status:         models.InvitationPending,
		ExpiresAt:      now.Add(constants.InviteTTL),
		CreatedByID:    actor.UserID,
	}
	if err := s.invitationRepo.Create(invitation); err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	result := &InviteResult{Invitation: invitation, Link: s.joinLink(token)}

	if err := s.sendInvitation(ctx, actor, invitation, result.Link); err != nil {
		logs.Logger.WithError(err).WithFields(logrus.Fields{
			"invitation_id":   invitation.ID,
			"organization_id": invitation.OrganizationID,
		}).Error("Failed to send invitation email")
		return result, ErrInvitationDelivery
	}

	return result, nil
}

// ensureNoPendingInvitation enforces one live invitation per email and organization.
// A pending invitation found past its expiry is retired on the way.
func (s *InvitationService) ensureNoPendingInvitation(orgID uint64, email string, now time.Time) error {
	pending, err := s.invitationRepo.FindPending(orgID, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check pending invitations: %w", err)
	}

	if pending.IsRedeemable(now) {
		return ErrDuplicateInvitation
	}

	pending.Status = models.InvitationExpired
	if err := s.invitationRepo.Update(pending); err != nil {
		return fmt.Errorf("failed to expire stale invitation: %w", err)
	}
	return nil
}

func (s *InvitationService) sendInvitation(ctx context.Context, actor policy.Actor, invitation *models.Invitation, link string) error {
	org, err := s.orgRepo.FindByID(invitation.OrganizationID)
	if err != nil {
		return fmt.Errorf("failed to load organization: %w", err)
	}

	inviter := "A teammate"
	if user, err := s.userRepo.FindByID(actor.UserID); err == nil {
		inviter = user.FullName()
	}

	return s.notifier.Invitation(ctx, notify.InvitationMessage{
		Email:            invitation.Email,
		OrganizationName: org.Name,
		Role:             invitation.Role,
		InvitedBy:        inviter,
		Link:             link,
		ExpiresAt:        invitation.ExpiresAt,
	})
}

// Verify returns the public fields of a redeemable invitation.
func (s *InvitationService) Verify(token string) (*InvitationPreview, error) {
	invitation, err := s.findRedeemable(token)
	if err != nil {
		return nil, err
	}

	return &InvitationPreview{
		Email:            invitation.Email,
		OrganizationName: invitation.Organization.Name,
		Role:             invitation.Role,
		ExpiresAt:        invitation.ExpiresAt,
	}, nil
}

// Accept moves an authenticated user without an organization into the invitation's organization.
func (s *InvitationService) Accept(userID uint64, token string) (*models.User, error) {
	user, err := s.userRepo.FindActiveByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user.OrganizationID != nil {
		return nil, ErrAlreadyInOrganization
	}

	if err := s.redeem(token, user); err != nil {
		return nil, err
	}

	logs.Logger.WithFields(logrus.Fields{
		"user_id":         user.ID,
		"organization_id": *user.OrganizationID,
		"role":            user.Role,
	}).Info("Invitation accepted")
	return user, nil
}

// redeem binds user (new or existing) to the invitation's organization and role.
func (s *InvitationService) redeem(token string, user *models.User) error {
	invitation, err := s.findRedeemable(token)
	if err != nil {
		return err
	}
	if s.cfg.RequireEmailMatch && models.NormalizeEmail(user.Email) != invitation.Email {
		return ErrInvitationEmailMismatch
	}

	if err := s.invitationRepo.Redeem(invitation, user, s.now()); err != nil {
		if errors.Is(err, repository.ErrInvitationNotPending) {
			return ErrInvalidOrExpiredInvitation
		}
		return fmt.Errorf("failed to accept invitation: %w", err)
	}
	return nil
}

func (s *InvitationService) findRedeemable(token string) (*models.Invitation, error) {
	token = strings.TrimSpace(token)
	if !utils.IsWellFormedInviteToken(token) {
		return nil, ErrInvalidOrExpiredInvitation
	}

	invitation, err := s.invitationRepo.FindByToken(token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidOrExpiredInvitation
		}
		return nil, fmt.Errorf("failed to find invitation: %w", err)
	}
	if !invitation.IsRedeemable(s.now()) {
		return nil, ErrInvalidOrExpiredInvitation
	}
	return invitation, nil
}

// ListPending lists the organization's invitations that can still be redeemed.
func (s *InvitationService) ListPending(actor policy.Actor) ([]models.Invitation, error) {
	if !policy.Can(actor, policy.ActionManageInvitations) {
		return nil, ErrPermissionDenied
	}

	invitations, err := s.invitationRepo.ListPending(actor.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}

	now := s.now()
	live := make([]models.Invitation, 0, len(invitations))
	for _, inv := range invitations {
		if inv.IsRedeemable(now) {
			live = append(live, inv)
		}
	}
	return live, nil
}

// Cancel expires a pending invitation.
func (s *InvitationService) Cancel(actor policy.Actor, invitationID uint64) error {
	if !policy.Can(actor, policy.ActionManageInvitations) {
		return ErrPermissionDenied
	}

	invitation, err := s.invitationRepo.FindByID(actor.OrganizationID, invitationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvitationNotFound
		}
		return fmt.Errorf("failed to find invitation: %w", err)
	}
	if invitation.Status != models.InvitationPending {
		return ErrInvitationNotPending
	}

	invitation.Status = models.InvitationExpired
	if err := s.invitationRepo.Update(invitation); err != nil {
		return fmt.Errorf("failed to cancel invitation: %w", err)
	}
	return nil
}

func (s *InvitationService) joinLink(token string) string {
	return strings.TrimRight(s.cfg.FrontendURL, "/") + "/join/" + token
}
