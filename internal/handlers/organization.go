package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskflow-api/internal/dto"
	apierrors "github.com/yukikurage/taskflow-api/internal/errors"
	"github.com/yukikurage/taskflow-api/internal/logs"
	"github.com/yukikurage/taskflow-api/internal/middleware"
	"github.com/yukikurage/taskflow-api/internal/policy"
	"github.com/yukikurage/taskflow-api/internal/services"
)

type OrganizationHandler struct {
	orgService        *services.OrganizationService
	invitationService *services.InvitationService
}

func NewOrganizationHandler(orgService *services.OrganizationService, invitationService *services.InvitationService) *OrganizationHandler {
	return &OrganizationHandler{
		orgService:        orgService,
		invitationService: invitationService,
	}
}

// GetOrganization returns the caller's organization
func (h *OrganizationHandler) GetOrganization(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	org, err := h.orgService.GetOrganization(actor)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch organization")
		return
	}

	c.JSON(http.StatusOK, dto.ToOrganizationDTO(*org))
}

// UpdateOrganization changes the name and/or settings of the caller's organization.
// Keys other than name and settings are ignored.
func (h *OrganizationHandler) UpdateOrganization(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var patch services.OrganizationPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	org, err := h.orgService.UpdateOrganization(actor, patch)
	if err != nil {
		respondServiceError(c, err, "Failed to update organization")
		return
	}

	c.JSON(http.StatusOK, dto.ToOrganizationDTO(*org))
}

// ListMembers returns the members of the caller's organization
func (h *OrganizationHandler) ListMembers(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	members, err := h.orgService.ListMembers(actor)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch members")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"members": dto.ToUserDTOs(members),
	})
}

// ChangeMemberRole sets the role of another member
func (h *OrganizationHandler) ChangeMemberRole(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	memberID, ok := parseIDParam(c, "id", "Invalid member ID")
	if !ok {
		return
	}

	type ChangeRoleRequest struct {
		Role string `json:"role" binding:"required"`
	}

	var req ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	member, err := h.orgService.ChangeMemberRole(actor, memberID, req.Role)
	if err != nil {
		respondServiceError(c, err, "Failed to change member role")
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*member))
}

// RemoveMember detaches a member from the organization
func (h *OrganizationHandler) RemoveMember(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	memberID, ok := parseIDParam(c, "id", "Invalid member ID")
	if !ok {
		return
	}

	if err := h.orgService.RemoveMember(actor, memberID); err != nil {
		respondServiceError(c, err, "Failed to remove member")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Member removed successfully",
	})
}

// InviteMember creates an invitation and emails its link.
// If the email cannot be sent the invitation is kept and returned in the error details.
func (h *OrganizationHandler) InviteMember(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	type InviteRequest struct {
		Email string `json:"email" binding:"required"`
		Role  string `json:"role" binding:"required"`
	}

	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	result, err := h.invitationService.Invite(c.Request.Context(), actor, services.InviteInput{
		Email: req.Email,
		Role:  req.Role,
	})
	if errors.Is(err, services.ErrInvitationDelivery) && result != nil {
		logs.Logger.WithError(err).WithField("invitation_id", result.Invitation.ID).Warn("Invitation email not delivered")
		apierrors.RespondWithError(c, http.StatusInternalServerError, apierrors.NewAPIErrorWithDetails(
			apierrors.ErrCodeEmailDeliveryFailed,
			err.Error(),
			toInviteResponse(result),
		))
		return
	}
	if err != nil {
		respondServiceError(c, err, "Failed to create invitation")
		return
	}

	c.JSON(http.StatusCreated, toInviteResponse(result))
}

// ListInvitations returns the pending invitations of the organization
func (h *OrganizationHandler) ListInvitations(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	invitations, err := h.invitationService.ListPending(actor)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch invitations")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"invitations": dto.ToInvitationDTOs(invitations),
	})
}

// CancelInvitation expires a pending invitation
func (h *OrganizationHandler) CancelInvitation(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	invitationID, ok := parseIDParam(c, "id", "Invalid invitation ID")
	if !ok {
		return
	}

	if err := h.invitationService.Cancel(actor, invitationID); err != nil {
		respondServiceError(c, err, "Failed to cancel invitation")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Invitation cancelled successfully",
	})
}

// VerifyInvitation shows what a pending invitation grants. No authentication required.
func (h *OrganizationHandler) VerifyInvitation(c *gin.Context) {
	preview, err := h.invitationService.Verify(c.Param("token"))
	if err != nil {
		respondServiceError(c, err, "Failed to verify invitation")
		return
	}

	c.JSON(http.StatusOK, dto.InvitationPreviewDTO{
		Email:            preview.Email,
		OrganizationName: preview.OrganizationName,
		Role:             preview.Role,
		ExpiresAt:        preview.ExpiresAt,
	})
}

// AcceptInvitation joins the authenticated user to the inviting organization
func (h *OrganizationHandler) AcceptInvitation(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	user, err := h.invitationService.Accept(userID, c.Param("token"))
	if err != nil {
		respondServiceError(c, err, "Failed to accept invitation")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Successfully joined organization",
		"user":    dto.ToUserDTO(*user),
	})
}

func toInviteResponse(result *services.InviteResult) dto.InviteResponse {
	return dto.InviteResponse{
		Invitation: dto.ToInvitationDTO(*result.Invitation),
		InviteLink: result.Link,
	}
}

// requireActor reads the actor stored by RequireOrganization, responding 403 when missing
func requireActor(c *gin.Context) (policy.Actor, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		apierrors.Forbidden(c, "Organization access required")
		return policy.Actor{}, false
	}
	return actor, true
}

func parseIDParam(c *gin.Context, name, message string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, message)
		return 0, false
	}
	return id, true
}
